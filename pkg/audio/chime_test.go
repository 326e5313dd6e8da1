package audio_test

import (
	"math"
	"testing"
	"time"

	"github.com/MrWong99/hark/pkg/audio"
)

func TestToneLengthAndAmplitude(t *testing.T) {
	samples := audio.Tone(440, 100*time.Millisecond, 0.3, 16000)
	if len(samples) != 1600 {
		t.Fatalf("got %d samples, want 1600", len(samples))
	}

	var peak int16
	for _, s := range samples {
		if s > peak {
			peak = s
		}
	}
	want := int16(math.Trunc(0.3 * math.MaxInt16))
	// The peak lands within one quantization step of the requested amplitude.
	if peak < want-2 || peak > want+2 {
		t.Errorf("peak = %d, want ~%d", peak, want)
	}
}

func TestToneClampsAmplitude(t *testing.T) {
	for _, s := range audio.Tone(440, 10*time.Millisecond, 4.0, 8000) {
		if int(s) > math.MaxInt16 || int(s) < math.MinInt16 {
			t.Fatalf("sample %d out of int16 range", s)
		}
	}
	for _, s := range audio.Tone(440, 10*time.Millisecond, -1.0, 8000) {
		if s != 0 {
			t.Fatalf("negative amplitude should mute, got %d", s)
		}
	}
}

func TestFrameDuration(t *testing.T) {
	f := audio.Frame{Samples: make([]int16, 1600), Rate: 16000}
	if d := f.Duration(); d != 100*time.Millisecond {
		t.Errorf("Duration = %v, want 100ms", d)
	}
	if d := (audio.Frame{}).Duration(); d != 0 {
		t.Errorf("empty frame Duration = %v, want 0", d)
	}
}
