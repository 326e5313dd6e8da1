package spectral_test

import (
	"testing"
	"time"

	"github.com/MrWong99/hark/pkg/audio"
	"github.com/MrWong99/hark/pkg/provider/vad/spectral"
)

func chunks(amp float64) []int16 {
	return audio.Tone(440, 100*time.Millisecond, amp, 16000)
}

func TestFirstChunkPrimesFloor(t *testing.T) {
	c := spectral.New()
	if speech, err := c.IsSpeech(chunks(0.5)); err != nil || speech {
		t.Errorf("priming chunk: speech=%v err=%v, want false", speech, err)
	}
}

func TestSpeechOnsetAboveFloor(t *testing.T) {
	c := spectral.New()

	quiet := chunks(0.01)
	if speech, _ := c.IsSpeech(quiet); speech {
		t.Fatal("priming chunk classified as speech")
	}
	if speech, _ := c.IsSpeech(quiet); speech {
		t.Error("steady room tone classified as speech")
	}

	if speech, _ := c.IsSpeech(chunks(0.5)); !speech {
		t.Error("50x flux jump not classified as speech")
	}
}

func TestResetClearsFloor(t *testing.T) {
	c := spectral.New()
	c.IsSpeech(chunks(0.01))
	if speech, _ := c.IsSpeech(chunks(0.5)); !speech {
		t.Fatal("onset not detected before reset")
	}

	c.Reset()
	// After a reset the next chunk primes again, whatever its level.
	if speech, _ := c.IsSpeech(chunks(0.5)); speech {
		t.Error("first chunk after Reset should prime, not classify")
	}
}

func TestFluxEmpty(t *testing.T) {
	if got := spectral.Flux(nil); got != 0 {
		t.Errorf("Flux(nil) = %v, want 0", got)
	}
}
