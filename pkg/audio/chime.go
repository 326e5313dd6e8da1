package audio

import (
	"math"
	"time"
)

// Tone synthesizes a mono sine wave as 16-bit PCM. freq is in Hz, amp in
// [0,1] relative to full scale. It backs the short acknowledgement chime
// played when a wake word is accepted, so the speaker hears that capture
// has started before saying anything.
func Tone(freq float64, d time.Duration, amp float64, sampleRate int) []int16 {
	if amp < 0 {
		amp = 0
	} else if amp > 1 {
		amp = 1
	}
	n := int(float64(sampleRate) * d.Seconds())
	samples := make([]int16, n)
	scale := amp * math.MaxInt16
	for i := range samples {
		t := float64(i) / float64(sampleRate)
		samples[i] = int16(scale * math.Sin(2*math.Pi*freq*t))
	}
	return samples
}

// Chime returns the standard capture-start acknowledgement: a 440 Hz beep,
// 100 ms long, at 30 % volume.
func Chime(sampleRate int) []int16 {
	return Tone(440, 100*time.Millisecond, 0.3, sampleRate)
}
