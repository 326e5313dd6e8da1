package whisper

// samplesToFloat32 converts 16-bit signed PCM samples to float32 normalised
// to the range [-1.0, 1.0], the layout whisper.cpp inference expects.
func samplesToFloat32(samples []int16) []float32 {
	out := make([]float32, len(samples))
	for i, s := range samples {
		out[i] = float32(s) / 32768.0
	}
	return out
}
