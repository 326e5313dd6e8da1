package audio

import (
	"encoding/binary"
	"errors"
	"fmt"
)

// bitsPerSample is fixed at 16 for the signed little-endian PCM used
// throughout the pipeline.
const bitsPerSample = 16

// EncodeWAV wraps mono 16-bit PCM samples in a standard RIFF/WAV container.
// The returned byte slice is suitable for direct inclusion in a multipart
// form upload. No external dependencies are required.
func EncodeWAV(samples []int16, sampleRate int) []byte {
	const channels = 1
	byteRate := sampleRate * channels * bitsPerSample / 8
	blockAlign := channels * bitsPerSample / 8
	dataSize := len(samples) * 2

	buf := make([]byte, 44+dataSize)

	// RIFF chunk descriptor
	copy(buf[0:4], "RIFF")
	binary.LittleEndian.PutUint32(buf[4:8], uint32(36+dataSize)) // file size − 8
	copy(buf[8:12], "WAVE")

	// fmt sub-chunk
	copy(buf[12:16], "fmt ")
	binary.LittleEndian.PutUint32(buf[16:20], 16)                 // sub-chunk size (PCM)
	binary.LittleEndian.PutUint16(buf[20:22], 1)                  // audio format: PCM
	binary.LittleEndian.PutUint16(buf[22:24], channels)           // num channels
	binary.LittleEndian.PutUint32(buf[24:28], uint32(sampleRate)) // sample rate
	binary.LittleEndian.PutUint32(buf[28:32], uint32(byteRate))   // byte rate
	binary.LittleEndian.PutUint16(buf[32:34], uint16(blockAlign)) // block align
	binary.LittleEndian.PutUint16(buf[34:36], bitsPerSample)      // bits per sample

	// data sub-chunk
	copy(buf[36:40], "data")
	binary.LittleEndian.PutUint32(buf[40:44], uint32(dataSize))
	for i, s := range samples {
		binary.LittleEndian.PutUint16(buf[44+i*2:], uint16(s))
	}

	return buf
}

// DecodeWAV extracts the mono PCM payload and sample rate from a RIFF/WAV
// byte stream. Multi-channel audio is down-mixed to mono by averaging the
// channels per frame. Only 16-bit PCM (format tag 1) is supported; anything
// else returns an error.
func DecodeWAV(data []byte) (samples []int16, sampleRate int, err error) {
	if len(data) < 44 || string(data[0:4]) != "RIFF" || string(data[8:12]) != "WAVE" {
		return nil, 0, errors.New("audio: not a RIFF/WAVE stream")
	}

	var (
		channels int
		bits     int
		pcm      []byte
	)

	// Walk the sub-chunks; servers commonly insert LIST/fact chunks between
	// fmt and data.
	off := 12
	for off+8 <= len(data) {
		id := string(data[off : off+4])
		size := int(binary.LittleEndian.Uint32(data[off+4 : off+8]))
		body := off + 8
		if body+size > len(data) {
			size = len(data) - body
		}

		switch id {
		case "fmt ":
			if size < 16 {
				return nil, 0, errors.New("audio: truncated fmt chunk")
			}
			format := binary.LittleEndian.Uint16(data[body : body+2])
			if format != 1 {
				return nil, 0, fmt.Errorf("audio: unsupported WAV format tag %d (want PCM)", format)
			}
			channels = int(binary.LittleEndian.Uint16(data[body+2 : body+4]))
			sampleRate = int(binary.LittleEndian.Uint32(data[body+4 : body+8]))
			bits = int(binary.LittleEndian.Uint16(data[body+14 : body+16]))
		case "data":
			pcm = data[body : body+size]
		}

		// Chunks are word-aligned.
		off = body + size + size%2
	}

	if sampleRate == 0 || channels == 0 {
		return nil, 0, errors.New("audio: missing fmt chunk")
	}
	if bits != bitsPerSample {
		return nil, 0, fmt.Errorf("audio: unsupported bit depth %d (want 16)", bits)
	}
	if pcm == nil {
		return nil, 0, errors.New("audio: missing data chunk")
	}

	n := len(pcm) / (2 * channels)
	samples = make([]int16, n)
	for i := range n {
		var sum int
		for ch := range channels {
			idx := (i*channels + ch) * 2
			sum += int(int16(binary.LittleEndian.Uint16(pcm[idx : idx+2])))
		}
		samples[i] = int16(sum / channels)
	}

	return samples, sampleRate, nil
}
