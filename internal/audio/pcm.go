package audio

import (
	"encoding/base64"
	"math"
)

// RMSEnergy computes the root-mean-square energy of a frame of 16-bit samples,
// normalized to 0.0..1.0.
func RMSEnergy(samples []int16) float64 {
	if len(samples) == 0 {
		return 0
	}
	var sum float64
	for _, s := range samples {
		n := float64(s) / 32768.0
		sum += n * n
	}
	return math.Sqrt(sum / float64(len(samples)))
}

// EncodePCM16LE converts samples to 16-bit little-endian PCM bytes.
func EncodePCM16LE(samples []int16) []byte {
	out := make([]byte, len(samples)*2)
	for i, s := range samples {
		out[2*i] = byte(s)
		out[2*i+1] = byte(uint16(s) >> 8)
	}
	return out
}

// DecodePCM16LE converts 16-bit little-endian PCM bytes back to samples.
// A trailing odd byte is dropped.
func DecodePCM16LE(pcm []byte) []int16 {
	out := make([]int16, len(pcm)/2)
	for i := range out {
		out[i] = int16(pcm[2*i]) | int16(pcm[2*i+1])<<8
	}
	return out
}

// EncodePayload produces the wire form of a voiced frame: 16-bit LE PCM,
// base64-encoded.
func EncodePayload(samples []int16) string {
	return base64.StdEncoding.EncodeToString(EncodePCM16LE(samples))
}
