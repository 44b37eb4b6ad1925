package audio

import "time"

// Chunk is one fixed-duration unit of mono 16-bit PCM audio, assembled by the
// Segmenter and handed to the transcriber. Once handed off it is never touched
// by the segmenter again.
type Chunk struct {
	PCM        []byte // raw little-endian s16le samples
	SampleRate int
	CapturedAt time.Time
}

// SampleCount returns the number of int16 samples in the chunk
func (c *Chunk) SampleCount() int {
	return len(c.PCM) / 2
}

// Duration returns the chunk's play time
func (c *Chunk) Duration() time.Duration {
	if c.SampleRate == 0 {
		return 0
	}
	return time.Duration(c.SampleCount()) * time.Second / time.Duration(c.SampleRate)
}

// Sample returns the i-th sample decoded from the PCM bytes
func (c *Chunk) Sample(i int) int16 {
	return int16(c.PCM[i*2]) | int16(c.PCM[i*2+1])<<8
}
