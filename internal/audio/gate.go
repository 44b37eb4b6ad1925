package audio

import "math"

// RMS computes the root-mean-square amplitude of the chunk's samples on the
// raw int16 scale. An empty chunk has zero energy.
func RMS(chunk *Chunk) float64 {
	n := chunk.SampleCount()
	if n == 0 {
		return 0
	}
	var sum float64
	for i := 0; i < n; i++ {
		v := float64(chunk.Sample(i))
		sum += v * v
	}
	return math.Sqrt(sum / float64(n))
}

// SilenceGate decides whether a chunk carries enough energy to be worth
// transcribing. Each chunk is judged independently; there is no hangover.
type SilenceGate struct {
	threshold float64
}

// NewSilenceGate creates a gate with the given RMS threshold
func NewSilenceGate(threshold float64) *SilenceGate {
	return &SilenceGate{threshold: threshold}
}

// IsSilent reports whether the chunk's RMS energy falls below the threshold.
// The comparison is strict: a chunk exactly at the threshold is voiced.
func (g *SilenceGate) IsSilent(chunk *Chunk) bool {
	return RMS(chunk) < g.threshold
}
