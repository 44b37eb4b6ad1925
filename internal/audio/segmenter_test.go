package audio

import (
	"errors"
	"io"
	"testing"

	"github.com/lexwatch/lexwatch/pkg/logger"
)

// scriptedSource replays a fixed sequence of frames, then a terminal error
type scriptedSource struct {
	frames [][]byte
	err    error
	pos    int
}

func (s *scriptedSource) ReadFrame() ([]byte, error) {
	if s.pos >= len(s.frames) {
		if s.err != nil {
			return nil, s.err
		}
		return nil, io.EOF
	}
	frame := s.frames[s.pos]
	s.pos++
	return frame, nil
}

// pcmFrame builds a little-endian s16le frame of n samples, all set to value
func pcmFrame(n int, value int16) []byte {
	frame := make([]byte, n*2)
	for i := 0; i < n; i++ {
		frame[i*2] = byte(value)
		frame[i*2+1] = byte(value >> 8)
	}
	return frame
}

func TestSegmenterExactChunkSize(t *testing.T) {
	// 1 second at 100 Hz = 100 samples per chunk; frame size divides evenly
	source := &scriptedSource{frames: [][]byte{
		pcmFrame(50, 1),
		pcmFrame(50, 2),
		pcmFrame(50, 3),
		pcmFrame(50, 4),
	}}
	seg := NewSegmenter(source, 100, 1, logger.NewNop())

	for i := 0; i < 2; i++ {
		chunk, err := seg.PullChunk()
		if err != nil {
			t.Fatalf("PullChunk %d failed: %v", i, err)
		}
		if got := chunk.SampleCount(); got != 100 {
			t.Errorf("chunk %d has %d samples, want 100", i, got)
		}
	}

	if _, err := seg.PullChunk(); err != io.EOF {
		t.Errorf("expected io.EOF after stream end, got %v", err)
	}
}

func TestSegmenterSplitsStraddlingFrame(t *testing.T) {
	// Chunk is 100 samples; a 70-sample frame after 60 buffered samples
	// straddles the boundary, so 30 samples must carry into the next chunk
	source := &scriptedSource{frames: [][]byte{
		pcmFrame(60, 1),
		pcmFrame(70, 2),
		pcmFrame(70, 3),
	}}
	seg := NewSegmenter(source, 100, 1, logger.NewNop())

	first, err := seg.PullChunk()
	if err != nil {
		t.Fatalf("first PullChunk failed: %v", err)
	}
	if got := first.SampleCount(); got != 100 {
		t.Fatalf("first chunk has %d samples, want 100", got)
	}
	if first.Sample(59) != 1 || first.Sample(60) != 2 {
		t.Errorf("frame boundary misplaced: sample 59 = %d, sample 60 = %d", first.Sample(59), first.Sample(60))
	}

	second, err := seg.PullChunk()
	if err != nil {
		t.Fatalf("second PullChunk failed: %v", err)
	}
	if got := second.SampleCount(); got != 100 {
		t.Fatalf("second chunk has %d samples, want 100", got)
	}
	// First 30 samples are the carried tail of the 70-sample frame
	if second.Sample(0) != 2 || second.Sample(29) != 2 || second.Sample(30) != 3 {
		t.Errorf("carried remainder misplaced: samples 0, 29, 30 = %d, %d, %d",
			second.Sample(0), second.Sample(29), second.Sample(30))
	}
}

func TestSegmenterDropsPartialBufferAtEOF(t *testing.T) {
	// 150 samples buffered: one full 100-sample chunk, then the 50-sample
	// tail is dropped when the stream ends
	source := &scriptedSource{frames: [][]byte{
		pcmFrame(150, 1),
	}}
	seg := NewSegmenter(source, 100, 1, logger.NewNop())

	if _, err := seg.PullChunk(); err != nil {
		t.Fatalf("PullChunk failed: %v", err)
	}
	if _, err := seg.PullChunk(); err != io.EOF {
		t.Errorf("expected io.EOF with partial buffer dropped, got %v", err)
	}
}

func TestSegmenterPropagatesDeviceError(t *testing.T) {
	deviceErr := errors.New("device unplugged")
	source := &scriptedSource{
		frames: [][]byte{pcmFrame(50, 1)},
		err:    deviceErr,
	}
	seg := NewSegmenter(source, 100, 1, logger.NewNop())

	_, err := seg.PullChunk()
	if err == nil {
		t.Fatal("expected device error, got nil")
	}
	if !errors.Is(err, deviceErr) {
		t.Errorf("device error not preserved in chain: %v", err)
	}
}
