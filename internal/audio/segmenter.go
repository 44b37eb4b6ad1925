package audio

import (
	"fmt"
	"io"
	"time"

	"github.com/lexwatch/lexwatch/pkg/logger"
)

// FrameSource delivers raw PCM frames from a capture device. ReadFrame blocks
// until a frame is available, returns io.EOF when the stream ends, and any
// other error on device failure. Frame sizes may vary between calls.
type FrameSource interface {
	ReadFrame() ([]byte, error)
}

// Segmenter assembles capture frames into fixed-duration chunks. Frames are
// tiled back-to-back with no overlap; a frame straddling a chunk boundary is
// split, with the remainder carried into the next chunk.
type Segmenter struct {
	source     FrameSource
	sampleRate int
	chunkBytes int
	buffer     []byte
	logger     *logger.Logger
}

// NewSegmenter creates a segmenter producing chunks of chunkSeconds duration
func NewSegmenter(source FrameSource, sampleRate, chunkSeconds int, log *logger.Logger) *Segmenter {
	return &Segmenter{
		source:     source,
		sampleRate: sampleRate,
		chunkBytes: sampleRate * chunkSeconds * 2, // 2 bytes per s16le sample
		buffer:     make([]byte, 0, sampleRate*chunkSeconds*2),
		logger:     log.Named("segmenter"),
	}
}

// PullChunk blocks until a full chunk has accumulated and returns it. It
// returns io.EOF when the source terminates; a partial buffer held at that
// point is dropped rather than emitted. Device errors are returned as-is and
// are fatal to the stream.
func (s *Segmenter) PullChunk() (*Chunk, error) {
	for len(s.buffer) < s.chunkBytes {
		frame, err := s.source.ReadFrame()
		if err != nil {
			if err == io.EOF {
				if len(s.buffer) > 0 {
					s.logger.Debug("Dropping partial buffer at end of stream",
						logger.Int("buffered_bytes", len(s.buffer)))
					s.buffer = s.buffer[:0]
				}
				return nil, io.EOF
			}
			return nil, fmt.Errorf("capture source failed: %w", err)
		}
		s.buffer = append(s.buffer, frame...)
	}

	chunk := &Chunk{
		PCM:        make([]byte, s.chunkBytes),
		SampleRate: s.sampleRate,
		CapturedAt: time.Now().UTC(),
	}
	copy(chunk.PCM, s.buffer[:s.chunkBytes])

	// Carry any bytes past the boundary into the next chunk
	remainder := len(s.buffer) - s.chunkBytes
	copy(s.buffer, s.buffer[s.chunkBytes:])
	s.buffer = s.buffer[:remainder]

	return chunk, nil
}
