package capture

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os/exec"
	"sync"

	"github.com/lexwatch/lexwatch/pkg/logger"
)

// Import logger functions
var (
	String = logger.String
	Int    = logger.Int
	Error  = logger.Error
)

// Config contains configuration for the ffmpeg capture source
type Config struct {
	FFmpegPath  string
	InputFormat string // "pulse", "alsa", "dshow" or "avfoundation"
	Device      string // capture device; use a monitor/loopback device for system audio
	SampleRate  int
	Channels    int
	FrameSize   int // samples per frame handed to the segmenter
}

// FFmpegSource captures system audio by running ffmpeg against a capture
// device and reading raw s16le PCM from its stdout. It implements
// audio.FrameSource. A clean ffmpeg exit surfaces as io.EOF; an abnormal one
// surfaces as a device error, which the pipeline treats as fatal.
type FFmpegSource struct {
	config     Config
	cmd        *exec.Cmd
	stdout     io.ReadCloser
	stderr     bytes.Buffer
	ctx        context.Context
	cancel     context.CancelFunc
	logger     *logger.Logger
	frameBytes int
	mu         sync.Mutex
	started    bool
	pending    error
}

// NewFFmpegSource creates a new ffmpeg capture source
func NewFFmpegSource(ctx context.Context, config Config, log *logger.Logger) *FFmpegSource {
	srcCtx, srcCancel := context.WithCancel(ctx)
	return &FFmpegSource{
		config:     config,
		ctx:        srcCtx,
		cancel:     srcCancel,
		logger:     log.Named("ffmpeg-capture").With(String("device", config.Device)),
		frameBytes: config.FrameSize * 2,
	}
}

// Start launches the ffmpeg process
func (s *FFmpegSource) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started {
		return nil
	}

	args := []string{
		"-loglevel", "error",
		"-fflags", "nobuffer",
		"-f", s.config.InputFormat,
		"-i", s.config.Device,
		"-f", "s16le",
		"-acodec", "pcm_s16le",
		"-ac", fmt.Sprintf("%d", s.config.Channels),
		"-ar", fmt.Sprintf("%d", s.config.SampleRate),
		"-flush_packets", "1",
		"pipe:1",
	}

	s.logger.Info("Starting ffmpeg capture",
		String("path", s.config.FFmpegPath),
		String("input_format", s.config.InputFormat),
		Int("sample_rate", s.config.SampleRate),
		Int("frame_size", s.config.FrameSize))

	s.cmd = exec.CommandContext(s.ctx, s.config.FFmpegPath, args...)
	s.cmd.Stderr = &s.stderr

	stdout, err := s.cmd.StdoutPipe()
	if err != nil {
		return fmt.Errorf("failed to create stdout pipe: %w", err)
	}
	s.stdout = stdout

	if err := s.cmd.Start(); err != nil {
		return fmt.Errorf("failed to start ffmpeg: %w", err)
	}

	s.logger.Info("ffmpeg capture started", Int("pid", s.cmd.Process.Pid))
	s.started = true
	return nil
}

// ReadFrame blocks until one frame of PCM is available. Short reads at stream
// end are returned as a final partial frame so no captured sample is lost
// before the segmenter decides what to do with it.
func (s *FFmpegSource) ReadFrame() ([]byte, error) {
	if s.pending != nil {
		return nil, s.pending
	}

	buf := make([]byte, s.frameBytes)
	n, err := io.ReadFull(s.stdout, buf)
	if n > 0 {
		if err != nil {
			// Deliver the partial frame now, report the stream end on the next call
			s.pending = s.streamEndError(err)
		}
		return buf[:n], nil
	}
	if err != nil {
		return nil, s.streamEndError(err)
	}
	return buf, nil
}

// streamEndError maps a read failure onto either a clean end of stream or a
// fatal device error, inspecting the ffmpeg exit status
func (s *FFmpegSource) streamEndError(readErr error) error {
	if readErr != io.EOF && readErr != io.ErrUnexpectedEOF {
		return fmt.Errorf("capture read failed: %w", readErr)
	}

	waitErr := s.cmd.Wait()
	if waitErr != nil && s.ctx.Err() == nil {
		stderr := s.stderr.String()
		s.logger.Error("ffmpeg exited abnormally",
			Error(waitErr),
			String("stderr", stderr))
		return fmt.Errorf("audio device failure: %w (%s)", waitErr, stderr)
	}

	s.logger.Info("Capture stream ended")
	return io.EOF
}

// Stop terminates the ffmpeg process
func (s *FFmpegSource) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.started {
		return nil
	}

	s.logger.Info("Stopping ffmpeg capture")
	s.cancel()
	if s.stdout != nil {
		s.stdout.Close()
	}
	s.started = false
	return nil
}
