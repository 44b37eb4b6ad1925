package transcription

import (
	"bytes"
	"context"
	"fmt"
	"strings"
	"time"

	openai "github.com/sashabaranov/go-openai"

	"github.com/lexwatch/lexwatch/internal/audio"
	"github.com/lexwatch/lexwatch/pkg/logger"
)

// Config contains settings for the Whisper transcriber
type Config struct {
	APIKey      string
	BaseURL     string // optional OpenAI-compatible endpoint, e.g. a local whisper server
	Model       string
	Language    string
	TimeoutSecs int
}

// WhisperClient transcribes audio chunks through the OpenAI audio API (or any
// OpenAI-compatible endpoint)
type WhisperClient struct {
	client  *openai.Client
	config  Config
	logger  *logger.Logger
	timeout time.Duration
}

// NewWhisperClient creates a new Whisper transcription client
func NewWhisperClient(config Config, log *logger.Logger) (*WhisperClient, error) {
	if config.APIKey == "" {
		return nil, fmt.Errorf("OpenAI API key is required for transcription")
	}

	clientCfg := openai.DefaultConfig(config.APIKey)
	if config.BaseURL != "" {
		clientCfg.BaseURL = strings.TrimRight(config.BaseURL, "/") + "/v1"
	}

	timeout := time.Duration(config.TimeoutSecs) * time.Second
	if timeout <= 0 {
		timeout = 60 * time.Second
	}

	return &WhisperClient{
		client:  openai.NewClientWithConfig(clientCfg),
		config:  config,
		logger:  log.Named("whisper"),
		timeout: timeout,
	}, nil
}

// Transcribe converts one audio chunk to text. An empty result means no speech
// was recognized; it is not an error. Failures are per-chunk: the caller logs
// and moves on.
func (c *WhisperClient) Transcribe(ctx context.Context, chunk *audio.Chunk) (string, error) {
	wav, err := audio.EncodeWAV(chunk)
	if err != nil {
		return "", fmt.Errorf("failed to encode chunk: %w", err)
	}

	reqCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	start := time.Now()
	resp, err := c.client.CreateTranscription(reqCtx, openai.AudioRequest{
		Model:    c.config.Model,
		FilePath: "chunk.wav",
		Reader:   bytes.NewReader(wav),
		Language: c.config.Language,
	})
	if err != nil {
		return "", fmt.Errorf("transcription request failed: %w", err)
	}

	text := strings.TrimSpace(resp.Text)
	// Whisper occasionally emits a lone period for near-silent audio
	if text == "." {
		text = ""
	}

	c.logger.Debug("Transcribed chunk",
		logger.Duration("duration", time.Since(start)),
		logger.Int("text_length", len(text)))

	return text, nil
}
