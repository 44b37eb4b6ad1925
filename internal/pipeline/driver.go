package pipeline

import (
	"context"
	"io"
	"sync"
	"time"

	"github.com/lexwatch/lexwatch/internal/audio"
	"github.com/lexwatch/lexwatch/internal/explain"
	"github.com/lexwatch/lexwatch/internal/metrics"
	"github.com/lexwatch/lexwatch/internal/notify"
	"github.com/lexwatch/lexwatch/internal/storage/sqlite"
	"github.com/lexwatch/lexwatch/internal/websocket"
	"github.com/lexwatch/lexwatch/pkg/logger"
)

// State is the driver's position in the per-chunk processing cycle
type State int

const (
	StateIdle State = iota
	StateCapturing
	StateTranscribing
	StateSubmitting
	StateNotifying
	StateError
	StateStopped
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateCapturing:
		return "capturing"
	case StateTranscribing:
		return "transcribing"
	case StateSubmitting:
		return "submitting"
	case StateNotifying:
		return "notifying"
	case StateError:
		return "error"
	case StateStopped:
		return "stopped"
	}
	return "unknown"
}

// Transcriber converts one audio chunk to text. An empty result is a
// terminal no-op for the chunk, not an error.
type Transcriber interface {
	Transcribe(ctx context.Context, chunk *audio.Chunk) (string, error)
}

// Submitter sends transcript text to the explanation service and returns the
// raw response body after any internal retries
type Submitter interface {
	Submit(ctx context.Context, text string) (string, error)
}

// Driver runs the capture → gate → transcribe → submit → parse → notify loop.
// One chunk is fully disposed of (including network retries and notification
// dispatch) before the next chunk's capture begins; chunks share no state
// beyond the segmenter's frame buffer.
type Driver struct {
	segmenter   *audio.Segmenter
	gate        *audio.SilenceGate
	transcriber Transcriber
	submitter   Submitter
	parser      *explain.Parser
	notifier    notify.Notifier
	storage     *sqlite.Storage   // optional
	wsServer    *websocket.Server // optional
	metrics     *metrics.Metrics  // optional
	logger      *logger.Logger

	mu    sync.RWMutex
	state State
}

// NewDriver creates a pipeline driver. Storage, wsServer and metrics may be
// nil; the core loop does not depend on them.
func NewDriver(
	segmenter *audio.Segmenter,
	gate *audio.SilenceGate,
	transcriber Transcriber,
	submitter Submitter,
	parser *explain.Parser,
	notifier notify.Notifier,
	storage *sqlite.Storage,
	wsServer *websocket.Server,
	m *metrics.Metrics,
	log *logger.Logger,
) *Driver {
	return &Driver{
		segmenter:   segmenter,
		gate:        gate,
		transcriber: transcriber,
		submitter:   submitter,
		parser:      parser,
		notifier:    notifier,
		storage:     storage,
		wsServer:    wsServer,
		metrics:     m,
		logger:      log.Named("pipeline"),
		state:       StateIdle,
	}
}

// State returns the driver's current state
func (d *Driver) State() State {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.state
}

func (d *Driver) setState(s State) {
	d.mu.Lock()
	changed := d.state != s
	d.state = s
	d.mu.Unlock()

	if changed && d.wsServer != nil {
		d.wsServer.Broadcast(&websocket.Message{
			Type: websocket.MessageTypeStatus,
			Data: map[string]any{"state": s.String()},
		})
	}
}

// Run drives the pipeline until the context is cancelled or the capture
// device fails. Cancellation takes effect at the nearest chunk boundary.
// Per-chunk failures never end the run; only device failure does.
func (d *Driver) Run(ctx context.Context) error {
	d.logger.Info("Pipeline started")
	d.setState(StateCapturing)

	for {
		if err := ctx.Err(); err != nil {
			d.logger.Info("Pipeline cancelled")
			d.setState(StateStopped)
			return err
		}

		chunk, err := d.segmenter.PullChunk()
		if err == io.EOF {
			d.logger.Info("Capture stream ended, stopping pipeline")
			d.setState(StateStopped)
			return nil
		}
		if err != nil {
			d.logger.Error("Capture device failure, stopping pipeline", logger.Error(err))
			d.setState(StateError)
			d.setState(StateStopped)
			return err
		}

		d.processChunk(ctx, chunk)
		d.setState(StateCapturing)
	}
}

// processChunk takes one chunk through the remainder of the pipeline. All
// failures here degrade to "drop this chunk, continue".
func (d *Driver) processChunk(ctx context.Context, chunk *audio.Chunk) {
	rms := audio.RMS(chunk)
	if d.metrics != nil {
		d.metrics.ChunksProduced.Inc()
		d.metrics.ChunkRMS.Observe(rms)
	}

	if d.gate.IsSilent(chunk) {
		d.logger.Debug("Silent chunk discarded", logger.Float64("rms", rms))
		if d.metrics != nil {
			d.metrics.ChunksSilent.Inc()
		}
		return
	}

	d.setState(StateTranscribing)
	if d.metrics != nil {
		d.metrics.TranscriptionRequests.Inc()
	}
	start := time.Now()
	text, err := d.transcriber.Transcribe(ctx, chunk)
	if d.metrics != nil {
		d.metrics.TranscriptionDuration.Observe(time.Since(start).Seconds())
	}
	if err != nil {
		d.logger.Error("Transcription failed, skipping chunk", logger.Error(err))
		if d.metrics != nil {
			d.metrics.TranscriptionFailures.Inc()
		}
		return
	}
	if text == "" {
		d.logger.Debug("Empty transcript, skipping chunk")
		if d.metrics != nil {
			d.metrics.TranscriptionEmpty.Inc()
		}
		return
	}

	d.logger.Info("Transcription", logger.String("text", text))

	var transcriptID int64
	if d.storage != nil {
		transcriptID, err = d.storage.StoreTranscript(&sqlite.TranscriptRecord{
			CreatedAt: chunk.CapturedAt,
			Content:   text,
			RMS:       rms,
		})
		if err != nil {
			d.logger.Error("Failed to store transcript", logger.Error(err))
		}
	}
	if d.wsServer != nil {
		d.wsServer.Broadcast(&websocket.Message{
			Type: websocket.MessageTypeTranscript,
			Data: map[string]any{
				"id":        transcriptID,
				"text":      text,
				"timestamp": chunk.CapturedAt,
			},
		})
	}

	d.setState(StateSubmitting)
	if d.metrics != nil {
		d.metrics.SubmitRequests.Inc()
	}
	start = time.Now()
	raw, err := d.submitter.Submit(ctx, text)
	if d.metrics != nil {
		d.metrics.SubmitDuration.Observe(time.Since(start).Seconds())
	}
	if err != nil {
		if explain.IsFatal(err) {
			// Likely a persistent misconfiguration (auth, bad request),
			// worth surfacing more prominently than network noise
			d.logger.Error("Submission failed with non-retryable error", logger.Error(err))
			if d.metrics != nil {
				d.metrics.SubmitFatalFailures.Inc()
			}
		} else {
			d.logger.Warn("Submission failed after retries, skipping chunk", logger.Error(err))
			if d.metrics != nil {
				d.metrics.SubmitRetryExhaustion.Inc()
			}
		}
		return
	}

	d.setState(StateNotifying)
	records := d.parser.Parse(raw)
	if len(records) == 0 {
		d.logger.Debug("No jargon detected in response")
		return
	}

	for _, record := range records {
		d.logger.Info("Notification", logger.String("title", record.Title))
		d.notifier.Notify(record.Title, record.Body)
		if d.metrics != nil {
			d.metrics.NotificationsSent.Inc()
			d.metrics.TermsParsed.Inc()
		}
		if d.storage != nil && transcriptID != 0 {
			if _, err := d.storage.StoreTerm(&sqlite.TermRecord{
				TranscriptID: transcriptID,
				CreatedAt:    time.Now().UTC(),
				Title:        record.Title,
				Body:         record.Body,
			}); err != nil {
				d.logger.Error("Failed to store term", logger.Error(err))
			}
		}
	}

	if d.storage != nil && transcriptID != 0 {
		if err := d.storage.UpdateTermCount(transcriptID, len(records)); err != nil {
			d.logger.Error("Failed to update term count", logger.Error(err))
		}
	}
}
