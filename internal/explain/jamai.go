package explain

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/lexwatch/lexwatch/pkg/logger"
)

// JamAIConfig contains settings for the JamAI action-table backend
type JamAIConfig struct {
	BaseURL     string
	APIKey      string
	ProjectID   string
	TableID     string
	TimeoutSecs int
}

// JamAIProvider submits transcripts to a JamAI action table and extracts the
// generated explanation text from the response envelope. Each call is a
// single attempt; retry policy lives in Client.
type JamAIProvider struct {
	config     JamAIConfig
	httpClient *http.Client
	logger     *logger.Logger
}

// NewJamAIProvider creates a new JamAI explanation provider
func NewJamAIProvider(config JamAIConfig, log *logger.Logger) *JamAIProvider {
	timeout := time.Duration(config.TimeoutSecs) * time.Second
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &JamAIProvider{
		config: config,
		httpClient: &http.Client{
			Timeout: timeout,
		},
		logger: log.Named("jamai"),
	}
}

// addRowRequest is the JamAI rows/add payload
type addRowRequest struct {
	Data    []map[string]string `json:"data"`
	TableID string              `json:"table_id"`
	Stream  bool                `json:"stream"`
}

// addRowResponse is the subset of the rows/add envelope we care about
type addRowResponse struct {
	Rows []struct {
		Columns map[string]struct {
			Choices []struct {
				Message struct {
					Content string `json:"content"`
				} `json:"message"`
			} `json:"choices"`
		} `json:"columns"`
	} `json:"rows"`
}

// Explain performs one rows/add call and returns the raw explanation text
func (p *JamAIProvider) Explain(ctx context.Context, text string) (string, error) {
	payload := addRowRequest{
		Data:    []map[string]string{{"input": text}},
		TableID: p.config.TableID,
		Stream:  false,
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return "", &attemptError{class: ClassFatal, err: fmt.Errorf("failed to marshal request: %w", err)}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.config.BaseURL, bytes.NewReader(body))
	if err != nil {
		return "", &attemptError{class: ClassFatal, err: fmt.Errorf("failed to create request: %w", err)}
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+p.config.APIKey)
	req.Header.Set("X-PROJECT-ID", p.config.ProjectID)

	resp, err := p.httpClient.Do(req)
	if err != nil {
		// Transport failures (timeouts, connection resets) are worth retrying
		return "", &attemptError{class: ClassRetryable, err: fmt.Errorf("request failed: %w", err)}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", p.classifyStatus(resp)
	}

	var envelope addRowResponse
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		return "", &attemptError{class: ClassRetryable, err: fmt.Errorf("failed to decode response: %w", err)}
	}

	return p.extractOutput(&envelope), nil
}

// classifyStatus turns a non-200 response into a classified attempt error.
// 429 and 5xx are retryable, everything else in 4xx is fatal.
func (p *JamAIProvider) classifyStatus(resp *http.Response) error {
	snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
	err := fmt.Errorf("unexpected status code %d: %s", resp.StatusCode, bytes.TrimSpace(snippet))

	switch {
	case resp.StatusCode == http.StatusTooManyRequests:
		return &attemptError{
			class:      ClassRetryable,
			retryAfter: parseRetryAfter(resp.Header.Get("Retry-After")),
			err:        err,
		}
	case resp.StatusCode >= 500:
		return &attemptError{class: ClassRetryable, err: err}
	default:
		return &attemptError{class: ClassFatal, err: err}
	}
}

// parseRetryAfter interprets a Retry-After header given in seconds; malformed
// or absent values yield zero (use computed backoff)
func parseRetryAfter(value string) time.Duration {
	if value == "" {
		return 0
	}
	secs, err := strconv.Atoi(value)
	if err != nil || secs < 0 {
		return 0
	}
	return time.Duration(secs) * time.Second
}

// extractOutput digs the explanation text out of the rows/add envelope. The
// envelope shape is not contractually guaranteed, so anything missing is
// treated as an empty response rather than an error.
func (p *JamAIProvider) extractOutput(envelope *addRowResponse) string {
	if len(envelope.Rows) == 0 {
		p.logger.Warn("API returned empty rows")
		return ""
	}
	output, ok := envelope.Rows[0].Columns["Output"]
	if !ok || len(output.Choices) == 0 {
		p.logger.Warn("API response missing Output column")
		return ""
	}
	return output.Choices[0].Message.Content
}
