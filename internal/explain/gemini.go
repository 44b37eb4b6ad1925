package explain

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"google.golang.org/genai"

	"github.com/lexwatch/lexwatch/pkg/logger"
)

// geminiPrompt instructs the model to emit the same line-oriented block
// format the parser expects from the JamAI table
const geminiPrompt = `You will receive a transcript of spoken conversation. ` +
	`Identify jargon, acronyms and technical terms a newcomer would not know. ` +
	`For each one, output a block of the form "TERM: short plain-language explanation", ` +
	`one block per term, blocks separated by a blank line. ` +
	`If the transcript contains no jargon, output nothing.`

// GeminiProvider generates explanations with the Gemini API instead of a
// JamAI action table. It satisfies the same Provider contract, so the retry
// client and parser are unchanged.
type GeminiProvider struct {
	client *genai.Client
	model  string
	logger *logger.Logger
}

// NewGeminiProvider creates a new Gemini explanation provider
func NewGeminiProvider(ctx context.Context, apiKey, model string, log *logger.Logger) (*GeminiProvider, error) {
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini client: %w", err)
	}

	return &GeminiProvider{
		client: client,
		model:  model,
		logger: log.Named("gemini"),
	}, nil
}

// Explain performs one generation call and returns the raw explanation text
func (p *GeminiProvider) Explain(ctx context.Context, text string) (string, error) {
	resp, err := p.client.Models.GenerateContent(ctx, p.model,
		genai.Text(geminiPrompt+"\n\nTranscript:\n"+text), nil)
	if err != nil {
		return "", classifyGeminiError(err)
	}
	return resp.Text(), nil
}

// classifyGeminiError maps Gemini API errors onto the shared failure classes
// using the embedded HTTP status code
func classifyGeminiError(err error) error {
	var apiErr genai.APIError
	if errors.As(err, &apiErr) {
		switch {
		case apiErr.Code == http.StatusTooManyRequests || apiErr.Code >= 500:
			return &attemptError{class: ClassRetryable, err: err}
		case apiErr.Code >= 400:
			return &attemptError{class: ClassFatal, err: err}
		}
	}
	return &attemptError{class: ClassRetryable, err: err}
}
