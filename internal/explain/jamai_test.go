package explain

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/lexwatch/lexwatch/pkg/logger"
)

func jamaiEnvelope(content string) string {
	return `{"rows":[{"columns":{"Output":{"choices":[{"message":{"content":` +
		mustJSON(content) + `}}]}}}]}`
}

func mustJSON(s string) string {
	b, _ := json.Marshal(s)
	return string(b)
}

func TestJamAIExplainSuccess(t *testing.T) {
	var captured struct {
		auth    string
		project string
		body    addRowRequest
	}

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		captured.auth = r.Header.Get("Authorization")
		captured.project = r.Header.Get("X-PROJECT-ID")
		if err := json.NewDecoder(r.Body).Decode(&captured.body); err != nil {
			t.Errorf("failed to decode request body: %v", err)
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(jamaiEnvelope("AI: Artificial Intelligence")))
	}))
	defer server.Close()

	provider := NewJamAIProvider(JamAIConfig{
		BaseURL:   server.URL,
		APIKey:    "test-key",
		ProjectID: "proj-1",
		TableID:   "jargon",
	}, logger.NewNop())

	got, err := provider.Explain(context.Background(), "some transcript")
	if err != nil {
		t.Fatalf("Explain failed: %v", err)
	}
	if got != "AI: Artificial Intelligence" {
		t.Errorf("output = %q", got)
	}

	if captured.auth != "Bearer test-key" {
		t.Errorf("Authorization = %q", captured.auth)
	}
	if captured.project != "proj-1" {
		t.Errorf("X-PROJECT-ID = %q", captured.project)
	}
	if captured.body.TableID != "jargon" || captured.body.Stream {
		t.Errorf("payload table_id=%q stream=%v", captured.body.TableID, captured.body.Stream)
	}
	if len(captured.body.Data) != 1 || captured.body.Data[0]["input"] != "some transcript" {
		t.Errorf("payload data = %+v", captured.body.Data)
	}
}

func TestJamAIStatusClassification(t *testing.T) {
	tests := []struct {
		name       string
		status     int
		retryAfter string
		wantClass  FailureClass
		wantHint   time.Duration
	}{
		{"rate limited with hint", http.StatusTooManyRequests, "5", ClassRetryable, 5 * time.Second},
		{"rate limited without hint", http.StatusTooManyRequests, "", ClassRetryable, 0},
		{"rate limited with malformed hint", http.StatusTooManyRequests, "soon", ClassRetryable, 0},
		{"server error", http.StatusInternalServerError, "", ClassRetryable, 0},
		{"bad gateway", http.StatusBadGateway, "", ClassRetryable, 0},
		{"unauthorized", http.StatusUnauthorized, "", ClassFatal, 0},
		{"bad request", http.StatusBadRequest, "", ClassFatal, 0},
		{"not found", http.StatusNotFound, "", ClassFatal, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				if tt.retryAfter != "" {
					w.Header().Set("Retry-After", tt.retryAfter)
				}
				w.WriteHeader(tt.status)
				w.Write([]byte("error detail"))
			}))
			defer server.Close()

			provider := NewJamAIProvider(JamAIConfig{BaseURL: server.URL}, logger.NewNop())
			_, err := provider.Explain(context.Background(), "text")
			if err == nil {
				t.Fatal("expected error")
			}
			if got := classOf(err); got != tt.wantClass {
				t.Errorf("class = %v, want %v", got, tt.wantClass)
			}
			if got := retryAfterOf(err); got != tt.wantHint {
				t.Errorf("retry hint = %v, want %v", got, tt.wantHint)
			}
		})
	}
}

func TestJamAIToleratesMalformedEnvelope(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"empty rows", `{"rows":[]}`},
		{"missing Output column", `{"rows":[{"columns":{}}]}`},
		{"empty choices", `{"rows":[{"columns":{"Output":{"choices":[]}}}]}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.Write([]byte(tt.body))
			}))
			defer server.Close()

			provider := NewJamAIProvider(JamAIConfig{BaseURL: server.URL}, logger.NewNop())
			got, err := provider.Explain(context.Background(), "text")
			if err != nil {
				t.Fatalf("malformed envelope should not error: %v", err)
			}
			if got != "" {
				t.Errorf("output = %q, want empty", got)
			}
		})
	}
}

func TestJamAITransportErrorIsRetryable(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	server.Close() // connection refused from here on

	provider := NewJamAIProvider(JamAIConfig{BaseURL: server.URL}, logger.NewNop())
	_, err := provider.Explain(context.Background(), "text")
	if err == nil {
		t.Fatal("expected transport error")
	}
	if classOf(err) != ClassRetryable {
		t.Errorf("transport failure classified %v, want retryable", classOf(err))
	}
}
