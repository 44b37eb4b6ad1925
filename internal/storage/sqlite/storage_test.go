package sqlite

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/lexwatch/lexwatch/pkg/logger"
)

func newTestStorage(t *testing.T) *Storage {
	t.Helper()
	storage, err := NewStorage(filepath.Join(t.TempDir(), "test.db"), logger.NewNop())
	if err != nil {
		t.Fatalf("NewStorage failed: %v", err)
	}
	t.Cleanup(func() { storage.Close() })
	return storage
}

func TestStoreAndFetchTranscripts(t *testing.T) {
	storage := newTestStorage(t)

	base := time.Date(2026, 8, 30, 12, 0, 0, 0, time.UTC)
	for i := 0; i < 3; i++ {
		_, err := storage.StoreTranscript(&TranscriptRecord{
			CreatedAt: base.Add(time.Duration(i) * time.Minute),
			Content:   "transcript",
			RMS:       750.5,
		})
		if err != nil {
			t.Fatalf("StoreTranscript failed: %v", err)
		}
	}

	records, err := storage.GetRecentTranscripts(2)
	if err != nil {
		t.Fatalf("GetRecentTranscripts failed: %v", err)
	}
	if len(records) != 2 {
		t.Fatalf("got %d records, want 2", len(records))
	}
	if !records[0].CreatedAt.After(records[1].CreatedAt) {
		t.Errorf("records not newest first: %v, %v", records[0].CreatedAt, records[1].CreatedAt)
	}
	if records[0].RMS != 750.5 {
		t.Errorf("RMS = %v, want 750.5", records[0].RMS)
	}
}

func TestStoreTermsAndTermCount(t *testing.T) {
	storage := newTestStorage(t)

	transcriptID, err := storage.StoreTranscript(&TranscriptRecord{
		CreatedAt: time.Now().UTC(),
		Content:   "we use AI and ML",
	})
	if err != nil {
		t.Fatalf("StoreTranscript failed: %v", err)
	}

	for _, title := range []string{"AI", "ML"} {
		if _, err := storage.StoreTerm(&TermRecord{
			TranscriptID: transcriptID,
			CreatedAt:    time.Now().UTC(),
			Title:        title,
			Body:         "a definition",
		}); err != nil {
			t.Fatalf("StoreTerm failed: %v", err)
		}
	}
	if err := storage.UpdateTermCount(transcriptID, 2); err != nil {
		t.Fatalf("UpdateTermCount failed: %v", err)
	}

	terms, err := storage.GetRecentTerms(10)
	if err != nil {
		t.Fatalf("GetRecentTerms failed: %v", err)
	}
	if len(terms) != 2 {
		t.Fatalf("got %d terms, want 2", len(terms))
	}
	if terms[0].Title != "ML" {
		t.Errorf("newest term = %q, want ML", terms[0].Title)
	}
	if terms[0].TranscriptID != transcriptID {
		t.Errorf("transcript link = %d, want %d", terms[0].TranscriptID, transcriptID)
	}

	transcripts, err := storage.GetRecentTranscripts(1)
	if err != nil {
		t.Fatalf("GetRecentTranscripts failed: %v", err)
	}
	if transcripts[0].TermCount != 2 {
		t.Errorf("term count = %d, want 2", transcripts[0].TermCount)
	}
}

func TestPruneOlderThan(t *testing.T) {
	storage := newTestStorage(t)

	cutoff := time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC)
	oldID, err := storage.StoreTranscript(&TranscriptRecord{
		CreatedAt: cutoff.AddDate(0, 0, -10),
		Content:   "old",
	})
	if err != nil {
		t.Fatalf("StoreTranscript failed: %v", err)
	}
	if _, err := storage.StoreTerm(&TermRecord{
		TranscriptID: oldID,
		CreatedAt:    cutoff.AddDate(0, 0, -10),
		Title:        "stale",
		Body:         "goes away with its transcript",
	}); err != nil {
		t.Fatalf("StoreTerm failed: %v", err)
	}
	if _, err := storage.StoreTranscript(&TranscriptRecord{
		CreatedAt: cutoff.AddDate(0, 0, 10),
		Content:   "recent",
	}); err != nil {
		t.Fatalf("StoreTranscript failed: %v", err)
	}

	pruned, err := storage.PruneOlderThan(cutoff)
	if err != nil {
		t.Fatalf("PruneOlderThan failed: %v", err)
	}
	if pruned != 1 {
		t.Errorf("pruned %d transcripts, want 1", pruned)
	}

	transcripts, err := storage.GetRecentTranscripts(10)
	if err != nil {
		t.Fatalf("GetRecentTranscripts failed: %v", err)
	}
	if len(transcripts) != 1 || transcripts[0].Content != "recent" {
		t.Errorf("remaining transcripts = %+v", transcripts)
	}

	terms, err := storage.GetRecentTerms(10)
	if err != nil {
		t.Fatalf("GetRecentTerms failed: %v", err)
	}
	if len(terms) != 0 {
		t.Errorf("orphaned terms remain: %+v", terms)
	}
}
