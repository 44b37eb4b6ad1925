package sqlite

import (
	"database/sql"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"github.com/lexwatch/lexwatch/pkg/logger"
)

// TranscriptRecord represents one voiced chunk's transcript
type TranscriptRecord struct {
	ID        int64     `json:"id"`
	CreatedAt time.Time `json:"timestamp"`
	Content   string    `json:"text"`
	RMS       float64   `json:"rms"`
	TermCount int       `json:"term_count"`
}

// TermRecord represents one explained term parsed from a response
type TermRecord struct {
	ID           int64     `json:"id"`
	TranscriptID int64     `json:"transcript_id"`
	CreatedAt    time.Time `json:"timestamp"`
	Title        string    `json:"title"`
	Body         string    `json:"body"`
}

// Storage persists transcripts and their explained terms in SQLite
type Storage struct {
	db     *sql.DB
	logger *logger.Logger
}

// NewStorage opens (creating if necessary) the database at dbPath
func NewStorage(dbPath string, log *logger.Logger) (*Storage, error) {
	storageLogger := log.Named("sqlite")

	storageLogger.Info("Initializing SQLite storage", logger.String("path", dbPath))

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// SQLite only supports one writer at a time
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		return nil, fmt.Errorf("failed to set journal mode: %w", err)
	}
	if _, err := db.Exec("PRAGMA synchronous=NORMAL"); err != nil {
		return nil, fmt.Errorf("failed to set synchronous mode: %w", err)
	}
	if _, err := db.Exec("PRAGMA busy_timeout=5000"); err != nil {
		return nil, fmt.Errorf("failed to set busy timeout: %w", err)
	}

	storage := &Storage{db: db, logger: storageLogger}
	if err := storage.initDB(); err != nil {
		db.Close()
		return nil, err
	}

	return storage, nil
}

// initDB initializes the database tables
func (s *Storage) initDB() error {
	_, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS transcripts (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			created_at TIMESTAMP NOT NULL,
			content TEXT NOT NULL,
			rms REAL NOT NULL,
			term_count INTEGER NOT NULL DEFAULT 0
		)
	`)
	if err != nil {
		return fmt.Errorf("failed to create transcripts table: %w", err)
	}

	_, err = s.db.Exec(`
		CREATE TABLE IF NOT EXISTS terms (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			transcript_id INTEGER NOT NULL REFERENCES transcripts(id),
			created_at TIMESTAMP NOT NULL,
			title TEXT NOT NULL,
			body TEXT NOT NULL
		)
	`)
	if err != nil {
		return fmt.Errorf("failed to create terms table: %w", err)
	}

	_, err = s.db.Exec(`CREATE INDEX IF NOT EXISTS idx_transcripts_created_at ON transcripts(created_at)`)
	if err != nil {
		return fmt.Errorf("failed to create transcripts index: %w", err)
	}
	_, err = s.db.Exec(`CREATE INDEX IF NOT EXISTS idx_terms_transcript_id ON terms(transcript_id)`)
	if err != nil {
		return fmt.Errorf("failed to create terms index: %w", err)
	}

	return nil
}

// StoreTranscript stores a transcript record and returns its ID
func (s *Storage) StoreTranscript(record *TranscriptRecord) (int64, error) {
	result, err := s.db.Exec(
		`INSERT INTO transcripts (created_at, content, rms, term_count) VALUES (?, ?, ?, ?)`,
		record.CreatedAt.Format(time.RFC3339),
		record.Content,
		record.RMS,
		record.TermCount,
	)
	if err != nil {
		return 0, fmt.Errorf("failed to insert transcript: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("failed to get last insert ID: %w", err)
	}
	return id, nil
}

// StoreTerm stores one explained term linked to a transcript
func (s *Storage) StoreTerm(record *TermRecord) (int64, error) {
	result, err := s.db.Exec(
		`INSERT INTO terms (transcript_id, created_at, title, body) VALUES (?, ?, ?, ?)`,
		record.TranscriptID,
		record.CreatedAt.Format(time.RFC3339),
		record.Title,
		record.Body,
	)
	if err != nil {
		return 0, fmt.Errorf("failed to insert term: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("failed to get last insert ID: %w", err)
	}
	return id, nil
}

// UpdateTermCount records how many terms a transcript produced
func (s *Storage) UpdateTermCount(transcriptID int64, count int) error {
	_, err := s.db.Exec(`UPDATE transcripts SET term_count = ? WHERE id = ?`, count, transcriptID)
	if err != nil {
		return fmt.Errorf("failed to update term count: %w", err)
	}
	return nil
}

// GetRecentTranscripts returns the most recent transcripts, newest first
func (s *Storage) GetRecentTranscripts(limit int) ([]*TranscriptRecord, error) {
	rows, err := s.db.Query(
		`SELECT id, created_at, content, rms, term_count FROM transcripts ORDER BY created_at DESC LIMIT ?`,
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query transcripts: %w", err)
	}
	defer rows.Close()

	var records []*TranscriptRecord
	for rows.Next() {
		var record TranscriptRecord
		var createdAt string
		if err := rows.Scan(&record.ID, &createdAt, &record.Content, &record.RMS, &record.TermCount); err != nil {
			return nil, fmt.Errorf("failed to scan transcript: %w", err)
		}
		record.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
		records = append(records, &record)
	}
	return records, rows.Err()
}

// GetRecentTerms returns the most recently explained terms, newest first
func (s *Storage) GetRecentTerms(limit int) ([]*TermRecord, error) {
	rows, err := s.db.Query(
		`SELECT id, transcript_id, created_at, title, body FROM terms ORDER BY id DESC LIMIT ?`,
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query terms: %w", err)
	}
	defer rows.Close()

	var records []*TermRecord
	for rows.Next() {
		var record TermRecord
		var createdAt string
		if err := rows.Scan(&record.ID, &record.TranscriptID, &createdAt, &record.Title, &record.Body); err != nil {
			return nil, fmt.Errorf("failed to scan term: %w", err)
		}
		record.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
		records = append(records, &record)
	}
	return records, rows.Err()
}

// PruneOlderThan deletes transcripts (and their terms) older than the cutoff
func (s *Storage) PruneOlderThan(cutoff time.Time) (int64, error) {
	if _, err := s.db.Exec(
		`DELETE FROM terms WHERE transcript_id IN (SELECT id FROM transcripts WHERE created_at < ?)`,
		cutoff.Format(time.RFC3339),
	); err != nil {
		return 0, fmt.Errorf("failed to prune terms: %w", err)
	}

	result, err := s.db.Exec(`DELETE FROM transcripts WHERE created_at < ?`, cutoff.Format(time.RFC3339))
	if err != nil {
		return 0, fmt.Errorf("failed to prune transcripts: %w", err)
	}
	n, _ := result.RowsAffected()
	return n, nil
}

// Close closes the database connection
func (s *Storage) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}
