// Package sqlite implements the submission store on SQLite.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"github.com/formrelay/formrelay/internal/form"
	"github.com/formrelay/formrelay/internal/storage"
)

// Store is a SQLite implementation of SubmissionStore. The *sql.DB handle
// pools connections, so a single Store is shared by all concurrent requests.
type Store struct {
	db *sql.DB
}

var _ storage.SubmissionStore = (*Store)(nil)

// New opens (or creates) the database at dbPath and initializes the schema.
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if _, err := db.Exec("PRAGMA journal_mode=WAL; PRAGMA synchronous=NORMAL;"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
	}

	store := &Store{db: db}
	if err := store.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return store, nil
}

func (s *Store) initSchema() error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS submissions (
			id TEXT PRIMARY KEY,
			form_id TEXT NOT NULL,
			submitted_at TIMESTAMP NOT NULL,
			fields TEXT NOT NULL,
			attachments TEXT,
			remote_ip TEXT,
			result TEXT NOT NULL,
			recipients TEXT
		)`,
		`CREATE INDEX IF NOT EXISTS idx_submissions_form_id ON submissions(form_id, submitted_at)`,
	}

	for _, stmt := range statements {
		if _, err := s.db.Exec(stmt); err != nil {
			return err
		}
	}
	return nil
}

// Save inserts a record. The field mapping, attachment metadata, and
// recipient results are stored as JSON arrays, which preserves submission
// order on read-back.
func (s *Store) Save(ctx context.Context, rec *storage.SubmissionRecord) error {
	fieldsJSON, err := json.Marshal(rec.Fields)
	if err != nil {
		return fmt.Errorf("failed to marshal fields: %w", err)
	}
	attachmentsJSON, err := json.Marshal(rec.Attachments)
	if err != nil {
		return fmt.Errorf("failed to marshal attachments: %w", err)
	}
	recipientsJSON, err := json.Marshal(rec.Recipients)
	if err != nil {
		return fmt.Errorf("failed to marshal recipients: %w", err)
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO submissions (id, form_id, submitted_at, fields, attachments, remote_ip, result, recipients)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.ID,
		rec.FormID,
		rec.SubmittedAt.UTC().Format(time.RFC3339Nano),
		string(fieldsJSON),
		string(attachmentsJSON),
		rec.RemoteIP,
		string(rec.Result),
		string(recipientsJSON),
	)
	if err != nil {
		return fmt.Errorf("failed to insert submission: %w", err)
	}
	return nil
}

// Get retrieves a record by id.
func (s *Store) Get(ctx context.Context, id string) (*storage.SubmissionRecord, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, form_id, submitted_at, fields, attachments, remote_ip, result, recipients
		 FROM submissions WHERE id = ?`, id)

	rec, err := scanRecord(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, storage.ErrNotFound
	}
	return rec, err
}

// ListByForm returns records for a form, newest first.
func (s *Store) ListByForm(ctx context.Context, formID string, limit, offset int) ([]*storage.SubmissionRecord, error) {
	if limit <= 0 {
		limit = 50
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT id, form_id, submitted_at, fields, attachments, remote_ip, result, recipients
		 FROM submissions WHERE form_id = ? ORDER BY submitted_at DESC LIMIT ? OFFSET ?`,
		formID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to query submissions: %w", err)
	}
	defer rows.Close()

	var records []*storage.SubmissionRecord
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}

// Close closes the database connection pool.
func (s *Store) Close() error {
	return s.db.Close()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRecord(row rowScanner) (*storage.SubmissionRecord, error) {
	var (
		rec                                     storage.SubmissionRecord
		submittedAt                             string
		fieldsJSON, attachmentsJSON, recipients string
		result                                  string
	)

	if err := row.Scan(&rec.ID, &rec.FormID, &submittedAt, &fieldsJSON, &attachmentsJSON, &rec.RemoteIP, &result, &recipients); err != nil {
		return nil, err
	}

	ts, err := time.Parse(time.RFC3339Nano, submittedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to parse timestamp: %w", err)
	}
	rec.SubmittedAt = ts
	rec.Result = form.Stage(result)

	if err := json.Unmarshal([]byte(fieldsJSON), &rec.Fields); err != nil {
		return nil, fmt.Errorf("failed to unmarshal fields: %w", err)
	}
	if attachmentsJSON != "" {
		if err := json.Unmarshal([]byte(attachmentsJSON), &rec.Attachments); err != nil {
			return nil, fmt.Errorf("failed to unmarshal attachments: %w", err)
		}
	}
	if recipients != "" {
		if err := json.Unmarshal([]byte(recipients), &rec.Recipients); err != nil {
			return nil, fmt.Errorf("failed to unmarshal recipients: %w", err)
		}
	}

	return &rec, nil
}
