// Package memory implements an in-memory submission store, used by tests
// and ephemeral deployments.
package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/formrelay/formrelay/internal/storage"
)

// Store keeps submission records in memory. Safe for concurrent use.
type Store struct {
	mu      sync.RWMutex
	records map[string]*storage.SubmissionRecord
}

var _ storage.SubmissionStore = (*Store)(nil)

// New creates an empty in-memory store.
func New() *Store {
	return &Store{records: make(map[string]*storage.SubmissionRecord)}
}

// Save stores a copy of the record so later caller mutations cannot leak in.
func (s *Store) Save(_ context.Context, rec *storage.SubmissionRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records[rec.ID] = copyRecord(rec)
	return nil
}

// Get retrieves a record by id.
func (s *Store) Get(_ context.Context, id string) (*storage.SubmissionRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rec, ok := s.records[id]
	if !ok {
		return nil, storage.ErrNotFound
	}
	return copyRecord(rec), nil
}

// ListByForm returns records for a form, newest first.
func (s *Store) ListByForm(_ context.Context, formID string, limit, offset int) ([]*storage.SubmissionRecord, error) {
	if limit <= 0 {
		limit = 50
	}

	s.mu.RLock()
	var matched []*storage.SubmissionRecord
	for _, rec := range s.records {
		if rec.FormID == formID {
			matched = append(matched, rec)
		}
	}
	s.mu.RUnlock()

	sort.Slice(matched, func(i, j int) bool {
		return matched[i].SubmittedAt.After(matched[j].SubmittedAt)
	})

	if offset >= len(matched) {
		return nil, nil
	}
	matched = matched[offset:]
	if len(matched) > limit {
		matched = matched[:limit]
	}

	out := make([]*storage.SubmissionRecord, len(matched))
	for i, rec := range matched {
		out[i] = copyRecord(rec)
	}
	return out, nil
}

// Close is a no-op for the in-memory store.
func (s *Store) Close() error { return nil }

// Len returns the number of stored records. Test helper.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.records)
}

func copyRecord(rec *storage.SubmissionRecord) *storage.SubmissionRecord {
	cp := *rec
	cp.Fields = append(rec.Fields[:0:0], rec.Fields...)
	cp.Attachments = append(rec.Attachments[:0:0], rec.Attachments...)
	cp.Recipients = append(rec.Recipients[:0:0], rec.Recipients...)
	return &cp
}
