package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/formrelay/formrelay/internal/form"
	"github.com/formrelay/formrelay/internal/storage"
)

func record(id, formID string, at time.Time) *storage.SubmissionRecord {
	return &storage.SubmissionRecord{
		ID:          id,
		FormID:      formID,
		SubmittedAt: at,
		Fields:      []form.Field{{Name: "name", Value: "Alice"}},
		Result:      form.StageStored,
	}
}

func TestSaveAndGet(t *testing.T) {
	store := New()
	ctx := context.Background()

	rec := record("sub-1", "contact", time.Now())
	if err := store.Save(ctx, rec); err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	got, err := store.Get(ctx, "sub-1")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if got.FormID != "contact" || len(got.Fields) != 1 {
		t.Errorf("Get() = %+v, want saved record", got)
	}
}

func TestGet_NotFound(t *testing.T) {
	store := New()

	_, err := store.Get(context.Background(), "missing")
	if !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("Get() error = %v, want ErrNotFound", err)
	}
}

func TestSaveCopiesRecord(t *testing.T) {
	store := New()
	ctx := context.Background()

	rec := record("sub-1", "contact", time.Now())
	if err := store.Save(ctx, rec); err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	// Caller mutation after Save must not leak into the store.
	rec.Fields[0].Value = "mutated"

	got, err := store.Get(ctx, "sub-1")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if got.Fields[0].Value != "Alice" {
		t.Errorf("stored field = %q, want insulation from caller mutation", got.Fields[0].Value)
	}
}

func TestListByForm_NewestFirst(t *testing.T) {
	store := New()
	ctx := context.Background()

	base := time.Now()
	store.Save(ctx, record("old", "contact", base))
	store.Save(ctx, record("new", "contact", base.Add(time.Minute)))
	store.Save(ctx, record("other-form", "feedback", base.Add(2*time.Minute)))

	records, err := store.ListByForm(ctx, "contact", 10, 0)
	if err != nil {
		t.Fatalf("ListByForm() error = %v", err)
	}
	if len(records) != 2 {
		t.Fatalf("ListByForm() returned %d records, want 2", len(records))
	}
	if records[0].ID != "new" || records[1].ID != "old" {
		t.Errorf("order = [%s %s], want newest first", records[0].ID, records[1].ID)
	}

	if n := store.Len(); n != 3 {
		t.Errorf("Len() = %d, want 3", n)
	}
}

func TestListByForm_OffsetPastEnd(t *testing.T) {
	store := New()
	store.Save(context.Background(), record("sub-1", "contact", time.Now()))

	records, err := store.ListByForm(context.Background(), "contact", 10, 5)
	if err != nil {
		t.Fatalf("ListByForm() error = %v", err)
	}
	if len(records) != 0 {
		t.Errorf("ListByForm() returned %d records, want 0", len(records))
	}
}
