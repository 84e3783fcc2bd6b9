package store

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/civicatlas/stagedesk/internal/models"
	"github.com/civicatlas/stagedesk/internal/testutil"
)

func TestMemStoreInsertAndGet(t *testing.T) {
	s := NewMemStore()
	ctx := context.Background()

	rec := testutil.NewDraft("rec-1", "alice")
	if err := s.Insert(ctx, rec); err != nil {
		t.Fatalf("Insert failed: %v", err)
	}
	if rec.Version != 1 {
		t.Errorf("Insert should set version 1, got %d", rec.Version)
	}

	got, err := s.Get(ctx, "rec-1")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if got.AuthorID != "alice" {
		t.Errorf("Expected author alice, got %s", got.AuthorID)
	}

	if err := s.Insert(ctx, testutil.NewDraft("rec-1", "bob")); !errors.Is(err, ErrDuplicateID) {
		t.Errorf("Expected ErrDuplicateID, got %v", err)
	}

	if _, err := s.Get(ctx, "missing"); !errors.Is(err, ErrNotFound) {
		t.Errorf("Expected ErrNotFound, got %v", err)
	}
}

func TestMemStoreConditionalUpdate(t *testing.T) {
	s := NewMemStore()
	ctx := context.Background()

	if err := s.Insert(ctx, testutil.NewDraft("rec-1", "alice")); err != nil {
		t.Fatalf("Insert failed: %v", err)
	}

	// Two readers load the same version
	first, _ := s.Get(ctx, "rec-1")
	second, _ := s.Get(ctx, "rec-1")

	first.ReviewCount = 1
	if err := s.Update(ctx, first); err != nil {
		t.Fatalf("First update failed: %v", err)
	}
	if first.Version != 2 {
		t.Errorf("Update should bump the caller's version, got %d", first.Version)
	}

	// The second writer's version is now stale
	second.ReviewCount = 7
	if err := s.Update(ctx, second); !errors.Is(err, ErrVersionConflict) {
		t.Errorf("Expected ErrVersionConflict, got %v", err)
	}

	got, _ := s.Get(ctx, "rec-1")
	if got.ReviewCount != 1 {
		t.Errorf("Lost write must not be applied, got count %d", got.ReviewCount)
	}

	missing := testutil.NewDraft("ghost", "alice")
	missing.Version = 1
	if err := s.Update(ctx, missing); !errors.Is(err, ErrNotFound) {
		t.Errorf("Expected ErrNotFound, got %v", err)
	}
}

func TestMemStoreClonesRecords(t *testing.T) {
	s := NewMemStore()
	ctx := context.Background()

	if err := s.Insert(ctx, testutil.NewDraft("rec-1", "alice")); err != nil {
		t.Fatalf("Insert failed: %v", err)
	}

	got, _ := s.Get(ctx, "rec-1")
	got.AuthorID = "mallory"
	got.ReviewedBy = append(got.ReviewedBy, "mallory")

	fresh, _ := s.Get(ctx, "rec-1")
	if fresh.AuthorID != "alice" || len(fresh.ReviewedBy) != 0 {
		t.Error("Mutating a returned record must not affect stored state")
	}
}

func TestMemStoreList(t *testing.T) {
	s := NewMemStore()
	ctx := context.Background()

	draft := testutil.NewDraft("rec-1", "alice")
	reviewable := testutil.NewReviewable("rec-2", "bob")
	if err := s.Insert(ctx, draft); err != nil {
		t.Fatalf("Insert failed: %v", err)
	}
	if err := s.Insert(ctx, reviewable); err != nil {
		t.Fatalf("Insert failed: %v", err)
	}

	records, err := s.List(ctx, Filter{Status: reviewable.Status})
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(records) != 1 || records[0].ID != "rec-2" {
		t.Errorf("Expected only rec-2, got %d records", len(records))
	}

	records, err = s.List(ctx, Filter{})
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(records) != 2 {
		t.Errorf("Expected 2 records, got %d", len(records))
	}
}

func TestMemStoreListOrdering(t *testing.T) {
	s := NewMemStore()
	ctx := context.Background()

	base := time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC)

	oldest := testutil.NewDraft("rec-c", "alice")
	oldest.CreatedAt = base
	middle := testutil.NewDraft("rec-a", "alice")
	middle.CreatedAt = base.Add(time.Minute)
	tieLow := testutil.NewDraft("rec-b", "alice")
	tieLow.CreatedAt = base.Add(time.Minute)

	// Insert out of order; List must come back oldest first, id as tiebreak
	for _, rec := range []*models.StagedRecord{tieLow, oldest, middle} {
		if err := s.Insert(ctx, rec); err != nil {
			t.Fatalf("Insert failed: %v", err)
		}
	}

	records, err := s.List(ctx, Filter{})
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}

	want := []string{"rec-c", "rec-a", "rec-b"}
	if len(records) != len(want) {
		t.Fatalf("Expected %d records, got %d", len(want), len(records))
	}
	for i, id := range want {
		if records[i].ID != id {
			t.Errorf("Position %d: expected %s, got %s", i, id, records[i].ID)
		}
	}
}
