package workflow

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/civicatlas/stagedesk/internal/models"
	"github.com/civicatlas/stagedesk/internal/store"
)

const (
	// DefaultLockTTL is how long an unreleased edit lock stays active.
	DefaultLockTTL = 10 * time.Minute

	// DefaultApprovalThreshold is the number of distinct reviewer approvals
	// required to promote a record to approved.
	DefaultApprovalThreshold = 2

	// casRetries bounds how often an operation re-reads and retries after
	// losing a conditional update before giving up with ConcurrencyConflict.
	casRetries = 3
)

// Config tunes the workflow engine.
type Config struct {
	LockTTL           time.Duration
	ApprovalThreshold int
}

// Coordinator is the public surface of the moderation workflow. Every
// operation is a single atomic read-modify-write against the record store;
// the store's conditional update is the only serialization point, so
// operations on different records never contend.
type Coordinator struct {
	store     store.Store
	ttl       time.Duration
	threshold int
	now       func() time.Time
}

// NewCoordinator creates a workflow coordinator over the given store.
func NewCoordinator(s store.Store, cfg Config) *Coordinator {
	ttl := cfg.LockTTL
	if ttl <= 0 {
		ttl = DefaultLockTTL
	}
	threshold := cfg.ApprovalThreshold
	if threshold <= 0 {
		threshold = DefaultApprovalThreshold
	}
	return &Coordinator{
		store:     s,
		ttl:       ttl,
		threshold: threshold,
		now:       time.Now,
	}
}

// LockTTL returns the configured lock time-to-live.
func (c *Coordinator) LockTTL() time.Duration {
	return c.ttl
}

// CreateDraft stores a new record in draft under a fresh id. The workflow
// core itself never invents records; this is the entry point the UI calls.
func (c *Coordinator) CreateDraft(ctx context.Context, kind models.RecordKind, payload json.RawMessage, authorID string) (*models.StagedRecord, error) {
	if strings.TrimSpace(authorID) == "" {
		return nil, errValidation("author id is required")
	}
	if err := validatePayload(kind, payload); err != nil {
		return nil, err
	}

	now := c.now()
	rec := &models.StagedRecord{
		ID:         uuid.NewString(),
		Kind:       kind,
		Payload:    payload,
		AuthorID:   authorID,
		Status:     models.StatusDraft,
		ReviewedBy: []string{},
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	if err := c.store.Insert(ctx, rec); err != nil {
		return nil, fmt.Errorf("create draft: %w", err)
	}

	slog.Info("Draft created", "record_id", rec.ID, "kind", rec.Kind, "author_id", authorID)
	return rec, nil
}

// SubmitForReview moves a draft into the review queue and clears any lock.
func (c *Coordinator) SubmitForReview(ctx context.Context, id, actorID string) (*models.StagedRecord, error) {
	return c.mutate(ctx, id, func(rec *models.StagedRecord) *Error {
		if !ActionAllowed(rec.Status, ActionSubmit) {
			return errInvalidState("submit for review", rec.Status)
		}
		rec.Status = models.StatusNeedsReview
		rec.Lock = nil
		return nil
	})
}

// AcquireLock grants or denies a time-boxed exclusive edit lock. Expiry is
// lazy: the decision re-evaluates the stored lock's age at read time, so a
// crashed client can never strand a record beyond the TTL.
func (c *Coordinator) AcquireLock(ctx context.Context, id, holderID string) (*models.LockGrant, error) {
	if strings.TrimSpace(holderID) == "" {
		return nil, errValidation("holder id is required")
	}

	rec, err := c.mutate(ctx, id, func(rec *models.StagedRecord) *Error {
		return acquireLock(rec, holderID, c.now(), c.ttl)
	})
	if err != nil {
		return nil, err
	}

	return &models.LockGrant{
		Granted:   true,
		HolderID:  holderID,
		ExpiresAt: rec.Lock.AcquiredAt.Add(c.ttl),
	}, nil
}

// ReleaseLock ends an exclusive edit session early. It is cooperative and
// best effort; correctness rests on TTL expiry, not on clients releasing.
func (c *Coordinator) ReleaseLock(ctx context.Context, id, holderID string) error {
	_, err := c.mutate(ctx, id, func(rec *models.StagedRecord) *Error {
		return releaseLock(rec, holderID, c.now(), c.ttl)
	})
	return err
}

// ApproveReview counts one reviewer's approval and reports the post-state.
func (c *Coordinator) ApproveReview(ctx context.Context, id, reviewerID string) (*models.ReviewOutcome, error) {
	rec, err := c.mutate(ctx, id, func(rec *models.StagedRecord) *Error {
		return applyApproval(rec, reviewerID, c.threshold)
	})
	if err != nil {
		return nil, err
	}

	approved := rec.Status == models.StatusApproved
	if approved {
		slog.Info("Record approved", "record_id", rec.ID, "review_count", rec.ReviewCount)
	}
	return &models.ReviewOutcome{
		Status:      rec.Status,
		ReviewCount: rec.ReviewCount,
		Approved:    approved,
	}, nil
}

// RejectReview moves the record to rejected with the reviewer's comment.
func (c *Coordinator) RejectReview(ctx context.Context, id, reviewerID, comment string) (*models.ReviewOutcome, error) {
	rec, err := c.mutate(ctx, id, func(rec *models.StagedRecord) *Error {
		return applyRejection(rec, reviewerID, comment)
	})
	if err != nil {
		return nil, err
	}

	slog.Info("Record rejected", "record_id", rec.ID, "reviewer_id", reviewerID)
	return &models.ReviewOutcome{
		Status:      rec.Status,
		ReviewCount: rec.ReviewCount,
	}, nil
}

// EditAndResubmit lets a reviewer who found a flaw fix the content directly
// and restart the consensus cycle as the new author, instead of bouncing a
// rejection back to the original author. The reviewer set, count, and lock
// are reset.
func (c *Coordinator) EditAndResubmit(ctx context.Context, id, editorID string, payload json.RawMessage) (*models.StagedRecord, error) {
	if strings.TrimSpace(editorID) == "" {
		return nil, errValidation("editor id is required")
	}

	return c.mutate(ctx, id, func(rec *models.StagedRecord) *Error {
		if !ActionAllowed(rec.Status, ActionResubmit) {
			return errInvalidState("edit and resubmit", rec.Status)
		}
		if err := validatePayload(rec.Kind, payload); err != nil {
			return err
		}
		rec.Payload = payload
		rec.AuthorID = editorID
		rec.Status = models.StatusNeedsReview
		rec.ReviewedBy = []string{}
		rec.ReviewCount = 0
		rec.RejectComment = ""
		rec.Lock = nil
		return nil
	})
}

// ListReviewable returns the records the given actor is eligible to review:
// in needs_review, not their own, not already reviewed by them, and not
// actively locked by someone else. This predicate is the read-side mirror of
// the approve and acquire guards.
func (c *Coordinator) ListReviewable(ctx context.Context, actorID string) ([]models.StagedRecord, error) {
	candidates, err := c.store.List(ctx, store.Filter{Status: models.StatusNeedsReview})
	if err != nil {
		return nil, fmt.Errorf("list reviewable: %w", err)
	}

	now := c.now()
	reviewable := []models.StagedRecord{}
	for _, rec := range candidates {
		if rec.AuthorID == actorID {
			continue
		}
		if rec.ReviewedByContains(actorID) {
			continue
		}
		if rec.Lock.Active(now, c.ttl) && rec.Lock.HolderID != actorID {
			continue
		}
		reviewable = append(reviewable, rec)
	}
	return reviewable, nil
}

// ListRecords returns all records, optionally filtered by status.
func (c *Coordinator) ListRecords(ctx context.Context, status models.Status) ([]models.StagedRecord, error) {
	if status != "" && !status.Valid() {
		return nil, errValidation(fmt.Sprintf("unknown status %q", status))
	}
	records, err := c.store.List(ctx, store.Filter{Status: status})
	if err != nil {
		return nil, fmt.Errorf("list records: %w", err)
	}
	return records, nil
}

// GetRecord retrieves a single record by id.
func (c *Coordinator) GetRecord(ctx context.Context, id string) (*models.StagedRecord, error) {
	rec, err := c.store.Get(ctx, id)
	if errors.Is(err, store.ErrNotFound) {
		return nil, errNotFound(id)
	}
	if err != nil {
		return nil, fmt.Errorf("get record: %w", err)
	}
	return rec, nil
}

// mutate runs one atomic read-modify-write cycle: load the record, apply the
// change, and commit through the store's conditional update. Losing the
// conditional update means another writer got in between; the record is
// re-read and the change re-applied against the fresh state. Only after the
// retry budget is exhausted does the caller see ConcurrencyConflict.
func (c *Coordinator) mutate(ctx context.Context, id string, apply func(*models.StagedRecord) *Error) (*models.StagedRecord, error) {
	for attempt := 0; attempt <= casRetries; attempt++ {
		rec, err := c.store.Get(ctx, id)
		if errors.Is(err, store.ErrNotFound) {
			return nil, errNotFound(id)
		}
		if err != nil {
			return nil, fmt.Errorf("load record: %w", err)
		}

		if wfErr := apply(rec); wfErr != nil {
			return nil, wfErr
		}
		rec.UpdatedAt = c.now()

		err = c.store.Update(ctx, rec)
		if err == nil {
			return rec, nil
		}
		if errors.Is(err, store.ErrNotFound) {
			return nil, errNotFound(id)
		}
		if !errors.Is(err, store.ErrVersionConflict) {
			return nil, fmt.Errorf("store record: %w", err)
		}
		slog.Debug("Conditional update lost a race, retrying", "record_id", id, "attempt", attempt+1)
	}
	return nil, errConcurrencyConflict(id)
}
