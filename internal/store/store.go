package store

import (
	"context"
	"errors"

	"github.com/civicatlas/stagedesk/internal/models"
)

var (
	// ErrNotFound is returned when no record exists for the given id.
	// Unknown ids are a normal outcome, not a fault.
	ErrNotFound = errors.New("record not found")

	// ErrVersionConflict is returned by Update when the record was modified
	// since it was read. The caller re-reads and retries.
	ErrVersionConflict = errors.New("record version conflict")

	// ErrDuplicateID is returned by Insert when the id is already taken.
	ErrDuplicateID = errors.New("record id already exists")
)

// Filter narrows a List call. Zero values match everything.
type Filter struct {
	Status models.Status
	Kind   models.RecordKind
}

// Store is the durable record store behind the moderation workflow.
//
// Update is a compare-and-swap on the record's version: it writes only if
// the stored version equals rec.Version, and bumps the version on success.
// That conditional write is the sole serialization point for concurrent
// operations on the same record.
type Store interface {
	Get(ctx context.Context, id string) (*models.StagedRecord, error)
	Insert(ctx context.Context, rec *models.StagedRecord) error
	Update(ctx context.Context, rec *models.StagedRecord) error
	List(ctx context.Context, filter Filter) ([]models.StagedRecord, error)
}
