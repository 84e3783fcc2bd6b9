package models

import (
	"encoding/json"
	"time"
)

// Status is the lifecycle state of a staged record.
type Status string

const (
	StatusDraft       Status = "draft"
	StatusNeedsReview Status = "needs_review"
	StatusApproved    Status = "approved"
	StatusRejected    Status = "rejected"
)

// Valid reports whether s is one of the four lifecycle states.
func (s Status) Valid() bool {
	switch s {
	case StatusDraft, StatusNeedsReview, StatusApproved, StatusRejected:
		return true
	}
	return false
}

// RecordKind identifies which kind of civic entity a staged record holds.
// The workflow engine treats the payload as opaque; the kind only selects
// which payload fields are required.
type RecordKind string

const (
	KindPolitician    RecordKind = "politician"
	KindStance        RecordKind = "stance"
	KindBuildingPhoto RecordKind = "building_photo"
)

// Valid reports whether k is a known record kind.
func (k RecordKind) Valid() bool {
	switch k {
	case KindPolitician, KindStance, KindBuildingPhoto:
		return true
	}
	return false
}

// Lock is a soft, time-boxed edit lock on a record. It signals "someone is
// editing this" to other volunteers; it is not enforced and expires after
// the configured TTL.
type Lock struct {
	HolderID   string    `json:"holder_id"`
	AcquiredAt time.Time `json:"acquired_at"`
}

// Active reports whether the lock is still live at the given instant.
func (l *Lock) Active(now time.Time, ttl time.Duration) bool {
	if l == nil {
		return false
	}
	return now.Sub(l.AcquiredAt) < ttl
}

// StagedRecord is the unit of moderation: a not-yet-canonical entity
// undergoing collaborative authoring and peer review.
type StagedRecord struct {
	ID            string          `json:"id" db:"id"`
	Kind          RecordKind      `json:"kind" db:"kind"`
	Payload       json.RawMessage `json:"payload" db:"payload"`
	AuthorID      string          `json:"author_id" db:"author_id"`
	Status        Status          `json:"status" db:"status"`
	ReviewedBy    []string        `json:"reviewed_by" db:"reviewed_by"`
	ReviewCount   int             `json:"review_count" db:"review_count"`
	RejectComment string          `json:"reject_comment,omitempty" db:"reject_comment"`
	Lock          *Lock           `json:"lock,omitempty"`
	Version       int64           `json:"version" db:"version"`
	CreatedAt     time.Time       `json:"created_at" db:"created_at"`
	UpdatedAt     time.Time       `json:"updated_at" db:"updated_at"`
}

// ReviewedByContains reports whether the given actor already reviewed this record.
func (r *StagedRecord) ReviewedByContains(actorID string) bool {
	for _, id := range r.ReviewedBy {
		if id == actorID {
			return true
		}
	}
	return false
}

// Clone returns a deep copy of the record. Stores hand out clones so callers
// can never mutate shared state outside a conditional update.
func (r *StagedRecord) Clone() *StagedRecord {
	cp := *r
	cp.Payload = append(json.RawMessage(nil), r.Payload...)
	cp.ReviewedBy = append([]string(nil), r.ReviewedBy...)
	if r.Lock != nil {
		lock := *r.Lock
		cp.Lock = &lock
	}
	return &cp
}

// LockGrant is the result of an acquire-lock attempt.
type LockGrant struct {
	Granted   bool      `json:"granted"`
	HolderID  string    `json:"holder_id"`
	ExpiresAt time.Time `json:"expires_at,omitzero"`
	Message   string    `json:"message,omitempty"`
}

// ReviewOutcome is the post-state returned by approve and reject so clients
// can render "1/2 approvals" feedback without re-fetching.
type ReviewOutcome struct {
	Status      Status `json:"status"`
	ReviewCount int    `json:"review_count"`
	Approved    bool   `json:"approved"`
}
