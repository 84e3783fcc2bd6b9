package testutil

import (
	"encoding/json"
	"time"

	"github.com/civicatlas/stagedesk/internal/models"
)

// NewDraft builds a politician draft record owned by the given author.
func NewDraft(id, authorID string) *models.StagedRecord {
	now := time.Now().UTC().Truncate(time.Microsecond)
	return &models.StagedRecord{
		ID:         id,
		Kind:       models.KindPolitician,
		Payload:    json.RawMessage(`{"name":"Jane Placeholder","party":"Independent"}`),
		AuthorID:   authorID,
		Status:     models.StatusDraft,
		ReviewedBy: []string{},
		CreatedAt:  now,
		UpdatedAt:  now,
	}
}

// NewReviewable builds a record already in needs_review.
func NewReviewable(id, authorID string) *models.StagedRecord {
	rec := NewDraft(id, authorID)
	rec.Status = models.StatusNeedsReview
	return rec
}
