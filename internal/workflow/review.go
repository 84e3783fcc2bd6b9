package workflow

import (
	"github.com/civicatlas/stagedesk/internal/models"
)

// applyApproval records one reviewer's approval on the record. Preconditions:
// the record is in needs_review, the reviewer is not the author, and the
// reviewer has not approved before. Reaching the threshold promotes the
// record to approved. The reviewer's lock is cleared either way, since a
// review action ends the exclusive session.
//
// The identity guards run before the state guard: a reviewer who already
// approved, or the author, gets the same answer whether the record has since
// been promoted or not. Only a reviewer with no stake in the record sees
// InvalidState on a non-reviewable record.
func applyApproval(rec *models.StagedRecord, reviewerID string, threshold int) *Error {
	if reviewerID == rec.AuthorID {
		return errSelfReview()
	}
	if rec.ReviewedByContains(reviewerID) {
		return errAlreadyReviewed(reviewerID)
	}
	if !ActionAllowed(rec.Status, ActionApprove) {
		return errInvalidState("approve", rec.Status)
	}

	rec.ReviewedBy = append(rec.ReviewedBy, reviewerID)
	rec.ReviewCount = len(rec.ReviewedBy)
	if rec.ReviewCount >= threshold {
		rec.Status = models.StatusApproved
	}
	rec.Lock = nil
	return nil
}

// applyRejection moves the record to rejected and stores the reviewer's
// comment. The reviewer set and count are left untouched; a rejection does
// not consume an approval slot.
func applyRejection(rec *models.StagedRecord, reviewerID, comment string) *Error {
	if !ActionAllowed(rec.Status, ActionReject) {
		return errInvalidState("reject", rec.Status)
	}
	if reviewerID == rec.AuthorID {
		return errSelfReview()
	}

	rec.Status = models.StatusRejected
	rec.RejectComment = comment
	rec.Lock = nil
	return nil
}
