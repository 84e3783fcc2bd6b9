package workflow

import (
	"errors"
	"fmt"

	"github.com/civicatlas/stagedesk/internal/models"
)

// Code classifies an expected workflow outcome. These are structured results
// the client is meant to act on, not faults; store and transport failures
// propagate as plain wrapped errors instead.
type Code string

const (
	CodeNotFound            Code = "NOT_FOUND"
	CodeLockConflict        Code = "LOCK_CONFLICT"
	CodeInvalidState        Code = "INVALID_STATE"
	CodeSelfReview          Code = "SELF_REVIEW_NOT_ALLOWED"
	CodeAlreadyReviewed     Code = "ALREADY_REVIEWED"
	CodeValidation          Code = "VALIDATION_ERROR"
	CodeConcurrencyConflict Code = "CONCURRENCY_CONFLICT"
)

// Error is a coded workflow condition.
type Error struct {
	Code    Code   `json:"code"`
	Message string `json:"message"`
	// HolderID carries the current lock holder on lock conflicts.
	HolderID string `json:"holder_id,omitempty"`
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// AsError unwraps err into a workflow Error if it is one.
func AsError(err error) (*Error, bool) {
	var wfErr *Error
	if errors.As(err, &wfErr) {
		return wfErr, true
	}
	return nil, false
}

func errNotFound(id string) *Error {
	return &Error{Code: CodeNotFound, Message: fmt.Sprintf("record %q does not exist", id)}
}

func errLockConflict(holderID string) *Error {
	return &Error{
		Code:     CodeLockConflict,
		Message:  fmt.Sprintf("currently being edited by %s", holderID),
		HolderID: holderID,
	}
}

func errInvalidState(op string, status models.Status) *Error {
	return &Error{Code: CodeInvalidState, Message: fmt.Sprintf("%s is not allowed while the record is %s", op, status)}
}

func errSelfReview() *Error {
	return &Error{Code: CodeSelfReview, Message: "authors cannot review their own work"}
}

func errAlreadyReviewed(reviewerID string) *Error {
	return &Error{Code: CodeAlreadyReviewed, Message: fmt.Sprintf("%s has already reviewed this record", reviewerID)}
}

func errValidation(msg string) *Error {
	return &Error{Code: CodeValidation, Message: msg}
}

func errConcurrencyConflict(id string) *Error {
	return &Error{
		Code:    CodeConcurrencyConflict,
		Message: fmt.Sprintf("record %q was modified concurrently, retry the request", id),
	}
}
