package handlers

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/civicatlas/stagedesk/internal/middleware"
	"github.com/civicatlas/stagedesk/internal/models"
	"github.com/civicatlas/stagedesk/internal/workflow"
)

// CreateRecordRequest represents the request body for creating a draft
type CreateRecordRequest struct {
	Kind    models.RecordKind `json:"kind"`
	Payload json.RawMessage   `json:"payload"`
}

// EditRecordRequest represents the request body for edit-and-resubmit
type EditRecordRequest struct {
	Payload json.RawMessage `json:"payload"`
}

// RejectRequest represents the request body for rejecting a record
type RejectRequest struct {
	Comment string `json:"comment"`
}

// RecordHandler handles staged-record HTTP requests
type RecordHandler struct {
	coordinator *workflow.Coordinator
}

// NewRecordHandler creates a new record handler
func NewRecordHandler(coordinator *workflow.Coordinator) *RecordHandler {
	return &RecordHandler{coordinator: coordinator}
}

// CreateDraft creates a new staged record in draft
// @Summary Create a draft record
// @Description Create a new staged record in draft, authored by the caller
// @Tags Records
// @Accept json
// @Produce json
// @Param record body CreateRecordRequest true "Record kind and payload"
// @Success 201 {object} models.StagedRecord
// @Failure 400 {object} ErrorResponse "Validation error"
// @Failure 401 {object} ErrorResponse "Missing identity"
// @Router /records [post]
func (h *RecordHandler) CreateDraft(w http.ResponseWriter, r *http.Request) {
	actorID, ok := middleware.ActorID(r)
	if !ok {
		JSONResponse(w, http.StatusUnauthorized, ErrorResponse{Error: "Unauthorized"})
		return
	}

	var req CreateRecordRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		JSONResponse(w, http.StatusBadRequest, ErrorResponse{Error: "Invalid request body"})
		return
	}

	rec, err := h.coordinator.CreateDraft(r.Context(), req.Kind, req.Payload, actorID)
	if err != nil {
		WorkflowErrorResponse(w, err)
		return
	}

	JSONResponse(w, http.StatusCreated, rec)
}

// GetRecord retrieves a single record
// @Summary Get a record
// @Description Get a staged record by id
// @Tags Records
// @Produce json
// @Param id path string true "Record ID"
// @Success 200 {object} models.StagedRecord
// @Failure 404 {object} ErrorResponse "Record not found"
// @Router /records/{id} [get]
func (h *RecordHandler) GetRecord(w http.ResponseWriter, r *http.Request) {
	rec, err := h.coordinator.GetRecord(r.Context(), r.PathValue("id"))
	if err != nil {
		WorkflowErrorResponse(w, err)
		return
	}
	JSONResponse(w, http.StatusOK, rec)
}

// ListRecords lists records, optionally filtered by status
// @Summary List records
// @Description List staged records, optionally filtered by status
// @Tags Records
// @Produce json
// @Param status query string false "Filter by status" Enums(draft, needs_review, approved, rejected)
// @Success 200 {array} models.StagedRecord
// @Failure 400 {object} ErrorResponse "Unknown status"
// @Router /records [get]
func (h *RecordHandler) ListRecords(w http.ResponseWriter, r *http.Request) {
	status := models.Status(r.URL.Query().Get("status"))
	records, err := h.coordinator.ListRecords(r.Context(), status)
	if err != nil {
		WorkflowErrorResponse(w, err)
		return
	}
	JSONResponse(w, http.StatusOK, records)
}

// ListReviewable lists the records the caller may review
// @Summary List reviewable records
// @Description List records in needs_review that the caller is eligible to review
// @Tags Review
// @Produce json
// @Success 200 {array} models.StagedRecord
// @Failure 401 {object} ErrorResponse "Missing identity"
// @Router /records/reviewable [get]
func (h *RecordHandler) ListReviewable(w http.ResponseWriter, r *http.Request) {
	actorID, ok := middleware.ActorID(r)
	if !ok {
		JSONResponse(w, http.StatusUnauthorized, ErrorResponse{Error: "Unauthorized"})
		return
	}

	records, err := h.coordinator.ListReviewable(r.Context(), actorID)
	if err != nil {
		WorkflowErrorResponse(w, err)
		return
	}
	JSONResponse(w, http.StatusOK, records)
}

// Submit moves a draft into the review queue
// @Summary Submit a record for review
// @Description Move a draft into needs_review; any edit lock is cleared
// @Tags Records
// @Produce json
// @Param id path string true "Record ID"
// @Success 200 {object} models.StagedRecord
// @Failure 404 {object} ErrorResponse "Record not found"
// @Failure 409 {object} ErrorResponse "Record is not a draft"
// @Router /records/{id}/submit [post]
func (h *RecordHandler) Submit(w http.ResponseWriter, r *http.Request) {
	actorID, ok := middleware.ActorID(r)
	if !ok {
		JSONResponse(w, http.StatusUnauthorized, ErrorResponse{Error: "Unauthorized"})
		return
	}

	rec, err := h.coordinator.SubmitForReview(r.Context(), r.PathValue("id"), actorID)
	if err != nil {
		WorkflowErrorResponse(w, err)
		return
	}

	slog.Info("Record submitted for review", "record_id", rec.ID, "actor_id", actorID)
	JSONResponse(w, http.StatusOK, rec)
}

// AcquireLock requests a time-boxed exclusive edit lock
// @Summary Acquire an edit lock
// @Description Acquire a TTL-bound edit lock on a record; re-acquire by the holder refreshes the TTL
// @Tags Locks
// @Produce json
// @Param id path string true "Record ID"
// @Success 200 {object} models.LockGrant
// @Failure 404 {object} ErrorResponse "Record not found"
// @Failure 409 {object} models.LockGrant "Lock held by someone else"
// @Router /records/{id}/lock [post]
func (h *RecordHandler) AcquireLock(w http.ResponseWriter, r *http.Request) {
	actorID, ok := middleware.ActorID(r)
	if !ok {
		JSONResponse(w, http.StatusUnauthorized, ErrorResponse{Error: "Unauthorized"})
		return
	}

	grant, err := h.coordinator.AcquireLock(r.Context(), r.PathValue("id"), actorID)
	if err != nil {
		// A denied lock is an expected answer; report who holds it so the
		// UI can show "being edited by X" instead of a bare error.
		if wfErr, ok := workflow.AsError(err); ok && wfErr.Code == workflow.CodeLockConflict {
			JSONResponse(w, http.StatusConflict, models.LockGrant{
				Granted:  false,
				HolderID: wfErr.HolderID,
				Message:  wfErr.Message,
			})
			return
		}
		WorkflowErrorResponse(w, err)
		return
	}

	JSONResponse(w, http.StatusOK, grant)
}

// ReleaseLock releases an edit lock early
// @Summary Release an edit lock
// @Description Release the caller's edit lock; releasing an absent lock succeeds
// @Tags Locks
// @Param id path string true "Record ID"
// @Success 204 "Lock released"
// @Failure 404 {object} ErrorResponse "Record not found"
// @Failure 409 {object} ErrorResponse "Lock held by someone else"
// @Router /records/{id}/lock [delete]
func (h *RecordHandler) ReleaseLock(w http.ResponseWriter, r *http.Request) {
	actorID, ok := middleware.ActorID(r)
	if !ok {
		JSONResponse(w, http.StatusUnauthorized, ErrorResponse{Error: "Unauthorized"})
		return
	}

	if err := h.coordinator.ReleaseLock(r.Context(), r.PathValue("id"), actorID); err != nil {
		WorkflowErrorResponse(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// Approve records the caller's approval of a record
// @Summary Approve a record
// @Description Record one approval; the record is promoted once enough distinct reviewers approve
// @Tags Review
// @Produce json
// @Param id path string true "Record ID"
// @Success 200 {object} models.ReviewOutcome
// @Failure 403 {object} ErrorResponse "Self-review not allowed"
// @Failure 404 {object} ErrorResponse "Record not found"
// @Failure 409 {object} ErrorResponse "Already reviewed or wrong state"
// @Router /records/{id}/approve [post]
func (h *RecordHandler) Approve(w http.ResponseWriter, r *http.Request) {
	actorID, ok := middleware.ActorID(r)
	if !ok {
		JSONResponse(w, http.StatusUnauthorized, ErrorResponse{Error: "Unauthorized"})
		return
	}

	outcome, err := h.coordinator.ApproveReview(r.Context(), r.PathValue("id"), actorID)
	if err != nil {
		WorkflowErrorResponse(w, err)
		return
	}

	JSONResponse(w, http.StatusOK, outcome)
}

// Reject rejects a record with a comment
// @Summary Reject a record
// @Description Move a record to rejected with the reviewer's comment
// @Tags Review
// @Accept json
// @Produce json
// @Param id path string true "Record ID"
// @Param rejection body RejectRequest true "Rejection comment"
// @Success 200 {object} models.ReviewOutcome
// @Failure 403 {object} ErrorResponse "Self-review not allowed"
// @Failure 404 {object} ErrorResponse "Record not found"
// @Failure 409 {object} ErrorResponse "Wrong state"
// @Router /records/{id}/reject [post]
func (h *RecordHandler) Reject(w http.ResponseWriter, r *http.Request) {
	actorID, ok := middleware.ActorID(r)
	if !ok {
		JSONResponse(w, http.StatusUnauthorized, ErrorResponse{Error: "Unauthorized"})
		return
	}

	var req RejectRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		JSONResponse(w, http.StatusBadRequest, ErrorResponse{Error: "Invalid request body"})
		return
	}

	outcome, err := h.coordinator.RejectReview(r.Context(), r.PathValue("id"), actorID, req.Comment)
	if err != nil {
		WorkflowErrorResponse(w, err)
		return
	}

	JSONResponse(w, http.StatusOK, outcome)
}

// Resubmit fixes a record's content and restarts the review cycle
// @Summary Edit and resubmit a record
// @Description Replace the payload, make the caller the new author, and restart consensus from zero
// @Tags Review
// @Accept json
// @Produce json
// @Param id path string true "Record ID"
// @Param edit body EditRecordRequest true "Replacement payload"
// @Success 200 {object} models.StagedRecord
// @Failure 400 {object} ErrorResponse "Validation error"
// @Failure 404 {object} ErrorResponse "Record not found"
// @Failure 409 {object} ErrorResponse "Wrong state"
// @Router /records/{id}/resubmit [post]
func (h *RecordHandler) Resubmit(w http.ResponseWriter, r *http.Request) {
	actorID, ok := middleware.ActorID(r)
	if !ok {
		JSONResponse(w, http.StatusUnauthorized, ErrorResponse{Error: "Unauthorized"})
		return
	}

	var req EditRecordRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		JSONResponse(w, http.StatusBadRequest, ErrorResponse{Error: "Invalid request body"})
		return
	}

	rec, err := h.coordinator.EditAndResubmit(r.Context(), r.PathValue("id"), actorID, req.Payload)
	if err != nil {
		WorkflowErrorResponse(w, err)
		return
	}

	slog.Info("Record resubmitted", "record_id", rec.ID, "editor_id", actorID)
	JSONResponse(w, http.StatusOK, rec)
}
