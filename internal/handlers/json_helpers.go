package handlers

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/civicatlas/stagedesk/internal/workflow"
)

// ErrorResponse is the JSON body for every failed request.
type ErrorResponse struct {
	Error    string `json:"error"`
	Code     string `json:"code,omitempty"`
	HolderID string `json:"holder_id,omitempty"`
}

// JSONResponse sends a JSON response with the given status code
func JSONResponse(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		slog.Error("Failed to encode response", "error", err)
	}
}

// WorkflowErrorResponse maps a workflow outcome to its HTTP status and body.
// Coded conditions keep their code so clients can branch on it; anything else
// is an internal fault and is reported as 500 without leaking details.
func WorkflowErrorResponse(w http.ResponseWriter, err error) {
	wfErr, ok := workflow.AsError(err)
	if !ok {
		slog.Error("Unexpected workflow failure", "error", err)
		JSONResponse(w, http.StatusInternalServerError, ErrorResponse{Error: "Internal server error"})
		return
	}

	JSONResponse(w, statusForCode(wfErr.Code), ErrorResponse{
		Error:    wfErr.Message,
		Code:     string(wfErr.Code),
		HolderID: wfErr.HolderID,
	})
}

func statusForCode(code workflow.Code) int {
	switch code {
	case workflow.CodeNotFound:
		return http.StatusNotFound
	case workflow.CodeValidation:
		return http.StatusBadRequest
	case workflow.CodeSelfReview:
		return http.StatusForbidden
	case workflow.CodeLockConflict,
		workflow.CodeInvalidState,
		workflow.CodeAlreadyReviewed,
		workflow.CodeConcurrencyConflict:
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}
