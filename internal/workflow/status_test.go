package workflow

import (
	"testing"

	"github.com/civicatlas/stagedesk/internal/models"
)

func TestActionAllowed(t *testing.T) {
	tests := []struct {
		status  models.Status
		action  Action
		allowed bool
	}{
		{models.StatusDraft, ActionSubmit, true},
		{models.StatusDraft, ActionApprove, false},
		{models.StatusDraft, ActionReject, false},
		{models.StatusDraft, ActionResubmit, false},
		{models.StatusNeedsReview, ActionSubmit, false},
		{models.StatusNeedsReview, ActionApprove, true},
		{models.StatusNeedsReview, ActionReject, true},
		{models.StatusNeedsReview, ActionResubmit, true},
		{models.StatusRejected, ActionResubmit, true},
		{models.StatusRejected, ActionApprove, false},
		{models.StatusRejected, ActionSubmit, false},
		{models.StatusApproved, ActionSubmit, false},
		{models.StatusApproved, ActionApprove, false},
		{models.StatusApproved, ActionReject, false},
		{models.StatusApproved, ActionResubmit, false},
	}

	for _, tt := range tests {
		if got := ActionAllowed(tt.status, tt.action); got != tt.allowed {
			t.Errorf("ActionAllowed(%s, %s) = %v, want %v", tt.status, tt.action, got, tt.allowed)
		}
	}
}

func TestActionAllowedUnknownStatus(t *testing.T) {
	if ActionAllowed("archived", ActionSubmit) {
		t.Error("Unknown statuses must allow nothing")
	}
}
