package workflow

import "github.com/civicatlas/stagedesk/internal/models"

// Action is a workflow operation that moves a record through its lifecycle.
type Action string

const (
	ActionSubmit   Action = "submit_for_review"
	ActionApprove  Action = "approve"
	ActionReject   Action = "reject"
	ActionResubmit Action = "edit_and_resubmit"
)

// legalActions is the transition table of the state machine. Every mutating
// operation consults it before touching the record, so illegal transitions
// fail uniformly with InvalidState.
//
// approved is terminal here; merging into the canonical dataset happens
// outside this service. rejected re-enters the workflow only through
// edit_and_resubmit, which restarts the consensus cycle under a new author.
var legalActions = map[models.Status]map[Action]bool{
	models.StatusDraft: {
		ActionSubmit: true,
	},
	models.StatusNeedsReview: {
		ActionApprove:  true,
		ActionReject:   true,
		ActionResubmit: true,
	},
	models.StatusRejected: {
		ActionResubmit: true,
	},
	models.StatusApproved: {},
}

// ActionAllowed reports whether the action is legal from the given status.
func ActionAllowed(from models.Status, action Action) bool {
	return legalActions[from][action]
}
