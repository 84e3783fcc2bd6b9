package workflow

import (
	"encoding/json"
	"fmt"

	"github.com/civicatlas/stagedesk/internal/models"
)

// requiredPayloadFields lists the top-level payload keys each record kind
// must carry. The engine is otherwise payload-agnostic.
var requiredPayloadFields = map[models.RecordKind][]string{
	models.KindPolitician:    {"name"},
	models.KindStance:        {"value"},
	models.KindBuildingPhoto: {"image_url"},
}

// validatePayload checks the payload before any mutation happens. A failure
// here means nothing was written.
func validatePayload(kind models.RecordKind, payload json.RawMessage) *Error {
	if !kind.Valid() {
		return errValidation(fmt.Sprintf("unknown record kind %q", kind))
	}
	if len(payload) == 0 {
		return errValidation("payload is required")
	}

	var fields map[string]any
	if err := json.Unmarshal(payload, &fields); err != nil {
		return errValidation("payload must be a JSON object")
	}

	for _, key := range requiredPayloadFields[kind] {
		value, ok := fields[key]
		if !ok || value == "" || value == nil {
			return errValidation(fmt.Sprintf("payload field %q is required for kind %q", key, kind))
		}
	}
	return nil
}
