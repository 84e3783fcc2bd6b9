package handlers

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/civicatlas/stagedesk/internal/middleware"
	"github.com/civicatlas/stagedesk/internal/models"
	"github.com/civicatlas/stagedesk/internal/store"
	"github.com/civicatlas/stagedesk/internal/workflow"
)

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()

	coordinator := workflow.NewCoordinator(store.NewMemStore(), workflow.Config{})
	handler := NewRecordHandler(coordinator)
	identityMw := middleware.NewIdentityMiddleware("")

	mux := http.NewServeMux()
	mux.Handle("POST /api/v1/records", identityMw.Resolve(http.HandlerFunc(handler.CreateDraft)))
	mux.Handle("GET /api/v1/records", identityMw.Resolve(http.HandlerFunc(handler.ListRecords)))
	mux.Handle("GET /api/v1/records/reviewable", identityMw.Resolve(http.HandlerFunc(handler.ListReviewable)))
	mux.Handle("GET /api/v1/records/{id}", identityMw.Resolve(http.HandlerFunc(handler.GetRecord)))
	mux.Handle("POST /api/v1/records/{id}/submit", identityMw.Resolve(http.HandlerFunc(handler.Submit)))
	mux.Handle("POST /api/v1/records/{id}/lock", identityMw.Resolve(http.HandlerFunc(handler.AcquireLock)))
	mux.Handle("DELETE /api/v1/records/{id}/lock", identityMw.Resolve(http.HandlerFunc(handler.ReleaseLock)))
	mux.Handle("POST /api/v1/records/{id}/approve", identityMw.Resolve(http.HandlerFunc(handler.Approve)))
	mux.Handle("POST /api/v1/records/{id}/reject", identityMw.Resolve(http.HandlerFunc(handler.Reject)))
	mux.Handle("POST /api/v1/records/{id}/resubmit", identityMw.Resolve(http.HandlerFunc(handler.Resubmit)))

	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)
	return server
}

func doRequest(t *testing.T, server *httptest.Server, method, path, actor string, body any) (*http.Response, []byte) {
	t.Helper()

	var reader *bytes.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("Failed to marshal body: %v", err)
		}
		reader = bytes.NewReader(data)
	} else {
		reader = bytes.NewReader(nil)
	}

	req, err := http.NewRequest(method, server.URL+path, reader)
	if err != nil {
		t.Fatalf("Failed to build request: %v", err)
	}
	if actor != "" {
		req.Header.Set("X-Actor-Id", actor)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("Request failed: %v", err)
	}
	defer resp.Body.Close()

	var buf bytes.Buffer
	if _, err := buf.ReadFrom(resp.Body); err != nil {
		t.Fatalf("Failed to read response body: %v", err)
	}
	return resp, buf.Bytes()
}

func createRecord(t *testing.T, server *httptest.Server, actor string) models.StagedRecord {
	t.Helper()
	resp, body := doRequest(t, server, http.MethodPost, "/api/v1/records", actor, CreateRecordRequest{
		Kind:    models.KindPolitician,
		Payload: json.RawMessage(`{"name":"Ada Example"}`),
	})
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("Create returned %d: %s", resp.StatusCode, body)
	}
	var rec models.StagedRecord
	if err := json.Unmarshal(body, &rec); err != nil {
		t.Fatalf("Failed to decode record: %v", err)
	}
	return rec
}

func submitRecord(t *testing.T, server *httptest.Server, id, actor string) {
	t.Helper()
	resp, body := doRequest(t, server, http.MethodPost, "/api/v1/records/"+id+"/submit", actor, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("Submit returned %d: %s", resp.StatusCode, body)
	}
}

func TestCreateRequiresIdentity(t *testing.T) {
	server := newTestServer(t)

	resp, _ := doRequest(t, server, http.MethodPost, "/api/v1/records", "", CreateRecordRequest{
		Kind:    models.KindPolitician,
		Payload: json.RawMessage(`{"name":"Ada Example"}`),
	})
	if resp.StatusCode != http.StatusUnauthorized {
		t.Errorf("Expected 401 without identity, got %d", resp.StatusCode)
	}
}

func TestCreateValidationError(t *testing.T) {
	server := newTestServer(t)

	resp, body := doRequest(t, server, http.MethodPost, "/api/v1/records", "alice", CreateRecordRequest{
		Kind:    models.KindPolitician,
		Payload: json.RawMessage(`{"party":"Green"}`),
	})
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("Expected 400, got %d", resp.StatusCode)
	}

	var errResp ErrorResponse
	if err := json.Unmarshal(body, &errResp); err != nil {
		t.Fatalf("Failed to decode error: %v", err)
	}
	if errResp.Code != string(workflow.CodeValidation) {
		t.Errorf("Expected VALIDATION_ERROR code, got %q", errResp.Code)
	}
}

func TestGetRecordNotFound(t *testing.T) {
	server := newTestServer(t)

	resp, body := doRequest(t, server, http.MethodGet, "/api/v1/records/missing", "alice", nil)
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("Expected 404, got %d: %s", resp.StatusCode, body)
	}
}

func TestApprovalFlow(t *testing.T) {
	server := newTestServer(t)

	rec := createRecord(t, server, "alice")
	submitRecord(t, server, rec.ID, "alice")

	// Self-review is forbidden
	resp, _ := doRequest(t, server, http.MethodPost, "/api/v1/records/"+rec.ID+"/approve", "alice", nil)
	if resp.StatusCode != http.StatusForbidden {
		t.Errorf("Expected 403 for self-review, got %d", resp.StatusCode)
	}

	resp, body := doRequest(t, server, http.MethodPost, "/api/v1/records/"+rec.ID+"/approve", "bob", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("First approval returned %d: %s", resp.StatusCode, body)
	}
	var outcome models.ReviewOutcome
	if err := json.Unmarshal(body, &outcome); err != nil {
		t.Fatalf("Failed to decode outcome: %v", err)
	}
	if outcome.Approved || outcome.ReviewCount != 1 {
		t.Errorf("Expected 1/2 approvals, got %+v", outcome)
	}

	// Double approval by the same reviewer conflicts
	resp, _ = doRequest(t, server, http.MethodPost, "/api/v1/records/"+rec.ID+"/approve", "bob", nil)
	if resp.StatusCode != http.StatusConflict {
		t.Errorf("Expected 409 for double review, got %d", resp.StatusCode)
	}

	resp, body = doRequest(t, server, http.MethodPost, "/api/v1/records/"+rec.ID+"/approve", "carol", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("Second approval returned %d: %s", resp.StatusCode, body)
	}
	if err := json.Unmarshal(body, &outcome); err != nil {
		t.Fatalf("Failed to decode outcome: %v", err)
	}
	if !outcome.Approved || outcome.Status != models.StatusApproved {
		t.Errorf("Expected promotion to approved, got %+v", outcome)
	}
}

func TestLockLifecycle(t *testing.T) {
	server := newTestServer(t)

	rec := createRecord(t, server, "alice")
	submitRecord(t, server, rec.ID, "alice")

	resp, body := doRequest(t, server, http.MethodPost, "/api/v1/records/"+rec.ID+"/lock", "bob", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("AcquireLock returned %d: %s", resp.StatusCode, body)
	}
	var grant models.LockGrant
	if err := json.Unmarshal(body, &grant); err != nil {
		t.Fatalf("Failed to decode grant: %v", err)
	}
	if !grant.Granted || grant.HolderID != "bob" {
		t.Errorf("Expected grant for bob, got %+v", grant)
	}

	// A competing acquire is denied and names the holder
	resp, body = doRequest(t, server, http.MethodPost, "/api/v1/records/"+rec.ID+"/lock", "carol", nil)
	if resp.StatusCode != http.StatusConflict {
		t.Fatalf("Expected 409 for held lock, got %d", resp.StatusCode)
	}
	if err := json.Unmarshal(body, &grant); err != nil {
		t.Fatalf("Failed to decode denial: %v", err)
	}
	if grant.Granted || grant.HolderID != "bob" {
		t.Errorf("Denial should name bob as holder, got %+v", grant)
	}

	// Release by a non-holder is refused
	resp, _ = doRequest(t, server, http.MethodDelete, "/api/v1/records/"+rec.ID+"/lock", "carol", nil)
	if resp.StatusCode != http.StatusConflict {
		t.Errorf("Expected 409 for foreign release, got %d", resp.StatusCode)
	}

	resp, _ = doRequest(t, server, http.MethodDelete, "/api/v1/records/"+rec.ID+"/lock", "bob", nil)
	if resp.StatusCode != http.StatusNoContent {
		t.Errorf("Expected 204 on release, got %d", resp.StatusCode)
	}
}

func TestRejectAndResubmit(t *testing.T) {
	server := newTestServer(t)

	rec := createRecord(t, server, "alice")
	submitRecord(t, server, rec.ID, "alice")

	resp, body := doRequest(t, server, http.MethodPost, "/api/v1/records/"+rec.ID+"/reject", "bob",
		RejectRequest{Comment: "wrong district"})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("Reject returned %d: %s", resp.StatusCode, body)
	}

	resp, body = doRequest(t, server, http.MethodPost, "/api/v1/records/"+rec.ID+"/resubmit", "carol",
		EditRecordRequest{Payload: json.RawMessage(`{"name":"Ada Example","district":"7"}`)})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("Resubmit returned %d: %s", resp.StatusCode, body)
	}

	var updated models.StagedRecord
	if err := json.Unmarshal(body, &updated); err != nil {
		t.Fatalf("Failed to decode record: %v", err)
	}
	if updated.Status != models.StatusNeedsReview || updated.AuthorID != "carol" {
		t.Errorf("Expected carol's resubmitted record in needs_review, got %+v", updated)
	}
	if updated.ReviewCount != 0 {
		t.Errorf("Resubmit should reset the review count, got %d", updated.ReviewCount)
	}
}

func TestListEndpoints(t *testing.T) {
	server := newTestServer(t)

	rec := createRecord(t, server, "alice")
	submitRecord(t, server, rec.ID, "alice")
	createRecord(t, server, "bob")

	resp, body := doRequest(t, server, http.MethodGet, "/api/v1/records?status=draft", "alice", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("List returned %d: %s", resp.StatusCode, body)
	}
	var records []models.StagedRecord
	if err := json.Unmarshal(body, &records); err != nil {
		t.Fatalf("Failed to decode records: %v", err)
	}
	if len(records) != 1 || records[0].Status != models.StatusDraft {
		t.Errorf("Expected one draft, got %d records", len(records))
	}

	resp, _ = doRequest(t, server, http.MethodGet, "/api/v1/records?status=bogus", "alice", nil)
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("Expected 400 for unknown status, got %d", resp.StatusCode)
	}

	// Reviewable excludes own and drafts
	resp, body = doRequest(t, server, http.MethodGet, "/api/v1/records/reviewable", "alice", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("ListReviewable returned %d: %s", resp.StatusCode, body)
	}
	if err := json.Unmarshal(body, &records); err != nil {
		t.Fatalf("Failed to decode records: %v", err)
	}
	if len(records) != 0 {
		t.Errorf("Alice should have nothing to review, got %d records", len(records))
	}

	resp, body = doRequest(t, server, http.MethodGet, "/api/v1/records/reviewable", "bob", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("ListReviewable returned %d: %s", resp.StatusCode, body)
	}
	if err := json.Unmarshal(body, &records); err != nil {
		t.Fatalf("Failed to decode records: %v", err)
	}
	if len(records) != 1 || records[0].ID != rec.ID {
		t.Errorf("Bob should see alice's submitted record, got %d records", len(records))
	}
}
