package sweepd

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func newTestServer(t *testing.T) (*httptest.Server, *SweepStore) {
	t.Helper()
	store := NewSweepStore()
	executor := NewExecutor(store, "http://127.0.0.1:1", t.TempDir())
	srv := httptest.NewServer(NewHTTPServer(store, executor).Handler())
	t.Cleanup(srv.Close)
	return srv, store
}

func postJSON(t *testing.T, url string, body any) *http.Response {
	t.Helper()
	buf, err := json.Marshal(body)
	if err != nil {
		t.Fatalf("marshal request: %v", err)
	}
	resp, err := http.Post(url, "application/json", bytes.NewReader(buf))
	if err != nil {
		t.Fatalf("POST %s: %v", url, err)
	}
	return resp
}

func decodeBody(t *testing.T, resp *http.Response, out any) {
	t.Helper()
	defer resp.Body.Close()
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		t.Fatalf("decode response: %v", err)
	}
}

func createSweep(t *testing.T, srv *httptest.Server, sweepID string) *SweepRecord {
	t.Helper()
	resp := postJSON(t, srv.URL+"/v1/sweeps", map[string]any{
		"sweep_id": sweepID,
		"sweep":    mockRequest(),
	})
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("expected 201, got %d", resp.StatusCode)
	}
	var body struct {
		Sweep *SweepRecord `json:"sweep"`
	}
	decodeBody(t, resp, &body)
	if body.Sweep == nil {
		t.Fatalf("expected sweep in response")
	}
	return body.Sweep
}

func TestHealthz(t *testing.T) {
	srv, _ := newTestServer(t)

	resp, err := http.Get(srv.URL + "/healthz")
	if err != nil {
		t.Fatalf("GET /healthz: %v", err)
	}
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	var body map[string]any
	decodeBody(t, resp, &body)
	if body["status"] != "ok" {
		t.Fatalf("expected status ok, got %v", body["status"])
	}
}

func TestCreateSweepRunsToCompletion(t *testing.T) {
	srv, store := newTestServer(t)

	created := createSweep(t, srv, "sweep-http")
	if created.Status != StatusRunning {
		t.Fatalf("expected running after create, got %v", created.Status)
	}

	final := waitForTerminal(t, store, created.ID)
	if final.Status != StatusCompleted {
		t.Fatalf("expected completed, got %v (error=%q)", final.Status, final.Error)
	}

	resp, err := http.Get(srv.URL + "/v1/sweeps/" + created.ID + "/result")
	if err != nil {
		t.Fatalf("GET result: %v", err)
	}
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200 for result, got %d", resp.StatusCode)
	}
	var body struct {
		Result struct {
			History []struct {
				QualityScore float64 `json:"quality_score"`
			} `json:"history"`
			BestIndex int `json:"best_index"`
		} `json:"result"`
	}
	decodeBody(t, resp, &body)
	if len(body.Result.History) != 3 {
		t.Fatalf("expected 3 trials, got %d", len(body.Result.History))
	}
	if body.Result.BestIndex < 1 || body.Result.BestIndex > 3 {
		t.Fatalf("unexpected best index %d", body.Result.BestIndex)
	}
}

func TestCreateSweepGeneratesID(t *testing.T) {
	srv, _ := newTestServer(t)

	resp := postJSON(t, srv.URL+"/v1/sweeps", map[string]any{"sweep": mockRequest()})
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("expected 201, got %d", resp.StatusCode)
	}
	var body struct {
		Sweep *SweepRecord `json:"sweep"`
	}
	decodeBody(t, resp, &body)
	if body.Sweep.ID == "" {
		t.Fatalf("expected generated sweep ID")
	}
}

func TestCreateSweepValidation(t *testing.T) {
	srv, _ := newTestServer(t)

	resp, err := http.Post(srv.URL+"/v1/sweeps", "application/json", strings.NewReader("{not json"))
	if err != nil {
		t.Fatalf("POST: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400 for malformed body, got %d", resp.StatusCode)
	}

	resp = postJSON(t, srv.URL+"/v1/sweeps", map[string]any{})
	resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400 for missing sweep, got %d", resp.StatusCode)
	}

	bad := mockRequest()
	bad.Min = 15
	bad.Max = 2
	resp = postJSON(t, srv.URL+"/v1/sweeps", map[string]any{"sweep": bad})
	resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400 for invalid range, got %d", resp.StatusCode)
	}
}

func TestCreateSweepDuplicateID(t *testing.T) {
	srv, store := newTestServer(t)

	created := createSweep(t, srv, "sweep-dup")
	waitForTerminal(t, store, created.ID)

	resp := postJSON(t, srv.URL+"/v1/sweeps", map[string]any{
		"sweep_id": "sweep-dup",
		"sweep":    mockRequest(),
	})
	resp.Body.Close()
	if resp.StatusCode != http.StatusConflict {
		t.Fatalf("expected 409, got %d", resp.StatusCode)
	}
}

func TestListSweepsWithStatusFilter(t *testing.T) {
	srv, store := newTestServer(t)

	created := createSweep(t, srv, "sweep-list")
	waitForTerminal(t, store, created.ID)
	if _, err := store.Create("sweep-pending", mockRequest()); err != nil {
		t.Fatalf("Create error: %v", err)
	}

	resp, err := http.Get(srv.URL + "/v1/sweeps")
	if err != nil {
		t.Fatalf("GET /v1/sweeps: %v", err)
	}
	var body struct {
		Sweeps []*SweepRecord `json:"sweeps"`
	}
	decodeBody(t, resp, &body)
	if len(body.Sweeps) != 2 {
		t.Fatalf("expected 2 sweeps, got %d", len(body.Sweeps))
	}

	resp, err = http.Get(srv.URL + "/v1/sweeps?status=pending")
	if err != nil {
		t.Fatalf("GET filtered: %v", err)
	}
	decodeBody(t, resp, &body)
	if len(body.Sweeps) != 1 || body.Sweeps[0].ID != "sweep-pending" {
		t.Fatalf("expected only sweep-pending, got %+v", body.Sweeps)
	}

	resp, err = http.Get(srv.URL + "/v1/sweeps?limit=1")
	if err != nil {
		t.Fatalf("GET limited: %v", err)
	}
	decodeBody(t, resp, &body)
	if len(body.Sweeps) != 1 {
		t.Fatalf("expected 1 sweep with limit=1, got %d", len(body.Sweeps))
	}
}

func TestGetSweepNotFound(t *testing.T) {
	srv, _ := newTestServer(t)

	resp, err := http.Get(srv.URL + "/v1/sweeps/missing")
	if err != nil {
		t.Fatalf("GET: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", resp.StatusCode)
	}
}

func TestGetResultBeforeCompletion(t *testing.T) {
	srv, store := newTestServer(t)

	if _, err := store.Create("sweep-early", mockRequest()); err != nil {
		t.Fatalf("Create error: %v", err)
	}

	resp, err := http.Get(srv.URL + "/v1/sweeps/sweep-early/result")
	if err != nil {
		t.Fatalf("GET result: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusPreconditionFailed {
		t.Fatalf("expected 412, got %d", resp.StatusCode)
	}
}

func TestCancelSweep(t *testing.T) {
	srv, store := newTestServer(t)

	if _, err := store.Create("sweep-cancel", mockRequest()); err != nil {
		t.Fatalf("Create error: %v", err)
	}

	resp := postJSON(t, srv.URL+"/v1/sweeps/sweep-cancel:cancel", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	var body struct {
		Sweep *SweepRecord `json:"sweep"`
	}
	decodeBody(t, resp, &body)
	if body.Sweep.Status != StatusCancelled {
		t.Fatalf("expected cancelled, got %v", body.Sweep.Status)
	}

	resp = postJSON(t, srv.URL+"/v1/sweeps/sweep-cancel:cancel", nil)
	resp.Body.Close()
	if resp.StatusCode != http.StatusConflict {
		t.Fatalf("expected 409 on second cancel, got %d", resp.StatusCode)
	}

	resp = postJSON(t, srv.URL+"/v1/sweeps/missing:cancel", nil)
	resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("expected 404 for unknown sweep, got %d", resp.StatusCode)
	}
}

func TestMethodNotAllowed(t *testing.T) {
	srv, store := newTestServer(t)

	if _, err := store.Create("sweep-m", mockRequest()); err != nil {
		t.Fatalf("Create error: %v", err)
	}

	req, err := http.NewRequest(http.MethodDelete, srv.URL+"/v1/sweeps/sweep-m", nil)
	if err != nil {
		t.Fatalf("build request: %v", err)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("DELETE: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusMethodNotAllowed {
		t.Fatalf("expected 405, got %d", resp.StatusCode)
	}
}
