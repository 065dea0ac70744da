package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"vrpsolve/internal/config"
	"vrpsolve/internal/model"
)

const fixture = `TEST1

VEHICLE
NUMBER     CAPACITY
   3         100

CUSTOMER
CUST NO.  XCOORD.  YCOORD.  DEMAND  READY TIME  DUE DATE  SERVICE TIME

    0       0        0        0        0         1000        0
    1      10        0       30        0          200       10
    2       0       10       40        0          300       10
    3      10       10       50       20          400       10
`

// same layout with a window no vehicle can reach in time
const infeasibleFixture = `TEST2

VEHICLE
NUMBER     CAPACITY
   2         100

CUSTOMER
CUST NO.  XCOORD.  YCOORD.  DEMAND  READY TIME  DUE DATE  SERVICE TIME

    0       0        0        0        0         1000        0
    1      10        0       30        0            0        0
`

func progressFor(jobID string, gen int) model.Progress {
	return model.Progress{JobID: jobID, Method: "heuristic", Generation: gen}
}

func newTestServer(t *testing.T) *Server {
	t.Helper()
	cfg, err := config.Load("")
	if err != nil {
		t.Fatalf("config: %v", err)
	}
	cfg.DatabaseURL = ""
	cfg.Generations = 5
	cfg.PopulationSize = 10
	s, err := NewServer(cfg)
	if err != nil {
		t.Fatalf("NewServer: %v", err)
	}
	if err := s.Store.SaveDataset(context.Background(), "c101", fixture); err != nil {
		t.Fatalf("seed dataset: %v", err)
	}
	return s
}

func TestHealthReadyVersion(t *testing.T) {
	s := newTestServer(t)
	rr := httptest.NewRecorder()
	s.HealthHandler(rr, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	if rr.Code != 200 {
		t.Fatalf("health: got %d", rr.Code)
	}
	rr = httptest.NewRecorder()
	s.ReadyHandler(rr, httptest.NewRequest(http.MethodGet, "/readyz", nil))
	if rr.Code != 200 {
		t.Fatalf("ready: got %d", rr.Code)
	}
	rr = httptest.NewRecorder()
	s.VersionHandler(rr, httptest.NewRequest(http.MethodGet, "/version", nil))
	if rr.Code != 200 {
		t.Fatalf("version: got %d", rr.Code)
	}
}

func postSolve(t *testing.T, s *Server, body map[string]any) (*httptest.ResponseRecorder, model.SolveResponse) {
	t.Helper()
	b, _ := json.Marshal(body)
	rr := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/v1/solve", bytes.NewReader(b))
	req.Header.Set("Content-Type", "application/json")
	s.SolveHandler(rr, req)
	var resp model.SolveResponse
	_ = json.Unmarshal(rr.Body.Bytes(), &resp)
	return rr, resp
}

func TestSolveExact(t *testing.T) {
	s := newTestServer(t)
	rr, resp := postSolve(t, s, map[string]any{"datasetId": "c101", "method": "exact", "timeLimitSeconds": 1, "seed": 7})
	if rr.Code != 200 {
		t.Fatalf("solve: got %d body %s", rr.Code, rr.Body.String())
	}
	if resp.Status != "solved" {
		t.Fatalf("status: %s", resp.Status)
	}
	if resp.NumVehiclesUsed < 1 {
		t.Fatalf("vehicles used: %d", resp.NumVehiclesUsed)
	}
	for _, r := range resp.Routes {
		if len(r) < 2 || r[0] != 0 || r[len(r)-1] != 0 {
			t.Fatalf("route not depot-bounded: %v", r)
		}
	}
	// the run lands in history
	rr = httptest.NewRecorder()
	s.SolveRecordsHandler(rr, httptest.NewRequest(http.MethodGet, "/v1/solves?datasetId=c101", nil))
	if rr.Code != 200 {
		t.Fatalf("history: got %d", rr.Code)
	}
	var hist struct {
		Items []model.SolveRecord `json:"items"`
	}
	_ = json.Unmarshal(rr.Body.Bytes(), &hist)
	if len(hist.Items) != 1 || hist.Items[0].JobID != resp.JobID {
		t.Fatalf("history: %+v", hist.Items)
	}
}

func TestSolveHeuristic(t *testing.T) {
	s := newTestServer(t)
	rr, resp := postSolve(t, s, map[string]any{"datasetId": "c101", "method": "heuristic", "seed": 3})
	if rr.Code != 200 {
		t.Fatalf("solve: got %d body %s", rr.Code, rr.Body.String())
	}
	if resp.Status != "solved" || resp.Method != "heuristic" {
		t.Fatalf("response: %+v", resp)
	}
	seen := map[int]bool{}
	for _, r := range resp.Routes {
		for _, n := range r {
			if n != 0 {
				if seen[n] {
					t.Fatalf("customer %d visited twice", n)
				}
				seen[n] = true
			}
		}
	}
	if len(seen) != 3 {
		t.Fatalf("customers visited: %d, want 3", len(seen))
	}
	// progress snapshot is retained and marked done
	p, ok := s.Progress.Get(resp.JobID)
	if !ok || !p.Done {
		t.Fatalf("progress snapshot: %+v ok=%v", p, ok)
	}
}

func TestSolveInfeasible(t *testing.T) {
	s := newTestServer(t)
	if err := s.Store.SaveDataset(context.Background(), "tight", infeasibleFixture); err != nil {
		t.Fatal(err)
	}
	rr, resp := postSolve(t, s, map[string]any{"datasetId": "tight", "method": "exact", "timeLimitSeconds": 1})
	if rr.Code != 200 {
		t.Fatalf("solve: got %d body %s", rr.Code, rr.Body.String())
	}
	if resp.Status != "infeasible" {
		t.Fatalf("status: %s", resp.Status)
	}
	if resp.NumVehiclesUsed != 0 || resp.Objective != 0 || resp.TotalTime != 0 {
		t.Fatalf("infeasible metrics must be zero: %+v", resp)
	}
}

func TestSolveValidation(t *testing.T) {
	s := newTestServer(t)
	rr, _ := postSolve(t, s, map[string]any{"datasetId": "c101", "method": "quantum"})
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("bad method: got %d", rr.Code)
	}
	rr, _ = postSolve(t, s, map[string]any{"method": "exact"})
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("missing dataset: got %d", rr.Code)
	}
	rr, _ = postSolve(t, s, map[string]any{"datasetId": "nope", "method": "exact"})
	if rr.Code != http.StatusNotFound {
		t.Fatalf("unknown dataset: got %d", rr.Code)
	}
}

func TestDatasetsCRUD(t *testing.T) {
	s := newTestServer(t)
	// list
	rr := httptest.NewRecorder()
	s.DatasetsHandler(rr, httptest.NewRequest(http.MethodGet, "/v1/datasets", nil))
	if rr.Code != 200 {
		t.Fatalf("list: got %d", rr.Code)
	}
	// upload
	body, _ := json.Marshal(map[string]string{"name": "c102", "content": fixture})
	rr = httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/v1/datasets", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	s.DatasetsHandler(rr, req)
	if rr.Code != http.StatusCreated {
		t.Fatalf("upload: got %d body %s", rr.Code, rr.Body.String())
	}
	// info
	rr = httptest.NewRecorder()
	s.DatasetByIDHandler(rr, httptest.NewRequest(http.MethodGet, "/v1/datasets/c102", nil))
	if rr.Code != 200 {
		t.Fatalf("info: got %d", rr.Code)
	}
	var info model.DatasetInfo
	_ = json.Unmarshal(rr.Body.Bytes(), &info)
	if info.NumVehicles != 3 || info.VehicleCapacity != 100 || info.NumCustomers != 3 {
		t.Fatalf("info: %+v", info)
	}
	// raw
	rr = httptest.NewRecorder()
	s.DatasetByIDHandler(rr, httptest.NewRequest(http.MethodGet, "/v1/datasets/c102?raw=true", nil))
	if rr.Code != 200 || rr.Body.String() != fixture {
		t.Fatalf("raw: got %d", rr.Code)
	}
	// delete
	rr = httptest.NewRecorder()
	s.DatasetByIDHandler(rr, httptest.NewRequest(http.MethodDelete, "/v1/datasets/c102", nil))
	if rr.Code != http.StatusNoContent {
		t.Fatalf("delete: got %d", rr.Code)
	}
	rr = httptest.NewRecorder()
	s.DatasetByIDHandler(rr, httptest.NewRequest(http.MethodDelete, "/v1/datasets/c102", nil))
	if rr.Code != http.StatusNotFound {
		t.Fatalf("second delete: got %d", rr.Code)
	}
}

func TestDatasetUploadRejectsGarbageAndNonAdmin(t *testing.T) {
	s := newTestServer(t)
	body, _ := json.Marshal(map[string]string{"name": "bad", "content": "not a dataset"})
	rr := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/v1/datasets", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	s.DatasetsHandler(rr, req)
	if rr.Code != http.StatusUnprocessableEntity {
		t.Fatalf("garbage upload: got %d", rr.Code)
	}

	body, _ = json.Marshal(map[string]string{"name": "c103", "content": fixture})
	rr = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodPost, "/v1/datasets", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Role", "user")
	s.DatasetsHandler(rr, req)
	if rr.Code != http.StatusForbidden {
		t.Fatalf("non-admin upload: got %d", rr.Code)
	}
}

func TestSubscriptions(t *testing.T) {
	s := newTestServer(t)
	body, _ := json.Marshal(model.SubscriptionRequest{
		URL: "http://example.com/hook", Events: []string{"solve.completed"}, Secret: "s",
	})
	rr := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/v1/subscriptions", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	s.SubscriptionsHandler(rr, req)
	if rr.Code != http.StatusCreated {
		t.Fatalf("create: got %d body %s", rr.Code, rr.Body.String())
	}
	var sub model.Subscription
	_ = json.Unmarshal(rr.Body.Bytes(), &sub)

	rr = httptest.NewRecorder()
	s.SubscriptionsHandler(rr, httptest.NewRequest(http.MethodGet, "/v1/subscriptions", nil))
	if rr.Code != 200 {
		t.Fatalf("list: got %d", rr.Code)
	}

	rr = httptest.NewRecorder()
	s.SubscriptionByIDHandler(rr, httptest.NewRequest(http.MethodDelete, "/v1/subscriptions/"+sub.ID, nil))
	if rr.Code != http.StatusNoContent {
		t.Fatalf("delete: got %d", rr.Code)
	}

	// a solve with an active subscription enqueues a delivery
	body2, _ := json.Marshal(model.SubscriptionRequest{URL: "http://example.com/hook2", Events: []string{"*"}})
	rr = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodPost, "/v1/subscriptions", bytes.NewReader(body2))
	req.Header.Set("Content-Type", "application/json")
	s.SubscriptionsHandler(rr, req)
	if rr.Code != http.StatusCreated {
		t.Fatalf("create: got %d", rr.Code)
	}
	if rr2, _ := postSolve(t, s, map[string]any{"datasetId": "c101", "method": "heuristic"}); rr2.Code != 200 {
		t.Fatalf("solve: got %d", rr2.Code)
	}
	due, err := s.Store.FetchDueWebhookDeliveries(context.Background(), 10)
	if err != nil || len(due) != 1 {
		t.Fatalf("deliveries: %+v %v", due, err)
	}
	if due[0].EventType != "solve.completed" {
		t.Fatalf("event type: %s", due[0].EventType)
	}
}

func TestSolveWithClientJobIDStreamsProgress(t *testing.T) {
	s := newTestServer(t)
	jobID := "job-under-test"
	ch := s.Broker.Subscribe(jobID)
	defer s.Broker.Unsubscribe(jobID, ch)

	rr, resp := postSolve(t, s, map[string]any{"jobId": jobID, "datasetId": "c101", "method": "heuristic", "seed": 5})
	if rr.Code != 200 {
		t.Fatalf("solve: got %d", rr.Code)
	}
	if resp.JobID != jobID {
		t.Fatalf("jobId not honored: %s", resp.JobID)
	}
	sawCompleted := false
	for done := false; !done; {
		select {
		case evt := <-ch:
			if evt.Type == "solve.completed" {
				sawCompleted = true
				done = true
			}
		default:
			done = true
		}
	}
	if !sawCompleted {
		t.Fatal("no solve.completed event published")
	}
}

func TestRateLimitMiddleware(t *testing.T) {
	handler := RateLimitMiddleware(1, 1, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(200)
	}))
	req := httptest.NewRequest(http.MethodGet, "/v1/solve", nil)
	req.RemoteAddr = "10.0.0.1:1234"
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)
	if rr.Code != 200 {
		t.Fatalf("first request: got %d", rr.Code)
	}
	rr = httptest.NewRecorder()
	handler.ServeHTTP(rr, req)
	if rr.Code != http.StatusTooManyRequests {
		t.Fatalf("second request: got %d", rr.Code)
	}
	// a different client has its own bucket
	req2 := httptest.NewRequest(http.MethodGet, "/v1/solve", nil)
	req2.RemoteAddr = "10.0.0.2:1234"
	rr = httptest.NewRecorder()
	handler.ServeHTTP(rr, req2)
	if rr.Code != 200 {
		t.Fatalf("other client: got %d", rr.Code)
	}
}
