package api

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestWriteProblemTypes(t *testing.T) {
	cases := []struct {
		status int
		want   string
	}{
		{http.StatusBadRequest, "/problems/invalid-request"},
		{http.StatusNotFound, "/problems/not-found"},
		{http.StatusUnprocessableEntity, "/problems/unparsable-dataset"},
		{http.StatusTooManyRequests, "/problems/rate-limited"},
		{http.StatusInternalServerError, "/problems/internal"},
	}
	for _, tc := range cases {
		rec := httptest.NewRecorder()
		writeProblem(rec, tc.status, "title", "detail", "/v1/solve")
		if rec.Code != tc.status {
			t.Fatalf("status %d: got code %d", tc.status, rec.Code)
		}
		if ct := rec.Header().Get("Content-Type"); ct != "application/json" {
			t.Fatalf("status %d: content type %q", tc.status, ct)
		}
		var p Problem
		if err := json.Unmarshal(rec.Body.Bytes(), &p); err != nil {
			t.Fatalf("status %d: decode: %v", tc.status, err)
		}
		if p.Type != tc.want {
			t.Fatalf("status %d: type %q, want %q", tc.status, p.Type, tc.want)
		}
		if p.Status != tc.status || p.Title != "title" || p.Instance != "/v1/solve" {
			t.Fatalf("status %d: unexpected body %+v", tc.status, p)
		}
	}
}
