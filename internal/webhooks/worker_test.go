package webhooks

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"vrpsolve/internal/store"
)

type recordStore struct {
	*store.Memory
	mu    sync.Mutex
	marks []MarkRec
}
type MarkRec struct {
	ID      string
	Success bool
	Code    int
	LastErr string
	Retry   bool
}

func (r *recordStore) MarkWebhookDelivery(ctx context.Context, id string, success bool, nextAttemptAt *time.Time, lastError string, responseCode int) error {
	r.mu.Lock()
	r.marks = append(r.marks, MarkRec{ID: id, Success: success, Code: responseCode, LastErr: lastError, Retry: nextAttemptAt != nil})
	r.mu.Unlock()
	return r.Memory.MarkWebhookDelivery(ctx, id, success, nextAttemptAt, lastError, responseCode)
}

func TestWorkerProcessOnce_SuccessAndSignature(t *testing.T) {
	var gotSig, gotType string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotSig = r.Header.Get("X-Signature")
		gotType = r.Header.Get("X-Event-Type")
		w.WriteHeader(200)
	}))
	defer srv.Close()

	rs := &recordStore{Memory: store.NewMemory()}
	w := &Worker{Store: rs, HTTP: srv.Client(), Stop: make(chan struct{}), MaxAttempts: 3}
	id, err := rs.Memory.EnqueueWebhook(context.Background(), "", "solve.completed", srv.URL, "secret", []byte(`{"id":"evt1"}`))
	if err != nil || id == "" {
		t.Fatalf("enqueue failed: %v", err)
	}

	w.processOnce()

	if gotSig == "" || gotType != "solve.completed" {
		t.Fatalf("missing signature/type headers: sig=%q type=%q", gotSig, gotType)
	}
	if len(rs.marks) == 0 || !rs.marks[0].Success {
		t.Fatalf("expected mark success, got: %+v", rs.marks)
	}
}

func TestWorkerProcessOnce_FailNoRetryAtMaxAttempts(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(500) }))
	defer srv.Close()
	rs := &recordStore{Memory: store.NewMemory()}
	w := &Worker{Store: rs, HTTP: srv.Client(), Stop: make(chan struct{}), MaxAttempts: 1}
	_, _ = rs.Memory.EnqueueWebhook(context.Background(), "", "solve.completed", srv.URL, "", []byte(`{}`))
	w.processOnce()
	if len(rs.marks) == 0 {
		t.Fatalf("expected mark recorded")
	}
	m := rs.marks[0]
	if m.Success || m.Retry {
		t.Fatalf("expected terminal failure, got: %+v", m)
	}
	if m.Code != 500 {
		t.Fatalf("expected response code 500, got %d", m.Code)
	}
}

func TestSignVerifyRoundTrip(t *testing.T) {
	body := []byte(`{"type":"solve.completed"}`)
	sig := SignHMAC("s3cret", body)
	if !VerifyHMAC("s3cret", body, sig) {
		t.Fatalf("signature did not verify")
	}
	if VerifyHMAC("other", body, sig) {
		t.Fatalf("signature verified with wrong secret")
	}
	if VerifyHMAC("s3cret", []byte(`{}`), sig) {
		t.Fatalf("signature verified with wrong body")
	}
	if !strings.HasPrefix(sig, "sha256=") {
		t.Fatalf("signature missing scheme prefix: %q", sig)
	}
	if VerifyHMAC("s3cret", body, strings.TrimPrefix(sig, "sha256=")) {
		t.Fatalf("bare hex signature should not verify")
	}
}
