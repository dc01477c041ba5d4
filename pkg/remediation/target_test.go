package remediation

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestWebhookTarget_Success(t *testing.T) {
	var gotKey string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotKey = r.Header.Get("Idempotency-Key")
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"ref":"tx:0xfeed"}`))
	}))
	defer srv.Close()

	target := NewWebhookTarget(srv.URL, time.Second)
	ref, err := target.Invoke(context.Background(), "freeze-access", "incident-1",
		map[string]string{"subject": "vault-7"})
	if err != nil {
		t.Fatalf("Invoke() error = %v", err)
	}
	if ref != "tx:0xfeed" {
		t.Errorf("ref = %q, want tx:0xfeed", ref)
	}
	if gotKey != "incident-1" {
		t.Errorf("Idempotency-Key = %q, want incident-1", gotKey)
	}
}

func TestWebhookTarget_ClientErrorIsPermanent(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "unknown subject", http.StatusUnprocessableEntity)
	}))
	defer srv.Close()

	target := NewWebhookTarget(srv.URL, time.Second)
	_, err := target.Invoke(context.Background(), "pause", "incident-2", nil)

	var permanent *PermanentError
	if !errors.As(err, &permanent) {
		t.Fatalf("Invoke() error = %v, want PermanentError", err)
	}
}

func TestWebhookTarget_ServerErrorIsTransient(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "overloaded", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	target := NewWebhookTarget(srv.URL, time.Second)
	_, err := target.Invoke(context.Background(), "pause", "incident-3", nil)
	if err == nil {
		t.Fatal("Invoke() accepted a 503")
	}
	var permanent *PermanentError
	if errors.As(err, &permanent) {
		t.Errorf("Invoke() classified a 503 as permanent: %v", err)
	}
}

func TestLogTarget(t *testing.T) {
	ref, err := LogTarget{}.Invoke(context.Background(), "throttle", "incident-4",
		map[string]string{"subject": "vendor-12"})
	if err != nil {
		t.Fatalf("Invoke() error = %v", err)
	}
	if ref != "log-only" {
		t.Errorf("ref = %q, want log-only", ref)
	}
}
