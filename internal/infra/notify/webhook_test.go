package notify

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/vietddude/salvage/internal/core/domain"
)

func TestWebhookNotifier_Delivers(t *testing.T) {
	var got domain.EscalationEntry
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Errorf("decode failed: %v", err)
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	n := NewWebhookNotifier(srv.URL, 0)
	err := n.Notify(context.Background(), domain.EscalationEntry{ID: "esc-1", JobID: "job-1", Queue: "push"})
	if err != nil {
		t.Fatalf("Notify failed: %v", err)
	}
	if got.JobID != "job-1" {
		t.Errorf("unexpected delivered entry: %+v", got)
	}
}

func TestWebhookNotifier_ErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	n := NewWebhookNotifier(srv.URL, 0)
	err := n.Notify(context.Background(), domain.EscalationEntry{ID: "esc-1"})
	if err == nil {
		t.Fatal("expected error for 500 response")
	}

	var notifErr *NotificationError
	if !errors.As(err, &notifErr) {
		t.Errorf("expected NotificationError, got %T", err)
	}
}

func TestWebhookNotifier_BreakerOpens(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	n := NewWebhookNotifier(srv.URL, 0)

	// Trip the breaker, then verify calls still fail fast with a
	// NotificationError rather than hanging.
	for i := 0; i < 6; i++ {
		n.Notify(context.Background(), domain.EscalationEntry{ID: "esc"})
	}
	err := n.Notify(context.Background(), domain.EscalationEntry{ID: "esc"})
	if err == nil {
		t.Fatal("expected error from open breaker")
	}
	var notifErr *NotificationError
	if !errors.As(err, &notifErr) {
		t.Errorf("expected NotificationError, got %T", err)
	}
}
