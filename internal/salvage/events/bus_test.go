package events

import (
	"sync"
	"testing"

	"github.com/vietddude/salvage/internal/core/domain"
)

func TestBus_PublishSubscribe(t *testing.T) {
	b := NewBus()

	var mu sync.Mutex
	var got []string
	b.Subscribe(domain.EventRetried, func(e domain.Event) {
		mu.Lock()
		defer mu.Unlock()
		got = append(got, e.JobID)
	})

	b.Publish(domain.Event{Topic: domain.EventRetried, JobID: "job-1"})
	b.Publish(domain.Event{Topic: domain.EventDiscarded, JobID: "job-2"})

	mu.Lock()
	defer mu.Unlock()
	if len(got) != 1 || got[0] != "job-1" {
		t.Errorf("expected [job-1], got %v", got)
	}
}

func TestBus_WildcardSubscriber(t *testing.T) {
	b := NewBus()

	count := 0
	b.Subscribe("", func(e domain.Event) { count++ })

	b.Publish(domain.Event{Topic: domain.EventReceived, JobID: "a"})
	b.Publish(domain.Event{Topic: domain.EventEscalated, JobID: "b"})

	if count != 2 {
		t.Errorf("expected 2 deliveries, got %d", count)
	}
}

func TestBus_PanicIsolated(t *testing.T) {
	b := NewBus()

	b.Subscribe(domain.EventReceived, func(e domain.Event) { panic("boom") })
	delivered := false
	b.Subscribe(domain.EventReceived, func(e domain.Event) { delivered = true })

	b.Publish(domain.Event{Topic: domain.EventReceived, JobID: "a"})

	if !delivered {
		t.Error("panicking handler blocked delivery to later handlers")
	}
}
