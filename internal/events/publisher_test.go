package events

import (
	"errors"
	"sync"
	"sync/atomic"
	"testing"
)

func TestFilter_Matches(t *testing.T) {
	tests := []struct {
		name   string
		filter Filter
		event  Event
		want   bool
	}{
		{
			name:   "empty filter matches any event",
			filter: Filter{},
			event:  Event{Type: TypeConversations},
			want:   true,
		},
		{
			name:   "type filter matches",
			filter: Filter{Types: []Type{TypeThread}},
			event:  Event{Type: TypeThread, CounterpartID: "u-2"},
			want:   true,
		},
		{
			name:   "type filter rejects non-matching",
			filter: Filter{Types: []Type{TypeThread}},
			event:  Event{Type: TypeConversations},
			want:   false,
		},
		{
			name:   "multiple types - matches any",
			filter: Filter{Types: []Type{TypeConversations, TypeSyncError}},
			event:  Event{Type: TypeSyncError, Err: errors.New("boom")},
			want:   true,
		},
		{
			name:   "counterpart filter matches",
			filter: Filter{CounterpartID: "u-2"},
			event:  Event{Type: TypeThread, CounterpartID: "u-2"},
			want:   true,
		},
		{
			name:   "counterpart filter rejects other conversations",
			filter: Filter{CounterpartID: "u-2"},
			event:  Event{Type: TypeThread, CounterpartID: "u-3"},
			want:   false,
		},
		{
			name:   "counterpart filter passes unscoped events",
			filter: Filter{CounterpartID: "u-2"},
			event:  Event{Type: TypeConversations},
			want:   true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.filter.Matches(tt.event); got != tt.want {
				t.Errorf("Matches() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestPublisher_PublishAndSubscribe(t *testing.T) {
	p := NewPublisher()

	var received atomic.Int64
	err := p.Subscribe("view", Filter{Types: []Type{TypeThread}}, func(event Event) {
		received.Add(1)
	})
	if err != nil {
		t.Fatalf("Subscribe failed: %v", err)
	}

	p.Publish(Event{Type: TypeThread, CounterpartID: "u-2"})
	p.Publish(Event{Type: TypeConversations})

	if got := received.Load(); got != 1 {
		t.Errorf("expected 1 delivered event, got %d", got)
	}
}

func TestPublisher_SubscribeValidation(t *testing.T) {
	p := NewPublisher()

	if err := p.Subscribe("", Filter{}, func(Event) {}); err != ErrInvalidSubscriptionID {
		t.Errorf("expected ErrInvalidSubscriptionID, got %v", err)
	}
	if err := p.Subscribe("x", Filter{}, nil); err != ErrNilHandler {
		t.Errorf("expected ErrNilHandler, got %v", err)
	}

	if err := p.Subscribe("x", Filter{}, func(Event) {}); err != nil {
		t.Fatalf("Subscribe failed: %v", err)
	}
	if err := p.Subscribe("x", Filter{}, func(Event) {}); err != ErrSubscriptionExists {
		t.Errorf("expected ErrSubscriptionExists, got %v", err)
	}
}

func TestPublisher_Unsubscribe(t *testing.T) {
	p := NewPublisher()

	if err := p.Unsubscribe("missing"); err != ErrSubscriptionNotFound {
		t.Errorf("expected ErrSubscriptionNotFound, got %v", err)
	}

	var received atomic.Int64
	if err := p.Subscribe("view", Filter{}, func(Event) { received.Add(1) }); err != nil {
		t.Fatalf("Subscribe failed: %v", err)
	}

	if err := p.Unsubscribe("view"); err != nil {
		t.Fatalf("Unsubscribe failed: %v", err)
	}

	p.Publish(Event{Type: TypeConversations})
	if got := received.Load(); got != 0 {
		t.Errorf("expected 0 delivered events after unsubscribe, got %d", got)
	}

	if p.SubscriberCount() != 0 {
		t.Errorf("expected 0 subscribers, got %d", p.SubscriberCount())
	}
}

func TestPublisher_ConcurrentPublish(t *testing.T) {
	p := NewPublisher()

	var received atomic.Int64
	if err := p.Subscribe("view", Filter{}, func(Event) { received.Add(1) }); err != nil {
		t.Fatalf("Subscribe failed: %v", err)
	}

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			p.Publish(Event{Type: TypeConversations})
		}()
	}
	wg.Wait()

	if got := received.Load(); got != 10 {
		t.Errorf("expected 10 delivered events, got %d", got)
	}
}
