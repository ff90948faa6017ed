// Package events provides change notifications for the messaging session.
//
// The cache and conversation index publish an event only when a refresh
// carried new information; subscribers (the presentation layer) re-render
// on events instead of re-reading state on every poll tick.
package events

import (
	"sync"
)

// Type identifies what changed.
type Type string

const (
	// TypeConversations means the conversation list changed.
	TypeConversations Type = "conversations"

	// TypeThread means the message log of a counterpart changed.
	TypeThread Type = "thread"

	// TypeSyncError means a refresh failed; the UI may show a status
	// line while the loop keeps ticking.
	TypeSyncError Type = "sync_error"
)

// Event is a single change notification.
type Event struct {
	// Type identifies what changed.
	Type Type

	// CounterpartID scopes thread events to one conversation.
	CounterpartID string

	// Err carries the failure for sync error events.
	Err error
}

// Handler is a callback invoked when an event matches a subscription.
type Handler func(event Event)

// Filter defines criteria for matching events.
type Filter struct {
	// Types filters by event type (nil = all types).
	Types []Type

	// CounterpartID filters thread events to one conversation (empty = all).
	CounterpartID string
}

// Matches returns true if the event matches the filter criteria.
func (f *Filter) Matches(event Event) bool {
	if len(f.Types) > 0 {
		matched := false
		for _, t := range f.Types {
			if event.Type == t {
				matched = true
				break
			}
		}
		if !matched {
			return false
		}
	}

	if f.CounterpartID != "" && event.CounterpartID != "" && event.CounterpartID != f.CounterpartID {
		return false
	}

	return true
}

// subscription represents an active event subscription.
type subscription struct {
	id      string
	filter  Filter
	handler Handler
}

// Publisher delivers change notifications to subscribers.
type Publisher struct {
	mu            sync.RWMutex
	subscriptions map[string]*subscription
}

// NewPublisher creates an in-memory event publisher.
func NewPublisher() *Publisher {
	return &Publisher{
		subscriptions: make(map[string]*subscription),
	}
}

// Publish sends an event to all matching subscribers.
func (p *Publisher) Publish(event Event) {
	// Get matching subscriptions under read lock
	p.mu.RLock()
	var handlers []Handler
	for _, sub := range p.subscriptions {
		if sub.filter.Matches(event) {
			handlers = append(handlers, sub.handler)
		}
	}
	p.mu.RUnlock()

	// Invoke handlers outside the lock to avoid deadlocks
	for _, handler := range handlers {
		handler(event)
	}
}

// Subscribe registers a handler to receive events matching the filter.
func (p *Publisher) Subscribe(id string, filter Filter, handler Handler) error {
	if id == "" {
		return ErrInvalidSubscriptionID
	}
	if handler == nil {
		return ErrNilHandler
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if _, exists := p.subscriptions[id]; exists {
		return ErrSubscriptionExists
	}

	p.subscriptions[id] = &subscription{
		id:      id,
		filter:  filter,
		handler: handler,
	}

	return nil
}

// Unsubscribe removes a subscription by ID.
func (p *Publisher) Unsubscribe(id string) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if _, exists := p.subscriptions[id]; !exists {
		return ErrSubscriptionNotFound
	}

	delete(p.subscriptions, id)
	return nil
}

// SubscriberCount returns the number of active subscribers.
func (p *Publisher) SubscriberCount() int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return len(p.subscriptions)
}

// Close removes all subscriptions.
func (p *Publisher) Close() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.subscriptions = make(map[string]*subscription)
}

// Errors for publisher operations.
var (
	ErrInvalidSubscriptionID = &PublisherError{Message: "subscription ID is required"}
	ErrNilHandler            = &PublisherError{Message: "handler cannot be nil"}
	ErrSubscriptionExists    = &PublisherError{Message: "subscription with this ID already exists"}
	ErrSubscriptionNotFound  = &PublisherError{Message: "subscription not found"}
)

// PublisherError represents an error from publisher operations.
type PublisherError struct {
	Message string
}

func (e *PublisherError) Error() string {
	return e.Message
}
