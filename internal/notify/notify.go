// Package notify carries realtime queue events to subscribed clients.
// Delivery is at-most-once and best-effort: nothing in here may block or
// fail a queue state transition.
package notify

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"gov_queue/internal/logging"
	"gov_queue/internal/metrics"
)

type EventType string

const (
	EventJoined         EventType = "joined"
	EventNowServing     EventType = "now_serving"
	EventPositionUpdate EventType = "position_update"
	EventOfficerStatus  EventType = "officer_status"
)

// Event is what subscribers of a session receive.
type Event struct {
	Type      EventType `json:"event_type"`
	SessionID uuid.UUID `json:"session_id"`
	At        time.Time `json:"at"`

	EntryID              *uuid.UUID `json:"entry_id,omitempty"`
	// UserID is for in-process subscribers only; anonymous websocket
	// clients must not learn who is in the queue.
	UserID               *uuid.UUID `json:"-"`
	Position             int        `json:"position,omitempty"`
	DisplayToken         string     `json:"display_token,omitempty"`
	PeopleAhead          int        `json:"people_ahead,omitempty"`
	EstimatedWaitMinutes int        `json:"estimated_wait_minutes,omitempty"`
	CurrentPosition      int        `json:"current_position,omitempty"`
	SessionStatus        string     `json:"session_status,omitempty"`
	OfficerID            *uuid.UUID `json:"officer_id,omitempty"`

	Positions []PositionUpdate `json:"positions,omitempty"`
}

// PositionUpdate is one waiting entry's refreshed standing after an advance.
type PositionUpdate struct {
	EntryID              uuid.UUID `json:"entry_id"`
	UserID               uuid.UUID `json:"-"`
	Position             int       `json:"position"`
	PeopleAhead          int       `json:"people_ahead"`
	EstimatedWaitMinutes int       `json:"estimated_wait_minutes"`
}

// Publisher delivers an event for a session.
type Publisher interface {
	Publish(ctx context.Context, sessionID uuid.UUID, event Event) error
}

// Nop discards everything.
type Nop struct{}

func (Nop) Publish(context.Context, uuid.UUID, Event) error { return nil }

// Fanout publishes to every wrapped publisher and returns the first error.
type Fanout []Publisher

func (f Fanout) Publish(ctx context.Context, sessionID uuid.UUID, event Event) error {
	var first error
	for _, p := range f {
		if err := p.Publish(ctx, sessionID, event); err != nil && first == nil {
			first = err
		}
	}
	return first
}

type envelope struct {
	sessionID uuid.UUID
	event     Event
}

// Async hands events to a background worker through a bounded buffer.
// Publish never blocks: when the buffer is full the event is dropped.
type Async struct {
	next    Publisher
	queue   chan envelope
	timeout time.Duration

	closeOnce sync.Once
	done      chan struct{}
	mu        sync.RWMutex
	closed    bool
}

// NewAsync starts the delivery worker. Close stops it after draining.
func NewAsync(next Publisher, buffer int) *Async {
	if buffer <= 0 {
		buffer = 1
	}
	a := &Async{
		next:    next,
		queue:   make(chan envelope, buffer),
		timeout: 2 * time.Second,
		done:    make(chan struct{}),
	}
	go a.run()
	return a
}

func (a *Async) Publish(_ context.Context, sessionID uuid.UUID, event Event) error {
	a.mu.RLock()
	defer a.mu.RUnlock()
	if a.closed {
		metrics.NotifierEvents.WithLabelValues(string(event.Type), "dropped").Inc()
		return nil
	}
	select {
	case a.queue <- envelope{sessionID: sessionID, event: event}:
	default:
		metrics.NotifierEvents.WithLabelValues(string(event.Type), "dropped").Inc()
		logging.Warn().Str("session_id", sessionID.String()).Str("event", string(event.Type)).Msg("notifier buffer full, event dropped")
	}
	return nil
}

func (a *Async) run() {
	defer close(a.done)
	for env := range a.queue {
		// the caller's context is gone by now; each delivery gets its own deadline
		ctx, cancel := context.WithTimeout(context.Background(), a.timeout)
		err := a.next.Publish(ctx, env.sessionID, env.event)
		cancel()
		if err != nil {
			metrics.NotifierEvents.WithLabelValues(string(env.event.Type), "failed").Inc()
			logging.Warn().Err(err).Str("session_id", env.sessionID.String()).Str("event", string(env.event.Type)).Msg("realtime publish failed")
			continue
		}
		metrics.NotifierEvents.WithLabelValues(string(env.event.Type), "published").Inc()
	}
}

// Close stops accepting events and waits for queued ones to be delivered.
func (a *Async) Close() {
	a.closeOnce.Do(func() {
		a.mu.Lock()
		a.closed = true
		close(a.queue)
		a.mu.Unlock()
		<-a.done
	})
}
