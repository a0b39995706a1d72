// Package queue is the same-day queue engine: admission, advancement,
// entry state changes and the citizen status view. It is the only writer
// of sessions and entries; every mutation runs under the session's lock
// (Store.InSession), so joins and advances on one session serialize while
// different sessions proceed in parallel.
package queue

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"gov_queue/internal/logging"
	"gov_queue/internal/metrics"
	"gov_queue/internal/models"
	"gov_queue/internal/notify"
)

// Config holds engine tunables.
type Config struct {
	DefaultCapacity       int
	DefaultServiceMinutes float64
	OperationTimeout      time.Duration
	Location              *time.Location
	DefaultPageSize       int
	MaxPageSize           int
}

func (c *Config) applyDefaults() {
	if c.DefaultCapacity <= 0 {
		c.DefaultCapacity = 100
	}
	if c.DefaultServiceMinutes <= 0 {
		c.DefaultServiceMinutes = 30
	}
	if c.OperationTimeout <= 0 {
		c.OperationTimeout = 5 * time.Second
	}
	if c.Location == nil {
		c.Location = time.Local
	}
	if c.DefaultPageSize <= 0 {
		c.DefaultPageSize = 20
	}
	if c.MaxPageSize < c.DefaultPageSize {
		c.MaxPageSize = 100
	}
}

type Engine struct {
	store        Store
	appointments AppointmentService
	directory    DirectoryService
	notifier     notify.Publisher
	cfg          Config
	now          func() time.Time
	log          zerolog.Logger
}

type Option func(*Engine)

// WithClock replaces time.Now, for tests.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

// WithNotifier sets the realtime publisher. It should not block; wrap slow
// publishers in notify.Async.
func WithNotifier(p notify.Publisher) Option {
	return func(e *Engine) { e.notifier = p }
}

func New(store Store, appointments AppointmentService, directory DirectoryService, cfg Config, opts ...Option) *Engine {
	cfg.applyDefaults()
	e := &Engine{
		store:        store,
		appointments: appointments,
		directory:    directory,
		notifier:     notify.Nop{},
		cfg:          cfg,
		now:          time.Now,
		log:          logging.With("queue"),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

func (e *Engine) today() time.Time {
	return models.DayOf(e.now(), e.cfg.Location)
}

// run bounds op by the operation timeout and records metrics.
func (e *Engine) run(ctx context.Context, name string, op func(ctx context.Context) error) error {
	start := time.Now()
	ctx, cancel := context.WithTimeout(ctx, e.cfg.OperationTimeout)
	defer cancel()

	err := timeoutErr(op(ctx))
	metrics.ObserveOperation(name, start, Kind(err))
	return err
}

// inSession wraps Store.InSession with lock-wait accounting.
func (e *Engine) inSession(ctx context.Context, sessionID uuid.UUID, fn func(tx Store) error) error {
	requested := time.Now()
	return e.store.InSession(ctx, sessionID, func(tx Store) error {
		metrics.SessionLockWait.Observe(time.Since(requested).Seconds())
		return fn(tx)
	})
}

// publish hands an event to the notifier; failures are logged only.
func (e *Engine) publish(ctx context.Context, sessionID uuid.UUID, event notify.Event) {
	event.SessionID = sessionID
	if event.At.IsZero() {
		event.At = e.now()
	}
	if err := e.notifier.Publish(ctx, sessionID, event); err != nil {
		e.log.Warn().Err(err).Str("session_id", sessionID.String()).Str("event", string(event.Type)).Msg("realtime publish failed")
	}
}

// setAppointmentStatus is an at-most-once side effect after a commit: it is
// logged on failure and never retried or surfaced.
func (e *Engine) setAppointmentStatus(ctx context.Context, appointmentID uuid.UUID, status models.AppointmentStatus) {
	if err := e.appointments.SetAppointmentStatus(ctx, appointmentID, status); err != nil {
		logging.Ctx(ctx).Error().Err(err).
			Str("appointment_id", appointmentID.String()).
			Str("status", string(status)).
			Msg("failed to update appointment status")
	}
}

// completeHandled walks a called/serving entry to completed and feeds its
// service time into the session average.
func (e *Engine) completeHandled(ctx context.Context, tx Store, entry models.QueueEntry, at time.Time) (*models.QueueEntry, error) {
	// the window opened when the citizen was called if serving was never marked
	started := entry.ServedAt
	if started == nil {
		started = entry.CalledAt
	}
	if entry.Status == models.EntryCalled {
		if _, err := tx.Entries().UpdateStatus(ctx, entry.ID, StatusChange{Status: models.EntryServing, At: at}); err != nil {
			return nil, err
		}
	}
	done, err := tx.Entries().UpdateStatus(ctx, entry.ID, StatusChange{Status: models.EntryCompleted, At: at})
	if err != nil {
		return nil, err
	}
	if started != nil {
		if err := tx.Sessions().RecordServiceTime(ctx, done.QueueSessionID, at.Sub(*started).Minutes()); err != nil {
			return nil, err
		}
	}
	return done, nil
}

// displayToken renders the ticket shown on hall screens, e.g. "B-007".
func displayToken(session *models.QueueSession, position int) string {
	letter := byte('A')
	if session.ServiceID != nil {
		letter = 'A' + session.ServiceID[0]%26
	}
	return fmt.Sprintf("%c-%03d", letter, position)
}

func peopleAhead(position, current int) int {
	if position < current {
		return 0
	}
	return position - current
}
