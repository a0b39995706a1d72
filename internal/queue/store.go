package queue

import (
	"context"
	"time"

	"github.com/google/uuid"

	"gov_queue/internal/models"
)

// SessionKey identifies the one session of a department/service on a day.
type SessionKey struct {
	DepartmentID uuid.UUID
	ServiceID    *uuid.UUID
	Date         time.Time // calendar day, see models.DayOf
}

// SessionDefaults seed a session created by GetOrCreate.
type SessionDefaults struct {
	MaxCapacity           int
	AverageServiceMinutes float64
	Start                 time.Time
}

// SessionFilter narrows List. Zero values match everything.
type SessionFilter struct {
	DepartmentID *uuid.UUID
	Date         *time.Time
	Before       *time.Time // session_date strictly before
	Statuses     []models.SessionStatus
}

// StatusCounts is the number of entries per status in one session.
type StatusCounts map[models.EntryStatus]int

// InQueue counts entries that occupy capacity.
func (c StatusCounts) InQueue() int {
	return c[models.EntryWaiting] + c[models.EntryCalled] + c[models.EntryServing]
}

// Handling counts entries currently at a service window.
func (c StatusCounts) Handling() int {
	return c[models.EntryCalled] + c[models.EntryServing]
}

// EntryPage is one page of a session's entries ordered by position.
type EntryPage struct {
	Entries []models.QueueEntry
	Page    int
	Limit   int
	Total   int64
}

// StatusChange is applied by EntryStore.UpdateStatus.
type StatusChange struct {
	Status    models.EntryStatus
	At        time.Time
	OfficerID *uuid.UUID
	Metadata  map[string]any
}

type SessionStore interface {
	// GetOrCreate converges concurrent creators on a single row per key.
	GetOrCreate(ctx context.Context, key SessionKey, defaults SessionDefaults) (*models.QueueSession, error)
	Get(ctx context.Context, id uuid.UUID) (*models.QueueSession, error)
	List(ctx context.Context, filter SessionFilter) ([]models.QueueSession, error)
	SetStatus(ctx context.Context, id uuid.UUID, status models.SessionStatus, at time.Time) (*models.QueueSession, error)
	// IncrementPositionAndServed bumps current_position and total_served
	// and returns the new current_position.
	IncrementPositionAndServed(ctx context.Context, id uuid.UUID) (int, error)
	SetCurrentPosition(ctx context.Context, id uuid.UUID, position int) error
	RecordServiceTime(ctx context.Context, id uuid.UUID, minutes float64) error
	SetManualServiceMinutes(ctx context.Context, id uuid.UUID, minutes *float64) (*models.QueueSession, error)
}

type EntryStore interface {
	// NextPosition is max(position)+1, or 1 for an empty session. Only
	// meaningful inside Store.InSession.
	NextPosition(ctx context.Context, sessionID uuid.UUID) (int, error)
	// Insert fails with ErrDuplicateAppointment if the appointment already
	// has a non-terminal entry in the session.
	Insert(ctx context.Context, entry *models.QueueEntry) error
	Get(ctx context.Context, id uuid.UUID) (*models.QueueEntry, error)
	UpdateStatus(ctx context.Context, id uuid.UUID, change StatusChange) (*models.QueueEntry, error)
	UpdateEstimates(ctx context.Context, estimates map[uuid.UUID]int) error
	List(ctx context.Context, sessionID uuid.UUID, page, limit int) (*EntryPage, error)
	ListByStatus(ctx context.Context, sessionID uuid.UUID, statuses ...models.EntryStatus) ([]models.QueueEntry, error)
	CountByStatus(ctx context.Context, sessionID uuid.UUID) (StatusCounts, error)
	// FindCurrentServing returns the called/serving entry at currentPosition, or nil.
	FindCurrentServing(ctx context.Context, sessionID uuid.UUID, currentPosition int) (*models.QueueEntry, error)
	FindByPosition(ctx context.Context, sessionID uuid.UUID, position int) (*models.QueueEntry, error)
	FindActiveByAppointment(ctx context.Context, appointmentID uuid.UUID) (*models.QueueEntry, error)
	// FindActiveForUser returns the user's waiting/called entry in a
	// session dated day, optionally limited to one appointment.
	FindActiveForUser(ctx context.Context, userID uuid.UUID, day time.Time, appointmentID *uuid.UUID) (*models.QueueEntry, error)
}

// Store is the persistence the engine writes through.
//
// Reads outside InSession are short-lived and never take the session lock.
// InSession runs fn with stores bound to a unit of work that holds the
// exclusive lock of one session; the work commits only if fn returns nil.
// It fails with ErrSessionNotFound when the session does not exist.
type Store interface {
	Sessions() SessionStore
	Entries() EntryStore
	InSession(ctx context.Context, sessionID uuid.UUID, fn func(tx Store) error) error
}

// AppointmentService is the appointment collaborator.
type AppointmentService interface {
	GetAppointment(ctx context.Context, id uuid.UUID) (*models.Appointment, error)
	SetAppointmentStatus(ctx context.Context, id uuid.UUID, status models.AppointmentStatus) error
}

// DirectoryService resolves services for seeding new sessions.
type DirectoryService interface {
	GetService(ctx context.Context, id uuid.UUID) (*models.Service, error)
}
