package queue

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"gov_queue/internal/estimator"
	"gov_queue/internal/logging"
	"gov_queue/internal/models"
	"gov_queue/internal/notify"
)

type JoinRequest struct {
	AppointmentID uuid.UUID
	UserID        uuid.UUID
	ArrivalTime   *time.Time
}

// Admission is returned to a citizen who entered the queue.
type Admission struct {
	EntryID              uuid.UUID          `json:"entry_id"`
	SessionID            uuid.UUID          `json:"session_id"`
	Position             int                `json:"position"`
	DisplayToken         string             `json:"display_token"`
	Status               models.EntryStatus `json:"status"`
	PeopleAhead          int                `json:"people_ahead"`
	EstimatedWaitMinutes int                `json:"estimated_wait_minutes"`
	EarliestCall         time.Time          `json:"earliest_call"`
	LatestCall           time.Time          `json:"latest_call"`
}

// Join admits a citizen with a confirmed same-day appointment.
//
// Preconditions are checked in order: appointment exists, belongs to the
// user, is neither cancelled nor completed, is dated today, has no active
// entry, and the session has capacity. The position is assigned under the
// session lock. If nobody is at a window and nobody waits, the newcomer is
// called straight away.
func (e *Engine) Join(ctx context.Context, req JoinRequest) (*Admission, error) {
	var adm *Admission
	err := e.run(ctx, "join", func(ctx context.Context) error {
		var err error
		adm, err = e.join(ctx, req)
		return err
	})
	return adm, err
}

func (e *Engine) join(ctx context.Context, req JoinRequest) (*Admission, error) {
	appt, err := e.appointments.GetAppointment(ctx, req.AppointmentID)
	if err != nil {
		return nil, err
	}
	if appt.UserID != req.UserID {
		return nil, ErrUnauthorizedAccess
	}
	switch appt.Status {
	case models.AppointmentCancelled:
		return nil, ErrAppointmentCancelled
	case models.AppointmentCompleted:
		return nil, ErrAppointmentAlreadyCompleted
	}
	today := e.today()
	if !models.DayOf(appt.Date, e.cfg.Location).Equal(today) {
		return nil, ErrAppointmentNotForToday
	}

	existing, err := e.store.Entries().FindActiveByAppointment(ctx, appt.ID)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, ErrAlreadyInQueue
	}

	key, defaults, err := e.sessionSeed(ctx, appt, today)
	if err != nil {
		return nil, err
	}
	session, err := e.store.Sessions().GetOrCreate(ctx, key, defaults)
	if err != nil {
		return nil, err
	}
	if session.Status == models.SessionClosed {
		return nil, ErrSessionNotActive
	}

	joinedAt := e.now()
	if req.ArrivalTime != nil {
		joinedAt = *req.ArrivalTime
	}

	var (
		entry    *models.QueueEntry
		locked   *models.QueueSession
		ahead    int
		promoted bool
	)
	err = e.inSession(ctx, session.ID, func(tx Store) error {
		s, err := tx.Sessions().Get(ctx, session.ID)
		if err != nil {
			return err
		}
		if s.Status == models.SessionClosed {
			return ErrSessionNotActive
		}
		counts, err := tx.Entries().CountByStatus(ctx, s.ID)
		if err != nil {
			return err
		}
		if counts.InQueue() >= s.MaxCapacity {
			return ErrQueueFull
		}

		position, err := tx.Entries().NextPosition(ctx, s.ID)
		if err != nil {
			return err
		}
		promoted = s.Status == models.SessionActive && counts.Handling() == 0 && counts[models.EntryWaiting] == 0
		// advances past the tail leave current_position on an empty slot.
		// Only a newcomer called right away may take it; anyone else must
		// land where the next advance looks.
		floor := s.CurrentPosition + 1
		if promoted {
			floor = s.CurrentPosition
		}
		if position < floor {
			position = floor
		}
		current := s.CurrentPosition
		if promoted {
			current = position
		}
		ahead = peopleAhead(position, current)

		entry = &models.QueueEntry{
			ID:                   uuid.New(),
			QueueSessionID:       s.ID,
			AppointmentID:        appt.ID,
			UserID:               req.UserID,
			Position:             position,
			DisplayToken:         displayToken(s, position),
			Status:               models.EntryWaiting,
			EstimatedWaitMinutes: estimator.Estimate(ahead, s.EffectiveServiceMinutes()),
			CreatedAt:            joinedAt,
			UpdatedAt:            joinedAt,
		}
		if err := tx.Entries().Insert(ctx, entry); err != nil {
			return err
		}

		if promoted {
			if current != s.CurrentPosition {
				if err := tx.Sessions().SetCurrentPosition(ctx, s.ID, current); err != nil {
					return err
				}
				s.CurrentPosition = current
			}
			entry, err = tx.Entries().UpdateStatus(ctx, entry.ID, StatusChange{Status: models.EntryCalled, At: joinedAt})
			if err != nil {
				return err
			}
		}
		locked = s
		return nil
	})
	if err != nil {
		if errors.Is(err, ErrDuplicateAppointment) {
			// lost a race with a concurrent join of the same appointment
			return nil, fmt.Errorf("%w: %w", ErrAlreadyInQueue, err)
		}
		return nil, err
	}

	e.setAppointmentStatus(ctx, appt.ID, models.AppointmentConfirmed)

	e.publish(ctx, locked.ID, notify.Event{
		Type:                 notify.EventJoined,
		EntryID:              &entry.ID,
		UserID:               &entry.UserID,
		Position:             entry.Position,
		DisplayToken:         entry.DisplayToken,
		PeopleAhead:          ahead,
		EstimatedWaitMinutes: entry.EstimatedWaitMinutes,
		CurrentPosition:      locked.CurrentPosition,
	})
	if promoted {
		e.publish(ctx, locked.ID, notify.Event{
			Type:            notify.EventNowServing,
			EntryID:         &entry.ID,
			UserID:          &entry.UserID,
			Position:        entry.Position,
			DisplayToken:    entry.DisplayToken,
			CurrentPosition: locked.CurrentPosition,
		})
	}

	logging.Ctx(ctx).Info().
		Str("session_id", locked.ID.String()).
		Str("entry_id", entry.ID.String()).
		Int("position", entry.Position).
		Bool("called", promoted).
		Msg("citizen joined queue")

	earliest, latest := estimator.CallTimeRange(e.now(), entry.EstimatedWaitMinutes)
	return &Admission{
		EntryID:              entry.ID,
		SessionID:            locked.ID,
		Position:             entry.Position,
		DisplayToken:         entry.DisplayToken,
		Status:               entry.Status,
		PeopleAhead:          ahead,
		EstimatedWaitMinutes: entry.EstimatedWaitMinutes,
		EarliestCall:         earliest,
		LatestCall:           latest,
	}, nil
}

// sessionSeed resolves the session key and defaults for an appointment.
// The service's nominal duration seeds the average service time; without
// one the configured default (30 minutes) applies.
func (e *Engine) sessionSeed(ctx context.Context, appt *models.Appointment, day time.Time) (SessionKey, SessionDefaults, error) {
	key := SessionKey{DepartmentID: appt.DepartmentID, ServiceID: appt.ServiceID, Date: day}
	defaults := SessionDefaults{
		MaxCapacity:           e.cfg.DefaultCapacity,
		AverageServiceMinutes: e.cfg.DefaultServiceMinutes,
		Start:                 e.now(),
	}
	if appt.ServiceID == nil {
		return key, defaults, nil
	}

	svc, err := e.directory.GetService(ctx, *appt.ServiceID)
	if err != nil {
		if key.DepartmentID == uuid.Nil {
			return key, defaults, fmt.Errorf("resolve service %s: %w", appt.ServiceID, err)
		}
		// the department is known, so only the duration hint is lost
		logging.Ctx(ctx).Warn().Err(err).Str("service_id", appt.ServiceID.String()).Msg("directory lookup failed, using default service time")
		return key, defaults, nil
	}
	if key.DepartmentID == uuid.Nil {
		key.DepartmentID = svc.DepartmentID
	}
	if svc.EstimatedDurationMinutes > 0 {
		defaults.AverageServiceMinutes = float64(svc.EstimatedDurationMinutes)
	}
	return key, defaults, nil
}
