package queue

import (
	"context"

	"github.com/google/uuid"

	"gov_queue/internal/estimator"
	"gov_queue/internal/logging"
	"gov_queue/internal/metrics"
	"gov_queue/internal/models"
	"gov_queue/internal/notify"
)

// AdvanceResult describes the queue after an officer moved it forward.
type AdvanceResult struct {
	SessionID       uuid.UUID           `json:"session_id"`
	CurrentPosition int                 `json:"current_position"`
	TotalServed     int                 `json:"total_served"`
	Completed       []models.QueueEntry `json:"completed"`
	NextPerson      *models.QueueEntry  `json:"next_person"`
	Waiting         int                 `json:"waiting"`
}

// Advance completes whoever is at the window and calls the next position.
//
// Sessions are single-officer: every called/serving entry is completed (a
// called entry passes through serving). current_position and total_served
// then grow by one; the entry at the new position is called if it is
// waiting, otherwise NextPerson is nil. Estimates of all waiting entries
// are recomputed from their new people-ahead.
func (e *Engine) Advance(ctx context.Context, sessionID uuid.UUID, officerID *uuid.UUID) (*AdvanceResult, error) {
	var res *AdvanceResult
	err := e.run(ctx, "advance", func(ctx context.Context) error {
		var err error
		res, err = e.advance(ctx, sessionID, officerID)
		return err
	})
	return res, err
}

func (e *Engine) advance(ctx context.Context, sessionID uuid.UUID, officerID *uuid.UUID) (*AdvanceResult, error) {
	res := &AdvanceResult{SessionID: sessionID}
	var updates []notify.PositionUpdate

	err := e.inSession(ctx, sessionID, func(tx Store) error {
		s, err := tx.Sessions().Get(ctx, sessionID)
		if err != nil {
			return err
		}
		if s.Status != models.SessionActive {
			return ErrSessionNotActive
		}

		at := e.now()
		handled, err := tx.Entries().ListByStatus(ctx, sessionID, models.EntryCalled, models.EntryServing)
		if err != nil {
			return err
		}
		for _, h := range handled {
			done, err := e.completeHandled(ctx, tx, h, at)
			if err != nil {
				return err
			}
			res.Completed = append(res.Completed, *done)
		}

		current, err := tx.Sessions().IncrementPositionAndServed(ctx, sessionID)
		if err != nil {
			return err
		}
		res.CurrentPosition = current

		next, err := tx.Entries().FindByPosition(ctx, sessionID, current)
		if err != nil {
			return err
		}
		if next != nil && next.Status == models.EntryWaiting {
			next, err = tx.Entries().UpdateStatus(ctx, next.ID, StatusChange{
				Status:    models.EntryCalled,
				At:        at,
				OfficerID: officerID,
			})
			if err != nil {
				return err
			}
			res.NextPerson = next
		}

		// re-read: completions above may have moved the observed average
		s, err = tx.Sessions().Get(ctx, sessionID)
		if err != nil {
			return err
		}
		res.TotalServed = s.TotalServed

		waiting, err := tx.Entries().ListByStatus(ctx, sessionID, models.EntryWaiting)
		if err != nil {
			return err
		}
		avg := s.EffectiveServiceMinutes()
		estimates := make(map[uuid.UUID]int, len(waiting))
		updates = make([]notify.PositionUpdate, 0, len(waiting))
		for _, w := range waiting {
			ahead := peopleAhead(w.Position, current)
			est := estimator.Estimate(ahead, avg)
			estimates[w.ID] = est
			updates = append(updates, notify.PositionUpdate{
				EntryID:              w.ID,
				UserID:               w.UserID,
				Position:             w.Position,
				PeopleAhead:          ahead,
				EstimatedWaitMinutes: est,
			})
		}
		res.Waiting = len(waiting)
		return tx.Entries().UpdateEstimates(ctx, estimates)
	})
	if err != nil {
		return nil, err
	}

	for _, done := range res.Completed {
		e.setAppointmentStatus(ctx, done.AppointmentID, models.AppointmentCompleted)
	}
	if next := res.NextPerson; next != nil {
		e.publish(ctx, sessionID, notify.Event{
			Type:            notify.EventNowServing,
			EntryID:         &next.ID,
			UserID:          &next.UserID,
			Position:        next.Position,
			DisplayToken:    next.DisplayToken,
			CurrentPosition: res.CurrentPosition,
			OfficerID:       officerID,
		})
	}
	e.publish(ctx, sessionID, notify.Event{
		Type:            notify.EventPositionUpdate,
		CurrentPosition: res.CurrentPosition,
		Positions:       updates,
	})
	metrics.QueueWaiting.WithLabelValues(sessionID.String()).Set(float64(res.Waiting))

	ev := logging.Ctx(ctx).Info().
		Str("session_id", sessionID.String()).
		Int("current_position", res.CurrentPosition).
		Int("completed", len(res.Completed)).
		Int("waiting", res.Waiting)
	if res.NextPerson != nil {
		ev = ev.Str("next_entry_id", res.NextPerson.ID.String())
	}
	ev.Msg("queue advanced")

	return res, nil
}
