package queue

import (
	"context"

	"github.com/google/uuid"

	"gov_queue/internal/logging"
	"gov_queue/internal/models"
	"gov_queue/internal/notify"
)

// SetEntryStatus applies one state-machine transition to an entry.
//
// Side effects after commit: called notifies the citizen, completed marks
// the appointment completed. serving only stamps served_at; skipped keeps
// the entry in history.
func (e *Engine) SetEntryStatus(ctx context.Context, entryID uuid.UUID, status models.EntryStatus, metadata map[string]any, officerID *uuid.UUID) (*models.QueueEntry, error) {
	var updated *models.QueueEntry
	err := e.run(ctx, "set_entry_status", func(ctx context.Context) error {
		var err error
		updated, err = e.setEntryStatus(ctx, entryID, status, metadata, officerID)
		return err
	})
	return updated, err
}

func (e *Engine) setEntryStatus(ctx context.Context, entryID uuid.UUID, status models.EntryStatus, metadata map[string]any, officerID *uuid.UUID) (*models.QueueEntry, error) {
	entry, err := e.store.Entries().Get(ctx, entryID)
	if err != nil {
		return nil, err
	}

	var updated *models.QueueEntry
	var session *models.QueueSession
	err = e.inSession(ctx, entry.QueueSessionID, func(tx Store) error {
		cur, err := tx.Entries().Get(ctx, entryID)
		if err != nil {
			return err
		}
		if !models.CanTransition(cur.Status, status) {
			return &TransitionError{From: cur.Status, To: status}
		}
		at := e.now()
		updated, err = tx.Entries().UpdateStatus(ctx, entryID, StatusChange{
			Status:    status,
			At:        at,
			OfficerID: officerID,
			Metadata:  metadata,
		})
		if err != nil {
			return err
		}
		if status == models.EntryCompleted {
			if minutes, ok := updated.ServiceMinutes(); ok {
				if err := tx.Sessions().RecordServiceTime(ctx, updated.QueueSessionID, minutes); err != nil {
					return err
				}
			}
		}
		session, err = tx.Sessions().Get(ctx, updated.QueueSessionID)
		return err
	})
	if err != nil {
		return nil, err
	}

	log := logging.Ctx(ctx).With().
		Str("entry_id", updated.ID.String()).
		Str("status", string(updated.Status)).
		Logger()

	switch updated.Status {
	case models.EntryCalled:
		e.publish(ctx, updated.QueueSessionID, notify.Event{
			Type:            notify.EventNowServing,
			EntryID:         &updated.ID,
			UserID:          &updated.UserID,
			Position:        updated.Position,
			DisplayToken:    updated.DisplayToken,
			CurrentPosition: session.CurrentPosition,
			OfficerID:       officerID,
		})
	case models.EntryServing:
		log.Debug().Time("served_at", *updated.ServedAt).Msg("service timer started")
	case models.EntryCompleted:
		e.setAppointmentStatus(ctx, updated.AppointmentID, models.AppointmentCompleted)
	}
	log.Info().Msg("entry status changed")
	return updated, nil
}
