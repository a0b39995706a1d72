package queue

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"gov_queue/internal/logging"
	"gov_queue/internal/metrics"
	"gov_queue/internal/models"
	"gov_queue/internal/notify"
)

func (e *Engine) GetSession(ctx context.Context, id uuid.UUID) (*models.QueueSession, error) {
	var s *models.QueueSession
	err := e.run(ctx, "get_session", func(ctx context.Context) error {
		var err error
		s, err = e.store.Sessions().Get(ctx, id)
		return err
	})
	return s, err
}

// ListEntries pages through a session's entries by position. page starts at
// 1; limit is clamped to the configured maximum.
func (e *Engine) ListEntries(ctx context.Context, sessionID uuid.UUID, page, limit int) (*EntryPage, error) {
	if page < 1 {
		page = 1
	}
	if limit <= 0 {
		limit = e.cfg.DefaultPageSize
	}
	if limit > e.cfg.MaxPageSize {
		limit = e.cfg.MaxPageSize
	}
	var res *EntryPage
	err := e.run(ctx, "list_entries", func(ctx context.Context) error {
		if _, err := e.store.Sessions().Get(ctx, sessionID); err != nil {
			return err
		}
		var err error
		res, err = e.store.Entries().List(ctx, sessionID, page, limit)
		return err
	})
	return res, err
}

// ListActiveSessions returns today's active and paused sessions.
func (e *Engine) ListActiveSessions(ctx context.Context, departmentID *uuid.UUID) ([]models.QueueSession, error) {
	var out []models.QueueSession
	err := e.run(ctx, "list_active_sessions", func(ctx context.Context) error {
		today := e.today()
		var err error
		out, err = e.store.Sessions().List(ctx, SessionFilter{
			DepartmentID: departmentID,
			Date:         &today,
			Statuses:     []models.SessionStatus{models.SessionActive, models.SessionPaused},
		})
		return err
	})
	return out, err
}

// SetSessionStatus pauses, resumes or closes a session. Closing terminates
// open entries the same way CloseDay does. Closed is final: any change away
// from it fails with ErrSessionNotActive.
func (e *Engine) SetSessionStatus(ctx context.Context, sessionID uuid.UUID, status models.SessionStatus, officerID *uuid.UUID) (*models.QueueSession, error) {
	if !status.Valid() {
		return nil, fmt.Errorf("unknown session status %q", status)
	}
	var s *models.QueueSession
	err := e.run(ctx, "set_session_status", func(ctx context.Context) error {
		return e.inSession(ctx, sessionID, func(tx Store) error {
			cur, err := tx.Sessions().Get(ctx, sessionID)
			if err != nil {
				return err
			}
			if cur.Status == models.SessionClosed {
				if status != models.SessionClosed {
					return ErrSessionNotActive
				}
				s = cur
				return nil
			}
			if status == models.SessionClosed {
				if err := e.closeSession(ctx, tx, sessionID, "officer"); err != nil {
					return err
				}
				s, err = tx.Sessions().Get(ctx, sessionID)
				return err
			}
			s, err = tx.Sessions().SetStatus(ctx, sessionID, status, e.now())
			return err
		})
	})
	if err != nil {
		return nil, err
	}
	if s.Status == models.SessionClosed {
		metrics.QueueWaiting.DeleteLabelValues(sessionID.String())
	}

	e.publish(ctx, sessionID, notify.Event{
		Type:            notify.EventOfficerStatus,
		SessionStatus:   string(s.Status),
		CurrentPosition: s.CurrentPosition,
		OfficerID:       officerID,
	})
	logging.Ctx(ctx).Info().Str("session_id", sessionID.String()).Str("status", string(s.Status)).Msg("session status changed")
	return s, nil
}

// SetAverageServiceTime sets the manually configured average; nil clears it.
func (e *Engine) SetAverageServiceTime(ctx context.Context, sessionID uuid.UUID, minutes *float64) (*models.QueueSession, error) {
	if minutes != nil && *minutes <= 0 {
		return nil, fmt.Errorf("average service time must be positive, got %v", *minutes)
	}
	var s *models.QueueSession
	err := e.run(ctx, "set_average_service_time", func(ctx context.Context) error {
		return e.inSession(ctx, sessionID, func(tx Store) error {
			var err error
			s, err = tx.Sessions().SetManualServiceMinutes(ctx, sessionID, minutes)
			return err
		})
	})
	return s, err
}

// CloseDay closes every open session dated before day and terminates its
// open entries: waiting/called become skipped, serving becomes completed.
// It returns how many sessions were closed.
func (e *Engine) CloseDay(ctx context.Context, day time.Time) (int, error) {
	day = models.DayOf(day, e.cfg.Location)
	stale, err := e.store.Sessions().List(ctx, SessionFilter{
		Before:   &day,
		Statuses: []models.SessionStatus{models.SessionActive, models.SessionPaused},
	})
	if err != nil {
		return 0, err
	}

	closed := 0
	for _, s := range stale {
		err := e.run(ctx, "close_session", func(ctx context.Context) error {
			return e.inSession(ctx, s.ID, func(tx Store) error {
				return e.closeSession(ctx, tx, s.ID, "end_of_day")
			})
		})
		if err != nil {
			return closed, fmt.Errorf("close session %s: %w", s.ID, err)
		}
		closed++
		metrics.SessionsClosed.Inc()
		metrics.QueueWaiting.DeleteLabelValues(s.ID.String())
		e.publish(ctx, s.ID, notify.Event{Type: notify.EventOfficerStatus, SessionStatus: string(models.SessionClosed)})
	}
	return closed, nil
}

// closeSession terminates open entries (reason lands in their metadata as
// closed_by) and closes the session.
func (e *Engine) closeSession(ctx context.Context, tx Store, sessionID uuid.UUID, reason string) error {
	at := e.now()
	open, err := tx.Entries().ListByStatus(ctx, sessionID, models.ActiveEntryStatuses...)
	if err != nil {
		return err
	}
	for _, entry := range open {
		next := models.EntrySkipped
		if entry.Status == models.EntryServing {
			next = models.EntryCompleted
		}
		if _, err := tx.Entries().UpdateStatus(ctx, entry.ID, StatusChange{
			Status:   next,
			At:       at,
			Metadata: map[string]any{"closed_by": reason},
		}); err != nil {
			return err
		}
	}
	_, err = tx.Sessions().SetStatus(ctx, sessionID, models.SessionClosed, at)
	return err
}
