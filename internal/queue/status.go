package queue

import (
	"context"
	"time"

	"github.com/google/uuid"

	"gov_queue/internal/estimator"
	"gov_queue/internal/models"
)

// StatusView is a citizen's live position in today's queue.
type StatusView struct {
	EntryID              uuid.UUID            `json:"entry_id"`
	SessionID            uuid.UUID            `json:"session_id"`
	AppointmentID        uuid.UUID            `json:"appointment_id"`
	Position             int                  `json:"position"`
	DisplayToken         string               `json:"display_token"`
	Status               models.EntryStatus   `json:"status"`
	SessionStatus        models.SessionStatus `json:"session_status"`
	CurrentPosition      int                  `json:"current_position"`
	PeopleAhead          int                  `json:"people_ahead"`
	EstimatedWaitMinutes int                  `json:"estimated_wait_minutes"`
	EarliestCall         time.Time            `json:"earliest_call"`
	LatestCall           time.Time            `json:"latest_call"`
	Confidence           float64              `json:"confidence"`
	Momentum             string               `json:"momentum"`
	Waiting              int                  `json:"waiting"`
	Serving              int                  `json:"serving"`
}

// GetStatus composes the citizen's view without taking the session lock.
// It fails with ErrQueueEntryNotFound when the citizen has no waiting or
// called entry today.
func (e *Engine) GetStatus(ctx context.Context, userID uuid.UUID, appointmentID *uuid.UUID) (*StatusView, error) {
	var view *StatusView
	err := e.run(ctx, "get_status", func(ctx context.Context) error {
		var err error
		view, err = e.getStatus(ctx, userID, appointmentID)
		return err
	})
	return view, err
}

func (e *Engine) getStatus(ctx context.Context, userID uuid.UUID, appointmentID *uuid.UUID) (*StatusView, error) {
	entry, err := e.store.Entries().FindActiveForUser(ctx, userID, e.today(), appointmentID)
	if err != nil {
		return nil, err
	}
	if entry == nil {
		return nil, ErrQueueEntryNotFound
	}
	session, err := e.store.Sessions().Get(ctx, entry.QueueSessionID)
	if err != nil {
		return nil, err
	}
	counts, err := e.store.Entries().CountByStatus(ctx, session.ID)
	if err != nil {
		return nil, err
	}

	ahead := peopleAhead(entry.Position, session.CurrentPosition)
	est := estimator.Estimate(ahead, session.EffectiveServiceMinutes())
	earliest, latest := estimator.CallTimeRange(e.now(), est)

	return &StatusView{
		EntryID:              entry.ID,
		SessionID:            session.ID,
		AppointmentID:        entry.AppointmentID,
		Position:             entry.Position,
		DisplayToken:         entry.DisplayToken,
		Status:               entry.Status,
		SessionStatus:        session.Status,
		CurrentPosition:      session.CurrentPosition,
		PeopleAhead:          ahead,
		EstimatedWaitMinutes: est,
		EarliestCall:         earliest,
		LatestCall:           latest,
		Confidence: estimator.Confidence(estimator.SessionStats{
			TotalServed:     session.TotalServed,
			HasObservedMean: session.ObservedSamples > 0,
			HasManualMean:   session.ManualServiceMinutes != nil,
		}),
		Momentum: estimator.Momentum(counts[models.EntryWaiting]),
		Waiting:  counts[models.EntryWaiting],
		Serving:  counts.Handling(),
	}, nil
}
