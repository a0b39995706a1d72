package queue_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gov_queue/internal/external"
	"gov_queue/internal/models"
	"gov_queue/internal/notify"
	"gov_queue/internal/queue"
	"gov_queue/internal/storage"
)

var morning = time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)

type clock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *clock) Add(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

type recorder struct {
	mu     sync.Mutex
	events []notify.Event
}

func (r *recorder) Publish(_ context.Context, _ uuid.UUID, e notify.Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
	return nil
}

func (r *recorder) ofType(t notify.EventType) []notify.Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []notify.Event
	for _, e := range r.events {
		if e.Type == t {
			out = append(out, e)
		}
	}
	return out
}

type failingPublisher struct{}

func (failingPublisher) Publish(context.Context, uuid.UUID, notify.Event) error {
	return errors.New("hub down")
}

type fixture struct {
	engine  *queue.Engine
	store   *storage.MemoryStore
	appts   *external.MemoryAppointments
	events  *recorder
	clock   *clock
	dept    uuid.UUID
	service uuid.UUID
}

func newFixture(t *testing.T, cfg queue.Config, opts ...queue.Option) *fixture {
	t.Helper()
	f := &fixture{
		store:   storage.NewMemoryStore(),
		appts:   external.NewMemoryAppointments(),
		events:  &recorder{},
		clock:   &clock{t: morning},
		dept:    uuid.New(),
		service: uuid.New(),
	}
	dir := external.NewMemoryDirectory(models.Service{
		ID:                       f.service,
		DepartmentID:             f.dept,
		Name:                     "Замена паспорта",
		EstimatedDurationMinutes: 20,
	})
	if cfg.Location == nil {
		cfg.Location = time.UTC
	}
	opts = append([]queue.Option{queue.WithClock(f.clock.Now), queue.WithNotifier(f.events)}, opts...)
	f.engine = queue.New(f.store, f.appts, dir, cfg, opts...)
	return f
}

// book creates a scheduled appointment for today and returns it.
func (f *fixture) book(mutate ...func(a *models.Appointment)) models.Appointment {
	a := models.Appointment{
		ID:           uuid.New(),
		UserID:       uuid.New(),
		Status:       models.AppointmentScheduled,
		Date:         f.clock.Now().Add(time.Hour),
		ServiceID:    &f.service,
		DepartmentID: f.dept,
	}
	for _, m := range mutate {
		m(&a)
	}
	f.appts.Put(a)
	return a
}

func (f *fixture) join(t *testing.T, a models.Appointment) *queue.Admission {
	t.Helper()
	adm, err := f.engine.Join(context.Background(), queue.JoinRequest{AppointmentID: a.ID, UserID: a.UserID})
	require.NoError(t, err)
	return adm
}

func (f *fixture) entry(t *testing.T, id uuid.UUID) *models.QueueEntry {
	t.Helper()
	e, err := f.store.Entries().Get(context.Background(), id)
	require.NoError(t, err)
	return e
}

func (f *fixture) appointmentStatus(t *testing.T, id uuid.UUID) models.AppointmentStatus {
	t.Helper()
	a, err := f.appts.GetAppointment(context.Background(), id)
	require.NoError(t, err)
	return a.Status
}

func TestCapacityAndAdvanceScenario(t *testing.T) {
	f := newFixture(t, queue.Config{DefaultCapacity: 2})
	ctx := context.Background()

	a, b, c := f.book(), f.book(), f.book()

	admA := f.join(t, a)
	assert.Equal(t, 1, admA.Position)
	assert.Equal(t, 0, admA.PeopleAhead)

	admB := f.join(t, b)
	assert.Equal(t, 2, admB.Position)
	assert.Equal(t, 1, admB.PeopleAhead)

	_, err := f.engine.Join(ctx, queue.JoinRequest{AppointmentID: c.ID, UserID: c.UserID})
	require.ErrorIs(t, err, queue.ErrQueueFull)
	assert.Equal(t, "queue_full", queue.Kind(err))

	res, err := f.engine.Advance(ctx, admA.SessionID, nil)
	require.NoError(t, err)
	assert.Equal(t, 2, res.CurrentPosition)
	require.NotNil(t, res.NextPerson)
	assert.Equal(t, admB.EntryID, res.NextPerson.ID)

	assert.Equal(t, models.EntryCompleted, f.entry(t, admA.EntryID).Status)
	assert.Equal(t, models.EntryCalled, f.entry(t, admB.EntryID).Status)

	view, err := f.engine.GetStatus(ctx, b.UserID, nil)
	require.NoError(t, err)
	assert.Equal(t, 0, view.PeopleAhead)
	assert.Equal(t, models.EntryCalled, view.Status)

	page, err := f.engine.ListEntries(ctx, admA.SessionID, 1, 10)
	require.NoError(t, err)
	assert.Equal(t, int64(2), page.Total, "rejected join must not leave an entry")
}

func TestJoinPreconditions(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(a *models.Appointment)
		user   func(a models.Appointment) uuid.UUID
		want   error
	}{
		{
			name: "belongs to another user",
			user: func(models.Appointment) uuid.UUID { return uuid.New() },
			want: queue.ErrUnauthorizedAccess,
		},
		{
			name:   "cancelled",
			mutate: func(a *models.Appointment) { a.Status = models.AppointmentCancelled },
			want:   queue.ErrAppointmentCancelled,
		},
		{
			name:   "completed",
			mutate: func(a *models.Appointment) { a.Status = models.AppointmentCompleted },
			want:   queue.ErrAppointmentAlreadyCompleted,
		},
		{
			name:   "dated yesterday",
			mutate: func(a *models.Appointment) { a.Date = a.Date.AddDate(0, 0, -1) },
			want:   queue.ErrAppointmentNotForToday,
		},
		{
			name:   "dated tomorrow",
			mutate: func(a *models.Appointment) { a.Date = a.Date.AddDate(0, 0, 1) },
			want:   queue.ErrAppointmentNotForToday,
		},
		{
			// the ownership check runs before the status check
			name: "cancelled and foreign",
			mutate: func(a *models.Appointment) {
				a.Status = models.AppointmentCancelled
			},
			user: func(models.Appointment) uuid.UUID { return uuid.New() },
			want: queue.ErrUnauthorizedAccess,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t, queue.Config{})
			var a models.Appointment
			if tt.mutate != nil {
				a = f.book(tt.mutate)
			} else {
				a = f.book()
			}
			user := a.UserID
			if tt.user != nil {
				user = tt.user(a)
			}

			_, err := f.engine.Join(context.Background(), queue.JoinRequest{AppointmentID: a.ID, UserID: user})
			require.ErrorIs(t, err, tt.want)

			sessions, err := f.engine.ListActiveSessions(context.Background(), nil)
			require.NoError(t, err)
			assert.Empty(t, sessions, "failed join must not create a session")
			assert.Equal(t, models.AppointmentScheduled, f.appointmentStatus(t, a.ID))
		})
	}
}

func TestJoinUnknownAppointment(t *testing.T) {
	f := newFixture(t, queue.Config{})
	_, err := f.engine.Join(context.Background(), queue.JoinRequest{AppointmentID: uuid.New(), UserID: uuid.New()})
	assert.ErrorIs(t, err, queue.ErrAppointmentNotFound)
	assert.Equal(t, "appointment_not_found", queue.Kind(err))
}

func TestJoinTwiceIsAlreadyInQueue(t *testing.T) {
	f := newFixture(t, queue.Config{})
	a := f.book()
	f.join(t, a)

	_, err := f.engine.Join(context.Background(), queue.JoinRequest{AppointmentID: a.ID, UserID: a.UserID})
	assert.ErrorIs(t, err, queue.ErrAlreadyInQueue)
}

func TestJoinConfirmsAppointmentAndPublishes(t *testing.T) {
	f := newFixture(t, queue.Config{})
	a, b := f.book(), f.book()

	admA := f.join(t, a)
	assert.Equal(t, models.EntryCalled, admA.Status, "first arrival at an idle window is called")
	assert.Equal(t, models.AppointmentConfirmed, f.appointmentStatus(t, a.ID))

	admB := f.join(t, b)
	assert.Equal(t, models.EntryWaiting, admB.Status)
	assert.Regexp(t, `^[A-Z]-002$`, admB.DisplayToken)
	assert.Equal(t, admA.DisplayToken[:1], admB.DisplayToken[:1])

	// 1 ahead * 20 min from the directory * 1.15
	assert.Equal(t, 23, admB.EstimatedWaitMinutes)
	assert.Equal(t, morning.Add(23*time.Minute-15*time.Minute), admB.EarliestCall)
	assert.Equal(t, morning.Add(23*time.Minute+15*time.Minute), admB.LatestCall)

	joined := f.events.ofType(notify.EventJoined)
	require.Len(t, joined, 2)
	assert.Equal(t, admB.EntryID, *joined[1].EntryID)
	assert.Equal(t, 1, joined[1].PeopleAhead)
	require.Len(t, f.events.ofType(notify.EventNowServing), 1)
}

func TestJoinSurvivesSideEffectFailures(t *testing.T) {
	f := newFixture(t, queue.Config{}, queue.WithNotifier(failingPublisher{}))
	f.appts.FailUpdates = true
	a := f.book()

	adm, err := f.engine.Join(context.Background(), queue.JoinRequest{AppointmentID: a.ID, UserID: a.UserID})
	require.NoError(t, err)
	assert.Equal(t, 1, adm.Position)
	assert.Equal(t, models.AppointmentScheduled, f.appointmentStatus(t, a.ID))
}

func TestJoinFallsBackWhenDirectoryMissesService(t *testing.T) {
	f := newFixture(t, queue.Config{})
	unknown := uuid.New()
	withUnknownService := func(a *models.Appointment) { a.ServiceID = &unknown }

	f.join(t, f.book(withUnknownService))
	f.join(t, f.book(withUnknownService))
	adm := f.join(t, f.book(withUnknownService))

	// 2 ahead * default 30 min * 1.15
	assert.Equal(t, 69, adm.EstimatedWaitMinutes)

	s, err := f.engine.GetSession(context.Background(), adm.SessionID)
	require.NoError(t, err)
	assert.Equal(t, 30.0, s.AverageServiceTimeMinutes)
	assert.Equal(t, f.dept, s.DepartmentID)
}

func TestConcurrentJoinsGetDistinctPositions(t *testing.T) {
	f := newFixture(t, queue.Config{})
	const n = 40

	appts := make([]models.Appointment, n)
	for i := range appts {
		appts[i] = f.book()
	}

	var wg sync.WaitGroup
	positions := make(chan int, n)
	for _, a := range appts {
		wg.Add(1)
		go func(a models.Appointment) {
			defer wg.Done()
			adm, err := f.engine.Join(context.Background(), queue.JoinRequest{AppointmentID: a.ID, UserID: a.UserID})
			if assert.NoError(t, err) {
				positions <- adm.Position
			}
		}(a)
	}
	wg.Wait()
	close(positions)

	seen := make(map[int]bool, n)
	for p := range positions {
		assert.False(t, seen[p], "position %d assigned twice", p)
		seen[p] = true
	}
	for p := 1; p <= n; p++ {
		assert.True(t, seen[p], "position %d missing", p)
	}
}

func TestConcurrentAdvancesSerialize(t *testing.T) {
	f := newFixture(t, queue.Config{})
	var sessionID uuid.UUID
	for i := 0; i < 10; i++ {
		sessionID = f.join(t, f.book()).SessionID
	}

	const advances = 6
	var wg sync.WaitGroup
	results := make(chan int, advances)
	for i := 0; i < advances; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			res, err := f.engine.Advance(context.Background(), sessionID, nil)
			if assert.NoError(t, err) {
				results <- res.CurrentPosition
			}
		}()
	}
	wg.Wait()
	close(results)

	seen := map[int]bool{}
	for p := range results {
		assert.False(t, seen[p], "two advances observed current_position %d", p)
		seen[p] = true
	}

	s, err := f.engine.GetSession(context.Background(), sessionID)
	require.NoError(t, err)
	assert.Equal(t, 1+advances, s.CurrentPosition)
	assert.Equal(t, advances, s.TotalServed)

	page, err := f.engine.ListEntries(context.Background(), sessionID, 1, 100)
	require.NoError(t, err)
	handling := 0
	for _, e := range page.Entries {
		switch {
		case e.Position <= advances:
			assert.Equal(t, models.EntryCompleted, e.Status)
		case e.Position == advances+1:
			assert.Equal(t, models.EntryCalled, e.Status)
			handling++
		default:
			assert.Equal(t, models.EntryWaiting, e.Status)
		}
	}
	assert.Equal(t, 1, handling)
}

func TestAdvanceRecomputesEstimatesAndRecordsServiceTime(t *testing.T) {
	f := newFixture(t, queue.Config{})
	ctx := context.Background()
	first := f.join(t, f.book())
	f.join(t, f.book())
	third := f.join(t, f.book())
	assert.Equal(t, 46, third.EstimatedWaitMinutes)

	f.clock.Add(8 * time.Minute)
	officer := uuid.New()
	res, err := f.engine.Advance(ctx, first.SessionID, &officer)
	require.NoError(t, err)
	require.Len(t, res.Completed, 1)
	assert.Equal(t, 1, res.Waiting)
	assert.Equal(t, officer, *res.NextPerson.OfficerID)

	// observed mean is now 8 minutes: 1 ahead * 8 * 1.15
	assert.Equal(t, 9, f.entry(t, third.EntryID).EstimatedWaitMinutes)

	s, err := f.engine.GetSession(ctx, first.SessionID)
	require.NoError(t, err)
	assert.Equal(t, 1, s.ObservedSamples)
	assert.InDelta(t, 8.0, s.EffectiveServiceMinutes(), 0.001)

	updates := f.events.ofType(notify.EventPositionUpdate)
	require.Len(t, updates, 1)
	require.Len(t, updates[0].Positions, 1)
	assert.Equal(t, third.EntryID, updates[0].Positions[0].EntryID)
	assert.Equal(t, 1, updates[0].Positions[0].PeopleAhead)

	assert.Equal(t, models.AppointmentCompleted, f.appointmentStatus(t, f.entry(t, first.EntryID).AppointmentID))
}

func TestAdvancePastTailAndRejoin(t *testing.T) {
	f := newFixture(t, queue.Config{})
	ctx := context.Background()
	first := f.join(t, f.book())

	res, err := f.engine.Advance(ctx, first.SessionID, nil)
	require.NoError(t, err)
	assert.Nil(t, res.NextPerson)
	assert.Equal(t, 2, res.CurrentPosition)

	res, err = f.engine.Advance(ctx, first.SessionID, nil)
	require.NoError(t, err)
	assert.Nil(t, res.NextPerson)
	assert.Equal(t, 3, res.CurrentPosition)

	// the newcomer takes the slot current_position points at
	late := f.join(t, f.book())
	assert.Equal(t, 3, late.Position)
	assert.Equal(t, 0, late.PeopleAhead)
	assert.Equal(t, models.EntryCalled, late.Status)
}

func TestPausedJoinAfterPastTailIsCalledOnResume(t *testing.T) {
	f := newFixture(t, queue.Config{})
	ctx := context.Background()
	first := f.join(t, f.book())
	sessionID := first.SessionID

	res, err := f.engine.Advance(ctx, sessionID, nil)
	require.NoError(t, err)
	require.Nil(t, res.NextPerson)
	require.Equal(t, 2, res.CurrentPosition)

	_, err = f.engine.SetSessionStatus(ctx, sessionID, models.SessionPaused, nil)
	require.NoError(t, err)

	// в паузе новичок не вызывается и не занимает пустой текущий слот
	b := f.join(t, f.book())
	assert.Equal(t, models.EntryWaiting, b.Status)
	assert.Equal(t, 3, b.Position)
	assert.Equal(t, 1, b.PeopleAhead)

	_, err = f.engine.SetSessionStatus(ctx, sessionID, models.SessionActive, nil)
	require.NoError(t, err)

	res, err = f.engine.Advance(ctx, sessionID, nil)
	require.NoError(t, err)
	assert.Equal(t, 3, res.CurrentPosition)
	require.NotNil(t, res.NextPerson)
	assert.Equal(t, b.EntryID, res.NextPerson.ID)

	c := f.join(t, f.book())
	assert.Equal(t, 4, c.Position)
	assert.Equal(t, models.EntryWaiting, c.Status)

	res, err = f.engine.Advance(ctx, sessionID, nil)
	require.NoError(t, err)
	assert.Equal(t, 4, res.CurrentPosition)
	require.NotNil(t, res.NextPerson)
	assert.Equal(t, c.EntryID, res.NextPerson.ID)

	assert.Equal(t, models.EntryCompleted, f.entry(t, b.EntryID).Status)
	assert.Equal(t, models.EntryCalled, f.entry(t, c.EntryID).Status)
}

func TestAdvanceErrors(t *testing.T) {
	f := newFixture(t, queue.Config{})
	ctx := context.Background()

	_, err := f.engine.Advance(ctx, uuid.New(), nil)
	assert.ErrorIs(t, err, queue.ErrSessionNotFound)

	adm := f.join(t, f.book())
	_, err = f.engine.SetSessionStatus(ctx, adm.SessionID, models.SessionPaused, nil)
	require.NoError(t, err)

	_, err = f.engine.Advance(ctx, adm.SessionID, nil)
	assert.ErrorIs(t, err, queue.ErrSessionNotActive)
}

func TestSetEntryStatusStateMachine(t *testing.T) {
	f := newFixture(t, queue.Config{})
	ctx := context.Background()
	called := f.join(t, f.book())
	waiting := f.join(t, f.book())

	_, err := f.engine.SetEntryStatus(ctx, waiting.EntryID, models.EntryServing, nil, nil)
	require.ErrorIs(t, err, queue.ErrInvalidStatusTransition)
	var te *queue.TransitionError
	require.True(t, errors.As(err, &te))
	assert.Equal(t, models.EntryWaiting, te.From)
	assert.Equal(t, models.EntryServing, te.To)

	f.clock.Add(4 * time.Minute)
	e, err := f.engine.SetEntryStatus(ctx, called.EntryID, models.EntryServing, map[string]any{"window": "3"}, nil)
	require.NoError(t, err)
	assert.Equal(t, models.EntryServing, e.Status)
	require.NotNil(t, e.ServedAt)
	assert.Equal(t, "3", e.Metadata["window"])

	f.clock.Add(6 * time.Minute)
	e, err = f.engine.SetEntryStatus(ctx, called.EntryID, models.EntryCompleted, nil, nil)
	require.NoError(t, err)
	assert.Equal(t, models.EntryCompleted, e.Status)
	assert.Equal(t, models.AppointmentCompleted, f.appointmentStatus(t, e.AppointmentID))

	s, err := f.engine.GetSession(ctx, called.SessionID)
	require.NoError(t, err)
	assert.InDelta(t, 6.0, s.EffectiveServiceMinutes(), 0.001)

	_, err = f.engine.SetEntryStatus(ctx, called.EntryID, models.EntrySkipped, nil, nil)
	assert.ErrorIs(t, err, queue.ErrInvalidStatusTransition, "terminal entries stay terminal")

	e, err = f.engine.SetEntryStatus(ctx, waiting.EntryID, models.EntrySkipped, map[string]any{"reason": "no show"}, nil)
	require.NoError(t, err)
	assert.Equal(t, models.EntrySkipped, e.Status)

	_, err = f.engine.SetEntryStatus(ctx, uuid.New(), models.EntryCalled, nil, nil)
	assert.ErrorIs(t, err, queue.ErrEntryNotFound)
}

func TestSetEntryStatusCalledNotifies(t *testing.T) {
	f := newFixture(t, queue.Config{})
	f.join(t, f.book())
	second := f.join(t, f.book())

	officer := uuid.New()
	_, err := f.engine.SetEntryStatus(context.Background(), second.EntryID, models.EntryCalled, nil, &officer)
	require.NoError(t, err)

	serving := f.events.ofType(notify.EventNowServing)
	require.Len(t, serving, 2)
	assert.Equal(t, second.EntryID, *serving[1].EntryID)
	assert.Equal(t, officer, *serving[1].OfficerID)
}

func TestGetStatus(t *testing.T) {
	f := newFixture(t, queue.Config{})
	ctx := context.Background()
	f.join(t, f.book())
	a := f.book()
	adm := f.join(t, a)

	first, err := f.engine.GetStatus(ctx, a.UserID, nil)
	require.NoError(t, err)
	second, err := f.engine.GetStatus(ctx, a.UserID, &a.ID)
	require.NoError(t, err)

	assert.Equal(t, adm.EntryID, first.EntryID)
	assert.Equal(t, first.Position, second.Position)
	assert.Equal(t, first.PeopleAhead, second.PeopleAhead)
	assert.Equal(t, 1, first.PeopleAhead)
	assert.Equal(t, 23, first.EstimatedWaitMinutes)
	assert.Equal(t, 0.5, first.Confidence)
	assert.Equal(t, "good", first.Momentum)
	assert.Equal(t, 1, first.Waiting)
	assert.Equal(t, 1, first.Serving)

	_, err = f.engine.GetStatus(ctx, uuid.New(), nil)
	assert.ErrorIs(t, err, queue.ErrQueueEntryNotFound)

	other := uuid.New()
	_, err = f.engine.GetStatus(ctx, a.UserID, &other)
	assert.ErrorIs(t, err, queue.ErrQueueEntryNotFound)

	f.clock.Add(24 * time.Hour)
	_, err = f.engine.GetStatus(ctx, a.UserID, nil)
	assert.ErrorIs(t, err, queue.ErrQueueEntryNotFound, "yesterday's entry is not today's")
}

func TestSetAverageServiceTime(t *testing.T) {
	f := newFixture(t, queue.Config{})
	ctx := context.Background()
	f.join(t, f.book())
	f.join(t, f.book())
	a := f.book()
	adm := f.join(t, a)

	manual := 10.0
	s, err := f.engine.SetAverageServiceTime(ctx, adm.SessionID, &manual)
	require.NoError(t, err)
	require.NotNil(t, s.ManualServiceMinutes)

	view, err := f.engine.GetStatus(ctx, a.UserID, nil)
	require.NoError(t, err)
	assert.Equal(t, 23, view.EstimatedWaitMinutes)
	assert.Equal(t, 0.6, view.Confidence)

	s, err = f.engine.SetAverageServiceTime(ctx, adm.SessionID, nil)
	require.NoError(t, err)
	assert.Nil(t, s.ManualServiceMinutes)

	bad := -1.0
	_, err = f.engine.SetAverageServiceTime(ctx, adm.SessionID, &bad)
	assert.Error(t, err)
}

func TestSessionLifecycle(t *testing.T) {
	f := newFixture(t, queue.Config{})
	ctx := context.Background()
	adm := f.join(t, f.book())

	s, err := f.engine.SetSessionStatus(ctx, adm.SessionID, models.SessionPaused, nil)
	require.NoError(t, err)
	assert.Equal(t, models.SessionPaused, s.Status)

	// paused sessions still admit arrivals
	lateAppt := f.book()
	late := f.join(t, lateAppt)
	assert.Equal(t, models.EntryWaiting, late.Status)

	active, err := f.engine.ListActiveSessions(ctx, &f.dept)
	require.NoError(t, err)
	require.Len(t, active, 1)

	other := uuid.New()
	active, err = f.engine.ListActiveSessions(ctx, &other)
	require.NoError(t, err)
	assert.Empty(t, active)

	s, err = f.engine.SetSessionStatus(ctx, adm.SessionID, models.SessionClosed, nil)
	require.NoError(t, err)
	assert.NotNil(t, s.SessionEnd)

	// закрытие вручную завершает открытые записи, как и конец дня
	for _, id := range []uuid.UUID{adm.EntryID, late.EntryID} {
		closed := f.entry(t, id)
		assert.Equal(t, models.EntrySkipped, closed.Status)
		assert.Equal(t, "officer", closed.Metadata["closed_by"])
	}
	_, err = f.engine.GetStatus(ctx, lateAppt.UserID, nil)
	assert.ErrorIs(t, err, queue.ErrQueueEntryNotFound)
	active, err = f.engine.ListActiveSessions(ctx, &f.dept)
	require.NoError(t, err)
	assert.Empty(t, active)

	// повторное закрытие ничего не меняет
	again, err := f.engine.SetSessionStatus(ctx, adm.SessionID, models.SessionClosed, nil)
	require.NoError(t, err)
	assert.Equal(t, s.SessionEnd, again.SessionEnd)

	_, err = f.engine.SetSessionStatus(ctx, adm.SessionID, models.SessionActive, nil)
	assert.ErrorIs(t, err, queue.ErrSessionNotActive)

	b := f.book()
	_, err = f.engine.Join(ctx, queue.JoinRequest{AppointmentID: b.ID, UserID: b.UserID})
	assert.ErrorIs(t, err, queue.ErrSessionNotActive)

	status := f.events.ofType(notify.EventOfficerStatus)
	require.Len(t, status, 3)
	assert.Equal(t, "closed", status[1].SessionStatus)
}

func TestCloseDay(t *testing.T) {
	f := newFixture(t, queue.Config{})
	ctx := context.Background()

	serving := f.join(t, f.book())
	waiting := f.join(t, f.book())
	_, err := f.engine.SetEntryStatus(ctx, serving.EntryID, models.EntryServing, nil, nil)
	require.NoError(t, err)

	n, err := f.engine.CloseDay(ctx, morning)
	require.NoError(t, err)
	assert.Equal(t, 0, n, "today's session stays open")

	f.clock.Add(24 * time.Hour)
	n, err = f.engine.CloseDay(ctx, f.clock.Now())
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	s, err := f.engine.GetSession(ctx, serving.SessionID)
	require.NoError(t, err)
	assert.Equal(t, models.SessionClosed, s.Status)

	done := f.entry(t, serving.EntryID)
	assert.Equal(t, models.EntryCompleted, done.Status)
	assert.Equal(t, "end_of_day", done.Metadata["closed_by"])
	assert.Equal(t, models.EntrySkipped, f.entry(t, waiting.EntryID).Status)

	n, err = f.engine.CloseDay(ctx, f.clock.Now())
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestListEntries(t *testing.T) {
	f := newFixture(t, queue.Config{DefaultPageSize: 2, MaxPageSize: 3})
	ctx := context.Background()
	var sessionID uuid.UUID
	for i := 0; i < 5; i++ {
		sessionID = f.join(t, f.book()).SessionID
	}

	page, err := f.engine.ListEntries(ctx, sessionID, 0, 0)
	require.NoError(t, err)
	assert.Equal(t, 1, page.Page)
	assert.Equal(t, 2, page.Limit)
	assert.Len(t, page.Entries, 2)

	page, err = f.engine.ListEntries(ctx, sessionID, 2, 50)
	require.NoError(t, err)
	assert.Equal(t, 3, page.Limit)
	require.Len(t, page.Entries, 2)
	assert.Equal(t, 4, page.Entries[0].Position)

	_, err = f.engine.ListEntries(ctx, uuid.New(), 1, 10)
	assert.ErrorIs(t, err, queue.ErrSessionNotFound)
}

func TestOperationTimeout(t *testing.T) {
	f := newFixture(t, queue.Config{OperationTimeout: 30 * time.Millisecond})
	adm := f.join(t, f.book())

	held := make(chan struct{})
	release := make(chan struct{})
	go func() {
		_ = f.store.InSession(context.Background(), adm.SessionID, func(queue.Store) error {
			close(held)
			<-release
			return nil
		})
	}()
	<-held
	defer close(release)

	_, err := f.engine.Advance(context.Background(), adm.SessionID, nil)
	require.ErrorIs(t, err, queue.ErrOperationTimeout)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Equal(t, "queue_operation_timeout", queue.Kind(err))
}
