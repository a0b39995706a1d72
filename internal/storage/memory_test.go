package storage

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gov_queue/internal/models"
	"gov_queue/internal/queue"
)

var testDay = time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC)

func newSession(t *testing.T, s *MemoryStore) *models.QueueSession {
	t.Helper()
	sess, err := s.Sessions().GetOrCreate(context.Background(),
		queue.SessionKey{DepartmentID: uuid.New(), Date: testDay},
		queue.SessionDefaults{MaxCapacity: 10, AverageServiceMinutes: 20, Start: testDay})
	require.NoError(t, err)
	return sess
}

func entryAt(sessionID uuid.UUID, position int) *models.QueueEntry {
	return &models.QueueEntry{
		QueueSessionID: sessionID,
		AppointmentID:  uuid.New(),
		UserID:         uuid.New(),
		Position:       position,
		Status:         models.EntryWaiting,
	}
}

func TestGetOrCreateConverges(t *testing.T) {
	s := NewMemoryStore()
	key := queue.SessionKey{DepartmentID: uuid.New(), Date: testDay}

	var wg sync.WaitGroup
	ids := make([]uuid.UUID, 20)
	for i := range ids {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			sess, err := s.Sessions().GetOrCreate(context.Background(), key, queue.SessionDefaults{MaxCapacity: 5})
			if assert.NoError(t, err) {
				ids[i] = sess.ID
			}
		}(i)
	}
	wg.Wait()

	for _, id := range ids {
		assert.Equal(t, ids[0], id)
	}
	all, err := s.Sessions().List(context.Background(), queue.SessionFilter{})
	require.NoError(t, err)
	assert.Len(t, all, 1)
}

func TestInSessionCommitsOnSuccess(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	sess := newSession(t, s)

	err := s.InSession(ctx, sess.ID, func(tx queue.Store) error {
		pos, err := tx.Entries().NextPosition(ctx, sess.ID)
		require.NoError(t, err)
		assert.Equal(t, 1, pos)
		if err := tx.Entries().Insert(ctx, entryAt(sess.ID, pos)); err != nil {
			return err
		}
		_, err = tx.Sessions().IncrementPositionAndServed(ctx, sess.ID)
		return err
	})
	require.NoError(t, err)

	got, err := s.Sessions().Get(ctx, sess.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, got.CurrentPosition)
	assert.Equal(t, 1, got.TotalServed)

	counts, err := s.Entries().CountByStatus(ctx, sess.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, counts[models.EntryWaiting])
}

func TestInSessionRollsBackOnError(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	sess := newSession(t, s)
	boom := errors.New("boom")

	err := s.InSession(ctx, sess.ID, func(tx queue.Store) error {
		require.NoError(t, tx.Entries().Insert(ctx, entryAt(sess.ID, 1)))
		_, err := tx.Sessions().SetStatus(ctx, sess.ID, models.SessionClosed, testDay)
		require.NoError(t, err)
		return boom
	})
	assert.ErrorIs(t, err, boom)

	got, err := s.Sessions().Get(ctx, sess.ID)
	require.NoError(t, err)
	assert.Equal(t, models.SessionActive, got.Status)

	next, err := s.Entries().NextPosition(ctx, sess.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, next)
}

func TestInSessionUnknownSession(t *testing.T) {
	s := NewMemoryStore()
	err := s.InSession(context.Background(), uuid.New(), func(queue.Store) error { return nil })
	assert.ErrorIs(t, err, queue.ErrSessionNotFound)
}

func TestInSessionLockRespectsContext(t *testing.T) {
	s := NewMemoryStore()
	sess := newSession(t, s)

	held := make(chan struct{})
	release := make(chan struct{})
	go func() {
		_ = s.InSession(context.Background(), sess.ID, func(queue.Store) error {
			close(held)
			<-release
			return nil
		})
	}()
	<-held

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	err := s.InSession(ctx, sess.ID, func(queue.Store) error { return nil })
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	close(release)
}

func TestInSessionSerializesPositions(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	sess := newSession(t, s)

	const n = 30
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := s.InSession(ctx, sess.ID, func(tx queue.Store) error {
				pos, err := tx.Entries().NextPosition(ctx, sess.ID)
				if err != nil {
					return err
				}
				return tx.Entries().Insert(ctx, entryAt(sess.ID, pos))
			})
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	page, err := s.Entries().List(ctx, sess.ID, 1, 100)
	require.NoError(t, err)
	require.Len(t, page.Entries, n)
	for i, e := range page.Entries {
		assert.Equal(t, i+1, e.Position)
	}
}

func TestInsertRejectsDuplicateActiveAppointment(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	sess := newSession(t, s)

	first := entryAt(sess.ID, 1)
	require.NoError(t, s.Entries().Insert(ctx, first))

	dup := entryAt(sess.ID, 2)
	dup.AppointmentID = first.AppointmentID
	assert.ErrorIs(t, s.Entries().Insert(ctx, dup), queue.ErrDuplicateAppointment)

	// после завершения запись того же приёма снова допустима
	_, err := s.Entries().UpdateStatus(ctx, first.ID, queue.StatusChange{Status: models.EntrySkipped, At: testDay})
	require.NoError(t, err)
	assert.NoError(t, s.Entries().Insert(ctx, dup))
}

func TestUpdateStatusStampsAndMergesMetadata(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	sess := newSession(t, s)
	e := entryAt(sess.ID, 1)
	require.NoError(t, s.Entries().Insert(ctx, e))

	officer := uuid.New()
	at := testDay.Add(9 * time.Hour)
	got, err := s.Entries().UpdateStatus(ctx, e.ID, queue.StatusChange{
		Status:    models.EntryCalled,
		At:        at,
		OfficerID: &officer,
		Metadata:  map[string]any{"window": 3},
	})
	require.NoError(t, err)
	assert.Equal(t, models.EntryCalled, got.Status)
	require.NotNil(t, got.CalledAt)
	assert.Equal(t, at, *got.CalledAt)
	assert.Equal(t, officer, *got.OfficerID)

	got, err = s.Entries().UpdateStatus(ctx, e.ID, queue.StatusChange{
		Status:   models.EntryServing,
		At:       at.Add(time.Minute),
		Metadata: map[string]any{"note": "docs ok"},
	})
	require.NoError(t, err)
	assert.Equal(t, 3, got.Metadata["window"])
	assert.Equal(t, "docs ok", got.Metadata["note"])

	// возвращаемые значения - копии
	got.Metadata["window"] = 7
	again, err := s.Entries().Get(ctx, e.ID)
	require.NoError(t, err)
	assert.Equal(t, 3, again.Metadata["window"])
}

func TestFindActiveForUser(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	sess := newSession(t, s)

	e := entryAt(sess.ID, 1)
	require.NoError(t, s.Entries().Insert(ctx, e))

	found, err := s.Entries().FindActiveForUser(ctx, e.UserID, testDay, nil)
	require.NoError(t, err)
	require.NotNil(t, found)
	assert.Equal(t, e.ID, found.ID)

	other := uuid.New()
	found, err = s.Entries().FindActiveForUser(ctx, e.UserID, testDay, &other)
	require.NoError(t, err)
	assert.Nil(t, found)

	found, err = s.Entries().FindActiveForUser(ctx, e.UserID, testDay.AddDate(0, 0, 1), nil)
	require.NoError(t, err)
	assert.Nil(t, found)
}

func TestListFiltersAndPaging(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	sess := newSession(t, s)
	for pos := 1; pos <= 5; pos++ {
		require.NoError(t, s.Entries().Insert(ctx, entryAt(sess.ID, pos)))
	}

	page, err := s.Entries().List(ctx, sess.ID, 2, 2)
	require.NoError(t, err)
	assert.Equal(t, int64(5), page.Total)
	require.Len(t, page.Entries, 2)
	assert.Equal(t, 3, page.Entries[0].Position)

	page, err = s.Entries().List(ctx, sess.ID, 4, 2)
	require.NoError(t, err)
	assert.Empty(t, page.Entries)

	before := testDay.AddDate(0, 0, 1)
	stale, err := s.Sessions().List(ctx, queue.SessionFilter{Before: &before, Statuses: []models.SessionStatus{models.SessionActive}})
	require.NoError(t, err)
	assert.Len(t, stale, 1)

	stale, err = s.Sessions().List(ctx, queue.SessionFilter{Before: &testDay})
	require.NoError(t, err)
	assert.Empty(t, stale)
}
