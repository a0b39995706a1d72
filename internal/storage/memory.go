package storage

import (
	"cmp"
	"context"
	"fmt"
	"maps"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"

	"gov_queue/internal/models"
	"gov_queue/internal/queue"
)

// MemoryStore - хранилище очереди в памяти процесса (dev-режим и тесты).
//
// Блокировка сессии - канал ёмкостью 1 на каждую сессию, поэтому ожидание
// блокировки прерывается по ctx. Транзакция работает с копией сессии и её
// записей и переносит изменения в общее состояние только при успехе fn.
type MemoryStore struct {
	mu   sync.RWMutex
	data memView

	lockMu sync.Mutex
	locks  map[uuid.UUID]chan struct{}
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		data:  newMemView(),
		locks: make(map[uuid.UUID]chan struct{}),
	}
}

func (s *MemoryStore) Sessions() queue.SessionStore { return memSessions{a: s} }
func (s *MemoryStore) Entries() queue.EntryStore    { return memEntries{a: s} }

func (s *MemoryStore) read(fn func(v *memView) error) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return fn(&s.data)
}

func (s *MemoryStore) write(fn func(v *memView) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return fn(&s.data)
}

func (s *MemoryStore) InSession(ctx context.Context, sessionID uuid.UUID, fn func(tx queue.Store) error) error {
	unlock, err := s.lock(ctx, sessionID)
	if err != nil {
		return err
	}
	defer unlock()

	tx := &memTx{sessionID: sessionID, view: newMemView()}
	s.mu.RLock()
	session, ok := s.data.sessions[sessionID]
	if ok {
		tx.view.sessions[sessionID] = cloneSession(session)
		for _, e := range s.data.entries {
			if e.QueueSessionID == sessionID {
				tx.view.entries[e.ID] = cloneEntry(e)
			}
		}
	}
	s.mu.RUnlock()
	if !ok {
		return queue.ErrSessionNotFound
	}

	if err := fn(tx); err != nil {
		return err
	}
	// как и у БД, коммит с отменённым контекстом не проходит
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	maps.Copy(s.data.sessions, tx.view.sessions)
	maps.Copy(s.data.entries, tx.view.entries)
	return nil
}

func (s *MemoryStore) lock(ctx context.Context, sessionID uuid.UUID) (func(), error) {
	s.lockMu.Lock()
	ch, ok := s.locks[sessionID]
	if !ok {
		ch = make(chan struct{}, 1)
		s.locks[sessionID] = ch
	}
	s.lockMu.Unlock()

	select {
	case ch <- struct{}{}:
		return func() { <-ch }, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// memTx - единица работы над одной заблокированной сессией.
type memTx struct {
	mu        sync.Mutex
	sessionID uuid.UUID
	view      memView
}

func (t *memTx) Sessions() queue.SessionStore { return memSessions{a: t} }
func (t *memTx) Entries() queue.EntryStore    { return memEntries{a: t} }

func (t *memTx) InSession(ctx context.Context, sessionID uuid.UUID, fn func(tx queue.Store) error) error {
	if sessionID != t.sessionID {
		return fmt.Errorf("session %s: nested lock inside session %s", sessionID, t.sessionID)
	}
	return fn(t)
}

func (t *memTx) read(fn func(v *memView) error) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	return fn(&t.view)
}

func (t *memTx) write(fn func(v *memView) error) error {
	return t.read(fn)
}

type memAccess interface {
	read(fn func(v *memView) error) error
	write(fn func(v *memView) error) error
}

type memView struct {
	sessions map[uuid.UUID]*models.QueueSession
	entries  map[uuid.UUID]*models.QueueEntry
}

func newMemView() memView {
	return memView{
		sessions: make(map[uuid.UUID]*models.QueueSession),
		entries:  make(map[uuid.UUID]*models.QueueEntry),
	}
}

func (v *memView) session(id uuid.UUID) (*models.QueueSession, error) {
	s, ok := v.sessions[id]
	if !ok {
		return nil, queue.ErrSessionNotFound
	}
	return s, nil
}

// sessionEntries возвращает записи сессии по возрастанию позиции.
func (v *memView) sessionEntries(sessionID uuid.UUID, keep func(e *models.QueueEntry) bool) []*models.QueueEntry {
	var out []*models.QueueEntry
	for _, e := range v.entries {
		if e.QueueSessionID == sessionID && (keep == nil || keep(e)) {
			out = append(out, e)
		}
	}
	slices.SortFunc(out, func(a, b *models.QueueEntry) int { return cmp.Compare(a.Position, b.Position) })
	return out
}

func cloneSession(s *models.QueueSession) *models.QueueSession {
	c := *s
	return &c
}

func cloneEntry(e *models.QueueEntry) *models.QueueEntry {
	c := *e
	if e.Metadata != nil {
		c.Metadata = maps.Clone(e.Metadata)
	}
	return &c
}

type memSessions struct {
	a memAccess
}

func (r memSessions) GetOrCreate(ctx context.Context, key queue.SessionKey, d queue.SessionDefaults) (*models.QueueSession, error) {
	scope := models.ScopeKey(key.DepartmentID, key.ServiceID, key.Date)
	var out *models.QueueSession
	err := r.a.write(func(v *memView) error {
		for _, s := range v.sessions {
			if s.ScopeKey == scope {
				out = cloneSession(s)
				return nil
			}
		}
		now := time.Now().UTC()
		s := &models.QueueSession{
			ID:                        uuid.New(),
			ScopeKey:                  scope,
			DepartmentID:              key.DepartmentID,
			ServiceID:                 key.ServiceID,
			SessionDate:               key.Date,
			Status:                    models.SessionActive,
			MaxCapacity:               d.MaxCapacity,
			AverageServiceTimeMinutes: d.AverageServiceMinutes,
			SessionStart:              d.Start,
			CreatedAt:                 now,
			UpdatedAt:                 now,
		}
		v.sessions[s.ID] = s
		out = cloneSession(s)
		return nil
	})
	return out, err
}

func (r memSessions) Get(ctx context.Context, id uuid.UUID) (*models.QueueSession, error) {
	var out *models.QueueSession
	err := r.a.read(func(v *memView) error {
		s, err := v.session(id)
		if err != nil {
			return err
		}
		out = cloneSession(s)
		return nil
	})
	return out, err
}

func (r memSessions) List(ctx context.Context, f queue.SessionFilter) ([]models.QueueSession, error) {
	var out []models.QueueSession
	err := r.a.read(func(v *memView) error {
		for _, s := range v.sessions {
			if f.DepartmentID != nil && s.DepartmentID != *f.DepartmentID {
				continue
			}
			if f.Date != nil && !s.SessionDate.Equal(*f.Date) {
				continue
			}
			if f.Before != nil && !s.SessionDate.Before(*f.Before) {
				continue
			}
			if len(f.Statuses) > 0 && !slices.Contains(f.Statuses, s.Status) {
				continue
			}
			out = append(out, *cloneSession(s))
		}
		return nil
	})
	slices.SortFunc(out, func(a, b models.QueueSession) int {
		if c := a.SessionDate.Compare(b.SessionDate); c != 0 {
			return c
		}
		return a.CreatedAt.Compare(b.CreatedAt)
	})
	return out, err
}

func (r memSessions) SetStatus(ctx context.Context, id uuid.UUID, status models.SessionStatus, at time.Time) (*models.QueueSession, error) {
	var out *models.QueueSession
	err := r.a.write(func(v *memView) error {
		s, err := v.session(id)
		if err != nil {
			return err
		}
		s.Status = status
		s.UpdatedAt = at
		if status == models.SessionClosed {
			s.SessionEnd = &at
		}
		out = cloneSession(s)
		return nil
	})
	return out, err
}

func (r memSessions) IncrementPositionAndServed(ctx context.Context, id uuid.UUID) (int, error) {
	var current int
	err := r.a.write(func(v *memView) error {
		s, err := v.session(id)
		if err != nil {
			return err
		}
		s.CurrentPosition++
		s.TotalServed++
		current = s.CurrentPosition
		return nil
	})
	return current, err
}

func (r memSessions) SetCurrentPosition(ctx context.Context, id uuid.UUID, position int) error {
	return r.a.write(func(v *memView) error {
		s, err := v.session(id)
		if err != nil {
			return err
		}
		if position > s.CurrentPosition {
			s.CurrentPosition = position
		}
		return nil
	})
}

func (r memSessions) RecordServiceTime(ctx context.Context, id uuid.UUID, minutes float64) error {
	return r.a.write(func(v *memView) error {
		s, err := v.session(id)
		if err != nil {
			return err
		}
		s.RecordServiceTime(minutes)
		return nil
	})
}

func (r memSessions) SetManualServiceMinutes(ctx context.Context, id uuid.UUID, minutes *float64) (*models.QueueSession, error) {
	var out *models.QueueSession
	err := r.a.write(func(v *memView) error {
		s, err := v.session(id)
		if err != nil {
			return err
		}
		if minutes != nil {
			m := *minutes
			minutes = &m
		}
		s.ManualServiceMinutes = minutes
		out = cloneSession(s)
		return nil
	})
	return out, err
}

type memEntries struct {
	a memAccess
}

func (r memEntries) NextPosition(ctx context.Context, sessionID uuid.UUID) (int, error) {
	next := 1
	err := r.a.read(func(v *memView) error {
		for _, e := range v.entries {
			if e.QueueSessionID == sessionID && e.Position >= next {
				next = e.Position + 1
			}
		}
		return nil
	})
	return next, err
}

func (r memEntries) Insert(ctx context.Context, entry *models.QueueEntry) error {
	return r.a.write(func(v *memView) error {
		if _, err := v.session(entry.QueueSessionID); err != nil {
			return err
		}
		for _, e := range v.entries {
			if e.QueueSessionID != entry.QueueSessionID {
				continue
			}
			if e.AppointmentID == entry.AppointmentID && e.Status.InQueue() {
				return queue.ErrDuplicateAppointment
			}
			if e.Position == entry.Position {
				return fmt.Errorf("position %d already taken in session %s", entry.Position, entry.QueueSessionID)
			}
		}
		if entry.ID == uuid.Nil {
			entry.ID = uuid.New()
		}
		if entry.CreatedAt.IsZero() {
			entry.CreatedAt = time.Now().UTC()
		}
		if entry.UpdatedAt.IsZero() {
			entry.UpdatedAt = entry.CreatedAt
		}
		v.entries[entry.ID] = cloneEntry(entry)
		return nil
	})
}

func (r memEntries) Get(ctx context.Context, id uuid.UUID) (*models.QueueEntry, error) {
	var out *models.QueueEntry
	err := r.a.read(func(v *memView) error {
		e, ok := v.entries[id]
		if !ok {
			return queue.ErrEntryNotFound
		}
		out = cloneEntry(e)
		return nil
	})
	return out, err
}

func (r memEntries) UpdateStatus(ctx context.Context, id uuid.UUID, change queue.StatusChange) (*models.QueueEntry, error) {
	var out *models.QueueEntry
	err := r.a.write(func(v *memView) error {
		e, ok := v.entries[id]
		if !ok {
			return queue.ErrEntryNotFound
		}
		e.Stamp(change.Status, change.At)
		if change.OfficerID != nil {
			officer := *change.OfficerID
			e.OfficerID = &officer
		}
		if len(change.Metadata) > 0 {
			if e.Metadata == nil {
				e.Metadata = map[string]any{}
			}
			maps.Copy(e.Metadata, change.Metadata)
		}
		out = cloneEntry(e)
		return nil
	})
	return out, err
}

func (r memEntries) UpdateEstimates(ctx context.Context, estimates map[uuid.UUID]int) error {
	return r.a.write(func(v *memView) error {
		for id, minutes := range estimates {
			if e, ok := v.entries[id]; ok {
				e.EstimatedWaitMinutes = minutes
			}
		}
		return nil
	})
}

func (r memEntries) List(ctx context.Context, sessionID uuid.UUID, page, limit int) (*queue.EntryPage, error) {
	out := &queue.EntryPage{Page: page, Limit: limit}
	err := r.a.read(func(v *memView) error {
		all := v.sessionEntries(sessionID, nil)
		out.Total = int64(len(all))
		from := min((page-1)*limit, len(all))
		to := min(from+limit, len(all))
		out.Entries = make([]models.QueueEntry, 0, to-from)
		for _, e := range all[from:to] {
			out.Entries = append(out.Entries, *cloneEntry(e))
		}
		return nil
	})
	return out, err
}

func (r memEntries) ListByStatus(ctx context.Context, sessionID uuid.UUID, statuses ...models.EntryStatus) ([]models.QueueEntry, error) {
	var out []models.QueueEntry
	err := r.a.read(func(v *memView) error {
		for _, e := range v.sessionEntries(sessionID, func(e *models.QueueEntry) bool {
			return len(statuses) == 0 || slices.Contains(statuses, e.Status)
		}) {
			out = append(out, *cloneEntry(e))
		}
		return nil
	})
	return out, err
}

func (r memEntries) CountByStatus(ctx context.Context, sessionID uuid.UUID) (queue.StatusCounts, error) {
	counts := queue.StatusCounts{}
	err := r.a.read(func(v *memView) error {
		for _, e := range v.entries {
			if e.QueueSessionID == sessionID {
				counts[e.Status]++
			}
		}
		return nil
	})
	return counts, err
}

func (r memEntries) FindCurrentServing(ctx context.Context, sessionID uuid.UUID, currentPosition int) (*models.QueueEntry, error) {
	return r.find(func(v *memView, e *models.QueueEntry) bool {
		return e.QueueSessionID == sessionID && e.Position == currentPosition && e.Status.Handling()
	})
}

func (r memEntries) FindByPosition(ctx context.Context, sessionID uuid.UUID, position int) (*models.QueueEntry, error) {
	return r.find(func(v *memView, e *models.QueueEntry) bool {
		return e.QueueSessionID == sessionID && e.Position == position
	})
}

func (r memEntries) FindActiveByAppointment(ctx context.Context, appointmentID uuid.UUID) (*models.QueueEntry, error) {
	return r.find(func(v *memView, e *models.QueueEntry) bool {
		return e.AppointmentID == appointmentID && e.Status.InQueue()
	})
}

func (r memEntries) FindActiveForUser(ctx context.Context, userID uuid.UUID, day time.Time, appointmentID *uuid.UUID) (*models.QueueEntry, error) {
	return r.find(func(v *memView, e *models.QueueEntry) bool {
		if e.UserID != userID || (e.Status != models.EntryWaiting && e.Status != models.EntryCalled) {
			return false
		}
		if appointmentID != nil && e.AppointmentID != *appointmentID {
			return false
		}
		s, ok := v.sessions[e.QueueSessionID]
		return ok && s.SessionDate.Equal(day)
	})
}

// find возвращает самую свежую подходящую запись или nil.
func (r memEntries) find(match func(v *memView, e *models.QueueEntry) bool) (*models.QueueEntry, error) {
	var out *models.QueueEntry
	err := r.a.read(func(v *memView) error {
		for _, e := range v.entries {
			if !match(v, e) {
				continue
			}
			if out == nil || e.CreatedAt.After(out.CreatedAt) {
				out = e
			}
		}
		if out != nil {
			out = cloneEntry(out)
		}
		return nil
	})
	return out, err
}

var (
	_ queue.Store = (*MemoryStore)(nil)
	_ queue.Store = (*GormStore)(nil)
)
