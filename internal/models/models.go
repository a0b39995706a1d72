package models

import "time"

// SessionStatus статус дневной сессии очереди.
type SessionStatus string

const (
	SessionActive SessionStatus = "active"
	SessionPaused SessionStatus = "paused"
	SessionClosed SessionStatus = "closed"
)

func (s SessionStatus) Valid() bool {
	switch s {
	case SessionActive, SessionPaused, SessionClosed:
		return true
	}
	return false
}

// EntryStatus статус записи гражданина в очереди.
type EntryStatus string

const (
	EntryWaiting   EntryStatus = "waiting"
	EntryCalled    EntryStatus = "called"
	EntryServing   EntryStatus = "serving"
	EntryCompleted EntryStatus = "completed"
	EntrySkipped   EntryStatus = "skipped"
)

// Допустимые переходы: waiting -> called -> serving -> completed,
// waiting -> skipped, called -> skipped.
var entryTransitions = map[EntryStatus][]EntryStatus{
	EntryWaiting: {EntryCalled, EntrySkipped},
	EntryCalled:  {EntryServing, EntrySkipped},
	EntryServing: {EntryCompleted},
}

func (s EntryStatus) Valid() bool {
	switch s {
	case EntryWaiting, EntryCalled, EntryServing, EntryCompleted, EntrySkipped:
		return true
	}
	return false
}

// Terminal сообщает, что из статуса нет переходов.
func (s EntryStatus) Terminal() bool {
	return s == EntryCompleted || s == EntrySkipped
}

// InQueue - запись занимает место в очереди (учитывается в max_capacity).
func (s EntryStatus) InQueue() bool {
	return s == EntryWaiting || s == EntryCalled || s == EntryServing
}

// Handling - гражданин сейчас у окна.
func (s EntryStatus) Handling() bool {
	return s == EntryCalled || s == EntryServing
}

// CanTransition проверяет переход по конечному автомату записи.
func CanTransition(from, to EntryStatus) bool {
	for _, next := range entryTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// ActiveEntryStatuses - статусы, при которых запись считается активной в очереди.
var ActiveEntryStatuses = []EntryStatus{EntryWaiting, EntryCalled, EntryServing}

// DayOf приводит момент времени к календарному дню в часовом поясе loc
// (полночь UTC с той же датой), в таком виде хранится session_date.
func DayOf(t time.Time, loc *time.Location) time.Time {
	if loc != nil {
		t = t.In(loc)
	}
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
