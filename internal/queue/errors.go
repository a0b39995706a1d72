package queue

import (
	"context"
	"errors"
	"fmt"

	"gov_queue/internal/models"
)

var (
	ErrAppointmentNotFound = errors.New("appointment not found")
	ErrSessionNotFound     = errors.New("queue session not found")
	ErrEntryNotFound       = errors.New("queue entry not found")
	ErrQueueEntryNotFound  = errors.New("no active queue entry for citizen today")

	ErrUnauthorizedAccess = errors.New("appointment belongs to another user")

	ErrAppointmentCancelled        = errors.New("appointment is cancelled")
	ErrAppointmentAlreadyCompleted = errors.New("appointment is already completed")
	ErrAppointmentNotForToday      = errors.New("appointment is not scheduled for today")
	ErrAlreadyInQueue              = errors.New("appointment is already in a queue")
	ErrDuplicateAppointment        = errors.New("appointment already has an active entry in this session")
	ErrSessionNotActive            = errors.New("queue session is not active")
	ErrInvalidStatusTransition     = errors.New("invalid status transition")

	ErrQueueFull = errors.New("queue is full")

	ErrOperationTimeout = errors.New("queue operation timed out")
)

// TransitionError reports a rejected entry status change.
type TransitionError struct {
	From models.EntryStatus
	To   models.EntryStatus
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("invalid status transition %s -> %s", e.From, e.To)
}

func (e *TransitionError) Is(target error) bool {
	return target == ErrInvalidStatusTransition
}

// Kind returns a stable snake_case label for err, used in metrics and
// API error codes. Unknown errors map to "internal".
func Kind(err error) string {
	if err == nil {
		return "ok"
	}
	for _, k := range kinds {
		if errors.Is(err, k.err) {
			return k.name
		}
	}
	return "internal"
}

var kinds = []struct {
	err  error
	name string
}{
	{ErrAppointmentNotFound, "appointment_not_found"},
	{ErrSessionNotFound, "session_not_found"},
	{ErrEntryNotFound, "entry_not_found"},
	{ErrQueueEntryNotFound, "queue_entry_not_found"},
	{ErrUnauthorizedAccess, "unauthorized_access"},
	{ErrAppointmentCancelled, "appointment_cancelled"},
	{ErrAppointmentAlreadyCompleted, "appointment_already_completed"},
	{ErrAppointmentNotForToday, "appointment_not_for_today"},
	{ErrAlreadyInQueue, "already_in_queue"},
	{ErrDuplicateAppointment, "duplicate_appointment"},
	{ErrSessionNotActive, "session_not_active"},
	{ErrInvalidStatusTransition, "invalid_status_transition"},
	{ErrQueueFull, "queue_full"},
	{ErrOperationTimeout, "queue_operation_timeout"},
}

// timeoutErr turns deadline/cancellation into ErrOperationTimeout while
// keeping the cause in the chain.
func timeoutErr(err error) error {
	if err == nil || errors.Is(err, ErrOperationTimeout) {
		return err
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return fmt.Errorf("%w: %w", ErrOperationTimeout, err)
	}
	return err
}
