package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

// QueueEntry - место гражданина в сессии очереди. Записи не удаляются,
// завершённые остаются в истории со статусом completed/skipped.
type QueueEntry struct {
	ID             uuid.UUID   `gorm:"type:uuid;primaryKey" json:"id"`
	QueueSessionID uuid.UUID   `gorm:"type:uuid;not null;uniqueIndex:idx_entry_session_position,priority:1;uniqueIndex:idx_entry_active_appointment,priority:1,where:status <> 'completed' AND status <> 'skipped'" json:"queue_session_id"`
	AppointmentID  uuid.UUID   `gorm:"type:uuid;not null;index;uniqueIndex:idx_entry_active_appointment,priority:2" json:"appointment_id"`
	UserID         uuid.UUID   `gorm:"type:uuid;not null;index" json:"user_id"`
	Position       int         `gorm:"not null;uniqueIndex:idx_entry_session_position,priority:2" json:"position"`
	DisplayToken   string      `gorm:"type:varchar(16);not null" json:"display_token"`
	Status         EntryStatus `gorm:"type:varchar(16);index;not null" json:"status"`
	OfficerID      *uuid.UUID  `gorm:"type:uuid" json:"officer_id,omitempty"`

	EstimatedWaitMinutes int               `gorm:"not null;default:0" json:"estimated_wait_minutes"`
	Metadata             datatypes.JSONMap `json:"metadata,omitempty"`

	CreatedAt   time.Time  `json:"created_at"`
	CalledAt    *time.Time `json:"called_at,omitempty"`
	ServedAt    *time.Time `json:"served_at,omitempty"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
	UpdatedAt   time.Time  `json:"updated_at"`
}

// ServiceMinutes - фактическая длительность обслуживания, если её можно посчитать.
func (e *QueueEntry) ServiceMinutes() (float64, bool) {
	if e.CompletedAt == nil {
		return 0, false
	}
	start := e.ServedAt
	if start == nil {
		start = e.CalledAt
	}
	if start == nil {
		return 0, false
	}
	return e.CompletedAt.Sub(*start).Minutes(), true
}

// Stamp переводит запись в статус и проставляет соответствующую метку времени.
func (e *QueueEntry) Stamp(status EntryStatus, at time.Time) {
	e.Status = status
	switch status {
	case EntryCalled:
		e.CalledAt = &at
	case EntryServing:
		e.ServedAt = &at
	case EntryCompleted, EntrySkipped:
		e.CompletedAt = &at
	}
	e.UpdatedAt = at
}
