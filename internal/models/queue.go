package models

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// QueueSession - очередь отдела (и, опционально, услуги) на конкретный день.
type QueueSession struct {
	ID           uuid.UUID     `gorm:"type:uuid;primaryKey" json:"id"`
	ScopeKey     string        `gorm:"uniqueIndex;not null" json:"-"` // department:service:date, единственная сессия на кортеж
	DepartmentID uuid.UUID     `gorm:"type:uuid;index;not null" json:"department_id"`
	ServiceID    *uuid.UUID    `gorm:"type:uuid;index" json:"service_id,omitempty"`
	SessionDate  time.Time     `gorm:"type:date;index;not null" json:"session_date"`
	Status       SessionStatus `gorm:"type:varchar(16);index;not null;default:active" json:"status"`

	CurrentPosition int `gorm:"not null;default:0" json:"current_position"`
	MaxCapacity     int `gorm:"not null" json:"max_capacity"`
	TotalServed     int `gorm:"not null;default:0" json:"total_served"`

	AverageServiceTimeMinutes float64  `gorm:"not null" json:"average_service_time_minutes"` // номинальная длительность услуги
	ObservedServiceMinutes    *float64 `json:"observed_service_minutes,omitempty"`           // среднее по фактическим обслуживаниям
	ObservedSamples           int      `gorm:"not null;default:0" json:"observed_samples"`
	ManualServiceMinutes      *float64 `json:"manual_service_minutes,omitempty"` // задано сотрудником вручную

	SessionStart time.Time  `json:"session_start"`
	SessionEnd   *time.Time `json:"session_end,omitempty"`
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`
}

// EffectiveServiceMinutes: ручное значение, затем наблюдаемое, затем номинальное.
func (s *QueueSession) EffectiveServiceMinutes() float64 {
	if s.ManualServiceMinutes != nil {
		return *s.ManualServiceMinutes
	}
	if s.ObservedServiceMinutes != nil && s.ObservedSamples > 0 {
		return *s.ObservedServiceMinutes
	}
	return s.AverageServiceTimeMinutes
}

// RecordServiceTime добавляет наблюдение в скользящее среднее.
func (s *QueueSession) RecordServiceTime(minutes float64) {
	if minutes < 0 {
		minutes = 0
	}
	avg := minutes
	if s.ObservedServiceMinutes != nil && s.ObservedSamples > 0 {
		avg = *s.ObservedServiceMinutes + (minutes-*s.ObservedServiceMinutes)/float64(s.ObservedSamples+1)
	}
	s.ObservedServiceMinutes = &avg
	s.ObservedSamples++
}

// ScopeKey строит ключ уникальности сессии.
func ScopeKey(departmentID uuid.UUID, serviceID *uuid.UUID, day time.Time) string {
	service := "-"
	if serviceID != nil {
		service = serviceID.String()
	}
	return fmt.Sprintf("%s:%s:%s", departmentID, service, day.Format(time.DateOnly))
}
