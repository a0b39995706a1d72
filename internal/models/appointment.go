package models

import (
	"time"

	"github.com/google/uuid"
)

// AppointmentStatus - статусы записи на приём во внешнем сервисе.
type AppointmentStatus string

const (
	AppointmentScheduled AppointmentStatus = "scheduled"
	AppointmentConfirmed AppointmentStatus = "confirmed"
	AppointmentCancelled AppointmentStatus = "cancelled"
	AppointmentCompleted AppointmentStatus = "completed"
)

// Appointment - запись на приём, как её отдаёт сервис записей.
type Appointment struct {
	ID           uuid.UUID         `json:"id"`
	UserID       uuid.UUID         `json:"user_id"`
	Status       AppointmentStatus `json:"status"`
	Date         time.Time         `json:"date"`
	ServiceID    *uuid.UUID        `json:"service_id,omitempty"`
	DepartmentID uuid.UUID         `json:"department_id"`
}

// Service - услуга из справочника отделов и услуг.
type Service struct {
	ID                       uuid.UUID `json:"id"`
	DepartmentID             uuid.UUID `json:"department_id"`
	Name                     string    `json:"name"`
	EstimatedDurationMinutes int       `json:"estimated_duration_minutes"`
}
