package handlers

import (
	"context"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"gov_queue/internal/models"
	"gov_queue/internal/queue"
)

// QueueService - операции движка очереди, которые вызывает HTTP-слой.
type QueueService interface {
	Join(ctx context.Context, req queue.JoinRequest) (*queue.Admission, error)
	GetStatus(ctx context.Context, userID uuid.UUID, appointmentID *uuid.UUID) (*queue.StatusView, error)
	Advance(ctx context.Context, sessionID uuid.UUID, officerID *uuid.UUID) (*queue.AdvanceResult, error)
	SetEntryStatus(ctx context.Context, entryID uuid.UUID, status models.EntryStatus, metadata map[string]any, officerID *uuid.UUID) (*models.QueueEntry, error)
	GetSession(ctx context.Context, id uuid.UUID) (*models.QueueSession, error)
	ListEntries(ctx context.Context, sessionID uuid.UUID, page, limit int) (*queue.EntryPage, error)
	ListActiveSessions(ctx context.Context, departmentID *uuid.UUID) ([]models.QueueSession, error)
	SetSessionStatus(ctx context.Context, sessionID uuid.UUID, status models.SessionStatus, officerID *uuid.UUID) (*models.QueueSession, error)
	SetAverageServiceTime(ctx context.Context, sessionID uuid.UUID, minutes *float64) (*models.QueueSession, error)
}

type QueueHandler struct {
	svc      QueueService
	validate *validator.Validate
}

func NewQueueHandler(svc QueueService) *QueueHandler {
	return &QueueHandler{svc: svc, validate: validator.New()}
}

// JoinRequest - тело запроса на вступление в очередь.
type JoinRequest struct {
	AppointmentID string     `json:"appointment_id" binding:"required,uuid" example:"3fa85f64-5717-4562-b3fc-2c963f66afa6"`
	ArrivalTime   *time.Time `json:"arrival_time,omitempty"`
}

// EntryStatusRequest - смена статуса записи сотрудником.
type EntryStatusRequest struct {
	Status   string         `json:"status" binding:"required,oneof=waiting called serving completed skipped" example:"serving"`
	Metadata map[string]any `json:"metadata,omitempty"`
}

// SessionStatusRequest - пауза, возобновление или закрытие сессии.
type SessionStatusRequest struct {
	Status string `json:"status" binding:"required,oneof=active paused closed" example:"paused"`
}

// AverageServiceTimeRequest - ручное среднее время обслуживания; null сбрасывает.
type AverageServiceTimeRequest struct {
	Minutes *float64 `json:"minutes" binding:"omitempty,gt=0" example:"12.5"`
}

// uuidParam разбирает идентификатор из пути.
func (h *QueueHandler) uuidParam(c *gin.Context, name string) (uuid.UUID, bool) {
	return h.parseUUID(c, name, c.Param(name))
}

// optionalUUIDQuery разбирает необязательный query-параметр.
func (h *QueueHandler) optionalUUIDQuery(c *gin.Context, name string) (*uuid.UUID, bool) {
	raw := c.Query(name)
	if raw == "" {
		return nil, true
	}
	id, ok := h.parseUUID(c, name, raw)
	if !ok {
		return nil, false
	}
	return &id, true
}

func (h *QueueHandler) parseUUID(c *gin.Context, name, raw string) (uuid.UUID, bool) {
	if err := h.validate.Var(raw, "required,uuid"); err != nil {
		validationError(c, name+": "+err.Error())
		return uuid.Nil, false
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		validationError(c, name+": "+err.Error())
		return uuid.Nil, false
	}
	return id, true
}
