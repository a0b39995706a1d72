package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"gov_queue/internal/auth"
	"gov_queue/internal/models"
	"gov_queue/internal/response"
)

// ListSessions возвращает сегодняшние открытые сессии
// @Summary		Активные сессии
// @Description	Сессии текущего дня в статусе active или paused, опционально по отделу
// @Tags			sessions
// @Produce		json
// @Param			department_id	query	string	false	"ID отдела"
// @Security		BearerAuth
// @Success		200	{array}		models.QueueSession
// @Failure		400	{object}	response.ErrorResponse	"Ошибка валидации (VALIDATION_ERROR)"
// @Router			/api/sessions [get]
func (h *QueueHandler) ListSessions(c *gin.Context) {
	departmentID, ok := h.optionalUUIDQuery(c, "department_id")
	if !ok {
		return
	}
	sessions, err := h.svc.ListActiveSessions(c.Request.Context(), departmentID)
	if err != nil {
		writeError(c, err)
		return
	}
	if sessions == nil {
		sessions = []models.QueueSession{}
	}
	c.JSON(http.StatusOK, sessions)
}

// GetSession возвращает сессию очереди
// @Summary		Сессия очереди
// @Tags			sessions
// @Produce		json
// @Param			id	path		string	true	"ID сессии"
// @Security		BearerAuth
// @Success		200	{object}	models.QueueSession
// @Failure		400	{object}	response.ErrorResponse	"Ошибка валидации (VALIDATION_ERROR)"
// @Failure		404	{object}	response.ErrorResponse	"Сессия не найдена (SESSION_NOT_FOUND)"
// @Router			/api/sessions/{id} [get]
func (h *QueueHandler) GetSession(c *gin.Context) {
	id, ok := h.uuidParam(c, "id")
	if !ok {
		return
	}
	s, err := h.svc.GetSession(c.Request.Context(), id)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, s)
}

// ListEntries возвращает записи сессии по позициям
// @Summary		Записи сессии
// @Tags			sessions
// @Produce		json
// @Param			id		path		string	true	"ID сессии"
// @Param			page	query		int		false	"Номер страницы, с 1"
// @Param			limit	query		int		false	"Размер страницы"
// @Security		BearerAuth
// @Success		200		{object}	response.PageResponse[models.QueueEntry]
// @Failure		400		{object}	response.ErrorResponse	"Ошибка валидации (VALIDATION_ERROR)"
// @Failure		404		{object}	response.ErrorResponse	"Сессия не найдена (SESSION_NOT_FOUND)"
// @Router			/api/sessions/{id}/entries [get]
func (h *QueueHandler) ListEntries(c *gin.Context) {
	id, ok := h.uuidParam(c, "id")
	if !ok {
		return
	}
	page, err := intQuery(c, "page")
	if err != nil {
		validationError(c, "page: "+err.Error())
		return
	}
	limit, err := intQuery(c, "limit")
	if err != nil {
		validationError(c, "limit: "+err.Error())
		return
	}

	res, err := h.svc.ListEntries(c.Request.Context(), id, page, limit)
	if err != nil {
		writeError(c, err)
		return
	}
	items := res.Entries
	if items == nil {
		items = []models.QueueEntry{}
	}
	c.JSON(http.StatusOK, response.PageResponse[models.QueueEntry]{
		Items: items,
		Page:  res.Page,
		Limit: res.Limit,
		Total: res.Total,
	})
}

// Advance завершает текущего гражданина и вызывает следующего
// @Summary		Следующий!
// @Description	Завершает обслуживаемую запись, сдвигает текущую позицию и вызывает запись на новой позиции
// @Tags			sessions
// @Produce		json
// @Param			id	path		string	true	"ID сессии"
// @Security		BearerAuth
// @Success		200	{object}	queue.AdvanceResult
// @Failure		400	{object}	response.ErrorResponse	"Ошибка валидации (VALIDATION_ERROR)"
// @Failure		403	{object}	response.ErrorResponse	"Недостаточно прав (FORBIDDEN)"
// @Failure		404	{object}	response.ErrorResponse	"Сессия не найдена (SESSION_NOT_FOUND)"
// @Failure		409	{object}	response.ErrorResponse	"Сессия не активна (SESSION_NOT_ACTIVE)"
// @Failure		503	{object}	response.ErrorResponse	"Таймаут (QUEUE_OPERATION_TIMEOUT)"
// @Router			/api/sessions/{id}/advance [post]
func (h *QueueHandler) Advance(c *gin.Context) {
	id, ok := h.uuidParam(c, "id")
	if !ok {
		return
	}
	res, err := h.svc.Advance(c.Request.Context(), id, officerID(c))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

// SetSessionStatus ставит сессию на паузу, возобновляет или закрывает её
// @Summary		Статус сессии
// @Tags			sessions
// @Accept			json
// @Produce		json
// @Param			id		path		string					true	"ID сессии"
// @Param			request	body		SessionStatusRequest	true	"Новый статус"
// @Security		BearerAuth
// @Success		200		{object}	models.QueueSession
// @Failure		400		{object}	response.ErrorResponse	"Ошибка валидации (VALIDATION_ERROR)"
// @Failure		404		{object}	response.ErrorResponse	"Сессия не найдена (SESSION_NOT_FOUND)"
// @Failure		409		{object}	response.ErrorResponse	"Сессия закрыта (SESSION_NOT_ACTIVE)"
// @Router			/api/sessions/{id}/status [patch]
func (h *QueueHandler) SetSessionStatus(c *gin.Context) {
	id, ok := h.uuidParam(c, "id")
	if !ok {
		return
	}
	var req SessionStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		validationError(c, err.Error())
		return
	}
	s, err := h.svc.SetSessionStatus(c.Request.Context(), id, models.SessionStatus(req.Status), officerID(c))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, s)
}

// SetAverageServiceTime задаёт среднее время обслуживания вручную
// @Summary		Среднее время обслуживания
// @Description	minutes = null возвращает расчёт по фактическим обслуживаниям
// @Tags			sessions
// @Accept			json
// @Produce		json
// @Param			id		path		string						true	"ID сессии"
// @Param			request	body		AverageServiceTimeRequest	true	"Минуты"
// @Security		BearerAuth
// @Success		200		{object}	models.QueueSession
// @Failure		400		{object}	response.ErrorResponse	"Ошибка валидации (VALIDATION_ERROR)"
// @Failure		404		{object}	response.ErrorResponse	"Сессия не найдена (SESSION_NOT_FOUND)"
// @Router			/api/sessions/{id}/average-service-time [put]
func (h *QueueHandler) SetAverageServiceTime(c *gin.Context) {
	id, ok := h.uuidParam(c, "id")
	if !ok {
		return
	}
	var req AverageServiceTimeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		validationError(c, err.Error())
		return
	}
	s, err := h.svc.SetAverageServiceTime(c.Request.Context(), id, req.Minutes)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, s)
}

// SetEntryStatus меняет статус записи по конечному автомату
// @Summary		Статус записи в очереди
// @Description	waiting → called → serving → completed; waiting/called → skipped
// @Tags			entries
// @Accept			json
// @Produce		json
// @Param			id		path		string				true	"ID записи в очереди"
// @Param			request	body		EntryStatusRequest	true	"Новый статус и метаданные"
// @Security		BearerAuth
// @Success		200		{object}	models.QueueEntry
// @Failure		400		{object}	response.ErrorResponse	"Ошибка валидации (VALIDATION_ERROR)"
// @Failure		404		{object}	response.ErrorResponse	"Запись не найдена (ENTRY_NOT_FOUND)"
// @Failure		409		{object}	response.ErrorResponse	"Недопустимый переход (INVALID_STATUS_TRANSITION)"
// @Router			/api/entries/{id}/status [patch]
func (h *QueueHandler) SetEntryStatus(c *gin.Context) {
	id, ok := h.uuidParam(c, "id")
	if !ok {
		return
	}
	var req EntryStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		validationError(c, err.Error())
		return
	}
	e, err := h.svc.SetEntryStatus(c.Request.Context(), id, models.EntryStatus(req.Status), req.Metadata, officerID(c))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, e)
}

func officerID(c *gin.Context) *uuid.UUID {
	if id, ok := auth.UserID(c); ok {
		return &id
	}
	return nil
}

func intQuery(c *gin.Context, name string) (int, error) {
	raw := c.Query(name)
	if raw == "" {
		return 0, nil
	}
	return strconv.Atoi(raw)
}
