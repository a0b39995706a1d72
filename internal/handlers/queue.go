package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"gov_queue/internal/auth"
	"gov_queue/internal/queue"
	"gov_queue/internal/response"
)

// Join обрабатывает запрос на вступление в очередь
// @Summary		Вступление в очередь
// @Description	Ставит гражданина с подтверждённой записью на сегодня в очередь отдела и возвращает позицию, талон и прогноз ожидания
// @Tags			queue
// @Accept			json
// @Produce		json
// @Param			request	body		JoinRequest				true	"Запись на приём"
// @Security		BearerAuth
// @Success		201		{object}	queue.Admission			"Гражданин в очереди"
// @Failure		400		{object}	response.ErrorResponse	"Ошибка валидации (VALIDATION_ERROR)"
// @Failure		403		{object}	response.ErrorResponse	"Чужая запись (UNAUTHORIZED_ACCESS)"
// @Failure		404		{object}	response.ErrorResponse	"Запись не найдена (APPOINTMENT_NOT_FOUND)"
// @Failure		409		{object}	response.ErrorResponse	"APPOINTMENT_CANCELLED, APPOINTMENT_ALREADY_COMPLETED, APPOINTMENT_NOT_FOR_TODAY, ALREADY_IN_QUEUE, SESSION_NOT_ACTIVE, QUEUE_FULL"
// @Failure		503		{object}	response.ErrorResponse	"Таймаут (QUEUE_OPERATION_TIMEOUT)"
// @Router			/api/queue/join [post]
func (h *QueueHandler) Join(c *gin.Context) {
	var req JoinRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		validationError(c, err.Error())
		return
	}
	userID, ok := auth.UserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, response.ErrorResponse{Code: "NO_AUTH", Message: "Требуется авторизация"})
		return
	}

	adm, err := h.svc.Join(c.Request.Context(), queue.JoinRequest{
		AppointmentID: uuid.MustParse(req.AppointmentID),
		UserID:        userID,
		ArrivalTime:   req.ArrivalTime,
	})
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, adm)
}

// Status возвращает текущее положение гражданина в очереди
// @Summary		Моё место в очереди
// @Description	Позиция, количество людей впереди, прогноз, интервал вызова, уверенность прогноза и темп очереди
// @Tags			queue
// @Produce		json
// @Param			appointment_id	query		string	false	"ID записи на приём"
// @Security		BearerAuth
// @Success		200				{object}	queue.StatusView
// @Failure		400				{object}	response.ErrorResponse	"Ошибка валидации (VALIDATION_ERROR)"
// @Failure		404				{object}	response.ErrorResponse	"Нет активной записи (QUEUE_ENTRY_NOT_FOUND)"
// @Router			/api/queue/status [get]
func (h *QueueHandler) Status(c *gin.Context) {
	appointmentID, ok := h.optionalUUIDQuery(c, "appointment_id")
	if !ok {
		return
	}
	userID, ok := auth.UserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, response.ErrorResponse{Code: "NO_AUTH", Message: "Требуется авторизация"})
		return
	}

	view, err := h.svc.GetStatus(c.Request.Context(), userID, appointmentID)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, view)
}
