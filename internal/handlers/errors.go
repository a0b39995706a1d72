package handlers

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"gov_queue/internal/logging"
	"gov_queue/internal/queue"
	"gov_queue/internal/response"
)

type errorInfo struct {
	status  int
	message string
}

var errorsByKind = map[string]errorInfo{
	"appointment_not_found":         {http.StatusNotFound, "Запись на приём не найдена"},
	"session_not_found":             {http.StatusNotFound, "Сессия очереди не найдена"},
	"entry_not_found":               {http.StatusNotFound, "Запись в очереди не найдена"},
	"queue_entry_not_found":         {http.StatusNotFound, "Вы не стоите в очереди сегодня"},
	"unauthorized_access":           {http.StatusForbidden, "Запись на приём принадлежит другому пользователю"},
	"appointment_cancelled":         {http.StatusConflict, "Запись на приём отменена"},
	"appointment_already_completed": {http.StatusConflict, "Приём уже завершён"},
	"appointment_not_for_today":     {http.StatusConflict, "Запись на приём не на сегодня"},
	"already_in_queue":              {http.StatusConflict, "Пользователь уже состоит в очереди"},
	"duplicate_appointment":         {http.StatusConflict, "Запись на приём уже в очереди"},
	"session_not_active":            {http.StatusConflict, "Очередь не активна"},
	"invalid_status_transition":     {http.StatusConflict, "Недопустимая смена статуса"},
	"queue_full":                    {http.StatusConflict, "Очередь заполнена"},
	"queue_operation_timeout":       {http.StatusServiceUnavailable, "Операция не успела выполниться, повторите запрос"},
}

// writeError переводит ошибку движка в HTTP-ответ. Код ошибки - вид сбоя
// в верхнем регистре (QUEUE_FULL, SESSION_NOT_ACTIVE, ...).
func writeError(c *gin.Context, err error) {
	kind := queue.Kind(err)
	info, ok := errorsByKind[kind]
	if !ok {
		logging.Ctx(c.Request.Context()).Error().Err(err).Str("path", c.FullPath()).Msg("request failed")
		c.JSON(http.StatusInternalServerError, response.ErrorResponse{
			Code:    "INTERNAL_ERROR",
			Message: "Внутренняя ошибка сервера",
		})
		return
	}
	c.JSON(info.status, response.ErrorResponse{
		Code:    strings.ToUpper(kind),
		Message: info.message,
		Details: err.Error(),
	})
}

func validationError(c *gin.Context, details string) {
	c.JSON(http.StatusBadRequest, response.ErrorResponse{
		Code:    "VALIDATION_ERROR",
		Message: "Ошибка валидации данных",
		Details: details,
	})
}
