package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"gov_queue/internal/response"
)

// Check проверяет одну зависимость сервиса.
type Check func(ctx context.Context) error

// Health отвечает 200, если все проверки прошли, иначе 503.
// @Summary		Проверка состояния
// @Tags			system
// @Produce		json
// @Success		200	{object}	response.HealthResponse
// @Failure		503	{object}	response.HealthResponse
// @Router			/health [get]
func Health(checks map[string]Check) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
		defer cancel()

		res := response.HealthResponse{Status: "ok", Services: make(map[string]string, len(checks))}
		code := http.StatusOK
		for name, check := range checks {
			if err := check(ctx); err != nil {
				res.Services[name] = err.Error()
				res.Status = "degraded"
				code = http.StatusServiceUnavailable
				continue
			}
			res.Services[name] = "ok"
		}
		c.JSON(code, res)
	}
}
