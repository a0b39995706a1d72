package handlers

import (
	"github.com/gin-gonic/gin"

	"gov_queue/internal/auth"
)

// RegisterRoutes вешает API очереди на r. ws может быть nil, тогда
// подписка на события не регистрируется.
func RegisterRoutes(r gin.IRouter, h *QueueHandler, authMW gin.HandlerFunc, ws gin.HandlerFunc) {
	api := r.Group("/api", authMW)

	q := api.Group("/queue")
	{
		q.POST("/join", h.Join)
		q.GET("/status", h.Status)
	}

	officer := auth.RequireRole(auth.RoleOfficer)
	sessions := api.Group("/sessions")
	{
		sessions.GET("", h.ListSessions)
		sessions.GET("/:id", h.GetSession)
		sessions.GET("/:id/entries", officer, h.ListEntries)
		sessions.POST("/:id/advance", officer, h.Advance)
		sessions.PATCH("/:id/status", officer, h.SetSessionStatus)
		sessions.PUT("/:id/average-service-time", officer, h.SetAverageServiceTime)
	}
	api.PATCH("/entries/:id/status", officer, h.SetEntryStatus)

	if ws != nil {
		// браузерный WebSocket не умеет слать заголовок Authorization
		r.GET("/api/sessions/:id/ws", ws)
	}
}
