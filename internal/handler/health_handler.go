package handler

import (
	"net/http"

	"taskhub/internal/hub"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

type HealthHandler struct {
	db  *gorm.DB
	hub *hub.Hub
}

func NewHealthHandler(db *gorm.DB, h *hub.Hub) *HealthHandler {
	return &HealthHandler{db: db, hub: h}
}

// Health
// @Summary  Liveness and live-channel stats
// @Tags     Realtime
// @Produce  json
// @Success  200  {object}  map[string]interface{}
// @Failure  503  {object}  map[string]interface{}
// @Router   /health [get]
func (h *HealthHandler) Health(c *gin.Context) {
	status, code := "ok", http.StatusOK

	sqlDB, err := h.db.DB()
	if err == nil {
		err = sqlDB.PingContext(c.Request.Context())
	}
	if err != nil {
		status, code = "degraded", http.StatusServiceUnavailable
	}

	c.JSON(code, gin.H{
		"status":   status,
		"database": err == nil,
		"clients":  h.hub.ClientCount(),
		"dropped":  h.hub.Dropped(),
	})
}
