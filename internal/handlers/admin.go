package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/temcen/shoprank/internal/services"
)

type AdminHandler struct {
	logger *logrus.Logger
	engine services.PersonalizationServiceInterface
}

func NewAdminHandler(logger *logrus.Logger, engine services.PersonalizationServiceInterface) *AdminHandler {
	return &AdminHandler{
		logger: logger,
		engine: engine,
	}
}

// Refresh rebuilds every cache from the stores.
func (h *AdminHandler) Refresh(c *gin.Context) {
	if err := h.engine.Refresh(c.Request.Context()); err != nil {
		h.logger.WithError(err).Error("Manual cache refresh failed")
		respondError(c, http.StatusServiceUnavailable, "REFRESH_FAILED", "Failed to rebuild personalization caches")
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"data":    h.engine.Status(),
		"message": "Personalization caches rebuilt",
	})
}
