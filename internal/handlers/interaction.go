package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/sirupsen/logrus"

	"github.com/temcen/shoprank/internal/services"
	"github.com/temcen/shoprank/pkg/models"
)

type InteractionHandler struct {
	logger    *logrus.Logger
	engine    services.PersonalizationServiceInterface
	validator *validator.Validate
}

func NewInteractionHandler(logger *logrus.Logger, engine services.PersonalizationServiceInterface) *InteractionHandler {
	return &InteractionHandler{
		logger:    logger,
		engine:    engine,
		validator: validator.New(),
	}
}

func (h *InteractionHandler) Record(c *gin.Context) {
	var req models.InteractionRequest
	if !h.bind(c, &req) {
		return
	}

	event, err := h.engine.RecordInteraction(c.Request.Context(), req.UserID, req.ProductID, req.Action, req.Metadata)
	if err != nil {
		h.respondRecordError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"data":    event,
		"message": "Interaction recorded successfully",
	})
}

func (h *InteractionHandler) RecordSearch(c *gin.Context) {
	var req models.SearchInteractionRequest
	if !h.bind(c, &req) {
		return
	}

	event, err := h.engine.RecordSearchInteraction(c.Request.Context(), req.UserID, req.Query, req.Action, req.ProductID, req.Metadata)
	if err != nil {
		h.respondRecordError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"data":    event,
		"message": "Search interaction recorded successfully",
	})
}

func (h *InteractionHandler) bind(c *gin.Context, req interface{}) bool {
	if err := c.ShouldBindJSON(req); err != nil {
		h.logger.WithError(err).Debug("Failed to bind interaction request")
		c.JSON(http.StatusBadRequest, gin.H{
			"error": gin.H{
				"code":    "INVALID_REQUEST",
				"message": "Invalid request format",
				"details": err.Error(),
			},
		})
		return false
	}

	if err := h.validator.Struct(req); err != nil {
		h.logger.WithError(err).Debug("Validation failed for interaction")
		c.JSON(http.StatusBadRequest, gin.H{
			"error": gin.H{
				"code":    "VALIDATION_FAILED",
				"message": "Request validation failed",
				"details": err.Error(),
			},
		})
		return false
	}
	return true
}

func (h *InteractionHandler) respondRecordError(c *gin.Context, err error) {
	if errors.Is(err, services.ErrUnsupportedAction) {
		respondError(c, http.StatusBadRequest, "UNSUPPORTED_ACTION", err.Error())
		return
	}
	h.logger.WithError(err).Error("Failed to record interaction")
	respondError(c, http.StatusInternalServerError, "INTERACTION_FAILED", "Failed to record interaction")
}
