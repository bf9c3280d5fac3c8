package handlers

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/sirupsen/logrus"

	"github.com/temcen/shoprank/internal/services"
	"github.com/temcen/shoprank/pkg/models"
)

type SearchHandler struct {
	engine    services.PersonalizationServiceInterface
	limits    Limits
	logger    *logrus.Logger
	validator *validator.Validate
}

func NewSearchHandler(engine services.PersonalizationServiceInterface, limits Limits, logger *logrus.Logger) *SearchHandler {
	return &SearchHandler{
		engine:    engine,
		limits:    limits,
		logger:    logger,
		validator: validator.New(),
	}
}

// Rank orders a caller-supplied candidate set.
func (h *SearchHandler) Rank(c *gin.Context) {
	var req models.RankRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": gin.H{
				"code":    "INVALID_REQUEST",
				"message": "Invalid request format",
				"details": err.Error(),
			},
		})
		return
	}
	if err := h.validator.Struct(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": gin.H{
				"code":    "VALIDATION_FAILED",
				"message": "Request validation failed",
				"details": err.Error(),
			},
		})
		return
	}

	opts := services.RankOptions{Diversify: req.Diversify, DiversifyFactor: req.DiversifyFactor}
	results, err := h.engine.Rank(c.Request.Context(), req.Query, req.ProductIDs, req.UserID, opts)
	if err != nil {
		h.logger.WithError(err).WithField("candidates", len(req.ProductIDs)).Error("Failed to rank products")
		respondError(c, http.StatusInternalServerError, "RANKING_FAILED", "Failed to rank products")
		return
	}

	c.JSON(http.StatusOK, models.RankResponse{
		Query:       req.Query,
		Results:     results,
		GeneratedAt: time.Now().UTC(),
	})
}

// Search ranks the whole active catalog.
func (h *SearchHandler) Search(c *gin.Context) {
	query := strings.TrimSpace(c.Query("q"))
	if query == "" {
		respondError(c, http.StatusBadRequest, "MISSING_QUERY", "q is required")
		return
	}
	userID, ok := parseOptionalUserID(c)
	if !ok {
		return
	}
	limit, ok := parseLimit(c, h.limits.Default, h.limits.Max)
	if !ok {
		return
	}
	opts, ok := parseRankOptions(c)
	if !ok {
		return
	}

	results, err := h.engine.SearchCatalog(c.Request.Context(), query, userID, limit, opts)
	if err != nil {
		h.logger.WithError(err).WithField("query", query).Error("Failed to search catalog")
		respondError(c, http.StatusInternalServerError, "SEARCH_FAILED", "Failed to search catalog")
		return
	}

	c.JSON(http.StatusOK, models.RankResponse{
		Query:       query,
		Results:     results,
		GeneratedAt: time.Now().UTC(),
	})
}

func (h *SearchHandler) Suggestions(c *gin.Context) {
	query := c.Query("q")
	userID, ok := parseOptionalUserID(c)
	if !ok {
		return
	}
	limit, ok := parseLimit(c, h.limits.Suggestion, h.limits.Max)
	if !ok {
		return
	}

	suggestions, err := h.engine.Suggestions(c.Request.Context(), query, userID, limit)
	if err != nil {
		h.logger.WithError(err).WithField("query", query).Error("Failed to build suggestions")
		respondError(c, http.StatusInternalServerError, "SUGGESTIONS_FAILED", "Failed to build suggestions")
		return
	}

	c.JSON(http.StatusOK, models.SuggestionResponse{
		Query:       query,
		Suggestions: suggestions,
	})
}

func parseRankOptions(c *gin.Context) (services.RankOptions, bool) {
	var opts services.RankOptions

	if raw := c.Query("diversify"); raw != "" {
		diversify, err := strconv.ParseBool(raw)
		if err != nil {
			respondError(c, http.StatusBadRequest, "INVALID_DIVERSIFY", "diversify must be a boolean")
			return opts, false
		}
		opts.Diversify = diversify
	}

	if raw := c.Query("diversify_factor"); raw != "" {
		factor, err := strconv.ParseFloat(raw, 64)
		if err != nil || !(factor >= 0 && factor <= 1) {
			respondError(c, http.StatusBadRequest, "INVALID_DIVERSIFY_FACTOR", "diversify_factor must be between 0 and 1")
			return opts, false
		}
		opts.DiversifyFactor = &factor
	}

	return opts, true
}
