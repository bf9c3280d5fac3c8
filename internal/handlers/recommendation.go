package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/temcen/shoprank/internal/services"
	"github.com/temcen/shoprank/pkg/models"
)

type RecommendationHandler struct {
	engine services.PersonalizationServiceInterface
	limits Limits
	logger *logrus.Logger
}

func NewRecommendationHandler(engine services.PersonalizationServiceInterface, limits Limits, logger *logrus.Logger) *RecommendationHandler {
	return &RecommendationHandler{
		engine: engine,
		limits: limits,
		logger: logger,
	}
}

func (h *RecommendationHandler) Get(c *gin.Context) {
	userID, ok := parseUUIDParam(c, "userId", "INVALID_USER_ID")
	if !ok {
		return
	}
	limit, ok := parseLimit(c, h.limits.Default, h.limits.Max)
	if !ok {
		return
	}
	exclude, err := parseUUIDList(c.Query("exclude"))
	if err != nil {
		respondError(c, http.StatusBadRequest, "INVALID_EXCLUDE", "exclude must be a comma separated list of product IDs")
		return
	}

	result, err := h.engine.Recommend(c.Request.Context(), userID, limit, exclude)
	if err != nil {
		h.logger.WithError(err).WithField("user_id", userID).Error("Failed to generate recommendations")
		respondError(c, http.StatusInternalServerError, "RECOMMENDATION_GENERATION_FAILED", "Failed to generate recommendations")
		return
	}

	c.JSON(http.StatusOK, result)
}

func (h *RecommendationHandler) Similar(c *gin.Context) {
	productID, ok := parseUUIDParam(c, "productId", "INVALID_PRODUCT_ID")
	if !ok {
		return
	}
	limit, ok := parseLimit(c, h.limits.Default, h.limits.Max)
	if !ok {
		return
	}

	products, err := h.engine.SimilarProducts(c.Request.Context(), productID, limit)
	if err != nil {
		h.logger.WithError(err).WithField("product_id", productID).Error("Failed to find similar products")
		respondError(c, http.StatusInternalServerError, "SIMILAR_PRODUCTS_FAILED", "Failed to find similar products")
		return
	}

	c.JSON(http.StatusOK, models.SimilarProductsResponse{
		ProductID:   productID,
		Products:    products,
		GeneratedAt: time.Now().UTC(),
	})
}
