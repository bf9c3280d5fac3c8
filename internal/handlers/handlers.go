package handlers

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/temcen/shoprank/internal/config"
	"github.com/temcen/shoprank/internal/services"
)

type Handlers struct {
	Health         *HealthHandler
	Recommendation *RecommendationHandler
	Search         *SearchHandler
	Interaction    *InteractionHandler
	User           *UserHandler
	Admin          *AdminHandler
}

// Limits bounds the result counts accepted from clients.
type Limits struct {
	Default    int
	Max        int
	Suggestion int
}

func LimitsFromConfig(cfg config.PersonalizationConfig) Limits {
	return Limits{
		Default:    cfg.DefaultLimit,
		Max:        cfg.MaxLimit,
		Suggestion: cfg.SuggestionLimit,
	}
}

func New(logger *logrus.Logger, svcs *services.Services, limits Limits) *Handlers {
	return &Handlers{
		Health:         NewHealthHandler(logger, svcs.Health),
		Recommendation: NewRecommendationHandler(svcs.Engine, limits, logger),
		Search:         NewSearchHandler(svcs.Engine, limits, logger),
		Interaction:    NewInteractionHandler(logger, svcs.Engine),
		User:           NewUserHandler(logger, svcs.Engine),
		Admin:          NewAdminHandler(logger, svcs.Engine),
	}
}

func respondError(c *gin.Context, status int, code, message string) {
	c.JSON(status, gin.H{
		"error": gin.H{
			"code":    code,
			"message": message,
		},
	})
}

// parseLimit reads the limit query parameter. Values above upper are clamped.
func parseLimit(c *gin.Context, def, upper int) (int, bool) {
	raw := c.Query("limit")
	if raw == "" {
		return min(def, upper), true
	}
	limit, err := strconv.Atoi(raw)
	if err != nil || limit <= 0 {
		respondError(c, http.StatusBadRequest, "INVALID_LIMIT", "limit must be a positive integer")
		return 0, false
	}
	return min(limit, upper), true
}

func parseUUIDParam(c *gin.Context, name, code string) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param(name))
	if err != nil {
		respondError(c, http.StatusBadRequest, code, "Invalid "+name+" format")
		return uuid.Nil, false
	}
	return id, true
}

// parseOptionalUserID reads the user_id query parameter, if present.
func parseOptionalUserID(c *gin.Context) (*uuid.UUID, bool) {
	raw := c.Query("user_id")
	if raw == "" {
		return nil, true
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		respondError(c, http.StatusBadRequest, "INVALID_USER_ID", "Invalid user ID format")
		return nil, false
	}
	return &id, true
}

func parseUUIDList(raw string) ([]uuid.UUID, error) {
	if raw == "" {
		return nil, nil
	}
	var ids []uuid.UUID
	for _, part := range strings.Split(raw, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		id, err := uuid.Parse(part)
		if err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, nil
}
