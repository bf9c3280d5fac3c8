package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/temcen/shoprank/internal/personalization"
	"github.com/temcen/shoprank/internal/services"
)

type UserHandler struct {
	logger *logrus.Logger
	engine services.PersonalizationServiceInterface
}

func NewUserHandler(logger *logrus.Logger, engine services.PersonalizationServiceInterface) *UserHandler {
	return &UserHandler{
		logger: logger,
		engine: engine,
	}
}

type profileResponse struct {
	UserID        uuid.UUID                          `json:"user_id"`
	Profile       *personalization.UserProfile       `json:"profile,omitempty"`
	SearchProfile *personalization.SearchUserProfile `json:"search_profile,omitempty"`
}

// Profile returns the cached preference and search profiles of a user.
func (h *UserHandler) Profile(c *gin.Context) {
	userID, ok := parseUUIDParam(c, "userId", "INVALID_USER_ID")
	if !ok {
		return
	}

	ctx := c.Request.Context()
	profile, hasProfile := h.engine.Profile(ctx, userID)
	searchProfile, hasSearch := h.engine.SearchProfile(ctx, userID)
	if !hasProfile && !hasSearch {
		respondError(c, http.StatusNotFound, "USER_PROFILE_NOT_FOUND", "No profile for this user")
		return
	}

	c.JSON(http.StatusOK, profileResponse{
		UserID:        userID,
		Profile:       profile,
		SearchProfile: searchProfile,
	})
}
