package services

import (
	"context"

	"github.com/google/uuid"

	"github.com/temcen/shoprank/internal/personalization"
	"github.com/temcen/shoprank/pkg/models"
)

// PersonalizationServiceInterface is the engine surface used by the HTTP layer.
type PersonalizationServiceInterface interface {
	Recommend(ctx context.Context, userID uuid.UUID, limit int, excludeIDs []uuid.UUID) (*models.RecommendationResponse, error)
	SimilarProducts(ctx context.Context, productID uuid.UUID, limit int) ([]models.Product, error)
	Rank(ctx context.Context, query string, productIDs []uuid.UUID, userID *uuid.UUID, opts RankOptions) ([]models.RankedProduct, error)
	SearchCatalog(ctx context.Context, query string, userID *uuid.UUID, limit int, opts RankOptions) ([]models.RankedProduct, error)
	Suggestions(ctx context.Context, query string, userID *uuid.UUID, limit int) ([]models.Suggestion, error)
	RecordInteraction(ctx context.Context, userID uuid.UUID, productID *uuid.UUID, action string, metadata models.EventMetadata) (*models.BehaviorEvent, error)
	RecordSearchInteraction(ctx context.Context, userID uuid.UUID, query, action string, productID *uuid.UUID, metadata models.EventMetadata) (*models.BehaviorEvent, error)
	Profile(ctx context.Context, userID uuid.UUID) (*personalization.UserProfile, bool)
	SearchProfile(ctx context.Context, userID uuid.UUID) (*personalization.SearchUserProfile, bool)
	Refresh(ctx context.Context) error
	Status() EngineStatus
}

var _ PersonalizationServiceInterface = (*Engine)(nil)
