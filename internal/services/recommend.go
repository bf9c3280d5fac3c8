package services

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/temcen/shoprank/internal/personalization"
	"github.com/temcen/shoprank/pkg/models"
)

// RankOptions mirror the diversification switches of a rank request. A nil
// DiversifyFactor uses the configured default.
type RankOptions struct {
	Diversify       bool
	DiversifyFactor *float64
}

// Recommend returns up to limit products for userID, skipping excludeIDs.
// Users without a profile, or any user while the caches are unavailable,
// get the popularity ranking.
func (e *Engine) Recommend(ctx context.Context, userID uuid.UUID, limit int, excludeIDs []uuid.UUID) (*models.RecommendationResponse, error) {
	exclude := make(map[uuid.UUID]struct{}, len(excludeIDs))
	for _, id := range excludeIDs {
		exclude[id] = struct{}{}
	}

	response := &models.RecommendationResponse{
		UserID:      userID,
		GeneratedAt: e.now(),
	}

	var scored []personalization.ScoredID
	personalized := false
	if e.ensureInitialized(ctx) {
		e.mu.RLock()
		if profile, ok := e.state.profiles[userID]; ok {
			scored = e.scorer.TopForProfile(profile, e.state.vectorOrder, exclude, limit)
			personalized = true
		}
		e.mu.RUnlock()
	}

	if !personalized {
		products, err := e.popularProducts(ctx, exclude, limit)
		if err != nil {
			return nil, err
		}
		response.Strategy = StrategyPopularity
		response.Recommendations = make([]models.ScoredProduct, len(products))
		for i, p := range products {
			response.Recommendations[i] = models.ScoredProduct{
				Product:   p,
				Algorithm: StrategyPopularity,
				Position:  i + 1,
			}
		}
		e.countRecommendation(StrategyPopularity)
		return response, nil
	}

	ids := make([]uuid.UUID, len(scored))
	scores := make(map[uuid.UUID]float64, len(scored))
	for i, s := range scored {
		ids[i] = s.ID
		scores[s.ID] = s.Score
	}

	products, err := e.catalog.FetchByIDs(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("failed to hydrate recommendations: %w", err)
	}

	response.Strategy = StrategyPersonalized
	response.Recommendations = make([]models.ScoredProduct, len(products))
	for i, p := range products {
		response.Recommendations[i] = models.ScoredProduct{
			Product:   p,
			Score:     scores[p.ID],
			Algorithm: StrategyPersonalized,
			Position:  i + 1,
		}
	}

	e.logger.WithFields(logrus.Fields{
		"user_id": userID,
		"count":   len(response.Recommendations),
	}).Debug("Generated personalized recommendations")

	e.countRecommendation(StrategyPersonalized)
	return response, nil
}

// popularProducts ranks the cached catalog by popularity, or the live
// catalog when the caches are unavailable.
func (e *Engine) popularProducts(ctx context.Context, exclude map[uuid.UUID]struct{}, limit int) ([]models.Product, error) {
	if e.initialized.Load() {
		e.mu.RLock()
		defer e.mu.RUnlock()
		return personalization.PopularityOrder(e.state.products, exclude, limit), nil
	}

	products, err := e.catalog.FetchAllActive(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load catalog for popularity fallback: %w", err)
	}
	return personalization.PopularityOrder(products, exclude, limit), nil
}

// SimilarProducts returns up to limit products most similar to productID.
// Unknown products yield an empty list.
func (e *Engine) SimilarProducts(ctx context.Context, productID uuid.UUID, limit int) ([]models.Product, error) {
	if !e.ensureInitialized(ctx) {
		return []models.Product{}, nil
	}

	e.mu.RLock()
	target := e.state.vectors[productID]
	scored := e.scorer.TopSimilar(target, e.state.vectorOrder, limit)
	e.mu.RUnlock()

	if len(scored) == 0 {
		return []models.Product{}, nil
	}

	ids := make([]uuid.UUID, len(scored))
	for i, s := range scored {
		ids[i] = s.ID
	}
	products, err := e.catalog.FetchByIDs(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("failed to hydrate similar products: %w", err)
	}
	return products, nil
}

// Rank scores the given products against query, personalizing with the
// user's search profile when one exists.
func (e *Engine) Rank(ctx context.Context, query string, productIDs []uuid.UUID, userID *uuid.UUID, opts RankOptions) ([]models.RankedProduct, error) {
	candidates, err := e.catalog.FetchByIDs(ctx, productIDs)
	if err != nil {
		return nil, fmt.Errorf("failed to load rank candidates: %w", err)
	}
	return e.rankCandidates(ctx, query, candidates, userID, opts), nil
}

// SearchCatalog ranks the whole active catalog against query and returns the
// best limit products with any text relevance.
func (e *Engine) SearchCatalog(ctx context.Context, query string, userID *uuid.UUID, limit int, opts RankOptions) ([]models.RankedProduct, error) {
	if limit <= 0 {
		return []models.RankedProduct{}, nil
	}

	var candidates []models.Product
	if e.ensureInitialized(ctx) {
		e.mu.RLock()
		candidates = e.state.products
		e.mu.RUnlock()
	} else {
		products, err := e.catalog.FetchAllActive(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to load catalog for search: %w", err)
		}
		candidates = products
	}

	ranked := e.rankCandidates(ctx, query, candidates, userID, RankOptions{})

	results := make([]models.RankedProduct, 0, len(ranked))
	for _, r := range ranked {
		if r.Breakdown.TextRelevance > 0 {
			results = append(results, r)
		}
	}
	if opts.Diversify {
		results = personalization.Diversify(results, e.diversifyFactor(opts))
	}
	if len(results) > limit {
		results = results[:limit]
	}
	return results, nil
}

func (e *Engine) diversifyFactor(opts RankOptions) float64 {
	if opts.DiversifyFactor != nil {
		return *opts.DiversifyFactor
	}
	return e.weights.Rank.DefaultDiversifyFactor
}

func (e *Engine) rankCandidates(ctx context.Context, query string, candidates []models.Product, userID *uuid.UUID, opts RankOptions) []models.RankedProduct {
	start := time.Now()

	rankOpts := personalization.RankOptions{
		Diversify:       opts.Diversify,
		DiversifyFactor: e.diversifyFactor(opts),
	}

	var results []models.RankedProduct
	if e.ensureInitialized(ctx) {
		e.mu.RLock()
		var profile *personalization.SearchUserProfile
		if userID != nil {
			profile = e.state.searchProfiles[*userID]
		}
		results = e.ranker.Rank(query, candidates, profile, e.state.popularity, rankOpts)
		e.mu.RUnlock()
	} else {
		results = e.ranker.Rank(query, candidates, nil, nil, rankOpts)
	}

	if e.metrics != nil {
		e.metrics.rankLatency.Observe(time.Since(start).Seconds())
	}
	return results
}

// Suggestions completes a partial query from the user's history, popular
// search terms and the catalog.
func (e *Engine) Suggestions(ctx context.Context, query string, userID *uuid.UUID, limit int) ([]models.Suggestion, error) {
	if !e.ensureInitialized(ctx) {
		products, err := e.catalog.FetchAllActive(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to load catalog for suggestions: %w", err)
		}
		return e.suggester.Suggest(query, nil, nil, products, limit), nil
	}

	e.mu.RLock()
	defer e.mu.RUnlock()

	var history *personalization.SearchUserProfile
	if userID != nil {
		history = e.state.searchProfiles[*userID]
	}
	return e.suggester.Suggest(query, history, e.state.popularity.Terms(), e.state.products, limit), nil
}

// Profile returns a copy of the user's preference profile.
func (e *Engine) Profile(ctx context.Context, userID uuid.UUID) (*personalization.UserProfile, bool) {
	if !e.ensureInitialized(ctx) {
		return nil, false
	}
	e.mu.RLock()
	defer e.mu.RUnlock()

	profile, ok := e.state.profiles[userID]
	if !ok {
		return nil, false
	}
	return profile.Clone(), true
}

// SearchProfile returns a copy of the user's search profile.
func (e *Engine) SearchProfile(ctx context.Context, userID uuid.UUID) (*personalization.SearchUserProfile, bool) {
	if !e.ensureInitialized(ctx) {
		return nil, false
	}
	e.mu.RLock()
	defer e.mu.RUnlock()

	profile, ok := e.state.searchProfiles[userID]
	if !ok {
		return nil, false
	}
	return profile.Clone(), true
}

func (e *Engine) countRecommendation(strategy string) {
	if e.metrics != nil {
		e.metrics.recommendations.WithLabelValues(strategy).Inc()
	}
}
