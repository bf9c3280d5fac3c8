package models

import (
	"time"

	"github.com/google/uuid"
)

// ScoredProduct is a hydrated product with the score that placed it.
type ScoredProduct struct {
	Product
	Score     float64 `json:"score"`
	Algorithm string  `json:"algorithm"`
	Position  int     `json:"position"`
}

// ScoreBreakdown lists the weighted components of a search rank score
// before the final clamp.
type ScoreBreakdown struct {
	TextRelevance  float64 `json:"text_relevance"`
	UserPreference float64 `json:"user_preference"`
	Popularity     float64 `json:"popularity"`
	Recency        float64 `json:"recency"`
	Rating         float64 `json:"rating"`
}

// RankedProduct is a search result with its score breakdown.
type RankedProduct struct {
	Product
	Score     float64        `json:"score"`
	Breakdown ScoreBreakdown `json:"breakdown"`
}

// Suggestion is a query completion candidate.
type Suggestion struct {
	Term   string  `json:"term"`
	Score  float64 `json:"score"`
	Source string  `json:"source"` // history, popular, catalog
}

type RecommendationResponse struct {
	UserID          uuid.UUID       `json:"user_id"`
	Recommendations []ScoredProduct `json:"recommendations"`
	Strategy        string          `json:"strategy"`
	GeneratedAt     time.Time       `json:"generated_at"`
}

type SimilarProductsResponse struct {
	ProductID   uuid.UUID `json:"product_id"`
	Products    []Product `json:"products"`
	GeneratedAt time.Time `json:"generated_at"`
}

type RankRequest struct {
	Query           string      `json:"query" validate:"max=256"`
	ProductIDs      []uuid.UUID `json:"product_ids" validate:"required,min=1,max=500"`
	UserID          *uuid.UUID  `json:"user_id,omitempty"`
	Diversify       bool        `json:"diversify"`
	DiversifyFactor *float64    `json:"diversify_factor,omitempty" validate:"omitempty,min=0,max=1"`
}

type RankResponse struct {
	Query       string          `json:"query"`
	Results     []RankedProduct `json:"results"`
	GeneratedAt time.Time       `json:"generated_at"`
}

type SuggestionResponse struct {
	Query       string       `json:"query"`
	Suggestions []Suggestion `json:"suggestions"`
}
