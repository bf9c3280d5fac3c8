package personalization

import (
	"github.com/google/uuid"
	"gonum.org/v1/gonum/floats"

	"github.com/temcen/shoprank/pkg/models"
)

// UserProfile is a weighted-preference summary built from a user's purchase
// and behavior history. After Normalize every non-empty mapping sums to 1.
type UserProfile struct {
	UserID         uuid.UUID               `json:"user_id"`
	Categories     map[string]float64      `json:"categories"`
	Brands         map[string]float64      `json:"brands"`
	PriceBuckets   map[PriceBucket]float64 `json:"price_buckets"`
	Colors         map[string]float64      `json:"colors"`
	Features       map[string]float64      `json:"features"`
	TotalPurchases int                     `json:"total_purchases"`
	TotalViews     int                     `json:"total_views"`
}

func NewUserProfile(userID uuid.UUID) *UserProfile {
	return &UserProfile{
		UserID:       userID,
		Categories:   make(map[string]float64),
		Brands:       make(map[string]float64),
		PriceBuckets: make(map[PriceBucket]float64),
		Colors:       make(map[string]float64),
		Features:     make(map[string]float64),
	}
}

// Clone returns a deep copy safe to hand to readers outside the engine lock.
func (p *UserProfile) Clone() *UserProfile {
	return &UserProfile{
		UserID:         p.UserID,
		Categories:     cloneMap(p.Categories),
		Brands:         cloneMap(p.Brands),
		PriceBuckets:   cloneMap(p.PriceBuckets),
		Colors:         cloneMap(p.Colors),
		Features:       cloneMap(p.Features),
		TotalPurchases: p.TotalPurchases,
		TotalViews:     p.TotalViews,
	}
}

// ProfileBuilder applies interactions to user profiles using a weights table.
type ProfileBuilder struct {
	weights Weights
}

func NewProfileBuilder(weights Weights) *ProfileBuilder {
	return &ProfileBuilder{weights: weights}
}

// ApplyInteraction adds the weighted contribution of one interaction with
// vector to the profile. It does not normalize.
func (b *ProfileBuilder) ApplyInteraction(profile *UserProfile, vector *ProductVector, action string, multiplier float64) {
	if profile == nil || vector == nil {
		return
	}

	weight := b.weights.BehaviorWeight(action) * multiplier

	profile.Categories[vector.Category] += weight
	if vector.Brand != "" {
		profile.Brands[vector.Brand] += weight
	}
	profile.PriceBuckets[vector.PriceBucket] += weight

	for _, color := range vector.Colors {
		profile.Colors[color] += weight * b.weights.Interaction.Color
	}
	for _, feature := range vector.Features {
		profile.Features[feature] += weight * b.weights.Interaction.Feature
	}

	switch action {
	case models.ActionPurchase:
		profile.TotalPurchases += int(multiplier)
	case models.ActionView:
		profile.TotalViews++
	}
}

// ApplyIncrementalEvent applies a single interaction and immediately
// normalizes. Repeated per-event normalization gives a path-dependent
// distribution that differs from a batch replay followed by one Normalize.
func (b *ProfileBuilder) ApplyIncrementalEvent(profile *UserProfile, vector *ProductVector, action string) {
	if profile == nil || vector == nil {
		return
	}
	b.ApplyInteraction(profile, vector, action, 1)
	Normalize(profile)
}

// Normalize scales each mapping so its values sum to 1. Zero-sum mappings
// are left untouched.
func Normalize(profile *UserProfile) {
	normalizeMap(profile.Categories)
	normalizeMap(profile.Brands)
	normalizeMap(profile.PriceBuckets)
	normalizeMap(profile.Colors)
	normalizeMap(profile.Features)
}

func normalizeMap[K comparable](m map[K]float64) {
	if len(m) == 0 {
		return
	}
	values := make([]float64, 0, len(m))
	for _, v := range m {
		values = append(values, v)
	}
	total := floats.Sum(values)
	if total == 0 {
		return
	}
	for k, v := range m {
		m[k] = v / total
	}
}

func cloneMap[K comparable](m map[K]float64) map[K]float64 {
	out := make(map[K]float64, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}
