package personalization

import (
	"math"
	"sort"

	"github.com/google/uuid"

	"github.com/temcen/shoprank/pkg/models"
)

// ScoredID pairs a product id with the score that placed it.
type ScoredID struct {
	ID    uuid.UUID
	Score float64
}

// Scorer computes profile-to-product and product-to-product scores.
type Scorer struct {
	weights Weights
}

func NewScorer(weights Weights) *Scorer {
	return &Scorer{weights: weights}
}

// Score returns how well vector matches profile, clamped to [0,1].
func (s *Scorer) Score(profile *UserProfile, vector *ProductVector) float64 {
	if profile == nil || vector == nil {
		return 0
	}
	w := s.weights.Recommend

	score := w.Category*profile.Categories[vector.Category] +
		w.Brand*profile.Brands[vector.Brand] +
		w.PriceBucket*profile.PriceBuckets[vector.PriceBucket] +
		w.Rating*(vector.Rating/5) +
		w.Popularity*capRatio(float64(vector.Popularity), w.PopularityCap)

	var featureAffinity float64
	for _, feature := range vector.Features {
		featureAffinity += profile.Features[feature]
	}
	score += math.Min(w.FeatureBonus*featureAffinity, w.FeatureBonusMax)

	return clamp01(score)
}

// Similarity compares two product vectors. A product compared with itself
// scores exactly 1.
func (s *Scorer) Similarity(a, b *ProductVector) float64 {
	if a == nil || b == nil {
		return 0
	}
	if a == b || (a.ID != uuid.Nil && a.ID == b.ID) {
		return 1
	}
	w := s.weights.Similarity

	var score float64
	if a.Category == b.Category {
		score += w.Category
	}
	if a.Subcategory == b.Subcategory {
		score += w.Subcategory
	}
	if a.Brand == b.Brand {
		score += w.Brand
	}
	if a.PriceBucket == b.PriceBucket {
		score += w.PriceBucket
	}

	score += w.Features * featureOverlap(a.Features, b.Features)

	// Summed weights overshoot 1 by an ulp.
	return math.Min(score, 1)
}

// featureOverlap is |shared| / max(|a|,|b|,1).
func featureOverlap(a, b []string) float64 {
	denominator := math.Max(float64(max(len(a), len(b))), 1)
	return float64(sharedCount(a, b)) / denominator
}

// TopForProfile scores every candidate not in exclude and returns the best
// limit ids. Candidates must be passed in catalog order; ties keep it.
func (s *Scorer) TopForProfile(profile *UserProfile, candidates []*ProductVector, exclude map[uuid.UUID]struct{}, limit int) []ScoredID {
	scored := make([]ScoredID, 0, len(candidates))
	for _, vector := range candidates {
		if _, skip := exclude[vector.ID]; skip {
			continue
		}
		scored = append(scored, ScoredID{ID: vector.ID, Score: s.Score(profile, vector)})
	}
	return topScored(scored, limit)
}

// TopSimilar ranks every candidate other than target by similarity.
func (s *Scorer) TopSimilar(target *ProductVector, candidates []*ProductVector, limit int) []ScoredID {
	if target == nil {
		return nil
	}
	scored := make([]ScoredID, 0, len(candidates))
	for _, vector := range candidates {
		if vector.ID == target.ID {
			continue
		}
		scored = append(scored, ScoredID{ID: vector.ID, Score: s.Similarity(target, vector)})
	}
	return topScored(scored, limit)
}

// PopularityOrder is the cold-start ranking: units sold descending, then
// rating descending. Inactive and excluded products are skipped.
func PopularityOrder(products []models.Product, exclude map[uuid.UUID]struct{}, limit int) []models.Product {
	out := make([]models.Product, 0, len(products))
	for _, p := range products {
		if !p.Active {
			continue
		}
		if _, skip := exclude[p.ID]; skip {
			continue
		}
		out = append(out, p)
	}

	sort.SliceStable(out, func(i, j int) bool {
		if out[i].SalesCount != out[j].SalesCount {
			return out[i].SalesCount > out[j].SalesCount
		}
		return out[i].Rating > out[j].Rating
	})

	if limit >= 0 && len(out) > limit {
		out = out[:limit]
	}
	return out
}

func topScored(scored []ScoredID, limit int) []ScoredID {
	sort.SliceStable(scored, func(i, j int) bool {
		return scored[i].Score > scored[j].Score
	})
	if limit >= 0 && len(scored) > limit {
		scored = scored[:limit]
	}
	return scored
}

func sharedCount(a, b []string) int {
	if len(a) == 0 || len(b) == 0 {
		return 0
	}
	set := make(map[string]struct{}, len(b))
	for _, v := range b {
		set[v] = struct{}{}
	}
	shared := 0
	seen := make(map[string]struct{}, len(a))
	for _, v := range a {
		if _, dup := seen[v]; dup {
			continue
		}
		seen[v] = struct{}{}
		if _, ok := set[v]; ok {
			shared++
		}
	}
	return shared
}

func capRatio(value, limit float64) float64 {
	if limit <= 0 {
		return 0
	}
	return math.Min(value/limit, 1)
}

func clamp01(v float64) float64 {
	return math.Max(0, math.Min(v, 1))
}
