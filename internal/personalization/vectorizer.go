package personalization

import (
	"github.com/google/uuid"

	"github.com/temcen/shoprank/pkg/models"
)

// PriceBucket is a discretized price range label.
type PriceBucket string

const (
	PriceBudget  PriceBucket = "budget"
	PriceLow     PriceBucket = "low"
	PriceMedium  PriceBucket = "medium"
	PriceHigh    PriceBucket = "high"
	PricePremium PriceBucket = "premium"
)

// BucketForPrice maps a price onto its bucket. Lower bounds are inclusive.
func BucketForPrice(price float64) PriceBucket {
	switch {
	case price < 25:
		return PriceBudget
	case price < 50:
		return PriceLow
	case price < 100:
		return PriceMedium
	case price < 200:
		return PriceHigh
	default:
		return PricePremium
	}
}

// ProductVector is the cached per-product feature summary used for scoring.
// Vectors are rebuilt on full refresh only; edits to the catalog record are
// not reflected until then.
type ProductVector struct {
	ID          uuid.UUID
	Category    string
	Subcategory string
	Brand       string
	PriceBucket PriceBucket
	Rating      float64
	Popularity  int
	Tags        []string
	Colors      []string
	Sizes       []string
	Features    []string
}

// ExtractFeatures returns the deduplicated union of a product's tags,
// material, style and occasion. Empty values are skipped.
func ExtractFeatures(p *models.Product) []string {
	seen := make(map[string]struct{}, len(p.Tags)+3)
	features := make([]string, 0, len(p.Tags)+3)

	add := func(value string) {
		if value == "" {
			return
		}
		if _, ok := seen[value]; ok {
			return
		}
		seen[value] = struct{}{}
		features = append(features, value)
	}

	for _, tag := range p.Tags {
		add(tag)
	}
	add(p.Material)
	add(p.Style)
	add(p.Occasion)

	return features
}

// NewProductVector summarizes a single product record.
func NewProductVector(p *models.Product) *ProductVector {
	return &ProductVector{
		ID:          p.ID,
		Category:    p.Category,
		Subcategory: p.Subcategory,
		Brand:       p.Brand,
		PriceBucket: BucketForPrice(p.Price),
		Rating:      p.Rating,
		Popularity:  p.SalesCount,
		Tags:        dedupe(p.Tags),
		Colors:      dedupe(p.Colors),
		Sizes:       dedupe(p.Sizes),
		Features:    ExtractFeatures(p),
	}
}

// BuildVectors returns a vector for every active product, keyed by id.
func BuildVectors(products []models.Product) map[uuid.UUID]*ProductVector {
	vectors := make(map[uuid.UUID]*ProductVector, len(products))
	for i := range products {
		if !products[i].Active {
			continue
		}
		vectors[products[i].ID] = NewProductVector(&products[i])
	}
	return vectors
}

func dedupe(values []string) []string {
	if len(values) == 0 {
		return nil
	}
	seen := make(map[string]struct{}, len(values))
	out := make([]string, 0, len(values))
	for _, v := range values {
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	return out
}
