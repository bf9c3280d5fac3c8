package personalization

import (
	"github.com/google/uuid"

	"github.com/temcen/shoprank/pkg/models"
)

// SearchUserProfile tracks what a user searches for and what they click in
// results. It is separate from UserProfile.
type SearchUserProfile struct {
	UserID            uuid.UUID      `json:"user_id"`
	SearchTerms       map[string]int `json:"search_terms"`
	ClickedCategories map[string]int `json:"clicked_categories"`
	ClickedBrands     map[string]int `json:"clicked_brands"`
	AvgPriceClicked   float64        `json:"avg_price_clicked"`
	TotalSearches     int            `json:"total_searches"`
	TotalClicks       int            `json:"total_clicks"`
}

func NewSearchUserProfile(userID uuid.UUID) *SearchUserProfile {
	return &SearchUserProfile{
		UserID:            userID,
		SearchTerms:       make(map[string]int),
		ClickedCategories: make(map[string]int),
		ClickedBrands:     make(map[string]int),
	}
}

// RecordSearch counts a submitted query.
func (p *SearchUserProfile) RecordSearch(term string) {
	p.TotalSearches++
	if term = NormalizeTerm(term); term != "" {
		p.SearchTerms[term]++
	}
}

// RecordClick counts a result click and folds the product's price into the
// running average. Clicks on unknown products are dropped so the average
// stays consistent with TotalClicks.
func (p *SearchUserProfile) RecordClick(product *models.Product) {
	if product == nil {
		return
	}
	p.TotalClicks++
	if product.Category != "" {
		p.ClickedCategories[product.Category]++
	}
	if product.Brand != "" {
		p.ClickedBrands[product.Brand]++
	}
	clicks := float64(p.TotalClicks)
	p.AvgPriceClicked = (p.AvgPriceClicked*(clicks-1) + product.Price) / clicks
}

// CategoryShare is the fraction of clicks that landed in category.
func (p *SearchUserProfile) CategoryShare(category string) float64 {
	if p.TotalClicks == 0 {
		return 0
	}
	return float64(p.ClickedCategories[category]) / float64(p.TotalClicks)
}

// BrandShare is the fraction of clicks that landed on brand.
func (p *SearchUserProfile) BrandShare(brand string) float64 {
	if p.TotalClicks == 0 || brand == "" {
		return 0
	}
	return float64(p.ClickedBrands[brand]) / float64(p.TotalClicks)
}

func (p *SearchUserProfile) Clone() *SearchUserProfile {
	out := *p
	out.SearchTerms = cloneCounts(p.SearchTerms)
	out.ClickedCategories = cloneCounts(p.ClickedCategories)
	out.ClickedBrands = cloneCounts(p.ClickedBrands)
	return &out
}

// ApplySearchEvent updates a search profile from one event. lookup resolves
// the clicked product.
func ApplySearchEvent(profile *SearchUserProfile, event *models.BehaviorEvent, lookup func(uuid.UUID) *models.Product) {
	switch event.Action {
	case models.ActionSearch:
		profile.RecordSearch(event.Metadata.SearchTerm)
	case models.ActionSearchClick:
		var product *models.Product
		if event.ProductID != nil && lookup != nil {
			product = lookup(*event.ProductID)
		}
		profile.RecordClick(product)
	}
}

func cloneCounts(m map[string]int) map[string]int {
	out := make(map[string]int, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}
