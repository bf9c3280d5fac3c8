package personalization

// Weights is the tunable constant table shared by every scorer in this
// package. DefaultWeights returns the production values.
type Weights struct {
	Behavior    map[string]float64 `mapstructure:"behavior"`
	Interaction InteractionWeights `mapstructure:"interaction"`
	Recommend   RecommendWeights   `mapstructure:"recommend"`
	Similarity  SimilarityWeights  `mapstructure:"similarity"`
	Rank        RankWeights        `mapstructure:"rank"`
	Text        TextWeights        `mapstructure:"text"`
	Preference  PreferenceWeights  `mapstructure:"preference"`
	Popularity  PopularityWeights  `mapstructure:"popularity"`
	Recency     RecencyWeights     `mapstructure:"recency"`
	Suggestion  SuggestionWeights  `mapstructure:"suggestion"`
}

// InteractionWeights scale an interaction's weight for the secondary
// profile mappings.
type InteractionWeights struct {
	Color   float64 `mapstructure:"color"`
	Feature float64 `mapstructure:"feature"`
}

type RecommendWeights struct {
	Category        float64 `mapstructure:"category"`
	Brand           float64 `mapstructure:"brand"`
	PriceBucket     float64 `mapstructure:"price_bucket"`
	Rating          float64 `mapstructure:"rating"`
	Popularity      float64 `mapstructure:"popularity"`
	PopularityCap   float64 `mapstructure:"popularity_cap"`
	FeatureBonus    float64 `mapstructure:"feature_bonus"`
	FeatureBonusMax float64 `mapstructure:"feature_bonus_max"`
}

type SimilarityWeights struct {
	Category    float64 `mapstructure:"category"`
	Subcategory float64 `mapstructure:"subcategory"`
	Brand       float64 `mapstructure:"brand"`
	PriceBucket float64 `mapstructure:"price_bucket"`
	Features    float64 `mapstructure:"features"`
}

type RankWeights struct {
	TextRelevance          float64 `mapstructure:"text_relevance"`
	UserPreference         float64 `mapstructure:"user_preference"`
	Popularity             float64 `mapstructure:"popularity"`
	Recency                float64 `mapstructure:"recency"`
	Rating                 float64 `mapstructure:"rating"`
	NeutralPreference      float64 `mapstructure:"neutral_preference"`
	DefaultDiversifyFactor float64 `mapstructure:"default_diversify_factor"`
}

type TextWeights struct {
	Name          float64 `mapstructure:"name"`
	Description   float64 `mapstructure:"description"`
	Category      float64 `mapstructure:"category"`
	Tag           float64 `mapstructure:"tag"`
	Brand         float64 `mapstructure:"brand"`
	Approximate   float64 `mapstructure:"approximate"`
	PrefixRatio   float64 `mapstructure:"prefix_ratio"`
	MinTermLength int     `mapstructure:"min_term_length"`
}

type PreferenceWeights struct {
	Category float64 `mapstructure:"category"`
	Brand    float64 `mapstructure:"brand"`
	Price    float64 `mapstructure:"price"`
}

type PopularityWeights struct {
	Clicks      float64 `mapstructure:"clicks"`
	Purchases   float64 `mapstructure:"purchases"`
	Sales       float64 `mapstructure:"sales"`
	ClickCap    float64 `mapstructure:"click_cap"`
	PurchaseCap float64 `mapstructure:"purchase_cap"`
	SalesCap    float64 `mapstructure:"sales_cap"`
}

type RecencyWeights struct {
	Age               float64 `mapstructure:"age"`
	LastSearched      float64 `mapstructure:"last_searched"`
	AgeHorizonDays    float64 `mapstructure:"age_horizon_days"`
	SearchHorizonDays float64 `mapstructure:"search_horizon_days"`
}

// SuggestionWeights score query completions by source.
type SuggestionWeights struct {
	HistoryBase  float64 `mapstructure:"history_base"`
	PopularScale float64 `mapstructure:"popular_scale"`
	Catalog      float64 `mapstructure:"catalog"`
}

// DefaultWeights returns the weights table in production use.
func DefaultWeights() Weights {
	return Weights{
		Behavior: map[string]float64{
			"view":        1,
			"like":        2,
			"add_to_cart": 3,
			"purchase":    5,
			"review":      3,
			"share":       2,
		},
		Interaction: InteractionWeights{
			Color:   0.5,
			Feature: 0.3,
		},
		Recommend: RecommendWeights{
			Category:        0.30,
			Brand:           0.20,
			PriceBucket:     0.20,
			Rating:          0.15,
			Popularity:      0.15,
			PopularityCap:   100,
			FeatureBonus:    0.1,
			FeatureBonusMax: 0.2,
		},
		Similarity: SimilarityWeights{
			Category:    0.4,
			Subcategory: 0.2,
			Brand:       0.15,
			PriceBucket: 0.15,
			Features:    0.1,
		},
		Rank: RankWeights{
			TextRelevance:          0.35,
			UserPreference:         0.25,
			Popularity:             0.20,
			Recency:                0.10,
			Rating:                 0.10,
			NeutralPreference:      0.5,
			DefaultDiversifyFactor: 0.1,
		},
		Text: TextWeights{
			Name:          0.4,
			Description:   0.2,
			Category:      0.15,
			Tag:           0.1,
			Brand:         0.1,
			Approximate:   0.05,
			PrefixRatio:   0.8,
			MinTermLength: 3,
		},
		Preference: PreferenceWeights{
			Category: 0.4,
			Brand:    0.3,
			Price:    0.3,
		},
		Popularity: PopularityWeights{
			Clicks:      0.4,
			Purchases:   0.4,
			Sales:       0.2,
			ClickCap:    100,
			PurchaseCap: 50,
			SalesCap:    100,
		},
		Recency: RecencyWeights{
			Age:               0.6,
			LastSearched:      0.4,
			AgeHorizonDays:    365,
			SearchHorizonDays: 30,
		},
		Suggestion: SuggestionWeights{
			HistoryBase:  10,
			PopularScale: 1,
			Catalog:      5,
		},
	}
}

// BehaviorWeight returns the relative importance of an action. Unknown
// actions weigh 1.
func (w Weights) BehaviorWeight(action string) float64 {
	if weight, ok := w.Behavior[action]; ok {
		return weight
	}
	return 1
}
