package models

import (
	"time"

	"github.com/google/uuid"
)

// Behavior event actions.
const (
	ActionView           = "view"
	ActionLike           = "like"
	ActionAddToCart      = "add_to_cart"
	ActionPurchase       = "purchase"
	ActionReview         = "review"
	ActionShare          = "share"
	ActionSearch         = "search"
	ActionSearchClick    = "search_click"
	ActionSearchPurchase = "search_purchase"
)

// InteractionActions are the actions accepted by recordInteraction.
var InteractionActions = []string{
	ActionView, ActionLike, ActionAddToCart, ActionPurchase, ActionReview, ActionShare,
}

// SearchActions are the actions accepted by recordSearchInteraction.
var SearchActions = []string{
	ActionSearch, ActionSearchClick, ActionSearchPurchase,
}

// EventMetadata carries optional action-specific details.
type EventMetadata struct {
	SearchTerm    string   `json:"search_term,omitempty"`
	ClickPosition *int     `json:"click_position,omitempty"`
	Quantity      *int     `json:"quantity,omitempty"`
	Rating        *float64 `json:"rating,omitempty"`
}

// BehaviorEvent is a recorded user action.
type BehaviorEvent struct {
	ID        uuid.UUID     `json:"id" db:"id"`
	UserID    uuid.UUID     `json:"user_id" db:"user_id"`
	ProductID *uuid.UUID    `json:"product_id,omitempty" db:"product_id"`
	Action    string        `json:"action" db:"action"`
	Metadata  EventMetadata `json:"metadata" db:"metadata"`
	Timestamp time.Time     `json:"timestamp" db:"timestamp"`
}

// InteractionRequest is the body of POST /interactions.
type InteractionRequest struct {
	UserID    uuid.UUID     `json:"user_id" validate:"required"`
	ProductID *uuid.UUID    `json:"product_id,omitempty"`
	Action    string        `json:"action" validate:"required,oneof=view like add_to_cart purchase review share"`
	Metadata  EventMetadata `json:"metadata"`
}

// SearchInteractionRequest is the body of POST /search/interactions.
type SearchInteractionRequest struct {
	UserID    uuid.UUID     `json:"user_id" validate:"required"`
	Query     string        `json:"query" validate:"max=256"`
	Action    string        `json:"action" validate:"required,oneof=search search_click search_purchase"`
	ProductID *uuid.UUID    `json:"product_id,omitempty"`
	Metadata  EventMetadata `json:"metadata"`
}
