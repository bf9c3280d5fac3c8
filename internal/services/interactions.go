package services

import (
	"context"
	"fmt"
	"slices"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/temcen/shoprank/internal/personalization"
	"github.com/temcen/shoprank/pkg/models"
)

// RecordInteraction persists a shopping interaction and folds it into the
// in-memory caches. A failed write is logged and the caches are still
// updated.
func (e *Engine) RecordInteraction(ctx context.Context, userID uuid.UUID, productID *uuid.UUID, action string, metadata models.EventMetadata) (*models.BehaviorEvent, error) {
	if !slices.Contains(models.InteractionActions, action) {
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedAction, action)
	}
	return e.record(ctx, e.newEvent(userID, productID, action, metadata)), nil
}

// RecordSearchInteraction is RecordInteraction for search, search_click and
// search_purchase. query is stored as the event's search term.
func (e *Engine) RecordSearchInteraction(ctx context.Context, userID uuid.UUID, query, action string, productID *uuid.UUID, metadata models.EventMetadata) (*models.BehaviorEvent, error) {
	if !slices.Contains(models.SearchActions, action) {
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedAction, action)
	}
	if query != "" {
		metadata.SearchTerm = query
	}
	return e.record(ctx, e.newEvent(userID, productID, action, metadata)), nil
}

func (e *Engine) newEvent(userID uuid.UUID, productID *uuid.UUID, action string, metadata models.EventMetadata) *models.BehaviorEvent {
	return &models.BehaviorEvent{
		ID:        uuid.New(),
		UserID:    userID,
		ProductID: productID,
		Action:    action,
		Metadata:  metadata,
		Timestamp: e.now(),
	}
}

func (e *Engine) record(ctx context.Context, event *models.BehaviorEvent) *models.BehaviorEvent {
	// Must run before Append or a first rebuild would replay this event.
	e.ensureInitialized(ctx)

	if err := e.events.Append(ctx, event); err != nil {
		if e.metrics != nil {
			e.metrics.persistenceFailures.Inc()
		}
		e.logger.WithError(err).WithFields(logrus.Fields{
			"user_id": event.UserID,
			"action":  event.Action,
		}).Warn("Failed to persist behavior event")
	}

	e.ApplyEvent(event)

	if e.publisher != nil {
		if err := e.publisher.PublishBehaviorEvent(ctx, event); err != nil {
			if e.metrics != nil {
				e.metrics.publishFailures.Inc()
			}
			e.logger.WithError(err).WithField("event_id", event.ID).Warn("Failed to publish behavior event")
		}
	}

	if e.graph != nil && event.ProductID != nil {
		e.graph.Enqueue(*event)
	}

	if e.metrics != nil {
		e.metrics.eventsRecorded.WithLabelValues(event.Action).Inc()
	}

	e.logger.WithFields(logrus.Fields{
		"user_id":    event.UserID,
		"product_id": event.ProductID,
		"action":     event.Action,
	}).Debug("Recorded behavior event")

	return event
}

// ApplyEvent is the incremental update path: search counters and the
// running click price for search actions, global product stats, then the
// preference profile. Profiles are normalized after every event. Users with
// no profile yet are skipped until the next rebuild.
func (e *Engine) ApplyEvent(event *models.BehaviorEvent) {
	e.mu.Lock()
	defer e.mu.Unlock()

	state := e.state
	if state == nil {
		return
	}

	if slices.Contains(models.SearchActions, event.Action) {
		personalization.ApplySearchEvent(state.searchProfileFor(event.UserID), event, state.lookupProduct)
		state.popularity.Record(event)
	}

	if event.ProductID == nil {
		return
	}
	e.builder.ApplyIncrementalEvent(state.profiles[event.UserID], state.vectors[*event.ProductID], event.Action)
}

// ApplyPurchase folds an order line into the buyer's profile with the
// quantity as multiplier, then normalizes.
func (e *Engine) ApplyPurchase(item models.OrderLineItem) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.state == nil {
		return
	}
	profile := e.state.profiles[item.UserID]
	vector := e.state.vectors[item.ProductID]
	if profile == nil || vector == nil {
		return
	}

	e.builder.ApplyInteraction(profile, vector, models.ActionPurchase, float64(item.Quantity))
	personalization.Normalize(profile)
}

// ApplyOrder folds a newly placed order into the buyer's profile. Other
// statuses are ignored. When the caches are not built yet they are built
// instead, which already includes the stored order.
func (e *Engine) ApplyOrder(ctx context.Context, order models.OrderEvent) error {
	if order.Status != models.OrderStatusPlaced {
		return nil
	}
	if !e.initialized.Load() {
		return e.Initialize(ctx)
	}
	for _, item := range order.LineItems() {
		e.ApplyPurchase(item)
	}
	return nil
}
