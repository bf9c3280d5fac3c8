package graph

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/temcen/shoprank/internal/personalization"
	"github.com/temcen/shoprank/pkg/models"
)

type fakeStore struct {
	mu      sync.Mutex
	batches map[string][]Edge
	calls   int
	err     error
}

func newFakeStore() *fakeStore {
	return &fakeStore{batches: make(map[string][]Edge)}
}

func (s *fakeStore) MergeEdges(ctx context.Context, relType string, edges []Edge) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	if s.err != nil {
		return s.err
	}
	s.batches[relType] = append(s.batches[relType], edges...)
	return nil
}

func (s *fakeStore) edges(relType string) []Edge {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Edge(nil), s.batches[relType]...)
}

func (s *fakeStore) callCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

func testLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetLevel(logrus.ErrorLevel)
	return logger
}

func event(action string) models.BehaviorEvent {
	productID := uuid.New()
	return models.BehaviorEvent{
		ID:        uuid.New(),
		UserID:    uuid.New(),
		ProductID: &productID,
		Action:    action,
		Timestamp: time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC),
	}
}

func TestWriter_FlushesFullBatches(t *testing.T) {
	store := newFakeStore()
	w := newWriter(store, 2, time.Hour, personalization.DefaultWeights(), testLogger())
	w.Start()
	defer w.Stop()

	purchase := event(models.ActionPurchase)
	w.Enqueue(purchase)
	w.Enqueue(event(models.ActionView))

	assert.Eventually(t, func() bool { return store.callCount() == 2 }, time.Second, 5*time.Millisecond)

	purchased := store.edges("PURCHASED")
	require.Len(t, purchased, 1)
	assert.Equal(t, purchase.UserID, purchased[0].UserID)
	assert.Equal(t, *purchase.ProductID, purchased[0].ProductID)
	assert.Equal(t, 5.0, purchased[0].Weight)
	assert.Len(t, store.edges("VIEWED"), 1)
}

func TestWriter_FlushesOnTickAndStop(t *testing.T) {
	store := newFakeStore()
	w := newWriter(store, 100, 10*time.Millisecond, personalization.DefaultWeights(), testLogger())
	w.Start()

	w.Enqueue(event(models.ActionLike))
	assert.Eventually(t, func() bool { return len(store.edges("LIKED")) == 1 }, time.Second, 5*time.Millisecond)

	w.Enqueue(event(models.ActionShare))
	w.Stop()
	assert.Len(t, store.edges("SHARED"), 1)
}

func TestWriter_SkipsEventsWithoutProductAndDropsWhenFull(t *testing.T) {
	store := newFakeStore()
	w := newWriter(store, 1, time.Hour, personalization.DefaultWeights(), testLogger())

	w.Enqueue(models.BehaviorEvent{UserID: uuid.New(), Action: models.ActionSearch})
	assert.Empty(t, w.queue)

	// worker not started: the queue fills and further edges are dropped
	for i := 0; i < cap(w.queue)+5; i++ {
		w.Enqueue(event(models.ActionView))
	}
	assert.Len(t, w.queue, cap(w.queue))
}

func TestWriter_StoreErrorsAreLogged(t *testing.T) {
	store := newFakeStore()
	store.err = errors.New("neo4j unavailable")
	w := newWriter(store, 1, time.Hour, personalization.DefaultWeights(), testLogger())
	w.Start()

	w.Enqueue(event(models.ActionView))
	assert.Eventually(t, func() bool { return store.callCount() == 1 }, time.Second, 5*time.Millisecond)
	w.Stop()
}

func TestRelationshipType(t *testing.T) {
	tests := map[string]string{
		models.ActionView:           "VIEWED",
		models.ActionLike:           "LIKED",
		models.ActionAddToCart:      "ADDED_TO_CART",
		models.ActionPurchase:       "PURCHASED",
		models.ActionSearchPurchase: "PURCHASED",
		models.ActionReview:         "REVIEWED",
		models.ActionShare:          "SHARED",
		models.ActionSearchClick:    "CLICKED",
		"unknown":                   "INTERACTED_WITH",
	}
	for action, expected := range tests {
		assert.Equal(t, expected, RelationshipType(action), action)
	}
}

func TestEdgeParams(t *testing.T) {
	e := event(models.ActionView)
	rows := edgeParams([]Edge{{UserID: e.UserID, ProductID: *e.ProductID, Weight: 1, Timestamp: e.Timestamp}})

	require.Len(t, rows, 1)
	assert.Equal(t, e.UserID.String(), rows[0]["user_id"])
	assert.Equal(t, e.Timestamp.Unix(), rows[0]["timestamp"])
	assert.Contains(t, mergeCypher("VIEWED"), "[r:VIEWED]")
}
