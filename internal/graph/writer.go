// Package graph mirrors product interactions into Neo4j as weighted
// (User)-[REL]->(Product) relationships.
package graph

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
	"github.com/sirupsen/logrus"

	"github.com/temcen/shoprank/internal/config"
	"github.com/temcen/shoprank/internal/personalization"
	"github.com/temcen/shoprank/pkg/models"
)

// Edge is one interaction waiting to be merged.
type Edge struct {
	UserID    uuid.UUID
	ProductID uuid.UUID
	Type      string
	Weight    float64
	Timestamp time.Time
}

type edgeStore interface {
	MergeEdges(ctx context.Context, relType string, edges []Edge) error
}

// Writer batches edges in the background. Enqueue never blocks; when the
// queue is full the edge is dropped.
type Writer struct {
	store         edgeStore
	weights       personalization.Weights
	queue         chan Edge
	batchSize     int
	flushInterval time.Duration
	logger        *logrus.Logger

	stopChan chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
}

func NewWriter(driver neo4j.DriverWithContext, cfg config.Neo4jConfig, weights personalization.Weights, logger *logrus.Logger) *Writer {
	return newWriter(&neo4jStore{driver: driver}, cfg.BatchSize, cfg.FlushInterval, weights, logger)
}

func newWriter(store edgeStore, batchSize int, flushInterval time.Duration, weights personalization.Weights, logger *logrus.Logger) *Writer {
	if batchSize <= 0 {
		batchSize = 100
	}
	if flushInterval <= 0 {
		flushInterval = 5 * time.Second
	}
	return &Writer{
		store:         store,
		weights:       weights,
		queue:         make(chan Edge, batchSize*10),
		batchSize:     batchSize,
		flushInterval: flushInterval,
		logger:        logger,
		stopChan:      make(chan struct{}),
	}
}

func (w *Writer) Start() {
	w.wg.Add(1)
	go w.batchWorker()
}

// Stop flushes whatever is queued and waits for the worker to exit.
func (w *Writer) Stop() {
	w.stopOnce.Do(func() { close(w.stopChan) })
	w.wg.Wait()
}

func (w *Writer) Enqueue(event models.BehaviorEvent) {
	if event.ProductID == nil {
		return
	}

	edge := Edge{
		UserID:    event.UserID,
		ProductID: *event.ProductID,
		Type:      RelationshipType(event.Action),
		Weight:    w.weights.BehaviorWeight(event.Action),
		Timestamp: event.Timestamp,
	}

	select {
	case w.queue <- edge:
	default:
		w.logger.WithField("user_id", event.UserID).Warn("Neo4j update queue full")
	}
}

func (w *Writer) batchWorker() {
	defer w.wg.Done()

	var batch []Edge
	ticker := time.NewTicker(w.flushInterval)
	defer ticker.Stop()

	for {
		select {
		case edge := <-w.queue:
			batch = append(batch, edge)
			if len(batch) >= w.batchSize {
				w.flush(batch)
				batch = nil
			}
		case <-ticker.C:
			if len(batch) > 0 {
				w.flush(batch)
				batch = nil
			}
		case <-w.stopChan:
			for {
				select {
				case edge := <-w.queue:
					batch = append(batch, edge)
				default:
					if len(batch) > 0 {
						w.flush(batch)
					}
					return
				}
			}
		}
	}
}

func (w *Writer) flush(batch []Edge) {
	byType := make(map[string][]Edge)
	for _, edge := range batch {
		byType[edge.Type] = append(byType[edge.Type], edge)
	}
	types := make([]string, 0, len(byType))
	for relType := range byType {
		types = append(types, relType)
	}
	sort.Strings(types)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	for _, relType := range types {
		edges := byType[relType]
		if err := w.store.MergeEdges(ctx, relType, edges); err != nil {
			w.logger.WithError(err).WithFields(logrus.Fields{
				"relationship": relType,
				"batch_size":   len(edges),
			}).Error("Failed to process Neo4j batch update")
			continue
		}
		w.logger.WithFields(logrus.Fields{
			"relationship": relType,
			"batch_size":   len(edges),
		}).Debug("Processed Neo4j batch update")
	}
}

// RelationshipType maps a behavior action to its relationship label.
func RelationshipType(action string) string {
	switch action {
	case models.ActionView:
		return "VIEWED"
	case models.ActionLike:
		return "LIKED"
	case models.ActionAddToCart:
		return "ADDED_TO_CART"
	case models.ActionPurchase, models.ActionSearchPurchase:
		return "PURCHASED"
	case models.ActionReview:
		return "REVIEWED"
	case models.ActionShare:
		return "SHARED"
	case models.ActionSearchClick:
		return "CLICKED"
	default:
		return "INTERACTED_WITH"
	}
}

type neo4jStore struct {
	driver neo4j.DriverWithContext
}

// relType is interpolated, so it must come from RelationshipType.
func mergeCypher(relType string) string {
	return `
		UNWIND $edges AS edge
		MERGE (u:User {id: edge.user_id})
		MERGE (p:Product {id: edge.product_id})
		MERGE (u)-[r:` + relType + `]->(p)
		ON CREATE SET r.count = 0, r.weight = 0.0
		SET r.count = r.count + 1,
			r.weight = r.weight + edge.weight,
			r.last_at = edge.timestamp,
			r.updated_at = datetime()`
}

func edgeParams(edges []Edge) []map[string]interface{} {
	rows := make([]map[string]interface{}, len(edges))
	for i, edge := range edges {
		rows[i] = map[string]interface{}{
			"user_id":    edge.UserID.String(),
			"product_id": edge.ProductID.String(),
			"weight":     edge.Weight,
			"timestamp":  edge.Timestamp.Unix(),
		}
	}
	return rows
}

func (s *neo4jStore) MergeEdges(ctx context.Context, relType string, edges []Edge) error {
	session := s.driver.NewSession(ctx, neo4j.SessionConfig{AccessMode: neo4j.AccessModeWrite})
	defer session.Close(ctx)

	_, err := session.ExecuteWrite(ctx, func(tx neo4j.ManagedTransaction) (interface{}, error) {
		result, err := tx.Run(ctx, mergeCypher(relType), map[string]interface{}{
			"edges": edgeParams(edges),
		})
		if err != nil {
			return nil, err
		}
		return result.Consume(ctx)
	})
	return err
}
