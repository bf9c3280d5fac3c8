package services

import (
	"context"
	"errors"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/sirupsen/logrus"

	"github.com/temcen/shoprank/internal/database"
)

// HealthCheck probes one dependency.
type HealthCheck func(ctx context.Context) error

type statusReporter interface {
	Status() EngineStatus
}

var errNotInitialized = errors.New("personalization caches not built")

type HealthService struct {
	logger      *logrus.Logger
	db          *database.Database
	engine      statusReporter
	critical    map[string]HealthCheck
	nonCritical map[string]HealthCheck
	timeout     time.Duration

	healthCheckStatus   *prometheus.GaugeVec
	lastHealthCheck     *prometheus.GaugeVec
	dbConnectionMetrics *prometheus.GaugeVec
}

type HealthStatus struct {
	Status      string                 `json:"status"`
	Timestamp   time.Time              `json:"timestamp"`
	Services    map[string]string      `json:"services"`
	Critical    []string               `json:"critical_failures,omitempty"`
	NonCritical []string               `json:"non_critical_failures,omitempty"`
	Details     map[string]interface{} `json:"details,omitempty"`
}

// NewHealthService checks PostgreSQL and Redis as critical dependencies,
// Neo4j (when configured) and the personalization caches as non-critical.
func NewHealthService(db *database.Database, engine statusReporter, reg prometheus.Registerer, logger *logrus.Logger) *HealthService {
	critical := map[string]HealthCheck{
		"postgresql": func(ctx context.Context) error { return db.PG.Ping(ctx) },
		"redis":      func(ctx context.Context) error { return db.Redis.Ping(ctx).Err() },
	}
	nonCritical := map[string]HealthCheck{}
	if db.Neo4j != nil {
		nonCritical["neo4j"] = func(ctx context.Context) error { return db.Neo4j.VerifyConnectivity(ctx) }
	}

	hs := newHealthService(engine, critical, nonCritical, reg, logger)
	hs.db = db
	return hs
}

func newHealthService(engine statusReporter, critical, nonCritical map[string]HealthCheck, reg prometheus.Registerer, logger *logrus.Logger) *HealthService {
	factory := promauto.With(reg)

	return &HealthService{
		logger:      logger,
		engine:      engine,
		critical:    critical,
		nonCritical: nonCritical,
		timeout:     5 * time.Second,
		healthCheckStatus: factory.NewGaugeVec(prometheus.GaugeOpts{
			Name: "health_check_status",
			Help: "Health check status (1 = healthy, 0 = unhealthy)",
		}, []string{"service"}),
		lastHealthCheck: factory.NewGaugeVec(prometheus.GaugeOpts{
			Name: "health_check_timestamp",
			Help: "Timestamp of last health check",
		}, []string{"service"}),
		dbConnectionMetrics: factory.NewGaugeVec(prometheus.GaugeOpts{
			Name: "database_connection_pool_usage",
			Help: "Database connection pool usage",
		}, []string{"database", "state"}),
	}
}

func (s *HealthService) CheckHealth(ctx context.Context) *HealthStatus {
	status := &HealthStatus{
		Timestamp: time.Now(),
		Services:  make(map[string]string),
		Details:   make(map[string]interface{}),
	}

	allCriticalHealthy := true
	for name, check := range s.critical {
		if err := s.run(ctx, check); err != nil {
			status.Services[name] = "unhealthy"
			status.Critical = append(status.Critical, name)
			allCriticalHealthy = false
			s.logger.WithError(err).Errorf("Critical service %s is unhealthy", name)
			s.UpdateHealthMetrics(name, false)
		} else {
			status.Services[name] = "healthy"
			s.UpdateHealthMetrics(name, true)
		}
	}

	nonCritical := make(map[string]HealthCheck, len(s.nonCritical)+1)
	for name, check := range s.nonCritical {
		nonCritical[name] = check
	}
	if s.engine != nil {
		engineStatus := s.engine.Status()
		status.Details["personalization"] = engineStatus
		nonCritical["personalization"] = func(context.Context) error {
			if !engineStatus.Initialized {
				return errNotInitialized
			}
			return nil
		}
	}

	for name, check := range nonCritical {
		if err := s.run(ctx, check); err != nil {
			status.Services[name] = "unhealthy"
			status.NonCritical = append(status.NonCritical, name)
			s.logger.WithError(err).Warnf("Non-critical service %s is unhealthy", name)
			s.UpdateHealthMetrics(name, false)
		} else {
			status.Services[name] = "healthy"
			s.UpdateHealthMetrics(name, true)
		}
	}

	s.collectDatabaseMetrics()

	if allCriticalHealthy {
		if len(status.NonCritical) == 0 {
			status.Status = "healthy"
		} else {
			status.Status = "degraded"
		}
	} else {
		status.Status = "unhealthy"
	}

	return status
}

func (s *HealthService) run(ctx context.Context, check HealthCheck) error {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	return check(ctx)
}

func (s *HealthService) collectDatabaseMetrics() {
	if s.db == nil || s.db.PG == nil {
		return
	}
	stats := s.db.PG.Stat()

	s.dbConnectionMetrics.WithLabelValues("postgresql", "acquired_conns").Set(float64(stats.AcquiredConns()))
	s.dbConnectionMetrics.WithLabelValues("postgresql", "idle_conns").Set(float64(stats.IdleConns()))
	s.dbConnectionMetrics.WithLabelValues("postgresql", "max_conns").Set(float64(stats.MaxConns()))
	s.dbConnectionMetrics.WithLabelValues("postgresql", "total_conns").Set(float64(stats.TotalConns()))
}

func (s *HealthService) UpdateHealthMetrics(serviceName string, healthy bool) {
	if healthy {
		s.healthCheckStatus.WithLabelValues(serviceName).Set(1)
	} else {
		s.healthCheckStatus.WithLabelValues(serviceName).Set(0)
	}
	s.lastHealthCheck.WithLabelValues(serviceName).Set(float64(time.Now().Unix()))
}
