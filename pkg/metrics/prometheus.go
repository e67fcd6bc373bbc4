package metrics

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"payment_validator/internal/domain"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const (
	OutcomeAccepted    = "accepted"
	OutcomeRejected    = "rejected"
	OutcomeSystemError = "system_error"
)

type MetricsCollector struct {
	registry           *prometheus.Registry
	evaluations        *prometheus.CounterVec
	evaluationDuration prometheus.Histogram
	stageDuration      *prometheus.HistogramVec
	rejections         *prometheus.CounterVec
	warnings           *prometheus.CounterVec
	fraudScore         prometheus.Histogram
	systemFaults       *prometheus.CounterVec
	auditDropped       prometheus.Counter
	logger             *slog.Logger
}

func NewMetricsCollector(logger *slog.Logger) *MetricsCollector {
	if logger == nil {
		logger = slog.Default()
	}

	registry := prometheus.NewRegistry()
	factory := promauto.With(registry)

	return &MetricsCollector{
		registry: registry,
		evaluations: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "payment_evaluations_total",
			Help: "Total number of payment evaluations by outcome",
		}, []string{"outcome"}),
		evaluationDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "payment_evaluation_duration_seconds",
			Help:    "Time taken to evaluate a payment",
			Buckets: prometheus.DefBuckets,
		}),
		stageDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "payment_stage_duration_seconds",
			Help:    "Time spent in each validation stage",
			Buckets: []float64{.0005, .001, .005, .01, .05, .1, .5, 1},
		}, []string{"stage"}),
		rejections: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "payment_rejections_total",
			Help: "Validation errors by code",
		}, []string{"code"}),
		warnings: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "payment_warnings_total",
			Help: "Validation warnings by code",
		}, []string{"code"}),
		fraudScore: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "payment_fraud_score",
			Help:    "Distribution of fraud scores",
			Buckets: []float64{0, .1, .2, .3, .4, .5, .6, .7, .8, .9, 1},
		}),
		systemFaults: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "payment_system_faults_total",
			Help: "Evaluations aborted by a collaborator or internal fault",
		}, []string{"stage"}),
		auditDropped: factory.NewCounter(prometheus.CounterOpts{
			Name: "payment_audit_dropped_total",
			Help: "Audit records that could not be delivered",
		}),
		logger: logger,
	}
}

func (m *MetricsCollector) RecordEvaluation(duration time.Duration, result *domain.ValidationResult) {
	m.evaluationDuration.Observe(duration.Seconds())

	if result.Valid {
		m.evaluations.WithLabelValues(OutcomeAccepted).Inc()
	} else {
		m.evaluations.WithLabelValues(OutcomeRejected).Inc()
	}
	for _, e := range result.Errors {
		m.rejections.WithLabelValues(string(e.Code)).Inc()
	}
	for _, w := range result.Warnings {
		m.warnings.WithLabelValues(string(w.Code)).Inc()
	}
	if result.FraudScore != nil {
		m.fraudScore.Observe(*result.FraudScore)
	}
}

func (m *MetricsCollector) ObserveStage(stage string, duration time.Duration) {
	m.stageDuration.WithLabelValues(stage).Observe(duration.Seconds())
}

func (m *MetricsCollector) RecordSystemFault(stage string) {
	m.evaluations.WithLabelValues(OutcomeSystemError).Inc()
	m.systemFaults.WithLabelValues(stage).Inc()
}

func (m *MetricsCollector) RecordAuditDropped() {
	m.auditDropped.Inc()
}

func (m *MetricsCollector) GetHandler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *MetricsCollector) StartMetricsServer(addr string) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", m.GetHandler())

	server := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		m.logger.Info("Starting metrics server", slog.String("addr", addr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			m.logger.Error("Metrics server failed", slog.String("error", err.Error()))
		}
	}()

	return server
}

func (m *MetricsCollector) Shutdown(ctx context.Context) error {
	m.logger.Info("Metrics collector shutdown complete")
	return nil
}
