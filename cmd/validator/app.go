package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"payment_validator/internal/audit"
	"payment_validator/internal/config"
	"payment_validator/internal/counters"
	"payment_validator/internal/domain"
	"payment_validator/internal/fraud"
	"payment_validator/internal/policy"
	"payment_validator/internal/processor"
	"payment_validator/internal/repository/memory"
	"payment_validator/pkg/crypto"
	"payment_validator/pkg/metrics"
)

// app holds the wired components shared by every subcommand.
type app struct {
	cfg       *config.Config
	logger    *slog.Logger
	metrics   *metrics.MetricsCollector
	policies  *policy.Store
	processor *processor.ValidationProcessor
	audit     *audit.AsyncSink
	kafka     *audit.KafkaSink
}

func newApp(ctx context.Context, cfg *config.Config, seedPath string, logger *slog.Logger) (*app, error) {
	policies, err := policy.NewStore(cfg.PolicyFile, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to load policy: %w", err)
	}

	threshold, err := cfg.Validation.Threshold()
	if err != nil {
		return nil, err
	}
	collab := memory.NewCollaborators(threshold)
	if seedPath != "" {
		seed, err := memory.LoadSeed(seedPath)
		if err != nil {
			return nil, err
		}
		if err := seed.Apply(ctx, collab); err != nil {
			return nil, err
		}
		logger.Info("Reference data seeded",
			slog.String("file", seedPath),
			slog.Int("accounts", len(seed.Accounts)),
			slog.Int("rules", len(seed.Rules)))
	}

	counterCfg, err := cfg.Counters.Store()
	if err != nil {
		return nil, err
	}
	store := counters.NewStore(counterCfg)
	profiles := fraud.NewMemoryProfileStore()
	detector := fraud.NewFraudDetector(logger,
		fraud.DefaultSignals(store, profiles, collab.Reputation, cfg.Fraud.Detector())...)

	engine, err := processor.NewRuleEngine(collab.Rules, logger)
	if err != nil {
		return nil, err
	}

	a := &app{
		cfg:      cfg,
		logger:   logger,
		metrics:  metrics.NewMetricsCollector(logger),
		policies: policies,
	}

	var downstream audit.Sink = audit.NewLogSink(logger)
	if cfg.Kafka.Enabled {
		a.kafka, err = audit.NewKafkaSink(cfg.Kafka.Brokers, cfg.Kafka.Topic, logger)
		if err != nil {
			return nil, err
		}
		downstream = a.kafka
	}

	var signer *crypto.Signer
	if cfg.Audit.SigningKey != "" {
		signer = crypto.NewSigner(cfg.Audit.SigningKey, logger)
	} else {
		logger.Warn("AUDIT_SIGNING_KEY not set, audit records are unsigned")
	}

	a.audit = audit.NewAsyncSink(downstream, audit.AsyncOptions{
		Workers:   cfg.Audit.Workers,
		QueueSize: cfg.Audit.QueueSize,
		Signer:    signer,
		OnFailure: func(domain.AuditRecord, error) { a.metrics.RecordAuditDropped() },
	}, logger)

	stages := processor.DefaultStages(processor.Dependencies{
		Accounts:   collab.Accounts,
		Compliance: collab.Compliance,
		Calendar:   collab.Calendar,
		Counters:   store,
		Detector:   detector,
		Profiles:   profiles,
		Rules:      engine,
		StatusTTL:  cfg.Validation.StatusCacheTTL,
	})
	a.processor = processor.NewValidationProcessor(policies, stages, processor.Options{
		StageTimeout: cfg.Validation.StageTimeout,
		Recorder:     a.metrics,
		Audit:        a.audit,
	}, logger)

	return a, nil
}

// close drains the audit queue, then releases the transport.
func (a *app) close(ctx context.Context) error {
	var errs []error
	if err := a.audit.Shutdown(ctx); err != nil {
		errs = append(errs, fmt.Errorf("audit sink shutdown: %w", err))
	}
	if a.kafka != nil {
		if err := a.kafka.Close(); err != nil {
			errs = append(errs, fmt.Errorf("kafka close: %w", err))
		}
	}
	if err := a.metrics.Shutdown(ctx); err != nil {
		errs = append(errs, fmt.Errorf("metrics shutdown: %w", err))
	}
	return errors.Join(errs...)
}
