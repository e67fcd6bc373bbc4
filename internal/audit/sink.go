// Package audit delivers one record per evaluation to the institution's
// audit trail.
package audit

import (
	"context"
	"errors"
	"log/slog"
	"slices"
	"sync"

	"payment_validator/internal/domain"
)

var ErrSinkClosed = errors.New("audit sink closed")

type Sink interface {
	Append(ctx context.Context, record domain.AuditRecord) error
}

// LogSink writes records to the structured log.
type LogSink struct {
	logger *slog.Logger
}

func NewLogSink(logger *slog.Logger) *LogSink {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogSink{logger: logger}
}

func (s *LogSink) Append(ctx context.Context, record domain.AuditRecord) error {
	s.logger.InfoContext(ctx, "Audit record",
		slog.String("audit_id", record.ID),
		slog.String("request_id", record.RequestID),
		slog.String("outcome", string(record.Outcome)),
		slog.String("mode", string(record.Mode)),
		slog.String("amount", record.Amount.String()),
		slog.Any("error_codes", record.ErrorCodes),
		slog.Any("warning_codes", record.WarningCodes),
		slog.String("failed_stage", record.FailedStage),
		slog.String("signature", record.Signature))
	return nil
}

// MemorySink keeps records in process. Used by tests and the offline CLI.
type MemorySink struct {
	mu      sync.Mutex
	records []domain.AuditRecord
}

func NewMemorySink() *MemorySink {
	return &MemorySink{}
}

func (s *MemorySink) Append(ctx context.Context, record domain.AuditRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records = append(s.records, record)
	return nil
}

func (s *MemorySink) Records() []domain.AuditRecord {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.records)
}
