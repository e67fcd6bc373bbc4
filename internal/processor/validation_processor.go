package processor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"payment_validator/internal/audit"
	"payment_validator/internal/counters"
	"payment_validator/internal/domain"
	"payment_validator/internal/fraud"
	"payment_validator/internal/policy"
	"payment_validator/internal/repository"

	"github.com/google/uuid"
)

const (
	DefaultStageTimeout = 2 * time.Second
	auditTimeout        = 2 * time.Second
)

// Recorder receives evaluation metrics.
type Recorder interface {
	ObserveStage(stage string, duration time.Duration)
	RecordEvaluation(duration time.Duration, result *domain.ValidationResult)
	RecordSystemFault(stage string)
}

type nopRecorder struct{}

func (nopRecorder) ObserveStage(string, time.Duration)                       {}
func (nopRecorder) RecordEvaluation(time.Duration, *domain.ValidationResult) {}
func (nopRecorder) RecordSystemFault(string)                                 {}

type Options struct {
	StageTimeout time.Duration
	Recorder     Recorder
	Audit        audit.Sink
	Now          func() time.Time
}

// ValidationProcessor runs the stage chain for one payment at a time; any
// number of evaluations may run concurrently.
type ValidationProcessor struct {
	stages       []Stage
	policies     *policy.Store
	stageTimeout time.Duration
	recorder     Recorder
	audit        audit.Sink
	now          func() time.Time
	logger       *slog.Logger
}

func NewValidationProcessor(
	policies *policy.Store,
	stages []Stage,
	opts Options,
	logger *slog.Logger,
) *ValidationProcessor {
	if logger == nil {
		logger = slog.Default()
	}
	if opts.StageTimeout <= 0 {
		opts.StageTimeout = DefaultStageTimeout
	}
	if opts.Recorder == nil {
		opts.Recorder = nopRecorder{}
	}
	if opts.Audit == nil {
		opts.Audit = audit.NewNoOpSink(logger)
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}

	return &ValidationProcessor{
		stages:       stages,
		policies:     policies,
		stageTimeout: opts.StageTimeout,
		recorder:     opts.Recorder,
		audit:        opts.Audit,
		now:          opts.Now,
		logger:       logger,
	}
}

// Dependencies are the collaborators of the standard stage chain.
type Dependencies struct {
	Accounts   repository.AccountService
	Compliance repository.ComplianceService
	Calendar   repository.HolidayCalendar
	Counters   *counters.Store
	Detector   *fraud.FraudDetector
	Profiles   fraud.ProfileStore
	Rules      *RuleEngine
	StatusTTL  time.Duration
}

// DefaultStages returns the chain in its fixed order: basic, account,
// limits, schedule, compliance, fraud, business.
func DefaultStages(deps Dependencies) []Stage {
	return []Stage{
		NewBasicStage(),
		NewAccountStage(deps.Accounts, NewStatusCache(deps.Accounts, deps.StatusTTL)),
		NewLimitsStage(deps.Counters),
		NewScheduleStage(deps.Calendar),
		NewComplianceStage(deps.Compliance),
		NewFraudStage(deps.Detector, deps.Profiles),
		NewBusinessStage(deps.Rules),
	}
}

// Evaluate decides whether the payment may proceed. Business rejections are
// reported in the result; a non-nil error is always a *SystemError.
func (p *ValidationProcessor) Evaluate(ctx context.Context, req *domain.PaymentRequest) (*domain.ValidationResult, error) {
	start := p.now()
	ev := NewEvaluation(req, p.policies.Current(), start)
	builder := domain.NewResultBuilder(ev.RequestID())

	failedStage := ""
	for _, stage := range p.stages {
		res, err := p.runStage(ctx, stage, ev)
		if err != nil {
			return nil, p.fail(ctx, ev, stage.Name(), err)
		}

		builder.AddErrors(res.Errors...)
		builder.AddWarnings(res.Warnings...)
		builder.AddAppliedRules(res.AppliedRules...)
		if res.FraudScore != nil {
			builder.SetFraud(*res.FraudScore, res.RiskLevel)
		}
		if res.ComplianceScore != nil {
			builder.SetComplianceScore(*res.ComplianceScore)
		}

		if len(res.Errors) > 0 {
			failedStage = stage.Name()
			break
		}
	}

	if failedStage != "" {
		ev.rollback()
	} else if err := ev.commit(ctx, p.now()); err != nil {
		return nil, p.fail(ctx, ev, StageCommit, err)
	}

	result := builder.Finalize(p.now())
	p.recorder.RecordEvaluation(p.now().Sub(start), result)
	p.emit(ctx, ev, result, failedStage, nil)

	p.logger.InfoContext(ctx, "Payment evaluated",
		slog.String("request_id", result.RequestID),
		slog.Bool("valid", result.Valid),
		slog.Int("errors", len(result.Errors)),
		slog.Int("warnings", len(result.Warnings)),
		slog.String("failed_stage", failedStage))

	return result, nil
}

func (p *ValidationProcessor) runStage(ctx context.Context, stage Stage, ev *Evaluation) (StageResult, error) {
	if err := ctx.Err(); err != nil {
		return StageResult{}, err
	}

	stageCtx, cancel := context.WithTimeout(ctx, p.stageTimeout)
	defer cancel()

	started := time.Now()
	res, err := stage.Validate(stageCtx, ev)
	p.recorder.ObserveStage(stage.Name(), time.Since(started))

	if err == nil && errors.Is(stageCtx.Err(), context.DeadlineExceeded) {
		err = fmt.Errorf("stage exceeded %s: %w", p.stageTimeout, context.DeadlineExceeded)
	}
	return res, err
}

func (p *ValidationProcessor) fail(ctx context.Context, ev *Evaluation, stage string, cause error) error {
	ev.rollback()

	sysErr := &SystemError{Stage: stage, Err: cause}
	p.recorder.RecordSystemFault(stage)
	p.emit(ctx, ev, nil, stage, sysErr)

	p.logger.ErrorContext(ctx, "Payment evaluation failed",
		slog.String("request_id", ev.RequestID()),
		slog.String("stage", stage),
		slog.String("error", cause.Error()))

	return sysErr
}

func (p *ValidationProcessor) emit(
	ctx context.Context,
	ev *Evaluation,
	result *domain.ValidationResult,
	failedStage string,
	sysErr *SystemError,
) {
	record := domain.AuditRecord{
		ID:          uuid.NewString(),
		RequestID:   ev.RequestID(),
		FailedStage: failedStage,
		Timestamp:   p.now(),
	}
	if req := ev.Request; req != nil {
		record.Source = req.SourceAccount
		record.Destination = req.DestinationAccount
		record.Amount = req.Amount
		record.Currency = req.Currency
		record.Mode = req.Mode
	}

	switch {
	case sysErr != nil:
		record.Outcome = domain.OutcomeSystemError
		record.SystemError = sysErr.Err.Error()
	case result.Valid:
		record.Outcome = domain.OutcomeAccepted
	default:
		record.Outcome = domain.OutcomeRejected
	}

	if result != nil {
		for _, e := range result.Errors {
			record.ErrorCodes = append(record.ErrorCodes, e.Code)
		}
		for _, w := range result.Warnings {
			record.WarningCodes = append(record.WarningCodes, w.Code)
		}
		record.AppliedRules = result.AppliedRules
		record.FraudScore = result.FraudScore
	}

	auditCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), auditTimeout)
	defer cancel()

	if err := p.audit.Append(auditCtx, record); err != nil {
		p.logger.ErrorContext(ctx, "Failed to append audit record",
			slog.String("request_id", record.RequestID),
			slog.String("error", err.Error()))
	}
}
