package processor

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"payment_validator/internal/counters"
	"payment_validator/internal/domain"
	"payment_validator/internal/fraud"
	"payment_validator/internal/repository"
	"payment_validator/pkg/validator"
)

const (
	StageBasic      = "basic"
	StageAccount    = "account"
	StageLimits     = "limits"
	StageSchedule   = "schedule"
	StageCompliance = "compliance"
	StageFraud      = "fraud"
	StageBusiness   = "business"
	StageCommit     = "commit"
)

type BasicStage struct {
	validator *validator.PaymentValidator
}

func NewBasicStage() *BasicStage {
	return &BasicStage{validator: validator.NewPaymentValidator()}
}

func (s *BasicStage) Name() string { return StageBasic }

func (s *BasicStage) Validate(ctx context.Context, ev *Evaluation) (StageResult, error) {
	return StageResult{Errors: s.validator.ValidatePayment(ev.Request)}, nil
}

// AccountStage checks both parties with the account service and loads the
// payer's customer category for later stages.
type AccountStage struct {
	accounts repository.AccountService
	cache    *StatusCache
}

func NewAccountStage(accounts repository.AccountService, cache *StatusCache) *AccountStage {
	if cache == nil {
		cache = NewStatusCache(accounts, 0)
	}
	return &AccountStage{accounts: accounts, cache: cache}
}

func (s *AccountStage) Name() string { return StageAccount }

func (s *AccountStage) Validate(ctx context.Context, ev *Evaluation) (StageResult, error) {
	req := ev.Request
	if req.SourceAccount == req.DestinationAccount {
		return StageResult{Errors: []domain.ValidationError{{
			Code:    domain.CodeSameAccount,
			Message: "source and destination accounts are the same",
		}}}, nil
	}

	source, err := s.cache.Status(ctx, req.SourceAccount)
	if err != nil {
		return StageResult{}, fmt.Errorf("source account status: %w", err)
	}
	if source == domain.AccountNotFound {
		return StageResult{Errors: []domain.ValidationError{{
			Code:    domain.CodeAccountNotFound,
			Message: fmt.Sprintf("account %s does not exist", req.SourceAccount),
		}}}, nil
	}

	dest, err := s.cache.Status(ctx, req.DestinationAccount)
	if err != nil {
		return StageResult{}, fmt.Errorf("destination account status: %w", err)
	}

	var result StageResult
	if e, bad := statusError(source, req.SourceAccount, false); bad {
		result.Errors = append(result.Errors, e)
	}
	if e, bad := statusError(dest, req.DestinationAccount, true); bad {
		result.Errors = append(result.Errors, e)
	}
	if len(result.Errors) > 0 {
		return result, nil
	}

	balance, err := s.accounts.GetAvailableBalance(ctx, req.SourceAccount)
	if err != nil {
		return StageResult{}, fmt.Errorf("available balance: %w", err)
	}
	if req.Amount.GreaterThan(balance) {
		result.Errors = append(result.Errors, domain.ValidationError{
			Code:    domain.CodeInsufficientBalance,
			Message: fmt.Sprintf("available balance %s is below amount %s", balance.StringFixed(2), req.Amount.StringFixed(2)),
		})
		return result, nil
	}

	minimum, err := s.accounts.GetMinimumBalance(ctx, req.SourceAccount)
	if err != nil {
		return StageResult{}, fmt.Errorf("minimum balance: %w", err)
	}
	if remaining := balance.Sub(req.Amount); remaining.LessThan(minimum) {
		result.Warnings = append(result.Warnings, domain.ValidationWarning{
			Code:    domain.CodeLowBalance,
			Message: fmt.Sprintf("balance after payment %s falls below minimum %s", remaining.StringFixed(2), minimum.StringFixed(2)),
		})
	}

	category, err := s.accounts.GetCustomerCategory(ctx, req.SourceAccount)
	if err != nil {
		return StageResult{}, fmt.Errorf("customer category: %w", err)
	}
	if category != "" {
		ev.Category = category
	}

	ev.Defer(func(context.Context, time.Time) error {
		s.cache.Invalidate(req.SourceAccount, req.DestinationAccount)
		return nil
	}, nil)

	return result, nil
}

func statusError(status domain.AccountStatus, accountID string, beneficiary bool) (domain.ValidationError, bool) {
	var code domain.ErrorCode
	switch status {
	case domain.AccountActive:
		return domain.ValidationError{}, false
	case domain.AccountNotFound:
		code = domain.CodeBeneficiaryNotFound
	case domain.AccountFrozen:
		code = domain.CodeAccountFrozen
		if beneficiary {
			code = domain.CodeBeneficiaryFrozen
		}
	default:
		code = domain.CodeAccountInactive
		if beneficiary {
			code = domain.CodeBeneficiaryInactive
		}
	}
	return domain.ValidationError{
		Code:    code,
		Message: fmt.Sprintf("account %s is %s", accountID, status),
	}, true
}

var errAggregateLimit = errors.New("aggregate limit exceeded")

// LimitsStage enforces per-transaction bounds, then checks the daily and
// monthly aggregates and reserves the amount in one step.
type LimitsStage struct {
	counters *counters.Store
}

func NewLimitsStage(store *counters.Store) *LimitsStage {
	return &LimitsStage{counters: store}
}

func (s *LimitsStage) Name() string { return StageLimits }

func (s *LimitsStage) Validate(ctx context.Context, ev *Evaluation) (StageResult, error) {
	req := ev.Request
	lp, err := ev.Policy.Limit(req.Mode)
	if err != nil {
		return StageResult{}, err
	}

	result := StageResult{AppliedRules: []string{
		lp.RuleID(req.Mode, "per_txn"),
		lp.RuleID(req.Mode, "daily"),
		lp.RuleID(req.Mode, "monthly"),
	}}

	if errs := lp.CheckAmount(req.Mode, req.Amount); len(errs) > 0 {
		result.Errors = errs
		return result, nil
	}

	var exceeded []domain.ValidationError
	res, err := s.counters.Reserve(req.SourceAccount, req.Mode, req.Amount, ev.Now, func(t counters.Totals) error {
		exceeded = lp.CheckAggregates(req.Mode, t, req.Amount, ev.Category)
		if len(exceeded) > 0 {
			return errAggregateLimit
		}
		return nil
	})
	if errors.Is(err, errAggregateLimit) {
		result.Errors = exceeded
		return result, nil
	}
	if err != nil {
		return StageResult{}, fmt.Errorf("reserve amount: %w", err)
	}

	ev.Reservation = res
	ev.DeferFinal(func(_ context.Context, now time.Time) error {
		return res.Commit(now)
	}, res.Release)

	return result, nil
}

// ScheduleStage flags NEFT and RTGS payments that fall outside their
// processing window. It never rejects.
type ScheduleStage struct {
	calendar repository.HolidayCalendar
}

func NewScheduleStage(calendar repository.HolidayCalendar) *ScheduleStage {
	return &ScheduleStage{calendar: calendar}
}

func (s *ScheduleStage) Name() string { return StageSchedule }

func (s *ScheduleStage) Validate(ctx context.Context, ev *Evaluation) (StageResult, error) {
	req := ev.Request
	decision, err := ev.Policy.Schedule.Decide(ctx, req.Mode, req.ExecutionTime(ev.Now), s.calendar)
	if err != nil {
		return StageResult{}, err
	}

	result := StageResult{AppliedRules: []string{"schedule." + string(req.Mode)}}
	if !decision.Eligible {
		result.Warnings = append(result.Warnings, domain.ValidationWarning{
			Code:    domain.CodeDeferredProcessing,
			Message: fmt.Sprintf("%s is outside processing hours; will be processed from %s", req.Mode, decision.NextWindow.Format(time.RFC3339)),
		})
	}
	return result, nil
}

type ComplianceStage struct {
	compliance repository.ComplianceService
}

func NewComplianceStage(compliance repository.ComplianceService) *ComplianceStage {
	return &ComplianceStage{compliance: compliance}
}

func (s *ComplianceStage) Name() string { return StageCompliance }

func (s *ComplianceStage) Validate(ctx context.Context, ev *Evaluation) (StageResult, error) {
	outcome, err := s.compliance.CheckCompliance(ctx, ev.Request)
	if err != nil {
		return StageResult{}, fmt.Errorf("compliance check: %w", err)
	}

	score := outcome.Score
	result := StageResult{ComplianceScore: &score}
	for _, reg := range outcome.ViolatedRegulations {
		result.Errors = append(result.Errors, domain.ValidationError{
			Code:    domain.CodeComplianceViolation,
			Message: fmt.Sprintf("violates %s", reg),
		})
	}
	if !outcome.Compliant && len(result.Errors) == 0 {
		result.Errors = append(result.Errors, domain.ValidationError{
			Code:    domain.CodeComplianceViolation,
			Message: "payment is not compliant",
		})
	}
	return result, nil
}

type FraudStage struct {
	detector *fraud.FraudDetector
	profiles fraud.ProfileStore
}

// NewFraudStage wires the detector. Profiles, if set, learn the payer's
// device and location once a payment is accepted.
func NewFraudStage(detector *fraud.FraudDetector, profiles fraud.ProfileStore) *FraudStage {
	return &FraudStage{detector: detector, profiles: profiles}
}

func (s *FraudStage) Name() string { return StageFraud }

func (s *FraudStage) Validate(ctx context.Context, ev *Evaluation) (StageResult, error) {
	assessment, err := s.detector.Assess(ctx, fraud.Input{
		Request:     ev.Request,
		Context:     ev.Context,
		Reservation: ev.Reservation,
	})
	if err != nil {
		return StageResult{}, err
	}

	score := assessment.Score
	result := StageResult{FraudScore: &score, RiskLevel: assessment.Level}
	indicators := strings.Join(assessment.Indicators, ", ")

	switch assessment.Level {
	case domain.RiskHigh:
		result.Errors = append(result.Errors, domain.ValidationError{
			Code:       domain.CodeFraudRiskHigh,
			Message:    fmt.Sprintf("high fraud risk (score %.2f): %s", score, indicators),
			Indicators: assessment.Indicators,
		})
	case domain.RiskMedium:
		result.Warnings = append(result.Warnings, domain.ValidationWarning{
			Code:       domain.CodeFraudRiskReview,
			Message:    fmt.Sprintf("payment flagged for review (score %.2f): %s", score, indicators),
			Indicators: assessment.Indicators,
		})
	}

	if s.profiles != nil {
		tc := ev.Context
		ev.Defer(func(ctx context.Context, now time.Time) error {
			return s.profiles.Observe(ctx, tc)
		}, nil)
	}
	return result, nil
}

type BusinessStage struct {
	engine *RuleEngine
}

func NewBusinessStage(engine *RuleEngine) *BusinessStage {
	return &BusinessStage{engine: engine}
}

func (s *BusinessStage) Name() string { return StageBusiness }

func (s *BusinessStage) Validate(ctx context.Context, ev *Evaluation) (StageResult, error) {
	return s.engine.Evaluate(ctx, ev)
}
