package domain

import (
	"slices"
	"time"
)

type ErrorCode string

const (
	CodeRequestNull         ErrorCode = "REQUEST_NULL"
	CodeInvalidAccount      ErrorCode = "INVALID_ACCOUNT_NUMBER"
	CodeInvalidAmount       ErrorCode = "INVALID_AMOUNT"
	CodeAmountPrecision     ErrorCode = "INVALID_AMOUNT_PRECISION"
	CodeAmountCeiling       ErrorCode = "AMOUNT_ABOVE_SANITY_CEILING"
	CodeInvalidCurrency     ErrorCode = "INVALID_CURRENCY"
	CodeInvalidMode         ErrorCode = "INVALID_PAYMENT_MODE"
	CodeInvalidSchedule     ErrorCode = "INVALID_SCHEDULE"
	CodePurposeTooLong      ErrorCode = "PURPOSE_TOO_LONG"
	CodeSameAccount         ErrorCode = "SAME_ACCOUNT"
	CodeAccountNotFound     ErrorCode = "ACCOUNT_NOT_FOUND"
	CodeAccountInactive     ErrorCode = "ACCOUNT_INACTIVE"
	CodeAccountFrozen       ErrorCode = "ACCOUNT_FROZEN"
	CodeBeneficiaryNotFound ErrorCode = "BENEFICIARY_NOT_FOUND"
	CodeBeneficiaryInactive ErrorCode = "BENEFICIARY_INACTIVE"
	CodeBeneficiaryFrozen   ErrorCode = "BENEFICIARY_FROZEN"
	CodeInsufficientBalance ErrorCode = "INSUFFICIENT_BALANCE"
	CodeAmountAboveLimit    ErrorCode = "AMOUNT_ABOVE_LIMIT"
	CodeAmountBelowMinimum  ErrorCode = "AMOUNT_BELOW_MINIMUM"
	CodeDailyLimitExceeded  ErrorCode = "DAILY_LIMIT_EXCEEDED"
	CodeMonthlyLimit        ErrorCode = "MONTHLY_LIMIT_EXCEEDED"
	CodeComplianceViolation ErrorCode = "COMPLIANCE_VIOLATION"
	CodeFraudRiskHigh       ErrorCode = "FRAUD_RISK_HIGH"
	CodeCategoryLimit       ErrorCode = "CATEGORY_LIMIT_EXCEEDED"
	CodePurposeRequired     ErrorCode = "PURPOSE_REQUIRED"
	CodeBusinessRule        ErrorCode = "BUSINESS_RULE_VIOLATION"

	CodeLowBalance         ErrorCode = "LOW_BALANCE"
	CodeDeferredProcessing ErrorCode = "DEFERRED_PROCESSING"
	CodeFraudRiskReview    ErrorCode = "FRAUD_RISK_REVIEW"
	CodeBusinessRuleNotice ErrorCode = "BUSINESS_RULE_NOTICE"
)

// ValidationError is a fatal business rejection.
type ValidationError struct {
	Code       ErrorCode `json:"code"`
	Message    string    `json:"message"`
	Indicators []string  `json:"indicators,omitempty"`
}

// ValidationWarning never changes the outcome.
type ValidationWarning struct {
	Code       ErrorCode `json:"code"`
	Message    string    `json:"message"`
	Indicators []string  `json:"indicators,omitempty"`
}

type ValidationResult struct {
	RequestID       string              `json:"request_id"`
	Valid           bool                `json:"valid"`
	Errors          []ValidationError   `json:"errors"`
	Warnings        []ValidationWarning `json:"warnings"`
	FraudScore      *float64            `json:"fraud_score,omitempty"`
	RiskLevel       RiskLevel           `json:"risk_level,omitempty"`
	ComplianceScore *int                `json:"compliance_score,omitempty"`
	AppliedRules    []string            `json:"applied_rules"`
	CompletedAt     time.Time           `json:"completed_at"`
}

func (r *ValidationResult) HasError(code ErrorCode) bool {
	return slices.ContainsFunc(r.Errors, func(e ValidationError) bool { return e.Code == code })
}

func (r *ValidationResult) HasWarning(code ErrorCode) bool {
	return slices.ContainsFunc(r.Warnings, func(w ValidationWarning) bool { return w.Code == code })
}

// ResultBuilder accumulates stage output for one evaluation. Finalize hands
// out the result once; later calls return the same value and further
// additions are ignored.
type ResultBuilder struct {
	result    ValidationResult
	finalized bool
}

func NewResultBuilder(requestID string) *ResultBuilder {
	return &ResultBuilder{result: ValidationResult{
		RequestID:    requestID,
		Errors:       []ValidationError{},
		Warnings:     []ValidationWarning{},
		AppliedRules: []string{},
	}}
}

func (b *ResultBuilder) AddErrors(errs ...ValidationError) {
	if b.finalized {
		return
	}
	b.result.Errors = append(b.result.Errors, errs...)
}

func (b *ResultBuilder) AddWarnings(warnings ...ValidationWarning) {
	if b.finalized {
		return
	}
	b.result.Warnings = append(b.result.Warnings, warnings...)
}

func (b *ResultBuilder) AddAppliedRules(rules ...string) {
	if b.finalized {
		return
	}
	b.result.AppliedRules = append(b.result.AppliedRules, rules...)
}

func (b *ResultBuilder) SetFraud(score float64, level RiskLevel) {
	if b.finalized {
		return
	}
	b.result.FraudScore = &score
	b.result.RiskLevel = level
}

func (b *ResultBuilder) SetComplianceScore(score int) {
	if b.finalized {
		return
	}
	b.result.ComplianceScore = &score
}

func (b *ResultBuilder) HasErrors() bool {
	return len(b.result.Errors) > 0
}

func (b *ResultBuilder) Finalize(at time.Time) *ValidationResult {
	if !b.finalized {
		b.result.Valid = len(b.result.Errors) == 0
		b.result.CompletedAt = at
		b.finalized = true
	}
	out := b.result
	return &out
}
