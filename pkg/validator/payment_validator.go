package validator

import (
	"fmt"
	"regexp"
	"unicode/utf8"

	"payment_validator/internal/domain"

	"github.com/shopspring/decimal"
)

const (
	MaxPurposeLength = 140
	AmountScale      = 2
)

// SanityCeiling bounds any single amount regardless of mode.
var SanityCeiling = decimal.NewFromInt(1_000_000_000)

// PaymentValidator runs the context-free checks on a request. It never
// touches a collaborator and reports every violation it finds.
type PaymentValidator struct {
	accountRegex *regexp.Regexp
	ceiling      decimal.Decimal
}

func NewPaymentValidator() *PaymentValidator {
	return &PaymentValidator{
		accountRegex: regexp.MustCompile(`^[0-9]{9,18}$`),
		ceiling:      SanityCeiling,
	}
}

func (v *PaymentValidator) ValidatePayment(req *domain.PaymentRequest) []domain.ValidationError {
	if req == nil {
		return []domain.ValidationError{{Code: domain.CodeRequestNull, Message: "payment request is missing"}}
	}

	var errs []domain.ValidationError

	if err := v.ValidateAccountNumber(req.SourceAccount); err != nil {
		errs = append(errs, domain.ValidationError{
			Code:    domain.CodeInvalidAccount,
			Message: fmt.Sprintf("source account: %v", err),
		})
	}
	if err := v.ValidateAccountNumber(req.DestinationAccount); err != nil {
		errs = append(errs, domain.ValidationError{
			Code:    domain.CodeInvalidAccount,
			Message: fmt.Sprintf("destination account: %v", err),
		})
	}

	errs = append(errs, v.ValidateAmount(req.Amount)...)

	if req.Currency != domain.SupportedCurrency {
		errs = append(errs, domain.ValidationError{
			Code:    domain.CodeInvalidCurrency,
			Message: fmt.Sprintf("currency %q is not supported", req.Currency),
		})
	}
	if !req.Mode.Valid() {
		errs = append(errs, domain.ValidationError{
			Code:    domain.CodeInvalidMode,
			Message: fmt.Sprintf("payment mode %q is not supported", req.Mode),
		})
	}
	if req.ScheduledAt != nil && req.ScheduledAt.Before(req.CreatedAt) {
		errs = append(errs, domain.ValidationError{
			Code:    domain.CodeInvalidSchedule,
			Message: "scheduled time precedes creation time",
		})
	}
	if utf8.RuneCountInString(req.Purpose) > MaxPurposeLength {
		errs = append(errs, domain.ValidationError{
			Code:    domain.CodePurposeTooLong,
			Message: fmt.Sprintf("purpose exceeds %d characters", MaxPurposeLength),
		})
	}

	return errs
}

func (v *PaymentValidator) ValidateAccountNumber(id string) error {
	if !v.accountRegex.MatchString(id) {
		return fmt.Errorf("%q must be 9 to 18 digits", id)
	}
	if repeated(id) {
		return fmt.Errorf("%q repeats a single digit", id)
	}
	if sequential(id, 1) || sequential(id, -1) {
		return fmt.Errorf("%q is a sequential run", id)
	}
	return nil
}

func (v *PaymentValidator) ValidateAmount(amount decimal.Decimal) []domain.ValidationError {
	if !amount.IsPositive() {
		return []domain.ValidationError{{
			Code:    domain.CodeInvalidAmount,
			Message: "amount must be greater than zero",
		}}
	}

	var errs []domain.ValidationError
	if !amount.Equal(amount.Truncate(AmountScale)) {
		errs = append(errs, domain.ValidationError{
			Code:    domain.CodeAmountPrecision,
			Message: fmt.Sprintf("amount %s has more than %d decimal places", amount, AmountScale),
		})
	}
	if amount.GreaterThan(v.ceiling) {
		errs = append(errs, domain.ValidationError{
			Code:    domain.CodeAmountCeiling,
			Message: fmt.Sprintf("amount %s exceeds %s", amount, v.ceiling.StringFixed(AmountScale)),
		})
	}
	return errs
}

func repeated(s string) bool {
	for i := 1; i < len(s); i++ {
		if s[i] != s[0] {
			return false
		}
	}
	return true
}

func sequential(s string, step int) bool {
	for i := 1; i < len(s); i++ {
		if int(s[i])-int(s[i-1]) != step {
			return false
		}
	}
	return true
}
