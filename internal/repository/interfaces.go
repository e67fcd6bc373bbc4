package repository

import (
	"context"
	"errors"
	"time"

	"payment_validator/internal/domain"

	"github.com/shopspring/decimal"
)

// AccountService is owned by the account/ledger system.
type AccountService interface {
	GetAccountStatus(ctx context.Context, accountID string) (domain.AccountStatus, error)
	GetAvailableBalance(ctx context.Context, accountID string) (decimal.Decimal, error)
	GetMinimumBalance(ctx context.Context, accountID string) (decimal.Decimal, error)
	GetCustomerCategory(ctx context.Context, accountID string) (domain.CustomerCategory, error)
}

type ComplianceService interface {
	CheckCompliance(ctx context.Context, req *domain.PaymentRequest) (domain.ComplianceOutcome, error)
}

type HolidayCalendar interface {
	IsBusinessDay(ctx context.Context, date time.Time) (bool, error)
}

type ReputationStore interface {
	Lookup(ctx context.Context, accountID string) (domain.Reputation, error)
}

type RuleRepository interface {
	Save(ctx context.Context, rule *domain.Rule) error
	GetByID(ctx context.Context, id string) (*domain.Rule, error)
	GetActiveRules(ctx context.Context) ([]*domain.Rule, error)
	Update(ctx context.Context, rule *domain.Rule) error
	Deactivate(ctx context.Context, id string) error
}

var (
	ErrNotFound    = errors.New("not found")
	ErrDuplicate   = errors.New("duplicate entry")
	ErrUnavailable = errors.New("service unavailable")
)
