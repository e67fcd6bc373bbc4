package processor

import (
	"context"
	"testing"
	"time"

	"payment_validator/internal/audit"
	"payment_validator/internal/counters"
	"payment_validator/internal/domain"
	"payment_validator/internal/fraud"
	"payment_validator/internal/policy"
	"payment_validator/internal/repository/memory"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

const (
	payer = "123456781"
	payee = "987654312"
)

// Wednesday 11:00 in Asia/Kolkata, inside every settlement window.
var businessHours = time.Date(2026, 6, 3, 5, 30, 0, 0, time.UTC)

type fixture struct {
	accounts   *memory.AccountRepository
	compliance *memory.ComplianceService
	calendar   *memory.HolidayCalendar
	reputation *memory.ReputationRepository
	ruleRepo   *memory.RuleRepository
	counters   *counters.Store
	profiles   *fraud.MemoryProfileStore
	sink       *audit.MemorySink
	policies   *policy.Store
	now        time.Time
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	f := &fixture{
		accounts:   memory.NewAccountRepository(),
		compliance: memory.NewComplianceService(decimal.Zero),
		calendar:   memory.NewHolidayCalendar(),
		reputation: memory.NewReputationRepository(),
		ruleRepo:   memory.NewRuleRepository(),
		counters:   counters.NewStore(counters.DefaultConfig()),
		profiles:   fraud.NewMemoryProfileStore(),
		sink:       audit.NewMemorySink(),
		policies:   policy.NewStaticStore(policy.Default()),
		now:        businessHours,
	}

	f.addAccount(t, payer, domain.AccountActive, 10_000_000, 0, domain.CategoryStandard)
	f.addAccount(t, payee, domain.AccountActive, 0, 0, domain.CategoryStandard)
	return f
}

func (f *fixture) addAccount(
	t *testing.T,
	id string,
	status domain.AccountStatus,
	balance, minimum int64,
	category domain.CustomerCategory,
) {
	t.Helper()
	require.NoError(t, f.accounts.Save(context.Background(), &domain.Account{
		ID:             id,
		Status:         status,
		Balance:        decimal.NewFromInt(balance),
		MinimumBalance: decimal.NewFromInt(minimum),
		Category:       category,
	}))
}

func (f *fixture) stages(t *testing.T) []Stage {
	t.Helper()

	engine, err := NewRuleEngine(f.ruleRepo, nil)
	require.NoError(t, err)

	detector := fraud.NewFraudDetector(nil,
		fraud.DefaultSignals(f.counters, f.profiles, f.reputation, fraud.DefaultConfig())...)

	return DefaultStages(Dependencies{
		Accounts:   f.accounts,
		Compliance: f.compliance,
		Calendar:   f.calendar,
		Counters:   f.counters,
		Detector:   detector,
		Profiles:   f.profiles,
		Rules:      engine,
		StatusTTL:  5 * time.Second,
	})
}

func (f *fixture) processor(t *testing.T, stages ...Stage) *ValidationProcessor {
	t.Helper()
	if len(stages) == 0 {
		stages = f.stages(t)
	}
	return NewValidationProcessor(f.policies, stages, Options{
		StageTimeout: time.Second,
		Audit:        f.sink,
		Now:          func() time.Time { return f.now },
	}, nil)
}

func payment(mode domain.PaymentMode, amount string) *domain.PaymentRequest {
	return domain.NewPaymentRequest(mode, payer, payee, decimal.RequireFromString(amount)).
		WithPurpose("supplier invoice").
		WithUser("user-1")
}

func errorCodes(r *domain.ValidationResult) []domain.ErrorCode {
	out := make([]domain.ErrorCode, 0, len(r.Errors))
	for _, e := range r.Errors {
		out = append(out, e.Code)
	}
	return out
}

func warningCodes(r *domain.ValidationResult) []domain.ErrorCode {
	out := make([]domain.ErrorCode, 0, len(r.Warnings))
	for _, w := range r.Warnings {
		out = append(out, w.Code)
	}
	return out
}

type mockAccounts struct {
	mock.Mock
}

func (m *mockAccounts) GetAccountStatus(ctx context.Context, accountID string) (domain.AccountStatus, error) {
	args := m.Called(ctx, accountID)
	return args.Get(0).(domain.AccountStatus), args.Error(1)
}

func (m *mockAccounts) GetAvailableBalance(ctx context.Context, accountID string) (decimal.Decimal, error) {
	args := m.Called(ctx, accountID)
	return args.Get(0).(decimal.Decimal), args.Error(1)
}

func (m *mockAccounts) GetMinimumBalance(ctx context.Context, accountID string) (decimal.Decimal, error) {
	args := m.Called(ctx, accountID)
	return args.Get(0).(decimal.Decimal), args.Error(1)
}

func (m *mockAccounts) GetCustomerCategory(ctx context.Context, accountID string) (domain.CustomerCategory, error) {
	args := m.Called(ctx, accountID)
	return args.Get(0).(domain.CustomerCategory), args.Error(1)
}

type mockCompliance struct {
	mock.Mock
}

func (m *mockCompliance) CheckCompliance(ctx context.Context, req *domain.PaymentRequest) (domain.ComplianceOutcome, error) {
	args := m.Called(ctx, req)
	return args.Get(0).(domain.ComplianceOutcome), args.Error(1)
}

// blockingStage waits for its context to end.
type blockingStage struct{}

func (blockingStage) Name() string { return "blocking" }

func (blockingStage) Validate(ctx context.Context, _ *Evaluation) (StageResult, error) {
	<-ctx.Done()
	return StageResult{}, nil
}
