package memory

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"payment_validator/internal/domain"
	"payment_validator/internal/repository"

	"github.com/shopspring/decimal"
)

func TestAccountRepository_SaveAndGetByID(t *testing.T) {
	repo := NewAccountRepository()
	account := &domain.Account{
		ID:      "123456781",
		Status:  domain.AccountActive,
		Balance: decimal.NewFromInt(100),
	}

	err := repo.Save(context.Background(), account)
	if err != nil {
		t.Fatalf("unexpected error on Save: %v", err)
	}
	got, err := repo.GetByID(context.Background(), "123456781")

	if err != nil {
		t.Fatalf("unexpected error on GetByID: %v", err)
	}
	if got.ID != account.ID || !got.Balance.Equal(account.Balance) {
		t.Errorf("expected account %+v, got %+v", account, got)
	}
	if got.Category != domain.CategoryStandard {
		t.Errorf("expected default category %q, got %q", domain.CategoryStandard, got.Category)
	}

	if err := repo.Save(context.Background(), account); !errors.Is(err, repository.ErrDuplicate) {
		t.Errorf("expected ErrDuplicate on second Save, got %v", err)
	}
}

func TestAccountRepository_UpdateBalance(t *testing.T) {
	repo := NewAccountRepository()
	_ = repo.Save(context.Background(), &domain.Account{ID: "123456781", Balance: decimal.NewFromInt(50)})

	err := repo.UpdateBalance(context.Background(), "123456781", decimal.NewFromInt(25))
	got, _ := repo.GetAvailableBalance(context.Background(), "123456781")

	if err != nil {
		t.Fatalf("unexpected error on UpdateBalance: %v", err)
	}
	if !got.Equal(decimal.NewFromInt(75)) {
		t.Errorf("expected balance 75, got %s", got)
	}
}

func TestAccountRepository_UnknownAccountIsNotFoundStatus(t *testing.T) {
	repo := NewAccountRepository()

	status, err := repo.GetAccountStatus(context.Background(), "999999998")

	if err != nil {
		t.Fatalf("unexpected error on GetAccountStatus: %v", err)
	}
	if status != domain.AccountNotFound {
		t.Errorf("expected %q, got %q", domain.AccountNotFound, status)
	}
	if _, err := repo.GetAvailableBalance(context.Background(), "999999998"); !errors.Is(err, repository.ErrNotFound) {
		t.Errorf("expected ErrNotFound for balance, got %v", err)
	}
}

func TestRuleRepository_GetActiveRules(t *testing.T) {
	repo := NewRuleRepository()
	ctx := context.Background()
	_ = repo.Save(ctx, &domain.Rule{ID: "b", Priority: 1, IsActive: true})
	_ = repo.Save(ctx, &domain.Rule{ID: "a", Priority: 1, IsActive: true})
	_ = repo.Save(ctx, &domain.Rule{ID: "c", Priority: 9, IsActive: true})
	_ = repo.Save(ctx, &domain.Rule{ID: "d", Priority: 50, IsActive: false})

	rules, err := repo.GetActiveRules(ctx)

	if err != nil {
		t.Fatalf("unexpected error on GetActiveRules: %v", err)
	}
	var ids []string
	for _, r := range rules {
		ids = append(ids, r.ID)
	}
	if len(ids) != 3 || ids[0] != "c" || ids[1] != "a" || ids[2] != "b" {
		t.Errorf("expected [c a b], got %v", ids)
	}

	if err := repo.Deactivate(ctx, "c"); err != nil {
		t.Fatalf("unexpected error on Deactivate: %v", err)
	}
	if !rules[0].IsActive {
		t.Error("returned rules must not change after Deactivate")
	}
	rules, _ = repo.GetActiveRules(ctx)
	if len(rules) != 2 {
		t.Errorf("expected 2 active rules after Deactivate, got %d", len(rules))
	}
}

func TestRuleRepository_UpdateBumpsVersion(t *testing.T) {
	repo := NewRuleRepository()
	ctx := context.Background()
	_ = repo.Save(ctx, &domain.Rule{ID: "r1", IsActive: true})

	if err := repo.Update(ctx, &domain.Rule{ID: "r1", IsActive: true, Priority: 3}); err != nil {
		t.Fatalf("unexpected error on Update: %v", err)
	}
	got, _ := repo.GetByID(ctx, "r1")
	if got.Version != 2 || got.Priority != 3 {
		t.Errorf("expected version 2 priority 3, got %+v", got)
	}

	if err := repo.Update(ctx, &domain.Rule{ID: "missing"}); !errors.Is(err, repository.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestRuleRepository_StoresCopies(t *testing.T) {
	repo := NewRuleRepository()
	ctx := context.Background()

	rule := &domain.Rule{ID: "r1", Condition: "true", IsActive: true}
	if err := repo.Save(ctx, rule); err != nil {
		t.Fatalf("unexpected error on Save: %v", err)
	}
	if rule.Version != 1 {
		t.Errorf("expected caller to see version 1, got %d", rule.Version)
	}
	rule.IsActive = false
	rule.Condition = "false"

	got, _ := repo.GetByID(ctx, "r1")
	if !got.IsActive || got.Condition != "true" {
		t.Errorf("stored rule changed through caller's pointer: %+v", got)
	}

	update := &domain.Rule{ID: "r1", Condition: "Payment.amount > 10.0", IsActive: true}
	if err := repo.Update(ctx, update); err != nil {
		t.Fatalf("unexpected error on Update: %v", err)
	}
	update.Priority = 99

	got, _ = repo.GetByID(ctx, "r1")
	if got.Priority != 0 || got.Version != 2 {
		t.Errorf("stored rule changed after Update: %+v", got)
	}
}

func TestHolidayCalendar_IsBusinessDay(t *testing.T) {
	cal := NewHolidayCalendar("2026-01-26")
	ctx := context.Background()

	cases := map[string]bool{
		"2026-01-26": false, // registered holiday, Monday
		"2026-01-27": true,
		"2026-01-31": false, // Saturday
		"2026-02-01": false, // Sunday
	}
	for day, want := range cases {
		date, _ := time.Parse(dateLayout, day)
		got, err := cal.IsBusinessDay(ctx, date)
		if err != nil {
			t.Fatalf("unexpected error for %s: %v", day, err)
		}
		if got != want {
			t.Errorf("%s: expected %v, got %v", day, want, got)
		}
	}
}

func TestComplianceService_CheckCompliance(t *testing.T) {
	svc := NewComplianceService(decimal.NewFromInt(1_000_000), "987654312")
	ctx := context.Background()

	clean := domain.NewPaymentRequest(domain.ModeIMPS, "123456781", "555123456", decimal.NewFromInt(10))
	outcome, err := svc.CheckCompliance(ctx, clean)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !outcome.Compliant || outcome.Score != 100 {
		t.Errorf("expected compliant with score 100, got %+v", outcome)
	}

	both := domain.NewPaymentRequest(domain.ModeRTGS, "123456781", "987654312", decimal.NewFromInt(2_000_000))
	outcome, _ = svc.CheckCompliance(ctx, both)
	if outcome.Compliant || outcome.Score != 0 || len(outcome.ViolatedRegulations) != 2 {
		t.Errorf("expected two violations with score 0, got %+v", outcome)
	}
}

func TestReputationRepository_FlagAndClear(t *testing.T) {
	repo := NewReputationRepository()
	ctx := context.Background()

	repo.Flag("987654312")
	if rep, _ := repo.Lookup(ctx, "987654312"); rep != domain.ReputationFlagged {
		t.Errorf("expected flagged, got %q", rep)
	}
	repo.Clear("987654312")
	if rep, _ := repo.Lookup(ctx, "987654312"); rep != domain.ReputationClean {
		t.Errorf("expected clean, got %q", rep)
	}
}

func TestSeed_Apply(t *testing.T) {
	path := filepath.Join(t.TempDir(), "seed.json")
	doc := `{
		"accounts": [
			{"id": "123456781", "status": "active", "balance": "5000", "minimum_balance": "100", "category": "premium"}
		],
		"sanctioned": ["444555666"],
		"flagged": ["987654312"],
		"holidays": ["2026-10-02"],
		"rules": [
			{"id": "late-night", "condition": "Payment.hour >= 23", "action": "warn", "is_active": true}
		]
	}`
	if err := os.WriteFile(path, []byte(doc), 0o600); err != nil {
		t.Fatal(err)
	}

	seed, err := LoadSeed(path)
	if err != nil {
		t.Fatalf("unexpected error on LoadSeed: %v", err)
	}
	c := NewCollaborators(decimal.Zero)
	ctx := context.Background()
	if err := seed.Apply(ctx, c); err != nil {
		t.Fatalf("unexpected error on Apply: %v", err)
	}

	category, _ := c.Accounts.GetCustomerCategory(ctx, "123456781")
	if category != domain.CategoryPremium {
		t.Errorf("expected premium, got %q", category)
	}
	if rep, _ := c.Reputation.Lookup(ctx, "987654312"); rep != domain.ReputationFlagged {
		t.Errorf("expected flagged beneficiary, got %q", rep)
	}
	gandhiJayanti := time.Date(2026, 10, 2, 0, 0, 0, 0, time.UTC) // Friday
	if ok, _ := c.Calendar.IsBusinessDay(ctx, gandhiJayanti); ok {
		t.Error("expected seeded holiday to be a non-business day")
	}
	if _, err := c.Rules.GetByID(ctx, "late-night"); err != nil {
		t.Errorf("expected seeded rule, got %v", err)
	}
}

func TestSeed_Apply_RejectsBrokenRule(t *testing.T) {
	seed := &Seed{Rules: []domain.Rule{{ID: "bad", Condition: "Payment.amount >", Action: domain.ActionBlock}}}

	if err := seed.Apply(context.Background(), NewCollaborators(decimal.Zero)); err == nil {
		t.Fatal("expected an error for an uncompilable condition")
	}
}
