package memory

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"payment_validator/internal/domain"
	"payment_validator/internal/rules"

	"github.com/shopspring/decimal"
)

// Seed is the JSON fixture the binary loads into the reference
// collaborators at startup.
type Seed struct {
	Accounts   []domain.Account `json:"accounts"`
	Sanctioned []string         `json:"sanctioned"`
	Flagged    []string         `json:"flagged"`
	Holidays   []string         `json:"holidays"`
	Rules      []domain.Rule    `json:"rules"`
}

type Collaborators struct {
	Accounts   *AccountRepository
	Compliance *ComplianceService
	Calendar   *HolidayCalendar
	Reputation *ReputationRepository
	Rules      *RuleRepository
}

func NewCollaborators(complianceThreshold decimal.Decimal) *Collaborators {
	return &Collaborators{
		Accounts:   NewAccountRepository(),
		Compliance: NewComplianceService(complianceThreshold),
		Calendar:   NewHolidayCalendar(),
		Reputation: NewReputationRepository(),
		Rules:      NewRuleRepository(),
	}
}

func LoadSeed(path string) (*Seed, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read seed file: %w", err)
	}
	var seed Seed
	if err := json.Unmarshal(data, &seed); err != nil {
		return nil, fmt.Errorf("parse seed file %s: %w", path, err)
	}
	return &seed, nil
}

// Apply populates the collaborators. It stops at the first invalid or
// duplicate entry.
func (s *Seed) Apply(ctx context.Context, c *Collaborators) error {
	for i := range s.Accounts {
		acc := s.Accounts[i]
		if err := c.Accounts.Save(ctx, &acc); err != nil {
			return fmt.Errorf("seed account %s: %w", acc.ID, err)
		}
	}
	for _, id := range s.Sanctioned {
		c.Compliance.Sanction(id)
	}
	for _, id := range s.Flagged {
		c.Reputation.Flag(id)
	}
	for _, day := range s.Holidays {
		date, err := time.Parse(dateLayout, day)
		if err != nil {
			return fmt.Errorf("seed holiday %q: %w", day, err)
		}
		c.Calendar.AddHoliday(date)
	}
	for i := range s.Rules {
		rule := s.Rules[i]
		if err := rules.Check(rule.Condition); err != nil {
			return fmt.Errorf("seed rule %s: %w", rule.ID, err)
		}
		if err := c.Rules.Save(ctx, &rule); err != nil {
			return fmt.Errorf("seed rule %s: %w", rule.ID, err)
		}
	}
	return nil
}
