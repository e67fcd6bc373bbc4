package memory

import (
	"context"
	"sync"

	"payment_validator/internal/domain"

	"github.com/shopspring/decimal"
)

const (
	RegulationSanctions = "SANCTIONS_SCREENING"
	RegulationCashLimit = "REPORTING_THRESHOLD"
)

// ComplianceService is a reference compliance checker: sanctioned accounts and
// an optional hard reporting threshold.
type ComplianceService struct {
	mu         sync.RWMutex
	sanctioned map[string]struct{}
	threshold  decimal.Decimal
}

func NewComplianceService(threshold decimal.Decimal, sanctioned ...string) *ComplianceService {
	s := &ComplianceService{
		sanctioned: make(map[string]struct{}),
		threshold:  threshold,
	}
	for _, id := range sanctioned {
		s.sanctioned[id] = struct{}{}
	}
	return s
}

func (s *ComplianceService) Sanction(accountID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sanctioned[accountID] = struct{}{}
}

func (s *ComplianceService) CheckCompliance(ctx context.Context, req *domain.PaymentRequest) (domain.ComplianceOutcome, error) {
	if err := ctx.Err(); err != nil {
		return domain.ComplianceOutcome{}, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	outcome := domain.ComplianceOutcome{Compliant: true, Score: 100}

	_, srcHit := s.sanctioned[req.SourceAccount]
	_, dstHit := s.sanctioned[req.DestinationAccount]
	if srcHit || dstHit {
		outcome.ViolatedRegulations = append(outcome.ViolatedRegulations, RegulationSanctions)
	}
	if s.threshold.IsPositive() && req.Amount.GreaterThan(s.threshold) {
		outcome.ViolatedRegulations = append(outcome.ViolatedRegulations, RegulationCashLimit)
	}

	if len(outcome.ViolatedRegulations) > 0 {
		outcome.Compliant = false
		outcome.Score = max(0, 100-50*len(outcome.ViolatedRegulations))
	}
	return outcome, nil
}
