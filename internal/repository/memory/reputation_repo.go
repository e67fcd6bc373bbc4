package memory

import (
	"context"
	"sync"

	"payment_validator/internal/domain"
)

type ReputationRepository struct {
	mu      sync.RWMutex
	flagged map[string]struct{}
}

func NewReputationRepository(flagged ...string) *ReputationRepository {
	r := &ReputationRepository{flagged: make(map[string]struct{})}
	for _, id := range flagged {
		r.flagged[id] = struct{}{}
	}
	return r
}

func (r *ReputationRepository) Flag(accountID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.flagged[accountID] = struct{}{}
}

func (r *ReputationRepository) Clear(accountID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.flagged, accountID)
}

func (r *ReputationRepository) Lookup(ctx context.Context, accountID string) (domain.Reputation, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	if _, ok := r.flagged[accountID]; ok {
		return domain.ReputationFlagged, nil
	}
	return domain.ReputationClean, nil
}
