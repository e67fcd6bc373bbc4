package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"payment_validator/internal/domain"
	"payment_validator/internal/repository"
)

type RuleRepository struct {
	mu    sync.RWMutex
	rules map[string]*domain.Rule
}

func NewRuleRepository() *RuleRepository {
	return &RuleRepository{
		rules: make(map[string]*domain.Rule),
	}
}

func (r *RuleRepository) Save(ctx context.Context, rule *domain.Rule) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.rules[rule.ID]; exists {
		return fmt.Errorf("%w: rule %s", repository.ErrDuplicate, rule.ID)
	}

	rule.Version = 1
	stored := *rule
	r.rules[rule.ID] = &stored

	return nil
}

func (r *RuleRepository) GetByID(ctx context.Context, id string) (*domain.Rule, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	rule, exists := r.rules[id]
	if !exists {
		return nil, fmt.Errorf("%w: rule %s", repository.ErrNotFound, id)
	}
	out := *rule
	return &out, nil
}

// GetActiveRules returns copies of the active rules, highest priority first,
// ties by id.
func (r *RuleRepository) GetActiveRules(ctx context.Context) ([]*domain.Rule, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var result []*domain.Rule
	for _, rule := range r.rules {
		if rule.IsActive {
			out := *rule
			result = append(result, &out)
		}
	}

	sort.Slice(result, func(i, j int) bool {
		if result[i].Priority != result[j].Priority {
			return result[i].Priority > result[j].Priority
		}
		return result[i].ID < result[j].ID
	})

	return result, nil
}

func (r *RuleRepository) Update(ctx context.Context, rule *domain.Rule) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	existing, exists := r.rules[rule.ID]
	if !exists {
		return fmt.Errorf("%w: rule %s", repository.ErrNotFound, rule.ID)
	}

	rule.Version = existing.Version + 1
	stored := *rule
	r.rules[rule.ID] = &stored

	return nil
}

func (r *RuleRepository) Deactivate(ctx context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	rule, exists := r.rules[id]
	if !exists {
		return fmt.Errorf("%w: rule %s", repository.ErrNotFound, id)
	}

	rule.IsActive = false
	return nil
}
