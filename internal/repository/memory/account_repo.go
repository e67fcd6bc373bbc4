package memory

import (
	"context"
	"fmt"
	"sync"

	"payment_validator/internal/domain"
	"payment_validator/internal/repository"

	"github.com/shopspring/decimal"
)

// AccountRepository is an in-memory account service. Unknown accounts report
// domain.AccountNotFound rather than an error, matching the remote contract.
type AccountRepository struct {
	mu       sync.RWMutex
	accounts map[string]*domain.Account
}

func NewAccountRepository() *AccountRepository {
	return &AccountRepository{
		accounts: make(map[string]*domain.Account),
	}
}

func (r *AccountRepository) Save(ctx context.Context, account *domain.Account) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.accounts[account.ID]; exists {
		return fmt.Errorf("%w: account %s", repository.ErrDuplicate, account.ID)
	}

	stored := *account
	if stored.Category == "" {
		stored.Category = domain.CategoryStandard
	}
	r.accounts[account.ID] = &stored

	return nil
}

func (r *AccountRepository) GetByID(ctx context.Context, id string) (*domain.Account, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	account, exists := r.accounts[id]
	if !exists {
		return nil, fmt.Errorf("%w: account %s", repository.ErrNotFound, id)
	}
	out := *account
	return &out, nil
}

func (r *AccountRepository) UpdateBalance(ctx context.Context, id string, delta decimal.Decimal) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	account, exists := r.accounts[id]
	if !exists {
		return fmt.Errorf("%w: account %s", repository.ErrNotFound, id)
	}

	account.Balance = account.Balance.Add(delta)
	return nil
}

func (r *AccountRepository) UpdateStatus(ctx context.Context, id string, status domain.AccountStatus) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	account, exists := r.accounts[id]
	if !exists {
		return fmt.Errorf("%w: account %s", repository.ErrNotFound, id)
	}

	account.Status = status
	return nil
}

func (r *AccountRepository) GetAccountStatus(ctx context.Context, accountID string) (domain.AccountStatus, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	account, err := r.GetByID(ctx, accountID)
	if err != nil {
		return domain.AccountNotFound, nil
	}
	return account.Status, nil
}

func (r *AccountRepository) GetAvailableBalance(ctx context.Context, accountID string) (decimal.Decimal, error) {
	account, err := r.GetByID(ctx, accountID)
	if err != nil {
		return decimal.Zero, err
	}
	return account.Balance, nil
}

func (r *AccountRepository) GetMinimumBalance(ctx context.Context, accountID string) (decimal.Decimal, error) {
	account, err := r.GetByID(ctx, accountID)
	if err != nil {
		return decimal.Zero, err
	}
	return account.MinimumBalance, nil
}

func (r *AccountRepository) GetCustomerCategory(ctx context.Context, accountID string) (domain.CustomerCategory, error) {
	account, err := r.GetByID(ctx, accountID)
	if err != nil {
		return "", err
	}
	return account.Category, nil
}
