// Package policy holds the read-only limit, schedule and business-rule
// configuration. A Snapshot is never modified once published; reloads swap in
// a new one atomically.
package policy

import (
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"

	"payment_validator/internal/domain"

	"github.com/shopspring/decimal"
)

// CategoryCap is a per-transaction ceiling that only applies to one customer
// category on the listed modes.
type CategoryCap struct {
	Category domain.CustomerCategory
	Modes    []domain.PaymentMode
	Max      decimal.Decimal
}

type BusinessPolicy struct {
	CategoryCaps     []CategoryCap
	PurposeThreshold decimal.Decimal
}

func DefaultBusiness() BusinessPolicy {
	return BusinessPolicy{
		CategoryCaps: []CategoryCap{{
			Category: domain.CategoryBasic,
			Modes:    []domain.PaymentMode{domain.ModeUPI, domain.ModeIMPS, domain.ModeNEFT},
			Max:      decimal.NewFromInt(50_000),
		}},
		PurposeThreshold: decimal.NewFromInt(200_000),
	}
}

type Snapshot struct {
	Version  int
	Limits   map[domain.PaymentMode]LimitPolicy
	Schedule SchedulePolicy
	Business BusinessPolicy
	Rules    []domain.Rule
}

func Default() *Snapshot {
	return &Snapshot{
		Version:  1,
		Limits:   DefaultLimits(),
		Schedule: DefaultSchedule(),
		Business: DefaultBusiness(),
	}
}

func (s *Snapshot) Limit(mode domain.PaymentMode) (LimitPolicy, error) {
	p, ok := s.Limits[mode]
	if !ok {
		return LimitPolicy{}, fmt.Errorf("no limit policy for mode %s", mode)
	}
	return p, nil
}

// Store publishes the current Snapshot. Path is optional; without it the
// defaults are served and Reload is a no-op.
type Store struct {
	path    string
	current atomic.Pointer[Snapshot]
	mu      sync.Mutex
	logger  *slog.Logger
}

func NewStore(path string, logger *slog.Logger) (*Store, error) {
	if logger == nil {
		logger = slog.Default()
	}

	s := &Store{path: path, logger: logger}
	if path == "" {
		s.current.Store(Default())
		return s, nil
	}

	snap, err := LoadFile(path)
	if err != nil {
		return nil, err
	}
	s.current.Store(snap)
	return s, nil
}

func NewStaticStore(snap *Snapshot) *Store {
	s := &Store{logger: slog.Default()}
	s.current.Store(snap)
	return s
}

func (s *Store) Current() *Snapshot {
	return s.current.Load()
}

// Reload re-reads the policy file. On failure the previous snapshot stays.
func (s *Store) Reload() error {
	if s.path == "" {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	snap, err := LoadFile(s.path)
	if err != nil {
		s.logger.Error("Policy reload failed",
			slog.String("path", s.path),
			slog.String("error", err.Error()))
		return err
	}

	snap.Version = s.current.Load().Version + 1
	s.current.Store(snap)
	s.logger.Info("Policy reloaded",
		slog.String("path", s.path),
		slog.Int("version", snap.Version))
	return nil
}
