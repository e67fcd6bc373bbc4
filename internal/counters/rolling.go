// Package counters keeps per-account rolling transaction aggregates used by
// the limit checks and the velocity signal.
//
// Each account owns a fixed-capacity ring of recent entries guarded by its own
// mutex. Entries older than the retention window, released reservations and
// expired reservations are dropped lazily whenever the account is touched.
// When a ring is full its oldest committed entry is folded into a per-day
// bucket so monthly sums stay exact.
package counters

import (
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"payment_validator/internal/domain"

	"github.com/cespare/xxhash/v2"
	"github.com/shopspring/decimal"
)

var (
	ErrReservationExpired = errors.New("reservation expired")
	ErrReservationClosed  = errors.New("reservation already finalized")
)

type Config struct {
	Capacity            int
	Retention           time.Duration
	DailyWindow         time.Duration
	ReservationTTL      time.Duration
	Shards              int
	MaxAccountsPerShard int
	Location            *time.Location
}

func DefaultConfig() Config {
	return Config{
		Capacity:            256,
		Retention:           32 * 24 * time.Hour,
		DailyWindow:         24 * time.Hour,
		ReservationTTL:      30 * time.Second,
		Shards:              64,
		MaxAccountsPerShard: 4096,
		Location:            time.UTC,
	}
}

// Totals are the per-mode aggregates of one account, excluding the candidate.
type Totals struct {
	Daily   decimal.Decimal
	Monthly decimal.Decimal
}

type Window struct {
	Count int
	Sum   decimal.Decimal
}

type History struct {
	Count int
	Mean  decimal.Decimal
}

type account struct {
	mu       sync.Mutex
	ring     *ring
	lastSeen atomic.Int64
}

type shard struct {
	mu       sync.Mutex
	accounts map[string]*account
}

type Store struct {
	cfg    Config
	shards []*shard
	seq    atomic.Uint64
}

func NewStore(cfg Config) *Store {
	def := DefaultConfig()
	if cfg.Capacity <= 0 {
		cfg.Capacity = def.Capacity
	}
	if cfg.Retention <= 0 {
		cfg.Retention = def.Retention
	}
	if cfg.DailyWindow <= 0 {
		cfg.DailyWindow = def.DailyWindow
	}
	if cfg.ReservationTTL <= 0 {
		cfg.ReservationTTL = def.ReservationTTL
	}
	if cfg.Shards <= 0 {
		cfg.Shards = def.Shards
	}
	if cfg.MaxAccountsPerShard <= 0 {
		cfg.MaxAccountsPerShard = def.MaxAccountsPerShard
	}
	if cfg.Location == nil {
		cfg.Location = def.Location
	}

	s := &Store{cfg: cfg, shards: make([]*shard, cfg.Shards)}
	for i := range s.shards {
		s.shards[i] = &shard{accounts: make(map[string]*account)}
	}
	return s
}

func (s *Store) Config() Config {
	return s.cfg
}

// Reserve runs check against the account's current totals for mode and, if it
// passes, records amount as a pending entry. Check and reservation happen under
// the account lock, so concurrent callers observe each other's reservations.
func (s *Store) Reserve(
	accountID string,
	mode domain.PaymentMode,
	amount decimal.Decimal,
	now time.Time,
	check func(Totals) error,
) (*Reservation, error) {
	acc := s.account(accountID, now, true)
	acc.mu.Lock()
	defer acc.mu.Unlock()

	acc.ring.evict(now, s.cfg.Retention)

	if check != nil {
		totals := acc.ring.totals(mode, now, s.cfg.DailyWindow, startOfMonth(now, s.cfg.Location))
		if err := check(totals); err != nil {
			return nil, err
		}
	}

	res := &Reservation{
		store:     s,
		accountID: accountID,
		id:        s.seq.Add(1),
		mode:      mode,
		amount:    amount,
		at:        now,
		expires:   now.Add(s.cfg.ReservationTTL),
	}
	acc.ring.push(entry{
		id:      res.id,
		amount:  amount,
		mode:    mode,
		at:      now,
		state:   statePending,
		expires: res.expires,
	}, s.cfg.Location)

	return res, nil
}

// Record adds an already-settled transaction.
func (s *Store) Record(accountID string, mode domain.PaymentMode, amount decimal.Decimal, at time.Time) {
	acc := s.account(accountID, at, true)
	acc.mu.Lock()
	defer acc.mu.Unlock()

	acc.ring.evict(at, s.cfg.Retention)
	acc.ring.push(entry{
		id:     s.seq.Add(1),
		amount: amount,
		mode:   mode,
		at:     at,
		state:  stateCommitted,
	}, s.cfg.Location)
}

func (s *Store) Totals(accountID string, mode domain.PaymentMode, now time.Time) Totals {
	acc := s.account(accountID, now, false)
	if acc == nil {
		return Totals{Daily: decimal.Zero, Monthly: decimal.Zero}
	}
	acc.mu.Lock()
	defer acc.mu.Unlock()

	acc.ring.evict(now, s.cfg.Retention)
	return acc.ring.totals(mode, now, s.cfg.DailyWindow, startOfMonth(now, s.cfg.Location))
}

// Window counts live entries of every mode within the trailing duration d.
// The exclude reservation, if any, is left out.
func (s *Store) Window(accountID string, d time.Duration, now time.Time, exclude *Reservation) Window {
	acc := s.account(accountID, now, false)
	if acc == nil {
		return Window{Sum: decimal.Zero}
	}
	acc.mu.Lock()
	defer acc.mu.Unlock()

	acc.ring.evict(now, s.cfg.Retention)
	return acc.ring.window(now, d, exclude.entryID())
}

// History summarises committed amounts still retained for the account.
func (s *Store) History(accountID string, now time.Time, exclude *Reservation) History {
	acc := s.account(accountID, now, false)
	if acc == nil {
		return History{Mean: decimal.Zero}
	}
	acc.mu.Lock()
	defer acc.mu.Unlock()

	acc.ring.evict(now, s.cfg.Retention)
	return acc.ring.history(exclude.entryID())
}

// Accounts returns the number of tracked accounts.
func (s *Store) Accounts() int {
	n := 0
	for _, sh := range s.shards {
		sh.mu.Lock()
		n += len(sh.accounts)
		sh.mu.Unlock()
	}
	return n
}

func (s *Store) account(accountID string, now time.Time, create bool) *account {
	sh := s.shards[xxhash.Sum64String(accountID)%uint64(len(s.shards))]
	sh.mu.Lock()
	defer sh.mu.Unlock()

	acc, ok := sh.accounts[accountID]
	if !ok {
		if !create {
			return nil
		}
		if len(sh.accounts) >= s.cfg.MaxAccountsPerShard {
			s.sweep(sh, now)
		}
		acc = &account{ring: newRing(s.cfg.Capacity)}
		sh.accounts[accountID] = acc
	}
	// Touched under the shard lock so a concurrent sweep never drops an
	// account that a caller is about to use.
	acc.lastSeen.Store(now.UnixNano())
	return acc
}

// sweep removes accounts idle for longer than the retention window. Callers
// hold sh.mu.
func (s *Store) sweep(sh *shard, now time.Time) {
	cutoff := now.Add(-s.cfg.Retention).UnixNano()
	for id, acc := range sh.accounts {
		if acc.lastSeen.Load() < cutoff {
			delete(sh.accounts, id)
		}
	}
}

func (s *Store) commit(r *Reservation, now time.Time) error {
	acc := s.account(r.accountID, now, true)
	acc.mu.Lock()
	defer acc.mu.Unlock()

	if now.After(r.expires) {
		if e := acc.ring.find(r.id); e != nil {
			e.state = stateReleased
		}
		return ErrReservationExpired
	}

	e := acc.ring.find(r.id)
	if e == nil {
		// Pushed out of a full ring while pending.
		acc.ring.addToBucket(r.mode, r.amount, r.at, s.cfg.Location)
		return nil
	}
	e.state = stateCommitted
	return nil
}

func (s *Store) release(r *Reservation) {
	acc := s.account(r.accountID, r.at, false)
	if acc == nil {
		return
	}
	acc.mu.Lock()
	defer acc.mu.Unlock()

	if e := acc.ring.find(r.id); e != nil && e.state == statePending {
		e.state = stateReleased
	}
}
