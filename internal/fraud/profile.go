package fraud

import (
	"context"
	"slices"
	"sync"
	"time"

	"payment_validator/internal/domain"
)

const maxDevicesPerAccount = 8

// Profile is the established device and location pattern of an account.
// LastLocatedAt is when LastLocation was recorded, which can be older than
// LastSeen.
type Profile struct {
	Devices       []string
	LastLocation  *domain.GeoPoint
	LastLocatedAt time.Time
	LastSeen      time.Time
}

func (p Profile) KnowsDevice(fingerprint string) bool {
	return slices.Contains(p.Devices, fingerprint)
}

type ProfileStore interface {
	Get(ctx context.Context, accountID string) (Profile, bool, error)
	Observe(ctx context.Context, tc domain.TransactionContext) error
}

// MemoryProfileStore keeps the most recent devices per account, newest last.
type MemoryProfileStore struct {
	mu       sync.RWMutex
	profiles map[string]*Profile
}

func NewMemoryProfileStore() *MemoryProfileStore {
	return &MemoryProfileStore{profiles: make(map[string]*Profile)}
}

func (s *MemoryProfileStore) Get(ctx context.Context, accountID string) (Profile, bool, error) {
	if err := ctx.Err(); err != nil {
		return Profile{}, false, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	p, ok := s.profiles[accountID]
	if !ok {
		return Profile{}, false, nil
	}
	out := *p
	out.Devices = slices.Clone(p.Devices)
	return out, true, nil
}

func (s *MemoryProfileStore) Observe(ctx context.Context, tc domain.TransactionContext) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.profiles[tc.AccountID]
	if !ok {
		p = &Profile{}
		s.profiles[tc.AccountID] = p
	}

	if fp := tc.DeviceFingerprint; fp != "" {
		p.Devices = slices.DeleteFunc(p.Devices, func(d string) bool { return d == fp })
		p.Devices = append(p.Devices, fp)
		if len(p.Devices) > maxDevicesPerAccount {
			p.Devices = p.Devices[len(p.Devices)-maxDevicesPerAccount:]
		}
	}
	if tc.Location != nil {
		loc := *tc.Location
		p.LastLocation = &loc
		p.LastLocatedAt = tc.EvaluatedAt
	}
	p.LastSeen = tc.EvaluatedAt
	return nil
}
