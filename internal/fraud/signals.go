package fraud

import (
	"context"
	"time"

	"payment_validator/internal/counters"
	"payment_validator/internal/domain"
	"payment_validator/internal/repository"

	"github.com/shopspring/decimal"
)

type VelocityConfig struct {
	Window      time.Duration
	MediumCount int
	HighCount   int
}

type AmountConfig struct {
	MinHistory     int
	MediumMultiple decimal.Decimal
	HighMultiple   decimal.Decimal
}

type LocationConfig struct {
	MaxSpeedKmh float64
	MinJumpKm   float64
}

type Config struct {
	Velocity VelocityConfig
	Amount   AmountConfig
	Location LocationConfig
}

func DefaultConfig() Config {
	return Config{
		Velocity: VelocityConfig{Window: 30 * time.Minute, MediumCount: 3, HighCount: 6},
		Amount: AmountConfig{
			MinHistory:     3,
			MediumMultiple: decimal.NewFromInt(5),
			HighMultiple:   decimal.NewFromInt(10),
		},
		Location: LocationConfig{MaxSpeedKmh: 900, MinJumpKm: 50},
	}
}

// VelocitySignal counts the account's other transactions in the trailing
// window. Risk never decreases as the count grows.
type VelocitySignal struct {
	store *counters.Store
	cfg   VelocityConfig
}

func NewVelocitySignal(store *counters.Store, cfg VelocityConfig) *VelocitySignal {
	return &VelocitySignal{store: store, cfg: cfg}
}

func (s *VelocitySignal) Name() string { return "velocity" }

func (s *VelocitySignal) Evaluate(ctx context.Context, in Input) (SignalResult, error) {
	w := s.store.Window(in.Request.SourceAccount, s.cfg.Window, in.Context.EvaluatedAt, in.Reservation)

	res := SignalResult{Level: domain.RiskLow, Sufficient: true}
	if s.cfg.HighCount > 0 {
		res.Score = min(1, float64(w.Count)/float64(s.cfg.HighCount))
	}

	switch {
	case s.cfg.HighCount > 0 && w.Count >= s.cfg.HighCount:
		res.Level = domain.RiskHigh
	case s.cfg.MediumCount > 0 && w.Count >= s.cfg.MediumCount:
		res.Level = domain.RiskMedium
	}
	if res.Level != domain.RiskLow {
		res.Indicators = []string{domain.IndicatorVelocity}
	}
	return res, nil
}

// AmountAnomalySignal compares the amount with the account's mean committed
// transaction.
type AmountAnomalySignal struct {
	store *counters.Store
	cfg   AmountConfig
}

func NewAmountAnomalySignal(store *counters.Store, cfg AmountConfig) *AmountAnomalySignal {
	return &AmountAnomalySignal{store: store, cfg: cfg}
}

func (s *AmountAnomalySignal) Name() string { return "amount_anomaly" }

func (s *AmountAnomalySignal) Evaluate(ctx context.Context, in Input) (SignalResult, error) {
	h := s.store.History(in.Request.SourceAccount, in.Context.EvaluatedAt, in.Reservation)
	if h.Count < s.cfg.MinHistory || !h.Mean.IsPositive() {
		return SignalResult{Level: domain.RiskLow}, nil
	}

	ratio := in.Request.Amount.Div(h.Mean)
	res := SignalResult{Level: domain.RiskLow, Sufficient: true}
	if s.cfg.HighMultiple.IsPositive() {
		score, _ := ratio.Div(s.cfg.HighMultiple).Float64()
		res.Score = min(1, score)
	}

	switch {
	case s.cfg.HighMultiple.IsPositive() && ratio.GreaterThanOrEqual(s.cfg.HighMultiple):
		res.Level = domain.RiskHigh
	case s.cfg.MediumMultiple.IsPositive() && ratio.GreaterThanOrEqual(s.cfg.MediumMultiple):
		res.Level = domain.RiskMedium
	}
	if res.Level != domain.RiskLow {
		res.Indicators = []string{domain.IndicatorAmount}
	}
	return res, nil
}

// LocationDeviceSignal compares device and position with the account's
// established profile.
type LocationDeviceSignal struct {
	profiles ProfileStore
	cfg      LocationConfig
}

func NewLocationDeviceSignal(profiles ProfileStore, cfg LocationConfig) *LocationDeviceSignal {
	return &LocationDeviceSignal{profiles: profiles, cfg: cfg}
}

func (s *LocationDeviceSignal) Name() string { return "location_device" }

func (s *LocationDeviceSignal) Evaluate(ctx context.Context, in Input) (SignalResult, error) {
	profile, ok, err := s.profiles.Get(ctx, in.Request.SourceAccount)
	if err != nil {
		return SignalResult{}, err
	}
	if !ok {
		return SignalResult{Level: domain.RiskLow}, nil
	}

	tc := in.Context
	unknownDevice := tc.DeviceFingerprint != "" && !profile.KnowsDevice(tc.DeviceFingerprint)
	implausible := false
	if tc.Location != nil && profile.LastLocation != nil {
		distance := DistanceKm(*profile.LastLocation, *tc.Location)
		if distance >= s.cfg.MinJumpKm {
			elapsed := tc.EvaluatedAt.Sub(profile.LastLocatedAt).Hours()
			implausible = elapsed <= 0 || distance/elapsed > s.cfg.MaxSpeedKmh
		}
	}

	res := SignalResult{Level: domain.RiskLow, Sufficient: tc.DeviceFingerprint != "" || tc.Location != nil}
	if unknownDevice {
		res.Indicators = append(res.Indicators, domain.IndicatorDevice)
	}
	if implausible {
		res.Indicators = append(res.Indicators, domain.IndicatorLocation)
	}

	switch {
	case unknownDevice && implausible:
		res.Level, res.Score = domain.RiskHigh, 0.95
	case implausible:
		res.Level, res.Score = domain.RiskMedium, 0.6
	case unknownDevice:
		res.Level, res.Score = domain.RiskMedium, 0.4
	}
	return res, nil
}

type BeneficiarySignal struct {
	reputation repository.ReputationStore
}

func NewBeneficiarySignal(reputation repository.ReputationStore) *BeneficiarySignal {
	return &BeneficiarySignal{reputation: reputation}
}

func (s *BeneficiarySignal) Name() string { return "beneficiary_reputation" }

func (s *BeneficiarySignal) Evaluate(ctx context.Context, in Input) (SignalResult, error) {
	rep, err := s.reputation.Lookup(ctx, in.Request.DestinationAccount)
	if err != nil {
		return SignalResult{}, err
	}
	if rep == domain.ReputationFlagged {
		return SignalResult{
			Level:      domain.RiskHigh,
			Score:      1,
			Indicators: []string{domain.IndicatorBeneficiary},
			Sufficient: true,
		}, nil
	}
	return SignalResult{Level: domain.RiskLow, Sufficient: true}, nil
}

// DefaultSignals wires the four standard signals.
func DefaultSignals(
	store *counters.Store,
	profiles ProfileStore,
	reputation repository.ReputationStore,
	cfg Config,
) []Signal {
	return []Signal{
		NewVelocitySignal(store, cfg.Velocity),
		NewAmountAnomalySignal(store, cfg.Amount),
		NewLocationDeviceSignal(profiles, cfg.Location),
		NewBeneficiarySignal(reputation),
	}
}
