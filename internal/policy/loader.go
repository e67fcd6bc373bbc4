package policy

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"time"

	"payment_validator/internal/domain"
	"payment_validator/internal/rules"

	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"
)

var ErrInvalidPolicy = errors.New("invalid policy")

type fileLimit struct {
	MinPerTxn         string            `yaml:"min_per_txn"`
	MaxPerTxn         string            `yaml:"max_per_txn"`
	DailyMax          string            `yaml:"daily_max"`
	MonthlyMax        string            `yaml:"monthly_max"`
	MonthlyByCategory map[string]string `yaml:"monthly_by_category"`
}

type fileWindow struct {
	Open  string `yaml:"open"`
	Close string `yaml:"close"`
}

type fileCategoryCap struct {
	Category string   `yaml:"category"`
	Modes    []string `yaml:"modes"`
	Max      string   `yaml:"max"`
}

type fileBusiness struct {
	PurposeThreshold string            `yaml:"purpose_threshold"`
	CategoryCaps     []fileCategoryCap `yaml:"category_caps"`
}

type file struct {
	Timezone  string                `yaml:"timezone"`
	Limits    map[string]fileLimit  `yaml:"limits"`
	Schedules map[string]fileWindow `yaml:"schedules"`
	Business  *fileBusiness         `yaml:"business"`
	Rules     []domain.Rule         `yaml:"rules"`
}

func LoadFile(path string) (*Snapshot, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read policy file: %w", err)
	}
	return Parse(data)
}

// Parse builds a Snapshot from YAML. Sections that are absent keep their
// defaults; modes listed under limits or schedules replace the default entry
// for that mode.
func Parse(data []byte) (*Snapshot, error) {
	var f file
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&f); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidPolicy, err)
	}

	snap := Default()

	if f.Timezone != "" {
		loc, err := time.LoadLocation(f.Timezone)
		if err != nil {
			return nil, fmt.Errorf("%w: timezone %q: %v", ErrInvalidPolicy, f.Timezone, err)
		}
		snap.Schedule.Location = loc
	}

	for name, fl := range f.Limits {
		mode, err := parseMode(name)
		if err != nil {
			return nil, err
		}
		lp, err := fl.toPolicy()
		if err != nil {
			return nil, fmt.Errorf("%w: limits.%s: %v", ErrInvalidPolicy, name, err)
		}
		snap.Limits[mode] = lp
	}

	for name, fw := range f.Schedules {
		mode, err := parseMode(name)
		if err != nil {
			return nil, err
		}
		if mode.Continuous() {
			return nil, fmt.Errorf("%w: %s settles continuously and takes no schedule", ErrInvalidPolicy, mode)
		}
		w, err := ParseWindow(fw.Open, fw.Close)
		if err != nil {
			return nil, fmt.Errorf("%w: schedules.%s: %v", ErrInvalidPolicy, name, err)
		}
		snap.Schedule.Windows[mode] = w
	}

	if f.Business != nil {
		bp, err := f.Business.toPolicy()
		if err != nil {
			return nil, fmt.Errorf("%w: business: %v", ErrInvalidPolicy, err)
		}
		snap.Business = bp
	}

	for i := range f.Rules {
		r := f.Rules[i]
		if r.ID == "" || r.Condition == "" {
			return nil, fmt.Errorf("%w: rule #%d needs id and condition", ErrInvalidPolicy, i)
		}
		if r.Action != domain.ActionBlock && r.Action != domain.ActionWarn {
			return nil, fmt.Errorf("%w: rule %s: unknown action %q", ErrInvalidPolicy, r.ID, r.Action)
		}
		if err := rules.Check(r.Condition); err != nil {
			return nil, fmt.Errorf("%w: rule %s: %v", ErrInvalidPolicy, r.ID, err)
		}
		snap.Rules = append(snap.Rules, r)
	}

	return snap, nil
}

func parseMode(name string) (domain.PaymentMode, error) {
	mode := domain.PaymentMode(name)
	if !mode.Valid() {
		return "", fmt.Errorf("%w: unknown payment mode %q", ErrInvalidPolicy, name)
	}
	return mode, nil
}

func parseAmount(s string) (decimal.Decimal, error) {
	if s == "" {
		return decimal.Zero, nil
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, fmt.Errorf("amount %q: %w", s, err)
	}
	if d.IsNegative() {
		return decimal.Zero, fmt.Errorf("amount %q is negative", s)
	}
	return d, nil
}

func (fl fileLimit) toPolicy() (LimitPolicy, error) {
	var (
		lp  LimitPolicy
		err error
	)
	if lp.MinPerTxn, err = parseAmount(fl.MinPerTxn); err != nil {
		return lp, err
	}
	if lp.MaxPerTxn, err = parseAmount(fl.MaxPerTxn); err != nil {
		return lp, err
	}
	if lp.DailyMax, err = parseAmount(fl.DailyMax); err != nil {
		return lp, err
	}
	if lp.MonthlyMax, err = parseAmount(fl.MonthlyMax); err != nil {
		return lp, err
	}
	if lp.MaxPerTxn.IsPositive() && lp.MinPerTxn.GreaterThan(lp.MaxPerTxn) {
		return lp, fmt.Errorf("min_per_txn %s above max_per_txn %s", lp.MinPerTxn, lp.MaxPerTxn)
	}

	lp.MonthlyByCategory = make(map[domain.CustomerCategory]decimal.Decimal, len(fl.MonthlyByCategory))
	for category, raw := range fl.MonthlyByCategory {
		v, err := parseAmount(raw)
		if err != nil {
			return lp, fmt.Errorf("monthly_by_category.%s: %w", category, err)
		}
		lp.MonthlyByCategory[domain.CustomerCategory(category)] = v
	}
	return lp, nil
}

func (fb *fileBusiness) toPolicy() (BusinessPolicy, error) {
	var bp BusinessPolicy
	threshold, err := parseAmount(fb.PurposeThreshold)
	if err != nil {
		return bp, fmt.Errorf("purpose_threshold: %w", err)
	}
	bp.PurposeThreshold = threshold

	for _, fc := range fb.CategoryCaps {
		cc := CategoryCap{Category: domain.CustomerCategory(fc.Category)}
		if cc.Max, err = parseAmount(fc.Max); err != nil {
			return bp, fmt.Errorf("category_caps.%s: %w", fc.Category, err)
		}
		for _, m := range fc.Modes {
			mode, err := parseMode(m)
			if err != nil {
				return bp, err
			}
			cc.Modes = append(cc.Modes, mode)
		}
		bp.CategoryCaps = append(bp.CategoryCaps, cc)
	}
	return bp, nil
}
