package policy

import (
	"context"
	"fmt"
	"time"

	"payment_validator/internal/domain"
	"payment_validator/internal/repository"
)

// maxLookahead bounds the search for the next processing window.
const maxLookahead = 31

// Window is a daily processing window, in minutes after local midnight.
// Close is exclusive.
type Window struct {
	Open  int
	Close int
}

func ParseWindow(open, closing string) (Window, error) {
	o, err := parseClock(open)
	if err != nil {
		return Window{}, err
	}
	c, err := parseClock(closing)
	if err != nil {
		return Window{}, err
	}
	if c <= o {
		return Window{}, fmt.Errorf("window close %s must be after open %s", closing, open)
	}
	return Window{Open: o, Close: c}, nil
}

func parseClock(s string) (int, error) {
	t, err := time.Parse("15:04", s)
	if err != nil {
		return 0, fmt.Errorf("invalid clock value %q: %w", s, err)
	}
	return t.Hour()*60 + t.Minute(), nil
}

func (w Window) contains(t time.Time) bool {
	m := t.Hour()*60 + t.Minute()
	return m >= w.Open && m < w.Close
}

func (w Window) openOn(day time.Time) time.Time {
	return time.Date(day.Year(), day.Month(), day.Day(), 0, 0, 0, 0, day.Location()).
		Add(time.Duration(w.Open) * time.Minute)
}

func (w Window) String() string {
	return fmt.Sprintf("%02d:%02d-%02d:%02d", w.Open/60, w.Open%60, w.Close/60, w.Close%60)
}

// SchedulePolicy knows which modes settle in cycles and when.
type SchedulePolicy struct {
	Location *time.Location
	Windows  map[domain.PaymentMode]Window
}

type ScheduleDecision struct {
	Eligible   bool
	NextWindow time.Time
}

func DefaultSchedule() SchedulePolicy {
	loc, err := time.LoadLocation("Asia/Kolkata")
	if err != nil {
		loc = time.FixedZone("IST", 5*3600+1800)
	}
	return SchedulePolicy{
		Location: loc,
		Windows: map[domain.PaymentMode]Window{
			domain.ModeNEFT: {Open: 8 * 60, Close: 19 * 60},
			domain.ModeRTGS: {Open: 9 * 60, Close: 16*60 + 30},
		},
	}
}

// Decide reports whether at falls inside the mode's processing window and,
// if not, when the next window opens. Modes without a window are always
// eligible.
func (p SchedulePolicy) Decide(
	ctx context.Context,
	mode domain.PaymentMode,
	at time.Time,
	calendar repository.HolidayCalendar,
) (ScheduleDecision, error) {
	window, restricted := p.Windows[mode]
	if mode.Continuous() || !restricted {
		return ScheduleDecision{Eligible: true}, nil
	}

	local := at.In(p.location())
	business, err := calendar.IsBusinessDay(ctx, local)
	if err != nil {
		return ScheduleDecision{}, fmt.Errorf("holiday calendar: %w", err)
	}
	if business && window.contains(local) {
		return ScheduleDecision{Eligible: true}, nil
	}

	if business && local.Before(window.openOn(local)) {
		return ScheduleDecision{NextWindow: window.openOn(local)}, nil
	}

	day := local
	for i := 0; i < maxLookahead; i++ {
		day = day.AddDate(0, 0, 1)
		ok, err := calendar.IsBusinessDay(ctx, day)
		if err != nil {
			return ScheduleDecision{}, fmt.Errorf("holiday calendar: %w", err)
		}
		if ok {
			return ScheduleDecision{NextWindow: window.openOn(day)}, nil
		}
	}
	return ScheduleDecision{}, fmt.Errorf("no business day within %d days of %s", maxLookahead, local.Format(time.DateOnly))
}

func (p SchedulePolicy) location() *time.Location {
	if p.Location == nil {
		return time.UTC
	}
	return p.Location
}
