package counters

import (
	"time"

	"payment_validator/internal/domain"

	"github.com/shopspring/decimal"
)

type entryState uint8

const (
	statePending entryState = iota
	stateCommitted
	stateReleased
)

type entry struct {
	id      uint64
	amount  decimal.Decimal
	mode    domain.PaymentMode
	at      time.Time
	state   entryState
	expires time.Time
}

// live reports whether the entry counts toward totals at now.
func (e *entry) live(now time.Time) bool {
	switch e.state {
	case stateCommitted:
		return true
	case statePending:
		return !now.After(e.expires)
	default:
		return false
	}
}

type bucketKey struct {
	mode domain.PaymentMode
	day  int64
}

// bucket summarises committed entries pushed out of a full ring.
type bucket struct {
	dayStart time.Time
	count    int
	sum      decimal.Decimal
	latest   time.Time
}

// ring is the per-account fixed-capacity entry buffer. Every method expects
// mu of the owning account to be held.
type ring struct {
	entries []entry
	head    int
	size    int
	buckets map[bucketKey]*bucket
}

func newRing(capacity int) *ring {
	return &ring{
		entries: make([]entry, capacity),
		buckets: make(map[bucketKey]*bucket),
	}
}

func (r *ring) at(i int) *entry {
	return &r.entries[(r.head+i)%len(r.entries)]
}

func (r *ring) push(e entry, loc *time.Location) {
	if r.size == len(r.entries) {
		r.spill(r.at(0), loc)
		r.head = (r.head + 1) % len(r.entries)
		r.size--
	}
	*r.at(r.size) = e
	r.size++
}

func (r *ring) spill(e *entry, loc *time.Location) {
	if e.state != stateCommitted {
		return
	}
	r.addToBucket(e.mode, e.amount, e.at, loc)
}

func (r *ring) addToBucket(mode domain.PaymentMode, amount decimal.Decimal, at time.Time, loc *time.Location) {
	dayStart := startOfDay(at, loc)
	key := bucketKey{mode: mode, day: dayStart.Unix()}
	b, ok := r.buckets[key]
	if !ok {
		b = &bucket{dayStart: dayStart}
		r.buckets[key] = b
	}
	b.count++
	b.sum = b.sum.Add(amount)
	if at.After(b.latest) {
		b.latest = at
	}
}

func (r *ring) find(id uint64) *entry {
	for i := 0; i < r.size; i++ {
		if e := r.at(i); e.id == id {
			return e
		}
	}
	return nil
}

// evict drops dead entries from the head and buckets past retention.
func (r *ring) evict(now time.Time, retention time.Duration) {
	cutoff := now.Add(-retention)
	for r.size > 0 {
		e := r.at(0)
		if e.live(now) && e.at.After(cutoff) {
			break
		}
		*e = entry{}
		r.head = (r.head + 1) % len(r.entries)
		r.size--
	}
	if r.size == 0 {
		r.head = 0
	}

	for key, b := range r.buckets {
		if !b.latest.After(cutoff) {
			delete(r.buckets, key)
		}
	}
}

func (r *ring) totals(mode domain.PaymentMode, now time.Time, daily time.Duration, monthStart time.Time) Totals {
	dayCutoff := now.Add(-daily)
	t := Totals{Daily: decimal.Zero, Monthly: decimal.Zero}

	for i := 0; i < r.size; i++ {
		e := r.at(i)
		if e.mode != mode || !e.live(now) {
			continue
		}
		if e.at.After(dayCutoff) {
			t.Daily = t.Daily.Add(e.amount)
		}
		if !e.at.Before(monthStart) {
			t.Monthly = t.Monthly.Add(e.amount)
		}
	}

	// A spilled bucket is only known per day, so it counts toward the
	// trailing day whenever its newest entry falls inside it.
	for key, b := range r.buckets {
		if key.mode != mode {
			continue
		}
		if b.latest.After(dayCutoff) {
			t.Daily = t.Daily.Add(b.sum)
		}
		if !b.dayStart.Before(monthStart) {
			t.Monthly = t.Monthly.Add(b.sum)
		}
	}
	return t
}

func (r *ring) window(now time.Time, d time.Duration, exclude uint64) Window {
	cutoff := now.Add(-d)
	w := Window{Sum: decimal.Zero}
	for i := 0; i < r.size; i++ {
		e := r.at(i)
		if e.id == exclude || !e.live(now) || !e.at.After(cutoff) {
			continue
		}
		w.Count++
		w.Sum = w.Sum.Add(e.amount)
	}
	return w
}

func (r *ring) history(exclude uint64) History {
	h := History{Mean: decimal.Zero}
	sum := decimal.Zero
	for i := 0; i < r.size; i++ {
		e := r.at(i)
		if e.id == exclude || e.state != stateCommitted {
			continue
		}
		h.Count++
		sum = sum.Add(e.amount)
	}
	for _, b := range r.buckets {
		h.Count += b.count
		sum = sum.Add(b.sum)
	}
	if h.Count > 0 {
		h.Mean = sum.Div(decimal.NewFromInt(int64(h.Count)))
	}
	return h
}

func startOfDay(t time.Time, loc *time.Location) time.Time {
	t = t.In(loc)
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, loc)
}

func startOfMonth(t time.Time, loc *time.Location) time.Time {
	t = t.In(loc)
	return time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, loc)
}
