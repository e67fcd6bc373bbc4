package counters

import (
	"sync"
	"time"

	"payment_validator/internal/domain"

	"github.com/shopspring/decimal"
)

// Reservation is a pending amount held against an account's limits until the
// evaluation either commits or releases it. Unfinalized reservations stop
// counting once they expire.
type Reservation struct {
	store     *Store
	accountID string
	id        uint64
	mode      domain.PaymentMode
	amount    decimal.Decimal
	at        time.Time
	expires   time.Time

	once sync.Once
	err  error
}

func (r *Reservation) AccountID() string {
	return r.accountID
}

func (r *Reservation) Amount() decimal.Decimal {
	return r.amount
}

func (r *Reservation) ExpiresAt() time.Time {
	return r.expires
}

func (r *Reservation) Commit(now time.Time) error {
	done := false
	r.once.Do(func() {
		done = true
		r.err = r.store.commit(r, now)
	})
	if !done {
		return ErrReservationClosed
	}
	return r.err
}

// Release gives the amount back. It is a no-op after Commit or a prior Release.
func (r *Reservation) Release() {
	r.once.Do(func() {
		r.store.release(r)
	})
}

func (r *Reservation) entryID() uint64 {
	if r == nil {
		return 0
	}
	return r.id
}
