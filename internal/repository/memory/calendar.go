package memory

import (
	"context"
	"sync"
	"time"
)

const dateLayout = "2006-01-02"

// HolidayCalendar treats Saturdays, Sundays and the registered dates as
// non-business days.
type HolidayCalendar struct {
	mu       sync.RWMutex
	holidays map[string]struct{}
}

func NewHolidayCalendar(holidays ...string) *HolidayCalendar {
	c := &HolidayCalendar{holidays: make(map[string]struct{})}
	for _, h := range holidays {
		c.holidays[h] = struct{}{}
	}
	return c
}

func (c *HolidayCalendar) AddHoliday(date time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.holidays[date.Format(dateLayout)] = struct{}{}
}

func (c *HolidayCalendar) IsBusinessDay(ctx context.Context, date time.Time) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}

	switch date.Weekday() {
	case time.Saturday, time.Sunday:
		return false, nil
	}

	c.mu.RLock()
	defer c.mu.RUnlock()

	_, holiday := c.holidays[date.Format(dateLayout)]
	return !holiday, nil
}
