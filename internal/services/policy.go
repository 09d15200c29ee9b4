package services

import (
	"strings"
	"time"

	"github.com/tbourn/go-order-bot/internal/domain"
)

// Policy holds the pickup date rules. All comparisons use Location, the
// business time zone.
type Policy struct {
	// Cutoff is the time of day after which tomorrow's orders can no longer
	// be placed or cancelled.
	Cutoff time.Duration
	// Location is the business time zone; nil means time.Local.
	Location *time.Location
}

// DefaultPolicy returns a policy with a 12:00 local cutoff.
func DefaultPolicy() Policy {
	return Policy{Cutoff: 12 * time.Hour, Location: time.Local}
}

// ValidatePickup parses text as day.month.year and checks it against now.
// It returns ErrMalformedDate, ErrPastDate or ErrCutoffPassed; on success
// the date is returned at midnight in the business time zone.
func (p Policy) ValidatePickup(text string, now time.Time) (time.Time, error) {
	d, err := p.ParseDate(text)
	if err != nil {
		return time.Time{}, ErrMalformedDate
	}
	if d.Before(p.Today(now)) {
		return time.Time{}, ErrPastDate
	}
	if err := p.CheckCutoff(d, now); err != nil {
		return time.Time{}, err
	}
	return d, nil
}

// CheckCutoff returns ErrCutoffPassed when pickup is tomorrow and the time
// of day is at or after the cutoff.
func (p Policy) CheckCutoff(pickup, now time.Time) error {
	now = now.In(p.loc())
	today := p.Today(now)
	tomorrow := today.AddDate(0, 0, 1)
	if !sameDay(pickup.In(p.loc()), tomorrow) {
		return nil
	}
	if wallClock(now) >= p.Cutoff {
		return ErrCutoffPassed
	}
	return nil
}

// wallClock is the time of day shown on a local clock, which differs from
// the time elapsed since midnight on DST transition days.
func wallClock(t time.Time) time.Duration {
	h, m, s := t.Clock()
	return time.Duration(h)*time.Hour + time.Duration(m)*time.Minute + time.Duration(s)*time.Second
}

// ParseDate parses day.month.year, with or without leading zeros.
func (p Policy) ParseDate(text string) (time.Time, error) {
	return time.ParseInLocation(domain.InputDateLayout, strings.TrimSpace(text), p.loc())
}

// Today returns the start of the current day in the business time zone.
func (p Policy) Today(now time.Time) time.Time {
	now = now.In(p.loc())
	return time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, p.loc())
}

func (p Policy) loc() *time.Location {
	if p.Location == nil {
		return time.Local
	}
	return p.Location
}

func sameDay(a, b time.Time) bool {
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	return ay == by && am == bm && ad == bd
}
