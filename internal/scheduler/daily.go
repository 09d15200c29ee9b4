// Package scheduler fires a job once a day at a fixed local time.
package scheduler

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"
)

// Job is invoked with the scheduled firing time.
type Job func(ctx context.Context, at time.Time)

// Daily runs Job every day when the wall clock in Location reads At. Which
// days actually do work is up to the job; Daily fires every day.
type Daily struct {
	At       time.Duration
	Location *time.Location
	Job      Job

	// Now returns the current time; defaults to time.Now.
	Now func() time.Time
	// Sleep blocks for d or until ctx ends and reports whether the full
	// delay elapsed; defaults to a time.Timer wait.
	Sleep func(ctx context.Context, d time.Duration) bool
}

// Next returns the first firing strictly after now.
func (d *Daily) Next(now time.Time) time.Time {
	local := now.In(d.loc())
	y, m, day := local.Date()
	at := d.slot(y, m, day)
	if !at.After(local) {
		at = d.slot(y, m, day+1)
	}
	return at
}

// slot builds the firing time from wall-clock components so a DST shift
// earlier that day does not move it.
func (d *Daily) slot(y int, m time.Month, day int) time.Time {
	hh := int(d.At / time.Hour)
	mm := int(d.At % time.Hour / time.Minute)
	ss := int(d.At % time.Minute / time.Second)
	return time.Date(y, m, day, hh, mm, ss, 0, d.loc())
}

// Run fires the job until ctx ends. A job runs to completion before the
// next firing is computed, so a slow job never overlaps itself; a firing
// missed while the job was running is skipped.
func (d *Daily) Run(ctx context.Context) {
	for {
		next := d.Next(d.now())
		log.Debug().Time("next", next).Msg("scheduler: waiting")
		if !d.sleep(ctx, next.Sub(d.now())) {
			return
		}
		d.fire(ctx, next)
	}
}

func (d *Daily) fire(ctx context.Context, at time.Time) {
	defer func() {
		if r := recover(); r != nil {
			log.Error().Interface("panic", r).Time("at", at).Msg("scheduler: job panicked")
		}
	}()
	d.Job(ctx, at)
}

func (d *Daily) loc() *time.Location {
	if d.Location == nil {
		return time.Local
	}
	return d.Location
}

func (d *Daily) now() time.Time {
	if d.Now == nil {
		return time.Now()
	}
	return d.Now()
}

func (d *Daily) sleep(ctx context.Context, dur time.Duration) bool {
	if d.Sleep != nil {
		return d.Sleep(ctx, dur)
	}
	return Wait(ctx, dur)
}

// Wait blocks for dur or until ctx ends and reports whether dur elapsed.
func Wait(ctx context.Context, dur time.Duration) bool {
	if dur < 0 {
		dur = 0
	}
	timer := time.NewTimer(dur)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}
