package scheduler

import (
	"context"
	"testing"
	"time"
	_ "time/tzdata"
)

var msk = time.FixedZone("MSK", 3*60*60)

func TestNext(t *testing.T) {
	d := &Daily{At: 6*time.Hour + 30*time.Minute, Location: msk}

	cases := []struct {
		name string
		now  time.Time
		want time.Time
	}{
		{"before today's slot", time.Date(2024, 3, 4, 5, 0, 0, 0, msk), time.Date(2024, 3, 4, 6, 30, 0, 0, msk)},
		{"exactly at the slot", time.Date(2024, 3, 4, 6, 30, 0, 0, msk), time.Date(2024, 3, 5, 6, 30, 0, 0, msk)},
		{"after the slot", time.Date(2024, 3, 4, 18, 0, 0, 0, msk), time.Date(2024, 3, 5, 6, 30, 0, 0, msk)},
		{"month rollover", time.Date(2024, 2, 29, 7, 0, 0, 0, msk), time.Date(2024, 3, 1, 6, 30, 0, 0, msk)},
		{"other zone input", time.Date(2024, 3, 4, 2, 0, 0, 0, time.UTC), time.Date(2024, 3, 4, 6, 30, 0, 0, msk)},
	}
	for _, tc := range cases {
		if got := d.Next(tc.now); !got.Equal(tc.want) {
			t.Fatalf("%s: Next(%v) = %v, want %v", tc.name, tc.now, got, tc.want)
		}
	}
}

func TestNext_KeepsWallClockAcrossDST(t *testing.T) {
	berlin, err := time.LoadLocation("Europe/Berlin")
	if err != nil {
		t.Fatalf("load zone: %v", err)
	}
	d := &Daily{At: 6*time.Hour + 30*time.Minute, Location: berlin}

	cases := []struct {
		name string
		now  time.Time
		want time.Time
	}{
		{"spring forward", time.Date(2024, 3, 31, 1, 0, 0, 0, berlin), time.Date(2024, 3, 31, 6, 30, 0, 0, berlin)},
		{"fall back", time.Date(2024, 10, 27, 1, 0, 0, 0, berlin), time.Date(2024, 10, 27, 6, 30, 0, 0, berlin)},
		{"next day after spring forward", time.Date(2024, 3, 30, 7, 0, 0, 0, berlin), time.Date(2024, 3, 31, 6, 30, 0, 0, berlin)},
	}
	for _, tc := range cases {
		got := d.Next(tc.now)
		if !got.Equal(tc.want) {
			t.Fatalf("%s: Next(%v) = %v, want %v", tc.name, tc.now, got, tc.want)
		}
		if h, m, _ := got.Clock(); h != 6 || m != 30 {
			t.Fatalf("%s: fired at %02d:%02d local, want 06:30", tc.name, h, m)
		}
	}
}

func TestRun_FiresDailyWithScheduledTime(t *testing.T) {
	clock := time.Date(2024, 3, 8, 12, 0, 0, 0, msk) // Friday
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var fired []time.Time
	var slept []time.Duration
	d := &Daily{
		At:       6*time.Hour + 30*time.Minute,
		Location: msk,
		Now:      func() time.Time { return clock },
		Job: func(_ context.Context, at time.Time) {
			fired = append(fired, at)
			clock = clock.Add(2 * time.Second) // job takes a moment
			if len(fired) == 3 {
				cancel()
			}
		},
	}
	d.Sleep = func(ctx context.Context, dur time.Duration) bool {
		if ctx.Err() != nil {
			return false
		}
		slept = append(slept, dur)
		clock = clock.Add(dur)
		return true
	}

	d.Run(ctx)

	if len(fired) != 3 {
		t.Fatalf("fired %d times, want 3", len(fired))
	}
	wantDays := []time.Weekday{time.Saturday, time.Sunday, time.Monday}
	for i, at := range fired {
		if at.Weekday() != wantDays[i] || at.Hour() != 6 || at.Minute() != 30 {
			t.Fatalf("firing %d at %v", i, at)
		}
	}
	if slept[0] != 18*time.Hour+30*time.Minute {
		t.Fatalf("first wait = %v", slept[0])
	}
	if slept[1] != 24*time.Hour-2*time.Second {
		t.Fatalf("second wait = %v", slept[1])
	}
}

func TestRun_JobPanicDoesNotStopScheduler(t *testing.T) {
	clock := time.Date(2024, 3, 4, 0, 0, 0, 0, msk)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	calls := 0
	d := &Daily{
		At:       time.Hour,
		Location: msk,
		Now:      func() time.Time { return clock },
		Sleep: func(ctx context.Context, dur time.Duration) bool {
			clock = clock.Add(dur)
			return ctx.Err() == nil
		},
		Job: func(context.Context, time.Time) {
			calls++
			if calls == 2 {
				cancel()
			}
			panic("boom")
		},
	}
	d.Run(ctx)
	if calls != 2 {
		t.Fatalf("calls = %d, want 2", calls)
	}
}

func TestWait(t *testing.T) {
	if !Wait(context.Background(), time.Millisecond) {
		t.Fatalf("Wait should report elapsed")
	}
	if !Wait(context.Background(), -time.Second) {
		t.Fatalf("negative wait should return immediately")
	}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if Wait(ctx, time.Hour) {
		t.Fatalf("Wait on canceled context should report false")
	}
}
