package services

import (
	"testing"
	"time"
	_ "time/tzdata"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testLoc = time.FixedZone("MSK", 3*60*60)

func at(y int, m time.Month, d, hh, mm int) time.Time {
	return time.Date(y, m, d, hh, mm, 0, 0, testLoc)
}

func testPolicy() Policy {
	return Policy{Cutoff: 12 * time.Hour, Location: testLoc}
}

func TestValidatePickup_Malformed(t *testing.T) {
	p := testPolicy()
	now := at(2024, time.March, 4, 9, 0)
	for _, in := range []string{"", "tomorrow", "2024-03-05", "32.03.2024", "05.13.2024", "5/3/2024", "05.03.24", "05.03.2024x"} {
		_, err := p.ValidatePickup(in, now)
		assert.ErrorIs(t, err, ErrMalformedDate, "input %q", in)
	}
}

func TestValidatePickup_Past(t *testing.T) {
	p := testPolicy()
	now := at(2024, time.March, 4, 9, 0)
	for _, in := range []string{"03.03.2024", "1.1.2020", "29.02.2024"} {
		_, err := p.ValidatePickup(in, now)
		assert.ErrorIs(t, err, ErrPastDate, "input %q", in)
	}
}

func TestValidatePickup_Accepts(t *testing.T) {
	p := testPolicy()
	now := at(2024, time.March, 4, 11, 59)

	for in, want := range map[string]time.Time{
		"04.03.2024": at(2024, time.March, 4, 0, 0),
		" 5.3.2024 ": at(2024, time.March, 5, 0, 0),
		"07.03.2024": at(2024, time.March, 7, 0, 0),
		"01.01.2030": at(2030, time.January, 1, 0, 0),
	} {
		got, err := p.ValidatePickup(in, now)
		require.NoError(t, err, "input %q", in)
		assert.True(t, got.Equal(want), "input %q: got %v want %v", in, got, want)
	}
}

func TestValidatePickup_TomorrowCutoff(t *testing.T) {
	p := testPolicy()

	_, err := p.ValidatePickup("05.03.2024", at(2024, time.March, 4, 11, 59))
	assert.NoError(t, err, "before cutoff")

	_, err = p.ValidatePickup("05.03.2024", at(2024, time.March, 4, 12, 0))
	assert.ErrorIs(t, err, ErrCutoffPassed, "exactly at cutoff")

	_, err = p.ValidatePickup("05.03.2024", at(2024, time.March, 4, 18, 30))
	assert.ErrorIs(t, err, ErrCutoffPassed, "after cutoff")

	_, err = p.ValidatePickup("06.03.2024", at(2024, time.March, 4, 18, 30))
	assert.NoError(t, err, "day after tomorrow is not subject to the cutoff")
}

func TestCheckCutoff_UsesBusinessZone(t *testing.T) {
	p := testPolicy()
	// 09:30 UTC is 12:30 in the business zone.
	now := time.Date(2024, time.March, 4, 9, 30, 0, 0, time.UTC)
	assert.ErrorIs(t, p.CheckCutoff(at(2024, time.March, 5, 0, 0), now), ErrCutoffPassed)
	assert.NoError(t, p.CheckCutoff(at(2024, time.March, 4, 0, 0), now), "today is fine")
}

func TestDefaultPolicy(t *testing.T) {
	p := DefaultPolicy()
	assert.Equal(t, 12*time.Hour, p.Cutoff)
	assert.Equal(t, time.Local, p.Location)
}

func TestValidatePickup_CutoffFollowsWallClockAcrossDST(t *testing.T) {
	berlin, err := time.LoadLocation("Europe/Berlin")
	require.NoError(t, err)
	p := Policy{Cutoff: 12 * time.Hour, Location: berlin}

	// Spring forward: the day is 23h long, 12:30 is only 11h30 past midnight.
	_, err = p.ValidatePickup("01.04.2024", time.Date(2024, time.March, 31, 12, 30, 0, 0, berlin))
	assert.ErrorIs(t, err, ErrCutoffPassed)

	// Fall back: the day is 25h long, 11:30 is already 12h30 past midnight.
	_, err = p.ValidatePickup("28.10.2024", time.Date(2024, time.October, 27, 11, 30, 0, 0, berlin))
	assert.NoError(t, err)
}
