package scheduler

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIsWithinSchedule_Weekdays(t *testing.T) {
	// 2025-06-02 is a Monday.
	monday := time.Date(2025, 6, 2, 12, 0, 0, 0, time.UTC)
	saturday := time.Date(2025, 6, 7, 12, 0, 0, 0, time.UTC)
	weekdays := []string{"Mon", "Tue", "Wed", "Thu", "Fri"}

	ok, err := IsWithinSchedule(monday, "UTC", weekdays, "09:00", "17:00")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = IsWithinSchedule(saturday, "UTC", weekdays, "09:00", "17:00")
	require.NoError(t, err)
	assert.False(t, ok, "saturday must be rejected by a weekday-only schedule")
}

func TestIsWithinSchedule_EmptySendDaysAllowsEveryDay(t *testing.T) {
	sunday := time.Date(2025, 6, 8, 12, 0, 0, 0, time.UTC)

	ok, err := IsWithinSchedule(sunday, "UTC", nil, "09:00", "17:00")
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestIsWithinSchedule_InclusiveBounds(t *testing.T) {
	day := time.Date(2025, 6, 2, 0, 0, 0, 0, time.UTC)

	cases := []struct {
		name  string
		clock time.Duration
		want  bool
	}{
		{"exactly at start", 9 * time.Hour, true},
		{"exactly at end", 17 * time.Hour, true},
		{"one minute before start", 8*time.Hour + 59*time.Minute, false},
		{"one minute after end", 17*time.Hour + 1*time.Minute, false},
		{"middle of window", 13 * time.Hour, true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			ok, err := IsWithinSchedule(day.Add(tc.clock), "UTC", nil, "09:00", "17:00")
			require.NoError(t, err)
			assert.Equal(t, tc.want, ok)
		})
	}
}

func TestIsWithinSchedule_MidnightCrossing(t *testing.T) {
	day := time.Date(2025, 6, 2, 0, 0, 0, 0, time.UTC)

	cases := []struct {
		name  string
		clock time.Duration
		want  bool
	}{
		{"late evening inside", 23 * time.Hour, true},
		{"early morning inside", 1 * time.Hour, true},
		{"exactly at end", 2 * time.Hour, true},
		{"mid-afternoon outside", 15 * time.Hour, false},
		{"just after end", 2*time.Hour + 1*time.Minute, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			ok, err := IsWithinSchedule(day.Add(tc.clock), "UTC", nil, "22:00", "02:00")
			require.NoError(t, err)
			assert.Equal(t, tc.want, ok)
		})
	}
}

func TestIsWithinSchedule_EvaluatesInCampaignTimezone(t *testing.T) {
	// 14:00 UTC is 10:00 in New York during DST.
	now := time.Date(2025, 6, 2, 14, 0, 0, 0, time.UTC)

	ok, err := IsWithinSchedule(now, "America/New_York", nil, "09:00", "11:00")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = IsWithinSchedule(now, "UTC", nil, "09:00", "11:00")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestIsWithinSchedule_InvalidInputs(t *testing.T) {
	now := time.Date(2025, 6, 2, 12, 0, 0, 0, time.UTC)

	_, err := IsWithinSchedule(now, "Not/AZone", nil, "09:00", "17:00")
	assert.Error(t, err)

	_, err = IsWithinSchedule(now, "UTC", nil, "9am", "17:00")
	assert.Error(t, err)
}

func TestDayKeyInTZ(t *testing.T) {
	// 03:00 UTC on June 3rd is still June 2nd in Los Angeles.
	now := time.Date(2025, 6, 3, 3, 0, 0, 0, time.UTC)

	key, err := DayKeyInTZ(now, "UTC")
	require.NoError(t, err)
	assert.Equal(t, "2025-06-03", key)

	key, err = DayKeyInTZ(now, "America/Los_Angeles")
	require.NoError(t, err)
	assert.Equal(t, "2025-06-02", key)

	_, err = DayKeyInTZ(now, "Not/AZone")
	assert.Error(t, err)
}
