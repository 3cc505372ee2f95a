package batch

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNextFireTime_MonthlyClampsJan31ToFeb28(t *testing.T) {
	base := time.Date(2026, time.January, 31, 10, 0, 0, 0, time.UTC)
	next, ok := NextFireTime(RecurrenceMonthly, base, 1)
	require.True(t, ok)
	assert.Equal(t, time.Date(2026, time.February, 28, 10, 0, 0, 0, time.UTC), next)
}

func TestNextFireTime_MonthlyClampsToFeb29OnLeapYear(t *testing.T) {
	base := time.Date(2024, time.January, 31, 10, 0, 0, 0, time.UTC)
	next, ok := NextFireTime(RecurrenceMonthly, base, 1)
	require.True(t, ok)
	assert.Equal(t, time.Date(2024, time.February, 29, 10, 0, 0, 0, time.UTC), next)
}

func TestNextFireTime_MonthlyReturnsTo31stWhereMonthHas31Days(t *testing.T) {
	base := time.Date(2026, time.February, 28, 10, 0, 0, 0, time.UTC)
	// Feb 28 -> Mar 28 isn't a clamp case, so instead verify that Jan 31 with a
	// two-month interval lands on Mar 31: the day is clamped only against the
	// target month, never against the February in between.
	next, _ := NextFireTime(RecurrenceMonthly, time.Date(2026, time.January, 31, 10, 0, 0, 0, time.UTC), 2)
	assert.Equal(t, time.Date(2026, time.March, 31, 10, 0, 0, 0, time.UTC), next)
	_ = base
}

func TestNextFireTime_Hourly(t *testing.T) {
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	next, ok := NextFireTime(RecurrenceHourly, base, 3)
	require.True(t, ok)
	assert.Equal(t, base.Add(3*time.Hour), next)
}

func TestNextFireTime_Weekly(t *testing.T) {
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	next, ok := NextFireTime(RecurrenceWeekly, base, 2)
	require.True(t, ok)
	assert.Equal(t, base.AddDate(0, 0, 14), next)
}

func TestNextFireTime_CustomUnimplemented(t *testing.T) {
	_, ok := NextFireTime(RecurrenceCustom, time.Now(), 1)
	assert.False(t, ok)
}

func TestRecurrenceBase_PicksLaterOfScheduledAndNow(t *testing.T) {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	future := now.Add(time.Hour)
	past := now.Add(-time.Hour)

	assert.Equal(t, future, RecurrenceBase(future, now))
	assert.Equal(t, now, RecurrenceBase(past, now))
}
