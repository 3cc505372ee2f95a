package batch

import "time"

// NextFireTime computes the next fire time for a recurrence pattern, given
// base (max(scheduled_time, now) per spec §4.9) and the configured interval.
// Monthly recurrence clamps to the last day of the target month when the
// source day doesn't exist there (e.g. Jan 31 -> Feb 28/29), unlike Go's
// time.AddDate which would roll the overflow into the following month.
func NextFireTime(pattern RecurrencePattern, base time.Time, interval int) (time.Time, bool) {
	if interval <= 0 {
		interval = 1
	}
	switch pattern {
	case RecurrenceHourly:
		return base.Add(time.Duration(interval) * time.Hour), true
	case RecurrenceDaily:
		return base.AddDate(0, 0, interval), true
	case RecurrenceWeekly:
		return base.AddDate(0, 0, interval*7), true
	case RecurrenceMonthly:
		return addClampedMonths(base, interval), true
	default:
		return time.Time{}, false
	}
}

// addClampedMonths adds n calendar months to t, clamping the day-of-month to
// the last valid day of the resulting month rather than letting it overflow
// into the month after.
func addClampedMonths(t time.Time, n int) time.Time {
	year, month, day := t.Date()
	targetMonthIndex := int(month) - 1 + n
	targetYear := year + targetMonthIndex/12
	targetMonth := time.Month(targetMonthIndex%12 + 1)
	if targetMonthIndex%12 < 0 {
		targetMonth += 12
		targetYear--
	}

	lastDay := lastDayOfMonth(targetYear, targetMonth)
	if day > lastDay {
		day = lastDay
	}

	return time.Date(targetYear, targetMonth, day, t.Hour(), t.Minute(), t.Second(), t.Nanosecond(), t.Location())
}

func lastDayOfMonth(year int, month time.Month) int {
	firstOfNext := time.Date(year, month+1, 1, 0, 0, 0, 0, time.UTC)
	lastOfThis := firstOfNext.AddDate(0, 0, -1)
	return lastOfThis.Day()
}

// RecurrenceBase computes the base time recurrence math starts from: the
// later of the job's scheduled time and the current time (spec §4.9).
func RecurrenceBase(scheduledTime time.Time, now time.Time) time.Time {
	if scheduledTime.After(now) {
		return scheduledTime
	}
	return now
}
