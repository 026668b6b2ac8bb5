// internal/engine/reminder/calculator.go

// Package reminder computes the calendar dates on which a reminder must fire
// for a target date under a reminder policy. All comparisons are whole
// calendar days in UTC; the engine uses this single day-boundary convention
// for every reminder family. Repeated firing on the same trigger date is
// prevented by the delivery log, not here.
package reminder

import (
	"time"

	"subtrack-notifier/internal/models"
)

// Date truncates t to a UTC calendar day.
func Date(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// DateString renders a trigger date the way the delivery log keys it.
func DateString(t time.Time) string {
	return Date(t).Format("2006-01-02")
}

// ComputeTriggerDates returns every trigger date the policy defines for the
// target date, ignoring "today". Degenerate inputs (nil target, non-positive
// lead days) yield an empty set.
func ComputeTriggerDates(target *time.Time, reminderDays int, policy models.ReminderPolicy) []time.Time {
	if target == nil || reminderDays <= 0 {
		return nil
	}
	targetDay := Date(*target)

	switch policy {
	case models.PolicyOneTime:
		return []time.Time{targetDay.AddDate(0, 0, -reminderDays)}

	case models.PolicyTwoTimes:
		// Second trigger at half the lead, rounded away from the target so a
		// one-day lead collapses onto the first trigger instead of landing on
		// the target date itself.
		first := targetDay.AddDate(0, 0, -reminderDays)
		second := targetDay.AddDate(0, 0, -((reminderDays + 1) / 2))
		if second.Equal(first) {
			return []time.Time{first}
		}
		return []time.Time{first, second}

	case models.PolicyUntilRenewal:
		dates := make([]time.Time, 0, reminderDays+1)
		for d := targetDay.AddDate(0, 0, -reminderDays); !d.After(targetDay); d = d.AddDate(0, 0, 1) {
			dates = append(dates, d)
		}
		return dates

	default:
		return nil
	}
}

// DueTriggers returns the trigger dates a sweep running on "today" must fire,
// with catch-up semantics: a one-shot trigger whose date was missed still
// fires while today is on or before the target date, keyed by its original
// trigger date so the delivery log keeps it to a single send. Under
// Until Renewal the trigger for a given day is that day itself, so daily
// sweeps fire daily throughout the window.
func DueTriggers(target *time.Time, reminderDays int, policy models.ReminderPolicy, today time.Time) []time.Time {
	if target == nil || reminderDays <= 0 {
		return nil
	}
	targetDay := Date(*target)
	day := Date(today)

	if day.After(targetDay) {
		return nil
	}

	switch policy {
	case models.PolicyOneTime, models.PolicyTwoTimes:
		var due []time.Time
		for _, trigger := range ComputeTriggerDates(target, reminderDays, policy) {
			if !day.Before(trigger) {
				due = append(due, trigger)
			}
		}
		return due

	case models.PolicyUntilRenewal:
		windowStart := targetDay.AddDate(0, 0, -reminderDays)
		if day.Before(windowStart) {
			return nil
		}
		return []time.Time{day}

	default:
		return nil
	}
}
