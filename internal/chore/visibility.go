package chore

import (
	"slices"
	"time"

	"github.com/dukerupert/starboard/internal/model"
)

// IsActiveToday reports whether task should be shown as actionable on today.
// One-time tasks are always shown; status filtering is up to the caller.
// School tasks are hidden on weekends and while any guardian is on vacation.
func IsActiveToday(task model.Task, today time.Time, vacation bool) bool {
	if !task.Frequency.Recurring() {
		return true
	}

	weekday := today.Weekday()
	if task.IsSchool {
		if vacation {
			return false
		}
		if weekday == time.Saturday || weekday == time.Sunday {
			return false
		}
	}

	if len(task.RecurrenceDays) > 0 && !slices.Contains(task.RecurrenceDays, int(weekday)) {
		return false
	}
	return true
}
