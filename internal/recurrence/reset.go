// Package recurrence returns verified recurring tasks to pending once their
// period has elapsed.
package recurrence

import (
	"time"

	"github.com/dukerupert/starboard/internal/clock"
	"github.com/dukerupert/starboard/internal/model"
)

// WeeklyPeriod is a rolling window, not a calendar week.
const WeeklyPeriod = 7 * 24 * time.Hour

// ShouldReset reports whether task is due to go back to pending at now.
// Daily tasks reset once the calendar date (in loc) has moved past the day
// they were verified.
func ShouldReset(task model.Task, now time.Time, loc *time.Location) bool {
	if task.IsPool() || task.Status != model.StatusVerified || task.VerifiedAt == nil {
		return false
	}

	switch task.Frequency {
	case model.FrequencyDaily:
		return clock.DateOf(*task.VerifiedAt, loc) < clock.DateOf(now, loc)
	case model.FrequencyWeekly:
		return now.Sub(*task.VerifiedAt) >= WeeklyPeriod
	default:
		return false
	}
}
