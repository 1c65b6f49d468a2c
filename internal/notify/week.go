package notify

import "time"

// MaxWeek is the last week number an activity log can be filed for.
const MaxWeek = 52

// WeekNumber returns the 1-based week of a course offering that contains
// now. It reports false before the offering starts.
func WeekNumber(start, now time.Time, weekLength time.Duration) (int, bool) {
	if now.Before(start) || weekLength <= 0 {
		return 0, false
	}
	return int(now.Sub(start)/weekLength) + 1, true
}

// WeekStart returns when the given 1-based week of an offering begins.
func WeekStart(start time.Time, week int, weekLength time.Duration) time.Time {
	return start.Add(time.Duration(week-1) * weekLength)
}
