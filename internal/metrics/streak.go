package metrics

import (
	"sort"
	"time"
)

// StreakResult reports the current consecutive-day activity streak.
type StreakResult struct {
	Length     int
	LastActive time.Time
}

// Streak collapses activity timestamps to unique calendar dates (UTC) and
// counts consecutive days backward from the most recent one. A most recent
// date older than yesterday means the streak is broken and the length is 0;
// LastActive still reports the most recent activity date.
func Streak(activity []time.Time, now time.Time) StreakResult {
	if len(activity) == 0 {
		return StreakResult{}
	}

	seen := make(map[time.Time]bool, len(activity))
	var days []time.Time
	for _, ts := range activity {
		day := truncateToDay(ts)
		if !seen[day] {
			seen[day] = true
			days = append(days, day)
		}
	}
	sort.Slice(days, func(i, j int) bool { return days[i].After(days[j]) })

	latest := days[0]
	yesterday := truncateToDay(now).AddDate(0, 0, -1)
	if latest.Before(yesterday) {
		return StreakResult{Length: 0, LastActive: latest}
	}

	length := 1
	for i := 1; i < len(days); i++ {
		if days[i-1].Sub(days[i]) != 24*time.Hour {
			break
		}
		length++
	}

	return StreakResult{Length: length, LastActive: latest}
}

func truncateToDay(t time.Time) time.Time {
	u := t.UTC()
	return time.Date(u.Year(), u.Month(), u.Day(), 0, 0, 0, 0, time.UTC)
}
