package progression

import (
	"sort"
	"time"
)

// StreakLookbackDays bounds how far back practice dates are considered.
const StreakLookbackDays = 365

type Streak struct {
	Current int `json:"current"`
	Longest int `json:"longest"`
}

// ComputeStreak walks distinct practice days from newest to oldest. The current streak
// only counts when the newest day is today or yesterday; the longest is the longest run
// seen anywhere in the lookback window.
func ComputeStreak(dates []time.Time, today time.Time) Streak {
	loc := today.Location()
	todayKey := dayKey(today, loc)
	cutoff := todayKey.AddDate(0, 0, -StreakLookbackDays)

	seen := make(map[time.Time]struct{}, len(dates))
	days := make([]time.Time, 0, len(dates))
	for _, t := range dates {
		k := dayKey(t, loc)
		if k.Before(cutoff) || k.After(todayKey) {
			continue
		}
		if _, ok := seen[k]; ok {
			continue
		}
		seen[k] = struct{}{}
		days = append(days, k)
	}
	if len(days) == 0 {
		return Streak{}
	}
	sort.Slice(days, func(i, j int) bool { return days[i].After(days[j]) })

	var s Streak
	run := 1
	first := 0
	for i := 1; i < len(days); i++ {
		if days[i].Equal(days[i-1].AddDate(0, 0, -1)) {
			run++
			continue
		}
		if first == 0 {
			first = run
		}
		s.Longest = max(s.Longest, run)
		run = 1
	}
	if first == 0 {
		first = run
	}
	s.Longest = max(s.Longest, run)

	if !days[0].Before(todayKey.AddDate(0, 0, -1)) {
		s.Current = first
	}
	return s
}

// dayKey maps t to its calendar date in loc, expressed as UTC midnight so AddDate is exact.
func dayKey(t time.Time, loc *time.Location) time.Time {
	y, m, d := t.In(loc).Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
