package progression

import (
	"testing"
	"time"
)

func day(base time.Time, offset int) time.Time {
	return base.AddDate(0, 0, offset).Add(13 * time.Hour)
}

func TestComputeStreak(t *testing.T) {
	d := time.Date(2025, 6, 20, 0, 0, 0, 0, time.UTC)
	practice := []time.Time{day(d, 0), day(d, -1), day(d, -2), day(d, -10)}

	tests := []struct {
		name  string
		dates []time.Time
		today time.Time
		want  Streak
	}{
		{"today is last practice day", practice, day(d, 0), Streak{Current: 3, Longest: 3}},
		{"yesterday was last practice day", practice, day(d, 1), Streak{Current: 3, Longest: 3}},
		{"two days after last practice", practice, day(d, 2), Streak{Current: 0, Longest: 3}},
		{"no dates", nil, day(d, 0), Streak{}},
		{"duplicates collapse", []time.Time{day(d, 0), day(d, 0).Add(2 * time.Hour), day(d, -1)}, day(d, 0), Streak{Current: 2, Longest: 2}},
		{"longest is older run", []time.Time{day(d, 0), day(d, -5), day(d, -6), day(d, -7), day(d, -8)}, day(d, 0), Streak{Current: 1, Longest: 4}},
		{"outside lookback ignored", []time.Time{day(d, -400), day(d, -401)}, day(d, 0), Streak{}},
		{"unordered input", []time.Time{day(d, -2), day(d, 0), day(d, -1)}, day(d, 0), Streak{Current: 3, Longest: 3}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ComputeStreak(tt.dates, tt.today)
			if got != tt.want {
				t.Fatalf("got %+v want %+v", got, tt.want)
			}
		})
	}
}
