package progression

import (
	"math"
	"time"

	"github.com/google/uuid"

	"github.com/yungbote/negotiator-backend/internal/domain/assessment"
	"github.com/yungbote/negotiator-backend/internal/domain/progress"
)

const (
	// WindowSize is the rolling-average window including the new score.
	WindowSize = 10
	// ConsistencyWindow is how many recent overall scores feed the consistency index.
	ConsistencyWindow     = 5
	MinConsistencySamples = 3
)

// Completion is what the aggregator needs to know about one completed assessment.
type Completion struct {
	AssessmentID    uuid.UUID
	UserID          uuid.UUID
	Scores          assessment.Scores
	ScenarioID      string
	DealReached     bool
	DurationSeconds int
	CompletedAt     time.Time
}

// Prior holds earlier scores per tracked dimension, most recent first.
type Prior map[assessment.Dimension][]int

type DimensionUpdate struct {
	Dimension      assessment.Dimension `json:"dimension"`
	Score          int                  `json:"score"`
	RollingAverage float64              `json:"rolling_average"`
	Trend          float64              `json:"trend"`
	Best           int                  `json:"best"`
	IsNewBest      bool                 `json:"is_new_best"`
	Delta          float64              `json:"delta"`
}

type Update struct {
	Progress      *progress.UserProgress
	Dimensions    map[assessment.Dimension]DimensionUpdate
	History       []*assessment.SkillHistoryEntry
	SessionNumber int
}

// Apply folds one completion into prev and returns the next aggregate together with the
// history rows to append. prev is not modified; a nil prev starts from neutral defaults.
func Apply(prev *progress.UserProgress, prior Prior, c Completion) Update {
	var next progress.UserProgress
	if prev == nil {
		next = *progress.NewUserProgress(c.UserID)
	} else {
		next = *prev
	}
	next.PreviousOverall = next.Overall.RollingAverage

	up := Update{Dimensions: make(map[assessment.Dimension]DimensionUpdate, len(assessment.TrackedDimensions))}
	for _, d := range assessment.TrackedDimensions {
		score := assessment.ClampScore(c.Scores[d])
		stats := next.Stats(d)
		avg, trend := Window(score, prior[d])
		du := DimensionUpdate{
			Dimension:      d,
			Score:          score,
			RollingAverage: avg,
			Trend:          trend,
			Best:           max(score, stats.Best),
			IsNewBest:      score > stats.Best,
			Delta:          round2(float64(score) - stats.RollingAverage),
		}
		stats.RollingAverage = du.RollingAverage
		stats.Trend = du.Trend
		stats.Best = du.Best
		stats.Latest = score
		up.Dimensions[d] = du
	}

	if idx, ok := Consistency(assessment.ClampScore(c.Scores[assessment.Overall]), prior[assessment.Overall]); ok {
		next.ConsistencyScore = idx
	}

	var trendSum float64
	for _, d := range assessment.Dimensions {
		trendSum += up.Dimensions[d].Trend
	}
	next.ImprovementVelocity = round2(trendSum / float64(len(assessment.Dimensions)))

	next.TotalConversations++
	next.CompletedNegotiations++
	if c.DealReached {
		next.DealsReached++
	}
	next.TotalPracticeSeconds += max(c.DurationSeconds, 0)
	next.LastSessionNumber++
	up.SessionNumber = next.LastSessionNumber

	at := c.CompletedAt
	if at.IsZero() {
		at = time.Now()
	}
	if next.FirstActivityAt == nil {
		first := at
		next.FirstActivityAt = &first
	}
	last := at
	next.LastActivityAt = &last

	for _, d := range assessment.TrackedDimensions {
		du := up.Dimensions[d]
		up.History = append(up.History, &assessment.SkillHistoryEntry{
			UserID:         c.UserID,
			Dimension:      d,
			AssessmentID:   c.AssessmentID,
			SessionNumber:  up.SessionNumber,
			Score:          du.Score,
			RollingAverage: du.RollingAverage,
			Delta:          du.Delta,
			Trend:          du.Trend,
			NewBest:        du.IsNewBest,
			ScenarioID:     c.ScenarioID,
			CreatedAt:      at,
		})
	}
	up.Progress = &next
	return up
}

// Window returns the rolling average and secant trend of score followed by up to
// WindowSize-1 prior scores (most recent first).
func Window(score int, prior []int) (avg float64, trend float64) {
	if len(prior) > WindowSize-1 {
		prior = prior[:WindowSize-1]
	}
	sum := float64(score)
	for _, p := range prior {
		sum += float64(p)
	}
	n := len(prior) + 1
	avg = round2(sum / float64(n))
	if n >= 2 {
		oldest := prior[len(prior)-1]
		trend = round2(float64(score-oldest) / float64(n))
	}
	return avg, trend
}

// Consistency is max(0, 100 - 2*stddev) over the newest ConsistencyWindow overall scores.
// ok is false when there are fewer than MinConsistencySamples samples.
func Consistency(overall int, prior []int) (float64, bool) {
	samples := append([]int{overall}, prior...)
	if len(samples) > ConsistencyWindow {
		samples = samples[:ConsistencyWindow]
	}
	if len(samples) < MinConsistencySamples {
		return 0, false
	}
	var mean float64
	for _, s := range samples {
		mean += float64(s)
	}
	mean /= float64(len(samples))
	var variance float64
	for _, s := range samples {
		d := float64(s) - mean
		variance += d * d
	}
	variance /= float64(len(samples))
	return round2(math.Max(0, 100-2*math.Sqrt(variance))), true
}

// Activity is the calendar-derived part of progress, recomputed from completion dates.
type Activity struct {
	SessionsThisWeek  int
	SessionsThisMonth int
	Streak            Streak
}

// ApplyActivity writes calendar counters into p. The longest streak never decreases.
func ApplyActivity(p *progress.UserProgress, a Activity) {
	p.SessionsThisWeek = a.SessionsThisWeek
	p.SessionsThisMonth = a.SessionsThisMonth
	p.CurrentStreak = a.Streak.Current
	p.LongestStreak = max(p.LongestStreak, a.Streak.Longest, a.Streak.Current)
}

// PeriodStarts returns midnight at the start of now's ISO week (Monday) and month.
func PeriodStarts(now time.Time) (week time.Time, month time.Time) {
	y, m, d := now.Date()
	day := time.Date(y, m, d, 0, 0, 0, 0, now.Location())
	offset := (int(day.Weekday()) + 6) % 7
	return day.AddDate(0, 0, -offset), time.Date(y, m, 1, 0, 0, 0, 0, now.Location())
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
