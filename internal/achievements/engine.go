package achievements

import (
	"time"

	"github.com/google/uuid"

	achdomain "github.com/yungbote/negotiator-backend/internal/domain/achievements"
	"github.com/yungbote/negotiator-backend/internal/domain/assessment"
	"github.com/yungbote/negotiator-backend/internal/domain/progress"
	"github.com/yungbote/negotiator-backend/internal/progression"
)

// Snapshot is everything an evaluation reads. Session is nil when no new assessment
// triggered the evaluation; session-bound predicates then fall back to stored progress
// and never see a new personal best.
type Snapshot struct {
	UserID            uuid.UUID
	AssessmentID      *uuid.UUID
	Progress          *progress.UserProgress
	Session           map[assessment.Dimension]progression.DimensionUpdate
	DurationSeconds   int
	DistinctScenarios int
	// Recent holds recent scores per tracked dimension, most recent first, including the
	// triggering session.
	Recent map[assessment.Dimension][]int
	Now    time.Time
}

func (s Snapshot) dim(d assessment.Dimension) progression.DimensionUpdate {
	if du, ok := s.Session[d]; ok {
		return du
	}
	st := s.Progress.Stats(d)
	if st == nil {
		return progression.DimensionUpdate{Dimension: d}
	}
	return progression.DimensionUpdate{
		Dimension:      d,
		Score:          st.Latest,
		RollingAverage: st.RollingAverage,
		Trend:          st.Trend,
		Best:           st.Best,
	}
}

func (s Snapshot) anyDim(fn func(progression.DimensionUpdate) bool) bool {
	for _, d := range assessment.TrackedDimensions {
		if fn(s.dim(d)) {
			return true
		}
	}
	return false
}

// Engine evaluates a set of active definitions against a snapshot.
type Engine struct {
	defs []*achdomain.Definition
}

func NewEngine(defs []*achdomain.Definition) *Engine {
	active := make([]*achdomain.Definition, 0, len(defs))
	for _, d := range defs {
		if d != nil && d.Active {
			active = append(active, d)
		}
	}
	return &Engine{defs: active}
}

func (e *Engine) Definitions() []*achdomain.Definition { return e.defs }

// Evaluate returns one unlock per satisfied definition whose code is not in unlocked.
// It has no side effects; persisting the unlocks is the caller's job.
func (e *Engine) Evaluate(s Snapshot, unlocked map[string]bool) []*achdomain.Unlocked {
	if s.Progress == nil {
		return nil
	}
	now := s.Now
	if now.IsZero() {
		now = time.Now()
	}
	trigger := float64(s.dim(assessment.Overall).Score)
	var out []*achdomain.Unlocked
	for _, def := range e.defs {
		if unlocked[def.Code] {
			continue
		}
		if !Satisfied(def, s) {
			continue
		}
		out = append(out, &achdomain.Unlocked{
			UserID:          s.UserID,
			AchievementCode: def.Code,
			AssessmentID:    s.AssessmentID,
			TriggerScore:    trigger,
			Points:          def.Points,
			UnlockedAt:      now,
		})
	}
	return out
}

// Satisfied reports whether def's condition holds for s.
func Satisfied(def *achdomain.Definition, s Snapshot) bool {
	p := s.Progress
	c := DecodeCriteria(def)
	switch def.Code {
	case "FIRST_NEGOTIATION":
		return p.TotalConversations >= 1
	case "DEAL_MAKER_5", "DEAL_MAKER_10", "DEAL_MAKER_25":
		return c.Target > 0 && p.DealsReached >= c.Target
	case "STREAK_WARRIOR_7", "STREAK_WARRIOR_30":
		return c.Target > 0 && p.CurrentStreak >= c.Target
	case "CONSISTENT_PERFORMER":
		return p.TotalConversations >= c.MinSessions &&
			p.ConsistencyScore > c.Threshold &&
			p.Overall.RollingAverage >= 70
	case "SKILL_BREAKTHROUGH_70", "SKILL_BREAKTHROUGH_85":
		return s.anyDim(func(du progression.DimensionUpdate) bool {
			return du.IsNewBest && float64(du.Score) >= c.Threshold
		})
	case "PERFECT_SCORE":
		if s.Session == nil {
			return false
		}
		return s.anyDim(func(du progression.DimensionUpdate) bool { return du.Score == 100 })
	case "VALUE_CREATOR", "RELATIONSHIP_BUILDER", "CLAIMING_EXPERT":
		d, ok := assessment.ParseDimension(c.Skill)
		if !ok {
			return false
		}
		du := s.dim(d)
		return du.IsNewBest && du.RollingAverage >= c.Threshold
	case "MASTER_NEGOTIATOR":
		return p.Overall.RollingAverage >= c.Threshold &&
			p.TotalConversations >= c.MinSessions &&
			p.ConsistencyScore >= c.ConsistencyRequired
	case "IMPROVEMENT_CHAMPION":
		return improvedAcross(s.Recent, c.Sessions, c.Threshold)
	case "COMEBACK_KING":
		return comeback(s.Recent[assessment.Overall], c.Sessions, c.Threshold)
	case "SCENARIO_EXPLORER":
		return c.Target > 0 && s.DistinctScenarios >= c.Target
	case "MARATHON_NEGOTIATOR":
		return c.Target > 0 && s.DurationSeconds > c.Target
	}
	return Generic(c, s)
}

// Generic evaluates a {skill, threshold, type} rule.
func Generic(c Criteria, s Snapshot) bool {
	if c.Skill == "" || c.Type == "" {
		return false
	}
	d, ok := assessment.ParseDimension(c.Skill)
	if !ok {
		return false
	}
	if c.MinSessions > 0 && s.Progress.TotalConversations < c.MinSessions {
		return false
	}
	du := s.dim(d)
	switch c.Type {
	case RuleRollingAverage:
		return du.RollingAverage >= c.Threshold
	case RuleCurrentScore:
		return float64(du.Score) >= c.Threshold
	case RuleBestScore:
		return float64(du.Best) >= c.Threshold
	case RuleImprovement:
		return s.Session != nil && du.Delta >= c.Threshold
	}
	return false
}

// improvedAcross reports whether any dimension rose by at least threshold between the
// oldest and newest of its last n scores.
func improvedAcross(recent map[assessment.Dimension][]int, n int, threshold float64) bool {
	if n < 2 {
		return false
	}
	for _, scores := range recent {
		if len(scores) < n {
			continue
		}
		if float64(scores[0]-scores[n-1]) >= threshold {
			return true
		}
	}
	return false
}

// comeback reports whether the newest score is at least threshold above the lowest of
// the last n.
func comeback(scores []int, n int, threshold float64) bool {
	if n < 2 || len(scores) < n {
		return false
	}
	lowest := scores[0]
	for _, v := range scores[:n] {
		lowest = min(lowest, v)
	}
	return float64(scores[0]-lowest) >= threshold
}
