package achievements

import (
	"encoding/json"

	achdomain "github.com/yungbote/negotiator-backend/internal/domain/achievements"
)

// Criteria is the stored condition of a definition. Named codes only use it for display;
// codes the engine does not know are evaluated through the generic {skill, threshold, type}
// rule.
type Criteria struct {
	Type                string  `json:"type,omitempty"`
	Skill               string  `json:"skill,omitempty"`
	Threshold           float64 `json:"threshold,omitempty"`
	Target              int     `json:"target,omitempty"`
	Sessions            int     `json:"sessions,omitempty"`
	MinSessions         int     `json:"min_sessions,omitempty"`
	ConsistencyRequired float64 `json:"consistency_required,omitempty"`
}

// Generic rule types.
const (
	RuleRollingAverage = "rolling_average"
	RuleCurrentScore   = "current_score"
	RuleBestScore      = "best_score"
	RuleImprovement    = "improvement"
)

type entry struct {
	code        string
	name        string
	description string
	category    string
	points      int
	rarity      achdomain.Rarity
	criteria    Criteria
}

var builtin = []entry{
	{"FIRST_NEGOTIATION", "First Steps", "Complete your first negotiation session", "progression", 10, achdomain.RarityCommon, Criteria{Type: "first_session"}},
	{"DEAL_MAKER_5", "Deal Maker", "Successfully reach 5 deals", "progression", 25, achdomain.RarityCommon, Criteria{Type: "successful_deals", Target: 5}},
	{"DEAL_MAKER_10", "Seasoned Negotiator", "Successfully reach 10 deals", "progression", 50, achdomain.RarityRare, Criteria{Type: "successful_deals", Target: 10}},
	{"DEAL_MAKER_25", "Master Deal Maker", "Successfully reach 25 deals", "progression", 100, achdomain.RarityEpic, Criteria{Type: "successful_deals", Target: 25}},
	{"STREAK_WARRIOR_7", "Streak Warrior", "Maintain a 7-day practice streak", "consistency", 30, achdomain.RarityRare, Criteria{Type: "practice_streak", Target: 7}},
	{"STREAK_WARRIOR_30", "Dedication Master", "Maintain a 30-day practice streak", "consistency", 150, achdomain.RarityLegendary, Criteria{Type: "practice_streak", Target: 30}},
	{"CONSISTENT_PERFORMER", "Consistent Performer", "Keep consistency above 85 with a 70+ overall average", "consistency", 60, achdomain.RarityEpic, Criteria{Type: "consistency", Threshold: 85, MinSessions: 5}},
	{"SKILL_BREAKTHROUGH_70", "Breakthrough", "Achieve a score of 70+ in any skill", "mastery", 40, achdomain.RarityRare, Criteria{Type: "skill_score", Threshold: 70}},
	{"SKILL_BREAKTHROUGH_85", "Excellence", "Achieve a score of 85+ in any skill", "mastery", 75, achdomain.RarityEpic, Criteria{Type: "skill_score", Threshold: 85}},
	{"PERFECT_SCORE", "Perfection", "Achieve a perfect score of 100 in any skill", "mastery", 200, achdomain.RarityLegendary, Criteria{Type: "perfect_score"}},
	{"VALUE_CREATOR", "Value Creator", "Excel at creating mutual value (85+ average)", "mastery", 60, achdomain.RarityEpic, Criteria{Skill: "creating_value", Threshold: 85, Type: RuleRollingAverage}},
	{"RELATIONSHIP_BUILDER", "Relationship Builder", "Master relationship management (85+ average)", "mastery", 60, achdomain.RarityEpic, Criteria{Skill: "relationship_management", Threshold: 85, Type: RuleRollingAverage}},
	{"CLAIMING_EXPERT", "Value Claimer", "Master value claiming techniques (85+ average)", "mastery", 60, achdomain.RarityEpic, Criteria{Skill: "claiming_value", Threshold: 85, Type: RuleRollingAverage}},
	{"MASTER_NEGOTIATOR", "Master Negotiator", "Achieve mastery across all skills (90+ overall, 20+ sessions)", "mastery", 300, achdomain.RarityLegendary, Criteria{Skill: "overall", Threshold: 90, Type: RuleRollingAverage, MinSessions: 20, ConsistencyRequired: 80}},
	{"IMPROVEMENT_CHAMPION", "Improvement Champion", "Improve by 20+ points in any skill over 5 sessions", "special", 80, achdomain.RarityEpic, Criteria{Type: "improvement", Threshold: 20, Sessions: 5}},
	{"COMEBACK_KING", "Comeback King", "Recover from a low score with a 15+ point improvement", "special", 50, achdomain.RarityRare, Criteria{Type: "comeback", Threshold: 15, Sessions: 3}},
	{"SCENARIO_EXPLORER", "Scenario Explorer", "Practice 5 different scenarios", "exploration", 40, achdomain.RarityRare, Criteria{Type: "distinct_scenarios", Target: 5}},
	{"MARATHON_NEGOTIATOR", "Marathon Negotiator", "Complete a negotiation lasting more than 30 minutes", "special", 30, achdomain.RarityRare, Criteria{Type: "duration", Target: 1800}},
}

// DefaultDefinitions returns the built-in catalog as persistable definitions.
func DefaultDefinitions() []*achdomain.Definition {
	out := make([]*achdomain.Definition, 0, len(builtin))
	for _, e := range builtin {
		raw, _ := json.Marshal(e.criteria)
		out = append(out, &achdomain.Definition{
			Code:        e.code,
			Name:        e.name,
			Description: e.description,
			Category:    e.category,
			Points:      e.points,
			Rarity:      e.rarity,
			Criteria:    raw,
			Active:      true,
		})
	}
	return out
}

// DecodeCriteria reads a definition's stored criteria. Malformed JSON yields a zero value,
// which never matches.
func DecodeCriteria(def *achdomain.Definition) Criteria {
	var c Criteria
	if def == nil || len(def.Criteria) == 0 {
		return c
	}
	_ = json.Unmarshal(def.Criteria, &c)
	return c
}
