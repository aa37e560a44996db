package scoring

import (
	"github.com/yungbote/negotiator-backend/internal/domain/assessment"
)

const (
	strengthThreshold    = 75
	developmentThreshold = 60
	priorityThreshold    = 70
)

var strengthText = map[assessment.Dimension]string{
	assessment.ClaimingValue:          "Strong position advocacy and claiming value skills",
	assessment.CreatingValue:          "Excellent collaborative problem-solving abilities",
	assessment.RelationshipManagement: "Outstanding interpersonal and relationship management skills",
}

var developmentText = map[assessment.Dimension]string{
	assessment.ClaimingValue:          "Strengthen position advocacy and value claiming techniques",
	assessment.CreatingValue:          "Focus on collaborative value creation and win-win solutions",
	assessment.RelationshipManagement: "Improve relationship building and interpersonal communication",
}

var focusText = map[assessment.Dimension]string{
	assessment.ClaimingValue:          "competitive negotiation strategies",
	assessment.CreatingValue:          "collaborative problem-solving techniques",
	assessment.RelationshipManagement: "interpersonal communication skills",
}

// Feedback holds the score-band summaries attached to an assessment.
type Feedback struct {
	Strengths    []string
	Improvements []string
	Strongest    assessment.Dimension
	Weakest      assessment.Dimension
}

// BuildFeedback derives strengths and development areas from final dimension scores and
// the rule-based technique lists.
func BuildFeedback(scores assessment.Scores, techniques map[assessment.Dimension][]string) Feedback {
	fb := Feedback{}
	strongest, weakest := assessment.Dimensions[0], assessment.Dimensions[0]
	for _, d := range assessment.Dimensions {
		v := scores[d]
		if v >= strengthThreshold {
			fb.Strengths = append(fb.Strengths, strengthText[d])
		}
		if v < developmentThreshold {
			fb.Improvements = append(fb.Improvements, developmentText[d])
		}
		if v > scores[strongest] {
			strongest = d
		}
		if v < scores[weakest] {
			weakest = d
		}
	}
	if len(dedupe(techniques[assessment.ClaimingValue])) > 3 {
		fb.Strengths = append(fb.Strengths, "Diverse tactical approach to negotiation")
	}
	if scores[weakest] < priorityThreshold {
		fb.Improvements = append(fb.Improvements, "Priority focus area: "+focusText[weakest])
	}
	if len(fb.Strengths) == 0 {
		fb.Strengths = []string{"Demonstrated engagement in negotiation process"}
	}
	if len(fb.Improvements) == 0 {
		fb.Improvements = []string{"Continue practicing to build confidence and fluency"}
	}
	fb.Strongest, fb.Weakest = strongest, weakest
	return fb
}

func dedupe(in []string) []string {
	return assessment.DimensionScore{Techniques: in}.UniqueTechniques()
}
