package reconcile

import (
	"math"

	"github.com/yungbote/negotiator-backend/internal/domain/assessment"
)

// AgreementBand is the widest gap at which the external score is trusted outright.
const AgreementBand = 25.0

// External carries the adapter's parsed scores. A missing key means "absent".
type External struct {
	Scores map[assessment.Dimension]float64
	Valid  bool
}

type Decision string

const (
	DecisionRuleBased Decision = "rule_based"
	DecisionExternal  Decision = "external"
	DecisionAveraged  Decision = "averaged"
)

type DimensionOutcome struct {
	Dimension assessment.Dimension `json:"dimension"`
	RuleBased int                  `json:"rule_based"`
	External  *float64             `json:"external,omitempty"`
	Final     int                  `json:"final"`
	Decision  Decision             `json:"decision"`
}

type Result struct {
	Dimensions    []DimensionOutcome       `json:"dimensions"`
	Overall       int                      `json:"overall"`
	SourceOfTruth assessment.SourceOfTruth `json:"source_of_truth"`
}

func (r Result) Scores() assessment.Scores {
	out := assessment.Scores{}
	for _, d := range r.Dimensions {
		out[d.Dimension] = d.Final
	}
	return out
}

// Dimension applies the disagreement policy to a single pair of scores.
func Dimension(ruleBased int, external *float64) (int, Decision) {
	if external == nil || math.IsNaN(*external) || *external < 0 || *external > 100 {
		return ruleBased, DecisionRuleBased
	}
	ext := *external
	if math.Abs(ext-float64(ruleBased)) <= AgreementBand {
		return int(math.Round(ext)), DecisionExternal
	}
	return int(math.Round((ext + float64(ruleBased)) / 2)), DecisionAveraged
}

// Reconcile merges rule-based scores with an optional external result. The external
// result is ignored entirely unless it passed validity checks.
func Reconcile(ruleBased assessment.Scores, ext *External) Result {
	res := Result{SourceOfTruth: assessment.SourceRuleBased}
	useExternal := ext != nil && ext.Valid
	if useExternal {
		res.SourceOfTruth = assessment.SourceExternalEnhanced
	}
	sum := 0
	for _, d := range assessment.Dimensions {
		rb := assessment.ClampScore(ruleBased[d])
		out := DimensionOutcome{Dimension: d, RuleBased: rb}
		var candidate *float64
		if useExternal {
			if v, ok := ext.Scores[d]; ok {
				v := v
				candidate = &v
				out.External = &v
			}
		}
		out.Final, out.Decision = Dimension(rb, candidate)
		out.Final = assessment.ClampScore(out.Final)
		sum += out.Final
		res.Dimensions = append(res.Dimensions, out)
	}
	res.Overall = OverallScore(sum, len(assessment.Dimensions))
	return res
}

func OverallScore(sum, n int) int {
	if n == 0 {
		return 0
	}
	return assessment.ClampScore(int(math.Round(float64(sum) / float64(n))))
}
