package external

import (
	"fmt"
	"unicode/utf8"

	"github.com/yungbote/negotiator-backend/internal/domain/assessment"
)

const (
	MinQuotesPerDimension = 3
	MinSummaryChars       = 100
	MinRecommendations    = 2
	ValidQualityScore     = 60

	missingScorePenalty  = 20
	fewQuotesPenalty     = 15
	shortSummaryPenalty  = 10
	fewRecommendsPenalty = 10
)

type Quality struct {
	IsValid bool     `json:"is_valid"`
	Score   int      `json:"quality_score"`
	Issues  []string `json:"issues"`
}

// Validate scores how usable a parsed analysis is. A score of zero counts as present;
// only a missing score line is penalized.
func Validate(p Parsed) Quality {
	q := Quality{Score: 100, Issues: []string{}}
	for _, d := range assessment.Dimensions {
		if _, ok := p.Scores[d]; !ok {
			q.Issues = append(q.Issues, fmt.Sprintf("Missing %s score", d.Label()))
			q.Score -= missingScorePenalty
		}
	}

	short := false
	for _, d := range assessment.Dimensions {
		if n := len(p.Quotes[d]); n < MinQuotesPerDimension {
			q.Issues = append(q.Issues, fmt.Sprintf("Insufficient %s quotes (%d of %d)", d.Label(), n, MinQuotesPerDimension))
			short = true
		}
	}
	if short {
		q.Score -= fewQuotesPenalty
	}

	if utf8.RuneCountInString(p.Summary) < MinSummaryChars {
		q.Issues = append(q.Issues, "Missing or insufficient executive summary")
		q.Score -= shortSummaryPenalty
	}
	if len(p.Recommendations) < MinRecommendations {
		q.Issues = append(q.Issues, fmt.Sprintf("Insufficient recommendations (minimum %d required)", MinRecommendations))
		q.Score -= fewRecommendsPenalty
	}
	q.Score = max(q.Score, 0)
	q.IsValid = q.Score >= ValidQualityScore
	return q
}
