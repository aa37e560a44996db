package scoring

import (
	"math"
	"strings"
	"unicode/utf8"

	"github.com/yungbote/negotiator-backend/internal/assessment/lexicon"
	"github.com/yungbote/negotiator-backend/internal/assessment/transcript"
	"github.com/yungbote/negotiator-backend/internal/domain/assessment"
)

const InsufficientDataNote = "Insufficient conversation data"

// Result is the rule-based outcome for one transcript.
type Result struct {
	Dimensions       []assessment.DimensionScore `json:"dimensions"`
	Overall          int                         `json:"overall"`
	InsufficientData bool                        `json:"insufficient_data"`
	Note             string                      `json:"note,omitempty"`
	LexiconVersion   string                      `json:"lexicon_version"`
}

func (r Result) Score(d assessment.Dimension) int {
	for _, ds := range r.Dimensions {
		if ds.Dimension == d {
			return ds.Value
		}
	}
	return 0
}

func (r Result) Get(d assessment.Dimension) assessment.DimensionScore {
	for _, ds := range r.Dimensions {
		if ds.Dimension == d {
			return ds
		}
	}
	return assessment.DimensionScore{Dimension: d}
}

// Scorer is stateless apart from its lexicon and safe for concurrent use.
type Scorer struct {
	lex *lexicon.Lexicon
}

func New(lex *lexicon.Lexicon) *Scorer {
	return &Scorer{lex: lex}
}

func (s *Scorer) Lexicon() *lexicon.Lexicon { return s.lex }

func (s *Scorer) Score(utts []assessment.Utterance) Result {
	learner := transcript.LearnerText(utts)
	if utf8.RuneCountInString(strings.TrimSpace(learner)) < s.lex.MinContentChars {
		return s.insufficient()
	}

	lowered := make([]string, len(utts))
	for i, u := range utts {
		lowered[i] = strings.ToLower(u.Text)
	}
	fullLearner := strings.ToLower(learner)

	res := Result{LexiconVersion: s.lex.Version}
	sum := 0
	for _, dim := range assessment.Dimensions {
		ds := s.scoreDimension(dim, utts, lowered, fullLearner)
		sum += ds.Value
		res.Dimensions = append(res.Dimensions, ds)
	}
	res.Overall = int(math.Round(float64(sum) / float64(len(assessment.Dimensions))))
	return res
}

func (s *Scorer) insufficient() Result {
	res := Result{InsufficientData: true, Note: InsufficientDataNote, LexiconVersion: s.lex.Version}
	for _, dim := range assessment.Dimensions {
		res.Dimensions = append(res.Dimensions, assessment.DimensionScore{
			Dimension:  dim,
			Techniques: []string{},
			Quotes:     []assessment.Quote{},
		})
	}
	return res
}

func (s *Scorer) scoreDimension(dim assessment.Dimension, utts []assessment.Utterance, lowered []string, fullLearner string) assessment.DimensionScore {
	spec := s.lex.Dimensions[dim]
	out := assessment.DimensionScore{Dimension: dim, Techniques: []string{}, Quotes: []assessment.Quote{}}

	type quoteKey struct {
		seq   int
		label string
	}
	quoted := map[quoteKey]bool{}
	total := 0
	for gi := range spec.Groups {
		g := &spec.Groups[gi]
		groupScore, techniques, quotes := scoreGroup(g, utts, lowered)
		total += groupScore
		out.Techniques = append(out.Techniques, techniques...)
		// One quote per utterance and label, however many categories it hit.
		for _, q := range quotes {
			k := quoteKey{q.SequenceIndex, q.ConceptLabel}
			if quoted[k] {
				continue
			}
			quoted[k] = true
			out.Quotes = append(out.Quotes, q)
		}
	}
	total = clamp(total, 0, 100)
	total += bonus(spec.Bonuses, out.UniqueTechniques(), fullLearner)
	out.Value = assessment.ClampScore(total)
	return out
}

func scoreGroup(g *lexicon.Group, utts []assessment.Utterance, lowered []string) (int, []string, []assessment.Quote) {
	score := 0
	var techniques []string
	var quotes []assessment.Quote
	for i, u := range utts {
		if u.Speaker != assessment.Learner {
			continue
		}
		text := lowered[i]
		if g.QuestionPoints != nil {
			score += min(g.QuestionPoints.MaxPerUtterance, strings.Count(text, "?"))
		}
		for ci := range g.Categories {
			c := &g.Categories[ci]
			if !c.Matches(text) {
				continue
			}
			score += c.Weight
			techniques = append(techniques, c.Name)
			quotes = append(quotes, quoteAt(utts, i, g.Label))
		}
	}
	if sb := g.SystematicBonus; sb != nil && sb.MinHits > 0 && len(techniques) >= sb.MinHits {
		score += sb.Points
		techniques = append(techniques, sb.Technique)
	}
	return min(score, g.Cap), techniques, quotes
}

func bonus(b lexicon.Bonuses, distinct []string, fullLearner string) int {
	points := 0
	for _, th := range b.TechniqueThresholds {
		if len(distinct) >= th.MinDistinct {
			points += th.Points
		}
	}
	for _, v := range b.Vocabularies {
		points += v.Hits(fullLearner)
	}
	return points
}

// quoteAt captures the utterance at i with its immediate neighbours in the conversation.
func quoteAt(utts []assessment.Utterance, i int, label string) assessment.Quote {
	q := assessment.Quote{
		Text:          utts[i].Text,
		SequenceIndex: utts[i].SequenceIndex,
		ConceptLabel:  label,
	}
	if i > 0 {
		q.Before = utts[i-1].Text
	}
	if i < len(utts)-1 {
		q.After = utts[i+1].Text
	}
	return q
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
