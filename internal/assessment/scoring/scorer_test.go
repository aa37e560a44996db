package scoring

import (
	"fmt"
	"strings"
	"testing"

	"pgregory.net/rapid"

	"github.com/yungbote/negotiator-backend/internal/assessment/lexicon"
	"github.com/yungbote/negotiator-backend/internal/assessment/transcript"
	"github.com/yungbote/negotiator-backend/internal/domain/assessment"
)

const dealerTranscript = "User: Let's anchor at $20000 based on market comparables. Dealer: That's high. " +
	"User: What matters most to you in this deal? Dealer: Timeline. " +
	"User: I understand — if you can close in 2 weeks, I can move to $21000."

func newScorer(t *testing.T) *Scorer {
	t.Helper()
	lex, err := lexicon.Default()
	if err != nil {
		t.Fatalf("lexicon: %v", err)
	}
	return New(lex)
}

func TestScoreDealerScenario(t *testing.T) {
	s := newScorer(t)
	res := s.Score(transcript.Parser{}.ParseText(dealerTranscript))
	if res.InsufficientData {
		t.Fatalf("unexpected insufficient data")
	}
	claiming := res.Get(assessment.ClaimingValue)
	creating := res.Get(assessment.CreatingValue)
	if claiming.Value <= 0 {
		t.Fatalf("claiming value=%d, want > 0", claiming.Value)
	}
	if creating.Value <= 0 {
		t.Fatalf("creating value=%d, want > 0", creating.Value)
	}
	if !contains(claiming.Techniques, "Specific numerical anchoring") || !contains(claiming.Techniques, "Market-based anchoring") {
		t.Fatalf("missing anchoring techniques: %v", claiming.Techniques)
	}
	if !contains(creating.Techniques, "Direct interest inquiry") {
		t.Fatalf("missing interest inquiry: %v", creating.Techniques)
	}
	for _, q := range claiming.Quotes {
		if q.ConceptLabel == "" {
			t.Fatalf("quote without concept label: %#v", q)
		}
	}
}

func TestQuotesAreUniquePerUtteranceAndLabel(t *testing.T) {
	s := newScorer(t)
	res := s.Score(transcript.Parser{}.ParseText(dealerTranscript))
	claiming := res.Get(assessment.ClaimingValue)
	// The opening line matches both anchoring categories but is quoted once.
	if len(claiming.Quotes) == 0 || len(claiming.Quotes) >= len(claiming.Techniques) {
		t.Fatalf("quotes=%d techniques=%d", len(claiming.Quotes), len(claiming.Techniques))
	}
	for _, ds := range res.Dimensions {
		seen := map[string]bool{}
		for _, q := range ds.Quotes {
			k := fmt.Sprintf("%d/%s", q.SequenceIndex, q.ConceptLabel)
			if seen[k] {
				t.Fatalf("%s: duplicate quote %s", ds.Dimension, k)
			}
			seen[k] = true
		}
	}
}

func TestScoreInsufficientData(t *testing.T) {
	s := newScorer(t)
	res := s.Score(transcript.Parser{}.ParseText("User: $500 final offer.\nDealer: " + strings.Repeat("no ", 40)))
	if !res.InsufficientData || res.Note != InsufficientDataNote {
		t.Fatalf("expected insufficient data marker, got %#v", res)
	}
	for _, ds := range res.Dimensions {
		if ds.Value != 0 {
			t.Fatalf("%s=%d, want 0", ds.Dimension, ds.Value)
		}
	}
	if len(res.Dimensions) != 3 || res.Overall != 0 {
		t.Fatalf("unexpected result shape: %#v", res)
	}
}

func TestScoreEmptyTranscript(t *testing.T) {
	res := newScorer(t).Score(nil)
	if !res.InsufficientData {
		t.Fatalf("empty transcript should be insufficient")
	}
}

func TestGroupCapAndSystematicBonus(t *testing.T) {
	s := newScorer(t)
	lines := []string{
		"User: If you can pay upfront, provided that delivery is free, we have a deal in principle.",
		"Dealer: Go on.",
		"User: In exchange for a longer warranty I will swap the trim level, step by step.",
		"Dealer: Fine.",
		"User: This is my final offer, the bottom line for me today, honestly.",
	}
	res := s.Score(transcript.Parser{}.ParseText(strings.Join(lines, "\n")))
	claiming := res.Get(assessment.ClaimingValue)
	if !contains(claiming.Techniques, "Systematic concession management") {
		t.Fatalf("expected systematic bonus technique: %v", claiming.Techniques)
	}
	// conditional 10 + reciprocal 12 + graduated 8 + final 6 + bonus 5 = 41, capped at 25.
	lex := s.Lexicon()
	g := lex.Dimensions[assessment.ClaimingValue].Groups[2]
	utts := transcript.Parser{}.ParseText(strings.Join(lines, "\n"))
	lowered := make([]string, len(utts))
	for i, u := range utts {
		lowered[i] = strings.ToLower(u.Text)
	}
	score, _, _ := scoreGroup(&g, utts, lowered)
	if score != 25 {
		t.Fatalf("concession group score=%d, want capped 25", score)
	}
}

func TestCounterpartSpeechIgnored(t *testing.T) {
	s := newScorer(t)
	raw := "User: Hello, I came in to look at the blue sedan on your lot today.\n" +
		"Dealer: Research shows the market rate is $30000, my final offer, walk away if you like."
	res := s.Score(transcript.Parser{}.ParseText(raw))
	if got := res.Score(assessment.ClaimingValue); got != 0 {
		t.Fatalf("claiming=%d, counterpart phrases must not score", got)
	}
}

func TestQuoteNeighbours(t *testing.T) {
	utts := transcript.Parser{}.ParseText("Dealer: a\nUser: b\nDealer: c")
	q := quoteAt(utts, 1, "Label")
	if q.Text != "b" || q.Before != "a" || q.After != "c" || q.SequenceIndex != 1 {
		t.Fatalf("unexpected quote: %#v", q)
	}
	edge := quoteAt(utts, 0, "Label")
	if edge.Before != "" || edge.After != "b" {
		t.Fatalf("unexpected edge quote: %#v", edge)
	}
}

func TestScoresAlwaysClamped(t *testing.T) {
	s := newScorer(t)
	vocab := []string{
		"$20000", "market rate", "research shows", "walk away", "if you can", "in exchange for",
		"what matters most", "package deal", "win-win", "together", "i understand", "to be honest",
		"please", "trust", "leverage", "deadline", "?", "creative solution", "let's step back",
	}
	rapid.Check(t, func(rt *rapid.T) {
		n := rapid.IntRange(0, 12).Draw(rt, "turns")
		var b strings.Builder
		for i := 0; i < n; i++ {
			speaker := rapid.SampledFrom([]string{"User", "Dealer"}).Draw(rt, "speaker")
			words := rapid.SliceOfN(rapid.SampledFrom(vocab), 0, 10).Draw(rt, "words")
			b.WriteString(speaker + ": " + strings.Join(words, " ") + " filler text here\n")
		}
		res := s.Score(transcript.Parser{}.ParseText(b.String()))
		for _, ds := range res.Dimensions {
			if ds.Value < 0 || ds.Value > 100 {
				rt.Fatalf("%s=%d out of range", ds.Dimension, ds.Value)
			}
		}
		if res.Overall < 0 || res.Overall > 100 {
			rt.Fatalf("overall=%d out of range", res.Overall)
		}
	})
}

func TestBuildFeedback(t *testing.T) {
	fb := BuildFeedback(assessment.Scores{
		assessment.ClaimingValue:          80,
		assessment.CreatingValue:          40,
		assessment.RelationshipManagement: 65,
	}, nil)
	if fb.Strongest != assessment.ClaimingValue || fb.Weakest != assessment.CreatingValue {
		t.Fatalf("strongest/weakest=%s/%s", fb.Strongest, fb.Weakest)
	}
	if !contains(fb.Strengths, strengthText[assessment.ClaimingValue]) {
		t.Fatalf("strengths=%v", fb.Strengths)
	}
	if !contains(fb.Improvements, "Priority focus area: collaborative problem-solving techniques") {
		t.Fatalf("improvements=%v", fb.Improvements)
	}
	empty := BuildFeedback(assessment.Scores{
		assessment.ClaimingValue:          70,
		assessment.CreatingValue:          70,
		assessment.RelationshipManagement: 70,
	}, nil)
	if len(empty.Strengths) != 1 || len(empty.Improvements) != 1 {
		t.Fatalf("expected default feedback lines, got %#v", empty)
	}
}

func contains(list []string, want string) bool {
	for _, s := range list {
		if s == want {
			return true
		}
	}
	return false
}
