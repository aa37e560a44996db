package external

import (
	"context"
	"errors"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/yungbote/negotiator-backend/internal/domain/assessment"
	apperr "github.com/yungbote/negotiator-backend/internal/pkg/errors"
	"github.com/yungbote/negotiator-backend/internal/platform/logger"
)

const goodResponse = `### PERFORMANCE SCORES (0-100 scale)
**CLAIMING VALUE SCORE**: 72
- Rationale: Strong anchor.
**CREATING VALUE SCORE**: 64
**RELATIONSHIP MANAGEMENT SCORE**: 0

### DETAILED PERFORMANCE ANALYSIS
#### CLAIMING VALUE ANALYSIS
**Techniques Observed**:
- Numerical anchoring
- Market-based justification
Quote: "Let's anchor at $20000 based on market comparables."
Quote: "I can move to $21000."
Quote: "That is my best offer today."

#### CREATING VALUE ANALYSIS
**Techniques Observed**:
- Direct interest inquiry
Quote: "What matters most to you in this deal?"
Quote: "If you can close in 2 weeks, I can move."
Quote: "Is timing more important than price?"

#### RELATIONSHIP MANAGEMENT ANALYSIS
Quote: "I understand."
Quote: "That makes sense."
Quote: "I appreciate your flexibility."

### EXECUTIVE SUMMARY
The learner opened with a well-justified anchor and asked a direct interest question that surfaced timing as the counterpart's priority. Concessions were conditional.

### ACTIONABLE RECOMMENDATIONS
1. **Immediate Focus** (Next Session): Label concessions explicitly.
2. **Short-term Development** (1-2 weeks): Practice bundling issues.
3. **Strategic Enhancement** (1-3 months): Build a BATNA habit.
`

type fakeGen struct {
	out   string
	err   error
	delay time.Duration
	calls atomic.Int32
	live  atomic.Int32
	peak  atomic.Int32
}

func (f *fakeGen) Name() string { return "fake" }

func (f *fakeGen) GenerateText(ctx context.Context, system, user string) (string, error) {
	f.calls.Add(1)
	n := f.live.Add(1)
	defer f.live.Add(-1)
	for {
		p := f.peak.Load()
		if n <= p || f.peak.CompareAndSwap(p, n) {
			break
		}
	}
	if f.delay > 0 {
		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-time.After(f.delay):
		}
	}
	return f.out, f.err
}

func TestParseWellFormedResponse(t *testing.T) {
	p := Parse(goodResponse)
	want := map[assessment.Dimension]float64{
		assessment.ClaimingValue:          72,
		assessment.CreatingValue:          64,
		assessment.RelationshipManagement: 0,
	}
	for d, v := range want {
		got, ok := p.Scores[d]
		if !ok || got != v {
			t.Fatalf("score %s: got=%v ok=%v want=%v", d, got, ok, v)
		}
	}
	for _, d := range assessment.Dimensions {
		if len(p.Quotes[d]) != 3 {
			t.Fatalf("quotes %s: got %d (%v)", d, len(p.Quotes[d]), p.Quotes[d])
		}
	}
	if p.Quotes[assessment.CreatingValue][0] != "What matters most to you in this deal?" {
		t.Fatalf("unexpected creating quote: %q", p.Quotes[assessment.CreatingValue][0])
	}
	if got := p.Techniques[assessment.ClaimingValue]; len(got) != 2 || got[0] != "Numerical anchoring" {
		t.Fatalf("claiming techniques: %v", got)
	}
	if !strings.HasPrefix(p.Summary, "The learner opened") {
		t.Fatalf("summary: %q", p.Summary)
	}
	if len(p.Recommendations) != 3 {
		t.Fatalf("recommendations: %d %v", len(p.Recommendations), p.Recommendations)
	}
	if !strings.HasPrefix(p.Recommendations[0], "Immediate Focus") || strings.Contains(p.Recommendations[0], "Short-term") {
		t.Fatalf("first recommendation: %q", p.Recommendations[0])
	}
}

func TestParseToleratesGarbage(t *testing.T) {
	for _, in := range []string{"", "no structure at all", "CLAIMING VALUE SCORE: n/a", "Quote: \"unterminated"} {
		p := Parse(in)
		if len(p.Scores) != 0 {
			t.Fatalf("Parse(%q) scores=%v", in, p.Scores)
		}
		q := Validate(p)
		if q.IsValid {
			t.Fatalf("Validate(Parse(%q)) should be invalid: %+v", in, q)
		}
	}
}

func TestParseQuotesWithoutSections(t *testing.T) {
	var b strings.Builder
	for i := 0; i < 7; i++ {
		b.WriteString("Quote: \"q")
		b.WriteByte(byte('0' + i))
		b.WriteString("\"\n")
	}
	p := Parse(b.String())
	if len(p.Quotes[assessment.ClaimingValue]) != 3 || len(p.Quotes[assessment.CreatingValue]) != 3 || len(p.Quotes[assessment.RelationshipManagement]) != 1 {
		t.Fatalf("index split: %v", p.Quotes)
	}
	if len(p.AllQuotes) != 7 {
		t.Fatalf("all quotes: %d", len(p.AllQuotes))
	}
}

func TestValidatePenalties(t *testing.T) {
	full := Parse(goodResponse)
	if q := Validate(full); !q.IsValid || q.Score != 100 {
		t.Fatalf("full response quality: %+v", q)
	}

	tests := []struct {
		name  string
		edit  func(p *Parsed)
		score int
		valid bool
	}{
		{"one score missing", func(p *Parsed) { delete(p.Scores, assessment.CreatingValue) }, 80, true},
		{"two scores missing", func(p *Parsed) {
			delete(p.Scores, assessment.CreatingValue)
			delete(p.Scores, assessment.ClaimingValue)
		}, 60, true},
		{"two scores and quotes", func(p *Parsed) {
			delete(p.Scores, assessment.CreatingValue)
			delete(p.Scores, assessment.ClaimingValue)
			p.Quotes[assessment.RelationshipManagement] = nil
		}, 45, false},
		{"short summary and one rec", func(p *Parsed) {
			p.Summary = "Short."
			p.Recommendations = p.Recommendations[:1]
		}, 80, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := Parse(goodResponse)
			tt.edit(&p)
			q := Validate(p)
			if q.Score != tt.score || q.IsValid != tt.valid {
				t.Fatalf("got score=%d valid=%v issues=%v, want score=%d valid=%v", q.Score, q.IsValid, q.Issues, tt.score, tt.valid)
			}
		})
	}
}

func TestAnalyzeUnavailable(t *testing.T) {
	a := New(logger.Nop(), nil, Options{})
	if _, err := a.Analyze(context.Background(), Request{Transcript: "User: hi"}); !errors.Is(err, apperr.ErrAdapterUnavailable) {
		t.Fatalf("expected ErrAdapterUnavailable, got %v", err)
	}
}

func TestAnalyzeSuccess(t *testing.T) {
	gen := &fakeGen{out: goodResponse}
	a := New(logger.Nop(), gen, Options{Timeout: time.Second})
	res, err := a.Analyze(context.Background(), Request{Transcript: "User: hello there", SkillLevel: "beginner"})
	if err != nil {
		t.Fatalf("Analyze: %v", err)
	}
	ext := res.External()
	if !ext.Valid || ext.Scores[assessment.ClaimingValue] != 72 {
		t.Fatalf("external: %+v", ext)
	}
	if _, ok := ext.Scores[assessment.RelationshipManagement]; !ok {
		t.Fatalf("zero score must be kept as present")
	}
}

func TestAnalyzeErrorsAndTimeout(t *testing.T) {
	gen := &fakeGen{err: errors.New("boom")}
	a := New(logger.Nop(), gen, Options{Timeout: time.Second})
	if _, err := a.Analyze(context.Background(), Request{Transcript: "User: x"}); !errors.Is(err, apperr.ErrAdapterError) {
		t.Fatalf("expected ErrAdapterError, got %v", err)
	}

	slow := &fakeGen{out: goodResponse, delay: 200 * time.Millisecond}
	a = New(logger.Nop(), slow, Options{Timeout: 20 * time.Millisecond})
	if _, err := a.Analyze(context.Background(), Request{Transcript: "User: x"}); !errors.Is(err, apperr.ErrAdapterError) {
		t.Fatalf("expected timeout to surface as ErrAdapterError, got %v", err)
	}

	bad := &fakeGen{out: "CLAIMING VALUE SCORE: 40"}
	a = New(logger.Nop(), bad, Options{Timeout: time.Second})
	res, err := a.Analyze(context.Background(), Request{Transcript: "User: x"})
	if !errors.Is(err, apperr.ErrAdapterInvalidResult) {
		t.Fatalf("expected ErrAdapterInvalidResult, got %v", err)
	}
	if res == nil || res.External().Valid {
		t.Fatalf("invalid analysis should be returned and marked invalid: %+v", res)
	}
}

func TestAnalyzeConcurrencyBound(t *testing.T) {
	gen := &fakeGen{out: goodResponse, delay: 30 * time.Millisecond}
	a := New(logger.Nop(), gen, Options{Timeout: 5 * time.Second, MaxConcurrency: 2})
	done := make(chan struct{})
	for i := 0; i < 6; i++ {
		go func() {
			defer func() { done <- struct{}{} }()
			_, _ = a.Analyze(context.Background(), Request{Transcript: "User: x"})
		}()
	}
	for i := 0; i < 6; i++ {
		<-done
	}
	if gen.calls.Load() != 6 {
		t.Fatalf("calls=%d", gen.calls.Load())
	}
	if gen.peak.Load() > 2 {
		t.Fatalf("peak concurrency %d exceeds bound", gen.peak.Load())
	}
}

func TestBuildPrompt(t *testing.T) {
	sys, user := BuildPrompt(Request{
		Transcript: "User: hi\nDealer: hello",
		Scenario:   ScenarioContext{Title: "Used car", Industry: "Automotive"},
		SkillLevel: "expert",
	})
	if sys == "" {
		t.Fatalf("empty system prompt")
	}
	for _, want := range []string{"Used car", "User: hi", "EXPERT FOCUS", "vehicle pricing", "Bilateral Agreement", "CLAIMING VALUE SCORE"} {
		if !strings.Contains(user, want) {
			t.Fatalf("prompt missing %q", want)
		}
	}
}
