package observability

import (
	"bytes"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	domjobs "github.com/yungbote/negotiator-backend/internal/domain/jobs"
)

func TestHistogramBucketsAreCumulative(t *testing.T) {
	h := NewHistogramVec("h", "test", []string{"stage"}, []float64{1, 5})
	h.Observe(0.5, "score")
	h.Observe(3, "score")
	h.Observe(9, "score")

	var buf bytes.Buffer
	if err := h.WritePrometheus(&buf); err != nil {
		t.Fatalf("write: %v", err)
	}
	out := buf.String()
	for _, want := range []string{
		`h_bucket{stage="score",le="1"} 1`,
		`h_bucket{stage="score",le="5"} 2`,
		`h_bucket{stage="score",le="+Inf"} 3`,
		`h_count{stage="score"} 3`,
	} {
		if !strings.Contains(out, want) {
			t.Fatalf("missing %q in:\n%s", want, out)
		}
	}
	if h.Count("score") != 3 {
		t.Fatalf("count=%d", h.Count("score"))
	}
}

func TestLabelEscaping(t *testing.T) {
	got := labelString([]string{"a", "b"}, []string{`x"y`})
	if got != `{a="x\"y",b="unknown"}` {
		t.Fatalf("labelString=%s", got)
	}
	if withLe("", "1") != `{le="1"}` {
		t.Fatalf("withLe on empty labels")
	}
}

func TestMetricsRecording(t *testing.T) {
	m := NewMetrics()
	m.ObserveAssessment("completed", "rule_based", 72)
	m.ObserveAssessment("failed", "", 0)
	m.ObserveAPI("GET", "/api/users/me/progress", 200, 20*time.Millisecond)
	m.RecordQueue(domjobs.QueueStats{Queued: 4, Dead: 1})
	m.IncUnlock("FIRST_NEGOTIATION")

	if v := m.assessments.Value("completed", "rule_based"); v != 1 {
		t.Fatalf("completed counter=%v", v)
	}
	if v := m.queueDepth.Value(domjobs.StatusQueued); v != 4 {
		t.Fatalf("queued gauge=%v", v)
	}
	if m.overallScore.Count() != 1 {
		t.Fatalf("failed assessments must not be scored")
	}

	rec := httptest.NewRecorder()
	m.ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	if rec.Code != 200 || !strings.Contains(rec.Body.String(), "negotiator_achievements_unlocked_total") {
		t.Fatalf("unexpected exposition: %d\n%s", rec.Code, rec.Body.String())
	}
}

func TestNilMetricsIsSafe(t *testing.T) {
	var m *Metrics
	m.ObserveAssessment("completed", "rule_based", 50)
	m.ObserveStage("scoring", time.Millisecond)
	m.APIInflight(1)
	rec := httptest.NewRecorder()
	m.ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	if rec.Code != 503 {
		t.Fatalf("nil metrics should report unavailable, got %d", rec.Code)
	}
}

func TestParseHeaders(t *testing.T) {
	h := parseHeaders("a=1, bad ,b=2,=x")
	if len(h) != 2 || h["a"] != "1" || h["b"] != "2" {
		t.Fatalf("parseHeaders=%v", h)
	}
	if parseHeaders("") != nil {
		t.Fatalf("empty headers should be nil")
	}
}
