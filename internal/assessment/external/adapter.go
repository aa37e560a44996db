package external

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/sync/semaphore"

	"github.com/yungbote/negotiator-backend/internal/assessment/reconcile"
	"github.com/yungbote/negotiator-backend/internal/domain/assessment"
	apperr "github.com/yungbote/negotiator-backend/internal/pkg/errors"
	"github.com/yungbote/negotiator-backend/internal/platform/logger"
)

// TextGenerator is a single-turn text model backend.
type TextGenerator interface {
	Name() string
	GenerateText(ctx context.Context, system string, user string) (string, error)
}

type Request struct {
	Transcript string          `json:"transcript"`
	Scenario   ScenarioContext `json:"scenario"`
	SkillLevel string          `json:"skill_level"`
}

// Analysis is a parsed model response plus its quality report.
type Analysis struct {
	Parsed
	Quality Quality       `json:"quality"`
	Raw     string        `json:"raw"`
	Model   string        `json:"model"`
	Latency time.Duration `json:"latency"`
}

// External converts the analysis into reconciler input. Invalid analyses are marked so
// the reconciler ignores them.
func (a *Analysis) External() *reconcile.External {
	if a == nil {
		return nil
	}
	scores := make(map[assessment.Dimension]float64, len(a.Scores))
	for d, v := range a.Scores {
		scores[d] = v
	}
	return &reconcile.External{Scores: scores, Valid: a.Quality.IsValid}
}

type Options struct {
	Timeout        time.Duration
	MaxConcurrency int64
}

type Adapter struct {
	log     *logger.Logger
	gen     TextGenerator
	sem     *semaphore.Weighted
	timeout time.Duration
}

// New returns an adapter around gen. A nil generator yields an adapter whose Analyze
// always reports ErrAdapterUnavailable.
func New(log *logger.Logger, gen TextGenerator, opts Options) *Adapter {
	if opts.Timeout <= 0 {
		opts.Timeout = 45 * time.Second
	}
	if opts.MaxConcurrency <= 0 {
		opts.MaxConcurrency = 4
	}
	return &Adapter{
		log:     log.With("service", "ExternalAdapter"),
		gen:     gen,
		sem:     semaphore.NewWeighted(opts.MaxConcurrency),
		timeout: opts.Timeout,
	}
}

func (a *Adapter) Configured() bool { return a != nil && a.gen != nil }

// Name identifies the backing model, or "none" when unconfigured.
func (a *Adapter) Name() string {
	if !a.Configured() {
		return "none"
	}
	return a.gen.Name()
}

// Analyze runs the model under the adapter's timeout and concurrency bound. When the
// response parses but fails quality checks, the analysis is returned alongside
// ErrAdapterInvalidResult so callers can record the issues.
func (a *Adapter) Analyze(ctx context.Context, req Request) (*Analysis, error) {
	if !a.Configured() {
		return nil, apperr.ErrAdapterUnavailable
	}
	if strings.TrimSpace(req.Transcript) == "" {
		return nil, fmt.Errorf("%w: empty transcript", apperr.ErrAdapterError)
	}

	ctx, span := otel.Tracer("assessment/external").Start(ctx, "Analyze")
	defer span.End()
	span.SetAttributes(attribute.String("model", a.gen.Name()), attribute.String("skill_level", req.SkillLevel))

	ctx, cancel := context.WithTimeout(ctx, a.timeout)
	defer cancel()

	if err := a.sem.Acquire(ctx, 1); err != nil {
		return nil, fmt.Errorf("%w: waiting for slot: %v", apperr.ErrAdapterError, err)
	}
	defer a.sem.Release(1)

	system, user := BuildPrompt(req)
	start := time.Now()
	raw, err := a.gen.GenerateText(ctx, system, user)
	latency := time.Since(start)
	if err != nil {
		span.RecordError(err)
		a.log.Warn("External analysis failed", "model", a.gen.Name(), "latency_ms", latency.Milliseconds(), "error", err)
		return nil, fmt.Errorf("%w: %v", apperr.ErrAdapterError, err)
	}

	parsed := Parse(raw)
	out := &Analysis{
		Parsed:  parsed,
		Quality: Validate(parsed),
		Raw:     raw,
		Model:   a.gen.Name(),
		Latency: latency,
	}
	span.SetAttributes(attribute.Int("quality_score", out.Quality.Score), attribute.Bool("valid", out.Quality.IsValid))
	if !out.Quality.IsValid {
		a.log.Warn("External analysis rejected",
			"model", out.Model,
			"quality_score", out.Quality.Score,
			"issues", strings.Join(out.Quality.Issues, "; "),
		)
		return out, fmt.Errorf("%w: quality score %d", apperr.ErrAdapterInvalidResult, out.Quality.Score)
	}
	a.log.Debug("External analysis accepted", "model", out.Model, "quality_score", out.Quality.Score, "latency_ms", latency.Milliseconds())
	return out, nil
}
