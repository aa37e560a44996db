package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/yungbote/negotiator-backend/internal/archive"
	"github.com/yungbote/negotiator-backend/internal/assessment/external"
	"github.com/yungbote/negotiator-backend/internal/assessment/reconcile"
	"github.com/yungbote/negotiator-backend/internal/assessment/scoring"
	"github.com/yungbote/negotiator-backend/internal/assessment/transcript"
	"github.com/yungbote/negotiator-backend/internal/cache"
	"github.com/yungbote/negotiator-backend/internal/data/repos"
	types "github.com/yungbote/negotiator-backend/internal/domain"
	"github.com/yungbote/negotiator-backend/internal/domain/assessment"
	"github.com/yungbote/negotiator-backend/internal/jobs/queue"
	"github.com/yungbote/negotiator-backend/internal/notify"
	"github.com/yungbote/negotiator-backend/internal/observability"
	"github.com/yungbote/negotiator-backend/internal/pkg/dbctx"
	apperr "github.com/yungbote/negotiator-backend/internal/pkg/errors"
	"github.com/yungbote/negotiator-backend/internal/platform/logger"
)

type Stage string

const (
	StageReceived    Stage = "received"
	StageParsing     Stage = "parsing"
	StageScoring     Stage = "scoring"
	StageReconciling Stage = "reconciling"
	StagePersisting  Stage = "persisting"
)

// Outcome is the pure scoring result for one submission, before persistence.
type Outcome struct {
	Utterances []assessment.Utterance
	RuleBased  scoring.Result
	Analysis   *external.Analysis
	AdapterErr error
	Reconciled reconcile.Result
	Feedback   scoring.Feedback
	Details    assessment.Details
}

type OrchestratorDeps struct {
	Log          *logger.Logger
	Parser       transcript.Parser
	Scorer       *scoring.Scorer
	Adapter      *external.Adapter
	Assessments  repos.AssessmentRepo
	Progress     ProgressService
	Achievements AchievementService
	Notifier     notify.Publisher
	Cache        cache.Cache
	Archive      archive.Archiver
	Metrics      *observability.Metrics
}

// Orchestrator runs one assessment attempt through parse, score, adapt, reconcile and
// persist, then applies progress and achievements on a best-effort basis.
type Orchestrator struct {
	log          *logger.Logger
	tracer       trace.Tracer
	parser       transcript.Parser
	scorer       *scoring.Scorer
	adapter      *external.Adapter
	assessments  repos.AssessmentRepo
	progress     ProgressService
	achievements AchievementService
	notifier     notify.Publisher
	cache        cache.Cache
	archive      archive.Archiver
	metrics      *observability.Metrics
}

func NewOrchestrator(d OrchestratorDeps) *Orchestrator {
	o := &Orchestrator{
		log:          d.Log.With("service", "AssessmentOrchestrator"),
		tracer:       otel.Tracer("negotiator/orchestrator"),
		parser:       d.Parser,
		scorer:       d.Scorer,
		adapter:      d.Adapter,
		assessments:  d.Assessments,
		progress:     d.Progress,
		achievements: d.Achievements,
		notifier:     d.Notifier,
		cache:        d.Cache,
		archive:      d.Archive,
		metrics:      d.Metrics,
	}
	if o.notifier == nil {
		o.notifier = notify.Nop{}
	}
	if o.cache == nil {
		o.cache = cache.Nop{}
	}
	if o.archive == nil {
		o.archive = archive.Nop{}
	}
	return o
}

// Process runs task's attempt. Redeliveries of a completed or superseded attempt are
// no-ops; a concurrent duplicate that loses the race returns ErrStaleCompletion.
func (o *Orchestrator) Process(ctx context.Context, t queue.Task) (*types.Assessment, error) {
	ctx, span := o.tracer.Start(ctx, "assessment.process", trace.WithAttributes(
		attribute.String("assessment_id", t.AssessmentID.String()),
		attribute.Int("attempt", t.Attempt),
	))
	defer span.End()
	log := o.log.With("assessment_id", t.AssessmentID, "attempt", t.Attempt)
	dbc := dbctx.Context{Ctx: ctx}

	a, err := o.assessments.GetByID(dbc, t.AssessmentID)
	if err != nil {
		return nil, fmt.Errorf("%w: load: %v", apperr.ErrPersistence, err)
	}
	if a == nil {
		return nil, fmt.Errorf("%w: assessment %s not found", apperr.ErrConversationIneligible, t.AssessmentID)
	}
	if t.Attempt > 0 && a.Attempt != t.Attempt {
		log.Info("Skipping superseded attempt", "current_attempt", a.Attempt)
		return a, nil
	}
	if a.Status == assessment.StatusCompleted {
		log.Info("Assessment already completed, ignoring redelivery")
		return a, nil
	}

	sub, reason := o.eligibility(a, t)
	if reason != "" {
		o.fail(ctx, a, reason)
		return a, fmt.Errorf("%w: %s", apperr.ErrConversationIneligible, reason)
	}

	// Failed stays runnable for the same attempt: a persistence failure leaves the job
	// queued for its backoff retry. Dead-lettered jobs never come back.
	started := time.Now()
	ok, err := o.assessments.Transition(dbc, a.ID,
		[]assessment.Status{assessment.StatusPending, assessment.StatusFailed, assessment.StatusProcessing},
		map[string]interface{}{
			"status":         assessment.StatusProcessing,
			"started_at":     started,
			"failure_reason": "",
		})
	if err != nil {
		return a, fmt.Errorf("%w: mark processing: %v", apperr.ErrPersistence, err)
	}
	if !ok {
		log.Info("Assessment left the runnable states before processing started")
		return a, apperr.ErrStaleCompletion
	}
	a.Status = assessment.StatusProcessing
	a.StartedAt = &started

	out := o.Score(ctx, sub)
	span.SetAttributes(
		attribute.String("source_of_truth", string(out.Reconciled.SourceOfTruth)),
		attribute.Int("overall", out.Reconciled.Overall),
	)

	if err := o.persist(ctx, a, sub, out); err != nil {
		if errors.Is(err, apperr.ErrStaleCompletion) {
			log.Warn("Completion superseded by a concurrent attempt")
			return a, err
		}
		span.RecordError(err)
		log.Error("Persisting assessment failed", "error", err)
		o.fail(ctx, a, "persistence: "+err.Error())
		return a, err
	}
	o.metrics.ObserveAssessment(string(a.Status), string(a.SourceOfTruth), a.OverallScore)
	log.Info("Assessment completed",
		"user_id", a.UserID,
		"overall", a.OverallScore,
		"source_of_truth", a.SourceOfTruth,
		"insufficient_data", a.InsufficientData,
		"elapsed_ms", time.Since(started).Milliseconds(),
	)

	o.afterCompletion(ctx, a, sub, out)
	return a, nil
}

func (o *Orchestrator) eligibility(a *types.Assessment, t queue.Task) (assessment.Submission, string) {
	sub, err := a.Submission()
	switch {
	case err != nil:
		return sub, "unreadable submission: " + err.Error()
	case t.UserID != uuid.Nil && t.UserID != a.UserID:
		return sub, "requester does not own the conversation"
	case !sub.Complete():
		return sub, "conversation is not complete"
	case !sub.HasContent():
		return sub, "conversation has no transcript"
	}
	return sub, ""
}

// Score parses and scores sub. It never fails: adapter problems are recorded on the
// outcome and the rule-based scores stand.
func (o *Orchestrator) Score(ctx context.Context, sub assessment.Submission) Outcome {
	var out Outcome

	stageStart := time.Now()
	_, span := o.tracer.Start(ctx, string(StageParsing))
	if len(sub.Turns) > 0 {
		out.Utterances = o.parser.ParseTurns(sub.Turns)
	} else {
		out.Utterances = o.parser.ParseText(sub.Transcript)
	}
	span.SetAttributes(attribute.Int("utterances", len(out.Utterances)))
	span.End()
	o.metrics.ObserveStage(string(StageParsing), time.Since(stageStart))

	stageStart = time.Now()
	_, span = o.tracer.Start(ctx, string(StageScoring))
	out.RuleBased = o.scorer.Score(out.Utterances)
	span.End()
	o.metrics.ObserveStage(string(StageScoring), time.Since(stageStart))

	var ext *reconcile.External
	if o.adapter.Configured() && !out.RuleBased.InsufficientData {
		analysis, err := o.adapter.Analyze(ctx, external.Request{
			Transcript: transcript.Render(out.Utterances),
			Scenario:   scenarioContext(sub.Scenario),
			SkillLevel: sub.SkillLevel,
		})
		out.Analysis, out.AdapterErr = analysis, err
		o.observeAdapter(analysis, err)
		if err != nil {
			o.log.Warn("External adapter failed, using rule-based scores", "error", err)
		} else {
			ext = analysis.External()
		}
	} else if !o.adapter.Configured() {
		out.AdapterErr = apperr.ErrAdapterUnavailable
	}

	_, span = o.tracer.Start(ctx, string(StageReconciling))
	ruleScores := assessment.Scores{}
	for _, d := range assessment.Dimensions {
		ruleScores[d] = out.RuleBased.Score(d)
	}
	out.Reconciled = reconcile.Reconcile(ruleScores, ext)
	span.End()

	techniques := map[assessment.Dimension][]string{}
	for _, d := range assessment.Dimensions {
		techniques[d] = out.RuleBased.Get(d).UniqueTechniques()
	}
	out.Feedback = scoring.BuildFeedback(out.Reconciled.Scores(), techniques)
	out.Details = o.details(out)
	return out
}

func (o *Orchestrator) details(out Outcome) assessment.Details {
	final := out.Reconciled.Scores()
	d := assessment.Details{
		Strengths:        out.Feedback.Strengths,
		Improvements:     out.Feedback.Improvements,
		InsufficientNote: out.RuleBased.Note,
		LexiconVersion:   out.RuleBased.LexiconVersion,
		RuleBased:        map[string]int{},
	}
	validExternal := out.Analysis != nil && out.Analysis.Quality.IsValid
	for _, dim := range assessment.Dimensions {
		rb := out.RuleBased.Get(dim)
		d.RuleBased[string(dim)] = rb.Value
		ds := assessment.DimensionScore{
			Dimension:  dim,
			Value:      final[dim],
			Techniques: rb.UniqueTechniques(),
			Quotes:     rb.Quotes,
		}
		if validExternal {
			ds.Techniques = mergeUnique(ds.Techniques, out.Analysis.Techniques[dim])
			ds.Quotes = append(ds.Quotes, verbatimQuotes(out.Utterances, out.Analysis.Quotes[dim], ds.Quotes)...)
		}
		d.Dimensions = append(d.Dimensions, ds)
	}
	if out.Analysis != nil {
		d.External = map[string]int{}
		for dim, v := range out.Analysis.Scores {
			d.External[string(dim)] = int(v + 0.5)
		}
		q := out.Analysis.Quality.Score
		d.ExternalQuality = &q
		d.ExternalIssues = out.Analysis.Quality.Issues
		if validExternal {
			d.Summary = out.Analysis.Summary
			d.Recommendations = out.Analysis.Recommendations
		}
	}
	return d
}

func (o *Orchestrator) persist(ctx context.Context, a *types.Assessment, sub assessment.Submission, out Outcome) error {
	_, span := o.tracer.Start(ctx, string(StagePersisting))
	defer span.End()

	completed := time.Now()
	scores := out.Reconciled.Scores()
	details := assessment.EncodeDetails(out.Details)
	ok, err := o.assessments.Transition(dbctx.Context{Ctx: ctx}, a.ID,
		[]assessment.Status{assessment.StatusProcessing},
		map[string]interface{}{
			"status":                        assessment.StatusCompleted,
			"claiming_value_score":          scores[assessment.ClaimingValue],
			"creating_value_score":          scores[assessment.CreatingValue],
			"relationship_management_score": scores[assessment.RelationshipManagement],
			"overall_score":                 out.Reconciled.Overall,
			"source_of_truth":               out.Reconciled.SourceOfTruth,
			"insufficient_data":             out.RuleBased.InsufficientData,
			"deal_reached":                  sub.DealReached,
			"duration_seconds":              max(sub.DurationSeconds, 0),
			"details":                       details,
			"failure_reason":                "",
			"completed_at":                  completed,
		})
	if err != nil {
		return fmt.Errorf("%w: %v", apperr.ErrPersistence, err)
	}
	if !ok {
		return apperr.ErrStaleCompletion
	}
	a.Status = assessment.StatusCompleted
	for _, d := range assessment.Dimensions {
		a.SetScore(d, scores[d])
	}
	a.OverallScore = out.Reconciled.Overall
	a.SourceOfTruth = out.Reconciled.SourceOfTruth
	a.InsufficientData = out.RuleBased.InsufficientData
	a.DealReached = sub.DealReached
	a.DurationSeconds = max(sub.DurationSeconds, 0)
	a.Details = details
	a.FailureReason = ""
	a.CompletedAt = &completed
	return nil
}

// afterCompletion is best effort; nothing here can move a completed assessment back.
func (o *Orchestrator) afterCompletion(ctx context.Context, a *types.Assessment, sub assessment.Submission, out Outcome) {
	log := o.log.With("assessment_id", a.ID, "user_id", a.UserID)

	var unlocked []*types.UnlockedAchievement
	pr, err := o.progress.ApplyCompletion(ctx, a)
	if err != nil {
		log.Warn("Progress update failed", "error", err)
	} else {
		if pr.SessionNumber > 0 {
			a.SessionNumber = pr.SessionNumber
		}
		unlocked, err = o.achievements.EvaluateAfter(ctx, a, pr)
		if err != nil {
			log.Warn("Achievement evaluation failed", "error", err)
		}
	}

	if err := o.cache.Delete(ctx, cache.AssessmentKey(a.ConversationID), cache.ProgressKey(a.UserID)); err != nil {
		log.Debug("Cache invalidation failed", "error", err)
	}

	o.publish(ctx, notify.Event{
		Type:           notify.EventAssessmentCompleted,
		UserID:         a.UserID,
		AssessmentID:   a.ID,
		ConversationID: a.ConversationID,
		Data: map[string]any{
			"overall_score":   a.OverallScore,
			"source_of_truth": a.SourceOfTruth,
			"session_number":  a.SessionNumber,
		},
	})
	for _, u := range unlocked {
		o.metrics.IncUnlock(u.AchievementCode)
		o.publish(ctx, notify.Event{
			Type:         notify.EventAchievementUnlocked,
			UserID:       u.UserID,
			AssessmentID: a.ID,
			Data:         map[string]any{"code": u.AchievementCode, "points": u.Points},
		})
	}

	rec := archive.Record{
		AssessmentID:   a.ID,
		ConversationID: a.ConversationID,
		UserID:         a.UserID,
		Attempt:        a.Attempt,
		Transcript:     transcript.Render(out.Utterances),
		Details:        []byte(a.Details),
	}
	if out.Analysis != nil {
		rec.Model = out.Analysis.Model
		rec.ModelOutput = out.Analysis.Raw
	}
	if err := o.archive.Put(ctx, rec); err != nil {
		log.Warn("Archiving assessment failed", "error", err)
	}
}

// fail moves a non-terminal assessment to Failed. Already-terminal rows are left alone.
func (o *Orchestrator) fail(ctx context.Context, a *types.Assessment, reason string) {
	ok, err := o.assessments.Transition(dbctx.Context{Ctx: ctx}, a.ID,
		[]assessment.Status{assessment.StatusPending, assessment.StatusProcessing},
		map[string]interface{}{
			"status":         assessment.StatusFailed,
			"failure_reason": reason,
		})
	if err != nil {
		o.log.Error("Marking assessment failed did not persist", "assessment_id", a.ID, "reason", reason, "error", err)
		return
	}
	if !ok {
		return
	}
	a.Status = assessment.StatusFailed
	a.FailureReason = reason
	o.metrics.ObserveAssessment(string(a.Status), "", 0)
	if err := o.cache.Delete(ctx, cache.AssessmentKey(a.ConversationID)); err != nil {
		o.log.Debug("Cache invalidation failed", "error", err)
	}
	o.publish(ctx, notify.Event{
		Type:           notify.EventAssessmentFailed,
		UserID:         a.UserID,
		AssessmentID:   a.ID,
		ConversationID: a.ConversationID,
		Data:           map[string]any{"reason": reason},
	})
}

// MarkDead is the queue's dead-letter hook: the attempt exhausted its retries.
func (o *Orchestrator) MarkDead(ctx context.Context, job *types.JobRun, cause error) {
	if job == nil || job.EntityID == nil {
		return
	}
	a, err := o.assessments.GetByID(dbctx.Context{Ctx: ctx}, *job.EntityID)
	if err != nil || a == nil {
		o.log.Warn("Dead-lettered job has no assessment", "job_id", job.ID, "error", err)
		return
	}
	reason := "retries exhausted"
	if cause != nil {
		reason += ": " + cause.Error()
	}
	o.fail(ctx, a, reason)
}

func (o *Orchestrator) publish(ctx context.Context, ev notify.Event) {
	if err := o.notifier.Publish(ctx, ev); err != nil {
		o.log.Warn("Dropping notification", "type", ev.Type, "error", err)
	}
}

func (o *Orchestrator) observeAdapter(a *external.Analysis, err error) {
	model, outcome := o.adapter.Name(), "ok"
	var latency time.Duration
	if a != nil {
		latency = a.Latency
	}
	switch {
	case errors.Is(err, apperr.ErrAdapterInvalidResult):
		outcome = "invalid"
	case err != nil:
		outcome = "error"
	}
	o.metrics.ObserveAdapter(model, outcome, latency)
}

func scenarioContext(s assessment.Scenario) external.ScenarioContext {
	return external.ScenarioContext{
		Title:              s.Title,
		Industry:           s.Industry,
		Type:               s.Type,
		KeyIssues:          strings.Join(s.KeyIssues, ", "),
		CounterpartProfile: s.CounterpartProfile,
	}
}

func mergeUnique(base []string, extra []string) []string {
	seen := make(map[string]struct{}, len(base)+len(extra))
	out := make([]string, 0, len(base)+len(extra))
	for _, list := range [][]string{base, extra} {
		for _, s := range list {
			key := strings.ToLower(strings.TrimSpace(s))
			if key == "" {
				continue
			}
			if _, ok := seen[key]; ok {
				continue
			}
			seen[key] = struct{}{}
			out = append(out, strings.TrimSpace(s))
		}
	}
	return out
}

// verbatimQuotes keeps model quotes that appear in a learner utterance and are not
// already quoted, attributing them to that utterance.
func verbatimQuotes(utts []assessment.Utterance, quotes []string, have []assessment.Quote) []assessment.Quote {
	seen := map[string]bool{}
	for _, q := range have {
		seen[strings.ToLower(q.Text)] = true
	}
	var out []assessment.Quote
	for _, q := range quotes {
		needle := strings.ToLower(strings.TrimSpace(q))
		if needle == "" {
			continue
		}
		for _, u := range utts {
			if u.Speaker != assessment.Learner || !strings.Contains(strings.ToLower(u.Text), needle) {
				continue
			}
			if seen[strings.ToLower(u.Text)] {
				break
			}
			seen[strings.ToLower(u.Text)] = true
			out = append(out, assessment.Quote{
				Text:          u.Text,
				SequenceIndex: u.SequenceIndex,
				ConceptLabel:  "Model analysis",
			})
			break
		}
	}
	return out
}
