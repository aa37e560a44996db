package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/yungbote/negotiator-backend/internal/cache"
	"github.com/yungbote/negotiator-backend/internal/data/repos"
	types "github.com/yungbote/negotiator-backend/internal/domain"
	"github.com/yungbote/negotiator-backend/internal/domain/assessment"
	domjobs "github.com/yungbote/negotiator-backend/internal/domain/jobs"
	"github.com/yungbote/negotiator-backend/internal/jobs/queue"
	"github.com/yungbote/negotiator-backend/internal/pkg/dbctx"
	apperr "github.com/yungbote/negotiator-backend/internal/pkg/errors"
	"github.com/yungbote/negotiator-backend/internal/platform/ctxutil"
	"github.com/yungbote/negotiator-backend/internal/platform/logger"
)

// SubmitInput is a finished conversation handed over for assessment.
type SubmitInput struct {
	ConversationID uuid.UUID
	UserID         uuid.UUID
	ScenarioID     string
	Submission     assessment.Submission
}

type SubmitResult struct {
	Assessment *types.Assessment
	Receipt    queue.Receipt
	// Duplicate is set when the conversation already had an assessment.
	Duplicate bool
}

type AssessmentService interface {
	Submit(ctx context.Context, in SubmitInput) (*SubmitResult, error)
	// Get returns the requester's assessment for a conversation. Another user's
	// assessment reads as not found.
	Get(ctx context.Context, userID, conversationID uuid.UUID) (*types.Assessment, error)
	// Retry re-queues a Failed assessment as a new attempt.
	Retry(ctx context.Context, userID, conversationID uuid.UUID) (*SubmitResult, error)
	ListCompleted(ctx context.Context, userID uuid.UUID, limit, offset int) ([]*types.Assessment, int64, error)
	QueueStats(ctx context.Context) (domjobs.QueueStats, error)
}

type AssessmentServiceOptions struct {
	RetryPriority int
	CacheTTL      time.Duration
}

type assessmentService struct {
	log         *logger.Logger
	assessments repos.AssessmentRepo
	jobs        repos.JobRunRepo
	dispatcher  queue.Dispatcher
	cache       cache.Cache
	opts        AssessmentServiceOptions
}

func NewAssessmentService(
	baseLog *logger.Logger,
	assessments repos.AssessmentRepo,
	jobs repos.JobRunRepo,
	dispatcher queue.Dispatcher,
	c cache.Cache,
	opts AssessmentServiceOptions,
) AssessmentService {
	if c == nil {
		c = cache.Nop{}
	}
	return &assessmentService{
		log:         baseLog.With("service", "AssessmentService"),
		assessments: assessments,
		jobs:        jobs,
		dispatcher:  dispatcher,
		cache:       c,
		opts:        opts,
	}
}

func (s *assessmentService) Submit(ctx context.Context, in SubmitInput) (*SubmitResult, error) {
	if in.UserID == uuid.Nil {
		return nil, apperr.ErrUnauthorized
	}
	if in.ConversationID == uuid.Nil {
		return nil, fmt.Errorf("%w: conversation_id required", apperr.ErrInvalidArgument)
	}
	if !in.Submission.HasContent() {
		return nil, fmt.Errorf("%w: transcript or turns required", apperr.ErrInvalidArgument)
	}
	if !in.Submission.Complete() {
		return nil, fmt.Errorf("%w: conversation status %q", apperr.ErrConversationIneligible, in.Submission.ConversationStatus)
	}
	dbc := dbctx.Context{Ctx: ctx}

	if existing, err := s.assessments.GetByConversation(dbc, in.ConversationID); err != nil {
		return nil, err
	} else if existing != nil {
		return s.duplicate(existing, in.UserID)
	}

	input, err := assessment.EncodeSubmission(in.Submission)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", apperr.ErrInvalidArgument, err)
	}
	a := &types.Assessment{
		ConversationID: in.ConversationID,
		UserID:         in.UserID,
		ScenarioID:     strings.TrimSpace(in.ScenarioID),
		Status:         assessment.StatusPending,
		Attempt:        1,
		Input:          input,
	}
	if err := s.assessments.Create(dbc, a); err != nil {
		if errors.Is(err, apperr.ErrConflict) {
			existing, gErr := s.assessments.GetByConversation(dbc, in.ConversationID)
			if gErr == nil && existing != nil {
				return s.duplicate(existing, in.UserID)
			}
		}
		return nil, fmt.Errorf("%w: create assessment: %v", apperr.ErrPersistence, err)
	}
	s.log.Info("Assessment submitted", "assessment_id", a.ID, "user_id", a.UserID, "scenario_id", a.ScenarioID)

	receipt, err := s.enqueue(ctx, a, queue.PriorityNormal)
	if err != nil {
		return nil, err
	}
	return &SubmitResult{Assessment: a, Receipt: receipt}, nil
}

func (s *assessmentService) duplicate(existing *types.Assessment, userID uuid.UUID) (*SubmitResult, error) {
	if existing.UserID != userID {
		return nil, fmt.Errorf("%w: conversation belongs to another user", apperr.ErrConflict)
	}
	res := &SubmitResult{Assessment: existing, Duplicate: true}
	if existing.JobID != nil {
		res.Receipt = queue.Receipt{JobID: existing.JobID.String(), Driver: s.dispatcher.Name()}
	}
	return res, nil
}

func (s *assessmentService) enqueue(ctx context.Context, a *types.Assessment, priority int) (queue.Receipt, error) {
	t := queue.Task{
		AssessmentID:   a.ID,
		ConversationID: a.ConversationID,
		UserID:         a.UserID,
		ScenarioID:     a.ScenarioID,
		Attempt:        a.Attempt,
		Priority:       priority,
	}
	if td := ctxutil.GetTraceData(ctx); td != nil {
		t.TraceID, t.RequestID = td.TraceID, td.RequestID
	}
	receipt, err := s.dispatcher.Enqueue(ctx, t)
	dbc := dbctx.Context{Ctx: ctx}
	if receipt.Inline {
		// The task already ran and any failure is recorded on the row; hand it back as is.
		if err != nil {
			s.log.Warn("Inline processing failed", "assessment_id", a.ID, "error", err)
		}
		if fresh, gErr := s.assessments.GetByID(dbc, a.ID); gErr == nil && fresh != nil {
			*a = *fresh
		}
		return receipt, nil
	}
	if err != nil {
		s.markUnqueued(ctx, a, err)
		return receipt, fmt.Errorf("%w: %v", apperr.ErrQueueUnavailable, err)
	}
	if jobID, pErr := uuid.Parse(receipt.JobID); pErr == nil {
		if _, err := s.assessments.Transition(dbc, a.ID, nil, map[string]interface{}{"job_id": jobID}); err != nil {
			s.log.Warn("Recording job id failed", "assessment_id", a.ID, "job_id", jobID, "error", err)
		} else {
			a.JobID = &jobID
		}
	}
	return receipt, nil
}

// markUnqueued fails a row that no job will ever pick up, so the requester can retry it.
func (s *assessmentService) markUnqueued(ctx context.Context, a *types.Assessment, cause error) {
	reason := "queue unavailable: " + cause.Error()
	ok, err := s.assessments.Transition(dbctx.Context{Ctx: ctx}, a.ID,
		[]assessment.Status{assessment.StatusPending},
		map[string]interface{}{
			"status":         assessment.StatusFailed,
			"failure_reason": reason,
		})
	if err != nil {
		s.log.Error("Marking unqueued assessment failed did not persist", "assessment_id", a.ID, "error", err)
		return
	}
	if ok {
		a.Status = assessment.StatusFailed
		a.FailureReason = reason
	}
}

func (s *assessmentService) Get(ctx context.Context, userID, conversationID uuid.UUID) (*types.Assessment, error) {
	if userID == uuid.Nil {
		return nil, apperr.ErrUnauthorized
	}
	key := cache.AssessmentKey(conversationID)
	var cached types.Assessment
	if hit, err := s.cache.Get(ctx, key, &cached); err != nil {
		s.log.Debug("Assessment cache read failed", "conversation_id", conversationID, "error", err)
	} else if hit {
		if cached.UserID != userID {
			return nil, apperr.ErrNotFound
		}
		return &cached, nil
	}

	a, err := s.assessments.GetByConversation(dbctx.Context{Ctx: ctx}, conversationID)
	if err != nil {
		return nil, err
	}
	if a == nil || a.UserID != userID {
		return nil, apperr.ErrNotFound
	}
	if a.Status.Terminal() {
		if err := s.cache.Set(ctx, key, a, s.opts.CacheTTL); err != nil {
			s.log.Debug("Assessment cache write failed", "conversation_id", conversationID, "error", err)
		}
	}
	return a, nil
}

func (s *assessmentService) Retry(ctx context.Context, userID, conversationID uuid.UUID) (*SubmitResult, error) {
	if userID == uuid.Nil {
		return nil, apperr.ErrUnauthorized
	}
	dbc := dbctx.Context{Ctx: ctx}
	a, err := s.assessments.GetByConversation(dbc, conversationID)
	if err != nil {
		return nil, err
	}
	if a == nil || a.UserID != userID {
		return nil, apperr.ErrNotFound
	}
	if a.Status != assessment.StatusFailed {
		return nil, fmt.Errorf("%w: status is %s", apperr.ErrRetryNotAllowed, a.Status)
	}
	next := a.Attempt + 1
	ok, err := s.assessments.Transition(dbc, a.ID,
		[]assessment.Status{assessment.StatusFailed},
		map[string]interface{}{
			"status":         assessment.StatusPending,
			"attempt":        next,
			"failure_reason": "",
			"job_id":         nil,
			"started_at":     nil,
			"completed_at":   nil,
		})
	if err != nil {
		return nil, fmt.Errorf("%w: reset for retry: %v", apperr.ErrPersistence, err)
	}
	if !ok {
		// Another retry won the reset.
		return nil, fmt.Errorf("%w: retry already in progress", apperr.ErrRetryNotAllowed)
	}
	a.Status = assessment.StatusPending
	a.Attempt = next
	a.FailureReason = ""
	a.JobID, a.StartedAt, a.CompletedAt = nil, nil, nil
	if err := s.cache.Delete(ctx, cache.AssessmentKey(conversationID)); err != nil {
		s.log.Debug("Cache invalidation failed", "conversation_id", conversationID, "error", err)
	}
	s.log.Info("Assessment retry queued", "assessment_id", a.ID, "attempt", next)

	receipt, err := s.enqueue(ctx, a, s.opts.RetryPriority)
	if err != nil {
		return nil, err
	}
	return &SubmitResult{Assessment: a, Receipt: receipt}, nil
}

func (s *assessmentService) ListCompleted(ctx context.Context, userID uuid.UUID, limit, offset int) ([]*types.Assessment, int64, error) {
	if userID == uuid.Nil {
		return nil, 0, apperr.ErrUnauthorized
	}
	if limit <= 0 {
		limit = 20
	}
	limit = min(limit, 100)
	if offset < 0 {
		offset = 0
	}
	return s.assessments.ListCompletedByUser(dbctx.Context{Ctx: ctx}, userID, limit, offset)
}

func (s *assessmentService) QueueStats(ctx context.Context) (domjobs.QueueStats, error) {
	if s.jobs == nil {
		return domjobs.QueueStats{}, nil
	}
	return s.jobs.Stats(dbctx.Context{Ctx: ctx})
}
