package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/yungbote/negotiator-backend/internal/cache"
	"github.com/yungbote/negotiator-backend/internal/data/repos"
	types "github.com/yungbote/negotiator-backend/internal/domain"
	"github.com/yungbote/negotiator-backend/internal/domain/assessment"
	domprogress "github.com/yungbote/negotiator-backend/internal/domain/progress"
	"github.com/yungbote/negotiator-backend/internal/pkg/dbctx"
	apperr "github.com/yungbote/negotiator-backend/internal/pkg/errors"
	"github.com/yungbote/negotiator-backend/internal/platform/logger"
	"github.com/yungbote/negotiator-backend/internal/progression"
)

// ProgressResult describes what one completion did to a user's aggregate.
type ProgressResult struct {
	Progress      *types.UserProgress
	Session       map[assessment.Dimension]progression.DimensionUpdate
	SessionNumber int
	// Recent holds up to WindowSize scores per tracked dimension, most recent first.
	Recent map[assessment.Dimension][]int
	// Replayed is set when the completion had already been applied.
	Replayed bool
}

type ProgressService interface {
	Get(ctx context.Context, userID uuid.UUID) (*types.UserProgress, error)
	History(ctx context.Context, userID uuid.UUID, dim assessment.Dimension, limit, offset int) ([]*types.SkillHistoryEntry, int64, error)
	RecentScores(ctx context.Context, userID uuid.UUID) (map[assessment.Dimension][]int, error)
	ApplyCompletion(ctx context.Context, a *types.Assessment) (*ProgressResult, error)
	Recalculate(ctx context.Context, userID uuid.UUID) (*types.UserProgress, error)
}

type progressService struct {
	db          *gorm.DB
	log         *logger.Logger
	assessments repos.AssessmentRepo
	history     repos.SkillHistoryRepo
	progress    repos.UserProgressRepo
	unlocked    repos.UnlockedAchievementRepo
	cache       cache.Cache
	cacheTTL    time.Duration
	now         func() time.Time
}

func NewProgressService(
	db *gorm.DB,
	baseLog *logger.Logger,
	assessments repos.AssessmentRepo,
	history repos.SkillHistoryRepo,
	progress repos.UserProgressRepo,
	unlocked repos.UnlockedAchievementRepo,
	c cache.Cache,
	cacheTTL time.Duration,
) ProgressService {
	if c == nil {
		c = cache.Nop{}
	}
	return &progressService{
		db:          db,
		log:         baseLog.With("service", "ProgressService"),
		assessments: assessments,
		history:     history,
		progress:    progress,
		unlocked:    unlocked,
		cache:       c,
		cacheTTL:    cacheTTL,
		now:         time.Now,
	}
}

var errCompletionApplied = errors.New("completion already applied")

// Get returns the stored aggregate, or neutral defaults for a user with no history.
func (s *progressService) Get(ctx context.Context, userID uuid.UUID) (*types.UserProgress, error) {
	if userID == uuid.Nil {
		return nil, apperr.ErrUnauthorized
	}
	key := cache.ProgressKey(userID)
	var cached types.UserProgress
	if hit, err := s.cache.Get(ctx, key, &cached); err != nil {
		s.log.Debug("Progress cache read failed", "user_id", userID, "error", err)
	} else if hit {
		return &cached, nil
	}
	p, err := s.progress.Get(dbctx.Context{Ctx: ctx}, userID)
	if err != nil {
		return nil, err
	}
	if p == nil {
		return domprogress.NewUserProgress(userID), nil
	}
	if err := s.cache.Set(ctx, key, p, s.cacheTTL); err != nil {
		s.log.Debug("Progress cache write failed", "user_id", userID, "error", err)
	}
	return p, nil
}

func (s *progressService) History(ctx context.Context, userID uuid.UUID, dim assessment.Dimension, limit, offset int) ([]*types.SkillHistoryEntry, int64, error) {
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
	return s.history.List(dbctx.Context{Ctx: ctx}, userID, dim, limit, offset)
}

func (s *progressService) RecentScores(ctx context.Context, userID uuid.UUID) (map[assessment.Dimension][]int, error) {
	prior, err := s.prior(dbctx.Context{Ctx: ctx}, userID, progression.WindowSize)
	if err != nil {
		return nil, err
	}
	return map[assessment.Dimension][]int(prior), nil
}

// ApplyCompletion folds a completed assessment into the user's aggregate in one
// read-modify-write. Prior scores are read after the progress row is locked, so
// concurrent completions for the same user are applied one after the other and each
// gets the next session number. A completion that is not newer than the last applied
// one rebuilds the aggregate from full history inside the same transaction, so
// session numbers always follow completion order.
func (s *progressService) ApplyCompletion(ctx context.Context, a *types.Assessment) (*ProgressResult, error) {
	if a == nil || a.Status != assessment.StatusCompleted {
		return nil, fmt.Errorf("%w: assessment is not completed", apperr.ErrProgressUpdate)
	}
	c := completionOf(a)
	res := &ProgressResult{}
	p, err := s.progress.Update(dbctx.Context{Ctx: ctx}, a.UserID, func(tx *gorm.DB, p *types.UserProgress) error {
		tdbc := dbctx.Context{Ctx: ctx, Tx: tx}
		applied, err := s.history.ExistsForAssessment(tdbc, a.ID)
		if err != nil {
			return err
		}
		if applied {
			return errCompletionApplied
		}
		if outOfOrder(p, c) {
			return s.resequence(tdbc, a, p, res)
		}
		prior, err := s.prior(tdbc, a.UserID, progression.WindowSize-1)
		if err != nil {
			return err
		}
		up := progression.Apply(p, prior, c)
		if _, err := s.history.Append(tdbc, up.History); err != nil {
			return err
		}
		act, err := s.activity(tdbc, a.UserID)
		if err != nil {
			return err
		}
		progression.ApplyActivity(up.Progress, act)
		if _, err := s.assessments.Transition(tdbc, a.ID, nil, map[string]interface{}{"session_number": up.SessionNumber}); err != nil {
			return err
		}
		*p = *up.Progress
		res.Session = up.Dimensions
		res.SessionNumber = up.SessionNumber
		res.Recent = withNewest(prior, up.Dimensions)
		return nil
	})
	if errors.Is(err, errCompletionApplied) {
		cur, gerr := s.progress.Get(dbctx.Context{Ctx: ctx}, a.UserID)
		if gerr != nil {
			return nil, fmt.Errorf("%w: %v", apperr.ErrProgressUpdate, gerr)
		}
		recent, rerr := s.RecentScores(ctx, a.UserID)
		if rerr != nil {
			return nil, fmt.Errorf("%w: %v", apperr.ErrProgressUpdate, rerr)
		}
		s.log.Info("Completion already applied to progress", "assessment_id", a.ID, "user_id", a.UserID)
		return &ProgressResult{Progress: cur, Recent: recent, SessionNumber: a.SessionNumber, Replayed: true}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %v", apperr.ErrProgressUpdate, err)
	}
	res.Progress = p
	s.invalidate(ctx, a.UserID)
	return res, nil
}

// outOfOrder reports whether c completed no later than the newest completion already
// folded into p.
func outOfOrder(p *types.UserProgress, c progression.Completion) bool {
	if p.LastSessionNumber == 0 || p.LastActivityAt == nil || c.CompletedAt.IsZero() {
		return false
	}
	return !c.CompletedAt.After(*p.LastActivityAt)
}

// resequence rebuilds p from every completed assessment, a included, and reports a's
// place in the rebuilt order.
func (s *progressService) resequence(tdbc dbctx.Context, a *types.Assessment, p *types.UserProgress, res *ProgressResult) error {
	s.log.Warn("Completion arrived out of order, rebuilding progress",
		"assessment_id", a.ID,
		"user_id", a.UserID,
		"last_session", p.LastSessionNumber,
	)
	rebuilt, updates, err := s.replay(tdbc, a.UserID)
	if err != nil {
		return err
	}
	up, ok := updates[a.ID]
	if !ok {
		return fmt.Errorf("assessment %s missing from completed history", a.ID)
	}
	recent, err := s.prior(tdbc, a.UserID, progression.WindowSize)
	if err != nil {
		return err
	}
	*p = *rebuilt
	res.Session = up.Dimensions
	res.SessionNumber = up.SessionNumber
	res.Recent = map[assessment.Dimension][]int(recent)
	return nil
}

// Recalculate rebuilds history and progress by replaying every completed assessment in
// completion order. Running it twice yields the same result.
func (s *progressService) Recalculate(ctx context.Context, userID uuid.UUID) (*types.UserProgress, error) {
	if userID == uuid.Nil {
		return nil, apperr.ErrInvalidArgument
	}
	var out *types.UserProgress
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		tdbc := dbctx.Context{Ctx: ctx, Tx: tx}
		if err := s.progress.Delete(tdbc, userID); err != nil {
			return err
		}
		cur, _, err := s.replay(tdbc, userID)
		if err != nil {
			return err
		}
		rebuilt := *cur
		p, err := s.progress.Update(tdbc, userID, func(_ *gorm.DB, p *types.UserProgress) error {
			*p = rebuilt
			return nil
		})
		if err != nil {
			return err
		}
		out = p
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("%w: recalculate: %v", apperr.ErrProgressUpdate, err)
	}
	s.invalidate(ctx, userID)
	s.log.Info("Progress recalculated", "user_id", userID, "sessions", out.LastSessionNumber)
	return out, nil
}

// replay drops the user's skill history and folds every completed assessment back in,
// oldest first, renumbering sessions on the way. It returns the rebuilt aggregate and
// each assessment's update; the caller persists the aggregate.
func (s *progressService) replay(tdbc dbctx.Context, userID uuid.UUID) (*types.UserProgress, map[uuid.UUID]progression.Update, error) {
	list, err := s.assessments.ListAllCompletedByUser(tdbc, userID)
	if err != nil {
		return nil, nil, err
	}
	if err := s.history.DeleteByUser(tdbc, userID); err != nil {
		return nil, nil, err
	}

	var cur *types.UserProgress
	prior := progression.Prior{}
	updates := make(map[uuid.UUID]progression.Update, len(list))
	for _, a := range list {
		up := progression.Apply(cur, prior, completionOf(a))
		if _, err := s.history.Append(tdbc, up.History); err != nil {
			return nil, nil, err
		}
		if _, err := s.assessments.Transition(tdbc, a.ID, nil, map[string]interface{}{"session_number": up.SessionNumber}); err != nil {
			return nil, nil, err
		}
		updates[a.ID] = up
		cur = up.Progress
		next := withNewest(prior, up.Dimensions)
		for d, scores := range next {
			if len(scores) > progression.WindowSize-1 {
				scores = scores[:progression.WindowSize-1]
			}
			prior[d] = scores
		}
	}
	if cur == nil {
		cur = domprogress.NewUserProgress(userID)
	}
	act, err := s.activity(tdbc, userID)
	if err != nil {
		return nil, nil, err
	}
	progression.ApplyActivity(cur, act)
	if err := s.applyAchievementTotals(tdbc, cur); err != nil {
		return nil, nil, err
	}
	return cur, updates, nil
}

func (s *progressService) applyAchievementTotals(dbc dbctx.Context, p *types.UserProgress) error {
	rows, err := s.unlocked.ListByUser(dbc, p.UserID)
	if err != nil {
		return err
	}
	p.AchievementsUnlocked = len(rows)
	p.TotalPoints = 0
	for _, u := range rows {
		p.TotalPoints += u.Points
	}
	return nil
}

func (s *progressService) prior(dbc dbctx.Context, userID uuid.UUID, limit int) (progression.Prior, error) {
	out := progression.Prior{}
	for _, d := range assessment.TrackedDimensions {
		scores, err := s.history.RecentScores(dbc, userID, d, limit)
		if err != nil {
			return nil, err
		}
		out[d] = scores
	}
	return out, nil
}

func (s *progressService) activity(dbc dbctx.Context, userID uuid.UUID) (progression.Activity, error) {
	now := s.now()
	times, err := s.assessments.CompletionTimesSince(dbc, userID, now.AddDate(0, 0, -progression.StreakLookbackDays))
	if err != nil {
		return progression.Activity{}, err
	}
	week, month := progression.PeriodStarts(now)
	weekCount, err := s.assessments.CountCompletedSince(dbc, userID, week)
	if err != nil {
		return progression.Activity{}, err
	}
	monthCount, err := s.assessments.CountCompletedSince(dbc, userID, month)
	if err != nil {
		return progression.Activity{}, err
	}
	return progression.Activity{
		SessionsThisWeek:  int(weekCount),
		SessionsThisMonth: int(monthCount),
		Streak:            progression.ComputeStreak(times, now),
	}, nil
}

func (s *progressService) invalidate(ctx context.Context, userID uuid.UUID) {
	if err := s.cache.Delete(ctx, cache.ProgressKey(userID)); err != nil {
		s.log.Debug("Progress cache invalidation failed", "user_id", userID, "error", err)
	}
}

func completionOf(a *types.Assessment) progression.Completion {
	sub, _ := a.Submission()
	scores := assessment.Scores{}
	for _, d := range assessment.TrackedDimensions {
		scores[d] = a.Score(d)
	}
	c := progression.Completion{
		AssessmentID:    a.ID,
		UserID:          a.UserID,
		Scores:          scores,
		ScenarioID:      a.ScenarioID,
		DealReached:     a.DealReached || sub.DealReached,
		DurationSeconds: max(a.DurationSeconds, sub.DurationSeconds),
	}
	if a.CompletedAt != nil {
		c.CompletedAt = *a.CompletedAt
	}
	return c
}

// withNewest prepends each dimension's new score to its prior list.
func withNewest(prior progression.Prior, session map[assessment.Dimension]progression.DimensionUpdate) map[assessment.Dimension][]int {
	out := make(map[assessment.Dimension][]int, len(session))
	for _, d := range assessment.TrackedDimensions {
		du, ok := session[d]
		if !ok {
			out[d] = append([]int(nil), prior[d]...)
			continue
		}
		out[d] = append([]int{du.Score}, prior[d]...)
	}
	return out
}
