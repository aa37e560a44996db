package services

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/yungbote/negotiator-backend/internal/achievements"
	"github.com/yungbote/negotiator-backend/internal/data/repos"
	types "github.com/yungbote/negotiator-backend/internal/domain"
	"github.com/yungbote/negotiator-backend/internal/pkg/dbctx"
	apperr "github.com/yungbote/negotiator-backend/internal/pkg/errors"
	"github.com/yungbote/negotiator-backend/internal/platform/logger"
)

type AchievementService interface {
	// SeedDefinitions upserts the builtin catalog.
	SeedDefinitions(ctx context.Context) error
	Catalog(ctx context.Context) ([]*types.AchievementDefinition, error)
	ListUnlocked(ctx context.Context, userID uuid.UUID) ([]*types.UnlockedAchievement, error)
	// EvaluateAfter runs the engine for a freshly applied completion and persists new
	// unlocks. It never changes the assessment or the progress scores.
	EvaluateAfter(ctx context.Context, a *types.Assessment, pr *ProgressResult) ([]*types.UnlockedAchievement, error)
	// Evaluate re-checks a user without a new session.
	Evaluate(ctx context.Context, userID uuid.UUID) ([]*types.UnlockedAchievement, error)
}

type achievementService struct {
	log         *logger.Logger
	defs        repos.AchievementDefinitionRepo
	unlocked    repos.UnlockedAchievementRepo
	assessments repos.AssessmentRepo
	progress    repos.UserProgressRepo
	progressSvc ProgressService
	now         func() time.Time
}

func NewAchievementService(
	baseLog *logger.Logger,
	defs repos.AchievementDefinitionRepo,
	unlocked repos.UnlockedAchievementRepo,
	assessments repos.AssessmentRepo,
	progress repos.UserProgressRepo,
	progressSvc ProgressService,
) AchievementService {
	return &achievementService{
		log:         baseLog.With("service", "AchievementService"),
		defs:        defs,
		unlocked:    unlocked,
		assessments: assessments,
		progress:    progress,
		progressSvc: progressSvc,
		now:         time.Now,
	}
}

func (s *achievementService) SeedDefinitions(ctx context.Context) error {
	defs := achievements.DefaultDefinitions()
	if err := s.defs.Upsert(dbctx.Context{Ctx: ctx}, defs); err != nil {
		return fmt.Errorf("seed achievement definitions: %w", err)
	}
	s.log.Info("Achievement catalog seeded", "count", len(defs))
	return nil
}

func (s *achievementService) Catalog(ctx context.Context) ([]*types.AchievementDefinition, error) {
	return s.defs.List(dbctx.Context{Ctx: ctx}, true)
}

func (s *achievementService) ListUnlocked(ctx context.Context, userID uuid.UUID) ([]*types.UnlockedAchievement, error) {
	if userID == uuid.Nil {
		return nil, apperr.ErrUnauthorized
	}
	return s.unlocked.ListByUser(dbctx.Context{Ctx: ctx}, userID)
}

func (s *achievementService) EvaluateAfter(ctx context.Context, a *types.Assessment, pr *ProgressResult) ([]*types.UnlockedAchievement, error) {
	if a == nil || pr == nil || pr.Progress == nil {
		return nil, nil
	}
	sub, _ := a.Submission()
	id := a.ID
	snap := achievements.Snapshot{
		UserID:          a.UserID,
		AssessmentID:    &id,
		Progress:        pr.Progress,
		Session:         pr.Session,
		DurationSeconds: max(a.DurationSeconds, sub.DurationSeconds),
		Recent:          pr.Recent,
	}
	return s.evaluate(ctx, snap)
}

func (s *achievementService) Evaluate(ctx context.Context, userID uuid.UUID) ([]*types.UnlockedAchievement, error) {
	p, err := s.progress.Get(dbctx.Context{Ctx: ctx}, userID)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", apperr.ErrAchievementEvaluation, err)
	}
	if p == nil {
		return nil, nil
	}
	recent, err := s.progressSvc.RecentScores(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", apperr.ErrAchievementEvaluation, err)
	}
	return s.evaluate(ctx, achievements.Snapshot{UserID: userID, Progress: p, Recent: recent})
}

func (s *achievementService) evaluate(ctx context.Context, snap achievements.Snapshot) ([]*types.UnlockedAchievement, error) {
	dbc := dbctx.Context{Ctx: ctx}
	defs, err := s.defs.List(dbc, true)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", apperr.ErrAchievementEvaluation, err)
	}
	held, err := s.unlocked.CodesByUser(dbc, snap.UserID)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", apperr.ErrAchievementEvaluation, err)
	}
	distinct, err := s.assessments.CountDistinctScenarios(dbc, snap.UserID)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", apperr.ErrAchievementEvaluation, err)
	}
	snap.DistinctScenarios = int(distinct)
	snap.Now = s.now()

	candidates := achievements.NewEngine(defs).Evaluate(snap, held)
	var created []*types.UnlockedAchievement
	for _, u := range candidates {
		inserted, err := s.unlocked.Create(dbc, u)
		if err != nil {
			return created, fmt.Errorf("%w: unlock %s: %v", apperr.ErrAchievementEvaluation, u.AchievementCode, err)
		}
		if inserted {
			created = append(created, u)
		}
	}
	if len(created) == 0 {
		return nil, nil
	}
	if err := s.refreshTotals(ctx, snap.UserID); err != nil {
		return created, fmt.Errorf("%w: totals: %v", apperr.ErrAchievementEvaluation, err)
	}
	for _, u := range created {
		s.log.Info("Achievement unlocked", "user_id", u.UserID, "code", u.AchievementCode, "points", u.Points)
	}
	return created, nil
}

// refreshTotals recounts the unlock counters from the unlocked table, so a replayed
// evaluation cannot double count.
func (s *achievementService) refreshTotals(ctx context.Context, userID uuid.UUID) error {
	rows, err := s.unlocked.ListByUser(dbctx.Context{Ctx: ctx}, userID)
	if err != nil {
		return err
	}
	points := 0
	for _, u := range rows {
		points += u.Points
	}
	_, err = s.progress.Update(dbctx.Context{Ctx: ctx}, userID, func(_ *gorm.DB, p *types.UserProgress) error {
		p.AchievementsUnlocked = len(rows)
		p.TotalPoints = points
		return nil
	})
	return err
}
