package app

import (
	"fmt"

	"gorm.io/gorm"

	"github.com/yungbote/negotiator-backend/internal/assessment/external"
	"github.com/yungbote/negotiator-backend/internal/assessment/lexicon"
	"github.com/yungbote/negotiator-backend/internal/assessment/scoring"
	"github.com/yungbote/negotiator-backend/internal/assessment/transcript"
	"github.com/yungbote/negotiator-backend/internal/observability"
	"github.com/yungbote/negotiator-backend/internal/platform/config"
	"github.com/yungbote/negotiator-backend/internal/platform/logger"
	"github.com/yungbote/negotiator-backend/internal/services"
)

type Services struct {
	Progress     services.ProgressService
	Achievements services.AchievementService
	Orchestrator *services.Orchestrator
	// Assessments is set once the job dispatcher exists.
	Assessments services.AssessmentService
}

func loadLexicon(path string) (*lexicon.Lexicon, error) {
	if path == "" {
		return lexicon.Default()
	}
	return lexicon.Load(path)
}

func wireServices(db *gorm.DB, log *logger.Logger, cfg config.Config, clients Clients, r Repos, metrics *observability.Metrics) (Services, error) {
	log.Info("Wiring services...")

	lex, err := loadLexicon(cfg.LexiconPath)
	if err != nil {
		return Services{}, fmt.Errorf("load lexicon: %w", err)
	}

	progress := services.NewProgressService(db, log, r.Assessment, r.SkillHistory, r.UserProgress, r.UnlockedAchievement, clients.Cache, cfg.Redis.CacheTTL)
	achievements := services.NewAchievementService(log, r.AchievementDefinition, r.UnlockedAchievement, r.Assessment, r.UserProgress, progress)

	adapter := external.New(log, clients.Generator, external.Options{
		Timeout:        cfg.Adapter.Timeout,
		MaxConcurrency: cfg.Adapter.MaxConcurrency,
	})

	orch := services.NewOrchestrator(services.OrchestratorDeps{
		Log:          log,
		Parser:       transcript.Parser{},
		Scorer:       scoring.New(lex),
		Adapter:      adapter,
		Assessments:  r.Assessment,
		Progress:     progress,
		Achievements: achievements,
		Notifier:     clients.Notifier,
		Cache:        clients.Cache,
		Archive:      clients.Archive,
		Metrics:      metrics,
	})

	return Services{
		Progress:     progress,
		Achievements: achievements,
		Orchestrator: orch,
	}, nil
}
