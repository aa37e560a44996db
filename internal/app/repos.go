package app

import (
	"gorm.io/gorm"

	"github.com/yungbote/negotiator-backend/internal/data/repos"
	"github.com/yungbote/negotiator-backend/internal/platform/logger"
)

type Repos struct {
	Assessment            repos.AssessmentRepo
	SkillHistory          repos.SkillHistoryRepo
	UserProgress          repos.UserProgressRepo
	AchievementDefinition repos.AchievementDefinitionRepo
	UnlockedAchievement   repos.UnlockedAchievementRepo
	JobRun                repos.JobRunRepo
}

func wireRepos(db *gorm.DB, log *logger.Logger) Repos {
	log.Info("Wiring repos...")
	return Repos{
		Assessment:            repos.NewAssessmentRepo(db, log),
		SkillHistory:          repos.NewSkillHistoryRepo(db, log),
		UserProgress:          repos.NewUserProgressRepo(db, log),
		AchievementDefinition: repos.NewAchievementDefinitionRepo(db, log),
		UnlockedAchievement:   repos.NewUnlockedAchievementRepo(db, log),
		JobRun:                repos.NewJobRunRepo(db, log),
	}
}
