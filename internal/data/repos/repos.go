package repos

import (
	"gorm.io/gorm"

	"github.com/yungbote/negotiator-backend/internal/data/repos/achievements"
	"github.com/yungbote/negotiator-backend/internal/data/repos/assessments"
	"github.com/yungbote/negotiator-backend/internal/data/repos/jobs"
	"github.com/yungbote/negotiator-backend/internal/data/repos/progress"
	"github.com/yungbote/negotiator-backend/internal/platform/logger"
)

type AssessmentRepo = assessments.AssessmentRepo
type SkillHistoryRepo = assessments.SkillHistoryRepo

type UserProgressRepo = progress.UserProgressRepo

type AchievementDefinitionRepo = achievements.AchievementDefinitionRepo
type UnlockedAchievementRepo = achievements.UnlockedAchievementRepo

type JobRunRepo = jobs.JobRunRepo

func NewAssessmentRepo(db *gorm.DB, baseLog *logger.Logger) AssessmentRepo {
	return assessments.NewAssessmentRepo(db, baseLog)
}
func NewSkillHistoryRepo(db *gorm.DB, baseLog *logger.Logger) SkillHistoryRepo {
	return assessments.NewSkillHistoryRepo(db, baseLog)
}

func NewUserProgressRepo(db *gorm.DB, baseLog *logger.Logger) UserProgressRepo {
	return progress.NewUserProgressRepo(db, baseLog)
}

func NewAchievementDefinitionRepo(db *gorm.DB, baseLog *logger.Logger) AchievementDefinitionRepo {
	return achievements.NewAchievementDefinitionRepo(db, baseLog)
}
func NewUnlockedAchievementRepo(db *gorm.DB, baseLog *logger.Logger) UnlockedAchievementRepo {
	return achievements.NewUnlockedAchievementRepo(db, baseLog)
}

func NewJobRunRepo(db *gorm.DB, baseLog *logger.Logger) JobRunRepo {
	return jobs.NewJobRunRepo(db, baseLog)
}
