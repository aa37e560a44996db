package domain

import (
	"github.com/yungbote/negotiator-backend/internal/domain/achievements"
	"github.com/yungbote/negotiator-backend/internal/domain/assessment"
	"github.com/yungbote/negotiator-backend/internal/domain/jobs"
	"github.com/yungbote/negotiator-backend/internal/domain/progress"
)

type Assessment = assessment.Assessment
type SkillHistoryEntry = assessment.SkillHistoryEntry
type UserProgress = progress.UserProgress
type AchievementDefinition = achievements.Definition
type UnlockedAchievement = achievements.Unlocked
type JobRun = jobs.JobRun

// Models returns every persisted model in migration order.
func Models() []any {
	return []any{
		&assessment.Assessment{},
		&assessment.SkillHistoryEntry{},
		&progress.UserProgress{},
		&achievements.Definition{},
		&achievements.Unlocked{},
		&jobs.JobRun{},
	}
}
