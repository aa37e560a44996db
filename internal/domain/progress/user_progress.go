package progress

import (
	"time"

	"github.com/google/uuid"

	"github.com/yungbote/negotiator-backend/internal/domain/assessment"
)

const NeutralScore = 50.0

// DimensionStats is embedded once per tracked dimension with a column prefix.
type DimensionStats struct {
	RollingAverage float64 `gorm:"column:rolling_average;not null" json:"rolling_average"`
	Best           int     `gorm:"column:best;not null" json:"best"`
	Trend          float64 `gorm:"column:trend;not null" json:"trend"`
	Latest         int     `gorm:"column:latest;not null" json:"latest"`
}

type UserProgress struct {
	UserID                 uuid.UUID      `gorm:"type:uuid;primaryKey" json:"user_id"`
	ClaimingValue          DimensionStats `gorm:"embedded;embeddedPrefix:claiming_" json:"claiming_value"`
	CreatingValue          DimensionStats `gorm:"embedded;embeddedPrefix:creating_" json:"creating_value"`
	RelationshipManagement DimensionStats `gorm:"embedded;embeddedPrefix:relationship_" json:"relationship_management"`
	Overall                DimensionStats `gorm:"embedded;embeddedPrefix:overall_" json:"overall"`
	PreviousOverall        float64        `gorm:"column:previous_overall;not null" json:"previous_overall"`
	ConsistencyScore       float64        `gorm:"column:consistency_score;not null" json:"consistency_score"`
	ImprovementVelocity    float64        `gorm:"column:improvement_velocity;not null" json:"improvement_velocity"`
	CurrentStreak          int            `gorm:"column:current_streak;not null" json:"current_streak"`
	LongestStreak          int            `gorm:"column:longest_streak;not null" json:"longest_streak"`
	TotalConversations     int            `gorm:"column:total_conversations;not null" json:"total_conversations"`
	CompletedNegotiations  int            `gorm:"column:completed_negotiations;not null" json:"completed_negotiations"`
	DealsReached           int            `gorm:"column:deals_reached;not null" json:"deals_reached"`
	SessionsThisWeek       int            `gorm:"column:sessions_this_week;not null" json:"sessions_this_week"`
	SessionsThisMonth      int            `gorm:"column:sessions_this_month;not null" json:"sessions_this_month"`
	TotalPracticeSeconds   int            `gorm:"column:total_practice_seconds;not null" json:"total_practice_seconds"`
	AchievementsUnlocked   int            `gorm:"column:achievements_unlocked;not null" json:"achievements_unlocked"`
	TotalPoints            int            `gorm:"column:total_points;not null" json:"total_points"`
	LastSessionNumber      int            `gorm:"column:last_session_number;not null" json:"last_session_number"`
	Version                int            `gorm:"column:version;not null" json:"version"`
	FirstActivityAt        *time.Time     `gorm:"column:first_activity_at" json:"first_activity_at,omitempty"`
	// LastActivityAt is the completion time of session LastSessionNumber.
	LastActivityAt         *time.Time     `gorm:"column:last_activity_at" json:"last_activity_at,omitempty"`
	CreatedAt              time.Time      `gorm:"not null" json:"created_at"`
	UpdatedAt              time.Time      `gorm:"not null" json:"updated_at"`
}

func (UserProgress) TableName() string { return "user_progress" }

func neutralStats() DimensionStats {
	return DimensionStats{RollingAverage: NeutralScore, Best: int(NeutralScore), Latest: int(NeutralScore)}
}

// NewUserProgress returns the neutral starting aggregate for a user with no history.
func NewUserProgress(userID uuid.UUID) *UserProgress {
	return &UserProgress{
		UserID:                 userID,
		ClaimingValue:          neutralStats(),
		CreatingValue:          neutralStats(),
		RelationshipManagement: neutralStats(),
		Overall:                neutralStats(),
		PreviousOverall:        NeutralScore,
		ConsistencyScore:       NeutralScore,
	}
}

// Stats returns a pointer into p for the given dimension, or nil for an unknown one.
func (p *UserProgress) Stats(d assessment.Dimension) *DimensionStats {
	switch d {
	case assessment.ClaimingValue:
		return &p.ClaimingValue
	case assessment.CreatingValue:
		return &p.CreatingValue
	case assessment.RelationshipManagement:
		return &p.RelationshipManagement
	case assessment.Overall:
		return &p.Overall
	}
	return nil
}
