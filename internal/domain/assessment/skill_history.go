package assessment

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// SkillHistoryEntry is append-only. (assessment_id, dimension) is unique so a replayed
// completion cannot append twice.
type SkillHistoryEntry struct {
	ID             uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	UserID         uuid.UUID `gorm:"type:uuid;not null;index:idx_skill_history_user_dim_session,priority:1" json:"user_id"`
	Dimension      Dimension `gorm:"column:dimension;not null;index:idx_skill_history_user_dim_session,priority:2;uniqueIndex:idx_skill_history_assessment_dim,priority:2" json:"dimension"`
	AssessmentID   uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:idx_skill_history_assessment_dim,priority:1" json:"assessment_id"`
	SessionNumber  int       `gorm:"column:session_number;not null;index:idx_skill_history_user_dim_session,priority:3" json:"session_number"`
	Score          int       `gorm:"column:score;not null" json:"score"`
	RollingAverage float64   `gorm:"column:rolling_average;not null" json:"rolling_average"`
	Delta          float64   `gorm:"column:delta;not null" json:"delta"`
	Trend          float64   `gorm:"column:trend;not null" json:"trend"`
	NewBest        bool      `gorm:"column:new_best;not null" json:"new_best"`
	ScenarioID     string    `gorm:"column:scenario_id" json:"scenario_id,omitempty"`
	CreatedAt      time.Time `gorm:"not null;index" json:"created_at"`
}

func (SkillHistoryEntry) TableName() string { return "skill_history" }

func (e *SkillHistoryEntry) BeforeCreate(*gorm.DB) error {
	if e.ID == uuid.Nil {
		e.ID = uuid.New()
	}
	return nil
}
