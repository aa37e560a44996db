package achievements

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type Rarity string

const (
	RarityCommon    Rarity = "common"
	RarityRare      Rarity = "rare"
	RarityEpic      Rarity = "epic"
	RarityLegendary Rarity = "legendary"
)

// Definition is the persisted copy of a catalog entry, seeded on startup.
type Definition struct {
	Code        string         `gorm:"column:code;primaryKey" json:"code"`
	Name        string         `gorm:"column:name;not null" json:"name"`
	Description string         `gorm:"column:description" json:"description"`
	Category    string         `gorm:"column:category;index" json:"category"`
	Points      int            `gorm:"column:points;not null" json:"points"`
	Rarity      Rarity         `gorm:"column:rarity;not null" json:"rarity"`
	Criteria    datatypes.JSON `gorm:"column:criteria;type:jsonb" json:"criteria,omitempty"`
	Active      bool           `gorm:"column:active;not null" json:"active"`
	CreatedAt   time.Time      `gorm:"not null" json:"created_at"`
	UpdatedAt   time.Time      `gorm:"not null" json:"updated_at"`
}

func (Definition) TableName() string { return "achievement_definition" }

// Unlocked is written at most once per (user, achievement); the unique index is the guard.
type Unlocked struct {
	ID              uuid.UUID  `gorm:"type:uuid;primaryKey" json:"id"`
	UserID          uuid.UUID  `gorm:"type:uuid;not null;uniqueIndex:idx_unlocked_user_code,priority:1" json:"user_id"`
	AchievementCode string     `gorm:"column:achievement_code;not null;uniqueIndex:idx_unlocked_user_code,priority:2" json:"achievement_code"`
	AssessmentID    *uuid.UUID `gorm:"type:uuid;column:assessment_id" json:"assessment_id,omitempty"`
	TriggerScore    float64    `gorm:"column:trigger_score;not null" json:"trigger_score"`
	Points          int        `gorm:"column:points;not null" json:"points"`
	UnlockedAt      time.Time  `gorm:"column:unlocked_at;not null;index" json:"unlocked_at"`
}

func (Unlocked) TableName() string { return "unlocked_achievement" }

func (u *Unlocked) BeforeCreate(*gorm.DB) error {
	if u.ID == uuid.Nil {
		u.ID = uuid.New()
	}
	return nil
}
