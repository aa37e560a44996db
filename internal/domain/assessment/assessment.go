package assessment

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type Status string

const (
	StatusPending    Status = "pending"
	StatusProcessing Status = "processing"
	StatusCompleted  Status = "completed"
	StatusFailed     Status = "failed"
)

func (s Status) Terminal() bool { return s == StatusCompleted || s == StatusFailed }

type SourceOfTruth string

const (
	SourceRuleBased        SourceOfTruth = "rule_based"
	SourceExternalEnhanced SourceOfTruth = "external_enhanced"
)

// Assessment is the single live scoring record for a conversation. A retry rewinds the
// same row and bumps Attempt, so conversation_id stays unique.
type Assessment struct {
	ID                     uuid.UUID      `gorm:"type:uuid;primaryKey" json:"id"`
	ConversationID         uuid.UUID      `gorm:"type:uuid;not null;uniqueIndex:idx_assessment_conversation" json:"conversation_id"`
	UserID                 uuid.UUID      `gorm:"type:uuid;not null;index" json:"user_id"`
	ScenarioID             string         `gorm:"column:scenario_id;index" json:"scenario_id"`
	Status                 Status         `gorm:"column:status;not null;index" json:"status"`
	Attempt                int            `gorm:"column:attempt;not null" json:"attempt"`
	JobID                  *uuid.UUID     `gorm:"type:uuid;column:job_id" json:"job_id,omitempty"`
	ClaimingValue          int            `gorm:"column:claiming_value_score;not null" json:"claiming_value_score"`
	CreatingValue          int            `gorm:"column:creating_value_score;not null" json:"creating_value_score"`
	RelationshipManagement int            `gorm:"column:relationship_management_score;not null" json:"relationship_management_score"`
	OverallScore           int            `gorm:"column:overall_score;not null" json:"overall_score"`
	SourceOfTruth          SourceOfTruth  `gorm:"column:source_of_truth" json:"source_of_truth,omitempty"`
	InsufficientData       bool           `gorm:"column:insufficient_data;not null" json:"insufficient_data"`
	DealReached            bool           `gorm:"column:deal_reached;not null" json:"deal_reached"`
	DurationSeconds        int            `gorm:"column:duration_seconds;not null" json:"duration_seconds"`
	SessionNumber          int            `gorm:"column:session_number;not null" json:"session_number"`
	Details                datatypes.JSON `gorm:"column:details;type:jsonb" json:"details"`
	Input                  datatypes.JSON `gorm:"column:input;type:jsonb" json:"-"`
	FailureReason          string         `gorm:"column:failure_reason" json:"failure_reason,omitempty"`
	StartedAt              *time.Time     `gorm:"column:started_at" json:"started_at,omitempty"`
	CompletedAt            *time.Time     `gorm:"column:completed_at;index" json:"completed_at,omitempty"`
	CreatedAt              time.Time      `gorm:"not null;index" json:"created_at"`
	UpdatedAt              time.Time      `gorm:"not null" json:"updated_at"`
}

func (Assessment) TableName() string { return "assessment" }

func (a *Assessment) BeforeCreate(*gorm.DB) error {
	if a.ID == uuid.Nil {
		a.ID = uuid.New()
	}
	return nil
}

// Score returns the persisted value for a dimension; Overall maps to OverallScore.
func (a *Assessment) Score(d Dimension) int {
	switch d {
	case ClaimingValue:
		return a.ClaimingValue
	case CreatingValue:
		return a.CreatingValue
	case RelationshipManagement:
		return a.RelationshipManagement
	default:
		return a.OverallScore
	}
}

func (a *Assessment) SetScore(d Dimension, v int) {
	switch d {
	case ClaimingValue:
		a.ClaimingValue = v
	case CreatingValue:
		a.CreatingValue = v
	case RelationshipManagement:
		a.RelationshipManagement = v
	case Overall:
		a.OverallScore = v
	}
}

// Details is the jsonb payload carried alongside the flat score columns.
type Details struct {
	Dimensions       []DimensionScore `json:"dimensions"`
	Strengths        []string         `json:"strengths,omitempty"`
	Improvements     []string         `json:"improvements,omitempty"`
	Summary          string           `json:"summary,omitempty"`
	Recommendations  []string         `json:"recommendations,omitempty"`
	InsufficientNote string           `json:"insufficient_note,omitempty"`
	RuleBased        map[string]int   `json:"rule_based_scores,omitempty"`
	External         map[string]int   `json:"external_scores,omitempty"`
	ExternalQuality  *int             `json:"external_quality,omitempty"`
	ExternalIssues   []string         `json:"external_issues,omitempty"`
	LexiconVersion   string           `json:"lexicon_version,omitempty"`
}

func (a *Assessment) DecodeDetails() (Details, error) {
	var d Details
	if len(a.Details) == 0 {
		return d, nil
	}
	err := json.Unmarshal(a.Details, &d)
	return d, err
}

func EncodeDetails(d Details) datatypes.JSON {
	b, err := json.Marshal(d)
	if err != nil {
		return datatypes.JSON([]byte("{}"))
	}
	return datatypes.JSON(b)
}
