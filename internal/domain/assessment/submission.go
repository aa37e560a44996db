package assessment

import (
	"encoding/json"
	"strings"

	"gorm.io/datatypes"
)

type Turn struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type Scenario struct {
	Title              string   `json:"title,omitempty"`
	Industry           string   `json:"industry,omitempty"`
	Type               string   `json:"type,omitempty"`
	KeyIssues          []string `json:"key_issues,omitempty"`
	CounterpartProfile string   `json:"counterpart_profile,omitempty"`
}

// Submission is the conversation captured at submit time. It is stored on the assessment
// row so every attempt, including retries, scores the same input.
type Submission struct {
	Transcript         string         `json:"transcript,omitempty"`
	Turns              []Turn         `json:"turns,omitempty"`
	Scenario           Scenario       `json:"scenario"`
	SkillLevel         string         `json:"skill_level,omitempty"`
	DealReached        bool           `json:"deal_reached"`
	DurationSeconds    int            `json:"duration_seconds"`
	ConversationStatus string         `json:"conversation_status,omitempty"`
	VoiceMetrics       map[string]any `json:"voice_metrics,omitempty"`
	Metadata           map[string]any `json:"metadata,omitempty"`
}

func (s Submission) HasContent() bool {
	if strings.TrimSpace(s.Transcript) != "" {
		return true
	}
	for _, t := range s.Turns {
		if strings.TrimSpace(t.Content) != "" {
			return true
		}
	}
	return false
}

// Complete reports whether the upstream conversation was closed. An empty status is
// treated as complete.
func (s Submission) Complete() bool {
	switch strings.ToLower(strings.TrimSpace(s.ConversationStatus)) {
	case "", "completed", "complete", "ended":
		return true
	}
	return false
}

func EncodeSubmission(s Submission) (datatypes.JSON, error) {
	b, err := json.Marshal(s)
	if err != nil {
		return nil, err
	}
	return datatypes.JSON(b), nil
}

func (a *Assessment) Submission() (Submission, error) {
	var s Submission
	if len(a.Input) == 0 {
		return s, nil
	}
	err := json.Unmarshal(a.Input, &s)
	return s, err
}
