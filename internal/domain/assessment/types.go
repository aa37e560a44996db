package assessment

import (
	"sort"
	"strings"
)

type Dimension string

const (
	ClaimingValue          Dimension = "claiming_value"
	CreatingValue          Dimension = "creating_value"
	RelationshipManagement Dimension = "relationship_management"
	// Overall is not scored directly; it is tracked in history next to the three dimensions.
	Overall Dimension = "overall"
)

// Dimensions lists the three scored axes in display order.
var Dimensions = []Dimension{ClaimingValue, CreatingValue, RelationshipManagement}

// TrackedDimensions is Dimensions plus Overall.
var TrackedDimensions = []Dimension{ClaimingValue, CreatingValue, RelationshipManagement, Overall}

func (d Dimension) Label() string {
	switch d {
	case ClaimingValue:
		return "Claiming Value"
	case CreatingValue:
		return "Creating Value"
	case RelationshipManagement:
		return "Relationship Management"
	case Overall:
		return "Overall"
	default:
		return string(d)
	}
}

func ParseDimension(raw string) (Dimension, bool) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "claiming_value", "claiming", "claimingvalue":
		return ClaimingValue, true
	case "creating_value", "creating", "creatingvalue":
		return CreatingValue, true
	case "relationship_management", "relationship", "relationshipmanagement":
		return RelationshipManagement, true
	case "overall":
		return Overall, true
	}
	return "", false
}

type Speaker string

const (
	Learner     Speaker = "learner"
	Counterpart Speaker = "counterpart"
)

type Utterance struct {
	Speaker       Speaker `json:"speaker"`
	Name          string  `json:"name,omitempty"`
	Text          string  `json:"text"`
	SequenceIndex int     `json:"sequence_index"`
}

// Quote is a learner utterance with the turns immediately around it.
type Quote struct {
	Text          string `json:"text"`
	SequenceIndex int    `json:"sequence_index"`
	ConceptLabel  string `json:"concept_label"`
	Before        string `json:"before,omitempty"`
	After         string `json:"after,omitempty"`
}

type DimensionScore struct {
	Dimension  Dimension `json:"dimension"`
	Value      int       `json:"value"`
	Techniques []string  `json:"techniques"`
	Quotes     []Quote   `json:"quotes"`
}

// UniqueTechniques returns the techniques with duplicates removed, first occurrence wins.
func (s DimensionScore) UniqueTechniques() []string {
	seen := make(map[string]struct{}, len(s.Techniques))
	out := make([]string, 0, len(s.Techniques))
	for _, t := range s.Techniques {
		if _, ok := seen[t]; ok {
			continue
		}
		seen[t] = struct{}{}
		out = append(out, t)
	}
	return out
}

// ClampScore bounds v to the closed range [0,100].
func ClampScore(v int) int {
	if v < 0 {
		return 0
	}
	if v > 100 {
		return 100
	}
	return v
}

// Scores is a set of per-dimension values keyed by dimension.
type Scores map[Dimension]int

func (s Scores) Sorted() []Dimension {
	out := make([]Dimension, 0, len(s))
	for d := range s {
		out = append(out, d)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
