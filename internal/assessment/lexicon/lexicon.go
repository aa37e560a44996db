package lexicon

import (
	_ "embed"
	"fmt"
	"os"
	"regexp"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/yungbote/negotiator-backend/internal/domain/assessment"
)

//go:embed default.yaml
var defaultYAML []byte

// Category is one named technique. Exactly one of Phrases or Pattern is set.
type Category struct {
	Key     string   `yaml:"key"`
	Name    string   `yaml:"name"`
	Weight  int      `yaml:"weight"`
	Phrases []string `yaml:"phrases,omitempty"`
	Pattern string   `yaml:"pattern,omitempty"`

	re *regexp.Regexp
}

type SystematicBonus struct {
	MinHits   int    `yaml:"min_hits"`
	Points    int    `yaml:"points"`
	Technique string `yaml:"technique"`
}

type QuestionPoints struct {
	MaxPerUtterance int `yaml:"max_per_utterance"`
}

// Group is a capped bundle of categories; Label tags the quotes it captures.
type Group struct {
	Key             string           `yaml:"key"`
	Label           string           `yaml:"label"`
	Cap             int              `yaml:"cap"`
	Categories      []Category       `yaml:"categories"`
	SystematicBonus *SystematicBonus `yaml:"systematic_bonus,omitempty"`
	QuestionPoints  *QuestionPoints  `yaml:"question_points,omitempty"`
}

type TechniqueThreshold struct {
	MinDistinct int `yaml:"min_distinct"`
	Points      int `yaml:"points"`
}

type Vocabulary struct {
	Name  string   `yaml:"name"`
	Max   int      `yaml:"max"`
	Words []string `yaml:"words"`
}

type Bonuses struct {
	TechniqueThresholds []TechniqueThreshold `yaml:"technique_thresholds,omitempty"`
	Vocabularies        []Vocabulary         `yaml:"vocabularies,omitempty"`
}

type DimensionSpec struct {
	Groups  []Group `yaml:"groups"`
	Bonuses Bonuses `yaml:"bonuses"`
}

// Lexicon is immutable after Parse; share one instance across goroutines freely.
type Lexicon struct {
	Version         string                                 `yaml:"version"`
	MinContentChars int                                    `yaml:"min_content_chars"`
	Dimensions      map[assessment.Dimension]DimensionSpec `yaml:"dimensions"`
}

// Default parses the embedded lexicon. Each call returns an independent copy.
func Default() (*Lexicon, error) {
	return Parse(defaultYAML)
}

// MustDefault panics if the embedded lexicon is broken; that is a build defect.
func MustDefault() *Lexicon {
	lex, err := Default()
	if err != nil {
		panic(err)
	}
	return lex
}

// Load reads a lexicon file, or returns the embedded one when path is empty.
func Load(path string) (*Lexicon, error) {
	if strings.TrimSpace(path) == "" {
		return Default()
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read lexicon %s: %w", path, err)
	}
	return Parse(raw)
}

func Parse(raw []byte) (*Lexicon, error) {
	var lex Lexicon
	if err := yaml.Unmarshal(raw, &lex); err != nil {
		return nil, fmt.Errorf("parse lexicon: %w", err)
	}
	if err := lex.compile(); err != nil {
		return nil, err
	}
	return &lex, nil
}

func (l *Lexicon) compile() error {
	if strings.TrimSpace(l.Version) == "" {
		return fmt.Errorf("lexicon: version is required")
	}
	if l.MinContentChars < 0 {
		return fmt.Errorf("lexicon: min_content_chars must be >= 0")
	}
	for _, dim := range assessment.Dimensions {
		spec, ok := l.Dimensions[dim]
		if !ok {
			return fmt.Errorf("lexicon: missing dimension %s", dim)
		}
		for gi := range spec.Groups {
			g := &spec.Groups[gi]
			if g.Cap <= 0 {
				return fmt.Errorf("lexicon: %s/%s: cap must be > 0", dim, g.Key)
			}
			if g.Label == "" {
				g.Label = g.Key
			}
			for ci := range g.Categories {
				c := &g.Categories[ci]
				if c.Weight <= 0 {
					return fmt.Errorf("lexicon: %s/%s/%s: weight must be > 0", dim, g.Key, c.Key)
				}
				if (len(c.Phrases) == 0) == (c.Pattern == "") {
					return fmt.Errorf("lexicon: %s/%s/%s: set exactly one of phrases or pattern", dim, g.Key, c.Key)
				}
				if c.Name == "" {
					c.Name = c.Key
				}
				c.Phrases = lowerAll(c.Phrases)
				if c.Pattern != "" {
					re, err := regexp.Compile("(?i)" + c.Pattern)
					if err != nil {
						return fmt.Errorf("lexicon: %s/%s/%s: %w", dim, g.Key, c.Key, err)
					}
					c.re = re
				}
			}
		}
		for vi := range spec.Bonuses.Vocabularies {
			spec.Bonuses.Vocabularies[vi].Words = lowerAll(spec.Bonuses.Vocabularies[vi].Words)
		}
		l.Dimensions[dim] = spec
	}
	return nil
}

// Matches reports whether the lowercased utterance hits this category.
func (c *Category) Matches(lowered string) bool {
	if c.re != nil {
		return c.re.MatchString(lowered)
	}
	for _, p := range c.Phrases {
		if strings.Contains(lowered, p) {
			return true
		}
	}
	return false
}

// Hits counts how many of the words occur in text, capped at Max.
func (v Vocabulary) Hits(lowered string) int {
	n := 0
	for _, w := range v.Words {
		if strings.Contains(lowered, w) {
			n++
		}
	}
	if v.Max > 0 && n > v.Max {
		return v.Max
	}
	return n
}

// MaxScore is the sum of group caps for a dimension.
func (d DimensionSpec) MaxScore() int {
	total := 0
	for _, g := range d.Groups {
		total += g.Cap
	}
	return total
}

func lowerAll(in []string) []string {
	out := make([]string, 0, len(in))
	for _, s := range in {
		if s = strings.ToLower(strings.TrimSpace(s)); s != "" {
			out = append(out, s)
		}
	}
	return out
}
