package lexicon

import (
	"strings"
	"testing"

	"github.com/yungbote/negotiator-backend/internal/domain/assessment"
)

func TestDefaultLexicon(t *testing.T) {
	lex, err := Default()
	if err != nil {
		t.Fatalf("Default: %v", err)
	}
	if lex.MinContentChars != 50 {
		t.Fatalf("min_content_chars=%d, want 50", lex.MinContentChars)
	}
	for _, dim := range assessment.Dimensions {
		spec := lex.Dimensions[dim]
		if got := spec.MaxScore(); got != 100 {
			t.Fatalf("%s group caps sum to %d, want 100", dim, got)
		}
		if len(spec.Groups) != 5 {
			t.Fatalf("%s has %d groups, want 5", dim, len(spec.Groups))
		}
	}
}

func TestPhrasesAreLowercased(t *testing.T) {
	lex := MustDefault()
	for dim, spec := range lex.Dimensions {
		for _, g := range spec.Groups {
			for _, c := range g.Categories {
				for _, p := range c.Phrases {
					if p != strings.ToLower(p) {
						t.Fatalf("%s/%s/%s phrase %q not lowercased", dim, g.Key, c.Key, p)
					}
				}
			}
		}
	}
}

func TestCategoryMatches(t *testing.T) {
	lex := MustDefault()
	anchoring := lex.Dimensions[assessment.ClaimingValue].Groups[0]
	numerical := anchoring.Categories[0]
	cases := []struct {
		text string
		want bool
	}{
		{"let's start at $20,000", true},
		{"we can do 15%", true},
		{"about 3 million", true},
		{"no numbers here", false},
	}
	for _, tc := range cases {
		if got := numerical.Matches(tc.text); got != tc.want {
			t.Fatalf("numerical.Matches(%q)=%v, want %v", tc.text, got, tc.want)
		}
	}
	listening := lex.Dimensions[assessment.RelationshipManagement].Groups[0]
	if !listening.Categories[1].Matches("i understand, that is fair") {
		t.Fatalf("acknowledgment phrase containing 'i' should match lowercased text")
	}
}

func TestParseRejectsInvalid(t *testing.T) {
	cases := []struct {
		name string
		yaml string
	}{
		{"no_version", "min_content_chars: 10\ndimensions: {}\n"},
		{"missing_dimension", "version: v1\ndimensions: {}\n"},
		{"bad_pattern", `version: v1
dimensions:
  claiming_value:
    groups:
      - key: a
        cap: 10
        categories:
          - key: x
            weight: 1
            pattern: '('
  creating_value: {groups: []}
  relationship_management: {groups: []}
`},
		{"both_phrases_and_pattern", `version: v1
dimensions:
  claiming_value:
    groups:
      - key: a
        cap: 10
        categories:
          - key: x
            weight: 1
            pattern: 'a'
            phrases: [b]
  creating_value: {groups: []}
  relationship_management: {groups: []}
`},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := Parse([]byte(tc.yaml)); err == nil {
				t.Fatalf("expected error")
			}
		})
	}
}

func TestVocabularyHits(t *testing.T) {
	v := Vocabulary{Max: 2, Words: []string{"trust", "rapport", "connection"}}
	if got := v.Hits("trust and rapport build connection"); got != 2 {
		t.Fatalf("Hits=%d, want capped 2", got)
	}
	if got := v.Hits("nothing relevant"); got != 0 {
		t.Fatalf("Hits=%d, want 0", got)
	}
}
