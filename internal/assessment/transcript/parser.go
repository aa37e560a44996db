package transcript

import (
	"regexp"
	"strings"

	"github.com/yungbote/negotiator-backend/internal/domain/assessment"
)

// Turn is a pre-structured transcript entry, as produced by a transcription service.
type Turn = assessment.Turn

var (
	lineRE = regexp.MustCompile(`^([\p{L}\d_][\p{L}\d_'-]*(?: [\p{L}\d_][\p{L}\d_'-]*){0,2})\s*:\s*(.+)$`)
	// A capitalized label right after sentence punctuation starts a new turn on the same line.
	inlineTurnRE = regexp.MustCompile(`([.!?])\s+(\p{Lu}[\p{L}\d_'-]*):\s+`)
)

// Parser turns raw transcripts into utterances. The zero value treats "User" and
// "Learner" as the learner.
type Parser struct {
	LearnerNames []string
}

func (p Parser) isLearner(name string) bool {
	name = strings.ToLower(strings.TrimSpace(name))
	names := p.LearnerNames
	if len(names) == 0 {
		names = []string{"user", "learner"}
	}
	for _, n := range names {
		if strings.ToLower(n) == name {
			return true
		}
	}
	return false
}

// ParseText never fails; unrecognized lines are dropped and an unusable transcript
// yields an empty slice.
func (p Parser) ParseText(raw string) []assessment.Utterance {
	raw = strings.ReplaceAll(raw, "\r\n", "\n")
	raw = inlineTurnRE.ReplaceAllString(raw, "$1\n$2: ")
	var out []assessment.Utterance
	for _, line := range strings.Split(raw, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		m := lineRE.FindStringSubmatch(line)
		if m == nil {
			continue
		}
		text := strings.TrimSpace(m[2])
		if text == "" {
			continue
		}
		speaker := assessment.Counterpart
		if p.isLearner(m[1]) {
			speaker = assessment.Learner
		}
		out = append(out, assessment.Utterance{
			Speaker:       speaker,
			Name:          m[1],
			Text:          text,
			SequenceIndex: len(out),
		})
	}
	return out
}

func (p Parser) ParseTurns(turns []Turn) []assessment.Utterance {
	var out []assessment.Utterance
	for _, t := range turns {
		text := strings.TrimSpace(t.Content)
		if text == "" {
			continue
		}
		speaker := assessment.Counterpart
		switch strings.ToLower(strings.TrimSpace(t.Role)) {
		case "user", "learner", "human":
			speaker = assessment.Learner
		default:
			if p.isLearner(t.Role) {
				speaker = assessment.Learner
			}
		}
		out = append(out, assessment.Utterance{
			Speaker:       speaker,
			Name:          t.Role,
			Text:          text,
			SequenceIndex: len(out),
		})
	}
	return out
}

// Render formats utterances back into one "Name: text" line per turn.
func Render(utts []assessment.Utterance) string {
	var b strings.Builder
	for i, u := range utts {
		if i > 0 {
			b.WriteByte('\n')
		}
		name := u.Name
		if name == "" {
			name = "User"
			if u.Speaker == assessment.Counterpart {
				name = "Counterpart"
			}
		}
		b.WriteString(name)
		b.WriteString(": ")
		b.WriteString(u.Text)
	}
	return b.String()
}

// LearnerText joins learner utterances with single spaces.
func LearnerText(utts []assessment.Utterance) string {
	parts := make([]string, 0, len(utts))
	for _, u := range utts {
		if u.Speaker == assessment.Learner {
			parts = append(parts, u.Text)
		}
	}
	return strings.Join(parts, " ")
}
