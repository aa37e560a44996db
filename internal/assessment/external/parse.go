package external

import (
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/yungbote/negotiator-backend/internal/domain/assessment"
)

var (
	scorePatterns = map[assessment.Dimension]*regexp.Regexp{
		assessment.ClaimingValue:          regexp.MustCompile(`(?i)CLAIMING VALUE SCORE.*?(\d+)`),
		assessment.CreatingValue:          regexp.MustCompile(`(?i)CREATING VALUE SCORE.*?(\d+)`),
		assessment.RelationshipManagement: regexp.MustCompile(`(?i)RELATIONSHIP MANAGEMENT SCORE.*?(\d+)`),
	}
	sectionPatterns = map[assessment.Dimension]*regexp.Regexp{
		assessment.ClaimingValue:          regexp.MustCompile(`(?i)CLAIMING VALUE ANALYSIS`),
		assessment.CreatingValue:          regexp.MustCompile(`(?i)CREATING VALUE ANALYSIS`),
		assessment.RelationshipManagement: regexp.MustCompile(`(?i)RELATIONSHIP MANAGEMENT ANALYSIS`),
	}
	summaryRe        = regexp.MustCompile(`(?is)EXECUTIVE SUMMARY\**\s*\n(.*?)(?:\n#|\n\*\*|$)`)
	quoteRe          = regexp.MustCompile(`Quote:\s*"([^"]+)"`)
	recommendationRe = regexp.MustCompile(`(?i)(Immediate Focus|Short-term Development|Strategic Enhancement)`)
	techniquesRe     = regexp.MustCompile(`(?i)Techniques Observed\**:?\**[ \t]*\n((?:[ \t]*-[^\n]*(?:\n|$))+)`)
	headingRe        = regexp.MustCompile(`\n#`)
	listTailRe       = regexp.MustCompile(`\s*\n[ \t]*\d*\.?[ \t]*\**[ \t]*$`)
)

// Parsed is the tolerant extraction of a free-text analysis. A dimension missing from
// Scores had no recognizable score line.
type Parsed struct {
	Scores          map[assessment.Dimension]float64
	Quotes          map[assessment.Dimension][]string
	AllQuotes       []string
	Techniques      map[assessment.Dimension][]string
	Summary         string
	Recommendations []string
}

// Parse never fails; unrecognized text yields empty fields.
func Parse(text string) Parsed {
	p := Parsed{
		Scores:     map[assessment.Dimension]float64{},
		Quotes:     map[assessment.Dimension][]string{},
		Techniques: map[assessment.Dimension][]string{},
	}
	for d, re := range scorePatterns {
		m := re.FindStringSubmatch(text)
		if m == nil {
			continue
		}
		v, err := strconv.Atoi(m[1])
		if err != nil {
			continue
		}
		p.Scores[d] = float64(v)
	}

	if m := summaryRe.FindStringSubmatch(text); m != nil {
		p.Summary = strings.TrimSpace(m[1])
	}

	p.Recommendations = parseRecommendations(text)

	sections := locateSections(text)
	quoteIdx := quoteRe.FindAllStringSubmatchIndex(text, -1)
	for i, loc := range quoteIdx {
		q := strings.TrimSpace(text[loc[2]:loc[3]])
		if q == "" {
			continue
		}
		p.AllQuotes = append(p.AllQuotes, q)
		var d assessment.Dimension
		if len(sections) > 0 {
			d = sections.owner(loc[0])
		} else {
			d = dimensionByIndex(i)
		}
		if d != "" {
			p.Quotes[d] = append(p.Quotes[d], q)
		}
	}

	for _, s := range sections {
		body := text[s.start:s.end]
		m := techniquesRe.FindStringSubmatch(body)
		if m == nil {
			continue
		}
		for _, line := range strings.Split(m[1], "\n") {
			line = strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(line), "-"))
			if line == "" || strings.HasPrefix(line, "Quote:") {
				continue
			}
			p.Techniques[s.dim] = append(p.Techniques[s.dim], line)
		}
	}
	return p
}

// dimensionByIndex spreads unsectioned quotes three per dimension in display order.
func dimensionByIndex(i int) assessment.Dimension {
	switch {
	case i < 3:
		return assessment.ClaimingValue
	case i < 6:
		return assessment.CreatingValue
	default:
		return assessment.RelationshipManagement
	}
}

type section struct {
	dim        assessment.Dimension
	start, end int
}

type sectionList []section

func (l sectionList) owner(pos int) assessment.Dimension {
	for _, s := range l {
		if pos >= s.start && pos < s.end {
			return s.dim
		}
	}
	return ""
}

// locateSections finds each dimension's analysis block. A block runs until the next
// dimension heading or the next top-level "###" heading.
func locateSections(text string) sectionList {
	var out sectionList
	for d, re := range sectionPatterns {
		loc := re.FindStringIndex(text)
		if loc == nil {
			continue
		}
		out = append(out, section{dim: d, start: loc[0]})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].start < out[j].start })
	for i := range out {
		end := len(text)
		if i+1 < len(out) {
			end = out[i+1].start
		}
		if j := strings.Index(text[out[i].start:end], "\n### "); j >= 0 {
			end = out[i].start + j
		}
		out[i].end = end
	}
	return out
}

func parseRecommendations(text string) []string {
	locs := recommendationRe.FindAllStringIndex(text, -1)
	var out []string
	for i, loc := range locs {
		end := len(text)
		if i+1 < len(locs) {
			end = locs[i+1][0]
		}
		chunk := text[loc[0]:end]
		if j := headingRe.FindStringIndex(chunk); j != nil {
			chunk = chunk[:j[0]]
		}
		chunk = strings.TrimSpace(strings.ReplaceAll(listTailRe.ReplaceAllString(chunk, ""), "**", ""))
		if chunk != "" {
			out = append(out, chunk)
		}
	}
	return out
}
