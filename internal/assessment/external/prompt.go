package external

import (
	"bytes"
	"strings"
	"text/template"
)

// ScenarioContext is the scenario framing handed to the model. Empty fields fall back to
// generic wording in the prompt.
type ScenarioContext struct {
	Title              string `json:"title,omitempty"`
	Industry           string `json:"industry,omitempty"`
	Type               string `json:"type,omitempty"`
	KeyIssues          string `json:"key_issues,omitempty"`
	CounterpartProfile string `json:"counterpart_profile,omitempty"`
}

type promptInput struct {
	Transcript  string
	Scenario    ScenarioContext
	SkillFocus  string
	IndustryTip string
}

const systemPrompt = `You are a senior negotiation instructor. Provide expert-level negotiation analysis with specific conversation examples and actionable feedback. Only quote the learner's own words, verbatim.`

const userPrompt = `# EXPERT NEGOTIATION ANALYSIS

## SCENARIO CONTEXT
**Scenario**: {{or .Scenario.Title "Business Negotiation"}}
**Industry**: {{or .Scenario.Industry "General Business"}}
**Negotiation Type**: {{or .Scenario.Type "Bilateral Agreement"}}
**Key Issues**: {{or .Scenario.KeyIssues "Multiple variables including price, terms, and relationship factors"}}
**Counterpart Profile**: {{or .Scenario.CounterpartProfile "Professional business counterpart with specific interests and constraints"}}

## CONVERSATION TRANSCRIPT
{{.Transcript}}

## REQUIRED OUTPUT FORMAT

### PERFORMANCE SCORES (0-100 scale)
**CLAIMING VALUE SCORE**: [0-100]
**CREATING VALUE SCORE**: [0-100]
**RELATIONSHIP MANAGEMENT SCORE**: [0-100]

### DETAILED PERFORMANCE ANALYSIS
#### CLAIMING VALUE ANALYSIS
**Techniques Observed**:
- [technique name]
Give at least three lines of the form: Quote: "[exact learner quote]"

#### CREATING VALUE ANALYSIS
**Techniques Observed**:
- [technique name]
Give at least three lines of the form: Quote: "[exact learner quote]"

#### RELATIONSHIP MANAGEMENT ANALYSIS
**Techniques Observed**:
- [technique name]
Give at least three lines of the form: Quote: "[exact learner quote]"

### EXECUTIVE SUMMARY
[3-4 sentences: overall performance, key strengths, primary development area]

### ACTIONABLE RECOMMENDATIONS
1. **Immediate Focus** (Next Session): [technique and how to apply it]
2. **Short-term Development** (1-2 weeks): [skill area and practice plan]
3. **Strategic Enhancement** (1-3 months): [long-term capability]

{{.SkillFocus}}
{{- if .IndustryTip}}

{{.IndustryTip}}
{{- end}}

Follow the exact format above.`

var (
	systemTmpl = template.Must(template.New("system").Option("missingkey=zero").Parse(systemPrompt))
	userTmpl   = template.Must(template.New("user").Option("missingkey=zero").Parse(userPrompt))
)

var skillFocus = map[string]string{
	"beginner":     "BEGINNER FOCUS: emphasize foundational technique identification and clear, simple improvement steps.",
	"intermediate": "INTERMEDIATE FOCUS: analyze technique sophistication and timing; give multi-dimensional improvement strategies.",
	"advanced":     "ADVANCED FOCUS: evaluate strategic thinking and execution; give nuanced, sophisticated suggestions.",
	"expert":       "EXPERT FOCUS: analyze subtle technique variations and give mastery-level recommendations.",
}

var industryTips = map[string]string{
	"automotive":  "INDUSTRY CONTEXT: vehicle pricing, trade-ins, financing terms and dealer incentives.",
	"real_estate": "INDUSTRY CONTEXT: comparables, contingencies, closing timelines and inspection terms.",
	"technology":  "INDUSTRY CONTEXT: licensing, SLAs, implementation scope and multi-year pricing.",
	"employment":  "INDUSTRY CONTEXT: base pay, equity, benefits, start date and role scope.",
}

func skillFocusFor(level string) string {
	if s, ok := skillFocus[strings.ToLower(strings.TrimSpace(level))]; ok {
		return s
	}
	return skillFocus["intermediate"]
}

// BuildPrompt renders the system and user messages for one analysis request.
func BuildPrompt(req Request) (system string, user string) {
	in := promptInput{
		Transcript:  req.Transcript,
		Scenario:    req.Scenario,
		SkillFocus:  skillFocusFor(req.SkillLevel),
		IndustryTip: industryTips[strings.ToLower(strings.TrimSpace(req.Scenario.Industry))],
	}
	return render(systemTmpl, in), render(userTmpl, in)
}

func render(t *template.Template, in promptInput) string {
	var b bytes.Buffer
	_ = t.Execute(&b, in)
	return strings.TrimSpace(b.String())
}
