// Package prompt renders the fixed instructions sent to the provider: the
// transcription request and the sales call audit request.
package prompt

import (
	"encoding/json"
	"errors"
	"strings"
	"text/template"

	"github.com/Nephrolytics-ai/call-auditor/pkg/model"
	"github.com/Nephrolytics-ai/call-auditor/pkg/utils"
)

const TranscriptionInstruction = "Provide a word-for-word transcript of this call in English. " +
	"Do not summarize, paraphrase or omit anything. Return only the transcript text."

// Report section headers, in output order.
const (
	SectionNotes             = "Notes"
	SectionStrengths         = "Strengths"
	SectionAreasToImprove    = "Areas to Improve"
	SectionMissedOpportunity = "Missed Opportunity"
	SectionCoachTip          = "Coach Tip"
)

// NoteFields are the labeled lines of the Notes block.
var NoteFields = []string{
	"Call Summary",
	"Situation",
	"Motivation / Pain",
	"Timeline",
	"Condition",
	"Price Expectation",
	"Decision Maker",
	"Objections",
	"Outcome",
	"Important Notes",
}

// ReferenceMaterial is the coaching knowledge the audit is graded against.
const ReferenceMaterial = `PILLARS (every qualified call covers all five):
- Motivation: why the seller wants to sell and what happens if they don't.
- Price: what number they have in mind and how they arrived at it.
- Timeline: when they need to be done and what is driving the date.
- Condition: repairs, updates, occupancy and anything a buyer would find on a walkthrough.
- Rapport: tone, empathy and whether the seller felt heard.

CARE MODEL FOR OBJECTIONS:
- Clarify: ask a question to understand the real objection before answering it.
- Acknowledge: restate the concern so the seller knows it landed.
- Reframe: connect the concern back to the seller's own motivation.
- Engage: ask for the next step instead of stopping at the rebuttal.

LEAD QUALIFICATION:
- Hot: clear motivation, timeline under 90 days, price within 10% of our range, decision maker on the call.
- Warm: motivation present but timeline 3 to 6 months or price gap up to 25%.
- Cold: no real motivation, timeline over 6 months, or price gap above 25%.

CREDIBILITY TALKING POINTS:
- We buy as-is: no repairs, no cleaning, no showings.
- We close on the seller's timeline and cover standard closing costs.
- Local team with verifiable past purchases and reviews.
- No commissions or agent fees come out of the seller's proceeds.`

const analysisTemplate = `You are a sales call coach auditing a real estate acquisition call.
Grade the call strictly against the reference material below. Write the entire report in English, even if the transcript contains other languages.

REFERENCE MATERIAL:
{{.Material}}

Respond using exactly this layout and these headers, in this order:

## {{.Notes}}
{{- range .Fields}}
- **{{.}}:** <answer or "Not discussed">
{{- end}}

## {{.Strengths}}
<what the caller did well, citing moments from the call>

## {{.AreasToImprove}}
<specific behaviors to change, mapped to the pillars or CARE steps>

## {{.MissedOpportunity}}
<the single biggest opportunity the caller missed and what they should have said>

## {{.CoachTip}}
<one actionable tip for the next call>

TRANSCRIPT:
{{.Transcript}}
`

var parsedAnalysisTemplate = template.Must(template.New("analysis").Parse(analysisTemplate))

type analysisData struct {
	Material          string
	Notes             string
	Fields            []string
	Strengths         string
	AreasToImprove    string
	MissedOpportunity string
	CoachTip          string
	Transcript        string
}

// RenderAnalysis builds the audit prompt around transcript, which is
// interpolated verbatim.
func RenderAnalysis(transcript string) (string, error) {
	if strings.TrimSpace(transcript) == "" {
		return "", utils.WrapIfNotNil(errors.New("transcript is required"))
	}

	var b strings.Builder
	err := parsedAnalysisTemplate.Execute(&b, analysisData{
		Material:          ReferenceMaterial,
		Notes:             SectionNotes,
		Fields:            NoteFields,
		Strengths:         SectionStrengths,
		AreasToImprove:    SectionAreasToImprove,
		MissedOpportunity: SectionMissedOpportunity,
		CoachTip:          SectionCoachTip,
		Transcript:        transcript,
	})
	if err != nil {
		return "", utils.WrapIfNotNil(err)
	}
	return b.String(), nil
}

// RenderTranscription returns the audio instruction, with optional vocabulary
// hints. A non-empty override replaces the whole instruction.
func RenderTranscription(override string, keywords []model.AudioKeyword) (string, error) {
	if custom := strings.TrimSpace(override); custom != "" {
		return custom, nil
	}

	hints, err := CommonMissedWords(keywords)
	if err != nil {
		return "", utils.WrapIfNotNil(err)
	}
	if hints == "" {
		return TranscriptionInstruction, nil
	}
	return TranscriptionInstruction + " " + hints, nil
}

// CommonMissedWords renders keywords as "Common missed words: <json>",
// dropping blank entries. Returns "" when nothing is left.
func CommonMissedWords(keywords []model.AudioKeyword) (string, error) {
	cleaned := make([]model.AudioKeyword, 0, len(keywords))
	for _, keyword := range keywords {
		word := strings.TrimSpace(keyword.Word)
		if word == "" {
			continue
		}

		mistypes := make([]string, 0, len(keyword.CommonMistypes))
		for _, mistype := range keyword.CommonMistypes {
			if trimmed := strings.TrimSpace(mistype); trimmed != "" {
				mistypes = append(mistypes, trimmed)
			}
		}
		if len(mistypes) == 0 {
			mistypes = nil
		}

		cleaned = append(cleaned, model.AudioKeyword{
			Word:           word,
			CommonMistypes: mistypes,
			Definition:     strings.TrimSpace(keyword.Definition),
		})
	}
	if len(cleaned) == 0 {
		return "", nil
	}

	payload, err := json.Marshal(cleaned)
	if err != nil {
		return "", utils.WrapIfNotNil(err)
	}
	return "Common missed words: " + string(payload), nil
}
