package model

// AudioKeyword is a term the transcriber tends to get wrong on sales calls,
// such as a company or street name.
type AudioKeyword struct {
	Word           string   `json:"word,omitempty" mapstructure:"word" jsonschema:"description=Correct spelling"`
	CommonMistypes []string `json:"common_mistypes,omitempty" mapstructure:"common_mistypes" jsonschema:"description=Spellings the transcriber produces instead"`
	Definition     string   `json:"definition,omitempty" mapstructure:"definition"`
}

// AudioOptions configures one Transcribe call.
type AudioOptions struct {
	URL       string
	AuthToken string
	Model     string
	// Prompt replaces the verbatim-transcript instruction. Keywords are
	// ignored when it is set.
	Prompt   string
	Keywords []AudioKeyword
}
