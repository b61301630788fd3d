package openai

import (
	"context"
	"errors"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/Nephrolytics-ai/call-auditor/pkg/logging"
	"github.com/Nephrolytics-ai/call-auditor/pkg/model"
	"github.com/Nephrolytics-ai/call-auditor/pkg/prompt"
	"github.com/Nephrolytics-ai/call-auditor/pkg/utils"
	openai "github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/packages/param"
)

const transcriptLanguage = "en"

// Transcribe sends the file at filePath to the transcription endpoint.
// opts.Model is ignored unless it names an audio model; p.AudioModel wins.
func (p *Provider) Transcribe(ctx context.Context, filePath string, opts model.AudioOptions) (string, model.GenerationMetadata, error) {
	start := time.Now()
	modelName := p.resolveAudioTranscriptionModelName(opts)
	meta := initMetadata(modelName)
	defer setLatencyMetadata(meta, start)

	log := logging.NewLogger(ctx)
	if strings.TrimSpace(filePath) == "" {
		err := errors.New("file path is required")
		log.Errorf("error: %v", err)
		return "", meta, utils.WrapIfNotNil(err)
	}

	file, err := os.Open(filePath)
	if err != nil {
		log.Errorf("error: %v", err)
		return "", meta, utils.WrapIfNotNil(err)
	}
	defer func() {
		_ = file.Close()
	}()

	params := openai.AudioTranscriptionNewParams{
		File:           file,
		Model:          openai.AudioModel(modelName),
		ResponseFormat: openai.AudioResponseFormatJSON,
		Language:       param.NewOpt(transcriptLanguage),
	}
	hint, err := buildAudioTranscriptionPrompt(opts)
	if err != nil {
		log.Errorf("error: %v", err)
		return "", meta, utils.WrapIfNotNil(err)
	}
	if hint != "" {
		params.Prompt = param.NewOpt(hint)
	}

	log.Infof("openai.Transcribe model=%q", modelName)

	client := newAPIClient(p.withDefaults(model.GeneratorConfig{URL: opts.URL, AuthToken: opts.AuthToken}))
	response, err := client.Audio.Transcriptions.New(ctx, params)
	if err != nil {
		log.Errorf("error: %v", err)
		return "", meta, utils.WrapIfNotNil(classifyError(err))
	}
	if response == nil {
		err = errors.New("audio transcriptions API returned nil response")
		log.Errorf("error: %v", err)
		return "", meta, utils.WrapIfNotNil(err)
	}
	applyAudioTranscriptionMetadata(meta, response)

	transcript := strings.TrimSpace(response.Text)
	if transcript == "" {
		err = errors.New("transcription response is empty")
		log.Errorf("error: %v", err)
		return "", meta, utils.WrapIfNotNil(err)
	}
	return transcript, meta, nil
}

// buildAudioTranscriptionPrompt returns the vocabulary hint. The transcription
// endpoint treats prompt as preceding context, not as instructions, so the
// verbatim/English request is expressed through Language instead.
func buildAudioTranscriptionPrompt(opts model.AudioOptions) (string, error) {
	if custom := strings.TrimSpace(opts.Prompt); custom != "" {
		return custom, nil
	}
	return prompt.CommonMissedWords(opts.Keywords)
}

func (p *Provider) resolveAudioTranscriptionModelName(opts model.AudioOptions) string {
	if name := strings.TrimSpace(p.AudioModel); name != "" {
		return name
	}
	if name := strings.TrimSpace(opts.Model); isAudioModel(name) {
		return name
	}
	return defaultAudioTranscriptionModelName
}

func isAudioModel(name string) bool {
	name = strings.ToLower(name)
	return strings.HasPrefix(name, "whisper") || strings.Contains(name, "transcribe")
}

func applyAudioTranscriptionMetadata(
	meta model.GenerationMetadata,
	response *openai.AudioTranscriptionNewResponseUnion,
) {
	if meta == nil || response == nil {
		return
	}

	meta[model.MetadataKeyInputTokens] = strconv.FormatInt(response.Usage.InputTokens, 10)
	meta[model.MetadataKeyOutputTokens] = strconv.FormatInt(response.Usage.OutputTokens, 10)
	meta[model.MetadataKeyTotalTokens] = strconv.FormatInt(response.Usage.TotalTokens, 10)
}
