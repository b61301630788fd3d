package gemini

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/Nephrolytics-ai/call-auditor/pkg/logging"
	"github.com/Nephrolytics-ai/call-auditor/pkg/model"
	"github.com/Nephrolytics-ai/call-auditor/pkg/utils"
	"google.golang.org/genai"
)

// Generate sends prompt as a single user turn and returns the text reply.
func (p *Provider) Generate(ctx context.Context, prompt string, opts ...model.GeneratorOption) (string, model.GenerationMetadata, error) {
	start := time.Now()
	cfg := p.withDefaults(model.ResolveGeneratorOpts(opts...))
	modelName := resolveGenerationModelName(cfg)
	meta := initMetadata(modelName)
	defer setLatencyMetadata(meta, start)

	log := logging.NewLogger(ctx)
	if strings.TrimSpace(prompt) == "" {
		err := errors.New("prompt is required")
		log.Errorf("error: %v", err)
		return "", meta, utils.WrapIfNotNil(err)
	}

	client, err := newAPIClient(ctx, cfg)
	if err != nil {
		log.Errorf("error: %v", err)
		return "", meta, utils.WrapIfNotNil(err)
	}

	log.Infof(
		"gemini.Generate prompt_chars=%d model=%q temperature=%v max_tokens=%v",
		len(prompt),
		modelName,
		cfg.Temperature,
		cfg.MaxTokens,
	)

	contents := []*genai.Content{genai.NewContentFromText(prompt, genai.RoleUser)}
	response, err := client.Models.GenerateContent(ctx, modelName, contents, buildGenerateContentConfig(cfg))
	if err != nil {
		log.Errorf("error: %v", err)
		return "", meta, utils.WrapIfNotNil(classifyError(err))
	}
	applyGenerateMetadata(meta, response)

	text := strings.TrimSpace(response.Text())
	if text == "" {
		err = errors.New("response output is empty")
		log.Errorf("error: %v", err)
		return "", meta, utils.WrapIfNotNil(err)
	}
	return text, meta, nil
}

func buildGenerateContentConfig(cfg model.GeneratorConfig) *genai.GenerateContentConfig {
	config := &genai.GenerateContentConfig{}

	if cfg.Temperature != nil {
		temp := float32(*cfg.Temperature)
		config.Temperature = &temp
	}
	if cfg.MaxTokens != nil {
		config.MaxOutputTokens = int32(*cfg.MaxTokens)
	}
	return config
}
