package openai

import (
	"context"
	"errors"
	"strconv"
	"strings"
	"time"

	"github.com/Nephrolytics-ai/call-auditor/pkg/logging"
	"github.com/Nephrolytics-ai/call-auditor/pkg/model"
	"github.com/Nephrolytics-ai/call-auditor/pkg/utils"
	openai "github.com/openai/openai-go/v3"
)

// Generate sends prompt as a single user message and returns the reply text.
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

	params := buildChatParams(modelName, prompt, cfg)
	log.Infof(
		"openai.Generate prompt_chars=%d model=%q temperature=%v max_tokens=%v",
		len(prompt),
		modelName,
		cfg.Temperature,
		cfg.MaxTokens,
	)

	client := newAPIClient(cfg)
	response, err := client.Chat.Completions.New(ctx, params)
	if err != nil {
		log.Errorf("error: %v", err)
		return "", meta, utils.WrapIfNotNil(classifyError(err))
	}
	applyChatMetadata(meta, response)

	if len(response.Choices) == 0 {
		err = errors.New("response has no choices")
		log.Errorf("error: %v", err)
		return "", meta, utils.WrapIfNotNil(err)
	}
	text := strings.TrimSpace(response.Choices[0].Message.Content)
	if text == "" {
		err = errors.New("response output is empty")
		log.Errorf("error: %v", err)
		return "", meta, utils.WrapIfNotNil(err)
	}
	return text, meta, nil
}

func buildChatParams(modelName string, prompt string, cfg model.GeneratorConfig) openai.ChatCompletionNewParams {
	params := openai.ChatCompletionNewParams{
		Model: openai.ChatModel(modelName),
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.UserMessage(prompt),
		},
	}
	if cfg.Temperature != nil && !isReasoningModel(modelName) {
		params.Temperature = openai.Float(*cfg.Temperature)
	}
	if cfg.MaxTokens != nil {
		params.MaxCompletionTokens = openai.Int(int64(*cfg.MaxTokens))
	}
	return params
}

func applyChatMetadata(meta model.GenerationMetadata, response *openai.ChatCompletion) {
	if meta == nil || response == nil {
		return
	}

	meta[model.MetadataKeyInputTokens] = strconv.FormatInt(response.Usage.PromptTokens, 10)
	meta[model.MetadataKeyOutputTokens] = strconv.FormatInt(response.Usage.CompletionTokens, 10)
	meta[model.MetadataKeyTotalTokens] = strconv.FormatInt(response.Usage.TotalTokens, 10)
	meta[model.MetadataKeyCachedInputTokens] = strconv.FormatInt(response.Usage.PromptTokensDetails.CachedTokens, 10)
	meta[model.MetadataKeyReasoningTokens] = strconv.FormatInt(response.Usage.CompletionTokensDetails.ReasoningTokens, 10)
	if strings.TrimSpace(response.ID) != "" {
		meta[model.MetadataKeyResponseID] = response.ID
	}
	if len(response.Choices) > 0 {
		meta[model.MetadataKeyResponseStatus] = string(response.Choices[0].FinishReason)
	}
}
