package gemini

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/Nephrolytics-ai/call-auditor/pkg/model"
	"github.com/Nephrolytics-ai/call-auditor/pkg/utils"
	"google.golang.org/genai"
)

const (
	providerName               = "gemini"
	defaultGenerationModelName = "gemini-2.5-flash"
)

var (
	credentialErrorMarkers = []string{
		"API_KEY_INVALID",
		"API key not valid",
		"API key expired",
		"PERMISSION_DENIED",
		"UNAUTHENTICATED",
		"Error 401",
		"Error 403",
		"api key is required",
	}
	rateLimitErrorMarkers = []string{
		"RESOURCE_EXHAUSTED",
		"Error 429",
		"quota",
		"rate limit",
	}
)

// Provider talks to the Gemini API. The zero value uses the public endpoint.
type Provider struct {
	// BaseURL overrides the API endpoint, mostly for tests and proxies.
	BaseURL string
}

func NewProvider(baseURL string) *Provider {
	return &Provider{BaseURL: strings.TrimSpace(baseURL)}
}

func (p *Provider) Name() string {
	return providerName
}

func (p *Provider) withDefaults(cfg model.GeneratorConfig) model.GeneratorConfig {
	if strings.TrimSpace(cfg.URL) == "" {
		cfg.URL = p.BaseURL
	}
	return cfg
}

func newAPIClient(ctx context.Context, cfg model.GeneratorConfig) (*genai.Client, error) {
	clientCfg := &genai.ClientConfig{
		Backend: genai.BackendGeminiAPI,
	}

	token := strings.TrimSpace(cfg.AuthToken)
	if token == "" {
		token = strings.TrimSpace(os.Getenv("GEMINI_KEY"))
	}
	if token != "" {
		clientCfg.APIKey = token
	}

	baseURL := strings.TrimSpace(cfg.URL)
	if baseURL != "" {
		clientCfg.HTTPOptions = genai.HTTPOptions{
			BaseURL: baseURL,
		}
	}

	client, err := genai.NewClient(ctx, clientCfg)
	if err != nil {
		return nil, utils.WrapIfNotNil(classifyError(err))
	}
	return client, nil
}

// classifyError tags err with the model sentinels the workflow inspects.
func classifyError(err error) error {
	if err == nil {
		return nil
	}
	switch {
	case utils.ContainsAnyErrorSubstring(err, credentialErrorMarkers...):
		return fmt.Errorf("%w: %w", model.ErrCredentialRejected, err)
	case utils.ContainsAnyErrorSubstring(err, rateLimitErrorMarkers...):
		return fmt.Errorf("%w: %w", model.ErrRateLimited, err)
	}
	return err
}

func initMetadata(modelName string) model.GenerationMetadata {
	if strings.TrimSpace(modelName) == "" {
		modelName = "unknown"
	}

	return model.GenerationMetadata{
		model.MetadataKeyProvider: providerName,
		model.MetadataKeyModel:    modelName,
	}
}

func setLatencyMetadata(meta model.GenerationMetadata, start time.Time) {
	if meta == nil {
		return
	}
	meta[model.MetadataKeyLatencyMs] = strconv.FormatInt(time.Since(start).Milliseconds(), 10)
}

func resolveGenerationModelName(cfg model.GeneratorConfig) string {
	if cfg.Model != nil {
		name := strings.TrimSpace(*cfg.Model)
		if name != "" {
			return name
		}
	}
	return defaultGenerationModelName
}

func applyGenerateMetadata(meta model.GenerationMetadata, response *genai.GenerateContentResponse) {
	if meta == nil || response == nil {
		return
	}

	if usage := response.UsageMetadata; usage != nil {
		meta[model.MetadataKeyInputTokens] = strconv.Itoa(int(usage.PromptTokenCount))
		meta[model.MetadataKeyOutputTokens] = strconv.Itoa(int(usage.CandidatesTokenCount))
		meta[model.MetadataKeyTotalTokens] = strconv.Itoa(int(usage.TotalTokenCount))
		meta[model.MetadataKeyCachedInputTokens] = strconv.Itoa(int(usage.CachedContentTokenCount))
		meta[model.MetadataKeyReasoningTokens] = strconv.Itoa(int(usage.ThoughtsTokenCount))
	}
	if strings.TrimSpace(response.ResponseID) != "" {
		meta[model.MetadataKeyResponseID] = response.ResponseID
	}
	if len(response.Candidates) > 0 && response.Candidates[0] != nil {
		meta[model.MetadataKeyResponseStatus] = string(response.Candidates[0].FinishReason)
	}
}
