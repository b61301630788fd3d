package openai

import (
	"errors"
	"fmt"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/Nephrolytics-ai/call-auditor/pkg/model"
	"github.com/Nephrolytics-ai/call-auditor/pkg/utils"
	openai "github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
)

const (
	providerName                       = "openai"
	defaultGenerationModelName         = "gpt-4o-mini"
	defaultAudioTranscriptionModelName = "whisper-1"
)

// Provider talks to the OpenAI API (or any compatible endpoint).
type Provider struct {
	BaseURL string
	// AudioModel is used for transcription; chat models selected for the
	// session cannot take audio uploads.
	AudioModel string
}

func NewProvider(baseURL string, audioModel string) *Provider {
	return &Provider{
		BaseURL:    strings.TrimSpace(baseURL),
		AudioModel: strings.TrimSpace(audioModel),
	}
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

func newAPIClient(cfg model.GeneratorConfig) openai.Client {
	requestOpts := make([]option.RequestOption, 0, 3)
	if cfg.URL != "" {
		requestOpts = append(requestOpts, option.WithBaseURL(cfg.URL))
	}

	token := strings.TrimSpace(cfg.AuthToken)
	if token == "" {
		token = strings.TrimSpace(os.Getenv("OPEN_API_TOKEN"))
	}
	if token != "" {
		requestOpts = append(requestOpts, option.WithAPIKey(token))
	}
	// Failed steps are re-triggered by the user.
	requestOpts = append(requestOpts, option.WithMaxRetries(0))

	return openai.NewClient(requestOpts...)
}

// classifyError tags err with the model sentinels the workflow inspects.
func classifyError(err error) error {
	if err == nil {
		return nil
	}

	var apiErr *openai.Error
	if errors.As(err, &apiErr) {
		switch apiErr.StatusCode {
		case http.StatusUnauthorized, http.StatusForbidden:
			return fmt.Errorf("%w: %w", model.ErrCredentialRejected, err)
		case http.StatusTooManyRequests:
			return fmt.Errorf("%w: %w", model.ErrRateLimited, err)
		}
	}
	if utils.ContainsAnyErrorSubstring(err, "invalid_api_key", "Incorrect API key") {
		return fmt.Errorf("%w: %w", model.ErrCredentialRejected, err)
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

// isReasoningModel reports models that reject a temperature parameter.
func isReasoningModel(name string) bool {
	name = strings.ToLower(strings.TrimSpace(name))
	if strings.HasPrefix(name, "gpt-5") {
		return true
	}
	return len(name) > 1 && name[0] == 'o' && name[1] >= '0' && name[1] <= '9'
}
