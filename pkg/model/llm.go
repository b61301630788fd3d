package model

import (
	"context"
	"errors"
)

// Provider is the hosted generative-AI backend the audit workflow talks to.
// Implementations wrap authentication failures with ErrCredentialRejected and
// quota failures with ErrRateLimited.
type Provider interface {
	Name() string
	ListModels(ctx context.Context, opts ...GeneratorOption) ([]ModelDescriptor, error)
	Transcribe(ctx context.Context, filePath string, opts AudioOptions) (string, GenerationMetadata, error)
	Generate(ctx context.Context, prompt string, opts ...GeneratorOption) (string, GenerationMetadata, error)
}

var (
	ErrCredentialMissing  = errors.New("api key is required")
	ErrCredentialRejected = errors.New("credential rejected by provider")
	ErrRateLimited        = errors.New("provider rate limit reached")
)

// ModelDescriptor is one entry of a provider's model listing.
type ModelDescriptor struct {
	Name               string `json:"name"`
	DisplayName        string `json:"display_name,omitempty"`
	Description        string `json:"description,omitempty"`
	SupportsGeneration bool   `json:"supports_generation"`
}

type GenerationMetadata map[string]string

const (
	MetadataKeyProvider          = "provider"
	MetadataKeyModel             = "model"
	MetadataKeyLatencyMs         = "latency_ms"
	MetadataKeyInputTokens       = "input_tokens"
	MetadataKeyOutputTokens      = "output_tokens"
	MetadataKeyTotalTokens       = "total_tokens"
	MetadataKeyCachedInputTokens = "cached_input_tokens"
	MetadataKeyReasoningTokens   = "reasoning_tokens"
	MetadataKeyResponseID        = "response_id"
	MetadataKeyResponseStatus    = "response_status"
	MetadataKeyUploadedFile      = "uploaded_file"
)

type GeneratorOption interface {
	apply(*GeneratorConfig)
}

type generatorOptionFunc func(*GeneratorConfig)

func (f generatorOptionFunc) apply(cfg *GeneratorConfig) {
	f(cfg)
}

type GeneratorConfig struct {
	URL         string
	AuthToken   string
	Temperature *float64
	MaxTokens   *int
	Model       *string
}

func ResolveGeneratorOpts(opts ...GeneratorOption) GeneratorConfig {
	cfg := GeneratorConfig{}
	for _, opt := range opts {
		if opt != nil {
			opt.apply(&cfg)
		}
	}
	return cfg
}

func WithURL(value string) GeneratorOption {
	return generatorOptionFunc(func(cfg *GeneratorConfig) {
		cfg.URL = value
	})
}

func WithAuthToken(value string) GeneratorOption {
	return generatorOptionFunc(func(cfg *GeneratorConfig) {
		cfg.AuthToken = value
	})
}

func WithTemperature(value float64) GeneratorOption {
	return generatorOptionFunc(func(cfg *GeneratorConfig) {
		cfg.Temperature = &value
	})
}

func WithMaxTokens(value int) GeneratorOption {
	return generatorOptionFunc(func(cfg *GeneratorConfig) {
		cfg.MaxTokens = &value
	})
}

func WithModel(value string) GeneratorOption {
	return generatorOptionFunc(func(cfg *GeneratorConfig) {
		cfg.Model = &value
	})
}
