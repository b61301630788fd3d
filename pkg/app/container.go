package app

import (
	"context"
	"fmt"

	"github.com/Nephrolytics-ai/call-auditor/pkg/config"
	"github.com/Nephrolytics-ai/call-auditor/pkg/llms/gemini"
	"github.com/Nephrolytics-ai/call-auditor/pkg/llms/openai"
	"github.com/Nephrolytics-ai/call-auditor/pkg/model"
	"github.com/Nephrolytics-ai/call-auditor/pkg/observability"
	"github.com/Nephrolytics-ai/call-auditor/pkg/selector"
	"github.com/Nephrolytics-ai/call-auditor/pkg/workflow"
)

// Container aggregates the runtime dependencies shared by the CLI, HTTP and
// MCP surfaces.
type Container struct {
	Config   *config.Config
	Provider model.Provider
	Selector *selector.Selector
	// Observability is nil when metrics and tracing are both disabled.
	Observability *observability.Provider
}

func NewContainer(cfg *config.Config) (*Container, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config is required")
	}

	provider, defaults, err := NewProvider(cfg.Provider)
	if err != nil {
		return nil, err
	}
	container := NewContainerWithProvider(cfg, provider, defaults)

	obs, err := observability.Setup(context.Background(), cfg.Observability)
	if err != nil {
		return nil, fmt.Errorf("setup observability: %w", err)
	}
	container.Observability = obs
	return container, nil
}

// NewContainerWithProvider builds a container around an existing provider.
// defaultPriorities apply when the config names none.
func NewContainerWithProvider(cfg *config.Config, provider model.Provider, defaultPriorities []string) *Container {
	priorities := cfg.Provider.Priorities
	if len(priorities) == 0 {
		priorities = defaultPriorities
	}

	var opts []model.GeneratorOption
	if cfg.Provider.BaseURL != "" {
		opts = append(opts, model.WithURL(cfg.Provider.BaseURL))
	}

	return &Container{
		Config:   cfg,
		Provider: provider,
		Selector: selector.New(provider, priorities, opts...),
	}
}

// NewProvider returns the configured provider and its default model priorities.
func NewProvider(cfg config.ProviderConfig) (model.Provider, []string, error) {
	switch cfg.Name {
	case config.ProviderGemini:
		return gemini.NewProvider(cfg.BaseURL), selector.DefaultGeminiPriorities, nil
	case config.ProviderOpenAI:
		return openai.NewProvider(cfg.BaseURL, cfg.AudioModel), selector.DefaultOpenAIPriorities, nil
	default:
		return nil, nil, fmt.Errorf("unknown provider %q", cfg.Name)
	}
}

// NewSession starts a session carrying the configured credential, if any.
func (c *Container) NewSession() *workflow.Session {
	cfg := c.Config
	opts := workflow.Options{
		CacheModelSelection: cfg.Provider.CacheModelSelection,
		TranscriptionPrompt: cfg.Transcription.Prompt,
		AudioKeywords:       cfg.Transcription.Keywords,
		TempDir:             cfg.Transcription.TempDir,
		DefaultReportName:   cfg.Report.DefaultName,
		BaseURL:             cfg.Provider.BaseURL,
	}
	temperature := cfg.Provider.Temperature
	opts.Temperature = &temperature
	if cfg.Provider.MaxTokens > 0 {
		maxTokens := cfg.Provider.MaxTokens
		opts.MaxTokens = &maxTokens
	}

	if c.Observability != nil {
		opts.Recorder = c.Observability
	}

	session := workflow.NewSession(c.Provider, c.Selector, opts)
	if cfg.Provider.APIKey != "" {
		session.SetCredential(cfg.Provider.APIKey)
	}
	return session
}

// Close flushes metrics and traces.
func (c *Container) Close(ctx context.Context) error {
	return c.Observability.Shutdown(ctx)
}

var keyHintURLs = map[string]string{
	config.ProviderGemini: "https://aistudio.google.com/app/apikey",
	config.ProviderOpenAI: "https://platform.openai.com/api-keys",
}

// KeyHintURL is where a user obtains a key for the named provider.
func KeyHintURL(provider string) string {
	return keyHintURLs[provider]
}
