package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/Nephrolytics-ai/call-auditor/pkg/model"
	"github.com/go-viper/mapstructure/v2"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const (
	ProviderGemini = "gemini"
	ProviderOpenAI = "openai"

	envPrefix      = "CALLAUDIT"
	envConfigFile  = "CALLAUDIT_CONFIG_FILE"
	envGeminiKey   = "GEMINI_KEY"
	envOpenAIToken = "OPEN_API_TOKEN"
)

// Config captures the runtime configuration for the auditor.
type Config struct {
	Server        ServerConfig        `mapstructure:"server"`
	Provider      ProviderConfig      `mapstructure:"provider"`
	Transcription TranscriptionConfig `mapstructure:"transcription"`
	Report        ReportConfig        `mapstructure:"report"`
	Logging       LoggingConfig       `mapstructure:"logging"`
	Observability ObservabilityConfig `mapstructure:"observability"`
}

type ServerConfig struct {
	ListenAddr      string        `mapstructure:"listen_addr"`
	BodyLimitMB     int           `mapstructure:"body_limit_mb"`
	// RequestTimeout caps a provider round trip; zero waits for the provider.
	RequestTimeout  time.Duration `mapstructure:"request_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

type ProviderConfig struct {
	Name    string `mapstructure:"name" jsonschema:"enum=gemini,enum=openai"`
	APIKey  string `mapstructure:"api_key"`
	BaseURL string `mapstructure:"base_url"`
	// Priorities are matched as substrings of model names, first match wins.
	// Empty uses the provider's defaults.
	Priorities          []string `mapstructure:"priorities"`
	CacheModelSelection bool     `mapstructure:"cache_model_selection"`
	AudioModel          string   `mapstructure:"audio_model"`
	Temperature         float64  `mapstructure:"temperature" jsonschema:"minimum=0,maximum=2"`
	MaxTokens           int      `mapstructure:"max_tokens" jsonschema:"minimum=0"`
}

type TranscriptionConfig struct {
	Prompt   string               `mapstructure:"prompt"`
	Keywords []model.AudioKeyword `mapstructure:"keywords"`
	TempDir  string               `mapstructure:"temp_dir"`
}

type ReportConfig struct {
	DefaultName string `mapstructure:"default_name"`
	OutputDir   string `mapstructure:"output_dir"`
}

type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format" jsonschema:"enum=text,enum=json"`
}

type ObservabilityConfig struct {
	EnableMetrics bool   `mapstructure:"enable_metrics"`
	EnableOTLP    bool   `mapstructure:"enable_otlp"`
	OTLPEndpoint  string `mapstructure:"otlp_endpoint"`
}

// Options controls the config loader behavior.
type Options struct {
	ConfigFile string
	EnvFile    string
}

// Load returns the merged configuration sourced from YAML and environment variables.
func Load(opts Options) (*Config, error) {
	if opts.EnvFile != "" {
		_ = godotenv.Load(opts.EnvFile)
	} else {
		_ = godotenv.Load()
	}

	v := viper.New()
	setDefaults(v)

	explicitFile := false
	if opts.ConfigFile != "" {
		v.SetConfigFile(opts.ConfigFile)
		explicitFile = true
	} else if cfg := os.Getenv(envConfigFile); cfg != "" {
		v.SetConfigFile(cfg)
		explicitFile = true
	}

	if !explicitFile {
		v.SetConfigName("callaudit")
		v.AddConfigPath(".")
		v.AddConfigPath("./config")
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	var cfg Config
	hooks := mapstructure.ComposeDecodeHookFunc(
		mapstructure.StringToTimeDurationHookFunc(),
		mapstructure.StringToSliceHookFunc(","),
	)
	if err := v.Unmarshal(&cfg, viper.DecodeHook(hooks)); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate fills derived values and rejects settings the auditor cannot run with.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.Server.ListenAddr) == "" {
		return fmt.Errorf("server.listen_addr must be provided")
	}
	if c.Server.BodyLimitMB <= 0 {
		return fmt.Errorf("server.body_limit_mb must be > 0")
	}
	if c.Server.RequestTimeout < 0 {
		return fmt.Errorf("server.request_timeout must be >= 0")
	}
	if c.Server.ShutdownTimeout <= 0 {
		c.Server.ShutdownTimeout = 5 * time.Second
	}

	if err := c.Provider.validate(); err != nil {
		return err
	}

	for i, kw := range c.Transcription.Keywords {
		if strings.TrimSpace(kw.Word) == "" {
			return fmt.Errorf("transcription.keywords[%d].word must be provided", i)
		}
	}

	if strings.TrimSpace(c.Report.DefaultName) == "" {
		c.Report.DefaultName = "Audit.md"
	}
	if strings.TrimSpace(c.Report.OutputDir) == "" {
		c.Report.OutputDir = "."
	}

	switch strings.ToLower(strings.TrimSpace(c.Logging.Format)) {
	case "", "text":
		c.Logging.Format = "text"
	case "json":
		c.Logging.Format = "json"
	default:
		return fmt.Errorf("logging.format must be text or json, got %q", c.Logging.Format)
	}
	if strings.TrimSpace(c.Logging.Level) == "" {
		c.Logging.Level = "info"
	}

	return nil
}

func (p *ProviderConfig) validate() error {
	p.Name = strings.ToLower(strings.TrimSpace(p.Name))
	switch p.Name {
	case ProviderGemini, ProviderOpenAI:
	default:
		return fmt.Errorf("provider.name must be %q or %q, got %q", ProviderGemini, ProviderOpenAI, p.Name)
	}

	p.APIKey = strings.TrimSpace(p.APIKey)
	if p.APIKey == "" {
		p.APIKey = strings.TrimSpace(os.Getenv(p.fallbackKeyEnv()))
	}

	p.Priorities = normalizeStringSlice(p.Priorities)
	if p.Temperature < 0 || p.Temperature > 2 {
		return fmt.Errorf("provider.temperature must be between 0 and 2")
	}
	if p.MaxTokens < 0 {
		return fmt.Errorf("provider.max_tokens must be >= 0")
	}
	return nil
}

// fallbackKeyEnv is the provider's conventional key variable, read when
// provider.api_key is unset.
func (p *ProviderConfig) fallbackKeyEnv() string {
	if p.Name == ProviderOpenAI {
		return envOpenAIToken
	}
	return envGeminiKey
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.listen_addr", ":8080")
	v.SetDefault("server.body_limit_mb", 50)
	v.SetDefault("server.request_timeout", "0s")
	v.SetDefault("server.shutdown_timeout", "5s")

	v.SetDefault("provider.name", ProviderGemini)
	v.SetDefault("provider.api_key", "")
	v.SetDefault("provider.base_url", "")
	v.SetDefault("provider.priorities", []string{})
	v.SetDefault("provider.cache_model_selection", false)
	v.SetDefault("provider.audio_model", "")
	v.SetDefault("provider.temperature", 0.2)
	v.SetDefault("provider.max_tokens", 0)

	v.SetDefault("transcription.prompt", "")
	v.SetDefault("transcription.temp_dir", "")

	v.SetDefault("report.default_name", "Audit.md")
	v.SetDefault("report.output_dir", ".")

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "text")

	v.SetDefault("observability.enable_metrics", true)
	v.SetDefault("observability.enable_otlp", false)
	v.SetDefault("observability.otlp_endpoint", "http://localhost:4317")
}

func normalizeStringSlice(values []string) []string {
	out := make([]string, 0, len(values))
	for _, v := range values {
		v = strings.TrimSpace(v)
		if v == "" {
			continue
		}
		out = append(out, v)
	}
	return out
}
