package gemini

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/Nephrolytics-ai/call-auditor/pkg/model"
	"github.com/Nephrolytics-ai/call-auditor/pkg/selector"
	"github.com/joho/godotenv"
	"github.com/stretchr/testify/suite"
)

// LiveSuite talks to the real Gemini API. It loads SETTINGS_FILE (default
// $HOME/.env) and skips unless GEMINI_KEY is set.
type LiveSuite struct {
	suite.Suite
	apiKey   string
	baseURL  string
	provider *Provider
}

func TestLiveSuite(t *testing.T) {
	suite.Run(t, new(LiveSuite))
}

func (s *LiveSuite) SetupSuite() {
	settingsFile := strings.TrimSpace(os.Getenv("SETTINGS_FILE"))
	explicit := settingsFile != ""
	if !explicit {
		if home, err := os.UserHomeDir(); err == nil {
			settingsFile = filepath.Join(home, ".env")
		}
	}
	if settingsFile != "" {
		if _, err := os.Stat(settingsFile); err == nil {
			s.Require().NoError(godotenv.Overload(settingsFile))
		} else if explicit || !errors.Is(err, os.ErrNotExist) {
			s.Require().NoError(err)
		}
	}

	s.apiKey = strings.TrimSpace(os.Getenv("GEMINI_KEY"))
	s.baseURL = strings.TrimSpace(os.Getenv("GEMINI_BASE_URL"))
	if s.apiKey == "" {
		s.T().Skip("GEMINI_KEY is not set; skipping live Gemini tests")
	}
	s.provider = NewProvider(s.baseURL)
}

func (s *LiveSuite) TestSelectsGenerationModel() {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	selected, err := selector.New(s.provider, selector.DefaultGeminiPriorities).Resolve(ctx, s.apiKey)
	s.Require().NoError(err)
	s.NotEmpty(selected)
}

func (s *LiveSuite) TestGenerateWithSelectedModel() {
	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
	defer cancel()

	selected, err := selector.New(s.provider, selector.DefaultGeminiPriorities).Resolve(ctx, s.apiKey)
	s.Require().NoError(err)

	text, meta, err := s.provider.Generate(ctx, "Reply with the single word: ready",
		model.WithAuthToken(s.apiKey),
		model.WithModel(selected),
		model.WithMaxTokens(64),
	)
	s.Require().NoError(err)
	s.NotEmpty(strings.TrimSpace(text))
	s.Equal(providerName, meta[model.MetadataKeyProvider])
	s.NotEmpty(meta[model.MetadataKeyLatencyMs])
}

func (s *LiveSuite) TestRejectedKeyIsClassified() {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	_, err := s.provider.ListModels(ctx, model.WithAuthToken("not-a-real-key"))
	s.Require().Error(err)
	s.ErrorIs(err, model.ErrCredentialRejected)
}
