package gemini

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/Nephrolytics-ai/call-auditor/pkg/model"
	"github.com/stretchr/testify/suite"
)

type ClientSuite struct {
	suite.Suite
}

func TestClientSuite(t *testing.T) {
	suite.Run(t, new(ClientSuite))
}

func (s *ClientSuite) TestClassifyErrorCredential() {
	err := classifyError(errors.New("Error 400, Message: API key not valid. Please pass a valid API key., Status: INVALID_ARGUMENT"))
	s.ErrorIs(err, model.ErrCredentialRejected)
	s.NotErrorIs(err, model.ErrRateLimited)
}

func (s *ClientSuite) TestClassifyErrorRateLimit() {
	err := classifyError(errors.New("Error 429, Message: You exceeded your current quota, Status: RESOURCE_EXHAUSTED"))
	s.ErrorIs(err, model.ErrRateLimited)
	s.NotErrorIs(err, model.ErrCredentialRejected)
}

func (s *ClientSuite) TestClassifyErrorPassesThroughOthers() {
	base := errors.New("dial tcp: connection refused")
	err := classifyError(base)
	s.Equal(base, err)
	s.Nil(classifyError(nil))
}

func (s *ClientSuite) TestSupportsGeneration() {
	s.True(supportsGeneration([]string{"countTokens", "generateContent"}))
	s.False(supportsGeneration([]string{"embedContent"}))
	s.False(supportsGeneration(nil))
}

func (s *ClientSuite) TestResolveGenerationModelName() {
	s.Equal(defaultGenerationModelName, resolveGenerationModelName(model.GeneratorConfig{}))

	name := "models/gemini-1.5-flash"
	s.Equal(name, resolveGenerationModelName(model.GeneratorConfig{Model: &name}))
}

func (s *ClientSuite) TestBuildGenerateContentConfig() {
	cfg := model.ResolveGeneratorOpts(model.WithTemperature(0.3), model.WithMaxTokens(2048))
	config := buildGenerateContentConfig(cfg)

	s.Require().NotNil(config.Temperature)
	s.InDelta(0.3, float64(*config.Temperature), 1e-6)
	s.Equal(int32(2048), config.MaxOutputTokens)
}

func (s *ClientSuite) TestListModelsMapsCapabilities() {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"models":[
			{"name":"models/gemini-1.5-flash","displayName":"Gemini 1.5 Flash","supportedGenerationMethods":["generateContent","countTokens"]},
			{"name":"models/text-embedding-004","supportedGenerationMethods":["embedContent"]}
		]}`))
	}))
	defer server.Close()

	models, err := NewProvider(server.URL).ListModels(context.Background(), model.WithAuthToken("key"))
	s.Require().NoError(err)
	s.Require().Len(models, 2)
	s.Equal("models/gemini-1.5-flash", models[0].Name)
	s.Equal("Gemini 1.5 Flash", models[0].DisplayName)
	s.True(models[0].SupportsGeneration)
	s.False(models[1].SupportsGeneration)
}

func (s *ClientSuite) TestListModelsRejectedKey() {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"error":{"code":400,"message":"API key not valid. Please pass a valid API key.","status":"INVALID_ARGUMENT"}}`))
	}))
	defer server.Close()

	_, err := NewProvider(server.URL).ListModels(context.Background(), model.WithAuthToken("bad"))
	s.Require().Error(err)
	s.ErrorIs(err, model.ErrCredentialRejected)
}
