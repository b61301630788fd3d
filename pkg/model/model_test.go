package model

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/suite"
)

type ModelSuite struct {
	suite.Suite
}

func TestModelSuite(t *testing.T) {
	suite.Run(t, new(ModelSuite))
}

func (s *ModelSuite) TestNewArtifactClassifiesByExtension() {
	cases := map[string]ArtifactKind{
		"call1.txt": ArtifactKindText,
		"call1.WAV": ArtifactKindAudio,
		"notes.mp3": ArtifactKindAudio,
		"memo.m4a":  ArtifactKindAudio,
		"a.b.c.txt": ArtifactKindText,
	}
	for name, want := range cases {
		artifact, err := NewArtifact(name, []byte("x"))
		s.Require().NoError(err, name)
		s.Equal(want, artifact.Kind, name)
		s.Equal(name, artifact.Name)
	}
}

func (s *ModelSuite) TestNewArtifactRejectsUnsupportedExtension() {
	_, err := NewArtifact("report.pdf", nil)
	s.Require().Error(err)
	s.Contains(err.Error(), "unsupported file type")
}

func (s *ModelSuite) TestAudioMIMEType() {
	for name, want := range map[string]string{
		"call.m4a":     "audio/mp4",
		"call.MP3":     "audio/mpeg",
		"dir/call.wav": "audio/wav",
	} {
		mimeType, err := AudioMIMEType(name)
		s.Require().NoError(err, name)
		s.Equal(want, mimeType, name)
	}

	_, err := AudioMIMEType("call.txt")
	s.Require().Error(err)
	s.Contains(err.Error(), "unsupported audio")

	_, err = AudioMIMEType("call.ogg")
	s.Require().Error(err)
}

func (s *ModelSuite) TestNewArtifactRequiresName() {
	_, err := NewArtifact("  ", []byte("x"))
	s.Require().Error(err)
}

func (s *ModelSuite) TestNewArtifactCopiesContent() {
	content := []byte("hello")
	artifact, err := NewArtifact("call.txt", content)
	s.Require().NoError(err)

	content[0] = 'j'
	s.Equal("hello", string(artifact.Content))
}

func (s *ModelSuite) TestResolveGeneratorOpts() {
	cfg := ResolveGeneratorOpts(
		WithAuthToken("key"),
		WithURL("http://localhost"),
		WithModel("models/gemini-1.5-flash"),
		WithTemperature(0.2),
		WithMaxTokens(512),
		nil,
	)

	s.Equal("key", cfg.AuthToken)
	s.Equal("http://localhost", cfg.URL)
	s.Require().NotNil(cfg.Model)
	s.Equal("models/gemini-1.5-flash", *cfg.Model)
	s.Require().NotNil(cfg.Temperature)
	s.InDelta(0.2, *cfg.Temperature, 1e-9)
	s.Require().NotNil(cfg.MaxTokens)
	s.Equal(512, *cfg.MaxTokens)
}

func (s *ModelSuite) TestFailureDiagnosticsAreDistinct() {
	credential := NewFailure(KindCredential, ErrCredentialRejected)
	noModels := NewFailure(KindNoModels, errors.New("empty"))

	s.Contains(credential.Diagnostic(), "API key")
	s.Contains(noModels.Diagnostic(), "no content-generation models")
	s.NotEqual(credential.Diagnostic(), noModels.Diagnostic())

	missing := NewFailure(KindCredential, ErrCredentialMissing)
	s.Contains(missing.Diagnostic(), "Enter an API key")
	s.NotEqual(credential.Diagnostic(), missing.Diagnostic())
}

func (s *ModelSuite) TestFailureAddsRateLimitHint() {
	err := fmt.Errorf("%w: 429 quota exceeded", ErrRateLimited)
	failure := NewFailure(KindTranscription, err)

	s.True(failure.RateLimited())
	s.Contains(failure.Diagnostic(), "429 quota exceeded")
	s.Contains(failure.Diagnostic(), "rate limiting")
}

func (s *ModelSuite) TestAsFailureThroughWrapping() {
	wrapped := fmt.Errorf("outer: %w", NewFailure(KindAnalysis, errors.New("boom")))

	failure, ok := AsFailure(wrapped)
	s.Require().True(ok)
	s.Equal(KindAnalysis, failure.Kind)
	s.Equal("Analysis failed: boom", Diagnostic(wrapped))
	s.Equal("plain", Diagnostic(errors.New("plain")))
	s.Empty(Diagnostic(nil))
}
