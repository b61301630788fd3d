package workflow

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/Nephrolytics-ai/call-auditor/pkg/model"
	"github.com/Nephrolytics-ai/call-auditor/pkg/prompt"
	"github.com/Nephrolytics-ai/call-auditor/pkg/selector"
	"github.com/stretchr/testify/suite"
)

type fakeProvider struct {
	models  []model.ModelDescriptor
	listErr error

	transcript    string
	transcribeErr error
	seenPaths     []string
	pathExisted   []bool
	seenAudioOpts []model.AudioOptions

	analysis    string
	generateErr error
	echoPrompt  bool
	prompts     []string
	genConfigs  []model.GeneratorConfig
	listCalls   int
}

func (f *fakeProvider) Name() string { return "fake" }

func (f *fakeProvider) ListModels(_ context.Context, _ ...model.GeneratorOption) ([]model.ModelDescriptor, error) {
	f.listCalls++
	return f.models, f.listErr
}

func (f *fakeProvider) Transcribe(_ context.Context, filePath string, opts model.AudioOptions) (string, model.GenerationMetadata, error) {
	f.seenPaths = append(f.seenPaths, filePath)
	_, err := os.Stat(filePath)
	f.pathExisted = append(f.pathExisted, err == nil)
	f.seenAudioOpts = append(f.seenAudioOpts, opts)
	return f.transcript, model.GenerationMetadata{}, f.transcribeErr
}

func (f *fakeProvider) Generate(_ context.Context, p string, opts ...model.GeneratorOption) (string, model.GenerationMetadata, error) {
	f.prompts = append(f.prompts, p)
	f.genConfigs = append(f.genConfigs, model.ResolveGeneratorOpts(opts...))
	if f.generateErr != nil {
		return "", nil, f.generateErr
	}
	if f.echoPrompt {
		return p, model.GenerationMetadata{}, nil
	}
	return f.analysis, model.GenerationMetadata{}, nil
}

type stepRecord struct {
	step     string
	provider string
	outcome  string
}

type fakeRecorder struct {
	steps  []stepRecord
	tokens []model.GenerationMetadata
}

func (r *fakeRecorder) RecordStep(_ context.Context, step, provider, outcome string, _ time.Duration) {
	r.steps = append(r.steps, stepRecord{step: step, provider: provider, outcome: outcome})
}

func (r *fakeRecorder) RecordTokens(_ context.Context, _, _ string, meta model.GenerationMetadata) {
	r.tokens = append(r.tokens, meta)
}

type SessionSuite struct {
	suite.Suite
	provider *fakeProvider
	session  *Session
	tempDir  string
}

func TestSessionSuite(t *testing.T) {
	suite.Run(t, new(SessionSuite))
}

func (s *SessionSuite) SetupTest() {
	s.tempDir = s.T().TempDir()
	s.provider = &fakeProvider{
		models: []model.ModelDescriptor{
			{Name: "models/gemini-pro", SupportsGeneration: true},
			{Name: "models/gemini-1.5-flash", SupportsGeneration: true},
		},
		transcript: "Agent: Hello, thanks for calling.",
		analysis:   "### Notes\nok",
	}
	s.session = s.newSession(Options{})
}

func (s *SessionSuite) newSession(opts Options) *Session {
	opts.TempDir = s.tempDir
	return NewSession(s.provider, selector.New(s.provider, selector.DefaultGeminiPriorities), opts)
}

func (s *SessionSuite) artifact(name string, content string) *model.Artifact {
	a, err := model.NewArtifact(name, []byte(content))
	s.Require().NoError(err)
	return a
}

func (s *SessionSuite) failureKind(err error) model.FailureKind {
	f, ok := model.AsFailure(err)
	s.Require().True(ok, "expected *model.Failure, got %v", err)
	return f.Kind
}

func (s *SessionSuite) TestStartsIdle() {
	s.Equal(StateIdle, s.session.State())
	s.Equal(SessionState{}, s.session.Snapshot())
	s.NotEmpty(s.session.ID())
	s.Equal(DefaultReportName, s.session.ReportFileName())
}

func (s *SessionSuite) TestTextArtifactHappyPath() {
	ctx := context.Background()
	s.True(s.session.Observe(ctx, s.artifact("call1.txt", "Agent: Hi there.\nCustomer: Hello.")))
	s.session.SetCredential("key")
	s.provider.echoPrompt = true

	result, err := s.session.ExtractTranscript(ctx)
	s.Require().NoError(err)
	s.Empty(result.Model)
	s.Equal(StateTranscriptReady, s.session.State())
	s.Equal("Agent: Hi there.\nCustomer: Hello.", s.session.Snapshot().Transcript)
	s.Zero(s.provider.listCalls)

	result, err = s.session.RunAnalysis(ctx)
	s.Require().NoError(err)
	s.Equal("models/gemini-1.5-flash", result.Model)
	s.Equal(StateAnalysisReady, s.session.State())

	analysis := s.session.Snapshot().Analysis
	for _, header := range []string{prompt.SectionNotes, prompt.SectionStrengths, prompt.SectionAreasToImprove, prompt.SectionMissedOpportunity, prompt.SectionCoachTip} {
		s.Contains(analysis, header)
	}

	name, content, ok := s.session.Report()
	s.True(ok)
	s.Equal("Audit_call1.txt.md", name)
	s.Equal(analysis, content)
}

func (s *SessionSuite) TestTextArtifactNeedsNoCredential() {
	ctx := context.Background()
	s.session.Observe(ctx, s.artifact("call1.txt", "Agent: Hi."))

	_, err := s.session.ExtractTranscript(ctx)
	s.Require().NoError(err)
	s.Equal(StateTranscriptReady, s.session.State())

	_, err = s.session.RunAnalysis(ctx)
	s.Require().Error(err)
	s.Equal(model.KindCredential, s.failureKind(err))
	s.Equal(StateTranscriptReady, s.session.State())
}

func (s *SessionSuite) TestNewArtifactNameResets() {
	ctx := context.Background()
	s.session.SetCredential("key")
	s.session.Observe(ctx, s.artifact("a.txt", "first call"))
	_, err := s.session.ExtractTranscript(ctx)
	s.Require().NoError(err)
	_, err = s.session.RunAnalysis(ctx)
	s.Require().NoError(err)
	s.Equal(StateAnalysisReady, s.session.State())

	s.True(s.session.Observe(ctx, s.artifact("b.wav", "RIFF")))
	s.Equal(SessionState{CurrentArtifactID: "b.wav"}, s.session.Snapshot())
	s.Equal(StateIdle, s.session.State())
	_, _, ok := s.session.Report()
	s.False(ok)
}

func (s *SessionSuite) TestSameArtifactNameKeepsState() {
	ctx := context.Background()
	s.session.Observe(ctx, s.artifact("a.txt", "first call"))
	_, err := s.session.ExtractTranscript(ctx)
	s.Require().NoError(err)

	s.False(s.session.Observe(ctx, s.artifact("a.txt", "first call")))
	s.Equal("first call", s.session.Snapshot().Transcript)
	s.False(s.session.Observe(ctx, nil))
	s.Equal(StateTranscriptReady, s.session.State())
}

func (s *SessionSuite) TestAudioTranscriptionUsesSelectedModelAndRemovesTempFile() {
	ctx := context.Background()
	s.session.SetCredential("key")
	s.session.Observe(ctx, s.artifact("call.mp3", "ID3-bytes"))

	result, err := s.session.ExtractTranscript(ctx)
	s.Require().NoError(err)
	s.Equal("models/gemini-1.5-flash", result.Model)
	s.Equal("Success! Connected via models/gemini-1.5-flash", result.Message)
	s.Equal(StateTranscriptReady, s.session.State())
	s.Equal(s.provider.transcript, s.session.Snapshot().Transcript)
	s.Equal("models/gemini-1.5-flash", s.session.Model())

	s.Require().Len(s.provider.seenPaths, 1)
	s.True(s.provider.pathExisted[0])
	s.Equal(".mp3", filepath.Ext(s.provider.seenPaths[0]))
	s.NoFileExists(s.provider.seenPaths[0])
	s.Equal("key", s.provider.seenAudioOpts[0].AuthToken)
	s.Equal("models/gemini-1.5-flash", s.provider.seenAudioOpts[0].Model)
}

func (s *SessionSuite) TestTranscriptionFailureStaysIdleAndRemovesTempFile() {
	ctx := context.Background()
	s.session.SetCredential("key")
	s.session.Observe(ctx, s.artifact("call.wav", "RIFF"))
	s.provider.transcribeErr = errors.New("upload failed")

	_, err := s.session.ExtractTranscript(ctx)
	s.Require().Error(err)
	s.Equal(model.KindTranscription, s.failureKind(err))
	s.Equal(StateIdle, s.session.State())

	s.Require().Len(s.provider.seenPaths, 1)
	s.NoFileExists(s.provider.seenPaths[0])

	entries, err := os.ReadDir(s.tempDir)
	s.Require().NoError(err)
	s.Empty(entries)
}

func (s *SessionSuite) TestTranscriptionRateLimitKeepsHint() {
	ctx := context.Background()
	s.session.SetCredential("key")
	s.session.Observe(ctx, s.artifact("call.wav", "RIFF"))
	s.provider.transcribeErr = errors.Join(model.ErrRateLimited, errors.New("429"))

	_, err := s.session.ExtractTranscript(ctx)
	s.Require().Error(err)
	f, ok := model.AsFailure(err)
	s.Require().True(ok)
	s.Equal(model.KindTranscription, f.Kind)
	s.True(f.RateLimited())
	s.Contains(f.Diagnostic(), "rate limiting")
}

func (s *SessionSuite) TestRejectedKeyDuringTranscriptionIsCredentialFailure() {
	ctx := context.Background()
	s.session.SetCredential("key")
	s.session.Observe(ctx, s.artifact("call.wav", "RIFF"))
	s.provider.transcribeErr = errors.Join(model.ErrCredentialRejected, errors.New("401"))

	_, err := s.session.ExtractTranscript(ctx)
	s.Equal(model.KindCredential, s.failureKind(err))
}

func (s *SessionSuite) TestAudioWithoutCredential() {
	ctx := context.Background()
	s.session.Observe(ctx, s.artifact("call.wav", "RIFF"))

	_, err := s.session.ExtractTranscript(ctx)
	s.Equal(model.KindCredential, s.failureKind(err))
	s.Zero(s.provider.listCalls)
	s.Empty(s.provider.seenPaths)
}

func (s *SessionSuite) TestNoModels() {
	ctx := context.Background()
	s.provider.models = []model.ModelDescriptor{{Name: "models/embedding-001"}}
	s.session.SetCredential("key")
	s.session.Observe(ctx, s.artifact("call.wav", "RIFF"))

	_, err := s.session.ExtractTranscript(ctx)
	s.Equal(model.KindNoModels, s.failureKind(err))
	s.Empty(s.provider.seenPaths)
}

func (s *SessionSuite) TestProviderUnavailable() {
	ctx := context.Background()
	s.provider.listErr = errors.New("dial tcp: connection refused")
	s.session.SetCredential("key")
	s.session.Observe(ctx, s.artifact("call.wav", "RIFF"))

	_, err := s.session.ExtractTranscript(ctx)
	s.Equal(model.KindProviderUnavailable, s.failureKind(err))
}

func (s *SessionSuite) TestAnalysisFailureKeepsTranscript() {
	ctx := context.Background()
	s.session.SetCredential("key")
	s.session.Observe(ctx, s.artifact("call1.txt", "Agent: Hi."))
	_, err := s.session.ExtractTranscript(ctx)
	s.Require().NoError(err)

	s.provider.generateErr = errors.New("deadline exceeded")
	_, err = s.session.RunAnalysis(ctx)
	s.Require().Error(err)
	s.Equal(model.KindAnalysis, s.failureKind(err))
	s.Equal(StateTranscriptReady, s.session.State())
	s.Equal("Agent: Hi.", s.session.Snapshot().Transcript)
	s.Empty(s.session.Snapshot().Analysis)
}

func (s *SessionSuite) TestAnalysisBeforeTranscriptIsPrecondition() {
	_, err := s.session.RunAnalysis(context.Background())
	s.Equal(model.KindPrecondition, s.failureKind(err))
	s.Empty(s.provider.prompts)
}

func (s *SessionSuite) TestExtractWithoutArtifactIsPrecondition() {
	_, err := s.session.ExtractTranscript(context.Background())
	s.Equal(model.KindPrecondition, s.failureKind(err))
}

func (s *SessionSuite) TestRerunAnalysisOverwrites() {
	ctx := context.Background()
	s.session.SetCredential("key")
	s.session.Observe(ctx, s.artifact("call1.txt", "Agent: Hi."))
	_, err := s.session.ExtractTranscript(ctx)
	s.Require().NoError(err)

	_, err = s.session.RunAnalysis(ctx)
	s.Require().NoError(err)
	s.provider.analysis = "### Notes\nsecond"
	_, err = s.session.RunAnalysis(ctx)
	s.Require().NoError(err)
	s.Equal("### Notes\nsecond", s.session.Snapshot().Analysis)
	s.Len(s.provider.prompts, 2)
	s.Equal(s.provider.prompts[0], s.provider.prompts[1])
}

func (s *SessionSuite) TestAnalysisPassesGenerationOptions() {
	ctx := context.Background()
	temp := 0.2
	tokens := 4096
	session := s.newSession(Options{Temperature: &temp, MaxTokens: &tokens})
	session.SetCredential("key")
	session.Observe(ctx, s.artifact("call1.txt", "Agent: Hi."))
	_, err := session.ExtractTranscript(ctx)
	s.Require().NoError(err)

	_, err = session.RunAnalysis(ctx)
	s.Require().NoError(err)
	s.Require().Len(s.provider.genConfigs, 1)
	cfg := s.provider.genConfigs[0]
	s.Equal("key", cfg.AuthToken)
	s.Require().NotNil(cfg.Model)
	s.Equal("models/gemini-1.5-flash", *cfg.Model)
	s.Require().NotNil(cfg.Temperature)
	s.InDelta(0.2, *cfg.Temperature, 1e-9)
	s.Require().NotNil(cfg.MaxTokens)
	s.Equal(4096, *cfg.MaxTokens)
}

func (s *SessionSuite) TestModelSelectionIsResolvedPerCall() {
	ctx := context.Background()
	s.session.SetCredential("key")
	s.session.Observe(ctx, s.artifact("call.wav", "RIFF"))
	_, err := s.session.ExtractTranscript(ctx)
	s.Require().NoError(err)
	_, err = s.session.RunAnalysis(ctx)
	s.Require().NoError(err)
	s.Equal(2, s.provider.listCalls)
}

func (s *SessionSuite) TestCachedModelSelection() {
	ctx := context.Background()
	session := s.newSession(Options{CacheModelSelection: true})
	session.SetCredential("key")
	session.Observe(ctx, s.artifact("call.wav", "RIFF"))
	_, err := session.ExtractTranscript(ctx)
	s.Require().NoError(err)
	_, err = session.RunAnalysis(ctx)
	s.Require().NoError(err)
	s.Equal(1, s.provider.listCalls)

	session.SetCredential("other-key")
	_, err = session.RunAnalysis(ctx)
	s.Require().NoError(err)
	s.Equal(2, s.provider.listCalls)
}

func (s *SessionSuite) TestInvalidUTF8TextFails() {
	ctx := context.Background()
	a := &model.Artifact{Name: "bad.txt", Kind: model.ArtifactKindText, Content: []byte{0xC3, 0x28, 0xA0, 0xA1}}
	s.session.Observe(ctx, a)

	_, err := s.session.ExtractTranscript(ctx)
	s.Equal(model.KindTranscription, s.failureKind(err))
	s.Equal(StateIdle, s.session.State())
}

func (s *SessionSuite) TestEmptyTextFails() {
	ctx := context.Background()
	s.session.Observe(ctx, s.artifact("empty.txt", "  \n"))

	_, err := s.session.ExtractTranscript(ctx)
	s.Equal(model.KindTranscription, s.failureKind(err))
}

func (s *SessionSuite) TestReportFileName() {
	s.Equal("Audit_call1.txt.md", ReportFileName("call1.txt", ""))
	s.Equal("Audit_meeting.mp3.md", ReportFileName("meeting.mp3", DefaultReportName))
	s.Equal("Audit.md", ReportFileName("", ""))
	s.Equal("Report.md", ReportFileName("  ", "Report.md"))
}

func (s *SessionSuite) TestDecodeTextStripsBOM() {
	text, err := DecodeText([]byte("\xEF\xBB\xBFAgent: Hi."))
	s.Require().NoError(err)
	s.Equal("Agent: Hi.", text)

	text, err = DecodeText([]byte{0xFF, 0xFE, 'H', 0x00, 'i', 0x00})
	s.Require().NoError(err)
	s.Equal("Hi", text)
}

func (s *SessionSuite) TestRecorderSeesEveryStepOutcome() {
	ctx := context.Background()
	recorder := &fakeRecorder{}
	session := s.newSession(Options{Recorder: recorder})

	_, err := session.RunAnalysis(ctx)
	s.Require().Error(err)

	session.Observe(ctx, s.artifact("call.mp3", "ID3"))
	_, err = session.ExtractTranscript(ctx)
	s.Require().Error(err)

	session.SetCredential("key")
	_, err = session.ExtractTranscript(ctx)
	s.Require().NoError(err)
	_, err = session.RunAnalysis(ctx)
	s.Require().NoError(err)

	s.Equal([]stepRecord{
		{step: StepAnalysis, provider: "fake", outcome: string(model.KindPrecondition)},
		{step: StepTranscript, provider: "fake", outcome: string(model.KindCredential)},
		{step: StepTranscript, provider: "fake", outcome: "ok"},
		{step: StepAnalysis, provider: "fake", outcome: "ok"},
	}, recorder.steps)
	s.Len(recorder.tokens, 2)
}
