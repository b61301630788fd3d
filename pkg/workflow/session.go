// Package workflow drives a single audit session: an uploaded artifact is
// turned into a transcript, and the transcript into an audit report.
//
// A Session moves Idle -> TranscriptReady -> AnalysisReady. Observing an
// artifact whose name differs from the current one clears the transcript and
// the analysis before anything else can run, so a report is never shown
// against the wrong upload. A Session is not safe for concurrent use; callers
// serialize access.
package workflow

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/Nephrolytics-ai/call-auditor/pkg/logging"
	"github.com/Nephrolytics-ai/call-auditor/pkg/model"
	"github.com/Nephrolytics-ai/call-auditor/pkg/prompt"
	"github.com/Nephrolytics-ai/call-auditor/pkg/utils"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

type State string

const (
	StateIdle            State = "idle"
	StateTranscriptReady State = "transcript_ready"
	StateAnalysisReady   State = "analysis_ready"
)

const (
	StepTranscript = "transcript"
	StepAnalysis   = "analysis"

	outcomeOK = "ok"
)

var tracer = otel.Tracer("call-auditor/workflow")

const (
	reportPrefix      = "Audit_"
	reportExtension   = ".md"
	DefaultReportName = "Audit.md"
)

// SessionState is everything the two steps and the reset rule mutate.
type SessionState struct {
	CurrentArtifactID string
	Transcript        string
	Analysis          string
}

func (s SessionState) State() State {
	switch {
	case s.Transcript != "" && s.Analysis != "":
		return StateAnalysisReady
	case s.Transcript != "":
		return StateTranscriptReady
	default:
		return StateIdle
	}
}

// ModelResolver picks the model for the next provider call.
type ModelResolver interface {
	Resolve(ctx context.Context, credential string) (string, error)
}

// StepRecorder receives the outcome of every step. outcome is "ok" or the
// failure kind.
type StepRecorder interface {
	RecordStep(ctx context.Context, step, provider, outcome string, duration time.Duration)
	RecordTokens(ctx context.Context, provider, modelName string, meta model.GenerationMetadata)
}

type Options struct {
	// CacheModelSelection keeps the resolved model until the artifact or the
	// credential changes. Off by default: every call re-resolves.
	CacheModelSelection bool
	TranscriptionPrompt string
	AudioKeywords       []model.AudioKeyword
	Temperature         *float64
	MaxTokens           *int
	// TempDir holds audio bytes for the duration of a transcription call.
	// Empty means os.TempDir().
	TempDir           string
	DefaultReportName string
	BaseURL           string
	Recorder          StepRecorder
}

// StepResult describes a successful step.
type StepResult struct {
	Model    string
	Message  string
	Metadata model.GenerationMetadata
}

type Session struct {
	id       string
	provider model.Provider
	resolver ModelResolver
	opts     Options

	credential  string
	artifact    *model.Artifact
	state       SessionState
	cachedModel string
	lastModel   string
}

func NewSession(provider model.Provider, resolver ModelResolver, opts Options) *Session {
	if strings.TrimSpace(opts.DefaultReportName) == "" {
		opts.DefaultReportName = DefaultReportName
	}
	return &Session{
		id:       uuid.NewString(),
		provider: provider,
		resolver: resolver,
		opts:     opts,
	}
}

func (s *Session) ID() string {
	return s.id
}

// SetCredential replaces the API key held for this session.
func (s *Session) SetCredential(credential string) {
	credential = strings.TrimSpace(credential)
	if credential != s.credential {
		s.cachedModel = ""
	}
	s.credential = credential
}

// Credential is the key the next provider call will use.
func (s *Session) Credential() string {
	return s.credential
}

func (s *Session) HasCredential() bool {
	return s.credential != ""
}

// Observe records artifact as the current upload. When its name differs from
// the previous one the transcript and analysis are cleared first. It reports
// whether a reset happened.
func (s *Session) Observe(ctx context.Context, artifact *model.Artifact) bool {
	if artifact == nil {
		return false
	}

	reset := artifact.Name != s.state.CurrentArtifactID
	if reset {
		s.state = SessionState{CurrentArtifactID: artifact.Name}
		s.cachedModel = ""
		s.lastModel = ""
		logging.NewLogger(s.context(ctx)).Infof("artifact=%q kind=%s session reset", artifact.Name, artifact.Kind)
	}
	s.artifact = artifact
	return reset
}

func (s *Session) Artifact() *model.Artifact {
	return s.artifact
}

func (s *Session) State() State {
	return s.state.State()
}

// Snapshot returns a copy of the session state.
func (s *Session) Snapshot() SessionState {
	return s.state
}

// Model is the model used by the last successful step, if any.
func (s *Session) Model() string {
	return s.lastModel
}

// ExtractTranscript runs step one. Text artifacts are decoded locally; audio
// goes through the provider. On failure the session stays Idle.
func (s *Session) ExtractTranscript(ctx context.Context) (result *StepResult, err error) {
	ctx, span := tracer.Start(s.context(ctx), "workflow.extract_transcript")
	start := time.Now()
	defer func() { s.finishStep(ctx, span, StepTranscript, start, result, err) }()
	log := logging.NewLogger(ctx)

	if s.artifact == nil {
		return nil, model.NewFailure(model.KindPrecondition, errors.New("upload a file before extracting a transcript"))
	}
	span.SetAttributes(attribute.String("callaudit.artifact_kind", string(s.artifact.Kind)))

	var transcript string
	switch s.artifact.Kind {
	case model.ArtifactKindText:
		transcript, result, err = s.decodeTextArtifact()
	case model.ArtifactKindAudio:
		transcript, result, err = s.transcribeAudioArtifact(ctx)
	default:
		err = model.NewFailure(model.KindTranscription, fmt.Errorf("unsupported artifact kind %q", s.artifact.Kind))
	}
	if err != nil {
		log.Errorf("artifact=%q transcript extraction failed: %v", s.artifact.Name, err)
		return nil, err
	}

	// A fresh transcript invalidates any report built from an earlier one.
	s.state.Transcript = transcript
	s.state.Analysis = ""
	if result.Model != "" {
		s.lastModel = result.Model
	}

	log.Infof("artifact=%q transcript_chars=%d model=%q", s.artifact.Name, len(s.state.Transcript), result.Model)
	return result, nil
}

func (s *Session) decodeTextArtifact() (string, *StepResult, error) {
	text, err := DecodeText(s.artifact.Content)
	if err != nil {
		return "", nil, model.NewFailure(model.KindTranscription, utils.WrapIfNotNil(err))
	}
	if strings.TrimSpace(text) == "" {
		return "", nil, model.NewFailure(model.KindTranscription, errors.New("the text file is empty"))
	}
	return text, &StepResult{
		Message:  fmt.Sprintf("Loaded transcript from %s", s.artifact.Name),
		Metadata: model.GenerationMetadata{},
	}, nil
}

func (s *Session) transcribeAudioArtifact(ctx context.Context) (string, *StepResult, error) {
	modelName, err := s.resolveModel(ctx)
	if err != nil {
		return "", nil, err
	}

	var (
		transcript string
		meta       model.GenerationMetadata
	)
	err = withTempArtifact(ctx, s.opts.TempDir, s.artifact, func(path string) error {
		var callErr error
		transcript, meta, callErr = s.provider.Transcribe(ctx, path, model.AudioOptions{
			URL:       s.opts.BaseURL,
			AuthToken: s.credential,
			Model:     modelName,
			Prompt:    s.opts.TranscriptionPrompt,
			Keywords:  s.opts.AudioKeywords,
		})
		return callErr
	})
	if err != nil {
		return "", nil, stepFailure(model.KindTranscription, err)
	}
	if strings.TrimSpace(transcript) == "" {
		return "", nil, model.NewFailure(model.KindTranscription, errors.New("the provider returned an empty transcript"))
	}

	return transcript, &StepResult{
		Model:    modelName,
		Message:  fmt.Sprintf("Success! Connected via %s", modelName),
		Metadata: meta,
	}, nil
}

// RunAnalysis runs step two against the current transcript. Re-running in
// AnalysisReady recomputes and overwrites the report. On failure the session
// keeps its transcript and any previous analysis is left as it was.
func (s *Session) RunAnalysis(ctx context.Context) (result *StepResult, err error) {
	ctx, span := tracer.Start(s.context(ctx), "workflow.run_analysis")
	start := time.Now()
	defer func() { s.finishStep(ctx, span, StepAnalysis, start, result, err) }()
	log := logging.NewLogger(ctx)

	if s.state.Transcript == "" {
		return nil, model.NewFailure(model.KindPrecondition, errors.New("extract a transcript before running the analysis"))
	}

	rendered, err := prompt.RenderAnalysis(s.state.Transcript)
	if err != nil {
		return nil, model.NewFailure(model.KindAnalysis, err)
	}

	modelName, err := s.resolveModel(ctx)
	if err != nil {
		return nil, err
	}

	opts := []model.GeneratorOption{
		model.WithAuthToken(s.credential),
		model.WithModel(modelName),
	}
	if s.opts.BaseURL != "" {
		opts = append(opts, model.WithURL(s.opts.BaseURL))
	}
	if s.opts.Temperature != nil {
		opts = append(opts, model.WithTemperature(*s.opts.Temperature))
	}
	if s.opts.MaxTokens != nil {
		opts = append(opts, model.WithMaxTokens(*s.opts.MaxTokens))
	}

	analysis, meta, err := s.provider.Generate(ctx, rendered, opts...)
	if err != nil {
		log.Errorf("analysis failed: %v", err)
		return nil, stepFailure(model.KindAnalysis, err)
	}
	if strings.TrimSpace(analysis) == "" {
		return nil, model.NewFailure(model.KindAnalysis, errors.New("the provider returned an empty analysis"))
	}

	s.state.Analysis = analysis
	s.lastModel = modelName
	log.Infof("artifact=%q analysis_chars=%d model=%q", s.state.CurrentArtifactID, len(analysis), modelName)

	return &StepResult{
		Model:    modelName,
		Message:  "Audit complete",
		Metadata: meta,
	}, nil
}

// ReportFileName is the download name for the analysis:
// Audit_<artifact name>.md, or the default name without an artifact.
func (s *Session) ReportFileName() string {
	return ReportFileName(s.state.CurrentArtifactID, s.opts.DefaultReportName)
}

// Report returns the download name and content, or ok=false before analysis.
func (s *Session) Report() (name string, content string, ok bool) {
	if s.state.Analysis == "" {
		return "", "", false
	}
	return s.ReportFileName(), s.state.Analysis, true
}

func ReportFileName(artifactName string, fallback string) string {
	artifactName = strings.TrimSpace(artifactName)
	if artifactName == "" {
		if strings.TrimSpace(fallback) == "" {
			return DefaultReportName
		}
		return fallback
	}
	return reportPrefix + artifactName + reportExtension
}

func (s *Session) resolveModel(ctx context.Context) (string, error) {
	if s.opts.CacheModelSelection && s.cachedModel != "" {
		return s.cachedModel, nil
	}

	modelName, err := s.resolver.Resolve(ctx, s.credential)
	if err != nil {
		if _, ok := model.AsFailure(err); ok {
			return "", err
		}
		return "", model.NewFailure(model.KindProviderUnavailable, err)
	}

	if s.opts.CacheModelSelection {
		s.cachedModel = modelName
	}
	return modelName, nil
}

func (s *Session) finishStep(ctx context.Context, span trace.Span, step string, start time.Time, result *StepResult, err error) {
	defer span.End()

	outcome := outcomeOK
	if err != nil {
		outcome = "error"
		if failure, ok := model.AsFailure(err); ok {
			outcome = string(failure.Kind)
		}
		span.RecordError(err)
		span.SetStatus(codes.Error, outcome)
	} else {
		span.SetAttributes(attribute.String("callaudit.model", result.Model))
		span.SetStatus(codes.Ok, "")
	}

	if s.opts.Recorder == nil {
		return
	}
	provider := s.providerName()
	s.opts.Recorder.RecordStep(ctx, step, provider, outcome, time.Since(start))
	if err == nil && result.Model != "" {
		s.opts.Recorder.RecordTokens(ctx, provider, result.Model, result.Metadata)
	}
}

func (s *Session) providerName() string {
	if s.provider == nil {
		return ""
	}
	return s.provider.Name()
}

func (s *Session) context(ctx context.Context) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	if logging.SessionIDFromContext(ctx) == "" {
		ctx = logging.WithSessionID(ctx, s.id)
	}
	return ctx
}

// stepFailure maps a provider error to the failure kind of the step, except
// that a rejected key is always reported as a credential failure.
func stepFailure(kind model.FailureKind, err error) *model.Failure {
	if errors.Is(err, model.ErrCredentialRejected) {
		return model.NewFailure(model.KindCredential, err)
	}
	return model.NewFailure(kind, err)
}
