package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/Nephrolytics-ai/call-auditor/pkg/app"
	"github.com/Nephrolytics-ai/call-auditor/pkg/logging"
	"github.com/Nephrolytics-ai/call-auditor/pkg/model"
	"github.com/Nephrolytics-ai/call-auditor/pkg/utils"
	"github.com/Nephrolytics-ai/call-auditor/pkg/workflow"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
)

const (
	serverName    = "call-auditor"
	serverVersion = "1.0.0"

	ToolListModels        = "list_models"
	ToolSetAPIKey         = "set_api_key"
	ToolLoadArtifact      = "load_artifact"
	ToolExtractTranscript = "extract_transcript"
	ToolRunAnalysis       = "run_analysis"
	ToolSessionState      = "session_state"
)

// ToolServer exposes one audit session as MCP tools.
type ToolServer struct {
	container *app.Container

	mu      sync.Mutex
	session *workflow.Session
	mcp     *server.MCPServer
}

func NewToolServer(container *app.Container) (*ToolServer, error) {
	if container == nil || container.Config == nil {
		return nil, utils.WrapIfNotNil(errors.New("container with config is required"))
	}

	t := &ToolServer{
		container: container,
		session:   container.NewSession(),
	}
	t.mcp = server.NewMCPServer(
		serverName,
		serverVersion,
		server.WithToolCapabilities(false),
		server.WithRecovery(),
	)
	t.registerTools()
	return t, nil
}

// MCPServer returns the underlying server, for stdio or in-process transports.
func (t *ToolServer) MCPServer() *server.MCPServer {
	return t.mcp
}

// ServeStdio blocks serving MCP over stdin/stdout.
func (t *ToolServer) ServeStdio() error {
	return utils.WrapIfNotNil(server.ServeStdio(t.mcp))
}

func (t *ToolServer) registerTools() {
	t.mcp.AddTool(mcp.NewTool(ToolListModels,
		mcp.WithDescription("List the provider's models and show which one the auditor would use."),
	), t.listModels)

	t.mcp.AddTool(mcp.NewTool(ToolSetAPIKey,
		mcp.WithDescription("Set the provider API key for this session."),
		mcp.WithString("api_key", mcp.Required(), mcp.Description("Provider API key")),
	), t.setAPIKey)

	t.mcp.AddTool(mcp.NewTool(ToolLoadArtifact,
		mcp.WithDescription("Load a call recording (.wav, .mp3, .m4a) or transcript (.txt) from disk. A file with a new name resets the session."),
		mcp.WithString("path", mcp.Required(), mcp.Description("Path to the file")),
	), t.loadArtifact)

	t.mcp.AddTool(mcp.NewTool(ToolExtractTranscript,
		mcp.WithDescription("Step 1: turn the loaded file into a transcript."),
	), t.extractTranscript)

	t.mcp.AddTool(mcp.NewTool(ToolRunAnalysis,
		mcp.WithDescription("Step 2: audit the transcript and return the markdown report."),
	), t.runAnalysis)

	t.mcp.AddTool(mcp.NewTool(ToolSessionState,
		mcp.WithDescription("Show the session state, transcript and analysis."),
	), t.sessionState)
}

type stateView struct {
	ID            string         `json:"id"`
	State         workflow.State `json:"state"`
	HasCredential bool           `json:"has_credential"`
	ArtifactName  string         `json:"artifact_name,omitempty"`
	Transcript    string         `json:"transcript,omitempty"`
	Analysis      string         `json:"analysis,omitempty"`
	Model         string         `json:"model,omitempty"`
	ReportName    string         `json:"report_name,omitempty"`
}

func (t *ToolServer) listModels(ctx context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	t.mu.Lock()
	credential := t.session.Credential()
	ctx = logging.WithSessionID(ctx, t.session.ID())
	t.mu.Unlock()

	listing, err := t.container.Selector.List(ctx, credential)
	if err != nil {
		return failureResult(ctx, err), nil
	}

	var b strings.Builder
	for _, m := range modelLines(listing.Models, listing.Selected) {
		b.WriteString(m)
		b.WriteString("\n")
	}
	return mcp.NewToolResultText(strings.TrimRight(b.String(), "\n")), nil
}

func (t *ToolServer) setAPIKey(_ context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	key, err := request.RequireString("api_key")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	t.session.SetCredential(key)
	return mcp.NewToolResultText("API key set"), nil
}

func (t *ToolServer) loadArtifact(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	path, err := request.RequireString("path")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	artifact, err := readArtifact(path)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	ctx = logging.WithSessionID(ctx, t.session.ID())
	if t.session.Observe(ctx, artifact) {
		return mcp.NewToolResultText("Loaded " + artifact.Name + " (" + string(artifact.Kind) + "); session reset"), nil
	}
	return mcp.NewToolResultText("Loaded " + artifact.Name + " (" + string(artifact.Kind) + ")"), nil
}

func (t *ToolServer) extractTranscript(ctx context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	ctx = logging.WithSessionID(ctx, t.session.ID())
	result, err := t.session.ExtractTranscript(ctx)
	if err != nil {
		return failureResult(ctx, err), nil
	}
	return mcp.NewToolResultText(result.Message + "\n\n" + t.session.Snapshot().Transcript), nil
}

func (t *ToolServer) runAnalysis(ctx context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	ctx = logging.WithSessionID(ctx, t.session.ID())
	if _, err := t.session.RunAnalysis(ctx); err != nil {
		return failureResult(ctx, err), nil
	}
	return mcp.NewToolResultText(t.session.Snapshot().Analysis), nil
}

func (t *ToolServer) sessionState(_ context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	state := t.session.Snapshot()
	view := stateView{
		ID:            t.session.ID(),
		State:         state.State(),
		HasCredential: t.session.HasCredential(),
		ArtifactName:  state.CurrentArtifactID,
		Transcript:    state.Transcript,
		Analysis:      state.Analysis,
		Model:         t.session.Model(),
	}
	if name, _, ok := t.session.Report(); ok {
		view.ReportName = name
	}

	payload, err := json.Marshal(view)
	if err != nil {
		return nil, utils.WrapIfNotNil(err)
	}
	return mcp.NewToolResultText(string(payload)), nil
}

// failureResult keeps workflow failures as tool output so the caller sees
// the diagnostic and can retry.
func failureResult(ctx context.Context, err error) *mcp.CallToolResult {
	logging.NewLogger(ctx).Warnf("tool call failed: %v", err)
	return mcp.NewToolResultError(model.Diagnostic(err))
}

func readArtifact(path string) (*model.Artifact, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return nil, utils.WrapIfNotNil(errors.New("path is required"))
	}
	if _, err := model.ArtifactKindFor(path); err != nil {
		return nil, err
	}
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, utils.WrapIfNotNil(err)
	}
	return model.NewArtifact(filepath.Base(path), content)
}

func modelLines(models []model.ModelDescriptor, selected string) []string {
	out := make([]string, 0, len(models))
	for _, m := range models {
		line := m.Name
		if !m.SupportsGeneration {
			line += " (no content generation)"
		}
		if m.Name == selected {
			line = "* " + line
		} else {
			line = "  " + line
		}
		out = append(out, line)
	}
	return out
}
