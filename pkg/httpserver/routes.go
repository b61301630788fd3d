package httpserver

import (
	"fmt"
	"io"
	"strings"

	"github.com/Nephrolytics-ai/call-auditor/pkg/app"
	"github.com/Nephrolytics-ai/call-auditor/pkg/httpserver/httputil"
	"github.com/Nephrolytics-ai/call-auditor/pkg/logging"
	"github.com/Nephrolytics-ai/call-auditor/pkg/model"
	"github.com/Nephrolytics-ai/call-auditor/pkg/workflow"
	"github.com/gofiber/fiber/v2"
)

const markdownContentType = "text/markdown; charset=utf-8"

type credentialRequest struct {
	APIKey string `json:"api_key"`
}

type sessionView struct {
	ID            string             `json:"id"`
	State         workflow.State     `json:"state"`
	Provider      string             `json:"provider"`
	KeyHintURL    string             `json:"key_hint_url,omitempty"`
	HasCredential bool               `json:"has_credential"`
	ArtifactName  string             `json:"artifact_name,omitempty"`
	ArtifactKind  model.ArtifactKind `json:"artifact_kind,omitempty"`
	Transcript    string             `json:"transcript,omitempty"`
	Analysis      string             `json:"analysis,omitempty"`
	Model         string             `json:"model,omitempty"`
	ReportName    string             `json:"report_name,omitempty"`
}

type stepResponse struct {
	Message string      `json:"message"`
	Model   string      `json:"model,omitempty"`
	Session sessionView `json:"session"`
}

type artifactResponse struct {
	Reset   bool        `json:"reset"`
	Session sessionView `json:"session"`
}

type modelView struct {
	Name               string `json:"name"`
	DisplayName        string `json:"display_name,omitempty"`
	Description        string `json:"description,omitempty"`
	SupportsGeneration bool   `json:"supports_generation"`
	Selected           bool   `json:"selected"`
}

type modelsResponse struct {
	Provider   string      `json:"provider"`
	Priorities []string    `json:"priorities"`
	Selected   string      `json:"selected"`
	Models     []modelView `json:"models"`
}

func (s *Server) registerAPIRoutes(fiberApp *fiber.App) {
	api := fiberApp.Group("/api")
	api.Put("/credential", s.putCredential)
	api.Post("/artifact", s.postArtifact)
	api.Post("/transcript", s.postTranscript)
	api.Post("/analysis", s.postAnalysis)
	api.Get("/session", s.getSession)
	api.Get("/models", s.getModels)
	api.Get("/report", s.getReport)
}

func (s *Server) putCredential(c *fiber.Ctx) error {
	var req credentialRequest
	if err := c.BodyParser(&req); err != nil {
		return httputil.WriteError(c, fiber.StatusBadRequest, "invalid JSON body")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.session.SetCredential(req.APIKey)
	return c.Status(fiber.StatusOK).JSON(s.view())
}

func (s *Server) postArtifact(c *fiber.Ctx) error {
	form, err := c.MultipartForm()
	if err != nil {
		return httputil.WriteError(c, fiber.StatusBadRequest, "multipart form required")
	}
	fileHeaders := form.File["file"]
	if len(fileHeaders) == 0 {
		return httputil.WriteError(c, fiber.StatusBadRequest, "file is required")
	}
	fh := fileHeaders[0]
	src, err := fh.Open()
	if err != nil {
		return httputil.WriteError(c, fiber.StatusBadRequest, "failed to open file")
	}
	defer src.Close()
	data, err := io.ReadAll(src)
	if err != nil {
		return httputil.WriteError(c, fiber.StatusBadRequest, "failed to read file")
	}

	artifact, err := model.NewArtifact(fh.Filename, data)
	if err != nil {
		return httputil.WriteError(c, fiber.StatusUnsupportedMediaType, err.Error())
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	ctx := logging.WithSessionID(c.UserContext(), s.session.ID())
	reset := s.session.Observe(ctx, artifact)
	return c.Status(fiber.StatusOK).JSON(artifactResponse{
		Reset:   reset,
		Session: s.view(),
	})
}

func (s *Server) postTranscript(c *fiber.Ctx) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	ctx, cancel := s.stepContext(c)
	defer cancel()

	result, err := s.session.ExtractTranscript(ctx)
	if err != nil {
		return httputil.WriteFailure(c, err)
	}
	return c.Status(fiber.StatusOK).JSON(stepResponse{
		Message: result.Message,
		Model:   result.Model,
		Session: s.view(),
	})
}

func (s *Server) postAnalysis(c *fiber.Ctx) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	ctx, cancel := s.stepContext(c)
	defer cancel()

	result, err := s.session.RunAnalysis(ctx)
	if err != nil {
		return httputil.WriteFailure(c, err)
	}
	return c.Status(fiber.StatusOK).JSON(stepResponse{
		Message: result.Message,
		Model:   result.Model,
		Session: s.view(),
	})
}

func (s *Server) getSession(c *fiber.Ctx) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	return c.Status(fiber.StatusOK).JSON(s.view())
}

func (s *Server) getModels(c *fiber.Ctx) error {
	s.mu.Lock()
	credential := s.session.Credential()
	s.mu.Unlock()

	ctx, cancel := s.stepContext(c)
	defer cancel()

	listing, err := s.container.Selector.List(ctx, credential)
	if err != nil {
		return httputil.WriteFailure(c, err)
	}

	views := make([]modelView, 0, len(listing.Models))
	for _, m := range listing.Models {
		views = append(views, modelView{
			Name:               m.Name,
			DisplayName:        m.DisplayName,
			Description:        m.Description,
			SupportsGeneration: m.SupportsGeneration,
			Selected:           m.Name == listing.Selected,
		})
	}
	return c.Status(fiber.StatusOK).JSON(modelsResponse{
		Provider:   s.container.Provider.Name(),
		Priorities: s.container.Selector.Priorities(),
		Selected:   listing.Selected,
		Models:     views,
	})
}

func (s *Server) getReport(c *fiber.Ctx) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	name, content, ok := s.session.Report()
	if !ok {
		return httputil.WriteFailure(c, model.NewFailure(model.KindPrecondition, fmt.Errorf("run the analysis before downloading the report")))
	}

	c.Set(fiber.HeaderContentType, markdownContentType)
	c.Set(fiber.HeaderContentDisposition, fmt.Sprintf("attachment; filename=%q", name))
	return c.Status(fiber.StatusOK).SendString(content)
}

func (s *Server) view() sessionView {
	state := s.session.Snapshot()
	providerName := s.container.Provider.Name()
	v := sessionView{
		ID:            s.session.ID(),
		State:         state.State(),
		Provider:      providerName,
		KeyHintURL:    app.KeyHintURL(providerName),
		HasCredential: s.session.HasCredential(),
		ArtifactName:  state.CurrentArtifactID,
		Transcript:    state.Transcript,
		Analysis:      state.Analysis,
		Model:         s.session.Model(),
	}
	if artifact := s.session.Artifact(); artifact != nil {
		v.ArtifactKind = artifact.Kind
	}
	if strings.TrimSpace(state.Analysis) != "" {
		v.ReportName = s.session.ReportFileName()
	}
	return v
}
