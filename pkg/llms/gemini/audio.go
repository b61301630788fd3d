package gemini

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/Nephrolytics-ai/call-auditor/pkg/logging"
	"github.com/Nephrolytics-ai/call-auditor/pkg/model"
	"github.com/Nephrolytics-ai/call-auditor/pkg/prompt"
	"github.com/Nephrolytics-ai/call-auditor/pkg/utils"
	"google.golang.org/genai"
)

// Transcribe uploads the audio at filePath through the Files API and asks the
// model for a verbatim English transcript. The uploaded copy is deleted
// afterwards on a best-effort basis.
func (p *Provider) Transcribe(ctx context.Context, filePath string, opts model.AudioOptions) (string, model.GenerationMetadata, error) {
	start := time.Now()
	modelName := resolveAudioTranscriptionModelName(opts)
	meta := initMetadata(modelName)
	defer setLatencyMetadata(meta, start)

	log := logging.NewLogger(ctx)
	if strings.TrimSpace(filePath) == "" {
		err := errors.New("file path is required")
		log.Errorf("error: %v", err)
		return "", meta, utils.WrapIfNotNil(err)
	}

	mimeType, err := model.AudioMIMEType(filePath)
	if err != nil {
		log.Errorf("error: %v", err)
		return "", meta, utils.WrapIfNotNil(err)
	}

	instruction, err := prompt.RenderTranscription(opts.Prompt, opts.Keywords)
	if err != nil {
		log.Errorf("error: %v", err)
		return "", meta, utils.WrapIfNotNil(err)
	}

	client, err := newAPIClient(ctx, p.withDefaults(audioGeneratorConfigFromOptions(opts)))
	if err != nil {
		log.Errorf("error: %v", err)
		return "", meta, utils.WrapIfNotNil(err)
	}

	uploaded, err := client.Files.UploadFromPath(ctx, filePath, &genai.UploadFileConfig{MIMEType: mimeType})
	if err != nil {
		log.Errorf("error: %v", err)
		return "", meta, utils.WrapIfNotNil(classifyError(err))
	}
	meta[model.MetadataKeyUploadedFile] = uploaded.Name
	defer deleteUploadedFile(ctx, client, uploaded.Name)

	log.Infof("gemini.Transcribe model=%q mime=%q uploaded=%q", modelName, mimeType, uploaded.Name)

	contents := []*genai.Content{
		genai.NewContentFromParts(
			[]*genai.Part{
				genai.NewPartFromText(instruction),
				genai.NewPartFromURI(uploaded.URI, uploaded.MIMEType),
			},
			genai.RoleUser,
		),
	}

	response, err := client.Models.GenerateContent(ctx, modelName, contents, &genai.GenerateContentConfig{})
	if err != nil {
		log.Errorf("error: %v", err)
		return "", meta, utils.WrapIfNotNil(classifyError(err))
	}
	applyGenerateMetadata(meta, response)

	transcript := strings.TrimSpace(response.Text())
	if transcript == "" {
		err = errors.New("transcription response is empty")
		log.Errorf("error: %v", err)
		return "", meta, utils.WrapIfNotNil(err)
	}
	return transcript, meta, nil
}

func deleteUploadedFile(ctx context.Context, client *genai.Client, name string) {
	if strings.TrimSpace(name) == "" {
		return
	}
	if _, err := client.Files.Delete(ctx, name, nil); err != nil {
		logging.NewLogger(ctx).Warnf("gemini uploaded file %q not deleted: %v", name, err)
	}
}

func resolveAudioTranscriptionModelName(opts model.AudioOptions) string {
	if modelName := strings.TrimSpace(opts.Model); modelName != "" {
		return modelName
	}
	return defaultGenerationModelName
}

func audioGeneratorConfigFromOptions(opts model.AudioOptions) model.GeneratorConfig {
	cfg := model.GeneratorConfig{
		URL:       opts.URL,
		AuthToken: opts.AuthToken,
	}
	if modelName := strings.TrimSpace(opts.Model); modelName != "" {
		cfg.Model = &modelName
	}
	return cfg
}
