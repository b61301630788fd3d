package gemini

import (
	"context"
	"errors"
	"strings"

	"github.com/Nephrolytics-ai/call-auditor/pkg/logging"
	"github.com/Nephrolytics-ai/call-auditor/pkg/model"
	"github.com/Nephrolytics-ai/call-auditor/pkg/utils"
	"google.golang.org/genai"
)

const generateContentAction = "generateContent"

// ListModels returns every model visible to the credential, in API order.
func (p *Provider) ListModels(ctx context.Context, opts ...model.GeneratorOption) ([]model.ModelDescriptor, error) {
	log := logging.NewLogger(ctx)
	cfg := p.withDefaults(model.ResolveGeneratorOpts(opts...))

	client, err := newAPIClient(ctx, cfg)
	if err != nil {
		log.Errorf("error: %v", err)
		return nil, utils.WrapIfNotNil(err)
	}

	page, err := client.Models.List(ctx, &genai.ListModelsConfig{})
	if err != nil {
		log.Errorf("error: %v", err)
		return nil, utils.WrapIfNotNil(classifyError(err))
	}

	descriptors := make([]model.ModelDescriptor, 0, len(page.Items))
	for {
		for _, item := range page.Items {
			if item == nil {
				continue
			}
			descriptors = append(descriptors, toDescriptor(item))
		}

		page, err = page.Next(ctx)
		if errors.Is(err, genai.ErrPageDone) {
			break
		}
		if err != nil {
			log.Errorf("error: %v", err)
			return nil, utils.WrapIfNotNil(classifyError(err))
		}
	}

	log.Debugf("gemini.ListModels count=%d", len(descriptors))
	return descriptors, nil
}

func toDescriptor(m *genai.Model) model.ModelDescriptor {
	return model.ModelDescriptor{
		Name:               m.Name,
		DisplayName:        m.DisplayName,
		Description:        m.Description,
		SupportsGeneration: supportsGeneration(m.SupportedActions),
	}
}

func supportsGeneration(actions []string) bool {
	for _, action := range actions {
		if strings.EqualFold(strings.TrimSpace(action), generateContentAction) {
			return true
		}
	}
	return false
}
