package openai

import (
	"context"
	"strings"

	"github.com/Nephrolytics-ai/call-auditor/pkg/logging"
	"github.com/Nephrolytics-ai/call-auditor/pkg/model"
	"github.com/Nephrolytics-ai/call-auditor/pkg/utils"
)

// Model ids that serve chat completions. The listing endpoint carries no
// capability flags, so capability is inferred from the id.
var (
	chatModelPrefixes = []string{"gpt-", "chatgpt-", "o1", "o3", "o4"}
	nonChatMarkers    = []string{"audio", "realtime", "transcribe", "tts", "image", "search", "embedding", "instruct"}
)

// ListModels returns the models visible to the credential, in API order.
func (p *Provider) ListModels(ctx context.Context, opts ...model.GeneratorOption) ([]model.ModelDescriptor, error) {
	log := logging.NewLogger(ctx)
	client := newAPIClient(p.withDefaults(model.ResolveGeneratorOpts(opts...)))

	descriptors := make([]model.ModelDescriptor, 0)
	iter := client.Models.ListAutoPaging(ctx)
	for iter.Next() {
		item := iter.Current()
		descriptors = append(descriptors, model.ModelDescriptor{
			Name:               item.ID,
			Description:        item.OwnedBy,
			SupportsGeneration: supportsChat(item.ID),
		})
	}
	if err := iter.Err(); err != nil {
		log.Errorf("error: %v", err)
		return nil, utils.WrapIfNotNil(classifyError(err))
	}

	log.Debugf("openai.ListModels count=%d", len(descriptors))
	return descriptors, nil
}

func supportsChat(id string) bool {
	id = strings.ToLower(strings.TrimSpace(id))
	for _, marker := range nonChatMarkers {
		if strings.Contains(id, marker) {
			return false
		}
	}
	for _, prefix := range chatModelPrefixes {
		if strings.HasPrefix(id, prefix) {
			return true
		}
	}
	return false
}
