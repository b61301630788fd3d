// Package selector picks which provider model serves a session.
//
// The provider's model list changes over time, so the choice is recomputed
// from a fresh listing: keep the models that can generate content, then take
// the first one whose name contains the highest-priority token. When no token
// matches, the first generation-capable model in provider order wins.
package selector

import (
	"context"
	"errors"
	"strings"

	"github.com/Nephrolytics-ai/call-auditor/pkg/logging"
	"github.com/Nephrolytics-ai/call-auditor/pkg/model"
	"github.com/Nephrolytics-ai/call-auditor/pkg/utils"
)

// DefaultGeminiPriorities prefers the high-quota 1.5 flash tier, then any
// flash model, then any pro model.
var DefaultGeminiPriorities = []string{"1.5-flash", "flash", "pro"}

// DefaultOpenAIPriorities mirrors the Gemini ordering for OpenAI model ids.
var DefaultOpenAIPriorities = []string{"gpt-4o-mini", "mini", "gpt-4o"}

// Select returns the model to use from models, or ("", false) when no model
// supports content generation.
func Select(models []model.ModelDescriptor, priorities []string) (string, bool) {
	candidates := Generative(models)
	if len(candidates) == 0 {
		return "", false
	}

	for _, token := range priorities {
		token = strings.ToLower(strings.TrimSpace(token))
		if token == "" {
			continue
		}
		for _, candidate := range candidates {
			if strings.Contains(strings.ToLower(candidate.Name), token) {
				return candidate.Name, true
			}
		}
	}

	return candidates[0].Name, true
}

// Generative filters models to those advertising content generation, keeping
// provider order.
func Generative(models []model.ModelDescriptor) []model.ModelDescriptor {
	out := make([]model.ModelDescriptor, 0, len(models))
	for _, m := range models {
		if !m.SupportsGeneration || strings.TrimSpace(m.Name) == "" {
			continue
		}
		out = append(out, m)
	}
	return out
}

// Selector resolves a model through a live provider listing.
type Selector struct {
	provider   model.Provider
	priorities []string
	baseOpts   []model.GeneratorOption
}

func New(provider model.Provider, priorities []string, opts ...model.GeneratorOption) *Selector {
	return &Selector{
		provider:   provider,
		priorities: append([]string(nil), priorities...),
		baseOpts:   append([]model.GeneratorOption(nil), opts...),
	}
}

func (s *Selector) Priorities() []string {
	return append([]string(nil), s.priorities...)
}

// Listing is the outcome of a successful Resolve, kept for display.
type Listing struct {
	Models   []model.ModelDescriptor
	Selected string
}

// Resolve lists the provider's models with credential and returns the chosen
// model name. Failures are *model.Failure with KindCredential,
// KindProviderUnavailable or KindNoModels.
func (s *Selector) Resolve(ctx context.Context, credential string) (string, error) {
	listing, err := s.List(ctx, credential)
	if err != nil {
		return "", err
	}
	return listing.Selected, nil
}

// List is Resolve that also returns the full listing.
func (s *Selector) List(ctx context.Context, credential string) (*Listing, error) {
	log := logging.NewLogger(ctx)
	if strings.TrimSpace(credential) == "" {
		return nil, model.NewFailure(model.KindCredential, model.ErrCredentialMissing)
	}

	opts := append(append([]model.GeneratorOption(nil), s.baseOpts...), model.WithAuthToken(credential))
	models, err := s.provider.ListModels(ctx, opts...)
	if err != nil {
		log.Errorf("error: %v", err)
		if errors.Is(err, model.ErrCredentialRejected) {
			return nil, model.NewFailure(model.KindCredential, utils.WrapIfNotNil(err))
		}
		return nil, model.NewFailure(model.KindProviderUnavailable, utils.WrapIfNotNil(err))
	}

	selected, ok := Select(models, s.priorities)
	if !ok {
		err = errors.New("no models supporting content generation were returned")
		log.Warnf("provider=%s models=%d error: %v", s.provider.Name(), len(models), err)
		return nil, model.NewFailure(model.KindNoModels, err)
	}

	log.Infof("provider=%s models=%d selected=%q", s.provider.Name(), len(models), selected)
	return &Listing{Models: models, Selected: selected}, nil
}
