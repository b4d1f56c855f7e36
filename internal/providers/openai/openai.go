// Package openai implements the OpenAI provider on top of the eino chat
// model, so any OpenAI-compatible endpoint can be targeted by base URL.
package openai

import (
	"context"
	"errors"
	"strings"

	einoopenai "github.com/cloudwego/eino-ext/components/model/openai"
	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
	"github.com/tidwall/gjson"

	"chapter-relay/internal/providers"
	"chapter-relay/pkg/apperr"
	"chapter-relay/pkg/strategy"
)

const (
	// DefaultModel is used when neither the request nor the configuration
	// names a model.
	DefaultModel   = "gpt-4o-mini"
	DefaultBaseURL = "https://api.openai.com/v1"
)

// ModelFactory builds the chat model for one call. The credential differs per
// request, so a model is never shared between calls.
type ModelFactory func(ctx context.Context, cfg *einoopenai.ChatModelConfig) (model.BaseChatModel, error)

func newEinoModel(ctx context.Context, cfg *einoopenai.ChatModelConfig) (model.BaseChatModel, error) {
	cm, err := einoopenai.NewChatModel(ctx, cfg)
	if err != nil {
		return nil, err
	}
	return cm, nil
}

// Provider implements providers.Provider for OpenAI.
type Provider struct {
	opts     providers.Options
	filter   *strategy.ModelFilter
	newModel ModelFactory
}

// NewProvider creates the provider. filter narrows ListModels; nil keeps all.
func NewProvider(opts providers.Options, filter *strategy.ModelFilter) *Provider {
	return &Provider{opts: opts, filter: filter, newModel: newEinoModel}
}

// WithModelFactory replaces how chat models are built.
func (p *Provider) WithModelFactory(f ModelFactory) *Provider {
	p.newModel = f
	return p
}

func (p *Provider) Name() string             { return providers.KindOpenAI }
func (p *Provider) RequiresCredential() bool { return true }

// Complete performs a single synchronous chat completion.
func (p *Provider) Complete(ctx context.Context, req *providers.Request) (string, error) {
	if req.Credential == "" {
		return "", apperr.ErrMissingCredential
	}
	cfg := &einoopenai.ChatModelConfig{
		APIKey:      req.Credential,
		BaseURL:     p.opts.Base(DefaultBaseURL),
		Model:       p.opts.ResolveModel(req.Model, DefaultModel),
		Temperature: req.Temperature,
		Timeout:     p.opts.Timeout,
	}
	cm, err := p.newModel(ctx, cfg)
	if err != nil {
		return "", err
	}

	out, err := cm.Generate(ctx, toSchema(req.Messages))
	if err != nil {
		return "", err
	}
	if out == nil {
		return "", errors.New("openai returned no message")
	}
	return strings.TrimSpace(out.Content), nil
}

// ListModels lists {base}/models, applies the filter and sorts.
func (p *Provider) ListModels(ctx context.Context, credential string) ([]string, error) {
	if credential == "" {
		return nil, apperr.ErrMissingCredential
	}
	body, err := providers.GetBody(ctx, p.opts.Client(), p.opts.Base(DefaultBaseURL)+"/models", providers.Bearer(credential))
	if err != nil {
		return nil, err
	}
	var ids []string
	for _, id := range gjson.GetBytes(body, "data.#.id").Array() {
		ids = append(ids, id.String())
	}
	return p.filter.Apply(ids), nil
}

func toSchema(msgs []providers.Message) []*schema.Message {
	out := make([]*schema.Message, 0, len(msgs))
	for _, m := range msgs {
		switch m.Role {
		case providers.RoleSystem:
			out = append(out, schema.SystemMessage(m.Content))
		case providers.RoleAssistant:
			out = append(out, schema.AssistantMessage(m.Content, nil))
		default:
			out = append(out, schema.UserMessage(m.Content))
		}
	}
	return out
}
