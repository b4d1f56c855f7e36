// Package openrouter implements the OpenRouter gateway provider over plain
// HTTP.
package openrouter

import (
	"context"
	"errors"
	"io"
	"slices"
	"strings"

	"github.com/tidwall/gjson"

	"chapter-relay/internal/providers"
	"chapter-relay/pkg/apperr"
)

const (
	DefaultBaseURL = "https://openrouter.ai/api/v1"
	DefaultModel   = "gpt-4o-mini"
	DefaultReferer = "https://cruiselearn.app"
)

type Provider struct {
	opts providers.Options
}

func NewProvider(opts providers.Options) *Provider {
	return &Provider{opts: opts}
}

func (p *Provider) Name() string             { return providers.KindOpenRouter }
func (p *Provider) RequiresCredential() bool { return true }

type chatRequest struct {
	Model       string              `json:"model"`
	Messages    []providers.Message `json:"messages"`
	Temperature *float32            `json:"temperature,omitempty"`
}

func (p *Provider) headers(credential string) map[string]string {
	h := providers.Bearer(credential)
	referer := p.opts.Referer
	if referer == "" {
		referer = DefaultReferer
	}
	h["HTTP-Referer"] = referer
	return h
}

// Complete posts to the chat completions endpoint and returns the trimmed
// content of the first choice.
func (p *Provider) Complete(ctx context.Context, req *providers.Request) (string, error) {
	if req.Credential == "" {
		return "", apperr.ErrMissingCredential
	}
	body := chatRequest{
		Model:       p.opts.ResolveModel(req.Model, DefaultModel),
		Messages:    req.Messages,
		Temperature: req.Temperature,
	}
	resp, err := providers.PostJSON(ctx, p.opts.Client(), p.opts.Base(DefaultBaseURL)+"/chat/completions", p.headers(req.Credential), body)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", err
	}
	if !gjson.ValidBytes(data) {
		return "", errors.New("openrouter returned an undecodable body")
	}
	content := gjson.GetBytes(data, "choices.0.message.content")
	if !content.Exists() {
		if msg := gjson.GetBytes(data, "error.message"); msg.Exists() {
			return "", errors.New("openrouter: " + msg.String())
		}
		return "", errors.New("openrouter response has no choices")
	}
	return strings.TrimSpace(content.String()), nil
}

// ListModels returns the gateway's model catalogue, sorted.
func (p *Provider) ListModels(ctx context.Context, credential string) ([]string, error) {
	if credential == "" {
		return nil, apperr.ErrMissingCredential
	}
	body, err := providers.GetBody(ctx, p.opts.Client(), p.opts.Base(DefaultBaseURL)+"/models", p.headers(credential))
	if err != nil {
		return nil, err
	}
	var ids []string
	for _, id := range gjson.GetBytes(body, "data.#.id").Array() {
		ids = append(ids, id.String())
	}
	slices.Sort(ids)
	return ids, nil
}
