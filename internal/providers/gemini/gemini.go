// Package gemini implements the Google Gemini provider with the genai SDK.
package gemini

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"google.golang.org/genai"

	"chapter-relay/internal/providers"
	"chapter-relay/pkg/apperr"
)

const DefaultModel = "gemini-1.5-flash"

type Provider struct {
	opts providers.Options
}

func NewProvider(opts providers.Options) *Provider {
	return &Provider{opts: opts}
}

func (p *Provider) Name() string             { return providers.KindGemini }
func (p *Provider) RequiresCredential() bool { return true }

func (p *Provider) client(ctx context.Context, credential string) (*genai.Client, error) {
	cfg := &genai.ClientConfig{
		APIKey:     credential,
		Backend:    genai.BackendGeminiAPI,
		HTTPClient: p.opts.Client(),
	}
	if p.opts.BaseURL != "" {
		cfg.HTTPOptions = genai.HTTPOptions{BaseURL: p.opts.Base("")}
	}
	client, err := genai.NewClient(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini client: %w", err)
	}
	return client, nil
}

// mapMessages splits system messages into the system instruction; Gemini
// only knows the "user" and "model" roles.
func mapMessages(msgs []providers.Message) (*genai.Content, []*genai.Content) {
	var (
		system   []string
		contents []*genai.Content
	)
	for _, m := range msgs {
		switch m.Role {
		case providers.RoleSystem:
			system = append(system, m.Content)
			continue
		case providers.RoleAssistant:
			contents = append(contents, &genai.Content{Role: "model", Parts: []*genai.Part{{Text: m.Content}}})
		default:
			contents = append(contents, &genai.Content{Role: "user", Parts: []*genai.Part{{Text: m.Content}}})
		}
	}
	if len(system) == 0 {
		return nil, contents
	}
	return &genai.Content{Parts: []*genai.Part{{Text: strings.Join(system, "\n")}}}, contents
}

// Complete calls GenerateContent and concatenates the first candidate's text
// parts.
func (p *Provider) Complete(ctx context.Context, req *providers.Request) (string, error) {
	if req.Credential == "" {
		return "", apperr.ErrMissingCredential
	}
	client, err := p.client(ctx, req.Credential)
	if err != nil {
		return "", err
	}

	system, contents := mapMessages(req.Messages)
	cfg := &genai.GenerateContentConfig{
		SystemInstruction: system,
		Temperature:       req.Temperature,
	}
	resp, err := client.Models.GenerateContent(ctx, p.opts.ResolveModel(req.Model, DefaultModel), contents, cfg)
	if err != nil {
		return "", err
	}

	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return "", errors.New("gemini returned no candidates")
	}
	cand := resp.Candidates[0]
	if cand.FinishReason == genai.FinishReasonSafety {
		return "", errors.New("gemini blocked the response for safety reasons")
	}
	var b strings.Builder
	for _, part := range cand.Content.Parts {
		if part != nil {
			b.WriteString(part.Text)
		}
	}
	return strings.TrimSpace(b.String()), nil
}

// ListModels pages through Models.List and strips the "models/" prefix.
func (p *Provider) ListModels(ctx context.Context, credential string) ([]string, error) {
	if credential == "" {
		return nil, apperr.ErrMissingCredential
	}
	client, err := p.client(ctx, credential)
	if err != nil {
		return nil, err
	}

	var names []string
	page, err := client.Models.List(ctx, nil)
	for {
		if errors.Is(err, genai.ErrPageDone) {
			break
		}
		if err != nil {
			return nil, err
		}
		for _, m := range page.Items {
			names = append(names, strings.TrimPrefix(m.Name, "models/"))
		}
		if page.NextPageToken == "" {
			break
		}
		page, err = page.Next(ctx)
	}
	return names, nil
}
