// Package ollama implements the local model server provider. Completions are
// requested as a stream and reassembled line by line.
package ollama

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/tidwall/gjson"

	"chapter-relay/internal/fragments"
	"chapter-relay/internal/providers"
	"chapter-relay/pkg/logger"
	"chapter-relay/pkg/metrics"
)

const (
	DefaultBaseURL = "http://localhost:11434"
	DefaultModel   = "llama3"
	// ProbeTimeout bounds the startup reachability check.
	ProbeTimeout = time.Second
)

// SuggestedModels is offered when the server reports no installed models.
var SuggestedModels = []string{"llama3", "mistral", "phi3"}

// NoModelsNote accompanies SuggestedModels.
const NoModelsNote = "No models found — install one via 'ollama pull llama3'"

type Provider struct {
	opts providers.Options
}

func NewProvider(opts providers.Options) *Provider {
	return &Provider{opts: opts}
}

func (p *Provider) Name() string             { return providers.KindOllama }
func (p *Provider) RequiresCredential() bool { return false }

type chatRequest struct {
	Model    string              `json:"model"`
	Messages []providers.Message `json:"messages"`
	Stream   bool                `json:"stream"`
	Options  map[string]any      `json:"options,omitempty"`
}

// Complete posts to /api/chat with streaming on and assembles the fragments.
// Malformed lines are skipped; a stream that only reports errors fails.
func (p *Provider) Complete(ctx context.Context, req *providers.Request) (string, error) {
	body := chatRequest{
		Model:    p.opts.ResolveModel(req.Model, DefaultModel),
		Messages: req.Messages,
		Stream:   true,
	}
	if req.Temperature != nil {
		body.Options = map[string]any{"temperature": *req.Temperature}
	}

	resp, err := providers.PostJSON(ctx, p.opts.Client(), p.opts.Base(DefaultBaseURL)+"/api/chat", nil, body)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	text, stats, err := fragments.AssembleFunc(fragments.Fragments(resp.Body), func(e *fragments.ParseError) {
		logger.Debug("skipping malformed stream line", "provider", p.Name(), "line", e.Line, "error", e)
	})
	metrics.StreamFragmentsTotal.WithLabelValues("accepted").Add(float64(stats.Accepted))
	metrics.StreamFragmentsTotal.WithLabelValues("skipped").Add(float64(stats.Skipped))
	metrics.StreamFragmentsTotal.WithLabelValues("upstream_error").Add(float64(len(stats.UpstreamErrors)))
	if err != nil {
		return "", fmt.Errorf("reading ollama stream: %w", err)
	}
	if text == "" && len(stats.UpstreamErrors) > 0 {
		return "", fmt.Errorf("ollama: %s", strings.Join(stats.UpstreamErrors, "; "))
	}
	return text, nil
}

// ListModels returns the installed model names from /api/tags.
func (p *Provider) ListModels(ctx context.Context, _ string) ([]string, error) {
	body, err := providers.GetBody(ctx, p.opts.Client(), p.opts.Base(DefaultBaseURL)+"/api/tags", nil)
	if err != nil {
		return nil, err
	}
	var names []string
	for _, n := range gjson.GetBytes(body, "models.#.name").Array() {
		names = append(names, n.String())
	}
	return names, nil
}

// Probe reports whether a local model server answers /api/tags at baseURL
// within ProbeTimeout.
func Probe(ctx context.Context, baseURL string) bool {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	ctx, cancel := context.WithTimeout(ctx, ProbeTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, strings.TrimRight(baseURL, "/")+"/api/tags", nil)
	if err != nil {
		return false
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		logger.Debug("local model server probe failed", "url", baseURL, "error", err)
		return false
	}
	resp.Body.Close()
	return resp.StatusCode == http.StatusOK
}
