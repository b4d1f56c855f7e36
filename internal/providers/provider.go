package providers

import (
	"context"
	"net/http"
	"strings"
	"time"
)

// Provider identifiers. The set is closed: anything else is rejected before
// any network call.
const (
	KindOpenAI     = "openai"
	KindOpenRouter = "openrouter"
	KindOllama     = "ollama"
	KindGemini     = "gemini"
)

// Kinds lists every supported provider identifier.
func Kinds() []string {
	return []string{KindOpenAI, KindOpenRouter, KindOllama, KindGemini}
}

const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Message is one prompt message.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Request is a single completion call.
type Request struct {
	Model       string
	Messages    []Message
	Credential  string
	Temperature *float32
}

// Provider abstracts the underlying LLM vendor.
type Provider interface {
	// Name returns the provider's identifier (e.g. "openai", "ollama")
	Name() string

	// RequiresCredential reports whether Complete needs req.Credential.
	RequiresCredential() bool

	// Complete performs one completion and returns the full response text.
	// Streaming providers reassemble the stream before returning.
	Complete(ctx context.Context, req *Request) (string, error)

	// ListModels returns the model identifiers available upstream.
	ListModels(ctx context.Context, credential string) ([]string, error)
}

// Options configures a provider instance.
type Options struct {
	BaseURL      string
	DefaultModel string
	// Referer is sent as HTTP-Referer where the upstream asks for it.
	Referer string
	// Timeout bounds each outbound call, including reading a streamed body.
	Timeout time.Duration
	// HTTPClient overrides the client built from Timeout.
	HTTPClient *http.Client
}

// Client returns the HTTP client for o.
func (o Options) Client() *http.Client {
	if o.HTTPClient != nil {
		return o.HTTPClient
	}
	return &http.Client{Timeout: o.Timeout}
}

// Base returns o.BaseURL without a trailing slash, or def when unset.
func (o Options) Base(def string) string {
	if o.BaseURL == "" {
		return def
	}
	return strings.TrimRight(o.BaseURL, "/")
}

// ResolveModel returns reqModel if non-empty, otherwise the configured
// default or fallback.
func (o Options) ResolveModel(reqModel, fallback string) string {
	if reqModel != "" {
		return reqModel
	}
	if o.DefaultModel != "" {
		return o.DefaultModel
	}
	return fallback
}

// Float32 returns a pointer to f.
func Float32(f float32) *float32 { return &f }
