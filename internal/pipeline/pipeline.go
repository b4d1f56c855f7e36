// Package pipeline runs one generation request end to end: defaults and
// checks, prompt, provider dispatch, sanitizing and schema validation.
package pipeline

import (
	"context"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"chapter-relay/internal/chapters"
	"chapter-relay/internal/extract"
	"chapter-relay/internal/providers"
	"chapter-relay/internal/providers/ollama"
	"chapter-relay/pkg/apperr"
	"chapter-relay/pkg/logger"
	"chapter-relay/pkg/metrics"
	"chapter-relay/pkg/tracer"
)

// Dispatcher is the provider layer as seen by the orchestrator.
type Dispatcher interface {
	Lookup(name string) (providers.Provider, error)
	Dispatch(ctx context.Context, name string, req *providers.Request) (string, error)
	ListModels(ctx context.Context, name, credential string) ([]string, error)
}

// Settings are the process-wide defaults, fixed at startup.
type Settings struct {
	DefaultProvider   string
	DefaultCredential string
	TargetLanguage    string
	Instruction       string
	SystemPrompt      string
	Temperature       float32
	Example           string
	Extractor         extract.Extractor
}

// Orchestrator is safe for concurrent use; it holds no per-request state.
type Orchestrator struct {
	dispatcher Dispatcher
	settings   Settings
}

func New(d Dispatcher, s Settings) *Orchestrator {
	if s.Example == "" {
		s.Example = strings.TrimSpace(defaultExample)
	}
	if s.Extractor.Mode == "" {
		s.Extractor.Mode = extract.ModeGreedy
	}
	return &Orchestrator{dispatcher: d, settings: s}
}

// DefaultProvider returns the provider used when a request names none.
func (o *Orchestrator) DefaultProvider() string {
	return o.settings.DefaultProvider
}

// ModelList is the response of Models.
type ModelList struct {
	Models   []string `json:"models"`
	Provider string   `json:"provider"`
	Note     string   `json:"note,omitempty"`
}

// Models lists the models of provider (default provider when empty). The
// local provider falls back to a suggestion list when nothing is installed.
func (o *Orchestrator) Models(ctx context.Context, provider, credential string) (*ModelList, error) {
	if provider == "" {
		provider = o.settings.DefaultProvider
	}
	p, err := o.dispatcher.Lookup(provider)
	if err != nil {
		return nil, err
	}
	if credential == "" {
		credential = o.settings.DefaultCredential
	}
	if p.RequiresCredential() && credential == "" {
		return nil, apperr.ErrMissingCredential
	}

	models, err := o.dispatcher.ListModels(ctx, provider, credential)
	if err != nil {
		return nil, err
	}
	out := &ModelList{Models: models, Provider: provider}
	if len(models) == 0 && provider == providers.KindOllama {
		out.Models = append([]string(nil), ollama.SuggestedModels...)
		out.Note = ollama.NoModelsNote
	}
	if out.Models == nil {
		out.Models = []string{}
	}
	return out, nil
}

// Generate runs the full pipeline for req.
func (o *Orchestrator) Generate(ctx context.Context, req GenerationRequest) (col *chapters.Collection, err error) {
	o.applyDefaults(&req)

	ctx, span := tracer.Start(ctx, "pipeline.generate", trace.WithAttributes(
		attribute.String("provider", req.Provider),
		attribute.String("model", req.Model),
	))
	start := time.Now()
	defer func() {
		outcome := "ok"
		if err != nil {
			outcome = string(apperr.CodeOf(err))
		}
		metrics.GenerationTotal.WithLabelValues(req.Provider, outcome).Inc()
		tracer.End(span, err)
		logger.Info("generation finished", "provider", req.Provider, "model", req.Model,
			"outcome", outcome, "elapsed", time.Since(start))
	}()

	// Received
	if err := req.check(); err != nil {
		return nil, err
	}
	p, err := o.dispatcher.Lookup(req.Provider)
	if err != nil {
		return nil, err
	}
	if p.RequiresCredential() && req.Credential == "" {
		return nil, apperr.ErrMissingCredential
	}

	// PromptBuilt
	var messages []providers.Message
	err = o.stage(ctx, "prompt", func(context.Context) error {
		var berr error
		messages, berr = buildMessages(o.settings.SystemPrompt, o.settings.Example, &req)
		return berr
	})
	if err != nil {
		return nil, apperr.Wrap(err, apperr.CodeInternal, "failed to build prompt")
	}
	logger.Debug("dispatching", "provider", req.Provider, "model", req.Model,
		"instruction", truncate(req.Instruction, 80))

	// Dispatched
	var raw string
	err = o.stage(ctx, "dispatch", func(ctx context.Context) error {
		var derr error
		raw, derr = o.dispatcher.Dispatch(ctx, req.Provider, &providers.Request{
			Model:       req.Model,
			Messages:    messages,
			Credential:  req.Credential,
			Temperature: providers.Float32(o.settings.Temperature),
		})
		return derr
	})
	if err != nil {
		return nil, err
	}
	logger.Debug("raw model output", "provider", req.Provider, "raw", raw)

	// Sanitized
	var cleaned string
	err = o.stage(ctx, "sanitize", func(context.Context) error {
		var serr error
		cleaned, serr = o.settings.Extractor.Extract(raw)
		return serr
	})
	if err != nil {
		return nil, err
	}
	logger.Debug("cleaned model output", "cleaned", cleaned)

	// Validated
	err = o.stage(ctx, "validate", func(context.Context) error {
		var verr error
		col, verr = chapters.Validate(cleaned)
		return verr
	})
	if err != nil {
		return nil, err
	}
	return col, nil
}

func (o *Orchestrator) applyDefaults(req *GenerationRequest) {
	req.normalize()
	if req.TargetLanguage == "" {
		req.TargetLanguage = o.settings.TargetLanguage
	}
	if req.Instruction == "" {
		req.Instruction = o.settings.Instruction
	}
	if req.Provider == "" {
		req.Provider = o.settings.DefaultProvider
	}
	if req.Credential == "" {
		req.Credential = o.settings.DefaultCredential
	}
}

// stage runs fn inside a span and records its duration.
func (o *Orchestrator) stage(ctx context.Context, name string, fn func(context.Context) error) error {
	ctx, span := tracer.Start(ctx, "pipeline."+name)
	start := time.Now()
	err := fn(ctx)
	metrics.ObserveStage(name, start)
	tracer.End(span, err)
	return err
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "..."
}
