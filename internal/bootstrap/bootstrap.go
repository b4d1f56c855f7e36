// Package bootstrap turns a loaded Config into a ready orchestrator.
package bootstrap

import (
	"context"
	"fmt"

	"chapter-relay/internal/config"
	"chapter-relay/internal/extract"
	"chapter-relay/internal/pipeline"
	"chapter-relay/internal/providers"
	"chapter-relay/internal/providers/gemini"
	"chapter-relay/internal/providers/ollama"
	"chapter-relay/internal/providers/openai"
	"chapter-relay/internal/providers/openrouter"
	"chapter-relay/pkg/logger"
	"chapter-relay/pkg/strategy"
)

// App is everything the binaries need from a Config.
type App struct {
	Orchestrator *pipeline.Orchestrator
	Dispatcher   *providers.Dispatcher
	// LocalProbe checks the local model server; it always reports false when
	// the local provider is disabled.
	LocalProbe func(ctx context.Context) bool
}

// Build wires providers, strategies and the orchestrator from cfg. The local
// model server is probed once to pick the default provider.
func Build(ctx context.Context, cfg *config.Config) (*App, error) {
	filter, err := strategy.NewModelFilter(cfg.Strategy.ModelFilter)
	if err != nil {
		return nil, err
	}
	mode, err := extract.ParseMode(cfg.Generation.ExtractionMode)
	if err != nil {
		return nil, err
	}
	example, err := pipeline.LoadExample(cfg.Generation.ExamplePath)
	if err != nil {
		return nil, err
	}

	var ps []providers.Provider
	for _, kind := range providers.Kinds() {
		pc, ok := cfg.Provider(kind)
		if !ok {
			logger.Debug("provider disabled", "provider", kind)
			continue
		}
		opts := providers.Options{
			BaseURL:      pc.BaseURL,
			DefaultModel: pc.DefaultModel,
			Referer:      pc.Referer,
			Timeout:      cfg.RequestTimeout,
		}
		switch kind {
		case providers.KindOpenAI:
			ps = append(ps, openai.NewProvider(opts, filter))
		case providers.KindOpenRouter:
			ps = append(ps, openrouter.NewProvider(opts))
		case providers.KindOllama:
			ps = append(ps, ollama.NewProvider(opts))
		case providers.KindGemini:
			ps = append(ps, gemini.NewProvider(opts))
		}
	}
	if len(ps) == 0 {
		return nil, fmt.Errorf("no provider enabled")
	}
	d := providers.NewDispatcher(ps...)

	probe := func(context.Context) bool { return false }
	if pc, ok := cfg.Provider(providers.KindOllama); ok {
		probe = func(ctx context.Context) bool { return ollama.Probe(ctx, pc.BaseURL) }
	}

	resolver, err := strategy.NewResolver(cfg.Strategy.DefaultProvider)
	if err != nil {
		return nil, err
	}
	env := strategy.Env{
		LocalAvailable: probe(ctx),
		HasCredential:  cfg.DefaultCredential != "",
		Configured:     d.Names(),
	}
	defaultProvider := resolver.Resolve(env)
	if _, err := d.Lookup(defaultProvider); err != nil {
		return nil, fmt.Errorf("default provider %q resolved by %s is not enabled", defaultProvider, resolver.Name())
	}
	logger.Info("default provider resolved",
		"provider", defaultProvider,
		"strategy", resolver.Name(),
		"local_available", env.LocalAvailable,
		"enabled", env.Configured,
	)

	orch := pipeline.New(d, pipeline.Settings{
		DefaultProvider:   defaultProvider,
		DefaultCredential: cfg.DefaultCredential,
		TargetLanguage:    cfg.Generation.TargetLanguage,
		Instruction:       cfg.Generation.Instruction,
		SystemPrompt:      cfg.Generation.SystemPrompt,
		Temperature:       cfg.Generation.Temperature,
		Example:           example,
		Extractor:         extract.Extractor{Mode: mode},
	})
	return &App{Orchestrator: orch, Dispatcher: d, LocalProbe: probe}, nil
}
