package main

import (
	"context"
	"encoding/json"
	"flag"
	"os"
	"os/signal"

	"chapter-relay/internal/bootstrap"
	"chapter-relay/internal/config"
	"chapter-relay/internal/pipeline"
	"chapter-relay/pkg/logger"
)

func main() {
	var configPath, provider, model, lang, instruction, credential string
	var parallel int

	flag.StringVar(&configPath, "config", "", "Path to config file (default: RELAY_CONFIG_PATH or ~/.config/chapter-relay/config.yaml)")
	flag.StringVar(&provider, "provider", "", "Provider to use (default: resolved at startup)")
	flag.StringVar(&model, "model", "", "Model override")
	flag.StringVar(&lang, "lang", "", "Target language override")
	flag.StringVar(&instruction, "instruction", "", "Instruction override")
	flag.StringVar(&credential, "credential", "", "Provider credential (default: configured default credential)")
	flag.IntVar(&parallel, "parallel", 4, "Maximum concurrent generations")
	flag.Parse()

	files := flag.Args()
	if len(files) == 0 {
		logger.Fatal("Please pass at least one text file")
	}

	var cfg *config.Config
	var err error
	if configPath != "" {
		cfg, err = config.LoadFrom(configPath)
	} else {
		cfg, err = config.Load()
	}
	if err != nil {
		logger.Fatalf("Failed to load config: %v", err)
	}
	logger.Configure(os.Stderr, cfg.Log.Level, cfg.Log.Format)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	app, err := bootstrap.Build(ctx, cfg)
	if err != nil {
		logger.Fatalf("Failed to wire providers: %v", err)
	}

	results := RunBatch(ctx, app.Orchestrator, files, pipeline.GenerationRequest{
		Provider:       provider,
		Model:          model,
		TargetLanguage: lang,
		Instruction:    instruction,
		Credential:     credential,
	}, parallel)

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(results); err != nil {
		logger.Fatalf("Failed to write results: %v", err)
	}
	for _, r := range results {
		if r.Error != nil {
			os.Exit(1)
		}
	}
}
