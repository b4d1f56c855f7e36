package main

import (
	"context"
	"os"
	"path/filepath"

	"golang.org/x/sync/errgroup"

	"chapter-relay/internal/chapters"
	"chapter-relay/internal/pipeline"
	"chapter-relay/pkg/apperr"
	"chapter-relay/pkg/logger"
)

// Generator is the part of the orchestrator the batch needs.
type Generator interface {
	Generate(ctx context.Context, req pipeline.GenerationRequest) (*chapters.Collection, error)
}

// Result is the outcome for one input file.
type Result struct {
	File       string               `json:"file"`
	Collection *chapters.Collection `json:"collection,omitempty"`
	Error      *ResultError         `json:"error,omitempty"`
}

type ResultError struct {
	Message string `json:"message"`
	Kind    string `json:"kind"`
	Field   string `json:"field,omitempty"`
	Raw     string `json:"raw,omitempty"`
}

// RunBatch generates a collection for every file, at most limit at a time.
// A failing file never stops the others; results keep the input order.
func RunBatch(ctx context.Context, gen Generator, files []string, template pipeline.GenerationRequest, limit int) []Result {
	results := make([]Result, len(files))

	g, ctx := errgroup.WithContext(ctx)
	if limit > 0 {
		g.SetLimit(limit)
	}
	for i, file := range files {
		g.Go(func() error {
			results[i] = generateFile(ctx, gen, file, template)
			return nil
		})
	}
	_ = g.Wait()
	return results
}

func generateFile(ctx context.Context, gen Generator, file string, template pipeline.GenerationRequest) Result {
	res := Result{File: filepath.Base(file)}
	text, err := os.ReadFile(file)
	if err != nil {
		res.Error = &ResultError{Message: err.Error(), Kind: string(apperr.CodeInvalidRequest)}
		return res
	}
	req := template
	req.Text = string(text)

	col, err := gen.Generate(ctx, req)
	if err != nil {
		e := apperr.From(err)
		logger.Warn("generation failed", "file", file, "kind", e.Code, "error", err)
		res.Error = &ResultError{Message: e.Message, Kind: string(e.Code), Field: e.Field, Raw: e.Raw}
		return res
	}
	res.Collection = col
	return res
}
