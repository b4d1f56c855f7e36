package main

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"chapter-relay/internal/chapters"
	"chapter-relay/internal/pipeline"
	"chapter-relay/pkg/apperr"
)

type fakeGenerator struct {
	mu       sync.Mutex
	seen     []pipeline.GenerationRequest
	inFlight atomic.Int32
	peak     atomic.Int32
}

func (f *fakeGenerator) Generate(_ context.Context, req pipeline.GenerationRequest) (*chapters.Collection, error) {
	n := f.inFlight.Add(1)
	defer f.inFlight.Add(-1)
	for {
		p := f.peak.Load()
		if n <= p || f.peak.CompareAndSwap(p, n) {
			break
		}
	}
	time.Sleep(10 * time.Millisecond)

	f.mu.Lock()
	f.seen = append(f.seen, req)
	f.mu.Unlock()

	if strings.Contains(req.Text, "fail") {
		return nil, apperr.ErrNoJSONFound.WithRaw("nothing here")
	}
	return chapters.NewCollection(chapters.Chapter{
		Name:            strings.TrimSpace(req.Text),
		PrimaryLanguage: "en",
		Topics:          []chapters.Topic{},
	}), nil
}

func writeInputs(t *testing.T, texts ...string) []string {
	t.Helper()
	dir := t.TempDir()
	var files []string
	for i, text := range texts {
		p := filepath.Join(dir, string(rune('a'+i))+".txt")
		require.NoError(t, os.WriteFile(p, []byte(text), 0o644))
		files = append(files, p)
	}
	return files
}

func TestRunBatch_KeepsOrderAndIsolatesFailures(t *testing.T) {
	files := writeInputs(t, "one", "fail please", "three")
	files = append(files, filepath.Join(t.TempDir(), "missing.txt"))
	gen := &fakeGenerator{}

	results := RunBatch(context.Background(), gen, files, pipeline.GenerationRequest{TargetLanguage: "de"}, 2)
	require.Len(t, results, 4)

	assert.Equal(t, "a.txt", results[0].File)
	require.NotNil(t, results[0].Collection)
	assert.Equal(t, "one", results[0].Collection.Chapters[0].Name)

	require.NotNil(t, results[1].Error)
	assert.Equal(t, "no_json_found", results[1].Error.Kind)
	assert.Equal(t, "nothing here", results[1].Error.Raw)
	assert.Nil(t, results[1].Collection)

	assert.Equal(t, "three", results[2].Collection.Chapters[0].Name)

	require.NotNil(t, results[3].Error)
	assert.Equal(t, "invalid_request", results[3].Error.Kind)

	require.Len(t, gen.seen, 3)
	for _, req := range gen.seen {
		assert.Equal(t, "de", req.TargetLanguage)
	}
}

func TestRunBatch_RespectsLimit(t *testing.T) {
	files := writeInputs(t, "a", "b", "c", "d", "e", "f")
	gen := &fakeGenerator{}

	results := RunBatch(context.Background(), gen, files, pipeline.GenerationRequest{}, 2)
	assert.Len(t, results, 6)
	assert.LessOrEqual(t, gen.peak.Load(), int32(2))
}
