package bootstrap

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"chapter-relay/internal/config"
)

func localServer(t *testing.T) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/tags" {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"models":[{"name":"llama3:latest"}]}`))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func withOllama(cfg *config.Config, baseURL string, enabled bool) {
	pc := cfg.Providers["ollama"]
	pc.BaseURL = baseURL
	pc.Enabled = enabled
	cfg.Providers["ollama"] = pc
}

func TestBuild_LocalFirstPrefersReachableOllama(t *testing.T) {
	cfg := config.Default()
	withOllama(cfg, localServer(t).URL, true)

	app, err := Build(context.Background(), cfg)
	require.NoError(t, err)
	assert.Equal(t, "ollama", app.Orchestrator.DefaultProvider())
	assert.True(t, app.LocalProbe(context.Background()))
	assert.Equal(t, []string{"gemini", "ollama", "openai", "openrouter"}, app.Dispatcher.Names())
}

func TestBuild_LocalFirstFallsBack(t *testing.T) {
	cfg := config.Default()
	withOllama(cfg, "http://127.0.0.1:1", true)

	app, err := Build(context.Background(), cfg)
	require.NoError(t, err)
	assert.Equal(t, "openai", app.Orchestrator.DefaultProvider())
	assert.False(t, app.LocalProbe(context.Background()))
}

func TestBuild_DisabledProvidersAreUnsupported(t *testing.T) {
	cfg := config.Default()
	withOllama(cfg, "", false)
	cfg.Providers["gemini"] = config.ProviderConfig{Enabled: false}

	app, err := Build(context.Background(), cfg)
	require.NoError(t, err)
	assert.Equal(t, []string{"openai", "openrouter"}, app.Dispatcher.Names())
	assert.False(t, app.LocalProbe(context.Background()))

	_, err = app.Dispatcher.Lookup("ollama")
	assert.Error(t, err)
}

func TestBuild_ExpressionStrategy(t *testing.T) {
	cfg := config.Default()
	withOllama(cfg, "http://127.0.0.1:1", true)
	cfg.DefaultCredential = "sk-test"
	cfg.Strategy.DefaultProvider = config.ResolutionStrategyConfig{
		Type:       "expression",
		Expression: `LocalAvailable ? "ollama" : (HasCredential ? "openrouter" : "openai")`,
	}

	app, err := Build(context.Background(), cfg)
	require.NoError(t, err)
	assert.Equal(t, "openrouter", app.Orchestrator.DefaultProvider())
}

func TestBuild_Errors(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*config.Config)
	}{
		{"bad filter", func(c *config.Config) { c.Strategy.ModelFilter = "ID +" }},
		{"bad extraction mode", func(c *config.Config) { c.Generation.ExtractionMode = "lazy" }},
		{"missing example", func(c *config.Config) { c.Generation.ExamplePath = "/nonexistent/example.json" }},
		{"unknown strategy", func(c *config.Config) { c.Strategy.DefaultProvider.Type = "random" }},
		{"default not enabled", func(c *config.Config) {
			withOllama(c, "http://127.0.0.1:1", true)
			c.Providers["openai"] = config.ProviderConfig{Enabled: false}
		}},
		{"nothing enabled", func(c *config.Config) {
			for k := range c.Providers {
				c.Providers[k] = config.ProviderConfig{}
			}
		}},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			cfg := config.Default()
			withOllama(cfg, "http://127.0.0.1:1", true)
			tc.mutate(cfg)
			_, err := Build(context.Background(), cfg)
			assert.Error(t, err)
		})
	}
}
