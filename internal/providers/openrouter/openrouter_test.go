package openrouter

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"chapter-relay/internal/providers"
	"chapter-relay/pkg/apperr"
)

func request() *providers.Request {
	return &providers.Request{
		Messages:    []providers.Message{{Role: providers.RoleUser, Content: "hi"}},
		Credential:  "or-key",
		Temperature: providers.Float32(0.2),
	}
}

func TestComplete(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer or-key", r.Header.Get("Authorization"))
		assert.Equal(t, DefaultReferer, r.Header.Get("HTTP-Referer"))

		var body chatRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, DefaultModel, body.Model)
		require.Len(t, body.Messages, 1)
		assert.InDelta(t, 0.2, *body.Temperature, 1e-6)

		_, _ = w.Write([]byte(`{"choices":[{"message":{"role":"assistant","content":"  {\"a\":1} \n"}}]}`))
	}))
	defer srv.Close()

	p := NewProvider(providers.Options{BaseURL: srv.URL})
	got, err := p.Complete(context.Background(), request())
	require.NoError(t, err)
	assert.Equal(t, `{"a":1}`, got)
}

func TestComplete_CustomRefererAndModel(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "https://example.org", r.Header.Get("HTTP-Referer"))
		var body chatRequest
		_ = json.NewDecoder(r.Body).Decode(&body)
		assert.Equal(t, "meta-llama/llama-3-8b", body.Model)
		_, _ = w.Write([]byte(`{"choices":[{"message":{"content":"ok"}}]}`))
	}))
	defer srv.Close()

	p := NewProvider(providers.Options{BaseURL: srv.URL, Referer: "https://example.org"})
	req := request()
	req.Model = "meta-llama/llama-3-8b"
	got, err := p.Complete(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, "ok", got)
}

func TestComplete_Failures(t *testing.T) {
	cases := map[string]http.HandlerFunc{
		"non-2xx": func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusBadGateway)
		},
		"no choices": func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte(`{"error":{"message":"no credits"}}`))
		},
		"garbage": func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte(`<html>`))
		},
	}
	for name, h := range cases {
		t.Run(name, func(t *testing.T) {
			srv := httptest.NewServer(h)
			defer srv.Close()
			_, err := NewProvider(providers.Options{BaseURL: srv.URL}).Complete(context.Background(), request())
			assert.Error(t, err)
		})
	}
}

func TestComplete_Timeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(200 * time.Millisecond)
	}))
	defer srv.Close()

	p := NewProvider(providers.Options{BaseURL: srv.URL, Timeout: 20 * time.Millisecond})
	_, err := p.Complete(context.Background(), request())
	assert.Error(t, err)
}

func TestComplete_MissingCredential(t *testing.T) {
	req := request()
	req.Credential = ""
	_, err := NewProvider(providers.Options{}).Complete(context.Background(), req)
	assert.ErrorIs(t, err, apperr.ErrMissingCredential)
}

func TestListModels(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/models", r.URL.Path)
		_, _ = w.Write([]byte(`{"data":[{"id":"z/model"},{"id":"a/model"}]}`))
	}))
	defer srv.Close()

	got, err := NewProvider(providers.Options{BaseURL: srv.URL}).ListModels(context.Background(), "k")
	require.NoError(t, err)
	assert.Equal(t, []string{"a/model", "z/model"}, got)
}
