package pipeline

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"chapter-relay/internal/chapters"
	"chapter-relay/internal/extract"
	"chapter-relay/internal/providers"
	"chapter-relay/pkg/apperr"
)

type fakeProvider struct {
	name     string
	needsKey bool
}

func (f fakeProvider) Name() string             { return f.name }
func (f fakeProvider) RequiresCredential() bool { return f.needsKey }
func (f fakeProvider) Complete(context.Context, *providers.Request) (string, error) {
	return "", errors.New("not used")
}
func (f fakeProvider) ListModels(context.Context, string) ([]string, error) {
	return nil, errors.New("not used")
}

type fakeDispatcher struct {
	reply    string
	err      error
	models   []string
	calls    int
	lastName string
	lastReq  *providers.Request
}

func (d *fakeDispatcher) Lookup(name string) (providers.Provider, error) {
	switch name {
	case providers.KindOllama:
		return fakeProvider{name: name}, nil
	case providers.KindOpenAI, providers.KindOpenRouter:
		return fakeProvider{name: name, needsKey: true}, nil
	}
	return nil, apperr.Newf(apperr.CodeUnsupportedProvider, "Unsupported provider: %s", name)
}

func (d *fakeDispatcher) Dispatch(_ context.Context, name string, req *providers.Request) (string, error) {
	d.calls++
	d.lastName = name
	d.lastReq = req
	return d.reply, d.err
}

func (d *fakeDispatcher) ListModels(context.Context, string, string) ([]string, error) {
	return d.models, d.err
}

func settings() Settings {
	return Settings{
		DefaultProvider: providers.KindOllama,
		TargetLanguage:  "ru",
		Instruction:     "Выбери все глаголы и переведи их",
		SystemPrompt:    "system prompt",
		Temperature:     0.2,
	}
}

const validChapter = `{"name":"Intro","primaryLanguage":"en","topics":[{"primaryText":"run"}]}`

func TestGenerate_HappyPath(t *testing.T) {
	d := &fakeDispatcher{reply: "Sure! ```json\n" + validChapter + "\n``` Enjoy."}
	o := New(d, settings())

	col, err := o.Generate(context.Background(), GenerationRequest{Text: "I run every day."})
	require.NoError(t, err)
	assert.Equal(t, chapters.KindCollection, col.Kind)
	require.Len(t, col.Chapters, 1)
	assert.Equal(t, "Intro", col.Chapters[0].Name)

	assert.Equal(t, providers.KindOllama, d.lastName)
	require.Len(t, d.lastReq.Messages, 2)
	assert.Equal(t, "system prompt", d.lastReq.Messages[0].Content)
	user := d.lastReq.Messages[1].Content
	assert.Contains(t, user, "I run every day.")
	assert.Contains(t, user, "Выбери все глаголы")
	assert.Contains(t, user, "Язык перевода: ru")
	assert.Contains(t, user, `"chapter_collection"`)
	assert.InDelta(t, 0.2, *d.lastReq.Temperature, 1e-6)
}

func TestGenerate_MissingText(t *testing.T) {
	d := &fakeDispatcher{}
	_, err := New(d, settings()).Generate(context.Background(), GenerationRequest{Text: "   "})
	require.ErrorIs(t, err, apperr.ErrMissingField)
	assert.Equal(t, "text", apperr.From(err).Field)
	assert.Zero(t, d.calls)
}

func TestGenerate_MissingCredential(t *testing.T) {
	d := &fakeDispatcher{}
	_, err := New(d, settings()).Generate(context.Background(), GenerationRequest{Text: "x", Provider: "openai"})
	require.ErrorIs(t, err, apperr.ErrMissingCredential)
	assert.Equal(t, 400, apperr.From(err).HTTPStatus())
	assert.Zero(t, d.calls)
}

func TestGenerate_DefaultCredentialFallback(t *testing.T) {
	d := &fakeDispatcher{reply: validChapter}
	s := settings()
	s.DefaultCredential = "sk-default"
	_, err := New(d, s).Generate(context.Background(), GenerationRequest{Text: "x", Provider: "OpenAI"})
	require.NoError(t, err)
	assert.Equal(t, "sk-default", d.lastReq.Credential)
	assert.Equal(t, providers.KindOpenAI, d.lastName)
}

func TestGenerate_UnsupportedProviderNeverDispatches(t *testing.T) {
	d := &fakeDispatcher{}
	_, err := New(d, settings()).Generate(context.Background(), GenerationRequest{Text: "x", Provider: "bogus"})
	require.ErrorIs(t, err, apperr.ErrUnsupportedProvider)
	assert.Equal(t, 400, apperr.From(err).HTTPStatus())
	assert.Zero(t, d.calls)
}

func TestGenerate_TransportFailure(t *testing.T) {
	d := &fakeDispatcher{err: apperr.Wrap(errors.New("connection refused"), apperr.CodeTransportFailure, "ollama request failed")}
	_, err := New(d, settings()).Generate(context.Background(), GenerationRequest{Text: "x"})
	require.ErrorIs(t, err, apperr.ErrTransportFailure)
	assert.Equal(t, 500, apperr.From(err).HTTPStatus())
	assert.Equal(t, 1, d.calls)
}

func TestGenerate_NoJSON(t *testing.T) {
	d := &fakeDispatcher{reply: "I am sorry, I cannot do that."}
	_, err := New(d, settings()).Generate(context.Background(), GenerationRequest{Text: "x"})
	require.ErrorIs(t, err, apperr.ErrNoJSONFound)
	assert.Equal(t, "I am sorry, I cannot do that.", apperr.From(err).Raw)
}

func TestGenerate_MalformedAndSchemaErrors(t *testing.T) {
	d := &fakeDispatcher{reply: `{"name": "a",}`}
	_, err := New(d, settings()).Generate(context.Background(), GenerationRequest{Text: "x"})
	require.ErrorIs(t, err, apperr.ErrMalformedJSON)
	assert.Equal(t, `{"name": "a",}`, apperr.From(err).Raw)

	d.reply = `{"primaryLanguage":"en","topics":[]}`
	_, err = New(d, settings()).Generate(context.Background(), GenerationRequest{Text: "x"})
	require.ErrorIs(t, err, apperr.ErrSchemaViolation)
	assert.Equal(t, "name", apperr.From(err).Field)
}

func TestGenerate_BalancedExtraction(t *testing.T) {
	d := &fakeDispatcher{reply: validChapter + ` {"note": "trailing"}`}

	_, err := New(d, settings()).Generate(context.Background(), GenerationRequest{Text: "x"})
	require.ErrorIs(t, err, apperr.ErrMalformedJSON, "greedy swallows the trailing object")

	s := settings()
	s.Extractor = extract.Extractor{Mode: extract.ModeBalanced}
	col, err := New(d, s).Generate(context.Background(), GenerationRequest{Text: "x"})
	require.NoError(t, err)
	assert.Len(t, col.Chapters, 1)
}

func TestGenerate_RequestOverridesDefaults(t *testing.T) {
	d := &fakeDispatcher{reply: validChapter}
	_, err := New(d, settings()).Generate(context.Background(), GenerationRequest{
		Text:           "x",
		TargetLanguage: "de",
		Instruction:    "Find nouns",
		Model:          "mistral",
	})
	require.NoError(t, err)
	assert.Equal(t, "mistral", d.lastReq.Model)
	assert.Contains(t, d.lastReq.Messages[1].Content, "Find nouns")
	assert.Contains(t, d.lastReq.Messages[1].Content, "Язык перевода: de")
}

func TestModels(t *testing.T) {
	d := &fakeDispatcher{models: []string{"llama3:latest"}}
	o := New(d, settings())

	got, err := o.Models(context.Background(), "", "")
	require.NoError(t, err)
	assert.Equal(t, &ModelList{Models: []string{"llama3:latest"}, Provider: "ollama"}, got)

	d.models = nil
	got, err = o.Models(context.Background(), "ollama", "")
	require.NoError(t, err)
	assert.Equal(t, []string{"llama3", "mistral", "phi3"}, got.Models)
	assert.NotEmpty(t, got.Note)

	_, err = o.Models(context.Background(), "openai", "")
	assert.ErrorIs(t, err, apperr.ErrMissingCredential)

	_, err = o.Models(context.Background(), "nope", "k")
	assert.ErrorIs(t, err, apperr.ErrUnsupportedProvider)
}

func TestGenerationRequest_Aliases(t *testing.T) {
	var req GenerationRequest
	require.NoError(t, json.Unmarshal([]byte(`{"text":"t","target_lang":"en","api_key":"k","provider":"openai"}`), &req))
	assert.Equal(t, GenerationRequest{Text: "t", TargetLanguage: "en", Credential: "k", Provider: "openai"}, req)

	require.NoError(t, json.Unmarshal([]byte(`{"text":"t","targetLanguage":"de","target_lang":"en"}`), &req))
	assert.Equal(t, "de", req.TargetLanguage)
}

func TestLoadExample(t *testing.T) {
	def, err := LoadExample("")
	require.NoError(t, err)
	_, err = chapters.Validate(def)
	require.NoError(t, err, "built-in example must validate")

	dir := t.TempDir()
	good := filepath.Join(dir, "good.json")
	require.NoError(t, os.WriteFile(good, []byte(validChapter+"\n"), 0o644))
	got, err := LoadExample(good)
	require.NoError(t, err)
	assert.Equal(t, validChapter, got)

	bad := filepath.Join(dir, "bad.json")
	require.NoError(t, os.WriteFile(bad, []byte(`{"chapters":"no"}`), 0o644))
	_, err = LoadExample(bad)
	assert.Error(t, err)

	_, err = LoadExample(filepath.Join(dir, "missing.json"))
	assert.Error(t, err)
}

func TestNew_UsesBuiltInExample(t *testing.T) {
	d := &fakeDispatcher{reply: validChapter}
	_, err := New(d, settings()).Generate(context.Background(), GenerationRequest{Text: "x"})
	require.NoError(t, err)
	def, err := LoadExample("")
	require.NoError(t, err)
	assert.Contains(t, d.lastReq.Messages[1].Content, def)
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "abc", truncate("abc", 5))
	assert.Equal(t, "Выб...", truncate("Выбери", 3))
	assert.True(t, strings.HasSuffix(truncate(strings.Repeat("x", 100), 80), "..."))
}
