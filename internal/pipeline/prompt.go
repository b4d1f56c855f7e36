package pipeline

import (
	"bytes"
	_ "embed"
	"fmt"
	"os"
	"strings"
	"text/template"

	"chapter-relay/internal/chapters"
	"chapter-relay/internal/providers"
)

//go:embed assets/chapter_example.json
var defaultExample string

//go:embed assets/prompt.tmpl
var promptSource string

var promptTemplate = template.Must(template.New("prompt").Parse(promptSource))

type promptData struct {
	Example        string
	Text           string
	Instruction    string
	TargetLanguage string
}

// LoadExample returns the example payload embedded in every prompt: the file
// at path when set, the built-in example otherwise. The file must itself be a
// valid collection.
func LoadExample(path string) (string, error) {
	if path == "" {
		return strings.TrimSpace(defaultExample), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("failed to read example payload: %w", err)
	}
	example := strings.TrimSpace(string(data))
	if _, err := chapters.Validate(example); err != nil {
		return "", fmt.Errorf("example payload %s is not a valid chapter collection: %w", path, err)
	}
	return example, nil
}

// buildMessages renders the system and user messages for req.
func buildMessages(systemPrompt, example string, req *GenerationRequest) ([]providers.Message, error) {
	var buf bytes.Buffer
	err := promptTemplate.Execute(&buf, promptData{
		Example:        example,
		Text:           req.Text,
		Instruction:    req.Instruction,
		TargetLanguage: req.TargetLanguage,
	})
	if err != nil {
		return nil, fmt.Errorf("render prompt: %w", err)
	}
	return []providers.Message{
		{Role: providers.RoleSystem, Content: systemPrompt},
		{Role: providers.RoleUser, Content: buf.String()},
	}, nil
}
