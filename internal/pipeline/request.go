package pipeline

import (
	"encoding/json"
	"errors"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"

	"chapter-relay/pkg/apperr"
)

// GenerationRequest is the inbound generation call. Empty optional fields are
// filled from Settings.
type GenerationRequest struct {
	Text           string `json:"text" validate:"required"`
	TargetLanguage string `json:"targetLanguage"`
	Instruction    string `json:"instruction"`
	Provider       string `json:"provider"`
	Model          string `json:"model"`
	Credential     string `json:"credential"`
}

// UnmarshalJSON also accepts the legacy names target_lang and api_key.
func (r *GenerationRequest) UnmarshalJSON(data []byte) error {
	type plain GenerationRequest
	var aux struct {
		plain
		TargetLang string `json:"target_lang"`
		APIKey     string `json:"api_key"`
	}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	*r = GenerationRequest(aux.plain)
	if r.TargetLanguage == "" {
		r.TargetLanguage = aux.TargetLang
	}
	if r.Credential == "" {
		r.Credential = aux.APIKey
	}
	return nil
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		return name
	})
	return v
}

func (r *GenerationRequest) normalize() {
	r.Text = strings.TrimSpace(r.Text)
	r.TargetLanguage = strings.TrimSpace(r.TargetLanguage)
	r.Instruction = strings.TrimSpace(r.Instruction)
	r.Provider = strings.ToLower(strings.TrimSpace(r.Provider))
	r.Model = strings.TrimSpace(r.Model)
	r.Credential = strings.TrimSpace(r.Credential)
}

func (r *GenerationRequest) check() error {
	err := validate.Struct(r)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) && len(verrs) > 0 {
		field := verrs[0].Field()
		e := apperr.Newf(apperr.CodeMissingField, "Missing %s", field)
		e.Field = field
		e.Expected = "string"
		e.Actual = "missing"
		return e
	}
	return apperr.Wrap(err, apperr.CodeInvalidRequest, "invalid request")
}
