package chapters

import (
	"encoding/json"
	"errors"
	"fmt"
	"reflect"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"

	"chapter-relay/pkg/apperr"
)

// Decoding targets. Pointers and slices stay nil when a field is absent or
// null. "required" only rejects nil pointers, min=1 rejects empty strings.
type topicDoc struct {
	PrimaryText   *string `json:"primaryText" validate:"required,min=1"`
	SecondaryText *string `json:"secondaryText"`
}

type chapterDoc struct {
	Name              *string    `json:"name" validate:"required,min=1"`
	Description       *string    `json:"description"`
	PrimaryLanguage   *string    `json:"primaryLanguage" validate:"required,min=1"`
	SecondaryLanguage *string    `json:"secondaryLanguage"`
	Topics            []topicDoc `json:"topics" validate:"required,dive"`
}

type collectionDoc struct {
	Kind     *string      `json:"type"`
	Version  *int         `json:"version"`
	Chapters []chapterDoc `json:"chapters" validate:"required,dive"`
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// Validate parses text and checks it against the collection schema. A bare
// chapter object is accepted and wrapped into a one-chapter collection.
// Errors are *apperr.Error with code malformed_json or schema_violation and
// carry text as Raw.
func Validate(text string) (*Collection, error) {
	var generic any
	if err := json.Unmarshal([]byte(text), &generic); err != nil {
		return nil, &apperr.Error{
			Code:    apperr.CodeMalformedJSON,
			Message: "Invalid JSON: " + err.Error(),
			Raw:     text,
			Err:     err,
		}
	}

	obj, ok := generic.(map[string]any)
	if !ok {
		return nil, violation(text, "", "object", jsonTypeOf(generic))
	}

	if !isCollection(obj) {
		var doc chapterDoc
		if err := decode(text, &doc); err != nil {
			return nil, err
		}
		if err := check(text, &doc); err != nil {
			return nil, err
		}
		return NewCollection(doc.chapter()), nil
	}

	var doc collectionDoc
	if err := decode(text, &doc); err != nil {
		return nil, err
	}
	if doc.Kind != nil && *doc.Kind != KindCollection {
		return nil, violation(text, "type", strconv.Quote(KindCollection), strconv.Quote(*doc.Kind))
	}
	if doc.Version != nil && *doc.Version != CurrentVersion {
		return nil, violation(text, "version", strconv.Itoa(CurrentVersion), strconv.Itoa(*doc.Version))
	}
	if err := check(text, &doc); err != nil {
		return nil, err
	}

	out := make([]Chapter, 0, len(doc.Chapters))
	for _, c := range doc.Chapters {
		out = append(out, c.chapter())
	}
	return NewCollection(out...), nil
}

func isCollection(obj map[string]any) bool {
	for _, key := range []string{"chapters", "type", "version"} {
		if _, ok := obj[key]; ok {
			return true
		}
	}
	return false
}

func decode(text string, dst any) error {
	err := json.Unmarshal([]byte(text), dst)
	if err == nil {
		return nil
	}
	var typeErr *json.UnmarshalTypeError
	if errors.As(err, &typeErr) {
		return violation(text, typeErr.Field, jsonTypeName(typeErr.Type), typeErr.Value)
	}
	return &apperr.Error{
		Code:    apperr.CodeMalformedJSON,
		Message: "Invalid JSON: " + err.Error(),
		Raw:     text,
		Err:     err,
	}
}

func check(text string, doc any) error {
	err := validate.Struct(doc)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return apperr.Wrap(err, apperr.CodeInternal, "schema validation failed")
	}
	fe := verrs[0]
	actual := "missing"
	if fe.Value() != nil && !isNil(fe.Value()) {
		actual = fmt.Sprintf("empty %s", jsonTypeName(fe.Type()))
	}
	return violation(text, fieldPath(fe.Namespace()), jsonTypeName(fe.Type()), actual)
}

func violation(text, field, expected, actual string) error {
	msg := fmt.Sprintf("schema violation: expected %s, got %s", expected, actual)
	if field != "" {
		msg = fmt.Sprintf("schema violation at %s: expected %s, got %s", field, expected, actual)
	}
	return &apperr.Error{
		Code:     apperr.CodeSchemaViolation,
		Message:  msg,
		Raw:      text,
		Field:    field,
		Expected: expected,
		Actual:   actual,
	}
}

// fieldPath drops the root struct name from a validator namespace such as
// "collectionDoc.chapters[0].name".
func fieldPath(ns string) string {
	_, rest, found := strings.Cut(ns, ".")
	if !found {
		return ns
	}
	return rest
}

func isNil(v any) bool {
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Pointer, reflect.Slice, reflect.Map, reflect.Interface:
		return rv.IsNil()
	}
	return false
}

func jsonTypeName(t reflect.Type) string {
	if t == nil {
		return "null"
	}
	for t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	switch t.Kind() {
	case reflect.String:
		return "string"
	case reflect.Bool:
		return "boolean"
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return "integer"
	case reflect.Float32, reflect.Float64:
		return "number"
	case reflect.Slice, reflect.Array:
		return "array"
	default:
		return "object"
	}
}

func jsonTypeOf(v any) string {
	switch v.(type) {
	case nil:
		return "null"
	case string:
		return "string"
	case bool:
		return "boolean"
	case float64:
		return "number"
	case []any:
		return "array"
	default:
		return "object"
	}
}

func (d chapterDoc) chapter() Chapter {
	topics := make([]Topic, 0, len(d.Topics))
	for _, t := range d.Topics {
		topics = append(topics, Topic{PrimaryText: *t.PrimaryText, SecondaryText: t.SecondaryText})
	}
	return Chapter{
		Name:              *d.Name,
		Description:       d.Description,
		PrimaryLanguage:   *d.PrimaryLanguage,
		SecondaryLanguage: d.SecondaryLanguage,
		Topics:            topics,
	}
}
