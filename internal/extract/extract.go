// Package extract isolates the JSON object inside noisy model output.
package extract

import (
	"fmt"
	"regexp"
	"strings"

	"chapter-relay/pkg/apperr"
)

// Mode selects how the end of the object is located.
type Mode string

const (
	// ModeGreedy takes everything from the first '{' to the last '}'.
	ModeGreedy Mode = "greedy"
	// ModeBalanced stops at the brace that closes the first object, ignoring
	// braces inside string literals. Unclosed objects fall back to greedy.
	ModeBalanced Mode = "balanced"
)

// ParseMode validates a configured mode name. Empty means greedy.
func ParseMode(s string) (Mode, error) {
	switch Mode(strings.ToLower(strings.TrimSpace(s))) {
	case "", ModeGreedy:
		return ModeGreedy, nil
	case ModeBalanced:
		return ModeBalanced, nil
	default:
		return "", fmt.Errorf("unknown extraction mode %q", s)
	}
}

// fenceMarker matches a fence and, only when the rest of its line is a bare
// word, that language tag and the line break.
var fenceMarker = regexp.MustCompile("```(?:[\\w+-]*[ \\t]*(?:\\r?\\n|$))?")

// Extractor applies the sanitizing policy for one Mode.
type Extractor struct {
	Mode Mode
}

// Sanitize runs the default greedy extractor.
func Sanitize(raw string) (string, error) {
	return Extractor{Mode: ModeGreedy}.Extract(raw)
}

// StripFences removes every code fence marker together with its language
// tag, keeping the fenced content. Text glued to a fence on the same line is
// kept: "```Here is" becomes "Here is".
func StripFences(s string) string {
	for {
		out := fenceMarker.ReplaceAllString(s, "")
		if out == s {
			return out
		}
		s = out
	}
}

// Extract returns the candidate JSON substring of raw. When raw holds no
// '{' followed by a '}', the error is apperr.ErrNoJSONFound carrying raw.
func (x Extractor) Extract(raw string) (string, error) {
	text := StripFences(raw)

	start := strings.IndexByte(text, '{')
	if start < 0 {
		return "", apperr.ErrNoJSONFound.WithRaw(raw)
	}
	text = text[start:]

	if x.Mode == ModeBalanced {
		if end := closingBrace(text); end > 0 {
			return text[:end+1], nil
		}
	}

	end := strings.LastIndexByte(text, '}')
	if end < 0 {
		return "", apperr.ErrNoJSONFound.WithRaw(raw)
	}
	return text[:end+1], nil
}

// closingBrace returns the index of the brace closing the object opened at
// s[0], or -1 when it never closes.
func closingBrace(s string) int {
	depth := 0
	inString, escaped := false, false
	for i := 0; i < len(s); i++ {
		c := s[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			continue
		}
		switch c {
		case '"':
			inString = true
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return i
			}
		}
	}
	return -1
}
