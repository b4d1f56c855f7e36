// Package fragments reassembles a line-delimited JSON stream, as emitted by a
// local model server, into the completion text it carries.
package fragments

import (
	"errors"
	"fmt"
	"io"
	"iter"
	"strings"

	"github.com/tidwall/gjson"

	"chapter-relay/pkg/httputil"
)

// Fragment is one decoded stream line.
type Fragment struct {
	// Content is the partial text at message.content ("" when absent).
	Content string
	// Done is set on the terminal fragment.
	Done bool
	// Err carries an upstream error message reported inside the stream.
	Err string
}

// ParseError describes a line that was not a JSON object.
type ParseError struct {
	Line int
	Text string
}

func (e *ParseError) Error() string {
	text := e.Text
	if len(text) > 80 {
		text = text[:80] + "..."
	}
	return fmt.Sprintf("fragment line %d is not a JSON object: %q", e.Line, text)
}

// Stats summarizes one assembled stream.
type Stats struct {
	Accepted       int
	Skipped        int
	UpstreamErrors []string
}

// Fragments lazily decodes r, yielding one result per non-blank line: a
// Fragment for a JSON object, or a *ParseError otherwise. A read failure is
// yielded as a final non-ParseError error. Iteration ends after a fragment
// with done set.
func Fragments(r io.Reader) iter.Seq2[Fragment, error] {
	return func(yield func(Fragment, error) bool) {
		n := 0
		stopped := false
		err := httputil.ReadLines(r, func(line []byte) error {
			n++
			f, perr := Parse(n, line)
			if perr != nil {
				if !yield(Fragment{}, perr) {
					stopped = true
					return httputil.ErrStop
				}
				return nil
			}
			if !yield(f, nil) || f.Done {
				stopped = true
				return httputil.ErrStop
			}
			return nil
		})
		if err != nil && !stopped {
			yield(Fragment{}, err)
		}
	}
}

// Parse decodes a single line numbered n.
func Parse(n int, line []byte) (Fragment, error) {
	if !gjson.ValidBytes(line) {
		return Fragment{}, &ParseError{Line: n, Text: string(line)}
	}
	doc := gjson.ParseBytes(line)
	if !doc.IsObject() {
		return Fragment{}, &ParseError{Line: n, Text: string(line)}
	}
	f := Fragment{
		Content: doc.Get("message.content").String(),
		Done:    doc.Get("done").Bool(),
	}
	if e := doc.Get("error"); e.Exists() {
		f.Err = e.String()
	}
	return f, nil
}

// Tolerant drops ParseErrors from seq, reporting each to onSkip when it is
// non-nil. Any other error passes through.
func Tolerant(seq iter.Seq2[Fragment, error], onSkip func(*ParseError)) iter.Seq2[Fragment, error] {
	return func(yield func(Fragment, error) bool) {
		for f, err := range seq {
			var perr *ParseError
			if errors.As(err, &perr) {
				if onSkip != nil {
					onSkip(perr)
				}
				continue
			}
			if !yield(f, err) {
				return
			}
		}
	}
}

// Assemble concatenates the content of every well-formed fragment in arrival
// order. Malformed lines are counted and skipped; a read failure aborts with
// the partial text.
func Assemble(seq iter.Seq2[Fragment, error]) (string, Stats, error) {
	return AssembleFunc(seq, nil)
}

// AssembleFunc is Assemble with onSkip called for every malformed line after
// it has been counted. seq must not be filtered by Tolerant already, or the
// skips are lost.
func AssembleFunc(seq iter.Seq2[Fragment, error], onSkip func(*ParseError)) (string, Stats, error) {
	var (
		b     strings.Builder
		stats Stats
	)
	skip := func(e *ParseError) {
		stats.Skipped++
		if onSkip != nil {
			onSkip(e)
		}
	}
	for f, err := range Tolerant(seq, skip) {
		if err != nil {
			return b.String(), stats, err
		}
		stats.Accepted++
		if f.Err != "" {
			stats.UpstreamErrors = append(stats.UpstreamErrors, f.Err)
		}
		b.WriteString(f.Content)
	}
	return b.String(), stats, nil
}
