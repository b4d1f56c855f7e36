package httputil

import (
	"bufio"
	"bytes"
	"errors"
	"io"
)

// ErrStop may be returned by a line callback to end reading without error.
var ErrStop = errors.New("httputil: stop reading")

// ReadLines reads newline-delimited records from r and invokes onLine for each
// non-blank one. Lines have no length limit. A trailing record without a final
// newline is still delivered.
func ReadLines(r io.Reader, onLine func(line []byte) error) error {
	br := bufio.NewReader(r)
	for {
		line, err := br.ReadBytes('\n')
		if trimmed := bytes.TrimSpace(line); len(trimmed) > 0 {
			if cbErr := onLine(trimmed); cbErr != nil {
				if errors.Is(cbErr, ErrStop) {
					return nil
				}
				return cbErr
			}
		}
		if err != nil {
			if errors.Is(err, io.EOF) {
				return nil
			}
			return err
		}
	}
}
