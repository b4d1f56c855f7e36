package httputil

import (
	"errors"
	"io"
	"net/http"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func collect(t *testing.T, input string) []string {
	t.Helper()
	var lines []string
	err := ReadLines(strings.NewReader(input), func(line []byte) error {
		lines = append(lines, string(line))
		return nil
	})
	require.NoError(t, err)
	return lines
}

func TestReadLines_SplitsOnNewline(t *testing.T) {
	assert.Equal(t, []string{`{"a":1}`, `{"b":2}`}, collect(t, "{\"a\":1}\n{\"b\":2}\n"))
}

func TestReadLines_SkipsBlankLines(t *testing.T) {
	assert.Equal(t, []string{"ok"}, collect(t, "\n  \nok\r\n\n"))
}

func TestReadLines_TrailingRecordWithoutNewline(t *testing.T) {
	assert.Equal(t, []string{"first", "last"}, collect(t, "first\nlast"))
}

func TestReadLines_NoLengthLimit(t *testing.T) {
	long := strings.Repeat("x", 1<<20)
	lines := collect(t, long+"\nshort\n")
	require.Len(t, lines, 2)
	assert.Len(t, lines[0], 1<<20)
}

func TestReadLines_EmptyInput(t *testing.T) {
	err := ReadLines(strings.NewReader(""), func([]byte) error {
		t.Error("callback should not be called on empty input")
		return nil
	})
	assert.NoError(t, err)
}

func TestReadLines_StopEndsCleanly(t *testing.T) {
	var seen []string
	err := ReadLines(strings.NewReader("a\nb\nc\n"), func(line []byte) error {
		seen = append(seen, string(line))
		if string(line) == "b" {
			return ErrStop
		}
		return nil
	})
	assert.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, seen)
}

func TestReadLines_CallbackError(t *testing.T) {
	want := errors.New("cb error")
	err := ReadLines(strings.NewReader("boom\n"), func([]byte) error { return want })
	assert.ErrorIs(t, err, want)
}

type failingReader struct{ err error }

func (f failingReader) Read([]byte) (int, error) { return 0, f.err }

func TestReadLines_ReadError(t *testing.T) {
	want := errors.New("connection reset")
	err := ReadLines(failingReader{err: want}, func([]byte) error { return nil })
	assert.ErrorIs(t, err, want)
}

func TestCheckStatus(t *testing.T) {
	ok := &http.Response{StatusCode: 200, Body: io.NopCloser(strings.NewReader("fine"))}
	assert.NoError(t, CheckStatus(ok))

	bad := &http.Response{StatusCode: 401, Body: io.NopCloser(strings.NewReader(" invalid key \n"))}
	err := CheckStatus(bad)
	var se *StatusError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, 401, se.StatusCode)
	assert.Equal(t, "invalid key", se.Body)
	assert.Equal(t, "upstream returned status 401: invalid key", err.Error())
}
