package result

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
)

// StringBuilder accumulates output as text.
type StringBuilder struct {
	b strings.Builder
}

func (s *StringBuilder) Write(p []byte) (int, error) { return s.b.Write(p) }
func (s *StringBuilder) Reset()                      { s.b.Reset() }

// Build returns the accumulated text.
func (s *StringBuilder) Build() (string, error) { return s.b.String(), nil }

// String returns the accumulated text.
func (s *StringBuilder) String() string { return s.b.String() }

// BytesBuilder accumulates raw output.
type BytesBuilder struct {
	buf bytes.Buffer
}

func (s *BytesBuilder) Write(p []byte) (int, error) { return s.buf.Write(p) }
func (s *BytesBuilder) Reset()                      { s.buf.Reset() }

// Build returns a copy of the accumulated bytes.
func (s *BytesBuilder) Build() ([]byte, error) {
	return bytes.Clone(s.buf.Bytes()), nil
}

// LinesBuilder splits output into lines. "\r\n" endings are accepted and a
// trailing newline does not produce an empty last line.
type LinesBuilder struct {
	buf bytes.Buffer
}

func (s *LinesBuilder) Write(p []byte) (int, error) { return s.buf.Write(p) }
func (s *LinesBuilder) Reset()                      { s.buf.Reset() }

// Build returns the accumulated lines.
func (s *LinesBuilder) Build() ([]string, error) {
	text := strings.ReplaceAll(s.buf.String(), "\r\n", "\n")
	text = strings.TrimSuffix(text, "\n")
	if text == "" {
		return []string{}, nil
	}
	return strings.Split(text, "\n"), nil
}

// JSONBuilder decodes the accumulated output into T.
type JSONBuilder[T any] struct {
	buf bytes.Buffer
}

func (s *JSONBuilder[T]) Write(p []byte) (int, error) { return s.buf.Write(p) }
func (s *JSONBuilder[T]) Reset()                      { s.buf.Reset() }

// Build decodes the output. Empty output is an error.
func (s *JSONBuilder[T]) Build() (T, error) {
	var v T
	if err := json.Unmarshal(s.buf.Bytes(), &v); err != nil {
		return v, fmt.Errorf("result: decoding JSON output: %w", err)
	}
	return v, nil
}
