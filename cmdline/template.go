package cmdline

import (
	"fmt"
	"strings"

	"github.com/kbukum/cmdproxy/errors"
)

// Token is the placeholder token.
const Token = "{?}"

const escape = '\\'

// word is one argv entry of the template.
type word struct {
	segs []Segment
	// quoted words are emitted even when they bind to an empty string.
	quoted bool
}

// Template is a compiled command line. It is immutable and safe for
// concurrent use.
type Template struct {
	raw      string
	words    []word
	params   int
	variadic bool
}

// Compile parses raw into a Template expecting exactly params placeholders.
// If variadic is set, the last placeholder expands to zero or more words at
// bind time.
func Compile(raw string, params int, variadic bool) (*Template, error) {
	if params < 0 {
		return nil, errors.TemplateError(raw, "negative parameter count")
	}
	if variadic && params == 0 {
		return nil, errors.TemplateError(raw, "variadic template needs at least one parameter")
	}

	var (
		words   []word
		cur     word
		lit     strings.Builder
		inWord  bool
		inQuote bool
		next    int
	)
	flush := func() {
		if lit.Len() > 0 {
			cur.segs = append(cur.segs, Segment{Kind: Literal, Text: lit.String()})
			lit.Reset()
		}
	}
	endWord := func() {
		flush()
		if inWord {
			words = append(words, cur)
		}
		cur = word{}
		inWord = false
	}

	for i := 0; i < len(raw); {
		c := raw[i]
		switch {
		case c == escape:
			rest := raw[i+1:]
			switch {
			case strings.HasPrefix(rest, Token):
				lit.WriteString(Token)
				i += 1 + len(Token)
			case strings.HasPrefix(rest, `"`), strings.HasPrefix(rest, `\`):
				lit.WriteByte(rest[0])
				i += 2
			default:
				return nil, errors.TemplateError(raw, fmt.Sprintf("malformed escape at offset %d", i))
			}
			inWord = true
		case c == '"':
			inQuote = !inQuote
			inWord = true
			cur.quoted = true
			i++
		case !inQuote && isSpace(c):
			endWord()
			i++
		case strings.HasPrefix(raw[i:], Token):
			if next >= params {
				return nil, errors.TemplateError(raw,
					fmt.Sprintf("placeholder %d exceeds the %d declared parameters", next, params))
			}
			flush()
			cur.segs = append(cur.segs, Segment{
				Kind:     Placeholder,
				Index:    next,
				Variadic: variadic && next == params-1,
			})
			next++
			inWord = true
			i += len(Token)
		default:
			lit.WriteByte(c)
			inWord = true
			i++
		}
	}
	if inQuote {
		return nil, errors.TemplateError(raw, "unterminated quote")
	}
	endWord()

	if next < params {
		return nil, errors.TemplateError(raw,
			fmt.Sprintf("%d parameters declared but only %d placeholders found", params, next))
	}
	if len(words) == 0 {
		return nil, errors.TemplateError(raw, "empty command")
	}

	return &Template{raw: raw, words: words, params: params, variadic: variadic}, nil
}

// MustCompile is like Compile but panics on error. It is intended for
// package-level template variables.
func MustCompile(raw string, params int, variadic bool) *Template {
	t, err := Compile(raw, params, variadic)
	if err != nil {
		panic(err)
	}
	return t
}

// Raw returns the source text the template was compiled from.
func (t *Template) Raw() string { return t.raw }

// Placeholders returns the number of placeholders, the variadic one included.
func (t *Template) Placeholders() int { return t.params }

// Variadic reports whether the last placeholder expands to a word list.
func (t *Template) Variadic() bool { return t.variadic }

// Fixed returns the number of non-variadic placeholders.
func (t *Template) Fixed() int {
	if t.variadic {
		return t.params - 1
	}
	return t.params
}

// Segments returns the template as a flat segment sequence with Separator
// segments between words.
func (t *Template) Segments() []Segment {
	var out []Segment
	for i, w := range t.words {
		if i > 0 {
			out = append(out, Segment{Kind: Separator})
		}
		out = append(out, w.segs...)
	}
	return out
}

// String renders the template in canonical form. Compiling the result
// yields an equivalent template.
func (t *Template) String() string {
	parts := make([]string, len(t.words))
	for i, w := range t.words {
		var b strings.Builder
		needsQuote := w.quoted
		for _, s := range w.segs {
			if s.Kind == Literal {
				if strings.ContainsAny(s.Text, " \t\r\n") {
					needsQuote = true
				}
				b.WriteString(escapeLiteral(s.Text))
				continue
			}
			b.WriteString(Token)
		}
		if needsQuote {
			parts[i] = `"` + b.String() + `"`
		} else {
			parts[i] = b.String()
		}
	}
	return strings.Join(parts, " ")
}

func escapeLiteral(s string) string {
	s = strings.ReplaceAll(s, `\`, `\\`)
	s = strings.ReplaceAll(s, `"`, `\"`)
	return strings.ReplaceAll(s, Token, `\`+Token)
}

func isSpace(c byte) bool {
	return c == ' ' || c == '\t' || c == '\n' || c == '\r'
}
