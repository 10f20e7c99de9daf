package cmdline

import "fmt"

// Kind tags a Segment.
type Kind int

const (
	// Literal is verbatim text.
	Literal Kind = iota
	// Placeholder is substituted with a bound value.
	Placeholder
	// Separator marks a word boundary in the flattened segment sequence.
	Separator
)

// String returns the kind name.
func (k Kind) String() string {
	switch k {
	case Literal:
		return "literal"
	case Placeholder:
		return "placeholder"
	case Separator:
		return "separator"
	default:
		return "unknown"
	}
}

// Segment is one piece of a compiled template.
type Segment struct {
	Kind Kind
	// Text holds literal text.
	Text string
	// Index is the parameter position a placeholder binds to.
	Index int
	// Variadic marks the placeholder that expands to zero or more words.
	Variadic bool
}

// String renders the segment for diagnostics.
func (s Segment) String() string {
	switch s.Kind {
	case Literal:
		return fmt.Sprintf("Literal(%q)", s.Text)
	case Placeholder:
		if s.Variadic {
			return fmt.Sprintf("Placeholder(%d...)", s.Index)
		}
		return fmt.Sprintf("Placeholder(%d)", s.Index)
	default:
		return "Separator"
	}
}
