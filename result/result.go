package result

import (
	"fmt"
	"reflect"
)

// Sink receives process output. Reset discards everything accumulated so
// the sink can serve another call.
type Sink interface {
	Write(p []byte) (int, error)
	Reset()
}

// Builder is a Sink that produces a typed result.
type Builder[T any] interface {
	Sink
	Build() (T, error)
}

// Factory produces builders for one method declaration.
type Factory interface {
	// NewSink returns a fresh, empty builder.
	NewSink() Sink
	// Build materializes a sink obtained from NewSink.
	Build(s Sink) (any, error)
	// Type is the type Build produces.
	Type() reflect.Type
}

// Of returns a Factory backed by newBuilder.
func Of[T any](newBuilder func() Builder[T]) Factory {
	return factory[T]{newBuilder: newBuilder}
}

type factory[T any] struct {
	newBuilder func() Builder[T]
}

func (f factory[T]) NewSink() Sink { return f.newBuilder() }

func (f factory[T]) Build(s Sink) (any, error) {
	b, ok := s.(Builder[T])
	if !ok {
		return nil, fmt.Errorf("result: sink %T does not build %s", s, f.Type())
	}
	return b.Build()
}

func (f factory[T]) Type() reflect.Type { return reflect.TypeFor[T]() }

// Stock factories.
var (
	String = Of(func() Builder[string] { return new(StringBuilder) })
	Bytes  = Of(func() Builder[[]byte] { return new(BytesBuilder) })
	Lines  = Of(func() Builder[[]string] { return new(LinesBuilder) })
)

// JSON returns a factory decoding the whole output as one JSON document.
func JSON[T any]() Factory {
	return Of(func() Builder[T] { return new(JSONBuilder[T]) })
}
