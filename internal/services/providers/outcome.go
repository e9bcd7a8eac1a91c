package providers

import (
	"errors"
	"fmt"
)

// Data kinds a provider serves.
const (
	KindSpot        = "spot"
	KindDerivatives = "derivatives"
	KindNews        = "news"
)

// ErrEmptyResult marks an upstream response that parsed but carried nothing usable.
var ErrEmptyResult = errors.New("empty result")

// Outcome is the result of one upstream fetch: either a value or the reason it
// could not be produced, tagged with the source that was asked.
type Outcome[T any] struct {
	Value  T
	Err    error
	Source string
}

func Success[T any](source string, v T) Outcome[T] {
	return Outcome[T]{Value: v, Source: source}
}

func Failure[T any](source string, err error) Outcome[T] {
	return Outcome[T]{Err: err, Source: source}
}

func (o Outcome[T]) OK() bool {
	return o.Err == nil
}

func (o Outcome[T]) String() string {
	if o.OK() {
		return o.Source + ": ok"
	}
	return fmt.Sprintf("%s: %v", o.Source, o.Err)
}

// resolved is what the composite keeps after a fallback decision.
type resolved[T any] struct {
	value    T
	source   string
	fellBack bool
}

// resolve returns the primary value when it succeeded, otherwise exactly one hop
// to fallback. The fallback is trusted to always produce data.
func resolve[T any](primary Outcome[T], fallbackSource string, fallback func() T) resolved[T] {
	if primary.OK() {
		return resolved[T]{value: primary.Value, source: primary.Source}
	}
	return resolved[T]{value: fallback(), source: fallbackSource, fellBack: true}
}
