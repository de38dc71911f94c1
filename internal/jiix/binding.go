package jiix

import "errors"

// Binding assigns one parsed field of a JSON object to an attribute of B.
type Binding[B any] struct {
	From  string
	apply func(dst B, obj Object, key string) error
}

// Bind pairs a source key and a combinator with a setter.
func Bind[B, T any](from string, f Field[T], set func(dst B, v T)) Binding[B] {
	return Binding[B]{
		From: from,
		apply: func(dst B, obj Object, key string) error {
			v, err := f(obj, key)
			if err != nil {
				return err
			}
			set(dst, v)
			return nil
		},
	}
}

// Spec is an ordered parse table for one block kind.
type Spec[B any] []Binding[B]

// Apply runs every binding in declared order. Bindings whose field reports
// ErrSkip leave dst untouched.
func (s Spec[B]) Apply(dst B, obj Object) error {
	for _, b := range s {
		if err := b.apply(dst, obj, b.From); err != nil {
			if errors.Is(err, ErrSkip) {
				continue
			}
			return err
		}
	}
	return nil
}
