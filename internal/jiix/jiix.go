// Package jiix is a small schema-driven deserializer for the JSON documents
// returned by the handwriting recognition service.
//
// A Field is a combinator that extracts one typed value from an object key.
// Fields compose (Optional, Assert, Array ...) and are bound to struct
// attributes by the block package's per-variant parse tables.
package jiix

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"strconv"

	"github.com/starford/inkmath/internal/geom"
)

// Scale converts the service's millimetre-like units into canvas pixels.
const Scale = 3.775

// Object is a decoded JSON object.
type Object = map[string]any

// ErrSkip is returned by a Field when the key is absent and the field is
// optional. It is a signal, not a failure.
var ErrSkip = errors.New("jiix: field absent")

// ParseError reports malformed or unexpected recognition JSON. JSON holds the
// offending fragment.
type ParseError struct {
	Message string
	JSON    any
}

func (e *ParseError) Error() string {
	return "jiix: " + e.Message
}

// Fragment renders the offending JSON for logs.
func (e *ParseError) Fragment() string {
	data, err := json.Marshal(e.JSON)
	if err != nil {
		return fmt.Sprintf("%v", e.JSON)
	}
	return string(data)
}

// Errorf builds a ParseError carrying json.
func Errorf(json any, format string, args ...any) *ParseError {
	return &ParseError{Message: fmt.Sprintf(format, args...), JSON: json}
}

// Decode unmarshals a document into an Object.
func Decode(data []byte) (Object, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	var v any
	if err := dec.Decode(&v); err != nil {
		return nil, &ParseError{Message: "invalid json: " + err.Error(), JSON: string(data)}
	}
	obj, ok := v.(Object)
	if !ok {
		return nil, Errorf(v, "expected a json object at the document root")
	}
	return obj, nil
}

// Field extracts a value of type T from obj[key].
type Field[T any] func(obj Object, key string) (T, error)

// String asserts obj[key] is a string.
func String() Field[string] {
	return func(obj Object, key string) (string, error) {
		s, ok := obj[key].(string)
		if !ok {
			return "", Errorf(obj, "expect field %s to have type string but is %v instead", key, obj[key])
		}
		return s, nil
	}
}

// Number asserts obj[key] is a number.
func Number() Field[float64] {
	return func(obj Object, key string) (float64, error) {
		n, ok := obj[key].(float64)
		if !ok {
			return 0, Errorf(obj, "expect field %s to have type number but is %v instead", key, obj[key])
		}
		return n, nil
	}
}

// NumberFromString reads a string field and converts it to a number.
func NumberFromString() Field[float64] {
	str := String()
	return func(obj Object, key string) (float64, error) {
		s, err := str(obj, key)
		if err != nil {
			return 0, err
		}
		n, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return 0, Errorf(obj, "expect field %s to hold a number but found %q", key, s)
		}
		return n, nil
	}
}

// Enum asserts obj[key] is one of values.
func Enum[T ~string](values ...T) Field[T] {
	return func(obj Object, key string) (T, error) {
		s, _ := obj[key].(string)
		if !slices.Contains(values, T(s)) {
			return "", Errorf(obj, "expect field %s to be an enum value but found %v instead", key, obj[key])
		}
		return T(s), nil
	}
}

// Array asserts obj[key] is an array and maps elem over it.
func Array[T any](elem func(v any, i int) (T, error)) Field[[]T] {
	return func(obj Object, key string) ([]T, error) {
		raw, ok := obj[key].([]any)
		if !ok {
			return nil, Errorf(obj, "expect field %s to be an array but is %v instead", key, obj[key])
		}
		out := make([]T, 0, len(raw))
		for i, v := range raw {
			t, err := elem(v, i)
			if err != nil {
				return nil, err
			}
			out = append(out, t)
		}
		return out, nil
	}
}

// Raw returns elements unchanged; use with Array for arity checks.
func Raw(v any, _ int) (any, error) {
	return v, nil
}

// ObjectOf adapts a parser of objects into an Array element function.
func ObjectOf[T any](parse func(Object) (T, error)) func(v any, i int) (T, error) {
	return func(v any, i int) (T, error) {
		obj, ok := v.(Object)
		if !ok {
			var zero T
			return zero, Errorf(v, "expect element %d to be an object", i)
		}
		return parse(obj)
	}
}

// Assert runs f and fails with msg (or a generated message) when pred rejects the value.
func Assert[T any](f Field[T], pred func(val T, obj Object, key string) bool, msg string) Field[T] {
	return func(obj Object, key string) (T, error) {
		val, err := f(obj, key)
		if err != nil {
			return val, err
		}
		if !pred(val, obj, key) {
			if msg != "" {
				return val, Errorf(obj, "%s", msg)
			}
			return val, Errorf(obj, "field %s failed validation with value %v", key, val)
		}
		return val, nil
	}
}

// Equals asserts the parsed value equals want.
func Equals[T comparable](f Field[T], want T) Field[T] {
	return Assert(f, func(val T, _ Object, _ string) bool { return val == want },
		fmt.Sprintf("expect value %v", want))
}

// Len asserts an array field has one of the given lengths.
func Len[T any](f Field[[]T], lengths ...int) Field[[]T] {
	return Assert(f, func(val []T, _ Object, _ string) bool { return slices.Contains(lengths, len(val)) }, "")
}

// Optional turns an absent key into ErrSkip.
func Optional[T any](f Field[T]) Field[T] {
	return func(obj Object, key string) (T, error) {
		if _, ok := obj[key]; !ok {
			var zero T
			return zero, ErrSkip
		}
		return f(obj, key)
	}
}

// Rect reads a {x, y, width, height} object and scales it to pixels.
func Rect() Field[geom.Rect] {
	num := Number()
	return func(obj Object, key string) (geom.Rect, error) {
		inner, ok := obj[key].(Object)
		if !ok {
			return geom.Rect{}, Errorf(obj, "expect field %s to be an object", key)
		}
		var xywh [4]float64
		for i, k := range []string{"x", "y", "width", "height"} {
			v, err := num(inner, k)
			if err != nil {
				return geom.Rect{}, err
			}
			xywh[i] = v
		}
		return geom.RectFromXYWH(xywh[0], xywh[1], xywh[2], xywh[3]).Scaled(Scale), nil
	}
}

// Strokes reads an array of {X, Y, T, F} parallel arrays and scales them to pixels.
func Strokes() Field[[]*geom.Stroke] {
	return Array(func(v any, i int) (*geom.Stroke, error) {
		item, ok := v.(Object)
		if !ok {
			return nil, Errorf(v, "expect stroke item %d to be an object", i)
		}
		nums := Array(func(v any, _ int) (float64, error) {
			n, ok := v.(float64)
			if !ok {
				return 0, Errorf(item, "expect stroke values to be numbers but found %v instead", v)
			}
			return n, nil
		})
		var cols [4][]float64
		for c, k := range []string{"X", "Y", "T", "F"} {
			col, err := nums(item, k)
			if err != nil {
				return nil, err
			}
			cols[c] = col
		}
		n := len(cols[0])
		if len(cols[1]) != n || len(cols[2]) != n || len(cols[3]) != n {
			return nil, Errorf(item, "expect X, Y, T, F arrays to have equal lengths")
		}
		s := &geom.Stroke{Points: make([]geom.StrokePoint, n)}
		for j := range n {
			s.Points[j] = geom.StrokePoint{
				Point: geom.Point{X: cols[0][j], Y: cols[1][j]},
				T:     cols[2][j],
				P:     cols[3][j],
			}.Scaled(Scale)
		}
		return s, nil
	})
}
