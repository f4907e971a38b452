package domain

import (
	"bytes"
	"encoding/json"
)

// Field is a three-state update value: unset (leave unchanged), null (clear)
// or a concrete value. Plain pointers cannot tell the first two apart.
type Field[T any] struct {
	set   bool
	null  bool
	value T
}

// Set returns a Field holding v.
func Set[T any](v T) Field[T] {
	return Field[T]{set: true, value: v}
}

// Null returns a Field that clears the target.
func Null[T any]() Field[T] {
	return Field[T]{set: true, null: true}
}

// IsSet reports whether the field was present in the input at all.
func (f Field[T]) IsSet() bool { return f.set }

// IsNull reports whether the field was explicitly cleared.
func (f Field[T]) IsNull() bool { return f.set && f.null }

// Value returns the held value and whether one is present.
func (f Field[T]) Value() (T, bool) {
	return f.value, f.set && !f.null
}

// Ptr returns nil when the field is unset or null.
func (f Field[T]) Ptr() *T {
	if !f.set || f.null {
		return nil
	}
	v := f.value
	return &v
}

// UnmarshalJSON is only invoked for keys present in the payload, so an absent
// key stays unset.
func (f *Field[T]) UnmarshalJSON(data []byte) error {
	f.set = true
	if bytes.Equal(bytes.TrimSpace(data), []byte("null")) {
		f.null = true
		var zero T
		f.value = zero
		return nil
	}
	f.null = false
	return json.Unmarshal(data, &f.value)
}

func (f Field[T]) MarshalJSON() ([]byte, error) {
	if !f.set || f.null {
		return []byte("null"), nil
	}
	return json.Marshal(f.value)
}

// applyString resolves a string field update against the current value.
func applyString(current *string, f Field[string], normalize func(string) (string, error)) (*string, error) {
	if !f.IsSet() {
		return current, nil
	}
	v, ok := f.Value()
	if !ok {
		return nil, nil
	}
	if normalize != nil {
		n, err := normalize(v)
		if err != nil {
			return nil, err
		}
		return n2p(n), nil
	}
	return n2p(v), nil
}

// n2p turns a blank string into nil.
func n2p(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
