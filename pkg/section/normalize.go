package section

import (
	"bytes"
	"encoding/json"
)

// Payload is what a fetch hands back: either a bare collection or an
// envelope of the form {"data": [...]}. Upstream endpoints are not
// consistent about which one they return, so every section goes through
// Normalize and nothing downstream branches on the shape.
type Payload[T any] struct {
	raw   []byte
	items []T
	typed bool
}

// Raw wraps an undecoded upstream response body.
func Raw[T any](raw []byte) Payload[T] {
	return Payload[T]{raw: raw}
}

// Items wraps a collection that was already built in process.
func Items[T any](items []T) Payload[T] {
	return Payload[T]{items: items, typed: true}
}

// Normalize resolves the payload to a non-nil slice.
func (p Payload[T]) Normalize() []T {
	if p.typed {
		if p.items == nil {
			return []T{}
		}
		return p.items
	}
	return Normalize[T](p.raw)
}

// Normalize decodes a bare JSON array or an object whose "data" member is
// an array. Anything else yields an empty slice; shape mismatches are never
// reported as errors. Elements that fail to decode are skipped.
func Normalize[T any](raw []byte) []T {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 {
		return []T{}
	}

	switch raw[0] {
	case '[':
		return decodeList[T](raw)
	case '{':
		var env struct {
			Data json.RawMessage `json:"data"`
		}
		if err := json.Unmarshal(raw, &env); err != nil {
			return []T{}
		}
		data := bytes.TrimSpace(env.Data)
		if len(data) > 0 && data[0] == '[' {
			return decodeList[T](data)
		}
	}
	return []T{}
}

// NormalizeOne is the single-object counterpart of Normalize: it accepts
// {...} or {"data": {...}}.
func NormalizeOne[T any](raw []byte) (T, bool) {
	var zero T
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || raw[0] != '{' {
		return zero, false
	}

	var env struct {
		Data json.RawMessage `json:"data"`
	}
	if err := json.Unmarshal(raw, &env); err == nil {
		if data := bytes.TrimSpace(env.Data); len(data) > 0 && data[0] == '{' {
			raw = data
		}
	}

	var v T
	if err := json.Unmarshal(raw, &v); err != nil {
		return zero, false
	}
	return v, true
}

func decodeList[T any](raw []byte) []T {
	var elems []json.RawMessage
	if err := json.Unmarshal(raw, &elems); err != nil {
		return []T{}
	}

	items := make([]T, 0, len(elems))
	for _, elem := range elems {
		var v T
		if err := json.Unmarshal(elem, &v); err != nil {
			continue
		}
		items = append(items, v)
	}
	return items
}
