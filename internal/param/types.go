package param

import (
	"bytes"
	"math"
)

// Kind identifies the underlying type of a registered parameter.
type Kind int

// Supported parameter kinds.
const (
	KindBool Kind = iota
	KindInt32
	KindFloat32
	KindString
	KindBlob
)

// String returns the wire tag used in JSON documents.
func (k Kind) String() string {
	switch k {
	case KindBool:
		return "bool"
	case KindInt32:
		return "int"
	case KindFloat32:
		return "float"
	case KindString:
		return "string"
	case KindBlob:
		return "blob"
	default:
		return "unknown"
	}
}

// Access controls whether a parameter accepts writes through the registry.
type Access int

const (
	// ReadWrite parameters accept writes from commands and the typed API.
	ReadWrite Access = iota
	// ReadOnly parameters reject all writes with ErrAccessDenied.
	ReadOnly
)

// Document is a decoded JSON object exchanged over the wire.
// Inbound set commands carry at least a "value" field; outbound status
// documents add the kind tag and any declared constraints.
type Document map[string]any

// ChangeFunc is invoked after a parameter's value changes and the new
// value has been persisted. The boxed value matches the parameter kind
// (bool, int32, float32, string, or []byte).
type ChangeFunc func(name string, value any)

// ValidateFunc inspects a tentative value and returns false to reject it.
// On rejection the previous value is restored byte-for-byte.
type ValidateFunc func(value any) bool

// ChangeRecorder receives every committed value change, typically to feed
// a time-series history backend.
type ChangeRecorder func(name string, kind Kind, value any)

// Info is a read-only view of a registered parameter's metadata.
type Info struct {
	Name        string
	Description string
	Kind        Kind
	Access      Access
}

// descriptor holds one registered parameter. The value pointer is owned
// by the caller; the registry only dereferences it.
type descriptor struct {
	name        string
	description string
	access      Access
	ref         valueRef
	onChange    ChangeFunc
	validator   ValidateFunc
}

// valueRef abstracts over the five supported pointer types so the
// registry, codec, and persistence layers stay type-agnostic.
type valueRef interface {
	kind() Kind

	// current boxes the live value. Blob refs return a copy.
	current() any

	// snapshot captures the live value so a rejected write can be
	// rolled back; restore puts a snapshot back; equal reports whether
	// the live value still matches a snapshot.
	snapshot() any
	restore(snap any)
	equal(snap any) bool

	// apply coerces an incoming value, range-checks it, and writes it
	// through the pointer. It does not consult the validator callback.
	apply(v any) error

	// load reads the stored value into the pointer, reporting whether
	// the key existed. save writes the live value to the store.
	load(s Store, key string) bool
	save(s Store, key string) error

	// describe fills the outbound status document for this parameter.
	describe(doc Document)
}

type boolRef struct {
	ptr *bool
}

func (r *boolRef) kind() Kind          { return KindBool }
func (r *boolRef) current() any        { return *r.ptr }
func (r *boolRef) snapshot() any       { return *r.ptr }
func (r *boolRef) restore(snap any)    { *r.ptr = snap.(bool) }
func (r *boolRef) equal(snap any) bool { return *r.ptr == snap.(bool) }

func (r *boolRef) apply(v any) error {
	b, ok := v.(bool)
	if !ok {
		return ErrTypeMismatch
	}
	*r.ptr = b
	return nil
}

func (r *boolRef) load(s Store, key string) bool {
	v, found := s.GetBool(key, *r.ptr)
	*r.ptr = v
	return found
}

func (r *boolRef) save(s Store, key string) error {
	return s.PutBool(key, *r.ptr)
}

func (r *boolRef) describe(doc Document) {
	doc["type"] = "bool"
	doc["value"] = *r.ptr
}

type int32Ref struct {
	ptr      *int32
	min, max int32
}

func (r *int32Ref) kind() Kind          { return KindInt32 }
func (r *int32Ref) current() any        { return *r.ptr }
func (r *int32Ref) snapshot() any       { return *r.ptr }
func (r *int32Ref) restore(snap any)    { *r.ptr = snap.(int32) }
func (r *int32Ref) equal(snap any) bool { return *r.ptr == snap.(int32) }

func (r *int32Ref) apply(v any) error {
	var n int32
	switch t := v.(type) {
	case float64: // JSON numbers decode as float64; fractions truncate
		n = int32(t)
	case int32:
		n = t
	case int:
		n = int32(t)
	default:
		return ErrTypeMismatch
	}
	if n < r.min || n > r.max {
		return ErrValidationFailed
	}
	*r.ptr = n
	return nil
}

func (r *int32Ref) load(s Store, key string) bool {
	v, found := s.GetInt32(key, *r.ptr)
	*r.ptr = v
	return found
}

func (r *int32Ref) save(s Store, key string) error {
	return s.PutInt32(key, *r.ptr)
}

func (r *int32Ref) describe(doc Document) {
	doc["type"] = "int"
	doc["value"] = *r.ptr
	doc["min"] = r.min
	doc["max"] = r.max
}

type float32Ref struct {
	ptr      *float32
	min, max float32
}

func (r *float32Ref) kind() Kind          { return KindFloat32 }
func (r *float32Ref) current() any        { return *r.ptr }
func (r *float32Ref) snapshot() any       { return *r.ptr }
func (r *float32Ref) restore(snap any)    { *r.ptr = snap.(float32) }
func (r *float32Ref) equal(snap any) bool { return *r.ptr == snap.(float32) }

func (r *float32Ref) apply(v any) error {
	var f float32
	switch t := v.(type) {
	case float64:
		f = float32(t)
	case float32:
		f = t
	case int:
		f = float32(t)
	default:
		return ErrTypeMismatch
	}
	// NaN compares false against both bounds; reject non-finite values
	// before the range check.
	if math.IsNaN(float64(f)) || math.IsInf(float64(f), 0) {
		return ErrValidationFailed
	}
	if f < r.min || f > r.max {
		return ErrValidationFailed
	}
	*r.ptr = f
	return nil
}

func (r *float32Ref) load(s Store, key string) bool {
	v, found := s.GetFloat32(key, *r.ptr)
	*r.ptr = v
	return found
}

func (r *float32Ref) save(s Store, key string) error {
	return s.PutFloat32(key, *r.ptr)
}

func (r *float32Ref) describe(doc Document) {
	doc["type"] = "float"
	doc["value"] = *r.ptr
	doc["min"] = r.min
	doc["max"] = r.max
}

// stringRef wraps a string whose declared capacity includes one byte for
// the wire contract's terminator, so the usable length is maxLen-1.
type stringRef struct {
	ptr    *string
	maxLen int
}

func (r *stringRef) kind() Kind          { return KindString }
func (r *stringRef) current() any        { return *r.ptr }
func (r *stringRef) snapshot() any       { return *r.ptr }
func (r *stringRef) restore(snap any)    { *r.ptr = snap.(string) }
func (r *stringRef) equal(snap any) bool { return *r.ptr == snap.(string) }

func (r *stringRef) apply(v any) error {
	s, ok := v.(string)
	if !ok {
		return ErrTypeMismatch
	}
	if len(s) >= r.maxLen {
		return ErrTooLarge
	}
	*r.ptr = s
	return nil
}

func (r *stringRef) load(s Store, key string) bool {
	v, found := s.GetString(key, *r.ptr)
	if found && len(v) >= r.maxLen {
		v = v[:r.maxLen-1]
	}
	*r.ptr = v
	return found
}

func (r *stringRef) save(s Store, key string) error {
	return s.PutString(key, *r.ptr)
}

func (r *stringRef) describe(doc Document) {
	doc["type"] = "string"
	doc["value"] = *r.ptr
	doc["maxLen"] = r.maxLen
}

// blobRef wraps a caller-owned fixed-capacity buffer. The live length is
// tracked alongside so partial fills round-trip through the store.
type blobRef struct {
	buf    []byte
	length int
}

func (r *blobRef) kind() Kind    { return KindBlob }
func (r *blobRef) current() any  { return append([]byte(nil), r.buf[:r.length]...) }
func (r *blobRef) snapshot() any { return append([]byte(nil), r.buf[:r.length]...) }

func (r *blobRef) restore(snap any) {
	b := snap.([]byte)
	r.length = copy(r.buf, b)
}

func (r *blobRef) equal(snap any) bool {
	return bytes.Equal(r.buf[:r.length], snap.([]byte))
}

func (r *blobRef) apply(v any) error {
	b, ok := v.([]byte)
	if !ok {
		// Blobs are not settable through JSON documents.
		return ErrTypeMismatch
	}
	if len(b) > len(r.buf) {
		return ErrTooLarge
	}
	r.length = copy(r.buf, b)
	return nil
}

func (r *blobRef) load(s Store, key string) bool {
	b, found := s.GetBytes(key)
	if !found {
		return false
	}
	if len(b) > len(r.buf) {
		b = b[:len(r.buf)]
	}
	r.length = copy(r.buf, b)
	return true
}

func (r *blobRef) save(s Store, key string) error {
	return s.PutBytes(key, r.buf[:r.length])
}

func (r *blobRef) describe(doc Document) {
	// Blob contents never appear in documents, only their size.
	doc["type"] = "blob"
	doc["size"] = r.length
}
