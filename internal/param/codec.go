package param

import (
	"errors"
	"fmt"
)

// setValue runs the write pipeline shared by the document codec and the
// typed accessors: access check, coerce and range-check, validator with
// rollback, persist, then change notification. onChange and the change
// recorder fire only when the value actually changed.
func (r *Registry) setValue(d *descriptor, v any) error {
	if d.access == ReadOnly {
		return ErrAccessDenied
	}

	snap := d.ref.snapshot()
	if err := d.ref.apply(v); err != nil {
		return err
	}

	if d.validator != nil && !d.validator(d.ref.current()) {
		d.ref.restore(snap)
		return ErrValidationFailed
	}

	changed := !d.ref.equal(snap)

	var saveErr error
	r.mu.RLock()
	started := r.started
	r.mu.RUnlock()
	if started {
		if err := d.ref.save(r.store, storeKey(d.name)); err != nil {
			saveErr = fmt.Errorf("%w: %v", ErrStoreFailure, err)
		}
	}

	if changed {
		if d.onChange != nil {
			d.onChange(d.name, d.ref.current())
		}
		if r.recorder != nil {
			r.recorder(d.name, d.ref.kind(), d.ref.current())
		}
	}
	return saveErr
}

// SetDocument applies a decoded JSON document to the named parameter and,
// on success, publishes the refreshed status document. The document must
// carry a "value" field of the parameter's kind.
func (r *Registry) SetDocument(name string, doc Document) error {
	d, err := r.lookup(name)
	if err != nil {
		return err
	}

	v, ok := doc["value"]
	if !ok {
		return ErrValidationFailed
	}

	if err := r.setValue(d, v); err != nil {
		// Oversized strings arriving over the wire report as a
		// validation failure, matching the range-check outcomes.
		if errors.Is(err, ErrTooLarge) {
			return ErrValidationFailed
		}
		return err
	}

	r.PublishUpdate(name)
	return nil
}

// GetDocument renders the named parameter as an outbound status document.
func (r *Registry) GetDocument(name string) (Document, error) {
	d, err := r.lookup(name)
	if err != nil {
		return nil, err
	}
	return renderDocument(d), nil
}

func renderDocument(d *descriptor) Document {
	doc := Document{}
	d.ref.describe(doc)
	doc["name"] = d.name
	if d.description != "" {
		doc["description"] = d.description
	}
	access := "rw"
	if d.access == ReadOnly {
		access = "ro"
	}
	doc["access"] = access
	return doc
}

// GetBool returns the value of a boolean parameter.
func (r *Registry) GetBool(name string) (bool, error) {
	d, err := r.lookup(name)
	if err != nil {
		return false, err
	}
	ref, ok := d.ref.(*boolRef)
	if !ok {
		return false, ErrTypeMismatch
	}
	return *ref.ptr, nil
}

// SetBool writes a boolean parameter through the full pipeline.
func (r *Registry) SetBool(name string, v bool) error {
	d, err := r.lookup(name)
	if err != nil {
		return err
	}
	if d.ref.kind() != KindBool {
		return ErrTypeMismatch
	}
	return r.setValue(d, v)
}

// GetInt32 returns the value of an int32 parameter.
func (r *Registry) GetInt32(name string) (int32, error) {
	d, err := r.lookup(name)
	if err != nil {
		return 0, err
	}
	ref, ok := d.ref.(*int32Ref)
	if !ok {
		return 0, ErrTypeMismatch
	}
	return *ref.ptr, nil
}

// SetInt32 writes an int32 parameter through the full pipeline.
func (r *Registry) SetInt32(name string, v int32) error {
	d, err := r.lookup(name)
	if err != nil {
		return err
	}
	if d.ref.kind() != KindInt32 {
		return ErrTypeMismatch
	}
	return r.setValue(d, v)
}

// GetFloat32 returns the value of a float32 parameter.
func (r *Registry) GetFloat32(name string) (float32, error) {
	d, err := r.lookup(name)
	if err != nil {
		return 0, err
	}
	ref, ok := d.ref.(*float32Ref)
	if !ok {
		return 0, ErrTypeMismatch
	}
	return *ref.ptr, nil
}

// SetFloat32 writes a float32 parameter through the full pipeline.
func (r *Registry) SetFloat32(name string, v float32) error {
	d, err := r.lookup(name)
	if err != nil {
		return err
	}
	if d.ref.kind() != KindFloat32 {
		return ErrTypeMismatch
	}
	return r.setValue(d, v)
}

// GetString returns the value of a string parameter.
func (r *Registry) GetString(name string) (string, error) {
	d, err := r.lookup(name)
	if err != nil {
		return "", err
	}
	ref, ok := d.ref.(*stringRef)
	if !ok {
		return "", ErrTypeMismatch
	}
	return *ref.ptr, nil
}

// SetString writes a string parameter through the full pipeline. Values
// longer than the declared capacity return ErrTooLarge.
func (r *Registry) SetString(name string, v string) error {
	d, err := r.lookup(name)
	if err != nil {
		return err
	}
	if d.ref.kind() != KindString {
		return ErrTypeMismatch
	}
	return r.setValue(d, v)
}

// GetBlob returns a copy of a blob parameter's current contents.
func (r *Registry) GetBlob(name string) ([]byte, error) {
	d, err := r.lookup(name)
	if err != nil {
		return nil, err
	}
	ref, ok := d.ref.(*blobRef)
	if !ok {
		return nil, ErrTypeMismatch
	}
	return append([]byte(nil), ref.buf[:ref.length]...), nil
}

// SetBlob writes a blob parameter through the full pipeline. Values larger
// than the registered buffer return ErrTooLarge.
func (r *Registry) SetBlob(name string, v []byte) error {
	d, err := r.lookup(name)
	if err != nil {
		return err
	}
	if d.ref.kind() != KindBlob {
		return ErrTypeMismatch
	}
	return r.setValue(d, v)
}
