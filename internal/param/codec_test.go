package param

import (
	"bytes"
	"errors"
	"math"
	"testing"
)

func TestSetDocumentRoundTrip(t *testing.T) {
	r, _, _ := newTestRegistry(t)

	enabled := false
	maxTemp := int32(20)
	target := float32(21.5)
	mode := "auto"
	r.RegisterBool("test/bool", &enabled, "", ReadWrite)
	r.RegisterInt32("test/int", &maxTemp, 0, 100, "", ReadWrite)
	r.RegisterFloat32("test/float", &target, 0, 50, "", ReadWrite)
	r.RegisterString("test/string", &mode, 16, "", ReadWrite)

	tests := []struct {
		name  string
		param string
		value any
		check func(t *testing.T)
	}{
		{"bool", "test/bool", true, func(t *testing.T) {
			if !enabled {
				t.Error("bool variable not updated")
			}
		}},
		{"int", "test/int", float64(42), func(t *testing.T) {
			if maxTemp != 42 {
				t.Errorf("int variable = %d, want 42", maxTemp)
			}
		}},
		{"float", "test/float", float64(23.25), func(t *testing.T) {
			if target != 23.25 {
				t.Errorf("float variable = %v, want 23.25", target)
			}
		}},
		{"string", "test/string", "eco", func(t *testing.T) {
			if mode != "eco" {
				t.Errorf("string variable = %q, want %q", mode, "eco")
			}
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := r.SetDocument(tt.param, Document{"value": tt.value}); err != nil {
				t.Fatalf("SetDocument() error = %v", err)
			}
			tt.check(t)
		})
	}
}

func TestSetDocumentMissingValue(t *testing.T) {
	r, _, _ := newTestRegistry(t)

	var flag bool
	r.RegisterBool("flag", &flag, "", ReadWrite)

	err := r.SetDocument("flag", Document{"other": true})
	if !errors.Is(err, ErrValidationFailed) {
		t.Errorf("SetDocument(no value) error = %v, want ErrValidationFailed", err)
	}
}

func TestSetDocumentNotFound(t *testing.T) {
	r, _, _ := newTestRegistry(t)

	err := r.SetDocument("missing", Document{"value": 1})
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("SetDocument(missing) error = %v, want ErrNotFound", err)
	}
}

func TestSetDocumentTypeMismatch(t *testing.T) {
	r, _, _ := newTestRegistry(t)

	var flag bool
	r.RegisterBool("flag", &flag, "", ReadWrite)

	err := r.SetDocument("flag", Document{"value": "yes"})
	if !errors.Is(err, ErrTypeMismatch) {
		t.Errorf("SetDocument(string to bool) error = %v, want ErrTypeMismatch", err)
	}
	if flag {
		t.Error("rejected write mutated the variable")
	}
}

func TestSetDocumentRangeRejected(t *testing.T) {
	r, _, _ := newTestRegistry(t)

	maxTemp := int32(20)
	r.RegisterInt32("heating/maxTemp", &maxTemp, 0, 100, "", ReadWrite)

	err := r.SetDocument("heating/maxTemp", Document{"value": float64(150)})
	if !errors.Is(err, ErrValidationFailed) {
		t.Errorf("SetDocument(out of range) error = %v, want ErrValidationFailed", err)
	}
	if maxTemp != 20 {
		t.Errorf("variable = %d after rejected write, want 20", maxTemp)
	}
}

func TestSetFloat32NonFiniteRejected(t *testing.T) {
	r, _, _ := newTestRegistry(t)

	target := float32(21.5)
	r.RegisterFloat32("heating/targetTemp", &target, 0, 50, "", ReadWrite)

	for _, v := range []float64{math.NaN(), math.Inf(1), math.Inf(-1)} {
		if err := r.SetFloat32("heating/targetTemp", float32(v)); !errors.Is(err, ErrValidationFailed) {
			t.Errorf("SetFloat32(%v) error = %v, want ErrValidationFailed", v, err)
		}
		if err := r.SetDocument("heating/targetTemp", Document{"value": v}); !errors.Is(err, ErrValidationFailed) {
			t.Errorf("SetDocument(%v) error = %v, want ErrValidationFailed", v, err)
		}
	}
	if target != 21.5 {
		t.Errorf("variable = %v after rejected writes, want 21.5", target)
	}
}

func TestSetDocumentReadOnly(t *testing.T) {
	r, _, _ := newTestRegistry(t)

	version := "1.0.0"
	r.RegisterString("system/version", &version, 16, "", ReadOnly)

	err := r.SetDocument("system/version", Document{"value": "2.0.0"})
	if !errors.Is(err, ErrAccessDenied) {
		t.Errorf("SetDocument(read-only) error = %v, want ErrAccessDenied", err)
	}
	if version != "1.0.0" {
		t.Errorf("read-only variable mutated to %q", version)
	}
}

func TestSetDocumentStringTooLong(t *testing.T) {
	r, _, _ := newTestRegistry(t)

	mode := "auto"
	r.RegisterString("mode", &mode, 8, "", ReadWrite)

	// Over the wire an oversized string reads as a validation failure.
	err := r.SetDocument("mode", Document{"value": "far too long"})
	if !errors.Is(err, ErrValidationFailed) {
		t.Errorf("SetDocument(oversized) error = %v, want ErrValidationFailed", err)
	}

	// The typed API reports the size problem directly. The declared
	// capacity reserves one byte, so an 8-byte value already overflows.
	if err := r.SetString("mode", "exactly8"); !errors.Is(err, ErrTooLarge) {
		t.Errorf("SetString(at capacity) error = %v, want ErrTooLarge", err)
	}
	if mode != "auto" {
		t.Errorf("variable = %q after rejected writes, want %q", mode, "auto")
	}

	if err := r.SetString("mode", "seven77"); err != nil {
		t.Errorf("SetString(within capacity) error = %v", err)
	}
}

func TestSetDocumentBlobRejected(t *testing.T) {
	r, _, _ := newTestRegistry(t)

	buf := make([]byte, 32)
	r.RegisterBlob("cal/table", buf, "", ReadWrite)

	err := r.SetDocument("cal/table", Document{"value": "AAEC"})
	if !errors.Is(err, ErrTypeMismatch) {
		t.Errorf("SetDocument(blob) error = %v, want ErrTypeMismatch", err)
	}
}

func TestValidatorRestoresPreviousValue(t *testing.T) {
	r, _, _ := newTestRegistry(t)

	target := float32(21.5)
	r.RegisterFloat32("heating/targetTemp", &target, 0, 50, "", ReadWrite)
	r.SetValidator("heating/targetTemp", func(v any) bool {
		return v.(float32) < 25
	})

	err := r.SetDocument("heating/targetTemp", Document{"value": float64(30)})
	if !errors.Is(err, ErrValidationFailed) {
		t.Fatalf("SetDocument(vetoed) error = %v, want ErrValidationFailed", err)
	}
	if target != 21.5 {
		t.Errorf("variable = %v after veto, want 21.5 restored", target)
	}

	if err := r.SetDocument("heating/targetTemp", Document{"value": float64(23)}); err != nil {
		t.Fatalf("SetDocument(accepted) error = %v", err)
	}
	if target != 23 {
		t.Errorf("variable = %v, want 23", target)
	}
}

func TestOnChangeFiresOncePerChange(t *testing.T) {
	r, _, _ := newTestRegistry(t)

	count := int32(10)
	r.RegisterInt32("count", &count, 0, 100, "", ReadWrite)

	var calls int
	var last any
	r.SetOnChange("count", func(name string, value any) {
		calls++
		last = value
	})

	if err := r.SetInt32("count", 20); err != nil {
		t.Fatalf("SetInt32() error = %v", err)
	}
	if calls != 1 {
		t.Fatalf("onChange calls = %d after change, want 1", calls)
	}
	if last != int32(20) {
		t.Errorf("onChange value = %v, want int32(20)", last)
	}

	// Writing the same value again must not re-fire.
	if err := r.SetInt32("count", 20); err != nil {
		t.Fatalf("SetInt32(same) error = %v", err)
	}
	if calls != 1 {
		t.Errorf("onChange calls = %d after no-op write, want 1", calls)
	}
}

func TestChangeRecorderReceivesCommits(t *testing.T) {
	r, _, _ := newTestRegistry(t)

	var got []string
	r.SetChangeRecorder(func(name string, kind Kind, value any) {
		got = append(got, name+":"+kind.String())
	})

	enabled := false
	r.RegisterBool("heating/enabled", &enabled, "", ReadWrite)

	if err := r.SetBool("heating/enabled", true); err != nil {
		t.Fatalf("SetBool() error = %v", err)
	}
	if err := r.SetBool("heating/enabled", true); err != nil {
		t.Fatalf("SetBool(same) error = %v", err)
	}

	if len(got) != 1 || got[0] != "heating/enabled:bool" {
		t.Errorf("recorder calls = %v, want one heating/enabled:bool", got)
	}
}

func TestTypedAccessors(t *testing.T) {
	r, _, _ := newTestRegistry(t)

	enabled := true
	count := int32(5)
	ratio := float32(0.5)
	mode := "auto"
	buf := []byte{1, 2, 3, 4, 0, 0, 0, 0}
	r.RegisterBool("b", &enabled, "", ReadWrite)
	r.RegisterInt32("i", &count, 0, 100, "", ReadWrite)
	r.RegisterFloat32("f", &ratio, 0, 1, "", ReadWrite)
	r.RegisterString("s", &mode, 8, "", ReadWrite)
	r.RegisterBlob("x", buf, "", ReadWrite)

	if v, err := r.GetBool("b"); err != nil || v != true {
		t.Errorf("GetBool() = %v, %v", v, err)
	}
	if v, err := r.GetInt32("i"); err != nil || v != 5 {
		t.Errorf("GetInt32() = %v, %v", v, err)
	}
	if v, err := r.GetFloat32("f"); err != nil || v != 0.5 {
		t.Errorf("GetFloat32() = %v, %v", v, err)
	}
	if v, err := r.GetString("s"); err != nil || v != "auto" {
		t.Errorf("GetString() = %v, %v", v, err)
	}

	if err := r.SetBlob("x", []byte{9, 8}); err != nil {
		t.Fatalf("SetBlob() error = %v", err)
	}
	if v, err := r.GetBlob("x"); err != nil || !bytes.Equal(v, []byte{9, 8}) {
		t.Errorf("GetBlob() = %v, %v, want [9 8]", v, err)
	}
	if err := r.SetBlob("x", make([]byte, 9)); !errors.Is(err, ErrTooLarge) {
		t.Errorf("SetBlob(oversized) error = %v, want ErrTooLarge", err)
	}

	// Kind mismatches across the typed surface.
	if _, err := r.GetBool("i"); !errors.Is(err, ErrTypeMismatch) {
		t.Errorf("GetBool(int param) error = %v, want ErrTypeMismatch", err)
	}
	if err := r.SetInt32("b", 1); !errors.Is(err, ErrTypeMismatch) {
		t.Errorf("SetInt32(bool param) error = %v, want ErrTypeMismatch", err)
	}
	if _, err := r.GetString("f"); !errors.Is(err, ErrTypeMismatch) {
		t.Errorf("GetString(float param) error = %v, want ErrTypeMismatch", err)
	}
}

func TestGetDocumentShape(t *testing.T) {
	r, _, _ := newTestRegistry(t)

	maxTemp := int32(20)
	r.RegisterInt32("heating/maxTemp", &maxTemp, 0, 100, "", ReadWrite)
	buf := make([]byte, 16)
	r.RegisterBlob("cal/table", buf, "", ReadOnly)

	doc, err := r.GetDocument("heating/maxTemp")
	if err != nil {
		t.Fatalf("GetDocument() error = %v", err)
	}
	if doc["type"] != "int" || doc["value"] != int32(20) {
		t.Errorf("int document = %v", doc)
	}
	if doc["min"] != int32(0) || doc["max"] != int32(100) {
		t.Errorf("int document constraints = %v", doc)
	}
	if doc["name"] != "heating/maxTemp" || doc["access"] != "rw" {
		t.Errorf("int document identity = %v", doc)
	}

	blobDoc, err := r.GetDocument("cal/table")
	if err != nil {
		t.Fatalf("GetDocument(blob) error = %v", err)
	}
	if blobDoc["type"] != "blob" {
		t.Errorf("blob document type = %v", blobDoc["type"])
	}
	if _, ok := blobDoc["value"]; ok {
		t.Error("blob document leaked its contents")
	}
	if blobDoc["access"] != "ro" {
		t.Errorf("blob document access = %v, want ro", blobDoc["access"])
	}
}

func TestSetValuePersists(t *testing.T) {
	r, s, _ := newTestRegistry(t)

	count := int32(1)
	r.RegisterInt32("count", &count, 0, 100, "", ReadWrite)
	if err := r.Begin(false); err != nil {
		t.Fatalf("Begin() error = %v", err)
	}
	s.Clear()

	if err := r.SetInt32("count", 33); err != nil {
		t.Fatalf("SetInt32() error = %v", err)
	}
	if v, found := s.GetInt32("count", 0); !found || v != 33 {
		t.Errorf("stored count = %d (found=%v), want 33", v, found)
	}
}

func TestSetValueStoreFailure(t *testing.T) {
	r, s, _ := newTestRegistry(t)

	count := int32(1)
	r.RegisterInt32("count", &count, 0, 100, "", ReadWrite)
	if err := r.Begin(false); err != nil {
		t.Fatalf("Begin() error = %v", err)
	}
	s.failPuts = true

	err := r.SetInt32("count", 33)
	if !errors.Is(err, ErrStoreFailure) {
		t.Errorf("SetInt32() with failing store error = %v, want ErrStoreFailure", err)
	}
	// The in-memory value still changed; persistence failed after commit.
	if count != 33 {
		t.Errorf("variable = %d, want 33", count)
	}
}
