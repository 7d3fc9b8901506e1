package param

import (
	"bytes"
	"errors"
	"testing"
)

func TestStoreKey(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"short passes through", "flag", "flag"},
		{"fifteen chars pass through", "exactly15chars!"[:15], "exactly15chars!"[:15]},
		{"slash within limit", "heating/max", "heating/max"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := storeKey(tt.input); got != tt.want {
				t.Errorf("storeKey(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}

func TestStoreKeyLongNames(t *testing.T) {
	long := "heating/compressor/startupDelaySeconds"

	key := storeKey(long)
	if len(key) > maxStoreKeyLen {
		t.Errorf("storeKey(%q) = %q, longer than %d", long, key, maxStoreKeyLen)
	}
	if key[0] != 'p' {
		t.Errorf("storeKey(%q) = %q, want leading 'p'", long, key)
	}
	for _, c := range key[1:] {
		if c < '0' || c > '9' {
			t.Errorf("storeKey(%q) = %q, want decimal digits after 'p'", long, key)
		}
	}

	// Derivation must be stable across calls.
	if again := storeKey(long); again != key {
		t.Errorf("storeKey(%q) = %q on second call, want %q", long, again, key)
	}

	// Distinct long names should normally map to distinct keys.
	other := storeKey("heating/compressor/shutdownDelaySeconds")
	if other == key {
		t.Errorf("storeKey collision between distinct names: %q", key)
	}
}

func TestLongNameRoundTrip(t *testing.T) {
	r, s, _ := newTestRegistry(t)

	name := "heating/compressor/startupDelaySeconds"
	delay := int32(30)
	if err := r.RegisterInt32(name, &delay, 0, 600, "", ReadWrite); err != nil {
		t.Fatalf("RegisterInt32() error = %v", err)
	}
	if err := r.Begin(false); err != nil {
		t.Fatalf("Begin() error = %v", err)
	}

	if err := r.SetInt32(name, 45); err != nil {
		t.Fatalf("SetInt32() error = %v", err)
	}
	if v, found := s.GetInt32(storeKey(name), 0); !found || v != 45 {
		t.Errorf("stored value = %d (found=%v), want 45 under hashed key", v, found)
	}

	// A fresh registry over the same store must find it again.
	r2 := NewRegistry(s, "test/params")
	delay2 := int32(0)
	r2.RegisterInt32(name, &delay2, 0, 600, "", ReadWrite)
	if err := r2.Begin(false); err != nil {
		t.Fatalf("second Begin() error = %v", err)
	}
	if delay2 != 45 {
		t.Errorf("reloaded value = %d, want 45", delay2)
	}
}

func TestRoundTripAllKinds(t *testing.T) {
	s := newFakeStore()

	register := func(r *Registry, b *bool, n *int32, f *float32, str *string, blob []byte) {
		t.Helper()
		if err := r.RegisterBool("rt/bool", b, "", ReadWrite); err != nil {
			t.Fatalf("RegisterBool() error = %v", err)
		}
		if err := r.RegisterInt32("rt/int", n, -1000, 1000, "", ReadWrite); err != nil {
			t.Fatalf("RegisterInt32() error = %v", err)
		}
		if err := r.RegisterFloat32("rt/float", f, -100, 100, "", ReadWrite); err != nil {
			t.Fatalf("RegisterFloat32() error = %v", err)
		}
		if err := r.RegisterString("rt/string", str, 32, "", ReadWrite); err != nil {
			t.Fatalf("RegisterString() error = %v", err)
		}
		if err := r.RegisterBlob("rt/blob", blob, "", ReadWrite); err != nil {
			t.Fatalf("RegisterBlob() error = %v", err)
		}
	}

	b, n, f := true, int32(-42), float32(3.14159)
	str := "round trip"
	blob := make([]byte, 8)
	copy(blob, []byte{0xDE, 0xAD, 0xBE, 0xEF})

	r := NewRegistry(s, "test/params")
	register(r, &b, &n, &f, &str, blob)
	if err := r.Begin(false); err != nil {
		t.Fatalf("Begin() error = %v", err)
	}
	if err := r.SetBlob("rt/blob", blob[:4]); err != nil {
		t.Fatalf("SetBlob() error = %v", err)
	}
	if err := r.SaveAll(); err != nil {
		t.Fatalf("SaveAll() error = %v", err)
	}

	// Fresh memory, same store.
	b2, n2, f2 := false, int32(0), float32(0)
	str2 := ""
	blob2 := make([]byte, 8)

	r2 := NewRegistry(s, "test/params")
	register(r2, &b2, &n2, &f2, &str2, blob2)
	if err := r2.Begin(false); err != nil {
		t.Fatalf("second Begin() error = %v", err)
	}

	if b2 != b || n2 != n || f2 != f || str2 != str {
		t.Errorf("round trip = %v %v %v %q, want %v %v %v %q",
			b2, n2, f2, str2, b, n, f, str)
	}
	got, err := r2.GetBlob("rt/blob")
	if err != nil {
		t.Fatalf("GetBlob() error = %v", err)
	}
	if !bytes.Equal(got, []byte{0xDE, 0xAD, 0xBE, 0xEF}) {
		t.Errorf("blob round trip = %v", got)
	}
}

func TestPersistRequiresStarted(t *testing.T) {
	r, _, _ := newTestRegistry(t)

	var flag bool
	r.RegisterBool("flag", &flag, "", ReadWrite)

	if err := r.Load("flag"); !errors.Is(err, ErrStoreFailure) {
		t.Errorf("Load() before Begin error = %v, want ErrStoreFailure", err)
	}
	if err := r.Save("flag"); !errors.Is(err, ErrStoreFailure) {
		t.Errorf("Save() before Begin error = %v, want ErrStoreFailure", err)
	}
	if err := r.SaveAll(); !errors.Is(err, ErrStoreFailure) {
		t.Errorf("SaveAll() before Begin error = %v, want ErrStoreFailure", err)
	}
	if err := r.ResetAll(); !errors.Is(err, ErrStoreFailure) {
		t.Errorf("ResetAll() before Begin error = %v, want ErrStoreFailure", err)
	}
}

func TestLoadAbsentKeepsDefault(t *testing.T) {
	r, _, _ := newTestRegistry(t)

	mode := "auto"
	r.RegisterString("mode", &mode, 16, "", ReadWrite)
	if err := r.Begin(false); err != nil {
		t.Fatalf("Begin() error = %v", err)
	}

	if err := r.Load("mode"); err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if mode != "auto" {
		t.Errorf("variable = %q after loading absent key, want default", mode)
	}
}

func TestAutoSeedOnFirstBoot(t *testing.T) {
	r, s, _ := newTestRegistry(t)

	enabled := true
	maxTemp := int32(60)
	r.RegisterBool("heating/enabled", &enabled, "", ReadWrite)
	r.RegisterInt32("heating/maxTemp", &maxTemp, 0, 100, "", ReadWrite)

	if err := r.Begin(true); err != nil {
		t.Fatalf("Begin(autoSeed) error = %v", err)
	}

	if s.count() != 2 {
		t.Fatalf("store holds %d entries after seed, want 2", s.count())
	}
	if v, _ := s.GetBool("heating/enabled", false); !v {
		t.Error("seeded bool not stored")
	}
	if v, _ := s.GetInt32("heating/maxTemp", 0); v != 60 {
		t.Errorf("seeded int = %d, want 60", v)
	}
}

func TestAutoSeedSkippedWhenValuesExist(t *testing.T) {
	r, s, _ := newTestRegistry(t)

	s.data["heating/enabled"] = false

	enabled := true
	maxTemp := int32(60)
	r.RegisterBool("heating/enabled", &enabled, "", ReadWrite)
	r.RegisterInt32("heating/maxTemp", &maxTemp, 0, 100, "", ReadWrite)

	if err := r.Begin(true); err != nil {
		t.Fatalf("Begin(autoSeed) error = %v", err)
	}

	if enabled {
		t.Error("stored value not applied over default")
	}
	// The unstored parameter keeps its default but is not written back.
	if _, found := s.GetInt32("heating/maxTemp", 0); found {
		t.Error("partial store was reseeded")
	}
}

func TestSaveAllContinuesPastFailures(t *testing.T) {
	r, s, _ := newTestRegistry(t)

	var a, b bool
	r.RegisterBool("a", &a, "", ReadWrite)
	r.RegisterBool("b", &b, "", ReadWrite)
	if err := r.Begin(false); err != nil {
		t.Fatalf("Begin() error = %v", err)
	}

	s.failPuts = true
	if err := r.SaveAll(); !errors.Is(err, ErrStoreFailure) {
		t.Errorf("SaveAll() with failing store error = %v, want ErrStoreFailure", err)
	}
}

func TestReset(t *testing.T) {
	r, s, _ := newTestRegistry(t)

	count := int32(5)
	r.RegisterInt32("count", &count, 0, 100, "", ReadWrite)
	if err := r.Begin(true); err != nil {
		t.Fatalf("Begin() error = %v", err)
	}

	if err := r.Reset("count"); err != nil {
		t.Fatalf("Reset() error = %v", err)
	}
	if _, found := s.GetInt32("count", 0); found {
		t.Error("Reset() left stored value behind")
	}
	if count != 5 {
		t.Errorf("Reset() changed in-memory value to %d", count)
	}

	if err := r.Reset("missing"); !errors.Is(err, ErrNotFound) {
		t.Errorf("Reset(missing) error = %v, want ErrNotFound", err)
	}
}

func TestResetAll(t *testing.T) {
	r, s, _ := newTestRegistry(t)

	var a, b bool
	r.RegisterBool("a", &a, "", ReadWrite)
	r.RegisterBool("b", &b, "", ReadWrite)
	if err := r.Begin(true); err != nil {
		t.Fatalf("Begin() error = %v", err)
	}
	if s.count() != 2 {
		t.Fatalf("store holds %d entries, want 2", s.count())
	}

	if err := r.ResetAll(); err != nil {
		t.Fatalf("ResetAll() error = %v", err)
	}
	if s.count() != 0 {
		t.Errorf("store holds %d entries after ResetAll, want 0", s.count())
	}
}

func TestEraseNamespace(t *testing.T) {
	r, s, _ := newTestRegistry(t)

	var flag bool
	r.RegisterBool("flag", &flag, "", ReadWrite)
	if err := r.Begin(true); err != nil {
		t.Fatalf("Begin() error = %v", err)
	}

	if err := r.EraseNamespace(); err != nil {
		t.Fatalf("EraseNamespace() error = %v", err)
	}
	if r.Started() {
		t.Error("registry still started after erase")
	}
	if s.reopened != 1 {
		t.Errorf("store reopened %d times, want 1", s.reopened)
	}
	if s.count() != 0 {
		t.Errorf("store holds %d entries after erase, want 0", s.count())
	}
}

func TestStoreStats(t *testing.T) {
	r, s, _ := newTestRegistry(t)

	s.data["a"] = true
	s.data["b"] = int32(1)

	used, free, total, err := r.StoreStats()
	if err != nil {
		t.Fatalf("StoreStats() error = %v", err)
	}
	if used != 2 || free != 62 || total != 64 {
		t.Errorf("StoreStats() = %d/%d/%d, want 2/62/64", used, free, total)
	}
}
