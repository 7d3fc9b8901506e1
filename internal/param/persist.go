package param

import (
	"fmt"
	"strconv"
)

// Store is the durable key-value backend the registry persists through.
// Getters return the provided default and found=false when the key is
// absent or holds a different kind.
type Store interface {
	GetBool(key string, def bool) (bool, bool)
	GetInt32(key string, def int32) (int32, bool)
	GetFloat32(key string, def float32) (float32, bool)
	GetString(key string, def string) (string, bool)
	GetBytes(key string) ([]byte, bool)

	PutBool(key string, v bool) error
	PutInt32(key string, v int32) error
	PutFloat32(key string, v float32) error
	PutString(key string, v string) error
	PutBytes(key string, v []byte) error

	Remove(key string) error
	Clear() error
}

// Reopener is optionally implemented by stores whose handle must be
// cycled after a namespace erase.
type Reopener interface {
	Reopen() error
}

// StatsProvider is optionally implemented by stores that report entry
// usage.
type StatsProvider interface {
	Stats() (used, free, total int, err error)
}

// maxStoreKeyLen is the longest key the backend accepts. Names within the
// limit are used verbatim; longer names are hashed.
const maxStoreKeyLen = 15

// storeKey derives the storage key for a parameter name. Short names pass
// through unchanged so stored data stays human-readable; long names hash
// to "p" plus the decimal rendering of a 31-multiplier rolling hash.
// The derivation is stable across runs. Collisions are not detected.
func storeKey(name string) string {
	if len(name) <= maxStoreKeyLen {
		return name
	}
	var h uint32
	for i := 0; i < len(name); i++ {
		h = h*31 + uint32(name[i])
	}
	return "p" + strconv.FormatUint(uint64(h), 10)
}

// Load reads the named parameter's stored value into its variable.
// Absent keys leave the variable untouched and are not an error.
func (r *Registry) Load(name string) error {
	if !r.Started() {
		return ErrStoreFailure
	}
	d, err := r.lookup(name)
	if err != nil {
		return err
	}
	found := d.ref.load(r.store, storeKey(name))
	r.logger.Debug("parameter loaded", "name", name, "stored", found)
	return nil
}

// Save writes the named parameter's current value to the store.
func (r *Registry) Save(name string) error {
	if !r.Started() {
		return ErrStoreFailure
	}
	d, err := r.lookup(name)
	if err != nil {
		return err
	}
	if err := d.ref.save(r.store, storeKey(name)); err != nil {
		return fmt.Errorf("%w: %v", ErrStoreFailure, err)
	}
	return nil
}

// LoadAll reads every registered parameter from the store. Parameters
// without stored values keep their in-memory defaults. When autoSeed is
// true and nothing at all was stored yet, the defaults are saved back so
// the store starts fully populated.
func (r *Registry) LoadAll(autoSeed bool) error {
	if !r.Started() {
		return ErrStoreFailure
	}

	r.mu.RLock()
	names := r.namesLocked()
	r.mu.RUnlock()

	found := 0
	for _, name := range names {
		d, err := r.lookup(name)
		if err != nil {
			continue
		}
		if d.ref.load(r.store, storeKey(name)) {
			found++
		}
	}
	r.logger.Info("parameters loaded", "stored", found, "registered", len(names))

	if autoSeed && found == 0 && len(names) > 0 {
		r.logger.Info("no stored parameters, seeding defaults")
		return r.SaveAll()
	}
	return nil
}

// SaveAll writes every registered parameter to the store, continuing past
// individual failures and returning the last one.
func (r *Registry) SaveAll() error {
	if !r.Started() {
		return ErrStoreFailure
	}

	r.mu.RLock()
	names := r.namesLocked()
	r.mu.RUnlock()

	saved := 0
	var lastErr error
	for _, name := range names {
		d, err := r.lookup(name)
		if err != nil {
			continue
		}
		if err := d.ref.save(r.store, storeKey(name)); err != nil {
			r.logger.Error("parameter save failed", "name", name, "error", err)
			lastErr = fmt.Errorf("%w: %v", ErrStoreFailure, err)
			continue
		}
		saved++
	}
	r.logger.Info("parameters saved", "saved", saved, "registered", len(names))
	return lastErr
}

// Reset removes the named parameter's stored value. The in-memory value
// is left as is; the default applies on next load.
func (r *Registry) Reset(name string) error {
	if !r.Started() {
		return ErrStoreFailure
	}
	if _, err := r.lookup(name); err != nil {
		return err
	}
	if err := r.store.Remove(storeKey(name)); err != nil {
		return fmt.Errorf("%w: %v", ErrStoreFailure, err)
	}
	return nil
}

// ResetAll removes every stored value in the registry's namespace.
func (r *Registry) ResetAll() error {
	if !r.Started() {
		return ErrStoreFailure
	}
	if err := r.store.Clear(); err != nil {
		return fmt.Errorf("%w: %v", ErrStoreFailure, err)
	}
	r.logger.Info("all stored parameters reset")
	return nil
}

// EraseNamespace stops the registry, cycles the store handle when it
// supports reopening, and clears the namespace. Call Begin again to
// resume with defaults.
func (r *Registry) EraseNamespace() error {
	r.mu.Lock()
	wasStarted := r.started
	r.started = false
	r.mu.Unlock()

	if wasStarted {
		r.logger.Warn("erasing parameter namespace while started")
	}

	if ro, ok := r.store.(Reopener); ok {
		if err := ro.Reopen(); err != nil {
			return fmt.Errorf("%w: %v", ErrStoreFailure, err)
		}
	}
	if err := r.store.Clear(); err != nil {
		return fmt.Errorf("%w: %v", ErrStoreFailure, err)
	}
	r.logger.Info("parameter namespace erased")
	return nil
}

// StoreStats reports entry usage when the backend supports it.
func (r *Registry) StoreStats() (used, free, total int, err error) {
	sp, ok := r.store.(StatsProvider)
	if !ok {
		return 0, 0, 0, ErrStoreFailure
	}
	used, free, total, err = sp.Stats()
	if err != nil {
		return 0, 0, 0, fmt.Errorf("%w: %v", ErrStoreFailure, err)
	}
	return used, free, total, nil
}
