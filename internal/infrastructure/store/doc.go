// Package store provides the durable key-value store backing the parameter
// registry.
//
// This package manages:
//   - A namespaced key-value table in a single SQLite database file
//   - Typed get/put accessors (bool, int32, float32, string, bytes)
//   - Namespace-level clear and handle recycling for corruption recovery
//   - Entry statistics against a configured nominal capacity
//
// # Contract
//
// The store mirrors the constraints of the flash-backed stores this system
// is deployed against:
//
//   - Namespaces and keys are limited to 15 characters
//   - Blob values are capped at a few thousand bytes
//   - Typed getters return the caller's default (and found=false) when the
//     key is absent or was written with a different type
//
// Callers that need longer logical names must derive short keys themselves;
// the parameter registry does this by hashing long names.
//
// # Usage
//
//	s, err := store.Open(store.Config{
//	    Path:      cfg.Store.Path,
//	    Namespace: cfg.Store.Namespace,
//	    WALMode:   true,
//	})
//	if err != nil {
//	    return err
//	}
//	defer s.Close()
//
//	if err := s.PutInt32("targetTemp", 21); err != nil {
//	    return err
//	}
//	v, found := s.GetInt32("targetTemp", 0)
package store
