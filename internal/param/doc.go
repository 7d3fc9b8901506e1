// Package param provides a registry that binds named, typed in-memory
// variables to a durable key-value store and exposes them over MQTT-style
// pub/sub topics.
//
// Callers register pointers to their own variables (bool, int32, float32,
// string, or byte-slice blobs) under hierarchical slash-separated names.
// The registry persists values through a Store, renders them as JSON
// documents, and services inbound set/get/list/save commands through a
// bounded queue drained by a periodic ProcessCommands call.
//
// Values are owned by the caller; the registry reads and writes them only
// from the goroutine that drives ProcessCommands and the publish methods.
// Registration and lookup are safe for concurrent use.
package param
