package mqtt

import "fmt"

// Topics builds the parameter wire-protocol topics relative to a configured
// prefix (e.g. "parambridge/params"). Using these helpers keeps topic naming
// consistent between the command decoder, the publishers, and tests.
//
//	topics := mqtt.Topics{Prefix: "parambridge/params"}
//	topics.Status("heating/targetTemp")
//	// Returns: "parambridge/params/status/heating/targetTemp"
type Topics struct {
	Prefix string
}

// =============================================================================
// Inbound Command Topics
// =============================================================================

// Set returns the topic a client publishes to in order to set a parameter.
//
// Example: parambridge/params/set/heating/targetTemp
func (t Topics) Set(name string) string {
	return fmt.Sprintf("%s/set/%s", t.Prefix, name)
}

// Get returns the topic requesting a single parameter (or group) publish.
//
// Example: parambridge/params/get/heating/targetTemp
func (t Topics) Get(name string) string {
	return fmt.Sprintf("%s/get/%s", t.Prefix, name)
}

// GetAll returns the topic requesting a grouped publish of all parameters.
//
// Example: parambridge/params/get/all
func (t Topics) GetAll() string {
	return fmt.Sprintf("%s/get/all", t.Prefix)
}

// List returns the topic requesting the full parameter name list.
//
// Example: parambridge/params/list
func (t Topics) List() string {
	return fmt.Sprintf("%s/list", t.Prefix)
}

// Save returns the topic requesting a full persistence sweep.
//
// Example: parambridge/params/save
func (t Topics) Save() string {
	return fmt.Sprintf("%s/save", t.Prefix)
}

// =============================================================================
// Outbound Status Topics
// =============================================================================

// Status returns the topic a single parameter's state is published on.
// The same builder serves group status (name = group).
//
// Example: parambridge/params/status/heating/targetTemp
func (t Topics) Status(name string) string {
	return fmt.Sprintf("%s/status/%s", t.Prefix, name)
}

// StatusSummary returns the async publish start-marker topic.
//
// Example: parambridge/params/status/summary
func (t Topics) StatusSummary() string {
	return fmt.Sprintf("%s/status/summary", t.Prefix)
}

// StatusComplete returns the grouped publish end-marker topic.
//
// Example: parambridge/params/status/complete
func (t Topics) StatusComplete() string {
	return fmt.Sprintf("%s/status/complete", t.Prefix)
}

// ListResponse returns the topic the parameter name list is published on.
//
// Example: parambridge/params/list/response
func (t Topics) ListResponse() string {
	return fmt.Sprintf("%s/list/response", t.Prefix)
}

// SystemStatus returns the node online/offline status topic used for the
// Last Will and Testament and graceful shutdown messages.
//
// Example: parambridge/params/system/status
func (t Topics) SystemStatus() string {
	return fmt.Sprintf("%s/system/status", t.Prefix)
}

// =============================================================================
// Wildcard Patterns for Subscriptions
// =============================================================================

// CommandFilters returns the subscription patterns covering every inbound
// command topic. Status topics under the same prefix are deliberately not
// matched, so the node never consumes its own publishes.
func (t Topics) CommandFilters() []string {
	return []string{
		fmt.Sprintf("%s/set/#", t.Prefix),
		fmt.Sprintf("%s/get/#", t.Prefix),
		t.List(),
		t.Save(),
	}
}
