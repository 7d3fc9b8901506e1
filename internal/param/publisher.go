package param

import (
	"encoding/json"
	"strings"
	"time"
)

// Transport is the pub/sub client used for outbound publishes. The mqtt
// package's Client satisfies it.
type Transport interface {
	Publish(topic string, payload []byte, qos byte, retained bool) error
	IsConnected() bool
}

// PublishFunc is an alternative publish seam. When installed it takes
// precedence over the transport. It returns true on success.
type PublishFunc func(topic string, payload []byte) bool

const (
	// paramsPerChunk is how many parameters one ContinueAsyncPublish
	// call emits.
	paramsPerChunk = 5

	// Payload bounds. Oversized documents are dropped with a warning
	// rather than truncated.
	maxDocumentBytes = 512
	maxGroupBytes    = 1024
	maxListBytes     = 1024

	// publishLockTimeout bounds how long publish entry points wait for
	// the async cursor before giving up.
	publishLockTimeout = 100 * time.Millisecond

	// Pacing between consecutive publishes, so bursts do not swamp
	// slow subscribers.
	interParamDelay = 50 * time.Millisecond
	interGroupDelay = 50 * time.Millisecond
)

func (r *Registry) topicStatus(name string) string { return r.prefix + "/status/" + name }
func (r *Registry) topicStatusSummary() string     { return r.prefix + "/status/summary" }
func (r *Registry) topicStatusComplete() string    { return r.prefix + "/status/complete" }
func (r *Registry) topicListResponse() string      { return r.prefix + "/list/response" }

// canPublish reports whether an outbound path is available.
func (r *Registry) canPublish() bool {
	if r.publishFn != nil {
		return true
	}
	return r.transport != nil && r.transport.IsConnected()
}

// publish sends one payload through the installed seam.
func (r *Registry) publish(topic string, payload []byte) bool {
	if r.publishFn != nil {
		return r.publishFn(topic, payload)
	}
	if r.transport == nil {
		return false
	}
	if err := r.transport.Publish(topic, payload, 0, false); err != nil {
		r.logger.Debug("publish failed", "topic", topic, "error", err)
		return false
	}
	return true
}

// acquirePublishLock takes the async cursor lock, giving up after
// publishLockTimeout so a stuck cursor cannot stall the drive loop.
func (r *Registry) acquirePublishLock() bool {
	select {
	case r.pubLock <- struct{}{}:
		return true
	case <-time.After(publishLockTimeout):
		return false
	}
}

func (r *Registry) releasePublishLock() {
	<-r.pubLock
}

// PublishUpdate publishes the named parameter's status document. Returns
// false when the parameter is unknown, no transport is available, or the
// document exceeds the payload bound.
func (r *Registry) PublishUpdate(name string) bool {
	d, err := r.lookup(name)
	if err != nil {
		return false
	}
	if !r.canPublish() {
		r.logger.Debug("publish skipped, not connected", "name", name)
		return false
	}

	payload, err := json.Marshal(renderDocument(d))
	if err != nil {
		r.logger.Error("status document encode failed", "name", name, "error", err)
		return false
	}
	if len(payload) > maxDocumentBytes {
		r.logger.Warn("status document too large, skipping",
			"name", name, "bytes", len(payload))
		return false
	}
	return r.publish(r.topicStatus(name), payload)
}

// publishGroup publishes one grouped document containing the writable,
// non-blob members of the named group keyed by their remaining path. For
// the nested group, members with a further path segment are folded into
// sub-objects named by that segment.
func (r *Registry) publishGroup(category string) {
	r.mu.RLock()
	names := r.namesLocked()
	nested := category != "" && category == r.nestedGroup
	doc := Document{}
	for _, name := range names {
		d := r.params[name]
		if d.access == ReadOnly || d.ref.kind() == KindBlob {
			continue
		}
		if !strings.HasPrefix(name, category+"/") {
			continue
		}
		sub := name[len(category)+1:]
		if nested {
			if i := strings.Index(sub, "/"); i > 0 {
				second, rest := sub[:i], sub[i+1:]
				inner, ok := doc[second].(map[string]any)
				if !ok {
					inner = map[string]any{}
					doc[second] = inner
				}
				inner[rest] = d.ref.current()
				continue
			}
		}
		doc[sub] = d.ref.current()
	}
	r.mu.RUnlock()

	if len(doc) == 0 {
		return
	}

	payload, err := json.Marshal(doc)
	if err != nil {
		r.logger.Error("group document encode failed", "group", category, "error", err)
		return
	}
	if len(payload) > maxGroupBytes {
		r.logger.Warn("group document too large, skipping",
			"group", category, "bytes", len(payload))
		return
	}
	r.publish(r.topicStatus(category), payload)
	time.Sleep(interGroupDelay)
}

// PublishAllGrouped publishes one document per group, individual documents
// for ungrouped parameters, and a completion marker. It runs synchronously
// and is the handler for get/all commands.
func (r *Registry) PublishAllGrouped() {
	if !r.canPublish() {
		r.logger.Warn("grouped publish skipped, not connected")
		return
	}

	groups := r.Groups()
	for _, g := range groups {
		r.publishGroup(g)
	}

	for _, name := range r.ListParameters() {
		if !strings.Contains(name, "/") {
			r.PublishUpdate(name)
			time.Sleep(interParamDelay)
		}
	}

	done := Document{
		"status":          "complete",
		"groupsPublished": len(groups),
		"timestamp":       time.Now().UnixMilli(),
	}
	payload, err := json.Marshal(done)
	if err != nil {
		return
	}
	r.publish(r.topicStatusComplete(), payload)
}

// PublishAll starts an asynchronous full publish. A summary document goes
// out immediately; subsequent ContinueAsyncPublish calls emit the
// parameters in chunks. A run already in progress is left alone.
func (r *Registry) PublishAll() {
	if !r.canPublish() {
		r.logger.Warn("async publish skipped, not connected")
		return
	}
	if !r.acquirePublishLock() {
		r.logger.Warn("async publish skipped, cursor busy")
		return
	}

	if r.publishing {
		r.releasePublishLock()
		r.logger.Info("async publish already in progress")
		return
	}

	total := r.Count()
	if total == 0 {
		r.releasePublishLock()
		r.logger.Warn("async publish skipped, no parameters registered")
		return
	}

	summary := Document{
		"parameterCount": total,
		"timestamp":      time.Now().UnixMilli(),
		"message":        "publishing all parameters",
	}
	payload, err := json.Marshal(summary)
	if err != nil || !r.publish(r.topicStatusSummary(), payload) {
		r.releasePublishLock()
		r.logger.Warn("async publish summary failed")
		return
	}

	r.publishing = true
	r.nextIndex = 0
	r.total = total
	r.releasePublishLock()

	r.logger.Info("async publish started", "parameters", total)
}

// ContinueAsyncPublish advances an in-progress async publish by one chunk.
// Call it from the same periodic loop as ProcessCommands. It is a no-op
// when no run is active.
func (r *Registry) ContinueAsyncPublish() {
	if !r.acquirePublishLock() {
		return
	}
	if !r.publishing {
		r.releasePublishLock()
		return
	}
	if !r.canPublish() {
		r.publishing = false
		r.releasePublishLock()
		r.logger.Warn("async publish aborted, not connected")
		return
	}

	names := r.ListParameters()
	if r.nextIndex >= r.total || r.nextIndex >= len(names) {
		r.finishAsyncLocked()
		return
	}

	end := r.nextIndex + paramsPerChunk
	if end > r.total {
		end = r.total
	}
	if end > len(names) {
		end = len(names)
	}
	chunk := names[r.nextIndex:end]
	r.nextIndex = end
	r.releasePublishLock()

	for i, name := range chunk {
		if !r.PublishUpdate(name) && !r.canPublish() {
			// Transport dropped mid-run; abandon the rest.
			if r.acquirePublishLock() {
				r.publishing = false
				r.releasePublishLock()
			}
			r.logger.Warn("async publish aborted mid-chunk", "name", name)
			return
		}
		if i < len(chunk)-1 {
			time.Sleep(interParamDelay)
		}
	}

	if end >= r.total {
		if r.acquirePublishLock() {
			r.finishAsyncLocked()
		}
	}
}

// finishAsyncLocked ends the run. The completion marker belongs to the
// grouped publish only; an async run just logs. Caller must hold the
// publish lock; it is released here.
func (r *Registry) finishAsyncLocked() {
	published := r.nextIndex
	r.publishing = false
	r.nextIndex = 0
	r.total = 0
	r.releasePublishLock()

	r.logger.Info("async publish complete", "published", published)
}

// Publishing reports whether an async publish run is active.
func (r *Registry) Publishing() bool {
	if !r.acquirePublishLock() {
		return true
	}
	defer r.releasePublishLock()
	return r.publishing
}

// publishList publishes the sorted parameter name list as a bare JSON
// array.
func (r *Registry) publishList() {
	names := r.ListParameters()
	payload, err := json.Marshal(names)
	if err != nil {
		r.logger.Error("list document encode failed", "error", err)
		return
	}
	if len(payload) > maxListBytes {
		r.logger.Warn("list document too large, skipping", "bytes", len(payload))
		return
	}
	r.publish(r.topicListResponse(), payload)
}
