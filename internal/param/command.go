package param

import (
	"encoding/json"
	"strconv"
	"strings"
	"time"
)

const (
	// commandQueueSize bounds pending inbound commands. Arrivals beyond
	// the bound are dropped with a warning.
	commandQueueSize = 5

	// commandsPerDrain caps how many commands one ProcessCommands call
	// handles, keeping the drive loop's latency predictable.
	commandsPerDrain = 5

	// Inbound names and payloads are truncated to these byte limits
	// before queueing.
	commandNameLimit    = 48
	commandPayloadLimit = 64

	// interCommandDelay paces consecutive commands within one drain.
	interCommandDelay = 10 * time.Millisecond
)

type commandKind int

const (
	cmdSet commandKind = iota
	cmdGet
	cmdGetAll
	cmdList
	cmdSave
)

// command is one queued inbound request, already truncated to its limits.
type command struct {
	kind    commandKind
	name    string
	payload string
}

// HandleCommand classifies an inbound topic and queues the request for
// the next ProcessCommands call. It returns true when the topic was
// recognised, whether or not the queue had room. Safe to call from a
// transport receive goroutine.
func (r *Registry) HandleCommand(topic string, payload []byte) bool {
	if !strings.HasPrefix(topic, r.prefix+"/") {
		return false
	}
	sub := topic[len(r.prefix)+1:]

	var cmd command
	switch {
	case strings.HasPrefix(sub, "set/"):
		name := sub[len("set/"):]
		if name == "" {
			return false
		}
		cmd = command{kind: cmdSet, name: name, payload: string(payload)}
	case sub == "get/all":
		cmd = command{kind: cmdGetAll}
	case strings.HasPrefix(sub, "get/"):
		name := sub[len("get/"):]
		if name == "" {
			return false
		}
		cmd = command{kind: cmdGet, name: name}
	case sub == "list":
		cmd = command{kind: cmdList}
	case sub == "save":
		cmd = command{kind: cmdSave}
	default:
		return false
	}

	if len(cmd.name) > commandNameLimit {
		cmd.name = cmd.name[:commandNameLimit]
	}
	if len(cmd.payload) > commandPayloadLimit {
		cmd.payload = cmd.payload[:commandPayloadLimit]
	}

	select {
	case r.queue <- cmd:
	default:
		r.logger.Warn("command queue full, dropping", "topic", topic)
	}
	return true
}

// ProcessCommands drains queued commands, at most commandsPerDrain per
// call. Call it periodically from the goroutine that owns the parameter
// values.
func (r *Registry) ProcessCommands() {
	for i := 0; i < commandsPerDrain; i++ {
		var cmd command
		select {
		case cmd = <-r.queue:
		default:
			return
		}

		r.dispatch(cmd)

		if len(r.queue) > 0 {
			time.Sleep(interCommandDelay)
		}
	}
}

func (r *Registry) dispatch(cmd command) {
	switch cmd.kind {
	case cmdSet:
		err := r.SetDocument(cmd.name, decodePayload(cmd.payload))
		if err != nil {
			r.logger.Warn("set command failed",
				"name", cmd.name, "result", ResultText(err))
			return
		}
		r.logger.Info("parameter set", "name", cmd.name)

	case cmdGet:
		r.handleGet(cmd.name)

	case cmdGetAll:
		r.PublishAllGrouped()

	case cmdList:
		r.publishList()

	case cmdSave:
		if err := r.SaveAll(); err != nil {
			r.logger.Error("save command failed", "error", err)
		}
	}
}

// handleGet publishes a single parameter, or a grouped document when the
// name has no slash and matches a registered group.
func (r *Registry) handleGet(name string) {
	if !strings.Contains(name, "/") {
		r.mu.RLock()
		groups := r.groupsLocked()
		r.mu.RUnlock()
		for _, g := range groups {
			if g == name {
				r.publishGroup(name)
				return
			}
		}
	}
	if !r.PublishUpdate(name) {
		r.logger.Debug("get command for unknown parameter", "name", name)
	}
}

// decodePayload turns a set payload into a document. JSON objects pass
// through; bare scalars are sniffed in order: number, boolean, string.
func decodePayload(payload string) Document {
	trimmed := strings.TrimSpace(payload)
	if strings.HasPrefix(trimmed, "{") {
		var doc Document
		if err := json.Unmarshal([]byte(trimmed), &doc); err == nil {
			if _, ok := doc["value"]; ok {
				return doc
			}
		}
	}

	if f, err := strconv.ParseFloat(trimmed, 64); err == nil {
		return Document{"value": f}
	}
	if trimmed == "true" {
		return Document{"value": true}
	}
	if trimmed == "false" {
		return Document{"value": false}
	}
	return Document{"value": trimmed}
}
