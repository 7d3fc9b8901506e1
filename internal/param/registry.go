package param

import (
	"sort"
	"strings"
	"sync"
)

// Logger defines the logging interface used by the Registry.
// This allows different logging implementations to be used.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// noopLogger is a logger that does nothing.
type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

const (
	// maxNameLen bounds registered parameter names.
	maxNameLen = 64

	// defaultNestedGroup is the group whose members are split one level
	// deeper when published as a grouped document.
	defaultNestedGroup = "pid"
)

// Registry binds named typed variables to a durable store and services
// pub/sub commands against them.
//
// Registration, lookup, and listing are safe for concurrent use. Value
// mutation (set operations, loads, publishes) must be driven from a single
// goroutine, normally the one calling ProcessCommands on a ticker.
type Registry struct {
	mu     sync.RWMutex
	params map[string]*descriptor

	store   Store
	prefix  string
	started bool

	transport Transport
	publishFn PublishFunc

	nestedGroup string
	recorder    ChangeRecorder
	logger      Logger

	queue chan command

	// pubLock serialises the async publish cursor. Acquisition times out
	// rather than blocking the drive loop.
	pubLock    chan struct{}
	publishing bool
	nextIndex  int
	total      int
}

// NewRegistry creates a registry persisting through store and publishing
// under the given topic prefix (for example "parambridge/params").
func NewRegistry(store Store, prefix string) *Registry {
	return &Registry{
		params:      make(map[string]*descriptor),
		store:       store,
		prefix:      strings.TrimSuffix(prefix, "/"),
		nestedGroup: defaultNestedGroup,
		logger:      noopLogger{},
		queue:       make(chan command, commandQueueSize),
		pubLock:     make(chan struct{}, 1),
	}
}

// SetLogger sets the logger for the registry.
func (r *Registry) SetLogger(logger Logger) {
	r.logger = logger
}

// SetTransport sets the pub/sub transport used for outbound publishes.
func (r *Registry) SetTransport(t Transport) {
	r.transport = t
}

// SetPublishFunc installs a publish callback used instead of the
// transport. Useful for tests and custom wiring.
func (r *Registry) SetPublishFunc(fn PublishFunc) {
	r.publishFn = fn
}

// SetNestedGroup names the group whose grouped document is split by a
// second path segment. An empty name disables nesting.
func (r *Registry) SetNestedGroup(name string) {
	r.nestedGroup = name
}

// SetChangeRecorder installs a sink that receives every committed value
// change, typically a time-series history writer.
func (r *Registry) SetChangeRecorder(fn ChangeRecorder) {
	r.recorder = fn
}

// Begin marks the registry started and loads every registered parameter
// from the store. When autoSeed is true and no stored values exist yet,
// the current in-memory defaults are written back so first boot persists
// a complete set.
func (r *Registry) Begin(autoSeed bool) error {
	r.mu.Lock()
	if r.started {
		r.mu.Unlock()
		r.logger.Warn("registry already started")
		return nil
	}
	r.started = true
	r.mu.Unlock()

	return r.LoadAll(autoSeed)
}

// End saves every parameter and marks the registry stopped. The store
// handle itself remains open; closing it is the owner's job.
func (r *Registry) End() error {
	err := r.SaveAll()

	r.mu.Lock()
	r.started = false
	r.mu.Unlock()
	return err
}

// Started reports whether Begin has run.
func (r *Registry) Started() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.started
}

// validateName checks a parameter name against the naming rules.
func validateName(name string) error {
	if name == "" || len(name) > maxNameLen {
		return ErrInvalidName
	}
	if strings.HasPrefix(name, "/") || strings.HasSuffix(name, "/") ||
		strings.Contains(name, "//") {
		return ErrInvalidName
	}
	for _, c := range name {
		switch {
		case c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z', c >= '0' && c <= '9':
		case c == '/' || c == '_':
		default:
			return ErrInvalidName
		}
	}
	return nil
}

// register inserts a descriptor, loading its stored value if the registry
// is already started.
func (r *Registry) register(d *descriptor) error {
	if err := validateName(d.name); err != nil {
		return err
	}

	r.mu.Lock()
	if _, ok := r.params[d.name]; ok {
		r.mu.Unlock()
		return ErrExists
	}
	r.params[d.name] = d
	started := r.started
	r.mu.Unlock()

	if started {
		found := d.ref.load(r.store, storeKey(d.name))
		r.logger.Debug("parameter registered late",
			"name", d.name, "kind", d.ref.kind().String(), "stored", found)
	}
	return nil
}

// RegisterBool registers a boolean parameter backed by ptr.
func (r *Registry) RegisterBool(name string, ptr *bool, description string, access Access) error {
	if ptr == nil {
		return ErrNilReference
	}
	return r.register(&descriptor{
		name:        name,
		description: description,
		access:      access,
		ref:         &boolRef{ptr: ptr},
	})
}

// RegisterInt32 registers an int32 parameter backed by ptr, bounded to
// [min, max] on writes.
func (r *Registry) RegisterInt32(name string, ptr *int32, min, max int32, description string, access Access) error {
	if ptr == nil {
		return ErrNilReference
	}
	if min > max {
		return ErrInvalidRange
	}
	return r.register(&descriptor{
		name:        name,
		description: description,
		access:      access,
		ref:         &int32Ref{ptr: ptr, min: min, max: max},
	})
}

// RegisterFloat32 registers a float32 parameter backed by ptr, bounded to
// [min, max] on writes.
func (r *Registry) RegisterFloat32(name string, ptr *float32, min, max float32, description string, access Access) error {
	if ptr == nil {
		return ErrNilReference
	}
	if min > max {
		return ErrInvalidRange
	}
	return r.register(&descriptor{
		name:        name,
		description: description,
		access:      access,
		ref:         &float32Ref{ptr: ptr, min: min, max: max},
	})
}

// RegisterString registers a string parameter backed by ptr. Writes longer
// than maxLen bytes are rejected.
func (r *Registry) RegisterString(name string, ptr *string, maxLen int, description string, access Access) error {
	if ptr == nil {
		return ErrNilReference
	}
	if maxLen <= 0 {
		return ErrInvalidRange
	}
	return r.register(&descriptor{
		name:        name,
		description: description,
		access:      access,
		ref:         &stringRef{ptr: ptr, maxLen: maxLen},
	})
}

// RegisterBlob registers an opaque byte buffer. The buffer's length fixes
// the blob's capacity; documents report only its size.
func (r *Registry) RegisterBlob(name string, buf []byte, description string, access Access) error {
	if len(buf) == 0 {
		return ErrNilReference
	}
	return r.register(&descriptor{
		name:        name,
		description: description,
		access:      access,
		ref:         &blobRef{buf: buf},
	})
}

// SetOnChange installs a callback fired after the named parameter's value
// changes and is persisted.
func (r *Registry) SetOnChange(name string, fn ChangeFunc) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	d, ok := r.params[name]
	if !ok {
		return ErrNotFound
	}
	d.onChange = fn
	return nil
}

// SetValidator installs a callback that can veto writes to the named
// parameter. Rejected writes restore the previous value.
func (r *Registry) SetValidator(name string, fn ValidateFunc) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	d, ok := r.params[name]
	if !ok {
		return ErrNotFound
	}
	d.validator = fn
	return nil
}

// GetInfo returns metadata for the named parameter.
func (r *Registry) GetInfo(name string) (Info, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	d, ok := r.params[name]
	if !ok {
		return Info{}, ErrNotFound
	}
	return Info{
		Name:        d.name,
		Description: d.description,
		Kind:        d.ref.kind(),
		Access:      d.access,
	}, nil
}

// Count returns the number of registered parameters.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.params)
}

// ListParameters returns all registered names in sorted order.
func (r *Registry) ListParameters() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.namesLocked()
}

// ListByPrefix returns sorted names sharing the given prefix.
func (r *Registry) ListByPrefix(prefix string) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var names []string
	for name := range r.params {
		if strings.HasPrefix(name, prefix) {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	return names
}

// namesLocked returns sorted names. Caller must hold at least a read lock.
func (r *Registry) namesLocked() []string {
	names := make([]string, 0, len(r.params))
	for name := range r.params {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// lookup fetches a descriptor by name.
func (r *Registry) lookup(name string) (*descriptor, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	d, ok := r.params[name]
	if !ok {
		return nil, ErrNotFound
	}
	return d, nil
}

// groupsLocked returns the distinct first path segments of slash-separated
// names, sorted. Caller must hold at least a read lock.
func (r *Registry) groupsLocked() []string {
	seen := make(map[string]struct{})
	for name := range r.params {
		if i := strings.Index(name, "/"); i > 0 {
			seen[name[:i]] = struct{}{}
		}
	}
	groups := make([]string, 0, len(seen))
	for g := range seen {
		groups = append(groups, g)
	}
	sort.Strings(groups)
	return groups
}

// Groups returns the distinct first path segments of registered names.
func (r *Registry) Groups() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.groupsLocked()
}
