package connection

import (
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/gammazero/toposort"
	"github.com/rs/zerolog"

	"github.com/arthur-debert/fsconn/pkg/fsconn/location"
)

var (
	// ErrKeyExists is returned when registering under a key already in use.
	ErrKeyExists = errors.New("connection key already registered")
	// ErrNotRegistered is returned for keys unknown to the registry.
	ErrNotRegistered = errors.New("connection key not registered")
)

// Registry maps keys to live connections (FSConnectionRegistry). It does not
// own the connections it holds: deregistering leaves them open, only CloseAll
// closes them. A Registry is safe for concurrent use.
type Registry struct {
	mu    sync.RWMutex
	conns map[string]*Connection
	deps  map[string][]string

	newKey  KeyGenerator
	logger  zerolog.Logger
	metrics *Metrics
}

// RegistryOption configures a Registry.
type RegistryOption func(*Registry)

// WithKeyGenerator replaces the default UUID key generator.
func WithKeyGenerator(gen KeyGenerator) RegistryOption {
	return func(r *Registry) {
		r.newKey = gen
	}
}

// WithRegistryLogger sets the registry's logger.
func WithRegistryLogger(logger zerolog.Logger) RegistryOption {
	return func(r *Registry) {
		r.logger = logger
	}
}

// WithRegistryMetrics reports registrations to m.
func WithRegistryMetrics(m *Metrics) RegistryOption {
	return func(r *Registry) {
		r.metrics = m
	}
}

// NewRegistry creates an empty registry.
func NewRegistry(opts ...RegistryOption) *Registry {
	r := &Registry{
		conns:  make(map[string]*Connection),
		deps:   make(map[string][]string),
		newKey: UUIDKeyGenerator,
		logger: zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Metrics returns the registry's metrics, nil when not configured.
func (r *Registry) Metrics() *Metrics {
	return r.metrics
}

// NewKey returns a fresh key.
func (r *Registry) NewKey() string {
	return r.newKey()
}

type registerOptions struct {
	dependsOn []string
}

// RegisterOption configures a registration.
type RegisterOption func(*registerOptions)

// WithDependency declares that the registered connection uses the connection
// registered under key. CloseAll closes dependents before their dependencies.
func WithDependency(key string) RegisterOption {
	return func(o *registerOptions) {
		o.dependsOn = append(o.dependsOn, key)
	}
}

// Register adds conn under key.
func (r *Registry) Register(key string, conn *Connection, opts ...RegisterOption) error {
	if conn == nil {
		return errors.New("cannot register a nil connection")
	}
	if conn.IsClosed() {
		return fmt.Errorf("register %s: %w", key, ErrConnectionClosed)
	}
	var o registerOptions
	for _, opt := range opts {
		opt(&o)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.conns[key]; exists {
		return fmt.Errorf("register %s: %w", key, ErrKeyExists)
	}
	for _, dep := range o.dependsOn {
		if _, exists := r.conns[dep]; !exists {
			return fmt.Errorf("dependency %s of %s: %w", dep, key, ErrNotRegistered)
		}
	}
	r.conns[key] = conn
	if len(o.dependsOn) > 0 {
		r.deps[key] = o.dependsOn
	}
	r.metrics.registeredConnection()
	r.logger.Debug().
		Str("key", key).
		Str("spec", conn.FileSystem().LocationSpec().String()).
		Msg("connection registered")
	return nil
}

// Retrieve returns the connection registered under key.
func (r *Registry) Retrieve(key string) (*Connection, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	conn, ok := r.conns[key]
	return conn, ok
}

// RetrieveBySpec returns an open connection whose file system reports spec.
// When several match, the one with the smallest key is returned.
func (r *Registry) RetrieveBySpec(spec location.Spec) (*Connection, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, key := range r.sortedKeysLocked() {
		conn := r.conns[key]
		if !conn.IsClosed() && conn.FileSystem().LocationSpec() == spec {
			return conn, true
		}
	}
	return nil, false
}

// Deregister removes key and returns the connection that was registered
// under it. The connection is not closed.
func (r *Registry) Deregister(key string) (*Connection, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	conn, ok := r.conns[key]
	if !ok {
		return nil, fmt.Errorf("deregister %s: %w", key, ErrNotRegistered)
	}
	delete(r.conns, key)
	delete(r.deps, key)
	r.metrics.deregisteredConnection()
	r.logger.Debug().Str("key", key).Msg("connection deregistered")
	return conn, nil
}

// Keys returns the registered keys in sorted order.
func (r *Registry) Keys() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.sortedKeysLocked()
}

// Len returns the number of registered connections.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.conns)
}

func (r *Registry) sortedKeysLocked() []string {
	keys := make([]string, 0, len(r.conns))
	for key := range r.conns {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}

// CloseAll deregisters every connection and ensure-closes it, dependents
// before the connections they depend on. All close errors are returned.
func (r *Registry) CloseAll() error {
	r.mu.Lock()
	order := r.closeOrderLocked()
	conns := r.conns
	r.conns = make(map[string]*Connection)
	r.deps = make(map[string][]string)
	r.mu.Unlock()

	var errs []error
	for _, key := range order {
		r.metrics.deregisteredConnection()
		if err := conns[key].EnsureClosed(); err != nil {
			errs = append(errs, fmt.Errorf("close %s: %w", key, err))
		}
	}
	r.logger.Debug().Int("count", len(order)).Msg("closed all registered connections")
	return errors.Join(errs...)
}

// closeOrderLocked sorts the registered keys so that every connection comes
// before the connections it depends on.
func (r *Registry) closeOrderLocked() []string {
	keys := r.sortedKeysLocked()

	edges := make([]toposort.Edge, 0)
	for _, key := range keys {
		for _, dep := range r.deps[key] {
			if _, ok := r.conns[dep]; !ok {
				continue
			}
			// Edge {a, b} puts a before b: the dependent closes first.
			edges = append(edges, toposort.Edge{key, dep})
		}
	}
	if len(edges) == 0 {
		return keys
	}

	sorted, err := toposort.Toposort(edges)
	if err != nil {
		r.logger.Warn().Err(err).Msg("circular connection dependencies, closing in key order")
		return keys
	}

	order := make([]string, 0, len(keys))
	seen := make(map[string]bool, len(keys))
	for _, v := range sorted {
		key, ok := v.(string)
		if !ok || seen[key] {
			continue
		}
		seen[key] = true
		order = append(order, key)
	}
	for _, key := range keys {
		if !seen[key] {
			order = append(order, key)
		}
	}
	return order
}
