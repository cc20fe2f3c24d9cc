// Package connection manages file system connections and their process-wide
// registry.
//
// A Connection owns one file system and the URI exporters that go with it.
// Connections are reference counted: the creator holds the first reference,
// every additional consumer calls Retain and later Release, and the file
// system is closed when the count drops to zero or when EnsureClosed is
// called. The Registry only looks connections up; it never owns them.
package connection

import (
	"errors"
	"fmt"
	"sort"
	"sync"
	"sync/atomic"

	"github.com/rs/zerolog"

	"github.com/arthur-debert/fsconn/pkg/fsconn/filesystem"
	"github.com/arthur-debert/fsconn/pkg/fsconn/uri"
)

// ErrConnectionClosed is returned when retaining or using a closed connection.
var ErrConnectionClosed = errors.New("connection is closed")

// Connection wraps a file system and its URI exporter factories (FSConnection).
//
// EnsureClosed does not wait for operations running on the file system.
// Callers must stop using paths of the connection before closing it;
// operations started afterwards fail with filesystem.ErrClosed.
type Connection struct {
	fsys      filesystem.FileSystem
	exporters map[uri.ExporterID]uri.ExporterFactory
	logger    zerolog.Logger
	metrics   *Metrics

	refs      atomic.Int64
	closeOnce sync.Once
	closeErr  error
	closed    atomic.Bool
}

// connectionConfig collects what ConnectionOptions set before a Connection
// and its file system are built.
type connectionConfig struct {
	exporters map[uri.ExporterID]uri.ExporterFactory
	logger    zerolog.Logger
	metrics   *Metrics
}

func newConnectionConfig(opts []ConnectionOption) *connectionConfig {
	cfg := &connectionConfig{
		exporters: make(map[uri.ExporterID]uri.ExporterFactory),
		logger:    zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(cfg)
	}
	return cfg
}

// ConnectionOption configures a Connection.
type ConnectionOption func(*connectionConfig)

// WithExporter adds an exporter factory under its id.
func WithExporter(f uri.ExporterFactory) ConnectionOption {
	return func(c *connectionConfig) {
		c.exporters[f.ID()] = f
	}
}

// WithDefaultExporter adds f under its id and as the default exporter.
func WithDefaultExporter(f uri.ExporterFactory) ConnectionOption {
	return func(c *connectionConfig) {
		c.exporters[f.ID()] = f
		c.exporters[uri.DefaultID] = uri.Alias(uri.DefaultID, f)
	}
}

// WithLogger sets the connection's logger.
func WithLogger(logger zerolog.Logger) ConnectionOption {
	return func(c *connectionConfig) {
		c.logger = logger
	}
}

// WithMetrics reports the connection's lifecycle to m.
func WithMetrics(m *Metrics) ConnectionOption {
	return func(c *connectionConfig) {
		c.metrics = m
	}
}

// New creates a connection holding one reference for the caller.
func New(fsys filesystem.FileSystem, opts ...ConnectionOption) *Connection {
	return newConnection(fsys, newConnectionConfig(opts))
}

func newConnection(fsys filesystem.FileSystem, cfg *connectionConfig) *Connection {
	c := &Connection{
		fsys:      fsys,
		exporters: cfg.exporters,
		logger:    cfg.logger.With().Str("fs", fsys.Name()).Logger(),
		metrics:   cfg.metrics,
	}
	c.refs.Store(1)
	c.metrics.connectionOpened()
	c.logger.Debug().Msg("connection opened")
	return c
}

// FileSystem returns the connection's file system.
func (c *Connection) FileSystem() filesystem.FileSystem {
	return c.fsys
}

// Retain adds a reference for a new consumer.
func (c *Connection) Retain() error {
	for {
		n := c.refs.Load()
		if n <= 0 || c.closed.Load() {
			return ErrConnectionClosed
		}
		if c.refs.CompareAndSwap(n, n+1) {
			return nil
		}
	}
}

// Release drops a reference and closes the connection when none are left.
// Releasing more often than retained is a no-op.
func (c *Connection) Release() error {
	for {
		n := c.refs.Load()
		if n <= 0 {
			return nil
		}
		if c.refs.CompareAndSwap(n, n-1) {
			if n == 1 {
				return c.EnsureClosed()
			}
			return nil
		}
	}
}

// RefCount returns the current number of references.
func (c *Connection) RefCount() int64 {
	return c.refs.Load()
}

// EnsureClosed closes the file system, regardless of outstanding references.
// Only the first call closes; later calls return the first result.
func (c *Connection) EnsureClosed() error {
	c.closeOnce.Do(func() {
		c.closed.Store(true)
		c.refs.Store(0)
		leaked := 0
		if r, ok := c.fsys.(interface{ OpenResources() int }); ok {
			leaked = r.OpenResources()
		}
		c.closeErr = c.fsys.Close()
		c.metrics.connectionClosed(leaked)
		c.logger.Debug().Err(c.closeErr).Msg("connection closed")
	})
	return c.closeErr
}

// IsClosed reports whether the connection has been closed.
func (c *Connection) IsClosed() bool {
	return c.closed.Load()
}

// ExporterFactories returns the factories of this connection sorted by id.
func (c *Connection) ExporterFactories() []uri.ExporterFactory {
	factories := make([]uri.ExporterFactory, 0, len(c.exporters))
	for _, f := range c.exporters {
		factories = append(factories, f)
	}
	sort.Slice(factories, func(i, j int) bool {
		return factories[i].ID() < factories[j].ID()
	})
	return factories
}

// Exporter creates the exporter registered under id.
func (c *Connection) Exporter(id uri.ExporterID, cfg uri.Config) (uri.Exporter, error) {
	if c.IsClosed() {
		return nil, ErrConnectionClosed
	}
	f, ok := c.exporters[id]
	if !ok {
		return nil, fmt.Errorf("connection to %s has no %q URI exporter", c.fsys.Name(), id)
	}
	return f.NewExporter(cfg)
}

// DefaultExporter creates the connection's default exporter.
func (c *Connection) DefaultExporter(cfg uri.Config) (uri.Exporter, error) {
	return c.Exporter(uri.DefaultID, cfg)
}
