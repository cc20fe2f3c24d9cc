// Package provider resolves locations to paths.
//
// A Factory is created for one location spec. It either reuses a compatible
// connection handed in by the caller, looks one up in the connection
// registry, or creates a connection for the spec's category. Providers
// created by the factory resolve individual locations on that connection.
package provider

import (
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"strconv"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/arthur-debert/fsconn/pkg/fsconn/connection"
	"github.com/arthur-debert/fsconn/pkg/fsconn/filesystem"
	"github.com/arthur-debert/fsconn/pkg/fsconn/location"
)

// ErrFactoryClosed is returned when creating providers from a closed factory.
var ErrFactoryClosed = errors.New("path provider factory is closed")

// Workflow identifies the workflow that relative-to locations refer to.
type Workflow struct {
	MountID   string
	MountRoot string
	// Path is the slash separated workflow path inside the mountpoint.
	Path string
}

// Environment holds what a factory needs to create connections.
type Environment struct {
	Registry *connection.Registry
	Workflow Workflow
	// Mountpoints maps mountpoint ids to local folders.
	Mountpoints map[string]string
	// ExampleWorkingDir enables creating an Example connection when none is
	// registered.
	ExampleWorkingDir string
	// URLTimeout is the connect/read timeout handed to URI exporters.
	URLTimeout time.Duration
	Logger     zerolog.Logger
}

// ResolutionError reports a location that cannot be resolved.
type ResolutionError struct {
	Location location.Location
	Cause    error
}

func (e *ResolutionError) Error() string {
	return fmt.Sprintf("cannot resolve %s: %v", e.Location, e.Cause)
}

func (e *ResolutionError) Unwrap() error {
	return e.Cause
}

// Factory creates path providers for locations of one spec
// (PathProviderFactory).
type Factory struct {
	env     Environment
	spec    location.Spec
	conn    *connection.Connection
	created bool
	logger  zerolog.Logger

	closeOnce sync.Once
	closeErr  error
	mu        sync.Mutex
	closed    bool
}

// NewFactory returns a factory for loc's spec. existing may be nil; when its
// file system serves loc's spec it is reused instead of creating a new
// connection. Reused connections are retained for the factory's lifetime and
// released, never force-closed, by Close.
func NewFactory(env Environment, existing *connection.Connection, loc location.Location) (*Factory, error) {
	if err := loc.Validate(); err != nil {
		return nil, err
	}
	spec := loc.Spec()
	f := &Factory{
		env:    env,
		spec:   spec,
		logger: env.Logger.With().Str("spec", spec.String()).Logger(),
	}

	if existing != nil && compatible(existing, spec) && existing.Retain() == nil {
		f.conn = existing
		f.logger.Debug().Msg("reusing connection")
		return f, nil
	}

	if spec.Category == location.Connected {
		conn, err := f.lookup(loc)
		if err == nil {
			f.conn = conn
			return f, nil
		}
		if spec.Specifier != filesystem.ExampleSpecifier || f.env.ExampleWorkingDir == "" {
			return nil, err
		}
		// An unregistered Example connection is created on demand.
	}

	conn, err := f.connect(loc)
	if err != nil {
		return nil, err
	}
	f.conn = conn
	f.created = true
	f.logger.Debug().Msg("created connection")
	return f, nil
}

func compatible(conn *connection.Connection, spec location.Spec) bool {
	return !conn.IsClosed() && conn.FileSystem().LocationSpec() == spec
}

func (f *Factory) lookup(loc location.Location) (*connection.Connection, error) {
	if f.env.Registry == nil {
		return nil, &ResolutionError{Location: loc, Cause: errors.New("no connection registry")}
	}
	conn, ok := f.env.Registry.RetrieveBySpec(f.spec)
	if !ok {
		return nil, &ResolutionError{Location: loc, Cause: fmt.Errorf("no connection registered for %s", f.spec)}
	}
	if err := conn.Retain(); err != nil {
		return nil, &ResolutionError{Location: loc, Cause: err}
	}
	return conn, nil
}

func (f *Factory) connectionOptions() []connection.ConnectionOption {
	opts := []connection.ConnectionOption{connection.WithLogger(f.env.Logger)}
	if f.env.Registry != nil {
		opts = append(opts, connection.WithMetrics(f.env.Registry.Metrics()))
	}
	return opts
}

func (f *Factory) connect(loc location.Location) (*connection.Connection, error) {
	opts := f.connectionOptions()
	var (
		conn *connection.Connection
		err  error
	)
	switch f.spec.Category {
	case location.Local:
		conn, err = connection.NewLocalConnection(opts...)
	case location.Relative:
		rt, perr := location.ParseRelativeTo(f.spec.Specifier)
		if perr != nil {
			return nil, &location.ValidationError{Location: loc, Reason: perr.Error()}
		}
		if f.env.Workflow.MountRoot == "" {
			return nil, &ResolutionError{Location: loc, Cause: errors.New("no workflow context")}
		}
		conn, err = connection.NewRelativeToConnection(filesystem.RelativeToOptions{
			Type:         rt,
			MountRoot:    f.env.Workflow.MountRoot,
			WorkflowPath: f.env.Workflow.Path,
		}, opts...)
	case location.Mountpoint:
		root, ok := f.mountRoot(f.spec.Specifier)
		if !ok {
			return nil, &ResolutionError{Location: loc, Cause: fmt.Errorf("unknown mountpoint %q", f.spec.Specifier)}
		}
		conn, err = connection.NewMountpointConnection(f.spec.Specifier, root, opts...)
	case location.Connected:
		conn, err = connection.NewExampleConnection(f.env.ExampleWorkingDir, opts...)
	case location.CustomURL:
		timeout, terr := parseTimeout(loc)
		if terr != nil {
			return nil, terr
		}
		u, uerr := url.Parse(loc.Path)
		if uerr != nil {
			return nil, &location.ValidationError{Location: loc, Reason: uerr.Error()}
		}
		conn, err = connection.NewCustomURLConnection(u, timeout, opts...)
	default:
		return nil, &ResolutionError{Location: loc, Cause: fmt.Errorf("no backend for category %s", f.spec.Category)}
	}
	if err != nil {
		return nil, &ResolutionError{Location: loc, Cause: err}
	}
	return conn, nil
}

func (f *Factory) mountRoot(id string) (string, bool) {
	if root, ok := f.env.Mountpoints[id]; ok {
		return root, true
	}
	if id != "" && id == f.env.Workflow.MountID && f.env.Workflow.MountRoot != "" {
		return f.env.Workflow.MountRoot, true
	}
	return "", false
}

// parseTimeout reads the connect timeout in milliseconds from a custom-URL
// specifier.
func parseTimeout(loc location.Location) (time.Duration, error) {
	ms, err := strconv.ParseInt(loc.Specifier, 10, 64)
	if err != nil || ms <= 0 {
		return 0, &location.ValidationError{Location: loc, Reason: fmt.Sprintf("URL timeout %q is not a positive number of milliseconds", loc.Specifier)}
	}
	return time.Duration(ms) * time.Millisecond, nil
}

// Connection returns the connection providers of this factory use.
func (f *Factory) Connection() *connection.Connection {
	return f.conn
}

// Spec returns the spec this factory serves.
func (f *Factory) Spec() location.Spec {
	return f.spec
}

// CreatedConnection reports whether the factory created its connection
// rather than reusing one.
func (f *Factory) CreatedConnection() bool {
	return f.created
}

type createOptions struct {
	requireExisting bool
}

// CreateOption configures a provider.
type CreateOption func(*createOptions)

// RequireExisting makes Path fail when the item does not exist.
func RequireExisting() CreateOption {
	return func(o *createOptions) {
		o.requireExisting = true
	}
}

// Create returns a provider for loc, which must have the factory's spec.
func (f *Factory) Create(loc location.Location, opts ...CreateOption) (*Provider, error) {
	f.mu.Lock()
	closed := f.closed
	f.mu.Unlock()
	if closed {
		return nil, &ResolutionError{Location: loc, Cause: ErrFactoryClosed}
	}
	if err := loc.Validate(); err != nil {
		return nil, err
	}
	if loc.Spec() != f.spec {
		return nil, &ResolutionError{Location: loc, Cause: fmt.Errorf("factory serves %s", f.spec)}
	}
	var o createOptions
	for _, opt := range opts {
		opt(&o)
	}
	return &Provider{factory: f, loc: loc, requireExisting: o.requireExisting}, nil
}

// Close releases the factory's reference on its connection. A connection
// the factory created is closed by this; a reused one stays open while other
// references remain. Close is idempotent.
func (f *Factory) Close() error {
	f.closeOnce.Do(func() {
		f.mu.Lock()
		f.closed = true
		f.mu.Unlock()
		f.closeErr = f.conn.Release()
		if f.created {
			f.logger.Debug().Err(f.closeErr).Msg("released created connection")
		}
	})
	return f.closeErr
}

// Provider resolves one location (PathProvider).
type Provider struct {
	factory         *Factory
	loc             location.Location
	requireExisting bool

	once sync.Once
	path *filesystem.Path
	err  error

	mu     sync.Mutex
	closed bool
}

// Location returns the location this provider resolves.
func (p *Provider) Location() location.Location {
	return p.loc
}

// Path resolves the location. The first call does the work; later calls
// return the same path or error.
func (p *Provider) Path() (*filesystem.Path, error) {
	p.mu.Lock()
	closed := p.closed
	p.mu.Unlock()
	if closed {
		return nil, &ResolutionError{Location: p.loc, Cause: filesystem.ErrClosed}
	}
	p.once.Do(func() {
		p.path, p.err = p.resolve()
	})
	return p.path, p.err
}

func (p *Provider) resolve() (*filesystem.Path, error) {
	fsys := p.factory.conn.FileSystem()
	raw := p.loc.Path
	if p.loc.Category == location.CustomURL {
		u, err := url.Parse(raw)
		if err != nil {
			return nil, &location.ValidationError{Location: p.loc, Reason: err.Error()}
		}
		raw = u.Path
	}
	path, err := fsys.GetPath(raw)
	if err != nil {
		return nil, &ResolutionError{Location: p.loc, Cause: err}
	}
	if !p.requireExisting {
		return path, nil
	}
	exists, err := filesystem.Exists(path)
	if err != nil {
		return nil, &ResolutionError{Location: p.loc, Cause: err}
	}
	if !exists {
		return nil, &ResolutionError{
			Location: p.loc,
			Cause:    &fs.PathError{Op: "resolve", Path: path.String(), Err: fs.ErrNotExist},
		}
	}
	return path, nil
}

// Close ends the provider. Paths already returned stay usable until the
// factory is closed.
func (p *Provider) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.closed = true
	return nil
}
