package filesystem

import (
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/rs/zerolog"
	"github.com/spf13/afero"

	"github.com/arthur-debert/fsconn/pkg/fsconn/location"
)

// Options configures a BaseFileSystem.
type Options struct {
	// Name is used in log events.
	Name string
	// Fs is the backing store. Names passed to it are absolute and use "/".
	Fs afero.Fs
	// Separator defaults to "/".
	Separator string
	// WorkingDirectory must be absolute; defaults to the root.
	WorkingDirectory string
	// Spec is reported by LocationSpec.
	Spec location.Spec
	// LocationFunc overrides the default path-to-location conversion, which
	// uses Spec and the path's string form.
	LocationFunc func(p *Path) location.Location
	Logger       zerolog.Logger
}

// Option mutates Options before a backend is built.
type Option func(*Options)

// WithLogger sets the logger of the file system.
func WithLogger(logger zerolog.Logger) Option {
	return func(o *Options) {
		o.Logger = logger
	}
}

// BaseFileSystem implements FileSystem on top of an afero.Fs. All backends in
// this package are configurations of it.
//
// Closing is idempotent. Resources still registered at close time are closed
// by Close. Operations already running when Close is called are not waited
// for; callers must quiesce a file system before closing it.
type BaseFileSystem struct {
	opts    Options
	workDir *Path
	logger  zerolog.Logger

	closed atomic.Bool

	mu         sync.Mutex
	closeables map[uint64]io.Closer
	nextID     uint64
}

var _ FileSystem = (*BaseFileSystem)(nil)

// NewBaseFileSystem builds a file system from opts.
func NewBaseFileSystem(opts Options) (*BaseFileSystem, error) {
	if opts.Fs == nil {
		return nil, errors.New("file system requires a backing store")
	}
	if opts.Separator == "" {
		opts.Separator = "/"
	}
	if opts.WorkingDirectory == "" {
		opts.WorkingDirectory = opts.Separator
	}
	if opts.Name == "" {
		opts.Name = strings.ToLower(opts.Spec.Category.String())
	}

	bfs := &BaseFileSystem{
		opts:       opts,
		logger:     opts.Logger.With().Str("fs", opts.Name).Logger(),
		closeables: make(map[uint64]io.Closer),
	}
	wd := parsePath(bfs, opts.WorkingDirectory)
	if !wd.IsAbsolute() {
		return nil, fmt.Errorf("working directory %q of %s file system is not absolute", opts.WorkingDirectory, opts.Name)
	}
	bfs.workDir = wd.Normalize()
	bfs.workDir.trailing = false

	bfs.logger.Debug().
		Str("working_dir", bfs.workDir.String()).
		Str("spec", opts.Spec.String()).
		Msg("file system opened")
	return bfs, nil
}

func (b *BaseFileSystem) Name() string { return b.opts.Name }

func (b *BaseFileSystem) Separator() string { return b.opts.Separator }

func (b *BaseFileSystem) WorkingDirectory() *Path { return b.workDir }

func (b *BaseFileSystem) LocationSpec() location.Spec { return b.opts.Spec }

func (b *BaseFileSystem) Backing() afero.Fs { return b.opts.Fs }

func (b *BaseFileSystem) IsOpen() bool { return !b.closed.Load() }

// GetPath joins first and more with the separator and parses the result.
func (b *BaseFileSystem) GetPath(first string, more ...string) (*Path, error) {
	if !b.IsOpen() {
		return nil, ErrClosed
	}
	return parsePath(b, joinComponents(b.opts.Separator, first, more)), nil
}

// ToLocation converts p to a Location using LocationFunc or the spec.
func (b *BaseFileSystem) ToLocation(p *Path) location.Location {
	if b.opts.LocationFunc != nil {
		return b.opts.LocationFunc(p)
	}
	return location.Location{
		Category:  b.opts.Spec.Category,
		Specifier: b.opts.Spec.Specifier,
		Path:      p.String(),
	}
}

// BackingName returns the absolute, normalized, slash separated name of p.
func (b *BaseFileSystem) BackingName(p *Path) (string, error) {
	if !b.IsOpen() {
		return "", ErrClosed
	}
	if p.fsys != FileSystem(b) {
		return "", ErrForeignPath
	}
	abs := p.ToAbsolute().Normalize()
	return "/" + strings.Join(abs.names, "/"), nil
}

// RegisterCloseable tracks c until unregister is called or the file system
// closes.
func (b *BaseFileSystem) RegisterCloseable(c io.Closer) (func(), error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if !b.IsOpen() {
		return nil, ErrClosed
	}
	b.nextID++
	id := b.nextID
	b.closeables[id] = c
	return func() {
		b.mu.Lock()
		delete(b.closeables, id)
		b.mu.Unlock()
	}, nil
}

// OpenResources returns the number of tracked resources.
func (b *BaseFileSystem) OpenResources() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.closeables)
}

// Close marks the file system closed and closes all tracked resources. Only
// the first call does any work.
func (b *BaseFileSystem) Close() error {
	b.mu.Lock()
	if !b.closed.CompareAndSwap(false, true) {
		b.mu.Unlock()
		return nil
	}
	leaked := make([]io.Closer, 0, len(b.closeables))
	for _, c := range b.closeables {
		leaked = append(leaked, c)
	}
	b.closeables = make(map[uint64]io.Closer)
	b.mu.Unlock()

	if len(leaked) > 0 {
		b.logger.Warn().Int("count", len(leaked)).Msg("closing resources left open")
	}
	var errs []error
	for _, c := range leaked {
		if err := c.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	b.logger.Debug().Msg("file system closed")
	return errors.Join(errs...)
}
