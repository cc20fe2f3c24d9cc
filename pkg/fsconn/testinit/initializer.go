// Package testinit prepares file system connections for tests.
//
// An Initializer owns a connection and gives every test case its own
// randomly named scratch directory below a configured working directory
// prefix. Test cases running in parallel each use their own Initializer
// (sharing a connection is fine), so they never see each other's files.
package testinit

import (
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/rs/zerolog"

	"github.com/arthur-debert/fsconn/pkg/fsconn/connection"
	"github.com/arthur-debert/fsconn/pkg/fsconn/filesystem"
)

// ErrNoTestCase is returned by path helpers called outside a test case.
var ErrNoTestCase = errors.New("no test case running, call BeforeTestCase first")

// Initializer sets up and tears down a file system for tests
// (FSTestInitializer).
type Initializer interface {
	Connection() *connection.Connection
	// ScratchDir returns the current test case's directory, nil outside a
	// test case.
	ScratchDir() *filesystem.Path
	BeforeTestCase() error
	AfterTestCase() error
	AfterClass() error
	// MakePath joins names below the scratch directory without touching the
	// file system.
	MakePath(names ...string) (*filesystem.Path, error)
	CreateFile(names ...string) (*filesystem.Path, error)
	CreateFileWithContent(content string, names ...string) (*filesystem.Path, error)
	CreateDirectories(names ...string) (*filesystem.Path, error)
}

type initOptions struct {
	prefix string
	suffix string
	logger zerolog.Logger
}

func newInitOptions(opts []Option) initOptions {
	o := initOptions{prefix: DefaultPrefix, logger: zerolog.Nop()}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// Option configures a BaseInitializer.
type Option func(*initOptions)

// WithPrefix sets the scratch directory name prefix.
func WithPrefix(prefix string) Option {
	return func(o *initOptions) {
		o.prefix = prefix
	}
}

// WithSuffix sets the scratch directory name suffix.
func WithSuffix(suffix string) Option {
	return func(o *initOptions) {
		o.suffix = suffix
	}
}

// WithLogger sets the initializer's logger. Providers hand it on to the
// connections they create.
func WithLogger(logger zerolog.Logger) Option {
	return func(o *initOptions) {
		o.logger = logger
	}
}

// DefaultPrefix is the scratch directory prefix when none is configured.
const DefaultPrefix = "fsconn-test-"

// BaseInitializer implements Initializer for any connection.
type BaseInitializer struct {
	conn      *connection.Connection
	workDir   string
	prefix    string
	suffix    string
	logger    zerolog.Logger
	closeOnce sync.Once
	closeErr  error

	mu      sync.Mutex
	scratch *filesystem.Path
}

var _ Initializer = (*BaseInitializer)(nil)

// NewBaseInitializer creates scratch directories below workingDirPrefix,
// which is resolved against the connection's working directory and created
// on first use.
func NewBaseInitializer(conn *connection.Connection, workingDirPrefix string, opts ...Option) *BaseInitializer {
	o := newInitOptions(opts)
	return &BaseInitializer{
		conn:    conn,
		workDir: workingDirPrefix,
		prefix:  o.prefix,
		suffix:  o.suffix,
		logger:  o.logger,
	}
}

func (b *BaseInitializer) Connection() *connection.Connection {
	return b.conn
}

func (b *BaseInitializer) ScratchDir() *filesystem.Path {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.scratch
}

// BeforeTestCase creates a fresh scratch directory. A scratch directory left
// over from a previous test case is deleted first.
func (b *BaseInitializer) BeforeTestCase() error {
	if err := b.AfterTestCase(); err != nil {
		return err
	}
	fsys := b.conn.FileSystem()
	parent, err := fsys.GetPath(b.workDir)
	if err != nil {
		return err
	}
	parent = parent.ToAbsolute().Normalize()
	if err := filesystem.CreateDirectories(parent); err != nil {
		return fmt.Errorf("failed to create working directory prefix %s: %w", parent, err)
	}
	scratch, err := filesystem.CreateRandomizedDirectory(parent, b.prefix, b.suffix)
	if err != nil {
		return fmt.Errorf("failed to create scratch directory: %w", err)
	}

	b.mu.Lock()
	b.scratch = scratch
	b.mu.Unlock()
	b.logger.Debug().Str("dir", scratch.String()).Msg("created scratch directory")
	return nil
}

// AfterTestCase deletes the scratch directory recursively.
func (b *BaseInitializer) AfterTestCase() error {
	b.mu.Lock()
	scratch := b.scratch
	b.scratch = nil
	b.mu.Unlock()
	if scratch == nil {
		return nil
	}
	if err := filesystem.DeleteRecursively(scratch); err != nil {
		return fmt.Errorf("failed to delete scratch directory %s: %w", scratch, err)
	}
	b.logger.Debug().Str("dir", scratch.String()).Msg("removed scratch directory")
	return nil
}

// AfterClass ends the current test case and closes the connection.
func (b *BaseInitializer) AfterClass() error {
	b.closeOnce.Do(func() {
		err := b.AfterTestCase()
		b.closeErr = errors.Join(err, b.conn.EnsureClosed())
	})
	return b.closeErr
}

func (b *BaseInitializer) MakePath(names ...string) (*filesystem.Path, error) {
	scratch := b.ScratchDir()
	if scratch == nil {
		return nil, ErrNoTestCase
	}
	p := scratch
	for _, name := range names {
		p = p.Resolve(name)
	}
	return p, nil
}

// CreateFile creates an empty file, creating missing parent directories.
func (b *BaseInitializer) CreateFile(names ...string) (*filesystem.Path, error) {
	return b.CreateFileWithContent("", names...)
}

func (b *BaseInitializer) CreateFileWithContent(content string, names ...string) (*filesystem.Path, error) {
	if len(names) == 0 {
		return nil, errors.New("file name required")
	}
	p, err := b.MakePath(names...)
	if err != nil {
		return nil, err
	}
	if parent := p.Parent(); parent != nil {
		if err := filesystem.CreateDirectories(parent); err != nil {
			return nil, err
		}
	}
	if err := filesystem.WriteFile(p, []byte(content)); err != nil {
		return nil, err
	}
	return p, nil
}

func (b *BaseInitializer) CreateDirectories(names ...string) (*filesystem.Path, error) {
	p, err := b.MakePath(names...)
	if err != nil {
		return nil, err
	}
	if err := filesystem.CreateDirectories(p); err != nil {
		return nil, err
	}
	return p, nil
}

// Setup starts a test case on init and ends it when the test finishes.
func Setup(t testing.TB, init Initializer) *filesystem.Path {
	t.Helper()
	if err := init.BeforeTestCase(); err != nil {
		t.Fatalf("Failed to set up test case: %v", err)
	}
	t.Cleanup(func() {
		if err := init.AfterTestCase(); err != nil {
			t.Errorf("Failed to clean up test case: %v", err)
		}
	})
	return init.ScratchDir()
}
