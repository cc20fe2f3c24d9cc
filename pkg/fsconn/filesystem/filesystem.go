// Package filesystem provides the uniform path API over heterogeneous
// storage backends.
//
// Every backend is a FileSystem: it parses path strings into Path values,
// knows its working directory and separator, maps paths to names in its
// backing afero.Fs, and tracks the closeable resources opened through it so
// that Close can release whatever callers leaked.
package filesystem

import (
	"errors"
	"io"

	"github.com/spf13/afero"

	"github.com/arthur-debert/fsconn/pkg/fsconn/location"
)

var (
	// ErrClosed is returned by any operation on a closed file system or on a
	// path derived from one.
	ErrClosed = errors.New("file system is closed")

	// ErrForeignPath is returned when a path of one file system is passed to
	// an operation of another.
	ErrForeignPath = errors.New("path belongs to a different file system")
)

// FileSystem is the capability set every backend provides.
type FileSystem interface {
	io.Closer

	// Name is a short human readable backend name used in logs.
	Name() string

	// Separator is the name separator of this file system's paths.
	Separator() string

	// GetPath joins the components with the separator and parses the result.
	GetPath(first string, more ...string) (*Path, error)

	// WorkingDirectory is the absolute path relative paths resolve against.
	WorkingDirectory() *Path

	// LocationSpec returns the category and specifier of locations on this
	// file system.
	LocationSpec() location.Spec

	// ToLocation converts one of this file system's paths to a Location.
	ToLocation(p *Path) location.Location

	// Backing returns the store holding the data.
	Backing() afero.Fs

	// BackingName maps a path to the name understood by Backing.
	BackingName(p *Path) (string, error)

	// RegisterCloseable tracks c until the returned func is called. Tracked
	// resources are closed when the file system closes.
	RegisterCloseable(c io.Closer) (unregister func(), err error)

	// IsOpen reports whether Close has not been called yet.
	IsOpen() bool
}
