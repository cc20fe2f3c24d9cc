// Package truncate shortens source paths into destination-relative paths for
// bulk copy and move operations.
package truncate

import (
	"fmt"

	"github.com/arthur-debert/fsconn/pkg/fsconn/filesystem"
)

// FilterMode tells what the base of a copy operation denotes.
type FilterMode int

const (
	// File copies a single file.
	File FilterMode = iota
	// Folder copies a folder including the folder itself.
	Folder
	// FilesInFolders copies the contents of a folder.
	FilesInFolders
)

func (m FilterMode) String() string {
	switch m {
	case File:
		return "FILE"
	case Folder:
		return "FOLDER"
	case FilesInFolders:
		return "FILES_IN_FOLDERS"
	}
	return fmt.Sprintf("FilterMode(%d)", int(m))
}

// ParseFilterMode parses the String form of a FilterMode.
func ParseFilterMode(s string) (FilterMode, error) {
	for _, m := range []FilterMode{File, Folder, FilesInFolders} {
		if m.String() == s {
			return m, nil
		}
	}
	return 0, fmt.Errorf("unknown filter mode %q", s)
}

// Truncator rewrites a source path into the form used at the destination.
type Truncator interface {
	Truncate(p *filesystem.Path) (*filesystem.Path, error)
}

// TruncatorFunc adapts a function to Truncator.
type TruncatorFunc func(p *filesystem.Path) (*filesystem.Path, error)

func (f TruncatorFunc) Truncate(p *filesystem.Path) (*filesystem.Path, error) {
	return f(p)
}

// TruncationError reports a path that cannot be truncated against its base.
type TruncationError struct {
	Path string
	Base string
}

func (e *TruncationError) Error() string {
	return fmt.Sprintf("cannot truncate %q: it is the base folder %q itself", e.Path, e.Base)
}

func normalizedAbsolute(p *filesystem.Path) *filesystem.Path {
	return p.ToAbsolute().Normalize()
}

// RelativePathTruncator makes paths relative to an effective base folder.
type RelativePathTruncator struct {
	base *filesystem.Path
}

// NewRelativePathTruncator computes the effective base once: the parent of
// base in File and Folder mode, base itself in FilesInFolders mode. The
// effective base is nil when base has no parent, and paths are then only
// normalized.
func NewRelativePathTruncator(base *filesystem.Path, mode FilterMode) *RelativePathTruncator {
	effective := normalizedAbsolute(base)
	if mode == File || mode == Folder {
		effective = effective.Parent()
	}
	return &RelativePathTruncator{base: effective}
}

// Base returns the effective base, possibly nil.
func (t *RelativePathTruncator) Base() *filesystem.Path {
	return t.base
}

// Truncate returns p relative to the effective base.
func (t *RelativePathTruncator) Truncate(p *filesystem.Path) (*filesystem.Path, error) {
	norm := normalizedAbsolute(p)
	if t.base == nil {
		return norm, nil
	}
	rel, err := t.base.Relativize(norm)
	if err != nil {
		return nil, err
	}
	if rel.IsEmpty() {
		return nil, &TruncationError{Path: p.String(), Base: t.base.String()}
	}
	return rel, nil
}

// KeepPathTruncator keeps the full normalized absolute path.
var KeepPathTruncator Truncator = TruncatorFunc(func(p *filesystem.Path) (*filesystem.Path, error) {
	return normalizedAbsolute(p), nil
})

// FileNameTruncator keeps only the file name, flattening folder structure.
var FileNameTruncator Truncator = TruncatorFunc(func(p *filesystem.Path) (*filesystem.Path, error) {
	name := normalizedAbsolute(p).FileName()
	if name == nil {
		return nil, &TruncationError{Path: p.String(), Base: p.String()}
	}
	return name, nil
})
