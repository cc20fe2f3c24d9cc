package filesystem

import (
	"fmt"
	"strings"

	"github.com/arthur-debert/fsconn/pkg/fsconn/location"
)

// Path is a path bound to one FileSystem (FSPath). It is an immutable list of
// name segments plus an absolute flag (the root marker) and a flag recording
// whether the string form ended with a separator. The trailing separator is
// kept in String() so that "folder/" round-trips verbatim.
//
// Pure path operations never touch the backing store and keep working after
// the file system is closed; I/O helpers in this package fail with ErrClosed.
type Path struct {
	fsys     FileSystem
	absolute bool
	names    []string
	trailing bool
}

// parsePath splits s on the file system separator. Empty segments are
// dropped, so repeated separators collapse.
func parsePath(fsys FileSystem, s string) *Path {
	sep := fsys.Separator()
	p := &Path{fsys: fsys, absolute: strings.HasPrefix(s, sep)}
	for _, name := range strings.Split(s, sep) {
		if name != "" {
			p.names = append(p.names, name)
		}
	}
	p.trailing = len(p.names) > 0 && strings.HasSuffix(s, sep)
	return p
}

// joinComponents concatenates path components with sep, skipping empty ones.
func joinComponents(sep, first string, more []string) string {
	var b strings.Builder
	b.WriteString(first)
	for _, m := range more {
		if m == "" {
			continue
		}
		if b.Len() > 0 {
			b.WriteString(sep)
		}
		b.WriteString(m)
	}
	return b.String()
}

func (p *Path) derive(absolute bool, names []string, trailing bool) *Path {
	return &Path{
		fsys:     p.fsys,
		absolute: absolute,
		names:    names,
		trailing: trailing && len(names) > 0,
	}
}

// FileSystem returns the file system that owns the path.
func (p *Path) FileSystem() FileSystem {
	return p.fsys
}

// String returns the path using the owning file system's separator.
func (p *Path) String() string {
	sep := p.fsys.Separator()
	var b strings.Builder
	if p.absolute {
		b.WriteString(sep)
	}
	b.WriteString(strings.Join(p.names, sep))
	if p.trailing && len(p.names) > 0 {
		b.WriteString(sep)
	}
	return b.String()
}

// IsAbsolute reports whether the path starts at the root.
func (p *Path) IsAbsolute() bool {
	return p.absolute
}

// IsEmpty reports whether the path has neither a root nor names.
func (p *Path) IsEmpty() bool {
	return !p.absolute && len(p.names) == 0
}

// HasTrailingSeparator reports whether the string form ends with a separator.
func (p *Path) HasTrailingSeparator() bool {
	return p.trailing
}

// Root returns the root path for absolute paths and nil otherwise.
func (p *Path) Root() *Path {
	if !p.absolute {
		return nil
	}
	return p.derive(true, nil, false)
}

// NameCount returns the number of name segments.
func (p *Path) NameCount() int {
	return len(p.names)
}

// Name returns the i-th name segment. It panics if i is out of range.
func (p *Path) Name(i int) string {
	return p.names[i]
}

// Names returns a copy of the name segments.
func (p *Path) Names() []string {
	return append([]string(nil), p.names...)
}

// FileName returns the last name segment as a relative path, or nil if the
// path has no names.
func (p *Path) FileName() *Path {
	if len(p.names) == 0 {
		return nil
	}
	return p.derive(false, []string{p.names[len(p.names)-1]}, false)
}

// Parent returns the parent path, or nil if there is none.
func (p *Path) Parent() *Path {
	switch {
	case len(p.names) == 0:
		return nil
	case len(p.names) == 1 && !p.absolute:
		return nil
	}
	return p.derive(p.absolute, append([]string(nil), p.names[:len(p.names)-1]...), false)
}

// Subpath returns the relative path made of names [begin, end).
func (p *Path) Subpath(begin, end int) (*Path, error) {
	if begin < 0 || end > len(p.names) || begin >= end {
		return nil, fmt.Errorf("invalid subpath range [%d, %d) for %q", begin, end, p.String())
	}
	return p.derive(false, append([]string(nil), p.names[begin:end]...), false), nil
}

// Resolve resolves other against p. An absolute other is returned as is, an
// empty other yields p, and a trailing separator on other is preserved.
func (p *Path) Resolve(other string) *Path {
	return p.resolve(parsePath(p.fsys, other))
}

// ResolvePath is Resolve for a Path of the same file system.
func (p *Path) ResolvePath(other *Path) (*Path, error) {
	if err := p.checkSameFileSystem(other); err != nil {
		return nil, err
	}
	return p.resolve(other), nil
}

func (p *Path) resolve(other *Path) *Path {
	switch {
	case other.absolute:
		return other
	case len(other.names) == 0:
		return p
	}
	names := make([]string, 0, len(p.names)+len(other.names))
	names = append(names, p.names...)
	names = append(names, other.names...)
	return p.derive(p.absolute, names, other.trailing)
}

// ResolveSibling resolves other against the parent of p.
func (p *Path) ResolveSibling(other string) *Path {
	parent := p.Parent()
	if parent == nil {
		return parsePath(p.fsys, other)
	}
	return parent.Resolve(other)
}

// Normalize removes "." segments and folds ".." into the preceding name.
// Leading ".." of a relative path are kept; on an absolute path they are
// dropped since nothing lies above the root.
func (p *Path) Normalize() *Path {
	names := make([]string, 0, len(p.names))
	for _, name := range p.names {
		switch name {
		case ".":
			continue
		case "..":
			if n := len(names); n > 0 && names[n-1] != ".." {
				names = names[:n-1]
				continue
			}
			if p.absolute {
				continue
			}
		}
		names = append(names, name)
	}
	return p.derive(p.absolute, names, p.trailing)
}

// Relativize constructs a relative path from p to other. Both paths must
// belong to the same file system and both be absolute or both relative.
func (p *Path) Relativize(other *Path) (*Path, error) {
	if err := p.checkSameFileSystem(other); err != nil {
		return nil, err
	}
	if p.absolute != other.absolute {
		return nil, fmt.Errorf("cannot relativize %q against %q: only one of them is absolute", other.String(), p.String())
	}
	common := 0
	for common < len(p.names) && common < len(other.names) && p.names[common] == other.names[common] {
		common++
	}
	names := make([]string, 0, len(p.names)-common+len(other.names)-common)
	for i := common; i < len(p.names); i++ {
		names = append(names, "..")
	}
	names = append(names, other.names[common:]...)
	return p.derive(false, names, other.trailing), nil
}

// ToAbsolute resolves a relative path against the working directory.
func (p *Path) ToAbsolute() *Path {
	if p.absolute {
		return p
	}
	return p.fsys.WorkingDirectory().resolve(p)
}

// StartsWith reports whether p begins with the names of other.
func (p *Path) StartsWith(other *Path) bool {
	if other == nil || p.fsys != other.fsys || p.absolute != other.absolute || len(other.names) > len(p.names) {
		return false
	}
	for i, name := range other.names {
		if p.names[i] != name {
			return false
		}
	}
	return true
}

// EndsWith reports whether p ends with the names of other. An absolute other
// only matches an equal path.
func (p *Path) EndsWith(other *Path) bool {
	if other == nil || p.fsys != other.fsys || len(other.names) > len(p.names) {
		return false
	}
	if other.absolute {
		return p.Equal(other)
	}
	offset := len(p.names) - len(other.names)
	for i, name := range other.names {
		if p.names[offset+i] != name {
			return false
		}
	}
	return true
}

// Equal reports whether both paths belong to the same file system and have
// the same string form.
func (p *Path) Equal(other *Path) bool {
	if p == nil || other == nil {
		return p == other
	}
	return p.fsys == other.fsys && p.String() == other.String()
}

// Compare orders paths lexicographically by their string form.
func (p *Path) Compare(other *Path) int {
	return strings.Compare(p.String(), other.String())
}

// ToLocation converts the path to its portable Location.
func (p *Path) ToLocation() location.Location {
	return p.fsys.ToLocation(p)
}

func (p *Path) checkSameFileSystem(other *Path) error {
	if other == nil || p.fsys != other.fsys {
		return ErrForeignPath
	}
	return nil
}
