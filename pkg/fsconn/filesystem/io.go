package filesystem

import (
	"errors"
	"io"
	"io/fs"
	"os"
	"sync"

	"github.com/spf13/afero"
)

// File is an open file tracked by its file system. Closing the file system
// closes the File if the caller has not.
type File struct {
	afero.File
	path       *Path
	unregister func()
	once       sync.Once
	closeErr   error
}

// Path returns the path the file was opened with.
func (f *File) Path() *Path {
	return f.path
}

// Close closes the underlying file and stops tracking it. Repeated calls
// return the result of the first.
func (f *File) Close() error {
	f.once.Do(func() {
		if f.unregister != nil {
			f.unregister()
		}
		f.closeErr = f.File.Close()
	})
	return f.closeErr
}

func backing(p *Path) (afero.Fs, string, error) {
	name, err := p.fsys.BackingName(p)
	if err != nil {
		return nil, "", err
	}
	return p.fsys.Backing(), name, nil
}

func track(p *Path, af afero.File) (*File, error) {
	f := &File{File: af, path: p}
	unregister, err := p.fsys.RegisterCloseable(f)
	if err != nil {
		_ = af.Close()
		return nil, err
	}
	f.unregister = unregister
	return f, nil
}

func notExist(op string, p *Path) error {
	return &fs.PathError{Op: op, Path: p.String(), Err: fs.ErrNotExist}
}

// Stat returns the file info of p.
func Stat(p *Path) (fs.FileInfo, error) {
	afs, name, err := backing(p)
	if err != nil {
		return nil, err
	}
	return afs.Stat(name)
}

// Exists reports whether p exists. Only "not found" maps to false; other
// errors are returned.
func Exists(p *Path) (bool, error) {
	_, err := Stat(p)
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, fs.ErrNotExist):
		return false, nil
	}
	return false, err
}

// IsDir reports whether p exists and is a directory.
func IsDir(p *Path) (bool, error) {
	info, err := Stat(p)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return false, nil
		}
		return false, err
	}
	return info.IsDir(), nil
}

// ParentExists reports whether the parent folder of p exists. Errors while
// checking are inconclusive and reported as false.
func ParentExists(p *Path) bool {
	parent := p.ToAbsolute().Normalize().Parent()
	if parent == nil {
		return true
	}
	ok, err := IsDir(parent)
	return err == nil && ok
}

func requireParent(op string, p *Path) error {
	parent := p.ToAbsolute().Normalize().Parent()
	if parent == nil {
		return nil
	}
	ok, err := IsDir(parent)
	if err != nil {
		return err
	}
	if !ok {
		return notExist(op, parent)
	}
	return nil
}

// CreateDirectory creates the directory p. The parent must exist; missing
// intermediate directories are never created.
func CreateDirectory(p *Path) error {
	afs, name, err := backing(p)
	if err != nil {
		return err
	}
	if err := requireParent("mkdir", p); err != nil {
		return err
	}
	return afs.Mkdir(name, 0o755)
}

// CreateDirectories creates p and any missing parents.
func CreateDirectories(p *Path) error {
	afs, name, err := backing(p)
	if err != nil {
		return err
	}
	return afs.MkdirAll(name, 0o755)
}

// Create creates or truncates the file p. The parent must exist.
func Create(p *Path) (*File, error) {
	afs, name, err := backing(p)
	if err != nil {
		return nil, err
	}
	if err := requireParent("create", p); err != nil {
		return nil, err
	}
	af, err := afs.Create(name)
	if err != nil {
		return nil, err
	}
	return track(p, af)
}

// createExclusive creates p only if it does not exist yet.
func createExclusive(p *Path) (*File, error) {
	afs, name, err := backing(p)
	if err != nil {
		return nil, err
	}
	af, err := afs.OpenFile(name, os.O_RDWR|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return nil, err
	}
	return track(p, af)
}

// Open opens p for reading.
func Open(p *Path) (*File, error) {
	afs, name, err := backing(p)
	if err != nil {
		return nil, err
	}
	af, err := afs.Open(name)
	if err != nil {
		return nil, err
	}
	return track(p, af)
}

// WriteFile writes data to p, creating or truncating it.
func WriteFile(p *Path, data []byte) error {
	f, err := Create(p)
	if err != nil {
		return err
	}
	if _, err := f.Write(data); err != nil {
		_ = f.Close()
		return err
	}
	return f.Close()
}

// ReadFile reads the whole content of p.
func ReadFile(p *Path) ([]byte, error) {
	f, err := Open(p)
	if err != nil {
		return nil, err
	}
	defer func() {
		_ = f.Close()
	}()
	return io.ReadAll(f)
}

// ReadDir lists the children of the directory p, sorted by name.
func ReadDir(p *Path) ([]*Path, error) {
	afs, name, err := backing(p)
	if err != nil {
		return nil, err
	}
	infos, err := afero.ReadDir(afs, name)
	if err != nil {
		return nil, err
	}
	dir := p.derive(p.absolute, p.names, false)
	children := make([]*Path, 0, len(infos))
	for _, info := range infos {
		children = append(children, dir.Resolve(info.Name()))
	}
	return children, nil
}

// Delete removes the file or empty directory p.
func Delete(p *Path) error {
	afs, name, err := backing(p)
	if err != nil {
		return err
	}
	return afs.Remove(name)
}

// DeleteRecursively removes p and everything below it. A missing p is not
// an error.
func DeleteRecursively(p *Path) error {
	afs, name, err := backing(p)
	if err != nil {
		return err
	}
	return afs.RemoveAll(name)
}
