package filesystem

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"

	"github.com/google/uuid"
)

// maxRandomAttempts bounds the retries when a generated name already exists.
const maxRandomAttempts = 100

func randomInfix() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")[:16]
}

func checkAffixes(fsys FileSystem, prefix, suffix string) error {
	sep := fsys.Separator()
	if strings.Contains(prefix, sep) || strings.Contains(suffix, sep) {
		return fmt.Errorf("prefix %q and suffix %q must not contain %q", prefix, suffix, sep)
	}
	return nil
}

// CreateRandomizedDirectory creates a new directory below parent named
// prefix + random infix + suffix. The infix is never empty. parent must be an
// existing directory; it is resolved against the working directory when
// relative.
func CreateRandomizedDirectory(parent *Path, prefix, suffix string) (*Path, error) {
	return createRandomized(parent, prefix, suffix, func(p *Path) error {
		return CreateDirectory(p)
	})
}

// CreateRandomizedFile is CreateRandomizedDirectory for an empty file.
func CreateRandomizedFile(parent *Path, prefix, suffix string) (*Path, error) {
	return createRandomized(parent, prefix, suffix, func(p *Path) error {
		f, err := createExclusive(p)
		if err != nil {
			return err
		}
		return f.Close()
	})
}

func createRandomized(parent *Path, prefix, suffix string, create func(*Path) error) (*Path, error) {
	if parent == nil {
		return nil, errors.New("parent folder is required")
	}
	if err := checkAffixes(parent.fsys, prefix, suffix); err != nil {
		return nil, err
	}
	dir := parent.ToAbsolute().Normalize()
	dir = dir.derive(true, dir.names, false)

	isDir, err := IsDir(dir)
	if err != nil {
		return nil, err
	}
	if !isDir {
		return nil, notExist("mkdir", dir)
	}

	for attempt := 0; attempt < maxRandomAttempts; attempt++ {
		candidate := dir.Resolve(prefix + randomInfix() + suffix)
		err := create(candidate)
		if err == nil {
			return candidate, nil
		}
		if !errors.Is(err, fs.ErrExist) {
			return nil, err
		}
	}
	return nil, fmt.Errorf("failed to create a unique name below %s after %d attempts", dir, maxRandomAttempts)
}

// CreateTempDirectory creates a randomized directory below parent. A nil
// parent means the working directory of fsys; a relative parent, including
// ".", is resolved against it. A missing parent fails with fs.ErrNotExist and
// nothing is created.
func CreateTempDirectory(fsys FileSystem, parent *Path, prefix, suffix string) (*Path, error) {
	parent, err := tempParent(fsys, parent)
	if err != nil {
		return nil, err
	}
	return CreateRandomizedDirectory(parent, prefix, suffix)
}

// CreateTempFile creates a randomized empty file below parent, with the same
// parent rules as CreateTempDirectory.
func CreateTempFile(fsys FileSystem, parent *Path, prefix, suffix string) (*Path, error) {
	parent, err := tempParent(fsys, parent)
	if err != nil {
		return nil, err
	}
	return CreateRandomizedFile(parent, prefix, suffix)
}

func tempParent(fsys FileSystem, parent *Path) (*Path, error) {
	if !fsys.IsOpen() {
		return nil, ErrClosed
	}
	if parent == nil {
		return fsys.WorkingDirectory(), nil
	}
	if parent.fsys != fsys {
		return nil, ErrForeignPath
	}
	return parent.ToAbsolute(), nil
}
