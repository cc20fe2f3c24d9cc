package filesystem

import (
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/afero"

	"github.com/arthur-debert/fsconn/pkg/fsconn/location"
)

// ExampleSpecifier is the specifier of the Example connector's locations.
const ExampleSpecifier = "example"

func buildOptions(base Options, opts []Option) Options {
	for _, opt := range opts {
		opt(&base)
	}
	return base
}

// NewLocal returns the local disk file system. Relative paths resolve against
// the process working directory.
func NewLocal(opts ...Option) (*BaseFileSystem, error) {
	wd, err := os.Getwd()
	if err != nil {
		return nil, fmt.Errorf("failed to determine working directory: %w", err)
	}
	return NewBaseFileSystem(buildOptions(Options{
		Name:             "local",
		Fs:               afero.NewOsFs(),
		Separator:        string(filepath.Separator),
		WorkingDirectory: wd,
		Spec:             location.Spec{Category: location.Local},
	}, opts))
}

// NewMountpoint returns a file system rooted at the local folder root and
// addressed by the mountpoint id.
func NewMountpoint(mountID, root string, opts ...Option) (*BaseFileSystem, error) {
	if err := CheckMountID(mountID); err != nil {
		return nil, err
	}
	if err := checkLocalDir(root); err != nil {
		return nil, fmt.Errorf("mountpoint %s: %w", mountID, err)
	}
	return NewBaseFileSystem(buildOptions(Options{
		Name: "mountpoint:" + mountID,
		Fs:   afero.NewBasePathFs(afero.NewOsFs(), root),
		Spec: location.Spec{Category: location.Mountpoint, Specifier: mountID},
	}, opts))
}

// CheckMountID reports whether id can address a mountpoint. Mountpoint ids
// become the host of knime:// URLs, so they are limited to ASCII letters,
// digits and "-._~".
func CheckMountID(id string) error {
	if id == "" {
		return errors.New("mountpoint id must not be empty")
	}
	for _, r := range id {
		switch {
		case 'a' <= r && r <= 'z', 'A' <= r && r <= 'Z', '0' <= r && r <= '9':
		case strings.ContainsRune("-._~", r):
		default:
			return fmt.Errorf("mountpoint id %q: %q is not allowed in a URL host", id, r)
		}
	}
	return nil
}

// RelativeToOptions describes the workflow a relative-to file system belongs to.
type RelativeToOptions struct {
	Type location.RelativeTo
	// MountRoot is the local folder of the mountpoint holding the workflow.
	MountRoot string
	// WorkflowPath is the absolute, slash separated path of the workflow
	// inside the mountpoint.
	WorkflowPath string
}

// NewRelativeTo returns a file system for paths relative to a workflow, its
// mountpoint or its data area. Workflow-relative paths resolve against the
// workflow folder; the other two resolve against their root.
func NewRelativeTo(rt RelativeToOptions, opts ...Option) (*BaseFileSystem, error) {
	if err := checkLocalDir(rt.MountRoot); err != nil {
		return nil, fmt.Errorf("relative-to %s: %w", rt.Type, err)
	}
	workflow := path.Clean("/" + filepath.ToSlash(rt.WorkflowPath))

	base := Options{
		Name: "relative:" + string(rt.Type),
		Spec: location.Spec{Category: location.Relative, Specifier: string(rt.Type)},
	}
	switch rt.Type {
	case location.RelativeToWorkflow:
		base.Fs = afero.NewBasePathFs(afero.NewOsFs(), rt.MountRoot)
		base.WorkingDirectory = workflow
	case location.RelativeToMountpoint:
		base.Fs = afero.NewBasePathFs(afero.NewOsFs(), rt.MountRoot)
	case location.RelativeToWorkflowData:
		dataDir := filepath.Join(rt.MountRoot, filepath.FromSlash(workflow), "data")
		if err := os.MkdirAll(dataDir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create workflow data area: %w", err)
		}
		base.Fs = afero.NewBasePathFs(afero.NewOsFs(), dataDir)
	default:
		return nil, fmt.Errorf("unknown relative-to type %q", rt.Type)
	}
	return NewBaseFileSystem(buildOptions(base, opts))
}

// NewExample returns the in-memory file system of the Example connector.
// The working directory is created if missing.
func NewExample(workingDir string, opts ...Option) (*BaseFileSystem, error) {
	if workingDir == "" {
		workingDir = "/"
	}
	mem := afero.NewMemMapFs()
	if err := mem.MkdirAll(path.Clean(workingDir), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create example working directory: %w", err)
	}
	return NewBaseFileSystem(buildOptions(Options{
		Name:             "example",
		Fs:               mem,
		WorkingDirectory: workingDir,
		Spec:             location.Spec{Category: location.Connected, Specifier: ExampleSpecifier},
	}, opts))
}

// NewCustomURL returns a read-only file system for URLs sharing base's
// scheme and authority. Only file URLs are supported. Query and fragment of
// resolved URLs are not part of the path and are not preserved. Paths are
// built from the decoded URL path, so an escaped separator such as %2F is
// normalized into a real one: file:///tmp/a%2Fb maps to /tmp/a/b.
func NewCustomURL(base *url.URL, timeout time.Duration, opts ...Option) (*BaseFileSystem, error) {
	if base.Scheme != "file" {
		return nil, fmt.Errorf("unsupported URL scheme %q", base.Scheme)
	}
	if timeout <= 0 {
		return nil, fmt.Errorf("URL timeout must be positive, got %v", timeout)
	}
	origin := url.URL{Scheme: base.Scheme, Host: base.Host}
	spec := location.Spec{
		Category:  location.CustomURL,
		Specifier: strconv.FormatInt(timeout.Milliseconds(), 10),
	}
	return NewBaseFileSystem(buildOptions(Options{
		Name: "url:" + origin.Scheme,
		Fs:   afero.NewReadOnlyFs(afero.NewOsFs()),
		Spec: spec,
		LocationFunc: func(p *Path) location.Location {
			u := origin
			u.Path = p.ToAbsolute().String()
			return location.Location{Category: spec.Category, Specifier: spec.Specifier, Path: u.String()}
		},
	}, opts))
}

func checkLocalDir(dir string) error {
	if !filepath.IsAbs(dir) {
		return fmt.Errorf("folder %q is not absolute", dir)
	}
	info, err := os.Stat(dir)
	if err != nil {
		return err
	}
	if !info.IsDir() {
		return &fs.PathError{Op: "stat", Path: dir, Err: errors.New("not a directory")}
	}
	return nil
}
