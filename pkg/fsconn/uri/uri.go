// Package uri converts paths to URIs.
//
// Each connection carries a set of ExporterFactory values; a factory builds
// an Exporter for a given Config. Exporters percent-encode reserved
// characters so that parsing the exported URI yields the original path
// string, including characters such as '#' and '?' that would otherwise
// start a fragment or query.
package uri

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/arthur-debert/fsconn/pkg/fsconn/filesystem"
	"github.com/arthur-debert/fsconn/pkg/fsconn/location"
)

// ExporterID names an exporter within a connection.
type ExporterID string

const (
	DefaultID  ExporterID = "default"
	ExampleID  ExporterID = "example"
	FileID     ExporterID = "file"
	KnimeURLID ExporterID = "knime-url"
	PathID     ExporterID = "path"
	URLID      ExporterID = "url"
)

// KnimeScheme is the scheme of workflow, mountpoint and relative-to URLs.
const KnimeScheme = "knime"

// Config holds exporter settings.
type Config struct {
	// Timeout is the connect/read timeout consumers of URL-based exports
	// should apply.
	Timeout time.Duration
}

// Exporter converts a path to a URI.
type Exporter interface {
	ToURI(p *filesystem.Path) (*url.URL, error)
}

// TimeoutExporter is implemented by exporters whose URIs are fetched over a
// connection that needs a timeout.
type TimeoutExporter interface {
	Exporter
	Timeout() time.Duration
}

// ExporterFunc adapts a function to Exporter.
type ExporterFunc func(p *filesystem.Path) (*url.URL, error)

func (f ExporterFunc) ToURI(p *filesystem.Path) (*url.URL, error) {
	return f(p)
}

// ExporterFactory creates exporters of one kind.
type ExporterFactory interface {
	ID() ExporterID
	Label() string
	Description() string
	NewExporter(cfg Config) (Exporter, error)
}

// ExportError reports a path that cannot be expressed by an exporter.
type ExportError struct {
	Path   string
	Reason string
}

func (e *ExportError) Error() string {
	return fmt.Sprintf("cannot export %q as URI: %s", e.Path, e.Reason)
}

type factory struct {
	id          ExporterID
	label       string
	description string
	build       func(Config) (Exporter, error)
}

// NewFactory returns an ExporterFactory calling build for each exporter.
func NewFactory(id ExporterID, label, description string, build func(Config) (Exporter, error)) ExporterFactory {
	return &factory{id: id, label: label, description: description, build: build}
}

func (f *factory) ID() ExporterID      { return f.id }
func (f *factory) Label() string       { return f.label }
func (f *factory) Description() string { return f.description }

func (f *factory) NewExporter(cfg Config) (Exporter, error) {
	return f.build(cfg)
}

// Alias returns a factory with a different id delegating to f. Connections
// use it to declare their default exporter.
func Alias(id ExporterID, f ExporterFactory) ExporterFactory {
	return NewFactory(id, f.Label(), f.Description(), f.NewExporter)
}

// build creates scheme://host/p and re-parses its string form, so the result
// is exactly what a consumer parsing the URI would see.
func build(scheme, host, p string) (*url.URL, error) {
	u := &url.URL{Scheme: scheme, Host: host, Path: p}
	parsed, err := url.Parse(u.String())
	if err != nil {
		return nil, &ExportError{Path: p, Reason: err.Error()}
	}
	if parsed.Path != p {
		return nil, &ExportError{Path: p, Reason: fmt.Sprintf("path changed to %q", parsed.Path)}
	}
	return parsed, nil
}

// absoluteSlashPath returns the absolute string form of p with "/" as
// separator, without normalizing it.
func absoluteSlashPath(p *filesystem.Path) string {
	abs := p.ToAbsolute()
	s := abs.String()
	if sep := p.FileSystem().Separator(); sep != "/" {
		s = strings.ReplaceAll(s, sep, "/")
	}
	return s
}

// NewSchemeExporter returns an exporter producing scheme://host/absolute/path.
func NewSchemeExporter(scheme, host string) Exporter {
	return ExporterFunc(func(p *filesystem.Path) (*url.URL, error) {
		return build(scheme, host, absoluteSlashPath(p))
	})
}

// NewFileExporter returns an exporter producing file URLs. root is the local
// folder backing the file system's root; empty for the local file system.
func NewFileExporter(root string) Exporter {
	root = strings.TrimSuffix(root, "/")
	return ExporterFunc(func(p *filesystem.Path) (*url.URL, error) {
		s := absoluteSlashPath(p)
		if root != "" {
			s = root + s
		}
		return build("file", "", s)
	})
}

// NewPathExporter returns an exporter producing a relative reference that
// holds only the path string.
func NewPathExporter() Exporter {
	return ExporterFunc(func(p *filesystem.Path) (*url.URL, error) {
		return &url.URL{Path: p.String()}, nil
	})
}

// NewKnimeURLExporter returns an exporter producing knime:// URLs for
// mountpoint and relative-to file systems:
//
//	knime://<mount id>/abs/path
//	knime://knime.mountpoint/abs/path
//	knime://knime.workflow/relative/path
//	knime://knime.workflow.data/relative/path
//
// The mount id is used as the host; filesystem.CheckMountID keeps it valid.
func NewKnimeURLExporter() Exporter {
	return ExporterFunc(func(p *filesystem.Path) (*url.URL, error) {
		spec := p.FileSystem().LocationSpec()
		switch spec.Category {
		case location.Mountpoint:
			return build(KnimeScheme, spec.Specifier, absoluteSlashPath(p))
		case location.Relative:
			rel, err := relativeToWorkingDir(p)
			if err != nil {
				return nil, err
			}
			return build(KnimeScheme, spec.Specifier, "/"+rel)
		}
		return nil, &ExportError{Path: p.String(), Reason: "knime URLs need a mountpoint or relative-to file system, got " + spec.String()}
	})
}

func relativeToWorkingDir(p *filesystem.Path) (string, error) {
	if !p.IsAbsolute() {
		return strings.Join(p.Names(), "/") + trailing(p), nil
	}
	rel, err := p.FileSystem().WorkingDirectory().Relativize(p)
	if err != nil {
		return "", &ExportError{Path: p.String(), Reason: err.Error()}
	}
	return strings.Join(rel.Names(), "/") + trailing(rel), nil
}

func trailing(p *filesystem.Path) string {
	if p.HasTrailingSeparator() {
		return "/"
	}
	return ""
}

type urlExporter struct {
	timeout time.Duration
}

func (e *urlExporter) ToURI(p *filesystem.Path) (*url.URL, error) {
	loc := p.ToLocation()
	if loc.Category != location.CustomURL {
		return nil, &ExportError{Path: p.String(), Reason: "not a custom URL location"}
	}
	return url.Parse(loc.Path)
}

func (e *urlExporter) Timeout() time.Duration {
	return e.timeout
}

// NewURLExporter returns the exporter of custom-URL file systems. The URI is
// the location's URL; cfg.Timeout is exposed through TimeoutExporter.
func NewURLExporter(cfg Config) Exporter {
	return &urlExporter{timeout: cfg.Timeout}
}
