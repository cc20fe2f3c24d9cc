package connection

import (
	"net/url"
	"path/filepath"
	"time"

	"github.com/arthur-debert/fsconn/pkg/fsconn/filesystem"
	"github.com/arthur-debert/fsconn/pkg/fsconn/location"
	"github.com/arthur-debert/fsconn/pkg/fsconn/uri"
)

func exporterFactory(id uri.ExporterID, label, description string, exporter uri.Exporter) uri.ExporterFactory {
	return uri.NewFactory(id, label, description, func(uri.Config) (uri.Exporter, error) {
		return exporter, nil
	})
}

var pathFactory = exporterFactory(uri.PathID, "Path", "Relative URI holding only the path", uri.NewPathExporter())

func knimeURLFactory() uri.ExporterFactory {
	return exporterFactory(uri.KnimeURLID, "KNIME URL", "knime:// URL addressing the mountpoint or workflow", uri.NewKnimeURLExporter())
}

func fileFactory(root string) uri.ExporterFactory {
	return exporterFactory(uri.FileID, "file URL", "file:// URL of the backing local file", uri.NewFileExporter(filepath.ToSlash(root)))
}

// connect builds the file system with the logger from opts and wraps it in
// a connection. defaults are applied first so that exporters passed in opts
// override them.
func connect(build func(filesystem.Option) (*filesystem.BaseFileSystem, error), defaults []ConnectionOption, opts []ConnectionOption) (*Connection, error) {
	cfg := newConnectionConfig(append(defaults, opts...))
	fsys, err := build(filesystem.WithLogger(cfg.logger))
	if err != nil {
		return nil, err
	}
	return newConnection(fsys, cfg), nil
}

// NewLocalConnection connects to the local disk.
func NewLocalConnection(opts ...ConnectionOption) (*Connection, error) {
	return connect(func(o filesystem.Option) (*filesystem.BaseFileSystem, error) {
		return filesystem.NewLocal(o)
	}, []ConnectionOption{
		WithDefaultExporter(fileFactory("")),
		WithExporter(pathFactory),
	}, opts)
}

// NewMountpointConnection connects to the mountpoint mountID backed by the
// local folder root.
func NewMountpointConnection(mountID, root string, opts ...ConnectionOption) (*Connection, error) {
	return connect(func(o filesystem.Option) (*filesystem.BaseFileSystem, error) {
		return filesystem.NewMountpoint(mountID, root, o)
	}, []ConnectionOption{
		WithDefaultExporter(knimeURLFactory()),
		WithExporter(fileFactory(root)),
		WithExporter(pathFactory),
	}, opts)
}

// NewRelativeToConnection connects to a workflow, its mountpoint or its data
// area.
func NewRelativeToConnection(rt filesystem.RelativeToOptions, opts ...ConnectionOption) (*Connection, error) {
	root := rt.MountRoot
	if rt.Type == location.RelativeToWorkflowData {
		root = filepath.Join(rt.MountRoot, filepath.FromSlash(rt.WorkflowPath), "data")
	}
	return connect(func(o filesystem.Option) (*filesystem.BaseFileSystem, error) {
		return filesystem.NewRelativeTo(rt, o)
	}, []ConnectionOption{
		WithDefaultExporter(knimeURLFactory()),
		WithExporter(fileFactory(root)),
		WithExporter(pathFactory),
	}, opts)
}

// NewExampleConnection connects to a fresh in-memory file system standing in
// for a remote connector.
func NewExampleConnection(workingDir string, opts ...ConnectionOption) (*Connection, error) {
	return connect(func(o filesystem.Option) (*filesystem.BaseFileSystem, error) {
		return filesystem.NewExample(workingDir, o)
	}, []ConnectionOption{
		WithDefaultExporter(exporterFactory(uri.ExampleID, "Example URL", "example://example/ URL of the in-memory file system",
			uri.NewSchemeExporter(filesystem.ExampleSpecifier, filesystem.ExampleSpecifier))),
		WithExporter(pathFactory),
	}, opts)
}

// NewCustomURLConnection connects to URLs sharing base's scheme and
// authority. timeout is handed to the URL exporter.
func NewCustomURLConnection(base *url.URL, timeout time.Duration, opts ...ConnectionOption) (*Connection, error) {
	urlFactory := uri.NewFactory(uri.URLID, "URL", "The location's URL", func(cfg uri.Config) (uri.Exporter, error) {
		if cfg.Timeout <= 0 {
			cfg.Timeout = timeout
		}
		return uri.NewURLExporter(cfg), nil
	})
	return connect(func(o filesystem.Option) (*filesystem.BaseFileSystem, error) {
		return filesystem.NewCustomURL(base, timeout, o)
	}, []ConnectionOption{
		WithDefaultExporter(urlFactory),
		WithExporter(pathFactory),
	}, opts)
}
