package connection

import (
	"bytes"
	"net/url"
	"os"
	"path/filepath"
	"runtime"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/arthur-debert/fsconn/pkg/fsconn/filesystem"
	"github.com/arthur-debert/fsconn/pkg/fsconn/uri"
)

func newExampleConnection(t *testing.T, opts ...ConnectionOption) *Connection {
	t.Helper()
	conn, err := NewExampleConnection("/work", opts...)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.EnsureClosed() })
	return conn
}

func TestConnectionReferenceCounting(t *testing.T) {
	conn := newExampleConnection(t)
	assert.Equal(t, int64(1), conn.RefCount())

	require.NoError(t, conn.Retain())
	assert.Equal(t, int64(2), conn.RefCount())

	require.NoError(t, conn.Release())
	assert.False(t, conn.IsClosed())
	assert.True(t, conn.FileSystem().IsOpen())

	require.NoError(t, conn.Release())
	assert.True(t, conn.IsClosed())
	assert.False(t, conn.FileSystem().IsOpen())

	assert.ErrorIs(t, conn.Retain(), ErrConnectionClosed)
	assert.NoError(t, conn.Release(), "extra releases are ignored")
}

func TestConnectionEnsureClosedIsIdempotent(t *testing.T) {
	conn := newExampleConnection(t)
	require.NoError(t, conn.Retain())

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := conn.EnsureClosed(); err != nil {
				t.Errorf("EnsureClosed failed: %v", err)
			}
		}()
	}
	wg.Wait()

	assert.True(t, conn.IsClosed())
	assert.Equal(t, int64(0), conn.RefCount())
	_, err := conn.DefaultExporter(uri.Config{})
	assert.ErrorIs(t, err, ErrConnectionClosed)

	p := conn.FileSystem().WorkingDirectory()
	_, err = filesystem.Exists(p)
	assert.ErrorIs(t, err, filesystem.ErrClosed)
}

func TestConnectionConcurrentRetainRelease(t *testing.T) {
	conn := newExampleConnection(t)

	var wg sync.WaitGroup
	for i := 0; i < 32; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := conn.Retain(); err != nil {
				t.Errorf("Retain failed: %v", err)
				return
			}
			_ = conn.Release()
		}()
	}
	wg.Wait()

	assert.Equal(t, int64(1), conn.RefCount())
	assert.False(t, conn.IsClosed())
}

func TestConnectionExporters(t *testing.T) {
	conn := newExampleConnection(t)

	exporter, err := conn.DefaultExporter(uri.Config{})
	require.NoError(t, err)
	p, err := conn.FileSystem().GetPath("/some#path#with#hash#signs")
	require.NoError(t, err)
	u, err := exporter.ToURI(p)
	require.NoError(t, err)
	assert.Equal(t, "example://example/some%23path%23with%23hash%23signs", u.String())
	assert.Equal(t, p.String(), u.Path)

	_, err = conn.Exporter(uri.KnimeURLID, uri.Config{})
	assert.Error(t, err)

	var ids []uri.ExporterID
	for _, f := range conn.ExporterFactories() {
		ids = append(ids, f.ID())
	}
	assert.Equal(t, []uri.ExporterID{uri.DefaultID, uri.ExampleID, uri.PathID}, ids)
}

func TestConnectionOverridesDefaultExporter(t *testing.T) {
	custom := uri.NewFactory(uri.PathID, "Custom", "", func(uri.Config) (uri.Exporter, error) {
		return uri.NewSchemeExporter("custom", ""), nil
	})
	conn := newExampleConnection(t, WithDefaultExporter(custom))

	exporter, err := conn.DefaultExporter(uri.Config{})
	require.NoError(t, err)
	u, err := exporter.ToURI(conn.FileSystem().WorkingDirectory())
	require.NoError(t, err)
	assert.Equal(t, "custom", u.Scheme)
}

func TestConnectionLoggerReachesFileSystem(t *testing.T) {
	var buf bytes.Buffer
	logger := zerolog.New(&buf).Level(zerolog.DebugLevel)
	newExampleConnection(t, WithExporter(pathFactory), WithLogger(logger))

	out := buf.String()
	assert.Contains(t, out, "file system opened")
	assert.Contains(t, out, "connection opened")
}

func TestMountpointConnection(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("fsconn does not officially support Windows")
	}
	root := t.TempDir()

	conn, err := NewMountpointConnection("TEAM", root)
	require.NoError(t, err)
	defer conn.EnsureClosed()

	p, err := conn.FileSystem().GetPath("/data/a b.csv")
	require.NoError(t, err)

	def, err := conn.DefaultExporter(uri.Config{})
	require.NoError(t, err)
	u, err := def.ToURI(p)
	require.NoError(t, err)
	assert.Equal(t, "knime://TEAM/data/a%20b.csv", u.String())

	file, err := conn.Exporter(uri.FileID, uri.Config{})
	require.NoError(t, err)
	u, err = file.ToURI(p)
	require.NoError(t, err)
	assert.Equal(t, filepath.ToSlash(root)+"/data/a b.csv", u.Path)
}

func TestCustomURLConnectionTimeout(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("fsconn does not officially support Windows")
	}
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "f.txt"), []byte("x"), 0o644))
	base, err := url.Parse("file://" + filepath.ToSlash(dir))
	require.NoError(t, err)

	conn, err := NewCustomURLConnection(base, 3*time.Second)
	require.NoError(t, err)
	defer conn.EnsureClosed()

	exporter, err := conn.DefaultExporter(uri.Config{})
	require.NoError(t, err)
	timed, ok := exporter.(uri.TimeoutExporter)
	require.True(t, ok)
	assert.Equal(t, 3*time.Second, timed.Timeout())

	exporter, err = conn.DefaultExporter(uri.Config{Timeout: time.Second})
	require.NoError(t, err)
	assert.Equal(t, time.Second, exporter.(uri.TimeoutExporter).Timeout())
}

func TestSequenceKeyGenerator(t *testing.T) {
	gen := SequenceKeyGenerator("conn-")
	assert.Equal(t, "conn-1", gen())
	assert.Equal(t, "conn-2", gen())

	other := SequenceKeyGenerator("conn-")
	assert.Equal(t, "conn-1", other(), "generators do not share state")
}

func TestUUIDKeyGenerator(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 100; i++ {
		key := UUIDKeyGenerator()
		assert.Len(t, key, 36)
		assert.False(t, seen[key])
		seen[key] = true
	}
}

func TestConnectionMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	m, err := NewMetrics(reg)
	require.NoError(t, err)

	conn, err := NewExampleConnection("/", WithMetrics(m))
	require.NoError(t, err)
	assert.Equal(t, 1.0, testutil.ToFloat64(m.open))

	_, err = filesystem.Create(mustGetPath(t, conn, "/leaked.txt"))
	require.NoError(t, err)

	require.NoError(t, conn.EnsureClosed())
	assert.Equal(t, 0.0, testutil.ToFloat64(m.open))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.forceClosed))

	_, err = NewMetrics(reg)
	assert.Error(t, err, "collectors cannot be registered twice")
}

func mustGetPath(t *testing.T, conn *Connection, s string) *filesystem.Path {
	t.Helper()
	p, err := conn.FileSystem().GetPath(s)
	require.NoError(t, err)
	return p
}
