package testinit

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"sync"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/arthur-debert/fsconn/pkg/fsconn/filesystem"
)

func skipOnWindows(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("fsconn does not officially support Windows")
	}
}

func setupProvider(t *testing.T, typ string, props Properties, opts ...Option) Initializer {
	t.Helper()
	provider, ok := Lookup(typ)
	require.True(t, ok, "no provider %s", typ)
	init, err := provider.Setup(props, opts...)
	require.NoError(t, err)
	t.Cleanup(func() { _ = init.AfterClass() })
	return init
}

func TestProviderTypes(t *testing.T) {
	assert.Equal(t, []string{"example", "local", "mountpoint", "relativeto"}, Types())
}

func TestScratchDirectoryLifecycle(t *testing.T) {
	init := setupProvider(t, "example", Properties{"example.workingDirPrefix": "/tests"},
		WithPrefix("case-"), WithSuffix(".tmp"))

	assert.Nil(t, init.ScratchDir())
	_, err := init.MakePath("x")
	assert.ErrorIs(t, err, ErrNoTestCase)

	require.NoError(t, init.BeforeTestCase())
	scratch := init.ScratchDir()
	require.NotNil(t, scratch)

	name := scratch.FileName().String()
	assert.True(t, strings.HasPrefix(name, "case-"))
	assert.True(t, strings.HasSuffix(name, ".tmp"))
	assert.Greater(t, len(name), len("case-")+len(".tmp"))
	assert.Equal(t, "/tests", scratch.Parent().String())

	file, err := init.CreateFileWithContent("hello", "a", "b", "c.txt")
	require.NoError(t, err)
	data, err := filesystem.ReadFile(file)
	require.NoError(t, err)
	assert.Equal(t, "hello", string(data))
	assert.True(t, file.StartsWith(scratch))

	empty, err := init.CreateFile("empty.txt")
	require.NoError(t, err)
	info, err := filesystem.Stat(empty)
	require.NoError(t, err)
	assert.Equal(t, int64(0), info.Size())

	dir, err := init.CreateDirectories("d1", "d2")
	require.NoError(t, err)
	isDir, err := filesystem.IsDir(dir)
	require.NoError(t, err)
	assert.True(t, isDir)

	require.NoError(t, init.AfterTestCase())
	assert.Nil(t, init.ScratchDir())
	exists, err := filesystem.Exists(scratch)
	require.NoError(t, err)
	assert.False(t, exists)
}

func TestLoggerReachesInitializerAndConnection(t *testing.T) {
	var buf bytes.Buffer
	logger := zerolog.New(&buf).Level(zerolog.DebugLevel)
	init := setupProvider(t, "example", Properties{"example.workingDirPrefix": "/tests"},
		WithLogger(logger), WithPrefix("logged-"))

	require.NoError(t, init.BeforeTestCase())
	assert.True(t, strings.HasPrefix(init.ScratchDir().FileName().String(), "logged-"))

	out := buf.String()
	assert.Contains(t, out, "connection opened")
	assert.Contains(t, out, "created scratch directory")
}

func TestBeforeTestCaseCreatesFreshDirectories(t *testing.T) {
	init := setupProvider(t, "example", Properties{"example.workingDirPrefix": "/tests"})

	require.NoError(t, init.BeforeTestCase())
	first := init.ScratchDir()
	require.NoError(t, init.BeforeTestCase())
	second := init.ScratchDir()

	assert.False(t, first.Equal(second))
	exists, err := filesystem.Exists(first)
	require.NoError(t, err)
	assert.False(t, exists, "the previous scratch directory is removed")
}

func TestAfterClassClosesConnection(t *testing.T) {
	provider, _ := Lookup("example")
	init, err := provider.Setup(Properties{"example.workingDirPrefix": "/"})
	require.NoError(t, err)
	require.NoError(t, init.BeforeTestCase())

	require.NoError(t, init.AfterClass())
	assert.True(t, init.Connection().IsClosed())
	assert.NoError(t, init.AfterClass())
}

func TestParallelTestCasesAreIsolated(t *testing.T) {
	shared := setupProvider(t, "example", Properties{"example.workingDirPrefix": "/tests"})
	const cases = 12

	var wg sync.WaitGroup
	dirs := make(chan string, cases)
	for i := 0; i < cases; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			init := NewBaseInitializer(shared.Connection(), "/tests")
			if err := init.BeforeTestCase(); err != nil {
				t.Errorf("BeforeTestCase: %v", err)
				return
			}
			dirs <- init.ScratchDir().String()
			if _, err := init.CreateFile("same-name.txt"); err != nil {
				t.Errorf("CreateFile: %v", err)
			}
		}()
	}
	wg.Wait()
	close(dirs)

	seen := map[string]bool{}
	for d := range dirs {
		assert.False(t, seen[d])
		seen[d] = true
	}
	assert.Len(t, seen, cases)
}

func TestSetupHelper(t *testing.T) {
	init := setupProvider(t, "example", Properties{"example.workingDirPrefix": "/tests"})

	var scratch *filesystem.Path
	t.Run("case", func(t *testing.T) {
		scratch = Setup(t, init)
		require.NotNil(t, scratch)
		_, err := init.CreateFile("f.txt")
		require.NoError(t, err)
	})

	exists, err := filesystem.Exists(scratch)
	require.NoError(t, err)
	assert.False(t, exists, "cleanup removes the scratch directory")
}

func TestLocalAndMountpointProviders(t *testing.T) {
	skipOnWindows(t)
	root := t.TempDir()

	t.Run("local", func(t *testing.T) {
		init := setupProvider(t, "local", Properties{"local.workingDirPrefix": filepath.Join(root, "local")})
		scratch := Setup(t, init)
		_, err := os.Stat(scratch.String())
		assert.NoError(t, err)
	})

	t.Run("mountpoint", func(t *testing.T) {
		init := setupProvider(t, "mountpoint", Properties{
			"mountpoint.mountId":          "TEAM",
			"mountpoint.root":             root,
			"mountpoint.workingDirPrefix": "/scratch",
		})
		scratch := Setup(t, init)
		_, err := os.Stat(filepath.Join(root, filepath.FromSlash(scratch.String())))
		assert.NoError(t, err)
	})

	t.Run("relative to workflow", func(t *testing.T) {
		require.NoError(t, os.MkdirAll(filepath.Join(root, "project", "wf"), 0o755))
		init := setupProvider(t, "relativeto", Properties{
			"relativeto.mountRoot":    root,
			"relativeto.workflowPath": "/project/wf",
		})
		scratch := Setup(t, init)
		assert.Equal(t, "/project/wf", scratch.Parent().String())
	})
}

func TestProviderConfigErrors(t *testing.T) {
	tests := []struct {
		typ   string
		props Properties
		key   string
	}{
		{"local", Properties{}, "local.workingDirPrefix"},
		{"local", Properties{"local.workingDirPrefix": "relative"}, "local.workingDirPrefix"},
		{"mountpoint", Properties{"mountpoint.root": "/tmp"}, "mountpoint.mountId"},
		{"mountpoint", Properties{"mountpoint.mountId": "X"}, "mountpoint.root"},
		{"relativeto", Properties{"relativeto.type": "knime.space"}, "relativeto.type"},
		{"example", Properties{"example.workingDirPrefix": " "}, "example.workingDirPrefix"},
	}
	for _, tc := range tests {
		t.Run(tc.typ+"/"+tc.key, func(t *testing.T) {
			provider, ok := Lookup(tc.typ)
			require.True(t, ok)
			_, err := provider.Setup(tc.props)
			var cfgErr *ConfigError
			require.True(t, errors.As(err, &cfgErr), "got %v", err)
			assert.Equal(t, tc.key, cfgErr.Key)
		})
	}
}

func TestLoadProperties(t *testing.T) {
	file := filepath.Join(t.TempDir(), "test.properties")
	content := "# example backend\nexample.workingDirPrefix=/tests\nmountpoint.mountId=TEAM\n"
	require.NoError(t, os.WriteFile(file, []byte(content), 0o644))

	props, err := LoadProperties(file)
	require.NoError(t, err)
	assert.Equal(t, "/tests", props["example.workingDirPrefix"])
	assert.Equal(t, "TEAM", props["mountpoint.mountId"])

	parsed, err := ParseProperties(strings.NewReader(content))
	require.NoError(t, err)
	assert.Equal(t, props, parsed)

	_, err = LoadProperties(filepath.Join(t.TempDir(), "missing"))
	assert.Error(t, err)
}
