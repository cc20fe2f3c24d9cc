package filesystem

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newExampleFS(t *testing.T) *BaseFileSystem {
	t.Helper()
	fsys, err := NewExample("/home/user")
	require.NoError(t, err)
	t.Cleanup(func() {
		_ = fsys.Close()
	})
	return fsys
}

func mustPath(t *testing.T, fsys FileSystem, first string, more ...string) *Path {
	t.Helper()
	p, err := fsys.GetPath(first, more...)
	require.NoError(t, err)
	return p
}

func TestGetPathDecomposition(t *testing.T) {
	fsys := newExampleFS(t)

	testCases := []struct {
		first    string
		more     []string
		expected string
		names    []string
		absolute bool
	}{
		{"/", []string{"a", "b"}, "/a/b", []string{"a", "b"}, true},
		{"a", []string{"b", "c"}, "a/b/c", []string{"a", "b", "c"}, false},
		{"/a/b", nil, "/a/b", []string{"a", "b"}, true},
		{"a//b", nil, "a/b", []string{"a", "b"}, false},
		{"/", []string{"a", "b/"}, "/a/b/", []string{"a", "b"}, true},
		{"", []string{"a", "", "b"}, "a/b", []string{"a", "b"}, false},
		{"/", nil, "/", nil, true},
		{"", nil, "", nil, false},
	}

	for _, tc := range testCases {
		t.Run(tc.expected, func(t *testing.T) {
			p := mustPath(t, fsys, tc.first, tc.more...)
			assert.Equal(t, tc.expected, p.String())
			assert.Equal(t, tc.absolute, p.IsAbsolute())
			require.Equal(t, len(tc.names), p.NameCount())
			for i, name := range tc.names {
				assert.Equal(t, name, p.Name(i))
			}
		})
	}
}

func TestResolve(t *testing.T) {
	fsys := newExampleFS(t)
	base := mustPath(t, fsys, "/folder1")

	t.Run("relative child", func(t *testing.T) {
		assert.Equal(t, "/folder1/child", base.Resolve("child").String())
	})

	t.Run("trailing separator is kept", func(t *testing.T) {
		assert.Equal(t, "/folder1/folder2/", base.Resolve("folder2/").String())
	})

	t.Run("absolute child replaces base", func(t *testing.T) {
		assert.Equal(t, "/other", base.Resolve("/other").String())
	})

	t.Run("empty child returns base", func(t *testing.T) {
		assert.Same(t, base, base.Resolve(""))
	})

	t.Run("equivalent construction", func(t *testing.T) {
		joined := mustPath(t, fsys, "/", "a", "b/")
		resolved := mustPath(t, fsys, "/", "a").Resolve("b/")
		assert.True(t, joined.Equal(resolved), "%s != %s", joined, resolved)
	})

	t.Run("foreign path", func(t *testing.T) {
		other := newExampleFS(t)
		_, err := base.ResolvePath(mustPath(t, other, "x"))
		assert.ErrorIs(t, err, ErrForeignPath)
	})
}

func TestNormalize(t *testing.T) {
	fsys := newExampleFS(t)

	testCases := map[string]string{
		"/a/./b/../c":  "/a/c",
		"a/../../b":    "../b",
		"/../a":        "/a",
		"./a/b/":       "a/b/",
		"a/b/../..":    "",
		"../../x/./y/": "../../x/y/",
	}
	for in, expected := range testCases {
		assert.Equal(t, expected, mustPath(t, fsys, in).Normalize().String(), "normalize(%q)", in)
	}
}

func TestRelativize(t *testing.T) {
	fsys := newExampleFS(t)

	testCases := []struct {
		base, other, expected string
	}{
		{"/a/b", "/a/b/c/d", "c/d"},
		{"/a/b", "/a/x", "../x"},
		{"/a/b", "/a/b", ""},
		{"/", "/a/b/", "a/b/"},
		{"a", "a/b", "b"},
	}
	for _, tc := range testCases {
		rel, err := mustPath(t, fsys, tc.base).Relativize(mustPath(t, fsys, tc.other))
		require.NoError(t, err)
		assert.Equal(t, tc.expected, rel.String())
		assert.False(t, rel.IsAbsolute())
	}

	_, err := mustPath(t, fsys, "/a").Relativize(mustPath(t, fsys, "b"))
	assert.Error(t, err)
}

func TestParentAndFileName(t *testing.T) {
	fsys := newExampleFS(t)

	p := mustPath(t, fsys, "/a/b/c/")
	assert.Equal(t, "/a/b", p.Parent().String())
	assert.Equal(t, "c", p.FileName().String())
	assert.Equal(t, "/", mustPath(t, fsys, "/a").Parent().String())
	assert.Nil(t, mustPath(t, fsys, "/").Parent())
	assert.Nil(t, mustPath(t, fsys, "a").Parent())
	assert.Nil(t, mustPath(t, fsys, "/").FileName())
	assert.Equal(t, "/", p.Root().String())
	assert.Nil(t, mustPath(t, fsys, "a").Root())
	assert.Equal(t, "/a/b/x", p.ResolveSibling("x").String())

	sub, err := p.Subpath(1, 3)
	require.NoError(t, err)
	assert.Equal(t, "b/c", sub.String())
	_, err = p.Subpath(2, 1)
	assert.Error(t, err)
}

func TestStartsAndEndsWith(t *testing.T) {
	fsys := newExampleFS(t)
	p := mustPath(t, fsys, "/a/b/c")

	assert.True(t, p.StartsWith(mustPath(t, fsys, "/a/b")))
	assert.False(t, p.StartsWith(mustPath(t, fsys, "a/b")))
	assert.False(t, p.StartsWith(mustPath(t, fsys, "/a/bc")))
	assert.True(t, p.EndsWith(mustPath(t, fsys, "b/c")))
	assert.True(t, p.EndsWith(mustPath(t, fsys, "/a/b/c")))
	assert.False(t, p.EndsWith(mustPath(t, fsys, "/b/c")))
}

func TestToAbsolute(t *testing.T) {
	fsys := newExampleFS(t)

	assert.Equal(t, "/home/user/docs/a.txt", mustPath(t, fsys, "docs/a.txt").ToAbsolute().String())
	abs := mustPath(t, fsys, "/x")
	assert.Same(t, abs, abs.ToAbsolute())
}

func TestToLocationRoundTrip(t *testing.T) {
	fsys := newExampleFS(t)

	for _, s := range []string{"/a/b", "rel/path", "/with/trailing/", "/some#path#with#hash#signs"} {
		p := mustPath(t, fsys, s)
		loc := p.ToLocation()
		assert.Equal(t, fsys.LocationSpec(), loc.Spec())

		back := mustPath(t, fsys, loc.Path)
		assert.True(t, p.Equal(back), "%s != %s", p, back)
		assert.Equal(t, loc, back.ToLocation())
	}
}

func TestGetPathOnClosedFileSystem(t *testing.T) {
	fsys := newExampleFS(t)
	require.NoError(t, fsys.Close())

	_, err := fsys.GetPath("/a")
	assert.True(t, errors.Is(err, ErrClosed))
}
