package location

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

func TestNewValidatesSpecifier(t *testing.T) {
	testCases := []struct {
		name      string
		category  Category
		specifier string
		wantErr   bool
	}{
		{"local without specifier", Local, "", false},
		{"local with specifier", Local, "x", true},
		{"connected without specifier", Connected, "", true},
		{"connected with blank specifier", Connected, "   ", true},
		{"connected with specifier", Connected, "example", false},
		{"custom url without specifier", CustomURL, "", true},
		{"custom url with timeout", CustomURL, "1000", false},
		{"relative to workflow", Relative, "knime.workflow", false},
		{"relative to unknown", Relative, "knime.elsewhere", true},
		{"mountpoint with id", Mountpoint, "LOCAL", false},
		{"mountpoint without id", Mountpoint, "", true},
		{"unknown category", Category(42), "", true},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := New(tc.category, tc.specifier, "/some/path")
			if tc.wantErr {
				var verr *ValidationError
				assert.True(t, errors.As(err, &verr), "expected ValidationError, got %v", err)
				return
			}
			assert.NoError(t, err)
		})
	}
}

func TestLocationEquality(t *testing.T) {
	a := MustNew(Connected, "example", "/a/b")
	b := MustNew(Connected, "example", "/a/b")
	c := MustNew(Connected, "example", "/a/c")

	assert.Equal(t, a, b)
	assert.True(t, a == b)
	assert.False(t, a == c)
	assert.Equal(t, Spec{Category: Connected, Specifier: "example"}, a.Spec())
}

func TestParseCategory(t *testing.T) {
	for c, tag := range categoryTags {
		parsed, err := ParseCategory(tag)
		require.NoError(t, err)
		assert.Equal(t, c, parsed)
	}

	parsed, err := ParseCategory("custom_url")
	require.NoError(t, err)
	assert.Equal(t, CustomURL, parsed)

	_, err = ParseCategory("FTP")
	assert.Error(t, err)
}

func TestSerializedForm(t *testing.T) {
	loc := MustNew(Mountpoint, "TEAM", "/data/in.csv")

	t.Run("json", func(t *testing.T) {
		data, err := json.Marshal(loc)
		require.NoError(t, err)
		assert.JSONEq(t, `{"category":"MOUNTPOINT","specifier":"TEAM","path":"/data/in.csv"}`, string(data))

		var back Location
		require.NoError(t, json.Unmarshal(data, &back))
		assert.Equal(t, loc, back)
	})

	t.Run("yaml", func(t *testing.T) {
		data, err := yaml.Marshal(loc)
		require.NoError(t, err)

		var back Location
		require.NoError(t, yaml.Unmarshal(data, &back))
		assert.Equal(t, loc, back)
	})

	t.Run("invalid triple is rejected", func(t *testing.T) {
		var back Location
		err := json.Unmarshal([]byte(`{"category":"CONNECTED","path":"/x"}`), &back)
		var verr *ValidationError
		assert.True(t, errors.As(err, &verr))
	})
}

func TestSpecString(t *testing.T) {
	assert.Equal(t, "LOCAL", Spec{Category: Local}.String())
	assert.Equal(t, "CONNECTED:example", Spec{Category: Connected, Specifier: "example"}.String())
}
