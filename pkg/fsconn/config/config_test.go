package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const fullConfig = `
log_level: debug
workflow:
  mount_root: /srv/mount
  mount_id: LOCAL
  path: /project/workflow
mountpoints:
  TEAM: /srv/team
example:
  working_directory: /home
custom_url:
  timeout: 1500ms
metrics:
  addr: 0.0.0.0:9000
`

func TestParseFullConfig(t *testing.T) {
	cfg, err := Parse([]byte(fullConfig))
	require.NoError(t, err)

	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, Workflow{MountRoot: "/srv/mount", MountID: "LOCAL", Path: "/project/workflow"}, cfg.Workflow)
	assert.Equal(t, map[string]string{"TEAM": "/srv/team"}, cfg.Mountpoints)
	assert.Equal(t, "/home", cfg.Example.WorkingDirectory)
	assert.Equal(t, 1500*time.Millisecond, cfg.CustomURL.Timeout)
	assert.Equal(t, "0.0.0.0:9000", cfg.Metrics.Addr)

	assert.Equal(t, map[string]string{"TEAM": "/srv/team", "LOCAL": "/srv/mount"}, cfg.MountpointRoots())
}

func TestParseAppliesDefaults(t *testing.T) {
	cfg, err := Parse([]byte("log_level: info\n"))
	require.NoError(t, err)
	def := Default()
	assert.Equal(t, def.CustomURL, cfg.CustomURL)
	assert.Equal(t, def.Example, cfg.Example)
	assert.Equal(t, def.Metrics, cfg.Metrics)
	assert.NotNil(t, cfg.Mountpoints)

	empty, err := Parse(nil)
	require.NoError(t, err)
	assert.Equal(t, def, empty)
}

func TestValidateErrors(t *testing.T) {
	tests := []struct {
		name string
		yaml string
		key  string
	}{
		{"bad level", "log_level: loud", "log_level"},
		{"relative mount root", "workflow: {mount_root: srv, mount_id: L, path: /w}", "workflow.mount_root"},
		{"blank mount id", "workflow: {mount_root: /srv, mount_id: ' ', path: /w}", "workflow.mount_id"},
		{"missing workflow path", "workflow: {mount_root: /srv, mount_id: L}", "workflow.path"},
		{"workflow mount id not a URL host", "workflow: {mount_root: /srv, mount_id: 'a/b', path: /w}", "workflow.mount_id"},
		{"relative mountpoint", "mountpoints: {TEAM: team}", "mountpoints.TEAM"},
		{"blank mountpoint id", "mountpoints: {' ': /srv}", "mountpoints"},
		{"mountpoint id not a URL host", "mountpoints: {'MY TEAM': /srv}", "mountpoints.MY TEAM"},
		{"relative example dir", "example: {working_directory: home}", "example.working_directory"},
		{"zero timeout", "custom_url: {timeout: 0s}", "custom_url.timeout"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Parse([]byte(tc.yaml))
			var cfgErr *Error
			require.True(t, errors.As(err, &cfgErr), "got %v", err)
			assert.Equal(t, tc.key, cfgErr.Key)
		})
	}
}

func TestParseRejectsUnknownKeys(t *testing.T) {
	_, err := Parse([]byte("log_levle: info\n"))
	assert.Error(t, err)
}

func TestLoad(t *testing.T) {
	dir := t.TempDir()

	_, err := LoadDir(dir)
	assert.ErrorIs(t, err, ErrConfigNotFound)

	require.NoError(t, os.WriteFile(filepath.Join(dir, FileName), []byte(fullConfig), 0o644))
	cfg, err := LoadDir(dir)
	require.NoError(t, err)
	assert.Equal(t, "LOCAL", cfg.Workflow.MountID)
}
