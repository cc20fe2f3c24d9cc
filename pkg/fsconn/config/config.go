// Package config loads the fsconn.yaml configuration file.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"gopkg.in/yaml.v3"

	"github.com/arthur-debert/fsconn/pkg/fsconn/filesystem"
)

// FileName is the configuration file LoadDir looks for.
const FileName = "fsconn.yaml"

// ErrConfigNotFound is returned when the configuration file does not exist.
var ErrConfigNotFound = errors.New("configuration file not found")

// Error reports an invalid configuration value.
type Error struct {
	Key    string
	Reason string
}

func (e *Error) Error() string {
	return fmt.Sprintf("config %s: %s", e.Key, e.Reason)
}

// Workflow locates the workflow that relative-to locations refer to.
type Workflow struct {
	MountRoot string `yaml:"mount_root"`
	MountID   string `yaml:"mount_id"`
	Path      string `yaml:"path"`
}

type Example struct {
	WorkingDirectory string `yaml:"working_directory"`
}

type CustomURL struct {
	Timeout time.Duration `yaml:"timeout"`
}

type Metrics struct {
	Addr string `yaml:"addr"`
}

// Config is the content of fsconn.yaml.
type Config struct {
	LogLevel    string            `yaml:"log_level"`
	Workflow    Workflow          `yaml:"workflow"`
	Mountpoints map[string]string `yaml:"mountpoints"`
	Example     Example           `yaml:"example"`
	CustomURL   CustomURL         `yaml:"custom_url"`
	Metrics     Metrics           `yaml:"metrics"`
}

// Default returns the configuration used for keys missing from the file.
func Default() *Config {
	return &Config{
		LogLevel:    "warn",
		Mountpoints: map[string]string{},
		Example:     Example{WorkingDirectory: "/"},
		CustomURL:   CustomURL{Timeout: 5 * time.Second},
		Metrics:     Metrics{Addr: "127.0.0.1:9180"},
	}
}

// Load reads and validates the configuration file at p.
func Load(p string) (*Config, error) {
	data, err := os.ReadFile(p)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrConfigNotFound, p)
		}
		return nil, fmt.Errorf("failed to read config: %w", err)
	}
	return Parse(data)
}

// LoadDir loads FileName from dir.
func LoadDir(dir string) (*Config, error) {
	return Load(filepath.Join(dir, FileName))
}

// Parse decodes and validates a YAML document. Unknown keys are rejected.
func Parse(data []byte) (*Config, error) {
	cfg := Default()
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	if cfg.Mountpoints == nil {
		cfg.Mountpoints = map[string]string{}
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate returns the first invalid value as an *Error.
func (c *Config) Validate() error {
	if _, err := zerolog.ParseLevel(strings.ToLower(c.LogLevel)); err != nil {
		return &Error{Key: "log_level", Reason: fmt.Sprintf("unknown level %q", c.LogLevel)}
	}

	if c.Workflow != (Workflow{}) {
		switch {
		case !filepath.IsAbs(c.Workflow.MountRoot):
			return &Error{Key: "workflow.mount_root", Reason: fmt.Sprintf("%q is not an absolute folder", c.Workflow.MountRoot)}
		case strings.TrimSpace(c.Workflow.MountID) == "":
			return &Error{Key: "workflow.mount_id", Reason: "must not be blank"}
		case strings.TrimSpace(c.Workflow.Path) == "":
			return &Error{Key: "workflow.path", Reason: "must not be blank"}
		}
		if err := filesystem.CheckMountID(c.Workflow.MountID); err != nil {
			return &Error{Key: "workflow.mount_id", Reason: err.Error()}
		}
	}

	ids := make([]string, 0, len(c.Mountpoints))
	for id := range c.Mountpoints {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	for _, id := range ids {
		if strings.TrimSpace(id) == "" {
			return &Error{Key: "mountpoints", Reason: "mountpoint ids must not be blank"}
		}
		if err := filesystem.CheckMountID(id); err != nil {
			return &Error{Key: "mountpoints." + id, Reason: err.Error()}
		}
		if !filepath.IsAbs(c.Mountpoints[id]) {
			return &Error{Key: "mountpoints." + id, Reason: fmt.Sprintf("%q is not an absolute folder", c.Mountpoints[id])}
		}
	}

	if !path.IsAbs(c.Example.WorkingDirectory) {
		return &Error{Key: "example.working_directory", Reason: fmt.Sprintf("%q is not absolute", c.Example.WorkingDirectory)}
	}
	if c.CustomURL.Timeout <= 0 {
		return &Error{Key: "custom_url.timeout", Reason: "must be a positive duration"}
	}
	return nil
}

// MountpointRoots returns all configured mountpoints including the workflow's.
func (c *Config) MountpointRoots() map[string]string {
	roots := make(map[string]string, len(c.Mountpoints)+1)
	for id, root := range c.Mountpoints {
		roots[id] = root
	}
	if c.Workflow.MountID != "" {
		if _, ok := roots[c.Workflow.MountID]; !ok {
			roots[c.Workflow.MountID] = c.Workflow.MountRoot
		}
	}
	return roots
}
