package testinit

import (
	"fmt"
	"io"
	"path/filepath"
	"sort"
	"strings"

	"github.com/joho/godotenv"

	"github.com/arthur-debert/fsconn/pkg/fsconn/connection"
	"github.com/arthur-debert/fsconn/pkg/fsconn/filesystem"
	"github.com/arthur-debert/fsconn/pkg/fsconn/location"
)

// Properties configures initializer providers. Keys are namespaced by
// provider type, for example "mountpoint.root".
type Properties map[string]string

// LoadProperties reads a properties file in KEY=value form.
func LoadProperties(path string) (Properties, error) {
	props, err := godotenv.Read(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read test properties: %w", err)
	}
	return props, nil
}

// ParseProperties reads properties from r.
func ParseProperties(r io.Reader) (Properties, error) {
	props, err := godotenv.Parse(r)
	if err != nil {
		return nil, fmt.Errorf("failed to parse test properties: %w", err)
	}
	return props, nil
}

// ConfigError reports a missing or invalid property.
type ConfigError struct {
	Key    string
	Reason string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("test property %s: %s", e.Key, e.Reason)
}

func (p Properties) required(key string) (string, error) {
	v := strings.TrimSpace(p[key])
	if v == "" {
		return "", &ConfigError{Key: key, Reason: "required"}
	}
	return v, nil
}

func (p Properties) optional(key, def string) string {
	if v := strings.TrimSpace(p[key]); v != "" {
		return v
	}
	return def
}

func (p Properties) absoluteFolder(key string) (string, error) {
	v, err := p.required(key)
	if err != nil {
		return "", err
	}
	if !filepath.IsAbs(v) {
		return "", &ConfigError{Key: key, Reason: fmt.Sprintf("%q is not absolute", v)}
	}
	return v, nil
}

// InitializerProvider creates initializers for one backend type.
type InitializerProvider interface {
	Type() string
	Setup(props Properties, opts ...Option) (Initializer, error)
}

type providerFunc struct {
	typ   string
	setup func(Properties, []Option) (Initializer, error)
}

func (p providerFunc) Type() string { return p.typ }

func (p providerFunc) Setup(props Properties, opts ...Option) (Initializer, error) {
	return p.setup(props, opts)
}

var providers = map[string]InitializerProvider{}

func register(p InitializerProvider) {
	providers[p.Type()] = p
}

// Lookup returns the provider registered for typ.
func Lookup(typ string) (InitializerProvider, bool) {
	p, ok := providers[typ]
	return p, ok
}

// Types returns the registered provider types in sorted order.
func Types() []string {
	types := make([]string, 0, len(providers))
	for typ := range providers {
		types = append(types, typ)
	}
	sort.Strings(types)
	return types
}

// connectionOptions passes the initializer's logger on to the connection.
func connectionOptions(opts []Option) []connection.ConnectionOption {
	return []connection.ConnectionOption{connection.WithLogger(newInitOptions(opts).logger)}
}

func init() {
	register(providerFunc{typ: "local", setup: func(props Properties, opts []Option) (Initializer, error) {
		workDir, err := props.absoluteFolder("local.workingDirPrefix")
		if err != nil {
			return nil, err
		}
		conn, err := connection.NewLocalConnection(connectionOptions(opts)...)
		if err != nil {
			return nil, err
		}
		return NewBaseInitializer(conn, workDir, opts...), nil
	}})

	register(providerFunc{typ: "mountpoint", setup: func(props Properties, opts []Option) (Initializer, error) {
		id, err := props.required("mountpoint.mountId")
		if err != nil {
			return nil, err
		}
		root, err := props.absoluteFolder("mountpoint.root")
		if err != nil {
			return nil, err
		}
		conn, err := connection.NewMountpointConnection(id, root, connectionOptions(opts)...)
		if err != nil {
			return nil, err
		}
		return NewBaseInitializer(conn, props.optional("mountpoint.workingDirPrefix", "/"), opts...), nil
	}})

	register(providerFunc{typ: "relativeto", setup: func(props Properties, opts []Option) (Initializer, error) {
		typ, err := location.ParseRelativeTo(props.optional("relativeto.type", string(location.RelativeToWorkflow)))
		if err != nil {
			return nil, &ConfigError{Key: "relativeto.type", Reason: err.Error()}
		}
		root, err := props.absoluteFolder("relativeto.mountRoot")
		if err != nil {
			return nil, err
		}
		workflow, err := props.required("relativeto.workflowPath")
		if err != nil {
			return nil, err
		}
		conn, err := connection.NewRelativeToConnection(filesystem.RelativeToOptions{
			Type: typ, MountRoot: root, WorkflowPath: workflow,
		}, connectionOptions(opts)...)
		if err != nil {
			return nil, err
		}
		return NewBaseInitializer(conn, props.optional("relativeto.workingDirPrefix", "."), opts...), nil
	}})

	register(providerFunc{typ: "example", setup: func(props Properties, opts []Option) (Initializer, error) {
		workDir, err := props.required("example.workingDirPrefix")
		if err != nil {
			return nil, err
		}
		if !strings.HasPrefix(workDir, "/") {
			return nil, &ConfigError{Key: "example.workingDirPrefix", Reason: fmt.Sprintf("%q is not absolute", workDir)}
		}
		conn, err := connection.NewExampleConnection(workDir, connectionOptions(opts)...)
		if err != nil {
			return nil, err
		}
		return NewBaseInitializer(conn, workDir, opts...), nil
	}})
}
