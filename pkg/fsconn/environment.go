// Package fsconn wires configuration, logging and the connection registry
// into an environment for resolving locations.
package fsconn

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"

	"github.com/arthur-debert/fsconn/pkg/fsconn/config"
	"github.com/arthur-debert/fsconn/pkg/fsconn/connection"
	"github.com/arthur-debert/fsconn/pkg/fsconn/filesystem"
	"github.com/arthur-debert/fsconn/pkg/fsconn/location"
	"github.com/arthur-debert/fsconn/pkg/fsconn/provider"
)

// NewEnvironment builds a resolution environment from cfg. The environment
// gets a fresh registry holding the Example connection. When reg is not nil
// registry and connection metrics are registered with it. Callers close the
// environment with env.Registry.CloseAll.
func NewEnvironment(cfg *config.Config, logger zerolog.Logger, reg prometheus.Registerer) (provider.Environment, error) {
	opts := []connection.RegistryOption{connection.WithRegistryLogger(logger)}
	var metrics *connection.Metrics
	if reg != nil {
		m, err := connection.NewMetrics(reg)
		if err != nil {
			return provider.Environment{}, fmt.Errorf("failed to register metrics: %w", err)
		}
		metrics = m
		opts = append(opts, connection.WithRegistryMetrics(m))
	}
	registry := connection.NewRegistry(opts...)

	example, err := connection.NewExampleConnection(cfg.Example.WorkingDirectory,
		connection.WithLogger(logger), connection.WithMetrics(metrics))
	if err != nil {
		return provider.Environment{}, err
	}
	if err := registry.Register(registry.NewKey(), example); err != nil {
		_ = example.EnsureClosed()
		return provider.Environment{}, err
	}

	return provider.Environment{
		Registry: registry,
		Workflow: provider.Workflow{
			MountID:   cfg.Workflow.MountID,
			MountRoot: cfg.Workflow.MountRoot,
			Path:      cfg.Workflow.Path,
		},
		Mountpoints:       cfg.MountpointRoots(),
		ExampleWorkingDir: cfg.Example.WorkingDirectory,
		URLTimeout:        cfg.CustomURL.Timeout,
		Logger:            logger,
	}, nil
}

// Resolve resolves loc in env. The returned release function closes the
// factory and must be called once the path is no longer used.
func Resolve(env provider.Environment, loc location.Location, opts ...provider.CreateOption) (*filesystem.Path, func() error, error) {
	factory, err := provider.NewFactory(env, nil, loc)
	if err != nil {
		return nil, nil, err
	}
	p, err := factory.Create(loc, opts...)
	if err != nil {
		_ = factory.Close()
		return nil, nil, err
	}
	path, err := p.Path()
	if err != nil {
		_ = factory.Close()
		return nil, nil, err
	}
	release := func() error {
		_ = p.Close()
		return factory.Close()
	}
	return path, release, nil
}
