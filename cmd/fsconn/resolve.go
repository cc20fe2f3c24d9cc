package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/arthur-debert/fsconn/pkg/fsconn/filesystem"
	"github.com/arthur-debert/fsconn/pkg/fsconn/location"
	"github.com/arthur-debert/fsconn/pkg/fsconn/provider"
)

// withPath resolves loc and calls fn while the path's connection is open.
func withPath(env provider.Environment, loc location.Location, requireExisting bool, fn func(*provider.Factory, *filesystem.Path) error) error {
	factory, err := provider.NewFactory(env, nil, loc)
	if err != nil {
		return err
	}
	defer factory.Close()

	var opts []provider.CreateOption
	if requireExisting {
		opts = append(opts, provider.RequireExisting())
	}
	p, err := factory.Create(loc, opts...)
	if err != nil {
		return err
	}
	defer p.Close()

	path, err := p.Path()
	if err != nil {
		return err
	}
	return fn(factory, path)
}

func newResolveCommand() *cobra.Command {
	var (
		loc             locationFlags
		requireExisting bool
	)

	cmd := &cobra.Command{
		Use:   "resolve PATH",
		Short: "Resolve a location to a path",
		Long:  "Resolve a location to a path and print the path, its location and whether it exists",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			target, err := loc.location(args[0])
			if err != nil {
				return err
			}
			_, env, err := newEnvironment(nil)
			if err != nil {
				return err
			}
			defer env.Registry.CloseAll()

			return withPath(env, target, requireExisting, func(_ *provider.Factory, p *filesystem.Path) error {
				exists, err := filesystem.Exists(p)
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				fmt.Fprintf(out, "path:     %s\n", p)
				fmt.Fprintf(out, "absolute: %s\n", p.ToAbsolute())
				fmt.Fprintf(out, "location: %s\n", p.ToLocation())
				fmt.Fprintf(out, "exists:   %t\n", exists)
				return nil
			})
		},
	}

	loc.register(cmd)
	cmd.Flags().BoolVar(&requireExisting, "require-existing", false, "Fail if the item does not exist")

	return cmd
}
