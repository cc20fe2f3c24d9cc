package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/arthur-debert/fsconn/pkg/fsconn/filesystem"
	"github.com/arthur-debert/fsconn/pkg/fsconn/provider"
	"github.com/arthur-debert/fsconn/pkg/fsconn/uri"
)

func newURICommand() *cobra.Command {
	var (
		loc      locationFlags
		exporter string
	)

	cmd := &cobra.Command{
		Use:   "uri PATH",
		Short: "Export a location as URI",
		Long:  "Resolve a location and print the URI produced by one of its connection's exporters",
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

			return withPath(env, target, false, func(f *provider.Factory, p *filesystem.Path) error {
				e, err := f.Connection().Exporter(uri.ExporterID(exporter), uri.Config{Timeout: env.URLTimeout})
				if err != nil {
					return err
				}
				u, err := e.ToURI(p)
				if err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), u.String())
				return nil
			})
		},
	}

	loc.register(cmd)
	cmd.Flags().StringVar(&exporter, "exporter", string(uri.DefaultID), "URI exporter id (default, file, knime-url, path, example, url)")

	return cmd
}
