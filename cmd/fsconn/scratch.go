package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/arthur-debert/fsconn/pkg/fsconn/filesystem"
	"github.com/arthur-debert/fsconn/pkg/fsconn/provider"
)

func newScratchCommand() *cobra.Command {
	var (
		loc    locationFlags
		prefix string
		suffix string
		file   bool
	)

	cmd := &cobra.Command{
		Use:   "scratch [PARENT]",
		Short: "Create a randomly named directory",
		Long:  "Create a randomly named directory (or file) under PARENT, or under the working directory when PARENT is omitted",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			parentArg := ""
			if len(args) == 1 {
				parentArg = args[0]
			}
			target, err := loc.location(parentArg)
			if err != nil {
				return err
			}
			_, env, err := newEnvironment(nil)
			if err != nil {
				return err
			}
			defer env.Registry.CloseAll()

			return withPath(env, target, false, func(f *provider.Factory, parent *filesystem.Path) error {
				if parent.IsEmpty() {
					parent = nil
				}
				create := filesystem.CreateTempDirectory
				if file {
					create = filesystem.CreateTempFile
				}
				created, err := create(f.Connection().FileSystem(), parent, prefix, suffix)
				if err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), created)
				return nil
			})
		},
	}

	loc.register(cmd)
	cmd.Flags().StringVar(&prefix, "prefix", "fsconn-", "Name prefix")
	cmd.Flags().StringVar(&suffix, "suffix", "", "Name suffix")
	cmd.Flags().BoolVar(&file, "file", false, "Create a file instead of a directory")

	return cmd
}
