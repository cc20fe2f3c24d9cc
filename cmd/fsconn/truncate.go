package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/arthur-debert/fsconn/pkg/fsconn/filesystem"
	"github.com/arthur-debert/fsconn/pkg/fsconn/provider"
	"github.com/arthur-debert/fsconn/pkg/fsconn/truncate"
)

func newTruncateCommand() *cobra.Command {
	var (
		loc  locationFlags
		base string
		mode string
		keep bool
	)

	cmd := &cobra.Command{
		Use:   "truncate PATH...",
		Short: "Truncate paths against a base folder",
		Long:  "Print the destination-relative form of each path as a copy operation rooted at --base would produce it",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			filterMode, err := truncate.ParseFilterMode(mode)
			if err != nil {
				return err
			}
			baseLoc, err := loc.location(base)
			if err != nil {
				return err
			}
			_, env, err := newEnvironment(nil)
			if err != nil {
				return err
			}
			defer env.Registry.CloseAll()

			return withPath(env, baseLoc, false, func(f *provider.Factory, basePath *filesystem.Path) error {
				var t truncate.Truncator = truncate.NewRelativePathTruncator(basePath, filterMode)
				if keep {
					t = truncate.KeepPathTruncator
				}
				fsys := f.Connection().FileSystem()
				for _, arg := range args {
					p, err := fsys.GetPath(arg)
					if err != nil {
						return err
					}
					truncated, err := t.Truncate(p)
					if err != nil {
						return err
					}
					fmt.Fprintf(cmd.OutOrStdout(), "%s -> %s\n", p, truncated)
				}
				return nil
			})
		},
	}

	loc.register(cmd)
	cmd.Flags().StringVar(&base, "base", ".", "Base folder or file of the copy operation")
	cmd.Flags().StringVar(&mode, "mode", truncate.FilesInFolders.String(), "Filter mode (FILE, FOLDER, FILES_IN_FOLDERS)")
	cmd.Flags().BoolVar(&keep, "keep-full-path", false, "Keep the full normalized path")

	return cmd
}
