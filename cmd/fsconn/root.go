package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/arthur-debert/fsconn/pkg/fsconn"
	"github.com/arthur-debert/fsconn/pkg/fsconn/config"
	"github.com/arthur-debert/fsconn/pkg/fsconn/location"
	"github.com/arthur-debert/fsconn/pkg/fsconn/provider"
)

var (
	cfgFile  string
	logLevel string
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "fsconn",
	Short: "Resolve and inspect file system locations",
	Long: `fsconn resolves file system locations (category, specifier, path) to paths
on local disk, mountpoints, workflow-relative folders, connected file systems
and URLs. It exports paths as URIs, truncates them for copy operations and
creates scratch directories.`,
	SilenceUsage: true,
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is ./"+config.FileName+" if present)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level, overrides the config file")

	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(newResolveCommand())
	rootCmd.AddCommand(newURICommand())
	rootCmd.AddCommand(newTruncateCommand())
	rootCmd.AddCommand(newScratchCommand())
	rootCmd.AddCommand(newServeCommand())
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version number",
	Long:  `Print the version number of fsconn`,
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintf(cmd.OutOrStdout(), "fsconn version %s (commit: %s, built: %s)\n", version, commit, date)
	},
}

// loadConfig reads --config, or the default file when present.
func loadConfig() (*config.Config, error) {
	if cfgFile != "" {
		return config.Load(cfgFile)
	}
	cfg, err := config.LoadDir(".")
	if errors.Is(err, config.ErrConfigNotFound) {
		return config.Default(), nil
	}
	return cfg, err
}

func newLogger(cfg *config.Config) (zerolog.Logger, error) {
	name := cfg.LogLevel
	if logLevel != "" {
		name = logLevel
	}
	if name == "" {
		return fsconn.DefaultLogger(), nil
	}
	level, err := fsconn.LogLevelFromString(name)
	if err != nil {
		return zerolog.Nop(), fmt.Errorf("invalid log level %q: %w", name, err)
	}
	return fsconn.NewLogger(os.Stderr, level), nil
}

// newEnvironment loads the configuration and builds the resolution
// environment. reg may be nil.
func newEnvironment(reg prometheus.Registerer) (*config.Config, provider.Environment, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, provider.Environment{}, err
	}
	logger, err := newLogger(cfg)
	if err != nil {
		return nil, provider.Environment{}, err
	}
	env, err := fsconn.NewEnvironment(cfg, logger, reg)
	if err != nil {
		return nil, provider.Environment{}, err
	}
	return cfg, env, nil
}

// locationFlags selects the file system a command works on.
type locationFlags struct {
	category  string
	specifier string
}

func (f *locationFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.category, "category", "LOCAL", "location category (LOCAL, RELATIVE, MOUNTPOINT, CONNECTED, CUSTOM_URL)")
	cmd.Flags().StringVar(&f.specifier, "specifier", "", "location specifier, e.g. a mountpoint id or knime.workflow")
}

func (f *locationFlags) location(path string) (location.Location, error) {
	category, err := location.ParseCategory(f.category)
	if err != nil {
		return location.Location{}, err
	}
	return location.New(category, f.specifier, path)
}
