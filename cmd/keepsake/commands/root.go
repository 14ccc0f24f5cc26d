// Package commands implements the CLI commands for keepsake.
package commands

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/tmartens/keepsake/internal/config"
	"github.com/tmartens/keepsake/internal/engine"
	"github.com/tmartens/keepsake/internal/errors"
	"github.com/tmartens/keepsake/internal/logging"
	"github.com/tmartens/keepsake/internal/paths"
	"github.com/tmartens/keepsake/internal/secret"
	"github.com/tmartens/keepsake/internal/state"
	"github.com/tmartens/keepsake/internal/storage"
)

// version is set at build time via ldflags.
// Default to a development version for local builds.
const version = "0.1.0"

// verbosity holds the count of -v flags.
var verbosity int

// quiet holds the value of the -q/--quiet flag.
var quiet bool

// logFormat holds the value of the --log-format flag.
var logFormat string

// cfgFile holds the value of the --config flag.
var cfgFile string

// cfg is the loaded configuration, populated by initConfig.
var cfg *config.Config

// configLoadErr holds any error that occurred during config loading.
var configLoadErr error

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().CountVarP(&verbosity, "verbose", "v",
		"increase verbosity level (e.g., -v, -vv)")
	rootCmd.PersistentFlags().BoolVarP(&quiet, "quiet", "q", false,
		"suppress non-error output")
	rootCmd.PersistentFlags().StringVar(&logFormat, "log-format", "text",
		"log format: text, json")
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "",
		"path to the config file (default: keepsake.yaml in . or the XDG config dir)")

	rootCmd.Version = version
	rootCmd.SetVersionTemplate("keepsake version {{.Version}}\n")

	// Silence errors and usage so we can control error output
	rootCmd.SilenceErrors = true
	rootCmd.SilenceUsage = true
}

func initConfig() {
	config.Init()
	cfg, configLoadErr = config.Load(cfgFile)
}

var rootCmd = &cobra.Command{
	Use:   "keepsake",
	Short: "Back up directories to interchangeable storage backends",
	Long: `keepsake archives directories, optionally encrypts them, and uploads
them to one of several storage backends: local disk, S3, Google Cloud
Storage, Azure Blob Storage, Google Drive, Dropbox, a git repository,
FTP, or SFTP.

It can watch directories and back them up automatically after changes
settle, restore any previous backup, and issue expiring share links on
backends that support them.`,
	Example: `  # Back up a directory to the default backend
  keepsake backup ~/Documents

  # Back up to a specific backend
  keepsake backup ~/Documents --storage s3

  # Pick a previous backup interactively and restore it
  keepsake restore ~/restored

  # Watch all configured targets
  keepsake watch

  # Share a file for two hours
  keepsake share report.pdf --expiry 2h`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		return setupLogging(cmd)
	},
	Run: func(cmd *cobra.Command, args []string) {
		_ = cmd.Help()
	},
}

// setupLogging configures the default logger based on verbosity flags.
func setupLogging(cmd *cobra.Command) error {
	if quiet && verbosity > 0 {
		return errors.NewUserError(nil, "cannot use --quiet and --verbose together")
	}

	logger := logging.New(logging.Config{
		Level:  logging.LevelFor(verbosity, quiet),
		Format: logging.ParseFormat(logFormat),
		Output: cmd.ErrOrStderr(),
	})
	slog.SetDefault(logger)
	return nil
}

// newEngine builds the engine from the loaded configuration.
func newEngine() (*engine.Engine, error) {
	if configLoadErr != nil {
		return nil, configLoadErr
	}

	statePath := cfg.StatePath
	if statePath == "" {
		statePath = paths.StateFile()
	}
	if err := paths.EnsureDir(filepath.Dir(statePath)); err != nil {
		return nil, errors.Wrapf(err, "creating state directory for %s", statePath)
	}
	store, err := state.Load(statePath, slog.Default())
	if err != nil {
		return nil, err
	}

	return engine.New(storage.DefaultRegistry(), cfg, store, secret.Default(), slog.Default()), nil
}

// Execute runs the root command and prints any error to stderr.
func Execute() error {
	err := rootCmd.Execute()
	if err != nil {
		fmt.Fprintf(os.Stderr, "%s %v\n", color.RedString("Error:"), err)
		var exitErr *errors.ExitError
		if errors.As(err, &exitErr) && exitErr.Suggestion != "" {
			fmt.Fprintln(os.Stderr, exitErr.Suggestion)
		}
	}
	return err
}
