package commands

import (
	"fmt"
	"path/filepath"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/tmartens/keepsake/internal/config"
	"github.com/tmartens/keepsake/internal/errors"
	"github.com/tmartens/keepsake/internal/paths"
	"github.com/tmartens/keepsake/internal/storage"
)

func init() {
	configCmd.AddCommand(configInitCmd)
	configCmd.AddCommand(configValidateCmd)
	rootCmd.AddCommand(configCmd)
}

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage the keepsake configuration",
	Run: func(cmd *cobra.Command, args []string) {
		_ = cmd.Help()
	},
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Write a commented starter configuration",
	Long: `Write a commented starter configuration to the XDG config directory,
or to the path given with --config. Refuses to overwrite an existing
file.`,
	Args: cobra.NoArgs,
	RunE: runConfigInit,
}

func runConfigInit(cmd *cobra.Command, _ []string) error {
	path := cfgFile
	if path == "" {
		if err := paths.EnsureDir(paths.ConfigDir()); err != nil {
			return err
		}
		path = filepath.Join(paths.ConfigDir(), "keepsake.yaml")
	}

	if err := config.WriteDefault(path); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "%s wrote %s\n", color.GreenString("✓"), path)
	return nil
}

var configValidateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Check the configuration for problems",
	Args:  cobra.NoArgs,
	RunE:  runConfigValidate,
}

func runConfigValidate(cmd *cobra.Command, _ []string) error {
	if configLoadErr != nil {
		return configLoadErr
	}

	errs := config.Validate(cfg, storage.DefaultRegistry())
	if len(errs) == 0 {
		fmt.Fprintf(cmd.OutOrStdout(), "%s configuration is valid\n", color.GreenString("✓"))
		return nil
	}
	for _, err := range errs {
		fmt.Fprintf(cmd.OutOrStdout(), "%s %v\n", color.RedString("✗"), err)
	}
	return errors.Configuration("%d configuration problem(s)", len(errs))
}
