package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/tmartens/keepsake/internal/storage"
)

func init() {
	storageCmd.AddCommand(storageListCmd)
	rootCmd.AddCommand(storageCmd)
}

var storageCmd = &cobra.Command{
	Use:   "storage",
	Short: "Inspect the available storage backends",
	Run: func(cmd *cobra.Command, args []string) {
		_ = cmd.Help()
	},
}

var storageListCmd = &cobra.Command{
	Use:   "list",
	Short: "List the registered storage backends",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		for _, name := range storage.DefaultRegistry().Names() {
			fmt.Fprintln(cmd.OutOrStdout(), name)
		}
		return nil
	},
}
