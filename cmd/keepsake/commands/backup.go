package commands

import (
	"fmt"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

var backupStorage string

func init() {
	backupCmd.Flags().StringVarP(&backupStorage, "storage", "s", "",
		"backend to upload to (default: from configuration)")
	rootCmd.AddCommand(backupCmd)
}

var backupCmd = &cobra.Command{
	Use:   "backup <directory>",
	Short: "Archive a directory and upload it",
	Long: `Archive a directory into a compressed tarball, optionally encrypt it,
and upload it to a storage backend.

The backend is chosen in this order: the --storage flag, the storage
configured for the directory in the targets list, then default_storage.`,
	Example: `  # Back up to the configured backend
  keepsake backup ~/Documents

  # Back up to SFTP regardless of configuration
  keepsake backup ~/Documents --storage sftp`,
	Args: cobra.ExactArgs(1),
	RunE: runBackup,
}

func runBackup(cmd *cobra.Command, args []string) error {
	eng, err := newEngine()
	if err != nil {
		return err
	}

	rec, err := eng.BackupDirectory(cmd.Context(), args[0], backupStorage)
	if err != nil {
		return err
	}

	fmt.Fprintf(cmd.OutOrStdout(), "%s backed up %s (%d files, %s) to %s:%s\n",
		color.GreenString("✓"), rec.SourcePath, rec.FileCount,
		formatBytes(rec.StoredBytes), rec.Storage, rec.RemotePath)
	return nil
}

// formatBytes renders a byte count with a binary unit suffix.
func formatBytes(n int64) string {
	const unit = 1024
	if n < unit {
		return fmt.Sprintf("%d B", n)
	}
	div, exp := int64(unit), 0
	for v := n / unit; v >= unit; v /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %ciB", float64(n)/float64(div), "KMGTPE"[exp])
}
