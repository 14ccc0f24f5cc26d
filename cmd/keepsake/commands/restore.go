package commands

import (
	"fmt"

	"github.com/fatih/color"
	"github.com/ktr0731/go-fuzzyfinder"
	"github.com/spf13/cobra"

	"github.com/tmartens/keepsake/internal/engine"
	"github.com/tmartens/keepsake/internal/errors"
	"github.com/tmartens/keepsake/internal/state"
)

var restoreStorage string

func init() {
	restoreCmd.Flags().StringVarP(&restoreStorage, "storage", "s", "",
		"backend to download from (default: default_storage)")
	rootCmd.AddCommand(restoreCmd)
}

var restoreCmd = &cobra.Command{
	Use:   "restore [remote-path] <target-directory>",
	Short: "Download a backup and unpack it",
	Long: `Download a backup archive, decrypt it if it was encrypted, and unpack
it into the target directory. Existing files are overwritten.

When the remote path is omitted, an interactive picker lists every
recorded backup.`,
	Example: `  # Pick a recorded backup interactively
  keepsake restore ~/restored

  # Restore a known archive
  keepsake restore docs/backup_docs_20260826T120000Z.tar.gz ~/restored --storage s3`,
	Args: cobra.RangeArgs(1, 2),
	RunE: runRestore,
}

func runRestore(cmd *cobra.Command, args []string) error {
	eng, err := newEngine()
	if err != nil {
		return err
	}

	var remotePath, targetDir string
	switch len(args) {
	case 2:
		remotePath, targetDir = args[0], args[1]
	default:
		targetDir = args[0]
		rec, err := pickRecord(eng)
		if err != nil {
			return err
		}
		remotePath = rec.RemotePath
		if restoreStorage == "" {
			restoreStorage = rec.Storage
		}
	}

	stats, err := eng.RestoreFromBackup(cmd.Context(), remotePath, targetDir, restoreStorage)
	if err != nil {
		return err
	}

	fmt.Fprintf(cmd.OutOrStdout(), "%s restored %d files (%s) into %s\n",
		color.GreenString("✓"), stats.Files, formatBytes(stats.Bytes), targetDir)
	return nil
}

// pickRecord lets the user choose one of the recorded backups.
func pickRecord(eng *engine.Engine) (state.Record, error) {
	records := eng.State.All()
	if len(records) == 0 {
		return state.Record{}, errors.NotFound("no recorded backups; pass the remote path explicitly")
	}

	idx, err := fuzzyfinder.Find(
		records,
		func(i int) string {
			return fmt.Sprintf("%s (%s)", records[i].SourcePath, records[i].Storage)
		},
		fuzzyfinder.WithPreviewWindow(func(i, w, h int) string {
			if i == -1 {
				return ""
			}
			r := records[i]
			return fmt.Sprintf("Source: %s\nRemote: %s\nStorage: %s\nCreated: %s\nFiles: %d\nSize: %s\nEncrypted: %v",
				r.SourcePath,
				r.RemotePath,
				r.Storage,
				r.CreatedAt.Local().Format("2006-01-02 15:04:05"),
				r.FileCount,
				formatBytes(r.StoredBytes),
				r.Encrypted,
			)
		}),
	)
	if err != nil {
		if errors.Is(err, fuzzyfinder.ErrAbort) {
			return state.Record{}, errors.NewUserError(err, "no backup selected")
		}
		return state.Record{}, errors.Wrap(err, "interactive selection failed")
	}
	return records[idx], nil
}
