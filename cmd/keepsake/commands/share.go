package commands

import (
	"fmt"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

var (
	shareStorage string
	shareExpiry  time.Duration
)

func init() {
	shareCmd.Flags().StringVarP(&shareStorage, "storage", "s", "",
		"backend to share from (default: default_storage)")
	shareCmd.Flags().DurationVar(&shareExpiry, "expiry", time.Hour,
		"how long the link stays valid")
	rootCmd.AddCommand(shareCmd)
}

var shareCmd = &cobra.Command{
	Use:   "share <file>",
	Short: "Upload a file and print an expiring share link",
	Long: `Upload a single file under a unique shared/ prefix and print a link
that grants access until it expires.

Only backends with link support can share: s3, gcs, azure, gdrive, and
dropbox. The local, git, ftp, and sftp backends are rejected before
anything is uploaded.`,
	Example: `  # Share for one hour on the default backend
  keepsake share report.pdf

  # Share for two days on S3
  keepsake share report.pdf --storage s3 --expiry 48h`,
	Args: cobra.ExactArgs(1),
	RunE: runShare,
}

func runShare(cmd *cobra.Command, args []string) error {
	eng, err := newEngine()
	if err != nil {
		return err
	}

	link, err := eng.ShareFile(cmd.Context(), args[0], shareStorage, shareExpiry)
	if err != nil {
		return err
	}

	fmt.Fprintf(cmd.OutOrStdout(), "%s link valid for %s:\n%s\n",
		color.GreenString("✓"), shareExpiry, link)
	return nil
}
