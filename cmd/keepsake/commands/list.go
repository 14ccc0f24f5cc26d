package commands

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

func init() {
	rootCmd.AddCommand(listCmd)
}

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List recorded backups",
	Args:  cobra.NoArgs,
	RunE:  runList,
}

func runList(cmd *cobra.Command, _ []string) error {
	eng, err := newEngine()
	if err != nil {
		return err
	}

	records := eng.State.All()
	if len(records) == 0 {
		fmt.Fprintln(cmd.OutOrStdout(), "No backups recorded yet.")
		return nil
	}

	tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "SOURCE\tSTORAGE\tCREATED\tFILES\tSIZE\tENCRYPTED")
	for _, r := range records {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%d\t%s\t%v\n",
			r.SourcePath,
			r.Storage,
			r.CreatedAt.Local().Format("2006-01-02 15:04:05"),
			r.FileCount,
			formatBytes(r.StoredBytes),
			r.Encrypted,
		)
	}
	return tw.Flush()
}
