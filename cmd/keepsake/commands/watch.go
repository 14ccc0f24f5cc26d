package commands

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/tmartens/keepsake/internal/watch"
)

func init() {
	rootCmd.AddCommand(watchCmd)
}

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Watch configured directories and back them up on change",
	Long: `Watch every directory in the targets list and back each one up after
its changes settle for the configured debounce interval.

Directories that were never backed up, or that changed while keepsake
was not running, are backed up immediately at startup. Press Ctrl-C to
stop; an in-flight backup is allowed to finish.`,
	Args: cobra.NoArgs,
	RunE: runWatch,
}

func runWatch(cmd *cobra.Command, _ []string) error {
	eng, err := newEngine()
	if err != nil {
		return err
	}

	targets := make([]string, 0, len(cfg.Targets))
	for _, t := range cfg.Targets {
		targets = append(targets, t.Path)
	}

	orchestrator, err := watch.New(watch.Options{
		Targets:  targets,
		Debounce: cfg.Debounce,
		State:    eng.State,
		Logger:   slog.Default(),
		Backup: func(ctx context.Context, path string) error {
			_, err := eng.BackupDirectory(ctx, path, "")
			return err
		},
	})
	if err != nil {
		return err
	}

	ctx, cancel := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := orchestrator.Start(ctx); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "%s watching %d directories (debounce %s)\n",
		color.GreenString("✓"), len(targets), cfg.Debounce)

	<-ctx.Done()
	fmt.Fprintln(cmd.OutOrStdout(), "shutting down, waiting for running backups")
	orchestrator.Stop()
	return nil
}
