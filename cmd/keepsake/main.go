// Package main is the entry point for the keepsake CLI.
package main

import (
	"os"

	"github.com/tmartens/keepsake/cmd/keepsake/commands"
	"github.com/tmartens/keepsake/internal/errors"
)

func main() {
	if err := commands.Execute(); err != nil {
		os.Exit(errors.ExitCode(err))
	}
}
