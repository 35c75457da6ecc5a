// Package main provides the entry point for the scribe CLI.
package main

import (
	"context"
	"os"

	"github.com/mrz1836/scribe/internal/cli"
	"github.com/mrz1836/scribe/internal/signal"
)

// Set via ldflags at build time.
//
//nolint:gochecknoglobals // build metadata
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	handler := signal.NewHandler(context.Background())

	err := cli.Execute(handler.Context(), cli.BuildInfo{
		Version: version,
		Commit:  commit,
		Date:    date,
	})

	handler.Stop()
	cli.CloseLogFile()
	os.Exit(cli.ExitCodeForError(err))
}
