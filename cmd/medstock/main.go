// Package main is the entrypoint for the medstock CLI.
// The CLI imports spreadsheets, runs alert checks, exports reports, and
// manages backups against the configured database.
package main

import (
	"os"

	"github.com/medstock-labs/medstock/internal/cli"
)

var (
	version = ""
	commit  = ""
	date    = ""
)

func main() {
	cli.SetVersionInfo(version, commit, date)
	os.Exit(cli.New().Execute())
}
