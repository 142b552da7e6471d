// Package cli provides the command-line interface for medstock.
// The CLI works directly against the configured database; only the ping
// and version commands talk to a running medstockd.
package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/benbjohnson/clock"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/medstock-labs/medstock/internal/config"
	"github.com/medstock-labs/medstock/internal/errors"
	"github.com/medstock-labs/medstock/internal/observability"
	"github.com/medstock-labs/medstock/internal/storage"
)

// Version information (set at build time)
var (
	Version   = "0.1.0"
	GitCommit = "unknown"
	BuildDate = "unknown"
)

// CLI holds the command-line interface state.
type CLI struct {
	rootCmd *cobra.Command
	cfg     *config.Config
	clock   clock.Clock

	// Global flags
	configPath string
	endpoint   string
	dbDriver   string
	dbPath     string
	jsonOutput bool
	quiet      bool
	debug      bool
}

// New creates a new CLI instance.
func New() *CLI {
	cli := &CLI{clock: clock.New()}
	cli.rootCmd = cli.newRootCmd()
	return cli
}

// Execute runs the CLI and returns the process exit code.
func (c *CLI) Execute() int {
	if err := c.rootCmd.Execute(); err != nil {
		c.printError(err)
		return errors.ExitCode(err)
	}
	return 0
}

func (c *CLI) newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "medstock",
		Short: "MedStock - Pharmacy inventory ledger",
		Long: `MedStock tracks pharmacy stock as an append-only ledger of inventory
movements. Balances, expiry alerts, and dispense history are derived
from the ledger.

The CLI imports spreadsheets, runs alert checks, exports reports, and
manages backups against the configured database.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return c.initConfig()
		},
	}

	// Global flags
	cmd.PersistentFlags().StringVar(&c.configPath, "config", "", "config file (default: ~/.medstock/config.yaml)")
	cmd.PersistentFlags().StringVar(&c.endpoint, "endpoint", "", "medstockd endpoint (overrides config)")
	cmd.PersistentFlags().StringVar(&c.dbDriver, "db-driver", "", "database driver: sqlite or postgres (overrides config)")
	cmd.PersistentFlags().StringVar(&c.dbPath, "db", "", "sqlite database path (overrides config)")
	cmd.PersistentFlags().BoolVar(&c.jsonOutput, "json", false, "machine-readable JSON output")
	cmd.PersistentFlags().BoolVar(&c.quiet, "quiet", false, "suppress non-essential output")
	cmd.PersistentFlags().BoolVar(&c.debug, "debug", false, "verbose debug logs")

	cmd.AddCommand(c.newImportCmd())
	cmd.AddCommand(c.newAlertsCmd())
	cmd.AddCommand(c.newStatsCmd())
	cmd.AddCommand(c.newExportCmd())
	cmd.AddCommand(c.newBackupCmd())
	cmd.AddCommand(c.newConfigCmd())
	cmd.AddCommand(c.newPingCmd())
	cmd.AddCommand(c.newVersionCmd())

	return cmd
}

func (c *CLI) initConfig() error {
	cfg, err := config.Load(c.configPath)
	if err != nil {
		return err
	}
	c.cfg = cfg

	// Override with flags
	if c.endpoint != "" {
		c.cfg.Endpoint = c.endpoint
	}
	if c.dbDriver != "" {
		c.cfg.Database.Driver = c.dbDriver
	}
	if c.dbPath != "" {
		c.cfg.Database.Path = c.dbPath
	}

	return nil
}

// openStore connects to the configured database, applying migrations.
func (c *CLI) openStore(ctx context.Context) (*storage.SQLStore, error) {
	driver, dsn, err := c.cfg.Database.DSN()
	if err != nil {
		return nil, err
	}
	return storage.Open(ctx, driver, dsn)
}

// newLogger builds a logger honoring the --quiet and --debug flags.
func (c *CLI) newLogger() (*zap.Logger, error) {
	lcfg := c.cfg.Logging
	if c.debug {
		lcfg.Level = "debug"
	} else if c.quiet {
		lcfg.Level = "error"
	}
	return observability.NewLogger(lcfg, os.Stderr)
}

// Helper functions for output

func (c *CLI) printf(format string, args ...interface{}) {
	if !c.quiet {
		fmt.Printf(format, args...)
	}
}

func (c *CLI) println(args ...interface{}) {
	if !c.quiet {
		fmt.Println(args...)
	}
}

func (c *CLI) outputJSON(v interface{}) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func (c *CLI) printError(err error) {
	fmt.Fprintf(os.Stderr, "Error: %v\n", err)
	if detail, ok := errors.Describe(err); ok && detail.Suggestion != "" {
		fmt.Fprintf(os.Stderr, "  → %s\n", detail.Suggestion)
	}
}
