package cli

import (
	"bufio"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/medstock-labs/medstock/internal/importer"
)

func (c *CLI) newImportCmd() *cobra.Command {
	var (
		format        string
		sheet         string
		dryRun        bool
		clearExisting bool
		user          string
		yes           bool
	)

	cmd := &cobra.Command{
		Use:   "import FILE",
		Short: "Import inventory records from a spreadsheet",
		Long: `Import inventory records from an ODS or CSV spreadsheet.

Column headers are matched against known patterns, so exports from
different sources import without manual mapping. Rows without a
medicine name or a valid expiry date are skipped and reported.

Use --dry-run to preview the detected columns and the first rows
without writing anything.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.runImport(cmd, args[0], importer.Options{
				Format:        format,
				Sheet:         sheet,
				DryRun:        dryRun,
				ClearExisting: clearExisting,
				CreatedBy:     user,
			}, yes)
		},
	}

	cmd.Flags().StringVar(&format, "format", "auto", "input format: auto, csv or ods")
	cmd.Flags().StringVar(&sheet, "sheet", "", "sheet name or index for ODS files (default: first sheet)")
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "detect columns and preview rows without importing")
	cmd.Flags().BoolVar(&clearExisting, "clear-existing", false, "delete all existing records before importing")
	cmd.Flags().StringVar(&user, "user", "", "recorded as created_by on imported records")
	cmd.Flags().BoolVar(&yes, "yes", false, "skip the --clear-existing confirmation prompt")

	return cmd
}

func (c *CLI) runImport(cmd *cobra.Command, path string, opts importer.Options, yes bool) error {
	if opts.ClearExisting && !opts.DryRun && !yes {
		if !c.confirm("This will delete ALL existing inventory records and dispense history. Continue?") {
			c.println("Aborted.")
			return nil
		}
	}

	ctx := cmd.Context()
	store, err := c.openStore(ctx)
	if err != nil {
		return err
	}
	defer store.Close()

	logger, err := c.newLogger()
	if err != nil {
		return err
	}
	defer logger.Sync()

	imp := importer.New(store, logger, nil, c.clock)
	result, err := imp.Run(ctx, path, opts)
	if err != nil {
		return err
	}

	if c.jsonOutput {
		return c.outputJSON(result)
	}

	c.println("Detected columns:")
	for field, header := range result.Mapping {
		c.printf("  %-20s <- %q\n", field, header)
	}
	c.println("")

	if result.DryRun {
		c.printf("Dry run: %d rows would be imported, %d skipped\n",
			len(result.Preview), len(result.Skipped))
		for _, rec := range result.Preview {
			c.printf("  %s (Batch: %s) in=%d out=%d expiry=%s\n",
				rec.MedicineName, rec.BatchNo, rec.QuantityIn, rec.QuantityOut,
				rec.ExpiryDate.Format("2006-01-02"))
		}
	} else {
		c.printf("Imported %d records (%d suppliers created, %d dispense events)\n",
			result.Imported, result.SuppliersCreated, result.DispensesCreated)
	}

	if len(result.Skipped) > 0 {
		c.printf("Skipped %d rows:\n", len(result.Skipped))
		for _, issue := range result.Skipped {
			c.printf("  row %d: %s\n", issue.Row, issue.Reason)
		}
	}
	for _, issue := range result.Failed {
		c.printf("FAILED row %d: %s\n", issue.Row, issue.Reason)
	}

	return nil
}

func (c *CLI) confirm(prompt string) bool {
	c.printf("%s [y/N]: ", prompt)
	reader := bufio.NewReader(os.Stdin)
	line, err := reader.ReadString('\n')
	if err != nil {
		return false
	}
	answer := strings.ToLower(strings.TrimSpace(line))
	return answer == "y" || answer == "yes"
}
