package cli

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/medstock-labs/medstock/internal/reports"
)

func (c *CLI) newExportCmd() *cobra.Command {
	var (
		typ string
		out string
	)

	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export a CSV report",
		Long: fmt.Sprintf(`Export a CSV report to a file or stdout.

Report types: %s`, strings.Join(typeNames(), ", ")),
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.runExport(cmd, reports.Type(typ), out)
		},
	}

	cmd.Flags().StringVar(&typ, "type", string(reports.TypeInventory), "report type")
	cmd.Flags().StringVar(&out, "out", "", "output file (default: the report's standard filename)")

	return cmd
}

func (c *CLI) runExport(cmd *cobra.Command, typ reports.Type, out string) error {
	if !typ.IsValid() {
		return fmt.Errorf("unknown report type %q (valid: %s)", typ, strings.Join(typeNames(), ", "))
	}

	ctx := cmd.Context()
	store, err := c.openStore(ctx)
	if err != nil {
		return err
	}
	defer store.Close()

	gen := reports.NewGenerator(store, c.clock, c.cfg.Alerts.ExpiryWindowDays)

	if out == "-" {
		return gen.Write(ctx, typ, os.Stdout)
	}
	if out == "" {
		out = typ.Filename()
	}
	f, err := os.Create(out)
	if err != nil {
		return err
	}
	if err := gen.Write(ctx, typ, f); err != nil {
		f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return err
	}
	c.printf("Wrote %s\n", out)
	return nil
}

func typeNames() []string {
	names := make([]string, 0, len(reports.AllTypes()))
	for _, t := range reports.AllTypes() {
		names = append(names, string(t))
	}
	return names
}
