package cli

import (
	"time"

	"github.com/spf13/cobra"
)

func (c *CLI) newStatsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Show inventory summary statistics",
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.runStats(cmd)
		},
	}
}

// statsOutput is the JSON shape of the stats command.
type statsOutput struct {
	TotalRecords   int    `json:"total_records"`
	TotalMedicines int    `json:"total_medicines"`
	TotalSuppliers int    `json:"total_suppliers"`
	InventoryValue string `json:"inventory_value"`
	Expired        int    `json:"expired"`
	ExpiringSoon   int    `json:"expiring_soon"`
	LowStock       int    `json:"low_stock"`
	OpenAlerts     int    `json:"open_alerts"`
}

func (c *CLI) runStats(cmd *cobra.Command) error {
	ctx := cmd.Context()
	store, err := c.openStore(ctx)
	if err != nil {
		return err
	}
	defer store.Close()

	now := c.clock.Now()
	today := now.UTC().Truncate(24 * time.Hour)
	window := c.cfg.Alerts.ExpiryWindowDays

	totalRecords, err := store.Records().Count(ctx)
	if err != nil {
		return err
	}
	medicines, err := store.Records().DistinctMedicines(ctx)
	if err != nil {
		return err
	}
	suppliers, err := store.Suppliers().Count(ctx)
	if err != nil {
		return err
	}
	value, err := store.Records().InventoryValue(ctx)
	if err != nil {
		return err
	}
	expired, err := store.Records().ListExpiringBetween(ctx, time.Time{}, today)
	if err != nil {
		return err
	}
	expiring, err := store.Records().ListExpiringBetween(ctx, today, today.AddDate(0, 0, window))
	if err != nil {
		return err
	}
	balances, err := store.Records().Balances(ctx)
	if err != nil {
		return err
	}
	lowStock := 0
	for _, b := range balances {
		if b.IsLow() {
			lowStock++
		}
	}
	open, err := store.Alerts().List(ctx, false)
	if err != nil {
		return err
	}

	out := statsOutput{
		TotalRecords:   totalRecords,
		TotalMedicines: len(medicines),
		TotalSuppliers: suppliers,
		InventoryValue: value.StringFixed(2),
		Expired:        len(expired),
		ExpiringSoon:   len(expiring),
		LowStock:       lowStock,
		OpenAlerts:     len(open),
	}

	if c.jsonOutput {
		return c.outputJSON(out)
	}

	c.println("Inventory Summary")
	c.println("=================")
	c.printf("  Records:         %d\n", out.TotalRecords)
	c.printf("  Medicines:       %d\n", out.TotalMedicines)
	c.printf("  Suppliers:       %d\n", out.TotalSuppliers)
	c.printf("  Inventory value: %s\n", out.InventoryValue)
	c.println("")
	c.printf("  Expired batches:       %d\n", out.Expired)
	c.printf("  Expiring within %d days: %d\n", window, out.ExpiringSoon)
	c.printf("  Low stock batches:     %d\n", out.LowStock)
	c.printf("  Open alerts:           %d\n", out.OpenAlerts)

	if out.LowStock > 0 {
		c.println("")
		c.println("Low stock:")
		for _, b := range balances {
			if b.IsLow() {
				c.printf("  %s (Batch: %s): %d remaining (minimum %d)\n",
					b.MedicineName, b.BatchNo, b.Balance, b.MinStockLevel)
			}
		}
	}
	return nil
}
