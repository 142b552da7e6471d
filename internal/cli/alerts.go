package cli

import (
	"github.com/spf13/cobra"

	"github.com/medstock-labs/medstock/internal/alerts"
	"github.com/medstock-labs/medstock/internal/notify"
)

func (c *CLI) newAlertsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "alerts",
		Short: "Check and manage stock alerts",
	}
	cmd.AddCommand(c.newAlertsCheckCmd())
	cmd.AddCommand(c.newAlertsListCmd())
	cmd.AddCommand(c.newAlertsAckCmd())
	return cmd
}

func (c *CLI) newAlertsCheckCmd() *cobra.Command {
	var (
		sendEmail bool
		cleanOld  bool
	)

	cmd := &cobra.Command{
		Use:   "check",
		Short: "Evaluate expiry and stock levels, raising alerts",
		Long: `Scan the ledger for expired batches, batches nearing expiry, and
low stock balances, raising an alert for each finding. Alerts are
deduplicated: an open alert for the same medicine and condition is
not raised twice.

Run this from cron on installations that do not keep medstockd
running.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.runAlertsCheck(cmd, sendEmail, cleanOld)
		},
	}

	cmd.Flags().BoolVar(&sendEmail, "send-email", false, "email a digest of critical alerts to the configured recipients")
	cmd.Flags().BoolVar(&cleanOld, "clean-old-alerts", false, "delete acknowledged alerts past the retention window")

	return cmd
}

func (c *CLI) runAlertsCheck(cmd *cobra.Command, sendEmail, cleanOld bool) error {
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

	checker := alerts.NewChecker(store, logger, nil, c.clock,
		c.cfg.Alerts.ExpiryWindowDays, c.cfg.Alerts.RetentionDays)

	result, err := checker.Run(ctx)
	if err != nil {
		return err
	}

	removed := 0
	if cleanOld {
		removed, err = checker.Cleanup(ctx)
		if err != nil {
			return err
		}
	}

	if sendEmail {
		mailer := notify.NewMailer(c.cfg.SMTP, c.cfg.Pharmacy.Name, logger)
		if !mailer.Configured() {
			c.println("Email requested but SMTP is not configured; skipping.")
		} else {
			critical, err := checker.CriticalAlerts(ctx)
			if err != nil {
				return err
			}
			if len(critical) == 0 {
				c.println("No critical alerts to send.")
			} else if err := mailer.SendAlertDigest(ctx, critical); err != nil {
				return err
			} else {
				c.printf("Emailed digest of %d critical alerts.\n", len(critical))
			}
		}
	}

	if c.jsonOutput {
		return c.outputJSON(map[string]interface{}{
			"result":  result,
			"removed": removed,
		})
	}

	c.printf("Alert check completed at %s\n", result.CheckedAt.Format("2006-01-02 15:04:05"))
	c.printf("  Expired batches:     %d\n", result.Expired)
	c.printf("  Nearing expiry:      %d\n", result.NearExpiry)
	c.printf("  Low stock medicines: %d\n", result.LowStock)
	c.printf("  New alerts raised:   %d\n", result.Created)
	if cleanOld {
		c.printf("  Old alerts removed:  %d\n", removed)
	}
	return nil
}

func (c *CLI) newAlertsListCmd() *cobra.Command {
	var all bool

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List stock alerts",
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.runAlertsList(cmd, all)
		},
	}
	cmd.Flags().BoolVar(&all, "all", false, "include acknowledged alerts")
	return cmd
}

func (c *CLI) runAlertsList(cmd *cobra.Command, all bool) error {
	ctx := cmd.Context()
	store, err := c.openStore(ctx)
	if err != nil {
		return err
	}
	defer store.Close()

	list, err := store.Alerts().List(ctx, all)
	if err != nil {
		return err
	}

	if c.jsonOutput {
		return c.outputJSON(list)
	}

	if len(list) == 0 {
		c.println("No alerts.")
		return nil
	}
	for _, a := range list {
		status := "open"
		if a.Acknowledged {
			status = "acknowledged"
		}
		c.printf("%s  [%s] %-11s  %s\n",
			a.ID, a.Type.Display(), status, a.Message)
	}
	return nil
}

func (c *CLI) newAlertsAckCmd() *cobra.Command {
	var by string

	cmd := &cobra.Command{
		Use:   "ack ID",
		Short: "Acknowledge an alert",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.runAlertsAck(cmd, args[0], by)
		},
	}
	cmd.Flags().StringVar(&by, "by", "", "name recorded as the acknowledging user")
	return cmd
}

func (c *CLI) runAlertsAck(cmd *cobra.Command, id, by string) error {
	ctx := cmd.Context()
	store, err := c.openStore(ctx)
	if err != nil {
		return err
	}
	defer store.Close()

	if err := store.Alerts().Acknowledge(ctx, id, by, c.clock.Now()); err != nil {
		return err
	}
	c.printf("Alert %s acknowledged.\n", id)
	return nil
}
