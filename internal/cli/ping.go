package cli

import (
	"github.com/spf13/cobra"
)

func (c *CLI) newPingCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "ping",
		Short: "Check connectivity to a running medstockd",
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.runPing(cmd)
		},
	}
}

func (c *CLI) runPing(cmd *cobra.Command) error {
	client := NewServerClient(c.cfg.Endpoint, c.cfg.Auth.Token)

	health, err := client.Health(cmd.Context())
	if err != nil {
		return err
	}
	ready, readyErr := client.Ready(cmd.Context())

	if c.jsonOutput {
		out := map[string]interface{}{
			"endpoint": c.cfg.Endpoint,
			"health":   health,
		}
		if readyErr != nil {
			out["ready"] = false
		} else {
			out["ready"] = ready.Status == "ready"
		}
		return c.outputJSON(out)
	}

	c.printf("Server %s: %s (version %s)\n", c.cfg.Endpoint, health.Status, health.Version)
	if readyErr != nil {
		c.printf("Database: unavailable (%v)\n", readyErr)
	} else {
		c.printf("Database: %s\n", ready.Status)
	}
	return nil
}
