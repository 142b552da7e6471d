package cli

import (
	"github.com/spf13/cobra"

	"github.com/medstock-labs/medstock/internal/backup"
)

func (c *CLI) newBackupCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "backup",
		Short: "Manage database backups",
	}
	cmd.AddCommand(c.newBackupRunCmd())
	cmd.AddCommand(c.newBackupListCmd())
	return cmd
}

func (c *CLI) newBackupRunCmd() *cobra.Command {
	var (
		dir  string
		keep int
	)

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Create a compressed backup of the SQLite database",
		Long: `Snapshot the SQLite database into a gzip-compressed file in the
backup directory and prune the oldest backups beyond the retention
count. PostgreSQL deployments should use pg_dump instead.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.runBackup(cmd, dir, keep)
		},
	}

	cmd.Flags().StringVar(&dir, "dir", "", "backup directory (overrides config)")
	cmd.Flags().IntVar(&keep, "keep", 0, "backups to retain (overrides config)")

	return cmd
}

func (c *CLI) runBackup(cmd *cobra.Command, dir string, keep int) error {
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

	if dir == "" {
		dir = c.cfg.Backup.Dir
	}
	if keep <= 0 {
		keep = c.cfg.Backup.Keep
	}

	mgr := backup.NewManager(store, logger, nil, c.clock, dir, keep)
	info, err := mgr.Run(ctx)
	if err != nil {
		return err
	}

	if c.jsonOutput {
		return c.outputJSON(info)
	}
	c.printf("Backup written: %s (%d bytes)\n", info.Path, info.Size)
	return nil
}

func (c *CLI) newBackupListCmd() *cobra.Command {
	var dir string

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List existing backups",
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.runBackupList(cmd, dir)
		},
	}
	cmd.Flags().StringVar(&dir, "dir", "", "backup directory (overrides config)")
	return cmd
}

func (c *CLI) runBackupList(cmd *cobra.Command, dir string) error {
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

	if dir == "" {
		dir = c.cfg.Backup.Dir
	}

	mgr := backup.NewManager(store, logger, nil, c.clock, dir, c.cfg.Backup.Keep)
	list, err := mgr.List()
	if err != nil {
		return err
	}

	if c.jsonOutput {
		return c.outputJSON(list)
	}
	if len(list) == 0 {
		c.println("No backups found.")
		return nil
	}
	for _, info := range list {
		c.printf("%s  %10d bytes  %s\n",
			info.Name, info.Size, info.CreatedAt.Format("2006-01-02 15:04:05"))
	}
	return nil
}
