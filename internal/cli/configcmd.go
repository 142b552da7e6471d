package cli

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/medstock-labs/medstock/internal/config"
)

func (c *CLI) newConfigCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Manage configuration",
	}
	cmd.AddCommand(c.newConfigInitCmd())
	cmd.AddCommand(c.newConfigShowCmd())
	return cmd
}

func (c *CLI) newConfigInitCmd() *cobra.Command {
	var force bool

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Write a default config file",
		Long:  `Write a config file with default values to ~/.medstock/config.yaml (or the --config path).`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.runConfigInit(force)
		},
	}
	cmd.Flags().BoolVar(&force, "force", false, "overwrite an existing config file")
	return cmd
}

func (c *CLI) runConfigInit(force bool) error {
	path := c.configPath
	if path == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return fmt.Errorf("cannot determine home directory: %w", err)
		}
		path = filepath.Join(home, ".medstock", "config.yaml")
	}

	if _, err := os.Stat(path); err == nil && !force {
		return fmt.Errorf("config file already exists at %s (use --force to overwrite)", path)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}

	data, err := yaml.Marshal(config.DefaultConfig())
	if err != nil {
		return err
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return err
	}

	c.printf("Wrote %s\n", path)
	return nil
}

func (c *CLI) newConfigShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Print the effective configuration",
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.runConfigShow()
		},
	}
}

func (c *CLI) runConfigShow() error {
	shown := *c.cfg
	if shown.Database.Password != "" {
		shown.Database.Password = "********"
	}
	if shown.SMTP.Password != "" {
		shown.SMTP.Password = "********"
	}
	if shown.Auth.Token != "" {
		shown.Auth.Token = "********"
	}
	users := make([]config.UserToken, len(shown.Auth.Users))
	copy(users, shown.Auth.Users)
	for i := range users {
		users[i].Token = "********"
	}
	shown.Auth.Users = users

	if c.jsonOutput {
		return c.outputJSON(&shown)
	}

	data, err := yaml.Marshal(&shown)
	if err != nil {
		return err
	}
	fmt.Print(string(data))
	return nil
}
