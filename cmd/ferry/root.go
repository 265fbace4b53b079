package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"ferry/internal/config"
)

// commandContext carries the flags and lazily loaded configuration shared by
// every subcommand.
type commandContext struct {
	configFlag *string
	serverFlag *string
	ownerFlag  *string

	cfg     *config.Config
	cfgPath string
}

func (c *commandContext) ensureConfig() (*config.Config, error) {
	if c.cfg != nil {
		return c.cfg, nil
	}
	cfg, path, _, err := config.Load(*c.configFlag)
	if err != nil {
		return nil, err
	}
	c.cfg = cfg
	c.cfgPath = path
	return cfg, nil
}

// client builds the API client against the configured or overridden server.
func (c *commandContext) client() (*apiClient, error) {
	cfg, err := c.ensureConfig()
	if err != nil {
		return nil, err
	}
	addr := strings.TrimSpace(*c.serverFlag)
	if addr == "" {
		addr = cfg.Paths.APIBind
	}
	if addr == "" {
		return nil, fmt.Errorf("no daemon address configured, set paths.api_bind or pass --server")
	}
	if !strings.Contains(addr, "://") {
		addr = "http://" + addr
	}
	return newAPIClient(addr, cfg.Paths.APIToken), nil
}

func (c *commandContext) owner() string {
	return strings.TrimSpace(*c.ownerFlag)
}

func newRootCommand() *cobra.Command {
	var configFlag, serverFlag, ownerFlag string

	ctx := &commandContext{
		configFlag: &configFlag,
		serverFlag: &serverFlag,
		ownerFlag:  &ownerFlag,
	}

	rootCmd := &cobra.Command{
		Use:           "ferry",
		Short:         "Search releases and ship them to your drive backends",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}

	rootCmd.PersistentFlags().StringVarP(&configFlag, "config", "c", "", "Configuration file path")
	rootCmd.PersistentFlags().StringVar(&serverFlag, "server", "", "Daemon API address (host:port)")
	rootCmd.PersistentFlags().StringVar(&ownerFlag, "owner", "", "Session owner, defaults to the daemon's single-user session")

	rootCmd.AddCommand(newSearchCommand(ctx))
	rootCmd.AddCommand(newPickCommand(ctx))
	rootCmd.AddCommand(newTransferCommand(ctx))
	rootCmd.AddCommand(newStatusCommand(ctx))
	rootCmd.AddCommand(newOfflineCommand(ctx))
	rootCmd.AddCommand(newConfigCommand(ctx))

	return rootCmd
}
