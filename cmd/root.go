package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/kilianp07/vmc/app"
	"github.com/kilianp07/vmc/config"
)

var (
	cfgPath  string
	portFlag string
)

var rootCmd = &cobra.Command{
	Use:          "vmc",
	Short:        "Vending machine controller mock server",
	SilenceUsage: true,
	RunE:         run,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgPath, "config", "c", "", "configuration file (default config.yaml when present)")
	rootCmd.Flags().StringVarP(&portFlag, "port", "p", "", "listen port, overrides PORT and server.port")
}

// Execute runs the CLI.
func Execute() error { return rootCmd.Execute() }

func run(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	svc, err := app.New(cfg)
	if err != nil {
		return err
	}
	defer svc.Close()
	return svc.Run(ctx)
}

func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	if portFlag != "" {
		cfg.Server.Port = portFlag
		if err := cfg.Validate(); err != nil {
			return nil, err
		}
	}
	return cfg, nil
}
