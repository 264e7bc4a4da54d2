package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"locrepos/config"
	"locrepos/logger"
)

func main() {
	if err := newRootCmd().ExecuteContext(context.Background()); err != nil {
		fmt.Fprintln(os.Stderr, err)
		logger.Sync()
		os.Exit(1)
	}
	logger.Sync()
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "locrepos",
		Short:         "Collect public repositories of GitHub users by location",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.AddCommand(newCollectCmd())
	root.AddCommand(newShowCmd())
	return root
}

// loadConfig reads the dotenv file, then env and bound flags through v,
// and initializes the logger at the configured level.
func loadConfig(envFile string, v *viper.Viper) (*config.Config, error) {
	if err := config.LoadDotEnv(envFile); err != nil {
		return nil, err
	}

	cfg := config.NewConfig()
	if err := cfg.Load(v); err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	if err := logger.Initialize(cfg.LogLevel); err != nil {
		return nil, err
	}
	return cfg, nil
}
