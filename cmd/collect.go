package main

import (
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"locrepos/config"
	"locrepos/logger"
	"locrepos/service"
)

func newCollectCmd() *cobra.Command {
	var envFile string
	v := viper.New()

	cmd := &cobra.Command{
		Use:   "collect",
		Short: "Search users by location and print their repositories",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(envFile, v)
			if err != nil {
				return err
			}

			ctx := cmd.Context()
			svc, err := service.NewService(ctx, cfg, cmd.OutOrStdout())
			if err != nil {
				return err
			}
			defer func() {
				if err := svc.Close(); err != nil {
					logger.Error("Error during service shutdown", zap.Error(err))
				}
			}()

			return svc.Start(ctx)
		},
	}

	flags := cmd.Flags()
	flags.StringVar(&envFile, "env-file", ".env", "dotenv file to load before reading configuration")
	flags.StringSlice("location", nil, "location to search, repeatable or comma separated")
	flags.Int("max-users", 0, "maximum users per location")
	flags.Int("max-repos", 0, "maximum repositories per user")
	flags.Int("preview", 0, "number of rows to print")
	flags.Bool("store", false, "store the run in Postgres")
	flags.Duration("interval", 0, "repeat the collection at this interval")
	flags.String("log-level", "", "log level (debug, info, warn, error)")
	flags.String("api-url", "", "GitHub API base URL")

	bindings := map[string]string{
		"location":  config.KeyLocations,
		"max-users": config.KeyMaxUsers,
		"max-repos": config.KeyMaxRepos,
		"preview":   config.KeyPreviewRows,
		"store":     config.KeyStoreEnabled,
		"interval":  config.KeyInterval,
		"log-level": config.KeyLogLevel,
		"api-url":   config.KeyAPIURL,
	}
	for flag, key := range bindings {
		// Lookup cannot fail for flags registered above
		_ = v.BindPFlag(key, flags.Lookup(flag))
	}

	return cmd
}
