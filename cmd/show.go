package main

import (
	"context"
	"fmt"
	"io"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"locrepos/config"
	"locrepos/db"
	"locrepos/models"
	"locrepos/table"
)

type snapshotReader interface {
	GetByUsername(ctx context.Context, runID uuid.UUID, username string) ([]models.Repository, error)
}

func newShowCmd() *cobra.Command {
	var envFile, run, user string
	v := viper.New()

	cmd := &cobra.Command{
		Use:   "show",
		Short: "Print the stored repositories of a user in a run",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			runID, err := uuid.Parse(run)
			if err != nil {
				return fmt.Errorf("invalid run id %q: %w", run, err)
			}

			cfg, err := loadConfig(envFile, v)
			if err != nil {
				return err
			}
			if cfg.Store.Database == "" {
				return fmt.Errorf("%w: %s is required to read stored runs", config.ErrInvalidConfig, config.KeyPostgresDB)
			}

			database, err := db.New(cfg.Store)
			if err != nil {
				return err
			}
			defer database.Close()

			return printSnapshot(cmd.Context(), database, runID, user, cmd.OutOrStdout())
		},
	}

	flags := cmd.Flags()
	flags.StringVar(&envFile, "env-file", ".env", "dotenv file to load before reading configuration")
	flags.StringVar(&run, "run", "", "run id printed by collect")
	flags.StringVar(&user, "user", "", "GitHub login")
	_ = cmd.MarkFlagRequired("run")
	_ = cmd.MarkFlagRequired("user")

	return cmd
}

func printSnapshot(ctx context.Context, reader snapshotReader, runID uuid.UUID, user string, out io.Writer) error {
	records, err := reader.GetByUsername(ctx, runID, user)
	if err != nil {
		return err
	}

	if len(records) == 0 {
		fmt.Fprintf(out, "No repositories stored for %s in run %s\n", user, runID)
		return nil
	}

	fmt.Fprintf(out, "%d repositories stored for %s in run %s\n", len(records), user, runID)
	fmt.Fprintln(out, table.FromRecords(records).Render())
	return nil
}
