package cli

import (
	"fmt"
	"taskMarket/internal/config"
	"taskMarket/internal/repository/postgres"

	"github.com/spf13/cobra"
)

func newMigrateCmd(configPath *string) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Миграции схемы postgres",
	}

	step := func(use, short string, run func(cmd *cobra.Command, url string) error) *cobra.Command {
		return &cobra.Command{
			Use:   use,
			Short: short,
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				cfg, err := config.Load(*configPath)
				if err != nil {
					return err
				}
				if cfg.Database.URL == "" {
					return fmt.Errorf("database.url не задан")
				}
				if err := run(cmd, cfg.Database.URL); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "migrate %s: готово\n", use)
				return nil
			},
		}
	}

	cmd.AddCommand(
		step("up", "Применить все миграции", func(cmd *cobra.Command, url string) error {
			return postgres.MigrateUp(cmd.Context(), url)
		}),
		step("down", "Откатить все миграции", func(cmd *cobra.Command, url string) error {
			return postgres.MigrateDown(cmd.Context(), url)
		}),
	)
	return cmd
}
