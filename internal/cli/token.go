package cli

import (
	"fmt"
	"taskMarket/internal/app"
	"taskMarket/internal/config"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
)

// newTokenCmd выпускает токен для аккаунта; роль при запросах всё равно берётся из хранилища
func newTokenCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "token <account-id>",
		Short: "Выпустить JWT для аккаунта",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := uuid.Parse(args[0])
			if err != nil {
				return fmt.Errorf("неверный id аккаунта %q: %w", args[0], err)
			}

			cfg, err := config.Load(*configPath)
			if err != nil {
				return err
			}
			tokens, err := app.NewTokenManager(cfg)
			if err != nil {
				return err
			}

			token, err := tokens.Generate(id)
			if err != nil {
				return fmt.Errorf("выпуск токена: %w", err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), token)
			return nil
		},
	}
}
