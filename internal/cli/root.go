package cli

import (
	"github.com/spf13/cobra"
)

// NewRootCmd собирает дерево команд; отдельная функция, чтобы тесты не делили флаги
func NewRootCmd() *cobra.Command {
	var configPath string

	root := &cobra.Command{
		Use:           "task-market",
		Short:         "Биржа задач: заказчики публикуют задачи, исполнители делают ставки",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVarP(&configPath, "config", "c", "", "путь к файлу конфигурации (по умолчанию ./config.yml)")

	root.AddCommand(
		newServeCmd(&configPath),
		newMigrateCmd(&configPath),
		newTokenCmd(&configPath),
	)
	return root
}

func Execute() error {
	return NewRootCmd().Execute()
}
