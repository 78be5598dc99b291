package main

import (
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/Whoagir/Afisha/internal/infrastructure/postgres"
	"github.com/Whoagir/Afisha/internal/pkg/logger"
)

func migrateCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "データベースマイグレーションを適用する",
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := bootstrap(cmd.Context(), false)
			if err != nil {
				return err
			}
			defer rt.close()

			path := rt.cfg.Database.MigrationsPath
			if err := postgres.RunMigrations(rt.db.DB, path); err != nil {
				return err
			}
			logger.Info("マイグレーションを適用しました", zap.String("path", path))
			return nil
		},
	}
}
