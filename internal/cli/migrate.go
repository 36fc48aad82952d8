package cli

import (
	"fmt"

	"github.com/DagmTesfu/ntt-business-launchpad/internal/logger"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

func NewMigrateCommand(root *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply database migrations and seed the catalog",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(root)
			if err != nil {
				return err
			}
			log, err := logger.New(cfg.Env)
			if err != nil {
				return fmt.Errorf("init logger: %w", err)
			}
			defer log.Sync() //nolint:errcheck

			repo, err := openRepository(cfg)
			if err != nil {
				return fmt.Errorf("open database: %w", err)
			}
			defer repo.Close()

			if err := repo.RunMigrations(); err != nil {
				return fmt.Errorf("run migrations: %w", err)
			}

			productCache, closeCache := newProductCache(cmd.Context(), cfg, log)
			defer closeCache()
			dropCachedCatalog(cmd.Context(), productCache, log)
			log.Info("migrations applied", zap.String("driver", cfg.DBDriver))
			return nil
		},
	}
}
