package cli

import (
	"fmt"

	"github.com/DagmTesfu/ntt-business-launchpad/internal/config"
	"github.com/DagmTesfu/ntt-business-launchpad/internal/repository"
	"github.com/spf13/cobra"
)

// RootOptions holds global flags for all commands.
type RootOptions struct {
	EnvFile string
}

// NewRootCommand creates the root command for the launchpad binary.
func NewRootCommand() *cobra.Command {
	opts := &RootOptions{}

	cmd := &cobra.Command{
		Use:           "launchpad",
		Short:         "NTT Business Launchpad storefront",
		Long:          "Backend for the Natys coffee shop: catalog, cart, checkout and order history.",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.PersistentFlags().StringVar(&opts.EnvFile, "env-file", ".env", "dotenv file read before the environment")

	cmd.AddCommand(NewServeCommand(opts))
	cmd.AddCommand(NewMigrateCommand(opts))

	return cmd
}

func loadConfig(opts *RootOptions) (*config.Config, error) {
	cfg, err := config.Load(opts.EnvFile)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	return cfg, nil
}

func openRepository(cfg *config.Config) (*repository.Repository, error) {
	switch cfg.DBDriver {
	case config.DriverPostgres:
		return repository.NewPostgresRepository(&repository.Credentials{
			Host:     cfg.PGHost,
			Port:     cfg.PGPort,
			User:     cfg.PGUser,
			Password: cfg.PGPassword,
			DBName:   cfg.PGDatabase,
		})
	default:
		return repository.NewSQLiteRepository(cfg.SQLitePath)
	}
}
