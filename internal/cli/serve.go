package cli

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/DagmTesfu/ntt-business-launchpad/internal/auth"
	"github.com/DagmTesfu/ntt-business-launchpad/internal/cache"
	"github.com/DagmTesfu/ntt-business-launchpad/internal/catalog"
	"github.com/DagmTesfu/ntt-business-launchpad/internal/config"
	httpapi "github.com/DagmTesfu/ntt-business-launchpad/internal/http"
	"github.com/DagmTesfu/ntt-business-launchpad/internal/logger"
	"github.com/DagmTesfu/ntt-business-launchpad/internal/publisher"
	"github.com/DagmTesfu/ntt-business-launchpad/internal/storefront"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

type ServeOptions struct {
	Port string
}

func NewServeCommand(root *RootOptions) *cobra.Command {
	opts := &ServeOptions{}

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the storefront HTTP API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(root)
			if err != nil {
				return err
			}
			if opts.Port != "" {
				cfg.HTTPPort = opts.Port
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return serve(ctx, cfg)
		},
	}

	cmd.Flags().StringVarP(&opts.Port, "port", "p", "", "HTTP port (overrides HTTP_PORT)")
	return cmd
}

func serve(ctx context.Context, cfg *config.Config) error {
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

	secret := cfg.JWTSecret
	if secret == "" {
		secret = uuid.NewString()
		log.Warn("JWT_SECRET not set, using a random secret; tokens will not survive a restart")
	}
	authSvc := auth.NewService(repo, auth.Config{
		Secret:            []byte(secret),
		TokenTTL:          cfg.TokenTTL,
		MinPasswordLength: cfg.MinPasswordLength,
		BcryptCost:        bcrypt.DefaultCost,
	}, log)

	registry := storefront.NewRegistry(storefront.Deps{
		Auth:              authSvc,
		Carts:             repo,
		Orders:            repo,
		Log:               log,
		MinPasswordLength: cfg.MinPasswordLength,
	})
	defer registry.Close()
	go registry.Run(ctx, cfg.SessionSweepInterval)

	productCache, closeCache := newProductCache(ctx, cfg, log)
	defer closeCache()
	dropCachedCatalog(ctx, productCache, log)
	products := catalog.NewService(repo, productCache, log)

	if len(cfg.KafkaBrokers) > 0 {
		pub := publisher.NewBreakerPublisher(
			publisher.NewKafkaPublisher(cfg.KafkaBrokers, cfg.KafkaTopic),
			publisher.BreakerSettings{},
			log,
		)
		defer pub.Close()

		poller := publisher.NewOutboxPoller(repo, pub, cfg.OutboxPollInterval, cfg.OutboxBatchSize, log)
		go poller.Run(ctx)
		log.Info("outbox publisher started",
			zap.Strings("brokers", cfg.KafkaBrokers),
			zap.String("topic", cfg.KafkaTopic))
	} else {
		log.Info("KAFKA_BROKERS not set, order events stay in the outbox")
	}

	srv := &http.Server{
		Addr: ":" + cfg.HTTPPort,
		Handler: httpapi.NewRouter(registry, products, httpapi.RouterConfig{
			RequestTimeout:     cfg.RequestTimeout,
			MaxRequestBodySize: cfg.MaxRequestBodySize,
			AuthRateLimit:      cfg.AuthRateLimit,
			AuthRateBurst:      cfg.AuthRateBurst,
		}, log),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: cfg.RequestTimeout + 5*time.Second,
		IdleTimeout:  60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("storefront API starting", zap.String("addr", srv.Addr), zap.String("db", cfg.DBDriver))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("server error: %w", err)
		}
	case <-ctx.Done():
	}

	log.Info("shutting down server...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}
	log.Info("server exited")
	return nil
}

// newProductCache connects to Redis when configured. An unreachable Redis
// leaves the catalog uncached rather than failing startup. The returned func
// releases the connection.
func newProductCache(ctx context.Context, cfg *config.Config, log *zap.Logger) (cache.ProductCache, func()) {
	if cfg.RedisAddr == "" {
		return cache.Noop{}, func() {}
	}

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
	})
	pingCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		log.Warn("redis unavailable, catalog cache disabled", zap.String("addr", cfg.RedisAddr), zap.Error(err))
		client.Close()
		return cache.Noop{}, func() {}
	}

	log.Info("catalog cache enabled", zap.String("addr", cfg.RedisAddr))
	return cache.NewRedisCache(client), func() {
		if err := client.Close(); err != nil {
			log.Warn("close redis client", zap.Error(err))
		}
	}
}

// dropCachedCatalog discards a listing cached before the products table was
// last migrated.
func dropCachedCatalog(ctx context.Context, c cache.ProductCache, log *zap.Logger) {
	if err := c.Invalidate(ctx); err != nil {
		log.Warn("catalog cache invalidate failed", zap.Error(err))
	}
}
