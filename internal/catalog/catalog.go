package catalog

import (
	"context"
	"errors"
	"time"

	"github.com/DagmTesfu/ntt-business-launchpad/internal/cache"
	"github.com/DagmTesfu/ntt-business-launchpad/internal/domain"
	"github.com/DagmTesfu/ntt-business-launchpad/internal/repository"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

var ErrProductNotFound = errors.New("product not found")

type ProductRepository interface {
	GetAllProducts(ctx context.Context) ([]domain.Product, error)
	GetProduct(ctx context.Context, id string) (*domain.Product, error)
}

// Service serves the read-only product listing through a read-through cache.
type Service struct {
	repo  ProductRepository
	cache cache.ProductCache
	log   *zap.Logger
	sfg   singleflight.Group
}

func NewService(repo ProductRepository, c cache.ProductCache, log *zap.Logger) *Service {
	if c == nil {
		c = cache.Noop{}
	}
	return &Service{repo: repo, cache: c, log: log}
}

func (s *Service) List(ctx context.Context) ([]domain.Product, error) {
	v, err, _ := s.sfg.Do("products", func() (interface{}, error) {
		products, err := s.cache.GetProducts(ctx)
		if err == nil {
			return products, nil
		}
		if !errors.Is(err, cache.ErrCacheMiss) {
			s.log.Warn("catalog cache get failed", zap.Error(err))
		}

		products, err = s.repo.GetAllProducts(ctx)
		if err != nil {
			return nil, err
		}

		go func() {
			setCtx, cancel := context.WithTimeout(context.Background(), time.Second)
			defer cancel()
			if err := s.cache.SetProducts(setCtx, products); err != nil {
				s.log.Warn("catalog cache set failed", zap.Error(err))
			}
		}()

		return products, nil
	})
	if err != nil {
		return nil, err
	}

	return v.([]domain.Product), nil
}

// Get looks the product up in the cached listing first and falls back to the
// repository.
func (s *Service) Get(ctx context.Context, id string) (*domain.Product, error) {
	if products, err := s.cache.GetProducts(ctx); err == nil {
		for i := range products {
			if products[i].ID == id {
				return &products[i], nil
			}
		}
	}

	product, err := s.repo.GetProduct(ctx, id)
	if errors.Is(err, repository.ErrProductNotFound) {
		return nil, ErrProductNotFound
	}
	if err != nil {
		return nil, err
	}
	return product, nil
}
