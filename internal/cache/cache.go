package cache

import (
	"context"
	"errors"

	"github.com/DagmTesfu/ntt-business-launchpad/internal/domain"
)

// ProductCache holds the full catalog listing.
type ProductCache interface {
	GetProducts(ctx context.Context) ([]domain.Product, error)
	SetProducts(ctx context.Context, products []domain.Product) error
	Invalidate(ctx context.Context) error
}

var ErrCacheMiss = errors.New("cache miss")

// Noop is used when no Redis is configured. Every read is a miss.
type Noop struct{}

func (Noop) GetProducts(context.Context) ([]domain.Product, error) {
	return nil, ErrCacheMiss
}

func (Noop) SetProducts(context.Context, []domain.Product) error { return nil }

func (Noop) Invalidate(context.Context) error { return nil }
