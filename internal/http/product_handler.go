package http

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/DagmTesfu/ntt-business-launchpad/internal/catalog"
	"github.com/DagmTesfu/ntt-business-launchpad/internal/domain"
	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

type Catalog interface {
	List(ctx context.Context) ([]domain.Product, error)
	Get(ctx context.Context, id string) (*domain.Product, error)
}

type ProductHandler struct {
	catalog Catalog
	log     *zap.Logger
	timeout time.Duration
}

func NewProductHandler(c Catalog, log *zap.Logger, timeout time.Duration) *ProductHandler {
	return &ProductHandler{
		catalog: c,
		log:     log,
		timeout: timeout,
	}
}

type ProductsResponseDTO struct {
	Products []domain.Product `json:"products"`
	Currency string           `json:"currency"`
}

func (h *ProductHandler) ListProducts(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	products, err := h.catalog.List(ctx)
	if err != nil {
		h.log.Error("failed to list products", zap.Error(err))
		respondError(w, h.log, http.StatusInternalServerError, "internal_error", "failed to load products")
		return
	}
	if products == nil {
		products = []domain.Product{}
	}

	respondJSON(w, h.log, http.StatusOK, ProductsResponseDTO{
		Products: products,
		Currency: domain.Currency,
	})
}

func (h *ProductHandler) GetProduct(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	productID := chi.URLParam(r, "product_id")
	if productID == "" {
		respondError(w, h.log, http.StatusBadRequest, "invalid_request", "product_id is required")
		return
	}

	product, err := h.catalog.Get(ctx, productID)
	if err != nil {
		if errors.Is(err, catalog.ErrProductNotFound) {
			respondError(w, h.log, http.StatusNotFound, "product_not_found", "product not found")
			return
		}
		h.log.Error("failed to get product", zap.String("product_id", productID), zap.Error(err))
		respondError(w, h.log, http.StatusInternalServerError, "internal_error", "failed to load product")
		return
	}

	respondJSON(w, h.log, http.StatusOK, product)
}
