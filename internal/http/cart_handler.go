package http

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/DagmTesfu/ntt-business-launchpad/internal/cart"
	"github.com/DagmTesfu/ntt-business-launchpad/internal/catalog"
	"github.com/DagmTesfu/ntt-business-launchpad/internal/repository"
	"github.com/DagmTesfu/ntt-business-launchpad/internal/storefront"
	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"
)

type CartHandler struct {
	catalog  Catalog
	validate *validator.Validate
	log      *zap.Logger
	timeout  time.Duration
}

func NewCartHandler(c Catalog, v *validator.Validate, log *zap.Logger, timeout time.Duration) *CartHandler {
	return &CartHandler{
		catalog:  c,
		validate: v,
		log:      log,
		timeout:  timeout,
	}
}

// A missing or zero quantity adds one.
type AddItemRequestDTO struct {
	ProductID string `json:"product_id" validate:"required"`
	Quantity  int    `json:"quantity" validate:"gte=0,lte=99"`
}

// Zero removes the line.
type UpdateQuantityRequestDTO struct {
	Quantity *int `json:"quantity" validate:"required,gte=0,lte=99"`
}

func (h *CartHandler) GetCart(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	client := clientFromContext(r.Context())
	if client == nil {
		respondError(w, h.log, http.StatusUnauthorized, "unauthorized", "not signed in")
		return
	}

	client.Cart().Fetch(ctx)
	h.respondCart(w, client, http.StatusOK)
}

func (h *CartHandler) AddItem(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	client := clientFromContext(r.Context())
	if client == nil {
		respondError(w, h.log, http.StatusUnauthorized, "unauthorized", "not signed in")
		return
	}

	var req AddItemRequestDTO
	if err := decodeAndValidate(r, h.validate, &req); err != nil {
		respondError(w, h.log, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}

	if _, err := h.catalog.Get(ctx, req.ProductID); err != nil {
		if errors.Is(err, catalog.ErrProductNotFound) {
			respondError(w, h.log, http.StatusNotFound, "product_not_found", "product not found")
			return
		}
		h.log.Error("failed to look up product", zap.String("product_id", req.ProductID), zap.Error(err))
		respondError(w, h.log, http.StatusInternalServerError, "internal_error", "failed to load product")
		return
	}

	if err := client.Cart().AddToCart(ctx, req.ProductID, req.Quantity); err != nil {
		h.respondCartError(w, client, err)
		return
	}
	h.respondCart(w, client, http.StatusCreated)
}

func (h *CartHandler) UpdateQuantity(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	client := clientFromContext(r.Context())
	if client == nil {
		respondError(w, h.log, http.StatusUnauthorized, "unauthorized", "not signed in")
		return
	}

	itemID := chi.URLParam(r, "item_id")
	var req UpdateQuantityRequestDTO
	if err := decodeAndValidate(r, h.validate, &req); err != nil {
		respondError(w, h.log, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}

	if err := client.Cart().UpdateQuantity(ctx, itemID, *req.Quantity); err != nil {
		h.respondCartError(w, client, err)
		return
	}
	h.respondCart(w, client, http.StatusOK)
}

func (h *CartHandler) RemoveItem(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	client := clientFromContext(r.Context())
	if client == nil {
		respondError(w, h.log, http.StatusUnauthorized, "unauthorized", "not signed in")
		return
	}

	if err := client.Cart().RemoveFromCart(ctx, chi.URLParam(r, "item_id")); err != nil {
		h.respondCartError(w, client, err)
		return
	}
	h.respondCart(w, client, http.StatusOK)
}

func (h *CartHandler) ClearCart(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	client := clientFromContext(r.Context())
	if client == nil {
		respondError(w, h.log, http.StatusUnauthorized, "unauthorized", "not signed in")
		return
	}

	if err := client.Cart().Clear(ctx); err != nil {
		h.respondCartError(w, client, err)
		return
	}
	h.respondCart(w, client, http.StatusOK)
}

func (h *CartHandler) respondCart(w http.ResponseWriter, client *storefront.Client, status int) {
	respondJSON(w, h.log, status, Envelope{
		Data:          client.Cart().View(),
		Notifications: client.Notifications(),
	})
}

func (h *CartHandler) respondCartError(w http.ResponseWriter, client *storefront.Client, err error) {
	status, code := http.StatusBadGateway, "cart_update_failed"
	switch {
	case errors.Is(err, cart.ErrInvalidQuantity), errors.Is(err, cart.ErrQuantityLimit):
		status, code = http.StatusBadRequest, "invalid_quantity"
	case errors.Is(err, repository.ErrCartItemNotFound):
		status, code = http.StatusNotFound, "cart_item_not_found"
	case errors.Is(err, repository.ErrProductNotFound):
		status, code = http.StatusNotFound, "product_not_found"
	}

	respondJSON(w, h.log, status, ErrorResponse{
		Error:         err.Error(),
		Code:          code,
		Notifications: client.Notifications(),
	})
}
