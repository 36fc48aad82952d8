package http

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/DagmTesfu/ntt-business-launchpad/internal/checkout"
	"github.com/DagmTesfu/ntt-business-launchpad/internal/domain"
	"github.com/DagmTesfu/ntt-business-launchpad/internal/repository"
	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

type OrdersHandler struct {
	log     *zap.Logger
	timeout time.Duration
}

func NewOrdersHandler(log *zap.Logger, timeout time.Duration) *OrdersHandler {
	return &OrdersHandler{
		log:     log,
		timeout: timeout,
	}
}

func (h *OrdersHandler) ListOrders(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	client := clientFromContext(r.Context())
	if client == nil {
		respondError(w, h.log, http.StatusUnauthorized, "unauthorized", "not signed in")
		return
	}

	orders, err := client.Orders(ctx)
	if err != nil {
		if errors.Is(err, checkout.ErrUnauthenticated) {
			respondError(w, h.log, http.StatusUnauthorized, "unauthorized", err.Error())
			return
		}
		h.log.Error("failed to list orders", zap.Error(err))
		respondError(w, h.log, http.StatusInternalServerError, "internal_error", "failed to load orders")
		return
	}
	if orders == nil {
		orders = []domain.Order{}
	}

	respondJSON(w, h.log, http.StatusOK, Envelope{
		Data:          orders,
		Notifications: client.Notifications(),
	})
}

func (h *OrdersHandler) GetOrder(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	client := clientFromContext(r.Context())
	if client == nil {
		respondError(w, h.log, http.StatusUnauthorized, "unauthorized", "not signed in")
		return
	}

	orderID := chi.URLParam(r, "order_id")
	if orderID == "" {
		respondError(w, h.log, http.StatusBadRequest, "missing_order_id", "order_id is required")
		return
	}

	order, err := client.Order(ctx, orderID)
	if err != nil {
		switch {
		case errors.Is(err, repository.ErrOrderNotFound):
			respondError(w, h.log, http.StatusNotFound, "order_not_found", "order not found")
		case errors.Is(err, checkout.ErrUnauthenticated):
			respondError(w, h.log, http.StatusUnauthorized, "unauthorized", err.Error())
		default:
			h.log.Error("failed to get order", zap.String("order_id", orderID), zap.Error(err))
			respondError(w, h.log, http.StatusInternalServerError, "internal_error", "failed to load order")
		}
		return
	}

	respondJSON(w, h.log, http.StatusOK, Envelope{
		Data:          order,
		Notifications: client.Notifications(),
	})
}
