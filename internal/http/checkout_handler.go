package http

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/DagmTesfu/ntt-business-launchpad/internal/checkout"
	"go.uber.org/zap"
)

type CheckoutHandler struct {
	log     *zap.Logger
	timeout time.Duration
}

func NewCheckoutHandler(log *zap.Logger, timeout time.Duration) *CheckoutHandler {
	return &CheckoutHandler{
		log:     log,
		timeout: timeout,
	}
}

func (h *CheckoutHandler) PlaceOrder(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	client := clientFromContext(r.Context())
	if client == nil {
		respondError(w, h.log, http.StatusUnauthorized, "unauthorized", "not signed in")
		return
	}

	order, err := client.Checkout().PlaceOrder(ctx)
	if err != nil {
		status, code, message := checkoutErrorStatus(err)
		respondJSON(w, h.log, status, ErrorResponse{
			Error:         message,
			Code:          code,
			Notifications: client.Notifications(),
		})
		return
	}

	respondJSON(w, h.log, http.StatusCreated, Envelope{
		Data:          order,
		Notifications: client.Notifications(),
	})
}

func checkoutErrorStatus(err error) (int, string, string) {
	var itemsErr *checkout.OrderItemsError
	var createErr *checkout.OrderCreationError
	switch {
	case errors.Is(err, checkout.ErrUnauthenticated):
		return http.StatusUnauthorized, "unauthorized", err.Error()
	case errors.Is(err, checkout.ErrEmptyCart):
		return http.StatusBadRequest, "empty_cart", err.Error()
	case errors.Is(err, checkout.ErrCheckoutInProgress):
		return http.StatusConflict, "checkout_in_progress", err.Error()
	case errors.Is(err, checkout.ErrAlreadyPlaced):
		return http.StatusConflict, "order_already_placed", err.Error()
	case errors.As(err, &itemsErr):
		return http.StatusBadGateway, "order_items_failed", "Failed to save order items"
	case errors.As(err, &createErr):
		return http.StatusBadGateway, "order_creation_failed", "Failed to create order"
	default:
		return http.StatusInternalServerError, "internal_error", "internal server error"
	}
}
