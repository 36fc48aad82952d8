package checkout

import (
	"context"

	"github.com/DagmTesfu/ntt-business-launchpad/internal/domain"
)

// History lists the orders of whoever is signed in.
type History struct {
	session SessionReader
	orders  OrderRepository
}

func NewHistory(session SessionReader, orders OrderRepository) *History {
	return &History{session: session, orders: orders}
}

func (h *History) List(ctx context.Context) ([]domain.Order, error) {
	sess := h.session.Current()
	if !sess.IsAuthenticated() {
		return nil, ErrUnauthenticated
	}
	return h.orders.ListOrdersByUserID(ctx, sess.UserID)
}

// Get returns one of the signed-in user's orders. Orders of other users are
// reported as not found.
func (h *History) Get(ctx context.Context, id string) (*domain.Order, error) {
	sess := h.session.Current()
	if !sess.IsAuthenticated() {
		return nil, ErrUnauthenticated
	}
	return h.orders.GetOrderByID(ctx, sess.UserID, id)
}
