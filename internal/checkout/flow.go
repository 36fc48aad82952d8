package checkout

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/DagmTesfu/ntt-business-launchpad/internal/cart"
	"github.com/DagmTesfu/ntt-business-launchpad/internal/domain"
	"github.com/DagmTesfu/ntt-business-launchpad/internal/notify"
	"github.com/DagmTesfu/ntt-business-launchpad/internal/repository"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

type State int

const (
	StateIdle State = iota
	StateProcessing
	StatePlaced
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateProcessing:
		return "processing"
	case StatePlaced:
		return "placed"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

type SessionReader interface {
	Current() domain.Session
}

// Cart hands checkout a view that no other cart operation can change until
// place returns, and empties the cart when place succeeds.
type Cart interface {
	Settle(ctx context.Context, place func(cart.View) error) error
}

type OrderRepository interface {
	PlaceOrder(ctx context.Context, order *domain.Order, event *domain.OutboxEvent) error
	ListOrdersByUserID(ctx context.Context, userID string) ([]domain.Order, error)
	GetOrderByID(ctx context.Context, userID, id string) (*domain.Order, error)
}

type Options struct {
	Notifier notify.Notifier
	Log      *zap.Logger
}

// Flow turns the current cart into one order. A flow places at most one
// order; a failed attempt returns it to idle so it can be retried.
type Flow struct {
	session  SessionReader
	cart     Cart
	orders   OrderRepository
	notifier notify.Notifier
	log      *zap.Logger
	now      func() time.Time

	mu    sync.Mutex
	state State
	order *domain.Order
}

func NewFlow(session SessionReader, c Cart, orders OrderRepository, opts Options) *Flow {
	if opts.Log == nil {
		opts.Log = zap.NewNop()
	}
	return &Flow{
		session:  session,
		cart:     c,
		orders:   orders,
		notifier: opts.Notifier,
		log:      opts.Log,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

func (f *Flow) State() State {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.state
}

// Order returns the placed order, nil until the flow reaches StatePlaced.
func (f *Flow) Order() *domain.Order {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.order
}

func (f *Flow) PlaceOrder(ctx context.Context) (*domain.Order, error) {
	sess, err := f.begin()
	if err != nil {
		return nil, err
	}

	var (
		order    *domain.Order
		placeErr error
	)
	clearErr := f.cart.Settle(ctx, func(view cart.View) error {
		order, placeErr = f.place(ctx, sess.UserID, view)
		return placeErr
	})
	if placeErr != nil {
		f.setState(StateIdle)
		return nil, placeErr
	}
	// the order stands even if the cart cannot be emptied
	if clearErr != nil {
		f.log.Warn("checkout: clear cart after order failed",
			zap.String("order_id", order.ID), zap.Error(clearErr))
	}

	f.mu.Lock()
	f.state = StatePlaced
	f.order = order
	f.mu.Unlock()

	f.log.Info("order placed",
		zap.String("order_id", order.ID),
		zap.String("user_id", order.UserID),
		zap.String("total", order.Total.StringFixed(2)),
		zap.Int("items", len(order.Items)))
	return order, nil
}

// place persists an order for view. It runs while the cart is settled, so
// view is exactly what gets cleared afterwards.
func (f *Flow) place(ctx context.Context, userID string, view cart.View) (*domain.Order, error) {
	if len(view.Items) == 0 {
		return nil, ErrEmptyCart
	}

	order := f.buildOrder(userID, view)
	event, err := orderPlacedEvent(order)
	if err != nil {
		return nil, &OrderCreationError{Err: err}
	}

	if err := f.orders.PlaceOrder(ctx, order, event); err != nil {
		if errors.Is(err, repository.ErrOrderItemsInsert) {
			f.log.Error("checkout: order items insert failed", zap.String("user_id", userID), zap.Error(err))
			f.notifyFailure("Failed to save order items")
			return nil, &OrderItemsError{Err: err}
		}
		f.log.Error("checkout: order insert failed", zap.String("user_id", userID), zap.Error(err))
		f.notifyFailure("Failed to create order")
		return nil, &OrderCreationError{Err: err}
	}
	return order, nil
}

func (f *Flow) begin() (domain.Session, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	switch f.state {
	case StateProcessing:
		return domain.Session{}, ErrCheckoutInProgress
	case StatePlaced:
		return domain.Session{}, ErrAlreadyPlaced
	}

	sess := f.session.Current()
	if !sess.IsAuthenticated() {
		return domain.Session{}, ErrUnauthenticated
	}

	f.state = StateProcessing
	return sess, nil
}

// buildOrder captures each product's price as it is now.
func (f *Flow) buildOrder(userID string, view cart.View) *domain.Order {
	order := &domain.Order{
		ID:        uuid.NewString(),
		UserID:    userID,
		Total:     view.TotalPrice,
		Status:    domain.OrderStatusPending,
		Items:     make([]domain.OrderItem, 0, len(view.Items)),
		CreatedAt: f.now(),
	}
	for _, line := range view.Items {
		order.Items = append(order.Items, domain.OrderItem{
			ID:        uuid.NewString(),
			OrderID:   order.ID,
			ProductID: line.ProductID,
			Quantity:  line.Quantity,
			Price:     line.Product.Price,
		})
	}
	return order
}

func orderPlacedEvent(order *domain.Order) (*domain.OutboxEvent, error) {
	payload, err := json.Marshal(order)
	if err != nil {
		return nil, fmt.Errorf("marshal order event: %w", err)
	}
	return &domain.OutboxEvent{
		ID:          uuid.NewString(),
		AggregateID: order.ID,
		EventType:   domain.EventTypeOrderPlaced,
		Payload:     payload,
		CreatedAt:   order.CreatedAt,
	}, nil
}

func (f *Flow) setState(s State) {
	f.mu.Lock()
	f.state = s
	f.mu.Unlock()
}

func (f *Flow) notifyFailure(description string) {
	if f.notifier != nil {
		f.notifier.Notify(notify.Failure(description))
	}
}
