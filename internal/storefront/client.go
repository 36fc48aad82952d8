package storefront

import (
	"context"
	"sync"

	"github.com/DagmTesfu/ntt-business-launchpad/internal/cart"
	"github.com/DagmTesfu/ntt-business-launchpad/internal/checkout"
	"github.com/DagmTesfu/ntt-business-launchpad/internal/domain"
	"github.com/DagmTesfu/ntt-business-launchpad/internal/notify"
	"github.com/DagmTesfu/ntt-business-launchpad/internal/session"
	"go.uber.org/zap"
)

type Deps struct {
	Auth              session.Authenticator
	Carts             cart.Repository
	Orders            checkout.OrderRepository
	Log               *zap.Logger
	MinPasswordLength int
}

// Client is the state of one browser session: who is signed in, their cart
// and the notifications not yet shown to them.
type Client struct {
	inbox   *notify.Inbox
	session *session.Store
	cart    *cart.Store
	history *checkout.History
	deps    Deps

	unsubscribeCart func()

	mu       sync.Mutex
	checkout *checkout.Flow
}

// NewClient wires the inbox, the session store and a cart store that follows
// the session, in that order.
func NewClient(deps Deps) *Client {
	if deps.Log == nil {
		deps.Log = zap.NewNop()
	}

	inbox := notify.NewInbox(deps.Log)
	sess := session.NewStore(deps.Auth, session.Options{
		MinPasswordLength: deps.MinPasswordLength,
		Notifier:          inbox,
		Log:               deps.Log,
	})
	c := cart.NewStore(deps.Carts, cart.Options{Notifier: inbox, Log: deps.Log})

	return &Client{
		inbox:           inbox,
		session:         sess,
		cart:            c,
		history:         checkout.NewHistory(sess, deps.Orders),
		deps:            deps,
		unsubscribeCart: sess.Subscribe(c.OnSessionChange),
	}
}

func (c *Client) Session() *session.Store { return c.session }

func (c *Client) Cart() *cart.Store { return c.cart }

// Notifications drains the pending notifications.
func (c *Client) Notifications() []domain.Notification {
	return c.inbox.Drain()
}

// NewCheckout starts a fresh checkout flow over the current cart.
func (c *Client) NewCheckout() *checkout.Flow {
	return checkout.NewFlow(c.session, c.cart, c.deps.Orders, checkout.Options{
		Notifier: c.inbox,
		Log:      c.deps.Log,
	})
}

// Checkout returns the flow in use, replacing it once it has placed its
// order. Concurrent callers share one flow, so a second submission while the
// first is processing is rejected.
func (c *Client) Checkout() *checkout.Flow {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.checkout == nil || c.checkout.State() == checkout.StatePlaced {
		c.checkout = c.NewCheckout()
	}
	return c.checkout
}

func (c *Client) Orders(ctx context.Context) ([]domain.Order, error) {
	return c.history.List(ctx)
}

func (c *Client) Order(ctx context.Context, id string) (*domain.Order, error) {
	return c.history.Get(ctx, id)
}

// Close detaches the client from the auth event stream.
func (c *Client) Close() {
	c.unsubscribeCart()
	c.session.Close()
}
