package cart

import (
	"context"
	"errors"
	"strconv"
	"sync"
	"time"

	"github.com/DagmTesfu/ntt-business-launchpad/internal/domain"
	"github.com/DagmTesfu/ntt-business-launchpad/internal/notify"
	"github.com/DagmTesfu/ntt-business-launchpad/internal/repository"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

const (
	OpAdd    = "add"
	OpUpdate = "update"
	OpRemove = "remove"
	OpClear  = "clear"
)

type Repository interface {
	ListCartLines(ctx context.Context, userID string) ([]domain.CartLine, error)
	InsertCartItem(ctx context.Context, item *domain.CartItem) error
	UpdateCartItemQuantity(ctx context.Context, userID, itemID string, quantity int, updatedAt time.Time) error
	DeleteCartItem(ctx context.Context, userID, itemID string) error
	DeleteCartItems(ctx context.Context, userID string) error
}

type Options struct {
	Notifier notify.Notifier
	Log      *zap.Logger
}

// View is a point-in-time copy of the cart with its derived totals.
type View struct {
	Items      []domain.CartLine `json:"items"`
	TotalItems int               `json:"total_items"`
	TotalPrice decimal.Decimal   `json:"total_price"`
	Currency   string            `json:"currency"`
	Loading    bool              `json:"loading"`
}

// Store mirrors the signed-in user's cart rows. Operations run one at a
// time: each mutation holds opMu across its write and the refetch that
// follows, so the visible state always reflects the last mutation.
type Store struct {
	repo     Repository
	notifier notify.Notifier
	log      *zap.Logger
	now      func() time.Time

	opMu sync.Mutex
	sfg  singleflight.Group

	mu         sync.RWMutex
	userID     string
	generation uint64
	items      []domain.CartLine
	loading    bool
}

func NewStore(repo Repository, opts Options) *Store {
	if opts.Log == nil {
		opts.Log = zap.NewNop()
	}
	return &Store{
		repo:     repo,
		notifier: opts.Notifier,
		log:      opts.Log,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// OnSessionChange follows identity changes. Signing out empties the view
// without touching the repository; signing in loads the new user's cart.
func (s *Store) OnSessionChange(ctx context.Context, sess domain.Session) {
	s.mu.Lock()
	s.generation++
	s.items = nil
	s.loading = false
	if !sess.IsAuthenticated() {
		s.userID = ""
		s.mu.Unlock()
		return
	}
	s.userID = sess.UserID
	s.mu.Unlock()

	s.Fetch(ctx)
}

// Fetch replaces the local view with the repository's rows. Failures are
// logged and leave the previous view in place.
func (s *Store) Fetch(ctx context.Context) {
	userID, gen := s.owner()
	if userID == "" {
		return
	}

	key := userID + ":" + strconv.FormatUint(gen, 10)
	_, _, _ = s.sfg.Do(key, func() (interface{}, error) {
		s.opMu.Lock()
		defer s.opMu.Unlock()
		s.fetchLocked(ctx)
		return nil, nil
	})
}

func (s *Store) fetchLocked(ctx context.Context) {
	userID, gen := s.owner()
	if userID == "" {
		return
	}

	s.setLoading(gen, true)
	lines, err := s.repo.ListCartLines(ctx, userID)
	s.mu.Lock()
	defer s.mu.Unlock()
	if gen != s.generation {
		// identity changed while the query ran
		return
	}
	s.loading = false
	if err != nil {
		s.log.Error("cart: fetch failed", zap.String("user_id", userID), zap.Error(err))
		return
	}
	s.items = lines
}

// AddToCart adds quantity units of the product. A quantity of zero counts as
// one. If the product is already in the cart the quantities are summed.
func (s *Store) AddToCart(ctx context.Context, productID string, quantity int) error {
	if quantity < 0 {
		return ErrInvalidQuantity
	}
	if quantity == 0 {
		quantity = 1
	}
	if quantity > MaxQuantity {
		return ErrQuantityLimit
	}

	s.opMu.Lock()
	defer s.opMu.Unlock()

	userID, _ := s.owner()
	if userID == "" {
		return nil
	}

	if line, ok := s.lineForProduct(productID); ok {
		return s.addToLineLocked(ctx, userID, line, quantity)
	}

	item := &domain.CartItem{
		ID:        uuid.NewString(),
		UserID:    userID,
		ProductID: productID,
		Quantity:  quantity,
		UpdatedAt: s.now(),
	}
	err := s.repo.InsertCartItem(ctx, item)
	if errors.Is(err, repository.ErrDuplicateCartItem) {
		// the local view was stale; the row exists remotely
		s.fetchLocked(ctx)
		if line, ok := s.lineForProduct(productID); ok {
			return s.addToLineLocked(ctx, userID, line, quantity)
		}
	}
	if err != nil {
		s.log.Warn("cart: add failed", zap.String("product_id", productID), zap.Error(err))
		s.notify(notify.Failure("Failed to add item to cart"))
		return &MutationError{Op: OpAdd, Err: err}
	}

	s.notify(notify.Success("Added to cart", "Item has been added to your cart"))
	s.fetchLocked(ctx)
	return nil
}

func (s *Store) addToLineLocked(ctx context.Context, userID string, line domain.CartLine, quantity int) error {
	if line.Quantity+quantity > MaxQuantity {
		return ErrQuantityLimit
	}
	return s.updateLocked(ctx, userID, line.ID, line.Quantity+quantity)
}

// UpdateQuantity sets the quantity of a line. Zero or less removes it.
func (s *Store) UpdateQuantity(ctx context.Context, itemID string, quantity int) error {
	if quantity > MaxQuantity {
		return ErrQuantityLimit
	}
	s.opMu.Lock()
	defer s.opMu.Unlock()

	userID, _ := s.owner()
	if userID == "" {
		return nil
	}
	return s.updateLocked(ctx, userID, itemID, quantity)
}

func (s *Store) updateLocked(ctx context.Context, userID, itemID string, quantity int) error {
	if quantity <= 0 {
		return s.removeLocked(ctx, userID, itemID)
	}

	if err := s.repo.UpdateCartItemQuantity(ctx, userID, itemID, quantity, s.now()); err != nil {
		s.log.Warn("cart: update failed", zap.String("item_id", itemID), zap.Error(err))
		s.notify(notify.Failure("Failed to update quantity"))
		return &MutationError{Op: OpUpdate, Err: err}
	}

	s.fetchLocked(ctx)
	return nil
}

func (s *Store) RemoveFromCart(ctx context.Context, itemID string) error {
	s.opMu.Lock()
	defer s.opMu.Unlock()

	userID, _ := s.owner()
	if userID == "" {
		return nil
	}
	return s.removeLocked(ctx, userID, itemID)
}

func (s *Store) removeLocked(ctx context.Context, userID, itemID string) error {
	if err := s.repo.DeleteCartItem(ctx, userID, itemID); err != nil {
		s.log.Warn("cart: remove failed", zap.String("item_id", itemID), zap.Error(err))
		s.notify(notify.Failure("Failed to remove item"))
		return &MutationError{Op: OpRemove, Err: err}
	}

	s.notify(notify.Success("Removed", "Item removed from cart"))
	s.fetchLocked(ctx)
	return nil
}

// Clear deletes every line. On success the view is emptied directly since
// the outcome is known.
func (s *Store) Clear(ctx context.Context) error {
	s.opMu.Lock()
	defer s.opMu.Unlock()
	return s.clearLocked(ctx)
}

// Settle passes the current view to place and clears the cart if place
// succeeds. The operation lock is held throughout, so a concurrent add waits
// and its line is either in the view or added after the clear.
func (s *Store) Settle(ctx context.Context, place func(View) error) error {
	s.opMu.Lock()
	defer s.opMu.Unlock()

	if err := place(s.View()); err != nil {
		return err
	}
	return s.clearLocked(ctx)
}

func (s *Store) clearLocked(ctx context.Context) error {
	userID, gen := s.owner()
	if userID == "" {
		return nil
	}

	if err := s.repo.DeleteCartItems(ctx, userID); err != nil {
		s.log.Warn("cart: clear failed", zap.String("user_id", userID), zap.Error(err))
		s.notify(notify.Failure("Failed to clear cart"))
		return &MutationError{Op: OpClear, Err: err}
	}

	s.mu.Lock()
	if gen == s.generation {
		s.items = nil
	}
	s.mu.Unlock()
	return nil
}

func (s *Store) View() View {
	s.mu.RLock()
	defer s.mu.RUnlock()

	items := make([]domain.CartLine, len(s.items))
	copy(items, s.items)
	return View{
		Items:      items,
		TotalItems: totalItems(items),
		TotalPrice: totalPrice(items),
		Currency:   domain.Currency,
		Loading:    s.loading,
	}
}

func (s *Store) Items() []domain.CartLine {
	return s.View().Items
}

func (s *Store) TotalItems() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return totalItems(s.items)
}

func (s *Store) TotalPrice() decimal.Decimal {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return totalPrice(s.items)
}

func (s *Store) Authenticated() bool {
	userID, _ := s.owner()
	return userID != ""
}

func totalItems(items []domain.CartLine) int {
	n := 0
	for _, l := range items {
		n += l.Quantity
	}
	return n
}

func totalPrice(items []domain.CartLine) decimal.Decimal {
	total := decimal.Zero
	for _, l := range items {
		total = total.Add(l.Subtotal())
	}
	return total
}

func (s *Store) owner() (string, uint64) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.userID, s.generation
}

func (s *Store) setLoading(gen uint64, v bool) {
	s.mu.Lock()
	if gen == s.generation {
		s.loading = v
	}
	s.mu.Unlock()
}

func (s *Store) lineForProduct(productID string) (domain.CartLine, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, l := range s.items {
		if l.ProductID == productID {
			return l, true
		}
	}
	return domain.CartLine{}, false
}

func (s *Store) notify(n domain.Notification) {
	if s.notifier != nil {
		s.notifier.Notify(n)
	}
}
