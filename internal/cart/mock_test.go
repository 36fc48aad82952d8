package cart

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/DagmTesfu/ntt-business-launchpad/internal/domain"
	"github.com/DagmTesfu/ntt-business-launchpad/internal/repository"
	"github.com/shopspring/decimal"
)

// mockRepo keeps cart rows in memory and enforces the (user, product)
// uniqueness of the real table.
type mockRepo struct {
	mu       sync.Mutex
	products map[string]domain.Product
	rows     map[string]domain.CartItem

	listCalls   int
	insertCalls int
	updateCalls int
	deleteCalls int
	clearCalls  int

	listErr   error
	insertErr error
	updateErr error
	deleteErr error
	clearErr  error

	// hidden rows exist remotely but are not returned by the next list call
	hideNextList bool
}

func newMockRepo() *mockRepo {
	return &mockRepo{
		products: map[string]domain.Product{
			"A": {ID: "A", Name: "Natys Roasted Coffee", Size: "250g", Type: domain.ProductTypeRoasted, Price: decimal.NewFromInt(100)},
			"B": {ID: "B", Name: "Natys Ground Coffee", Size: "250g", Type: domain.ProductTypeGround, Price: decimal.NewFromInt(50)},
			"C": {ID: "C", Name: "Natys Ground Coffee", Size: "500g", Type: domain.ProductTypeGround, Price: decimal.RequireFromString("12.25")},
		},
		rows: make(map[string]domain.CartItem),
	}
}

func (m *mockRepo) ListCartLines(ctx context.Context, userID string) ([]domain.CartLine, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.listCalls++
	if m.listErr != nil {
		return nil, m.listErr
	}
	if m.hideNextList {
		m.hideNextList = false
		return []domain.CartLine{}, nil
	}

	lines := make([]domain.CartLine, 0)
	for _, row := range m.rows {
		if row.UserID == userID {
			lines = append(lines, domain.CartLine{CartItem: row, Product: m.products[row.ProductID]})
		}
	}
	sort.Slice(lines, func(i, j int) bool { return lines[i].ProductID < lines[j].ProductID })
	return lines, nil
}

func (m *mockRepo) InsertCartItem(ctx context.Context, item *domain.CartItem) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.insertCalls++
	if m.insertErr != nil {
		return m.insertErr
	}
	for _, row := range m.rows {
		if row.UserID == item.UserID && row.ProductID == item.ProductID {
			return repository.ErrDuplicateCartItem
		}
	}
	m.rows[item.ID] = *item
	return nil
}

func (m *mockRepo) UpdateCartItemQuantity(ctx context.Context, userID, itemID string, quantity int, updatedAt time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.updateCalls++
	if m.updateErr != nil {
		return m.updateErr
	}
	row, ok := m.rows[itemID]
	if !ok || row.UserID != userID {
		return repository.ErrCartItemNotFound
	}
	row.Quantity = quantity
	row.UpdatedAt = updatedAt
	m.rows[itemID] = row
	return nil
}

func (m *mockRepo) DeleteCartItem(ctx context.Context, userID, itemID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.deleteCalls++
	if m.deleteErr != nil {
		return m.deleteErr
	}
	row, ok := m.rows[itemID]
	if !ok || row.UserID != userID {
		return repository.ErrCartItemNotFound
	}
	delete(m.rows, itemID)
	return nil
}

func (m *mockRepo) DeleteCartItems(ctx context.Context, userID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.clearCalls++
	if m.clearErr != nil {
		return m.clearErr
	}
	for id, row := range m.rows {
		if row.UserID == userID {
			delete(m.rows, id)
		}
	}
	return nil
}

func (m *mockRepo) remoteCalls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.listCalls + m.insertCalls + m.updateCalls + m.deleteCalls + m.clearCalls
}

func (m *mockRepo) rowsFor(userID string) []domain.CartItem {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []domain.CartItem
	for _, row := range m.rows {
		if row.UserID == userID {
			out = append(out, row)
		}
	}
	return out
}

func (m *mockRepo) set(fn func(m *mockRepo)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	fn(m)
}
