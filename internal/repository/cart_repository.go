package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/DagmTesfu/ntt-business-launchpad/internal/domain"
)

// ListCartLines returns the user's cart items joined with their products.
func (r *Repository) ListCartLines(ctx context.Context, userID string) ([]domain.CartLine, error) {
	if userID == "" {
		return nil, ErrMissingUser
	}

	query := `SELECT c.id, c.user_id, c.product_id, c.quantity, c.updated_at,
	                 p.id, p.name, p.description, p.size, p.type, p.price, p.stock, p.created_at
	          FROM cart_items c
	          JOIN products p ON p.id = c.product_id
	          WHERE c.user_id = $1
	          ORDER BY p.name, CAST(p.price AS REAL), c.id`

	rows, err := r.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("query cart lines: %w", err)
	}
	defer rows.Close()

	lines := make([]domain.CartLine, 0)
	for rows.Next() {
		var (
			line        domain.CartLine
			description sql.NullString
		)
		if err := rows.Scan(
			&line.ID,
			&line.UserID,
			&line.ProductID,
			&line.Quantity,
			&line.UpdatedAt,
			&line.Product.ID,
			&line.Product.Name,
			&description,
			&line.Product.Size,
			&line.Product.Type,
			&line.Product.Price,
			&line.Product.Stock,
			&line.Product.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan cart line: %w", err)
		}
		if description.Valid {
			line.Product.Description = &description.String
		}
		lines = append(lines, line)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}

	return lines, nil
}

func (r *Repository) InsertCartItem(ctx context.Context, item *domain.CartItem) error {
	if item.UserID == "" {
		return ErrMissingUser
	}

	query := `INSERT INTO cart_items (id, user_id, product_id, quantity, updated_at)
	          VALUES ($1, $2, $3, $4, $5)`

	_, err := r.db.ExecContext(ctx, query,
		item.ID,
		item.UserID,
		item.ProductID,
		item.Quantity,
		item.UpdatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrDuplicateCartItem
		}
		return fmt.Errorf("insert cart item: %w", err)
	}
	return nil
}

func (r *Repository) UpdateCartItemQuantity(ctx context.Context, userID, itemID string, quantity int, updatedAt time.Time) error {
	if userID == "" {
		return ErrMissingUser
	}

	query := `UPDATE cart_items SET quantity = $1, updated_at = $2 WHERE id = $3 AND user_id = $4`

	result, err := r.db.ExecContext(ctx, query, quantity, updatedAt, itemID, userID)
	if err != nil {
		return fmt.Errorf("update cart item quantity: %w", err)
	}
	return expectAffected(result, ErrCartItemNotFound)
}

func (r *Repository) DeleteCartItem(ctx context.Context, userID, itemID string) error {
	if userID == "" {
		return ErrMissingUser
	}

	result, err := r.db.ExecContext(ctx, `DELETE FROM cart_items WHERE id = $1 AND user_id = $2`, itemID, userID)
	if err != nil {
		return fmt.Errorf("delete cart item: %w", err)
	}
	return expectAffected(result, ErrCartItemNotFound)
}

// DeleteCartItems empties the user's cart. An already empty cart is not an
// error.
func (r *Repository) DeleteCartItems(ctx context.Context, userID string) error {
	if userID == "" {
		return ErrMissingUser
	}

	if _, err := r.db.ExecContext(ctx, `DELETE FROM cart_items WHERE user_id = $1`, userID); err != nil {
		return fmt.Errorf("delete cart items: %w", err)
	}
	return nil
}

func expectAffected(result sql.Result, notFound error) error {
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return notFound
	}
	return nil
}
