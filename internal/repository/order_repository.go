package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/DagmTesfu/ntt-business-launchpad/internal/domain"
)

// PlaceOrder stores the order, its items and the outbox event in one
// transaction. A failure on the order row is wrapped with ErrOrderInsert and
// a failure on any item row with ErrOrderItemsInsert; either way nothing is
// committed.
func (r *Repository) PlaceOrder(ctx context.Context, order *domain.Order, event *domain.OutboxEvent) (err error) {
	if order.UserID == "" {
		return ErrMissingUser
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("%w: begin transaction: %v", ErrOrderInsert, err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	_, err = tx.ExecContext(ctx,
		`INSERT INTO orders (id, user_id, total, status, created_at) VALUES ($1, $2, $3, $4, $5)`,
		order.ID,
		order.UserID,
		order.Total,
		string(order.Status),
		order.CreatedAt)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrOrderInsert, err)
	}

	for _, item := range order.Items {
		_, err = tx.ExecContext(ctx,
			`INSERT INTO order_items (id, order_id, product_id, quantity, price) VALUES ($1, $2, $3, $4, $5)`,
			item.ID,
			order.ID,
			item.ProductID,
			item.Quantity,
			item.Price)
		if err != nil {
			return fmt.Errorf("%w: %v", ErrOrderItemsInsert, err)
		}
	}

	if event != nil {
		if err = insertOutboxEvent(ctx, tx, event); err != nil {
			return err
		}
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("%w: commit: %v", ErrOrderInsert, err)
	}
	return nil
}

func (r *Repository) GetOrderByID(ctx context.Context, userID, id string) (*domain.Order, error) {
	query := `SELECT id, user_id, total, status, created_at FROM orders WHERE id = $1 AND user_id = $2`

	var order domain.Order
	err := r.db.QueryRowContext(ctx, query, id, userID).Scan(
		&order.ID,
		&order.UserID,
		&order.Total,
		&order.Status,
		&order.CreatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrOrderNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("query order by id: %w", err)
	}

	items, err := r.orderItems(ctx, order.ID)
	if err != nil {
		return nil, err
	}
	order.Items = items
	return &order, nil
}

// ListOrdersByUserID returns the user's orders with their items, newest first.
func (r *Repository) ListOrdersByUserID(ctx context.Context, userID string) ([]domain.Order, error) {
	if userID == "" {
		return nil, ErrMissingUser
	}

	query := `SELECT id, user_id, total, status, created_at
	          FROM orders WHERE user_id = $1 ORDER BY created_at DESC`

	rows, err := r.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("query orders by user id: %w", err)
	}

	orders := make([]domain.Order, 0)
	for rows.Next() {
		var order domain.Order
		if err := rows.Scan(
			&order.ID,
			&order.UserID,
			&order.Total,
			&order.Status,
			&order.CreatedAt,
		); err != nil {
			rows.Close()
			return nil, fmt.Errorf("scan order row: %w", err)
		}
		orders = append(orders, order)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, fmt.Errorf("row iteration error: %w", err)
	}
	// released before the item queries; SQLite runs on a single connection
	rows.Close()

	for i := range orders {
		items, err := r.orderItems(ctx, orders[i].ID)
		if err != nil {
			return nil, err
		}
		orders[i].Items = items
	}

	return orders, nil
}

func (r *Repository) orderItems(ctx context.Context, orderID string) ([]domain.OrderItem, error) {
	query := `SELECT id, order_id, product_id, quantity, price
	          FROM order_items WHERE order_id = $1 ORDER BY product_id`

	rows, err := r.db.QueryContext(ctx, query, orderID)
	if err != nil {
		return nil, fmt.Errorf("query order items: %w", err)
	}
	defer rows.Close()

	items := make([]domain.OrderItem, 0)
	for rows.Next() {
		var item domain.OrderItem
		if err := rows.Scan(
			&item.ID,
			&item.OrderID,
			&item.ProductID,
			&item.Quantity,
			&item.Price,
		); err != nil {
			return nil, fmt.Errorf("scan order item: %w", err)
		}
		items = append(items, item)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}
	return items, nil
}
