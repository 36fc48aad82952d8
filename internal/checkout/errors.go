package checkout

import (
	"errors"
	"fmt"
)

var (
	ErrUnauthenticated    = errors.New("sign in to place an order")
	ErrEmptyCart          = errors.New("cart is empty")
	ErrCheckoutInProgress = errors.New("checkout already in progress")
	ErrAlreadyPlaced      = errors.New("order already placed")
)

// OrderCreationError means the order row could not be written. Nothing was
// persisted and the cart is untouched.
type OrderCreationError struct {
	Err error
}

func (e *OrderCreationError) Error() string {
	return fmt.Sprintf("create order: %v", e.Err)
}

func (e *OrderCreationError) Unwrap() error { return e.Err }

// OrderItemsError means an order line could not be written. The order is
// rolled back with it and the cart is untouched.
type OrderItemsError struct {
	Err error
}

func (e *OrderItemsError) Error() string {
	return fmt.Sprintf("save order items: %v", e.Err)
}

func (e *OrderItemsError) Unwrap() error { return e.Err }
