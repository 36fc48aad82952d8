package cart

import (
	"errors"
	"fmt"
)

// MaxQuantity is the most units a single cart line may hold.
const MaxQuantity = 99

var (
	ErrInvalidQuantity = errors.New("quantity must not be negative")
	ErrQuantityLimit   = fmt.Errorf("quantity must not exceed %d", MaxQuantity)
)

// MutationError reports a failed cart write. The user has already been
// notified when it is returned and the local view is unchanged.
type MutationError struct {
	Op  string
	Err error
}

func (e *MutationError) Error() string {
	return fmt.Sprintf("cart %s failed: %v", e.Op, e.Err)
}

func (e *MutationError) Unwrap() error {
	return e.Err
}
