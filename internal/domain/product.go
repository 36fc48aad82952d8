package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

type ProductType string

const (
	ProductTypeRoasted ProductType = "roasted"
	ProductTypeGround  ProductType = "ground"
)

// Currency is the display currency of every price in the shop.
const Currency = "ETB"

type Product struct {
	ID          string          `json:"id"`
	Name        string          `json:"name"`
	Description *string         `json:"description,omitempty"`
	Size        string          `json:"size"`
	Type        ProductType     `json:"type"`
	Price       decimal.Decimal `json:"price"`
	Stock       int             `json:"stock"`
	CreatedAt   time.Time       `json:"created_at"`
}
