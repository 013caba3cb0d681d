package product

import "github.com/shopspring/decimal"

// Product is a record returned by the products service for a validated id.
type Product struct {
	ID    int64           `json:"id"`
	Name  string          `json:"name"`
	Price decimal.Decimal `json:"price"`
}
