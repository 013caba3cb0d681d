package order

import "github.com/microshop/orders/internal/service/models/orderstatus"

// PaginationModel represents the service-level input for listing orders.
// A nil Status means no status filter.
type PaginationModel struct {
	Status *orderstatus.Status `json:"status,omitempty"`
	Page   int                 `json:"page,omitempty"`
	Limit  int                 `json:"limit,omitempty"`
}

// QueryOrdersModel represents filter parameters for querying orders
// at the repository level.
type QueryOrdersModel struct {
	Status *orderstatus.Status `json:"status,omitempty"`
	Limit  int                 `json:"limit,omitempty"`
	Offset int                 `json:"offset,omitempty"`
}

// PageMeta describes the pagination metadata returned alongside a page
// of orders.
type PageMeta struct {
	Total    int `json:"total"`
	Page     int `json:"page"`
	LastPage int `json:"lastPage"`
}

// Page is one page of orders plus its metadata.
type Page struct {
	Data []Order  `json:"data"`
	Meta PageMeta `json:"meta"`
}
