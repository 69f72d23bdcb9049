package models

import "time"

// Business event types emitted outside of the rolling statistics window.
const (
	EventLargeCartView         = "large_cart_view"
	EventLargeQuantityAddition = "large_quantity_addition"

	ErrorEventAddToCart = "add_to_cart"
	ErrorEventViewCart  = "view_cart"
	ErrorEventEmptyCart = "empty_cart"
)

// BusinessEvent is an immutable record of a single notable occurrence.
type BusinessEvent struct {
	ID           string    `json:"id"`
	EventType    string    `json:"event_type"`
	UserID       string    `json:"user_id"`
	CartID       string    `json:"cart_id,omitempty"`
	ProductID    string    `json:"product_id,omitempty"`
	Quantity     *int32    `json:"quantity,omitempty"`
	TotalItems   *int      `json:"total_items,omitempty"`
	Timestamp    time.Time `json:"timestamp"`
	ErrorDetails string    `json:"error_details,omitempty"`
}

type ProductCount struct {
	ProductID string `json:"product_id"`
	Quantity  int64  `json:"quantity"`
}

// SummaryReport is emitted once per non-idle statistics window.
type SummaryReport struct {
	WindowStart     time.Time      `json:"window_start"`
	WindowEnd       time.Time      `json:"window_end"`
	ViewCount       int64          `json:"view_count"`
	AddCount        int64          `json:"add_count"`
	EmptyCount      int64          `json:"empty_count"`
	UniqueUsers     int            `json:"unique_users"`
	TotalItemsAdded int64          `json:"total_items_added"`
	TopProducts     []ProductCount `json:"top_products"`
}
