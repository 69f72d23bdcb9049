package models

// OrderEvent is the subset of an order service notification the cart service reacts to.
type OrderEvent struct {
	Event   string `json:"event"` // e.g. "order.placed"
	OrderID string `json:"order_id"`
	UserID  string `json:"user_id"`
}

const OrderPlacedEvent = "order.placed"
