package entity

import "time"

type OrderEvent struct {
	ID uint64

	OrderID           *string
	ExternalPaymentID string

	EventType string

	OldStatus *OrderStatus
	NewStatus OrderStatus

	GatewayEventID *string
	PayloadJSON    *string

	CreatedAt time.Time
}
