package entity

import "time"

// Order is the durable side of the reconciliation: a cache of what the
// gateway says happened to a payment, keyed by the gateway-assigned payment
// id. Rows are created lazily by the first webhook event, never at checkout
// time.
type Order struct {
	ID string

	ExternalPaymentID string

	OwnerID *string

	AmountCents         int64
	AmountRefundedCents int64
	Currency            string

	Status OrderStatus

	// Metadata holds the cart snapshot captured at session creation, kept
	// opaque for invoicing. It is never re-derived from the live catalog.
	Metadata map[string]string

	CreatedAt time.Time
	UpdatedAt time.Time
}
