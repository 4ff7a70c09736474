package entity

import "time"

const (
	WebhookDeliveryProcessed int32 = 10
	WebhookDeliveryIgnored   int32 = 15
	WebhookDeliveryRejected  int32 = 20
)

// WebhookDelivery records every inbound gateway delivery, including rejected
// ones. Rejected rows are kept for forgery investigation.
type WebhookDelivery struct {
	ID uint64

	OrderID *string

	EventType   string
	Signature   string
	PayloadJSON string
	Status      int32
	Error       *string

	CreatedAt time.Time
	UpdatedAt time.Time
}
