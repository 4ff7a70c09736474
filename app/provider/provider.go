package provider

import (
	"context"
	"errors"
)

var (
	// ErrGatewayUnavailable covers transport failures and gateway-side 5xx;
	// the caller (or the gateway's own webhook redelivery) is expected to
	// retry.
	ErrGatewayUnavailable = errors.New("payment gateway unavailable")
	// ErrGatewayRejected covers gateway-side 4xx, e.g. refunding more than
	// the remaining balance. Not retryable.
	ErrGatewayRejected = errors.New("payment gateway rejected the request")
	// ErrEventMalformed marks a webhook body that passed signature
	// verification but is not parseable. Distinct from a forgery.
	ErrEventMalformed = errors.New("webhook event payload is malformed")
)

// LineItem is one checkout line with its price already resolved by the
// catalog. GatewayPriceID set means a price registered with the gateway;
// otherwise the inline fields are sent as dynamic price data.
type LineItem struct {
	GatewayPriceID *string

	Name           string
	Description    string
	UnitPriceCents int64
	Currency       string

	Quantity int64
}

type CreateSessionInput struct {
	LineItems     []LineItem
	Metadata      map[string]string
	CustomerEmail string
	SuccessURL    string
	CancelURL     string
	ExpiresAt     int64
}

type CreateSessionOutput struct {
	SessionID   string
	RedirectURL string
}

type RefundInput struct {
	// PaymentID is the gateway payment reference the refund applies to.
	PaymentID string
	// AmountCents nil means a full refund: the field is omitted from the
	// gateway request entirely, which is not the same as sending zero.
	AmountCents *int64
	Reason      string
	Metadata    map[string]string
}

type RefundOutput struct {
	RefundID    string
	AmountCents int64
	Status      string
}

// WebhookEvent is a gateway event normalized to what the ledger needs.
type WebhookEvent struct {
	GatewayEventID string
	Type           string

	// PaymentID is the external payment id the event refers to. Empty when
	// a refund event's charge carries no payment reference.
	PaymentID string

	AmountCents         int64
	AmountRefundedCents int64
	Currency            string
	Metadata            map[string]string
}

type Gateway interface {
	CreateCheckoutSession(ctx context.Context, input *CreateSessionInput) (*CreateSessionOutput, error)
	CreateRefund(ctx context.Context, input *RefundInput) (*RefundOutput, error)
	// VerifyAndParseEvent authenticates the exact raw bytes received before
	// any JSON is parsed.
	VerifyAndParseEvent(payload []byte, signature string) (*WebhookEvent, error)
	GetPaymentStatus(ctx context.Context, paymentID string) (string, error)
}
