package types

import (
	"errors"
	"io"
	"net/url"
	"strconv"
	"strings"

	"github.com/labstack/echo/v4"
)

type HealthResponse struct {
	Status string `json:"status"`
}

type ErrorResponse struct {
	Error string `json:"error"`
}

type WebhookAckResponse struct {
	Received bool `json:"received"`
}

// CartLine is what the client submits. Price is the client-side display
// price and is never trusted; the catalog decides what a line costs.
type CartLine struct {
	OfferingID string `json:"offeringId"`
	Quantity   int64  `json:"quantity"`
	Price      int64  `json:"price,omitempty"`
}

type CheckoutRequest struct {
	Cart       []CartLine `json:"cart"`
	SuccessURL string     `json:"successUrl,omitempty"`
	CancelURL  string     `json:"cancelUrl,omitempty"`

	// Owner identity comes from the auth layer in front of this service,
	// never from the request body. Both are empty for anonymous checkout.
	OwnerID    string `json:"-"`
	OwnerEmail string `json:"-"`
}

func NewCheckoutRequestFromContext(ctx echo.Context) (*CheckoutRequest, error) {
	var body CheckoutRequest
	if err := ctx.Bind(&body); err != nil {
		return nil, err
	}

	body.SuccessURL = strings.TrimSpace(body.SuccessURL)
	body.CancelURL = strings.TrimSpace(body.CancelURL)
	body.OwnerID = strings.TrimSpace(ctx.Request().Header.Get("X-User-Id"))
	body.OwnerEmail = strings.TrimSpace(ctx.Request().Header.Get("X-User-Email"))
	for i := range body.Cart {
		body.Cart[i].OfferingID = strings.TrimSpace(body.Cart[i].OfferingID)
	}

	return &body, nil
}

func (r *CheckoutRequest) Validate() error {
	if len(r.Cart) == 0 {
		return errors.New("cart cannot be empty")
	}
	for _, line := range r.Cart {
		if line.OfferingID == "" {
			return errors.New("offeringId is required for every cart line")
		}
		if line.Quantity <= 0 {
			return errors.New("quantity must be > 0")
		}
	}
	if err := validateRedirectURL(r.SuccessURL); err != nil {
		return errors.New("successUrl is not a valid absolute URL")
	}
	if err := validateRedirectURL(r.CancelURL); err != nil {
		return errors.New("cancelUrl is not a valid absolute URL")
	}
	return nil
}

func validateRedirectURL(raw string) error {
	if raw == "" {
		return nil
	}
	parsed, err := url.Parse(raw)
	if err != nil {
		return err
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" || parsed.Host == "" {
		return errors.New("redirect URL must be absolute http(s)")
	}
	return nil
}

type CheckoutResponse struct {
	SessionID   string `json:"sessionId"`
	RedirectURL string `json:"redirectUrl"`
}

// WebhookRequest carries the exact raw bytes received; the signature is
// computed over the wire bytes, so they must never be re-serialized before
// verification.
type WebhookRequest struct {
	Signature string
	Payload   []byte
}

func NewWebhookRequestFromContext(ctx echo.Context) (*WebhookRequest, error) {
	rawBody, err := io.ReadAll(ctx.Request().Body)
	if err != nil {
		return nil, err
	}

	return &WebhookRequest{
		Signature: strings.TrimSpace(ctx.Request().Header.Get("Stripe-Signature")),
		Payload:   rawBody,
	}, nil
}

func (r *WebhookRequest) Validate() error {
	if r.Signature == "" {
		return errors.New("signature header is required")
	}
	if len(r.Payload) == 0 {
		return errors.New("payload is required")
	}
	return nil
}

type GetOrderRequest struct {
	ID string
}

func NewGetOrderRequestFromContext(ctx echo.Context) (*GetOrderRequest, error) {
	return &GetOrderRequest{ID: strings.TrimSpace(ctx.Param("id"))}, nil
}

func (r *GetOrderRequest) Validate() error {
	if r.ID == "" {
		return errors.New("invalid order id")
	}
	return nil
}

type ListOrdersRequest struct {
	Status  string
	OwnerID string
	Limit   int32
	Offset  int32
}

func NewListOrdersRequestFromContext(ctx echo.Context) (*ListOrdersRequest, error) {
	req := &ListOrdersRequest{
		Status:  strings.TrimSpace(ctx.QueryParam("status")),
		OwnerID: strings.TrimSpace(ctx.QueryParam("owner_id")),
		Limit:   100,
		Offset:  0,
	}

	if limitRaw := strings.TrimSpace(ctx.QueryParam("limit")); limitRaw != "" {
		limit, err := strconv.ParseInt(limitRaw, 10, 32)
		if err != nil {
			return nil, err
		}
		req.Limit = int32(limit)
	}
	if offsetRaw := strings.TrimSpace(ctx.QueryParam("offset")); offsetRaw != "" {
		offset, err := strconv.ParseInt(offsetRaw, 10, 32)
		if err != nil {
			return nil, err
		}
		req.Offset = int32(offset)
	}

	return req, nil
}

func (r *ListOrdersRequest) Validate() error {
	if r.Limit <= 0 || r.Limit > 500 {
		return errors.New("limit must be between 1 and 500")
	}
	if r.Offset < 0 {
		return errors.New("offset must be >= 0")
	}
	return nil
}

type OrderActionRequest struct {
	OrderID string `json:"-"`
	Action  string `json:"action"`
	// AmountCents nil requests a full refund; the distinction between
	// absent and zero matters downstream.
	AmountCents *int64 `json:"amount,omitempty"`
	Reason      string `json:"reason,omitempty"`
}

func NewOrderActionRequestFromContext(ctx echo.Context) (*OrderActionRequest, error) {
	var body OrderActionRequest
	if err := ctx.Bind(&body); err != nil {
		return nil, err
	}
	body.OrderID = strings.TrimSpace(ctx.Param("id"))
	body.Action = strings.TrimSpace(strings.ToLower(body.Action))
	body.Reason = strings.TrimSpace(body.Reason)
	return &body, nil
}

func (r *OrderActionRequest) Validate() error {
	if r.OrderID == "" {
		return errors.New("invalid order id")
	}
	if r.Action == "" {
		return errors.New("action is required")
	}
	if r.AmountCents != nil && *r.AmountCents <= 0 {
		return errors.New("amount must be > 0 when provided")
	}
	return nil
}

type Order struct {
	ID                  string            `json:"id"`
	ExternalPaymentID   string            `json:"externalPaymentId"`
	OwnerID             string            `json:"ownerId,omitempty"`
	AmountCents         int64             `json:"amountCents"`
	AmountRefundedCents int64             `json:"amountRefundedCents"`
	Currency            string            `json:"currency"`
	Status              string            `json:"status"`
	Metadata            map[string]string `json:"metadata"`
	CreatedAt           string            `json:"createdAt"`
	UpdatedAt           string            `json:"updatedAt"`
}

type OrderEnvelopeResponse struct {
	Order *Order `json:"order"`
}

type ListOrdersResponse struct {
	Orders []*Order `json:"orders"`
}

type Refund struct {
	ID          string `json:"id"`
	AmountCents int64  `json:"amountCents"`
	Status      string `json:"status"`
}

type RefundActionResponse struct {
	Refund    *Refund `json:"refund"`
	NewStatus string  `json:"newStatus"`
}
