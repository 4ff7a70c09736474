package service

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/vibast-solutions/ms-go-orders/app/entity"
	"github.com/vibast-solutions/ms-go-orders/app/provider"
	"github.com/vibast-solutions/ms-go-orders/app/types"
	"github.com/vibast-solutions/ms-go-orders/config"
)

const defaultSessionTTL = 24 * time.Hour

type checkoutGateway interface {
	CreateCheckoutSession(ctx context.Context, input *provider.CreateSessionInput) (*provider.CreateSessionOutput, error)
}

// CheckoutService turns a validated cart into a hosted checkout session at
// the gateway. It deliberately writes nothing locally: the first webhook
// event creates the order row, so an abandoned checkout leaves no
// pending-forever orphan behind.
type CheckoutService struct {
	validator *CartValidator
	gateway   checkoutGateway
	ordersCfg config.OrdersConfig
}

func NewCheckoutService(validator *CartValidator, gateway checkoutGateway, ordersCfg config.OrdersConfig) *CheckoutService {
	return &CheckoutService{
		validator: validator,
		gateway:   gateway,
		ordersCfg: ordersCfg,
	}
}

func (s *CheckoutService) CreateSession(ctx context.Context, req *types.CheckoutRequest) (*types.CheckoutResponse, error) {
	lines, err := s.validator.Validate(ctx, req.Cart)
	if err != nil {
		return nil, err
	}

	metadata, err := buildCartMetadata(lines, req.OwnerID)
	if err != nil {
		return nil, err
	}

	lineItems := make([]provider.LineItem, 0, len(lines))
	for _, line := range lines {
		lineItems = append(lineItems, provider.LineItem{
			GatewayPriceID: line.GatewayPriceID,
			Name:           line.Name,
			Description:    line.Description,
			UnitPriceCents: line.UnitPriceCents,
			Currency:       line.Currency,
			Quantity:       line.Quantity,
		})
	}

	ttl := s.ordersCfg.CheckoutSessionTTL
	if ttl <= 0 {
		ttl = defaultSessionTTL
	}

	output, err := s.gateway.CreateCheckoutSession(ctx, &provider.CreateSessionInput{
		LineItems:     lineItems,
		Metadata:      metadata,
		CustomerEmail: req.OwnerEmail,
		SuccessURL:    s.resolveSuccessURL(req.SuccessURL),
		CancelURL:     s.resolveCancelURL(req.CancelURL),
		ExpiresAt:     time.Now().Add(ttl).Unix(),
	})
	if err != nil {
		return nil, err
	}

	return &types.CheckoutResponse{
		SessionID:   output.SessionID,
		RedirectURL: output.RedirectURL,
	}, nil
}

// buildCartMetadata freezes the priced cart into the opaque snapshot that
// rides on the payment intent. Invoicing reads this snapshot later instead
// of the live catalog, so price changes after purchase cannot rewrite
// history.
func buildCartMetadata(lines []entity.PricedLine, ownerID string) (map[string]string, error) {
	type snapshotLine struct {
		OfferingID string `json:"offeringId"`
		Name       string `json:"name"`
		Quantity   int64  `json:"quantity"`
		UnitPrice  int64  `json:"unitPrice"`
	}

	snapshot := make([]snapshotLine, 0, len(lines))
	for _, line := range lines {
		snapshot = append(snapshot, snapshotLine{
			OfferingID: line.OfferingID,
			Name:       line.Name,
			Quantity:   line.Quantity,
			UnitPrice:  line.UnitPriceCents,
		})
	}

	encoded, err := json.Marshal(snapshot)
	if err != nil {
		return nil, err
	}

	metadata := map[string]string{"cart": string(encoded)}
	if strings.TrimSpace(ownerID) != "" {
		metadata["userId"] = strings.TrimSpace(ownerID)
	}
	return metadata, nil
}

func (s *CheckoutService) resolveSuccessURL(requested string) string {
	if requested != "" {
		return requested
	}
	return strings.TrimRight(s.ordersCfg.AppBaseURL, "/") + "/cart/success?session_id={CHECKOUT_SESSION_ID}"
}

func (s *CheckoutService) resolveCancelURL(requested string) string {
	if requested != "" {
		return requested
	}
	return strings.TrimRight(s.ordersCfg.AppBaseURL, "/") + "/cart"
}
