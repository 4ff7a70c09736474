package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/vibast-solutions/ms-go-orders/app/entity"
	"github.com/vibast-solutions/ms-go-orders/app/factory"
	"github.com/vibast-solutions/ms-go-orders/app/provider"
)

const (
	eventPaymentSucceeded = "payment.succeeded"
	eventPaymentFailed    = "payment.failed"
	eventPaymentCanceled  = "payment.canceled"
	eventChargeRefunded   = "charge.refunded"
)

type orderLedger interface {
	UpsertByExternalID(ctx context.Context, order *entity.Order) error
	CreateIfAbsent(ctx context.Context, order *entity.Order) error
	UpdateStatusIfPrecedes(ctx context.Context, externalPaymentID string, next entity.OrderStatus, amountRefundedCents *int64) (bool, error)
}

type orderEventRepository interface {
	Create(ctx context.Context, event *entity.OrderEvent) error
}

type webhookDeliveryRepository interface {
	Create(ctx context.Context, delivery *entity.WebhookDelivery) error
}

type webhookGateway interface {
	VerifyAndParseEvent(payload []byte, signature string) (*provider.WebhookEvent, error)
}

// WebhookService applies the gateway's event stream to the order ledger.
// Deliveries are at-least-once and unordered, so every write below is either
// a keyed upsert or a precedence-guarded update; replaying any event is a
// no-op. A processing failure must bubble up as an error so the gateway
// redelivers; acknowledging a lost event loses it permanently.
type WebhookService struct {
	orders     orderLedger
	events     orderEventRepository
	deliveries webhookDeliveryRepository
	gateway    webhookGateway
	logger     logrus.FieldLogger
}

func NewWebhookService(
	orders orderLedger,
	events orderEventRepository,
	deliveries webhookDeliveryRepository,
	gateway webhookGateway,
) *WebhookService {
	return &WebhookService{
		orders:     orders,
		events:     events,
		deliveries: deliveries,
		gateway:    gateway,
		logger:     factory.NewModuleLogger("orders-webhook"),
	}
}

func (s *WebhookService) ProcessEvent(ctx context.Context, payload []byte, signature string) error {
	event, err := s.gateway.VerifyAndParseEvent(payload, signature)
	if err != nil {
		s.persistRejectedDelivery(ctx, payload, signature, err.Error())
		// A body that fails to parse after its signature checked out came
		// from the gateway, not a forger.
		if errors.Is(err, provider.ErrEventMalformed) {
			s.logger.WithError(err).Warn("Rejected webhook delivery with malformed payload")
			return fmt.Errorf("%w: %v", ErrPayloadInvalid, err)
		}
		s.logger.WithError(err).Warn("Rejected webhook delivery, possible forgery attempt")
		return fmt.Errorf("%w: %v", ErrSignatureInvalid, err)
	}

	switch event.Type {
	case eventPaymentSucceeded, eventPaymentFailed:
		if event.PaymentID == "" {
			reason := event.Type + " event is missing a payment reference"
			s.persistDelivery(ctx, event, payload, signature, entity.WebhookDeliveryRejected, &reason)
			return fmt.Errorf("%w: %s", ErrPayloadInvalid, reason)
		}
		status := entity.OrderStatusSucceeded
		if event.Type == eventPaymentFailed {
			status = entity.OrderStatusFailed
		}
		err = s.applyPaymentEvent(ctx, event, status)
	case eventPaymentCanceled:
		err = s.applyCancellation(ctx, event)
	case eventChargeRefunded:
		err = s.applyRefund(ctx, event)
	default:
		// Unknown event types are acknowledged so the gateway does not
		// retry deliveries this service will never act on.
		s.logger.WithField("event_type", event.Type).Info("Ignoring unhandled gateway event")
		s.persistDelivery(ctx, event, payload, signature, entity.WebhookDeliveryIgnored, nil)
		return nil
	}
	if err != nil {
		return err
	}

	s.persistDelivery(ctx, event, payload, signature, entity.WebhookDeliveryProcessed, nil)
	return nil
}

// applyPaymentEvent upserts the order keyed on the external payment id. The
// row may not exist yet: the checkout path creates nothing, so the first
// webhook delivery is what materializes the order.
func (s *WebhookService) applyPaymentEvent(ctx context.Context, event *provider.WebhookEvent, status entity.OrderStatus) error {
	now := time.Now().UTC()
	order := &entity.Order{
		ID:                uuid.NewString(),
		ExternalPaymentID: event.PaymentID,
		OwnerID:           ownerFromMetadata(event.Metadata),
		AmountCents:       event.AmountCents,
		Currency:          event.Currency,
		Status:            status,
		Metadata:          cloneMetadata(event.Metadata),
		CreatedAt:         now,
		UpdatedAt:         now,
	}

	if err := s.orders.UpsertByExternalID(ctx, order); err != nil {
		return err
	}

	s.recordOrderEvent(ctx, event, status, now)
	return nil
}

// applyCancellation is an update, not an upsert: a canceled intent that
// never produced a row is an abandoned checkout, and materializing it now
// would create exactly the orphan rows the lazy-creation design avoids.
func (s *WebhookService) applyCancellation(ctx context.Context, event *provider.WebhookEvent) error {
	if event.PaymentID == "" {
		return nil
	}

	if _, err := s.orders.UpdateStatusIfPrecedes(ctx, event.PaymentID, entity.OrderStatusCanceled, nil); err != nil {
		return err
	}

	s.recordOrderEvent(ctx, event, entity.OrderStatusCanceled, time.Now().UTC())
	return nil
}

func (s *WebhookService) applyRefund(ctx context.Context, event *provider.WebhookEvent) error {
	if event.PaymentID == "" {
		// Charges without a payment reference cannot be correlated;
		// acknowledge rather than force pointless redelivery.
		s.logger.Warn("Refund event without payment reference, skipping")
		return nil
	}

	status := entity.RefundStatus(event.AmountRefundedCents, event.AmountCents)
	refunded := event.AmountRefundedCents
	updated, err := s.orders.UpdateStatusIfPrecedes(ctx, event.PaymentID, status, &refunded)
	if err != nil {
		return err
	}
	if !updated {
		// Either the row outranks this event or it does not exist yet: the
		// refund can arrive before the payment event that would materialize
		// the order. Create the row if missing, then re-apply the guarded
		// transition so a row created concurrently keeps its cart snapshot
		// and still lands on the right status.
		now := time.Now().UTC()
		order := &entity.Order{
			ID:                  uuid.NewString(),
			ExternalPaymentID:   event.PaymentID,
			AmountCents:         event.AmountCents,
			AmountRefundedCents: refunded,
			Currency:            event.Currency,
			Status:              status,
			Metadata:            map[string]string{},
			CreatedAt:           now,
			UpdatedAt:           now,
		}
		if err := s.orders.CreateIfAbsent(ctx, order); err != nil {
			return err
		}
		if _, err := s.orders.UpdateStatusIfPrecedes(ctx, event.PaymentID, status, &refunded); err != nil {
			return err
		}
	}

	s.recordOrderEvent(ctx, event, status, time.Now().UTC())
	return nil
}

func (s *WebhookService) recordOrderEvent(ctx context.Context, event *provider.WebhookEvent, newStatus entity.OrderStatus, now time.Time) {
	var gatewayEventID *string
	if event.GatewayEventID != "" {
		id := event.GatewayEventID
		gatewayEventID = &id
	}

	_ = s.events.Create(ctx, &entity.OrderEvent{
		ExternalPaymentID: event.PaymentID,
		EventType:         event.Type,
		NewStatus:         newStatus,
		GatewayEventID:    gatewayEventID,
		CreatedAt:         now,
	})
}

func (s *WebhookService) persistDelivery(ctx context.Context, event *provider.WebhookEvent, payload []byte, signature string, status int32, deliveryErr *string) {
	now := time.Now().UTC()
	eventType := ""
	if event != nil {
		eventType = event.Type
	}
	_ = s.deliveries.Create(ctx, &entity.WebhookDelivery{
		EventType:   eventType,
		Signature:   signature,
		PayloadJSON: string(payload),
		Status:      status,
		Error:       deliveryErr,
		CreatedAt:   now,
		UpdatedAt:   now,
	})
}

func (s *WebhookService) persistRejectedDelivery(ctx context.Context, payload []byte, signature string, reason string) {
	trimmed := truncate(reason, 1024)
	s.persistDelivery(ctx, nil, payload, signature, entity.WebhookDeliveryRejected, &trimmed)
}

func ownerFromMetadata(metadata map[string]string) *string {
	if owner := metadata["userId"]; owner != "" {
		return &owner
	}
	return nil
}

func cloneMetadata(src map[string]string) map[string]string {
	if len(src) == 0 {
		return map[string]string{}
	}
	dst := make(map[string]string, len(src))
	for k, v := range src {
		dst[k] = v
	}
	return dst
}

func truncate(value string, max int) string {
	if len(value) <= max {
		return value
	}
	return value[:max]
}
