package service

import (
	"context"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/vibast-solutions/ms-go-orders/app/entity"
	"github.com/vibast-solutions/ms-go-orders/app/factory"
	"github.com/vibast-solutions/ms-go-orders/app/provider"
	"github.com/vibast-solutions/ms-go-orders/app/types"
)

const defaultRefundReason = "requested_by_customer"

type refundGateway interface {
	CreateRefund(ctx context.Context, input *provider.RefundInput) (*provider.RefundOutput, error)
}

type refundOrderRepository interface {
	FindByID(ctx context.Context, id string) (*entity.Order, error)
	UpdateStatusIfPrecedes(ctx context.Context, externalPaymentID string, next entity.OrderStatus, amountRefundedCents *int64) (bool, error)
}

// RefundService issues admin-initiated refunds at the gateway and records
// the outcome locally. The local write races the charge.refunded webhook
// for the same refund; both derive the same target status from the same
// totals, and the precedence guard makes whoever lands second a no-op.
type RefundService struct {
	orders  refundOrderRepository
	events  orderEventRepository
	gateway refundGateway
	logger  logrus.FieldLogger
}

func NewRefundService(orders refundOrderRepository, events orderEventRepository, gateway refundGateway) *RefundService {
	return &RefundService{
		orders:  orders,
		events:  events,
		gateway: gateway,
		logger:  factory.NewModuleLogger("orders-refund"),
	}
}

// Refund requests a refund for the given order. A nil amount requests a
// full refund of the remaining balance; the amount field is then omitted
// from the gateway call entirely, which is not the same as sending zero.
func (s *RefundService) Refund(ctx context.Context, orderID string, amountCents *int64, reason string) (*types.RefundActionResponse, error) {
	order, err := s.orders.FindByID(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if order == nil {
		return nil, ErrOrderNotFound
	}
	if !order.Status.Refundable() {
		return nil, fmt.Errorf("%w: status is %s", ErrOrderNotRefundable, order.Status)
	}

	if reason == "" {
		reason = defaultRefundReason
	}

	output, err := s.gateway.CreateRefund(ctx, &provider.RefundInput{
		PaymentID:   order.ExternalPaymentID,
		AmountCents: amountCents,
		Reason:      reason,
		Metadata: map[string]string{
			"admin_refund": "true",
			"order_id":     order.ID,
		},
	})
	if err != nil {
		return nil, err
	}

	total := order.AmountRefundedCents + output.AmountCents
	newStatus := entity.RefundStatus(total, order.AmountCents)

	updated, err := s.orders.UpdateStatusIfPrecedes(ctx, order.ExternalPaymentID, newStatus, &total)
	if err != nil {
		return nil, err
	}
	if !updated {
		// The webhook for this refund already landed. The gateway refund
		// succeeded either way, so report the status it converged to.
		s.logger.WithField("order_id", order.ID).Info("Refund already reflected by webhook")
	}

	s.recordRefundEvent(ctx, order, newStatus, output.RefundID)

	return &types.RefundActionResponse{
		Refund: &types.Refund{
			ID:          output.RefundID,
			AmountCents: output.AmountCents,
			Status:      output.Status,
		},
		NewStatus: string(newStatus),
	}, nil
}

func (s *RefundService) recordRefundEvent(ctx context.Context, order *entity.Order, newStatus entity.OrderStatus, refundID string) {
	oldStatus := order.Status
	_ = s.events.Create(ctx, &entity.OrderEvent{
		OrderID:           &order.ID,
		ExternalPaymentID: order.ExternalPaymentID,
		EventType:         "refund_requested",
		OldStatus:         &oldStatus,
		NewStatus:         newStatus,
		GatewayEventID:    &refundID,
		CreatedAt:         time.Now().UTC(),
	})
}
