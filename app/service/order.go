package service

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/vibast-solutions/ms-go-orders/app/entity"
	"github.com/vibast-solutions/ms-go-orders/app/factory"
	"github.com/vibast-solutions/ms-go-orders/app/repository"
	"github.com/vibast-solutions/ms-go-orders/config"
)

type orderQueryRepository interface {
	FindByID(ctx context.Context, id string) (*entity.Order, error)
	List(ctx context.Context, filter repository.OrderFilter) ([]*entity.Order, error)
	ListStalePending(ctx context.Context, before time.Time, limit int32) ([]*entity.Order, error)
	UpdateStatusIfPrecedes(ctx context.Context, externalPaymentID string, next entity.OrderStatus, amountRefundedCents *int64) (bool, error)
}

type paymentStatusGateway interface {
	GetPaymentStatus(ctx context.Context, paymentID string) (string, error)
}

type OrderService struct {
	orders    orderQueryRepository
	events    orderEventRepository
	gateway   paymentStatusGateway
	ordersCfg config.OrdersConfig
	logger    logrus.FieldLogger
}

func NewOrderService(orders orderQueryRepository, events orderEventRepository, gateway paymentStatusGateway, ordersCfg config.OrdersConfig) *OrderService {
	return &OrderService{
		orders:    orders,
		events:    events,
		gateway:   gateway,
		ordersCfg: ordersCfg,
		logger:    factory.NewModuleLogger("orders"),
	}
}

func (s *OrderService) Get(ctx context.Context, id string) (*entity.Order, error) {
	order, err := s.orders.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if order == nil {
		return nil, ErrOrderNotFound
	}
	return order, nil
}

func (s *OrderService) List(ctx context.Context, filter repository.OrderFilter) ([]*entity.Order, error) {
	return s.orders.List(ctx, filter)
}

// RunReconcileBatch sweeps orders stuck in pending and asks the gateway for
// their real outcome. A webhook can still land mid-sweep, so every write
// goes through the same guarded transition the webhook path uses; the
// sweep can only ever catch the ledger up, never rewind it.
func (s *OrderService) RunReconcileBatch(ctx context.Context) error {
	staleBefore := time.Now().UTC().Add(-s.ordersCfg.ReconcileStaleAfter)
	stale, err := s.orders.ListStalePending(ctx, staleBefore, s.ordersCfg.JobBatchSize)
	if err != nil {
		return err
	}

	var firstErr error
	for _, order := range stale {
		if err := s.reconcileOrder(ctx, order); err != nil {
			s.logger.WithError(err).WithField("order_id", order.ID).Error("Failed to reconcile order")
			if firstErr == nil {
				firstErr = err
			}
		}
	}
	return firstErr
}

func (s *OrderService) reconcileOrder(ctx context.Context, order *entity.Order) error {
	gatewayStatus, err := s.gateway.GetPaymentStatus(ctx, order.ExternalPaymentID)
	if err != nil {
		return err
	}

	var next entity.OrderStatus
	switch gatewayStatus {
	case "succeeded":
		next = entity.OrderStatusSucceeded
	case "canceled":
		next = entity.OrderStatusCanceled
	default:
		// Still in flight at the gateway; leave the row for a later sweep.
		return nil
	}

	updated, err := s.orders.UpdateStatusIfPrecedes(ctx, order.ExternalPaymentID, next, nil)
	if err != nil {
		return err
	}
	if !updated {
		return nil
	}

	s.logger.WithFields(logrus.Fields{
		"order_id": order.ID,
		"status":   next,
	}).Info("Reconciled stale pending order")

	oldStatus := order.Status
	_ = s.events.Create(ctx, &entity.OrderEvent{
		OrderID:           &order.ID,
		ExternalPaymentID: order.ExternalPaymentID,
		EventType:         "payment_reconciled",
		OldStatus:         &oldStatus,
		NewStatus:         next,
		CreatedAt:         time.Now().UTC(),
	})
	return nil
}
