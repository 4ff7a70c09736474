package controller

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/sirupsen/logrus"
	"github.com/vibast-solutions/ms-go-orders/app/entity"
	"github.com/vibast-solutions/ms-go-orders/app/factory"
	"github.com/vibast-solutions/ms-go-orders/app/mapper"
	"github.com/vibast-solutions/ms-go-orders/app/provider"
	"github.com/vibast-solutions/ms-go-orders/app/repository"
	"github.com/vibast-solutions/ms-go-orders/app/service"
	"github.com/vibast-solutions/ms-go-orders/app/types"
)

const actionRefund = "refund"

type OrderController struct {
	checkoutService *service.CheckoutService
	webhookService  *service.WebhookService
	orderService    *service.OrderService
	refundService   *service.RefundService
	logger          logrus.FieldLogger
}

func NewOrderController(
	checkoutService *service.CheckoutService,
	webhookService *service.WebhookService,
	orderService *service.OrderService,
	refundService *service.RefundService,
) *OrderController {
	return &OrderController{
		checkoutService: checkoutService,
		webhookService:  webhookService,
		orderService:    orderService,
		refundService:   refundService,
		logger:          factory.NewModuleLogger("orders-controller"),
	}
}

func (c *OrderController) Health(ctx echo.Context) error {
	return ctx.JSON(http.StatusOK, &types.HealthResponse{Status: "ok"})
}

func (c *OrderController) CreateCheckout(ctx echo.Context) error {
	req, err := types.NewCheckoutRequestFromContext(ctx)
	if err != nil {
		return c.writeError(ctx, http.StatusBadRequest, "invalid request body")
	}
	if err := req.Validate(); err != nil {
		return c.writeError(ctx, http.StatusBadRequest, err.Error())
	}

	resp, err := c.checkoutService.CreateSession(ctx.Request().Context(), req)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrCartInvalid), errors.Is(err, service.ErrInvalidRequest):
			return c.writeError(ctx, http.StatusBadRequest, err.Error())
		case errors.Is(err, provider.ErrGatewayUnavailable), errors.Is(err, provider.ErrGatewayRejected):
			factory.LoggerWithContext(c.logger, ctx).WithError(err).Error("Checkout session creation failed at gateway")
			return c.writeError(ctx, http.StatusBadGateway, "payment gateway error")
		default:
			factory.LoggerWithContext(c.logger, ctx).WithError(err).Error("Create checkout failed")
			return c.writeError(ctx, http.StatusInternalServerError, "internal server error")
		}
	}

	return ctx.JSON(http.StatusCreated, resp)
}

// HandleStripeWebhook acknowledges with 200 only after the event has been
// durably applied; any persistence failure returns 5xx so the gateway
// redelivers.
func (c *OrderController) HandleStripeWebhook(ctx echo.Context) error {
	req, err := types.NewWebhookRequestFromContext(ctx)
	if err != nil {
		return c.writeError(ctx, http.StatusBadRequest, "invalid request body")
	}
	if err := req.Validate(); err != nil {
		return c.writeError(ctx, http.StatusBadRequest, err.Error())
	}

	if err := c.webhookService.ProcessEvent(ctx.Request().Context(), req.Payload, req.Signature); err != nil {
		switch {
		case errors.Is(err, service.ErrSignatureInvalid), errors.Is(err, service.ErrPayloadInvalid):
			return c.writeError(ctx, http.StatusBadRequest, err.Error())
		default:
			factory.LoggerWithContext(c.logger, ctx).WithError(err).Error("Webhook processing failed")
			return c.writeError(ctx, http.StatusInternalServerError, "internal server error")
		}
	}

	return ctx.JSON(http.StatusOK, &types.WebhookAckResponse{Received: true})
}

func (c *OrderController) GetOrder(ctx echo.Context) error {
	req, err := types.NewGetOrderRequestFromContext(ctx)
	if err != nil {
		return c.writeError(ctx, http.StatusBadRequest, "invalid request")
	}
	if err := req.Validate(); err != nil {
		return c.writeError(ctx, http.StatusBadRequest, err.Error())
	}

	order, err := c.orderService.Get(ctx.Request().Context(), req.ID)
	if err != nil {
		if errors.Is(err, service.ErrOrderNotFound) {
			return c.writeError(ctx, http.StatusNotFound, "order not found")
		}
		factory.LoggerWithContext(c.logger, ctx).WithError(err).Error("Get order failed")
		return c.writeError(ctx, http.StatusInternalServerError, "internal server error")
	}

	return ctx.JSON(http.StatusOK, &types.OrderEnvelopeResponse{Order: mapper.OrderToResponse(order)})
}

func (c *OrderController) ListOrders(ctx echo.Context) error {
	req, err := types.NewListOrdersRequestFromContext(ctx)
	if err != nil {
		return c.writeError(ctx, http.StatusBadRequest, "invalid request")
	}
	if err := req.Validate(); err != nil {
		return c.writeError(ctx, http.StatusBadRequest, err.Error())
	}
	if req.Status != "" && !entity.OrderStatus(req.Status).Valid() {
		return c.writeError(ctx, http.StatusBadRequest, "unknown status filter")
	}

	orders, err := c.orderService.List(ctx.Request().Context(), repository.OrderFilter{
		Status:  entity.OrderStatus(req.Status),
		OwnerID: req.OwnerID,
		Limit:   req.Limit,
		Offset:  req.Offset,
	})
	if err != nil {
		factory.LoggerWithContext(c.logger, ctx).WithError(err).Error("List orders failed")
		return c.writeError(ctx, http.StatusInternalServerError, "internal server error")
	}

	return ctx.JSON(http.StatusOK, &types.ListOrdersResponse{Orders: mapper.OrdersToResponse(orders)})
}

func (c *OrderController) OrderAction(ctx echo.Context) error {
	req, err := types.NewOrderActionRequestFromContext(ctx)
	if err != nil {
		return c.writeError(ctx, http.StatusBadRequest, "invalid request body")
	}
	if err := req.Validate(); err != nil {
		return c.writeError(ctx, http.StatusBadRequest, err.Error())
	}
	if req.Action != actionRefund {
		return c.writeError(ctx, http.StatusBadRequest, service.ErrActionUnsupported.Error())
	}

	resp, err := c.refundService.Refund(ctx.Request().Context(), req.OrderID, req.AmountCents, req.Reason)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrOrderNotFound):
			return c.writeError(ctx, http.StatusNotFound, "order not found")
		case errors.Is(err, service.ErrOrderNotRefundable):
			return c.writeError(ctx, http.StatusConflict, err.Error())
		case errors.Is(err, provider.ErrGatewayRejected):
			// Stripe rejects over-refunds and double refunds; the caller
			// sent a request the gateway will never accept.
			return c.writeError(ctx, http.StatusBadRequest, err.Error())
		case errors.Is(err, provider.ErrGatewayUnavailable):
			factory.LoggerWithContext(c.logger, ctx).WithError(err).Error("Refund failed at gateway")
			return c.writeError(ctx, http.StatusBadGateway, "payment gateway error")
		default:
			factory.LoggerWithContext(c.logger, ctx).WithError(err).Error("Order action failed")
			return c.writeError(ctx, http.StatusInternalServerError, "internal server error")
		}
	}

	return ctx.JSON(http.StatusOK, resp)
}

func (c *OrderController) writeError(ctx echo.Context, statusCode int, message string) error {
	return ctx.JSON(statusCode, &types.ErrorResponse{Error: message})
}
