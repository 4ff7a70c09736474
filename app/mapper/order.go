package mapper

import (
	"time"

	"github.com/vibast-solutions/ms-go-orders/app/entity"
	"github.com/vibast-solutions/ms-go-orders/app/types"
)

func OrderToResponse(order *entity.Order) *types.Order {
	if order == nil {
		return nil
	}

	return &types.Order{
		ID:                  order.ID,
		ExternalPaymentID:   order.ExternalPaymentID,
		OwnerID:             derefString(order.OwnerID),
		AmountCents:         order.AmountCents,
		AmountRefundedCents: order.AmountRefundedCents,
		Currency:            order.Currency,
		Status:              string(order.Status),
		Metadata:            cloneMetadata(order.Metadata),
		CreatedAt:           order.CreatedAt.UTC().Format(time.RFC3339),
		UpdatedAt:           order.UpdatedAt.UTC().Format(time.RFC3339),
	}
}

func OrdersToResponse(orders []*entity.Order) []*types.Order {
	items := make([]*types.Order, 0, len(orders))
	for _, order := range orders {
		items = append(items, OrderToResponse(order))
	}
	return items
}

func derefString(value *string) string {
	if value == nil {
		return ""
	}
	return *value
}

func cloneMetadata(src map[string]string) map[string]string {
	dst := make(map[string]string, len(src))
	for k, v := range src {
		dst[k] = v
	}
	return dst
}
