package entity

type OrderStatus string

const (
	OrderStatusPending           OrderStatus = "pending"
	OrderStatusSucceeded         OrderStatus = "succeeded"
	OrderStatusFailed            OrderStatus = "failed"
	OrderStatusCanceled          OrderStatus = "canceled"
	OrderStatusPartiallyRefunded OrderStatus = "partially_refunded"
	OrderStatusRefunded          OrderStatus = "refunded"
)

// statusRank encodes the precedence order used by every ledger writer.
// A transition is only permitted when it strictly increases the rank, so a
// late-arriving event can never regress an order to a weaker status no matter
// the delivery order. failed and canceled share a rank: neither overwrites
// the other, and both are only reachable from pending. succeeded outranks
// them because the gateway, not the ledger, decides whether a payment
// actually happened.
var statusRank = map[OrderStatus]int{
	OrderStatusPending:           0,
	OrderStatusFailed:            1,
	OrderStatusCanceled:          1,
	OrderStatusSucceeded:         2,
	OrderStatusPartiallyRefunded: 3,
	OrderStatusRefunded:          4,
}

func (s OrderStatus) Valid() bool {
	_, ok := statusRank[s]
	return ok
}

func (s OrderStatus) Refundable() bool {
	return s == OrderStatusSucceeded || s == OrderStatusPartiallyRefunded
}

// CanTransition reports whether next may overwrite current.
func CanTransition(current, next OrderStatus) bool {
	currentRank, ok := statusRank[current]
	if !ok {
		return false
	}
	nextRank, ok := statusRank[next]
	if !ok {
		return false
	}
	return nextRank > currentRank
}

// NextStatus resolves the status an order ends up in after an event carrying
// incoming arrives. Applying the same event twice is a no-op.
func NextStatus(current, incoming OrderStatus) OrderStatus {
	if CanTransition(current, incoming) {
		return incoming
	}
	return current
}

// OverridableBy lists every status that next is allowed to overwrite. The
// repository uses it to build the guard clause of conditional updates, so the
// precedence rule lives here and nowhere else.
func OverridableBy(next OrderStatus) []OrderStatus {
	nextRank, ok := statusRank[next]
	if !ok {
		return nil
	}
	overridable := make([]OrderStatus, 0, len(statusRank))
	for status, rank := range statusRank {
		if rank < nextRank {
			overridable = append(overridable, status)
		}
	}
	return overridable
}

// RefundStatus derives the post-refund status from the cumulative refunded
// amount. The refund orchestrator and the webhook processor both apply this
// rule, which is what lets their concurrent writes converge.
func RefundStatus(amountRefundedCents, amountCents int64) OrderStatus {
	if amountCents > 0 && amountRefundedCents >= amountCents {
		return OrderStatusRefunded
	}
	return OrderStatusPartiallyRefunded
}
