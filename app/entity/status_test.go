package entity

import "testing"

func TestCanTransitionMatrix(t *testing.T) {
	allowed := map[OrderStatus][]OrderStatus{
		OrderStatusPending:           {OrderStatusFailed, OrderStatusCanceled, OrderStatusSucceeded, OrderStatusPartiallyRefunded, OrderStatusRefunded},
		OrderStatusFailed:            {OrderStatusSucceeded, OrderStatusPartiallyRefunded, OrderStatusRefunded},
		OrderStatusCanceled:          {OrderStatusSucceeded, OrderStatusPartiallyRefunded, OrderStatusRefunded},
		OrderStatusSucceeded:         {OrderStatusPartiallyRefunded, OrderStatusRefunded},
		OrderStatusPartiallyRefunded: {OrderStatusRefunded},
		OrderStatusRefunded:          {},
	}

	statuses := []OrderStatus{
		OrderStatusPending,
		OrderStatusFailed,
		OrderStatusCanceled,
		OrderStatusSucceeded,
		OrderStatusPartiallyRefunded,
		OrderStatusRefunded,
	}

	for _, current := range statuses {
		allowedSet := map[OrderStatus]bool{}
		for _, next := range allowed[current] {
			allowedSet[next] = true
		}
		for _, next := range statuses {
			got := CanTransition(current, next)
			if got != allowedSet[next] {
				t.Errorf("CanTransition(%s, %s) = %v, want %v", current, next, got, allowedSet[next])
			}
		}
	}
}

func TestCanTransitionUnknownStatus(t *testing.T) {
	if CanTransition("bogus", OrderStatusSucceeded) {
		t.Fatal("expected transition from unknown status to be rejected")
	}
	if CanTransition(OrderStatusPending, "bogus") {
		t.Fatal("expected transition to unknown status to be rejected")
	}
}

func TestNextStatusIsIdempotent(t *testing.T) {
	status := NextStatus(OrderStatusPending, OrderStatusSucceeded)
	if status != OrderStatusSucceeded {
		t.Fatalf("unexpected status: %s", status)
	}
	if NextStatus(status, OrderStatusSucceeded) != OrderStatusSucceeded {
		t.Fatal("re-applying the same event must be a no-op")
	}
}

func TestNextStatusNeverRegressesRefund(t *testing.T) {
	if NextStatus(OrderStatusRefunded, OrderStatusSucceeded) != OrderStatusRefunded {
		t.Fatal("a late succeeded event must not regress a refund")
	}
	if NextStatus(OrderStatusPartiallyRefunded, OrderStatusSucceeded) != OrderStatusPartiallyRefunded {
		t.Fatal("a late succeeded event must not regress a partial refund")
	}
	if NextStatus(OrderStatusRefunded, OrderStatusPartiallyRefunded) != OrderStatusRefunded {
		t.Fatal("a partial refund event must not regress a full refund")
	}
}

func TestOverridableBy(t *testing.T) {
	set := map[OrderStatus]bool{}
	for _, status := range OverridableBy(OrderStatusFailed) {
		set[status] = true
	}
	if len(set) != 1 || !set[OrderStatusPending] {
		t.Fatalf("failed should only overwrite pending, got %v", set)
	}

	set = map[OrderStatus]bool{}
	for _, status := range OverridableBy(OrderStatusRefunded) {
		set[status] = true
	}
	if set[OrderStatusRefunded] {
		t.Fatal("refunded must not overwrite itself")
	}
	if !set[OrderStatusSucceeded] || !set[OrderStatusPartiallyRefunded] {
		t.Fatalf("refunded should overwrite succeeded and partially_refunded, got %v", set)
	}

	if OverridableBy("bogus") != nil {
		t.Fatal("unknown status should have no overridable set")
	}
}

func TestRefundStatus(t *testing.T) {
	if got := RefundStatus(3000, 10000); got != OrderStatusPartiallyRefunded {
		t.Fatalf("partial refund: got %s", got)
	}
	if got := RefundStatus(10000, 10000); got != OrderStatusRefunded {
		t.Fatalf("full refund: got %s", got)
	}
	if got := RefundStatus(12000, 10000); got != OrderStatusRefunded {
		t.Fatalf("over-refund reported by gateway still counts as refunded: got %s", got)
	}
	if got := RefundStatus(0, 0); got != OrderStatusPartiallyRefunded {
		t.Fatalf("zero-amount order: got %s", got)
	}
}
