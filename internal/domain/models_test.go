package domain

import "testing"

func TestOrderStatusValid(t *testing.T) {
	for _, st := range []OrderStatus{
		OrderStatusPending, OrderStatusConfirmed, OrderStatusInPreparation,
		OrderStatusShipped, OrderStatusDelivered, OrderStatusCancelled,
	} {
		if !st.Valid() {
			t.Errorf("%s must be valid", st)
		}
	}
	if OrderStatus("LOST").Valid() {
		t.Error("unknown status must be invalid")
	}
}

func TestOrderStatusTransitions(t *testing.T) {
	allowed := map[OrderStatus]map[OrderStatus]bool{
		OrderStatusPending:       {OrderStatusConfirmed: true, OrderStatusCancelled: true},
		OrderStatusConfirmed:     {OrderStatusInPreparation: true, OrderStatusCancelled: true},
		OrderStatusInPreparation: {OrderStatusShipped: true, OrderStatusCancelled: true},
		OrderStatusShipped:       {OrderStatusDelivered: true, OrderStatusCancelled: true},
		OrderStatusDelivered:     {},
		OrderStatusCancelled:     {},
	}
	all := []OrderStatus{
		OrderStatusPending, OrderStatusConfirmed, OrderStatusInPreparation,
		OrderStatusShipped, OrderStatusDelivered, OrderStatusCancelled,
	}
	for _, from := range all {
		for _, to := range all {
			got := from.CanTransitionTo(to)
			if got != allowed[from][to] {
				t.Errorf("%s -> %s: got %v, want %v", from, to, got, allowed[from][to])
			}
		}
	}
}
