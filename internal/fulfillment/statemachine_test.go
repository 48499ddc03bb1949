package fulfillment

import (
	"testing"

	"github.com/kiramarket/kirama-backend/pkg/enums"
)

func TestCanTransition(t *testing.T) {
	cases := []struct {
		from, to enums.OrderStatus
		want     bool
	}{
		{enums.OrderStatusPending, enums.OrderStatusProcessing, true},
		{enums.OrderStatusPending, enums.OrderStatusCancelled, true},
		// Consuming a valid cash token settles the order wherever it stands.
		{enums.OrderStatusPending, enums.OrderStatusDelivered, true},
		{enums.OrderStatusPending, enums.OrderStatusShipped, false},
		{enums.OrderStatusProcessing, enums.OrderStatusShipped, true},
		{enums.OrderStatusProcessing, enums.OrderStatusDelivered, true},
		{enums.OrderStatusShipped, enums.OrderStatusOutForDelivery, true},
		{enums.OrderStatusShipped, enums.OrderStatusProcessing, true},
		{enums.OrderStatusOutForDelivery, enums.OrderStatusDelivered, true},
		{enums.OrderStatusOutForDelivery, enums.OrderStatusProcessing, true},
		{enums.OrderStatusDelivered, enums.OrderStatusCancelled, false},
		{enums.OrderStatusCancelled, enums.OrderStatusProcessing, false},
		{enums.OrderStatusDelivered, enums.OrderStatusProcessing, false},
	}
	for _, tc := range cases {
		if got := CanTransition(tc.from, tc.to); got != tc.want {
			t.Fatalf("CanTransition(%s, %s) = %v, want %v", tc.from, tc.to, got, tc.want)
		}
	}
}

func TestVendorAdvanceAllowed(t *testing.T) {
	if !vendorAdvanceAllowed(enums.OrderStatusProcessing) {
		t.Fatal("vendors must be able to start processing")
	}
	if !vendorAdvanceAllowed(enums.OrderStatusShipped) {
		t.Fatal("vendors must be able to mark shipped")
	}
	if vendorAdvanceAllowed(enums.OrderStatusDelivered) {
		t.Fatal("delivered is owned by the delivery flows")
	}
	if vendorAdvanceAllowed(enums.OrderStatusCancelled) {
		t.Fatal("cancel has its own operation")
	}
}
