package fulfillment

import "github.com/kiramarket/kirama-backend/pkg/enums"

// orderTransitions lists the legal next states per status. Delivered and
// cancelled are terminal. Moving back to processing happens when an active
// assignment is cancelled and the order returns to the vendor's queue.
// Delivered is reachable straight from pending or processing because a cash
// handoff can settle the order through its token without any courier flow.
var orderTransitions = map[enums.OrderStatus][]enums.OrderStatus{
	enums.OrderStatusPending: {
		enums.OrderStatusProcessing,
		enums.OrderStatusDelivered,
		enums.OrderStatusCancelled,
	},
	enums.OrderStatusProcessing: {
		enums.OrderStatusShipped,
		enums.OrderStatusDelivered,
		enums.OrderStatusCancelled,
	},
	enums.OrderStatusShipped: {
		enums.OrderStatusOutForDelivery,
		enums.OrderStatusDelivered,
		enums.OrderStatusProcessing,
		enums.OrderStatusCancelled,
	},
	enums.OrderStatusOutForDelivery: {
		enums.OrderStatusDelivered,
		enums.OrderStatusProcessing,
		enums.OrderStatusCancelled,
	},
}

// CanTransition reports whether an order may move from one status to another.
func CanTransition(from, to enums.OrderStatus) bool {
	for _, candidate := range orderTransitions[from] {
		if candidate == to {
			return true
		}
	}
	return false
}

// vendorAdvanceTargets are the statuses a vendor may set directly. Delivery
// statuses are owned by the dispatch and token flows.
func vendorAdvanceAllowed(to enums.OrderStatus) bool {
	return to == enums.OrderStatusProcessing || to == enums.OrderStatusShipped
}
