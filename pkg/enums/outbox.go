package enums

import "fmt"

// OutboxAggregateType maps to the aggregate_type enum in Postgres.
type OutboxAggregateType string

const (
	AggregateOrder         OutboxAggregateType = "order"
	AggregateDeliveryToken OutboxAggregateType = "delivery_token"
	AggregateAssignment    OutboxAggregateType = "delivery_assignment"
	AggregateCourier       OutboxAggregateType = "courier"
	AggregateNotification  OutboxAggregateType = "notification"
)

var validAggregateTypes = []OutboxAggregateType{
	AggregateOrder,
	AggregateDeliveryToken,
	AggregateAssignment,
	AggregateCourier,
	AggregateNotification,
}

// IsValid reports whether the value matches the canonical aggregate_type enum.
func (a OutboxAggregateType) IsValid() bool {
	for _, candidate := range validAggregateTypes {
		if candidate == a {
			return true
		}
	}
	return false
}

// ParseOutboxAggregateType converts raw input into OutboxAggregateType.
func ParseOutboxAggregateType(value string) (OutboxAggregateType, error) {
	for _, candidate := range validAggregateTypes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid aggregate type %q", value)
}

// OutboxEventType maps to the event_type enum in Postgres.
type OutboxEventType string

const (
	EventOrderStateChanged     OutboxEventType = "order_state_changed"
	EventOrderCancelled        OutboxEventType = "order_cancelled"
	EventTokenIssued           OutboxEventType = "token_issued"
	EventTokenConsumed         OutboxEventType = "token_consumed"
	EventCashCollected         OutboxEventType = "cash_collected"
	EventAssignmentCreated     OutboxEventType = "assignment_created"
	EventAssignmentOffered     OutboxEventType = "assignment_offered"
	EventAssignmentAccepted    OutboxEventType = "assignment_accepted"
	EventAssignmentRejected    OutboxEventType = "assignment_rejected"
	EventAssignmentPickedUp    OutboxEventType = "assignment_picked_up"
	EventAssignmentCompleted   OutboxEventType = "assignment_completed"
	EventAssignmentCancelled   OutboxEventType = "assignment_cancelled"
	EventAssignmentExpired     OutboxEventType = "assignment_expired"
	EventCourierRated          OutboxEventType = "courier_rated"
	EventNotificationRequested OutboxEventType = "notification_requested"
)

var validOutboxEventTypes = []OutboxEventType{
	EventOrderStateChanged,
	EventOrderCancelled,
	EventTokenIssued,
	EventTokenConsumed,
	EventCashCollected,
	EventAssignmentCreated,
	EventAssignmentOffered,
	EventAssignmentAccepted,
	EventAssignmentRejected,
	EventAssignmentPickedUp,
	EventAssignmentCompleted,
	EventAssignmentCancelled,
	EventAssignmentExpired,
	EventCourierRated,
	EventNotificationRequested,
}

// IsValid reports whether the value matches the canonical event_type enum.
func (e OutboxEventType) IsValid() bool {
	for _, candidate := range validOutboxEventTypes {
		if candidate == e {
			return true
		}
	}
	return false
}

// ParseOutboxEventType converts raw input into OutboxEventType.
func ParseOutboxEventType(value string) (OutboxEventType, error) {
	for _, candidate := range validOutboxEventTypes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid event type %q", value)
}
