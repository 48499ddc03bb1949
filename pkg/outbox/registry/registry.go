package registry

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"

	"github.com/kiramarket/kirama-backend/pkg/db/models"
	"github.com/kiramarket/kirama-backend/pkg/enums"
	"github.com/kiramarket/kirama-backend/pkg/outbox"
	"github.com/kiramarket/kirama-backend/pkg/outbox/payloads"
)

// Stream names addressed by the publisher. pkg/redis maps them to namespaced
// pub/sub channels.
const (
	StreamOrders        = "orders"
	StreamDispatch      = "dispatch"
	StreamNotifications = "notifications"
)

// EventDescriptor links an event type to its aggregate/stream/payload schema.
type EventDescriptor struct {
	EventType      enums.OutboxEventType
	AggregateType  enums.OutboxAggregateType
	Stream         string
	PayloadFactory func() interface{}
}

// ResolvedEvent is the result of decoding an outbox row.
type ResolvedEvent struct {
	Descriptor EventDescriptor
	Envelope   outbox.PayloadEnvelope
	Payload    interface{}
}

// EventRegistry maps each supported event type to its descriptor.
type EventRegistry struct {
	entries map[enums.OutboxEventType]EventDescriptor
}

// NonRetryableError signals the dispatcher should stop retrying a row.
type NonRetryableError struct {
	Err error
}

// Error implements error.
func (e NonRetryableError) Error() string {
	if e.Err == nil {
		return "non-retryable error"
	}
	return e.Err.Error()
}

// Unwrap exposes the wrapped error.
func (e NonRetryableError) Unwrap() error {
	return e.Err
}

// NewNonRetryableError wraps an error to signal no retries.
func NewNonRetryableError(err error) NonRetryableError {
	return NonRetryableError{Err: err}
}

// NewEventRegistry builds the registry for every event the engine emits.
func NewEventRegistry() *EventRegistry {
	reg := &EventRegistry{entries: make(map[enums.OutboxEventType]EventDescriptor)}

	for _, desc := range []EventDescriptor{
		{
			EventType:      enums.EventOrderStateChanged,
			AggregateType:  enums.AggregateOrder,
			Stream:         StreamOrders,
			PayloadFactory: func() interface{} { return &payloads.OrderStateChangedEvent{} },
		},
		{
			EventType:      enums.EventOrderCancelled,
			AggregateType:  enums.AggregateOrder,
			Stream:         StreamOrders,
			PayloadFactory: func() interface{} { return &payloads.OrderCancelledEvent{} },
		},
		{
			EventType:      enums.EventTokenIssued,
			AggregateType:  enums.AggregateDeliveryToken,
			Stream:         StreamOrders,
			PayloadFactory: func() interface{} { return &payloads.TokenIssuedEvent{} },
		},
		{
			EventType:      enums.EventTokenConsumed,
			AggregateType:  enums.AggregateDeliveryToken,
			Stream:         StreamOrders,
			PayloadFactory: func() interface{} { return &payloads.TokenConsumedEvent{} },
		},
		{
			EventType:      enums.EventCashCollected,
			AggregateType:  enums.AggregateOrder,
			Stream:         StreamOrders,
			PayloadFactory: func() interface{} { return &payloads.CashCollectedEvent{} },
		},
	} {
		reg.register(desc)
	}

	for _, desc := range []EventDescriptor{
		{
			EventType:      enums.EventAssignmentCreated,
			AggregateType:  enums.AggregateAssignment,
			Stream:         StreamDispatch,
			PayloadFactory: func() interface{} { return &payloads.AssignmentCreatedEvent{} },
		},
		{
			EventType:      enums.EventAssignmentOffered,
			AggregateType:  enums.AggregateAssignment,
			Stream:         StreamDispatch,
			PayloadFactory: func() interface{} { return &payloads.AssignmentOfferedEvent{} },
		},
		{
			EventType:      enums.EventAssignmentAccepted,
			AggregateType:  enums.AggregateAssignment,
			Stream:         StreamDispatch,
			PayloadFactory: func() interface{} { return &payloads.AssignmentAcceptedEvent{} },
		},
		{
			EventType:      enums.EventAssignmentRejected,
			AggregateType:  enums.AggregateAssignment,
			Stream:         StreamDispatch,
			PayloadFactory: func() interface{} { return &payloads.AssignmentRejectedEvent{} },
		},
		{
			EventType:      enums.EventAssignmentPickedUp,
			AggregateType:  enums.AggregateAssignment,
			Stream:         StreamDispatch,
			PayloadFactory: func() interface{} { return &payloads.AssignmentPickedUpEvent{} },
		},
		{
			EventType:      enums.EventAssignmentCompleted,
			AggregateType:  enums.AggregateAssignment,
			Stream:         StreamDispatch,
			PayloadFactory: func() interface{} { return &payloads.AssignmentCompletedEvent{} },
		},
		{
			EventType:      enums.EventAssignmentCancelled,
			AggregateType:  enums.AggregateAssignment,
			Stream:         StreamDispatch,
			PayloadFactory: func() interface{} { return &payloads.AssignmentCancelledEvent{} },
		},
		{
			EventType:      enums.EventAssignmentExpired,
			AggregateType:  enums.AggregateAssignment,
			Stream:         StreamDispatch,
			PayloadFactory: func() interface{} { return &payloads.AssignmentExpiredEvent{} },
		},
		{
			EventType:      enums.EventCourierRated,
			AggregateType:  enums.AggregateCourier,
			Stream:         StreamDispatch,
			PayloadFactory: func() interface{} { return &payloads.CourierRatedEvent{} },
		},
	} {
		reg.register(desc)
	}

	reg.register(EventDescriptor{
		EventType:      enums.EventNotificationRequested,
		AggregateType:  enums.AggregateNotification,
		Stream:         StreamNotifications,
		PayloadFactory: func() interface{} { return &payloads.NotificationRequestedEvent{} },
	})

	return reg
}

func (r *EventRegistry) register(desc EventDescriptor) {
	if desc.PayloadFactory == nil {
		return
	}
	r.entries[desc.EventType] = desc
}

// Resolve validates the row and decodes its typed payload.
func (r *EventRegistry) Resolve(event models.OutboxEvent) (*ResolvedEvent, error) {
	desc, ok := r.entries[event.EventType]
	if !ok {
		return nil, NewNonRetryableError(fmt.Errorf("unsupported event type %s", event.EventType))
	}
	if desc.AggregateType != event.AggregateType {
		return nil, NewNonRetryableError(fmt.Errorf("aggregate mismatch: expected %s got %s", desc.AggregateType, event.AggregateType))
	}
	if event.AggregateID == uuid.Nil {
		return nil, NewNonRetryableError(fmt.Errorf("missing aggregate_id"))
	}

	var envelope outbox.PayloadEnvelope
	if err := json.Unmarshal(event.Payload, &envelope); err != nil {
		return nil, NewNonRetryableError(fmt.Errorf("decode envelope: %w", err))
	}

	trimmed := bytes.TrimSpace(envelope.Data)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return nil, NewNonRetryableError(fmt.Errorf("payload missing for %s", event.EventType))
	}

	payload := desc.PayloadFactory()
	if payload == nil {
		return nil, NewNonRetryableError(fmt.Errorf("payload factory not configured for %s", event.EventType))
	}
	if err := json.Unmarshal(envelope.Data, payload); err != nil {
		return nil, NewNonRetryableError(fmt.Errorf("decode %s payload: %w", event.EventType, err))
	}

	return &ResolvedEvent{
		Descriptor: desc,
		Envelope:   envelope,
		Payload:    payload,
	}, nil
}
