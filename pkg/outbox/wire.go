package outbox

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"github.com/kiramarket/kirama-backend/pkg/enums"
)

// Message is the JSON body the publisher puts on redis channels. Consumers
// key idempotency off EventID and decode Data by EventType.
type Message struct {
	EventID       string                    `json:"eventId"`
	EventType     enums.OutboxEventType     `json:"eventType"`
	AggregateType enums.OutboxAggregateType `json:"aggregateType"`
	AggregateID   uuid.UUID                 `json:"aggregateId"`
	OccurredAt    time.Time                 `json:"occurredAt"`
	Actor         *ActorRef                 `json:"actor,omitempty"`
	Data          json.RawMessage           `json:"data"`
}
