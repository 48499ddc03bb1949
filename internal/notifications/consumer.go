package notifications

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/kiramarket/kirama-backend/pkg/db/models"
	"github.com/kiramarket/kirama-backend/pkg/enums"
	"github.com/kiramarket/kirama-backend/pkg/logger"
	"github.com/kiramarket/kirama-backend/pkg/outbox"
	"github.com/kiramarket/kirama-backend/pkg/outbox/registry"
	redispkg "github.com/kiramarket/kirama-backend/pkg/redis"
)

const consumerName = "notifications-consumer"

type repository interface {
	Create(ctx context.Context, notification *models.Notification) error
}

// assignmentSource resolves the vendor behind an assignment event whose
// payload only carries the courier side.
type assignmentSource interface {
	FindByID(ctx context.Context, id uuid.UUID) (*models.DeliveryAssignment, error)
}

type eventBus interface {
	Publish(ctx context.Context, channel string, payload any) error
	SetNX(ctx context.Context, key string, value any, ttl time.Duration) (bool, error)
	Del(ctx context.Context, keys ...string) error
	IdempotencyKey(scope, id string) string
	UserChannel(userID string) string
}

// Consumer turns published domain events into stored notifications and
// fans them out to per-recipient channels. Processing is at-least-once;
// a redis marker keyed by event id suppresses duplicates.
type Consumer struct {
	repo        repository
	assignments assignmentSource
	bus         eventBus
	dedupeTTL   time.Duration
	logg        *logger.Logger
}

// NewConsumer builds the notification fanout consumer.
func NewConsumer(repo repository, assignments assignmentSource, bus eventBus, dedupeTTL time.Duration, logg *logger.Logger) (*Consumer, error) {
	if repo == nil {
		return nil, fmt.Errorf("notifications repository required")
	}
	if assignments == nil {
		return nil, fmt.Errorf("assignments source required")
	}
	if bus == nil {
		return nil, fmt.Errorf("event bus required")
	}
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	if dedupeTTL <= 0 {
		dedupeTTL = 24 * time.Hour
	}
	return &Consumer{
		repo:        repo,
		assignments: assignments,
		bus:         bus,
		dedupeTTL:   dedupeTTL,
		logg:        logg,
	}, nil
}

// Run subscribes to every event stream and processes messages until the
// context is cancelled.
func (c *Consumer) Run(ctx context.Context, client *redispkg.Client) error {
	channels := []string{
		client.EventChannel(registry.StreamOrders),
		client.EventChannel(registry.StreamDispatch),
		client.EventChannel(registry.StreamNotifications),
	}
	sub, err := client.Subscribe(ctx, channels...)
	if err != nil {
		return fmt.Errorf("subscribe: %w", err)
	}
	defer sub.Close()

	c.logg.Info(ctx, "notification consumer started")
	messages := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case msg, ok := <-messages:
			if !ok {
				return fmt.Errorf("subscription channel closed")
			}
			if err := c.Handle(ctx, []byte(msg.Payload)); err != nil {
				c.logg.Error(ctx, "event handling failed", err)
			}
		}
	}
}

// Handle processes a single raw wire message.
func (c *Consumer) Handle(ctx context.Context, raw []byte) error {
	var msg outbox.Message
	if err := json.Unmarshal(raw, &msg); err != nil {
		// Malformed input never becomes processable; drop it.
		c.logg.Error(ctx, "failed to decode wire message", err)
		return nil
	}

	fields := map[string]any{
		"event_id":   msg.EventID,
		"event_type": msg.EventType,
	}
	logCtx := c.logg.WithFields(ctx, fields)

	key := c.bus.IdempotencyKey(consumerName, msg.EventID)
	fresh, err := c.bus.SetNX(ctx, key, time.Now().UTC().Format(time.RFC3339), c.dedupeTTL)
	if err != nil {
		return fmt.Errorf("idempotency mark: %w", err)
	}
	if !fresh {
		c.logg.Info(logCtx, "event already processed")
		return nil
	}

	if err := c.dispatch(logCtx, msg); err != nil {
		// Free the marker so a redelivery can retry.
		_ = c.bus.Del(ctx, key)
		return err
	}
	return nil
}

func (c *Consumer) dispatch(ctx context.Context, msg outbox.Message) error {
	switch msg.EventType {
	case enums.EventNotificationRequested:
		return c.onNotificationRequested(ctx, msg)
	case enums.EventAssignmentOffered:
		return c.onAssignmentOffered(ctx, msg)
	case enums.EventAssignmentAccepted:
		return c.onAssignmentAccepted(ctx, msg)
	case enums.EventAssignmentRejected:
		return c.onAssignmentRejected(ctx, msg)
	case enums.EventAssignmentPickedUp:
		return c.onAssignmentPickedUp(ctx, msg)
	case enums.EventAssignmentCompleted:
		return c.onAssignmentCompleted(ctx, msg)
	case enums.EventAssignmentExpired:
		return c.onAssignmentExpired(ctx, msg)
	case enums.EventAssignmentCancelled:
		return c.onAssignmentCancelled(ctx, msg)
	case enums.EventOrderStateChanged:
		return c.onOrderStateChanged(ctx, msg)
	case enums.EventOrderCancelled:
		return c.onOrderCancelled(ctx, msg)
	case enums.EventCashCollected:
		return c.onCashCollected(ctx, msg)
	default:
		c.logg.Info(ctx, "event type not handled")
		return nil
	}
}

func (c *Consumer) onNotificationRequested(ctx context.Context, msg outbox.Message) error {
	var payload payloadNotificationRequested
	if err := json.Unmarshal(msg.Data, &payload); err != nil {
		return fmt.Errorf("decode notification request: %w", err)
	}
	if payload.RecipientUserID == uuid.Nil {
		return fmt.Errorf("recipient missing")
	}
	notification := &models.Notification{
		RecipientUserID: payload.RecipientUserID,
		Type:            payload.Type,
		Title:           payload.Title,
		Message:         payload.Message,
	}
	if payload.Link != "" {
		notification.Link = stringPtr(payload.Link)
	}
	return c.deliver(ctx, notification)
}

func (c *Consumer) onAssignmentOffered(ctx context.Context, msg outbox.Message) error {
	var payload payloadAssignmentOffered
	if err := json.Unmarshal(msg.Data, &payload); err != nil {
		return fmt.Errorf("decode offer: %w", err)
	}
	link := fmt.Sprintf("/deliveries/offers/%s", payload.AssignmentID)
	for _, courierID := range payload.CourierIDs {
		notification := &models.Notification{
			RecipientUserID: courierID,
			Type:            enums.NotificationTypeDeliveryOffer,
			Title:           "New delivery offer",
			Message:         fmt.Sprintf("A delivery paying %s GNF is available.", payload.Commission),
			Link:            stringPtr(link),
		}
		if err := c.deliver(ctx, notification); err != nil {
			return err
		}
	}
	c.logg.Info(ctx, "couriers notified of offer")
	return nil
}

func (c *Consumer) onAssignmentAccepted(ctx context.Context, msg outbox.Message) error {
	var payload payloadAssignmentRef
	if err := json.Unmarshal(msg.Data, &payload); err != nil {
		return fmt.Errorf("decode acceptance: %w", err)
	}
	vendorID, err := c.vendorFor(ctx, payload.AssignmentID)
	if err != nil {
		return err
	}
	return c.deliver(ctx, &models.Notification{
		RecipientUserID: vendorID,
		Type:            enums.NotificationTypeDeliveryUpdate,
		Title:           "Courier assigned",
		Message:         "A courier accepted your delivery and is on the way to pick it up.",
		Link:            stringPtr(fmt.Sprintf("/orders/%s", payload.OrderID)),
	})
}

func (c *Consumer) onAssignmentRejected(ctx context.Context, msg outbox.Message) error {
	var payload payloadAssignmentRef
	if err := json.Unmarshal(msg.Data, &payload); err != nil {
		return fmt.Errorf("decode rejection: %w", err)
	}
	vendorID, err := c.vendorFor(ctx, payload.AssignmentID)
	if err != nil {
		return err
	}
	return c.deliver(ctx, &models.Notification{
		RecipientUserID: vendorID,
		Type:            enums.NotificationTypeDeliveryUpdate,
		Title:           "Courier declined the delivery",
		Message:         "The courier you chose declined the offer. It is now open to all available couriers.",
		Link:            stringPtr(fmt.Sprintf("/orders/%s", payload.OrderID)),
	})
}

func (c *Consumer) onAssignmentPickedUp(ctx context.Context, msg outbox.Message) error {
	var payload payloadAssignmentRef
	if err := json.Unmarshal(msg.Data, &payload); err != nil {
		return fmt.Errorf("decode pickup: %w", err)
	}
	vendorID, err := c.vendorFor(ctx, payload.AssignmentID)
	if err != nil {
		return err
	}
	return c.deliver(ctx, &models.Notification{
		RecipientUserID: vendorID,
		Type:            enums.NotificationTypeDeliveryUpdate,
		Title:           "Package picked up",
		Message:         "The courier collected the package and is on the way to the customer.",
		Link:            stringPtr(fmt.Sprintf("/orders/%s", payload.OrderID)),
	})
}

func (c *Consumer) onAssignmentCompleted(ctx context.Context, msg outbox.Message) error {
	var payload payloadAssignmentRef
	if err := json.Unmarshal(msg.Data, &payload); err != nil {
		return fmt.Errorf("decode completion: %w", err)
	}
	vendorID, err := c.vendorFor(ctx, payload.AssignmentID)
	if err != nil {
		return err
	}
	return c.deliver(ctx, &models.Notification{
		RecipientUserID: vendorID,
		Type:            enums.NotificationTypeDeliveryUpdate,
		Title:           "Delivery completed",
		Message:         "Your order was handed to the customer.",
		Link:            stringPtr(fmt.Sprintf("/orders/%s", payload.OrderID)),
	})
}

func (c *Consumer) onAssignmentExpired(ctx context.Context, msg outbox.Message) error {
	var payload payloadAssignmentRef
	if err := json.Unmarshal(msg.Data, &payload); err != nil {
		return fmt.Errorf("decode expiry: %w", err)
	}
	vendorID, err := c.vendorFor(ctx, payload.AssignmentID)
	if err != nil {
		return err
	}
	return c.deliver(ctx, &models.Notification{
		RecipientUserID: vendorID,
		Type:            enums.NotificationTypeDeliveryUpdate,
		Title:           "Delivery offer expired",
		Message:         "No courier took the offer in time. Dispatch the order again.",
		Link:            stringPtr(fmt.Sprintf("/orders/%s", payload.OrderID)),
	})
}

func (c *Consumer) onAssignmentCancelled(ctx context.Context, msg outbox.Message) error {
	var payload payloadAssignmentCancelled
	if err := json.Unmarshal(msg.Data, &payload); err != nil {
		return fmt.Errorf("decode cancellation: %w", err)
	}
	if payload.CourierID == nil {
		// Nobody was bound yet, there is no one to tell.
		return nil
	}
	return c.deliver(ctx, &models.Notification{
		RecipientUserID: *payload.CourierID,
		Type:            enums.NotificationTypeDeliveryUpdate,
		Title:           "Delivery cancelled",
		Message:         "The vendor withdrew the delivery you were assigned to.",
		Link:            stringPtr(fmt.Sprintf("/orders/%s", payload.OrderID)),
	})
}

func (c *Consumer) onOrderStateChanged(ctx context.Context, msg outbox.Message) error {
	var payload payloadOrderStateChanged
	if err := json.Unmarshal(msg.Data, &payload); err != nil {
		return fmt.Errorf("decode order change: %w", err)
	}
	return c.deliver(ctx, &models.Notification{
		RecipientUserID: payload.CustomerUserID,
		Type:            enums.NotificationTypeOrderUpdate,
		Title:           "Order update",
		Message:         fmt.Sprintf("Your order is now %s.", payload.To),
		Link:            stringPtr(fmt.Sprintf("/orders/%s", payload.OrderID)),
	})
}

func (c *Consumer) onOrderCancelled(ctx context.Context, msg outbox.Message) error {
	var payload payloadOrderCancelled
	if err := json.Unmarshal(msg.Data, &payload); err != nil {
		return fmt.Errorf("decode order cancellation: %w", err)
	}
	link := stringPtr(fmt.Sprintf("/orders/%s", payload.OrderID))
	for _, recipient := range []uuid.UUID{payload.CustomerUserID, payload.VendorUserID} {
		if recipient == uuid.Nil {
			continue
		}
		notification := &models.Notification{
			RecipientUserID: recipient,
			Type:            enums.NotificationTypeOrderUpdate,
			Title:           "Order cancelled",
			Message:         "The order was cancelled.",
			Link:            link,
		}
		if err := c.deliver(ctx, notification); err != nil {
			return err
		}
	}
	return nil
}

func (c *Consumer) onCashCollected(ctx context.Context, msg outbox.Message) error {
	var payload payloadCashCollected
	if err := json.Unmarshal(msg.Data, &payload); err != nil {
		return fmt.Errorf("decode cash collection: %w", err)
	}
	return c.deliver(ctx, &models.Notification{
		RecipientUserID: payload.VendorUserID,
		Type:            enums.NotificationTypePaymentConfirmed,
		Title:           "Cash payment confirmed",
		Message:         fmt.Sprintf("Cash payment of %s GNF was confirmed by both parties.", payload.Amount),
		Link:            stringPtr(fmt.Sprintf("/orders/%s", payload.OrderID)),
	})
}

// deliver stores the row and pushes it to the recipient's live channel. The
// push is best effort; the stored row is the source of truth.
func (c *Consumer) deliver(ctx context.Context, notification *models.Notification) error {
	if err := c.repo.Create(ctx, notification); err != nil {
		return fmt.Errorf("store notification: %w", err)
	}
	body, err := json.Marshal(notification)
	if err != nil {
		return nil
	}
	channel := c.bus.UserChannel(notification.RecipientUserID.String())
	if err := c.bus.Publish(ctx, channel, body); err != nil {
		c.logg.Error(ctx, "live push failed", err)
	}
	return nil
}

func (c *Consumer) vendorFor(ctx context.Context, assignmentID uuid.UUID) (uuid.UUID, error) {
	assignment, err := c.assignments.FindByID(ctx, assignmentID)
	if err != nil {
		return uuid.Nil, fmt.Errorf("load assignment %s: %w", assignmentID, err)
	}
	return assignment.VendorUserID, nil
}

func stringPtr(value string) *string {
	return &value
}

// Wire payload shapes, decoded loosely so unknown fields never break the
// consumer.
type payloadNotificationRequested struct {
	RecipientUserID uuid.UUID              `json:"recipient_user_id"`
	Type            enums.NotificationType `json:"type"`
	Title           string                 `json:"title"`
	Message         string                 `json:"message"`
	Link            string                 `json:"link,omitempty"`
}

type payloadAssignmentOffered struct {
	AssignmentID uuid.UUID   `json:"assignment_id"`
	OrderID      uuid.UUID   `json:"order_id"`
	CourierIDs   []uuid.UUID `json:"courier_ids"`
	Commission   string      `json:"commission"`
}

type payloadAssignmentRef struct {
	AssignmentID uuid.UUID `json:"assignment_id"`
	OrderID      uuid.UUID `json:"order_id"`
}

type payloadAssignmentCancelled struct {
	AssignmentID uuid.UUID  `json:"assignment_id"`
	OrderID      uuid.UUID  `json:"order_id"`
	CourierID    *uuid.UUID `json:"courier_id"`
}

type payloadOrderStateChanged struct {
	OrderID        uuid.UUID         `json:"order_id"`
	CustomerUserID uuid.UUID         `json:"customer_user_id"`
	To             enums.OrderStatus `json:"to"`
}

type payloadOrderCancelled struct {
	OrderID        uuid.UUID `json:"order_id"`
	CustomerUserID uuid.UUID `json:"customer_user_id"`
	VendorUserID   uuid.UUID `json:"vendor_user_id"`
}

type payloadCashCollected struct {
	OrderID      uuid.UUID `json:"order_id"`
	VendorUserID uuid.UUID `json:"vendor_user_id"`
	Amount       string    `json:"amount"`
}
