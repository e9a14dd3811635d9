package ports

import (
	"context"
	"time"

	"courier/contexts/notifications/orders-service/domain/entities"
	contractsv1 "courier/contracts/gen/events/v1"
)

// StateTransition mutates one locked order. Returning changed=false leaves
// the order untouched and appends nothing to the status feed.
type StateTransition func(state entities.OrderState) (next entities.OrderState, changed bool, err error)

// OrderRepository owns order persistence and the status feed write boundary.
// Every change committed through it appends exactly one status feed entry in
// the same transaction.
type OrderRepository interface {
	GetTrackingByIdempotency(ctx context.Context, creator string, idempotencyID string) (entities.TrackingHandle, bool, error)
	// AdmitChain must compare-and-insert on (creator, idempotency id) and
	// persist every order of a newly admitted chain atomically. When the key
	// is already bound the original handle is returned with created=false.
	AdmitChain(ctx context.Context, chain entities.OrderChain) (handle entities.TrackingHandle, created bool, err error)
	GetOrderState(ctx context.Context, creator string, orderID string) (entities.OrderState, error)
	// UpdateOrder locks the order owned by creator and applies transition.
	// An empty creator matches any owner and is reserved for workers.
	UpdateOrder(ctx context.Context, creator string, orderID string, transition StateTransition) (entities.OrderState, error)
	// ClaimDueOrders applies transition to up to limit registered orders whose
	// requested send time has passed, primary orders before their reminders.
	ClaimDueOrders(ctx context.Context, now time.Time, limit int, transition StateTransition) ([]entities.OrderState, error)
	ListUndispatched(ctx context.Context, limit int) ([]entities.OrderState, error)
	MarkDispatched(ctx context.Context, orderIDs []string, dispatchedAt time.Time) error
}

// StatusFeedRepository is the read side of the per-creator status feed.
type StatusFeedRepository interface {
	ReadStatusFeed(ctx context.Context, creator string, afterSequence int64, limit int) ([]entities.StatusFeedEntry, error)
}

// Clock allows deterministic testing of send time rules.
type Clock interface {
	Now() time.Time
}

// IDGenerator abstracts chain/order/event identifier generation.
type IDGenerator interface {
	NewID(ctx context.Context) (string, error)
}

// EventDedupStore provides idempotent processing guarantees for consumed events.
// A reservation is a lease until leaseUntil; only ConfirmEvent records the
// event as processed. ReserveEvent reports true for a confirmed event and
// ErrEventInFlight while another lease is live.
type EventDedupStore interface {
	ReserveEvent(ctx context.Context, eventID string, payloadHash string, leaseUntil time.Time) (bool, error)
	ConfirmEvent(ctx context.Context, eventID string, payloadHash string, expiresAt time.Time) error
	// ReleaseEvent drops a reservation so a redelivered event is processed again.
	ReleaseEvent(ctx context.Context, eventID string) error
}

// PublishResult partitions a batch by handoff outcome. Every input message
// lands in exactly one of the two slices.
type PublishResult struct {
	Published   []string
	Unpublished []string
}

// BatchPublisher hands serialized work units to the messaging transport with
// at-least-once semantics.
type BatchPublisher interface {
	Publish(ctx context.Context, topic string, messages []string) (PublishResult, error)
}

// EventEnvelope reuses the canonical cross-runtime envelope contract.
type EventEnvelope = contractsv1.Envelope

// EventSubscriber registers a topic consumer callback.
type EventSubscriber interface {
	Subscribe(
		ctx context.Context,
		topic string,
		consumerGroup string,
		handler func(context.Context, EventEnvelope) error,
	) error
}

// EmailWorkUnit is the payload handed to the email sender.
type EmailWorkUnit struct {
	OrderID            string `json:"order_id"`
	Creator            string `json:"creator"`
	ToAddress          string `json:"to_address"`
	FromAddress        string `json:"from_address,omitempty"`
	Subject            string `json:"subject"`
	Body               string `json:"body"`
	ContentType        string `json:"content_type"`
	SendingTimePolicy  string `json:"sending_time_policy"`
	ConditionEndpoint  string `json:"condition_endpoint,omitempty"`
	RequestedSendTime  string `json:"requested_send_time"`
	SendersReference   string `json:"senders_reference,omitempty"`
	DialogID           string `json:"dialog_id,omitempty"`
	TransmissionID     string `json:"transmission_id,omitempty"`
	NotificationOrigin string `json:"notification_origin"`
}

// SmsWorkUnit is the payload handed to the SMS sender.
type SmsWorkUnit struct {
	OrderID            string `json:"order_id"`
	Creator            string `json:"creator"`
	MobileNumber       string `json:"mobile_number"`
	Sender             string `json:"sender,omitempty"`
	Body               string `json:"body"`
	SendingTimePolicy  string `json:"sending_time_policy"`
	ConditionEndpoint  string `json:"condition_endpoint,omitempty"`
	RequestedSendTime  string `json:"requested_send_time"`
	SendersReference   string `json:"senders_reference,omitempty"`
	NotificationOrigin string `json:"notification_origin"`
}

// ContactLookupWorkUnit asks the contact-point pipeline to resolve person or
// organization addresses before channel sending.
type ContactLookupWorkUnit struct {
	OrderID                string                 `json:"order_id"`
	Creator                string                 `json:"creator"`
	RecipientType          string                 `json:"recipient_type"`
	NationalIdentityNumber string                 `json:"national_identity_number,omitempty"`
	OrgNumber              string                 `json:"org_number,omitempty"`
	ResourceID             string                 `json:"resource_id,omitempty"`
	ChannelScheme          string                 `json:"channel_scheme"`
	IgnoreReservation      bool                   `json:"ignore_reservation"`
	ConditionEndpoint      string                 `json:"condition_endpoint,omitempty"`
	RequestedSendTime      string                 `json:"requested_send_time"`
	SendersReference       string                 `json:"senders_reference,omitempty"`
	Email                  *EmailWorkUnitTemplate `json:"email,omitempty"`
	Sms                    *SmsWorkUnitTemplate   `json:"sms,omitempty"`
}

type EmailWorkUnitTemplate struct {
	FromAddress       string `json:"from_address,omitempty"`
	Subject           string `json:"subject"`
	Body              string `json:"body"`
	ContentType       string `json:"content_type"`
	SendingTimePolicy string `json:"sending_time_policy"`
}

type SmsWorkUnitTemplate struct {
	Sender            string `json:"sender,omitempty"`
	Body              string `json:"body"`
	SendingTimePolicy string `json:"sending_time_policy"`
}

// DeliveryResultPayload is the inbound sender callback carried in an envelope.
type DeliveryResultPayload struct {
	OrderID          string `json:"order_id"`
	NotificationID   string `json:"notification_id"`
	Destination      string `json:"destination"`
	GatewayReference string `json:"gateway_reference"`
	Status           string `json:"status"`
}
