package entities

import "time"

type OrderType string

const (
	OrderTypeNotification OrderType = "Notification"
	OrderTypeReminder     OrderType = "Reminder"
)

// DialogportenAssociation links an order to a dialog and optional
// transmission in the dialog service.
type DialogportenAssociation struct {
	DialogID       string
	TransmissionID string
}

// ReminderRequest is one follow-up attached to a chain request. Exactly one
// of DelayDays and RequestedSendTime is expected.
type ReminderRequest struct {
	SendersReference  string
	ConditionEndpoint string
	DelayDays         *int
	RequestedSendTime *time.Time
	Recipient         RecipientSpec
}

// ChainRequest is the fully populated intake input for one order chain.
type ChainRequest struct {
	Creator                 string
	IdempotencyID           string
	SendersReference        string
	RequestedSendTime       *time.Time
	ConditionEndpoint       string
	DialogportenAssociation *DialogportenAssociation
	Recipient               RecipientSpec
	Reminders               []ReminderRequest
}

// ChainIdentifiers are generated once per new chain.
type ChainIdentifiers struct {
	ChainID          string
	PrimaryOrderID   string
	ReminderOrderIDs []string
}

type Order struct {
	OrderID                 string
	ChainID                 string
	Creator                 string
	SendersReference        string
	Type                    OrderType
	Recipient               ResolvedRecipient
	RequestedSendTime       time.Time
	ConditionEndpoint       string
	DialogportenAssociation *DialogportenAssociation
	Status                  ProcessingLifecycle
	CreatedAt               time.Time
	LastUpdate              time.Time
	DispatchedAt            *time.Time
}

type OrderChain struct {
	ChainID       string
	Creator       string
	IdempotencyID string
	CreatedAt     time.Time
	Primary       Order
	Reminders     []Order
}

// Orders returns the primary order followed by reminders in request order.
func (c OrderChain) Orders() []Order {
	orders := make([]Order, 0, len(c.Reminders)+1)
	orders = append(orders, c.Primary)
	return append(orders, c.Reminders...)
}

func (c OrderChain) TrackingHandle() TrackingHandle {
	handle := TrackingHandle{
		ChainID: c.ChainID,
		Primary: Shipment{
			ShipmentID:       c.Primary.OrderID,
			SendersReference: c.Primary.SendersReference,
		},
		Reminders: make([]Shipment, 0, len(c.Reminders)),
	}
	for _, reminder := range c.Reminders {
		handle.Reminders = append(handle.Reminders, Shipment{
			ShipmentID:       reminder.OrderID,
			SendersReference: reminder.SendersReference,
		})
	}
	return handle
}

// Shipment is the externally tracked unit matching one order.
type Shipment struct {
	ShipmentID       string
	SendersReference string
}

type TrackingHandle struct {
	ChainID   string
	Primary   Shipment
	Reminders []Shipment
}

// Delivery is one destination of an order on one channel.
type Delivery struct {
	OrderID          string
	Channel          Channel
	Destination      string
	Status           ProcessingLifecycle
	GatewayReference string
	LastUpdate       time.Time
}

// OrderState is an order together with its known deliveries.
type OrderState struct {
	Order      Order
	Deliveries []Delivery
}

func (s OrderState) Delivery(channel Channel, destination string) (Delivery, int, bool) {
	for i, delivery := range s.Deliveries {
		if delivery.Channel == channel && delivery.Destination == destination {
			return delivery, i, true
		}
	}
	return Delivery{}, -1, false
}
