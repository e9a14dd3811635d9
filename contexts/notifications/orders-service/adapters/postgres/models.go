package postgresadapter

import (
	"encoding/json"
	"time"

	"courier/contexts/notifications/orders-service/domain/entities"

	"gorm.io/datatypes"
)

type orderChainModel struct {
	ChainID       string    `gorm:"column:chain_id;primaryKey"`
	Creator       string    `gorm:"column:creator;not null;uniqueIndex:idx_order_chains_creator_idempotency"`
	IdempotencyID string    `gorm:"column:idempotency_id;not null;uniqueIndex:idx_order_chains_creator_idempotency"`
	CreatedAt     time.Time `gorm:"column:created_at;not null"`
}

func (orderChainModel) TableName() string {
	return "order_chains"
}

type orderModel struct {
	OrderID           string         `gorm:"column:order_id;primaryKey"`
	ChainID           string         `gorm:"column:chain_id;not null;index"`
	ChainPosition     int            `gorm:"column:chain_position;not null"`
	Creator           string         `gorm:"column:creator;not null;index"`
	Type              string         `gorm:"column:type;not null"`
	SendersReference  string         `gorm:"column:senders_reference"`
	Recipient         datatypes.JSON `gorm:"column:recipient;type:jsonb;not null"`
	RequestedSendTime time.Time      `gorm:"column:requested_send_time;not null;index:idx_orders_due,priority:2"`
	ConditionEndpoint string         `gorm:"column:condition_endpoint"`
	DialogID          string         `gorm:"column:dialog_id"`
	TransmissionID    string         `gorm:"column:transmission_id"`
	Status            string         `gorm:"column:status;not null;index:idx_orders_due,priority:1"`
	CreatedAt         time.Time      `gorm:"column:created_at;not null"`
	LastUpdate        time.Time      `gorm:"column:last_update;not null"`
	DispatchedAt      *time.Time     `gorm:"column:dispatched_at"`
}

func (orderModel) TableName() string {
	return "orders"
}

type deliveryModel struct {
	OrderID          string    `gorm:"column:order_id;primaryKey"`
	Channel          string    `gorm:"column:channel;primaryKey"`
	Destination      string    `gorm:"column:destination;primaryKey"`
	Status           string    `gorm:"column:status;not null"`
	GatewayReference string    `gorm:"column:gateway_reference"`
	LastUpdate       time.Time `gorm:"column:last_update;not null"`
}

func (deliveryModel) TableName() string {
	return "order_deliveries"
}

type statusFeedModel struct {
	Creator        string         `gorm:"column:creator;primaryKey"`
	SequenceNumber int64          `gorm:"column:sequence_number;primaryKey;autoIncrement:false"`
	OrderID        string         `gorm:"column:order_id;not null"`
	Snapshot       datatypes.JSON `gorm:"column:snapshot;type:jsonb;not null"`
	CreatedAt      time.Time      `gorm:"column:created_at;not null"`
}

func (statusFeedModel) TableName() string {
	return "status_feed"
}

type statusFeedSequenceModel struct {
	Creator      string `gorm:"column:creator;primaryKey"`
	LastSequence int64  `gorm:"column:last_sequence;not null"`
}

func (statusFeedSequenceModel) TableName() string {
	return "status_feed_sequences"
}

func orderModelFromEntity(order entities.Order, position int) (orderModel, error) {
	recipient, err := encodeRecipient(order.Recipient)
	if err != nil {
		return orderModel{}, err
	}
	row := orderModel{
		OrderID:           order.OrderID,
		ChainID:           order.ChainID,
		ChainPosition:     position,
		Creator:           order.Creator,
		Type:              string(order.Type),
		SendersReference:  order.SendersReference,
		Recipient:         recipient,
		RequestedSendTime: order.RequestedSendTime.UTC(),
		ConditionEndpoint: order.ConditionEndpoint,
		Status:            string(order.Status),
		CreatedAt:         order.CreatedAt.UTC(),
		LastUpdate:        order.LastUpdate.UTC(),
		DispatchedAt:      utcPtr(order.DispatchedAt),
	}
	if order.DialogportenAssociation != nil {
		row.DialogID = order.DialogportenAssociation.DialogID
		row.TransmissionID = order.DialogportenAssociation.TransmissionID
	}
	return row, nil
}

func (m orderModel) toEntity() (entities.Order, error) {
	recipient, err := decodeRecipient(m.Recipient)
	if err != nil {
		return entities.Order{}, err
	}
	order := entities.Order{
		OrderID:           m.OrderID,
		ChainID:           m.ChainID,
		Creator:           m.Creator,
		SendersReference:  m.SendersReference,
		Type:              entities.OrderType(m.Type),
		Recipient:         recipient,
		RequestedSendTime: m.RequestedSendTime.UTC(),
		ConditionEndpoint: m.ConditionEndpoint,
		Status:            entities.ProcessingLifecycle(m.Status),
		CreatedAt:         m.CreatedAt.UTC(),
		LastUpdate:        m.LastUpdate.UTC(),
		DispatchedAt:      utcPtr(m.DispatchedAt),
	}
	if m.DialogID != "" {
		order.DialogportenAssociation = &entities.DialogportenAssociation{
			DialogID:       m.DialogID,
			TransmissionID: m.TransmissionID,
		}
	}
	return order, nil
}

func deliveryModelFromEntity(delivery entities.Delivery) deliveryModel {
	return deliveryModel{
		OrderID:          delivery.OrderID,
		Channel:          string(delivery.Channel),
		Destination:      delivery.Destination,
		Status:           string(delivery.Status),
		GatewayReference: delivery.GatewayReference,
		LastUpdate:       delivery.LastUpdate.UTC(),
	}
}

func (m deliveryModel) toEntity() entities.Delivery {
	return entities.Delivery{
		OrderID:          m.OrderID,
		Channel:          entities.Channel(m.Channel),
		Destination:      m.Destination,
		Status:           entities.ProcessingLifecycle(m.Status),
		GatewayReference: m.GatewayReference,
		LastUpdate:       m.LastUpdate.UTC(),
	}
}

func (m statusFeedModel) toEntity() (entities.StatusFeedEntry, error) {
	var snapshot entities.OrderStatusSnapshot
	if err := json.Unmarshal(m.Snapshot, &snapshot); err != nil {
		return entities.StatusFeedEntry{}, err
	}
	return entities.StatusFeedEntry{
		SequenceNumber: m.SequenceNumber,
		Creator:        m.Creator,
		OrderID:        m.OrderID,
		Snapshot:       snapshot,
		CreatedAt:      m.CreatedAt.UTC(),
	}, nil
}

func utcPtr(value *time.Time) *time.Time {
	if value == nil {
		return nil
	}
	utc := value.UTC()
	return &utc
}
