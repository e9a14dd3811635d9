package entities

import (
	"sort"
	"time"
)

// StatusFeedEntry is one immutable, per-creator sequenced transition record.
type StatusFeedEntry struct {
	SequenceNumber int64
	Creator        string
	OrderID        string
	Snapshot       OrderStatusSnapshot
	CreatedAt      time.Time
}

type OrderStatusSnapshot struct {
	ShipmentID       string                    `json:"shipmentId"`
	SendersReference string                    `json:"sendersReference,omitempty"`
	ChainID          string                    `json:"orderChainId"`
	Type             OrderType                 `json:"type"`
	Status           StatusInfo                `json:"status"`
	Recipients       []RecipientDeliveryStatus `json:"recipients"`
	Summary          map[string]int            `json:"summary,omitempty"`
}

type StatusInfo struct {
	Status      ProcessingLifecycle `json:"status"`
	Description string              `json:"description"`
	LastUpdate  time.Time           `json:"lastUpdate"`
}

type RecipientDeliveryStatus struct {
	Destination string              `json:"destination"`
	Channel     Channel             `json:"type"`
	Status      ProcessingLifecycle `json:"status"`
	Description string              `json:"description"`
	LastUpdate  time.Time           `json:"lastUpdate"`
}

// NewOrderStatusSnapshot captures the current status of one order.
func NewOrderStatusSnapshot(state OrderState) OrderStatusSnapshot {
	order := state.Order
	snapshot := OrderStatusSnapshot{
		ShipmentID:       order.OrderID,
		SendersReference: order.SendersReference,
		ChainID:          order.ChainID,
		Type:             order.Type,
		Status: StatusInfo{
			Status:      order.Status,
			Description: order.Status.Description(),
			LastUpdate:  order.LastUpdate.UTC(),
		},
		Recipients: make([]RecipientDeliveryStatus, 0, len(state.Deliveries)),
	}

	deliveries := append([]Delivery(nil), state.Deliveries...)
	sort.SliceStable(deliveries, func(i, j int) bool {
		if deliveries[i].Channel == deliveries[j].Channel {
			return deliveries[i].Destination < deliveries[j].Destination
		}
		return deliveries[i].Channel < deliveries[j].Channel
	})
	for _, delivery := range deliveries {
		snapshot.Recipients = append(snapshot.Recipients, RecipientDeliveryStatus{
			Destination: delivery.Destination,
			Channel:     delivery.Channel,
			Status:      delivery.Status,
			Description: delivery.Status.Description(),
			LastUpdate:  delivery.LastUpdate.UTC(),
		})
		if snapshot.Summary == nil {
			snapshot.Summary = make(map[string]int)
		}
		snapshot.Summary[string(delivery.Status)]++
	}
	return snapshot
}
