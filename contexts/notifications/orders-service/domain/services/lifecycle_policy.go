package services

import (
	"fmt"
	"time"

	"courier/contexts/notifications/orders-service/domain/entities"
	domainerrors "courier/contexts/notifications/orders-service/domain/errors"
)

var orderTransitions = map[entities.ProcessingLifecycle][]entities.ProcessingLifecycle{
	entities.OrderRegistered: {entities.OrderProcessing, entities.OrderCancelled},
	entities.OrderProcessing: {entities.OrderCompleted, entities.OrderSendConditionNotMet},
}

// ValidateOrderTransition enforces
// Registered -> Processing -> {Completed | SendConditionNotMet} and
// Registered -> Cancelled.
func ValidateOrderTransition(from entities.ProcessingLifecycle, to entities.ProcessingLifecycle) error {
	for _, allowed := range orderTransitions[from] {
		if allowed == to {
			return nil
		}
	}
	return fmt.Errorf("%w: %s -> %s", domainerrors.ErrInvalidStatusTransition, from, to)
}

// CancelOrder is allowed only while the order is still registered.
func CancelOrder(state entities.OrderState, now time.Time) (entities.OrderState, error) {
	if state.Order.Status != entities.OrderRegistered {
		return state, domainerrors.ErrCancellationProhibited
	}
	state.Order.Status = entities.OrderCancelled
	state.Order.LastUpdate = now.UTC()
	return state, nil
}

// StartProcessing moves a due order to processing and seeds the deliveries
// that are known from the request itself.
func StartProcessing(state entities.OrderState, now time.Time) (entities.OrderState, error) {
	if err := ValidateOrderTransition(state.Order.Status, entities.OrderProcessing); err != nil {
		return state, err
	}
	state.Order.Status = entities.OrderProcessing
	state.Order.LastUpdate = now.UTC()
	if len(state.Deliveries) == 0 {
		state.Deliveries = PlanDeliveries(state.Order, now)
	}
	return state, nil
}

// PlanDeliveries lists the direct destinations of an order. Person and
// organization recipients resolve their destinations downstream, so they
// start with none. Preferred schemes only exist on lookup recipients.
func PlanDeliveries(order entities.Order, now time.Time) []entities.Delivery {
	now = now.UTC()
	newDelivery := func(channel entities.Channel, destination string, status entities.ProcessingLifecycle) entities.Delivery {
		return entities.Delivery{
			OrderID:     order.OrderID,
			Channel:     channel,
			Destination: destination,
			Status:      status,
			LastUpdate:  now,
		}
	}

	switch r := order.Recipient.Recipient.(type) {
	case entities.RecipientEmail:
		return []entities.Delivery{newDelivery(entities.ChannelEmail, r.EmailAddress, entities.EmailNew)}
	case entities.RecipientSms:
		return []entities.Delivery{newDelivery(entities.ChannelSms, r.PhoneNumber, entities.SmsNew)}
	case entities.RecipientEmailAndSms:
		return []entities.Delivery{
			newDelivery(entities.ChannelEmail, r.EmailAddress, entities.EmailNew),
			newDelivery(entities.ChannelSms, r.PhoneNumber, entities.SmsNew),
		}
	default:
		return nil
	}
}

// DeliveryResult is one sender outcome for one destination.
type DeliveryResult struct {
	Channel          entities.Channel
	Destination      string
	Status           entities.ProcessingLifecycle
	GatewayReference string
}

// ApplyDeliveryResult records a sender outcome on a processing or completed
// order. It reports false when the result changes nothing, for example a
// late non-terminal update arriving after a terminal one. A directly
// addressed order completes once every delivery is terminal; lookup
// recipients complete through the order-level outcome instead, since their
// destinations are only known downstream.
func ApplyDeliveryResult(state entities.OrderState, result DeliveryResult, now time.Time) (entities.OrderState, bool, error) {
	channel, ok := result.Status.Channel()
	if !ok || result.Status.IsOrderLevel() {
		return state, false, fmt.Errorf("%w: %s is not a delivery status", domainerrors.ErrMalformedDeliveryResult, result.Status)
	}
	if result.Channel != "" && result.Channel != channel {
		return state, false, fmt.Errorf("%w: status %s does not belong to channel %s", domainerrors.ErrMalformedDeliveryResult, result.Status, result.Channel)
	}
	if result.Destination == "" {
		return state, false, fmt.Errorf("%w: destination is required", domainerrors.ErrMalformedDeliveryResult)
	}
	if state.Order.Status != entities.OrderProcessing && state.Order.Status != entities.OrderCompleted {
		return state, false, fmt.Errorf("%w: order is %s", domainerrors.ErrInvalidStatusTransition, state.Order.Status)
	}

	now = now.UTC()
	deliveries := append([]entities.Delivery(nil), state.Deliveries...)
	existing, index, found := state.Delivery(channel, result.Destination)
	if found {
		if existing.Status == result.Status {
			return state, false, nil
		}
		if existing.Status.IsTerminal() {
			return state, false, nil
		}
		existing.Status = result.Status
		existing.LastUpdate = now
		if result.GatewayReference != "" {
			existing.GatewayReference = result.GatewayReference
		}
		deliveries[index] = existing
	} else {
		deliveries = append(deliveries, entities.Delivery{
			OrderID:          state.Order.OrderID,
			Channel:          channel,
			Destination:      result.Destination,
			Status:           result.Status,
			GatewayReference: result.GatewayReference,
			LastUpdate:       now,
		})
	}

	state.Deliveries = deliveries
	state.Order.LastUpdate = now
	if state.Order.Status == entities.OrderProcessing &&
		!state.Order.Recipient.RequiresLookup &&
		allDeliveriesTerminal(deliveries) {
		state.Order.Status = entities.OrderCompleted
	}
	return state, true, nil
}

// ApplyOrderOutcome records an order-level outcome reported by the
// processing pipeline. Repeating the current status is a no-op.
func ApplyOrderOutcome(state entities.OrderState, status entities.ProcessingLifecycle, now time.Time) (entities.OrderState, bool, error) {
	if status != entities.OrderCompleted && status != entities.OrderSendConditionNotMet {
		return state, false, fmt.Errorf("%w: %s is not an order outcome", domainerrors.ErrMalformedDeliveryResult, status)
	}
	if state.Order.Status == status {
		return state, false, nil
	}
	if err := ValidateOrderTransition(state.Order.Status, status); err != nil {
		return state, false, err
	}
	state.Order.Status = status
	state.Order.LastUpdate = now.UTC()
	return state, true, nil
}

func allDeliveriesTerminal(deliveries []entities.Delivery) bool {
	if len(deliveries) == 0 {
		return false
	}
	for _, delivery := range deliveries {
		if !delivery.Status.IsTerminal() {
			return false
		}
	}
	return true
}
