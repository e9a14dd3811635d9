package workers

import (
	"context"
	"log/slog"
	"sort"
	"time"

	application "courier/contexts/notifications/orders-service/application"
	"courier/contexts/notifications/orders-service/domain/entities"
	"courier/contexts/notifications/orders-service/domain/services"
	"courier/contexts/notifications/orders-service/ports"
)

// DispatchRelay moves due orders into processing and hands their work units
// to the batch publisher. Orders are marked dispatched only when every unit
// was durably published, so failed units are retried on a later cycle.
type DispatchRelay struct {
	Orders    ports.OrderRepository
	Publisher ports.BatchPublisher
	Clock     ports.Clock
	Topics    Topics
	BatchSize int
	Logger    *slog.Logger
}

func (r DispatchRelay) RunOnce(ctx context.Context) error {
	logger := application.ResolveLogger(r.Logger)
	limit := r.BatchSize
	if limit <= 0 {
		limit = 100
	}
	topics := r.Topics.withDefaults()

	now := time.Now().UTC()
	if r.Clock != nil {
		now = r.Clock.Now().UTC()
	}

	claimed, err := r.Orders.ClaimDueOrders(ctx, now, limit, func(state entities.OrderState) (entities.OrderState, bool, error) {
		next, err := services.StartProcessing(state, now)
		if err != nil {
			return state, false, err
		}
		return next, true, nil
	})
	if err != nil {
		logger.Error("claim due orders failed",
			"event", "dispatch_claim_due_failed",
			"module", application.LogModule,
			"layer", "worker",
			"error", err.Error(),
		)
		return err
	}

	pending, err := r.Orders.ListUndispatched(ctx, limit)
	if err != nil {
		logger.Error("list undispatched orders failed",
			"event", "dispatch_list_undispatched_failed",
			"module", application.LogModule,
			"layer", "worker",
			"error", err.Error(),
		)
		return err
	}

	batches := make(map[string][]string)
	ownerByPayload := make(map[string]string)
	expected := make(map[string]int, len(pending))
	published := make(map[string]int, len(pending))
	orderIDs := make([]string, 0, len(pending))

	for _, state := range pending {
		units, err := buildWorkUnits(state, topics, now)
		if err != nil {
			logger.Error("work unit encode failed",
				"event", "dispatch_work_unit_encode_failed",
				"module", application.LogModule,
				"layer", "worker",
				"order_id", state.Order.OrderID,
				"error", err.Error(),
			)
			continue
		}
		orderIDs = append(orderIDs, state.Order.OrderID)
		expected[state.Order.OrderID] = len(units)
		for _, unit := range units {
			batches[unit.Topic] = append(batches[unit.Topic], unit.Payload)
			ownerByPayload[unit.Payload] = unit.OrderID
		}
	}

	topicNames := make([]string, 0, len(batches))
	for topic := range batches {
		topicNames = append(topicNames, topic)
	}
	sort.Strings(topicNames)

	unpublishedCount := 0
	for _, topic := range topicNames {
		messages := batches[topic]
		result, err := r.Publisher.Publish(ctx, topic, messages)
		if err != nil {
			logger.Error("work unit batch publish failed",
				"event", "dispatch_publish_failed",
				"module", application.LogModule,
				"layer", "worker",
				"topic", topic,
				"message_count", len(messages),
				"error", err.Error(),
			)
			unpublishedCount += len(messages)
			continue
		}
		for _, message := range result.Published {
			published[ownerByPayload[message]]++
		}
		unpublishedCount += len(result.Unpublished)
	}

	dispatched := make([]string, 0, len(orderIDs))
	for _, orderID := range orderIDs {
		if published[orderID] == expected[orderID] {
			dispatched = append(dispatched, orderID)
		}
	}
	if len(dispatched) > 0 {
		if err := r.Orders.MarkDispatched(ctx, dispatched, now); err != nil {
			logger.Error("mark dispatched failed",
				"event", "dispatch_mark_dispatched_failed",
				"module", application.LogModule,
				"layer", "worker",
				"order_count", len(dispatched),
				"error", err.Error(),
			)
			return err
		}
	}

	if len(claimed) > 0 || len(pending) > 0 {
		logger.Info("dispatch relay cycle completed",
			"event", "dispatch_relay_completed",
			"module", application.LogModule,
			"layer", "worker",
			"claimed_count", len(claimed),
			"pending_count", len(pending),
			"dispatched_count", len(dispatched),
			"unpublished_count", unpublishedCount,
		)
	}
	return nil
}
