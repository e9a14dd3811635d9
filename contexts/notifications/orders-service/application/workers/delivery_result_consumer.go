package workers

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"log/slog"
	"strings"
	"time"

	application "courier/contexts/notifications/orders-service/application"
	"courier/contexts/notifications/orders-service/application/commands"
	"courier/contexts/notifications/orders-service/domain/entities"
	domainerrors "courier/contexts/notifications/orders-service/domain/errors"
	"courier/contexts/notifications/orders-service/ports"
)

const (
	EmailStatusTopic     = "courier.email.status"
	SmsStatusTopic       = "courier.sms.status"
	OrderStatusTopic     = "courier.orders.status"
	defaultConsumerGroup = "courier-delivery-results-cg"

	defaultReservationLease = time.Minute
)

// DeliveryResultConsumer applies sender and pipeline callbacks to orders.
// Malformed callbacks are logged and dropped; they never stop the consumer.
// An event id is held under a ReservationLease while its result is applied
// and recorded for DedupTTL once applied.
type DeliveryResultConsumer struct {
	Subscriber       ports.EventSubscriber
	Results          commands.ApplyDeliveryResultUseCase
	Dedup            ports.EventDedupStore
	Clock            ports.Clock
	ConsumerGroup    string
	DedupTTL         time.Duration
	ReservationLease time.Duration
	Logger           *slog.Logger
}

func (c DeliveryResultConsumer) Start(ctx context.Context) error {
	group := c.ConsumerGroup
	if group == "" {
		group = defaultConsumerGroup
	}

	if err := c.Subscriber.Subscribe(ctx, EmailStatusTopic, group, c.HandleEmailResult); err != nil {
		return err
	}
	if err := c.Subscriber.Subscribe(ctx, SmsStatusTopic, group, c.HandleSmsResult); err != nil {
		return err
	}
	if err := c.Subscriber.Subscribe(ctx, OrderStatusTopic, group, c.HandleOrderResult); err != nil {
		return err
	}
	return nil
}

func (c DeliveryResultConsumer) HandleEmailResult(ctx context.Context, event ports.EventEnvelope) error {
	return c.handle(ctx, event, entities.ChannelEmail)
}

func (c DeliveryResultConsumer) HandleSmsResult(ctx context.Context, event ports.EventEnvelope) error {
	return c.handle(ctx, event, entities.ChannelSms)
}

func (c DeliveryResultConsumer) HandleOrderResult(ctx context.Context, event ports.EventEnvelope) error {
	return c.handle(ctx, event, "")
}

func (c DeliveryResultConsumer) handle(ctx context.Context, event ports.EventEnvelope, channel entities.Channel) error {
	logger := application.ResolveLogger(c.Logger)

	cmd, err := decodeDeliveryResult(event, channel)
	if err != nil {
		logger.Warn("delivery result dropped",
			"event", "delivery_result_malformed",
			"module", application.LogModule,
			"layer", "worker",
			"event_id", event.EventID,
			"event_type", event.EventType,
			"error", err.Error(),
		)
		return nil
	}

	now := time.Now().UTC()
	if c.Clock != nil {
		now = c.Clock.Now().UTC()
	}

	payloadHash := hashPayload(event.Data)
	alreadyProcessed, err := c.Dedup.ReserveEvent(ctx, event.EventID, payloadHash, now.Add(c.reservationLease()))
	if err != nil {
		if errors.Is(err, domainerrors.ErrMalformedDeliveryResult) {
			logger.Warn("delivery result dropped",
				"event", "delivery_result_payload_conflict",
				"module", application.LogModule,
				"layer", "worker",
				"event_id", event.EventID,
				"error", err.Error(),
			)
			return nil
		}
		if errors.Is(err, domainerrors.ErrEventInFlight) {
			logger.Debug("delivery result reserved elsewhere",
				"event", "delivery_result_in_flight",
				"module", application.LogModule,
				"layer", "worker",
				"event_id", event.EventID,
			)
			return err
		}
		logger.Error("delivery result dedupe failed",
			"event", "delivery_result_dedupe_failed",
			"module", application.LogModule,
			"layer", "worker",
			"event_id", event.EventID,
			"error", err.Error(),
		)
		return err
	}
	if alreadyProcessed {
		logger.Debug("delivery result already processed",
			"event", "delivery_result_replayed",
			"module", application.LogModule,
			"layer", "worker",
			"event_id", event.EventID,
		)
		return nil
	}

	if _, err := c.Results.Execute(ctx, cmd); err != nil {
		if !isPermanentResultError(err) {
			if releaseErr := c.Dedup.ReleaseEvent(ctx, event.EventID); releaseErr != nil {
				logger.Error("delivery result reservation release failed",
					"event", "delivery_result_release_failed",
					"module", application.LogModule,
					"layer", "worker",
					"event_id", event.EventID,
					"error", releaseErr.Error(),
				)
			}
			return err
		}
		logger.Warn("delivery result rejected",
			"event", "delivery_result_rejected",
			"module", application.LogModule,
			"layer", "worker",
			"event_id", event.EventID,
			"order_id", cmd.OrderID,
			"status", cmd.Status,
			"error", err.Error(),
		)
	}

	// An unconfirmed lease expires on its own; the next delivery re-applies
	// the result, which is a no-op for an already recorded status.
	if err := c.Dedup.ConfirmEvent(ctx, event.EventID, payloadHash, now.Add(c.dedupTTL())); err != nil {
		logger.Error("delivery result confirmation failed",
			"event", "delivery_result_confirm_failed",
			"module", application.LogModule,
			"layer", "worker",
			"event_id", event.EventID,
			"error", err.Error(),
		)
	}
	return nil
}

func decodeDeliveryResult(event ports.EventEnvelope, channel entities.Channel) (commands.ApplyDeliveryResultCommand, error) {
	if err := event.Validate(); err != nil {
		return commands.ApplyDeliveryResultCommand{}, err
	}

	var payload ports.DeliveryResultPayload
	if err := json.Unmarshal(event.Data, &payload); err != nil {
		return commands.ApplyDeliveryResultCommand{}, errors.Join(domainerrors.ErrMalformedDeliveryResult, err)
	}
	if strings.TrimSpace(payload.OrderID) == "" {
		return commands.ApplyDeliveryResultCommand{}, errors.Join(domainerrors.ErrMalformedDeliveryResult, errors.New("order_id is required"))
	}

	status, ok := entities.ParseProcessingLifecycle(payload.Status)
	if !ok {
		return commands.ApplyDeliveryResultCommand{}, errors.Join(domainerrors.ErrUnknownLifecycleStatus, errors.New(payload.Status))
	}
	statusChannel, isChannelStatus := status.Channel()
	switch {
	case channel == "" && !status.IsOrderLevel():
		return commands.ApplyDeliveryResultCommand{}, errors.Join(domainerrors.ErrMalformedDeliveryResult, errors.New("order topic carries a delivery status"))
	case channel != "" && (!isChannelStatus || statusChannel != channel):
		return commands.ApplyDeliveryResultCommand{}, errors.Join(domainerrors.ErrMalformedDeliveryResult, errors.New("status does not match topic channel"))
	}

	return commands.ApplyDeliveryResultCommand{
		OrderID:          payload.OrderID,
		Channel:          channel,
		Destination:      payload.Destination,
		GatewayReference: payload.GatewayReference,
		Status:           status,
	}, nil
}

func isPermanentResultError(err error) bool {
	return errors.Is(err, domainerrors.ErrOrderNotFound) ||
		errors.Is(err, domainerrors.ErrInvalidStatusTransition) ||
		errors.Is(err, domainerrors.ErrMalformedDeliveryResult)
}

func (c DeliveryResultConsumer) reservationLease() time.Duration {
	if c.ReservationLease <= 0 {
		return defaultReservationLease
	}
	return c.ReservationLease
}

func (c DeliveryResultConsumer) dedupTTL() time.Duration {
	if c.DedupTTL <= 0 {
		return 7 * 24 * time.Hour
	}
	return c.DedupTTL
}

func hashPayload(payload []byte) string {
	sum := sha256.Sum256(payload)
	return hex.EncodeToString(sum[:])
}
