package workers_test

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"courier/contexts/notifications/orders-service/adapters/memory"
	"courier/contexts/notifications/orders-service/application/commands"
	"courier/contexts/notifications/orders-service/application/workers"
	"courier/contexts/notifications/orders-service/domain/entities"
	domainerrors "courier/contexts/notifications/orders-service/domain/errors"
	"courier/contexts/notifications/orders-service/ports"

	"github.com/stretchr/testify/require"
)

var errStoreUnavailable = errors.New("store unavailable")

// flakyOrders fails UpdateOrder while failing is set.
type flakyOrders struct {
	ports.OrderRepository
	failing bool
}

func (f *flakyOrders) UpdateOrder(ctx context.Context, creator string, orderID string, transition ports.StateTransition) (entities.OrderState, error) {
	if f.failing {
		return entities.OrderState{}, errStoreUnavailable
	}
	return f.OrderRepository.UpdateOrder(ctx, creator, orderID, transition)
}

func resultEnvelope(t *testing.T, eventID string, payload ports.DeliveryResultPayload) ports.EventEnvelope {
	t.Helper()
	data, err := json.Marshal(payload)
	require.NoError(t, err)
	return ports.EventEnvelope{
		EventID:       eventID,
		EventType:     "notification.delivery.status",
		OccurredAt:    time.Now().UTC(),
		SourceService: "email-sender",
		SchemaVersion: 1,
		Data:          data,
	}
}

func dispatchedEmailOrder(t *testing.T, store *memory.Store) string {
	t.Helper()
	handle := admitChain(t, store, "idem-1", emailRecipient("ola@example.com"))
	relay := workers.DispatchRelay{Orders: store, Publisher: newRecordingPublisher(), Clock: soon()}
	require.NoError(t, relay.RunOnce(context.Background()))
	return handle.Primary.ShipmentID
}

func newConsumer(store *memory.Store, orders ports.OrderRepository) workers.DeliveryResultConsumer {
	return workers.DeliveryResultConsumer{
		Results: commands.ApplyDeliveryResultUseCase{Orders: orders},
		Dedup:   store,
	}
}

func feedLength(t *testing.T, store *memory.Store) int {
	t.Helper()
	entries, err := store.ReadStatusFeed(context.Background(), "org-1", 0, 0)
	require.NoError(t, err)
	return len(entries)
}

func TestDeliveryResultCompletesOrderAndIgnoresReplay(t *testing.T) {
	store := memory.NewStore(nil)
	orderID := dispatchedEmailOrder(t, store)
	consumer := newConsumer(store, store)
	event := resultEnvelope(t, "evt-1", ports.DeliveryResultPayload{
		OrderID:          orderID,
		Destination:      "ola@example.com",
		GatewayReference: "gw-42",
		Status:           "Email_Delivered",
	})

	require.NoError(t, consumer.HandleEmailResult(context.Background(), event))

	state, err := store.GetOrderState(context.Background(), "", orderID)
	require.NoError(t, err)
	require.Equal(t, entities.OrderCompleted, state.Order.Status)
	require.Equal(t, entities.EmailDelivered, state.Deliveries[0].Status)
	require.Equal(t, "gw-42", state.Deliveries[0].GatewayReference)
	entries := feedLength(t, store)

	require.NoError(t, consumer.HandleEmailResult(context.Background(), event))
	require.Equal(t, entries, feedLength(t, store))
}

func TestDeliveryResultDropsMalformedCallbacks(t *testing.T) {
	store := memory.NewStore(nil)
	orderID := dispatchedEmailOrder(t, store)
	consumer := newConsumer(store, store)
	before := feedLength(t, store)

	cases := []ports.EventEnvelope{
		{EventID: "evt-bad-json", EventType: "x", SchemaVersion: 1, Data: json.RawMessage(`"not an object"`)},
		{EventID: "", EventType: "x", SchemaVersion: 1, Data: json.RawMessage(`{}`)},
		resultEnvelope(t, "evt-no-order", ports.DeliveryResultPayload{Destination: "ola@example.com", Status: "Email_Delivered"}),
		resultEnvelope(t, "evt-unknown-status", ports.DeliveryResultPayload{OrderID: orderID, Destination: "ola@example.com", Status: "Email_Teleported"}),
		resultEnvelope(t, "evt-wrong-channel", ports.DeliveryResultPayload{OrderID: orderID, Destination: "ola@example.com", Status: "SMS_Delivered"}),
		resultEnvelope(t, "evt-unknown-order", ports.DeliveryResultPayload{OrderID: "missing", Destination: "ola@example.com", Status: "Email_Delivered"}),
	}
	for _, event := range cases {
		require.NoError(t, consumer.HandleEmailResult(context.Background(), event), event.EventID)
	}

	require.Equal(t, before, feedLength(t, store))
	state, err := store.GetOrderState(context.Background(), "", orderID)
	require.NoError(t, err)
	require.Equal(t, entities.OrderProcessing, state.Order.Status)
}

func TestOrderTopicAcceptsOnlyOrderOutcomes(t *testing.T) {
	store := memory.NewStore(nil)
	orderID := dispatchedEmailOrder(t, store)
	consumer := newConsumer(store, store)

	require.NoError(t, consumer.HandleOrderResult(context.Background(), resultEnvelope(t, "evt-1", ports.DeliveryResultPayload{
		OrderID: orderID,
		Status:  "Email_Delivered",
	})))
	state, err := store.GetOrderState(context.Background(), "", orderID)
	require.NoError(t, err)
	require.Equal(t, entities.OrderProcessing, state.Order.Status)

	require.NoError(t, consumer.HandleOrderResult(context.Background(), resultEnvelope(t, "evt-2", ports.DeliveryResultPayload{
		OrderID: orderID,
		Status:  "Order_SendConditionNotMet",
	})))
	state, err = store.GetOrderState(context.Background(), "", orderID)
	require.NoError(t, err)
	require.Equal(t, entities.OrderSendConditionNotMet, state.Order.Status)
}

func TestDeliveryResultReleasesReservationOnTransientFailure(t *testing.T) {
	store := memory.NewStore(nil)
	orderID := dispatchedEmailOrder(t, store)
	orders := &flakyOrders{OrderRepository: store, failing: true}
	consumer := newConsumer(store, orders)
	event := resultEnvelope(t, "evt-1", ports.DeliveryResultPayload{
		OrderID:     orderID,
		Destination: "ola@example.com",
		Status:      "Email_Delivered",
	})

	err := consumer.HandleEmailResult(context.Background(), event)
	require.True(t, errors.Is(err, errStoreUnavailable))

	orders.failing = false
	require.NoError(t, consumer.HandleEmailResult(context.Background(), event))

	state, err := store.GetOrderState(context.Background(), "", orderID)
	require.NoError(t, err)
	require.Equal(t, entities.OrderCompleted, state.Order.Status)
}

func payloadHashOf(event ports.EventEnvelope) string {
	sum := sha256.Sum256(event.Data)
	return hex.EncodeToString(sum[:])
}

func TestDeliveryResultWaitsOnLiveReservation(t *testing.T) {
	store := memory.NewStore(nil)
	orderID := dispatchedEmailOrder(t, store)
	consumer := newConsumer(store, store)
	event := resultEnvelope(t, "evt-1", ports.DeliveryResultPayload{
		OrderID:     orderID,
		Destination: "ola@example.com",
		Status:      "Email_Delivered",
	})

	_, err := store.ReserveEvent(context.Background(), event.EventID, payloadHashOf(event), time.Now().Add(time.Minute))
	require.NoError(t, err)

	err = consumer.HandleEmailResult(context.Background(), event)
	require.True(t, errors.Is(err, domainerrors.ErrEventInFlight))
	state, err := store.GetOrderState(context.Background(), "", orderID)
	require.NoError(t, err)
	require.Equal(t, entities.OrderProcessing, state.Order.Status)
}

func TestDeliveryResultAppliedAfterAbandonedReservation(t *testing.T) {
	store := memory.NewStore(nil)
	orderID := dispatchedEmailOrder(t, store)
	consumer := newConsumer(store, store)
	event := resultEnvelope(t, "evt-1", ports.DeliveryResultPayload{
		OrderID:     orderID,
		Destination: "ola@example.com",
		Status:      "Email_Delivered",
	})

	// A worker reserved the event and died before applying it; its lease has lapsed.
	_, err := store.ReserveEvent(context.Background(), event.EventID, payloadHashOf(event), time.Now().Add(-time.Second))
	require.NoError(t, err)

	require.NoError(t, consumer.HandleEmailResult(context.Background(), event))
	state, err := store.GetOrderState(context.Background(), "", orderID)
	require.NoError(t, err)
	require.Equal(t, entities.OrderCompleted, state.Order.Status)

	processed, err := store.ReserveEvent(context.Background(), event.EventID, payloadHashOf(event), time.Now().Add(time.Minute))
	require.NoError(t, err)
	require.True(t, processed)
}

type recordingSubscriber struct {
	topics []string
	groups []string
}

func (s *recordingSubscriber) Subscribe(_ context.Context, topic string, group string, _ func(context.Context, ports.EventEnvelope) error) error {
	s.topics = append(s.topics, topic)
	s.groups = append(s.groups, group)
	return nil
}

func TestDeliveryResultConsumerSubscribesToStatusTopics(t *testing.T) {
	store := memory.NewStore(nil)
	subscriber := &recordingSubscriber{}
	consumer := newConsumer(store, store)
	consumer.Subscriber = subscriber

	require.NoError(t, consumer.Start(context.Background()))
	require.Equal(t, []string{
		workers.EmailStatusTopic,
		workers.SmsStatusTopic,
		workers.OrderStatusTopic,
	}, subscriber.topics)
	require.Equal(t, "courier-delivery-results-cg", subscriber.groups[0])
}
