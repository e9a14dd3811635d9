package messaging

import (
	"context"
	"errors"
	"testing"
	"time"

	"courier/contexts/notifications/orders-service/ports"

	"github.com/IBM/sarama"
	"github.com/stretchr/testify/require"
)

func newTestHandler(handler func(context.Context, ports.EventEnvelope) error) *groupHandler {
	return &groupHandler{
		topic:        "courier.email.status",
		group:        "courier-delivery-results-cg",
		handler:      handler,
		retryBackoff: time.Millisecond,
		logger:       discardLogger(),
	}
}

func TestConsumerDropsUndecodableMessages(t *testing.T) {
	calls := 0
	h := newTestHandler(func(context.Context, ports.EventEnvelope) error {
		calls++
		return nil
	})

	require.True(t, h.process(context.Background(), &sarama.ConsumerMessage{Value: []byte("{broken")}))
	require.True(t, h.process(context.Background(), &sarama.ConsumerMessage{Value: []byte(`{"event_type":"x","data":{}}`)}))
	require.Zero(t, calls)
}

func TestConsumerRetriesHandlerUntilSuccess(t *testing.T) {
	attempts := 0
	h := newTestHandler(func(_ context.Context, envelope ports.EventEnvelope) error {
		attempts++
		require.Equal(t, "evt-1", envelope.EventID)
		if attempts < 3 {
			return errors.New("store unavailable")
		}
		return nil
	})

	msg := &sarama.ConsumerMessage{Value: []byte(`{"event_id":"evt-1","event_type":"notification.delivery.status","schema_version":1,"data":{}}`)}
	require.True(t, h.process(context.Background(), msg))
	require.Equal(t, 3, attempts)
}

func TestConsumerLeavesOffsetWhenSessionEndsDuringRetry(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	h := newTestHandler(func(context.Context, ports.EventEnvelope) error {
		cancel()
		return errors.New("store unavailable")
	})

	msg := &sarama.ConsumerMessage{Value: []byte(`{"event_id":"evt-1","event_type":"notification.delivery.status","schema_version":1,"data":{}}`)}
	require.False(t, h.process(ctx, msg))
}
