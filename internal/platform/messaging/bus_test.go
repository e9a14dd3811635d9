package messaging

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"courier/contexts/notifications/orders-service/ports"

	"github.com/stretchr/testify/require"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestBusDeliversPublishedEnvelopes(t *testing.T) {
	bus := NewBus(discardLogger())
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	received := make(chan ports.EventEnvelope, 1)
	require.NoError(t, bus.Subscribe(ctx, "courier.email.queue", "test-cg", func(_ context.Context, envelope ports.EventEnvelope) error {
		received <- envelope
		return nil
	}))

	result, err := bus.Publish(ctx, "courier.email.queue", []string{`{"event_id":"e1","event_type":"notification.email.requested"}`, "not json"})
	require.NoError(t, err)
	require.Len(t, result.Published, 1)
	require.Equal(t, []string{"not json"}, result.Unpublished)

	select {
	case envelope := <-received:
		require.Equal(t, "e1", envelope.EventID)
	case <-time.After(time.Second):
		t.Fatal("envelope not delivered")
	}
}

func TestBusRejectsBlankTopic(t *testing.T) {
	bus := NewBus(discardLogger())
	result, err := bus.Publish(context.Background(), "", []string{"a"})
	require.ErrorIs(t, err, ErrInvalidTopic)
	require.Equal(t, []string{"a"}, result.Unpublished)
}

func TestBusReportsUndeliveredOnCancellation(t *testing.T) {
	bus := NewBus(discardLogger())
	subCtx, stop := context.WithCancel(context.Background())
	defer stop()
	block := make(chan struct{})
	defer close(block)
	require.NoError(t, bus.Subscribe(subCtx, "courier.sms.queue", "test-cg", func(context.Context, ports.EventEnvelope) error {
		<-block
		return nil
	}))

	messages := make([]string, 0, 200)
	for i := 0; i < 200; i++ {
		messages = append(messages, `{"event_id":"e","event_type":"t"}`)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	result, err := bus.Publish(ctx, "courier.sms.queue", messages)
	require.NoError(t, err)
	require.NotEmpty(t, result.Unpublished)
	require.Len(t, messages, len(result.Published)+len(result.Unpublished))
}
