package messaging

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"courier/contexts/notifications/orders-service/ports"
	"courier/internal/platform/config"

	"github.com/IBM/sarama"
	"github.com/IBM/sarama/mocks"
	"github.com/stretchr/testify/require"
)

func mockConfig() *sarama.Config {
	cfg := sarama.NewConfig()
	cfg.Producer.Return.Successes = true
	return cfg
}

// manualProducer lets a test decide when and how each send completes.
type manualProducer struct {
	sarama.AsyncProducer
	input     chan *sarama.ProducerMessage
	successes chan *sarama.ProducerMessage
	errors    chan *sarama.ProducerError
}

func newManualProducer() *manualProducer {
	return &manualProducer{
		input:     make(chan *sarama.ProducerMessage),
		successes: make(chan *sarama.ProducerMessage),
		errors:    make(chan *sarama.ProducerError),
	}
}

func (m *manualProducer) Input() chan<- *sarama.ProducerMessage     { return m.input }
func (m *manualProducer) Successes() <-chan *sarama.ProducerMessage { return m.successes }
func (m *manualProducer) Errors() <-chan *sarama.ProducerError      { return m.errors }
func (m *manualProducer) AsyncClose() {
	close(m.successes)
	close(m.errors)
}

func TestPublishSplitsAcknowledgedAndFailedSends(t *testing.T) {
	mock := mocks.NewAsyncProducer(t, mockConfig())
	mock.ExpectInputAndSucceed()
	mock.ExpectInputAndFail(sarama.ErrOutOfBrokers)
	mock.ExpectInputAndSucceed()
	producer := NewProducer(mock, ProducerOptions{})

	result, err := producer.Publish(context.Background(), "courier.email.queue", []string{"a", "b", "c"})
	require.NoError(t, err)
	require.Equal(t, []string{"a", "c"}, result.Published)
	require.Equal(t, []string{"b"}, result.Unpublished)
	require.NoError(t, producer.Close())
}

func TestPublishNeverSubmitsBlankMessages(t *testing.T) {
	mock := mocks.NewAsyncProducer(t, mockConfig())
	mock.ExpectInputAndSucceed()
	producer := NewProducer(mock, ProducerOptions{})

	result, err := producer.Publish(context.Background(), "courier.sms.queue", []string{" ", "a", ""})
	require.NoError(t, err)
	require.Equal(t, []string{"a"}, result.Published)
	require.Equal(t, []string{" ", ""}, result.Unpublished)
	require.NoError(t, producer.Close())
}

func TestPublishRejectsBlankTopic(t *testing.T) {
	mock := mocks.NewAsyncProducer(t, mockConfig())
	producer := NewProducer(mock, ProducerOptions{})

	result, err := producer.Publish(context.Background(), "  ", []string{"a", "b"})
	require.ErrorIs(t, err, ErrInvalidTopic)
	require.Empty(t, result.Published)
	require.Equal(t, []string{"a", "b"}, result.Unpublished)
	require.NoError(t, producer.Close())
}

func TestPublishKeysMessagesByPartitionKey(t *testing.T) {
	mock := mocks.NewAsyncProducer(t, mockConfig())
	mock.ExpectInputWithMessageCheckerFunctionAndSucceed(func(msg *sarama.ProducerMessage) error {
		key, err := msg.Key.Encode()
		if err != nil {
			return err
		}
		if string(key) != "order-1" {
			return errors.New("unexpected key " + string(key))
		}
		return nil
	})
	producer := NewProducer(mock, ProducerOptions{KeyFunc: EnvelopePartitionKey})

	ok, err := producer.PublishOne(context.Background(), "courier.email.queue", `{"event_id":"e1","partition_key":"order-1"}`)
	require.NoError(t, err)
	require.True(t, ok)
	require.NoError(t, producer.Close())
}

func TestPublishStopsSchedulingWhenCancelled(t *testing.T) {
	fake := newManualProducer()
	producer := NewProducer(fake, ProducerOptions{})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	messages := []string{"a", "b", "c"}
	result, err := producer.Publish(ctx, "courier.email.queue", messages)
	require.NoError(t, err)
	require.Empty(t, result.Published)
	require.Equal(t, messages, result.Unpublished)
	require.NoError(t, producer.Close())
}

func TestPublishSchedulesNothingOnceCancelledEvenWhenInputIsReady(t *testing.T) {
	fake := newManualProducer()
	fake.input = make(chan *sarama.ProducerMessage, 256)
	producer := NewProducer(fake, ProducerOptions{})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	messages := make([]string, 200)
	for i := range messages {
		messages[i] = fmt.Sprintf("message-%d", i)
	}
	result, err := producer.Publish(ctx, "courier.email.queue", messages)
	require.NoError(t, err)
	require.Empty(t, result.Published)
	require.Equal(t, messages, result.Unpublished)
	require.Zero(t, len(fake.input))
	require.NoError(t, producer.Close())
}

func TestPublishCreditsSendsCompletedBeforeCancellation(t *testing.T) {
	fake := newManualProducer()
	producer := NewProducer(fake, ProducerOptions{})
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	done := make(chan ports.PublishResult, 1)
	go func() {
		result, _ := producer.Publish(ctx, "courier.email.queue", []string{"first", "second"})
		done <- result
	}()

	first := <-fake.input
	<-fake.input
	fake.successes <- first
	// The dispatcher only accepts this once the first outcome was routed.
	fake.successes <- &sarama.ProducerMessage{Topic: "courier.email.queue"}
	cancel()

	result := <-done
	require.Equal(t, []string{"first"}, result.Published)
	require.Equal(t, []string{"second"}, result.Unpublished)
	require.NoError(t, producer.Close())
}

func TestPublishConservesEveryMessage(t *testing.T) {
	mock := mocks.NewAsyncProducer(t, mockConfig())
	messages := []string{"a", "", "b", "c", " ", "d"}
	mock.ExpectInputAndFail(sarama.ErrNotLeaderForPartition)
	mock.ExpectInputAndSucceed()
	mock.ExpectInputAndFail(sarama.ErrRequestTimedOut)
	mock.ExpectInputAndSucceed()
	producer := NewProducer(mock, ProducerOptions{})

	result, err := producer.Publish(context.Background(), "courier.sms.queue", messages)
	require.NoError(t, err)
	require.Len(t, messages, len(result.Published)+len(result.Unpublished))
	require.Equal(t, []string{"b", "d"}, result.Published)
	require.Equal(t, []string{"a", "", "c", " "}, result.Unpublished)
	require.NoError(t, producer.Close())
}

func TestNewSaramaConfigIsValidForIdempotentProducer(t *testing.T) {
	cfg := NewSaramaConfig(config.KafkaConfig{ClientID: "courier-test", RetryMax: 0})

	require.NoError(t, cfg.Validate())
	require.Equal(t, sarama.WaitForAll, cfg.Producer.RequiredAcks)
	require.True(t, cfg.Producer.Idempotent)
	require.Equal(t, 1, cfg.Net.MaxOpenRequests)
	require.Equal(t, 1, cfg.Producer.Retry.Max)
	require.True(t, cfg.Producer.Return.Successes)
	require.True(t, cfg.Version.IsAtLeast(sarama.V2_1_0_0))
}

func TestEnvelopePartitionKeyIgnoresInvalidJSON(t *testing.T) {
	require.Equal(t, "", EnvelopePartitionKey("not json"))
	require.Equal(t, "o-1", EnvelopePartitionKey(`{"partition_key":"o-1"}`))
}
