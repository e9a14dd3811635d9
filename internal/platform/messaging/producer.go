package messaging

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync"
	"time"

	"courier/contexts/notifications/orders-service/ports"

	"github.com/IBM/sarama"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const logModule = "internal/platform/messaging"

var ErrInvalidTopic = errors.New("topic name is required")

var tracer = otel.Tracer("courier/internal/platform/messaging")

type ProducerOptions struct {
	Logger *slog.Logger
	// KeyFunc derives the partition key of a message. Nil sends unkeyed.
	KeyFunc func(message string) string
}

// Producer publishes batches through one shared sarama async producer.
// Each scheduled message carries its own result channel in Metadata; a single
// dispatcher goroutine routes Successes and Errors back to it.
type Producer struct {
	producer sarama.AsyncProducer
	keyFunc  func(string) string
	logger   *slog.Logger

	closeOnce sync.Once
	done      chan struct{}
}

func NewProducer(producer sarama.AsyncProducer, opts ProducerOptions) *Producer {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	p := &Producer{
		producer: producer,
		keyFunc:  opts.KeyFunc,
		logger:   logger,
		done:     make(chan struct{}),
	}
	go p.dispatch()
	return p
}

// Publish hands every non-blank message to the transport. A message is
// reported published only after the broker acknowledged it; everything else,
// including sends still in flight when ctx ends, is reported unpublished.
func (p *Producer) Publish(ctx context.Context, topic string, messages []string) (ports.PublishResult, error) {
	started := time.Now()
	ctx, span := tracer.Start(ctx, "messaging.Publish",
		trace.WithSpanKind(trace.SpanKindProducer),
		trace.WithAttributes(
			attribute.String("messaging.destination.name", topic),
			attribute.Int("messaging.batch.message_count", len(messages)),
		),
	)
	defer span.End()

	if strings.TrimSpace(topic) == "" {
		publisherMessages.WithLabelValues(topic, outcomeInvalid).Add(float64(len(messages)))
		span.SetStatus(codes.Error, ErrInvalidTopic.Error())
		return ports.PublishResult{Unpublished: append([]string(nil), messages...)}, ErrInvalidTopic
	}

	published := make([]bool, len(messages))
	pending := make([]pendingSend, 0, len(messages))
	invalid := 0

schedule:
	for i, message := range messages {
		if strings.TrimSpace(message) == "" {
			invalid++
			continue
		}
		result := make(chan error, 1)
		msg := &sarama.ProducerMessage{
			Topic:    topic,
			Value:    sarama.StringEncoder(message),
			Metadata: result,
		}
		if p.keyFunc != nil {
			if key := p.keyFunc(message); key != "" {
				msg.Key = sarama.StringEncoder(key)
			}
		}
		if ctx.Err() != nil {
			break schedule
		}
		select {
		case <-ctx.Done():
			break schedule
		case p.producer.Input() <- msg:
			pending = append(pending, pendingSend{index: i, result: result})
		}
	}

	cancelled := p.await(ctx, pending, published)

	out := ports.PublishResult{
		Published:   make([]string, 0, len(messages)),
		Unpublished: make([]string, 0),
	}
	for i, message := range messages {
		if published[i] {
			out.Published = append(out.Published, message)
		} else {
			out.Unpublished = append(out.Unpublished, message)
		}
	}

	publisherMessages.WithLabelValues(topic, outcomeScheduled).Add(float64(len(pending)))
	publisherMessages.WithLabelValues(topic, outcomePublished).Add(float64(len(out.Published)))
	publisherMessages.WithLabelValues(topic, outcomeUnpublished).Add(float64(len(out.Unpublished)))
	publisherMessages.WithLabelValues(topic, outcomeInvalid).Add(float64(invalid))
	publisherBatchDuration.WithLabelValues(topic).Observe(time.Since(started).Seconds())

	span.SetAttributes(
		attribute.Int("messaging.batch.scheduled", len(pending)),
		attribute.Int("messaging.batch.published", len(out.Published)),
		attribute.Int("messaging.batch.unpublished", len(out.Unpublished)),
		attribute.Bool("messaging.batch.cancelled", cancelled),
	)
	if len(out.Unpublished) > 0 {
		span.SetStatus(codes.Error, "batch partially unpublished")
	}

	p.logger.Info("batch published",
		"event", "publisher_batch_completed",
		"module", logModule,
		"layer", "platform",
		"topic", topic,
		"messages", len(messages),
		"scheduled", len(pending),
		"published", len(out.Published),
		"unpublished", len(out.Unpublished),
		"invalid", invalid,
		"cancelled", cancelled,
		"duration_ms", time.Since(started).Milliseconds(),
	)
	return out, nil
}

// PublishOne is the single-message form of Publish.
func (p *Producer) PublishOne(ctx context.Context, topic string, message string) (bool, error) {
	result, err := p.Publish(ctx, topic, []string{message})
	if err != nil {
		return false, err
	}
	return len(result.Published) == 1, nil
}

// Close flushes buffered messages and waits for every outcome to be routed.
func (p *Producer) Close() error {
	p.closeOnce.Do(func() {
		p.producer.AsyncClose()
	})
	<-p.done
	return nil
}

type pendingSend struct {
	index  int
	result chan error
}

// await collects outcomes in scheduling order. Once ctx is done it stops
// blocking and credits only the sends whose outcome already arrived.
func (p *Producer) await(ctx context.Context, pending []pendingSend, published []bool) bool {
	for i, send := range pending {
		select {
		case err := <-send.result:
			published[send.index] = err == nil
			if err != nil {
				p.logSendFailure(send.index, err)
			}
		case <-ctx.Done():
			p.reconcile(pending[i:], published)
			return true
		}
	}
	return false
}

func (p *Producer) reconcile(pending []pendingSend, published []bool) {
	for _, send := range pending {
		select {
		case err := <-send.result:
			published[send.index] = err == nil
		default:
		}
	}
}

func (p *Producer) dispatch() {
	defer close(p.done)
	successes := p.producer.Successes()
	failures := p.producer.Errors()
	for successes != nil || failures != nil {
		select {
		case msg, ok := <-successes:
			if !ok {
				successes = nil
				continue
			}
			route(msg, nil)
		case perr, ok := <-failures:
			if !ok {
				failures = nil
				continue
			}
			if perr == nil {
				continue
			}
			err := perr.Err
			if err == nil {
				err = errors.New("producer reported failure without cause")
			}
			route(perr.Msg, err)
		}
	}
}

func route(msg *sarama.ProducerMessage, err error) {
	if msg == nil {
		return
	}
	result, ok := msg.Metadata.(chan error)
	if !ok {
		return
	}
	select {
	case result <- err:
	default:
	}
}

func (p *Producer) logSendFailure(index int, err error) {
	p.logger.Warn("message not acknowledged",
		"event", "publisher_message_failed",
		"module", logModule,
		"layer", "platform",
		"index", index,
		"error", err.Error(),
	)
}
