package messaging

import (
	"context"
	"encoding/json"
	"log/slog"
	"strings"
	"sync"

	"courier/contexts/notifications/orders-service/ports"
)

// Bus is an in-process topic bus for single-process runs. It implements both
// the batch publisher and the subscriber ports. A message counts as published
// once every current subscriber of the topic has accepted it.
type Bus struct {
	mu          sync.RWMutex
	subscribers map[string][]chan ports.EventEnvelope
	logger      *slog.Logger
}

func NewBus(logger *slog.Logger) *Bus {
	if logger == nil {
		logger = slog.Default()
	}
	return &Bus{
		subscribers: make(map[string][]chan ports.EventEnvelope),
		logger:      logger,
	}
}

func (b *Bus) Publish(ctx context.Context, topic string, messages []string) (ports.PublishResult, error) {
	if strings.TrimSpace(topic) == "" {
		return ports.PublishResult{Unpublished: append([]string(nil), messages...)}, ErrInvalidTopic
	}

	b.mu.RLock()
	subs := append([]chan ports.EventEnvelope(nil), b.subscribers[topic]...)
	b.mu.RUnlock()

	result := ports.PublishResult{Published: make([]string, 0, len(messages)), Unpublished: make([]string, 0)}
	for _, message := range messages {
		var envelope ports.EventEnvelope
		if strings.TrimSpace(message) == "" || json.Unmarshal([]byte(message), &envelope) != nil {
			result.Unpublished = append(result.Unpublished, message)
			continue
		}
		if b.deliver(ctx, subs, envelope) {
			result.Published = append(result.Published, message)
		} else {
			result.Unpublished = append(result.Unpublished, message)
		}
	}

	b.logger.Info("bus batch published",
		"event", "bus_publish",
		"module", logModule,
		"layer", "platform",
		"topic", topic,
		"published", len(result.Published),
		"unpublished", len(result.Unpublished),
	)
	return result, nil
}

func (b *Bus) deliver(ctx context.Context, subs []chan ports.EventEnvelope, envelope ports.EventEnvelope) bool {
	for _, sub := range subs {
		select {
		case <-ctx.Done():
			return false
		case sub <- envelope:
		}
	}
	return true
}

func (b *Bus) Subscribe(
	ctx context.Context,
	topic string,
	consumerGroup string,
	handler func(context.Context, ports.EventEnvelope) error,
) error {
	ch := make(chan ports.EventEnvelope, 128)

	b.mu.Lock()
	b.subscribers[topic] = append(b.subscribers[topic], ch)
	b.mu.Unlock()

	go func() {
		for {
			select {
			case <-ctx.Done():
				b.removeSubscriber(topic, ch)
				return
			case envelope := <-ch:
				if err := handler(ctx, envelope); err != nil {
					b.logger.Error("bus handler failed",
						"event", "bus_consume_failed",
						"module", logModule,
						"layer", "platform",
						"topic", topic,
						"consumer_group", consumerGroup,
						"event_id", envelope.EventID,
						"event_type", envelope.EventType,
						"error", err.Error(),
					)
				}
			}
		}
	}()
	return nil
}

func (b *Bus) removeSubscriber(topic string, target chan ports.EventEnvelope) {
	b.mu.Lock()
	defer b.mu.Unlock()

	items := b.subscribers[topic]
	filtered := make([]chan ports.EventEnvelope, 0, len(items))
	for _, item := range items {
		if item != target {
			filtered = append(filtered, item)
		}
	}
	b.subscribers[topic] = filtered
}
