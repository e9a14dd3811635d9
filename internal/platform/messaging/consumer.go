package messaging

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"sync"
	"time"

	"courier/contexts/notifications/orders-service/ports"

	"github.com/IBM/sarama"
)

// GroupFactory opens a consumer group. Tests replace it to avoid a broker.
type GroupFactory func(groupID string) (sarama.ConsumerGroup, error)

// Subscriber runs one sarama consumer group per Subscribe call and feeds
// decoded envelopes to the handler. Offsets are marked only after the
// handler succeeds, so failures are redelivered.
type Subscriber struct {
	newGroup     GroupFactory
	retryBackoff time.Duration
	logger       *slog.Logger

	mu     sync.Mutex
	groups []sarama.ConsumerGroup
	wg     sync.WaitGroup
}

func NewSubscriber(brokers []string, cfg *sarama.Config, logger *slog.Logger) *Subscriber {
	return NewSubscriberWithFactory(func(groupID string) (sarama.ConsumerGroup, error) {
		return sarama.NewConsumerGroup(brokers, groupID, cfg)
	}, logger)
}

func NewSubscriberWithFactory(factory GroupFactory, logger *slog.Logger) *Subscriber {
	if logger == nil {
		logger = slog.Default()
	}
	return &Subscriber{newGroup: factory, retryBackoff: time.Second, logger: logger}
}

func (s *Subscriber) Subscribe(
	ctx context.Context,
	topic string,
	consumerGroup string,
	handler func(context.Context, ports.EventEnvelope) error,
) error {
	group, err := s.newGroup(consumerGroup)
	if err != nil {
		return err
	}
	s.mu.Lock()
	s.groups = append(s.groups, group)
	s.mu.Unlock()

	gh := &groupHandler{
		topic:        topic,
		group:        consumerGroup,
		handler:      handler,
		retryBackoff: s.retryBackoff,
		logger:       s.logger,
	}

	s.wg.Add(2)
	go func() {
		defer s.wg.Done()
		for err := range group.Errors() {
			s.logger.Warn("consumer group error",
				"event", "consumer_group_error",
				"module", logModule,
				"layer", "platform",
				"topic", topic,
				"consumer_group", consumerGroup,
				"error", err.Error(),
			)
		}
	}()
	go func() {
		defer s.wg.Done()
		for {
			if err := group.Consume(ctx, []string{topic}, gh); err != nil {
				if errors.Is(err, sarama.ErrClosedConsumerGroup) {
					return
				}
				s.logger.Error("consumer session failed",
					"event", "consumer_session_failed",
					"module", logModule,
					"layer", "platform",
					"topic", topic,
					"consumer_group", consumerGroup,
					"error", err.Error(),
				)
				select {
				case <-ctx.Done():
				case <-time.After(s.retryBackoff):
				}
			}
			if ctx.Err() != nil {
				return
			}
		}
	}()
	return nil
}

// Close stops every consumer group opened by Subscribe.
func (s *Subscriber) Close() error {
	s.mu.Lock()
	groups := s.groups
	s.groups = nil
	s.mu.Unlock()

	var errs []error
	for _, group := range groups {
		if err := group.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	s.wg.Wait()
	return errors.Join(errs...)
}

type groupHandler struct {
	topic        string
	group        string
	handler      func(context.Context, ports.EventEnvelope) error
	retryBackoff time.Duration
	logger       *slog.Logger
}

func (h *groupHandler) Setup(sarama.ConsumerGroupSession) error   { return nil }
func (h *groupHandler) Cleanup(sarama.ConsumerGroupSession) error { return nil }

func (h *groupHandler) ConsumeClaim(session sarama.ConsumerGroupSession, claim sarama.ConsumerGroupClaim) error {
	for {
		select {
		case <-session.Context().Done():
			return nil
		case msg, ok := <-claim.Messages():
			if !ok {
				return nil
			}
			if h.process(session.Context(), msg) {
				session.MarkMessage(msg, "")
			}
		}
	}
}

// process returns true when the message may be committed: handled, or
// undecodable and dropped. Handler failures are retried until the session ends.
func (h *groupHandler) process(ctx context.Context, msg *sarama.ConsumerMessage) bool {
	var envelope ports.EventEnvelope
	if err := json.Unmarshal(msg.Value, &envelope); err != nil {
		h.drop(msg, err)
		return true
	}
	if err := envelope.Validate(); err != nil {
		h.drop(msg, err)
		return true
	}

	for {
		err := h.handler(ctx, envelope)
		if err == nil {
			consumerMessages.WithLabelValues(h.topic, "handled").Inc()
			return true
		}
		consumerMessages.WithLabelValues(h.topic, "retried").Inc()
		h.logger.Error("consumer handler failed",
			"event", "consumer_handler_failed",
			"module", logModule,
			"layer", "platform",
			"topic", h.topic,
			"consumer_group", h.group,
			"event_id", envelope.EventID,
			"event_type", envelope.EventType,
			"error", err.Error(),
		)
		select {
		case <-ctx.Done():
			return false
		case <-time.After(h.retryBackoff):
		}
	}
}

func (h *groupHandler) drop(msg *sarama.ConsumerMessage, err error) {
	consumerMessages.WithLabelValues(h.topic, "dropped").Inc()
	h.logger.Warn("dropping undecodable message",
		"event", "consumer_message_dropped",
		"module", logModule,
		"layer", "platform",
		"topic", h.topic,
		"consumer_group", h.group,
		"partition", msg.Partition,
		"offset", msg.Offset,
		"error", err.Error(),
	)
}
