package workers_test

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"courier/contexts/notifications/orders-service/adapters/memory"
	"courier/contexts/notifications/orders-service/application/commands"
	"courier/contexts/notifications/orders-service/domain/entities"
	"courier/contexts/notifications/orders-service/ports"

	"github.com/stretchr/testify/require"
)

type fixedClock struct {
	now time.Time
}

func (c fixedClock) Now() time.Time {
	return c.now
}

// recordingPublisher keeps every handed-off message per topic. Messages
// rejected by reject are reported unpublished.
type recordingPublisher struct {
	mu        sync.Mutex
	published map[string][]string
	reject    func(topic string, message string) bool
	calls     int
}

func newRecordingPublisher() *recordingPublisher {
	return &recordingPublisher{published: make(map[string][]string)}
}

func (p *recordingPublisher) Publish(_ context.Context, topic string, messages []string) (ports.PublishResult, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.calls++

	result := ports.PublishResult{}
	for _, message := range messages {
		if p.reject != nil && p.reject(topic, message) {
			result.Unpublished = append(result.Unpublished, message)
			continue
		}
		p.published[topic] = append(p.published[topic], message)
		result.Published = append(result.Published, message)
	}
	return result, nil
}

func (p *recordingPublisher) envelopes(t *testing.T, topic string) []ports.EventEnvelope {
	t.Helper()
	p.mu.Lock()
	defer p.mu.Unlock()

	envelopes := make([]ports.EventEnvelope, 0, len(p.published[topic]))
	for _, message := range p.published[topic] {
		var envelope ports.EventEnvelope
		require.NoError(t, json.Unmarshal([]byte(message), &envelope))
		envelopes = append(envelopes, envelope)
	}
	return envelopes
}

func emailSettings() entities.EmailSettings {
	return entities.EmailSettings{Subject: "Subject", Body: "Body"}
}

func smsSettings() entities.SmsSettings {
	return entities.SmsSettings{Body: "Body"}
}

func admitChain(t *testing.T, store *memory.Store, idempotencyID string, recipient entities.RecipientSpec) entities.TrackingHandle {
	t.Helper()
	result, err := commands.CreateOrderChainUseCase{
		Orders:      store,
		Clock:       store,
		IDGenerator: store,
	}.Execute(context.Background(), commands.CreateOrderChainCommand{
		Request: entities.ChainRequest{
			Creator:       "org-1",
			IdempotencyID: idempotencyID,
			Recipient:     recipient,
		},
	})
	require.NoError(t, err)
	require.True(t, result.Created)
	return result.Handle
}

func emailRecipient(address string) entities.RecipientSpec {
	return entities.RecipientSpec{
		Email: &entities.RecipientEmail{EmailAddress: address, Settings: emailSettings()},
	}
}

func soon() fixedClock {
	return fixedClock{now: time.Now().UTC().Add(time.Minute)}
}
