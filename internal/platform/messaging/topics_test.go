package messaging

import (
	"context"
	"testing"

	"github.com/IBM/sarama"
	"github.com/stretchr/testify/require"
)

type fakeAdmin struct {
	existing map[string]sarama.TopicDetail
	racing   map[string]bool
	created  []string
}

func (a *fakeAdmin) ListTopics() (map[string]sarama.TopicDetail, error) {
	return a.existing, nil
}

func (a *fakeAdmin) CreateTopic(topic string, detail *sarama.TopicDetail, _ bool) error {
	if a.racing[topic] {
		return &sarama.TopicError{Err: sarama.ErrTopicAlreadyExists}
	}
	a.created = append(a.created, topic)
	a.existing[topic] = *detail
	return nil
}

func TestEnsureTopicsCreatesOnlyMissingTopics(t *testing.T) {
	admin := &fakeAdmin{existing: map[string]sarama.TopicDetail{
		"courier.email.queue": {NumPartitions: 3},
	}}

	err := EnsureTopics(context.Background(), admin, []TopicSpec{
		{Name: "courier.email.queue", Partitions: 3, ReplicationFactor: 1},
		{Name: "courier.sms.queue", Partitions: 6, ReplicationFactor: 1},
	}, nil)
	require.NoError(t, err)
	require.Equal(t, []string{"courier.sms.queue"}, admin.created)
	require.Equal(t, int32(6), admin.existing["courier.sms.queue"].NumPartitions)
}

func TestEnsureTopicsToleratesConcurrentCreation(t *testing.T) {
	admin := &fakeAdmin{
		existing: map[string]sarama.TopicDetail{},
		racing:   map[string]bool{"courier.orders.pastdue": true},
	}

	err := EnsureTopics(context.Background(), admin, []TopicSpec{
		{Name: "courier.orders.pastdue"},
		{Name: "courier.email.status"},
	}, nil)
	require.NoError(t, err)
	require.Equal(t, []string{"courier.email.status"}, admin.created)
	require.Equal(t, int16(1), admin.existing["courier.email.status"].ReplicationFactor)
}

func TestEnsureTopicsSurfacesOtherFailures(t *testing.T) {
	admin := &failingAdmin{}
	err := EnsureTopics(context.Background(), admin, []TopicSpec{{Name: "courier.sms.status"}}, nil)
	require.Error(t, err)
	require.Contains(t, err.Error(), "create topic courier.sms.status")
}

type failingAdmin struct{}

func (failingAdmin) ListTopics() (map[string]sarama.TopicDetail, error) {
	return map[string]sarama.TopicDetail{}, nil
}

func (failingAdmin) CreateTopic(string, *sarama.TopicDetail, bool) error {
	return &sarama.TopicError{Err: sarama.ErrClusterAuthorizationFailed}
}
