package messaging

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/IBM/sarama"
)

// TopicAdmin is the subset of sarama.ClusterAdmin used for provisioning.
type TopicAdmin interface {
	ListTopics() (map[string]sarama.TopicDetail, error)
	CreateTopic(topic string, detail *sarama.TopicDetail, validateOnly bool) error
}

type TopicSpec struct {
	Name              string
	Partitions        int32
	ReplicationFactor int16
}

// EnsureTopics creates every missing topic. A topic created concurrently by
// another instance counts as success.
func EnsureTopics(ctx context.Context, admin TopicAdmin, specs []TopicSpec, logger *slog.Logger) error {
	if logger == nil {
		logger = slog.Default()
	}
	existing, err := admin.ListTopics()
	if err != nil {
		return fmt.Errorf("list topics: %w", err)
	}

	for _, spec := range specs {
		if err := ctx.Err(); err != nil {
			return err
		}
		if _, ok := existing[spec.Name]; ok {
			continue
		}
		detail := &sarama.TopicDetail{
			NumPartitions:     max(spec.Partitions, 1),
			ReplicationFactor: max(spec.ReplicationFactor, 1),
		}
		err := admin.CreateTopic(spec.Name, detail, false)
		if err != nil && !topicExists(err) {
			return fmt.Errorf("create topic %s: %w", spec.Name, err)
		}
		logger.Info("topic provisioned",
			"event", "topic_provisioned",
			"module", logModule,
			"layer", "platform",
			"topic", spec.Name,
			"partitions", detail.NumPartitions,
			"already_existed", err != nil,
		)
	}
	return nil
}

func topicExists(err error) bool {
	if errors.Is(err, sarama.ErrTopicAlreadyExists) {
		return true
	}
	var topicErr *sarama.TopicError
	return errors.As(err, &topicErr) && topicErr.Err == sarama.ErrTopicAlreadyExists
}
