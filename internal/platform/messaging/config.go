package messaging

import (
	"encoding/json"
	"time"

	"courier/internal/platform/config"

	"github.com/IBM/sarama"
)

// NewSaramaConfig builds the client configuration shared by the producer,
// the admin client and the consumer group. Acknowledgment, idempotence and
// retry settings are fixed here and not exposed to callers.
func NewSaramaConfig(cfg config.KafkaConfig) *sarama.Config {
	sc := sarama.NewConfig()
	sc.ClientID = cfg.ClientID
	sc.Version = sarama.V2_1_0_0

	sc.Producer.RequiredAcks = sarama.WaitForAll
	sc.Producer.Idempotent = true
	sc.Net.MaxOpenRequests = 1
	sc.Producer.Retry.Max = max(cfg.RetryMax, 1)
	sc.Producer.Retry.Backoff = cfg.RetryBackoff
	if sc.Producer.Retry.Backoff <= 0 {
		sc.Producer.Retry.Backoff = 250 * time.Millisecond
	}
	sc.Producer.Return.Successes = true
	sc.Producer.Return.Errors = true
	sc.Producer.Partitioner = sarama.NewHashPartitioner

	sc.Consumer.Return.Errors = true
	sc.Consumer.Offsets.Initial = sarama.OffsetOldest
	sc.Consumer.Group.Rebalance.GroupStrategies = []sarama.BalanceStrategy{sarama.NewBalanceStrategySticky()}
	return sc
}

// EnvelopePartitionKey keys a serialized envelope by its partition_key so
// every work unit of one order lands on the same partition.
func EnvelopePartitionKey(message string) string {
	var keyed struct {
		PartitionKey string `json:"partition_key"`
	}
	if err := json.Unmarshal([]byte(message), &keyed); err != nil {
		return ""
	}
	return keyed.PartitionKey
}
