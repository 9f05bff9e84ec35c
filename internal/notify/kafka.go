package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/IBM/sarama"
)

// KafkaNotifier publishes each event as JSON on the topic <prefix><kind>,
// keyed by subject so events about one lease or payment stay ordered.
type KafkaNotifier struct {
	producer sarama.SyncProducer
	prefix   string
}

func NewKafkaNotifier(producer sarama.SyncProducer, topicPrefix string) *KafkaNotifier {
	return &KafkaNotifier{producer: producer, prefix: topicPrefix}
}

// DialKafka connects a sync producer, retrying while the brokers come up.
func DialKafka(ctx context.Context, brokers []string, attempts int) (sarama.SyncProducer, error) {
	config := sarama.NewConfig()
	config.Producer.Return.Successes = true
	config.Producer.RequiredAcks = sarama.WaitForAll

	var err error

	for i := 1; i <= attempts; i++ {
		var producer sarama.SyncProducer

		producer, err = sarama.NewSyncProducer(brokers, config)
		if err == nil {
			return producer, nil
		}

		slog.Warn("waiting for kafka", "attempt", i, "of", attempts, "error", err)

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(2 * time.Second):
		}
	}

	return nil, fmt.Errorf("connecting kafka producer: %w", err)
}

func (n *KafkaNotifier) Topic(k Kind) string {
	return n.prefix + string(k)
}

func (n *KafkaNotifier) Notify(_ context.Context, e Event) error {
	data, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("marshaling %s event: %w", e.Kind, err)
	}

	msg := &sarama.ProducerMessage{
		Topic: n.Topic(e.Kind),
		Key:   sarama.StringEncoder(e.SubjectID.String()),
		Value: sarama.ByteEncoder(data),
	}

	if _, _, err := n.producer.SendMessage(msg); err != nil {
		return fmt.Errorf("publishing %s event: %w", e.Kind, err)
	}

	return nil
}

func (n *KafkaNotifier) Close() error {
	return n.producer.Close()
}
