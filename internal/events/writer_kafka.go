package events

import (
	"context"
	"encoding/json"

	"github.com/IBM/sarama"
	cloudevents "github.com/cloudevents/sdk-go/v2"
)

// KafkaWriter publishes cloudevents to a kafka topic. The event subject (the
// realtime channel) becomes the message key so all events of one channel land
// on the same partition.
type KafkaWriter struct {
	producer sarama.SyncProducer
}

func NewKafkaWriter(brokers []string, clientID string) (*KafkaWriter, error) {
	cfg := sarama.NewConfig()
	cfg.ClientID = clientID
	cfg.Producer.Return.Successes = true
	cfg.Producer.RequiredAcks = sarama.WaitForLocal

	producer, err := sarama.NewSyncProducer(brokers, cfg)
	if err != nil {
		return nil, err
	}

	return &KafkaWriter{producer: producer}, nil
}

func (w *KafkaWriter) Write(ctx context.Context, topic string, e cloudevents.Event) error {
	msg, err := NewProducerMessage(topic, e)
	if err != nil {
		return err
	}

	_, _, err = w.producer.SendMessage(msg)
	return err
}

func (w *KafkaWriter) Close(_ context.Context) error {
	return w.producer.Close()
}

// NewProducerMessage converts a cloudevent into a sarama message keyed by the
// event subject.
func NewProducerMessage(topic string, e cloudevents.Event) (*sarama.ProducerMessage, error) {
	data, err := json.Marshal(e)
	if err != nil {
		return nil, err
	}

	return &sarama.ProducerMessage{
		Topic: topic,
		Key:   sarama.StringEncoder(e.Subject()),
		Value: sarama.ByteEncoder(data),
	}, nil
}
