package events

import (
	"context"
	"strconv"
	"time"

	"github.com/rs/zerolog"
	"github.com/segmentio/kafka-go"
)

// MessageWriter is the subset of *kafka.Writer the forwarder needs.
type MessageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// NewKafkaWriter builds a writer that keys messages by tenant so one salon's
// events stay ordered within a partition.
func NewKafkaWriter(brokers []string, topic string) *kafka.Writer {
	return &kafka.Writer{
		Addr:                   kafka.TCP(brokers...),
		Topic:                  topic,
		Balancer:               &kafka.Hash{},
		RequiredAcks:           kafka.RequireAll,
		AllowAutoTopicCreation: true,
		BatchTimeout:           50 * time.Millisecond,
	}
}

// KafkaForwarder republishes bus events to a Kafka topic.
type KafkaForwarder struct {
	writer  MessageWriter
	logger  *zerolog.Logger
	timeout time.Duration
}

func NewKafkaForwarder(writer MessageWriter, logger *zerolog.Logger) *KafkaForwarder {
	return &KafkaForwarder{writer: writer, logger: logger, timeout: 5 * time.Second}
}

// Attach subscribes the forwarder to every reservation event on bus.
func (f *KafkaForwarder) Attach(bus *EventBus) {
	bus.Subscribe(f.Handle, AllTypes...)
}

// Handle writes one event. The message key is the tenant id.
func (f *KafkaForwarder) Handle(ctx context.Context, e Event) error {
	key := e.ID
	if p, err := e.Decode(); err == nil {
		key = strconv.FormatInt(p.TenantID, 10)
	}

	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), f.timeout)
	defer cancel()

	err := f.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(key),
		Value: e.Payload,
		Time:  e.CreatedAt,
		Headers: []kafka.Header{
			{Key: "event_id", Value: []byte(e.ID)},
			{Key: "event_type", Value: []byte(e.Type)},
		},
	})
	if err != nil {
		return err
	}
	f.logger.Debug().Str("event_type", e.Type).Str("event_id", e.ID).Msg("event forwarded to kafka")
	return nil
}

func (f *KafkaForwarder) Close() error {
	return f.writer.Close()
}
