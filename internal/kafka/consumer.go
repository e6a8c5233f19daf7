package kafka

import (
	"context"
	"errors"
	"io"

	"github.com/segmentio/kafka-go"
)

type Consumer struct {
	reader *kafka.Reader
}

func NewConsumer(brokers []string, topic, groupID string) *Consumer {
	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:  brokers,
		Topic:    topic,
		GroupID:  groupID,
		MinBytes: 10e3, // 10KB
		MaxBytes: 10e6, // 10MB
	})
	return &Consumer{reader: reader}
}

// Start consumes messages until the context is cancelled or the reader
// is closed, handing each raw payload to the handler. Handler errors are
// the handler's problem; the loop keeps going.
func (c *Consumer) Start(ctx context.Context, handler func(key, value []byte) error) error {
	for {
		msg, err := c.reader.ReadMessage(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, io.EOF) {
				return nil
			}
			return err
		}
		_ = handler(msg.Key, msg.Value)
	}
}

func (c *Consumer) Close() error {
	return c.reader.Close()
}
