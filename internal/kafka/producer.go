package kafka

import (
	"context"
	"encoding/json"

	"church-connect/internal/models"

	"github.com/segmentio/kafka-go"
)

type Producer struct {
	rsvpWriter         *kafka.Writer
	cancellationWriter *kafka.Writer
}

func NewProducer(brokers []string, rsvpTopic, cancellationTopic string) *Producer {
	return &Producer{
		rsvpWriter: kafka.NewWriter(kafka.WriterConfig{
			Brokers: brokers,
			Topic:   rsvpTopic,
		}),
		cancellationWriter: kafka.NewWriter(kafka.WriterConfig{
			Brokers: brokers,
			Topic:   cancellationTopic,
		}),
	}
}

// PublishRSVPNotice streams a claim-outcome notice to the rsvp topic,
// keyed by event so notices for one event stay ordered.
func (p *Producer) PublishRSVPNotice(notice models.RSVPNotice) error {
	msgBytes, err := json.Marshal(notice)
	if err != nil {
		return err
	}

	return p.rsvpWriter.WriteMessages(context.Background(),
		kafka.Message{
			Key:   []byte(notice.EventID),
			Value: msgBytes,
		},
	)
}

// PublishCancellationNotice streams one attendee's cancellation notice.
func (p *Producer) PublishCancellationNotice(notice models.CancellationNotice) error {
	msgBytes, err := json.Marshal(notice)
	if err != nil {
		return err
	}

	return p.cancellationWriter.WriteMessages(context.Background(),
		kafka.Message{
			Key:   []byte(notice.EventID),
			Value: msgBytes,
		},
	)
}

func (p *Producer) Close() error {
	if err := p.rsvpWriter.Close(); err != nil {
		return err
	}
	return p.cancellationWriter.Close()
}
