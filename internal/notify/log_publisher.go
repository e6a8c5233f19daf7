package notify

import (
	"fmt"

	"church-connect/internal/logger"
	"church-connect/internal/models"
)

// LogPublisher stands in for Kafka when KAFKA_ENABLED=false. Notices go
// to the log instead of a topic.
type LogPublisher struct {
	Logger *logger.Logger
}

func NewLogPublisher(log *logger.Logger) *LogPublisher {
	return &LogPublisher{Logger: log}
}

func (p *LogPublisher) PublishRSVPNotice(notice models.RSVPNotice) error {
	p.Logger.LogNotify("RSVP", "log-only", fmt.Sprintf("%s -> %s (%s)", notice.EventTitle, notice.Email, notice.Status))
	return nil
}

func (p *LogPublisher) PublishCancellationNotice(notice models.CancellationNotice) error {
	p.Logger.LogNotify("CANCELLATION", "log-only", fmt.Sprintf("%s -> %s", notice.EventTitle, notice.Email))
	return nil
}
