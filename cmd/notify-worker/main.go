package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"church-connect/internal/config"
	"church-connect/internal/kafka"
	"church-connect/internal/logger"
	"church-connect/internal/models"
	"church-connect/internal/notify"
)

// The worker drains the notice topics and delivers each message through
// the configured notifier. Delivery stays best-effort: a bad payload or
// a failed send is logged and the loop moves on.
func main() {
	if err := godotenv.Load(); err != nil {
		fmt.Println("No .env file found, relying on environment")
	}
	cfg := config.Load()

	log := logger.NewLogger("notify-worker")
	defer log.Close()

	var notifier notify.Notifier
	if cfg.Email.Enabled {
		notifier = notify.NewSMTPNotifier(cfg.Email)
		log.Info("NOTIFY", "Delivering notices via SMTP "+cfg.Email.SMTPHost)
	} else {
		notifier = notify.NewConsoleNotifier(func(format string, args ...interface{}) {
			log.Info("NOTIFY", fmt.Sprintf(format, args...))
		})
		log.Info("NOTIFY", "Email disabled, delivering notices to the console")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	rsvpConsumer := kafka.NewConsumer(cfg.Kafka.Brokers, cfg.Kafka.Topics.RSVPNotices, cfg.Kafka.GroupID)
	cancellationConsumer := kafka.NewConsumer(cfg.Kafka.Brokers, cfg.Kafka.Topics.CancellationNotices, cfg.Kafka.GroupID)
	defer rsvpConsumer.Close()
	defer cancellationConsumer.Close()

	go func() {
		err := rsvpConsumer.Start(ctx, func(key, value []byte) error {
			var notice models.RSVPNotice
			if err := json.Unmarshal(value, &notice); err != nil {
				log.Warn("NOTIFY", fmt.Sprintf("Bad rsvp notice payload: %v", err))
				return err
			}
			if err := notifier.NotifyRSVP(notice); err != nil {
				log.Error("NOTIFY", fmt.Sprintf("Failed to deliver rsvp notice to %s: %v", notice.Email, err))
				return err
			}
			return nil
		})
		if err != nil {
			log.Error("NOTIFY", fmt.Sprintf("RSVP consumer stopped: %v", err))
		}
	}()

	go func() {
		err := cancellationConsumer.Start(ctx, func(key, value []byte) error {
			var notice models.CancellationNotice
			if err := json.Unmarshal(value, &notice); err != nil {
				log.Warn("NOTIFY", fmt.Sprintf("Bad cancellation notice payload: %v", err))
				return err
			}
			if err := notifier.NotifyCancellation(notice); err != nil {
				log.Error("NOTIFY", fmt.Sprintf("Failed to deliver cancellation notice to %s: %v", notice.Email, err))
				return err
			}
			return nil
		})
		if err != nil {
			log.Error("NOTIFY", fmt.Sprintf("Cancellation consumer stopped: %v", err))
		}
	}()

	log.Info("NOTIFY", "Notify worker consuming")

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info("NOTIFY", "Shutdown signal received")
	cancel()
}
