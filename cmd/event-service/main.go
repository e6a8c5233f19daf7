package main

import (
	"context"
	"database/sql"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-redis/redis/v8"
	"github.com/joho/godotenv"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/driver/pgdriver"

	"church-connect/internal/config"
	"church-connect/internal/events"
	events_api "church-connect/internal/events/api"
	events_db "church-connect/internal/events/db"
	"church-connect/internal/kafka"
	"church-connect/internal/logger"
	"church-connect/internal/notify"
	"church-connect/internal/rsvp"
	rsvp_api "church-connect/internal/rsvp/api"
	rsvp_db "church-connect/internal/rsvp/db"
	rediswrap "church-connect/internal/rsvp/redis"
	"church-connect/internal/utils"
)

func main() {
	ctx := context.Background()

	if err := godotenv.Load(); err != nil {
		fmt.Println("No .env file found, relying on environment")
	}
	cfg := config.Load()

	log := logger.NewLogger("event-service")
	defer log.Close()

	// --- PostgreSQL ---
	connector := pgdriver.NewConnector(pgdriver.WithDSN(cfg.Database.DSN))
	sqldb := sql.OpenDB(connector)
	sqldb.SetMaxOpenConns(cfg.Database.MaxOpenConns)
	sqldb.SetMaxIdleConns(cfg.Database.MaxIdleConns)
	sqldb.SetConnMaxLifetime(cfg.Database.MaxLifetime)
	defer sqldb.Close()

	if err := sqldb.Ping(); err != nil {
		log.Fatal("DATABASE", fmt.Sprintf("Failed to connect to Postgres: %v", err))
	}

	bunDB := bun.NewDB(sqldb, pgdialect.New())
	events_db.Migrate(bunDB)

	// --- Redis ---
	redisClient := redis.NewClient(&redis.Options{
		Addr: cfg.Redis.Addr,
	})
	if err := redisClient.Ping(ctx).Err(); err != nil {
		log.Fatal("REDIS", fmt.Sprintf("Failed to connect to Redis: %v", err))
	}

	// --- Notification transport ---
	var publisher notify.Publisher
	if cfg.Kafka.Enabled {
		topics := []string{cfg.Kafka.Topics.RSVPNotices, cfg.Kafka.Topics.CancellationNotices}
		if err := kafka.EnsureTopicsExist(cfg.Kafka.Brokers, topics); err != nil {
			log.Warn("KAFKA", fmt.Sprintf("Topic bootstrap failed: %v", err))
		}
		publisher = kafka.NewProducer(cfg.Kafka.Brokers, cfg.Kafka.Topics.RSVPNotices, cfg.Kafka.Topics.CancellationNotices)
	} else {
		log.Warn("KAFKA", "Kafka disabled, notices go to the log only")
		publisher = notify.NewLogPublisher(log)
	}
	rsvpStore := &rsvp_db.DB{Bun: bunDB}
	dispatcher := notify.NewDispatcher(publisher, rsvpStore, log)

	// --- Services ---
	clock := utils.SystemClock{}
	eventLock := rediswrap.NewLock(redisClient, log)

	rsvpService := rsvp.NewService(rsvpStore, eventLock, dispatcher, clock, log)
	eventService := events.NewService(&events_db.DB{Bun: bunDB}, eventLock, dispatcher, clock, log)

	rsvpHandler := &rsvp_api.Handler{RSVPService: rsvpService}
	eventHandler := &events_api.Handler{EventService: eventService}

	// --- Router ---
	r := chi.NewRouter()

	r.Post("/api/v1/events", eventHandler.CreateEvent)
	r.Get("/api/v1/events", eventHandler.ListEvents)
	r.Get("/api/v1/events/{eventID}", eventHandler.GetEvent)
	r.Put("/api/v1/events/{eventID}", eventHandler.UpdateEvent)
	r.Delete("/api/v1/events/{eventID}", eventHandler.DeleteEvent)
	r.Post("/api/v1/events/{eventID}/cancel", eventHandler.CancelEvent)

	r.Post("/api/v1/events/{eventID}/rsvps", rsvpHandler.ClaimEvent)
	r.Delete("/api/v1/events/{eventID}/rsvps/{memberID}", rsvpHandler.CancelClaim)

	server := &http.Server{
		Addr:         cfg.Server.Port,
		Handler:      r,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	go func() {
		log.Info("SERVER", "Event service running on "+cfg.Server.Port)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("SERVER", fmt.Sprintf("HTTP server error: %v", err))
		}
	}()

	// --- Graceful shutdown ---
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info("SERVER", "Shutdown signal received, cleaning up")

	ctxShutdown, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := server.Shutdown(ctxShutdown); err != nil {
		log.Error("SERVER", fmt.Sprintf("Forced shutdown: %v", err))
	}

	// Let in-flight notices reach the transport before it closes.
	dispatcher.Wait()
	if producer, ok := publisher.(*kafka.Producer); ok {
		producer.Close()
	}

	log.Info("SERVER", "Server exited gracefully")
}
