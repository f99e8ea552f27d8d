package main

import (
	"context"
	"errors"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"psycare/pkg/config"
	"psycare/pkg/events"
	"psycare/pkg/logger"
)

const ServiceName = "psycare-notifier"

// The notifier consumes booking events and delivers notifications to
// patients and doctors. Delivery is log-based for now; the consumer
// loop, retry and DLQ handling are the part that matters.
func main() {
	_ = godotenv.Load()

	cfg := config.Load(ServiceName)

	if !cfg.KafkaEnabled {
		cfg.Log.Fatal("KAFKA_ENABLED must be true for the notifier")
	}

	consumer, err := events.NewConsumer(events.ConsumerConfig{
		Brokers:    cfg.KafkaBrokers,
		Topic:      cfg.KafkaEventsTopic,
		DLQTopic:   cfg.KafkaDLQTopic,
		GroupID:    cfg.KafkaGroupID,
		MaxRetries: cfg.KafkaMaxAttempts,
	}, notify(cfg.Log), cfg.Log)
	if err != nil {
		cfg.Log.Fatal("Failed to create event consumer", "error", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg.Log.Info("Notifier started", "topic", cfg.KafkaEventsTopic, "group", cfg.KafkaGroupID)

	if err := consumer.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
		cfg.Log.Error("Consumer stopped with error", "error", err)
	}

	if err := consumer.Close(); err != nil {
		cfg.Log.Error("Failed to close consumer", "error", err)
	}
	cfg.Log.Info("Notifier stopped")
}

func notify(log *logger.Logger) events.Handler {
	return func(ctx context.Context, event events.BookingEvent) error {
		switch event.Type {
		case events.TypeBookingApproved:
			log.Info("Notifying patient and doctor of confirmed appointment",
				"booking_id", event.BookingID,
				"patient_id", event.PatientID,
				"doctor_id", event.DoctorID,
				"date", event.Date,
				"time", event.Time,
			)
		case events.TypePaymentFailed:
			log.Info("Notifying patient of failed payment",
				"booking_id", event.BookingID,
				"patient_id", event.PatientID,
			)
		case events.TypeBookingCancelled:
			log.Info("Notifying doctor of cancelled appointment",
				"booking_id", event.BookingID,
				"doctor_id", event.DoctorID,
				"date", event.Date,
				"time", event.Time,
			)
		case events.TypeBookingNeedsReview:
			log.Warn("Booking flagged for manual review",
				"booking_id", event.BookingID,
				"patient_id", event.PatientID,
			)
		default:
			log.Debug("No notification configured for event", "type", event.Type, "booking_id", event.BookingID)
		}
		return nil
	}
}
