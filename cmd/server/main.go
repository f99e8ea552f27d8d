package main

import (
	"github.com/joho/godotenv"

	bookinghandler "psycare/internal/bookings/handler"
	bookingrepo "psycare/internal/bookings/repository"
	bookingservice "psycare/internal/bookings/service"
	bookingvalidator "psycare/internal/bookings/validator"
	carehandler "psycare/internal/care/handler"
	carerepo "psycare/internal/care/repository"
	careservice "psycare/internal/care/service"
	doctorhandler "psycare/internal/doctors/handler"
	doctorrepo "psycare/internal/doctors/repository"
	doctorservice "psycare/internal/doctors/service"
	doctorvalidator "psycare/internal/doctors/validator"
	"psycare/internal/messaging/registry"
	"psycare/internal/payments/gateway"
	paymenthandler "psycare/internal/payments/handler"
	paymentservice "psycare/internal/payments/service"
	reviewhandler "psycare/internal/reviews/handler"
	reviewrepo "psycare/internal/reviews/repository"
	reviewservice "psycare/internal/reviews/service"
	reviewvalidator "psycare/internal/reviews/validator"
	"psycare/pkg/app"
	"psycare/pkg/config"
	"psycare/pkg/contracts"
	"psycare/pkg/events"
	"psycare/pkg/sealer"
)

const ServiceName = "psycare-server"

func main() {
	_ = godotenv.Load()

	cfg := config.Load(ServiceName)
	cfg.SetMongo()

	cfg.Log.Info("Starting psycare server")

	publisher := initPublisher(cfg)
	webhookHandler, apiHandlers := initHandlers(cfg, publisher)

	serverApp := app.NewApplication(cfg)
	serverApp.SetApp(webhookHandler, apiHandlers...)
	serverApp.OnShutdown(func() {
		if err := publisher.Close(); err != nil {
			cfg.Log.Error("Failed to close event publisher", "error", err)
		}
	})
	serverApp.Run()
}

func initPublisher(cfg *config.Config) events.Publisher {
	if !cfg.KafkaEnabled {
		cfg.Log.Info("Kafka disabled, booking events will not be published")
		return events.NopPublisher{}
	}

	publisher, err := events.NewKafkaPublisher(events.PublisherConfig{
		Brokers:      cfg.KafkaBrokers,
		Topic:        cfg.KafkaEventsTopic,
		DLQTopic:     cfg.KafkaDLQTopic,
		Source:       ServiceName,
		MaxAttempts:  cfg.KafkaMaxAttempts,
		BatchTimeout: cfg.KafkaBatchTimeout,
	}, cfg.Log)
	if err != nil {
		cfg.Log.Fatal("Failed to create Kafka publisher", "error", err)
	}
	return publisher
}

func initHandlers(cfg *config.Config, publisher events.Publisher) (contracts.Handler, []contracts.Handler) {
	bookingRepo := bookingrepo.NewMongoBookingRepository(cfg)
	lockRepo := bookingrepo.NewSlotLockRepository(cfg)
	bookingSvc := bookingservice.NewBookingService(
		bookingRepo,
		lockRepo,
		bookingvalidator.NewBookingValidator(cfg.Log),
		publisher,
		cfg,
	)

	checkout := paymentservice.NewCheckoutService(gateway.NewHTTPGateway(cfg), bookingRepo, cfg)
	reconciler := paymentservice.NewReconciler(bookingRepo, initSealer(cfg), publisher, cfg)

	doctorSvc := doctorservice.NewDoctorService(
		doctorrepo.NewMongoDoctorRepository(cfg),
		doctorvalidator.NewDoctorValidator(cfg.Log),
		cfg,
	)
	careSvc := careservice.NewPatientCareService(carerepo.NewMongoPatientCareRepository(cfg), cfg)

	reviewSvc := reviewservice.NewReviewService(
		reviewrepo.NewMongoReviewRepository(cfg),
		bookingRepo,
		reviewvalidator.NewReviewValidator(cfg.Log),
		cfg,
	)

	cfg.Log.Info("Services initialized", "database", cfg.MongoDatabaseName)

	apiHandlers := []contracts.Handler{
		bookinghandler.NewBookingHandler(bookingSvc, checkout, cfg.Log),
		doctorhandler.NewDoctorHandler(doctorSvc, cfg.Log),
		carehandler.NewPatientCareHandler(careSvc, cfg.Log),
		reviewhandler.NewReviewHandler(reviewSvc, cfg.Log),
		registry.NewHandler(registry.New(), cfg.Log),
	}
	return paymenthandler.NewWebhookHandler(reconciler, cfg.Log), apiHandlers
}

func initSealer(cfg *config.Config) *sealer.Sealer {
	if cfg.MeetingTokenKey == "" {
		cfg.Log.Warn("MEETING_TOKEN_KEY not set, falling back to random meeting links")
		return nil
	}
	s, err := sealer.New(cfg.MeetingTokenKey)
	if err != nil {
		cfg.Log.Warn("Invalid MEETING_TOKEN_KEY, falling back to random meeting links", "error", err)
		return nil
	}
	return s
}
