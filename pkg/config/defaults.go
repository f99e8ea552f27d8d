package config

import "time"

const (
	DefaultMongoURI          = "mongodb://localhost:27017"
	DefaultMongoDatabaseName = "psycare"
	DefaultMongoConnTimeout  = 10 * time.Second
	DefaultMongoReadTimeout  = 5 * time.Second
	DefaultMongoWriteTimeout = 5 * time.Second

	DefaultPort     = "8080"
	DefaultLogLevel = "info"

	DefaultRateLimitRequests = 30
	DefaultRateLimitWindow   = 1 * time.Minute

	DefaultRequestTimeout = 30 * time.Second
	DefaultIdempotencyTTL = 24 * time.Hour
	DefaultMaxRequestSize = 1 * 1024 * 1024 // 1MB

	DefaultReadTimeout     = 15 * time.Second
	DefaultWriteTimeout    = 15 * time.Second
	DefaultIdleTimeout     = 60 * time.Second
	DefaultShutdownTimeout = 30 * time.Second

	DefaultPaymentGatewayBaseURL = "https://api.checkout.localhost"
	DefaultPaymentCurrency       = "usd"
	DefaultPaymentMinAmount      = 50.0
	DefaultPaymentSuccessURL     = "http://localhost:5173/booking-success"
	DefaultPaymentCancelURL      = "http://localhost:5173/booking-cancelled"

	DefaultMeetingBaseURL = "http://localhost:5173/meet"

	DefaultDayStart        = "09:00"
	DefaultDayEnd          = "17:00"
	DefaultSlotDurationMin = 60

	DefaultKafkaEnabled      = false
	DefaultKafkaBrokers      = "localhost:9092"
	DefaultKafkaEventsTopic  = "psycare.booking.events"
	DefaultKafkaDLQTopic     = "psycare.booking.events.dlq"
	DefaultKafkaGroupID      = "psycare-notifier"
	DefaultKafkaMaxAttempts  = 3
	DefaultKafkaBatchTimeout = 10 * time.Millisecond

	DefaultPaginationLimit = 100
)
