package config

const (
	EnvMongoURI          = "MONGO_URI"
	EnvMongoDatabaseName = "MONGO_DATABASE_NAME"
	EnvMongoConnTimeout  = "MONGO_CONN_TIMEOUT"
	EnvMongoReadTimeout  = "MONGO_READ_TIMEOUT"
	EnvMongoWriteTimeout = "MONGO_WRITE_TIMEOUT"

	EnvPort     = "PORT"
	EnvLogLevel = "LOG_LEVEL"

	EnvRateLimitRequests = "RATE_LIMIT_REQUESTS"
	EnvRateLimitWindow   = "RATE_LIMIT_WINDOW"

	EnvRequestTimeout = "REQUEST_TIMEOUT"
	EnvIdempotencyTTL = "IDEMPOTENCY_TTL"
	EnvMaxRequestSize = "MAX_REQUEST_SIZE"

	EnvReadTimeout     = "READ_TIMEOUT"
	EnvWriteTimeout    = "WRITE_TIMEOUT"
	EnvIdleTimeout     = "IDLE_TIMEOUT"
	EnvShutdownTimeout = "SHUTDOWN_TIMEOUT"

	EnvPaymentGatewayBaseURL = "PAYMENT_GATEWAY_BASE_URL"
	EnvPaymentGatewayAPIKey  = "PAYMENT_GATEWAY_API_KEY"
	EnvPaymentWebhookSecret  = "PAYMENT_WEBHOOK_SECRET"
	EnvPaymentCurrency       = "PAYMENT_CURRENCY"
	EnvPaymentMinAmount      = "PAYMENT_MIN_AMOUNT"
	EnvPaymentSuccessURL     = "PAYMENT_SUCCESS_URL"
	EnvPaymentCancelURL      = "PAYMENT_CANCEL_URL"

	EnvMeetingBaseURL  = "MEETING_BASE_URL"
	EnvMeetingTokenKey = "MEETING_TOKEN_KEY"

	EnvDayStart        = "SLOT_DAY_START"
	EnvDayEnd          = "SLOT_DAY_END"
	EnvSlotDurationMin = "SLOT_DURATION_MIN"

	EnvKafkaEnabled         = "KAFKA_ENABLED"
	EnvKafkaBrokers         = "KAFKA_BROKERS"
	EnvKafkaEventsTopic     = "KAFKA_EVENTS_TOPIC"
	EnvKafkaDLQTopic        = "KAFKA_DLQ_TOPIC"
	EnvKafkaConsumerGroupID = "KAFKA_CONSUMER_GROUP_ID"
	EnvKafkaMaxAttempts     = "KAFKA_MAX_ATTEMPTS"
	EnvKafkaBatchTimeout    = "KAFKA_BATCH_TIMEOUT"
)
