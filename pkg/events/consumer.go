package events

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"psycare/pkg/logger"

	"github.com/segmentio/kafka-go"
	"github.com/segmentio/kafka-go/compress"
)

var ErrConsumerClosed = errors.New("event consumer is closed")

// Handler processes a single booking event. Returning an error marks
// the delivery as failed; transient errors are retried, everything else
// goes to the DLQ.
type Handler func(ctx context.Context, event BookingEvent) error

type ConsumerConfig struct {
	Brokers    []string
	Topic      string
	DLQTopic   string
	GroupID    string
	MaxRetries int
}

type Consumer struct {
	reader     *kafka.Reader
	dlqWriter  *kafka.Writer
	topic      string
	groupID    string
	maxRetries int
	handler    Handler
	log        *logger.Logger
	closed     bool
	mu         sync.RWMutex
	wg         sync.WaitGroup
}

func NewConsumer(cfg ConsumerConfig, handler Handler, log *logger.Logger) (*Consumer, error) {
	if len(cfg.Brokers) == 0 {
		return nil, fmt.Errorf("at least one broker is required")
	}
	if cfg.Topic == "" {
		return nil, fmt.Errorf("topic cannot be empty")
	}
	if cfg.GroupID == "" {
		return nil, fmt.Errorf("group ID cannot be empty")
	}
	if handler == nil {
		return nil, fmt.Errorf("handler cannot be nil")
	}

	maxRetries := cfg.MaxRetries
	if maxRetries <= 0 {
		maxRetries = 3
	}

	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:     cfg.Brokers,
		Topic:       cfg.Topic,
		GroupID:     cfg.GroupID,
		MinBytes:    1,
		MaxBytes:    10e6,
		MaxWait:     500 * time.Millisecond,
		StartOffset: kafka.FirstOffset,
		Logger:      kafka.LoggerFunc(func(msg string, args ...any) {}),
		ErrorLogger: kafka.LoggerFunc(func(msg string, args ...any) { log.Error(fmt.Sprintf(msg, args...)) }),
	})

	consumer := &Consumer{
		reader:     reader,
		topic:      cfg.Topic,
		groupID:    cfg.GroupID,
		maxRetries: maxRetries,
		handler:    handler,
		log:        log,
	}

	if cfg.DLQTopic != "" {
		consumer.dlqWriter = &kafka.Writer{
			Addr:         kafka.TCP(cfg.Brokers...),
			Topic:        cfg.DLQTopic,
			Balancer:     &kafka.Hash{},
			RequiredAcks: kafka.RequireAll,
			Compression:  compress.Snappy,
			MaxAttempts:  3,
			Logger:       kafka.LoggerFunc(func(msg string, args ...any) {}),
			ErrorLogger:  kafka.LoggerFunc(func(msg string, args ...any) { log.Error(fmt.Sprintf(msg, args...)) }),
		}
	}

	return consumer, nil
}

// Start blocks, consuming until the context is cancelled.
func (c *Consumer) Start(ctx context.Context) error {
	c.mu.RLock()
	if c.closed {
		c.mu.RUnlock()
		return ErrConsumerClosed
	}
	c.mu.RUnlock()

	c.wg.Add(1)
	defer c.wg.Done()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
			kafkaMsg, err := c.reader.FetchMessage(ctx)
			if err != nil {
				if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
					return err
				}
				c.log.Error("Failed to fetch message", "error", err)
				time.Sleep(1 * time.Second)
				continue
			}

			if err := c.processMessage(ctx, kafkaMsg); err != nil {
				c.log.Error("Failed to process message",
					"topic", kafkaMsg.Topic,
					"partition", kafkaMsg.Partition,
					"offset", kafkaMsg.Offset,
					"error", err,
				)
			}

			if err := c.reader.CommitMessages(ctx, kafkaMsg); err != nil {
				c.log.Error("Failed to commit offset", "error", err)
			}
		}
	}
}

func (c *Consumer) processMessage(ctx context.Context, kafkaMsg kafka.Message) error {
	var event BookingEvent
	if err := json.Unmarshal(kafkaMsg.Value, &event); err != nil {
		// Undecodable payloads can never succeed, straight to DLQ.
		return c.sendToDLQ(ctx, kafkaMsg, fmt.Errorf("failed to decode event: %w", err))
	}

	var err error
	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		err = c.handler(ctx, event)
		if err == nil {
			return nil
		}
		if !isTransient(err) {
			break
		}
		c.log.Warn("Retrying event",
			"event_id", event.EventID,
			"event_type", event.Type,
			"attempt", attempt+1,
			"error", err,
		)
	}

	return c.sendToDLQ(ctx, kafkaMsg, err)
}

func (c *Consumer) sendToDLQ(ctx context.Context, msg kafka.Message, originalErr error) error {
	if c.dlqWriter == nil {
		return originalErr
	}

	dlqMsg := kafka.Message{
		Key:   msg.Key,
		Value: msg.Value,
		Time:  time.Now(),
		Headers: append(msg.Headers,
			kafka.Header{Key: HeaderOriginalTopic, Value: []byte(c.topic)},
			kafka.Header{Key: "dlq-error", Value: []byte(originalErr.Error())},
			kafka.Header{Key: "dlq-consumer-group", Value: []byte(c.groupID)},
			kafka.Header{Key: "dlq-timestamp", Value: []byte(time.Now().Format(time.RFC3339))},
			kafka.Header{Key: HeaderRetryCount, Value: []byte(strconv.Itoa(c.maxRetries))},
		),
	}

	if err := c.dlqWriter.WriteMessages(ctx, dlqMsg); err != nil {
		return fmt.Errorf("failed to send to DLQ: %v (original error: %w)", err, originalErr)
	}

	c.log.Warn("Event routed to DLQ", "error", originalErr)
	return originalErr
}

func isTransient(err error) bool {
	msg := strings.ToLower(err.Error())
	patterns := []string{
		"connection refused",
		"timeout",
		"deadline exceeded",
		"no such host",
		"network is unreachable",
		"broken pipe",
		"connection reset",
		"i/o timeout",
		"temporary failure",
	}
	for _, pattern := range patterns {
		if strings.Contains(msg, pattern) {
			return true
		}
	}
	return false
}

func (c *Consumer) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return nil
	}
	c.closed = true

	c.wg.Wait()

	err := c.reader.Close()
	if c.dlqWriter != nil {
		if dlqErr := c.dlqWriter.Close(); err == nil {
			err = dlqErr
		}
	}
	return err
}
