package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/IBM/sarama"

	"PulseWatch/internal/domain"
)

// MessageHandler processes one message and reports whether its offset may be committed.
// Returning shouldMark=false leaves the message for redelivery.
type MessageHandler interface {
	HandleMessage(ctx context.Context, message []byte) (shouldMark bool, err error)
}

// ConsumerConfig holds Kafka consumer configuration.
type ConsumerConfig struct {
	Brokers []string
	Topic   string
	GroupID string
	Handler MessageHandler
	Logger  *slog.Logger
}

// Consumer reads candidate batches from a topic through a consumer group.
type Consumer struct {
	group   sarama.ConsumerGroup
	handler MessageHandler
	topic   string
	groupID string
	logger  *slog.Logger
	wg      sync.WaitGroup
}

// NewConsumer connects a consumer group.
func NewConsumer(cfg ConsumerConfig) (*Consumer, error) {
	if len(cfg.Brokers) == 0 || cfg.Topic == "" || cfg.GroupID == "" {
		return nil, errors.New("kafka consumer needs brokers, topic and group id")
	}
	if cfg.Handler == nil {
		return nil, errors.New("kafka consumer needs a handler")
	}

	saramaConfig := sarama.NewConfig()
	saramaConfig.Version = sarama.V3_6_0_0
	saramaConfig.Consumer.Group.Rebalance.GroupStrategies = []sarama.BalanceStrategy{sarama.NewBalanceStrategyRoundRobin()}
	saramaConfig.Consumer.Offsets.Initial = sarama.OffsetNewest
	saramaConfig.Consumer.Return.Errors = true

	group, err := sarama.NewConsumerGroup(cfg.Brokers, cfg.GroupID, saramaConfig)
	if err != nil {
		return nil, fmt.Errorf("create consumer group: %w", err)
	}
	return newConsumer(group, cfg), nil
}

func newConsumer(group sarama.ConsumerGroup, cfg ConsumerConfig) *Consumer {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Consumer{
		group:   group,
		handler: cfg.Handler,
		topic:   cfg.Topic,
		groupID: cfg.GroupID,
		logger:  logger.With("topic", cfg.Topic, "group", cfg.GroupID),
	}
}

// Start consumes in the background until ctx is cancelled or Close is called.
func (c *Consumer) Start(ctx context.Context) {
	handler := &groupHandler{handler: c.handler, logger: c.logger}

	c.wg.Add(2)
	go func() {
		defer c.wg.Done()
		for {
			if err := c.group.Consume(ctx, []string{c.topic}, handler); err != nil {
				if errors.Is(err, sarama.ErrClosedConsumerGroup) || errors.Is(err, context.Canceled) {
					return
				}
				c.logger.Error("kafka consume failed", "error", err)
			}
			if ctx.Err() != nil {
				return
			}
		}
	}()

	go func() {
		defer c.wg.Done()
		for err := range c.group.Errors() {
			c.logger.Warn("kafka consumer error", "error", err)
		}
	}()

	c.logger.Info("kafka consumer started")
}

// Close leaves the group and waits for the consume loop to exit.
func (c *Consumer) Close() error {
	err := c.group.Close()
	c.wg.Wait()
	if err != nil {
		return fmt.Errorf("close consumer group: %w", err)
	}
	return nil
}

type groupHandler struct {
	handler MessageHandler
	logger  *slog.Logger
}

func (h *groupHandler) Setup(sarama.ConsumerGroupSession) error   { return nil }
func (h *groupHandler) Cleanup(sarama.ConsumerGroupSession) error { return nil }

func (h *groupHandler) ConsumeClaim(session sarama.ConsumerGroupSession, claim sarama.ConsumerGroupClaim) error {
	for {
		select {
		case message, ok := <-claim.Messages():
			if !ok || message == nil {
				return nil
			}
			h.logger.Debug("kafka message received",
				"partition", message.Partition, "offset", message.Offset)

			shouldMark, err := h.handler.HandleMessage(session.Context(), message.Value)
			if err != nil {
				h.logger.Error("handle kafka message failed",
					"partition", message.Partition, "offset", message.Offset, "error", err)
			}
			if shouldMark {
				session.MarkMessage(message, "")
			}
		case <-session.Context().Done():
			return nil
		}
	}
}

// CandidateBatch is the message payload published by collectors.
type CandidateBatch struct {
	Candidates []domain.Candidate `json:"candidates"`
}

// IngestFunc stores a batch of candidates.
type IngestFunc func(ctx context.Context, candidates []domain.Candidate) error

// CandidateHandler decodes candidate batches and hands them to ingestion.
// Undecodable and empty messages are marked so they are not redelivered.
type CandidateHandler struct {
	Ingest IngestFunc
	Logger *slog.Logger
}

// HandleMessage implements MessageHandler.
func (h CandidateHandler) HandleMessage(ctx context.Context, message []byte) (bool, error) {
	var batch CandidateBatch
	if err := json.Unmarshal(message, &batch); err != nil {
		if h.Logger != nil {
			h.Logger.Warn("skip undecodable candidate batch", "error", err)
		}
		return true, nil
	}
	if len(batch.Candidates) == 0 {
		return true, nil
	}
	if err := h.Ingest(ctx, batch.Candidates); err != nil {
		return false, fmt.Errorf("ingest %d candidates: %w", len(batch.Candidates), err)
	}
	return true, nil
}
