package kafka

import (
	"context"
	"errors"
	"time"

	"github.com/Shopify/sarama"
	"go.uber.org/zap"

	"linkhub/logger"
	"linkhub/tools/errs"
	"linkhub/tools/safe"
)

type ConsumerGroupHandler struct {
	handlers *Handlers
	log      *zap.Logger
}

func NewConsumerGroupHandler(h *Handlers) *ConsumerGroupHandler {
	return &ConsumerGroupHandler{handlers: h, log: logger.Named("kafka")}
}

func (h *ConsumerGroupHandler) Setup(s sarama.ConsumerGroupSession) error {
	h.log.Info("consumer group setup", zap.String("member", s.MemberID()))
	return nil
}

func (h *ConsumerGroupHandler) Cleanup(sarama.ConsumerGroupSession) error {
	h.log.Info("consumer group cleanup")
	return nil
}

// ConsumeClaim stops at the first record whose handler fails with a
// retryable error, leaving its offset unmarked so the next session starts
// from it.
func (h *ConsumerGroupHandler) ConsumeClaim(session sarama.ConsumerGroupSession, claim sarama.ConsumerGroupClaim) error {
	for {
		select {
		case <-session.Context().Done():
			return nil
		case msg, ok := <-claim.Messages():
			if !ok {
				return nil
			}
			handler, found := h.handlers.Get(msg.Topic)
			if !found {
				h.log.Warn("no handler for topic", zap.String("topic", msg.Topic))
				session.MarkMessage(msg, "")
				continue
			}
			if err := handler(session.Context(), msg); err != nil {
				fields := []zap.Field{zap.String("topic", msg.Topic), zap.Int32("partition", msg.Partition),
					zap.Int64("offset", msg.Offset), zap.Error(err)}
				if !errors.Is(err, errs.ErrArgs) {
					h.log.Warn("record failed, will retry", fields...)
					return err
				}
				h.log.Warn("dropping malformed record", fields...)
			}
			session.MarkMessage(msg, "")
		}
	}
}

// StartConsumerGroup consumes every topic registered in handlers until ctx
// ends.
func StartConsumerGroup(ctx context.Context, cfg Config, handlers *Handlers) error {
	topics := handlers.Topics()
	if len(topics) == 0 {
		return errs.ErrArgs.WrapMsg("kafka consumer without handlers", "group", cfg.GroupID)
	}
	scfg, err := BuildBaseConfig(cfg)
	if err != nil {
		return err
	}
	group, err := sarama.NewConsumerGroup(cfg.Brokers, cfg.GroupID, scfg)
	if err != nil {
		return errs.WrapMsg(err, "kafka consumer group", "group", cfg.GroupID)
	}
	defer group.Close()

	log := logger.Named("kafka")
	safe.Go("kafka_group_errors", func() {
		for err := range group.Errors() {
			log.Warn("consumer group error", zap.Error(err))
		}
	})

	handler := NewConsumerGroupHandler(handlers)
	for ctx.Err() == nil {
		if err := group.Consume(ctx, topics, handler); err != nil {
			if errors.Is(err, sarama.ErrClosedConsumerGroup) {
				return nil
			}
			log.Warn("consume error", zap.Error(err))
			select {
			case <-ctx.Done():
			case <-time.After(time.Second):
			}
		}
	}
	return nil
}
