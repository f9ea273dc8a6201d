package kafka

import (
	"errors"

	"github.com/Shopify/sarama"
	"go.uber.org/zap"

	"linkhub/logger"
	"linkhub/tools/errs"
)

// EnsureTopics creates missing topics and grows partition counts that are
// below cfg.Partitions. Kafka cannot shrink partitions.
func EnsureTopics(admin sarama.ClusterAdmin, cfg Config) error {
	log := logger.Named("kafka")
	minISR := "1"
	if cfg.ReplicationFactor >= 3 {
		minISR = "2"
	}
	for _, t := range cfg.Topics {
		descs, err := admin.DescribeTopics([]string{t})
		if err != nil {
			return errs.WrapMsg(err, "describe topic", "topic", t)
		}
		exists := len(descs) == 1 && descs[0].Err == sarama.ErrNoError
		if !exists {
			td := &sarama.TopicDetail{
				NumPartitions:     cfg.Partitions,
				ReplicationFactor: cfg.ReplicationFactor,
				ConfigEntries: map[string]*string{
					"cleanup.policy":                 strPtr("delete"),
					"min.insync.replicas":            strPtr(minISR),
					"unclean.leader.election.enable": strPtr("false"),
				},
			}
			if err := admin.CreateTopic(t, td, false); err != nil {
				var te *sarama.TopicError
				if (errors.As(err, &te) && te.Err == sarama.ErrTopicAlreadyExists) || errors.Is(err, sarama.ErrTopicAlreadyExists) {
					continue
				}
				return errs.WrapMsg(err, "create topic", "topic", t)
			}
			log.Info("topic created", zap.String("topic", t), zap.Int32("partitions", cfg.Partitions))
			continue
		}
		cur := int32(len(descs[0].Partitions))
		if cfg.Partitions > cur {
			if err := admin.CreatePartitions(t, cfg.Partitions, nil, false); err != nil {
				return errs.WrapMsg(err, "expand partitions", "topic", t, "from", cur, "to", cfg.Partitions)
			}
			log.Info("partitions expanded", zap.String("topic", t), zap.Int32("from", cur), zap.Int32("to", cfg.Partitions))
		}
	}
	return nil
}

func strPtr(s string) *string { return &s }
