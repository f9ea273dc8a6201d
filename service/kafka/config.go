package kafka

import (
	"strings"
	"time"

	"github.com/Shopify/sarama"

	"linkhub/tools/errs"
)

type Config struct {
	Enabled           bool     `json:"enabled"`
	Brokers           []string `json:"brokers"`
	GroupID           string   `json:"group_id"`
	Topics            []string `json:"topics"`
	InitialOffset     string   `json:"initial_offset"` // newest/oldest
	Version           string   `json:"version"`
	Compression       string   `json:"compression"` // none/snappy/lz4/zstd
	Retries           int      `json:"retries"`
	EnsureTopics      bool     `json:"ensure_topics"`
	Partitions        int32    `json:"partitions"`
	ReplicationFactor int16    `json:"replication_factor"`
}

func DefaultConfig() Config {
	return Config{
		Brokers:           []string{"127.0.0.1:9092"},
		GroupID:           "linkhub-events",
		Topics:            []string{"linkhub.events"},
		InitialOffset:     "newest",
		Version:           "2.1.0",
		Compression:       "snappy",
		Retries:           5,
		Partitions:        8,
		ReplicationFactor: 1,
	}
}

func BuildBaseConfig(c Config) (*sarama.Config, error) {
	cfg := sarama.NewConfig()
	cfg.ClientID = "linkhub"
	if c.Version != "" {
		v, err := sarama.ParseKafkaVersion(c.Version)
		if err != nil {
			return nil, errs.ErrArgs.WrapMsg("bad kafka version", "version", c.Version)
		}
		cfg.Version = v
	} else {
		cfg.Version = sarama.V2_1_0_0
	}

	cfg.Producer.Return.Successes = true
	cfg.Producer.Return.Errors = true
	cfg.Producer.RequiredAcks = sarama.WaitForAll
	cfg.Producer.Retry.Max = c.Retries
	if cfg.Producer.Retry.Max <= 0 {
		cfg.Producer.Retry.Max = 1
	}
	// the key selects the partition, so one event id always lands on the same partition
	cfg.Producer.Partitioner = sarama.NewHashPartitioner
	switch strings.ToLower(c.Compression) {
	case "snappy":
		cfg.Producer.Compression = sarama.CompressionSnappy
	case "lz4":
		cfg.Producer.Compression = sarama.CompressionLZ4
	case "zstd":
		cfg.Producer.Compression = sarama.CompressionZSTD
	default:
		cfg.Producer.Compression = sarama.CompressionNone
	}

	switch strings.ToLower(c.InitialOffset) {
	case "oldest":
		cfg.Consumer.Offsets.Initial = sarama.OffsetOldest
	default:
		cfg.Consumer.Offsets.Initial = sarama.OffsetNewest
	}
	cfg.Consumer.Return.Errors = true

	cfg.Net.DialTimeout = 10 * time.Second
	cfg.Net.ReadTimeout = 30 * time.Second
	cfg.Net.WriteTimeout = 30 * time.Second
	return cfg, nil
}
