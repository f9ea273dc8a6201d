package kafka

import (
	"encoding/json"

	"github.com/Shopify/sarama"

	"linkhub/module/realtime"
	"linkhub/tools/errs"
)

type Producer struct {
	p sarama.SyncProducer
}

func NewProducer(cfg Config) (*Producer, error) {
	scfg, err := BuildBaseConfig(cfg)
	if err != nil {
		return nil, err
	}
	p, err := sarama.NewSyncProducer(cfg.Brokers, scfg)
	if err != nil {
		return nil, errs.WrapMsg(err, "kafka producer")
	}
	return &Producer{p: p}, nil
}

func NewProducerFrom(p sarama.SyncProducer) *Producer { return &Producer{p: p} }

// PublishEvent writes ev keyed by its id.
func (p *Producer) PublishEvent(topic string, ev realtime.Event) (partition int32, offset int64, err error) {
	b, err := json.Marshal(ev)
	if err != nil {
		return 0, 0, errs.ErrArgs.WrapMsg("encode event: " + err.Error())
	}
	msg := &sarama.ProducerMessage{Topic: topic, Value: sarama.ByteEncoder(b)}
	if ev.ID != "" {
		msg.Key = sarama.StringEncoder(ev.ID)
	}
	partition, offset, err = p.p.SendMessage(msg)
	if err != nil {
		return 0, 0, errs.WrapMsg(err, "kafka send", "topic", topic)
	}
	return partition, offset, nil
}

func (p *Producer) Close() error { return p.p.Close() }
