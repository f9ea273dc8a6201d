package global

import (
	"context"
	"time"

	"github.com/Shopify/sarama"
	"go.uber.org/zap"

	"linkhub/logger"
	"linkhub/service/kafka"
	"linkhub/service/natsx"
	"linkhub/tools/errs"
	"linkhub/tools/safe"
)

// startIngest subscribes the router to the enabled event buses.
func (a *App) startIngest(ctx context.Context) error {
	if a.Conf.Nats.Enabled {
		if err := a.startNats(ctx); err != nil {
			return err
		}
	}
	if a.Conf.Kafka.Enabled {
		if err := a.startKafka(ctx); err != nil {
			return err
		}
	}
	return nil
}

func (a *App) startNats(ctx context.Context) error {
	nc := a.Conf.Nats
	mode, err := natsx.ParseMode(nc.Mode)
	if err != nil {
		return err
	}
	client, err := natsx.NewNatsxClient(natsx.NatsxConfig{
		Servers:  nc.Servers,
		Name:     a.Conf.NodeID,
		User:     nc.User,
		Password: nc.Password,
	})
	if err != nil {
		return err
	}
	a.onClose(func(context.Context) error { return client.Close() })
	if err := client.RegisterRoute(natsx.NatsxRoute{
		Biz:     natsx.EventBiz,
		Subject: nc.Subject,
		Mode:    mode,
		Queue:   nc.Queue,
		Durable: nc.Durable,
	}); err != nil {
		return err
	}

	log := logger.Named("nats")
	consumer := natsx.NewNatsxConsumer(client, natsx.LogMiddleware(log), natsx.TimeoutMiddleware(5*time.Second))
	h := natsx.EventHandler(a.Router)
	if mode == natsx.JetStreamPull {
		safe.Go("nats_pull", func() {
			if err := consumer.PullConsume(ctx, natsx.EventBiz, 64, time.Second, h); err != nil {
				log.Error("pull consume stopped", zap.Error(err))
			}
		})
	} else if err := consumer.Subscribe(natsx.EventBiz, h); err != nil {
		return err
	}
	log.Info("nats ingest started", zap.String("subject", nc.Subject), zap.String("mode", nc.Mode))
	a.Health.Add("nats", func(context.Context) error {
		if !client.Connected() {
			return errs.ErrStoreUnavailable.WrapMsg("nats disconnected")
		}
		return nil
	})
	return nil
}

func (a *App) startKafka(ctx context.Context) error {
	kc := a.Conf.Kafka
	if kc.EnsureTopics {
		scfg, err := kafka.BuildBaseConfig(kc)
		if err != nil {
			return err
		}
		admin, err := sarama.NewClusterAdmin(kc.Brokers, scfg)
		if err != nil {
			return errs.WrapMsg(err, "kafka admin", "brokers", kc.Brokers)
		}
		err = kafka.EnsureTopics(admin, kc)
		_ = admin.Close()
		if err != nil {
			return err
		}
	}

	handlers := kafka.NewHandlers()
	for _, t := range kc.Topics {
		handlers.Register(t, kafka.EventHandler(a.Router))
	}
	log := logger.Named("kafka")
	safe.Go("kafka_ingest", func() {
		if err := kafka.StartConsumerGroup(ctx, kc, handlers); err != nil {
			log.Error("consumer group stopped", zap.Error(err))
		}
	})
	log.Info("kafka ingest started", zap.Strings("topics", kc.Topics), zap.String("group", kc.GroupID))
	return nil
}
