package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"

	"github.com/Shopify/sarama"
	"github.com/Shopify/sarama/mocks"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"linkhub/module/realtime"
	"linkhub/tools/errs"
)

type recordingPublisher struct {
	mu     sync.Mutex
	events []realtime.Event
	fail   map[string]error
}

func (p *recordingPublisher) Publish(_ context.Context, ev realtime.Event) (realtime.Receipt, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.fail[ev.ID]; err != nil {
		return realtime.Receipt{}, err
	}
	p.events = append(p.events, ev)
	return realtime.Receipt{EventID: ev.ID}, nil
}

type fakeSession struct {
	sarama.ConsumerGroupSession
	ctx    context.Context
	marked []int64
}

func (s *fakeSession) Context() context.Context { return s.ctx }
func (s *fakeSession) MarkMessage(msg *sarama.ConsumerMessage, _ string) {
	s.marked = append(s.marked, msg.Offset)
}

type fakeClaim struct {
	sarama.ConsumerGroupClaim
	ch chan *sarama.ConsumerMessage
}

func (c *fakeClaim) Messages() <-chan *sarama.ConsumerMessage { return c.ch }

func record(offset int64, key, value string) *sarama.ConsumerMessage {
	m := &sarama.ConsumerMessage{Topic: "linkhub.events", Partition: 3, Offset: offset, Value: []byte(value)}
	if key != "" {
		m.Key = []byte(key)
	}
	return m
}

func TestEventHandlerIDs(t *testing.T) {
	pub := &recordingPublisher{}
	h := EventHandler(pub)
	ctx := context.Background()

	require.NoError(t, h(ctx, record(1, "", `{"id":"body","kind":"post_created"}`)))
	require.NoError(t, h(ctx, record(2, "key-2", `{"kind":"post_created"}`)))
	require.NoError(t, h(ctx, record(3, "", `{"kind":"post_created"}`)))

	require.Len(t, pub.events, 3)
	assert.Equal(t, "body", pub.events[0].ID)
	assert.Equal(t, "key-2", pub.events[1].ID)
	assert.Equal(t, "linkhub.events-3-3", pub.events[2].ID)
}

func TestConsumeClaim(t *testing.T) {
	pub := &recordingPublisher{fail: map[string]error{"e3": errs.ErrStoreUnavailable.WrapMsg("down")}}
	handlers := NewHandlers()
	handlers.Register("linkhub.events", EventHandler(pub))
	h := NewConsumerGroupHandler(handlers)
	h.log = zap.NewNop()

	claim := &fakeClaim{ch: make(chan *sarama.ConsumerMessage, 4)}
	claim.ch <- record(10, "e1", `{"kind":"post_created"}`)
	claim.ch <- record(11, "e2", `{garbage`)
	claim.ch <- record(12, "e3", `{"kind":"post_created"}`)
	claim.ch <- record(13, "e4", `{"kind":"post_created"}`)
	close(claim.ch)

	sess := &fakeSession{ctx: context.Background()}
	err := h.ConsumeClaim(sess, claim)
	require.Error(t, err)
	assert.True(t, errors.Is(err, errs.ErrStoreUnavailable))

	// malformed e2 is committed, failing e3 is not, e4 is never reached
	assert.Equal(t, []int64{10, 11}, sess.marked)
	require.Len(t, pub.events, 1)
	assert.Equal(t, "e1", pub.events[0].ID)
}

func TestConsumeClaimUnknownTopic(t *testing.T) {
	h := NewConsumerGroupHandler(NewHandlers())
	h.log = zap.NewNop()
	claim := &fakeClaim{ch: make(chan *sarama.ConsumerMessage, 1)}
	claim.ch <- record(5, "", `{}`)
	close(claim.ch)
	sess := &fakeSession{ctx: context.Background()}
	require.NoError(t, h.ConsumeClaim(sess, claim))
	assert.Equal(t, []int64{5}, sess.marked)
}

func TestProducerKeysByEventID(t *testing.T) {
	cfg, err := BuildBaseConfig(DefaultConfig())
	require.NoError(t, err)
	mp := mocks.NewSyncProducer(t, cfg)
	mp.ExpectSendMessageWithCheckerFunctionAndSucceed(func(val []byte) error {
		var ev realtime.Event
		if err := json.Unmarshal(val, &ev); err != nil {
			return err
		}
		if ev.Kind != realtime.KindNewFollower {
			return errors.New("unexpected kind " + ev.Kind.String())
		}
		return nil
	})
	p := NewProducerFrom(mp)
	_, _, err = p.PublishEvent("linkhub.events", realtime.Event{ID: "e-9", Kind: realtime.KindNewFollower, RecipientID: "u1"})
	require.NoError(t, err)
	require.NoError(t, p.Close())
}

func TestBuildBaseConfig(t *testing.T) {
	c := DefaultConfig()
	c.InitialOffset = "oldest"
	c.Compression = "zstd"
	scfg, err := BuildBaseConfig(c)
	require.NoError(t, err)
	assert.Equal(t, sarama.OffsetOldest, scfg.Consumer.Offsets.Initial)
	assert.Equal(t, sarama.CompressionZSTD, scfg.Producer.Compression)
	assert.Equal(t, sarama.V2_1_0_0, scfg.Version)

	c.Version = "not-a-version"
	_, err = BuildBaseConfig(c)
	assert.True(t, errors.Is(err, errs.ErrArgs))
}

func TestHandlersTopics(t *testing.T) {
	h := NewHandlers()
	h.Register("a.events", EventHandler(nil))
	h.Register("b.events", EventHandler(nil))
	assert.ElementsMatch(t, []string{"a.events", "b.events"}, h.Topics())

	err := StartConsumerGroup(context.Background(), DefaultConfig(), NewHandlers())
	assert.True(t, errors.Is(err, errs.ErrArgs))
}
