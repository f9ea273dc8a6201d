package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"

	"linkhub/logger"
	"linkhub/tools/errs"
)

func envOf(m map[string]string) func(string) (string, bool) {
	return func(k string) (string, bool) {
		v, ok := m[k]
		return v, ok
	}
}

func TestDefaultIsValid(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, ":54321", cfg.HTTPAddr)
	assert.Equal(t, "memory", cfg.Store.CounterDriver)
}

func TestLoadLayers(t *testing.T) {
	path := filepath.Join(t.TempDir(), "linkhub.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
node_id: gw-7
store:
  counter_driver: redis
  dedupe_ttl: 30m
gateway:
  max_per_user: 3
security:
  token_ttl: 1h
nats:
  enabled: true
  servers: [nats://a:4222, nats://b:4222]
`), 0o600))

	cfg, err := Load(path, envOf(map[string]string{
		"LINKHUB_HTTP_ADDR":             ":9000",
		"LINKHUB_GATEWAY_EVICT_OLDEST":  "true",
		"LINKHUB_KAFKA_TOPICS":          "t1,t2",
		"LINKHUB_SECURITY_TOKEN_TTL":    "45m",
		"LINKHUB_REDIS_DB":              "2",
		"LINKHUB_NACOS_PORT":            "9848",
		"LINKHUB_UNRELATED":             "x",
		"LINKHUB_GATEWAY_NOT_A_SETTING": "x",
	}))
	require.NoError(t, err)

	assert.Equal(t, "gw-7", cfg.NodeID)
	assert.Equal(t, ":9000", cfg.HTTPAddr)
	assert.Equal(t, "redis", cfg.Store.CounterDriver)
	assert.Equal(t, 30*time.Minute, cfg.Store.DedupeTTL)
	assert.Equal(t, 3, cfg.Gateway.MaxPerUser)
	assert.True(t, cfg.Gateway.EvictOldest)
	assert.Equal(t, 256, cfg.Gateway.SendQueue)
	assert.Equal(t, 45*time.Minute, cfg.Security.TokenTTL)
	assert.Equal(t, []string{"nats://a:4222", "nats://b:4222"}, cfg.Nats.Servers)
	assert.Equal(t, []string{"t1", "t2"}, cfg.Kafka.Topics)
	assert.Equal(t, 2, cfg.Redis.DB)
	assert.Equal(t, uint64(9848), cfg.Nacos.Port)
	require.NoError(t, cfg.Validate())
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"), nil)
	assert.True(t, errors.Is(err, errs.ErrArgs))
}

func TestValidate(t *testing.T) {
	cases := map[string]func(*AppConfig){
		"unknown driver":    func(c *AppConfig) { c.Store.CounterDriver = "sqlite" },
		"short secret":      func(c *AppConfig) { c.Security.JWTSecret = "short" },
		"postgres no dsn":   func(c *AppConfig) { c.Store.CounterDriver = "postgres" },
		"redis no addr":     func(c *AppConfig) { c.Store.DedupeDriver = "redis"; c.Redis.Addr = "" },
		"nats no subject":   func(c *AppConfig) { c.Nats.Enabled = true; c.Nats.Subject = "" },
		"kafka no brokers":  func(c *AppConfig) { c.Kafka.Enabled = true; c.Kafka.Brokers = nil },
		"mongo no database": func(c *AppConfig) { c.Store.Driver = "mongo"; c.Mongo.Database = "" },
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			cfg := Default()
			mutate(&cfg)
			err := cfg.Validate()
			require.Error(t, err)
			assert.True(t, errors.Is(err, errs.ErrArgs))
		})
	}
}

type fakeRemote struct {
	doc      string
	onChange func(string)
}

func (f *fakeRemote) Fetch() (string, error) { return f.doc, nil }
func (f *fakeRemote) Watch(cb func(string)) error {
	f.onChange = cb
	return nil
}

func TestRemote(t *testing.T) {
	cfg := Default()
	src := &fakeRemote{doc: "gateway:\n  max_per_user: 9\n"}
	require.NoError(t, ApplyRemote(&cfg, src))
	assert.Equal(t, 9, cfg.Gateway.MaxPerUser)

	logger.SetLevel("info")
	t.Cleanup(func() { logger.SetLevel("info") })
	require.NoError(t, WatchLogLevel(src))
	require.NotNil(t, src.onChange)

	src.onChange("log:\n  level: debug\n")
	assert.True(t, logger.Log.Core().Enabled(zapcore.DebugLevel))
	src.onChange("::not yaml")
	assert.True(t, logger.Log.Core().Enabled(zapcore.DebugLevel))
	src.onChange("log:\n  level: error\n")
	assert.False(t, logger.Log.Core().Enabled(zapcore.WarnLevel))
}
