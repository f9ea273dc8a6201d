package config

import (
	"time"

	"linkhub/data/database/mgo/mongoutil"
	"linkhub/service/kafka"
	"linkhub/service/nacos"
	"linkhub/service/pg"
	"linkhub/service/storage/redis"
)

type AppConfig struct {
	NodeID   string `json:"node_id" validate:"required"`
	HTTPAddr string `json:"http_addr" validate:"required"`
	GrpcAddr string `json:"grpc_addr"`

	Log      LogConf      `json:"log"`
	Security SecurityConf `json:"security"`
	Gateway  GatewayConf  `json:"gateway"`
	Store    StoreConf    `json:"store"`

	Mongo    mongoutil.Config `json:"mongo"`
	Redis    redis.Config     `json:"redis"`
	Postgres pg.Config        `json:"postgres"`
	Nats     NatsConf         `json:"nats"`
	Kafka    kafka.Config     `json:"kafka"`
	Nacos    nacos.Config     `json:"nacos"`
}

type LogConf struct {
	Level       string `json:"level" validate:"omitempty,oneof=debug info warn error"`
	Development bool   `json:"development"`
}

type SecurityConf struct {
	JWTSecret        string        `json:"jwt_secret" validate:"required,min=16"`
	JWTAlg           string        `json:"jwt_alg" validate:"oneof=HS256 HS384 HS512"`
	TokenTTL         time.Duration `json:"token_ttl" validate:"gt=0"`
	RequireJoinToken bool          `json:"require_join_token"`
}

type GatewayConf struct {
	SendQueue    int           `json:"send_queue" validate:"gte=0"`
	UnauthTTL    time.Duration `json:"unauth_ttl"`
	AuthTTL      time.Duration `json:"auth_ttl"`
	SweepEvery   time.Duration `json:"sweep_every"`
	MaxPerUser   int           `json:"max_per_user" validate:"gte=0"`
	EvictOldest  bool          `json:"evict_oldest"`
	WriteTimeout time.Duration `json:"write_timeout"`
	PingInterval time.Duration `json:"ping_interval"`
	ReadLimit    int64         `json:"read_limit" validate:"gte=0"`
}

type StoreConf struct {
	// Driver backs conversations and notifications.
	Driver        string        `json:"driver" validate:"oneof=memory mongo"`
	CounterDriver string        `json:"counter_driver" validate:"oneof=memory mongo redis postgres"`
	DedupeDriver  string        `json:"dedupe_driver" validate:"oneof=memory redis"`
	DedupeTTL     time.Duration `json:"dedupe_ttl"`
	PresenceTTL   time.Duration `json:"presence_ttl"`
	// UserCollection, when set, lets conversations reject unknown recipients.
	UserCollection string `json:"user_collection"`
}

type NatsConf struct {
	Enabled  bool     `json:"enabled"`
	Servers  []string `json:"servers" validate:"required_if=Enabled true"`
	Subject  string   `json:"subject" validate:"required_if=Enabled true"`
	Queue    string   `json:"queue"`
	Durable  string   `json:"durable"`
	Mode     string   `json:"mode" validate:"omitempty,oneof=core push pull"`
	User     string   `json:"user"`
	Password string   `json:"password"`
}

// Default is usable for a single node with in-memory stores.
func Default() AppConfig {
	kc := kafka.DefaultConfig()
	return AppConfig{
		NodeID:   "gateway-1",
		HTTPAddr: ":54321",
		GrpcAddr: ":50051",
		Log:      LogConf{Level: "info"},
		Security: SecurityConf{
			JWTSecret: "linkhub-dev-secret-change-me",
			JWTAlg:    "HS256",
			TokenTTL:  2 * time.Hour,
		},
		Gateway: GatewayConf{
			SendQueue:    256,
			UnauthTTL:    60 * time.Second,
			AuthTTL:      2 * time.Minute,
			SweepEvery:   10 * time.Second,
			WriteTimeout: 5 * time.Second,
			PingInterval: 30 * time.Second,
			ReadLimit:    64 << 10,
		},
		Store: StoreConf{
			Driver:        "memory",
			CounterDriver: "memory",
			DedupeDriver:  "memory",
			DedupeTTL:     10 * time.Minute,
			PresenceTTL:   5 * time.Minute,
		},
		Mongo:    mongoutil.Config{Uri: "mongodb://localhost:27017", Database: "linkhub", MaxPoolSize: 20},
		Redis:    redis.Config{Addr: "127.0.0.1:6379"},
		Postgres: pg.Config{MaxConns: 10},
		Nats:     NatsConf{Servers: []string{"nats://127.0.0.1:4222"}, Subject: "linkhub.events", Queue: "linkhub", Mode: "core"},
		Kafka:    kc,
		Nacos:    nacos.Config{Port: 8848, DataID: "linkhub.yaml", Group: "DEFAULT_GROUP"},
	}
}
