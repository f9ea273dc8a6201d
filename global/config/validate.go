package config

import (
	"errors"
	"strings"

	"github.com/go-playground/validator/v10"

	"linkhub/tools/errs"
)

var validate = validator.New()

// Validate checks field tags, then the cross-field rules tags cannot
// express.
func (c *AppConfig) Validate() error {
	if err := validate.Struct(c); err != nil {
		var ve validator.ValidationErrors
		if errors.As(err, &ve) {
			parts := make([]string, 0, len(ve))
			for _, fe := range ve {
				parts = append(parts, fe.Namespace()+" failed "+fe.Tag())
			}
			return errs.ErrArgs.WrapMsg("invalid config: " + strings.Join(parts, "; "))
		}
		return errs.ErrArgs.WrapMsg("invalid config: " + err.Error())
	}
	needMongo := c.Store.Driver == "mongo" || c.Store.CounterDriver == "mongo"
	if needMongo && c.Mongo.Database == "" {
		return errs.ErrArgs.WrapMsg("invalid config: mongo.database is required by the mongo driver")
	}
	if needMongo && c.Mongo.Uri == "" && len(c.Mongo.Address) == 0 {
		return errs.ErrArgs.WrapMsg("invalid config: mongo.uri or mongo.address is required")
	}
	if c.NeedsRedis() && c.Redis.Addr == "" {
		return errs.ErrArgs.WrapMsg("invalid config: redis.addr is required")
	}
	if c.Store.CounterDriver == "postgres" && c.Postgres.DSN == "" {
		return errs.ErrArgs.WrapMsg("invalid config: postgres.dsn is required by the postgres counter driver")
	}
	if c.Kafka.Enabled && (len(c.Kafka.Brokers) == 0 || len(c.Kafka.Topics) == 0 || c.Kafka.GroupID == "") {
		return errs.ErrArgs.WrapMsg("invalid config: kafka needs brokers, topics and group_id")
	}
	return nil
}

// NeedsRedis reports whether any store is backed by Redis. Presence is
// mirrored whenever a Redis client exists.
func (c *AppConfig) NeedsRedis() bool {
	return c.Store.CounterDriver == "redis" || c.Store.DedupeDriver == "redis"
}
