package global

import (
	"context"
	"time"

	goredis "github.com/redis/go-redis/v9"
	"go.mongodb.org/mongo-driver/mongo"

	"linkhub/module/conversation"
	"linkhub/module/counter"
	"linkhub/module/notification"
	"linkhub/module/realtime"
	"linkhub/service/mgo"
	"linkhub/service/pg"
	"linkhub/service/storage"
	"linkhub/service/storage/redis"
)

const connectTimeout = 15 * time.Second

// stores holds the persistence chosen by config.Store.
type stores struct {
	counters counter.Store
	notes    notification.Store
	convs    conversation.Store
	users    conversation.UserDirectory
	dedupe   realtime.Deduper
	presence realtime.Presence
}

func (a *App) configMongo(ctx context.Context) (*mongo.Database, error) {
	mgr := mgo.NewManager(&a.Conf.Mongo)
	mgr.StartAsync(ctx)
	wctx, cancel := context.WithTimeout(ctx, connectTimeout)
	defer cancel()
	db, err := mgr.WaitReady(wctx)
	if err != nil {
		return nil, err
	}
	a.Health.Add("mongo", mgr.Ping)
	return db, nil
}

func (a *App) configRedis(ctx context.Context) (*goredis.Client, error) {
	rdb, err := redis.NewClient(ctx, a.Conf.Redis)
	if err != nil {
		return nil, err
	}
	a.Health.Add("redis", func(ctx context.Context) error { return rdb.Ping(ctx).Err() })
	a.onClose(func(context.Context) error { return rdb.Close() })
	return rdb, nil
}

func (a *App) configStores(ctx context.Context) (*stores, error) {
	sc := a.Conf.Store
	st := &stores{}

	var db *mongo.Database
	if sc.Driver == "mongo" || sc.CounterDriver == "mongo" {
		var err error
		if db, err = a.configMongo(ctx); err != nil {
			return nil, err
		}
	}
	var rdb *goredis.Client
	if a.Conf.NeedsRedis() {
		var err error
		if rdb, err = a.configRedis(ctx); err != nil {
			return nil, err
		}
	}

	switch sc.CounterDriver {
	case "mongo":
		s := counter.NewMongoStore(db)
		if err := s.EnsureIndexes(ctx); err != nil {
			return nil, err
		}
		st.counters = s
	case "redis":
		st.counters = counter.NewRedisStore(rdb)
	case "postgres":
		pool, err := pg.NewPool(ctx, a.Conf.Postgres)
		if err != nil {
			return nil, err
		}
		a.Health.Add("postgres", pool.Ping)
		a.onClose(func(context.Context) error { pool.Close(); return nil })
		s := counter.NewPostgresStore(pool)
		if err := s.EnsureSchema(ctx); err != nil {
			return nil, err
		}
		st.counters = s
	default:
		st.counters = counter.NewMemoryStore()
	}

	if sc.Driver == "mongo" {
		ns := notification.NewMongoStore(db)
		if err := ns.EnsureIndexes(ctx); err != nil {
			return nil, err
		}
		cs := conversation.NewMongoStore(db)
		if err := cs.EnsureIndexes(ctx); err != nil {
			return nil, err
		}
		st.notes, st.convs = ns, cs
		if sc.UserCollection != "" {
			st.users = conversation.NewMongoDirectory(db, sc.UserCollection)
		}
	} else {
		st.notes, st.convs = notification.NewMemoryStore(), conversation.NewMemoryStore()
	}

	if sc.DedupeDriver == "redis" {
		st.dedupe = storage.NewDeduper(rdb, sc.DedupeTTL)
	} else {
		md := realtime.NewMemoryDeduper(sc.DedupeTTL)
		a.onClose(func(context.Context) error { md.Close(); return nil })
		st.dedupe = md
	}
	if rdb != nil {
		st.presence = storage.NewPresence(rdb, a.Conf.NodeID, sc.PresenceTTL)
	}
	return st, nil
}
