package pg

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"linkhub/tools/errs"
)

type Config struct {
	DSN      string `json:"dsn"`
	MaxConns int32  `json:"max_conns"`
}

// NewPool parses the DSN, applies MaxConns and pings once.
func NewPool(ctx context.Context, c Config) (*pgxpool.Pool, error) {
	if c.DSN == "" {
		return nil, errs.ErrArgs.WrapMsg("postgres dsn is required")
	}
	pcfg, err := pgxpool.ParseConfig(c.DSN)
	if err != nil {
		return nil, errs.ErrArgs.WrapMsg("bad postgres dsn: " + err.Error())
	}
	if c.MaxConns > 0 {
		pcfg.MaxConns = c.MaxConns
	}
	pool, err := pgxpool.NewWithConfig(ctx, pcfg)
	if err != nil {
		return nil, errs.ErrStoreUnavailable.WrapMsg("postgres pool: " + err.Error())
	}
	pctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	if err := pool.Ping(pctx); err != nil {
		pool.Close()
		return nil, errs.ErrStoreUnavailable.WrapMsg("postgres ping: " + err.Error())
	}
	return pool, nil
}
