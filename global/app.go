package global

import (
	"context"
	"errors"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"linkhub/global/config"
	"linkhub/logger"
	"linkhub/middleware"
	midsec "linkhub/middleware/security"
	"linkhub/module/api"
	"linkhub/module/conversation"
	"linkhub/module/notification"
	"linkhub/module/realtime"
	"linkhub/service/chat"
	"linkhub/service/health"
	"linkhub/tools/safe"
	"linkhub/tools/security"
)

// App is one gateway node: registry, router, services and their transports.
type App struct {
	Conf *config.AppConfig

	Registry  *realtime.Registry
	Lifecycle *realtime.Lifecycle
	Router    *realtime.Router
	Notes     *notification.Service
	Convs     *conversation.Service
	Conns     *chat.ConnManager
	WS        *chat.Server
	Health    *health.Server

	engine  *gin.Engine
	log     *zap.Logger
	mu      sync.Mutex
	closers []func(context.Context) error
}

func (a *App) onClose(f func(context.Context) error) {
	a.mu.Lock()
	a.closers = append(a.closers, f)
	a.mu.Unlock()
}

func (a *App) JWT() security.Options {
	o := security.DefaultOptions([]byte(a.Conf.Security.JWTSecret))
	o.Alg = a.Conf.Security.JWTAlg
	o.TTL = a.Conf.Security.TokenTTL
	return o
}

// Build connects the configured stores and wires every component. ctx bounds
// the background loops started along the way.
func Build(ctx context.Context, cfg *config.AppConfig) (*App, error) {
	a := &App{
		Conf:   cfg,
		Health: health.New(10 * time.Second),
		log:    logger.Named("app"),
	}
	st, err := a.configStores(ctx)
	if err != nil {
		a.Close(context.Background())
		return nil, err
	}

	gc := cfg.Gateway
	a.Conns = chat.NewConnManager(chat.ManagerConf{
		UnauthTTL:    gc.UnauthTTL,
		AuthTTL:      gc.AuthTTL,
		SweepEvery:   gc.SweepEvery,
		MaxPerUser:   gc.MaxPerUser,
		EvictOldest:  gc.EvictOldest,
		SendQueue:    gc.SendQueue,
		WriteTimeout: gc.WriteTimeout,
		PingInterval: gc.PingInterval,
	}, cfg.NodeID)
	a.onClose(func(context.Context) error { a.Conns.Close(); return nil })

	a.Registry = realtime.NewRegistry()
	var lcOpts []realtime.LifecycleOption
	if st.presence != nil {
		lcOpts = append(lcOpts, realtime.WithPresence(st.presence))
	}
	a.Lifecycle = realtime.NewLifecycle(a.Registry, lcOpts...)
	a.Notes = notification.NewService(st.notes, st.counters)
	a.Router = realtime.NewRouter(a.Registry, a.Conns, st.counters, a.Notes, realtime.WithDeduper(st.dedupe))

	var convOpts []conversation.Option
	if st.users != nil {
		convOpts = append(convOpts, conversation.WithUserDirectory(st.users))
	}
	a.Convs = conversation.NewService(st.convs, st.counters, a.Router, convOpts...)

	a.WS = chat.NewServer(a.Conns, a.Lifecycle, a.Convs, chat.ServerConf{
		RequireJoinToken: cfg.Security.RequireJoinToken,
		Security:         a.JWT(),
		ReadLimit:        gc.ReadLimit,
	})
	a.Health.Add("gateway", func(context.Context) error { return nil })

	a.engine = a.routes()
	return a, nil
}

func (a *App) routes() *gin.Engine {
	httpLog := logger.Named("http")
	r := gin.New()
	r.Use(middleware.Recovery(httpLog), middleware.AccessLog(httpLog))

	r.GET("/ws", a.WS.HandleWS)
	r.GET("/healthz", func(c *gin.Context) {
		report, ok := a.Health.Report()
		_, identities := a.Registry.Stats()
		status := http.StatusOK
		if !ok {
			status = http.StatusServiceUnavailable
		}
		c.JSON(status, gin.H{
			"node":        a.Conf.NodeID,
			"checks":      report,
			"connections": a.Conns.Count(),
			"identities":  identities,
		})
	})
	api.New(a.Router, a.Convs, a.Notes).Register(r, midsec.Middleware(midsec.DefaultOptions(a.JWT())))
	return r
}

func (a *App) Engine() *gin.Engine { return a.engine }

// Run serves HTTP, the gRPC health endpoint and the configured ingest buses
// until ctx ends, then shuts everything down.
func (a *App) Run(ctx context.Context) error {
	if err := a.startIngest(ctx); err != nil {
		a.Close(context.Background())
		return err
	}
	if err := a.registerNode(); err != nil {
		a.Close(context.Background())
		return err
	}

	errCh := make(chan error, 2)
	if a.Conf.GrpcAddr != "" {
		lis, err := net.Listen("tcp", a.Conf.GrpcAddr)
		if err != nil {
			a.Close(context.Background())
			return err
		}
		safe.Go("health_grpc", func() {
			if err := a.Health.Serve(ctx, lis); err != nil {
				errCh <- err
			}
		})
		a.log.Info("grpc health listening", zap.String("addr", a.Conf.GrpcAddr))
	}

	srv := &http.Server{Addr: a.Conf.HTTPAddr, Handler: a.engine, ReadHeaderTimeout: 10 * time.Second}
	safe.Go("http", func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	})
	a.log.Info("http listening", zap.String("addr", a.Conf.HTTPAddr), zap.String("node", a.Conf.NodeID))

	var runErr error
	select {
	case <-ctx.Done():
	case runErr = <-errCh:
		a.log.Error("server failed", zap.Error(runErr))
	}

	sctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(sctx); err != nil {
		a.log.Warn("http shutdown", zap.Error(err))
	}
	a.Close(sctx)
	return runErr
}

// Close releases resources in reverse order of acquisition.
func (a *App) Close(ctx context.Context) {
	a.mu.Lock()
	closers := a.closers
	a.closers = nil
	a.mu.Unlock()
	for i := len(closers) - 1; i >= 0; i-- {
		if err := closers[i](ctx); err != nil {
			a.log.Warn("close failed", zap.Error(err))
		}
	}
}
