package health

import (
	"context"
	"net"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	"linkhub/logger"
)

// Checker reports whether one dependency is usable.
type Checker func(ctx context.Context) error

// Server exposes dependency readiness over the standard gRPC health
// protocol. Each checker is a named service; "" is serving only when all
// checkers pass.
type Server struct {
	hs     *health.Server
	grpc   *grpc.Server
	every  time.Duration
	log    *zap.Logger
	mu     sync.RWMutex
	checks map[string]Checker
	last   map[string]error
}

func New(every time.Duration) *Server {
	if every <= 0 {
		every = 5 * time.Second
	}
	s := &Server{
		hs:     health.NewServer(),
		grpc:   grpc.NewServer(),
		every:  every,
		log:    logger.Named("health"),
		checks: make(map[string]Checker),
		last:   make(map[string]error),
	}
	healthpb.RegisterHealthServer(s.grpc, s.hs)
	return s
}

func (s *Server) Add(name string, c Checker) {
	s.mu.Lock()
	s.checks[name] = c
	s.mu.Unlock()
	s.hs.SetServingStatus(name, healthpb.HealthCheckResponse_NOT_SERVING)
}

func (s *Server) Health() healthpb.HealthServer { return s.hs }

// Refresh runs every checker once and publishes the statuses.
func (s *Server) Refresh(ctx context.Context) {
	s.mu.RLock()
	checks := make(map[string]Checker, len(s.checks))
	for k, v := range s.checks {
		checks[k] = v
	}
	s.mu.RUnlock()

	all := healthpb.HealthCheckResponse_SERVING
	results := make(map[string]error, len(checks))
	for name, c := range checks {
		cctx, cancel := context.WithTimeout(ctx, 2*time.Second)
		err := c(cctx)
		cancel()
		results[name] = err
		st := healthpb.HealthCheckResponse_SERVING
		if err != nil {
			st = healthpb.HealthCheckResponse_NOT_SERVING
			all = st
		}
		s.hs.SetServingStatus(name, st)
	}
	s.hs.SetServingStatus("", all)

	s.mu.Lock()
	for name, err := range results {
		if prev, seen := s.last[name]; !seen || (prev == nil) != (err == nil) {
			if err != nil {
				s.log.Warn("dependency down", zap.String("name", name), zap.Error(err))
			} else {
				s.log.Info("dependency up", zap.String("name", name))
			}
		}
		s.last[name] = err
	}
	s.mu.Unlock()
}

// Report returns the last result per checker, "ok" or the error text.
func (s *Server) Report() (map[string]string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	names := make([]string, 0, len(s.last))
	for n := range s.last {
		names = append(names, n)
	}
	sort.Strings(names)
	out := make(map[string]string, len(names))
	ok := true
	for _, n := range names {
		if err := s.last[n]; err != nil {
			out[n] = err.Error()
			ok = false
		} else {
			out[n] = "ok"
		}
	}
	return out, ok
}

// Serve refreshes periodically and serves gRPC on lis until ctx ends.
func (s *Server) Serve(ctx context.Context, lis net.Listener) error {
	s.Refresh(ctx)
	go func() {
		t := time.NewTicker(s.every)
		defer t.Stop()
		for {
			select {
			case <-ctx.Done():
				s.hs.Shutdown()
				s.grpc.GracefulStop()
				return
			case <-t.C:
				s.Refresh(ctx)
			}
		}
	}()
	return s.grpc.Serve(lis)
}
