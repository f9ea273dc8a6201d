package health

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

func status(t *testing.T, s *Server, name string) healthpb.HealthCheckResponse_ServingStatus {
	t.Helper()
	resp, err := s.Health().Check(context.Background(), &healthpb.HealthCheckRequest{Service: name})
	require.NoError(t, err)
	return resp.Status
}

func TestRefresh(t *testing.T) {
	s := New(0)
	var mongoErr error
	s.Add("mongo", func(context.Context) error { return mongoErr })
	s.Add("redis", func(context.Context) error { return nil })
	assert.Equal(t, healthpb.HealthCheckResponse_NOT_SERVING, status(t, s, "mongo"))

	s.Refresh(context.Background())
	assert.Equal(t, healthpb.HealthCheckResponse_SERVING, status(t, s, ""))
	assert.Equal(t, healthpb.HealthCheckResponse_SERVING, status(t, s, "mongo"))

	mongoErr = errors.New("no primary")
	s.Refresh(context.Background())
	assert.Equal(t, healthpb.HealthCheckResponse_NOT_SERVING, status(t, s, ""))
	assert.Equal(t, healthpb.HealthCheckResponse_NOT_SERVING, status(t, s, "mongo"))
	assert.Equal(t, healthpb.HealthCheckResponse_SERVING, status(t, s, "redis"))

	report, ok := s.Report()
	assert.False(t, ok)
	assert.Equal(t, map[string]string{"mongo": "no primary", "redis": "ok"}, report)
}
