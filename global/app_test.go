package global

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"linkhub/global/config"
	"linkhub/module/api"
	"linkhub/tools/security"
)

func buildMemoryApp(t *testing.T) *App {
	t.Helper()
	gin.SetMode(gin.TestMode)
	cfg := config.Default()
	a, err := Build(context.Background(), &cfg)
	require.NoError(t, err)
	t.Cleanup(func() { a.Close(context.Background()) })
	return a
}

func TestBuildMemoryHealth(t *testing.T) {
	a := buildMemoryApp(t)
	a.Health.Refresh(context.Background())

	w := httptest.NewRecorder()
	a.Engine().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	require.Equal(t, http.StatusOK, w.Code)

	var body struct {
		Node   string            `json:"node"`
		Checks map[string]string `json:"checks"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "gateway-1", body.Node)
	assert.Equal(t, "ok", body.Checks["gateway"])
}

func TestBuildWiresRouterToAPI(t *testing.T) {
	a := buildMemoryApp(t)
	ctx := context.Background()

	tok, _, err := security.Generate(a.JWT(), "post-service", api.PublishScope)
	require.NoError(t, err)
	ev := []byte(`{"id":"e-1","kind":"connection_request","recipientId":"U1","senderId":"U2"}`)
	req := httptest.NewRequest(http.MethodPost, "/api/events", bytes.NewReader(ev))
	req.Header.Set("Authorization", "Bearer "+tok)
	w := httptest.NewRecorder()
	a.Engine().ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	n, err := a.Notes.Unread(ctx, "U1")
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
}

func TestBuildRejectsBadPostgres(t *testing.T) {
	gin.SetMode(gin.TestMode)
	cfg := config.Default()
	cfg.Store.CounterDriver = "postgres"
	cfg.Postgres.DSN = "postgres://%zz"
	_, err := Build(context.Background(), &cfg)
	assert.Error(t, err)
}

func TestConfigNacosDisabled(t *testing.T) {
	cfg := config.Default()
	assert.NoError(t, ConfigNacos(&cfg))
}
