package app

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"taskMarket/internal/config"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	seedOwner    = "11111111-1111-1111-1111-111111111111"
	seedProvider = "22222222-2222-2222-2222-222222222222"
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	seed := filepath.Join(t.TempDir(), "accounts.yml")
	require.NoError(t, os.WriteFile(seed, []byte(`
accounts:
  - id: `+seedOwner+`
    role: user
    name: Alice
  - id: `+seedProvider+`
    role: provider
    name: Bob
`), 0o600))

	return &config.Config{
		Server: config.ServerConfig{
			Host:            "127.0.0.1",
			Port:            "0",
			RequestTimeout:  5 * time.Second,
			ShutdownTimeout: time.Second,
			RateLimitRPM:    1000,
			CORSOrigins:     []string{"*"},
		},
		Repository: config.RepositoryConfig{Type: config.RepositoryInMemory},
		Auth:       config.AuthConfig{Secret: "test-secret", Issuer: "task-market", TokenTTL: time.Hour},
		Notify:     config.NotifyConfig{QueueSize: 64, Workers: 1, DeliveryTimeout: time.Second, StatsInterval: time.Minute},
		Seed:       config.SeedConfig{AccountsFile: seed},
	}
}

type client struct {
	t       *testing.T
	handler http.Handler
}

func (c client) call(method, path, token, body string) (int, map[string]any) {
	c.t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	c.handler.ServeHTTP(w, req)

	var out map[string]any
	if strings.HasPrefix(w.Header().Get("Content-Type"), "application/json") {
		require.NoError(c.t, json.Unmarshal(w.Body.Bytes(), &out))
	}
	return w.Code, out
}

// TestApp_Lifecycle - полный сценарий через HTTP на хранилище в памяти
func TestApp_Lifecycle(t *testing.T) {
	a, err := New(testConfig(t)).Init(context.Background())
	require.NoError(t, err)
	defer a.Close()

	ownerToken, err := a.Tokens().Generate(mustUUID(t, seedOwner))
	require.NoError(t, err)
	providerToken, err := a.Tokens().Generate(mustUUID(t, seedProvider))
	require.NoError(t, err)

	c := client{t: t, handler: a.Handler()}

	code, body := c.call(http.MethodPost, "/tasks", ownerToken,
		`{"title":"Mow lawn","description":"Front and back","category":"garden","city":"Reno","state":"NV"}`)
	require.Equal(t, http.StatusCreated, code, body)
	taskID := body["task"].(map[string]any)["id"].(string)

	code, body = c.call(http.MethodPost, "/tasks", providerToken,
		`{"title":"x","description":"x","category":"x","city":"x","state":"x"}`)
	assert.Equal(t, http.StatusForbidden, code)
	assert.Equal(t, "FORBIDDEN", body["error"])

	code, body = c.call(http.MethodGet, "/tasks", "", "")
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, float64(1), body["count"])

	code, body = c.call(http.MethodPost, "/tasks/"+taskID+"/bids", providerToken,
		`{"proposed_cost":45,"proposed_time":"2026-06-01T09:00:00Z"}`)
	require.Equal(t, http.StatusCreated, code, body)
	bidID := body["bid"].(map[string]any)["id"].(string)

	code, _ = c.call(http.MethodPost, "/tasks/"+taskID+"/bids", providerToken,
		`{"proposed_cost":40,"proposed_time":"2026-06-01T09:00:00Z"}`)
	assert.Equal(t, http.StatusConflict, code)

	code, body = c.call(http.MethodPut, "/tasks/"+taskID+"/bids/"+bidID+"/select", ownerToken, "")
	require.Equal(t, http.StatusOK, code, body)
	assert.Equal(t, "assigned", body["task"].(map[string]any)["status"])

	code, _ = c.call(http.MethodPut, "/tasks/"+taskID+"/complete", ownerToken, "")
	assert.Equal(t, http.StatusForbidden, code)

	code, body = c.call(http.MethodPut, "/tasks/"+taskID+"/complete", providerToken, "")
	require.Equal(t, http.StatusOK, code, body)
	assert.Equal(t, "completed", body["task"].(map[string]any)["status"])

	code, _ = c.call(http.MethodPut, "/tasks/"+taskID+"/complete", providerToken, "")
	assert.Equal(t, http.StatusConflict, code)

	code, body = c.call(http.MethodPost, "/tasks/"+taskID+"/rate", ownerToken, `{"score":4,"review":"tidy"}`)
	require.Equal(t, http.StatusOK, code, body)

	code, body = c.call(http.MethodGet, "/accounts/"+seedProvider, ownerToken, "")
	require.Equal(t, http.StatusOK, code)
	profile := body["account"].(map[string]any)
	assert.Equal(t, 4.0, profile["average_rating"])
	assert.Equal(t, float64(1), profile["total_ratings"])
	assert.Equal(t, float64(1), profile["completed_tasks"])

	code, body = c.call(http.MethodGet, "/tasks/assigned/me", providerToken, "")
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, float64(1), body["count"])

	code, _ = c.call(http.MethodGet, "/tasks/my-tasks", "", "")
	assert.Equal(t, http.StatusUnauthorized, code)

	code, body = c.call(http.MethodGet, "/health", "", "")
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, "ok", body["status"])

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	w := httptest.NewRecorder()
	a.Handler().ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `marketplace_lifecycle_commands_total{command="complete_task",outcome="ok"} 1`)
}

func TestApp_Run_Shutdown(t *testing.T) {
	cfg := testConfig(t)
	a, err := New(cfg).Init(context.Background())
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- a.Run(ctx) }()

	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("app did not stop")
	}
}

func TestApp_Init_Errors(t *testing.T) {
	t.Run("bad seed file", func(t *testing.T) {
		cfg := testConfig(t)
		cfg.Seed.AccountsFile = filepath.Join(t.TempDir(), "missing.yml")
		_, err := New(cfg).Init(context.Background())
		assert.Error(t, err)
	})

	t.Run("unreachable redis falls back to memory limiter", func(t *testing.T) {
		cfg := testConfig(t)
		cfg.Server.RateLimitRedis = "redis://127.0.0.1:1/0"
		a, err := New(cfg).Init(context.Background())
		require.NoError(t, err)
		defer a.Close()

		code, _ := client{t: t, handler: a.Handler()}.call(http.MethodGet, "/tasks", "", "")
		assert.Equal(t, http.StatusOK, code)
	})

	t.Run("empty secret", func(t *testing.T) {
		cfg := testConfig(t)
		cfg.Auth.Secret = ""
		_, err := New(cfg).Init(context.Background())
		assert.Error(t, err)
	})
}
