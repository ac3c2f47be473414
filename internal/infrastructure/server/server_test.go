package server

import (
	"context"
	"net"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/GriffinCanCode/StudyDesk/backend/internal/infrastructure/config"
	"github.com/GriffinCanCode/StudyDesk/backend/internal/infrastructure/resilience"
	"github.com/bytedance/sonic"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg := config.Default()
	cfg.Server.Port = "0"
	cfg.Local.InMemory = true
	cfg.Local.DataDir = t.TempDir()
	cfg.Remote.URL = filepath.Join(cfg.Local.DataDir, "remote.db")
	cfg.RateLimit.Enabled = false
	cfg.Logging.Level = "error"
	cfg.Auth.BcryptCost = 4
	return cfg
}

func TestServerServesAPI(t *testing.T) {
	ctx := context.Background()
	s, err := NewServer(ctx, testConfig(t))
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Shutdown(context.Background()) })

	srv := httptest.NewServer(s.Router())
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/health")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp, err = http.Post(srv.URL+"/api/v1/auth/login", "application/json",
		strings.NewReader(`{"provider":"local","username":"ada","password":"analytical-engine"}`))
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var login struct {
		Token string `json:"token"`
	}
	require.NoError(t, sonic.ConfigDefault.NewDecoder(resp.Body).Decode(&login))
	resp.Body.Close()
	require.NotEmpty(t, login.Token, "local accounts auto-register")

	req, _ := http.NewRequest(http.MethodPost, srv.URL+"/api/v1/pages", strings.NewReader(`{"title":"Physics"}`))
	req.Header.Set("Authorization", "Bearer "+login.Token)
	req.Header.Set("Content-Type", "application/json")
	resp, err = http.DefaultClient.Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusCreated, resp.StatusCode)
	assert.Equal(t, 1, s.Workspaces().Count())

	resp, err = http.Get(srv.URL + "/metrics")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	require.NoError(t, s.Shutdown(context.Background()))
	assert.Equal(t, 0, s.Workspaces().Count(), "shutdown closes every workspace")
}

func TestServerRunStopsOnCancel(t *testing.T) {
	cfg := testConfig(t)
	cfg.Server.Host = "127.0.0.1"
	cfg.Remote.Enabled = false

	s, err := NewServer(context.Background(), cfg)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Run(ctx) }()

	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("server did not stop")
	}
}

func TestHealthFollowsBreaker(t *testing.T) {
	h := NewHealth()
	ctx := context.Background()

	check := func(service string) healthpb.HealthCheckResponse_ServingStatus {
		resp, err := h.srv.Check(ctx, &healthpb.HealthCheckRequest{Service: service})
		require.NoError(t, err)
		return resp.Status
	}

	assert.Equal(t, healthpb.HealthCheckResponse_SERVING, check(""))
	assert.Equal(t, healthpb.HealthCheckResponse_NOT_SERVING, check(RemoteService))

	h.SetRemote(true, resilience.StateClosed)
	assert.Equal(t, healthpb.HealthCheckResponse_SERVING, check(RemoteService))

	h.SetRemote(true, resilience.StateOpen)
	assert.Equal(t, healthpb.HealthCheckResponse_NOT_SERVING, check(RemoteService))

	h.SetRemote(true, resilience.StateHalfOpen)
	assert.Equal(t, healthpb.HealthCheckResponse_SERVING, check(RemoteService))

	h.SetRemote(false, resilience.StateClosed)
	assert.Equal(t, healthpb.HealthCheckResponse_NOT_SERVING, check(RemoteService))
}

func TestCheckHealthOverGRPC(t *testing.T) {
	h := NewHealth()
	lis, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	gs := grpc.NewServer()
	h.Register(gs)
	go func() { _ = gs.Serve(lis) }()
	t.Cleanup(gs.Stop)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	status, err := CheckHealth(ctx, lis.Addr().String(), "")
	require.NoError(t, err)
	assert.Equal(t, healthpb.HealthCheckResponse_SERVING, status)

	status, err = CheckHealth(ctx, lis.Addr().String(), RemoteService)
	require.NoError(t, err)
	assert.Equal(t, healthpb.HealthCheckResponse_NOT_SERVING, status)

	_, err = CheckHealth(ctx, lis.Addr().String(), "unknown.service")
	assert.Error(t, err)
}
