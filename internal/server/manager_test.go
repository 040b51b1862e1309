package server

import (
	"context"
	"io"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/BaSui01/crewstudio/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func startLocal(t *testing.T, handler http.Handler) *Manager {
	t.Helper()
	cfg := DefaultConfig()
	cfg.Addr = "127.0.0.1:0"
	m := NewManager(handler, cfg, zap.NewNop())
	require.NoError(t, m.Start())
	t.Cleanup(func() { m.Shutdown(context.Background()) })
	return m
}

func TestFromServerConfig(t *testing.T) {
	sc := config.DefaultServerConfig()
	def := DefaultConfig()

	tests := []struct {
		name string
		cfg  Config
		want Config
	}{
		{
			name: "api port keeps long write timeout for blocking runs",
			cfg:  FromServerConfig("http", sc, sc.HTTPPort),
			want: Config{Name: "http", Addr: ":8080", ReadTimeout: sc.ReadTimeout, WriteTimeout: sc.WriteTimeout,
				IdleTimeout: def.IdleTimeout, MaxHeaderBytes: def.MaxHeaderBytes, ShutdownTimeout: sc.ShutdownTimeout},
		},
		{
			name: "metrics port",
			cfg:  FromServerConfig("metrics", sc, sc.MetricsPort),
			want: Config{Name: "metrics", Addr: ":9091", ReadTimeout: sc.ReadTimeout, WriteTimeout: sc.WriteTimeout,
				IdleTimeout: def.IdleTimeout, MaxHeaderBytes: def.MaxHeaderBytes, ShutdownTimeout: sc.ShutdownTimeout},
		},
		{
			name: "zero durations fall back to defaults",
			cfg:  FromServerConfig("http", config.ServerConfig{}, 8081),
			want: Config{Name: "http", Addr: ":8081", ReadTimeout: def.ReadTimeout, WriteTimeout: def.WriteTimeout,
				IdleTimeout: def.IdleTimeout, MaxHeaderBytes: def.MaxHeaderBytes, ShutdownTimeout: def.ShutdownTimeout},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.cfg)
		})
	}
}

func TestManager_AddrResolvesAfterStart(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Addr = "127.0.0.1:0"
	m := NewManager(http.NewServeMux(), cfg, zap.NewNop())
	assert.Equal(t, "127.0.0.1:0", m.Addr(), "before start the configured address is reported")

	require.NoError(t, m.Start())
	t.Cleanup(func() { m.Shutdown(context.Background()) })
	assert.True(t, strings.HasPrefix(m.Addr(), "127.0.0.1:"))
	assert.NotEqual(t, "127.0.0.1:0", m.Addr())
}

func TestManager_ServesOnResolvedAddr(t *testing.T) {
	m := startLocal(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, "ok")
	}))

	resp, err := http.Get("http://" + m.Addr() + "/")
	require.NoError(t, err)
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)
	assert.Equal(t, "ok", string(body))

	require.NoError(t, m.Shutdown(context.Background()))
	require.NoError(t, m.Shutdown(context.Background()))
	assert.ErrorContains(t, m.Start(), "closed")
}

func TestManager_WaitForShutdownOnContext(t *testing.T) {
	m := startLocal(t, http.NewServeMux())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- m.WaitForShutdown(ctx) }()

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("WaitForShutdown did not return")
	}
	assert.False(t, m.IsRunning())
}

func TestManager_WaitForShutdownReturnsServeError(t *testing.T) {
	m := startLocal(t, http.NewServeMux())

	done := make(chan error, 1)
	go func() { done <- m.WaitForShutdown(context.Background()) }()

	// 监听器被意外关闭时 Serve 返回非 ErrServerClosed 错误
	m.mu.RLock()
	require.NoError(t, m.listener.Close())
	m.mu.RUnlock()

	select {
	case err := <-done:
		require.Error(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("WaitForShutdown did not return")
	}
	assert.False(t, m.IsRunning())
}

func TestManager_ShutdownWaitsForInflightRequest(t *testing.T) {
	release := make(chan struct{})
	started := make(chan struct{})
	m := startLocal(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		close(started)
		<-release
		w.WriteHeader(http.StatusAccepted)
	}))

	got := make(chan int, 1)
	go func() {
		resp, err := http.Get("http://" + m.Addr() + "/")
		if err != nil {
			got <- 0
			return
		}
		resp.Body.Close()
		got <- resp.StatusCode
	}()
	<-started

	shut := make(chan error, 1)
	go func() { shut <- m.Shutdown(context.Background()) }()
	close(release)

	assert.Equal(t, http.StatusAccepted, <-got)
	assert.NoError(t, <-shut)
}
