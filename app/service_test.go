package app

import (
	"context"
	"errors"
	"io"
	"net"
	"net/http"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kilianp07/vmc/config"
	"github.com/kilianp07/vmc/core/factory"
)

const testDispense = 300

func testConfig() *config.Config {
	cfg := &config.Config{}
	cfg.Vending.DispenseMS = testDispense
	cfg.Metrics.Sinks = []factory.ModuleConfig{{Type: "prometheus"}}
	cfg.SetDefaults()
	return cfg
}

// startService serves on an ephemeral port. stop cancels and waits for
// Serve to return; it may be called more than once.
func startService(t *testing.T) (addr string, stop func() error) {
	t.Helper()
	svc, err := New(testConfig())
	require.NoError(t, err)
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- svc.Serve(ctx, ln) }()

	var once sync.Once
	var serveErr error
	stop = func() error {
		once.Do(func() {
			cancel()
			select {
			case serveErr = <-done:
			case <-time.After(5 * time.Second):
				serveErr = errors.New("service did not stop")
			}
		})
		return serveErr
	}
	t.Cleanup(func() { _ = stop() })
	return ln.Addr().String(), stop
}

type observer struct {
	t    *testing.T
	conn *websocket.Conn
}

func dial(t *testing.T, addr string) *observer {
	t.Helper()
	conn, _, err := websocket.DefaultDialer.Dial("ws://"+addr+"/", nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	return &observer{t: t, conn: conn}
}

func (o *observer) send(v any) {
	o.t.Helper()
	require.NoError(o.t, o.conn.WriteJSON(v))
}

func (o *observer) read() map[string]any {
	o.t.Helper()
	require.NoError(o.t, o.conn.SetReadDeadline(time.Now().Add(3*time.Second)))
	var m map[string]any
	require.NoError(o.t, o.conn.ReadJSON(&m))
	return m
}

func TestService_VendScenario(t *testing.T) {
	addr, _ := startService(t)
	a := dial(t, addr)
	b := dial(t, addr)

	assert.Equal(t, map[string]any{"type": "status", "status": "idle", "items": []any{}}, a.read())
	assert.Equal(t, "idle", b.read()["status"])

	started := time.Now()
	a.send(map[string]any{"type": "vend", "items": []any{"A1", "B3"}})

	ack := a.read()
	assert.Equal(t, "vend-response", ack["type"])
	assert.Equal(t, true, ack["success"])
	assert.Equal(t, float64(testDispense), ack["estimatedTime"])

	for _, o := range []*observer{a, b} {
		m := o.read()
		assert.Equal(t, "status", m["type"])
		assert.Equal(t, "vending", m["status"])
		assert.Equal(t, "Vending started", m["message"])
		assert.Equal(t, []any{"A1", "B3"}, m["items"])
	}

	b.send(map[string]any{"type": "vend", "items": []any{"C1"}})
	busy := b.read()
	assert.Equal(t, false, busy["success"])
	assert.Equal(t, []any{"A1", "B3"}, busy["currentItems"])

	for _, o := range []*observer{a, b} {
		m := o.read()
		assert.Equal(t, "vend-complete", m["type"])
		assert.Equal(t, "idle", m["status"])
		assert.Equal(t, "Vending completed successfully", m["message"])
		assert.Equal(t, []any{"A1", "B3"}, m["vendedItems"])
	}
	assert.GreaterOrEqual(t, time.Since(started), testDispense*time.Millisecond)

	a.send(map[string]any{"type": "status"})
	assert.Equal(t, "Machine is idle", a.read()["message"])
}

func TestService_MetricsExposed(t *testing.T) {
	addr, _ := startService(t)
	a := dial(t, addr)
	a.read()
	a.send(map[string]any{"type": "vend", "items": []any{}})
	assert.Equal(t, false, a.read()["success"])

	require.Eventually(t, func() bool {
		resp, err := http.Get("http://" + addr + "/metrics")
		if err != nil {
			return false
		}
		defer resp.Body.Close()
		body, _ := io.ReadAll(resp.Body)
		return strings.Contains(string(body), `vmc_vend_requests_total{result="invalid"}`) &&
			strings.Contains(string(body), "vmc_observers_connected 1")
	}, 3*time.Second, 20*time.Millisecond)
}

func TestService_ShutdownDisconnectsObservers(t *testing.T) {
	addr, stop := startService(t)
	a := dial(t, addr)
	a.read()
	a.send(map[string]any{"type": "vend", "items": []any{7}})
	a.read()
	a.read()

	require.NoError(t, stop())

	require.NoError(t, a.conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	for {
		var m map[string]any
		if err := a.conn.ReadJSON(&m); err != nil {
			break
		}
		assert.NotEqual(t, "vend-complete", m["type"], "no completion after shutdown")
	}
}
