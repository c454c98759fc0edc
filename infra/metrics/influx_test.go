package metrics

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/influxdata/influxdb-client-go/v2/api/write"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	coremetrics "github.com/kilianp07/vmc/core/metrics"
)

type lineRecorder struct {
	mu     sync.Mutex
	bodies []string
}

func (l *lineRecorder) server(t *testing.T) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		data, _ := io.ReadAll(r.Body)
		l.mu.Lock()
		l.bodies = append(l.bodies, strings.TrimSpace(string(data)))
		l.mu.Unlock()
		w.WriteHeader(http.StatusNoContent)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func (l *lineRecorder) lines() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]string(nil), l.bodies...)
}

func lineProtocol(p *write.Point) string {
	return strings.TrimSpace(write.PointToLineProtocol(p, time.Nanosecond))
}

func TestInfluxSink_RecordVendLifecycle(t *testing.T) {
	rec := &lineRecorder{}
	srv := rec.server(t)
	sink := NewInfluxSink(InfluxConfig{URL: srv.URL + "/api/v2/write", Token: "tok", Org: "org", Bucket: "vmc"})
	defer sink.Close()
	now := time.Now()

	require.NoError(t, sink.RecordVendStarted(coremetrics.VendStartedEvent{ObserverID: "o1", Items: 2, Estimated: 5 * time.Second, Time: now}))
	require.NoError(t, sink.RecordVendCompleted(coremetrics.VendCompletedEvent{Items: 2, Duration: 5001500 * time.Microsecond, Time: now}))
	require.NoError(t, sink.RecordVendRejected(coremetrics.VendRejectedEvent{ObserverID: "o2", Reason: coremetrics.ResultBusy, Time: now}))

	started := write.NewPointWithMeasurement("vend_started").
		AddTag("component", "vending_controller").
		AddTag("observer_id", "o1").
		AddField("items", 2).
		AddField("estimated_ms", int64(5000)).
		SetTime(now)
	completed := write.NewPointWithMeasurement("vend_completed").
		AddTag("component", "vending_controller").
		AddField("items", 2).
		AddField("duration_ms", 5001.5).
		SetTime(now)
	rejected := write.NewPointWithMeasurement("vend_rejected").
		AddTag("component", "vending_controller").
		AddTag("reason", "busy").
		AddTag("observer_id", "o2").
		AddField("count", 1).
		SetTime(now)

	assert.Equal(t, []string{lineProtocol(started), lineProtocol(completed), lineProtocol(rejected)}, rec.lines())
}

func TestInfluxSink_RecordDeliveryFailure(t *testing.T) {
	rec := &lineRecorder{}
	srv := rec.server(t)
	sink := NewInfluxSink(InfluxConfig{URL: srv.URL, Token: "tok", Org: "org", Bucket: "vmc"})
	defer sink.Close()
	now := time.Now()

	require.NoError(t, sink.RecordDeliveryFailure(coremetrics.DeliveryFailureEvent{
		ObserverID: "o1", MessageType: "status", Error: "send buffer full", Time: now,
	}))
	p := write.NewPointWithMeasurement("delivery_failed").
		AddTag("component", "registry").
		AddTag("message_type", "status").
		AddTag("observer_id", "o1").
		AddField("error", "send buffer full").
		SetTime(now)
	assert.Equal(t, []string{lineProtocol(p)}, rec.lines())
}

func TestNewInfluxSinkWithFallback(t *testing.T) {
	var called bool
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/health" {
			called = true
			w.WriteHeader(http.StatusInternalServerError)
		}
	}))
	defer srv.Close()

	sink := NewInfluxSinkWithFallback(InfluxConfig{URL: srv.URL + "/api/v2/write", Token: "tok", Org: "org", Bucket: "vmc"})
	_, ok := sink.(*InfluxSink)
	assert.False(t, ok, "expected NopSink on failing health check")
	assert.True(t, called)
}
