package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	coremetrics "github.com/kilianp07/vmc/core/metrics"
)

func TestPromSink_Records(t *testing.T) {
	reg := prometheus.NewRegistry()
	sink, err := NewPromSinkWithRegistry(reg)
	require.NoError(t, err)

	require.NoError(t, sink.RecordVendStarted(coremetrics.VendStartedEvent{Items: 2}))
	require.NoError(t, sink.RecordVendRejected(coremetrics.VendRejectedEvent{Reason: coremetrics.ResultBusy}))
	require.NoError(t, sink.RecordVendRejected(coremetrics.VendRejectedEvent{Reason: coremetrics.ResultBusy}))
	require.NoError(t, sink.RecordVendRejected(coremetrics.VendRejectedEvent{Reason: coremetrics.ResultInvalid}))
	require.NoError(t, sink.RecordVendCompleted(coremetrics.VendCompletedEvent{Items: 2, Duration: 5 * time.Second}))
	require.NoError(t, sink.RecordObservers(4))
	require.NoError(t, sink.RecordDeliveryFailure(coremetrics.DeliveryFailureEvent{MessageType: "status"}))

	assert.Equal(t, 1.0, testutil.ToFloat64(sink.vends.WithLabelValues("accepted")))
	assert.Equal(t, 2.0, testutil.ToFloat64(sink.vends.WithLabelValues("busy")))
	assert.Equal(t, 1.0, testutil.ToFloat64(sink.vends.WithLabelValues("invalid")))
	assert.Equal(t, 2.0, testutil.ToFloat64(sink.items))
	assert.Equal(t, 4.0, testutil.ToFloat64(sink.observers))
	assert.Equal(t, 1.0, testutil.ToFloat64(sink.failures.WithLabelValues("status")))
	assert.Equal(t, 1, testutil.CollectAndCount(sink.duration))
}

func TestPromSink_ReusesRegisteredCollectors(t *testing.T) {
	reg := prometheus.NewRegistry()
	first, err := NewPromSinkWithRegistry(reg)
	require.NoError(t, err)
	second, err := NewPromSinkWithRegistry(reg)
	require.NoError(t, err)

	require.NoError(t, first.RecordObservers(1))
	require.NoError(t, second.RecordObservers(7))
	assert.Equal(t, 7.0, testutil.ToFloat64(first.observers))
}
