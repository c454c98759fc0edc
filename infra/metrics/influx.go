package metrics

import (
	"context"
	"math"
	"net/http"
	"strings"
	"time"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	"github.com/influxdata/influxdb-client-go/v2/api"
	"github.com/influxdata/influxdb-client-go/v2/api/write"

	coremetrics "github.com/kilianp07/vmc/core/metrics"
	"github.com/kilianp07/vmc/infra/logger"
)

const writeTimeout = 5 * time.Second

// InfluxConfig holds the connection settings of an InfluxSink.
type InfluxConfig struct {
	URL    string `json:"url"`
	Token  string `json:"token"`
	Org    string `json:"org"`
	Bucket string `json:"bucket"`
}

// InfluxSink writes vend lifecycle points to an InfluxDB instance using the
// official client.
type InfluxSink struct {
	client   influxdb2.Client
	writeAPI api.WriteAPIBlocking
	log      logger.Logger
}

// NewInfluxSink creates a new sink configured for the given InfluxDB endpoint.
func NewInfluxSink(cfg InfluxConfig) *InfluxSink {
	base := strings.TrimSuffix(cfg.URL, "/api/v2/write")
	client := influxdb2.NewClientWithOptions(base, cfg.Token,
		influxdb2.DefaultOptions().SetHTTPClient(&http.Client{Timeout: writeTimeout}))
	return &InfluxSink{
		client:   client,
		writeAPI: client.WriteAPIBlocking(cfg.Org, cfg.Bucket),
		log:      logger.New("influx-sink"),
	}
}

// NewInfluxSinkWithFallback pings the InfluxDB instance and returns a NopSink
// if the health check fails.
func NewInfluxSinkWithFallback(cfg InfluxConfig) coremetrics.MetricsSink {
	sink := NewInfluxSink(cfg)
	ctx, cancel := context.WithTimeout(context.Background(), writeTimeout)
	defer cancel()
	health, err := sink.client.Health(ctx)
	if err != nil || health.Status != "pass" {
		if err != nil {
			sink.log.Errorf("influx health check error: %v", err)
		} else {
			sink.log.Errorf("influx health status: %s", health.Status)
		}
		sink.client.Close()
		return coremetrics.NopSink{}
	}
	return sink
}

// Close releases the underlying client.
func (s *InfluxSink) Close() {
	s.client.Close()
}

func (s *InfluxSink) writePoint(p *write.Point) error {
	ctx, cancel := context.WithTimeout(context.Background(), writeTimeout)
	defer cancel()
	return s.writeAPI.WritePoint(ctx, p)
}

// RecordVendStarted writes a vend_started point.
func (s *InfluxSink) RecordVendStarted(ev coremetrics.VendStartedEvent) error {
	p := write.NewPointWithMeasurement("vend_started").
		AddTag("component", "vending_controller").
		AddTag("observer_id", ev.ObserverID).
		AddField("items", ev.Items).
		AddField("estimated_ms", ev.Estimated.Milliseconds()).
		SetTime(ev.Time)
	return s.writePoint(p)
}

// RecordVendCompleted writes a vend_completed point.
func (s *InfluxSink) RecordVendCompleted(ev coremetrics.VendCompletedEvent) error {
	p := write.NewPointWithMeasurement("vend_completed").
		AddTag("component", "vending_controller").
		AddField("items", ev.Items).
		AddField("duration_ms", round3(float64(ev.Duration)/float64(time.Millisecond))).
		SetTime(ev.Time)
	return s.writePoint(p)
}

// RecordVendRejected writes a vend_rejected point.
func (s *InfluxSink) RecordVendRejected(ev coremetrics.VendRejectedEvent) error {
	p := write.NewPointWithMeasurement("vend_rejected").
		AddTag("component", "vending_controller").
		AddTag("reason", ev.Reason).
		AddTag("observer_id", ev.ObserverID).
		AddField("count", 1).
		SetTime(ev.Time)
	return s.writePoint(p)
}

// RecordDeliveryFailure writes a delivery_failed point.
func (s *InfluxSink) RecordDeliveryFailure(ev coremetrics.DeliveryFailureEvent) error {
	p := write.NewPointWithMeasurement("delivery_failed").
		AddTag("component", "registry").
		AddTag("message_type", ev.MessageType).
		AddTag("observer_id", ev.ObserverID).
		AddField("error", ev.Error).
		SetTime(ev.Time)
	return s.writePoint(p)
}

func round3(f float64) float64 {
	return math.Round(f*1000) / 1000
}
