package app

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	api "github.com/kilianp07/vmc/api/vmc"
	"github.com/kilianp07/vmc/config"
	coremetrics "github.com/kilianp07/vmc/core/metrics"
	coremon "github.com/kilianp07/vmc/core/monitoring"
	"github.com/kilianp07/vmc/core/registry"
	"github.com/kilianp07/vmc/core/vending"
	"github.com/kilianp07/vmc/infra/logger"
	"github.com/kilianp07/vmc/infra/metrics"
	"github.com/kilianp07/vmc/infra/monitoring"
	"github.com/kilianp07/vmc/infra/mqtt"
	"github.com/kilianp07/vmc/infra/ws"
	"github.com/kilianp07/vmc/internal/eventbus"
)

// Service wires the vending controller to its transports and observability
// sinks and owns the HTTP server lifecycle.
type Service struct {
	Controller *vending.Controller
	Registry   *registry.Registry

	cfg     *config.Config
	log     logger.Logger
	bus     *eventbus.Bus
	sink    coremetrics.MetricsSink
	mqtt    *mqtt.PahoClient
	handler http.Handler

	closeOnce sync.Once
}

// New creates a Service from the configuration.
func New(cfg *config.Config) (*Service, error) {
	log := logger.New("service")

	mon, err := monitoring.NewSentryMonitor(cfg.Sentry)
	if err != nil {
		return nil, fmt.Errorf("sentry: %w", err)
	}
	coremon.Init(mon)

	sink, err := coremetrics.NewMetricsSink(cfg.Metrics.Sinks)
	if err != nil {
		return nil, fmt.Errorf("metrics sink: %w", err)
	}

	var client *mqtt.PahoClient
	if cfg.MQTT.Enabled() {
		client, err = mqtt.NewPahoClient(cfg.MQTT)
		if err != nil {
			return nil, fmt.Errorf("mqtt client: %w", err)
		}
	}

	bus := eventbus.New()
	reg := registry.New(bus, logger.New("registry"))
	ctrl, err := vending.NewController(vending.NewState(), reg, bus, logger.New("vending"), cfg.Vending.Dispense())
	if err != nil {
		if client != nil {
			client.Disconnect()
		}
		return nil, fmt.Errorf("vending controller: %w", err)
	}

	var opts api.RouterOptions
	if cfg.Metrics.HasSink("prometheus") && cfg.Metrics.PrometheusPort == "" {
		opts.Metrics = metrics.Handler()
	}
	wsHandler := ws.NewHandler(ctrl, cfg.WS, logger.New("ws"))
	handler := api.NewRouter(ctrl, wsHandler, logger.New("api"), opts)

	return &Service{
		Controller: ctrl,
		Registry:   reg,
		cfg:        cfg,
		log:        log,
		bus:        bus,
		sink:       sink,
		mqtt:       client,
		handler:    handler,
	}, nil
}

// Handler returns the HTTP handler serving WebSocket observers and the API.
func (s *Service) Handler() http.Handler { return s.handler }

// Run listens on the configured port and blocks until ctx is canceled.
func (s *Service) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.cfg.Server.Addr())
	if err != nil {
		return fmt.Errorf("listen %s: %w", s.cfg.Server.Addr(), err)
	}
	return s.Serve(ctx, ln)
}

// Serve accepts connections on ln until ctx is canceled, then shuts the
// server down and stops the pending vend.
func (s *Service) Serve(ctx context.Context, ln net.Listener) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	collectorDone := metrics.StartEventCollector(ctx, s.bus, s.sink)
	var mirrorDone <-chan struct{}
	if s.mqtt != nil {
		mirrorDone = mqtt.NewMirror(s.mqtt, s.cfg.MQTT.TopicPrefix).Start(ctx, s.bus)
	}
	if port := s.cfg.Metrics.PrometheusPort; port != "" {
		go func() {
			if err := metrics.StartPromServer(ctx, ":"+port); err != nil {
				s.log.Errorf("prom server: %v", err)
			}
		}()
	}

	srv := &http.Server{Handler: s.handler, ReadHeaderTimeout: 10 * time.Second}
	errCh := make(chan error, 1)
	go func() {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()
	s.banner(ln.Addr())

	var serveErr error
	select {
	case <-ctx.Done():
	case serveErr = <-errCh:
	}

	s.log.Infof("Shutting down VMC Mock Server...")
	shutdownCtx, stop := context.WithTimeout(context.Background(), s.cfg.Server.ShutdownTimeout())
	defer stop()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		s.log.Errorf("http shutdown: %v", err)
	}
	// Hijacked WebSocket connections are not tracked by http.Server.
	s.Close()
	cancel()
	<-collectorDone
	if mirrorDone != nil {
		<-mirrorDone
	}
	return serveErr
}

func (s *Service) banner(addr net.Addr) {
	port := s.cfg.Server.Port
	if tcp, ok := addr.(*net.TCPAddr); ok {
		port = fmt.Sprint(tcp.Port)
	}
	s.log.Infof("VMC Mock Server running on port %s", port)
	s.log.Infof("WebSocket endpoint: ws://localhost:%s", port)
	for _, e := range api.Endpoints {
		s.log.Infof("  %s", e)
	}
	s.log.Infof("Dispense duration: %s", s.Controller.DispenseDuration())
}

// Close stops the pending completion timer, disconnects every observer and
// releases external clients. It is safe to call more than once.
func (s *Service) Close() {
	s.closeOnce.Do(func() {
		s.Controller.Close()
		s.Registry.Close()
		s.bus.Close()
		if s.mqtt != nil {
			s.mqtt.Disconnect()
		}
		if c, ok := s.sink.(interface{ Close() }); ok {
			c.Close()
		}
		coremon.Flush(2 * time.Second)
	})
}
