package ws

import (
	"fmt"
	"net/http"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/kilianp07/vmc/core/logger"
	"github.com/kilianp07/vmc/core/monitoring"
	"github.com/kilianp07/vmc/core/registry"
)

// Controller is the part of the vending controller the transport needs.
type Controller interface {
	Connect(o registry.Observer)
	Disconnect(o registry.Observer)
	Handle(o registry.Observer, payload []byte) error
}

// Handler upgrades HTTP requests to observer connections.
type Handler struct {
	ctrl     Controller
	cfg      Config
	log      logger.Logger
	upgrader websocket.Upgrader
}

// NewHandler returns an http.Handler serving WebSocket observers.
func NewHandler(ctrl Controller, cfg Config, log logger.Logger) *Handler {
	cfg.SetDefaults()
	return &Handler{
		ctrl: ctrl,
		cfg:  cfg,
		log:  log,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(*http.Request) bool { return true },
		},
	}
}

// IsUpgrade reports whether r asks for a WebSocket connection.
func IsUpgrade(r *http.Request) bool {
	return websocket.IsWebSocketUpgrade(r)
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade already wrote the HTTP error.
		h.log.Warnf("websocket upgrade from %s failed: %v", r.RemoteAddr, err)
		return
	}
	c := newClient(uuid.NewString(), conn, h.cfg, h.log)
	h.log.Debugf("observer %s accepted from %s", c.ID(), r.RemoteAddr)

	go c.writePump()
	h.ctrl.Connect(c)
	go h.serve(c)
}

func (h *Handler) serve(c *Client) {
	defer c.Close()
	defer h.ctrl.Disconnect(c)
	defer func() {
		if r := recover(); r != nil {
			monitoring.CapturePanic(r, map[string]string{"observer_id": c.ID()})
			h.log.Errorf("observer %s handler panic: %v", c.ID(), r)
		}
	}()
	c.readPump(func(payload []byte) {
		if err := h.ctrl.Handle(c, payload); err != nil {
			h.log.Debugf("observer %s command rejected: %v", c.ID(), err)
		}
	})
}

// String describes the handler configuration for startup logs.
func (h *Handler) String() string {
	return fmt.Sprintf("ws(send_buffer=%d, commands_per_second=%g)", h.cfg.SendBuffer, h.cfg.CommandsPerSecond)
}
