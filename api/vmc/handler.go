package vmc

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/kilianp07/vmc/core/logger"
	"github.com/kilianp07/vmc/core/protocol"
	"github.com/kilianp07/vmc/core/registry"
	"github.com/kilianp07/vmc/core/vending"
)

const maxBodyBytes = 64 << 10

// Controller is the part of the vending controller exposed over HTTP.
type Controller interface {
	Handle(o registry.Observer, payload []byte) error
	Status(o registry.Observer)
	Health(o registry.Observer)
}

// NewHealthHandler serves GET /health.
func NewHealthHandler(ctrl Controller) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		o := newReplyObserver()
		ctrl.Health(o)
		writeReply(w, http.StatusOK, o.Reply())
	})
}

// NewStatusHandler serves GET /status.
func NewStatusHandler(ctrl Controller) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		o := newReplyObserver()
		ctrl.Status(o)
		writeReply(w, http.StatusOK, o.Reply())
	})
}

// NewVendHandler serves POST /vend with a {"items":[...]} body. The reply is
// the vend-response the WebSocket requester would get; observers connected
// over WebSocket see the same broadcasts.
func NewVendHandler(ctrl Controller, log logger.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
		if err != nil {
			writeReply(w, http.StatusRequestEntityTooLarge, protocol.NewError(err.Error()))
			return
		}
		var req struct {
			Items json.RawMessage `json:"items"`
		}
		if err := json.Unmarshal(body, &req); err != nil {
			writeReply(w, http.StatusBadRequest, protocol.ReplyFor(protocol.ErrMalformedPayload))
			return
		}
		payload, err := json.Marshal(struct {
			Type  string          `json:"type"`
			Items json.RawMessage `json:"items,omitempty"`
		}{Type: protocol.TypeVend, Items: req.Items})
		if err != nil {
			writeReply(w, http.StatusInternalServerError, protocol.NewError(err.Error()))
			return
		}

		o := newReplyObserver()
		err = ctrl.Handle(o, payload)
		if err != nil {
			log.Debugf("POST /vend from %s: %v", r.RemoteAddr, err)
		}
		writeReply(w, statusFor(err), o.Reply())
	})
}

func statusFor(err error) int {
	var busy *protocol.BusyError
	var invalid *protocol.ValidationError
	switch {
	case err == nil:
		return http.StatusOK
	case errors.As(err, &busy):
		return http.StatusConflict
	case errors.As(err, &invalid), errors.Is(err, protocol.ErrMalformedPayload):
		return http.StatusBadRequest
	case errors.Is(err, vending.ErrClosed):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func writeReply(w http.ResponseWriter, code int, msg protocol.Message) {
	if msg == nil {
		msg = protocol.NewError(http.StatusText(code))
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(msg)
}
