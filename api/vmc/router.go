package vmc

import (
	"net/http"

	"github.com/kilianp07/vmc/core/logger"
	"github.com/kilianp07/vmc/infra/ws"
)

// Endpoints lists the routes served by NewRouter, for the startup banner.
var Endpoints = []string{
	"WebSocket  /  (also /ws)",
	"POST       /vend",
	"GET        /status",
	"GET        /health",
}

// RouterOptions carries optional handlers mounted next to the API.
type RouterOptions struct {
	// Metrics is mounted on GET /metrics when set.
	Metrics http.Handler
}

// NewRouter assembles the HTTP surface: WebSocket observers on / and /ws,
// the JSON API and CORS for browser clients.
func NewRouter(ctrl Controller, wsHandler http.Handler, log logger.Logger, opts RouterOptions) http.Handler {
	mux := http.NewServeMux()
	mux.Handle("GET /health", NewHealthHandler(ctrl))
	mux.Handle("GET /status", NewStatusHandler(ctrl))
	mux.Handle("POST /vend", NewVendHandler(ctrl, log))
	mux.Handle("/ws", wsHandler)
	if opts.Metrics != nil {
		mux.Handle("GET /metrics", opts.Metrics)
	}
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/" && ws.IsUpgrade(r) {
			wsHandler.ServeHTTP(w, r)
			return
		}
		http.NotFound(w, r)
	})
	return CORS(mux)
}

// CORS allows any origin and answers preflight requests.
func CORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		h := w.Header()
		h.Set("Access-Control-Allow-Origin", "*")
		h.Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		h.Set("Access-Control-Allow-Headers", "Content-Type")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}
