package config

import "time"

// ServerConfig defines the listening HTTP/WebSocket server.
type ServerConfig struct {
	Port string `json:"port"`
	// ShutdownTimeoutMS bounds graceful shutdown of open connections.
	ShutdownTimeoutMS int `json:"shutdown_timeout_ms"`
}

// SetDefaults applies sane defaults.
func (c *ServerConfig) SetDefaults() {
	if c.Port == "" {
		c.Port = "3002"
	}
	if c.ShutdownTimeoutMS <= 0 {
		c.ShutdownTimeoutMS = 5000
	}
}

// Validate checks mandatory fields.
func (c ServerConfig) Validate() error {
	return validatePort("server.port", c.Port, false)
}

// Addr is the listen address for net/http.
func (c ServerConfig) Addr() string { return ":" + c.Port }

// ShutdownTimeout returns ShutdownTimeoutMS as a duration.
func (c ServerConfig) ShutdownTimeout() time.Duration {
	return time.Duration(c.ShutdownTimeoutMS) * time.Millisecond
}
