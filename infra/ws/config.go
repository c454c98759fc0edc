package ws

import "time"

// Config tunes the WebSocket transport.
type Config struct {
	// SendBuffer is the number of outbound messages queued per observer
	// before it is considered unreachable.
	SendBuffer int `json:"send_buffer"`
	// MaxMessageBytes bounds inbound frames.
	MaxMessageBytes int64 `json:"max_message_bytes"`
	// WriteTimeoutMS bounds a single frame write.
	WriteTimeoutMS int `json:"write_timeout_ms"`
	// PongTimeoutMS is how long a silent peer is kept before it is dropped.
	PongTimeoutMS int `json:"pong_timeout_ms"`
	// CommandsPerSecond limits inbound commands per connection; 0 disables it.
	CommandsPerSecond float64 `json:"commands_per_second"`
	// CommandBurst is the limiter bucket size.
	CommandBurst int `json:"command_burst"`
}

// SetDefaults applies sane defaults.
func (c *Config) SetDefaults() {
	if c.SendBuffer <= 0 {
		c.SendBuffer = 64
	}
	if c.MaxMessageBytes <= 0 {
		c.MaxMessageBytes = 64 * 1024
	}
	if c.WriteTimeoutMS <= 0 {
		c.WriteTimeoutMS = 10_000
	}
	if c.PongTimeoutMS <= 0 {
		c.PongTimeoutMS = 60_000
	}
	if c.CommandsPerSecond > 0 && c.CommandBurst <= 0 {
		c.CommandBurst = int(c.CommandsPerSecond)
		if c.CommandBurst < 1 {
			c.CommandBurst = 1
		}
	}
}

func (c Config) writeTimeout() time.Duration {
	return time.Duration(c.WriteTimeoutMS) * time.Millisecond
}

func (c Config) pongTimeout() time.Duration {
	return time.Duration(c.PongTimeoutMS) * time.Millisecond
}

// pingPeriod must stay below the pong timeout.
func (c Config) pingPeriod() time.Duration {
	return c.pongTimeout() * 9 / 10
}
