package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/knadh/koanf/parsers/json"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"

	"github.com/kilianp07/vmc/core/metrics"
	"github.com/kilianp07/vmc/infra/monitoring"
	"github.com/kilianp07/vmc/infra/mqtt"
	"github.com/kilianp07/vmc/infra/ws"
)

// DefaultPath is loaded when no explicit path is given and the file exists.
const DefaultPath = "config.yaml"

// EnvPrefix prefixes environment overrides: VMC_SERVER__PORT sets server.port.
const EnvPrefix = "VMC_"

type Config struct {
	Server  ServerConfig      `json:"server"`
	Vending VendingConfig     `json:"vending"`
	WS      ws.Config         `json:"ws"`
	Metrics metrics.Config    `json:"metrics"`
	MQTT    mqtt.Config       `json:"mqtt"`
	Sentry  monitoring.Config `json:"sentry"`
}

// Load reads the configuration file at path, then applies the PORT variable
// and VMC_ prefixed overrides. An empty path falls back to DefaultPath when
// present; the service also runs with no file at all.
func Load(path string) (*Config, error) {
	k := koanf.New(".")
	if path == "" {
		if _, err := os.Stat(DefaultPath); err == nil {
			path = DefaultPath
		}
	}
	if path != "" {
		parser, err := parserFor(path)
		if err != nil {
			return nil, err
		}
		if err := k.Load(file.Provider(path), parser); err != nil {
			return nil, fmt.Errorf("load %s: %w", path, err)
		}
	}
	if err := k.Load(env.Provider("PORT", ".", func(s string) string {
		if s == "PORT" {
			return "server.port"
		}
		return ""
	}), nil); err != nil {
		return nil, err
	}
	if err := k.Load(env.Provider(EnvPrefix, ".", func(s string) string {
		s = strings.TrimPrefix(strings.ToLower(s), strings.ToLower(EnvPrefix))
		return strings.ReplaceAll(s, "__", ".")
	}), nil); err != nil {
		return nil, err
	}

	var cfg Config
	if err := k.UnmarshalWithConf("", &cfg, koanf.UnmarshalConf{Tag: "json"}); err != nil {
		return nil, err
	}
	cfg.SetDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func parserFor(path string) (koanf.Parser, error) {
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".yaml", ".yml":
		return yaml.Parser(), nil
	case ".json":
		return json.Parser(), nil
	default:
		return nil, fmt.Errorf("unsupported config format: %s", ext)
	}
}

// SetDefaults applies defaults to every section.
func (c *Config) SetDefaults() {
	c.Server.SetDefaults()
	c.Vending.SetDefaults()
	c.WS.SetDefaults()
	if c.MQTT.Enabled() {
		c.MQTT.SetDefaults()
	}
}

// Validate checks every section.
func (c Config) Validate() error {
	return errors.Join(
		c.Server.Validate(),
		c.Vending.Validate(),
		c.MQTT.Validate(),
		validatePort("metrics.prometheus_port", c.Metrics.PrometheusPort, true),
	)
}

func validatePort(key, port string, optional bool) error {
	if port == "" && optional {
		return nil
	}
	n, err := strconv.Atoi(port)
	if err != nil || n < 1 || n > 65535 {
		return fmt.Errorf("%s must be a port number between 1 and 65535, got %q", key, port)
	}
	return nil
}
