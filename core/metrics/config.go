package metrics

import "github.com/kilianp07/vmc/core/factory"

// Config defines settings for metrics sinks.
//
// PrometheusPort starts a dedicated /metrics listener when set; otherwise
// /metrics is served on the main HTTP port whenever a prometheus sink is
// configured.
type Config struct {
	Sinks          []factory.ModuleConfig `json:"sinks"`
	PrometheusPort string                 `json:"prometheus_port"`
}

// HasSink reports whether a sink of the given type is configured.
func (c Config) HasSink(kind string) bool {
	for _, s := range c.Sinks {
		if s.Type == kind {
			return true
		}
	}
	return false
}
