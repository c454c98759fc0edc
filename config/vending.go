package config

import (
	"fmt"
	"time"
)

// DefaultDispenseMS is the simulated dispensing delay.
const DefaultDispenseMS = 5000

// VendingConfig defines the simulated machine.
type VendingConfig struct {
	DispenseMS int `json:"dispense_ms"`
}

// SetDefaults applies sane defaults.
func (c *VendingConfig) SetDefaults() {
	if c.DispenseMS == 0 {
		c.DispenseMS = DefaultDispenseMS
	}
}

// Validate checks mandatory fields.
func (c VendingConfig) Validate() error {
	if c.DispenseMS < 0 {
		return fmt.Errorf("vending.dispense_ms must be positive, got %d", c.DispenseMS)
	}
	return nil
}

// Dispense returns DispenseMS as a duration.
func (c VendingConfig) Dispense() time.Duration {
	return time.Duration(c.DispenseMS) * time.Millisecond
}
