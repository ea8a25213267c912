package config

import (
	"fmt"
	"time"
)

// Config holds all application configuration.
type Config struct {
	Server  ServerConfig
	Sim     SimConfig
	Logging LoggingConfig
}

// ServerConfig holds process-level settings: listen address and the path
// to the fleet/base seed file.
type ServerConfig struct {
	Host          string
	Port          int
	FleetSeedPath string // path to fleet.yaml (bases + drones)
}

// SimConfig holds the numeric constants spec §6 lists as externally
// configurable but defaulted: tick interval, battery drain rate, critical
// and min-dispatch battery thresholds, rendezvous radius, charge rate, and
// the replacement/return flight timeouts.
type SimConfig struct {
	TickInterval              time.Duration
	BatteryDrainRatePerMinute float64 // percent/min
	WaypointThresholdM        float64
	CriticalBatteryPct        float64
	MinBatteryForMissionPct   float64
	RendezvousRadiusM         float64
	ChargeRatePerSecond       float64 // percent/sec
	ChargingMaxTicks          int
	ReplacementFlightTimeout  time.Duration
	ReturnFlightMinDuration   time.Duration
	ReturnFlightMaxDuration   time.Duration
	ReturnFlightCruiseMS      float64
	TelemetryWriteRetries     int
	TelemetryRetryBackoff     time.Duration
}

// LoggingConfig controls the process-wide logger.
type LoggingConfig struct {
	Level string // "debug", "info", "warn", "error"
}

// Default returns a Config with the values spec §6 lists as defaults.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Host:          "0.0.0.0",
			Port:          8080,
			FleetSeedPath: "./data/config/fleet.yaml",
		},
		Sim: SimConfig{
			TickInterval:              time.Second,
			BatteryDrainRatePerMinute: 2.0,
			WaypointThresholdM:        2.0,
			CriticalBatteryPct:        20.0,
			MinBatteryForMissionPct:   30.0,
			RendezvousRadiusM:         10.0,
			ChargeRatePerSecond:       5.0,
			ChargingMaxTicks:          30,
			ReplacementFlightTimeout:  60 * time.Second,
			ReturnFlightMinDuration:   5 * time.Second,
			ReturnFlightMaxDuration:   30 * time.Second,
			ReturnFlightCruiseMS:      10.0,
			TelemetryWriteRetries:     3,
			TelemetryRetryBackoff:     time.Second,
		},
		Logging: LoggingConfig{
			Level: "info",
		},
	}
}

// Validate checks that the configuration is internally consistent.
func (c *Config) Validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid port: %d", c.Server.Port)
	}

	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[c.Logging.Level] {
		return fmt.Errorf("invalid log level: %s", c.Logging.Level)
	}

	if c.Sim.TickInterval <= 0 {
		return fmt.Errorf("invalid tick interval: %v", c.Sim.TickInterval)
	}
	if c.Sim.CriticalBatteryPct < 0 || c.Sim.CriticalBatteryPct > 100 {
		return fmt.Errorf("invalid critical battery percent: %v", c.Sim.CriticalBatteryPct)
	}
	if c.Sim.MinBatteryForMissionPct < c.Sim.CriticalBatteryPct {
		return fmt.Errorf("min battery for mission (%v) must be >= critical battery (%v)", c.Sim.MinBatteryForMissionPct, c.Sim.CriticalBatteryPct)
	}

	return nil
}

// ServerAddr returns the server address as host:port.
func (c *Config) ServerAddr() string {
	return fmt.Sprintf("%s:%d", c.Server.Host, c.Server.Port)
}
