package config

import (
	"log"
	"os"
	"strconv"
	"time"
)

// Load loads configuration from environment variables, falling back to
// Default() for any value not overridden.
func Load() *Config {
	cfg := Default()

	if port := os.Getenv("MISSIONCORE_PORT"); port != "" {
		if p, err := strconv.Atoi(port); err == nil {
			cfg.Server.Port = p
		}
	}

	if host := os.Getenv("MISSIONCORE_HOST"); host != "" {
		cfg.Server.Host = host
	}

	if logLevel := os.Getenv("MISSIONCORE_LOG_LEVEL"); logLevel != "" {
		cfg.Logging.Level = logLevel
	}

	if seedPath := os.Getenv("MISSIONCORE_FLEET_SEED"); seedPath != "" {
		cfg.Server.FleetSeedPath = seedPath
	}

	if tick := os.Getenv("MISSIONCORE_TICK_MS"); tick != "" {
		if ms, err := strconv.Atoi(tick); err == nil {
			cfg.Sim.TickInterval = time.Duration(ms) * time.Millisecond
		}
	}

	if critical := os.Getenv("MISSIONCORE_CRITICAL_BATTERY_PCT"); critical != "" {
		if v, err := strconv.ParseFloat(critical, 64); err == nil {
			cfg.Sim.CriticalBatteryPct = v
		}
	}

	if err := cfg.Validate(); err != nil {
		log.Fatalf("invalid configuration: %v", err)
	}

	return cfg
}
