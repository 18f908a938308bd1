package runtime

import (
	"fmt"
	"time"

	"offline_worker/internal/config"
)

const (
	defaultDrain           = 500 * time.Millisecond
	defaultGracefulTimeout = 10 * time.Second
	defaultForceClose      = 2 * time.Second
)

type ShutdownConfig struct {
	Drain           time.Duration
	GracefulTimeout time.Duration
	ForceClose      time.Duration
}

func ShutdownFromConfig(cfg config.ShutdownConfig) (ShutdownConfig, error) {
	shutdown := DefaultShutdownConfig()
	fields := []struct {
		name  string
		ms    int
		field *time.Duration
	}{
		{"drain_ms", cfg.DrainMS, &shutdown.Drain},
		{"graceful_timeout_ms", cfg.GracefulTimeoutMS, &shutdown.GracefulTimeout},
		{"force_close_ms", cfg.ForceCloseMS, &shutdown.ForceClose},
	}
	for _, f := range fields {
		if f.ms < 0 {
			return ShutdownConfig{}, fmt.Errorf("shutdown.%s must be non-negative", f.name)
		}
		if f.ms > 0 {
			*f.field = time.Duration(f.ms) * time.Millisecond
		}
	}
	return shutdown, nil
}

func DefaultShutdownConfig() ShutdownConfig {
	return ShutdownConfig{
		Drain:           defaultDrain,
		GracefulTimeout: defaultGracefulTimeout,
		ForceClose:      defaultForceClose,
	}
}

func ApplyShutdownDefaults(cfg ShutdownConfig) ShutdownConfig {
	defaults := DefaultShutdownConfig()
	if cfg.Drain <= 0 {
		cfg.Drain = defaults.Drain
	}
	if cfg.GracefulTimeout <= 0 {
		cfg.GracefulTimeout = defaults.GracefulTimeout
	}
	if cfg.ForceClose <= 0 {
		cfg.ForceClose = defaults.ForceClose
	}
	return cfg
}
