// Package browserlens turns a live page handle into a compact, structured
// description of on-screen state and, on every observation after the
// first, a typed delta against the previous one.
package browserlens

import (
	"go.uber.org/zap"

	"browserlens/internal/config"
	"browserlens/internal/recorder"
)

// Config is the public configuration surface for a Session: the router
// thresholds, resource limits, and optional trace recorder.
// A zero Config is valid — CreateSession fills in the documented defaults.
type Config struct {
	Router  config.RouterConfig
	Limits  config.LimitsConfig
	Tracing config.TracingConfig
}

// DefaultConfig returns the documented router/limits/tracing defaults.
func DefaultConfig() Config {
	full := config.DefaultConfig()
	return Config{Router: full.Router, Limits: full.Limits, Tracing: full.Tracing}
}

// LoadConfig reads a YAML file on disk and overlays it onto DefaultConfig.
func LoadConfig(path string) (Config, error) {
	full, err := config.Load(path)
	if err != nil {
		return Config{}, newError(ConfigurationError, "failed to load config", err)
	}
	return Config{Router: full.Router, Limits: full.Limits, Tracing: full.Tracing}, nil
}

func (c Config) validate() error {
	full := config.Config{Router: c.Router, Limits: c.Limits, Tracing: c.Tracing}
	return full.Validate()
}

// CreateSession builds a Session per the given config, validating
// thresholds up front.
// logger may be nil, in which case logging is a no-op.
func CreateSession(cfg Config, logger *zap.Logger) (*Session, error) {
	if cfg == (Config{}) {
		cfg = DefaultConfig()
	}
	if err := cfg.validate(); err != nil {
		return nil, newError(ConfigurationError, "invalid session configuration", err)
	}

	var rec *recorder.Recorder
	if cfg.Tracing.Enabled {
		r, err := recorder.New(cfg.Tracing.Dir)
		if err != nil {
			return nil, newError(ConfigurationError, "failed to initialize trace recorder", err)
		}
		rec = r
	}

	return newSession(cfg, logger, rec), nil
}
