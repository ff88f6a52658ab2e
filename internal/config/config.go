// Package config loads process configuration from the environment, with
// an optional .env file as a local-development convenience. Grounded on
// the teacher's configuration loader: godotenv populates the process
// environment first (never overriding a variable already set, so real
// environment wins over a checked-in .env), then envdecode decodes the
// environment into a typed struct with per-field defaults.
package config

import (
	"fmt"
	"os"

	"github.com/joeshaw/envdecode"
	"github.com/joho/godotenv"
)

// Config holds every setting the engine manager, control channel, and
// audit log need at process startup.
type Config struct {
	LogLevel  string `env:"ENGINE_LOG_LEVEL,default=info"`
	LogFormat string `env:"ENGINE_LOG_FORMAT,default=json"`

	MaxEngines     int    `env:"ENGINE_MAX_ENGINES,default=4"`
	ReaperCronSpec string `env:"ENGINE_REAPER_CRON,default=@every 30s"`

	ControlSocketPath string `env:"ENGINE_CONTROL_SOCKET,default=/var/run/ironbee-engine/control.sock"`

	AuditDSN           string `env:"ENGINE_AUDIT_DSN"`
	AuditMigrationsDir string `env:"ENGINE_AUDIT_MIGRATIONS,default=internal/auditlog/migrations"`

	RedisAddr          string `env:"ENGINE_REDIS_ADDR"`
	RedisNotifyChannel string `env:"ENGINE_REDIS_CHANNEL,default=ironbee-engine:reload"`

	MetricsAddr string `env:"ENGINE_METRICS_ADDR,default=:9090"`
}

// Load reads envPath (if it exists) into the process environment without
// clobbering anything already set, then decodes Config from the
// environment. A missing envPath is not an error — production
// deployments are expected to set real environment variables instead of
// shipping a .env file.
func Load(envPath string) (*Config, error) {
	if envPath != "" {
		if _, err := os.Stat(envPath); err == nil {
			if err := godotenv.Load(envPath); err != nil {
				return nil, fmt.Errorf("config: load %s: %w", envPath, err)
			}
		}
	}

	var cfg Config
	if err := envdecode.Decode(&cfg); err != nil {
		return nil, fmt.Errorf("config: decode environment: %w", err)
	}
	return &cfg, nil
}
