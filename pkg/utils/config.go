package utils

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds coordinator configuration. Values are resolved in three
// layers: built-in defaults, then an optional YAML config file, then
// environment variables (highest precedence).
type Config struct {
	// Database
	DatabasePath string `yaml:"database_path"`

	// HTTP diagnostics / producer API
	HTTPHost string `yaml:"http_host"`
	HTTPPort int    `yaml:"http_port"`

	// Radio transport
	RadioBindAddr string `yaml:"radio_bind_addr"`

	// Failure detection and reassignment
	FailureTimeout       time.Duration `yaml:"failure_timeout"`
	TaskTimeout          time.Duration `yaml:"task_timeout"`
	SweepInterval        time.Duration `yaml:"sweep_interval"`
	PendingRetryInterval time.Duration `yaml:"pending_retry_interval"`
	InboxCapacity        int           `yaml:"inbox_capacity"`
	FaultLogCapacity     int           `yaml:"fault_log_capacity"`

	// Logging
	LogLevel string `yaml:"log_level"`
}

// LoadConfig resolves configuration from defaults, the optional YAML file
// at configPath (skipped when empty or missing), and environment variables.
func LoadConfig(configPath string) (*Config, error) {
	cfg := &Config{
		DatabasePath:         "wildcam.db",
		HTTPHost:             "0.0.0.0",
		HTTPPort:             8080,
		RadioBindAddr:        ":9999",
		FailureTimeout:       60 * time.Second,
		TaskTimeout:          30 * time.Second,
		SweepInterval:        1 * time.Second,
		PendingRetryInterval: 5 * time.Second,
		InboxCapacity:        256,
		FaultLogCapacity:     128,
		LogLevel:             "INFO",
	}

	if configPath != "" {
		data, err := os.ReadFile(configPath)
		if err != nil {
			if !os.IsNotExist(err) {
				return nil, fmt.Errorf("failed to read config file: %w", err)
			}
		} else if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file %s: %w", configPath, err)
		}
	}

	// Environment overrides
	cfg.DatabasePath = getEnv("WILDCAM_DB_PATH", cfg.DatabasePath)
	cfg.HTTPHost = getEnv("WILDCAM_HTTP_HOST", cfg.HTTPHost)
	cfg.HTTPPort = getEnvAsInt("WILDCAM_HTTP_PORT", cfg.HTTPPort)
	cfg.RadioBindAddr = getEnv("WILDCAM_RADIO_BIND", cfg.RadioBindAddr)
	cfg.FailureTimeout = getEnvAsDuration("WILDCAM_FAILURE_TIMEOUT", cfg.FailureTimeout)
	cfg.TaskTimeout = getEnvAsDuration("WILDCAM_TASK_TIMEOUT", cfg.TaskTimeout)
	cfg.SweepInterval = getEnvAsDuration("WILDCAM_SWEEP_INTERVAL", cfg.SweepInterval)
	cfg.PendingRetryInterval = getEnvAsDuration("WILDCAM_PENDING_RETRY_INTERVAL", cfg.PendingRetryInterval)
	cfg.InboxCapacity = getEnvAsInt("WILDCAM_INBOX_CAPACITY", cfg.InboxCapacity)
	cfg.FaultLogCapacity = getEnvAsInt("WILDCAM_FAULT_LOG_CAPACITY", cfg.FaultLogCapacity)
	cfg.LogLevel = getEnv("WILDCAM_LOG_LEVEL", cfg.LogLevel)

	return cfg, nil
}

// getEnv gets an environment variable or returns a default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvAsInt gets an environment variable as an integer or returns a default value
func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

// getEnvAsDuration gets an environment variable as a duration or returns a default value
func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}

// GetHTTPAddress returns the full listen address for the HTTP server
func (c *Config) GetHTTPAddress() string {
	return c.HTTPHost + ":" + strconv.Itoa(c.HTTPPort)
}

// GetLogLevel converts the configured log level string to a LogLevel
func (c *Config) GetLogLevel() LogLevel {
	return ParseLevel(c.LogLevel)
}
