package main

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/mcdev12/proctor/go/internal/exam"
	"github.com/mcdev12/proctor/go/internal/gateway"
	"github.com/mcdev12/proctor/go/internal/presence"
	"gopkg.in/yaml.v3"
)

const (
	storeDriverPostgres = "postgres"
	storeDriverMemory   = "memory"
)

type Config struct {
	Server struct {
		Port       string `yaml:"port"`
		AdminToken string `yaml:"admin_token"`
	} `yaml:"server"`

	Store struct {
		Driver string `yaml:"driver"`
	} `yaml:"store"`

	Exam struct {
		DefaultDurationMinutes int `yaml:"default_duration_minutes"`
	} `yaml:"exam"`

	Presence struct {
		SweepInterval     time.Duration `yaml:"sweep_interval"`
		InactivityTimeout time.Duration `yaml:"inactivity_timeout"`
	} `yaml:"presence"`

	Broadcast struct {
		TickInterval time.Duration `yaml:"tick_interval"`
	} `yaml:"broadcast"`

	Events struct {
		NatsURL    string `yaml:"nats_url"`
		StreamName string `yaml:"stream_name"`
	} `yaml:"events"`

	LogLevel string `yaml:"log_level"`
}

func defaultConfig() *Config {
	var config Config
	config.Server.Port = "8080"
	config.Store.Driver = storeDriverPostgres
	config.Exam.DefaultDurationMinutes = exam.DefaultDurationMinutes
	config.Presence.SweepInterval = presence.DefaultSweepInterval
	config.Presence.InactivityTimeout = presence.DefaultInactivityTimeout
	config.Broadcast.TickInterval = gateway.DefaultTickInterval
	config.Events.StreamName = "EXAM_EVENTS"
	config.LogLevel = "info"
	return &config
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}

// loadConfig reads the YAML file at path over the defaults. A missing file is not an error.
func loadConfig(path string) (*Config, error) {
	config := defaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return config, nil
		}
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	if err := yaml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	return config, nil
}

// applyEnv lets environment variables override the file
func (c *Config) applyEnv() {
	c.Server.Port = getEnv("PORT", c.Server.Port)
	c.Server.AdminToken = getEnv("ADMIN_TOKEN", c.Server.AdminToken)
	c.Store.Driver = strings.ToLower(getEnv("STORE_DRIVER", c.Store.Driver))
	c.Exam.DefaultDurationMinutes = getEnvAsInt("EXAM_DURATION_MINUTES", c.Exam.DefaultDurationMinutes)
	c.Presence.SweepInterval = getEnvAsDuration("PRESENCE_SWEEP_INTERVAL", c.Presence.SweepInterval)
	c.Presence.InactivityTimeout = getEnvAsDuration("PRESENCE_INACTIVITY_TIMEOUT", c.Presence.InactivityTimeout)
	c.Broadcast.TickInterval = getEnvAsDuration("BROADCAST_TICK_INTERVAL", c.Broadcast.TickInterval)
	c.Events.NatsURL = getEnv("NATS_URL", c.Events.NatsURL)
	c.Events.StreamName = getEnv("NATS_STREAM", c.Events.StreamName)
	c.LogLevel = getEnv("LOG_LEVEL", c.LogLevel)
}

func (c *Config) validate() error {
	switch c.Store.Driver {
	case storeDriverPostgres, storeDriverMemory:
	default:
		return fmt.Errorf("unknown store driver %q", c.Store.Driver)
	}
	if c.Exam.DefaultDurationMinutes < 1 {
		return fmt.Errorf("default exam duration must be at least 1 minute, got %d", c.Exam.DefaultDurationMinutes)
	}
	if c.Presence.SweepInterval <= 0 || c.Presence.InactivityTimeout <= 0 {
		return errors.New("presence intervals must be positive")
	}
	if c.Broadcast.TickInterval <= 0 {
		return errors.New("broadcast tick interval must be positive")
	}
	return nil
}

func setupConfig() (*Config, error) {
	config, err := loadConfig(getEnv("CONFIG_PATH", "config.yaml"))
	if err != nil {
		return nil, err
	}
	config.applyEnv()
	if err := config.validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return config, nil
}
