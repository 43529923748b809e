package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// ConfigPath is the default config location relative to the service root.
const ConfigPath = "config.yaml"

// FileConfig represents configuration loaded from YAML.
type FileConfig struct {
	Port                   string   `yaml:"port"`
	DatabaseURL            string   `yaml:"databaseURL"`
	RedisAddr              string   `yaml:"redisAddr"`
	RedisPassword          string   `yaml:"redisPassword"`
	RelaySecret            string   `yaml:"relaySecret"`
	AMQPURL                string   `yaml:"amqpURL"`
	QueueBackend           string   `yaml:"queueBackend"`
	QueueFilePath          string   `yaml:"queueFilePath"`
	QueueStream            string   `yaml:"queueStream"`
	EgressPolicy           string   `yaml:"egressPolicy"`
	LogLevel               string   `yaml:"logLevel"`
	SendRateLimitPerMinute int      `yaml:"sendRateLimitPerMinute"`
	TrustedProxies         []string `yaml:"trustedProxies"`
}

// Load reads config from path (defaults to config.yaml).
func Load(path string) (FileConfig, error) {
	cfg := FileConfig{}
	if path == "" {
		path = ConfigPath
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("read config: %w", err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parse config: %w", err)
	}
	// Override with environment variables
	if v := os.Getenv("PORT"); v != "" {
		cfg.Port = v
	}
	if v := os.Getenv("DATABASE_URL"); v != "" {
		cfg.DatabaseURL = v
	}
	if v := os.Getenv("REDIS_ADDR"); v != "" {
		cfg.RedisAddr = v
	}
	if v := os.Getenv("REDIS_PASSWORD"); v != "" {
		cfg.RedisPassword = v
	}
	if v := os.Getenv("SMS_RELAY_SECRET"); v != "" {
		cfg.RelaySecret = v
	}
	if v := os.Getenv("AMQP_URL"); v != "" {
		cfg.AMQPURL = v
	}
	if v := os.Getenv("RELAY_QUEUE_BACKEND"); v != "" {
		cfg.QueueBackend = v
	}
	if v := os.Getenv("RELAY_QUEUE_FILE"); v != "" {
		cfg.QueueFilePath = v
	}
	if v := os.Getenv("RELAY_QUEUE_STREAM"); v != "" {
		cfg.QueueStream = v
	}
	if v := os.Getenv("RELAY_EGRESS_POLICY"); v != "" {
		cfg.EgressPolicy = v
	}
	if v := os.Getenv("RELAY_SEND_RATE_LIMIT_PER_MINUTE"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.SendRateLimitPerMinute = n
		}
	}
	if cfg.QueueBackend == "" {
		cfg.QueueBackend = "table"
	}
	if cfg.EgressPolicy == "" {
		cfg.EgressPolicy = "keep"
	}
	if err := validateConfig(cfg); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func validateConfig(cfg FileConfig) error {
	if cfg.Port == "" {
		return errors.New("config: port is required (set in config.yaml)")
	}
	// The fetch secret has no default on purpose; a relay without one would
	// hand the message queue to anyone who finds the endpoint.
	if strings.TrimSpace(cfg.RelaySecret) == "" {
		return errors.New("config: relaySecret is required (set SMS_RELAY_SECRET)")
	}
	switch cfg.QueueBackend {
	case "table":
		if cfg.DatabaseURL == "" {
			return errors.New("config: databaseURL is required for the table queue backend")
		}
	case "file":
		if strings.TrimSpace(cfg.QueueFilePath) == "" {
			return errors.New("config: queueFilePath is required for the file queue backend")
		}
	case "redis":
		if strings.TrimSpace(cfg.RedisAddr) == "" {
			return errors.New("config: redisAddr is required for the redis queue backend")
		}
	default:
		return fmt.Errorf("config: unknown queue backend %q (want table, file or redis)", cfg.QueueBackend)
	}
	switch cfg.EgressPolicy {
	case "keep", "drain":
	default:
		return fmt.Errorf("config: unknown egress policy %q (want keep or drain)", cfg.EgressPolicy)
	}
	if cfg.DatabaseURL == "" {
		return errors.New("config: databaseURL is required (delivery statuses live in postgres)")
	}
	return nil
}
