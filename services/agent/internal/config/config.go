package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// ConfigPath is the default config location relative to the service root.
const ConfigPath = "config.yaml"

// FileConfig represents configuration loaded from YAML.
type FileConfig struct {
	RelayURL      string `yaml:"relayURL"`
	RelaySecret   string `yaml:"relaySecret"`
	PollInterval  string `yaml:"pollInterval"`
	Sender        string `yaml:"sender"`
	SenderCommand string `yaml:"senderCommand"`
	StatusLogPath string `yaml:"statusLogPath"`
	DashboardAddr string `yaml:"dashboardAddr"`
	AMQPURL       string `yaml:"amqpURL"`
	LogLevel      string `yaml:"logLevel"`
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
	if v := os.Getenv("RELAY_URL"); v != "" {
		cfg.RelayURL = v
	}
	if v := os.Getenv("SMS_RELAY_SECRET"); v != "" {
		cfg.RelaySecret = v
	}
	if v := os.Getenv("AGENT_POLL_INTERVAL"); v != "" {
		cfg.PollInterval = v
	}
	if v := os.Getenv("AGENT_SENDER"); v != "" {
		cfg.Sender = v
	}
	if v := os.Getenv("AGENT_SENDER_COMMAND"); v != "" {
		cfg.SenderCommand = v
	}
	if v := os.Getenv("AGENT_STATUS_LOG"); v != "" {
		cfg.StatusLogPath = v
	}
	if v := os.Getenv("AGENT_DASHBOARD_ADDR"); v != "" {
		cfg.DashboardAddr = v
	}
	if v := os.Getenv("AMQP_URL"); v != "" {
		cfg.AMQPURL = v
	}
	if cfg.Sender == "" {
		cfg.Sender = "command"
	}
	if cfg.StatusLogPath == "" {
		cfg.StatusLogPath = "sms_status.log"
	}
	if err := validateConfig(cfg); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// ParsePollInterval parses the poll interval; empty means the default.
func ParsePollInterval(raw string) (time.Duration, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		return 0, fmt.Errorf("parse poll interval: %w", err)
	}
	return d, nil
}

func validateConfig(cfg FileConfig) error {
	if strings.TrimSpace(cfg.RelayURL) == "" {
		return errors.New("config: relayURL is required (set RELAY_URL)")
	}
	if strings.TrimSpace(cfg.RelaySecret) == "" {
		return errors.New("config: relaySecret is required (set SMS_RELAY_SECRET)")
	}
	switch cfg.Sender {
	case "command", "noop":
	default:
		return fmt.Errorf("config: unknown sender %q (want command or noop)", cfg.Sender)
	}
	return nil
}
