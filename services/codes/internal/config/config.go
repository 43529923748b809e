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
	Port              string `yaml:"port"`
	DatabaseURL       string `yaml:"databaseURL"`
	RedisAddr         string `yaml:"redisAddr"`
	RedisPassword     string `yaml:"redisPassword"`
	AdminPasswordHash string `yaml:"adminPasswordHash"`
	AdminTokenSecret  string `yaml:"adminTokenSecret"`
	AdminTokenTTL     string `yaml:"adminTokenTTL"`
	LogLevel          string `yaml:"logLevel"`

	// Alibaba SMS verification gateway; leave empty to disable phone
	// verification (dev setups use VERIFY_GATEWAY=memory).
	VerifyGateway      string `yaml:"verifyGateway"`
	AliAccessKeyID     string `yaml:"aliAccessKeyId"`
	AliAccessKeySecret string `yaml:"aliAccessKeySecret"`
	AliSignName        string `yaml:"aliSignName"`
	AliTemplateCode    string `yaml:"aliTemplateCode"`
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
	if v := os.Getenv("ADMIN_PASSWORD_HASH"); v != "" {
		cfg.AdminPasswordHash = v
	}
	if v := os.Getenv("ADMIN_TOKEN_SECRET"); v != "" {
		cfg.AdminTokenSecret = v
	}
	if v := os.Getenv("VERIFY_GATEWAY"); v != "" {
		cfg.VerifyGateway = v
	}
	if v := os.Getenv("ALI_ACCESS_KEY_ID"); v != "" {
		cfg.AliAccessKeyID = v
	}
	if v := os.Getenv("ALI_ACCESS_KEY_SECRET"); v != "" {
		cfg.AliAccessKeySecret = v
	}
	if v := os.Getenv("ALI_SMS_SIGN_NAME"); v != "" {
		cfg.AliSignName = v
	}
	if v := os.Getenv("ALI_SMS_TEMPLATE_CODE"); v != "" {
		cfg.AliTemplateCode = v
	}
	if err := validateConfig(cfg); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// ParseTokenTTL parses the admin token lifetime; empty means the default.
func ParseTokenTTL(raw string) (time.Duration, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		return 0, fmt.Errorf("parse admin token TTL: %w", err)
	}
	return d, nil
}

func validateConfig(cfg FileConfig) error {
	if cfg.Port == "" {
		return errors.New("config: port is required (set in config.yaml)")
	}
	if cfg.DatabaseURL == "" {
		return errors.New("config: databaseURL is required (set in config.yaml)")
	}
	// Credentials never ship with a default; the admin surface would be
	// open to anyone who read the source.
	if strings.TrimSpace(cfg.AdminPasswordHash) == "" {
		return errors.New("config: adminPasswordHash is required (bcrypt hash, set ADMIN_PASSWORD_HASH)")
	}
	if strings.TrimSpace(cfg.AdminTokenSecret) == "" {
		return errors.New("config: adminTokenSecret is required (set ADMIN_TOKEN_SECRET)")
	}
	switch cfg.VerifyGateway {
	case "", "memory":
	case "alibaba":
		if cfg.AliAccessKeyID == "" || cfg.AliAccessKeySecret == "" || cfg.AliSignName == "" || cfg.AliTemplateCode == "" {
			return errors.New("config: alibaba verify gateway requires access key, sign name and template code")
		}
	default:
		return fmt.Errorf("config: unknown verify gateway %q (want alibaba or memory)", cfg.VerifyGateway)
	}
	return nil
}
