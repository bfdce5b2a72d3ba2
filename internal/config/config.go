package config

import (
	"errors"
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

type Config struct {
	App        AppConfig        `yaml:"app"`
	API        APIConfig        `yaml:"api"`
	Database   DatabaseConfig   `yaml:"database"`
	Redis      RedisConfig      `yaml:"redis"`
	AMQP       AMQPConfig       `yaml:"amqp"`
	Gateway    GatewayConfig    `yaml:"gateway"`
	SMTP       SMTPConfig       `yaml:"smtp"`
	Sweeper    SweeperConfig    `yaml:"sweeper"`
	Monitoring MonitoringConfig `yaml:"monitoring"`
	Logging    LoggingConfig    `yaml:"logging"`
	Exports    ExportConfig     `yaml:"exports"`
}

type AppConfig struct {
	Name        string `yaml:"name"`
	Environment string `yaml:"environment"`
	Version     string `yaml:"version"`
}

type APIConfig struct {
	Port int `yaml:"port"`
}

type DatabaseConfig struct {
	Path string `yaml:"path"`
}

type RedisConfig struct {
	Address  string `yaml:"address"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
	PoolSize int    `yaml:"pool_size"`
}

type AMQPConfig struct {
	Enabled    bool   `yaml:"enabled"`
	URL        string `yaml:"url"`
	Queue      string `yaml:"queue"`
	AdminQueue string `yaml:"admin_queue"`
}

// GatewayConfig holds the checkout provider endpoint and the shared secret
// used to verify webhook signatures.
type GatewayConfig struct {
	BaseURL        string  `yaml:"base_url"`
	SecretKey      string  `yaml:"secret_key"`
	WebhookSecret  string  `yaml:"webhook_secret"`
	SuccessURL     string  `yaml:"success_url"`
	CancelURL      string  `yaml:"cancel_url"`
	PlatformFeePct float64 `yaml:"platform_fee_pct"`
	GatewayFeePct  float64 `yaml:"gateway_fee_pct"`
	TimeoutSeconds int     `yaml:"timeout_seconds"`
}

type SMTPConfig struct {
	Enabled  bool   `yaml:"enabled"`
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Username string `yaml:"username"`
	Password string `yaml:"password"`
	From     string `yaml:"from"`
	AdminTo  string `yaml:"admin_to"`
}

type SweeperConfig struct {
	Enabled              bool `yaml:"enabled"`
	LifecycleIntervalMin int  `yaml:"lifecycle_interval_min"`
	PurgeIntervalHours   int  `yaml:"purge_interval_hours"`
	RetentionHours       int  `yaml:"retention_hours"`
}

type MonitoringConfig struct {
	PrometheusEnabled bool `yaml:"prometheus_enabled"`
	PrometheusPort    int  `yaml:"prometheus_port"`
	HealthCheckPort   int  `yaml:"health_check_port"`
}

type LoggingConfig struct {
	Level    string `yaml:"level"`
	Format   string `yaml:"format"`
	Output   string `yaml:"output"`
	FilePath string `yaml:"file_path"`
}

type ExportConfig struct {
	Path string `yaml:"path"`
}

func Load(configPath string) (*Config, error) {
	if err := godotenv.Load(".env"); err != nil && !os.IsNotExist(err) {
		return nil, err
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, err
	}

	// Substitute environment variables before parsing.
	expandedData := []byte(os.ExpandEnv(string(data)))

	var config Config
	if err := yaml.Unmarshal(expandedData, &config); err != nil {
		return nil, err
	}

	config.applyDefaults()

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &config, nil
}

func (c *Config) Validate() error {
	if c.Database.Path == "" {
		return errors.New("database path is required")
	}
	if c.Gateway.SecretKey == "" || c.Gateway.SecretKey == "YOUR_SECRET_KEY_HERE" {
		return errors.New("gateway secret key is required")
	}
	if c.Gateway.WebhookSecret == "" {
		return errors.New("gateway webhook secret is required")
	}
	if c.AMQP.Enabled && c.AMQP.URL == "" {
		return errors.New("amqp.url is required when amqp is enabled")
	}
	if c.SMTP.Enabled && c.SMTP.Host == "" {
		return errors.New("smtp.host is required when smtp is enabled")
	}
	return nil
}

func (c *Config) applyDefaults() {
	if c.API.Port == 0 {
		c.API.Port = 8080
	}
	if c.Monitoring.PrometheusEnabled && c.Monitoring.PrometheusPort == 0 {
		c.Monitoring.PrometheusPort = 9090
	}
	if c.Monitoring.HealthCheckPort == 0 {
		c.Monitoring.HealthCheckPort = 8090
	}

	if c.Gateway.BaseURL == "" {
		c.Gateway.BaseURL = "https://checkout.sandbox.local"
	}
	if c.Gateway.PlatformFeePct == 0 {
		c.Gateway.PlatformFeePct = 5.0
	}
	if c.Gateway.GatewayFeePct == 0 {
		c.Gateway.GatewayFeePct = 2.9
	}
	if c.Gateway.TimeoutSeconds == 0 {
		c.Gateway.TimeoutSeconds = 15
	}

	if c.AMQP.Queue == "" {
		c.AMQP.Queue = "notifications"
	}
	if c.AMQP.AdminQueue == "" {
		c.AMQP.AdminQueue = "admin_notifications"
	}

	if c.SMTP.Port == 0 {
		c.SMTP.Port = 587
	}

	if c.Sweeper.LifecycleIntervalMin == 0 {
		c.Sweeper.LifecycleIntervalMin = 60
	}
	if c.Sweeper.PurgeIntervalHours == 0 {
		c.Sweeper.PurgeIntervalHours = 24
	}
	if c.Sweeper.RetentionHours == 0 {
		c.Sweeper.RetentionHours = 72
	}

	if c.Redis.PoolSize == 0 {
		c.Redis.PoolSize = 10
	}

	if c.Exports.Path == "" {
		c.Exports.Path = "exports"
	}
}
