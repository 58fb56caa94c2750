package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v2"
)

// KafkaMirrorConfig defines configuration for the Kafka mutation-mirror
// producer. Durations are Go duration strings ("100ms", "5s").
type KafkaMirrorConfig struct {
	Enabled bool     `yaml:"enabled"`
	Brokers []string `yaml:"brokers"`
	Topic   string   `yaml:"topic"`

	// Batch processing settings
	BatchSize    int    `yaml:"batch_size"`
	BatchTimeout string `yaml:"batch_timeout"`
	BatchBytes   int    `yaml:"batch_bytes"`

	// Reliability settings
	RequiredAcks string `yaml:"required_acks"`
	Async        bool   `yaml:"async"`

	// Performance settings
	WriteTimeout string `yaml:"write_timeout"`
	ReadTimeout  string `yaml:"read_timeout"`
}

// HttpServerConfig defines HTTP server configuration
type HttpServerConfig struct {
	ReadTimeout    string `yaml:"read_timeout"`
	WriteTimeout   string `yaml:"write_timeout"`
	IdleTimeout    string `yaml:"idle_timeout"`
	MaxHeaderBytes int    `yaml:"max_header_bytes"`
}

// GatewayMonitoringConfig defines monitoring configuration for the gateway
type GatewayMonitoringConfig struct {
	HealthCheckPath string `yaml:"health_check_path"`
}

// GatewayConfig defines all configurations required for the HTTP gateway
type GatewayConfig struct {
	HttpListenAddr string `yaml:"http_listen_addr"`

	// MaxBodyBytes bounds JSON and multipart request bodies.
	MaxBodyBytes int64 `yaml:"max_body_bytes"`

	HttpServer  HttpServerConfig        `yaml:"http_server"`
	KafkaMirror KafkaMirrorConfig       `yaml:"kafka_mirror"`
	Monitoring  GatewayMonitoringConfig `yaml:"monitoring"`
}

// SetDefaults sets reasonable default values for gateway configuration
func (c *GatewayConfig) SetDefaults() {
	if c.HttpListenAddr == "" {
		c.HttpListenAddr = ":3001"
		fmt.Printf("Warning: http_listen_addr not set, defaulting to %s\n", c.HttpListenAddr)
	}
	if c.MaxBodyBytes == 0 {
		c.MaxBodyBytes = 10 * 1024 * 1024 // 10MB
	}
	if c.Monitoring.HealthCheckPath == "" {
		c.Monitoring.HealthCheckPath = "/health"
	}
}

// ParseDurationOr parses a Go duration string, falling back to def when
// the value is empty or malformed.
func ParseDurationOr(value string, def time.Duration) time.Duration {
	if value == "" {
		return def
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		fmt.Printf("Warning: invalid duration '%s', using default %v\n", value, def)
		return def
	}
	return d
}

// LoadGatewayConfig loads gateway configuration from the specified YAML file path
func LoadGatewayConfig(path string) (*GatewayConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read gateway config file '%s': %w", path, err)
	}

	var cfg GatewayConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse gateway YAML config file: %w", err)
	}

	cfg.SetDefaults()

	if cfg.KafkaMirror.Enabled && (len(cfg.KafkaMirror.Brokers) == 0 || cfg.KafkaMirror.Topic == "") {
		return nil, fmt.Errorf("configuration error: kafka_mirror enabled but brokers/topic not configured")
	}

	return &cfg, nil
}
