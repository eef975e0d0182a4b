package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/vvka-141/ingestgate/internal/logging"
	"github.com/vvka-141/ingestgate/internal/metrics"
	"github.com/vvka-141/ingestgate/pkg/ingestgate"
)

// ErrConfigNotFound is returned when the config file does not exist.
// Callers can check for this with errors.Is(err, config.ErrConfigNotFound).
var ErrConfigNotFound = errors.New("config file not found")

const (
	ConfigFileName = "ingestgate.yaml"
	EnvFileName    = ".env"
)

type KafkaConfig struct {
	URI            string        `yaml:"uri"`
	Driver         string        `yaml:"driver,omitempty"`
	Topic          string        `yaml:"topic"`
	Group          string        `yaml:"group,omitempty"`
	WaitTime       time.Duration `yaml:"wait_time,omitempty"`
	InitialWait    time.Duration `yaml:"initial_wait,omitempty"`
	Backoff        string        `yaml:"backoff,omitempty"`
	MaxWait        time.Duration `yaml:"max_wait,omitempty"`
	Async          bool          `yaml:"async,omitempty"`
	AckTime        time.Duration `yaml:"ack_time,omitempty"`
	MaxRetry       int           `yaml:"max_retry,omitempty"`
	AutoCommit     bool          `yaml:"auto_commit,omitempty"`
	Compact        bool          `yaml:"compact,omitempty"`
	Partitions     int           `yaml:"partitions,omitempty"`
	DropData       bool          `yaml:"drop_data,omitempty"`
	ConnectTimeout time.Duration `yaml:"connect_timeout,omitempty"`
}

type DatabaseConfig struct {
	Driver            string        `yaml:"driver,omitempty"`
	Username          string        `yaml:"username,omitempty"`
	Password          string        `yaml:"password,omitempty"`
	Hostname          string        `yaml:"hostname,omitempty"`
	Port              int           `yaml:"port,omitempty"`
	DatabaseName      string        `yaml:"database_name,omitempty"`
	URL               string        `yaml:"url,omitempty"`
	SSLMode           string        `yaml:"sslmode,omitempty"`
	AuthMethod        string        `yaml:"auth_method,omitempty"`
	AWSRegion         string        `yaml:"aws_region,omitempty"`
	AzureTenantID     string        `yaml:"azure_tenant_id,omitempty"`
	AzureClientID     string        `yaml:"azure_client_id,omitempty"`
	AzureClientSecret string        `yaml:"azure_client_secret,omitempty"`
	GoogleInstance    string        `yaml:"google_instance,omitempty"`
	ConnectTimeout    time.Duration `yaml:"connect_timeout,omitempty"`
	MaxOpenConns      int           `yaml:"max_open_conns,omitempty"`
	MaxIdleConns      int           `yaml:"max_idle_conns,omitempty"`
	DefectSignatures  []string      `yaml:"defect_signatures,omitempty"`
	MaxDefectRetries  int           `yaml:"max_defect_retries,omitempty"`
}

type MetricsConfig struct {
	Backend string `yaml:"backend,omitempty"`
	Listen  string `yaml:"listen,omitempty"`
}

type LoggingConfig struct {
	Level string `yaml:"level,omitempty"`
}

type Config struct {
	Kafka    KafkaConfig    `yaml:"kafka"`
	Database DatabaseConfig `yaml:"database"`
	Metrics  MetricsConfig  `yaml:"metrics"`
	Logging  LoggingConfig  `yaml:"logging"`
}

// Default returns a configuration with every default applied and no
// endpoints set.
func Default() *Config {
	cfg := &Config{}
	cfg.applyDefaults()
	return cfg
}

// Load reads the YAML configuration at path. A directory path is resolved to
// ConfigFileName inside it. A .env file next to the configuration is loaded
// first without overriding the process environment, then ${VAR} references
// in the YAML are expanded.
func Load(path string) (*Config, error) {
	if info, err := os.Stat(path); err == nil && info.IsDir() {
		path = filepath.Join(path, ConfigFileName)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrConfigNotFound
		}
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	envPath := filepath.Join(filepath.Dir(path), EnvFileName)
	if err := godotenv.Load(envPath); err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("failed to load %s: %w", envPath, err)
	}

	var cfg Config
	if err := yaml.Unmarshal([]byte(os.ExpandEnv(string(data))), &cfg); err != nil {
		return nil, fmt.Errorf("%w: failed to parse config file: %v", ingestgate.ErrInvalidConfig, err)
	}
	cfg.applyDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) applyDefaults() {
	if c.Kafka.Driver == "" {
		c.Kafka.Driver = string(ingestgate.BrokerDriverKafka)
	}
	if c.Kafka.WaitTime == 0 {
		c.Kafka.WaitTime = ingestgate.DefaultWaitTime
	}
	if c.Kafka.Backoff == "" {
		c.Kafka.Backoff = string(ingestgate.BackoffFixed)
	}
	if c.Kafka.MaxWait == 0 {
		c.Kafka.MaxWait = ingestgate.DefaultMaxWait
	}
	if c.Kafka.AckTime == 0 {
		c.Kafka.AckTime = ingestgate.DefaultAckTime
	}
	if c.Kafka.MaxRetry == 0 {
		c.Kafka.MaxRetry = ingestgate.DefaultMaxRetry
	}
	if c.Kafka.Partitions == 0 {
		c.Kafka.Partitions = ingestgate.DefaultPartitions
	}
	if c.Kafka.ConnectTimeout == 0 {
		c.Kafka.ConnectTimeout = ingestgate.DefaultConnectTimeout
	}
	if c.Database.ConnectTimeout == 0 {
		c.Database.ConnectTimeout = ingestgate.DefaultConnectTimeout
	}
	if c.Database.MaxDefectRetries == 0 {
		c.Database.MaxDefectRetries = ingestgate.DefaultMaxDefectRetries
	}
	if c.Metrics.Backend == "" {
		c.Metrics.Backend = metrics.BackendPrometheus
	}
	if c.Metrics.Listen == "" {
		c.Metrics.Listen = ingestgate.DefaultMetricsListen
	}
	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
}

// Validate checks the sections that do not need a live endpoint. Endpoint
// presence is checked where a client is built.
func (c *Config) Validate() error {
	if c.Kafka.MaxRetry < 0 {
		return fmt.Errorf("%w: max_retry must not be negative", ingestgate.ErrInvalidConfig)
	}
	if c.Kafka.WaitTime < 0 || c.Kafka.InitialWait < 0 || c.Kafka.MaxWait < 0 {
		return fmt.Errorf("%w: kafka wait times must not be negative", ingestgate.ErrInvalidConfig)
	}
	if err := c.Broker().ValidateOptions(); err != nil {
		return err
	}
	if _, err := ingestgate.ParseAuthMethod(c.Database.AuthMethod); err != nil {
		return err
	}
	switch ingestgate.StoreDriver(c.Database.Driver) {
	case "", ingestgate.StoreDriverMySQL, ingestgate.StoreDriverPostgres:
	default:
		return fmt.Errorf("%w: unknown database driver %q", ingestgate.ErrInvalidConfig, c.Database.Driver)
	}
	if c.Database.MaxDefectRetries < 0 {
		return fmt.Errorf("%w: max_defect_retries must not be negative", ingestgate.ErrInvalidConfig)
	}
	switch c.Metrics.Backend {
	case metrics.BackendPrometheus, metrics.BackendOTel, metrics.BackendNone:
	default:
		return fmt.Errorf("%w: unknown metrics backend %q", ingestgate.ErrInvalidConfig, c.Metrics.Backend)
	}
	if _, err := logging.ParseLevel(c.Logging.Level); err != nil {
		return fmt.Errorf("%w: %v", ingestgate.ErrInvalidConfig, err)
	}
	return nil
}

// Broker converts the kafka section.
func (c *Config) Broker() ingestgate.BrokerConfig {
	k := c.Kafka
	return ingestgate.BrokerConfig{
		Driver:         ingestgate.BrokerDriver(k.Driver),
		URI:            k.URI,
		Group:          k.Group,
		InitialWait:    k.InitialWait,
		WaitTime:       k.WaitTime,
		Backoff:        ingestgate.BackoffKind(k.Backoff),
		MaxWait:        k.MaxWait,
		Async:          k.Async,
		AckTime:        k.AckTime,
		ConnectTimeout: k.ConnectTimeout,
		MaxRetry:       k.MaxRetry,
		AutoCommit:     k.AutoCommit,
		Compact:        k.Compact,
		Partitions:     k.Partitions,
		DropData:       k.DropData,
	}.Normalize()
}

// Store converts the database section.
func (c *Config) Store() (ingestgate.StoreConfig, error) {
	d := c.Database
	auth, err := ingestgate.ParseAuthMethod(d.AuthMethod)
	if err != nil {
		return ingestgate.StoreConfig{}, err
	}
	return ingestgate.StoreConfig{
		Driver:            ingestgate.StoreDriver(d.Driver),
		Username:          d.Username,
		Password:          d.Password,
		Hostname:          d.Hostname,
		Port:              d.Port,
		DatabaseName:      d.DatabaseName,
		URL:               d.URL,
		AuthMethod:        auth,
		AWSRegion:         d.AWSRegion,
		AzureTenantID:     d.AzureTenantID,
		AzureClientID:     d.AzureClientID,
		AzureClientSecret: d.AzureClientSecret,
		GoogleInstance:    d.GoogleInstance,
		SSLMode:           d.SSLMode,
		ConnectTimeout:    d.ConnectTimeout,
		MaxOpenConns:      d.MaxOpenConns,
		MaxIdleConns:      d.MaxIdleConns,
		DefectSignatures:  d.DefectSignatures,
		MaxDefectRetries:  d.MaxDefectRetries,
	}, nil
}
