package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/creasty/defaults"
	"gopkg.in/yaml.v3"

	"LabPulse/pkg/logger"
)

// Storage backends for ingested readings.
const (
	BackendKafka      = "kafka"
	BackendClickHouse = "clickhouse"
	BackendMemory     = "memory"
)

type Config struct {
	Environment string           `yaml:"environment" default:"development"`
	Server      ServerConfig     `yaml:"server"`
	Metrics     MetricsConfig    `yaml:"metrics"`
	Logging     LoggingConfig    `yaml:"logging"`
	Backend     BackendConfig    `yaml:"backend"`
	Kafka       KafkaConfig      `yaml:"kafka"`
	ClickHouse  ClickHouseConfig `yaml:"clickhouse"`
	Redis       RedisConfig      `yaml:"redis"`
	Analytics   AnalyticsConfig  `yaml:"analytics"`
	Ingest      IngestConfig     `yaml:"ingest"`
	Stream      StreamConfig     `yaml:"stream"`
}

type ServerConfig struct {
	Port            int           `yaml:"port" default:"8080"`
	ReadTimeout     time.Duration `yaml:"read_timeout" default:"15s"`
	WriteTimeout    time.Duration `yaml:"write_timeout" default:"15s"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" default:"10s"`
	CORSOrigins     []string      `yaml:"cors_origins"`
}

type MetricsConfig struct {
	Enabled bool   `yaml:"enabled" default:"true"`
	Path    string `yaml:"path" default:"/metrics"`
}

type LoggingConfig struct {
	logger.Config `yaml:",inline"`
	Ship          struct {
		Enabled   bool          `yaml:"enabled"`
		Topic     string        `yaml:"topic" default:"labpulse.logs"`
		Interval  time.Duration `yaml:"interval" default:"30s"`
		Threshold int           `yaml:"threshold" default:"100"`
	} `yaml:"ship"`
}

type BackendConfig struct {
	Type         string        `yaml:"type" default:"memory"`
	BatchSize    int           `yaml:"batch_size" default:"100"`
	BatchTimeout time.Duration `yaml:"batch_timeout" default:"1s"`
}

type KafkaConfig struct {
	Brokers      []string `yaml:"brokers"`
	Topic        string   `yaml:"topic" default:"labpulse.readings"`
	RequiredAcks int      `yaml:"required_acks" default:"1"`
	Compression  string   `yaml:"compression" default:"snappy"`
	Producer     struct {
		MaxAttempts  int           `yaml:"max_attempts" default:"5"`
		Linger       time.Duration `yaml:"linger" default:"20ms"`
		BatchBytes   int           `yaml:"batch_bytes" default:"1048576"`
		BatchSize    int           `yaml:"batch_size" default:"500"`
		WriteTimeout time.Duration `yaml:"write_timeout" default:"10s"`
		ReadTimeout  time.Duration `yaml:"read_timeout" default:"10s"`
		Async        bool          `yaml:"async"`
	} `yaml:"producer"`
	Consumer struct {
		GroupID    string        `yaml:"group_id" default:"labpulse-ingest"`
		Workers    int           `yaml:"workers" default:"4"`
		BufferSize int           `yaml:"buffer_size" default:"1000"`
		RetryMax   int           `yaml:"retry_max" default:"3"`
		BackoffMin time.Duration `yaml:"backoff_min" default:"100ms"`
		BackoffMax time.Duration `yaml:"backoff_max" default:"5s"`
		DLQTopic   string        `yaml:"dlq_topic" default:"labpulse.readings.dlq"`
		MinBytes   int           `yaml:"min_bytes" default:"1"`
		MaxBytes   int           `yaml:"max_bytes" default:"10485760"`
	} `yaml:"consumer"`
}

type ClickHouseConfig struct {
	Host             string        `yaml:"host" default:"localhost"`
	Port             int           `yaml:"port" default:"9000"`
	Database         string        `yaml:"database" default:"labpulse"`
	Table            string        `yaml:"table" default:"biomarkers"`
	User             string        `yaml:"user" default:"default"`
	Password         string        `yaml:"password"`
	UseHTTP          bool          `yaml:"use_http"`
	AsyncInsert      bool          `yaml:"async_insert"`
	WaitForAsync     bool          `yaml:"wait_for_async_insert"`
	DialTimeout      time.Duration `yaml:"dial_timeout" default:"5s"`
	ReadTimeout      time.Duration `yaml:"read_timeout" default:"30s"`
	WriteTimeout     time.Duration `yaml:"write_timeout" default:"30s"`
	MaxExecutionTime time.Duration `yaml:"max_execution_time" default:"60s"`
}

// QualifiedTable returns database.table.
func (c ClickHouseConfig) QualifiedTable() string { return c.Database + "." + c.Table }

type RedisConfig struct {
	Enabled  bool   `yaml:"enabled"`
	Addr     string `yaml:"addr" default:"localhost:6379"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

type AnalyticsConfig struct {
	CacheTTL        time.Duration `yaml:"cache_ttl" default:"30s"`
	InsightsTimeout time.Duration `yaml:"insights_timeout" default:"10s"`
	MaxReadings     int           `yaml:"max_readings" default:"50000"`
	RateLimit       struct {
		Capacity     int     `yaml:"capacity" default:"20"`
		RefillPerSec float64 `yaml:"refill_per_sec" default:"5"`
	} `yaml:"rate_limit"`
}

type IngestConfig struct {
	MaxRPS     int           `yaml:"max_rps" default:"50"`
	BufferSize int           `yaml:"buffer_size" default:"2000"`
	RetryMax   int           `yaml:"retry_max" default:"3"`
	RetryDelay time.Duration `yaml:"retry_delay" default:"200ms"`
	QueueKey   string        `yaml:"queue_key" default:"labpulse:ingest"`
	Workers    int           `yaml:"workers" default:"2"`
}

type StreamConfig struct {
	Enabled      bool          `yaml:"enabled" default:"true"`
	WriteTimeout time.Duration `yaml:"write_timeout" default:"5s"`
	PingInterval time.Duration `yaml:"ping_interval" default:"30s"`
	BufferSize   int           `yaml:"buffer_size" default:"256"`
}

// Default returns a configuration with every default applied.
func Default() *Config {
	var c Config
	_ = defaults.Set(&c)
	return &c
}

// Load reads and parses a YAML configuration file. Values missing from the
// file keep their defaults.
func Load(path string) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	return Parse(b)
}

// Parse decodes YAML on top of the defaults and validates the result.
func Parse(b []byte) (*Config, error) {
	c, err := decode(b)
	if err != nil {
		return nil, err
	}
	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}
	return c, nil
}

// LoadWithEnv loads config from YAML and overrides with environment variables
// before validating.
func LoadWithEnv(path string) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	c, err := decode(b)
	if err != nil {
		return nil, err
	}
	if err := c.ApplyEnv(); err != nil {
		return nil, err
	}
	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}
	return c, nil
}

func decode(b []byte) (*Config, error) {
	c := Default()
	if err := yaml.Unmarshal(b, c); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	return c, nil
}

// ApplyEnv overrides selected fields from the environment.
func (c *Config) ApplyEnv() error {
	if v := os.Getenv("LABPULSE_ENV"); v != "" {
		c.Environment = v
	}
	if v := os.Getenv("BACKEND"); v != "" {
		c.Backend.Type = v
	}
	if v := os.Getenv("KAFKA_BROKERS"); v != "" {
		c.Kafka.Brokers = strings.Split(v, ",")
	}
	if v := os.Getenv("KAFKA_TOPIC"); v != "" {
		c.Kafka.Topic = v
	}
	if v := os.Getenv("CLICKHOUSE_HOST"); v != "" {
		c.ClickHouse.Host = v
	}
	if v := os.Getenv("REDIS_ADDR"); v != "" {
		c.Redis.Addr = v
		c.Redis.Enabled = true
	}
	if v := os.Getenv("HTTP_PORT"); v != "" {
		port, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("HTTP_PORT: %w", err)
		}
		c.Server.Port = port
	}
	return nil
}

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	if c.Environment == "" {
		return fmt.Errorf("environment is required")
	}
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port must be in 1..65535, got %d", c.Server.Port)
	}
	switch c.Backend.Type {
	case BackendMemory:
	case BackendClickHouse:
		if err := c.validateClickHouse(); err != nil {
			return err
		}
	case BackendKafka:
		if len(c.Kafka.Brokers) == 0 {
			return fmt.Errorf("kafka.brokers cannot be empty for kafka backend")
		}
		if c.Kafka.Topic == "" {
			return fmt.Errorf("kafka.topic is required for kafka backend")
		}
		// the consumer side lands readings in ClickHouse
		if err := c.validateClickHouse(); err != nil {
			return err
		}
	case "":
		return fmt.Errorf("backend.type is required")
	default:
		return fmt.Errorf("backend.type must be 'kafka', 'clickhouse' or 'memory', got '%s'", c.Backend.Type)
	}
	if c.Analytics.CacheTTL < 0 {
		return fmt.Errorf("analytics.cache_ttl cannot be negative")
	}
	if c.Analytics.RateLimit.Capacity <= 0 || c.Analytics.RateLimit.RefillPerSec <= 0 {
		return fmt.Errorf("analytics.rate_limit capacity and refill_per_sec must be positive")
	}
	if c.Redis.Enabled && c.Redis.Addr == "" {
		return fmt.Errorf("redis.addr is required when redis is enabled")
	}
	if c.Logging.Ship.Enabled && !c.Redis.Enabled {
		return fmt.Errorf("logging.ship requires redis to be enabled")
	}
	return nil
}

func (c *Config) validateClickHouse() error {
	if c.ClickHouse.Host == "" {
		return fmt.Errorf("clickhouse.host is required")
	}
	if c.ClickHouse.Database == "" || c.ClickHouse.Table == "" {
		return fmt.Errorf("clickhouse.database and clickhouse.table are required")
	}
	return nil
}
