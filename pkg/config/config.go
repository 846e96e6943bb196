package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/creasty/defaults"
	"gopkg.in/yaml.v3"
)

type Config struct {
	Environment string           `yaml:"environment" default:"development"`
	Server      ServerConfig     `yaml:"server"`
	Metrics     MetricsConfig    `yaml:"metrics"`
	Log         LogConfig        `yaml:"log"`
	FastAPI     FastAPIConfig    `yaml:"fastapi"`
	Sink        SinkConfig       `yaml:"sink"`
	Kafka       KafkaConfig      `yaml:"kafka"`
	ClickHouse  ClickHouseConfig `yaml:"clickhouse"`
	Postgres    PostgresConfig   `yaml:"postgres"`
	Redis       RedisConfig      `yaml:"redis"`
	Cache       CacheConfig      `yaml:"cache"`
	Queue       QueueConfig      `yaml:"queue"`
	Uploads     UploadsConfig    `yaml:"uploads"`
	RateLimit   RateLimitConfig  `yaml:"ratelimit"`
}

type ServerConfig struct {
	Port            int           `yaml:"port" default:"8080"`
	ReadTimeout     time.Duration `yaml:"read_timeout" default:"15s"`
	WriteTimeout    time.Duration `yaml:"write_timeout" default:"30s"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" default:"10s"`
	AllowOrigins    []string      `yaml:"allow_origins"`
}

type MetricsConfig struct {
	Enabled bool   `yaml:"enabled" default:"true"`
	Path    string `yaml:"path" default:"/metrics"`
}

type LogConfig struct {
	Level  string `yaml:"level" default:"info"`
	Format string `yaml:"format" default:"console"`
	Output string `yaml:"output" default:"stdout"`
	// Collect ships aggregated error logs to kafka.log_topic when Kafka is configured.
	Collect         bool          `yaml:"collect"`
	CollectInterval time.Duration `yaml:"collect_interval" default:"30s"`
}

// FastAPIConfig points at the analytics backend that serves the market, macro and news tools.
type FastAPIConfig struct {
	BaseURL    string        `yaml:"base_url" default:"http://localhost:8000"`
	Timeout    time.Duration `yaml:"timeout" default:"30s"`
	MaxRetries int           `yaml:"max_retries" default:"2"`
}

type SinkConfig struct {
	Type         string        `yaml:"type" default:"kafka"` // kafka, clickhouse or "kafka,clickhouse"
	MaxRPS       int           `yaml:"max_rps" default:"20"`
	BufferSize   int           `yaml:"buffer_size" default:"1024"`
	BatchTimeout time.Duration `yaml:"batch_timeout" default:"5s"`
}

type KafkaConfig struct {
	Brokers          []string       `yaml:"brokers"`
	ToolResultsTopic string         `yaml:"tool_results_topic" default:"finchat.tool_results"`
	ParsedTopic      string         `yaml:"parsed_topic" default:"finchat.parsed_results"`
	LogTopic         string         `yaml:"log_topic" default:"finchat.logs"`
	RequiredAcks     int            `yaml:"required_acks" default:"-1"`
	Compression      string         `yaml:"compression" default:"snappy"`
	Producer         ProducerConfig `yaml:"producer"`
	Consumer         ConsumerConfig `yaml:"consumer"`
}

type ProducerConfig struct {
	MaxAttempts  int           `yaml:"max_attempts" default:"5"`
	Linger       time.Duration `yaml:"linger" default:"10ms"`
	BatchBytes   int           `yaml:"batch_bytes" default:"1048576"`
	BatchSize    int           `yaml:"batch_size" default:"100"`
	WriteTimeout time.Duration `yaml:"write_timeout" default:"10s"`
	ReadTimeout  time.Duration `yaml:"read_timeout" default:"10s"`
	Async        bool          `yaml:"async"`
}

type ConsumerConfig struct {
	GroupID    string        `yaml:"group_id" default:"finchat-extract"`
	Workers    int           `yaml:"workers" default:"4"`
	BufferSize int           `yaml:"buffer_size" default:"256"`
	RetryMax   int           `yaml:"retry_max" default:"3"`
	BackoffMin time.Duration `yaml:"backoff_min" default:"200ms"`
	BackoffMax time.Duration `yaml:"backoff_max" default:"5s"`
	DLQTopic   string        `yaml:"dlq_topic" default:"finchat.tool_results.dlq"`
	MinBytes   int           `yaml:"min_bytes" default:"1"`
	MaxBytes   int           `yaml:"max_bytes" default:"10485760"`
}

type ClickHouseConfig struct {
	Host             string        `yaml:"host"`
	Port             int           `yaml:"port" default:"9000"`
	Database         string        `yaml:"database" default:"finchat"`
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

type PostgresConfig struct {
	DSN          string `yaml:"dsn"`
	MaxOpenConns int    `yaml:"max_open_conns" default:"10"`
	MaxIdleConns int    `yaml:"max_idle_conns" default:"5"`
}

type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

type CacheConfig struct {
	ParsedTTL  time.Duration `yaml:"parsed_ttl" default:"10m"`
	MemoryTTL  time.Duration `yaml:"memory_ttl" default:"1m"`
	MaxEntries int           `yaml:"max_entries" default:"10000"`
}

type QueueConfig struct {
	Enabled      bool          `yaml:"enabled" default:"true"`
	Name         string        `yaml:"name" default:"documents"`
	Workers      int           `yaml:"workers" default:"2"`
	MaxRetries   int           `yaml:"max_retries" default:"3"`
	RetryDelay   time.Duration `yaml:"retry_delay" default:"10s"`
	PollInterval time.Duration `yaml:"poll_interval" default:"1s"`
}

type UploadsConfig struct {
	Dir          string   `yaml:"dir" default:"./uploads"`
	MaxBytes     int64    `yaml:"max_bytes" default:"5242880"`
	AllowedTypes []string `yaml:"allowed_types"`
}

type RateLimitConfig struct {
	Enabled  bool    `yaml:"enabled" default:"true"`
	Capacity float64 `yaml:"capacity" default:"30"`
	Refill   float64 `yaml:"refill_per_sec" default:"5"`
}

var defaultAllowedTypes = []string{
	"image/jpeg", "image/png", "application/pdf", "text/markdown", "text/plain", "text/csv",
}

// Default returns a config populated only from struct tag defaults.
func Default() *Config {
	c := &Config{}
	_ = defaults.Set(c)
	c.Uploads.AllowedTypes = append([]string(nil), defaultAllowedTypes...)
	return c
}

// Load reads a YAML file on top of the defaults and validates the result.
func Load(path string) (*Config, error) {
	c, err := load(path)
	if err != nil {
		return nil, err
	}
	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}
	return c, nil
}

func load(path string) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	c := &Config{}
	if err := defaults.Set(c); err != nil {
		return nil, fmt.Errorf("config defaults: %w", err)
	}
	if err := yaml.Unmarshal(b, c); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	if len(c.Uploads.AllowedTypes) == 0 {
		c.Uploads.AllowedTypes = append([]string(nil), defaultAllowedTypes...)
	}
	return c, nil
}

// LoadWithEnv loads config from YAML and overrides it with environment variables.
func LoadWithEnv(path string) (*Config, error) {
	c, err := load(path)
	if err != nil {
		return nil, err
	}

	c.applyEnv(os.Getenv)

	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}
	return c, nil
}

func (c *Config) applyEnv(getenv func(string) string) {
	if v := getenv("FASTAPI_API_URL"); v != "" {
		c.FastAPI.BaseURL = v
	}
	if v := getenv("KAFKA_BROKERS"); v != "" {
		c.Kafka.Brokers = strings.Split(v, ",")
	}
	if v := getenv("POSTGRES_DSN"); v != "" {
		c.Postgres.DSN = v
	}
	if v := getenv("REDIS_ADDR"); v != "" {
		c.Redis.Addr = v
	}
	if v := getenv("CLICKHOUSE_HOST"); v != "" {
		c.ClickHouse.Host = v
	}
	if v := getenv("SINK"); v != "" {
		c.Sink.Type = v
	}
	if v := getenv("LOG_LEVEL"); v != "" {
		c.Log.Level = v
	}
}

// Validate checks cross-field constraints that tags cannot express.
func (c *Config) Validate() error {
	if c.Environment == "" {
		return fmt.Errorf("environment is required")
	}
	if c.FastAPI.BaseURL == "" {
		return fmt.Errorf("fastapi.base_url is required")
	}
	for _, sink := range strings.Split(c.Sink.Type, ",") {
		switch strings.TrimSpace(sink) {
		case "kafka":
			if len(c.Kafka.Brokers) == 0 {
				return fmt.Errorf("sink.type 'kafka' requires kafka.brokers")
			}
		case "clickhouse":
			if c.ClickHouse.Host == "" {
				return fmt.Errorf("sink.type 'clickhouse' requires clickhouse.host")
			}
		default:
			return fmt.Errorf("sink.type must list 'kafka' and/or 'clickhouse', got '%s'", c.Sink.Type)
		}
	}
	if c.Uploads.MaxBytes <= 0 {
		return fmt.Errorf("uploads.max_bytes must be positive")
	}
	return nil
}

// KafkaEnabled reports whether brokers are configured.
func (c *Config) KafkaEnabled() bool { return len(c.Kafka.Brokers) > 0 }

// QueueEnabled reports whether document parsing runs on the Redis queue.
func (c *Config) QueueEnabled() bool { return c.Queue.Enabled && c.Redis.Addr != "" }
