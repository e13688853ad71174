package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds all application configuration
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Database  DatabaseConfig  `yaml:"database"`
	Kafka     KafkaConfig     `yaml:"kafka"`
	Redis     RedisConfig     `yaml:"redis"`
	Yahoo     YahooConfig     `yaml:"yahoo"`
	Model     ModelConfig     `yaml:"model"`
	Ingest    IngestConfig    `yaml:"ingest"`
	Analytics AnalyticsConfig `yaml:"analytics"`
	Schedule  ScheduleConfig  `yaml:"schedule"`
	Logging   LoggingConfig   `yaml:"logging"`
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Port         string        `yaml:"port"`
	Host         string        `yaml:"host"`
	ReadTimeout  time.Duration `yaml:"read_timeout"`
	WriteTimeout time.Duration `yaml:"write_timeout"`
}

// DatabaseConfig holds PostgreSQL configuration
type DatabaseConfig struct {
	Host          string `yaml:"host"`
	Port          string `yaml:"port"`
	User          string `yaml:"user"`
	Password      string `yaml:"password"`
	DBName        string `yaml:"dbname"`
	SSLMode       string `yaml:"sslmode"`
	MigrationsDir string `yaml:"migrations_dir"`
}

// KafkaConfig holds Kafka configuration. Empty brokers disable Kafka.
type KafkaConfig struct {
	Brokers       []string `yaml:"brokers"`
	EventsTopic   string   `yaml:"events_topic"`
	CommandsTopic string   `yaml:"commands_topic"`
	GroupID       string   `yaml:"group_id"`
}

// RedisConfig holds ranking cache configuration. An empty URL disables the cache.
type RedisConfig struct {
	URL     string        `yaml:"url"`
	RankKey string        `yaml:"rank_key"`
	TTL     time.Duration `yaml:"ttl"`
}

// YahooConfig holds the market data source configuration
type YahooConfig struct {
	BaseURL string        `yaml:"base_url"`
	Proxy   string        `yaml:"proxy"`
	Timeout time.Duration `yaml:"timeout"`
}

// ModelConfig points at the TensorFlow Serving model
type ModelConfig struct {
	ServingURL string        `yaml:"serving_url"`
	Name       string        `yaml:"name"`
	Timeout    time.Duration `yaml:"timeout"`
}

// IngestConfig tunes incremental sync
type IngestConfig struct {
	Epoch        string        `yaml:"epoch"`
	Concurrency  int           `yaml:"concurrency"`
	FetchTimeout time.Duration `yaml:"fetch_timeout"`
	IndexSymbols []string      `yaml:"index_symbols"`
}

// AnalyticsConfig selects moving average windows
type AnalyticsConfig struct {
	Windows    []int `yaml:"windows"`
	LongWindow int   `yaml:"long_window"`
	SkipFresh  bool  `yaml:"skip_fresh_predictions"`
}

// ScheduleConfig holds the cron expressions
type ScheduleConfig struct {
	DailyCron  string        `yaml:"daily_cron"`
	RunOnStart bool          `yaml:"run_on_start"`
	RunTimeout time.Duration `yaml:"run_timeout"`
}

// LoggingConfig holds logger settings
type LoggingConfig struct {
	Level string `yaml:"level"`
}

// DefaultPath is used when CONFIG_PATH is unset
const DefaultPath = "configs/config.yaml"

// Load reads the YAML file at path if present, applies environment overrides, then defaults
func Load(path string) (*Config, error) {
	cfg := &Config{}

	data, err := os.ReadFile(path)
	if err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}
	if len(data) > 0 {
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config: %w", err)
		}
	}

	cfg.applyEnv()
	cfg.applyDefaults()
	return cfg, nil
}

func (c *Config) applyEnv() {
	c.Server.Port = getEnv("SERVER_PORT", c.Server.Port)
	c.Server.Host = getEnv("SERVER_HOST", c.Server.Host)

	c.Database.Host = getEnv("DB_HOST", c.Database.Host)
	c.Database.Port = getEnv("DB_PORT", c.Database.Port)
	c.Database.User = getEnv("DB_USER", c.Database.User)
	c.Database.Password = getEnv("DB_PASSWORD", c.Database.Password)
	c.Database.DBName = getEnv("DB_NAME", c.Database.DBName)
	c.Database.SSLMode = getEnv("DB_SSLMODE", c.Database.SSLMode)

	if v := os.Getenv("KAFKA_BROKERS"); v != "" {
		c.Kafka.Brokers = splitList(v)
	}
	c.Kafka.EventsTopic = getEnv("KAFKA_EVENTS_TOPIC", c.Kafka.EventsTopic)
	c.Kafka.CommandsTopic = getEnv("KAFKA_COMMANDS_TOPIC", c.Kafka.CommandsTopic)

	c.Redis.URL = getEnv("REDIS_URL", c.Redis.URL)
	c.Yahoo.BaseURL = getEnv("YAHOO_BASE_URL", c.Yahoo.BaseURL)
	c.Yahoo.Proxy = getEnv("HTTPS_PROXY", c.Yahoo.Proxy)
	c.Model.ServingURL = getEnv("MODEL_SERVING_URL", c.Model.ServingURL)
	c.Model.Name = getEnv("MODEL_NAME", c.Model.Name)
	c.Ingest.Epoch = getEnv("INGEST_EPOCH", c.Ingest.Epoch)
	if v := os.Getenv("INGEST_CONCURRENCY"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.Ingest.Concurrency = n
		}
	}
	c.Schedule.DailyCron = getEnv("CRON_DAILY", c.Schedule.DailyCron)
	c.Logging.Level = getEnv("LOG_LEVEL", c.Logging.Level)
}

func (c *Config) applyDefaults() {
	setDefault(&c.Server.Port, "8080")
	setDefault(&c.Server.Host, "0.0.0.0")
	if c.Server.ReadTimeout == 0 {
		c.Server.ReadTimeout = 15 * time.Second
	}
	if c.Server.WriteTimeout == 0 {
		c.Server.WriteTimeout = 10 * time.Minute
	}

	setDefault(&c.Database.Host, "localhost")
	setDefault(&c.Database.Port, "5432")
	setDefault(&c.Database.User, "postgres")
	setDefault(&c.Database.Password, "postgres")
	setDefault(&c.Database.DBName, "marketforecast")
	setDefault(&c.Database.SSLMode, "disable")
	setDefault(&c.Database.MigrationsDir, "db/migrations")

	setDefault(&c.Kafka.EventsTopic, "market-forecast-events")
	setDefault(&c.Kafka.CommandsTopic, "market-forecast-commands")
	setDefault(&c.Kafka.GroupID, "market-forecast")

	if c.Redis.TTL == 0 {
		c.Redis.TTL = 24 * time.Hour
	}

	setDefault(&c.Yahoo.BaseURL, "https://query1.finance.yahoo.com")
	if c.Yahoo.Timeout == 0 {
		c.Yahoo.Timeout = 30 * time.Second
	}

	setDefault(&c.Model.Name, "forecast")
	if c.Model.Timeout == 0 {
		c.Model.Timeout = 10 * time.Second
	}

	setDefault(&c.Ingest.Epoch, "2015-01-01")
	if c.Ingest.Concurrency <= 0 {
		c.Ingest.Concurrency = 4
	}
	if c.Ingest.FetchTimeout == 0 {
		c.Ingest.FetchTimeout = 30 * time.Second
	}
	if len(c.Ingest.IndexSymbols) == 0 {
		c.Ingest.IndexSymbols = []string{"^GSPC", "^DJI", "^IXIC"}
	}

	if len(c.Analytics.Windows) == 0 {
		c.Analytics.Windows = []int{50, 200}
	}
	if c.Analytics.LongWindow == 0 {
		c.Analytics.LongWindow = 200
	}

	setDefault(&c.Schedule.DailyCron, "0 0 0 * * *")
	if c.Schedule.RunTimeout == 0 {
		c.Schedule.RunTimeout = 2 * time.Hour
	}

	setDefault(&c.Logging.Level, "info")
}

// Validate checks that values are usable
func (c *Config) Validate() error {
	if _, err := c.Ingest.EpochDate(); err != nil {
		return fmt.Errorf("ingest.epoch: %w", err)
	}
	for _, w := range c.Analytics.Windows {
		if w <= 0 {
			return fmt.Errorf("analytics.windows must be positive, got %d", w)
		}
	}
	if c.Analytics.LongWindow <= 0 {
		return fmt.Errorf("analytics.long_window must be positive")
	}
	if c.Model.ServingURL == "" {
		return fmt.Errorf("model.serving_url is required")
	}
	return nil
}

// EpochDate parses Epoch as a calendar date
func (i *IngestConfig) EpochDate() (time.Time, error) {
	return time.Parse("2006-01-02", i.Epoch)
}

// Enabled reports whether brokers are configured
func (k *KafkaConfig) Enabled() bool {
	return len(k.Brokers) > 0
}

// ConnectionString returns the PostgreSQL connection string
func (d *DatabaseConfig) ConnectionString() string {
	return "postgres://" + d.User + ":" + d.Password + "@" + d.Host + ":" + d.Port + "/" + d.DBName + "?sslmode=" + d.SSLMode
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func setDefault(field *string, value string) {
	if *field == "" {
		*field = value
	}
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
