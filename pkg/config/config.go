package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Environment string `yaml:"environment"`
	Server      struct {
		Port            int           `yaml:"port"`
		ReadTimeout     time.Duration `yaml:"read_timeout"`
		WriteTimeout    time.Duration `yaml:"write_timeout"`
		ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
	} `yaml:"server"`
	Metrics struct {
		Enabled bool   `yaml:"enabled"`
		Path    string `yaml:"path"`
	} `yaml:"metrics"`
	Kafka struct {
		Brokers      []string `yaml:"brokers"`
		EventsTopic  string   `yaml:"events_topic"`
		RequiredAcks int      `yaml:"required_acks"`
		Compression  string   `yaml:"compression"`
		Producer     struct {
			MaxAttempts  int           `yaml:"max_attempts"`
			Linger       time.Duration `yaml:"linger"`
			BatchBytes   int           `yaml:"batch_bytes"`
			BatchSize    int           `yaml:"batch_size"`
			WriteTimeout time.Duration `yaml:"write_timeout"`
			ReadTimeout  time.Duration `yaml:"read_timeout"`
			Async        bool          `yaml:"async"`
		} `yaml:"producer"`
		Settlement struct {
			Topic      string        `yaml:"topic"`
			GroupID    string        `yaml:"group_id"`
			Workers    int           `yaml:"workers"`
			BufferSize int           `yaml:"buffer_size"`
			RetryMax   int           `yaml:"retry_max"`
			BackoffMin time.Duration `yaml:"backoff_min"`
			BackoffMax time.Duration `yaml:"backoff_max"`
			DLQTopic   string        `yaml:"dlq_topic"`
			MinBytes   int           `yaml:"min_bytes"`
			MaxBytes   int           `yaml:"max_bytes"`
		} `yaml:"settlement"`
	} `yaml:"kafka"`
	ClickHouse struct {
		Host             string        `yaml:"host"`
		Port             int           `yaml:"port"`
		Database         string        `yaml:"database"`
		User             string        `yaml:"user"`
		Password         string        `yaml:"password"`
		UseHTTP          bool          `yaml:"use_http"`
		AsyncInsert      bool          `yaml:"async_insert"`
		WaitForAsync     bool          `yaml:"wait_for_async_insert"`
		DialTimeout      time.Duration `yaml:"dial_timeout"`
		ReadTimeout      time.Duration `yaml:"read_timeout"`
		WriteTimeout     time.Duration `yaml:"write_timeout"`
		MaxExecutionTime time.Duration `yaml:"max_execution_time"`
	} `yaml:"clickhouse"`
	Redis struct {
		Enabled  bool   `yaml:"enabled"`
		Addr     string `yaml:"addr"`
		Password string `yaml:"password"`
		DB       int    `yaml:"db"`
	} `yaml:"redis"`
	Auction struct {
		DefaultIncrement  int64         `yaml:"default_increment"`
		ExtensionWindow   time.Duration `yaml:"extension_window"`
		MaxExtensions     int           `yaml:"max_extensions"`
		HoldExpiry        time.Duration `yaml:"hold_expiry"`
		HoldSweepInterval time.Duration `yaml:"hold_sweep_interval"`
		SubmitTimeout     time.Duration `yaml:"submit_timeout"`
		DutchTick         time.Duration `yaml:"dutch_tick"`
	} `yaml:"auction"`
	Fraud struct {
		BlockThreshold   int           `yaml:"block_threshold"`
		FlagThreshold    int           `yaml:"flag_threshold"`
		NewAccountAge    time.Duration `yaml:"new_account_age"`
		LastMinuteWindow time.Duration `yaml:"last_minute_window"`
		LowActivityScore float64       `yaml:"low_activity_score"`
		Weights          struct {
			SameIP      int `yaml:"same_ip"`
			SameDevice  int `yaml:"same_device"`
			PingPong    int `yaml:"ping_pong"`
			NewAccount  int `yaml:"new_account"`
			LastMinute  int `yaml:"last_minute"`
			LowActivity int `yaml:"low_activity"`
		} `yaml:"weights"`
		WeightVariance struct {
			Block   float64 `yaml:"block"`
			Dispute float64 `yaml:"dispute"`
			Warn    float64 `yaml:"warn"`
		} `yaml:"weight_variance"`
		Velocity struct {
			MaxPerMinute int           `yaml:"max_per_minute"`
			MinSpacing   time.Duration `yaml:"min_spacing"`
			Cooldown     time.Duration `yaml:"cooldown"`
		} `yaml:"velocity"`
		ReviewBuffer int `yaml:"review_buffer"`
	} `yaml:"fraud"`
	Escrow struct {
		DisputeWindow time.Duration `yaml:"dispute_window"`
	} `yaml:"escrow"`
}

// Load reads and parses a YAML configuration file.
func Load(path string) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	var c Config
	if err := yaml.Unmarshal(b, &c); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	c.applyDefaults()

	// Validate required fields
	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}

	return &c, nil
}

// LoadWithEnv loads config from YAML and overrides with environment variables.
func LoadWithEnv(path string) (*Config, error) {
	c, err := Load(path)
	if err != nil {
		return nil, err
	}

	// Override with environment variables
	if v := os.Getenv("KAFKA_BROKERS"); v != "" {
		c.Kafka.Brokers = strings.Split(v, ",")
	}
	if v := os.Getenv("KAFKA_EVENTS_TOPIC"); v != "" {
		c.Kafka.EventsTopic = v
	}
	if v := os.Getenv("CLICKHOUSE_HOST"); v != "" {
		c.ClickHouse.Host = v
	}
	if v := os.Getenv("CLICKHOUSE_PASSWORD"); v != "" {
		c.ClickHouse.Password = v
	}
	if v := os.Getenv("REDIS_ADDR"); v != "" {
		c.Redis.Addr = v
		c.Redis.Enabled = true
	}
	if v := os.Getenv("REDIS_PASSWORD"); v != "" {
		c.Redis.Password = v
	}

	return c, nil
}

func (c *Config) applyDefaults() {
	if c.Auction.DefaultIncrement <= 0 {
		c.Auction.DefaultIncrement = 100
	}
	if c.Auction.ExtensionWindow <= 0 {
		c.Auction.ExtensionWindow = 2 * time.Minute
	}
	if c.Auction.MaxExtensions <= 0 {
		c.Auction.MaxExtensions = 3
	}
	if c.Auction.HoldExpiry <= 0 {
		c.Auction.HoldExpiry = 24 * time.Hour
	}
	if c.Auction.HoldSweepInterval <= 0 {
		c.Auction.HoldSweepInterval = time.Minute
	}
	if c.Auction.SubmitTimeout <= 0 {
		c.Auction.SubmitTimeout = 5 * time.Second
	}
	if c.Auction.DutchTick <= 0 {
		c.Auction.DutchTick = time.Second
	}
	if c.Fraud.BlockThreshold <= 0 {
		c.Fraud.BlockThreshold = 80
	}
	if c.Fraud.FlagThreshold <= 0 {
		c.Fraud.FlagThreshold = 60
	}
	if c.Fraud.NewAccountAge <= 0 {
		c.Fraud.NewAccountAge = 7 * 24 * time.Hour
	}
	if c.Fraud.LastMinuteWindow <= 0 {
		c.Fraud.LastMinuteWindow = time.Minute
	}
	if c.Fraud.LowActivityScore <= 0 {
		c.Fraud.LowActivityScore = 0.3
	}
	if c.Fraud.Weights.SameIP <= 0 {
		c.Fraud.Weights.SameIP = 50
	}
	if c.Fraud.Weights.SameDevice <= 0 {
		c.Fraud.Weights.SameDevice = 40
	}
	if c.Fraud.Weights.PingPong <= 0 {
		c.Fraud.Weights.PingPong = 30
	}
	if c.Fraud.Weights.NewAccount <= 0 {
		c.Fraud.Weights.NewAccount = 20
	}
	if c.Fraud.Weights.LastMinute <= 0 {
		c.Fraud.Weights.LastMinute = 20
	}
	if c.Fraud.Weights.LowActivity <= 0 {
		c.Fraud.Weights.LowActivity = 15
	}
	if c.Fraud.WeightVariance.Block <= 0 {
		c.Fraud.WeightVariance.Block = 10
	}
	if c.Fraud.WeightVariance.Dispute <= 0 {
		c.Fraud.WeightVariance.Dispute = 5
	}
	if c.Fraud.WeightVariance.Warn <= 0 {
		c.Fraud.WeightVariance.Warn = 3
	}
	if c.Fraud.Velocity.MaxPerMinute <= 0 {
		c.Fraud.Velocity.MaxPerMinute = 10
	}
	if c.Fraud.Velocity.MinSpacing <= 0 {
		c.Fraud.Velocity.MinSpacing = time.Second
	}
	if c.Fraud.Velocity.Cooldown <= 0 {
		c.Fraud.Velocity.Cooldown = 30 * time.Second
	}
	if c.Fraud.ReviewBuffer <= 0 {
		c.Fraud.ReviewBuffer = 1000
	}
	if c.Escrow.DisputeWindow <= 0 {
		c.Escrow.DisputeWindow = 72 * time.Hour
	}
	if c.Server.Port == 0 {
		c.Server.Port = 8080
	}
}

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	if c.Environment == "" {
		return fmt.Errorf("environment is required")
	}
	if len(c.Kafka.Brokers) == 0 {
		return fmt.Errorf("kafka.brokers cannot be empty")
	}
	if c.Kafka.EventsTopic == "" {
		return fmt.Errorf("kafka.events_topic is required")
	}
	if c.Fraud.FlagThreshold > c.Fraud.BlockThreshold {
		return fmt.Errorf("fraud.flag_threshold must not exceed fraud.block_threshold")
	}
	if c.Fraud.WeightVariance.Warn > c.Fraud.WeightVariance.Dispute ||
		c.Fraud.WeightVariance.Dispute > c.Fraud.WeightVariance.Block {
		return fmt.Errorf("fraud.weight_variance bands must satisfy warn <= dispute <= block")
	}
	return nil
}
