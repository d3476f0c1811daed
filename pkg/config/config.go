package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"LoadCast/internal/domain/models"
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
	Ingest struct {
		Backend      string        `yaml:"backend"`
		BatchSize    int           `yaml:"batch_size"`
		BatchTimeout time.Duration `yaml:"batch_timeout"`
		MaxRPS       int           `yaml:"max_rps"`
		BufferSize   int           `yaml:"buffer_size"`
	} `yaml:"ingest"`
	Kafka struct {
		Brokers      []string `yaml:"brokers"`
		Topic        string   `yaml:"topic"`
		AlertsTopic  string   `yaml:"alerts_topic"`
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
		Consumer struct {
			GroupID    string        `yaml:"group_id"`
			Workers    int           `yaml:"workers"`
			BufferSize int           `yaml:"buffer_size"`
			RetryMax   int           `yaml:"retry_max"`
			BackoffMin time.Duration `yaml:"backoff_min"`
			BackoffMax time.Duration `yaml:"backoff_max"`
			DLQTopic   string        `yaml:"dlq_topic"`
			MinBytes   int           `yaml:"min_bytes"`
			MaxBytes   int           `yaml:"max_bytes"`
		} `yaml:"consumer"`
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
	Collector struct {
		Mode           string        `yaml:"mode"`
		AuthToken      string        `yaml:"auth_token"`
		WebSocketURL   string        `yaml:"websocket_url"`
		HTTPURL        string        `yaml:"http_url"`
		Subscriptions  []string      `yaml:"subscriptions"`
		ReconnectDelay time.Duration `yaml:"reconnect_delay"`
		PingInterval   time.Duration `yaml:"ping_interval"`
		PollInterval   time.Duration `yaml:"poll_interval"`
	} `yaml:"collector"`
	Store struct {
		Backend    string `yaml:"backend"`
		BadgerPath string `yaml:"badger_path"`
		CacheSize  int    `yaml:"cache_size"`
		Redis      struct {
			Addr     string `yaml:"addr"`
			Password string `yaml:"password"`
			DB       int    `yaml:"db"`
			Prefix   string `yaml:"prefix"`
		} `yaml:"redis"`
	} `yaml:"store"`
	Forecast struct {
		Lookback        time.Duration   `yaml:"lookback"`
		TrainingTimeout time.Duration   `yaml:"training_timeout"`
		Confidence      float64         `yaml:"confidence"`
		MinPoints       int             `yaml:"min_points"`
		Horizon         int             `yaml:"horizon"`
		Frequency       time.Duration   `yaml:"frequency"`
		Grid            models.GridAxes `yaml:"grid"`
		Tuner           struct {
			MinPointsForCV  int     `yaml:"min_points_for_cv"`
			CVFolds         int     `yaml:"cv_folds"`
			CVHorizon       int     `yaml:"cv_horizon"`
			HoldoutFraction float64 `yaml:"holdout_fraction"`
			Workers         int     `yaml:"workers"`
		} `yaml:"tuner"`
	} `yaml:"forecast"`
	Anomaly struct {
		Window        int     `yaml:"window"`
		Threshold     float64 `yaml:"threshold"`
		CriticalLevel float64 `yaml:"critical_level"`
		RateOfChange  float64 `yaml:"rate_of_change"`
	} `yaml:"anomaly"`
	Retrain struct {
		Enabled        bool          `yaml:"enabled"`
		Interval       time.Duration `yaml:"interval"`
		Workers        int           `yaml:"workers"`
		ModelRetention time.Duration `yaml:"model_retention"`
	} `yaml:"retrain"`
	Status struct {
		CompletenessWindow   time.Duration `yaml:"completeness_window"`
		CompletenessInterval time.Duration `yaml:"completeness_interval"`
	} `yaml:"status"`
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

	if v := os.Getenv("COLLECTOR_AUTH_TOKEN"); v != "" {
		c.Collector.AuthToken = v
	}
	if v := os.Getenv("SUBSCRIPTIONS"); v != "" {
		c.Collector.Subscriptions = strings.Split(v, ",")
	}
	if v := os.Getenv("INGEST_BACKEND"); v != "" {
		c.Ingest.Backend = v
	}
	if v := os.Getenv("KAFKA_BROKERS"); v != "" {
		c.Kafka.Brokers = strings.Split(v, ",")
	}
	if v := os.Getenv("KAFKA_TOPIC"); v != "" {
		c.Kafka.Topic = v
	}
	if v := os.Getenv("REDIS_ADDR"); v != "" {
		c.Store.Redis.Addr = v
	}

	return c, nil
}

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	if c.Environment == "" {
		return fmt.Errorf("environment is required")
	}
	if c.Ingest.Backend == "" {
		return fmt.Errorf("ingest.backend is required")
	}
	if c.Ingest.Backend != "kafka" && c.Ingest.Backend != "clickhouse" {
		return fmt.Errorf("ingest.backend must be 'kafka' or 'clickhouse', got '%s'", c.Ingest.Backend)
	}
	if c.Collector.Mode != "" && c.Collector.Mode != "stream" && c.Collector.Mode != "pull" {
		return fmt.Errorf("collector.mode must be 'stream' or 'pull', got '%s'", c.Collector.Mode)
	}
	if c.Store.Backend != "" && c.Store.Backend != "badger" && c.Store.Backend != "redis" {
		return fmt.Errorf("store.backend must be 'badger' or 'redis', got '%s'", c.Store.Backend)
	}
	if c.Forecast.Confidence != 0 && (c.Forecast.Confidence <= 0 || c.Forecast.Confidence >= 1) {
		return fmt.Errorf("forecast.confidence must be in (0, 1), got %g", c.Forecast.Confidence)
	}
	return nil
}
