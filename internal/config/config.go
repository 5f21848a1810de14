// Package config defines the DealScope configuration tree.  No I/O lives in
// this file, only data types and validation.
package config

import (
	"fmt"
	"time"

	"github.com/turtacn/DealScope/internal/domain/valuation"
	"github.com/turtacn/DealScope/internal/infrastructure/monitoring/logging"
)

// ─────────────────────────────────────────────────────────────────────────────
// Sections
// ─────────────────────────────────────────────────────────────────────────────

// ServerConfig holds HTTP server tunables.
type ServerConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	Mode            string        `mapstructure:"mode"` // "debug" | "release" | "test"
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	MaxBodySize     int64         `mapstructure:"max_body_size"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
	CORSOrigins     []string      `mapstructure:"cors_origins"`
}

// Addr returns host:port.
func (s ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

// GRPCConfig holds the gRPC health endpoint settings.
type GRPCConfig struct {
	Enabled bool `mapstructure:"enabled"`
	Port    int  `mapstructure:"port"`
}

// DatabaseConfig holds PostgreSQL connection parameters.
type DatabaseConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	User            string        `mapstructure:"user"`
	Password        string        `mapstructure:"password"`
	DBName          string        `mapstructure:"db_name"`
	SSLMode         string        `mapstructure:"ssl_mode"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
	ConnMaxIdleTime time.Duration `mapstructure:"conn_max_idle_time"`
	AutoMigrate     bool          `mapstructure:"auto_migrate"`
}

// SQLiteConfig locates the local run history used by the CLI.
type SQLiteConfig struct {
	Path string `mapstructure:"path"`
}

// RedisConfig holds Redis connection parameters.
type RedisConfig struct {
	Enabled      bool          `mapstructure:"enabled"`
	Addr         string        `mapstructure:"addr"`
	Password     string        `mapstructure:"password"`
	DB           int           `mapstructure:"db"`
	PoolSize     int           `mapstructure:"pool_size"`
	MinIdleConns int           `mapstructure:"min_idle_conns"`
	DialTimeout  time.Duration `mapstructure:"dial_timeout"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
	KeyPrefix    string        `mapstructure:"key_prefix"`
}

// KafkaConfig holds producer and consumer parameters.
type KafkaConfig struct {
	Enabled         bool          `mapstructure:"enabled"`
	Brokers         []string      `mapstructure:"brokers"`
	GroupID         string        `mapstructure:"group_id"`
	AutoOffsetReset string        `mapstructure:"auto_offset_reset"` // "earliest" | "latest"
	BatchSize       int           `mapstructure:"batch_size"`
	BatchTimeout    time.Duration `mapstructure:"batch_timeout"`
	MaxRetries      int           `mapstructure:"max_retries"`
	RequiredAcks    int           `mapstructure:"required_acks"`
}

// WorkerConfig holds asynchronous job execution parameters.
type WorkerConfig struct {
	Concurrency  int           `mapstructure:"concurrency"`
	MaxRetries   int           `mapstructure:"max_retries"`
	RetryBackoff time.Duration `mapstructure:"retry_backoff"`
	JobTimeout   time.Duration `mapstructure:"job_timeout"`
}

// LogConfig holds structured-logging parameters.
type LogConfig struct {
	Level       string   `mapstructure:"level"`  // "debug" | "info" | "warn" | "error"
	Format      string   `mapstructure:"format"` // "json" | "console"
	OutputPaths []string `mapstructure:"output_paths"`
}

// Logging converts the section into a logging.LogConfig.
func (l LogConfig) Logging() logging.LogConfig {
	return logging.LogConfig{
		Level:       logging.LogLevel(l.Level),
		Format:      l.Format,
		OutputPaths: l.OutputPaths,
	}
}

// MetricsConfig controls the Prometheus endpoint.
type MetricsConfig struct {
	Enabled   bool   `mapstructure:"enabled"`
	Path      string `mapstructure:"path"`
	Namespace string `mapstructure:"namespace"`
}

// SpreadConfig is a low/high band factor pair.
type SpreadConfig struct {
	Low  float64 `mapstructure:"low"`
	High float64 `mapstructure:"high"`
}

func (s SpreadConfig) spread() valuation.Spread {
	return valuation.Spread{Low: s.Low, High: s.High}
}

// ValuationConfig tunes the valuation service.
type ValuationConfig struct {
	ScorecardSpread SpreadConfig  `mapstructure:"scorecard_spread"`
	VCSpread        SpreadConfig  `mapstructure:"vc_spread"`
	BerkusSpread    SpreadConfig  `mapstructure:"berkus_spread"`
	RFSSpread       SpreadConfig  `mapstructure:"rfs_spread"`
	BerkusCeiling   float64       `mapstructure:"berkus_ceiling"`
	ResultCacheTTL  time.Duration `mapstructure:"result_cache_ttl"`
	CompsCacheTTL   time.Duration `mapstructure:"comps_cache_ttl"`
	DefaultGeo      string        `mapstructure:"default_geo"`
	DefaultMetric   string        `mapstructure:"default_metric"`
}

// Defaults converts the section into valuation.Defaults.
func (v ValuationConfig) Defaults() valuation.Defaults {
	return valuation.Defaults{
		Scorecard:     v.ScorecardSpread.spread(),
		VC:            v.VCSpread.spread(),
		Berkus:        v.BerkusSpread.spread(),
		RFS:           v.RFSSpread.spread(),
		BerkusCeiling: v.BerkusCeiling,
	}
}

// ─────────────────────────────────────────────────────────────────────────────
// Root
// ─────────────────────────────────────────────────────────────────────────────

// Config is the root configuration for every DealScope binary.
type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	GRPC      GRPCConfig      `mapstructure:"grpc"`
	Database  DatabaseConfig  `mapstructure:"database"`
	SQLite    SQLiteConfig    `mapstructure:"sqlite"`
	Redis     RedisConfig     `mapstructure:"redis"`
	Kafka     KafkaConfig     `mapstructure:"kafka"`
	Worker    WorkerConfig    `mapstructure:"worker"`
	Log       LogConfig       `mapstructure:"log"`
	Metrics   MetricsConfig   `mapstructure:"metrics"`
	Valuation ValuationConfig `mapstructure:"valuation"`
}

// ─────────────────────────────────────────────────────────────────────────────
// Validation
// ─────────────────────────────────────────────────────────────────────────────

func validPort(p int) bool { return p >= 1 && p <= 65535 }

func validSpread(name string, s SpreadConfig) error {
	if s.Low == 0 && s.High == 0 {
		return nil
	}
	if s.Low < 0 || s.Low > 1 || s.High < 1 {
		return fmt.Errorf("config: valuation.%s must satisfy 0 <= low <= 1 <= high, got %g/%g", name, s.Low, s.High)
	}
	return nil
}

// Validate returns the first semantic error in c.
func (c *Config) Validate() error {
	if !validPort(c.Server.Port) {
		return fmt.Errorf("config: server.port %d is out of range [1, 65535]", c.Server.Port)
	}
	switch c.Server.Mode {
	case "debug", "release", "test":
	default:
		return fmt.Errorf("config: server.mode %q is invalid; expected debug|release|test", c.Server.Mode)
	}
	if c.GRPC.Enabled && !validPort(c.GRPC.Port) {
		return fmt.Errorf("config: grpc.port %d is out of range [1, 65535]", c.GRPC.Port)
	}

	if c.Database.Host == "" {
		return fmt.Errorf("config: database.host is required")
	}
	if !validPort(c.Database.Port) {
		return fmt.Errorf("config: database.port %d is out of range [1, 65535]", c.Database.Port)
	}
	if c.Database.User == "" {
		return fmt.Errorf("config: database.user is required")
	}
	if c.Database.DBName == "" {
		return fmt.Errorf("config: database.db_name is required")
	}
	if c.Database.MaxOpenConns < 1 {
		return fmt.Errorf("config: database.max_open_conns must be >= 1, got %d", c.Database.MaxOpenConns)
	}

	if c.Redis.Enabled && c.Redis.Addr == "" {
		return fmt.Errorf("config: redis.addr is required when redis is enabled")
	}
	if c.Redis.DB < 0 {
		return fmt.Errorf("config: redis.db must be >= 0, got %d", c.Redis.DB)
	}

	if c.Kafka.Enabled {
		if len(c.Kafka.Brokers) == 0 {
			return fmt.Errorf("config: kafka.brokers must contain at least one broker address")
		}
		if c.Kafka.GroupID == "" {
			return fmt.Errorf("config: kafka.group_id is required")
		}
	}

	if c.Worker.Concurrency < 1 {
		return fmt.Errorf("config: worker.concurrency must be >= 1, got %d", c.Worker.Concurrency)
	}

	if _, err := logging.ParseLevel(c.Log.Level); err != nil {
		return fmt.Errorf("config: log.level %q is invalid; expected debug|info|warn|error", c.Log.Level)
	}
	switch c.Log.Format {
	case "json", "console":
	default:
		return fmt.Errorf("config: log.format %q is invalid; expected json|console", c.Log.Format)
	}

	for _, sp := range []struct {
		name string
		cfg  SpreadConfig
	}{
		{"scorecard_spread", c.Valuation.ScorecardSpread},
		{"vc_spread", c.Valuation.VCSpread},
		{"berkus_spread", c.Valuation.BerkusSpread},
		{"rfs_spread", c.Valuation.RFSSpread},
	} {
		if err := validSpread(sp.name, sp.cfg); err != nil {
			return err
		}
	}
	if c.Valuation.BerkusCeiling < 0 {
		return fmt.Errorf("config: valuation.berkus_ceiling must be >= 0, got %g", c.Valuation.BerkusCeiling)
	}
	return nil
}
