package config

import "time"

// ─────────────────────────────────────────────────────────────────────────────
// Default values
// ─────────────────────────────────────────────────────────────────────────────

const (
	DefaultServerHost      = "0.0.0.0"
	DefaultServerPort      = 8080
	DefaultServerMode      = "release"
	DefaultReadTimeout     = 15 * time.Second
	DefaultWriteTimeout    = 30 * time.Second
	DefaultShutdownTimeout = 20 * time.Second
	DefaultMaxBodySize     = 4 << 20

	DefaultGRPCPort = 9090

	DefaultDBHost         = "localhost"
	DefaultDBPort         = 5432
	DefaultDBUser         = "dealscope"
	DefaultDBName         = "dealscope"
	DefaultDBSSLMode      = "disable"
	DefaultDBMaxOpenConns = 25
	DefaultDBMaxIdleConns = 5
	DefaultDBConnLifetime = 30 * time.Minute

	DefaultSQLitePath = "dealscope-history.db"

	DefaultRedisAddr      = "localhost:6379"
	DefaultRedisPoolSize  = 20
	DefaultRedisKeyPrefix = "dealscope:"

	DefaultKafkaBroker       = "localhost:9092"
	DefaultKafkaGroupID      = "dealscope-worker"
	DefaultKafkaBatchSize    = 100
	DefaultKafkaBatchTimeout = 10 * time.Millisecond
	DefaultKafkaMaxRetries   = 3

	DefaultWorkerConcurrency  = 4
	DefaultWorkerMaxRetries   = 3
	DefaultWorkerRetryBackoff = 2 * time.Second
	DefaultWorkerJobTimeout   = 30 * time.Second

	DefaultLogLevel  = "info"
	DefaultLogFormat = "json"

	DefaultMetricsPath      = "/metrics"
	DefaultMetricsNamespace = "dealscope"

	DefaultResultCacheTTL = 10 * time.Minute
	DefaultCompsCacheTTL  = time.Hour
	DefaultGeo            = "US"
	DefaultMetric         = "EV/ARR"
)

// defaultValues registers every key with viper so that DEALSCOPE_* variables
// resolve even when no config file mentions the key.
func defaultValues() map[string]interface{} {
	return map[string]interface{}{
		"server.host":             DefaultServerHost,
		"server.port":             DefaultServerPort,
		"server.mode":             DefaultServerMode,
		"server.read_timeout":     DefaultReadTimeout,
		"server.write_timeout":    DefaultWriteTimeout,
		"server.max_body_size":    DefaultMaxBodySize,
		"server.shutdown_timeout": DefaultShutdownTimeout,

		"grpc.enabled": false,
		"grpc.port":    DefaultGRPCPort,

		"database.host":               DefaultDBHost,
		"database.port":               DefaultDBPort,
		"database.user":               DefaultDBUser,
		"database.password":           "",
		"database.db_name":            DefaultDBName,
		"database.ssl_mode":           DefaultDBSSLMode,
		"database.max_open_conns":     DefaultDBMaxOpenConns,
		"database.max_idle_conns":     DefaultDBMaxIdleConns,
		"database.conn_max_lifetime":  DefaultDBConnLifetime,
		"database.conn_max_idle_time": time.Duration(0),
		"database.auto_migrate":       true,

		"sqlite.path": DefaultSQLitePath,

		"redis.enabled":        false,
		"redis.addr":           DefaultRedisAddr,
		"redis.password":       "",
		"redis.db":             0,
		"redis.pool_size":      DefaultRedisPoolSize,
		"redis.min_idle_conns": 0,
		"redis.dial_timeout":   5 * time.Second,
		"redis.read_timeout":   3 * time.Second,
		"redis.write_timeout":  3 * time.Second,
		"redis.key_prefix":     DefaultRedisKeyPrefix,

		"kafka.enabled":           false,
		"kafka.brokers":           []string{DefaultKafkaBroker},
		"kafka.group_id":          DefaultKafkaGroupID,
		"kafka.auto_offset_reset": "earliest",
		"kafka.batch_size":        DefaultKafkaBatchSize,
		"kafka.batch_timeout":     DefaultKafkaBatchTimeout,
		"kafka.max_retries":       DefaultKafkaMaxRetries,
		"kafka.required_acks":     -1,

		"worker.concurrency":   DefaultWorkerConcurrency,
		"worker.max_retries":   DefaultWorkerMaxRetries,
		"worker.retry_backoff": DefaultWorkerRetryBackoff,
		"worker.job_timeout":   DefaultWorkerJobTimeout,

		"log.level":        DefaultLogLevel,
		"log.format":       DefaultLogFormat,
		"log.output_paths": []string{"stdout"},

		"metrics.enabled":   true,
		"metrics.path":      DefaultMetricsPath,
		"metrics.namespace": DefaultMetricsNamespace,

		"valuation.scorecard_spread.low":  0.0,
		"valuation.scorecard_spread.high": 0.0,
		"valuation.vc_spread.low":         0.0,
		"valuation.vc_spread.high":        0.0,
		"valuation.berkus_spread.low":     0.0,
		"valuation.berkus_spread.high":    0.0,
		"valuation.rfs_spread.low":        0.0,
		"valuation.rfs_spread.high":       0.0,
		"valuation.berkus_ceiling":        0.0,
		"valuation.result_cache_ttl":      DefaultResultCacheTTL,
		"valuation.comps_cache_ttl":       DefaultCompsCacheTTL,
		"valuation.default_geo":           DefaultGeo,
		"valuation.default_metric":        DefaultMetric,
	}
}

// ApplyDefaults fills zero-value fields of cfg.  Explicit values always win.
// Booleans are left alone because false is a meaningful setting.
func ApplyDefaults(cfg *Config) {
	if cfg == nil {
		return
	}

	// ── Server ────────────────────────────────────────────────────────────────
	setString(&cfg.Server.Host, DefaultServerHost)
	setInt(&cfg.Server.Port, DefaultServerPort)
	setString(&cfg.Server.Mode, DefaultServerMode)
	setDuration(&cfg.Server.ReadTimeout, DefaultReadTimeout)
	setDuration(&cfg.Server.WriteTimeout, DefaultWriteTimeout)
	setDuration(&cfg.Server.ShutdownTimeout, DefaultShutdownTimeout)
	if cfg.Server.MaxBodySize == 0 {
		cfg.Server.MaxBodySize = DefaultMaxBodySize
	}
	setInt(&cfg.GRPC.Port, DefaultGRPCPort)

	// ── Database ──────────────────────────────────────────────────────────────
	setString(&cfg.Database.Host, DefaultDBHost)
	setInt(&cfg.Database.Port, DefaultDBPort)
	setString(&cfg.Database.User, DefaultDBUser)
	setString(&cfg.Database.DBName, DefaultDBName)
	setString(&cfg.Database.SSLMode, DefaultDBSSLMode)
	setInt(&cfg.Database.MaxOpenConns, DefaultDBMaxOpenConns)
	setInt(&cfg.Database.MaxIdleConns, DefaultDBMaxIdleConns)
	setDuration(&cfg.Database.ConnMaxLifetime, DefaultDBConnLifetime)
	setString(&cfg.SQLite.Path, DefaultSQLitePath)

	// ── Redis ─────────────────────────────────────────────────────────────────
	setString(&cfg.Redis.Addr, DefaultRedisAddr)
	setInt(&cfg.Redis.PoolSize, DefaultRedisPoolSize)
	setString(&cfg.Redis.KeyPrefix, DefaultRedisKeyPrefix)

	// ── Kafka ─────────────────────────────────────────────────────────────────
	if len(cfg.Kafka.Brokers) == 0 {
		cfg.Kafka.Brokers = []string{DefaultKafkaBroker}
	}
	setString(&cfg.Kafka.GroupID, DefaultKafkaGroupID)
	setString(&cfg.Kafka.AutoOffsetReset, "earliest")
	setInt(&cfg.Kafka.BatchSize, DefaultKafkaBatchSize)
	setDuration(&cfg.Kafka.BatchTimeout, DefaultKafkaBatchTimeout)
	setInt(&cfg.Kafka.MaxRetries, DefaultKafkaMaxRetries)

	// ── Worker ────────────────────────────────────────────────────────────────
	setInt(&cfg.Worker.Concurrency, DefaultWorkerConcurrency)
	setInt(&cfg.Worker.MaxRetries, DefaultWorkerMaxRetries)
	setDuration(&cfg.Worker.RetryBackoff, DefaultWorkerRetryBackoff)
	setDuration(&cfg.Worker.JobTimeout, DefaultWorkerJobTimeout)

	// ── Log / Metrics ─────────────────────────────────────────────────────────
	setString(&cfg.Log.Level, DefaultLogLevel)
	setString(&cfg.Log.Format, DefaultLogFormat)
	setString(&cfg.Metrics.Path, DefaultMetricsPath)
	setString(&cfg.Metrics.Namespace, DefaultMetricsNamespace)

	// ── Valuation ─────────────────────────────────────────────────────────────
	setDuration(&cfg.Valuation.ResultCacheTTL, DefaultResultCacheTTL)
	setDuration(&cfg.Valuation.CompsCacheTTL, DefaultCompsCacheTTL)
	setString(&cfg.Valuation.DefaultGeo, DefaultGeo)
	setString(&cfg.Valuation.DefaultMetric, DefaultMetric)
}

func setString(dst *string, def string) {
	if *dst == "" {
		*dst = def
	}
}

func setInt(dst *int, def int) {
	if *dst == 0 {
		*dst = def
	}
}

func setDuration(dst *time.Duration, def time.Duration) {
	if *dst == 0 {
		*dst = def
	}
}
