package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Storage backend selectors.
const (
	BackendMemory = "memory"
	BackendRedis  = "redis"
)

type AppConfig struct {
	App       AppSettings       `mapstructure:"app"`
	Storage   StorageSettings   `mapstructure:"storage"`
	Session   SessionSettings   `mapstructure:"session"`
	Security  SecuritySettings  `mapstructure:"security"`
	Crypto    CryptoSettings    `mapstructure:"crypto"`
	Redis     RedisSettings     `mapstructure:"redis"`
	Audit     AuditSettings     `mapstructure:"audit"`
	Kafka     KafkaSettings     `mapstructure:"kafka"`
	CORS      CORSSettings      `mapstructure:"cors"`
	Telemetry TelemetrySettings `mapstructure:"telemetry"`
}

type AppSettings struct {
	Name string `mapstructure:"name"`
	Env  string `mapstructure:"env"`
	Host string `mapstructure:"host"`
	Port int    `mapstructure:"port"`
}

// StorageSettings selects where sessions live: an in-process map for the
// long-lived single-server shape, or Redis for stateless workers sharing a
// durable store.
type StorageSettings struct {
	Backend string `mapstructure:"backend"`
}

type SessionSettings struct {
	Timeout       time.Duration `mapstructure:"timeout"`
	SweepInterval time.Duration `mapstructure:"sweep_interval"`
	TokenBytes    int           `mapstructure:"token_bytes"`
}

// SecuritySettings configures admission control, brute-force lockout, and
// risk scoring.
type SecuritySettings struct {
	RateWindow      time.Duration `mapstructure:"rate_window"`
	RateCap         int           `mapstructure:"rate_cap"`
	FreeRetries     int           `mapstructure:"free_retries"`
	MinWait         time.Duration `mapstructure:"min_wait"`
	MaxWait         time.Duration `mapstructure:"max_wait"`
	Lookback        time.Duration `mapstructure:"lookback"`
	CleanupInterval time.Duration `mapstructure:"cleanup_interval"`
	CleanupAge      time.Duration `mapstructure:"cleanup_age"`
	EventRetention  time.Duration `mapstructure:"event_retention"`
	MaxEvents       int           `mapstructure:"max_events"`

	// Risk scoring knobs.
	VolumeThreshold    int `mapstructure:"volume_threshold"`
	FailureRatePercent int `mapstructure:"failure_rate_percent"`
	SessionFanoutCap   int `mapstructure:"session_fanout_cap"`
}

// CryptoSettings supplies credential-encryption key material: either a raw
// base64 32-byte key, or a passphrase plus salt for Argon2id derivation.
type CryptoSettings struct {
	Key        string `mapstructure:"key"`
	Passphrase string `mapstructure:"passphrase"`
	Salt       string `mapstructure:"salt"`
}

// RedisSettings configures the Redis connection used by the durable session
// store and the shared attempt window.
type RedisSettings struct {
	Host          string `mapstructure:"host"`
	Port          int    `mapstructure:"port"`
	DB            int    `mapstructure:"db"`
	Password      string `mapstructure:"password"`
	TLSEnabled    bool   `mapstructure:"tls_enabled"`
	SessionPrefix string `mapstructure:"session_prefix"`
	AttemptPrefix string `mapstructure:"attempt_prefix"`
}

// AuditSettings configures the optional Postgres-backed security event audit log.
type AuditSettings struct {
	Enabled  bool             `mapstructure:"enabled"`
	Postgres PostgresSettings `mapstructure:"postgres"`
}

type PostgresSettings struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	User            string        `mapstructure:"user"`
	Password        string        `mapstructure:"password"`
	Database        string        `mapstructure:"database"`
	SSLMode         string        `mapstructure:"ssl_mode"`
	MaxConns        int32         `mapstructure:"max_conns"`
	MinConns        int32         `mapstructure:"min_conns"`
	MaxConnLifetime time.Duration `mapstructure:"max_conn_lifetime"`
}

// KafkaSettings configures the security event producer. Leaving brokers
// empty selects the logging stub publisher.
type KafkaSettings struct {
	Brokers     []string `mapstructure:"brokers"`
	TopicPrefix string   `mapstructure:"topic_prefix"`
}

type CORSSettings struct {
	AllowedOrigins []string `mapstructure:"allowed_origins"`
}

type TelemetrySettings struct {
	TracingEnabled bool    `mapstructure:"tracing_enabled"`
	OTLPEndpoint   string  `mapstructure:"otlp_endpoint"`
	ServiceName    string  `mapstructure:"service_name"`
	SamplingRate   float64 `mapstructure:"sampling_rate"`
}

func Load() (*AppConfig, error) {
	v := viper.New()

	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.SetEnvPrefix("PASSGAGE_GW")

	setDefaults(v)

	if err := bindEnvs(v, []string{
		"app.name",
		"app.env",
		"app.host",
		"app.port",
		"storage.backend",
		"session.timeout",
		"session.sweep_interval",
		"session.token_bytes",
		"security.rate_window",
		"security.rate_cap",
		"security.free_retries",
		"security.min_wait",
		"security.max_wait",
		"security.lookback",
		"security.cleanup_interval",
		"security.cleanup_age",
		"security.event_retention",
		"security.max_events",
		"security.volume_threshold",
		"security.failure_rate_percent",
		"security.session_fanout_cap",
		"crypto.key",
		"crypto.passphrase",
		"crypto.salt",
		"redis.host",
		"redis.port",
		"redis.db",
		"redis.password",
		"redis.tls_enabled",
		"redis.session_prefix",
		"redis.attempt_prefix",
		"audit.enabled",
		"audit.postgres.host",
		"audit.postgres.port",
		"audit.postgres.user",
		"audit.postgres.password",
		"audit.postgres.database",
		"audit.postgres.ssl_mode",
		"audit.postgres.max_conns",
		"audit.postgres.min_conns",
		"audit.postgres.max_conn_lifetime",
		"kafka.brokers",
		"kafka.topic_prefix",
		"cors.allowed_origins",
		"telemetry.tracing_enabled",
		"telemetry.otlp_endpoint",
		"telemetry.service_name",
		"telemetry.sampling_rate",
	}); err != nil {
		return nil, err
	}

	v.AutomaticEnv()

	var cfg AppConfig
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := validate(&cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("app.name", "passgage-auth-gateway")
	v.SetDefault("app.env", "development")
	v.SetDefault("app.host", "0.0.0.0")
	v.SetDefault("app.port", 8080)

	v.SetDefault("storage.backend", BackendMemory)

	v.SetDefault("session.timeout", time.Hour)
	v.SetDefault("session.sweep_interval", 5*time.Minute)
	v.SetDefault("session.token_bytes", 32)

	v.SetDefault("security.rate_window", time.Minute)
	v.SetDefault("security.rate_cap", 100)
	v.SetDefault("security.free_retries", 5)
	v.SetDefault("security.min_wait", 10*time.Second)
	v.SetDefault("security.max_wait", 5*time.Minute)
	v.SetDefault("security.lookback", 15*time.Minute)
	v.SetDefault("security.cleanup_interval", 10*time.Minute)
	v.SetDefault("security.cleanup_age", time.Hour)
	v.SetDefault("security.event_retention", 24*time.Hour)
	v.SetDefault("security.max_events", 10000)
	v.SetDefault("security.volume_threshold", 50)
	v.SetDefault("security.failure_rate_percent", 30)
	v.SetDefault("security.session_fanout_cap", 5)

	v.SetDefault("redis.host", "localhost")
	v.SetDefault("redis.port", 6379)
	v.SetDefault("redis.session_prefix", "pgw:session")
	v.SetDefault("redis.attempt_prefix", "pgw:attempts")

	v.SetDefault("audit.enabled", false)
	v.SetDefault("audit.postgres.port", 5432)
	v.SetDefault("audit.postgres.ssl_mode", "disable")
	v.SetDefault("audit.postgres.max_conns", 4)
	v.SetDefault("audit.postgres.min_conns", 1)
	v.SetDefault("audit.postgres.max_conn_lifetime", time.Hour)

	v.SetDefault("kafka.topic_prefix", "passgage.gateway")

	v.SetDefault("cors.allowed_origins", []string{"*"})

	v.SetDefault("telemetry.tracing_enabled", false)
	v.SetDefault("telemetry.service_name", "passgage-auth-gateway")
	v.SetDefault("telemetry.sampling_rate", 0.1)
}

func bindEnvs(v *viper.Viper, keys []string) error {
	for _, key := range keys {
		if err := v.BindEnv(key); err != nil {
			return fmt.Errorf("bind env %s: %w", key, err)
		}
	}
	return nil
}

func validate(cfg *AppConfig) error {
	switch cfg.Storage.Backend {
	case BackendMemory, BackendRedis:
	default:
		return fmt.Errorf("storage.backend must be %q or %q, got %q", BackendMemory, BackendRedis, cfg.Storage.Backend)
	}

	if cfg.Storage.Backend == BackendRedis && cfg.Redis.Host == "" {
		return fmt.Errorf("redis.host is required for the redis backend")
	}

	if cfg.Session.Timeout <= 0 {
		return fmt.Errorf("session.timeout must be positive")
	}

	if cfg.Security.RateCap <= 0 || cfg.Security.RateWindow <= 0 {
		return fmt.Errorf("security.rate_cap and security.rate_window must be positive")
	}

	if cfg.Security.MinWait <= 0 || cfg.Security.MaxWait < cfg.Security.MinWait {
		return fmt.Errorf("security.min_wait must be positive and security.max_wait must not be below it")
	}

	if cfg.Crypto.Key == "" && cfg.Crypto.Passphrase == "" {
		return fmt.Errorf("crypto.key or crypto.passphrase is required")
	}

	return nil
}
