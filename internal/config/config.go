package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"
)

// Config holds the complete configuration for the trust pipeline service.
type Config struct {
	Environment string         `mapstructure:"environment"`
	Debug       bool           `mapstructure:"debug"`
	Server      ServerConfig   `mapstructure:"server"`
	Database    DatabaseConfig `mapstructure:"database"`
	Redis       RedisConfig    `mapstructure:"redis"`
	Kafka       KafkaConfig    `mapstructure:"kafka"`
	External    ExternalConfig `mapstructure:"external"`
	Scoring     ScoringConfig  `mapstructure:"scoring"`
	Alerting    AlertingConfig `mapstructure:"alerting"`
	Logging     LoggingConfig  `mapstructure:"logging"`
}

// ServerConfig contains HTTP server configuration.
type ServerConfig struct {
	HTTPPort        int           `mapstructure:"http_port"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

// DatabaseConfig contains document store configuration.
type DatabaseConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	Name            string        `mapstructure:"name"`
	Username        string        `mapstructure:"username"`
	Password        string        `mapstructure:"password"`
	SSLMode         string        `mapstructure:"ssl_mode"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
	MigrationsPath  string        `mapstructure:"migrations_path"`
}

// RedisConfig contains trust-score cache configuration.
type RedisConfig struct {
	Host     string        `mapstructure:"host"`
	Port     int           `mapstructure:"port"`
	Password string        `mapstructure:"password"`
	DB       int           `mapstructure:"db"`
	PoolSize int           `mapstructure:"pool_size"`
	TTL      time.Duration `mapstructure:"ttl"`
}

// KafkaConfig contains broadcast sink configuration.
type KafkaConfig struct {
	Brokers []string     `mapstructure:"brokers"`
	Topics  TopicsConfig `mapstructure:"topics"`
}

// TopicsConfig contains the emitted event topics.
type TopicsConfig struct {
	ReviewStatusUpdated    string `mapstructure:"review_status_updated"`
	BulkOperationCompleted string `mapstructure:"bulk_operation_completed"`
	AlertRaised            string `mapstructure:"alert_raised"`
}

// ExternalConfig contains the best-effort text-classification service
// configuration. The pipeline works fully without it.
type ExternalConfig struct {
	Enabled bool          `mapstructure:"enabled"`
	BaseURL string        `mapstructure:"base_url"`
	Timeout time.Duration `mapstructure:"timeout"`
}

// ScoringConfig contains pipeline thresholds. Defaults reproduce the
// documented scoring policy; overriding them shifts bands, not formulas.
type ScoringConfig struct {
	AmbiguousBandLow     float64 `mapstructure:"ambiguous_band_low"`
	AmbiguousBandHigh    float64 `mapstructure:"ambiguous_band_high"`
	VoteQuorum           int     `mapstructure:"vote_quorum"`
	ConsensusConfidence  float64 `mapstructure:"consensus_confidence"`
	LinguisticWeight     float64 `mapstructure:"linguistic_weight"`
	BehavioralWeight     float64 `mapstructure:"behavioral_weight"`
	NaturalVarianceLow   float64 `mapstructure:"natural_variance_low"`
	NaturalVarianceHigh  float64 `mapstructure:"natural_variance_high"`
	RegistrationBurstMin int     `mapstructure:"registration_burst_min"`
}

// AlertingConfig contains the AlertEmitter thresholds.
type AlertingConfig struct {
	LowTrustThreshold        int     `mapstructure:"low_trust_threshold"`
	LowAuthenticityThreshold float64 `mapstructure:"low_authenticity_threshold"`
	BotConfidenceThreshold   float64 `mapstructure:"bot_confidence_threshold"`
}

// LoggingConfig contains logging configuration.
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"` // json, console
}

// Load loads configuration from environment variables and config files.
func Load() (*Config, error) {
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(".")
	viper.AddConfigPath("./config")
	viper.AddConfigPath("/etc/trustlens")

	setDefaults()

	viper.AutomaticEnv()
	viper.SetEnvPrefix("TRUSTLENS")

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}

	return &config, nil
}

// setDefaults sets default configuration values.
func setDefaults() {
	viper.SetDefault("environment", "development")
	viper.SetDefault("debug", false)

	// Server
	viper.SetDefault("server.http_port", 8086)
	viper.SetDefault("server.read_timeout", "15s")
	viper.SetDefault("server.write_timeout", "15s")
	viper.SetDefault("server.shutdown_timeout", "30s")

	// Database
	viper.SetDefault("database.host", "localhost")
	viper.SetDefault("database.port", 5432)
	viper.SetDefault("database.name", "trustlens")
	viper.SetDefault("database.username", "postgres")
	viper.SetDefault("database.password", "postgres")
	viper.SetDefault("database.ssl_mode", "disable")
	viper.SetDefault("database.max_open_conns", 25)
	viper.SetDefault("database.max_idle_conns", 5)
	viper.SetDefault("database.conn_max_lifetime", "5m")
	viper.SetDefault("database.migrations_path", "file://migrations")

	// Redis
	viper.SetDefault("redis.host", "localhost")
	viper.SetDefault("redis.port", 6379)
	viper.SetDefault("redis.password", "")
	viper.SetDefault("redis.db", 0)
	viper.SetDefault("redis.pool_size", 10)
	viper.SetDefault("redis.ttl", "1h")

	// Kafka
	viper.SetDefault("kafka.brokers", []string{"localhost:9092"})
	viper.SetDefault("kafka.topics.review_status_updated", "review-status-updated")
	viper.SetDefault("kafka.topics.bulk_operation_completed", "bulk-operation-completed")
	viper.SetDefault("kafka.topics.alert_raised", "alert-raised")

	// External text classification
	viper.SetDefault("external.enabled", false)
	viper.SetDefault("external.base_url", "http://localhost:9200")
	viper.SetDefault("external.timeout", "3s")

	// Scoring
	viper.SetDefault("scoring.ambiguous_band_low", 30.0)
	viper.SetDefault("scoring.ambiguous_band_high", 75.0)
	viper.SetDefault("scoring.vote_quorum", 3)
	viper.SetDefault("scoring.consensus_confidence", 70.0)
	viper.SetDefault("scoring.linguistic_weight", 0.6)
	viper.SetDefault("scoring.behavioral_weight", 0.4)
	viper.SetDefault("scoring.natural_variance_low", 200.0)
	viper.SetDefault("scoring.natural_variance_high", 50000.0)
	viper.SetDefault("scoring.registration_burst_min", 3)

	// Alerting
	viper.SetDefault("alerting.low_trust_threshold", 30)
	viper.SetDefault("alerting.low_authenticity_threshold", 35.0)
	viper.SetDefault("alerting.bot_confidence_threshold", 70.0)

	// Logging
	viper.SetDefault("logging.level", "info")
	viper.SetDefault("logging.format", "json")
}
