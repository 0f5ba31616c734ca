package config

import (
	"os"
	"strconv"
	"time"
)

// Config captures process-level configuration. Built from the environment so
// main stays lean; services receive only the fields they need.
type Config struct {
	Addr string

	// DatabaseURL selects the Postgres-backed stores. Empty means in-memory
	// stores, which are single-instance and non-durable. Development only.
	DatabaseURL string

	// ProcessSecret keys tenant-scoped IP pseudonymization. Rotating it
	// invalidates every stored hash.
	ProcessSecret string

	// GeoIPPath points at a MaxMind country database for annotating abuse
	// audit events. Empty disables annotation.
	GeoIPPath string

	RetentionInterval time.Duration
	StaleRunTimeout   time.Duration

	Abuse AbuseConfig
	Redis RedisConfig
	Kafka KafkaConfig
}

// AbuseConfig is the ban policy applied to failed attempts. The ban is a
// fixed term measured from the attempt that crossed the threshold.
type AbuseConfig struct {
	Threshold   int
	Window      time.Duration
	BanDuration time.Duration
}

// RedisConfig carries connection settings for the shared abuse subject store.
// An empty URL selects the in-process store, acceptable only for a
// single-instance deployment.
type RedisConfig struct {
	URL          string
	PoolSize     int
	MinIdleConns int
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// KafkaConfig carries settings for mirroring audit events onto the
// compliance topic. Empty brokers disable the mirror; events then live only
// in the audit store.
type KafkaConfig struct {
	// Brokers is a comma-separated list of seed broker addresses.
	Brokers    string
	AuditTopic string
}

// FromEnv builds a Config from environment variables.
func FromEnv() Config {
	return Config{
		Addr:              envString("CUSTODIAN_ADDR", ":8080"),
		DatabaseURL:       os.Getenv("CUSTODIAN_DATABASE_URL"),
		ProcessSecret:     envString("CUSTODIAN_PROCESS_SECRET", "dev-secret-change-in-production"),
		GeoIPPath:         os.Getenv("CUSTODIAN_GEOIP_DB"),
		RetentionInterval: envDuration("CUSTODIAN_RETENTION_INTERVAL", 24*time.Hour),
		StaleRunTimeout:   envDuration("CUSTODIAN_STALE_RUN_TIMEOUT", 6*time.Hour),
		Abuse: AbuseConfig{
			Threshold:   envInt("CUSTODIAN_ABUSE_THRESHOLD", 10),
			Window:      envDuration("CUSTODIAN_ABUSE_WINDOW", time.Minute),
			BanDuration: envDuration("CUSTODIAN_ABUSE_BAN_DURATION", 15*time.Minute),
		},
		Redis: RedisConfig{
			URL:          os.Getenv("CUSTODIAN_REDIS_URL"),
			PoolSize:     envInt("CUSTODIAN_REDIS_POOL_SIZE", 10),
			MinIdleConns: envInt("CUSTODIAN_REDIS_MIN_IDLE", 2),
			DialTimeout:  envDuration("CUSTODIAN_REDIS_DIAL_TIMEOUT", 5*time.Second),
			ReadTimeout:  envDuration("CUSTODIAN_REDIS_READ_TIMEOUT", 3*time.Second),
			WriteTimeout: envDuration("CUSTODIAN_REDIS_WRITE_TIMEOUT", 3*time.Second),
		},
		Kafka: KafkaConfig{
			Brokers:    os.Getenv("CUSTODIAN_KAFKA_BROKERS"),
			AuditTopic: envString("CUSTODIAN_KAFKA_AUDIT_TOPIC", "custodian.audit-events"),
		},
	}
}

func envString(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func envDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}
