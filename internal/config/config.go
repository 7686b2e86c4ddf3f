// Package config loads service configuration from the environment with
// sensible local-development defaults.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config is the complete service configuration.
type Config struct {
	Port string

	DB DBConfig

	// LockTTL is how long an unrefreshed seat lock lives.
	LockTTL time.Duration
	// CleanupInterval is how often expired locks are swept.
	CleanupInterval time.Duration
	// BookingTxTimeout bounds a booking transaction.
	BookingTxTimeout time.Duration
}

// DBConfig holds PostgreSQL connection settings.
type DBConfig struct {
	Host     string
	Port     string
	User     string
	Password string
	Name     string
	SSLMode  string
}

// DSN builds a libpq-compatible connection string.
func (c DBConfig) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Name, c.SSLMode,
	)
}

// Load reads configuration from the environment. Durations are
// configured in milliseconds (SOCKET_LOCK_TTL_MS etc.) to match the
// deployment convention this service inherited.
func Load() Config {
	v := viper.New()

	v.SetDefault("port", "8080")
	v.SetDefault("db.host", "localhost")
	v.SetDefault("db.port", "5432")
	v.SetDefault("db.user", "postgres")
	v.SetDefault("db.password", "postgres")
	v.SetDefault("db.name", "eventbooking")
	v.SetDefault("db.sslmode", "disable")
	v.SetDefault("socket.lock.ttl.ms", 60_000)
	v.SetDefault("socket.cleanup.interval.ms", 5_000)
	v.SetDefault("booking.tx.timeout.ms", 5_000)

	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	return Config{
		Port: v.GetString("port"),
		DB: DBConfig{
			Host:     v.GetString("db.host"),
			Port:     v.GetString("db.port"),
			User:     v.GetString("db.user"),
			Password: v.GetString("db.password"),
			Name:     v.GetString("db.name"),
			SSLMode:  v.GetString("db.sslmode"),
		},
		LockTTL:          time.Duration(v.GetInt("socket.lock.ttl.ms")) * time.Millisecond,
		CleanupInterval:  time.Duration(v.GetInt("socket.cleanup.interval.ms")) * time.Millisecond,
		BookingTxTimeout: time.Duration(v.GetInt("booking.tx.timeout.ms")) * time.Millisecond,
	}
}
