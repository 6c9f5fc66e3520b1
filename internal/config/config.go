// Package config loads service settings from the environment.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
)

type Database struct {
	Host         string
	Port         string
	User         string
	Password     string
	Name         string
	SSLMode      string
	MaxOpenConns int
	MaxIdleConns int
}

// DSN builds the lib/pq connection string, quoting values where needed.
func (d Database) DSN() string {
	return fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		dsnValue(d.Host), dsnValue(d.Port), dsnValue(d.User),
		dsnValue(d.Password), dsnValue(d.Name), dsnValue(d.SSLMode))
}

func dsnValue(v string) string {
	if v != "" && !strings.ContainsAny(v, " \t\n'\\") {
		return v
	}
	r := strings.NewReplacer(`\`, `\\`, `'`, `\'`)
	return "'" + r.Replace(v) + "'"
}

type Config struct {
	Database Database

	Port         string
	NotifierPort string

	// KafkaBrokers is empty when event publishing is disabled.
	KafkaBrokers    []string
	NotifierGroupID string

	JWTSecret string
	JWTTTL    time.Duration

	// AtomicOrderCreate wraps order creation with products in one transaction.
	AtomicOrderCreate bool

	LogLevel logrus.Level
}

func Load() (*Config, error) {
	cfg := &Config{
		Database: Database{
			Host:     getEnv("DB_HOST", "localhost"),
			Port:     getEnv("DB_PORT", "5432"),
			User:     getEnv("DB_USER", "storefront"),
			Password: getEnv("DB_PASSWORD", "storefront"),
			Name:     getEnv("DB_NAME", "storefront"),
			SSLMode:  getEnv("DB_SSLMODE", "disable"),
		},
		Port:            getEnv("ORDER_SERVICE_PORT", "3000"),
		NotifierPort:    getEnv("NOTIFIER_PORT", "8090"),
		KafkaBrokers:    splitList(getEnv("KAFKA_BROKERS", "")),
		NotifierGroupID: getEnv("NOTIFIER_GROUP_ID", "order-notifier"),
		JWTSecret:       getEnv("JWT_SECRET", ""),
	}

	var err error
	if cfg.Database.MaxOpenConns, err = getEnvInt("DB_MAX_OPEN_CONNS", 25); err != nil {
		return nil, err
	}
	if cfg.Database.MaxIdleConns, err = getEnvInt("DB_MAX_IDLE_CONNS", 5); err != nil {
		return nil, err
	}
	if cfg.JWTTTL, err = getEnvDuration("JWT_TTL", 24*time.Hour); err != nil {
		return nil, err
	}
	if cfg.AtomicOrderCreate, err = getEnvBool("ATOMIC_ORDER_CREATE", false); err != nil {
		return nil, err
	}
	if cfg.LogLevel, err = logrus.ParseLevel(getEnv("LOG_LEVEL", "info")); err != nil {
		return nil, fmt.Errorf("LOG_LEVEL: %w", err)
	}

	return cfg, nil
}

// RequireAuth fails when token signing is not configured.
func (c *Config) RequireAuth() error {
	if c.JWTSecret == "" {
		return fmt.Errorf("JWT_SECRET must be set")
	}
	return nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) (int, error) {
	raw := os.Getenv(key)
	if raw == "" {
		return defaultValue, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	return v, nil
}

func getEnvBool(key string, defaultValue bool) (bool, error) {
	raw := os.Getenv(key)
	if raw == "" {
		return defaultValue, nil
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		return false, fmt.Errorf("%s: %w", key, err)
	}
	return v, nil
}

func getEnvDuration(key string, defaultValue time.Duration) (time.Duration, error) {
	raw := os.Getenv(key)
	if raw == "" {
		return defaultValue, nil
	}
	v, err := time.ParseDuration(raw)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	return v, nil
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
