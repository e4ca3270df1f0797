package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds application configuration loaded from environment.
type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	Redis    RedisConfig
	JWT      JWTConfig
	Doku     DokuConfig
	App      AppConfig
	Kafka    KafkaConfig
	Email    EmailConfig
	AWS      AWSConfig
}

// DokuConfig holds payment gateway credentials and request behaviour.
type DokuConfig struct {
	ClientID            string
	SecretKey           string
	BaseURL             string // https://api-sandbox.doku.com or https://api.doku.com
	PaymentDueMinutes   int    // checkout lifetime, also the enrollment draft TTL
	RequestTimeoutSec   int
	NotificationPath    string // Request-Target used when verifying inbound notifications
	VerifyNotifications bool
}

// RequestTimeout returns the bound applied to every gateway call.
func (c DokuConfig) RequestTimeout() time.Duration {
	if c.RequestTimeoutSec <= 0 {
		return 15 * time.Second
	}
	return time.Duration(c.RequestTimeoutSec) * time.Second
}

// AppConfig holds front-end facing settings.
type AppConfig struct {
	BaseURL string // used to build checkout callback URLs
}

// KafkaConfig for payment domain events. Empty Brokers disables publishing.
type KafkaConfig struct {
	Brokers []string
	Topic   string
}

// EmailConfig for SMTP delivery of payment emails.
type EmailConfig struct {
	FromAddress string
	FromName    string
	SMTPHost    string
	SMTPPort    int
	SMTPUser    string
	SMTPPass    string
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Port               string
	ReadTimeout        int
	WriteTimeout       int
	CORSAllowedOrigins string // comma-separated, or "*" for all
}

// DatabaseConfig holds PostgreSQL connection settings.
type DatabaseConfig struct {
	URL      string // if set, used as-is
	Host     string
	Port     string
	User     string
	Password string
	DBName   string
	SSLMode  string
}

// RedisConfig holds Redis connection settings.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// JWTConfig holds JWT validation settings.
type JWTConfig struct {
	Secret      string
	ExpireHours int
}

// AWSConfig holds AWS credentials and the bucket for gateway callback archives.
type AWSConfig struct {
	Region          string
	AccessKeyID     string
	SecretAccessKey string
	PaymentsBucket  string // empty disables archiving
}

// DSN returns the PostgreSQL connection string.
// If DatabaseConfig.URL is set (e.g. DATABASE_URL env), it is used as-is; otherwise built from components.
func (c DatabaseConfig) DSN() string {
	if c.URL != "" {
		return c.URL
	}
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%s/%s?sslmode=%s",
		c.User, c.Password, c.Host, c.Port, c.DBName, c.SSLMode,
	)
}

// Load reads configuration from environment, with optional .env file.
func Load() (*Config, error) {
	_ = godotenv.Load()      // .env
	_ = godotenv.Load("env") // env (no leading dot)

	cfg := &Config{
		Server: ServerConfig{
			Port:               getEnv("PORT", "8080"),
			ReadTimeout:        getEnvInt("READ_TIMEOUT_SEC", 30),
			WriteTimeout:       getEnvInt("WRITE_TIMEOUT_SEC", 30),
			CORSAllowedOrigins: getEnv("CORS_ALLOWED_ORIGINS", "http://localhost:3000"),
		},
		Database: DatabaseConfig{
			URL:      getEnv("DATABASE_URL", ""),
			Host:     getEnv("DB_HOST", "localhost"),
			Port:     getEnv("DB_PORT", "5432"),
			User:     getEnv("DB_USER", "postgres"),
			Password: getEnv("DB_PASSWORD", "postgres"),
			DBName:   getEnv("DB_NAME", "kelasvisa"),
			SSLMode:  getEnv("DB_SSLMODE", "disable"),
		},
		Redis: RedisConfig{
			Addr:     getEnv("REDIS_ADDR", "localhost:6379"),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getEnvInt("REDIS_DB", 0),
		},
		JWT: JWTConfig{
			Secret:      getEnv("JWT_SECRET", ""),
			ExpireHours: getEnvInt("JWT_EXPIRE_HOURS", 24),
		},
		Doku: DokuConfig{
			ClientID:            getEnv("DOKU_CLIENT_ID", ""),
			SecretKey:           getEnv("DOKU_SECRET_KEY", ""),
			BaseURL:             strings.TrimRight(getEnv("DOKU_BASE_URL", "https://api-sandbox.doku.com"), "/"),
			PaymentDueMinutes:   getEnvInt("DOKU_PAYMENT_DUE_MINUTES", 60),
			RequestTimeoutSec:   getEnvInt("DOKU_REQUEST_TIMEOUT_SEC", 15),
			NotificationPath:    getEnv("DOKU_NOTIFICATION_PATH", "/payments/notification"),
			VerifyNotifications: getEnvBool("DOKU_VERIFY_NOTIFICATIONS", true),
		},
		App: AppConfig{
			BaseURL: strings.TrimRight(getEnv("APP_BASE_URL", "http://localhost:3000"), "/"),
		},
		Kafka: KafkaConfig{
			Brokers: splitTrim(getEnv("KAFKA_BROKERS", ""), ","),
			Topic:   getEnv("KAFKA_PAYMENTS_TOPIC", "payments"),
		},
		Email: EmailConfig{
			FromAddress: getEnv("EMAIL_FROM_ADDRESS", "noreply@example.com"),
			FromName:    getEnv("EMAIL_FROM_NAME", "Kelas Visa"),
			SMTPHost:    getEnv("SMTP_HOST", ""),
			SMTPPort:    getEnvInt("SMTP_PORT", 587),
			SMTPUser:    getEnv("SMTP_USER", ""),
			SMTPPass:    getEnv("SMTP_PASS", ""),
		},
		AWS: AWSConfig{
			Region:          getEnv("AWS_REGION", "ap-southeast-1"),
			AccessKeyID:     getEnv("AWS_ACCESS_KEY_ID", ""),
			SecretAccessKey: getEnv("AWS_SECRET_ACCESS_KEY", ""),
			PaymentsBucket:  getEnv("AWS_S3_PAYMENTS_BUCKET", ""),
		},
	}
	return cfg, nil
}

// Validate reports settings the server cannot run without. A missing signing
// secret must stop the process rather than send unsigned gateway requests.
func (c *Config) Validate() error {
	var errs []error
	if c.Doku.ClientID == "" {
		errs = append(errs, errors.New("DOKU_CLIENT_ID is required"))
	}
	if c.Doku.SecretKey == "" {
		errs = append(errs, errors.New("DOKU_SECRET_KEY is required"))
	}
	if c.JWT.Secret == "" {
		errs = append(errs, errors.New("JWT_SECRET is required"))
	}
	if c.Doku.PaymentDueMinutes <= 0 {
		errs = append(errs, errors.New("DOKU_PAYMENT_DUE_MINUTES must be positive"))
	}
	return errors.Join(errs...)
}

func getEnvInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return fallback
}

func splitTrim(s, sep string) []string {
	if s == "" {
		return nil
	}
	var out []string
	for _, v := range strings.Split(s, sep) {
		if t := strings.TrimSpace(v); t != "" {
			out = append(out, t)
		}
	}
	return out
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
