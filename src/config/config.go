package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// const dsn = "host=localhost user=postgres password=password dbname=bookpay port=5432 sslmode=disable TimeZone=UTC"

func GetDSN() string {
	DATABASE_HOST := os.Getenv("DATABASE_HOST")
	DATABASE_PORT := os.Getenv("DATABASE_PORT")
	DATABASE_SSLMODE := os.Getenv("DATABASE_SSLMODE")
	DATABASE_TIMEZONE := os.Getenv("DATABASE_TIMEZONE")
	DATABASE_USER := os.Getenv("DATABASE_USER")
	DATABASE_PASSWORD := os.Getenv("DATABASE_PASSWORD")
	DATABASE_NAME := os.Getenv("DATABASE_NAME")
	dsn := fmt.Sprintf("host=%s user=%s password=%s dbname=%s port=%s sslmode=%s TimeZone=%s", DATABASE_HOST, DATABASE_USER, DATABASE_PASSWORD, DATABASE_NAME, DATABASE_PORT, DATABASE_SSLMODE, DATABASE_TIMEZONE)
	return dsn
}

const (
	DEFAULT_CURRENCY    = "usd"
	DEFAULT_SERVICE_FEE = "1.00"
	SERVICE_FEE_KEY     = "service_fee"
	SERVICE_FEE_GROUP   = "payments"
)

type Config struct {
	APIEnv  string
	Port    string
	AppHost string

	StripeSecretKey     string
	StripeWebhookSecret string
	StripeSecretsARN    string
	Currency            string
	ServiceFee          string

	RedisHost         string
	RevalidateChannel string

	SMTPHost     string
	SMTPPort     int
	SMTPUsername string
	SMTPPassword string
	SMTPFrom     string
	EmailQueue   string

	ActivityTopicARN string
	JWTSecret        string

	WorkerInterval   time.Duration
	WorkerBatchSize  int
	WebhookTimeout   time.Duration
	ProcessorTimeout time.Duration
}

// Load reads the process configuration from the environment.
func Load() *Config {
	return &Config{
		APIEnv:  getenv("API_ENV", "local"),
		Port:    getenv("PORT", "9090"),
		AppHost: getenv("APP_HOST", "http://localhost:3000"),

		StripeSecretKey:     os.Getenv("STRIPE_SECRET_KEY"),
		StripeWebhookSecret: os.Getenv("STRIPE_WEBHOOK_SECRET"),
		StripeSecretsARN:    os.Getenv("STRIPE_SECRETS_ARN"),
		Currency:            getenv("CURRENCY", DEFAULT_CURRENCY),
		ServiceFee:          getenv("SERVICE_FEE", DEFAULT_SERVICE_FEE),

		RedisHost:         os.Getenv("REDIS_HOST"),
		RevalidateChannel: getenv("REVALIDATE_CHANNEL", "revalidate"),

		SMTPHost:     os.Getenv("SMTP_HOST"),
		SMTPPort:     getint("SMTP_PORT", 587),
		SMTPUsername: os.Getenv("SMTP_USERNAME"),
		SMTPPassword: os.Getenv("SMTP_PASSWORD"),
		SMTPFrom:     getenv("SMTP_FROM", "no-reply@localhost"),
		EmailQueue:   os.Getenv("EMAIL_QUEUE"),

		ActivityTopicARN: os.Getenv("ACTIVITY_TOPIC_ARN"),
		JWTSecret:        os.Getenv("JWT_SECRET"),

		WorkerInterval:   getduration("WORKER_INTERVAL", 5*time.Minute),
		WorkerBatchSize:  getint("WORKER_BATCH_SIZE", 100),
		WebhookTimeout:   getduration("WEBHOOK_TIMEOUT", 20*time.Second),
		ProcessorTimeout: getduration("PROCESSOR_TIMEOUT", 10*time.Second),
	}
}

func (c *Config) IsProd() bool {
	return c.APIEnv == "production"
}

func (c *Config) IsLocal() bool {
	return c.APIEnv == "local"
}

func getenv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getint(key string, fallback int) int {
	v, err := strconv.Atoi(os.Getenv(key))
	if err != nil {
		return fallback
	}
	return v
}

func getduration(key string, fallback time.Duration) time.Duration {
	v, err := time.ParseDuration(os.Getenv(key))
	if err != nil || v <= 0 {
		return fallback
	}
	return v
}
