package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v10"
)

const (
	defaultJWTSecret = "change-this-to-a-secure-secret"

	minOTPWindow = 10 * time.Minute
	maxOTPWindow = 15 * time.Minute
)

// Config holds all runtime configuration loaded from environment variables.
type Config struct {
	AppPort  string `env:"APP_PORT" envDefault:"3000"`
	AppEnv   string `env:"APP_ENV" envDefault:"development"`
	LogLevel string `env:"LOG_LEVEL" envDefault:"info"`

	AWSRegion      string `env:"AWS_REGION" envDefault:"us-east-1"`
	AWSEndpointURL string `env:"AWS_ENDPOINT_URL"` // empty in prod, set to LocalStack URL in dev
	AWSAccessKeyID string `env:"AWS_ACCESS_KEY_ID"`
	AWSSecretKey   string `env:"AWS_SECRET_ACCESS_KEY"`

	DynamoTables DynamoTables
	S3BucketName string `env:"S3_BUCKET_NAME" envDefault:"rental-licenses"`

	// OTPStore selects the OTP backend: "dynamo" or "redis".
	OTPStore       string        `env:"OTP_STORE" envDefault:"dynamo"`
	RedisAddr      string        `env:"REDIS_ADDR" envDefault:"localhost:6379"`
	RedisPassword  string        `env:"REDIS_PASSWORD"`
	RedisDB        int           `env:"REDIS_DB" envDefault:"0"`
	OTPTTL         time.Duration `env:"OTP_TTL" envDefault:"10m"`
	OTPMaxAttempts int           `env:"OTP_MAX_ATTEMPTS" envDefault:"5"`

	JWTSecret  string `env:"JWT_SECRET" envDefault:"change-this-to-a-secure-secret"`
	BcryptCost int    `env:"BCRYPT_COST" envDefault:"10"`

	// Notifier selects the delivery transport: "smtp" or "sns".
	Notifier        string        `env:"NOTIFIER" envDefault:"smtp"`
	NotifierTimeout time.Duration `env:"NOTIFIER_TIMEOUT" envDefault:"10s"`
	StoreTimeout    time.Duration `env:"STORE_TIMEOUT" envDefault:"5s"`

	SMTPHost     string `env:"SMTP_HOST" envDefault:"localhost"`
	SMTPPort     string `env:"SMTP_PORT" envDefault:"1025"`
	SMTPFrom     string `env:"SMTP_FROM" envDefault:"noreply@example.com"`
	SMTPUsername string `env:"SMTP_USERNAME"`
	SMTPPassword string `env:"SMTP_PASSWORD"`
	SNSTopicARN  string `env:"SNS_TOPIC_ARN"`

	AllowedOrigins []string `env:"ALLOWED_ORIGINS" envDefault:"*" envSeparator:","` // CORS allowed origins
	// TrustProxyHeaders keys rate limiting on X-Forwarded-For/X-Real-IP. Leave off unless a proxy overwrites them.
	TrustProxyHeaders bool `env:"TRUST_PROXY_HEADERS" envDefault:"false"`
}

// DynamoTables holds the DynamoDB table name for each entity.
type DynamoTables struct {
	Users      string `env:"DYNAMO_TABLE_USERS" envDefault:"users"`
	UserEmails string `env:"DYNAMO_TABLE_USER_EMAILS" envDefault:"user_emails"`
	OTPs       string `env:"DYNAMO_TABLE_OTPS" envDefault:"otps"`
}

// Load reads all configuration from environment variables.
func Load() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	if c.OTPTTL < minOTPWindow || c.OTPTTL > maxOTPWindow {
		return fmt.Errorf("OTP_TTL must be between %s and %s, got %s", minOTPWindow, maxOTPWindow, c.OTPTTL)
	}
	if c.OTPMaxAttempts < 1 {
		return fmt.Errorf("OTP_MAX_ATTEMPTS must be positive, got %d", c.OTPMaxAttempts)
	}
	switch c.OTPStore {
	case "dynamo", "redis":
	default:
		return fmt.Errorf("OTP_STORE must be dynamo or redis, got %q", c.OTPStore)
	}
	switch c.Notifier {
	case "smtp", "sns":
	default:
		return fmt.Errorf("NOTIFIER must be smtp or sns, got %q", c.Notifier)
	}
	if c.Notifier == "sns" && c.SNSTopicARN == "" {
		return fmt.Errorf("SNS_TOPIC_ARN is required when NOTIFIER=sns")
	}
	if c.BcryptCost < 4 || c.BcryptCost > 31 {
		return fmt.Errorf("BCRYPT_COST out of range: %d", c.BcryptCost)
	}
	// Outside development the signing secret must be set explicitly.
	if c.AppEnv != "development" {
		if c.JWTSecret == defaultJWTSecret {
			return fmt.Errorf("JWT_SECRET must be explicitly set in %q mode", c.AppEnv)
		}
		if len(c.JWTSecret) < 32 {
			return fmt.Errorf("JWT_SECRET must be at least 32 characters long, got %d", len(c.JWTSecret))
		}
	}
	return nil
}
