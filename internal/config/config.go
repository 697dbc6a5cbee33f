package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

const defaultSecretKey = "insecure-development-secret-change-me"

// Config holds all configuration values. It is loaded once at startup and
// passed down by value; nothing mutates it afterwards.
type Config struct {
	Server        ServerConfig
	Database      DatabaseConfig
	Redis         RedisConfig
	Broker        BrokerConfig
	JWT           JWTConfig
	Security      SecurityConfig
	Providers     ProvidersConfig
	Notifications NotificationConfig
	Jobs          JobsConfig
}

// ServerConfig holds server configuration
type ServerConfig struct {
	Port        string
	Env         string
	FrontendURL string
}

// DatabaseConfig holds database configuration
type DatabaseConfig struct {
	DSN          string
	Host         string
	Port         int
	User         string
	Password     string
	DBName       string
	SSLMode      string
	MaxOpenConns int
	MaxIdleConns int
}

// URL returns DATABASE_URL when set, otherwise a DSN built from the parts.
func (c DatabaseConfig) URL() string {
	if c.DSN != "" {
		return c.DSN
	}
	return "postgres://" + c.User + ":" + c.Password + "@" + c.Host + ":" + strconv.Itoa(c.Port) + "/" + c.DBName + "?sslmode=" + c.SSLMode
}

// RedisConfig holds the cache connection (OTP store, idempotency, rate limits).
type RedisConfig struct {
	URL      string
	Password string
}

// BrokerConfig holds the task queue connection. It defaults to the cache.
type BrokerConfig struct {
	URL         string
	Concurrency int
}

// JWTConfig holds JWT configuration
type JWTConfig struct {
	Secret        string
	Issuer        string
	AccessExpiry  time.Duration
	RefreshExpiry time.Duration
}

// SecurityConfig holds secrets and abuse limits.
type SecurityConfig struct {
	SecretKey         string
	GoogleClientID    string
	GoogleJWKSURL     string
	LoginMaxFailures  int64
	LoginWindow       time.Duration
	PINMaxFailures    int64
	PINWindow         time.Duration
	TrustTokenTTL     time.Duration
	AuthRateLimit     int64
	AuthRateLimitSpan time.Duration
}

// ProviderCredentials is the {PROVIDER}_* credential pair plus optional extras.
type ProviderCredentials struct {
	SecretKey     string
	WebhookSecret string
	BaseURL       string
	AccountID     string
	Sender        string
}

// ProvidersConfig drives provider selection.
type ProvidersConfig struct {
	UseInternal bool
	TestMode    bool
	Timeout     time.Duration
	Routing     RoutingTable
	Credentials map[string]ProviderCredentials
}

// Credential returns the credentials for provider, zero value when unset.
func (p ProvidersConfig) Credential(provider string) ProviderCredentials {
	return p.Credentials[strings.ToLower(provider)]
}

// NotificationConfig holds channel delivery settings.
type NotificationConfig struct {
	DefaultFromEmail string
	SMTPHost         string
	SMTPPort         int
	SMTPUsername     string
	SMTPPassword     string
	MaxAttempts      int
	BackoffBase      time.Duration
	RetentionDays    int
}

// JobsConfig holds scheduled processor intervals.
type JobsConfig struct {
	DailyInterval      time.Duration
	OTPCleanupInterval time.Duration
	HoldExpiryInterval time.Duration
	LinkExpiryInterval time.Duration
	BatchSize          int
}

// KnownProviders lists the adapters that read {PROVIDER}_* credentials.
var KnownProviders = []string{"internal", "paystack", "flutterwave", "sudo", "twilio", "fcm"}

// Load loads configuration from environment variables
func Load() *Config {
	cacheURL := getEnv("CACHE_URL", getEnv("REDIS_URL", "redis://localhost:6379/0"))

	cfg := &Config{
		Server: ServerConfig{
			Port:        getEnv("SERVER_PORT", "8080"),
			Env:         getEnv("SERVER_ENV", "development"),
			FrontendURL: getEnv("FRONTEND_URL", "http://localhost:3000"),
		},
		Database: DatabaseConfig{
			DSN:          getEnv("DATABASE_URL", ""),
			Host:         getEnv("DB_HOST", "localhost"),
			Port:         getEnvAsInt("DB_PORT", 5432),
			User:         getEnv("DB_USER", "postgres"),
			Password:     getEnv("DB_PASSWORD", "postgres"),
			DBName:       getEnv("DB_NAME", "walletcore"),
			SSLMode:      getEnv("DB_SSLMODE", "disable"),
			MaxOpenConns: getEnvAsInt("DB_MAX_OPEN_CONNS", 25),
			MaxIdleConns: getEnvAsInt("DB_MAX_IDLE_CONNS", 5),
		},
		Redis: RedisConfig{
			URL:      cacheURL,
			Password: getEnv("REDIS_PASSWORD", ""),
		},
		Broker: BrokerConfig{
			URL:         getEnv("BROKER_URL", cacheURL),
			Concurrency: getEnvAsInt("WORKER_CONCURRENCY", 4),
		},
		JWT: JWTConfig{
			Secret:        getEnv("JWT_SECRET", getEnv("SECRET_KEY", defaultSecretKey)),
			Issuer:        getEnv("JWT_ISSUER", "walletcore"),
			AccessExpiry:  getEnvAsDuration("JWT_ACCESS_EXPIRY", 15*time.Minute),
			RefreshExpiry: getEnvAsDuration("JWT_REFRESH_EXPIRY", 7*24*time.Hour),
		},
		Security: SecurityConfig{
			SecretKey:         getEnv("SECRET_KEY", defaultSecretKey),
			GoogleClientID:    getEnv("GOOGLE_CLIENT_ID", ""),
			GoogleJWKSURL:     getEnv("GOOGLE_JWKS_URL", "https://www.googleapis.com/oauth2/v3/certs"),
			LoginMaxFailures:  int64(getEnvAsInt("LOGIN_MAX_FAILURES", 5)),
			LoginWindow:       getEnvAsDuration("LOGIN_FAILURE_WINDOW", 900*time.Second),
			PINMaxFailures:    int64(getEnvAsInt("PIN_MAX_FAILURES", 5)),
			PINWindow:         getEnvAsDuration("PIN_FAILURE_WINDOW", 900*time.Second),
			TrustTokenTTL:     getEnvAsDuration("TRUST_TOKEN_TTL", 90*24*time.Hour),
			AuthRateLimit:     int64(getEnvAsInt("AUTH_RATE_LIMIT", 30)),
			AuthRateLimitSpan: getEnvAsDuration("AUTH_RATE_LIMIT_PERIOD", time.Minute),
		},
		Providers: ProvidersConfig{
			UseInternal: getEnvAsBool("USE_INTERNAL_PROVIDER", false),
			TestMode:    getEnvAsBool("PAYMENT_TEST_MODE", true),
			Timeout:     getEnvAsDuration("PROVIDER_TIMEOUT", 30*time.Second),
			Credentials: loadCredentials(),
		},
		Notifications: NotificationConfig{
			DefaultFromEmail: getEnv("DEFAULT_FROM_EMAIL", "no-reply@walletcore.local"),
			SMTPHost:         getEnv("SMTP_HOST", "localhost"),
			SMTPPort:         getEnvAsInt("SMTP_PORT", 1025),
			SMTPUsername:     getEnv("SMTP_USERNAME", ""),
			SMTPPassword:     getEnv("SMTP_PASSWORD", ""),
			MaxAttempts:      getEnvAsInt("NOTIFICATION_MAX_ATTEMPTS", 3),
			BackoffBase:      getEnvAsDuration("NOTIFICATION_BACKOFF_BASE", 2*time.Second),
			RetentionDays:    getEnvAsInt("NOTIFICATION_RETENTION_DAYS", 90),
		},
		Jobs: JobsConfig{
			DailyInterval:      getEnvAsDuration("JOB_DAILY_INTERVAL", 24*time.Hour),
			OTPCleanupInterval: getEnvAsDuration("JOB_OTP_CLEANUP_INTERVAL", time.Hour),
			HoldExpiryInterval: getEnvAsDuration("JOB_HOLD_EXPIRY_INTERVAL", 5*time.Minute),
			LinkExpiryInterval: getEnvAsDuration("JOB_LINK_EXPIRY_INTERVAL", time.Minute),
			BatchSize:          getEnvAsInt("JOB_BATCH_SIZE", 100),
		},
	}

	routing := DefaultRouting()
	if path := getEnv("PROVIDER_ROUTING_FILE", ""); path != "" {
		if fromFile, err := LoadRoutingFile(path); err == nil {
			routing = routing.Merge(fromFile)
		}
	}
	if raw := getEnv("PROVIDER_ROUTING", ""); raw != "" {
		if fromEnv, err := ParseRouting(raw); err == nil {
			routing = routing.Merge(fromEnv)
		}
	}
	cfg.Providers.Routing = routing

	return cfg
}

// Validate rejects configurations that are unsafe outside development.
func (c *Config) Validate() error {
	var errs []error
	if c.Server.Env == "production" {
		if c.Security.SecretKey == defaultSecretKey {
			errs = append(errs, errors.New("SECRET_KEY must be set in production"))
		}
		if c.JWT.Secret == defaultSecretKey {
			errs = append(errs, errors.New("JWT_SECRET or SECRET_KEY must be set in production"))
		}
		if c.Providers.UseInternal {
			errs = append(errs, errors.New("USE_INTERNAL_PROVIDER cannot be enabled in production"))
		}
	}
	if c.Notifications.MaxAttempts < 1 {
		errs = append(errs, fmt.Errorf("NOTIFICATION_MAX_ATTEMPTS must be >= 1, got %d", c.Notifications.MaxAttempts))
	}
	return errors.Join(errs...)
}

func loadCredentials() map[string]ProviderCredentials {
	creds := make(map[string]ProviderCredentials, len(KnownProviders))
	for _, name := range KnownProviders {
		prefix := strings.ToUpper(name)
		creds[name] = ProviderCredentials{
			SecretKey:     getEnv(prefix+"_SECRET_KEY", ""),
			WebhookSecret: getEnv(prefix+"_WEBHOOK_SECRET", ""),
			BaseURL:       getEnv(prefix+"_BASE_URL", ""),
			AccountID:     getEnv(prefix+"_ACCOUNT_ID", ""),
			Sender:        getEnv(prefix+"_SENDER", ""),
		}
	}
	return creds
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}
