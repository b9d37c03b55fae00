package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	App          AppConfig
	Server       ServerConfig
	Database     DatabaseConfig
	Redis        RedisConfig
	JWT          JWTConfig
	Cookie       CookieConfig
	Log          LogConfig
	Tracing      TracingConfig
	CORS         CORSConfig
	RateLimit    RateLimitConfig
	Delivery     DeliveryConfig
	Cron         CronConfig
	Notification NotificationConfig
}

type AppConfig struct {
	Name        string
	Environment string
	Version     string
	// PublicURL is used to build links inside emails.
	PublicURL string
}

func (a AppConfig) IsProduction() bool {
	return a.Environment == "production"
}

type ServerConfig struct {
	Host            string
	Port            int
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	IdleTimeout     time.Duration
	ShutdownTimeout time.Duration
}

func (s ServerConfig) Address() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

type DatabaseConfig struct {
	Host               string
	Port               int
	Name               string
	User               string
	Password           string
	SSLMode            string
	MaxOpenConns       int
	MaxIdleConns       int
	ConnMaxLifetime    time.Duration
	ConnMaxIdleTime    time.Duration
	SlowQueryThreshold time.Duration
}

func (d DatabaseConfig) DSN() string {
	return fmt.Sprintf("host=%s user=%s password=%s dbname=%s port=%d sslmode=%s TimeZone=UTC",
		d.Host, d.User, d.Password, d.Name, d.Port, d.SSLMode,
	)
}

type RedisConfig struct {
	Enabled  bool
	Addr     string
	Password string
	DB       int
}

type JWTConfig struct {
	Secret          string
	AccessTokenTTL  time.Duration
	RefreshTokenTTL time.Duration
	Issuer          string
}

// CookieConfig controls the refresh-token cookie.
type CookieConfig struct {
	Name   string
	Path   string
	Domain string
	Secure bool
}

type LogConfig struct {
	Level      string
	Format     string
	OutputPath string
}

type TracingConfig struct {
	Enabled     bool
	ServiceName string
	Endpoint    string
	SampleRate  float64
}

type CORSConfig struct {
	AllowedOrigins []string
	AllowedMethods []string
	AllowedHeaders []string
	MaxAge         time.Duration
}

type RateLimitConfig struct {
	// Global Rate limit per IP
	RequestsPerSecond float64
	BurstSize         int
	// Auth endpoints have stricter limits
	AuthRequestsPerMinute int
	// An IP that is throttled BanThreshold times within BanWindow is banned for BanDuration.
	BanThreshold int
	BanWindow    time.Duration
	BanDuration  time.Duration
	EntryTTL     time.Duration
}

type DeliveryConfig struct {
	EmailAPIURL        string
	EmailAPIKey        string
	EmailFrom          string
	EmailFromName      string
	SMSAPIURL          string
	SMSAPIKey          string
	SMSSender          string
	DefaultCountryCode string
	Timeout            time.Duration
}

type CronConfig struct {
	Enabled     bool
	Secret      string
	WeeklySpec  string
	MonthlySpec string
}

type NotificationConfig struct {
	Workers   int
	QueueSize int
}

func Load() (*Config, error) {
	// A missing .env is normal outside local development.
	_ = godotenv.Load()

	cfg := &Config{
		App: AppConfig{
			Name:        getEnv("APP_NAME", "carelink-api"),
			Environment: getEnv("APP_ENV", "development"),
			Version:     getEnv("APP_VERSION", "0.0.0"),
			PublicURL:   getEnv("APP_PUBLIC_URL", "https://app.carelink.be"),
		},
		Server: ServerConfig{
			Host:            getEnv("SERVER_HOST", "0.0.0.0"),
			Port:            getEnvInt("SERVER_PORT", 8080),
			ReadTimeout:     getEnvDuration("SERVER_READ_TIMEOUT", 15*time.Second),
			WriteTimeout:    getEnvDuration("SERVER_WRITE_TIMEOUT", 60*time.Second),
			IdleTimeout:     getEnvDuration("SERVER_IDLE_TIMEOUT", 60*time.Second),
			ShutdownTimeout: getEnvDuration("SERVER_SHUTDOWN_TIMEOUT", 30*time.Second),
		},
		Database: DatabaseConfig{
			Host:               getEnv("DB_HOST", "localhost"),
			Port:               getEnvInt("DB_PORT", 5432),
			Name:               getEnv("DB_NAME", "carelink"),
			User:               getEnv("DB_USER", "carelink"),
			Password:           getEnv("DB_PASSWORD", ""),
			SSLMode:            getEnv("DB_SSLMODE", "require"),
			MaxOpenConns:       getEnvInt("DB_MAX_OPEN_CONNS", 25),
			MaxIdleConns:       getEnvInt("DB_MAX_IDLE_CONNS", 10),
			ConnMaxLifetime:    getEnvDuration("DB_CONN_MAX_LIFETIME", 30*time.Minute),
			ConnMaxIdleTime:    getEnvDuration("DB_CONN_MAX_IDLE_TIME", 5*time.Minute),
			SlowQueryThreshold: getEnvDuration("DB_SLOW_QUERY_THRESHOLD", 200*time.Millisecond),
		},
		Redis: RedisConfig{
			Enabled:  getEnvBool("REDIS_ENABLED", true),
			Addr:     getEnv("REDIS_ADDR", "localhost:6379"),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getEnvInt("REDIS_DB", 0),
		},
		JWT: JWTConfig{
			Secret:          getEnv("JWT_SECRET", ""),
			AccessTokenTTL:  getEnvDuration("JWT_ACCESS_TTL", 15*time.Minute),
			RefreshTokenTTL: getEnvDuration("JWT_REFRESH_TTL", 12*time.Hour),
			Issuer:          getEnv("JWT_ISSUER", "carelink-api"),
		},
		Cookie: CookieConfig{
			Name:   getEnv("REFRESH_COOKIE_NAME", "carelink_refresh"),
			Path:   getEnv("REFRESH_COOKIE_PATH", "/account/"),
			Domain: getEnv("REFRESH_COOKIE_DOMAIN", ""),
			Secure: getEnvBool("REFRESH_COOKIE_SECURE", true),
		},
		Log: LogConfig{
			Level:      getEnv("LOG_LEVEL", "info"),
			Format:     getEnv("LOG_FORMAT", "json"),
			OutputPath: getEnv("LOG_OUTPUT", "stdout"),
		},
		Tracing: TracingConfig{
			Enabled:     getEnvBool("TRACING_ENABLED", false),
			ServiceName: getEnv("TRACING_SERVICE_NAME", "carelink-api"),
			Endpoint:    getEnv("OTLP_ENDPOINT", "otel-collector:4318"),
			SampleRate:  getEnvFloat("TRACING_SAMPLE_RATE", 0.1),
		},
		CORS: CORSConfig{
			AllowedOrigins: getEnvSlice("CORS_ALLOWED_ORIGINS", []string{"https://app.carelink.be"}),
			AllowedMethods: getEnvSlice("CORS_ALLOWED_METHODS", []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"}),
			AllowedHeaders: getEnvSlice("CORS_ALLOWED_HEADERS", []string{"Authorization", "Content-Type", "X-Request-ID", "X-Cron-Token"}),
			MaxAge:         getEnvDuration("CORS_MAX_AGE", 12*time.Hour),
		},
		RateLimit: RateLimitConfig{
			RequestsPerSecond:     getEnvFloat("RATE_LIMIT_RPS", 20),
			BurstSize:             getEnvInt("RATE_LIMIT_BURST", 40),
			AuthRequestsPerMinute: getEnvInt("RATE_LIMIT_AUTH_RPM", 10),
			BanThreshold:          getEnvInt("RATE_LIMIT_BAN_THRESHOLD", 50),
			BanWindow:             getEnvDuration("RATE_LIMIT_BAN_WINDOW", time.Minute),
			BanDuration:           getEnvDuration("RATE_LIMIT_BAN_DURATION", time.Hour),
			EntryTTL:              getEnvDuration("RATE_LIMIT_ENTRY_TTL", 10*time.Minute),
		},
		Delivery: DeliveryConfig{
			EmailAPIURL:        getEnv("EMAIL_API_URL", ""),
			EmailAPIKey:        getEnv("EMAIL_API_KEY", ""),
			EmailFrom:          getEnv("EMAIL_FROM", "no-reply@carelink.be"),
			EmailFromName:      getEnv("EMAIL_FROM_NAME", "CareLink"),
			SMSAPIURL:          getEnv("SMS_API_URL", ""),
			SMSAPIKey:          getEnv("SMS_API_KEY", ""),
			SMSSender:          getEnv("SMS_SENDER", "CareLink"),
			DefaultCountryCode: getEnv("SMS_DEFAULT_COUNTRY_CODE", "+32"),
			Timeout:            getEnvDuration("DELIVERY_TIMEOUT", 30*time.Second),
		},
		Cron: CronConfig{
			Enabled:     getEnvBool("CRON_ENABLED", false),
			Secret:      getEnv("CRON_SECRET", ""),
			WeeklySpec:  getEnv("CRON_WEEKLY_SPEC", "0 18 * * 0"),
			MonthlySpec: getEnv("CRON_MONTHLY_SPEC", "0 3 1 * *"),
		},
		Notification: NotificationConfig{
			Workers:   getEnvInt("NOTIFY_WORKERS", 4),
			QueueSize: getEnvInt("NOTIFY_QUEUE_SIZE", 1024),
		},
	}

	if err := validate(cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

// validate enforces production security requirements.
func validate(cfg *Config) error {
	var errs []string

	if cfg.JWT.Secret == "" {
		errs = append(errs, "JWT_SECRET is required")
	} else if len(cfg.JWT.Secret) < 32 && cfg.App.IsProduction() {
		errs = append(errs, "JWT_SECRET must be at least 32 characters in production")
	}

	if cfg.JWT.RefreshTokenTTL <= cfg.JWT.AccessTokenTTL {
		errs = append(errs, "JWT_REFRESH_TTL must be longer than JWT_ACCESS_TTL")
	}

	if cfg.Database.Password == "" && cfg.App.Environment != "development" {
		errs = append(errs, "DB_PASSWORD is required in non-development environments")
	}

	if cfg.Database.SSLMode == "disable" && cfg.App.IsProduction() {
		errs = append(errs, "DB_SSLMODE=disable is not allowed in production")
	}

	if cfg.App.IsProduction() && len(cfg.Cron.Secret) < 16 {
		errs = append(errs, "CRON_SECRET must be at least 16 characters in production")
	}

	if !strings.HasPrefix(cfg.Delivery.DefaultCountryCode, "+") {
		errs = append(errs, "SMS_DEFAULT_COUNTRY_CODE must start with '+'")
	}

	if cfg.Notification.Workers <= 0 {
		errs = append(errs, "NOTIFY_WORKERS must be positive")
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration errors:\n  - %s", strings.Join(errs, "\n  - "))
	}

	return nil
}

func getEnv(key, fallback string) string {
	if v, ok := os.LookupEnv(key); ok {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if v, ok := os.LookupEnv(key); ok {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return fallback
}

func getEnvFloat(key string, fallback float64) float64 {
	if v, ok := os.LookupEnv(key); ok {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	if v, ok := os.LookupEnv(key); ok {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return fallback
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	if v, ok := os.LookupEnv(key); ok {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}

func getEnvSlice(key string, fallback []string) []string {
	if v, ok := os.LookupEnv(key); ok {
		parts := strings.Split(v, ",")
		result := make([]string, 0, len(parts))
		for _, p := range parts {
			if t := strings.TrimSpace(p); t != "" {
				result = append(result, t)
			}
		}
		if len(result) > 0 {
			return result
		}
	}
	return fallback
}
