package config

import (
	"errors"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	App      AppConfig
	HTTP     ServerConfig
	MySQL    MySQLConfig
	Redis    RedisConfig
	Log      LogConfig
	Session  SessionConfig
	Stripe   StripeConfig
	OpenAI   OpenAIConfig
	Resend   ResendConfig
	Clerk    ClerkConfig
	GCS      GCSConfig
	Fortunes FortunesConfig
	Jobs     JobsConfig
}

type AppConfig struct {
	ServiceName string
}

type ServerConfig struct {
	Host string
	Port string
}

type MySQLConfig struct {
	DSN             string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

type LogConfig struct {
	Level string
}

type SessionConfig struct {
	Secret string
}

type StripeConfig struct {
	SecretKey         string
	PriceID           string
	DefaultPriceCents int64
	Currency          string
	HTTPTimeout       time.Duration
}

type OpenAIConfig struct {
	APIKey      string
	Model       string
	HTTPTimeout time.Duration
}

type ResendConfig struct {
	APIKey      string
	FromAddress string
	HTTPTimeout time.Duration
}

type ClerkConfig struct {
	SecretKey   string
	HTTPTimeout time.Duration
}

type GCSConfig struct {
	Bucket        string
	PublicBaseURL string
}

type FortunesConfig struct {
	RequirePaidProcessing bool
	ProcessingTimeout     time.Duration
	StagedUploadTTL       time.Duration
	ProcessingStaleAfter  time.Duration
	ReconcileStaleAfter   time.Duration
	JobBatchSize          int32
	ListLimit             int32
}

type JobsConfig struct {
	ExpireStalledInterval     time.Duration
	ReconcilePaymentsInterval time.Duration
}

func Load() (*Config, error) {
	_ = godotenv.Load()

	mysqlDSN := os.Getenv("MYSQL_DSN")
	if mysqlDSN == "" {
		return nil, errors.New("MYSQL_DSN environment variable is required")
	}

	return &Config{
		App: AppConfig{
			ServiceName: getEnv("APP_SERVICE_NAME", "fortunes-service"),
		},
		HTTP: ServerConfig{
			Host: getEnv("HTTP_HOST", "0.0.0.0"),
			Port: getEnv("HTTP_PORT", "8080"),
		},
		MySQL: MySQLConfig{
			DSN:             mysqlDSN,
			MaxOpenConns:    getIntEnv("MYSQL_MAX_OPEN_CONNS", 10),
			MaxIdleConns:    getIntEnv("MYSQL_MAX_IDLE_CONNS", 5),
			ConnMaxLifetime: getMinutesEnv("MYSQL_CONN_MAX_LIFETIME_MINUTES", 30*time.Minute),
		},
		Redis: RedisConfig{
			Addr:     getEnv("REDIS_ADDR", "localhost:6379"),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getIntEnv("REDIS_DB", 0),
		},
		Log: LogConfig{
			Level: getEnv("LOG_LEVEL", "info"),
		},
		Session: SessionConfig{
			Secret: getEnv("SESSION_SECRET", ""),
		},
		Stripe: StripeConfig{
			SecretKey:         getEnv("STRIPE_SECRET_KEY", ""),
			PriceID:           getEnv("STRIPE_PRICE_ID", ""),
			DefaultPriceCents: int64(getIntEnv("STRIPE_DEFAULT_PRICE_CENTS", 500)),
			Currency:          getEnv("STRIPE_CURRENCY", "usd"),
			HTTPTimeout:       getSecondsEnv("STRIPE_HTTP_TIMEOUT_SECONDS", 10*time.Second),
		},
		OpenAI: OpenAIConfig{
			APIKey:      getEnv("OPENAI_API_KEY", ""),
			Model:       getEnv("OPENAI_MODEL", "gpt-4.1"),
			HTTPTimeout: getSecondsEnv("OPENAI_HTTP_TIMEOUT_SECONDS", 60*time.Second),
		},
		Resend: ResendConfig{
			APIKey:      getEnv("RESEND_API_KEY", ""),
			FromAddress: getEnv("RESEND_FROM_ADDRESS", "Fortunes <readings@fortunes.app>"),
			HTTPTimeout: getSecondsEnv("RESEND_HTTP_TIMEOUT_SECONDS", 10*time.Second),
		},
		Clerk: ClerkConfig{
			SecretKey:   getEnv("CLERK_SECRET_KEY", ""),
			HTTPTimeout: getSecondsEnv("CLERK_HTTP_TIMEOUT_SECONDS", 10*time.Second),
		},
		GCS: GCSConfig{
			Bucket:        getEnv("GCS_BUCKET", ""),
			PublicBaseURL: getEnv("GCS_PUBLIC_BASE_URL", ""),
		},
		Fortunes: FortunesConfig{
			RequirePaidProcessing: getBoolEnv("FORTUNES_REQUIRE_PAID_PROCESSING", false),
			ProcessingTimeout:     getSecondsEnv("FORTUNES_PROCESSING_TIMEOUT_SECONDS", 90*time.Second),
			StagedUploadTTL:       getMinutesEnv("FORTUNES_STAGED_UPLOAD_TTL_MINUTES", 30*time.Minute),
			ProcessingStaleAfter:  getMinutesEnv("FORTUNES_PROCESSING_STALE_AFTER_MINUTES", 10*time.Minute),
			ReconcileStaleAfter:   getMinutesEnv("FORTUNES_RECONCILE_STALE_AFTER_MINUTES", 15*time.Minute),
			JobBatchSize:          int32(getIntEnv("FORTUNES_JOB_BATCH_SIZE", 100)),
			ListLimit:             int32(getIntEnv("FORTUNES_LIST_LIMIT", 100)),
		},
		Jobs: JobsConfig{
			ExpireStalledInterval:     getMinutesEnv("FORTUNES_EXPIRE_STALLED_INTERVAL_MINUTES", 5*time.Minute),
			ReconcilePaymentsInterval: getMinutesEnv("FORTUNES_RECONCILE_INTERVAL_MINUTES", 2*time.Minute),
		},
	}, nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getIntEnv(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if n, err := strconv.Atoi(value); err == nil {
			return n
		}
	}
	return defaultValue
}

func getBoolEnv(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}

func getMinutesEnv(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if minutes, err := strconv.Atoi(value); err == nil {
			return time.Duration(minutes) * time.Minute
		}
	}
	return defaultValue
}

func getSecondsEnv(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if seconds, err := strconv.Atoi(value); err == nil {
			return time.Duration(seconds) * time.Second
		}
	}
	return defaultValue
}
