package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds application configuration.
type Config struct {
	AppName     string
	AppVersion  string
	Environment string
	HTTPAddr    string

	// DashboardDir holds the static dashboard served for unmatched routes.
	DashboardDir string

	OTLPEndpoint string

	DBType            string
	DBHost            string
	DBPort            string
	DBName            string
	DBUser            string
	DBPassword        string
	DBSSLMode         string
	DBPath            string
	DBMaxIdleConn     int
	DBMaxOpenConn     int
	DBConnMaxLifetime int
	DBConnMaxIdleTime int

	Redis RedisConfig

	Providers ProvidersConfig
	Payouts   PayoutsConfig
	Email     EmailConfig
	Slack     SlackConfig

	SchedulerEnabled   bool
	SchedulerStopGrace time.Duration
	RunLockTTL         time.Duration
	DesignsDir         string
	EstimatorSeed      int64
}

type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// Enabled reports whether a Redis address is configured.
func (c RedisConfig) Enabled() bool {
	return strings.TrimSpace(c.Addr) != ""
}

// ProvidersConfig carries credentials for the content, publishing and
// passive income collaborators the engines use.
type ProvidersConfig struct {
	CohereAPIKey       string
	OpenAIAPIKey       string
	OpenAIModel        string
	MediumToken        string
	AmazonAffiliateTag string
	HoneygainEmail     string

	// Calls per minute allowed to each content provider when Redis is set.
	RatePerMinute int
	RateBurst     int
}

type PayoutsConfig struct {
	PayPalClientID string
	PayPalSecret   string
	PayPalEmail    string
	PayPalMode     string
	CashAppTag     string
}

// EmailConfig drives the daily summary mail. An empty host disables it.
type EmailConfig struct {
	SMTPHost     string
	SMTPPort     int
	SMTPUsername string
	SMTPPassword string
	SMTPFrom     string
	SummaryTo    string
}

// Enabled reports whether a daily summary can be sent.
func (c EmailConfig) Enabled() bool {
	return strings.TrimSpace(c.SMTPHost) != "" && strings.TrimSpace(c.SummaryTo) != ""
}

// SlackConfig points the daily summary at an incoming webhook. An empty URL
// disables it.
type SlackConfig struct {
	WebhookURL string
	Channel    string
}

func (c SlackConfig) Enabled() bool {
	return strings.TrimSpace(c.WebhookURL) != ""
}

// PayPalLive reports whether payouts should hit the production PayPal API.
func (c PayoutsConfig) PayPalLive() bool {
	return strings.EqualFold(strings.TrimSpace(c.PayPalMode), "live")
}

// Load loads configuration from environment variables and .env file.
func Load() Config {
	_ = godotenv.Load()

	cfg := Config{
		AppName:      getenv("APP_SERVICE", "incomeengine"),
		AppVersion:   getenv("APP_VERSION", "0.1.0"),
		Environment:  getenv("ENVIRONMENT", "development"),
		HTTPAddr:     getenv("HTTP_ADDR", ":3000"),
		DashboardDir: getenv("DASHBOARD_DIR", "dashboard"),
		OTLPEndpoint: getenv("OTLP_ENDPOINT", "localhost:4317"),

		DBType:            strings.ToLower(getenv("DATABASE_TYPE", "sqlite")),
		DBHost:            getenv("DATABASE_HOST", "localhost"),
		DBPort:            getenv("DATABASE_PORT", "5432"),
		DBName:            getenv("DATABASE_NAME", "incomeengine"),
		DBUser:            getenv("DATABASE_USER", "postgres"),
		DBPassword:        getenv("DATABASE_PASSWORD", ""),
		DBSSLMode:         getenv("DATABASE_SSLMODE", "disable"),
		DBPath:            getenv("DATABASE_PATH", "data/income.db"),
		DBMaxIdleConn:     int(getenvInt64("DATABASE_MAX_IDLE_CONN", 5)),
		DBMaxOpenConn:     int(getenvInt64("DATABASE_MAX_OPEN_CONN", 20)),
		DBConnMaxLifetime: int(getenvInt64("DATABASE_CONN_MAX_LIFETIME", 1800)),
		DBConnMaxIdleTime: int(getenvInt64("DATABASE_CONN_MAX_IDLE_TIME", 300)),

		Redis: RedisConfig{
			Addr:     strings.TrimSpace(getenv("REDIS_ADDR", "")),
			Password: getenv("REDIS_PASSWORD", ""),
			DB:       int(getenvInt64("REDIS_DB", 0)),
		},

		Providers: ProvidersConfig{
			CohereAPIKey:       strings.TrimSpace(getenv("COHERE_API_KEY", "")),
			OpenAIAPIKey:       strings.TrimSpace(getenv("OPENAI_API_KEY", "")),
			OpenAIModel:        getenv("OPENAI_MODEL", "gpt-3.5-turbo"),
			MediumToken:        strings.TrimSpace(getenv("MEDIUM_TOKEN", "")),
			AmazonAffiliateTag: getenv("AMAZON_AFFILIATE_TAG", "autoincome-20"),
			HoneygainEmail:     strings.TrimSpace(getenv("HONEYGAIN_EMAIL", "")),
			RatePerMinute:      int(getenvInt64("PROVIDER_RATE_PER_MINUTE", 20)),
			RateBurst:          int(getenvInt64("PROVIDER_RATE_BURST", 5)),
		},
		Payouts: PayoutsConfig{
			PayPalClientID: strings.TrimSpace(getenv("PAYPAL_CLIENT_ID", "")),
			PayPalSecret:   strings.TrimSpace(getenv("PAYPAL_SECRET", "")),
			PayPalEmail:    strings.TrimSpace(getenv("PAYPAL_EMAIL", "")),
			PayPalMode:     getenv("PAYPAL_MODE", "sandbox"),
			CashAppTag:     strings.TrimSpace(getenv("CASHAPP_CASHTAG", "")),
		},
		Email: EmailConfig{
			SMTPHost:     strings.TrimSpace(getenv("SMTP_HOST", "")),
			SMTPPort:     int(getenvInt64("SMTP_PORT", 587)),
			SMTPUsername: getenv("SMTP_USERNAME", ""),
			SMTPPassword: getenv("SMTP_PASSWORD", ""),
			SMTPFrom:     getenv("SMTP_FROM", "income@localhost"),
			SummaryTo:    strings.TrimSpace(getenv("SUMMARY_EMAIL_TO", "")),
		},
		Slack: SlackConfig{
			WebhookURL: strings.TrimSpace(getenv("SLACK_WEBHOOK_URL", "")),
			Channel:    strings.TrimSpace(getenv("SLACK_CHANNEL", "")),
		},

		SchedulerEnabled:   getenvBool("SCHEDULER_ENABLED", true),
		SchedulerStopGrace: getenvDuration("SCHEDULER_STOP_GRACE", 30*time.Second),
		RunLockTTL:         getenvDuration("ENGINE_LOCK_TTL", 2*time.Minute),
		DesignsDir:         getenv("DESIGNS_DIR", "designs"),
		EstimatorSeed:      getenvInt64("ESTIMATOR_SEED", 0),
	}

	return cfg
}

func (c Config) IsProduction() bool {
	return strings.EqualFold(c.Environment, "production")
}

func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getenvBool(key string, def bool) bool {
	value := strings.ToLower(strings.TrimSpace(os.Getenv(key)))
	if value == "" {
		return def
	}
	switch value {
	case "1", "true", "yes", "y", "on":
		return true
	case "0", "false", "no", "n", "off":
		return false
	default:
		return def
	}
}

func getenvInt64(key string, def int64) int64 {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return def
	}
	parsed, err := strconv.ParseInt(value, 10, 64)
	if err != nil {
		return def
	}
	return parsed
}

func getenvDuration(key string, def time.Duration) time.Duration {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return def
	}
	parsed, err := time.ParseDuration(value)
	if err != nil || parsed <= 0 {
		return def
	}
	return parsed
}
