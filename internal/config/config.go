package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds application configuration
type Config struct {
	Port           string
	Env            string
	LogLevel       string
	UseMemoryQueue bool
	WorkerCount    int
	DatabaseURL    string

	RedisAddr     string
	RedisPassword string
	RedisTLS      bool

	// WhatsApp Cloud API (master credentials; doctors may override)
	WhatsAppToken         string
	WhatsAppPhoneNumberID string
	WhatsAppAPIBaseURL    string
	WhatsAppAPIVersion    string
	WhatsAppVerifyToken   string
	WhatsAppAppSecret     string

	GeminiAPIKey      string
	GeminiModel       string
	BedrockModelID    string
	GenerationTimeout time.Duration
	VisionTimeout     time.Duration

	FAQMatchThreshold float64
	ClinicTimezone    string
	KnowledgeCacheTTL time.Duration

	AWSRegion           string
	AWSAccessKeyID      string
	AWSSecretAccessKey  string
	AWSEndpointOverride string
	InboundQueueURL     string
	ReportsBucket       string

	RemindersEnabled bool
	ReminderTick     time.Duration
	RecallBatchLimit int
	HealthTipLimit   int

	DashboardJWTSecret string
	WebhookRateLimit   float64
	WebhookRateBurst   int
	CORSAllowedOrigins []string
}

// Load reads configuration from environment variables. A .env file in the
// working directory is applied first when present; real environment values win.
func Load() *Config {
	_ = godotenv.Load()

	return &Config{
		Port:           getEnv("PORT", "8080"),
		Env:            getEnv("ENV", "development"),
		LogLevel:       getEnv("LOG_LEVEL", "info"),
		UseMemoryQueue: getEnvAsBool("USE_MEMORY_QUEUE", true),
		WorkerCount:    getEnvAsInt("INBOUND_WORKER_COUNT", 4),
		DatabaseURL:    getEnv("DATABASE_URL", ""),

		RedisAddr:     getEnv("REDIS_ADDR", ""),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		RedisTLS:      getEnvAsBool("REDIS_TLS", false),

		WhatsAppToken:         getEnv("WHATSAPP_TOKEN", ""),
		WhatsAppPhoneNumberID: getEnv("WHATSAPP_PHONE_NUMBER_ID", ""),
		WhatsAppAPIBaseURL:    strings.TrimRight(getEnv("WHATSAPP_API_BASE_URL", "https://graph.facebook.com"), "/"),
		WhatsAppAPIVersion:    getEnv("WHATSAPP_API_VERSION", "v18.0"),
		WhatsAppVerifyToken:   getEnv("WHATSAPP_VERIFY_TOKEN", ""),
		WhatsAppAppSecret:     getEnv("WHATSAPP_APP_SECRET", ""),

		GeminiAPIKey:      getEnv("GEMINI_API_KEY", ""),
		GeminiModel:       getEnv("GEMINI_MODEL", "gemini-1.5-flash"),
		BedrockModelID:    getEnv("BEDROCK_MODEL_ID", ""),
		GenerationTimeout: getEnvAsDuration("GENERATION_TIMEOUT", 10*time.Second),
		VisionTimeout:     getEnvAsDuration("VISION_TIMEOUT", 30*time.Second),

		FAQMatchThreshold: getEnvAsFloat("FAQ_MATCH_THRESHOLD", 0.5),
		ClinicTimezone:    getEnv("CLINIC_TIMEZONE", "Asia/Kolkata"),
		KnowledgeCacheTTL: getEnvAsDuration("KNOWLEDGE_CACHE_TTL", 5*time.Minute),

		AWSRegion:           getEnv("AWS_REGION", "ap-south-1"),
		AWSAccessKeyID:      getEnv("AWS_ACCESS_KEY_ID", ""),
		AWSSecretAccessKey:  getEnv("AWS_SECRET_ACCESS_KEY", ""),
		AWSEndpointOverride: getEnv("AWS_ENDPOINT_OVERRIDE", ""),
		InboundQueueURL:     getEnv("INBOUND_QUEUE_URL", ""),
		ReportsBucket:       getEnv("REPORTS_BUCKET", ""),

		RemindersEnabled: getEnvAsBool("REMINDERS_ENABLED", true),
		ReminderTick:     getEnvAsDuration("REMINDER_TICK", time.Minute),
		RecallBatchLimit: getEnvAsInt("RECALL_BATCH_LIMIT", 50),
		HealthTipLimit:   getEnvAsInt("HEALTH_TIP_LIMIT", 100),

		DashboardJWTSecret: getEnv("DASHBOARD_JWT_SECRET", ""),
		WebhookRateLimit:   getEnvAsFloat("WEBHOOK_RATE_LIMIT", 20),
		WebhookRateBurst:   getEnvAsInt("WEBHOOK_RATE_BURST", 40),
		CORSAllowedOrigins: splitList(getEnv("CORS_ALLOWED_ORIGINS", "")),
	}
}

// ClinicLocation resolves ClinicTimezone, falling back to UTC.
func (c *Config) ClinicLocation() *time.Location {
	if c == nil {
		return time.UTC
	}
	loc, err := time.LoadLocation(strings.TrimSpace(c.ClinicTimezone))
	if err != nil {
		return time.UTC
	}
	return loc
}

// getEnv retrieves an environment variable or returns a default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvAsInt retrieves an environment variable as an integer or returns a default value
func getEnvAsInt(key string, defaultValue int) int {
	valueStr := getEnv(key, "")
	if value, err := strconv.Atoi(valueStr); err == nil {
		return value
	}
	return defaultValue
}

// getEnvAsBool retrieves an environment variable as a boolean or returns a default value
func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := getEnv(key, "")
	if value, err := strconv.ParseBool(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	valueStr := getEnv(key, "")
	if value, err := strconv.ParseFloat(valueStr, 64); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return defaultValue
	}
	if value, err := time.ParseDuration(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func splitList(value string) []string {
	var out []string
	for _, part := range strings.Split(value, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
