package config

import (
	"log"
	"os"
	"strconv"
	"strings"
)

// Config holds process configuration read from the environment.
type Config struct {
	Port             string
	CORSAllowOrigin  []string
	ObjectStoreType  string
	LocalStoreDir    string
	AWSRegion        string
	S3Bucket         string
	S3Prefix         string
	SSEKMSKeyID      string
	AgentProvider    string
	AgentModel       string
	OpenAIAPIKey     string
	AgentRPM         int
	AgentBurst       int
	PolicyFile       string
	CatalogFile      string
	QueueURL         string
	WorkerConcurrent int
	SweepIntervalSec int
	WebhookSecret    string
	APIRatePerSec    float64
	APIRateBurst     int
	DatabaseURL      string
	Env              string
}

// Load reads configuration from environment variables with sensible defaults.
func Load() Config {
	// Best-effort load of local env files for dev convenience.
	loadEnvFiles(".env", "cmd/.env")

	env := normalizeEnv(getEnv("ENV", "dev"))
	dbURL := os.Getenv("DATABASE_URL")

	if env == "production" && dbURL == "" {
		log.Printf("DATABASE_URL is required in production")
	}
	if env == "production" && os.Getenv("PAYMENT_WEBHOOK_SECRET") == "" {
		log.Printf("PAYMENT_WEBHOOK_SECRET is empty; payment webhook will reject all calls")
	}

	return Config{
		Port:             getEnv("PORT", "8080"),
		CORSAllowOrigin:  splitAndTrim(getEnv("CORS_ALLOW_ORIGINS", "http://localhost:5173")),
		ObjectStoreType:  normalizeStoreType(getEnv("OBJECT_STORE", "local")),
		LocalStoreDir:    getEnv("LOCAL_STORE_DIR", "./data"),
		AWSRegion:        getEnv("AWS_REGION", ""),
		S3Bucket:         getEnv("S3_BUCKET", ""),
		S3Prefix:         getEnv("S3_PREFIX", ""),
		SSEKMSKeyID:      getEnv("SSE_KMS_KEY_ID", ""),
		AgentProvider:    normalizeProvider(getEnv("AGENT_PROVIDER", "placeholder")),
		AgentModel:       getEnv("AGENT_MODEL", ""),
		OpenAIAPIKey:     getEnv("OPENAI_API_KEY", ""),
		AgentRPM:         getEnvInt("AGENT_RPM", 60),
		AgentBurst:       getEnvInt("AGENT_BURST", 4),
		PolicyFile:       getEnv("ENGINE_POLICY_FILE", ""),
		CatalogFile:      getEnv("CATALOG_FILE", ""),
		QueueURL:         strings.TrimSpace(getEnv("AA_SQS_QUEUE_URL", "")),
		WorkerConcurrent: getEnvInt("WORKER_CONCURRENCY", 4),
		SweepIntervalSec: getEnvInt("SWEEP_INTERVAL_SECONDS", 60),
		WebhookSecret:    strings.TrimSpace(getEnv("PAYMENT_WEBHOOK_SECRET", "")),
		APIRatePerSec:    getEnvFloat("API_RATE_PER_SEC", 5),
		APIRateBurst:     getEnvInt("API_RATE_BURST", 20),
		DatabaseURL:      dbURL,
		Env:              env,
	}
}

func getEnv(key, def string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return def
}

func getEnvInt(key string, def int) int {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return def
	}
	val, err := strconv.Atoi(raw)
	if err != nil || val <= 0 {
		log.Printf("config env %s invalid positive int %q; using %d", key, raw, def)
		return def
	}
	return val
}

func getEnvFloat(key string, def float64) float64 {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return def
	}
	val, err := strconv.ParseFloat(raw, 64)
	if err != nil || val <= 0 {
		log.Printf("config env %s invalid positive number %q; using %v", key, raw, def)
		return def
	}
	return val
}

func splitAndTrim(raw string) []string {
	parts := strings.Split(raw, ",")
	var out []string
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

func normalizeEnv(raw string) string {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "production", "prod":
		return "production"
	case "staging":
		return "staging"
	case "local":
		return "local"
	default:
		return "dev"
	}
}

func normalizeStoreType(raw string) string {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "s3":
		return "s3"
	default:
		return "local"
	}
}

func normalizeProvider(raw string) string {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "openai":
		return "openai"
	default:
		return "placeholder"
	}
}

// IsDevLike reports whether env allows in-memory fallbacks.
func IsDevLike(env string) bool {
	switch strings.ToLower(strings.TrimSpace(env)) {
	case "dev", "local":
		return true
	default:
		return false
	}
}
