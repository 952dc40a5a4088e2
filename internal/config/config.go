package config

import (
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"
)

// LLM provider names.
const (
	ProviderOllama    = "ollama"
	ProviderOpenAI    = "openai"
	ProviderAnthropic = "anthropic"
	ProviderBedrock   = "bedrock"
)

// Config holds all configuration values.
type Config struct {
	// Generation
	LLMProvider     string
	LLMModel        string
	RouterModel     string
	OllamaHost      string
	OpenAIAPIKey    string
	AnthropicAPIKey string
	AWSRegion       string

	// Records and catalog
	DefaultPatientID string
	FHIRDataDir      string
	DrugDBPath       string
	CacheSize        int

	// Sessions
	SessionTTL  time.Duration
	MaxSessions int

	// Server
	ServerPort int

	// Logging
	LogFile  string
	LogLevel slog.Level
}

// Load reads configuration from environment variables.
func Load() Config {
	model := getEnv("RXRAG_LLM_MODEL", "llama3")
	return Config{
		// Generation
		LLMProvider:     strings.ToLower(getEnv("RXRAG_LLM_PROVIDER", ProviderOllama)),
		LLMModel:        model,
		RouterModel:     getEnv("RXRAG_ROUTER_MODEL", model),
		OllamaHost:      getEnv("OLLAMA_HOST", "http://localhost:11434"),
		OpenAIAPIKey:    getEnv("OPENAI_API_KEY", ""),
		AnthropicAPIKey: getEnv("ANTHROPIC_API_KEY", ""),
		AWSRegion:       getEnv("AWS_REGION", ""),

		// Records and catalog
		DefaultPatientID: getEnv("DEFAULT_PATIENT_ID", "emily"),
		FHIRDataDir:      getEnv("LOCAL_FHIR_DATA_DIR", "./data/fhir"),
		DrugDBPath:       getEnv("RXRAG_DRUG_DB", "./data/drugs/drugs.db"),
		CacheSize:        getEnvInt("RXRAG_CACHE_SIZE", 128),

		// Sessions
		SessionTTL:  getEnvDuration("RXRAG_SESSION_TTL", 30*time.Minute),
		MaxSessions: getEnvInt("RXRAG_MAX_SESSIONS", 1024),

		// Server
		ServerPort: getEnvInt("RXRAG_SERVER_PORT", 8484),

		// Logging
		LogFile:  getEnv("RXRAG_LOG_FILE", "/tmp/rxrag.log"),
		LogLevel: parseLogLevel(getEnv("RXRAG_LOG_LEVEL", "INFO")),
	}
}

// WithModel returns a copy of cfg generating with model instead.
func (c Config) WithModel(model string) Config {
	c.LLMModel = model
	return c
}

func getEnv(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

func getEnvInt(key string, defaultVal int) int {
	n, err := strconv.Atoi(getEnv(key, ""))
	if err != nil || n <= 0 {
		return defaultVal
	}
	return n
}

func getEnvDuration(key string, defaultVal time.Duration) time.Duration {
	d, err := time.ParseDuration(getEnv(key, ""))
	if err != nil || d <= 0 {
		return defaultVal
	}
	return d
}

func parseLogLevel(s string) slog.Level {
	switch strings.ToUpper(s) {
	case "DEBUG":
		return slog.LevelDebug
	case "INFO":
		return slog.LevelInfo
	case "WARN", "WARNING":
		return slog.LevelWarn
	case "ERROR":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
