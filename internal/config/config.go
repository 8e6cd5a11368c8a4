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
	// Server
	HTTPAddr         string
	LogLevel         string
	HTTPReadTimeout  time.Duration
	HTTPWriteTimeout time.Duration
	ShutdownTimeout  time.Duration
	MaxRequestBytes  int64

	// Chat completion backend (openai, googleai, ollama)
	ChatProvider string
	ChatBaseURL  string
	ChatAPIKey   string
	ChatModel    string

	// Image generation backend (openai, gemini, imagen)
	ImageProvider string
	ImageBaseURL  string
	ImageAPIKey   string
	ImageModel    string

	// Gemini API, shared by the googleai chat provider and the gemini/imagen image providers
	GeminiAPIKey      string
	GeminiAPIEndpoint string // if set, overrides default Gemini API base URL

	// Kafka relay events; empty brokers disables publishing
	KafkaBrokers       []string
	KafkaTopicEvents   string
	KafkaConsumerGroup string

	// CLI
	ServerURL string
}

// Load loads configuration from environment variables.
// A .env file in the working directory is read first when present; real environment wins.
func Load() *Config {
	_ = godotenv.Load()

	return &Config{
		HTTPAddr:         getEnv("HTTP_ADDR", ":8080"),
		LogLevel:         getEnv("LOG_LEVEL", "info"),
		HTTPReadTimeout:  getEnvDuration("HTTP_READ_TIMEOUT", 15*time.Second),
		HTTPWriteTimeout: getEnvDuration("HTTP_WRITE_TIMEOUT", 5*time.Minute),
		ShutdownTimeout:  getEnvDuration("SHUTDOWN_TIMEOUT", 10*time.Second),
		MaxRequestBytes:  getEnvInt64("MAX_REQUEST_BYTES", 1<<20), // 1MB

		ChatProvider: strings.ToLower(getEnv("CHAT_PROVIDER", "openai")),
		ChatBaseURL:  getEnv("CHAT_BASE_URL", "http://127.0.0.1:5000/v1"),
		ChatAPIKey:   firstNonEmpty(os.Getenv("CHAT_API_KEY"), os.Getenv("OPENAI_API_KEY"), "sk-local"),
		ChatModel:    getEnv("CHAT_MODEL", "gpt-3.5-turbo"),

		ImageProvider: strings.ToLower(getEnv("IMAGE_PROVIDER", "openai")),
		ImageBaseURL:  getEnv("IMAGE_BASE_URL", "http://127.0.0.1:5000/v1"),
		ImageAPIKey:   firstNonEmpty(os.Getenv("IMAGE_API_KEY"), os.Getenv("OPENAI_API_KEY"), "sk-local"),
		ImageModel:    getEnv("IMAGE_MODEL", ""), // provider default when empty

		GeminiAPIKey:      getEnv("GEMINI_API_KEY", ""),
		GeminiAPIEndpoint: getEnv("GEMINI_API_ENDPOINT", ""),

		KafkaBrokers:       getEnvList("KAFKA_BROKERS"),
		KafkaTopicEvents:   getEnv("KAFKA_TOPIC_EVENTS", "paintchat.events.v1"),
		KafkaConsumerGroup: getEnv("KAFKA_CONSUMER_GROUP", "paintchat-events-tail"),

		ServerURL: getEnv("PAINTCHAT_SERVER_URL", "http://localhost:8080"),
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt64(key string, defaultValue int64) int64 {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.ParseInt(value, 10, 64); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}

// getEnvList splits a comma-separated value, dropping blanks. Returns nil when unset.
func getEnvList(key string) []string {
	var out []string
	for _, part := range strings.Split(os.Getenv(key), ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return strings.TrimSpace(v)
		}
	}
	return ""
}
