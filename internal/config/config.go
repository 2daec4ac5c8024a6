// Package config provides configuration for the chat backend.
package config

import (
	"os"
	"strconv"
	"time"
)

// Config holds the backend configuration.
type Config struct {
	// Server settings
	HTTPPort int

	// Storage
	DatabaseDSN string
	UploadDir   string

	// Provider credentials. Anthropic supports either a direct API key
	// or a proxy pair (base URL + auth token).
	AnthropicAPIKey    string
	AnthropicBaseURL   string
	AnthropicAuthToken string
	OpenAIAPIKey       string

	// Reasoning engine settings. An empty endpoint selects the built-in
	// mock engine.
	EngineEndpoint      string
	EngineTimeout       time.Duration
	EngineMaxIterations int
	EngineMaxDepth      int

	// Default model for new sessions
	DefaultModel string

	// Stream tuning
	StreamPollInterval   time.Duration
	StreamHeartbeatPolls int
	StreamMaxPolls       int
}

// Load loads configuration from environment variables.
func Load() *Config {
	cfg := &Config{
		HTTPPort:             getEnvInt("HTTP_PORT", 8000),
		DatabaseDSN:          getEnv("DATABASE_URL", "file:docchat.db?cache=shared&mode=rwc"),
		UploadDir:            getEnv("UPLOAD_DIR", "uploads"),
		AnthropicAPIKey:      getEnv("ANTHROPIC_API_KEY", ""),
		AnthropicBaseURL:     getEnv("ANTHROPIC_BASE_URL", ""),
		AnthropicAuthToken:   getEnv("ANTHROPIC_AUTH_TOKEN", ""),
		OpenAIAPIKey:         getEnv("OPENAI_API_KEY", ""),
		EngineEndpoint:       getEnv("ENGINE_ENDPOINT", ""),
		EngineTimeout:        time.Duration(getEnvInt("ENGINE_TIMEOUT_MS", 600000)) * time.Millisecond,
		EngineMaxIterations:  getEnvInt("ENGINE_MAX_ITERATIONS", 15),
		EngineMaxDepth:       getEnvInt("ENGINE_MAX_DEPTH", 1),
		DefaultModel:         getEnv("DEFAULT_MODEL", "claude-opus-4-5-20251101"),
		StreamPollInterval:   time.Duration(getEnvInt("STREAM_POLL_INTERVAL_MS", 100)) * time.Millisecond,
		StreamHeartbeatPolls: getEnvInt("STREAM_HEARTBEAT_POLLS", 30),
		StreamMaxPolls:       getEnvInt("STREAM_MAX_POLLS", 6000),
	}
	return cfg
}

// ValidateAPIKey reports whether credentials are configured for the
// given provider. Anthropic accepts either a direct key or the proxy
// base URL + auth token pair.
func (c *Config) ValidateAPIKey(provider string) bool {
	if provider == ProviderOpenAI {
		return c.OpenAIAPIKey != ""
	}
	if c.AnthropicAPIKey != "" {
		return true
	}
	return c.AnthropicBaseURL != "" && c.AnthropicAuthToken != ""
}

func getEnv(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

func getEnvInt(key string, defaultVal int) int {
	if val := os.Getenv(key); val != "" {
		if intVal, err := strconv.Atoi(val); err == nil {
			return intVal
		}
	}
	return defaultVal
}
