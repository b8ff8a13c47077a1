package config

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"

	pkgerrors "ai4u-memory/pkg/errors"
)

// Config holds all application configuration
type Config struct {
	// App
	Host string
	Port int
	Env  string

	// Neo4j
	Neo4jURI      string
	Neo4jUser     string
	Neo4jPassword string

	// LLM / Embeddings / Reranker (OpenAI-compatible proxy)
	LLMAPIBase     string
	LLMAPIKey      string
	LLMModel       string
	EmbeddingModel string
	RerankerModel  string

	// APIKey protects the /v1 routes. Empty means open mode.
	APIKey string
}

// Load reads configuration from environment variables
func Load() (*Config, error) {
	// Try to load .env file, but don't fail if it doesn't exist
	_ = godotenv.Load()

	cfg := &Config{
		Host:           getEnv("HOST", "0.0.0.0"),
		Port:           getEnvInt("PORT", 8000),
		Env:            getEnv("ENV", "development"),
		Neo4jURI:       getEnv("NEO4J_URI", "bolt://localhost:7687"),
		Neo4jUser:      getEnv("NEO4J_USER", "neo4j"),
		Neo4jPassword:  getEnv("NEO4J_PASSWORD", "password"),
		LLMAPIBase:     getEnv("LLM_API_BASE", "https://api.ai4u.now/v1"),
		LLMAPIKey:      getEnv("LLM_API_KEY", ""),
		LLMModel:       getEnv("LLM_MODEL", "gemini-2.5-flash"),
		EmbeddingModel: getEnv("EMBEDDING_MODEL", "text-embedding-004"),
		RerankerModel:  getEnv("RERANKER_MODEL", "gpt-4o-mini"),
		APIKey:         getEnv("API_KEY", ""),
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

// Validate checks that required configuration values are set
func (c *Config) Validate() error {
	required := []struct {
		field string
		value string
	}{
		{"NEO4J_URI", c.Neo4jURI},
		{"NEO4J_USER", c.Neo4jUser},
		{"NEO4J_PASSWORD", c.Neo4jPassword},
		{"LLM_API_BASE", c.LLMAPIBase},
		{"LLM_MODEL", c.LLMModel},
		{"EMBEDDING_MODEL", c.EmbeddingModel},
		{"RERANKER_MODEL", c.RerankerModel},
	}
	for _, req := range required {
		if req.value == "" {
			return pkgerrors.NewConfigMissingRequired(req.field)
		}
	}
	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("PORT must be a valid TCP port, got %d", c.Port)
	}
	// LLM_API_KEY and API_KEY are optional: local proxies often need no
	// credentials, and an empty API_KEY runs the service unauthenticated.
	return nil
}

// Addr returns the host:port listen address
func (c *Config) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// IsDevelopment returns true if running in development mode
func (c *Config) IsDevelopment() bool {
	return c.Env == "development"
}

// IsProduction returns true if running in production mode
func (c *Config) IsProduction() bool {
	return c.Env == "production"
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		var result int
		if _, err := fmt.Sscanf(value, "%d", &result); err == nil {
			return result
		}
	}
	return defaultValue
}
