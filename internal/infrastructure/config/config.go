package config

import (
	"os"
	"strconv"
)

// EvaluatorConfig locates the external evaluator process.
type EvaluatorConfig struct {
	// RequestEndpoint is the transport address requests are sent to.
	RequestEndpoint string
	// StreamEndpoint is the transport address replies stream from.
	StreamEndpoint string
	// SpawnCommand optionally launches the evaluator at startup.
	SpawnCommand string
}

// Config represents the application configuration.
// This is an infrastructure component that loads configuration from environment variables.
type Config struct {
	Port        string
	LogLevel    string
	DatabaseDSN string
	JWTSecret   string
	Evaluator   EvaluatorConfig
}

// Load creates a new Config instance by reading environment variables.
func Load() *Config {
	return &Config{
		Port:        getEnv("PORT", "8080"),
		LogLevel:    getEnv("LOG_LEVEL", "info"),
		DatabaseDSN: getEnv("DATABASE_DSN", ""),
		JWTSecret:   getEnv("JWT_SECRET", ""),
		Evaluator: EvaluatorConfig{
			RequestEndpoint: getEnv("EVALUATOR_REQUEST_ENDPOINT", "127.0.0.1:8081"),
			StreamEndpoint:  getEnv("EVALUATOR_STREAM_ENDPOINT", "127.0.0.1:8082"),
			SpawnCommand:    getEnv("EVALUATOR_SPAWN_COMMAND", ""),
		},
	}
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}

// GetPortInt returns the port as an integer.
func (c *Config) GetPortInt() int {
	p, _ := strconv.Atoi(c.Port)
	return p
}
