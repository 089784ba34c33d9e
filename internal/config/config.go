package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config holds all configuration for the books service
type Config struct {
	ServiceName    string   `yaml:"service_name"`
	DatabaseURL    string   `yaml:"database_url"`
	HTTPPort       string   `yaml:"http_port"`
	GRPCPort       string   `yaml:"grpc_port"`
	RabbitMQURL    string   `yaml:"rabbitmq_url"`
	LogLevel       string   `yaml:"log_level"`
	CORSOrigins    []string `yaml:"cors_origins"`
	RateLimitRPS   float64  `yaml:"rate_limit_rps"`
	RateLimitBurst int      `yaml:"rate_limit_burst"`
}

// Default returns the configuration used when nothing else is provided.
// The database defaults to in-memory sqlite.
func Default() *Config {
	return &Config{
		ServiceName:    "books",
		DatabaseURL:    "sqlite://",
		HTTPPort:       "8000",
		GRPCPort:       "50051",
		LogLevel:       "info",
		CORSOrigins:    []string{"http://localhost:4200"},
		RateLimitBurst: 4,
	}
}

// Load builds the configuration from defaults, then the YAML file at path
// (skipped when path is empty), then environment variables.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
		}
	}

	cfg.ServiceName = getEnv("SERVICE_NAME", cfg.ServiceName)
	cfg.DatabaseURL = getEnv("DATABASE_URL", cfg.DatabaseURL)
	cfg.HTTPPort = getEnv("HTTP_PORT", cfg.HTTPPort)
	cfg.GRPCPort = getEnv("GRPC_PORT", cfg.GRPCPort)
	cfg.RabbitMQURL = getEnv("RABBITMQ_URL", cfg.RabbitMQURL)
	cfg.LogLevel = getEnv("LOG_LEVEL", cfg.LogLevel)

	if origins := os.Getenv("CORS_ORIGINS"); origins != "" {
		cfg.CORSOrigins = splitList(origins)
	}

	if v := os.Getenv("RATE_LIMIT_RPS"); v != "" {
		rps, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid RATE_LIMIT_RPS %q: %w", v, err)
		}
		cfg.RateLimitRPS = rps
	}
	if v := os.Getenv("RATE_LIMIT_BURST"); v != "" {
		burst, err := strconv.Atoi(v)
		if err != nil {
			return nil, fmt.Errorf("invalid RATE_LIMIT_BURST %q: %w", v, err)
		}
		cfg.RateLimitBurst = burst
	}

	if cfg.HTTPPort == "" {
		return nil, fmt.Errorf("http port must not be empty")
	}
	if cfg.RateLimitRPS < 0 {
		return nil, fmt.Errorf("rate limit must not be negative")
	}

	return cfg, nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
