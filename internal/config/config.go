package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Environment string

	HTTP   HTTPConfig
	Redis  RedisConfig
	Agents AgentsConfig
	Log    LogConfig

	RequireAPIKey bool
	APIKey        string
}

type HTTPConfig struct {
	Port         int
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	IdleTimeout  time.Duration
}

type RedisConfig struct {
	URL          string
	PoolSize     int
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration

	SessionTTL  time.Duration
	WorkflowTTL time.Duration
}

type AgentsConfig struct {
	FinancialURL      string
	SalesMarketingURL string
	RequestTimeout    time.Duration
	HealthTimeout     time.Duration
}

type LogConfig struct {
	Level  string
	Format string
	Output string
}

func Load() (*Config, error) {
	// .env is optional, real deployments configure through the environment
	_ = godotenv.Load()

	port, err := getEnvInt("PORT", 8000)
	if err != nil {
		return nil, err
	}

	poolSize, err := getEnvInt("REDIS_POOL_SIZE", 10)
	if err != nil {
		return nil, err
	}

	sessionHours, err := getEnvInt("SESSION_TIMEOUT_HOURS", 24)
	if err != nil {
		return nil, err
	}

	workflowHours, err := getEnvInt("WORKFLOW_TIMEOUT_HOURS", 48)
	if err != nil {
		return nil, err
	}

	agentTimeout, err := getEnvInt("AGENT_REQUEST_TIMEOUT", 30)
	if err != nil {
		return nil, err
	}

	healthTimeout, err := getEnvInt("HEALTH_CHECK_TIMEOUT", 5)
	if err != nil {
		return nil, err
	}

	cfg := &Config{
		Environment: getEnv("ENVIRONMENT", "development"),
		HTTP: HTTPConfig{
			Port:         port,
			ReadTimeout:  30 * time.Second,
			WriteTimeout: 60 * time.Second,
			IdleTimeout:  120 * time.Second,
		},
		Redis: RedisConfig{
			URL:          getEnv("REDIS_URL", "redis://localhost:6379"),
			PoolSize:     poolSize,
			DialTimeout:  5 * time.Second,
			ReadTimeout:  3 * time.Second,
			WriteTimeout: 3 * time.Second,
			SessionTTL:   time.Duration(sessionHours) * time.Hour,
			WorkflowTTL:  time.Duration(workflowHours) * time.Hour,
		},
		Agents: AgentsConfig{
			FinancialURL:      getEnv("FINANCIAL_AGENT_URL", "http://localhost:8002"),
			SalesMarketingURL: getEnv("SALES_MARKETING_AGENT_URL", "http://localhost:8003"),
			RequestTimeout:    time.Duration(agentTimeout) * time.Second,
			HealthTimeout:     time.Duration(healthTimeout) * time.Second,
		},
		Log: LogConfig{
			Level:  getEnv("LOG_LEVEL", "info"),
			Format: getEnv("LOG_FORMAT", "json"),
			Output: getEnv("LOG_OUTPUT", "stdout"),
		},
		RequireAPIKey: getEnv("REQUIRE_API_KEY", "false") == "true",
		APIKey:        os.Getenv("ORCHESTRATOR_API_KEY"),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func (cfg *Config) Validate() error {
	if cfg.HTTP.Port <= 0 || cfg.HTTP.Port > 65535 {
		return fmt.Errorf("invalid PORT: %d", cfg.HTTP.Port)
	}

	if cfg.Agents.FinancialURL == "" {
		return fmt.Errorf("FINANCIAL_AGENT_URL must not be empty")
	}

	if cfg.Agents.SalesMarketingURL == "" {
		return fmt.Errorf("SALES_MARKETING_AGENT_URL must not be empty")
	}

	if cfg.RequireAPIKey && cfg.APIKey == "" {
		return fmt.Errorf("REQUIRE_API_KEY is set but ORCHESTRATOR_API_KEY is empty")
	}

	return nil
}

func (cfg *Config) IsProduction() bool {
	return cfg.Environment == "production"
}

func getEnv(key, fallback string) string {
	value := os.Getenv(key)
	if value != "" {
		return value
	}
	return fallback
}

func getEnvInt(key string, fallback int) (int, error) {
	value := os.Getenv(key)
	if value == "" {
		return fallback, nil
	}

	parsed, err := strconv.Atoi(value)
	if err != nil {
		return 0, fmt.Errorf("error parsing %s: %w", key, err)
	}
	return parsed, nil
}
