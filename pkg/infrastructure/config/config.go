package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"

	"github.com/vsinha/mbom/pkg/application/services/costing"
	"github.com/vsinha/mbom/pkg/application/services/fx"
	"github.com/vsinha/mbom/pkg/domain/entities"
)

type Config struct {
	Environment string
	Costing     CostingConfig
	Database    DatabaseConfig
	Server      ServerConfig
	Log         LogConfig
}

type CostingConfig struct {
	BaseCurrency      string
	DisplayCurrency   string
	WholesaleCurrency string
	RateKind          string
	FXSearch          string
	MaxDepth          int
}

type DatabaseConfig struct {
	Host         string
	Port         string
	User         string
	Password     string
	Database     string
	SSLMode      string
	MaxOpenConns int
	MaxIdleConns int
	MaxLifetime  int
	LogLevel     string
	AutoMigrate  bool
}

type ServerConfig struct {
	Port         string
	Host         string
	ReadTimeout  int
	WriteTimeout int
	IdleTimeout  int
}

type LogConfig struct {
	Level  string
	Format string
}

// Load reads an optional .env file followed by the environment
func Load() (*Config, error) {
	// Load .env file if it exists
	godotenv.Load()

	config := &Config{
		Environment: getEnv("ENVIRONMENT", "development"),
		Costing: CostingConfig{
			BaseCurrency:      getEnv("COSTING_BASE_CURRENCY", "USD"),
			DisplayCurrency:   getEnv("COSTING_DISPLAY_CURRENCY", "ARS"),
			WholesaleCurrency: getEnv("COSTING_WHOLESALE_CURRENCY", "USD_MAY"),
			RateKind:          getEnv("COSTING_RATE_KIND", string(entities.RateKindAverage)),
			FXSearch:          getEnv("COSTING_FX_SEARCH", string(fx.PastFirst)),
			MaxDepth:          getEnvAsInt("COSTING_MAX_DEPTH", 32),
		},
		Database: DatabaseConfig{
			Host:         getEnv("DB_HOST", "localhost"),
			Port:         getEnv("DB_PORT", "5432"),
			User:         getEnv("DB_USER", "postgres"),
			Password:     getEnv("DB_PASSWORD", ""),
			Database:     getEnv("DB_NAME", "mbom"),
			SSLMode:      getEnv("DB_SSL_MODE", "disable"),
			MaxOpenConns: getEnvAsInt("DB_MAX_OPEN_CONNS", 10),
			MaxIdleConns: getEnvAsInt("DB_MAX_IDLE_CONNS", 5),
			MaxLifetime:  getEnvAsInt("DB_MAX_LIFETIME", 300),
			LogLevel:     getEnv("DB_LOG_LEVEL", "silent"),
			AutoMigrate:  getEnvAsBool("DB_AUTO_MIGRATE", true),
		},
		Server: ServerConfig{
			Port:         getEnv("SERVER_PORT", "8080"),
			Host:         getEnv("SERVER_HOST", "localhost"),
			ReadTimeout:  getEnvAsInt("SERVER_READ_TIMEOUT", 15),
			WriteTimeout: getEnvAsInt("SERVER_WRITE_TIMEOUT", 60),
			IdleTimeout:  getEnvAsInt("SERVER_IDLE_TIMEOUT", 60),
		},
		Log: LogConfig{
			Level:  getEnv("LOG_LEVEL", "info"),
			Format: getEnv("LOG_FORMAT", "text"),
		},
	}

	return config, config.Validate()
}

func (c *Config) Validate() error {
	if _, err := c.Costing.ToCosting(); err != nil {
		return err
	}
	if c.Database.Password == "" && c.Environment == "production" {
		return fmt.Errorf("database password is required in production")
	}
	if c.Log.Format != "text" && c.Log.Format != "json" {
		return fmt.Errorf("unknown log format %q", c.Log.Format)
	}
	return nil
}

// ToCosting maps the settings onto a costing configuration
func (c CostingConfig) ToCosting() (costing.Config, error) {
	search, err := fx.ParseSearchPolicy(strings.ToLower(c.FXSearch))
	if err != nil {
		return costing.Config{}, err
	}
	cfg := costing.DefaultConfig()
	cfg.BaseCurrency = entities.Currency(c.BaseCurrency).Normalize()
	cfg.DisplayCurrency = entities.Currency(c.DisplayCurrency).Normalize()
	cfg.WholesaleCurrency = entities.Currency(c.WholesaleCurrency).Normalize()
	cfg.RateKind = entities.RateKind(strings.ToUpper(c.RateKind))
	cfg.Search = search
	cfg.MaxDepth = c.MaxDepth
	if err := cfg.Validate(); err != nil {
		return costing.Config{}, fmt.Errorf("invalid costing configuration: %w", err)
	}
	return cfg, nil
}

// Helper functions
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolValue, err := strconv.ParseBool(strings.ToLower(value)); err == nil {
			return boolValue
		}
	}
	return defaultValue
}
