package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

const (
	DriverSQL  = "sql"
	DriverGorm = "gorm"

	DialectSQLite   = "sqlite"
	DialectPostgres = "postgres"
)

type Config struct {
	Port               string        `yaml:"port"`
	StoreDriver        string        `yaml:"store_driver"`
	DBDialect          string        `yaml:"db_dialect"`
	DBDSN              string        `yaml:"db_dsn"`
	LogLevel           string        `yaml:"log_level"`
	LogFormat          string        `yaml:"log_format"`
	EnableMetrics      bool          `yaml:"enable_metrics"`
	EnableSwagger      bool          `yaml:"enable_swagger"`
	ExposeErrorDetails bool          `yaml:"expose_error_details"`
	CORSAllowedOrigins []string      `yaml:"cors_allowed_origins"`
	ImportMappingFile  string        `yaml:"import_mapping_file"`
	ShutdownTimeout    time.Duration `yaml:"shutdown_timeout"`
}

func defaults() *Config {
	return &Config{
		Port:               "8080",
		StoreDriver:        DriverSQL,
		DBDialect:          DialectSQLite,
		DBDSN:              "file:assets.db?_busy_timeout=5000&_foreign_keys=on",
		LogLevel:           "info",
		LogFormat:          "json",
		CORSAllowedOrigins: []string{"*"},
		ShutdownTimeout:    5 * time.Second,
	}
}

// Load builds the configuration from defaults, the optional YAML file named
// by CONFIG_FILE, and then the environment.
func Load() (*Config, error) {
	config := defaults()

	if path := os.Getenv("CONFIG_FILE"); path != "" {
		if err := config.loadFile(path); err != nil {
			return nil, err
		}
	}

	config.Port = getEnv("PORT", config.Port)
	config.StoreDriver = getEnv("STORE_DRIVER", config.StoreDriver)
	config.DBDialect = getEnv("DB_DIALECT", config.DBDialect)
	config.DBDSN = getEnv("DB_DSN", config.DBDSN)
	config.LogLevel = getEnv("LOG_LEVEL", config.LogLevel)
	config.LogFormat = getEnv("LOG_FORMAT", config.LogFormat)
	config.EnableMetrics = getEnvBool("ENABLE_METRICS", config.EnableMetrics)
	config.EnableSwagger = getEnvBool("ENABLE_SWAGGER", config.EnableSwagger)
	config.ExposeErrorDetails = getEnvBool("EXPOSE_ERROR_DETAILS", config.ExposeErrorDetails)
	config.ImportMappingFile = getEnv("IMPORT_MAPPING_FILE", config.ImportMappingFile)

	if origins := os.Getenv("CORS_ALLOWED_ORIGINS"); origins != "" {
		config.CORSAllowedOrigins = splitList(origins)
	}

	if timeoutStr := os.Getenv("SHUTDOWN_TIMEOUT"); timeoutStr != "" {
		timeout, err := time.ParseDuration(timeoutStr)
		if err != nil {
			return nil, errors.Wrapf(err, "invalid SHUTDOWN_TIMEOUT %q", timeoutStr)
		}
		config.ShutdownTimeout = timeout
	}

	return config, nil
}

func (c *Config) loadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return errors.Wrapf(err, "read config file %s", path)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return errors.Wrapf(err, "parse config file %s", path)
	}
	return nil
}

// Validate checks the configuration for errors
func (c *Config) Validate() error {
	switch c.StoreDriver {
	case DriverSQL, DriverGorm:
	default:
		return fmt.Errorf("STORE_DRIVER must be %q or %q, got %q", DriverSQL, DriverGorm, c.StoreDriver)
	}

	switch c.DBDialect {
	case DialectSQLite, DialectPostgres:
	default:
		return fmt.Errorf("DB_DIALECT must be %q or %q, got %q", DialectSQLite, DialectPostgres, c.DBDialect)
	}

	if strings.TrimSpace(c.DBDSN) == "" {
		return errors.New("DB_DSN is required")
	}

	port, err := strconv.Atoi(c.Port)
	if err != nil || port < 1 || port > 65535 {
		return fmt.Errorf("PORT must be a number between 1 and 65535, got %q", c.Port)
	}

	if c.ShutdownTimeout <= 0 {
		return errors.New("SHUTDOWN_TIMEOUT must be positive")
	}

	return nil
}

// LoadAndValidate loads configuration and validates it
func LoadAndValidate() (*Config, error) {
	config, err := Load()
	if err != nil {
		return nil, err
	}
	if err := config.Validate(); err != nil {
		return nil, errors.Wrap(err, "invalid configuration")
	}
	return config, nil
}

// Addr is the listen address for the HTTP server
func (c *Config) Addr() string {
	return ":" + c.Port
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	b, err := strconv.ParseBool(value)
	if err != nil {
		return defaultValue
	}
	return b
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
