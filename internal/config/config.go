// Package config loads process settings from an optional .env file, an
// optional YAML file and the environment, in increasing precedence.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

const defaultConfigFile = "config.yaml"

type Config struct {
	HTTPAddr          string        `yaml:"http_addr"`
	LogLevel          string        `yaml:"log_level"`
	CORSAllowedOrigin string        `yaml:"cors_allowed_origin"`
	RequestTimeout    time.Duration `yaml:"request_timeout"`

	Store struct {
		Driver      string `yaml:"driver"`
		SQLitePath  string `yaml:"sqlite_path"`
		PostgresDSN string `yaml:"postgres_dsn"`
		MongoURI    string `yaml:"mongo_uri"`
		MongoDB     string `yaml:"mongo_database"`
		Debug       bool   `yaml:"debug"`
	} `yaml:"store"`

	RateLimit struct {
		RPS   float64 `yaml:"rps"`
		Burst int     `yaml:"burst"`
	} `yaml:"rate_limit"`

	Tracing struct {
		Exporter    string `yaml:"exporter"`
		ServiceName string `yaml:"service_name"`
	} `yaml:"tracing"`

	UI struct {
		Addr       string `yaml:"addr"`
		APIBaseURL string `yaml:"api_base_url"`
	} `yaml:"ui"`
}

const (
	DriverMemory   = "memory"
	DriverSQLite   = "sqlite"
	DriverGorm     = "gorm"
	DriverPostgres = "postgres"
	DriverMongo    = "mongo"
)

func defaults() *Config {
	cfg := &Config{
		HTTPAddr:          ":8080",
		LogLevel:          "info",
		CORSAllowedOrigin: "http://localhost:5173",
		RequestTimeout:    15 * time.Second,
	}
	cfg.Store.Driver = DriverSQLite
	cfg.Store.SQLitePath = "data/tasks.db"
	cfg.Store.MongoDB = "task_db"
	cfg.RateLimit.Burst = 20
	cfg.Tracing.Exporter = "none"
	cfg.Tracing.ServiceName = "task-api"
	cfg.UI.Addr = ":5173"
	cfg.UI.APIBaseURL = "http://localhost:8080"
	return cfg
}

// Load reads .env (if present), then CONFIG_FILE or ./config.yaml (if
// present), then the process environment.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("error loading .env file: %w", err)
	}
	return LoadFrom(os.LookupEnv)
}

// LoadFrom builds a Config using lookup for every environment read.
func LoadFrom(lookup func(string) (string, bool)) (*Config, error) {
	cfg := defaults()

	path, explicit := lookup("CONFIG_FILE")
	if !explicit || path == "" {
		path = defaultConfigFile
	}
	if err := cfg.readYAML(path, lookup); err != nil {
		if explicit || !errors.Is(err, fs.ErrNotExist) {
			return nil, err
		}
	}

	if err := cfg.applyEnv(lookup); err != nil {
		return nil, err
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) readYAML(path string, lookup func(string) (string, bool)) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("error reading config file: %w", err)
	}

	// ${VAR} placeholders are replaced before parsing
	content := os.Expand(string(data), func(key string) string {
		v, _ := lookup(key)
		return v
	})

	if err := yaml.Unmarshal([]byte(content), c); err != nil {
		return fmt.Errorf("error parsing config: %w", err)
	}
	return nil
}

func (c *Config) applyEnv(lookup func(string) (string, bool)) error {
	str := func(key string, dst *string) {
		if v, ok := lookup(key); ok && strings.TrimSpace(v) != "" {
			*dst = strings.TrimSpace(v)
		}
	}
	str("HTTP_ADDR", &c.HTTPAddr)
	str("LOG_LEVEL", &c.LogLevel)
	str("CORS_ALLOWED_ORIGIN", &c.CORSAllowedOrigin)
	str("STORE_DRIVER", &c.Store.Driver)
	str("SQLITE_PATH", &c.Store.SQLitePath)
	str("POSTGRES_DSN", &c.Store.PostgresDSN)
	str("MONGODB_URI", &c.Store.MongoURI)
	str("MONGODB_DATABASE", &c.Store.MongoDB)
	str("TRACING_EXPORTER", &c.Tracing.Exporter)
	str("SERVICE_NAME", &c.Tracing.ServiceName)
	str("UI_ADDR", &c.UI.Addr)
	str("API_BASE_URL", &c.UI.APIBaseURL)

	if v, ok := lookup("REQUEST_TIMEOUT"); ok && v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("invalid REQUEST_TIMEOUT value: %w", err)
		}
		c.RequestTimeout = d
	}
	if v, ok := lookup("RATE_LIMIT_RPS"); ok && v != "" {
		rps, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return fmt.Errorf("invalid RATE_LIMIT_RPS value: %w", err)
		}
		c.RateLimit.RPS = rps
	}
	if v, ok := lookup("RATE_LIMIT_BURST"); ok && v != "" {
		burst, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("invalid RATE_LIMIT_BURST value: %w", err)
		}
		c.RateLimit.Burst = burst
	}
	if v, ok := lookup("DB_DEBUG"); ok && v != "" {
		debug, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("invalid DB_DEBUG value: %w", err)
		}
		c.Store.Debug = debug
	}
	return nil
}

func (c *Config) validate() error {
	c.Store.Driver = strings.ToLower(c.Store.Driver)
	switch c.Store.Driver {
	case DriverMemory, DriverSQLite, DriverGorm:
	case DriverPostgres:
		if c.Store.PostgresDSN == "" {
			return errors.New("POSTGRES_DSN must be set for the postgres driver")
		}
	case DriverMongo:
		if c.Store.MongoURI == "" {
			return errors.New("MONGODB_URI must be set for the mongo driver")
		}
	default:
		return fmt.Errorf("unknown STORE_DRIVER %q", c.Store.Driver)
	}

	if c.RequestTimeout <= 0 {
		return errors.New("REQUEST_TIMEOUT must be positive")
	}
	if c.CORSAllowedOrigin == "" {
		return errors.New("CORS_ALLOWED_ORIGIN must be set")
	}
	return nil
}
