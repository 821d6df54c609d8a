// Package config loads and validates application configuration from YAML files
// with .env and environment-variable overrides. It provides typed structs for
// every subsystem (Server, Catalog, Postgres, SQLite, Redis, Kafka, Search,
// Cache, Logging, Metrics, Analytics).
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Catalog sources understood by the catalog loader.
const (
	SourceFile     = "file"
	SourcePostgres = "postgres"
	SourceSQLite   = "sqlite"
)

// Config is the top-level application configuration.
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Catalog   CatalogConfig   `yaml:"catalog"`
	Postgres  PostgresConfig  `yaml:"postgres"`
	SQLite    SQLiteConfig    `yaml:"sqlite"`
	Redis     RedisConfig     `yaml:"redis"`
	Kafka     KafkaConfig     `yaml:"kafka"`
	Search    SearchConfig    `yaml:"search"`
	Cache     CacheConfig     `yaml:"cache"`
	Logging   LoggingConfig   `yaml:"logging"`
	Metrics   MetricsConfig   `yaml:"metrics"`
	Analytics AnalyticsConfig `yaml:"analytics"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Port            int           `yaml:"port"`
	ReadTimeout     time.Duration `yaml:"readTimeout"`
	WriteTimeout    time.Duration `yaml:"writeTimeout"`
	ShutdownTimeout time.Duration `yaml:"shutdownTimeout"`
	RequestTimeout  time.Duration `yaml:"requestTimeout"`
	AllowedOrigins  []string      `yaml:"allowedOrigins"`
	// RateLimit is requests per minute per client address; 0 disables it.
	RateLimit int `yaml:"rateLimit"`
}

// CatalogConfig selects where the product catalog is loaded from and whether
// file-backed catalogs are watched for changes.
type CatalogConfig struct {
	Source      string        `yaml:"source"`
	Path        string        `yaml:"path"`
	Table       string        `yaml:"table"`
	Watch       bool          `yaml:"watch"`
	LoadTimeout time.Duration `yaml:"loadTimeout"`
}

// PostgresConfig holds PostgreSQL connection parameters.
type PostgresConfig struct {
	Host            string        `yaml:"host"`
	Port            int           `yaml:"port"`
	Database        string        `yaml:"database"`
	User            string        `yaml:"user"`
	Password        string        `yaml:"password"`
	SSLMode         string        `yaml:"sslMode"`
	MaxOpenConns    int           `yaml:"maxOpenConns"`
	MaxIdleConns    int           `yaml:"maxIdleConns"`
	ConnMaxLifetime time.Duration `yaml:"connMaxLifetime"`
}

// DSN returns a lib/pq-compatible data source name.
func (p PostgresConfig) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		p.Host, p.Port, p.User, p.Password, p.Database, p.SSLMode,
	)
}

// SQLiteConfig points at a SQLite database holding the catalog table.
type SQLiteConfig struct {
	Path string `yaml:"path"`
}

// RedisConfig holds Redis connection parameters for the shared cache tier.
type RedisConfig struct {
	Enabled  bool          `yaml:"enabled"`
	Addr     string        `yaml:"addr"`
	Password string        `yaml:"password"`
	DB       int           `yaml:"db"`
	PoolSize int           `yaml:"poolSize"`
	CacheTTL time.Duration `yaml:"cacheTTL"`
}

// KafkaConfig holds Kafka broker and topic settings.
type KafkaConfig struct {
	Enabled       bool        `yaml:"enabled"`
	Brokers       []string    `yaml:"brokers"`
	ConsumerGroup string      `yaml:"consumerGroup"`
	Topics        KafkaTopics `yaml:"topics"`
}

// KafkaTopics maps logical topic names to their Kafka topic strings.
type KafkaTopics struct {
	CatalogUpdates  string `yaml:"catalogUpdates"`
	AnalyticsEvents string `yaml:"analyticsEvents"`
}

// SearchConfig controls result sizes and the default sort mode.
type SearchConfig struct {
	DefaultLimit int    `yaml:"defaultLimit"`
	MaxResults   int    `yaml:"maxResults"`
	DefaultSort  string `yaml:"defaultSort"`
}

// CacheConfig controls the in-process search result cache.
type CacheConfig struct {
	Enabled         bool          `yaml:"enabled"`
	TTL             time.Duration `yaml:"ttl"`
	EmptyResultTTL  time.Duration `yaml:"emptyResultTTL"`
	MaxEntries      int           `yaml:"maxEntries"`
	CleanupInterval time.Duration `yaml:"cleanupInterval"`
}

// LoggingConfig controls structured logging level and output format.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// MetricsConfig controls the Prometheus metrics server.
type MetricsConfig struct {
	Enabled bool `yaml:"enabled"`
	Port    int  `yaml:"port"`
}

// AnalyticsConfig controls search event collection.
type AnalyticsConfig struct {
	Enabled bool `yaml:"enabled"`
	// BufferSize is the number of events batched before a Kafka flush.
	BufferSize    int           `yaml:"bufferSize"`
	FlushInterval time.Duration `yaml:"flushInterval"`
	// SnapshotInterval persists aggregated stats to the catalog database
	// (postgres or sqlite sources only); 0 disables it.
	SnapshotInterval time.Duration `yaml:"snapshotInterval"`
}

// Load reads a YAML config file (if provided), loads a .env file from the
// working directory when present, and applies environment-variable overrides.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading config file %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parsing config file %s: %w", path, err)
		}
	}
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("loading .env file: %w", err)
	}
	applyEnvOverrides(cfg)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Default returns a Config with defaults suitable for local development.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Port:            8080,
			ReadTimeout:     30 * time.Second,
			WriteTimeout:    30 * time.Second,
			ShutdownTimeout: 15 * time.Second,
			RequestTimeout:  10 * time.Second,
		},
		Catalog: CatalogConfig{
			Source:      SourceFile,
			Path:        "data/products.json",
			Table:       "products",
			LoadTimeout: 30 * time.Second,
		},
		Postgres: PostgresConfig{
			Host:            "localhost",
			Port:            5432,
			Database:        "catalog",
			User:            "catalog",
			Password:        "localdev",
			SSLMode:         "disable",
			MaxOpenConns:    10,
			MaxIdleConns:    2,
			ConnMaxLifetime: 5 * time.Minute,
		},
		SQLite: SQLiteConfig{
			Path: "data/catalog.db",
		},
		Redis: RedisConfig{
			Addr:     "localhost:6379",
			PoolSize: 10,
			CacheTTL: 10 * time.Minute,
		},
		Kafka: KafkaConfig{
			Brokers:       []string{"localhost:9092"},
			ConsumerGroup: "catalog-search",
			Topics: KafkaTopics{
				CatalogUpdates:  "catalog-updates",
				AnalyticsEvents: "search-analytics",
			},
		},
		Search: SearchConfig{
			DefaultLimit: 5,
			MaxResults:   50,
			DefaultSort:  "relevance",
		},
		Cache: CacheConfig{
			Enabled:         true,
			TTL:             10 * time.Minute,
			EmptyResultTTL:  60 * time.Second,
			MaxEntries:      500,
			CleanupInterval: time.Minute,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
		Metrics: MetricsConfig{
			Enabled: true,
			Port:    9090,
		},
		Analytics: AnalyticsConfig{
			Enabled:       true,
			BufferSize:    100,
			FlushInterval: 5 * time.Second,
		},
	}
}

// Validate reports the first configuration value that cannot work.
func (c *Config) Validate() error {
	switch c.Catalog.Source {
	case SourceFile, SourcePostgres, SourceSQLite:
	default:
		return fmt.Errorf("invalid catalog source %q", c.Catalog.Source)
	}
	if c.Catalog.Source == SourceFile && c.Catalog.Path == "" {
		return fmt.Errorf("catalog path is required for the file source")
	}
	if c.Catalog.Source != SourceFile && c.Catalog.Table == "" {
		return fmt.Errorf("catalog table is required for the %s source", c.Catalog.Source)
	}
	if c.Server.RateLimit < 0 {
		return fmt.Errorf("server rateLimit must not be negative, got %d", c.Server.RateLimit)
	}
	if c.Search.DefaultLimit <= 0 {
		return fmt.Errorf("search defaultLimit must be positive, got %d", c.Search.DefaultLimit)
	}
	if c.Search.MaxResults < c.Search.DefaultLimit {
		return fmt.Errorf("search maxResults (%d) must be >= defaultLimit (%d)", c.Search.MaxResults, c.Search.DefaultLimit)
	}
	switch c.Search.DefaultSort {
	case "relevance", "price_low", "price_high":
	default:
		return fmt.Errorf("invalid search defaultSort %q", c.Search.DefaultSort)
	}
	if c.Analytics.SnapshotInterval < 0 {
		return fmt.Errorf("analytics snapshotInterval must not be negative")
	}
	if c.Cache.Enabled {
		if c.Cache.MaxEntries <= 0 {
			return fmt.Errorf("cache maxEntries must be positive, got %d", c.Cache.MaxEntries)
		}
		if c.Cache.TTL <= 0 || c.Cache.EmptyResultTTL <= 0 {
			return fmt.Errorf("cache ttl and emptyResultTTL must be positive")
		}
	}
	return nil
}

// applyEnvOverrides reads CS_* environment variables and overrides the
// corresponding config fields.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("CS_SERVER_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Server.Port = port
		}
	}
	if v := os.Getenv("CS_SERVER_RATE_LIMIT"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Server.RateLimit = n
		}
	}
	if v := os.Getenv("CS_SERVER_ALLOWED_ORIGINS"); v != "" {
		cfg.Server.AllowedOrigins = strings.Split(v, ",")
	}
	if v := os.Getenv("CS_CATALOG_SOURCE"); v != "" {
		cfg.Catalog.Source = v
	}
	if v := os.Getenv("CS_CATALOG_PATH"); v != "" {
		cfg.Catalog.Path = v
	}
	if v := os.Getenv("CS_CATALOG_TABLE"); v != "" {
		cfg.Catalog.Table = v
	}
	if v := os.Getenv("CS_CATALOG_WATCH"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			cfg.Catalog.Watch = b
		}
	}
	if v := os.Getenv("CS_POSTGRES_HOST"); v != "" {
		cfg.Postgres.Host = v
	}
	if v := os.Getenv("CS_POSTGRES_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Postgres.Port = port
		}
	}
	if v := os.Getenv("CS_POSTGRES_DATABASE"); v != "" {
		cfg.Postgres.Database = v
	}
	if v := os.Getenv("CS_POSTGRES_USER"); v != "" {
		cfg.Postgres.User = v
	}
	if v := os.Getenv("CS_POSTGRES_PASSWORD"); v != "" {
		cfg.Postgres.Password = v
	}
	if v := os.Getenv("CS_SQLITE_PATH"); v != "" {
		cfg.SQLite.Path = v
	}
	if v := os.Getenv("CS_REDIS_ENABLED"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			cfg.Redis.Enabled = b
		}
	}
	if v := os.Getenv("CS_REDIS_ADDR"); v != "" {
		cfg.Redis.Addr = v
	}
	if v := os.Getenv("CS_REDIS_PASSWORD"); v != "" {
		cfg.Redis.Password = v
	}
	if v := os.Getenv("CS_KAFKA_ENABLED"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			cfg.Kafka.Enabled = b
		}
	}
	if v := os.Getenv("CS_KAFKA_BROKERS"); v != "" {
		cfg.Kafka.Brokers = strings.Split(v, ",")
	}
	if v := os.Getenv("CS_CACHE_TTL"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.Cache.TTL = d
		}
	}
	if v := os.Getenv("CS_LOGGING_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
	if v := os.Getenv("CS_LOGGING_FORMAT"); v != "" {
		cfg.Logging.Format = v
	}
}
