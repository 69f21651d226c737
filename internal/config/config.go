package config

import (
	"fmt"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

func init() {
	// Load .env file if it exists (silent fail if not)
	_ = godotenv.Load()
}

// Config holds all application configuration loaded from environment variables.
type Config struct {
	Server   ServerConfig
	App      AppConfig
	Log      LogConfig
	Cache    CacheConfig
	Store    StoreConfig
	Catalog  CatalogConfig
	SyncLog  SyncLogConfig
	Upstream UpstreamConfig
	Sync     SyncConfig
	Events   EventsConfig
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host            string        `envconfig:"SERVER_HOST" default:"0.0.0.0"`
	Port            int           `envconfig:"SERVER_PORT" default:"8080"`
	ReadTimeout     time.Duration `envconfig:"SERVER_READ_TIMEOUT" default:"15s"`
	WriteTimeout    time.Duration `envconfig:"SERVER_WRITE_TIMEOUT" default:"120s"`
	ShutdownTimeout time.Duration `envconfig:"SERVER_SHUTDOWN_TIMEOUT" default:"30s"`
}

// AppConfig holds application-level settings.
type AppConfig struct {
	Name        string `envconfig:"APP_NAME" default:"opmelink-api"`
	Environment string `envconfig:"APP_ENV" default:"development"`
	Version     string `envconfig:"APP_VERSION" default:"1.0.0"`
	LoginKey    string `envconfig:"LOGIN_KEY" default:""` // admin endpoints
	Timezone    string `envconfig:"APP_TIMEZONE" default:"Local"`
}

// LogConfig holds logger settings.
type LogConfig struct {
	Level  string `envconfig:"LOG_LEVEL" default:"info"`
	Format string `envconfig:"LOG_FORMAT" default:"json"`
}

// CacheConfig holds cache settings. Type is memory or redis.
type CacheConfig struct {
	Type     string        `envconfig:"CACHE_TYPE" default:"memory"`
	TTL      time.Duration `envconfig:"CACHE_TTL" default:"5m"`
	TokenTTL time.Duration `envconfig:"TOKEN_TTL" default:"12h"`

	RedisHost     string `envconfig:"REDIS_HOST" default:"localhost"`
	RedisPort     int    `envconfig:"REDIS_PORT" default:"6379"`
	RedisPassword string `envconfig:"REDIS_PASSWORD" default:""`
	RedisDB       int    `envconfig:"REDIS_DB" default:"0"`
	KeyPrefix     string `envconfig:"REDIS_KEY_PREFIX" default:"opmelink"`
}

// StoreConfig selects the store for case records, links and restriction rules.
type StoreConfig struct {
	Type string `envconfig:"STORE_DB_TYPE" default:"sqlite"` // sqlite or postgres
	Path string `envconfig:"STORE_DB_PATH" default:"./data/opmelink.db"`
	// PostgreSQL settings
	Host     string `envconfig:"STORE_DB_HOST" default:"localhost"`
	Port     int    `envconfig:"STORE_DB_PORT" default:"5432"`
	Name     string `envconfig:"STORE_DB_NAME" default:"opmelink"`
	User     string `envconfig:"STORE_DB_USER" default:"postgres"`
	Password string `envconfig:"STORE_DB_PASS" default:""`
	SSLMode  string `envconfig:"STORE_DB_SSLMODE" default:"disable"`
}

// CatalogConfig selects the implant catalog store. Type "store" keeps the catalog next to the case records.
type CatalogConfig struct {
	Type     string `envconfig:"CATALOG_DB_TYPE" default:"store"` // store or mysql
	Host     string `envconfig:"CATALOG_DB_HOST" default:"localhost"`
	Port     int    `envconfig:"CATALOG_DB_PORT" default:"3306"`
	Name     string `envconfig:"CATALOG_DB_NAME" default:"opmelink"`
	User     string `envconfig:"CATALOG_DB_USER" default:"root"`
	Password string `envconfig:"CATALOG_DB_PASS" default:""`
}

// SyncLogConfig configures the optional MongoDB sync history.
type SyncLogConfig struct {
	MongoURI        string `envconfig:"MONGODB_URI" default:""`
	MongoDatabase   string `envconfig:"MONGODB_DATABASE" default:"opmelink"`
	MongoCollection string `envconfig:"MONGODB_COLLECTION" default:"sync_runs"`
}

// UpstreamConfig describes the CPS list endpoints.
type UpstreamConfig struct {
	BaseURL       string        `envconfig:"UPSTREAM_BASE_URL" default:"https://api-lab.my-world.dev.br"`
	BusinessUnits []string      `envconfig:"UPSTREAM_BUSINESS_UNITS" default:"43,47,48"`
	CatchAllGroup string        `envconfig:"UPSTREAM_CATCH_ALL_GROUP" default:"ENDOSCOPIA"`
	Timeout       time.Duration `envconfig:"UPSTREAM_TIMEOUT" default:"20s"`
	RetryCount    int           `envconfig:"UPSTREAM_RETRY_COUNT" default:"1"`
	Concurrency   int           `envconfig:"UPSTREAM_CONCURRENCY" default:"8"`
	LookupWindow  time.Duration `envconfig:"UPSTREAM_LOOKUP_WINDOW" default:"168h"`
}

// SyncConfig holds the scheduled sync trigger settings.
// Interval 0 leaves scheduling to the external trigger.
type SyncConfig struct {
	Secret       string        `envconfig:"SYNC_SECRET" default:""`
	DefaultOwner string        `envconfig:"SYNC_DEFAULT_OWNER" default:"shared"`
	Interval     time.Duration `envconfig:"SYNC_INTERVAL" default:"0s"`
	LookbackDays int           `envconfig:"SYNC_LOOKBACK_DAYS" default:"1"`
}

// EventsConfig configures LinkCreated delivery beyond the local process.
type EventsConfig struct {
	RedisChannel string   `envconfig:"EVENTS_REDIS_CHANNEL" default:"opmelink:events:link-created"`
	KafkaBrokers []string `envconfig:"KAFKA_BROKERS"`
	KafkaTopic   string   `envconfig:"KAFKA_TOPIC" default:"opme.link-created"`
}

// PostgresDSN returns the PostgreSQL connection string.
func (s *StoreConfig) PostgresDSN() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=%s",
		s.User, s.Password, s.Host, s.Port, s.Name, s.SSLMode)
}

// DSN returns the MySQL data source name.
func (c *CatalogConfig) DSN() string {
	return fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?parseTime=true",
		c.User, c.Password, c.Host, c.Port, c.Name)
}

// Address returns the server address in host:port format.
func (s *ServerConfig) Address() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

// RedisAddress returns the Redis address in host:port format.
func (c *CacheConfig) RedisAddress() string {
	return fmt.Sprintf("%s:%d", c.RedisHost, c.RedisPort)
}

// IsDevelopment returns true if running in development mode.
func (a *AppConfig) IsDevelopment() bool {
	return a.Environment == "development"
}

// Location resolves the configured timezone, falling back to time.Local.
func (a *AppConfig) Location() *time.Location {
	if a.Timezone == "" || a.Timezone == "Local" {
		return time.Local
	}
	loc, err := time.LoadLocation(a.Timezone)
	if err != nil {
		return time.Local
	}
	return loc
}

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	var cfg Config

	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	return &cfg, nil
}

// MustLoad loads configuration or panics on error.
func MustLoad() *Config {
	cfg, err := Load()
	if err != nil {
		panic(err)
	}
	return cfg
}
