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
	Cache    CacheConfig
	Database DatabaseConfig
	Events   EventsConfig
	Counters CountersConfig
	YouTube  YouTubeConfig
	Session  SessionConfig
	Search   SearchConfig
	Metrics  MetricsConfig
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host            string        `envconfig:"SERVER_HOST" default:"0.0.0.0"`
	Port            int           `envconfig:"SERVER_PORT" default:"8080"`
	ReadTimeout     time.Duration `envconfig:"SERVER_READ_TIMEOUT" default:"15s"`
	WriteTimeout    time.Duration `envconfig:"SERVER_WRITE_TIMEOUT" default:"0s"` // 0 keeps event streams open
	ShutdownTimeout time.Duration `envconfig:"SERVER_SHUTDOWN_TIMEOUT" default:"30s"`
	AllowedOrigins  []string      `envconfig:"CORS_ALLOWED_ORIGINS" default:"*"`
}

// AppConfig holds application-level settings.
type AppConfig struct {
	Name              string `envconfig:"APP_NAME" default:"kplays-api"`
	Environment       string `envconfig:"APP_ENV" default:"development"`
	Debug             bool   `envconfig:"APP_DEBUG" default:"false"`
	Version           string `envconfig:"APP_VERSION" default:"1.0.0"`
	AdminEmail        string `envconfig:"ADMIN_EMAIL" default:""`
	AdminPasswordHash string `envconfig:"ADMIN_PASSWORD_HASH" default:""` // bcrypt, see kpctl hash-password
	LogLevel          string `envconfig:"LOG_LEVEL" default:"info"`
	LogFormat         string `envconfig:"LOG_FORMAT" default:""` // pretty or json; empty picks by environment
}

// CacheConfig holds cache settings.
type CacheConfig struct {
	Type       string        `envconfig:"CACHE_TYPE" default:"memory"` // memory, bolt, or redis
	ListTTL    time.Duration `envconfig:"CACHE_LIST_TTL" default:"5m"`
	DetailTTL  time.Duration `envconfig:"CACHE_DETAIL_TTL" default:"15m"`
	ViewWindow time.Duration `envconfig:"CACHE_VIEW_WINDOW" default:"24h"`
	QuotaBytes int64         `envconfig:"CACHE_QUOTA_BYTES" default:"5242880"`
	BoltPath   string        `envconfig:"CACHE_BOLT_PATH" default:"./data/cache.db"`
	KeyPrefix  string        `envconfig:"CACHE_KEY_PREFIX" default:"kplays"`

	RedisHost     string `envconfig:"REDIS_HOST" default:"localhost"`
	RedisPort     int    `envconfig:"REDIS_PORT" default:"6379"`
	RedisPassword string `envconfig:"REDIS_PASSWORD" default:""`
	RedisDB       int    `envconfig:"REDIS_DB" default:"0"`
}

// DatabaseConfig holds the game store settings.
type DatabaseConfig struct {
	Type string `envconfig:"DB_TYPE" default:"sqlite"` // sqlite, postgres, mysql, mongodb, or memory
	Path string `envconfig:"DB_PATH" default:"./data/kplays.db"`
	// PostgreSQL / MySQL settings
	Host     string `envconfig:"DB_HOST" default:"localhost"`
	Port     int    `envconfig:"DB_PORT" default:"5432"`
	Name     string `envconfig:"DB_NAME" default:"kplays"`
	User     string `envconfig:"DB_USER" default:"postgres"`
	Password string `envconfig:"DB_PASS" default:""`
	SSLMode  string `envconfig:"DB_SSLMODE" default:"disable"`
	// MongoDB settings
	MongoURI      string `envconfig:"MONGODB_URI" default:"mongodb://localhost:27017"`
	MongoDatabase string `envconfig:"MONGODB_DATABASE" default:"kplays"`
}

// EventsConfig selects the change notification broker.
type EventsConfig struct {
	Type string `envconfig:"EVENTS_TYPE" default:"memory"` // memory or redis
}

// CountersConfig controls view/download counter buffering.
type CountersConfig struct {
	Buffered      bool          `envconfig:"COUNTERS_BUFFERED" default:"false"`
	FlushInterval time.Duration `envconfig:"COUNTERS_FLUSH_INTERVAL" default:"30s"`
}

// YouTubeConfig holds video gallery settings.
type YouTubeConfig struct {
	APIKey          string        `envconfig:"YOUTUBE_API_KEY" default:""`
	ChannelQuery    string        `envconfig:"YOUTUBE_CHANNEL_QUERY" default:"kushwant20"`
	ChannelID       string        `envconfig:"YOUTUBE_CHANNEL_ID" default:""`
	BaseURL         string        `envconfig:"YOUTUBE_API_URL" default:"https://www.googleapis.com/youtube/v3"`
	FeedURL         string        `envconfig:"YOUTUBE_FEED_URL" default:"https://www.youtube.com/feeds/videos.xml"`
	CacheTTL        time.Duration `envconfig:"YOUTUBE_CACHE_TTL" default:"30m"`
	RefreshInterval time.Duration `envconfig:"YOUTUBE_REFRESH_INTERVAL" default:"0s"`
}

// SessionConfig holds admin session settings.
type SessionConfig struct {
	TTL time.Duration `envconfig:"SESSION_TTL" default:"12h"`
}

// SearchConfig toggles the full-text index.
type SearchConfig struct {
	Enabled bool `envconfig:"SEARCH_ENABLED" default:"true"`
}

// MetricsConfig holds prometheus settings.
type MetricsConfig struct {
	Enabled bool   `envconfig:"METRICS_ENABLED" default:"true"`
	Path    string `envconfig:"METRICS_PATH" default:"/metrics"`
}

// PostgresDSN returns the PostgreSQL connection string.
func (d *DatabaseConfig) PostgresDSN() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=%s",
		d.User, d.Password, d.Host, d.Port, d.Name, d.SSLMode)
}

// MySQLDSN returns the MySQL data source name.
func (d *DatabaseConfig) MySQLDSN() string {
	return fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?parseTime=true&clientFoundRows=true",
		d.User, d.Password, d.Host, d.Port, d.Name)
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

// IsProduction returns true if running in production mode.
func (a *AppConfig) IsProduction() bool {
	return a.Environment == "production"
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
