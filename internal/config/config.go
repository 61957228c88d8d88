package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
)

const defaultJWTSecret = "your-secret-key"

type Config struct {
	Server    ServerConfig    `json:"server"`
	Database  DatabaseConfig  `json:"database"`
	Redis     RedisConfig     `json:"redis"`
	Worker    WorkerConfig    `json:"worker"`
	Auth      AuthConfig      `json:"auth"`
	RateLimit RateLimitConfig `json:"rate_limit"`
	Avatar    AvatarConfig    `json:"avatar"`
}

type ServerConfig struct {
	Host           string        `json:"host" env:"HOST" envDefault:"localhost"`
	Port           string        `json:"port" env:"PORT" envDefault:"8080"`
	ReadTimeout    time.Duration `json:"read_timeout" env:"READ_TIMEOUT" envDefault:"30s"`
	WriteTimeout   time.Duration `json:"write_timeout" env:"WRITE_TIMEOUT" envDefault:"30s"`
	IdleTimeout    time.Duration `json:"idle_timeout" env:"IDLE_TIMEOUT" envDefault:"60s"`
	Environment    string        `json:"environment" env:"ENVIRONMENT" envDefault:"development"`
	AllowedOrigins []string      `json:"allowed_origins" env:"CORS_ALLOWED_ORIGINS" envSeparator:"," envDefault:"*"`
}

type DatabaseConfig struct {
	Driver          string        `json:"driver" env:"DB_DRIVER" envDefault:"postgres"`
	SQLitePath      string        `json:"sqlite_path" env:"DB_SQLITE_PATH" envDefault:"task-tracker.db"`
	Host            string        `json:"host" env:"DB_HOST" envDefault:"localhost"`
	Port            string        `json:"port" env:"DB_PORT" envDefault:"5432"`
	User            string        `json:"user" env:"DB_USER" envDefault:"postgres"`
	Password        string        `json:"password" env:"DB_PASSWORD"`
	Name            string        `json:"name" env:"DB_NAME" envDefault:"task_manager"`
	SSLMode         string        `json:"ssl_mode" env:"DB_SSL_MODE" envDefault:"disable"`
	MaxOpenConns    int           `json:"max_open_conns" env:"DB_MAX_OPEN_CONNS" envDefault:"25"`
	MaxIdleConns    int           `json:"max_idle_conns" env:"DB_MAX_IDLE_CONNS" envDefault:"10"`
	ConnMaxLifetime time.Duration `json:"conn_max_lifetime" env:"DB_CONN_MAX_LIFETIME" envDefault:"1h"`
	ConnMaxIdleTime time.Duration `json:"conn_max_idle_time" env:"DB_CONN_MAX_IDLE_TIME" envDefault:"30m"`
}

type RedisConfig struct {
	Enabled      bool          `json:"enabled" env:"REDIS_ENABLED" envDefault:"false"`
	Host         string        `json:"host" env:"REDIS_HOST" envDefault:"localhost"`
	Port         string        `json:"port" env:"REDIS_PORT" envDefault:"6379"`
	Password     string        `json:"password" env:"REDIS_PASSWORD"`
	DB           int           `json:"db" env:"REDIS_DB" envDefault:"0"`
	PoolSize     int           `json:"pool_size" env:"REDIS_POOL_SIZE" envDefault:"10"`
	MinIdleConns int           `json:"min_idle_conns" env:"REDIS_MIN_IDLE_CONNS" envDefault:"5"`
	MaxRetries   int           `json:"max_retries" env:"REDIS_MAX_RETRIES" envDefault:"3"`
	DialTimeout  time.Duration `json:"dial_timeout" env:"REDIS_DIAL_TIMEOUT" envDefault:"5s"`
	ReadTimeout  time.Duration `json:"read_timeout" env:"REDIS_READ_TIMEOUT" envDefault:"3s"`
	WriteTimeout time.Duration `json:"write_timeout" env:"REDIS_WRITE_TIMEOUT" envDefault:"3s"`
}

type WorkerConfig struct {
	Concurrency     int           `json:"concurrency" env:"WORKER_CONCURRENCY" envDefault:"2"`
	PollInterval    time.Duration `json:"poll_interval" env:"WORKER_POLL_INTERVAL" envDefault:"5s"`
	CleanupInterval time.Duration `json:"cleanup_interval" env:"WORKER_CLEANUP_INTERVAL" envDefault:"1h"`
	Queues          []string      `json:"queues" env:"WORKER_QUEUES" envSeparator:"," envDefault:"default,retry_queue"`
}

// AuthConfig controls session tokens and password hashing. A zero TokenTTL
// issues tokens without an expiry; they stay valid until logged out.
type AuthConfig struct {
	JWTSecret  string        `json:"jwt_secret" env:"JWT_SECRET" envDefault:"your-secret-key"`
	Issuer     string        `json:"issuer" env:"JWT_ISSUER" envDefault:"taskify-backend"`
	TokenTTL   time.Duration `json:"token_ttl" env:"TOKEN_TTL" envDefault:"0s"`
	BCryptCost int           `json:"bcrypt_cost" env:"BCRYPT_COST" envDefault:"8"`
}

type RateLimitConfig struct {
	Enabled         bool          `json:"enabled" env:"RATE_LIMIT_ENABLED" envDefault:"true"`
	RequestsPerMin  int           `json:"requests_per_minute" env:"RATE_LIMIT_RPM" envDefault:"100"`
	BurstSize       int           `json:"burst_size" env:"RATE_LIMIT_BURST" envDefault:"10"`
	CleanupInterval time.Duration `json:"cleanup_interval" env:"RATE_LIMIT_CLEANUP" envDefault:"10m"`
}

type AvatarConfig struct {
	MaxBytes int64         `json:"max_bytes" env:"AVATAR_MAX_BYTES" envDefault:"1000000"`
	Size     int           `json:"size" env:"AVATAR_SIZE" envDefault:"250"`
	CacheTTL time.Duration `json:"cache_ttl" env:"AVATAR_CACHE_TTL" envDefault:"30m"`
}

func LoadConfig() (*Config, error) {
	config := &Config{}
	if err := env.Parse(config); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}

	if config.Database.Driver != "postgres" && config.Database.Driver != "sqlite" {
		return nil, fmt.Errorf("unsupported database driver %q", config.Database.Driver)
	}

	if config.Auth.BCryptCost < 4 || config.Auth.BCryptCost > 31 {
		return nil, fmt.Errorf("bcrypt cost must be between 4 and 31, got %d", config.Auth.BCryptCost)
	}

	if config.Avatar.MaxBytes <= 0 || config.Avatar.Size <= 0 {
		return nil, fmt.Errorf("avatar limits must be positive")
	}

	if config.IsProduction() {
		if config.Database.Driver == "postgres" && config.Database.Password == "" {
			return nil, fmt.Errorf("database password is required in production")
		}
		if config.Auth.JWTSecret == defaultJWTSecret {
			return nil, fmt.Errorf("JWT secret must be set in production")
		}
	}

	return config, nil
}

func (c *Config) GetDatabaseDSN() string {
	if c.Database.Driver == "sqlite" {
		return c.Database.SQLitePath
	}
	return fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		c.Database.Host,
		c.Database.Port,
		c.Database.User,
		c.Database.Password,
		c.Database.Name,
		c.Database.SSLMode,
	)
}

func (c *Config) GetRedisAddr() string {
	return fmt.Sprintf("%s:%s", c.Redis.Host, c.Redis.Port)
}

func (c *Config) GetServerAddr() string {
	return fmt.Sprintf("%s:%s", c.Server.Host, c.Server.Port)
}

func (c *Config) IsProduction() bool {
	return c.Server.Environment == "production"
}
