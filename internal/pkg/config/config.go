package config

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/sethvargo/go-envconfig"
)

const (
	EnvProduction  = "production"
	EnvDevelopment = "development"

	DriverMongo = "mongo"
	DriverRedis = "redis"
)

type Config struct {
	Port     string `env:"PORT,      default=8080"`
	Env      string `env:"ENV,       default=development"`
	LogLevel string `env:"LOG_LEVEL, default=info"`

	// CORSOrigins is a comma-separated allow list.
	CORSOrigins string `env:"CORS_ORIGINS, default=*"`
	// AuthJWTSecret enables bearer-token protection of write routes when set.
	AuthJWTSecret string `env:"AUTH_JWT_SECRET"`

	Store   StoreConfig
	Weather WeatherConfig
}

type StoreConfig struct {
	Driver   string `env:"STORE_DRIVER,   default=mongo"`
	URL      string `env:"STORE_URL,      required"`
	Username string `env:"STORE_USERNAME"`
	Password string `env:"STORE_PASSWORD"`
	Database string `env:"STORE_DATABASE, default=user_directory"`
}

type WeatherConfig struct {
	APIKey  string        `env:"WEATHER_API_KEY,      required"`
	BaseURL string        `env:"WEATHER_API_BASE_URL, default=https://api.openweathermap.org/data/2.5"`
	Timeout time.Duration `env:"WEATHER_API_TIMEOUT,  default=5s"`
}

// IsProduction reports whether the service runs in production mode, which
// masks internal error details.
func (c *Config) IsProduction() bool {
	return strings.EqualFold(c.Env, EnvProduction)
}

// AllowedOrigins splits CORSOrigins.
func (c *Config) AllowedOrigins() []string {
	var out []string
	for _, o := range strings.Split(c.CORSOrigins, ",") {
		if o = strings.TrimSpace(o); o != "" {
			out = append(out, o)
		}
	}
	return out
}

// Load reads configuration from environment variables using go-envconfig.
// Missing store URL or provider key is reported as an error.
func Load(ctx context.Context) (*Config, error) {
	return load(ctx, envconfig.OsLookuper())
}

func load(ctx context.Context, lookuper envconfig.Lookuper) (*Config, error) {
	var cfg Config
	if err := envconfig.ProcessWith(ctx, &envconfig.Config{Target: &cfg, Lookuper: lookuper}); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}

	switch strings.ToLower(cfg.Store.Driver) {
	case DriverMongo, DriverRedis:
		cfg.Store.Driver = strings.ToLower(cfg.Store.Driver)
	default:
		return nil, fmt.Errorf("config: unsupported STORE_DRIVER %q", cfg.Store.Driver)
	}
	return &cfg, nil
}
