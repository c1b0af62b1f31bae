// config предоставляет структуру конфигурации сервиса и функции
// загрузки из файла/переменных окружения с предсказуемым приоритетом.
package config

import (
	"fmt"
	"net"
	"os"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
)

// Значения storage.refresh_backend.
const (
	RefreshBackendPostgres = "postgres"
	RefreshBackendRedis    = "redis"
)

// Значения ws.anonymous_policy.
const (
	AnonymousReject = "reject"
	AnonymousAllow  = "allow"
)

// Config — корневая конфигурация сервиса.
// Источники значений (по убыванию приоритета):
//  1. явный путь через флаг --config;
//  2. путь в переменной окружения CONFIG_PATH;
//  3. файл local.yaml из рабочей директории;
//  4. переменные окружения (cleanenv).
type Config struct {
	Env      string        `yaml:"env" env:"ENV" env-default:"local"`
	HTTP     HTTPConfig    `yaml:"http"`
	Auth     AuthConfig    `yaml:"auth"`
	DB       DBConfig      `yaml:"db"`
	Redis    RedisConfig   `yaml:"redis"`
	Storage  StorageConfig `yaml:"storage"`
	WS       WSConfig      `yaml:"ws"`
	Timeouts TimeoutConfig `yaml:"timeouts"`
}

// TimeoutConfig — таймауты сервиса.
type TimeoutConfig struct {
	Service time.Duration `yaml:"service" env:"SERVICE_TIMEOUT" env-default:"5s"`
}

// HTTPConfig — сетевые настройки HTTP-сервера.
type HTTPConfig struct {
	Host     string `yaml:"host" env:"HTTP_HOST" env-default:"0.0.0.0"`
	Port     string `yaml:"port" env:"HTTP_PORT" env-default:"8080"`
	BasePath string `yaml:"base_path" env:"HTTP_BASE_PATH" env-default:"/api"`
}

// Addr возвращает адрес в формате host:port.
func (h HTTPConfig) Addr() string {
	return net.JoinHostPort(h.Host, h.Port)
}

// AuthConfig содержит параметры выпуска и валидации токенов.
type AuthConfig struct {
	JWTSecret       string        `yaml:"jwt_secret" env:"JWT_SECRET" env-required:"true"`
	AccessTokenTTL  time.Duration `yaml:"access_token_ttl" env:"ACCESS_TOKEN_TTL" env-default:"30m"`
	RefreshTokenTTL time.Duration `yaml:"refresh_token_ttl" env:"REFRESH_TOKEN_TTL" env-default:"336h"`
	Issuer          string        `yaml:"issuer" env:"ISSUER" env-default:"board-service"`
	// CookieSecure выставляет атрибут Secure у refresh-cookie (включать за HTTPS).
	CookieSecure bool   `yaml:"cookie_secure" env:"COOKIE_SECURE" env-default:"false"`
	CookiePath   string `yaml:"cookie_path" env:"COOKIE_PATH" env-default:"/"`
	// RotateRefreshOnReissue — выпускать новый refresh-токен при каждом reissue.
	// По умолчанию выключено: refresh живёт до следующего логина.
	RotateRefreshOnReissue bool `yaml:"rotate_refresh_on_reissue" env:"ROTATE_REFRESH_ON_REISSUE" env-default:"false"`
}

// DBConfig — настройки подключения к базе данных.
type DBConfig struct {
	DatabaseURL string `yaml:"db_url" env:"DATABASE_URL" env-required:"true"`
	// SkipMigrations отключает goose-миграции при старте. Нулевое значение
	// означает "мигрировать", поэтому false из YAML не перетирается дефолтом.
	SkipMigrations bool `yaml:"skip_migrations" env:"DB_SKIP_MIGRATIONS"`
}

// RedisConfig — подключение к Redis (нужно только для refresh_backend=redis).
type RedisConfig struct {
	RedisURL string `yaml:"redis_url" env:"REDIS_URL"`
	Prefix   string `yaml:"prefix" env:"REDIS_PREFIX" env-default:"board:rt:"`
}

// StorageConfig — выбор хранилища refresh-токенов.
type StorageConfig struct {
	RefreshBackend string        `yaml:"refresh_backend" env:"REFRESH_BACKEND" env-default:"postgres"`
	JanitorPeriod  time.Duration `yaml:"janitor_period" env:"REFRESH_JANITOR_PERIOD" env-default:"30m"`
}

// WSConfig — STOMP-over-WebSocket эндпоинт.
type WSConfig struct {
	Endpoint        string        `yaml:"endpoint" env:"WS_ENDPOINT" env-default:"/ws-stomp"`
	AllowedOrigins  []string      `yaml:"allowed_origins" env:"WS_ALLOWED_ORIGINS" env-separator:"," env-default:"localhost:5500,127.0.0.1:5500"`
	AnonymousPolicy string        `yaml:"anonymous_policy" env:"WS_ANONYMOUS_POLICY" env-default:"reject"`
	SendQueue       int           `yaml:"send_queue" env:"WS_SEND_QUEUE" env-default:"256"`
	WriteTimeout    time.Duration `yaml:"write_timeout" env:"WS_WRITE_TIMEOUT" env-default:"5s"`
	Heartbeat       time.Duration `yaml:"heartbeat" env:"WS_HEARTBEAT" env-default:"30s"`
}

// Validate проверяет значения, которые cleanenv не умеет ограничивать сам.
func (c *Config) Validate() error {
	if c.Auth.JWTSecret == "" {
		return fmt.Errorf("auth.jwt_secret is required")
	}

	switch c.Storage.RefreshBackend {
	case RefreshBackendPostgres:
	case RefreshBackendRedis:
		if c.Redis.RedisURL == "" {
			return fmt.Errorf("redis.redis_url is required for refresh_backend=%s", RefreshBackendRedis)
		}
	default:
		return fmt.Errorf("unknown refresh_backend %q", c.Storage.RefreshBackend)
	}

	switch c.WS.AnonymousPolicy {
	case AnonymousReject, AnonymousAllow:
	default:
		return fmt.Errorf("unknown ws.anonymous_policy %q", c.WS.AnonymousPolicy)
	}

	if c.Auth.AccessTokenTTL <= 0 || c.Auth.RefreshTokenTTL <= 0 {
		return fmt.Errorf("token ttl must be positive")
	}

	return nil
}

// MustLoad — обёртка над Load с panic при ошибке.
func MustLoad(path string) *Config {
	cfg, err := Load(path)
	if err != nil {
		panic(err)
	}

	return cfg
}

// Load загружает конфигурацию по приоритету:
// 1) явный путь; 2) CONFIG_PATH; 3) ./local.yaml; 4) ENV.
// После чтения файла ENV-переменные накладываются поверх значений из YAML.
func Load(path string) (*Config, error) {
	var cfg Config

	tryRead := func(p string) (*Config, error) {
		if _, err := os.Stat(p); err != nil {
			return nil, fmt.Errorf("config file %q stat failed: %w", p, err)
		}

		if err := cleanenv.ReadConfig(p, &cfg); err != nil {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}

		if err := cleanenv.ReadEnv(&cfg); err != nil {
			return nil, fmt.Errorf("failed to overlay env: %w", err)
		}

		if err := cfg.Validate(); err != nil {
			return nil, fmt.Errorf("invalid config: %w", err)
		}

		return &cfg, nil
	}

	// 1) Явный путь.
	if path != "" {
		return tryRead(path)
	}

	// 2) CONFIG_PATH.
	if envPath := os.Getenv("CONFIG_PATH"); envPath != "" {
		return tryRead(envPath)
	}

	// 3) ./local.yaml.
	if _, err := os.Stat("local.yaml"); err == nil {
		return tryRead("local.yaml")
	}

	// 4) Только ENV.
	if err := cleanenv.ReadEnv(&cfg); err != nil {
		return nil, fmt.Errorf("config not found: provide --config, CONFIG_PATH, local.yaml or env vars: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &cfg, nil
}
