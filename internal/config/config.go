package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/PIYUSH-SATIYA/videoTubeBackend/internal/security"
	base "github.com/PIYUSH-SATIYA/videoTubeBackend/libs/config"
)

type DBConfig struct {
	Host     string
	Port     int
	Name     string
	User     string
	Password string
	SSLMode  string
}

type RateLimitRedisConfig struct {
	Addr     string
	Password string
	DB       int
	Prefix   string
}

type RateLimitConfig struct {
	LoginLimit int
	Window     time.Duration
	Redis      RateLimitRedisConfig
}

type AssetsConfig struct {
	BaseURL string
	APIKey  string
	Timeout time.Duration
	TempDir string
}

type KafkaConfig struct {
	Brokers []string
}

type Config struct {
	App                base.AppConfig
	AccessTokenSecret  string
	RefreshTokenSecret string
	AccessTokenTTL     time.Duration
	RefreshTokenTTL    time.Duration
	Argon2             security.Argon2Params
	DB                 DBConfig
	RateLimit          RateLimitConfig
	Assets             AssetsConfig
	Kafka              KafkaConfig
}

func Load() (*Config, error) {
	appCfg, err := base.Load(os.Getenv("VIDEOTUBE_CONFIG"))
	if err != nil {
		return nil, err
	}

	cfg := &Config{
		App:                *appCfg,
		AccessTokenSecret:  envString("VIDEOTUBE_ACCESS_TOKEN_SECRET", ""),
		RefreshTokenSecret: envString("VIDEOTUBE_REFRESH_TOKEN_SECRET", ""),
		AccessTokenTTL:     envDuration("VIDEOTUBE_ACCESS_TOKEN_TTL", 15*time.Minute),
		RefreshTokenTTL:    envDuration("VIDEOTUBE_REFRESH_TOKEN_TTL", 10*24*time.Hour),
		Argon2: security.Argon2Params{
			Memory:      uint32(envInt("VIDEOTUBE_ARGON2_MEMORY", 64*1024)),
			Iterations:  uint32(envInt("VIDEOTUBE_ARGON2_ITERATIONS", 3)),
			Parallelism: uint8(envInt("VIDEOTUBE_ARGON2_PARALLELISM", 2)),
			SaltLength:  uint32(envInt("VIDEOTUBE_ARGON2_SALT_LENGTH", 16)),
			KeyLength:   uint32(envInt("VIDEOTUBE_ARGON2_KEY_LENGTH", 32)),
		},
		DB: DBConfig{
			Host:     envString("POSTGRES_HOST", "localhost"),
			Port:     envInt("POSTGRES_PORT", 5432),
			Name:     envString("POSTGRES_DB", "videotube"),
			User:     envString("POSTGRES_USER", "videotube"),
			Password: envString("POSTGRES_PASSWORD", "videotube"),
			SSLMode:  envString("POSTGRES_SSLMODE", "disable"),
		},
		RateLimit: RateLimitConfig{
			LoginLimit: envInt("VIDEOTUBE_LOGIN_RATE_LIMIT", 10),
			Window:     envDuration("VIDEOTUBE_LOGIN_RATE_WINDOW", 1*time.Minute),
			Redis: RateLimitRedisConfig{
				Addr:     envString("VIDEOTUBE_RATE_LIMIT_REDIS_ADDR", ""),
				Password: envString("VIDEOTUBE_RATE_LIMIT_REDIS_PASSWORD", ""),
				DB:       envInt("VIDEOTUBE_RATE_LIMIT_REDIS_DB", 0),
				Prefix:   envString("VIDEOTUBE_RATE_LIMIT_REDIS_PREFIX", "videotube:login:rl:"),
			},
		},
		Assets: AssetsConfig{
			BaseURL: envString("VIDEOTUBE_ASSETS_BASE_URL", ""),
			APIKey:  envString("VIDEOTUBE_ASSETS_API_KEY", ""),
			Timeout: envDuration("VIDEOTUBE_ASSETS_TIMEOUT", 30*time.Second),
			TempDir: envString("VIDEOTUBE_ASSETS_TEMP_DIR", ""),
		},
		Kafka: KafkaConfig{
			Brokers: envList("VIDEOTUBE_KAFKA_BROKERS"),
		},
	}

	if cfg.AccessTokenSecret == "" {
		return nil, fmt.Errorf("VIDEOTUBE_ACCESS_TOKEN_SECRET must be set")
	}
	if cfg.RefreshTokenSecret == "" {
		return nil, fmt.Errorf("VIDEOTUBE_REFRESH_TOKEN_SECRET must be set")
	}
	if cfg.AccessTokenSecret == cfg.RefreshTokenSecret {
		return nil, fmt.Errorf("access and refresh token secrets must differ")
	}
	if cfg.Assets.BaseURL == "" {
		return nil, fmt.Errorf("VIDEOTUBE_ASSETS_BASE_URL must be set")
	}

	return cfg, nil
}

func envString(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func envInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}

func envDuration(key string, def time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return def
}

func envList(key string) []string {
	v := os.Getenv(key)
	if v == "" {
		return nil
	}
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
