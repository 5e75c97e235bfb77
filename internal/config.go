package internal

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
	"github.com/spf13/viper"
)

type Config struct {
	Env              string
	LogLevel         string
	Port             uint16
	PriceIncludesTax bool          // Fallback when the store settings cannot be fetched
	SessionTTL       time.Duration // Idle time before an editing session is discarded
	POS              POSConfig
	NATS             NATSConfig
	Worker           WorkerConfig
	RateLimit        RateLimitConfig
}

// POSConfig points at the order and store-settings API.
type POSConfig struct {
	BaseURL string
	Timeout time.Duration
}

// NATSConfig configures change-history publishing. An empty URL disables it.
type NATSConfig struct {
	URL           string
	SubjectPrefix string
}

type WorkerConfig struct {
	Concurrency  int
	QueueSize    int
	MaxRetries   int
	RetryBackoff time.Duration
}

// RateLimitConfig applies per client to /api. A zero rate disables limiting.
type RateLimitConfig struct {
	RequestsPerSecond float64
	Burst             int
}

func NewConfig() (*Config, error) {
	// Try to load .env from current directory, then walk up to find it (max 2 levels)
	err := godotenv.Load()
	if err != nil {
		// Walk up directories to find .env (max 2 parent directories)
		dir, _ := os.Getwd()
		found := false
		for i := 0; i < 2; i++ {
			dir = filepath.Join(dir, "..")
			if err := godotenv.Load(filepath.Join(dir, ".env")); err == nil {
				found = true
				break
			}
		}
		if !found {
			log.Warn().Msg(".env file not found, using environment variables and defaults")
		}
	}

	return LoadConfig(viper.New())
}

// SetDefaults registers every configuration key with its default value.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("env", "dev")
	v.SetDefault("log_level", "info")
	v.SetDefault("port", 3000)
	v.SetDefault("price_includes_tax", false)
	v.SetDefault("session_ttl", "2h")
	v.SetDefault("pos_api_url", "http://localhost:8080")
	v.SetDefault("pos_api_timeout", "10s")
	v.SetDefault("nats_url", "")
	v.SetDefault("nats_subject_prefix", "tabletill")
	v.SetDefault("worker_concurrency", 5)
	v.SetDefault("worker_queue_size", 256)
	v.SetDefault("worker_max_retries", 5)
	v.SetDefault("worker_retry_backoff", "1s")
	v.SetDefault("rate_limit_rps", 10)
	v.SetDefault("rate_limit_burst", 20)
}

// LoadConfig reads configuration from the environment through v. Keys are
// the upper-cased environment variable names, e.g. POS_API_URL.
func LoadConfig(v *viper.Viper) (*Config, error) {
	SetDefaults(v)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	cfg := &Config{
		Env:              v.GetString("env"),
		LogLevel:         v.GetString("log_level"),
		Port:             v.GetUint16("port"),
		PriceIncludesTax: v.GetBool("price_includes_tax"),
		SessionTTL:       v.GetDuration("session_ttl"),
		POS: POSConfig{
			BaseURL: v.GetString("pos_api_url"),
			Timeout: v.GetDuration("pos_api_timeout"),
		},
		NATS: NATSConfig{
			URL:           v.GetString("nats_url"),
			SubjectPrefix: v.GetString("nats_subject_prefix"),
		},
		Worker: WorkerConfig{
			Concurrency:  v.GetInt("worker_concurrency"),
			QueueSize:    v.GetInt("worker_queue_size"),
			MaxRetries:   v.GetInt("worker_max_retries"),
			RetryBackoff: v.GetDuration("worker_retry_backoff"),
		},
		RateLimit: RateLimitConfig{
			RequestsPerSecond: v.GetFloat64("rate_limit_rps"),
			Burst:             v.GetInt("rate_limit_burst"),
		},
	}

	// Validate env
	validEnv := cfg.Env == "dev" || cfg.Env == "prod"
	if !validEnv {
		log.Warn().Str("env", cfg.Env).Msg("Invalid environment. Using default: prod")
		cfg.Env = "prod"
	}

	// Validate log level
	validLevel := cfg.LogLevel == "info" || cfg.LogLevel == "debug" || cfg.LogLevel == "warn" || cfg.LogLevel == "error"
	if !validLevel {
		log.Warn().Str("value", cfg.LogLevel).Msg("Invalid log level. Using default: info")
		cfg.LogLevel = "info"
	}

	u, err := url.Parse(cfg.POS.BaseURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return nil, fmt.Errorf("POS_API_URL must be an absolute http(s) URL, got %q", cfg.POS.BaseURL)
	}
	if cfg.Env == "prod" && u.Scheme != "https" && !strings.HasPrefix(u.Host, "localhost") {
		log.Warn().Str("url", cfg.POS.BaseURL).Msg("POS_API_URL is not using https in production")
	}

	if cfg.POS.Timeout <= 0 {
		return nil, fmt.Errorf("POS_API_TIMEOUT must be positive")
	}
	if cfg.SessionTTL <= 0 {
		return nil, fmt.Errorf("SESSION_TTL must be positive")
	}
	if cfg.Worker.Concurrency <= 0 {
		return nil, fmt.Errorf("WORKER_CONCURRENCY must be at least 1")
	}
	if cfg.Worker.MaxRetries < 0 {
		return nil, fmt.Errorf("WORKER_MAX_RETRIES cannot be negative")
	}

	return cfg, nil
}
