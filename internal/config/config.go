// Package config loads talkback settings from defaults, an optional TOML
// file, .env files and the environment, in that order.
package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/RichardoC/talkback/internal/kv"
	"github.com/RichardoC/talkback/internal/models"
	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

const DefaultFile = "talkback.toml"

var DefaultEnvFiles = []string{".env", ".env.local"}

type Config struct {
	Server      ServerConfig      `toml:"server" envPrefix:"TALKBACK_SERVER_"`
	Storage     StorageConfig     `toml:"storage" envPrefix:"TALKBACK_STORAGE_"`
	LLM         LLMConfig         `toml:"llm" envPrefix:"TALKBACK_LLM_"`
	Log         LogConfig         `toml:"log" envPrefix:"TALKBACK_LOG_"`
	Metrics     MetricsConfig     `toml:"metrics" envPrefix:"TALKBACK_METRICS_"`
	Credentials CredentialsConfig `toml:"credentials"`
}

type ServerConfig struct {
	Addr string `toml:"addr" env:"ADDR"`
	Mode string `toml:"mode" env:"MODE"` // debug/test/release
}

type StorageConfig struct {
	Driver        string `toml:"driver" env:"DRIVER"` // sqlite/redis/memory
	Path          string `toml:"path" env:"PATH"`
	RedisAddr     string `toml:"redis_addr" env:"REDIS_ADDR"`
	RedisPassword string `toml:"redis_password" env:"REDIS_PASSWORD"`
	RedisDB       int    `toml:"redis_db" env:"REDIS_DB"`
	Prefix        string `toml:"prefix" env:"PREFIX"`
}

type LLMConfig struct {
	RequestTimeoutSeconds int    `toml:"request_timeout_seconds" env:"REQUEST_TIMEOUT_SECONDS"`
	OpenAIBaseURL         string `toml:"openai_base_url" env:"OPENAI_BASE_URL"`
	DeepSeekBaseURL       string `toml:"deepseek_base_url" env:"DEEPSEEK_BASE_URL"`
	PerplexityBaseURL     string `toml:"perplexity_base_url" env:"PERPLEXITY_BASE_URL"`
}

type LogConfig struct {
	Level       string `toml:"level" env:"LEVEL"`
	Development bool   `toml:"development" env:"DEVELOPMENT"`
}

type MetricsConfig struct {
	Enabled bool   `toml:"enabled" env:"ENABLED"`
	Path    string `toml:"path" env:"PATH"`
}

// CredentialsConfig seeds provider API keys into the settings store when it
// has none.
type CredentialsConfig struct {
	OpenAI     string `toml:"openai" env:"OPENAI_API_KEY"`
	DeepSeek   string `toml:"deepseek" env:"DEEPSEEK_API_KEY"`
	Perplexity string `toml:"perplexity" env:"PERPLEXITY_API_KEY"`
}

func Default() *Config {
	return &Config{
		Server: ServerConfig{Addr: ":8100", Mode: "release"},
		Storage: StorageConfig{
			Driver: kv.DriverSQLite,
			Path:   "talkback.db",
			Prefix: "talkback",
		},
		LLM:     LLMConfig{RequestTimeoutSeconds: 60},
		Log:     LogConfig{Level: "info"},
		Metrics: MetricsConfig{Enabled: false, Path: "/metrics"},
	}
}

// Load reads the TOML file at path over the defaults. A missing file is an
// error only when required is set.
func Load(path string, required bool) (*Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}
	if _, err := os.Stat(path); err != nil {
		if errors.Is(err, os.ErrNotExist) && !required {
			return cfg, nil
		}
		return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
	}
	if _, err := toml.DecodeFile(path, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
	}
	return cfg, nil
}

// LoadEnv loads the .env files that exist and reports how many did.
// Variables already set in the environment are not overwritten.
func LoadEnv(files []string) (int, error) {
	existing := make([]string, 0, len(files))
	for _, f := range files {
		if _, err := os.Stat(f); err == nil {
			existing = append(existing, f)
		}
	}
	if len(existing) == 0 {
		return 0, nil
	}
	return len(existing), godotenv.Load(existing...)
}

// ApplyEnv overrides cfg with any variables set in the environment.
func ApplyEnv(cfg *Config) error {
	if err := env.Parse(cfg); err != nil {
		return fmt.Errorf("failed to parse environment: %w", err)
	}
	return nil
}

// Resolve runs the whole chain: defaults, file, .env files, environment,
// validation.
func Resolve(path string, required bool, envFiles []string) (*Config, error) {
	cfg, err := Load(path, required)
	if err != nil {
		return nil, err
	}
	if _, err := LoadEnv(envFiles); err != nil {
		return nil, fmt.Errorf("failed to load env files: %w", err)
	}
	if err := ApplyEnv(cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) Validate() error {
	switch c.Storage.Driver {
	case kv.DriverSQLite:
		if c.Storage.Path == "" {
			return errors.New("storage.path is required for the sqlite driver")
		}
	case kv.DriverRedis:
		if c.Storage.RedisAddr == "" {
			return errors.New("storage.redis_addr is required for the redis driver")
		}
	case kv.DriverMemory:
	default:
		return fmt.Errorf("unknown storage driver %q", c.Storage.Driver)
	}
	switch c.Server.Mode {
	case "debug", "release", "test":
	default:
		return fmt.Errorf("unknown server mode %q", c.Server.Mode)
	}
	if c.LLM.RequestTimeoutSeconds < 0 {
		return fmt.Errorf("llm.request_timeout_seconds must not be negative, got %d", c.LLM.RequestTimeoutSeconds)
	}
	return nil
}

func (c *Config) StorageOptions() kv.Options {
	return kv.Options{
		Driver:        c.Storage.Driver,
		Path:          c.Storage.Path,
		RedisAddr:     c.Storage.RedisAddr,
		RedisPassword: c.Storage.RedisPassword,
		RedisDB:       c.Storage.RedisDB,
		Prefix:        c.Storage.Prefix,
	}
}

// RequestTimeout is zero when requests should not be bounded.
func (c *Config) RequestTimeout() time.Duration {
	return time.Duration(c.LLM.RequestTimeoutSeconds) * time.Second
}

// BaseURLs returns the configured base URL overrides.
func (c *Config) BaseURLs() map[models.Provider]string {
	urls := map[models.Provider]string{}
	if c.LLM.OpenAIBaseURL != "" {
		urls[models.ProviderOpenAI] = c.LLM.OpenAIBaseURL
	}
	if c.LLM.DeepSeekBaseURL != "" {
		urls[models.ProviderDeepSeek] = c.LLM.DeepSeekBaseURL
	}
	if c.LLM.PerplexityBaseURL != "" {
		urls[models.ProviderPerplexity] = c.LLM.PerplexityBaseURL
	}
	return urls
}

func (c CredentialsConfig) ByProvider() map[models.Provider]string {
	return map[models.Provider]string{
		models.ProviderOpenAI:     c.OpenAI,
		models.ProviderDeepSeek:   c.DeepSeek,
		models.ProviderPerplexity: c.Perplexity,
	}
}
