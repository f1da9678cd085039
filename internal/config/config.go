// Package config handles loading and validating the Bake Assist configuration.
// Config is stored at ~/.bakeassist/bakeassist.yaml and can be overridden with
// BAKEASSIST_* environment variables.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/goccy/go-yaml"
	"github.com/spf13/viper"
)

const envPrefix = "BAKEASSIST"

// Config is the top-level Bake Assist configuration.
type Config struct {
	Server    ServerConfig    `mapstructure:"server" yaml:"server"`
	Database  DatabaseConfig  `mapstructure:"database" yaml:"database"`
	Model     ModelConfig     `mapstructure:"model" yaml:"model"`
	Tools     ToolsConfig     `mapstructure:"tools" yaml:"tools"`
	RateLimit RateLimitConfig `mapstructure:"rate_limit" yaml:"rate_limit"`
	TaskLog   TaskLogConfig   `mapstructure:"task_log" yaml:"task_log"`
	Log       LogConfig       `mapstructure:"log" yaml:"log"`
}

// ServerConfig configures the HTTP server.
type ServerConfig struct {
	Bind         string        `mapstructure:"bind" yaml:"bind" validate:"required"`
	Port         int           `mapstructure:"port" yaml:"port" validate:"min=1,max=65535"`
	Mode         string        `mapstructure:"mode" yaml:"mode" validate:"oneof=debug release test"`
	CORSOrigins  []string      `mapstructure:"cors_origins" yaml:"cors_origins"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout" yaml:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout" yaml:"write_timeout"`
}

// DatabaseConfig configures the Postgres connection.
type DatabaseConfig struct {
	URL          string        `mapstructure:"url" yaml:"url" validate:"required"`
	QueryTimeout time.Duration `mapstructure:"query_timeout" yaml:"query_timeout" validate:"gt=0"`
}

// ModelConfig configures the language-model backend.
type ModelConfig struct {
	Provider    string        `mapstructure:"provider" yaml:"provider" validate:"required"`
	Name        string        `mapstructure:"name" yaml:"name" validate:"required"`
	BaseURL     string        `mapstructure:"base_url" yaml:"base_url,omitempty"`
	APIKey      string        `mapstructure:"api_key" yaml:"api_key,omitempty"`
	Timeout     time.Duration `mapstructure:"timeout" yaml:"timeout" validate:"gt=0"`
	Temperature float64       `mapstructure:"temperature" yaml:"temperature" validate:"min=0,max=2"`
}

// ToolsConfig bounds tool execution.
type ToolsConfig struct {
	Timeout time.Duration `mapstructure:"timeout" yaml:"timeout" validate:"gt=0"`
}

// RateLimitConfig configures per-customer chat rate limiting.
type RateLimitConfig struct {
	Enabled  bool          `mapstructure:"enabled" yaml:"enabled"`
	Backend  string        `mapstructure:"backend" yaml:"backend" validate:"oneof=memory redis"`
	Requests int           `mapstructure:"requests" yaml:"requests" validate:"min=1"`
	Window   time.Duration `mapstructure:"window" yaml:"window" validate:"gt=0"`
	Redis    RedisConfig   `mapstructure:"redis" yaml:"redis"`
}

// RedisConfig holds the Redis connection used by the redis rate limit backend.
type RedisConfig struct {
	Addr     string `mapstructure:"addr" yaml:"addr"`
	Password string `mapstructure:"password" yaml:"password,omitempty"`
	DB       int    `mapstructure:"db" yaml:"db"`
}

// TaskLogConfig configures the SQLite audit log of chat turns.
type TaskLogConfig struct {
	Enabled    bool   `mapstructure:"enabled" yaml:"enabled"`
	Path       string `mapstructure:"path" yaml:"path"`
	MaxAgeDays int    `mapstructure:"max_age_days" yaml:"max_age_days" validate:"min=0"`
	MaxRecords int    `mapstructure:"max_records" yaml:"max_records" validate:"min=0"`
}

// LogConfig configures the rotating file logger.
type LogConfig struct {
	Dir        string `mapstructure:"dir" yaml:"dir"`
	Level      string `mapstructure:"level" yaml:"level" validate:"oneof=debug info warn error"`
	Stderr     bool   `mapstructure:"stderr" yaml:"stderr"`
	MaxAgeDays int    `mapstructure:"max_age_days" yaml:"max_age_days" validate:"min=0"`
	MaxSizeMB  int    `mapstructure:"max_size_mb" yaml:"max_size_mb" validate:"min=0"`
}

// Default returns a Config with sensible defaults.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Bind:         "127.0.0.1",
			Port:         5000,
			Mode:         "release",
			CORSOrigins:  []string{"*"},
			ReadTimeout:  30 * time.Second,
			WriteTimeout: 3 * time.Minute,
		},
		Database: DatabaseConfig{
			URL:          "postgres://postgres@localhost:5432/bakery_erp_sim?sslmode=disable",
			QueryTimeout: 5 * time.Second,
		},
		Model: ModelConfig{
			Provider: "ollama",
			Name:     "deepseek-r1",
			Timeout:  90 * time.Second,
		},
		Tools: ToolsConfig{
			Timeout: 10 * time.Second,
		},
		RateLimit: RateLimitConfig{
			Enabled:  true,
			Backend:  "memory",
			Requests: 30,
			Window:   time.Minute,
			Redis: RedisConfig{
				Addr: "localhost:6379",
			},
		},
		TaskLog: TaskLogConfig{
			Enabled:    true,
			Path:       filepath.Join(ConfigDir(), "tasks.db"),
			MaxAgeDays: 30,
			MaxRecords: 10000,
		},
		Log: LogConfig{
			Dir:        filepath.Join(ConfigDir(), "logs"),
			Level:      "info",
			Stderr:     true,
			MaxAgeDays: 7,
			MaxSizeMB:  50,
		},
	}
}

// ConfigDir returns the Bake Assist config directory (~/.bakeassist).
func ConfigDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".bakeassist"
	}
	return filepath.Join(home, ".bakeassist")
}

// ConfigPath returns the path to the main config file.
// BAKEASSIST_CONFIG takes precedence over the default location.
func ConfigPath() string {
	if p := os.Getenv(envPrefix + "_CONFIG"); p != "" {
		return p
	}
	return filepath.Join(ConfigDir(), "bakeassist.yaml")
}

// Load reads the config file (if present), applies environment overrides
// and validates the result. A missing file yields defaults.
func Load() (*Config, error) {
	return LoadFile(ConfigPath())
}

// LoadFile is Load for an explicit path.
func LoadFile(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigType("yaml")
	setDefaults(v, Default())

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if _, err := os.Stat(path); err == nil {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", path, err)
		}
	} else if !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("read config: %w", err)
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}

	applyEnvOverrides(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Save writes the config to ConfigPath as YAML.
func Save(cfg *Config) error {
	path := ConfigPath()

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create config dir: %w", err)
	}

	data, err := Marshal(cfg)
	if err != nil {
		return err
	}

	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("write config: %w", err)
	}
	return nil
}

// Marshal renders the config as YAML.
func Marshal(cfg *Config) ([]byte, error) {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return nil, fmt.Errorf("marshal config: %w", err)
	}
	return data, nil
}

var validate = validator.New()

// Validate checks field constraints.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			fields := make([]string, 0, len(verrs))
			for _, fe := range verrs {
				fields = append(fields, fmt.Sprintf("%s (%s)", fe.Namespace(), fe.Tag()))
			}
			return fmt.Errorf("invalid config: %s", strings.Join(fields, ", "))
		}
		return fmt.Errorf("invalid config: %w", err)
	}
	return nil
}

// ListenAddr returns bind:port.
func (c *Config) ListenAddr() string {
	return fmt.Sprintf("%s:%d", c.Server.Bind, c.Server.Port)
}

// setDefaults registers every key so AutomaticEnv can see it during Unmarshal.
func setDefaults(v *viper.Viper, d *Config) {
	v.SetDefault("server.bind", d.Server.Bind)
	v.SetDefault("server.port", d.Server.Port)
	v.SetDefault("server.mode", d.Server.Mode)
	v.SetDefault("server.cors_origins", d.Server.CORSOrigins)
	v.SetDefault("server.read_timeout", d.Server.ReadTimeout)
	v.SetDefault("server.write_timeout", d.Server.WriteTimeout)

	v.SetDefault("database.url", d.Database.URL)
	v.SetDefault("database.query_timeout", d.Database.QueryTimeout)

	v.SetDefault("model.provider", d.Model.Provider)
	v.SetDefault("model.name", d.Model.Name)
	v.SetDefault("model.base_url", d.Model.BaseURL)
	v.SetDefault("model.api_key", d.Model.APIKey)
	v.SetDefault("model.timeout", d.Model.Timeout)
	v.SetDefault("model.temperature", d.Model.Temperature)

	v.SetDefault("tools.timeout", d.Tools.Timeout)

	v.SetDefault("rate_limit.enabled", d.RateLimit.Enabled)
	v.SetDefault("rate_limit.backend", d.RateLimit.Backend)
	v.SetDefault("rate_limit.requests", d.RateLimit.Requests)
	v.SetDefault("rate_limit.window", d.RateLimit.Window)
	v.SetDefault("rate_limit.redis.addr", d.RateLimit.Redis.Addr)
	v.SetDefault("rate_limit.redis.password", d.RateLimit.Redis.Password)
	v.SetDefault("rate_limit.redis.db", d.RateLimit.Redis.DB)

	v.SetDefault("task_log.enabled", d.TaskLog.Enabled)
	v.SetDefault("task_log.path", d.TaskLog.Path)
	v.SetDefault("task_log.max_age_days", d.TaskLog.MaxAgeDays)
	v.SetDefault("task_log.max_records", d.TaskLog.MaxRecords)

	v.SetDefault("log.dir", d.Log.Dir)
	v.SetDefault("log.level", d.Log.Level)
	v.SetDefault("log.stderr", d.Log.Stderr)
	v.SetDefault("log.max_age_days", d.Log.MaxAgeDays)
	v.SetDefault("log.max_size_mb", d.Log.MaxSizeMB)
}

// applyEnvOverrides honours the conventional variables used by the
// surrounding tooling when no BAKEASSIST_* equivalent is set.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("DATABASE_URL"); v != "" && os.Getenv(envPrefix+"_DATABASE_URL") == "" {
		cfg.Database.URL = v
	}
	if v := os.Getenv("OLLAMA_HOST"); v != "" && cfg.Model.Provider == "ollama" && os.Getenv(envPrefix+"_MODEL_BASE_URL") == "" {
		if !strings.Contains(v, "://") {
			v = "http://" + v
		}
		cfg.Model.BaseURL = v
	}
	if v := os.Getenv("OPENAI_API_KEY"); v != "" && cfg.Model.APIKey == "" {
		cfg.Model.APIKey = v
	}
}
