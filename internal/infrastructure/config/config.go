package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config is the application configuration.
type Config struct {
	Server       ServerConfig       `mapstructure:"server"`
	Database     DatabaseConfig     `mapstructure:"database"`
	Log          LogConfig          `mapstructure:"log"`
	LLM          LLMConfig          `mapstructure:"llm"`
	Planner      PlannerConfig      `mapstructure:"planner"`
	Executor     ExecutorConfig     `mapstructure:"executor"`
	Orchestrator OrchestratorConfig `mapstructure:"orchestrator"`
	EventBus     EventBusConfig     `mapstructure:"event_bus"`
}

// ServerConfig configures the HTTP and websocket surface.
type ServerConfig struct {
	Host string `mapstructure:"host"`
	Port int    `mapstructure:"port"`
	Mode string `mapstructure:"mode"` // debug, release
}

// DatabaseConfig configures persistence.
type DatabaseConfig struct {
	Type string `mapstructure:"type"` // sqlite, postgres, memory
	DSN  string `mapstructure:"dsn"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// LLMConfig configures providers, routing, and pricing.
type LLMConfig struct {
	DefaultProvider string           `mapstructure:"default_provider"`
	Providers       []ProviderConfig `mapstructure:"providers"`

	// PricingOverrides is an optional YAML file with per-model price
	// overrides, watched for changes at runtime.
	PricingOverrides string `mapstructure:"pricing_overrides"`
}

// ProviderConfig configures one provider adapter.
type ProviderConfig struct {
	Name         string   `mapstructure:"name"`
	Type         string   `mapstructure:"type"` // openai (default), anthropic, gemini
	BaseURL      string   `mapstructure:"base_url"`
	APIKey       string   `mapstructure:"api_key"`
	Models       []string `mapstructure:"models"`
	DefaultModel string   `mapstructure:"default_model"`
}

// PlannerConfig configures plan generation.
type PlannerConfig struct {
	Model       string  `mapstructure:"model"`
	Temperature float64 `mapstructure:"temperature"`
	MaxTokens   int     `mapstructure:"max_tokens"`
}

// ExecutorConfig configures step execution and the delegated
// code-execution collaborator.
type ExecutorConfig struct {
	Model   string        `mapstructure:"model"`
	BaseURL string        `mapstructure:"base_url"` // tool executor service, empty = disabled
	Timeout time.Duration `mapstructure:"timeout"`
}

// OrchestratorConfig configures the background sweep loop.
type OrchestratorConfig struct {
	TickInterval time.Duration `mapstructure:"tick_interval"`
}

// EventBusConfig configures the in-process event bus.
type EventBusConfig struct {
	BufferSize int `mapstructure:"buffer_size"`
}

// Load reads configuration in layers: defaults, then the global
// ~/.planwright/config.yaml, then a project-local config.yaml, then
// PLANWRIGHT_* environment variables.
func Load() (*Config, error) {
	v := viper.New()

	setDefaults(v)

	v.SetConfigName("config")
	v.SetConfigType("yaml")

	globalDir := filepath.Join(os.Getenv("HOME"), ".planwright")
	v.AddConfigPath(globalDir)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read global config: %w", err)
		}
	}

	// Project-local config overlays the global one
	for _, localDir := range []string{"./config", "."} {
		localPath := filepath.Join(localDir, "config.yaml")
		if _, err := os.Stat(localPath); err == nil {
			v2 := viper.New()
			v2.SetConfigFile(localPath)
			if err := v2.ReadInConfig(); err == nil {
				_ = v.MergeConfigMap(v2.AllSettings())
			}
			break
		}
	}

	v.SetEnvPrefix("PLANWRIGHT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 18790)
	v.SetDefault("server.mode", "release")

	v.SetDefault("database.type", "sqlite")
	v.SetDefault("database.dsn", "planwright.db")

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")

	v.SetDefault("llm.default_provider", "openai")

	v.SetDefault("planner.model", "gpt-4o")
	v.SetDefault("planner.temperature", 0.2)
	v.SetDefault("planner.max_tokens", 4096)

	v.SetDefault("executor.model", "gpt-4o")
	v.SetDefault("executor.timeout", "5m")

	v.SetDefault("orchestrator.tick_interval", "5s")

	v.SetDefault("event_bus.buffer_size", 256)
}
