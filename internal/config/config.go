// Package config builds the process-wide configuration once at startup from
// defaults, an optional YAML file, a .env file and the environment.
package config

import (
	"time"
)

// Config represents the root configuration structure
type Config struct {
	Server ServerConfig `mapstructure:"server" yaml:"server"`
	// Debug forces debug logging, including raw and cleaned model output.
	Debug bool      `mapstructure:"debug" yaml:"debug"`
	Log   LogConfig `mapstructure:"log" yaml:"log"`
	// DefaultCredential is used when a request carries no credential.
	DefaultCredential string `mapstructure:"default_credential" yaml:"default_credential"`
	// RequestTimeout bounds every outbound provider call.
	RequestTimeout time.Duration             `mapstructure:"request_timeout" yaml:"request_timeout" validate:"gt=0"`
	Generation     GenerationConfig          `mapstructure:"generation" yaml:"generation"`
	Strategy       StrategyConfig            `mapstructure:"strategy" yaml:"strategy"`
	Providers      map[string]ProviderConfig `mapstructure:"providers" yaml:"providers" validate:"dive,keys,oneof=openai openrouter ollama gemini,endkeys"`
	Tracing        TracingConfig             `mapstructure:"tracing" yaml:"tracing"`
	Metrics        MetricsConfig             `mapstructure:"metrics" yaml:"metrics"`
}

// ServerConfig configures the HTTP server
type ServerConfig struct {
	Host            string        `mapstructure:"host" yaml:"host"`
	Port            int           `mapstructure:"port" yaml:"port" validate:"min=1,max=65535"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout" yaml:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout" yaml:"write_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout" yaml:"shutdown_timeout"`
}

type LogConfig struct {
	Level  string `mapstructure:"level" yaml:"level" validate:"oneof=debug info warn error"`
	Format string `mapstructure:"format" yaml:"format" validate:"oneof=text json"`
}

// GenerationConfig holds the request defaults and prompt settings.
type GenerationConfig struct {
	TargetLanguage string  `mapstructure:"target_language" yaml:"target_language" validate:"required"`
	Instruction    string  `mapstructure:"instruction" yaml:"instruction" validate:"required"`
	SystemPrompt   string  `mapstructure:"system_prompt" yaml:"system_prompt" validate:"required"`
	Temperature    float32 `mapstructure:"temperature" yaml:"temperature" validate:"gte=0,lte=2"`
	// ExamplePath replaces the built-in example payload when set.
	ExamplePath    string `mapstructure:"example_path" yaml:"example_path"`
	ExtractionMode string `mapstructure:"extraction_mode" yaml:"extraction_mode" validate:"omitempty,oneof=greedy balanced"`
}

type StrategyConfig struct {
	DefaultProvider ResolutionStrategyConfig `mapstructure:"default_provider" yaml:"default_provider"`
	// ModelFilter narrows the OpenAI model list; empty keeps everything.
	ModelFilter string `mapstructure:"model_filter" yaml:"model_filter"`
}

// ResolutionStrategyConfig selects how the default provider is chosen.
type ResolutionStrategyConfig struct {
	Type          string `mapstructure:"type" yaml:"type" validate:"omitempty,oneof=local_first expression"`
	Expression    string `mapstructure:"expression" yaml:"expression" validate:"required_if=Type expression"`
	LocalProvider string `mapstructure:"local_provider" yaml:"local_provider"`
	Fallback      string `mapstructure:"fallback" yaml:"fallback"`
}

// ProviderConfig configures a specific upstream provider
type ProviderConfig struct {
	Enabled      bool   `mapstructure:"enabled" yaml:"enabled"`
	BaseURL      string `mapstructure:"base_url" yaml:"base_url" validate:"omitempty,url"`
	DefaultModel string `mapstructure:"default_model" yaml:"default_model"`
	Referer      string `mapstructure:"referer" yaml:"referer,omitempty"`
}

type TracingConfig struct {
	Enabled     bool    `mapstructure:"enabled" yaml:"enabled"`
	ServiceName string  `mapstructure:"service_name" yaml:"service_name"`
	Endpoint    string  `mapstructure:"endpoint" yaml:"endpoint" validate:"required_if=Enabled true"`
	SampleRate  float64 `mapstructure:"sample_rate" yaml:"sample_rate" validate:"gte=0,lte=1"`
}

type MetricsConfig struct {
	Enabled bool   `mapstructure:"enabled" yaml:"enabled"`
	Path    string `mapstructure:"path" yaml:"path"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Host:            "127.0.0.1",
			Port:            5000,
			ReadTimeout:     30 * time.Second,
			WriteTimeout:    180 * time.Second,
			ShutdownTimeout: 10 * time.Second,
		},
		Log:            LogConfig{Level: "info", Format: "text"},
		RequestTimeout: 120 * time.Second,
		Generation: GenerationConfig{
			TargetLanguage: "ru",
			Instruction:    "Выбери все глаголы и переведи их",
			SystemPrompt:   "Ты помощник Cruise Learn, создающий учебные данные.",
			Temperature:    0.2,
			ExtractionMode: "greedy",
		},
		Strategy: StrategyConfig{
			DefaultProvider: ResolutionStrategyConfig{
				Type:          "local_first",
				LocalProvider: "ollama",
				Fallback:      "openai",
			},
			ModelFilter: `lower(ID) contains "gpt" || lower(ID) contains "o" || lower(ID) contains "mini"`,
		},
		Providers: map[string]ProviderConfig{
			"openai": {
				Enabled: true,
				BaseURL: "https://api.openai.com/v1",
			},
			"openrouter": {
				Enabled: true,
				BaseURL: "https://openrouter.ai/api/v1",
				Referer: "https://cruiselearn.app",
			},
			"ollama": {
				Enabled: true,
				BaseURL: "http://localhost:11434",
			},
			"gemini": {
				Enabled:      true,
				DefaultModel: "gemini-1.5-flash",
			},
		},
		Tracing: TracingConfig{ServiceName: "chapter-relay", SampleRate: 1},
		Metrics: MetricsConfig{Enabled: true, Path: "/metrics"},
	}
}

// Provider returns the settings for name and whether it is enabled.
func (c *Config) Provider(name string) (ProviderConfig, bool) {
	p, ok := c.Providers[name]
	return p, ok && p.Enabled
}
