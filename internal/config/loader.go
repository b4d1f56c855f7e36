package config

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"chapter-relay/pkg/logger"
)

const (
	// EnvConfigPath overrides the YAML config location.
	EnvConfigPath = "RELAY_CONFIG_PATH"
	// EnvDotEnvPath overrides the .env location (default ./.env).
	EnvDotEnvPath = "RELAY_DOTENV_PATH"
	envPrefix     = "RELAY"
)

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// DefaultPath returns RELAY_CONFIG_PATH or ~/.config/chapter-relay/config.yaml.
func DefaultPath() (string, error) {
	if p := os.Getenv(EnvConfigPath); p != "" {
		return p, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get user home directory: %w", err)
	}
	return filepath.Join(home, ".config", "chapter-relay", "config.yaml"), nil
}

// Load builds the configuration from the default locations.
// Precedence: defaults < config file < .env < environment.
func Load() (*Config, error) {
	dotenv := os.Getenv(EnvDotEnvPath)
	if dotenv == "" {
		dotenv = ".env"
	}
	if err := LoadDotEnv(dotenv); err != nil {
		return nil, err
	}
	path, err := DefaultPath()
	if err != nil {
		return nil, err
	}
	return LoadFrom(path)
}

// LoadFrom reads the YAML file at path, which may be absent, and applies
// environment overrides. RELAY_* variables map onto keys with "." replaced by
// "_" (RELAY_SERVER_PORT). OPENAI_API_KEY and DEBUG_MODE are honoured too.
func LoadFrom(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigType("yaml")

	if err := setDefaults(v); err != nil {
		return nil, err
	}

	content, err := os.ReadFile(path)
	switch {
	case errors.Is(err, os.ErrNotExist):
		logger.Info("config file not found, using defaults and environment", "path", path)
	case err != nil:
		return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
	default:
		if err := v.MergeConfig(bytes.NewReader(content)); err != nil {
			return nil, fmt.Errorf("failed to parse yaml config %s: %w", path, err)
		}
	}

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	if err := v.BindEnv("default_credential", "RELAY_DEFAULT_CREDENTIAL", "OPENAI_API_KEY"); err != nil {
		return nil, err
	}
	if err := v.BindEnv("debug", "RELAY_DEBUG", "DEBUG_MODE"); err != nil {
		return nil, err
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	if cfg.Debug {
		cfg.Log.Level = "debug"
	}
	if err := validator.New().Struct(&cfg); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return &cfg, nil
}

// setDefaults registers every key of Default() so that AutomaticEnv can
// override keys the file never mentions.
func setDefaults(v *viper.Viper) error {
	data, err := yaml.Marshal(Default())
	if err != nil {
		return err
	}
	var tree map[string]any
	if err := yaml.Unmarshal(data, &tree); err != nil {
		return err
	}
	for key, val := range flatten("", tree) {
		v.SetDefault(key, val)
	}
	return nil
}

func flatten(prefix string, m map[string]any) map[string]any {
	out := make(map[string]any)
	for k, val := range m {
		key := k
		if prefix != "" {
			key = prefix + "." + k
		}
		if sub, ok := val.(map[string]any); ok {
			for sk, sv := range flatten(key, sub) {
				out[sk] = sv
			}
			continue
		}
		out[key] = val
	}
	return out
}

// LoadDotEnv exports the variables in path that are not already set. A
// leading UTF-8 byte order mark is ignored. A missing file is not an error.
func LoadDotEnv(path string) error {
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to read %s: %w", path, err)
	}
	vars, err := godotenv.Unmarshal(string(bytes.TrimPrefix(data, utf8BOM)))
	if err != nil {
		return fmt.Errorf("failed to parse %s: %w", path, err)
	}
	for k, val := range vars {
		if _, ok := os.LookupEnv(k); ok {
			continue
		}
		if err := os.Setenv(k, val); err != nil {
			return err
		}
	}
	logger.Debug("loaded dotenv file", "path", path, "vars", len(vars))
	return nil
}

const templateHeader = "# chapter-relay configuration. Every key can be overridden with RELAY_<KEY>,\n# e.g. RELAY_SERVER_PORT=8080 or RELAY_PROVIDERS_OLLAMA_BASE_URL=http://gpu-box:11434.\n"

// WriteTemplate writes the default configuration to path, creating parent
// directories. An existing file is left untouched and reported as an error.
func WriteTemplate(path string) error {
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("config file already exists at %s", path)
	}
	data, err := yaml.Marshal(Default())
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	if err := os.WriteFile(path, append([]byte(templateHeader), data...), 0o644); err != nil {
		return fmt.Errorf("failed to write default config template: %w", err)
	}
	return nil
}
