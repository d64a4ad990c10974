package config

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/thruflo/slidesync/internal/auth"
	"gopkg.in/yaml.v3"
)

// Default values for Config.
const (
	DefaultIdentityRange = 1024
	DefaultRelayPort     = 9090
	DefaultDirName       = ".slidesync"
)

// DefaultConfig returns a Config with default values.
func DefaultConfig() Config {
	return Config{
		Multiplex: Multiplex{
			IdentityRange: DefaultIdentityRange,
		},
		Debug: Debug{
			DuringInit: true,
			AfterInit:  false,
		},
		Relay: Relay{
			Port:          DefaultRelayPort,
			HashAlgorithm: string(auth.DefaultAlgorithm),
		},
	}
}

// ValidationError represents a configuration validation error.
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("validation error: %s: %s", e.Field, e.Message)
}

// IsValidationError checks if an error is a ValidationError.
func IsValidationError(err error) bool {
	var ve ValidationError
	return errors.As(err, &ve)
}

// Load reads .slidesync/config.yaml under basePath and applies overrides from
// .slidesync/.env and then from the process environment.
func Load(basePath string) (*Config, error) {
	cfg, err := LoadConfig(basePath)
	if err != nil {
		return nil, err
	}

	env, err := LoadEnvFile(basePath)
	if err != nil {
		return nil, err
	}
	for _, key := range []string{EnvChannelID, EnvRelayAddress, EnvSecret} {
		if v, ok := os.LookupEnv(key); ok {
			env[key] = v
		}
	}
	ApplyEnv(cfg, env)

	return cfg, nil
}

// LoadConfig reads and parses .slidesync/config.yaml from basePath.
// If the file doesn't exist, returns the default config.
func LoadConfig(basePath string) (*Config, error) {
	configPath := filepath.Join(basePath, DefaultDirName, "config.yaml")

	data, err := os.ReadFile(configPath)
	if err != nil {
		if os.IsNotExist(err) {
			cfg := DefaultConfig()
			return &cfg, nil
		}
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	return ParseConfig(data)
}

// ParseConfig parses YAML config data on top of the defaults and validates it.
func ParseConfig(data []byte) (*Config, error) {
	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	if err := ValidateConfig(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// ValidateConfig checks that all config values are valid. Missing channel or
// relay settings are not errors: they leave synchronization inactive.
func ValidateConfig(cfg *Config) error {
	if cfg.Multiplex.IdentityRange <= 0 {
		return ValidationError{Field: "multiplex.identity_range", Message: "must be positive"}
	}
	return ValidateRelayConfig(&cfg.Relay)
}

// ValidateRelayConfig checks that relay config values are valid.
func ValidateRelayConfig(cfg *Relay) error {
	if cfg.Port < 0 || cfg.Port > 65535 {
		return ValidationError{Field: "relay.port", Message: "must be between 0 and 65535"}
	}
	if _, err := auth.ParseAlgorithm(cfg.HashAlgorithm); err != nil {
		return ValidationError{Field: "relay.hash_algorithm", Message: err.Error()}
	}
	return nil
}

// ApplyEnv overrides multiplex settings with any non-empty values in env.
func ApplyEnv(cfg *Config, env map[string]string) {
	if v := env[EnvChannelID]; v != "" {
		cfg.Multiplex.ChannelID = v
	}
	if v := env[EnvRelayAddress]; v != "" {
		cfg.Multiplex.RelayAddress = v
	}
	if v := env[EnvSecret]; v != "" {
		cfg.Multiplex.Secret = v
	}
}

// Save writes cfg to .slidesync/config.yaml under basePath.
func Save(basePath string, cfg *Config) error {
	dir := filepath.Join(basePath, DefaultDirName)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	// The file may hold the channel secret.
	if err := os.WriteFile(filepath.Join(dir, "config.yaml"), data, 0o600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

// LoadEnvFile parses .slidesync/.env into a map of key-value pairs.
// The file format is KEY=VALUE per line. Lines starting with # are comments.
// A missing file yields an empty map.
func LoadEnvFile(basePath string) (map[string]string, error) {
	envPath := filepath.Join(basePath, DefaultDirName, ".env")

	file, err := os.Open(envPath)
	if err != nil {
		if os.IsNotExist(err) {
			return make(map[string]string), nil
		}
		return nil, fmt.Errorf("failed to open env file: %w", err)
	}
	defer file.Close()

	env := make(map[string]string)
	scanner := bufio.NewScanner(file)
	lineNum := 0
	for scanner.Scan() {
		lineNum++
		line := strings.TrimSpace(scanner.Text())

		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		key, value, ok := strings.Cut(line, "=")
		if !ok {
			return nil, fmt.Errorf("invalid env file line %d: missing '='", lineNum)
		}
		key = strings.TrimSpace(strings.TrimPrefix(key, "export "))
		value = strings.TrimSpace(value)

		// Strip surrounding quotes (single or double)
		if len(value) >= 2 {
			if (value[0] == '"' && value[len(value)-1] == '"') ||
				(value[0] == '\'' && value[len(value)-1] == '\'') {
				value = value[1 : len(value)-1]
			}
		}

		if key == "" {
			return nil, fmt.Errorf("invalid env file line %d: empty key", lineNum)
		}

		env[key] = value
	}

	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read env file: %w", err)
	}

	return env, nil
}
