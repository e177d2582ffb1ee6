package config

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/shaneisley/collector/pkg/claim"
	"github.com/spf13/viper"
	"go.uber.org/multierr"
)

const (
	defaultBaseURL     = claim.DefaultBaseURL
	defaultHTTPTimeout = claim.DefaultTimeout
	maxHTTPTimeout     = 10 * time.Minute
)

// Account is one set of credentials to claim rewards for
type Account struct {
	Name   string `mapstructure:"name"`
	APIKey string `mapstructure:"api_key"`
	Cookie string `mapstructure:"cookie"` // optional session cookie, empty when absent
}

// HasCookie reports whether a session cookie is configured
func (a Account) HasCookie() bool {
	return a.Cookie != ""
}

// String never prints the API key or cookie
func (a Account) String() string {
	return fmt.Sprintf("%s (api_key=%s, cookie=%t)", a.Name, redact(a.APIKey), a.HasCookie())
}

func redact(secret string) string {
	if len(secret) <= 4 {
		return "****"
	}
	return "****" + secret[len(secret)-4:]
}

// Config holds the configuration for the collector
type Config struct {
	Accounts    []Account     `mapstructure:"tokens"`
	LogLevel    string        `mapstructure:"log_level"`
	LogFormat   string        `mapstructure:"log_format"`
	BaseURL     string        `mapstructure:"base_url"`
	HTTPTimeout time.Duration `mapstructure:"http_timeout"`
	Journal     string        `mapstructure:"journal"`
}

// ValidationError represents a configuration validation error
type ValidationError struct {
	Field   string
	Value   interface{}
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("invalid %s value '%v': %s", e.Field, e.Value, e.Message)
}

// envMappings maps environment variables to config keys
var envMappings = map[string]string{
	"COLLECTOR_LOG_LEVEL":    "log_level",
	"COLLECTOR_LOG_FORMAT":   "log_format",
	"COLLECTOR_BASE_URL":     "base_url",
	"COLLECTOR_HTTP_TIMEOUT": "http_timeout",
	"COLLECTOR_JOURNAL":      "journal",
}

// LoadFromFile loads configuration from a TOML or YAML file plus environment
func LoadFromFile(configFile string) (*Config, error) {
	return Load(configFile, nil, nil)
}

// Load loads configuration with full precedence support:
// CLI flags > environment (COLLECTOR_*) > config file > defaults.
// Only fields named in explicitFields are taken from flagConfig.
func Load(configFile string, flagConfig *Config, explicitFields map[string]bool) (*Config, error) {
	if configFile == "" {
		return nil, fmt.Errorf("no configuration file found (looked for %s)", strings.Join(configNames, ", "))
	}

	v := viper.New()

	// Set defaults
	setDefaults(v)

	v.SetConfigFile(configFile)
	v.SetConfigType(configType(configFile))
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	// Configure environment variable support
	v.SetEnvPrefix("COLLECTOR")
	for envVar, configKey := range envMappings {
		if err := v.BindEnv(configKey, envVar); err != nil {
			return nil, fmt.Errorf("failed to bind %s: %w", envVar, err)
		}
	}

	// Unmarshal into config struct
	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	// Apply CLI flag overrides with explicit field tracking
	if flagConfig != nil && explicitFields != nil {
		config = *config.MergeWithExplicitFlags(flagConfig, explicitFields)
	}

	// Validate final configuration
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return &config, nil
}

// setDefaults sets the default configuration values
func setDefaults(v *viper.Viper) {
	v.SetDefault("log_level", "info")
	v.SetDefault("log_format", "auto")
	v.SetDefault("base_url", defaultBaseURL)
	v.SetDefault("http_timeout", defaultHTTPTimeout)
	v.SetDefault("journal", "")
}

func configType(path string) string {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return "yaml"
	default:
		return "toml"
	}
}

// MergeWithExplicitFlags merges configuration with explicitly set flag values
func (c *Config) MergeWithExplicitFlags(flags *Config, explicitFields map[string]bool) *Config {
	result := *c // Copy base config

	if explicitFields["log_level"] {
		result.LogLevel = flags.LogLevel
	}
	if explicitFields["log_format"] {
		result.LogFormat = flags.LogFormat
	}
	if explicitFields["base_url"] {
		result.BaseURL = flags.BaseURL
	}
	if explicitFields["http_timeout"] {
		result.HTTPTimeout = flags.HTTPTimeout
	}
	if explicitFields["journal"] {
		result.Journal = flags.Journal
	}

	return &result
}

// configNames lists the file names FindConfigFile looks for, in order
var configNames = []string{"tokens.toml", ".collector.toml", "collector.toml", ".collector.yaml", "collector.yaml"}

// FindConfigFile searches for a configuration file in the given directory
func FindConfigFile(dir string) string {
	for _, name := range configNames {
		configPath := filepath.Join(dir, name)
		if _, err := os.Stat(configPath); err == nil {
			return configPath
		}
	}

	return ""
}

// Validate validates the configuration. The returned error combines every
// ValidationError found; use multierr.Errors to inspect them individually.
func (c *Config) Validate() error {
	var errs error

	if len(c.Accounts) == 0 {
		errs = multierr.Append(errs, ValidationError{
			Field:   "tokens",
			Value:   0,
			Message: "at least one account must be configured",
		})
	}

	seen := make(map[string]bool, len(c.Accounts))
	for i, account := range c.Accounts {
		field := fmt.Sprintf("tokens[%d]", i)
		name := strings.TrimSpace(account.Name)
		if name == "" {
			errs = multierr.Append(errs, ValidationError{
				Field:   field + ".name",
				Value:   account.Name,
				Message: "must not be empty",
			})
		} else if seen[name] {
			errs = multierr.Append(errs, ValidationError{
				Field:   field + ".name",
				Value:   account.Name,
				Message: "must be unique",
			})
		}
		seen[name] = true

		if strings.TrimSpace(account.APIKey) == "" {
			errs = multierr.Append(errs, ValidationError{
				Field:   field + ".api_key",
				Value:   "",
				Message: "must not be empty",
			})
		}
	}

	switch c.LogLevel {
	case "debug", "info", "warn", "error":
	default:
		errs = multierr.Append(errs, ValidationError{
			Field:   "log_level",
			Value:   c.LogLevel,
			Message: "must be one of debug, info, warn, error",
		})
	}

	switch c.LogFormat {
	case "auto", "text", "json":
	default:
		errs = multierr.Append(errs, ValidationError{
			Field:   "log_format",
			Value:   c.LogFormat,
			Message: "must be one of auto, text, json",
		})
	}

	if c.HTTPTimeout <= 0 {
		errs = multierr.Append(errs, ValidationError{
			Field:   "http_timeout",
			Value:   c.HTTPTimeout,
			Message: "must be greater than 0",
		})
	}
	if c.HTTPTimeout > maxHTTPTimeout {
		errs = multierr.Append(errs, ValidationError{
			Field:   "http_timeout",
			Value:   c.HTTPTimeout,
			Message: "must be 10 minutes or less",
		})
	}

	if u, err := url.Parse(c.BaseURL); err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		errs = multierr.Append(errs, ValidationError{
			Field:   "base_url",
			Value:   c.BaseURL,
			Message: "must be an absolute http or https URL",
		})
	}

	return errs
}
