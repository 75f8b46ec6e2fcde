// Package config loads runtime configuration from the process environment
// with optional .env overrides for local development.
package config

import (
	"bufio"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

const (
	defaultEnvFile       = ".env"
	defaultAPIBaseURL    = "http://localhost:8480"
	defaultHTTPTimeout   = 15 * time.Second
	defaultRetryAttempts = 3
	defaultRetryInitial  = 250 * time.Millisecond
	defaultRetryMax      = 2 * time.Second
	defaultStateDirName  = ".arthaus"
)

// Config captures all runtime configuration organised by concern.
type Config struct {
	API   APIConfig
	State StateConfig
}

// APIConfig configures the remote storefront API client.
type APIConfig struct {
	BaseURL       string
	Timeout       time.Duration
	RetryAttempts int
	RetryInitial  time.Duration
	RetryMax      time.Duration
}

// StateConfig locates the local persistent store.
type StateConfig struct {
	Dir string
}

// ValidationError reports configuration fields that failed validation.
type ValidationError struct {
	fields []string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("config: invalid fields: %s", strings.Join(e.fields, ", "))
}

// Fields lists the offending configuration fields.
func (e *ValidationError) Fields() []string {
	out := make([]string, len(e.fields))
	copy(out, e.fields)
	return out
}

// Option customises Load behaviour.
type Option func(*loaderOptions)

type loaderOptions struct {
	envFile      string
	envMap       map[string]string
	useSystemEnv bool
}

// WithEnvFile overrides the .env file path used for local overrides.
func WithEnvFile(path string) Option {
	return func(o *loaderOptions) { o.envFile = path }
}

// WithEnvMap injects an explicit key/value map taking precedence over the
// system environment. Intended for tests.
func WithEnvMap(values map[string]string) Option {
	return func(o *loaderOptions) { o.envMap = values }
}

// WithoutSystemEnv disables reading the process environment.
func WithoutSystemEnv() Option {
	return func(o *loaderOptions) { o.useSystemEnv = false }
}

// Load resolves configuration with precedence dotenv < OS env < explicit map,
// applies defaults, and validates the result.
func Load(opts ...Option) (Config, error) {
	options := loaderOptions{envFile: defaultEnvFile, useSystemEnv: true}
	for _, opt := range opts {
		opt(&options)
	}

	values, err := environmentValues(options)
	if err != nil {
		return Config{}, err
	}

	lookup := func(key string) (string, bool) {
		value, ok := values[key]
		return strings.TrimSpace(value), ok
	}

	cfg := Config{
		API: APIConfig{
			BaseURL:       stringWithDefault(lookup, "STOREFRONT_API_URL", defaultAPIBaseURL),
			Timeout:       durationWithDefault(lookup, "STOREFRONT_HTTP_TIMEOUT", defaultHTTPTimeout),
			RetryAttempts: intWithDefault(lookup, "STOREFRONT_RETRY_ATTEMPTS", defaultRetryAttempts),
			RetryInitial:  durationWithDefault(lookup, "STOREFRONT_RETRY_INITIAL", defaultRetryInitial),
			RetryMax:      durationWithDefault(lookup, "STOREFRONT_RETRY_MAX", defaultRetryMax),
		},
		State: StateConfig{
			Dir: stringWithDefault(lookup, "STOREFRONT_STATE_DIR", defaultStateDir()),
		},
	}

	if err := validateConfig(cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func defaultStateDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return defaultStateDirName
	}
	return filepath.Join(home, defaultStateDirName)
}

func environmentValues(options loaderOptions) (map[string]string, error) {
	values := make(map[string]string)

	dotEnvValues, err := loadDotEnv(options.envFile)
	if err != nil {
		return nil, err
	}
	for key, value := range dotEnvValues {
		values[key] = value
	}

	if options.useSystemEnv {
		for _, entry := range os.Environ() {
			parts := strings.SplitN(entry, "=", 2)
			if len(parts) != 2 || strings.TrimSpace(parts[0]) == "" {
				continue
			}
			values[strings.TrimSpace(parts[0])] = parts[1]
		}
	}

	for key, value := range options.envMap {
		values[key] = value
	}

	return values, nil
}

func validateConfig(cfg Config) error {
	var invalid []string

	parsed, err := url.Parse(cfg.API.BaseURL)
	if err != nil || parsed.Scheme == "" || parsed.Host == "" {
		invalid = append(invalid, "STOREFRONT_API_URL")
	}
	if cfg.API.Timeout <= 0 {
		invalid = append(invalid, "STOREFRONT_HTTP_TIMEOUT")
	}
	if cfg.API.RetryAttempts < 1 {
		invalid = append(invalid, "STOREFRONT_RETRY_ATTEMPTS")
	}
	if cfg.API.RetryInitial <= 0 || cfg.API.RetryMax < cfg.API.RetryInitial {
		invalid = append(invalid, "STOREFRONT_RETRY_MAX")
	}
	if strings.TrimSpace(cfg.State.Dir) == "" {
		invalid = append(invalid, "STOREFRONT_STATE_DIR")
	}

	if len(invalid) > 0 {
		return &ValidationError{fields: invalid}
	}
	return nil
}

func loadDotEnv(path string) (map[string]string, error) {
	if path == "" {
		return nil, nil
	}

	file, err := os.Open(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("config: unable to read %s: %w", path, err)
	}
	defer file.Close()

	scanner := bufio.NewScanner(file)
	values := make(map[string]string)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		if strings.HasPrefix(line, "export ") {
			line = strings.TrimSpace(strings.TrimPrefix(line, "export "))
		}
		parts := strings.SplitN(line, "=", 2)
		if len(parts) != 2 {
			continue
		}
		key := strings.TrimSpace(parts[0])
		if key == "" {
			continue
		}
		values[key] = strings.Trim(strings.TrimSpace(parts[1]), "\"'")
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("config: failed parsing %s: %w", path, err)
	}
	return values, nil
}

func stringWithDefault(lookup func(string) (string, bool), key, fallback string) string {
	if value, ok := lookup(key); ok && value != "" {
		return value
	}
	return fallback
}

func durationWithDefault(lookup func(string) (string, bool), key string, fallback time.Duration) time.Duration {
	if value, ok := lookup(key); ok && value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return fallback
}

func intWithDefault(lookup func(string) (string, bool), key string, fallback int) int {
	if value, ok := lookup(key); ok && value != "" {
		if n, err := strconv.Atoi(value); err == nil {
			return n
		}
	}
	return fallback
}
