package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Defaults.
const (
	DefaultAPIBaseURL  = "http://localhost:5000/api"
	DefaultListenAddr  = ":8090"
	DefaultLogLevel    = "info"
	DefaultLogFormat   = "json"
	DefaultReloadDelay = 1500 * time.Millisecond
)

type Config struct {
	APIBaseURL    string
	ListenAddr    string
	HTTPTimeout   time.Duration
	TokenFile     string
	LogLevel      string
	LogFormat     string
	EnableMetrics bool
	ReloadDelay   time.Duration

	// JWTSecret and JWTExpiry are only used to mint development tokens.
	JWTSecret string
	JWTExpiry time.Duration
}

// Load reads the configuration from the environment after loading a .env file
// from the working directory when one exists. Invalid numeric values keep their defaults.
func Load() *Config {
	_ = godotenv.Load()

	config := &Config{
		APIBaseURL:    strings.TrimRight(getEnv("API_BASE_URL", DefaultAPIBaseURL), "/"),
		ListenAddr:    getEnv("LISTEN_ADDR", DefaultListenAddr),
		TokenFile:     getEnv("TOKEN_FILE", defaultTokenFile()),
		LogLevel:      strings.ToLower(getEnv("LOG_LEVEL", DefaultLogLevel)),
		LogFormat:     strings.ToLower(getEnv("LOG_FORMAT", DefaultLogFormat)),
		EnableMetrics: getEnv("ENABLE_METRICS", "true") == "true",
		ReloadDelay:   DefaultReloadDelay,
		JWTSecret:     getEnv("JWT_SECRET", ""),
		JWTExpiry:     time.Hour,
	}

	if d, ok := durationEnv("HTTP_TIMEOUT"); ok {
		config.HTTPTimeout = d
	}
	if d, ok := durationEnv("RELOAD_DELAY"); ok {
		config.ReloadDelay = d
	}
	if d, ok := durationEnv("JWT_EXPIRY"); ok {
		config.JWTExpiry = d
	}

	return config
}

// Validate checks the loaded values.
func (c *Config) Validate() error {
	var errs []error

	u, err := url.Parse(c.APIBaseURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		errs = append(errs, fmt.Errorf("API_BASE_URL must be an absolute http(s) URL, got %q", c.APIBaseURL))
	}
	if c.ListenAddr == "" {
		errs = append(errs, errors.New("LISTEN_ADDR is required"))
	}
	if c.HTTPTimeout < 0 {
		errs = append(errs, errors.New("HTTP_TIMEOUT cannot be negative"))
	}
	if c.ReloadDelay < 0 {
		errs = append(errs, errors.New("RELOAD_DELAY cannot be negative"))
	}
	if c.TokenFile == "" {
		errs = append(errs, errors.New("TOKEN_FILE is required"))
	}
	switch c.LogLevel {
	case "debug", "info", "warn", "error":
	default:
		errs = append(errs, fmt.Errorf("LOG_LEVEL must be one of debug, info, warn, error, got %q", c.LogLevel))
	}
	switch c.LogFormat {
	case "json", "console":
	default:
		errs = append(errs, fmt.Errorf("LOG_FORMAT must be json or console, got %q", c.LogFormat))
	}
	if c.JWTSecret != "" && len(c.JWTSecret) < 16 {
		errs = append(errs, errors.New("JWT_SECRET must be at least 16 characters when set"))
	}

	return errors.Join(errs...)
}

// LoadAndValidate loads the configuration and validates it.
func LoadAndValidate() (*Config, error) {
	cfg := Load()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// durationEnv accepts Go durations ("2s") and bare milliseconds ("1500").
func durationEnv(key string) (time.Duration, bool) {
	raw := os.Getenv(key)
	if raw == "" {
		return 0, false
	}
	if d, err := time.ParseDuration(raw); err == nil {
		return d, true
	}
	if ms, err := strconv.Atoi(raw); err == nil {
		return time.Duration(ms) * time.Millisecond, true
	}
	return 0, false
}

func defaultTokenFile() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return filepath.Join(".", ".pmo-session.yaml")
	}
	return filepath.Join(dir, "pmo-dashboard", "session.yaml")
}
