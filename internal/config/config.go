package config

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
)

const (
	DefaultAPIURL      = "http://127.0.0.1:7480"
	DefaultDBFileName  = ".stowage.db"
	DefaultMediaDir    = "media"
	DefaultLogLevel    = "info"
	configFileName     = ".stowage.toml"
	configDirEnvKey    = "STOWAGE_CONFIG_DIR"
	trustProjectEnvKey = "STOWAGE_TRUST_PROJECT_CONFIG"

	DefaultMaxUploadBytes   int64 = 100 * 1024 * 1024
	DefaultMaxConcurrent          = 5
	DefaultFetchTimeout           = "5m"
	DefaultPollInterval           = "1s"
	DefaultErrorBackoff           = "5s"
	DefaultMaxDownloadBytes int64 = 1 << 30
)

// UploadConfig defines limits for multipart uploads.
type UploadConfig struct {
	MaxUploadBytes int64 `toml:"max_upload_bytes"`
}

// DownloadConfig defines the background download pool.
type DownloadConfig struct {
	Enabled          bool   `toml:"enabled"`
	MaxConcurrent    int    `toml:"max_concurrent"`
	FetchTimeout     string `toml:"fetch_timeout"`
	PollInterval     string `toml:"poll_interval"`
	ErrorBackoff     string `toml:"error_backoff"`
	MaxDownloadBytes int64  `toml:"max_download_bytes"`
}

// Config defines runtime configuration for stowage.
type Config struct {
	APIURL                   string         `toml:"api_url"`
	DBPath                   string         `toml:"db_path"`
	MediaPath                string         `toml:"media_path"`
	LogLevel                 string         `toml:"log_level"`
	Uploads                  UploadConfig   `toml:"uploads"`
	Downloads                DownloadConfig `toml:"downloads"`
	TrustedProjectConfigPath string         `toml:"-"`
}

// Default returns default configuration values.
func Default() Config {
	return Config{
		APIURL:   DefaultAPIURL,
		LogLevel: DefaultLogLevel,
		Uploads: UploadConfig{
			MaxUploadBytes: DefaultMaxUploadBytes,
		},
		Downloads: DownloadConfig{
			Enabled:          true,
			MaxConcurrent:    DefaultMaxConcurrent,
			FetchTimeout:     DefaultFetchTimeout,
			PollInterval:     DefaultPollInterval,
			ErrorBackoff:     DefaultErrorBackoff,
			MaxDownloadBytes: DefaultMaxDownloadBytes,
		},
	}
}

// FetchTimeoutDuration returns the parsed per-download timeout.
func (d DownloadConfig) FetchTimeoutDuration() time.Duration {
	return parseDurationOr(d.FetchTimeout, DefaultFetchTimeout)
}

// PollIntervalDuration returns the parsed idle poll interval.
func (d DownloadConfig) PollIntervalDuration() time.Duration {
	return parseDurationOr(d.PollInterval, DefaultPollInterval)
}

// ErrorBackoffDuration returns the parsed claim error backoff.
func (d DownloadConfig) ErrorBackoffDuration() time.Duration {
	return parseDurationOr(d.ErrorBackoff, DefaultErrorBackoff)
}

func parseDurationOr(raw, fallback string) time.Duration {
	if d, err := time.ParseDuration(strings.TrimSpace(raw)); err == nil && d > 0 {
		return d
	}
	d, _ := time.ParseDuration(fallback)
	return d
}

func loadFile(path string, cfg *Config) error {
	_, err := loadFileIfExists(path, cfg)
	return err
}

func loadFileIfExists(path string, cfg *Config) (bool, error) {
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, err
	}
	if info.IsDir() {
		return false, nil
	}
	if _, err := toml.DecodeFile(path, cfg); err != nil {
		return false, fmt.Errorf("failed to parse config %s: %w", path, err)
	}
	return true, nil
}

func overrideConfigPath() (string, bool) {
	dir := strings.TrimSpace(os.Getenv(configDirEnvKey))
	if dir == "" {
		return "", false
	}
	return filepath.Join(dir, configFileName), true
}

func trustProjectConfig() bool {
	raw := strings.TrimSpace(os.Getenv(trustProjectEnvKey))
	if raw == "" {
		return false
	}
	value, err := strconv.ParseBool(raw)
	if err != nil {
		return false
	}
	return value
}

var allowedKeys = []string{
	"api_url",
	"db_path",
	"media_path",
	"log_level",
	"uploads.max_upload_bytes",
	"downloads.enabled",
	"downloads.max_concurrent",
	"downloads.fetch_timeout",
	"downloads.poll_interval",
	"downloads.error_backoff",
	"downloads.max_download_bytes",
}

// AllowedKeys returns the set of valid config keys.
func AllowedKeys() []string {
	return allowedKeys
}

// IsAllowedKey checks if a key is a valid config key.
func IsAllowedKey(key string) bool {
	for _, k := range allowedKeys {
		if k == key {
			return true
		}
	}
	return false
}

// Get returns the value of a config key.
func (c *Config) Get(key string) (string, error) {
	switch key {
	case "api_url":
		return c.APIURL, nil
	case "db_path":
		return c.DBPath, nil
	case "media_path":
		return c.MediaPath, nil
	case "log_level":
		return c.LogLevel, nil
	case "uploads.max_upload_bytes":
		return strconv.FormatInt(c.Uploads.MaxUploadBytes, 10), nil
	case "downloads.enabled":
		return strconv.FormatBool(c.Downloads.Enabled), nil
	case "downloads.max_concurrent":
		return strconv.Itoa(c.Downloads.MaxConcurrent), nil
	case "downloads.fetch_timeout":
		return c.Downloads.FetchTimeout, nil
	case "downloads.poll_interval":
		return c.Downloads.PollInterval, nil
	case "downloads.error_backoff":
		return c.Downloads.ErrorBackoff, nil
	case "downloads.max_download_bytes":
		return strconv.FormatInt(c.Downloads.MaxDownloadBytes, 10), nil
	default:
		return "", fmt.Errorf("unknown key: %s", key)
	}
}

// GlobalPath returns the path to the global config file.
func GlobalPath() (string, error) {
	if path, ok := overrideConfigPath(); ok {
		return path, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, configFileName), nil
}

// ProjectPath returns the path to the project config file.
func ProjectPath() (string, error) {
	if path, ok := overrideConfigPath(); ok {
		return path, nil
	}
	cwd, err := os.Getwd()
	if err != nil {
		return "", err
	}
	return filepath.Join(cwd, configFileName), nil
}

// SetKey reads the TOML file at path, sets key=value, and writes it back.
func SetKey(path, key, value string) error {
	if !IsAllowedKey(key) {
		return fmt.Errorf("unknown key: %s", key)
	}

	data := make(map[string]any)
	if _, err := os.Stat(path); err == nil {
		if _, err := toml.DecodeFile(path, &data); err != nil {
			return fmt.Errorf("parse %s: %w", path, err)
		}
	}

	parsedValue, err := parseSetValue(key, value)
	if err != nil {
		return err
	}
	if err := setNestedKey(data, strings.Split(key, "."), parsedValue); err != nil {
		return err
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}

	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	return toml.NewEncoder(f).Encode(data)
}

// Load reads config from trusted files and applies env overrides.
func Load() (*Config, error) {
	cfg := Default()

	if overridePath, ok := overrideConfigPath(); ok {
		if err := loadFile(overridePath, &cfg); err != nil {
			return nil, err
		}
	} else {
		if home, err := os.UserHomeDir(); err == nil {
			if err := loadFile(filepath.Join(home, configFileName), &cfg); err != nil {
				return nil, err
			}
		}

		if trustProjectConfig() {
			if cwd, err := os.Getwd(); err == nil {
				projectPath := filepath.Join(cwd, configFileName)
				info, statErr := os.Stat(projectPath)
				switch {
				case statErr == nil && !info.IsDir():
					if err := loadFile(projectPath, &cfg); err != nil {
						return nil, err
					}
					cfg.TrustedProjectConfigPath = projectPath
				case statErr != nil && !os.IsNotExist(statErr):
					return nil, statErr
				}
			}
		}
	}

	cwd, _ := os.Getwd()
	if cfg.DBPath == "" && cwd != "" {
		cfg.DBPath = filepath.Join(cwd, DefaultDBFileName)
	}
	if cfg.MediaPath == "" && cwd != "" {
		cfg.MediaPath = filepath.Join(cwd, DefaultMediaDir)
	}

	if apiURL := os.Getenv("STOWAGE_API_URL"); apiURL != "" {
		cfg.APIURL = apiURL
	}
	if dbPath := os.Getenv("STOWAGE_DB"); dbPath != "" {
		cfg.DBPath = dbPath
	}
	if mediaPath := os.Getenv("STOWAGE_MEDIA_PATH"); mediaPath != "" {
		cfg.MediaPath = mediaPath
	}
	if level := strings.TrimSpace(os.Getenv("STOWAGE_LOG_LEVEL")); level != "" {
		cfg.LogLevel = level
	}
	if raw := strings.TrimSpace(os.Getenv("STOWAGE_MAX_CONCURRENT_DOWNLOADS")); raw != "" {
		if parsed, err := strconv.Atoi(raw); err == nil && parsed > 0 {
			cfg.Downloads.MaxConcurrent = parsed
		}
	}

	cfg.normalizeDefaults()

	return &cfg, nil
}

func parseSetValue(key, value string) (any, error) {
	value = strings.TrimSpace(value)
	switch key {
	case "uploads.max_upload_bytes", "downloads.max_download_bytes":
		parsed, err := strconv.ParseInt(value, 10, 64)
		if err != nil || parsed <= 0 {
			return nil, fmt.Errorf("%s must be a positive integer", key)
		}
		return parsed, nil
	case "downloads.max_concurrent":
		parsed, err := strconv.Atoi(value)
		if err != nil || parsed <= 0 {
			return nil, fmt.Errorf("%s must be a positive integer", key)
		}
		return parsed, nil
	case "downloads.enabled":
		parsed, err := strconv.ParseBool(value)
		if err != nil {
			return nil, fmt.Errorf("%s must be true or false", key)
		}
		return parsed, nil
	case "downloads.fetch_timeout", "downloads.poll_interval", "downloads.error_backoff":
		d, err := time.ParseDuration(value)
		if err != nil || d <= 0 {
			return nil, fmt.Errorf("%s must be a positive duration such as 30s or 5m", key)
		}
		return value, nil
	case "log_level":
		if _, err := ParseLogLevel(value); err != nil {
			return nil, err
		}
		return strings.ToLower(value), nil
	default:
		return value, nil
	}
}

func setNestedKey(data map[string]any, parts []string, value any) error {
	if len(parts) == 0 {
		return fmt.Errorf("invalid config key")
	}
	if len(parts) == 1 {
		data[parts[0]] = value
		return nil
	}
	childRaw, ok := data[parts[0]]
	if !ok {
		child := map[string]any{}
		data[parts[0]] = child
		return setNestedKey(child, parts[1:], value)
	}
	child, ok := childRaw.(map[string]any)
	if !ok {
		return fmt.Errorf("cannot set nested key %q", strings.Join(parts, "."))
	}
	return setNestedKey(child, parts[1:], value)
}

// ParseLogLevel maps a config or flag value to a slog level.
func ParseLogLevel(raw string) (slog.Level, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "debug":
		return slog.LevelDebug, nil
	case "", "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return slog.LevelInfo, fmt.Errorf("invalid log level %q (expected debug, info, warn, error)", raw)
	}
}

func (c *Config) normalizeDefaults() {
	if strings.TrimSpace(c.LogLevel) == "" {
		c.LogLevel = DefaultLogLevel
	}
	if c.Uploads.MaxUploadBytes <= 0 {
		c.Uploads.MaxUploadBytes = DefaultMaxUploadBytes
	}
	if c.Downloads.MaxConcurrent <= 0 {
		c.Downloads.MaxConcurrent = DefaultMaxConcurrent
	}
	if c.Downloads.MaxDownloadBytes <= 0 {
		c.Downloads.MaxDownloadBytes = DefaultMaxDownloadBytes
	}
	if strings.TrimSpace(c.Downloads.FetchTimeout) == "" {
		c.Downloads.FetchTimeout = DefaultFetchTimeout
	}
	if strings.TrimSpace(c.Downloads.PollInterval) == "" {
		c.Downloads.PollInterval = DefaultPollInterval
	}
	if strings.TrimSpace(c.Downloads.ErrorBackoff) == "" {
		c.Downloads.ErrorBackoff = DefaultErrorBackoff
	}
}
