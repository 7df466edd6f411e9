package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/gookit/validate"
	"github.com/joho/godotenv"
)

const (
	DefaultNotifyInterval  = "1h"
	DefaultNotifyMessage   = "⚠️ Attention! A new data breach has been detected. Check your accounts."
	DefaultStoreBackend    = StoreBackendFile
	DefaultLogLevel        = "info"
	DefaultLogFormat       = "console"
	DefaultMetricsHost     = "127.0.0.1"
	DefaultMetricsPort     = 18791
	DefaultBufSize         = 100
	DefaultCacheSizeMB     = 8
	DefaultCacheTTL        = "10m"
	DefaultLeakCheckURL    = "https://leakcheck.io/api"
	DefaultVirusTotalURL   = "https://www.virustotal.com/api/v3"
	DefaultIPQualityURL    = "https://ipqualityscore.com/api/json/ip"
	StoreBackendFile       = "file"
	StoreBackendBadger     = "badger"
	configDirName          = ".leakguard"
	configFileName         = "config.json"
	dataDirName            = "data"
	minCacheSizeMB         = 1
	maxCacheSizeMB         = 1024
	minNotifyIntervalFloor = time.Second
)

type Config struct {
	Telegram TelegramConfig `json:"telegram"`
	Lookup   LookupConfig   `json:"lookup"`
	Store    StoreConfig    `json:"store"`
	Notify   NotifyConfig   `json:"notify"`
	Log      LogConfig      `json:"log"`
	Metrics  MetricsConfig  `json:"metrics"`
}

type TelegramConfig struct {
	Enabled   bool     `json:"enabled"`
	Token     string   `json:"token"`
	AllowFrom []string `json:"allowFrom"`
	Proxy     string   `json:"proxy,omitempty"`
}

type LookupConfig struct {
	LeakCheck  ProviderConfig `json:"leakcheck"`
	VirusTotal ProviderConfig `json:"virustotal"`
	IPQS       ProviderConfig `json:"ipqs"`
	// Timeout is a Go duration string. Empty keeps the HTTP client default.
	Timeout string      `json:"timeout,omitempty"`
	Cache   CacheConfig `json:"cache"`
}

type ProviderConfig struct {
	APIKey  string `json:"apiKey"`
	BaseURL string `json:"baseUrl" validate:"required|fullUrl"`
}

type CacheConfig struct {
	Enabled bool   `json:"enabled"`
	SizeMB  int    `json:"sizeMb"`
	TTL     string `json:"ttl"`
}

type StoreConfig struct {
	Backend string `json:"backend" validate:"required|in:file,badger"`
	DataDir string `json:"dataDir" validate:"required"`
}

type NotifyConfig struct {
	Enabled  bool   `json:"enabled"`
	Interval string `json:"interval" validate:"required"`
	Message  string `json:"message" validate:"required"`
}

type LogConfig struct {
	Level  string `json:"level" validate:"required|in:trace,debug,info,warn,error,fatal,panic,disabled"`
	Format string `json:"format" validate:"required|in:console,json"`
}

type MetricsConfig struct {
	Enabled bool   `json:"enabled"`
	Host    string `json:"host"`
	Port    int    `json:"port"`
}

func DefaultConfig() *Config {
	return &Config{
		Telegram: TelegramConfig{Enabled: true},
		Lookup: LookupConfig{
			LeakCheck:  ProviderConfig{BaseURL: DefaultLeakCheckURL},
			VirusTotal: ProviderConfig{BaseURL: DefaultVirusTotalURL},
			IPQS:       ProviderConfig{BaseURL: DefaultIPQualityURL},
			Cache: CacheConfig{
				Enabled: false,
				SizeMB:  DefaultCacheSizeMB,
				TTL:     DefaultCacheTTL,
			},
		},
		Store: StoreConfig{
			Backend: DefaultStoreBackend,
			DataDir: filepath.Join(ConfigDir(), dataDirName),
		},
		Notify: NotifyConfig{
			Enabled:  true,
			Interval: DefaultNotifyInterval,
			Message:  DefaultNotifyMessage,
		},
		Log: LogConfig{
			Level:  DefaultLogLevel,
			Format: DefaultLogFormat,
		},
		Metrics: MetricsConfig{
			Enabled: false,
			Host:    DefaultMetricsHost,
			Port:    DefaultMetricsPort,
		},
	}
}

func ConfigDir() string {
	home := os.Getenv("HOME")
	if home == "" {
		home, _ = os.UserHomeDir()
	}
	return filepath.Join(home, configDirName)
}

func ConfigPath() string {
	return filepath.Join(ConfigDir(), configFileName)
}

// LoadConfig reads .env (if any), then config.json (if any), then applies
// environment overrides on top of the defaults.
func LoadConfig() (*Config, error) {
	_ = godotenv.Load()

	cfg := DefaultConfig()

	data, err := os.ReadFile(ConfigPath())
	if err != nil {
		if !os.IsNotExist(err) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	} else {
		if err := json.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	}

	applyEnv(cfg)
	fillDefaults(cfg)

	return cfg, nil
}

func applyEnv(cfg *Config) {
	// LEAKGUARD_* names win over the unprefixed ones.
	if token := firstEnv("LEAKGUARD_TELEGRAM_TOKEN", "TELEGRAM_BOT_TOKEN"); token != "" {
		cfg.Telegram.Token = token
	}
	if key := firstEnv("LEAKGUARD_LEAKCHECK_API_KEY", "LEAKCHECK_API_KEY"); key != "" {
		cfg.Lookup.LeakCheck.APIKey = key
	}
	if key := firstEnv("LEAKGUARD_VIRUSTOTAL_API_KEY", "VIRUSTOTAL_API_KEY"); key != "" {
		cfg.Lookup.VirusTotal.APIKey = key
	}
	if key := firstEnv("LEAKGUARD_IPQS_API_KEY", "IPQS_API_KEY"); key != "" {
		cfg.Lookup.IPQS.APIKey = key
	}
	if dir := os.Getenv("LEAKGUARD_DATA_DIR"); dir != "" {
		cfg.Store.DataDir = dir
	}
	if backend := os.Getenv("LEAKGUARD_STORE_BACKEND"); backend != "" {
		cfg.Store.Backend = strings.ToLower(backend)
	}
	if interval := os.Getenv("LEAKGUARD_NOTIFY_INTERVAL"); interval != "" {
		cfg.Notify.Interval = interval
	}
	if level := os.Getenv("LEAKGUARD_LOG_LEVEL"); level != "" {
		cfg.Log.Level = strings.ToLower(level)
	}
	if enabled := os.Getenv("LEAKGUARD_METRICS_ENABLED"); enabled != "" {
		if parsed, err := strconv.ParseBool(enabled); err == nil {
			cfg.Metrics.Enabled = parsed
		}
	}
	if enabled := os.Getenv("LEAKGUARD_CACHE_ENABLED"); enabled != "" {
		if parsed, err := strconv.ParseBool(enabled); err == nil {
			cfg.Lookup.Cache.Enabled = parsed
		}
	}
}

func fillDefaults(cfg *Config) {
	defaults := DefaultConfig()
	if cfg.Store.DataDir == "" {
		cfg.Store.DataDir = defaults.Store.DataDir
	}
	if cfg.Store.Backend == "" {
		cfg.Store.Backend = DefaultStoreBackend
	}
	if cfg.Notify.Interval == "" {
		cfg.Notify.Interval = DefaultNotifyInterval
	}
	if cfg.Notify.Message == "" {
		cfg.Notify.Message = DefaultNotifyMessage
	}
	if cfg.Lookup.LeakCheck.BaseURL == "" {
		cfg.Lookup.LeakCheck.BaseURL = DefaultLeakCheckURL
	}
	if cfg.Lookup.VirusTotal.BaseURL == "" {
		cfg.Lookup.VirusTotal.BaseURL = DefaultVirusTotalURL
	}
	if cfg.Lookup.IPQS.BaseURL == "" {
		cfg.Lookup.IPQS.BaseURL = DefaultIPQualityURL
	}
	if cfg.Lookup.Cache.SizeMB <= 0 {
		cfg.Lookup.Cache.SizeMB = DefaultCacheSizeMB
	}
	if cfg.Lookup.Cache.TTL == "" {
		cfg.Lookup.Cache.TTL = DefaultCacheTTL
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = DefaultLogLevel
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = DefaultLogFormat
	}
	if cfg.Metrics.Host == "" {
		cfg.Metrics.Host = DefaultMetricsHost
	}
	if cfg.Metrics.Port == 0 {
		cfg.Metrics.Port = DefaultMetricsPort
	}
}

func firstEnv(keys ...string) string {
	for _, key := range keys {
		if v := os.Getenv(key); v != "" {
			return v
		}
	}
	return ""
}

// Validate checks struct tags and the rules that span several fields.
func (c *Config) Validate() error {
	v := validate.Struct(c)
	if !v.Validate() {
		return fmt.Errorf("invalid config: %w", v.Errors.OneError())
	}

	if c.Telegram.Enabled && strings.TrimSpace(c.Telegram.Token) == "" {
		return fmt.Errorf("invalid config: telegram token is required when telegram is enabled")
	}
	interval, err := c.Notify.IntervalDuration()
	if err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	if interval < minNotifyIntervalFloor {
		return fmt.Errorf("invalid config: notify interval %s is below %s", interval, minNotifyIntervalFloor)
	}
	if _, err := c.Lookup.TimeoutDuration(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	if c.Lookup.Cache.Enabled {
		if _, err := c.Lookup.Cache.TTLDuration(); err != nil {
			return fmt.Errorf("invalid config: %w", err)
		}
		if c.Lookup.Cache.SizeMB < minCacheSizeMB || c.Lookup.Cache.SizeMB > maxCacheSizeMB {
			return fmt.Errorf("invalid config: cache size %dMB out of range [%d, %d]", c.Lookup.Cache.SizeMB, minCacheSizeMB, maxCacheSizeMB)
		}
	}
	if c.Metrics.Enabled && (c.Metrics.Port <= 0 || c.Metrics.Port > 65535) {
		return fmt.Errorf("invalid config: metrics port %d out of range", c.Metrics.Port)
	}
	return nil
}

func (n NotifyConfig) IntervalDuration() (time.Duration, error) {
	d, err := time.ParseDuration(n.Interval)
	if err != nil {
		return 0, fmt.Errorf("parse notify interval %q: %w", n.Interval, err)
	}
	return d, nil
}

// TimeoutDuration returns 0 when no timeout is configured.
func (l LookupConfig) TimeoutDuration() (time.Duration, error) {
	if strings.TrimSpace(l.Timeout) == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(l.Timeout)
	if err != nil {
		return 0, fmt.Errorf("parse lookup timeout %q: %w", l.Timeout, err)
	}
	if d < 0 {
		return 0, fmt.Errorf("lookup timeout %s is negative", d)
	}
	return d, nil
}

func (c CacheConfig) TTLDuration() (time.Duration, error) {
	d, err := time.ParseDuration(c.TTL)
	if err != nil {
		return 0, fmt.Errorf("parse cache ttl %q: %w", c.TTL, err)
	}
	if d < time.Second {
		return 0, fmt.Errorf("cache ttl %s is below 1s", d)
	}
	return d, nil
}

func (m MetricsConfig) Addr() string {
	return fmt.Sprintf("%s:%d", m.Host, m.Port)
}

func SaveConfig(cfg *Config) error {
	dir := ConfigDir()
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("create config dir: %w", err)
	}

	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}

	return os.WriteFile(ConfigPath(), data, 0600)
}
