package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

const (
	DefaultConfigFile     = "config.yaml"
	DefaultEnvFile        = ".env"
	DefaultAddr           = "localhost:4000"
	DefaultGraphBaseURL   = "https://graph.facebook.com"
	DefaultGraphVersion   = "v19.0"
	DefaultTokenEnv       = "PAGEDECK_ACCESS_TOKEN"
	DefaultGraphTimeout   = 30 * time.Second
	DefaultPageSize       = 100
	DefaultMaxPages       = 10
	DefaultTimezone       = "Local"
	DefaultScheduleOffset = 5
	DefaultStoragePath    = ".pagedeck/pagedeck.db"
	DefaultRetainDays     = 90
	DefaultExportDir      = ".pagedeck/exports"
	DefaultExportFormat   = "xlsx"
	DefaultEmailPort      = 587
	DefaultLogLevel       = "info"
	DefaultLogFormat      = "text"
)

// Duration wraps time.Duration for YAML unmarshaling from strings like "30s".
type Duration struct {
	time.Duration
}

func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("parse duration %q: %w", s, err)
	}
	d.Duration = parsed
	return nil
}

type Config struct {
	Server  ServerConfig  `yaml:"server"`
	Graph   GraphConfig   `yaml:"graph"`
	Display DisplayConfig `yaml:"display"`
	Storage StorageConfig `yaml:"storage"`
	Export  ExportConfig  `yaml:"export"`
	Email   EmailConfig   `yaml:"email"`
	Log     LogConfig     `yaml:"log"`
}

type ServerConfig struct {
	Addr    string `yaml:"addr"`
	GinMode string `yaml:"gin_mode"`
}

type GraphConfig struct {
	BaseURL        string   `yaml:"base_url"`
	Version        string   `yaml:"version"`
	AccessTokenEnv string   `yaml:"access_token_env"`
	Timeout        Duration `yaml:"timeout"`
	PageSize       int      `yaml:"page_size"`
	MaxPages       int      `yaml:"max_pages"`

	// Resolved from env var at load time.
	AccessToken string `yaml:"-"`
}

type DisplayConfig struct {
	Timezone       string `yaml:"timezone"`
	ScheduleOffset int    `yaml:"min_schedule_offset"`

	// Resolved at validation time.
	Location *time.Location `yaml:"-"`
}

type StorageConfig struct {
	Path       string `yaml:"path"`
	RetainDays int    `yaml:"retain_days"`
}

type ExportConfig struct {
	Dir    string `yaml:"dir"`
	Format string `yaml:"format"`
}

type EmailConfig struct {
	Host        string `yaml:"host"`
	Port        int    `yaml:"port"`
	User        string `yaml:"user"`
	PasswordEnv string `yaml:"password_env"`
	From        string `yaml:"from"`
	FromName    string `yaml:"from_name"`

	// Resolved from env var at load time.
	Password string `yaml:"-"`
}

// Enabled reports whether an SMTP host is configured.
func (e EmailConfig) Enabled() bool {
	return strings.TrimSpace(e.Host) != ""
}

type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	// Redact holds extra regexps scrubbed from logs and error pages.
	Redact []string `yaml:"redact"`
}

// Load reads config.yaml from dir, loads dir/.env into the environment,
// applies defaults, resolves env vars, and validates.
func Load(dir string) (*Config, error) {
	if strings.TrimSpace(dir) == "" {
		return nil, errors.New("config dir is required")
	}

	path := filepath.Join(dir, DefaultConfigFile)
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	if err := loadEnvFile(filepath.Join(dir, DefaultEnvFile)); err != nil {
		return nil, err
	}

	applyDefaults(&cfg)
	resolveEnv(&cfg)

	if err := validate(&cfg); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}

	return &cfg, nil
}

// loadEnvFile loads path without overriding variables already set in the
// process environment. A missing file is not an error.
func loadEnvFile(path string) error {
	if _, err := os.Stat(path); err != nil {
		return nil
	}
	if err := godotenv.Load(path); err != nil {
		return fmt.Errorf("load %s: %w", path, err)
	}
	return nil
}

func applyDefaults(cfg *Config) {
	if cfg.Server.Addr == "" {
		cfg.Server.Addr = DefaultAddr
	}
	if cfg.Graph.BaseURL == "" {
		cfg.Graph.BaseURL = DefaultGraphBaseURL
	}
	cfg.Graph.BaseURL = strings.TrimRight(cfg.Graph.BaseURL, "/")
	if cfg.Graph.Version == "" {
		cfg.Graph.Version = DefaultGraphVersion
	}
	if cfg.Graph.AccessTokenEnv == "" {
		cfg.Graph.AccessTokenEnv = DefaultTokenEnv
	}
	if cfg.Graph.Timeout.Duration == 0 {
		cfg.Graph.Timeout.Duration = DefaultGraphTimeout
	}
	if cfg.Graph.PageSize == 0 {
		cfg.Graph.PageSize = DefaultPageSize
	}
	if cfg.Graph.MaxPages == 0 {
		cfg.Graph.MaxPages = DefaultMaxPages
	}
	if cfg.Display.Timezone == "" {
		cfg.Display.Timezone = DefaultTimezone
	}
	if cfg.Display.ScheduleOffset == 0 {
		cfg.Display.ScheduleOffset = DefaultScheduleOffset
	}
	if cfg.Storage.Path == "" {
		cfg.Storage.Path = DefaultStoragePath
	}
	if cfg.Storage.RetainDays == 0 {
		cfg.Storage.RetainDays = DefaultRetainDays
	}
	if cfg.Export.Dir == "" {
		cfg.Export.Dir = DefaultExportDir
	}
	if cfg.Export.Format == "" {
		cfg.Export.Format = DefaultExportFormat
	}
	if cfg.Email.Port == 0 {
		cfg.Email.Port = DefaultEmailPort
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = DefaultLogLevel
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = DefaultLogFormat
	}
}

func resolveEnv(cfg *Config) {
	if cfg.Graph.AccessTokenEnv != "" {
		cfg.Graph.AccessToken = strings.TrimSpace(os.Getenv(cfg.Graph.AccessTokenEnv))
	}
	if cfg.Email.PasswordEnv != "" {
		cfg.Email.Password = os.Getenv(cfg.Email.PasswordEnv)
	}
}

func validate(cfg *Config) error {
	loc, err := time.LoadLocation(cfg.Display.Timezone)
	if err != nil {
		return fmt.Errorf("display.timezone: %w", err)
	}
	cfg.Display.Location = loc

	if cfg.Display.ScheduleOffset < 0 {
		return fmt.Errorf("display.min_schedule_offset: must be positive, got %d", cfg.Display.ScheduleOffset)
	}
	if cfg.Graph.PageSize < 0 || cfg.Graph.MaxPages < 0 {
		return errors.New("graph: page_size and max_pages must be positive")
	}
	if !strings.HasPrefix(cfg.Graph.BaseURL, "http://") && !strings.HasPrefix(cfg.Graph.BaseURL, "https://") {
		return fmt.Errorf("graph.base_url: %q is not an http(s) URL", cfg.Graph.BaseURL)
	}

	switch cfg.Export.Format {
	case "xlsx", "json", "markdown", "md":
		// valid
	default:
		return fmt.Errorf("export.format: unknown format %q (want xlsx, json, or markdown)", cfg.Export.Format)
	}

	switch cfg.Log.Format {
	case "text", "json":
		// valid
	default:
		return fmt.Errorf("log.format: unknown format %q (want text or json)", cfg.Log.Format)
	}

	for _, p := range cfg.Log.Redact {
		if _, err := regexp.Compile(p); err != nil {
			return fmt.Errorf("log.redact: %w", err)
		}
	}

	switch cfg.Server.GinMode {
	case "", "debug", "release", "test":
		// valid
	default:
		return fmt.Errorf("server.gin_mode: unknown mode %q", cfg.Server.GinMode)
	}

	if cfg.Email.Enabled() && strings.TrimSpace(cfg.Email.From) == "" {
		return errors.New("email.from: required when email.host is set")
	}

	return nil
}
