// Package config loads harvester settings from defaults, an optional YAML file, and the environment.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"
	_ "time/tzdata"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const envPrefix = "MGZ"

// Supported store drivers.
const (
	StoreDriverBolt      = "bolt"
	StoreDriverFirestore = "firestore"
)

// Configuration validation errors.
var (
	ErrUnknownStoreDriver   = errors.New("store.driver must be 'bolt' or 'firestore'")
	ErrMissingBoltPath      = errors.New("store.bolt_path is required for the bolt driver")
	ErrMissingFirestoreProj = errors.New("store.firestore_project is required for the firestore driver")
	ErrMissingUpstreamURL   = errors.New("upstream.base_url is required")
	ErrInvalidLimit         = errors.New("upstream.limit must be at least 1")
	ErrInvalidOffset        = errors.New("upstream.offset must be non-negative")
	ErrInvalidBatchSize     = errors.New("repair.batch_size must be between 1 and 500")
	ErrInvalidScheduleHour  = errors.New("schedule.hour must be between 0 and 23")
	ErrInvalidScheduleMin   = errors.New("schedule.minute must be between 0 and 59")
	ErrInvalidLogLevel      = errors.New("log.level must be one of: debug, info, warn, error")
)

// Config is the complete harvester configuration.
type Config struct {
	Log        LogConfig        `mapstructure:"log"`
	Upstream   UpstreamConfig   `mapstructure:"upstream"`
	Gemini     GeminiConfig     `mapstructure:"gemini"`
	Store      StoreConfig      `mapstructure:"store"`
	Article    ArticleConfig    `mapstructure:"article"`
	Server     ServerConfig     `mapstructure:"server"`
	Schedule   ScheduleConfig   `mapstructure:"schedule"`
	Repair     RepairConfig     `mapstructure:"repair"`
	Publishers PublishersConfig `mapstructure:"publishers"`
}

// LogConfig controls the zap logger.
type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// UpstreamConfig points at the English-language entries API.
type UpstreamConfig struct {
	BaseURL   string        `mapstructure:"base_url"`
	Timeout   time.Duration `mapstructure:"timeout"`
	Limit     int           `mapstructure:"limit"`
	Offset    int           `mapstructure:"offset"`
	UserAgent string        `mapstructure:"user_agent"`
}

// GeminiConfig configures the text generation backend.
type GeminiConfig struct {
	APIKey string `mapstructure:"api_key"`
	Model  string `mapstructure:"model"`
}

// StoreConfig selects and configures the document store.
type StoreConfig struct {
	Driver           string `mapstructure:"driver"`
	BoltPath         string `mapstructure:"bolt_path"`
	Collection       string `mapstructure:"collection"`
	FirestoreProject string `mapstructure:"firestore_project"`
	CredentialsFile  string `mapstructure:"credentials_file"`
}

// ArticleConfig holds the provenance constants stamped on ingested articles.
type ArticleConfig struct {
	Source        string `mapstructure:"source"`
	DefaultAuthor string `mapstructure:"default_author"`
	Timezone      string `mapstructure:"timezone"`
}

// ServerConfig configures the manual trigger endpoint.
type ServerConfig struct {
	Addr         string        `mapstructure:"addr"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
}

// ScheduleConfig configures the daily sync.
type ScheduleConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	Hour     int    `mapstructure:"hour"`
	Minute   int    `mapstructure:"minute"`
	Timezone string `mapstructure:"timezone"`
}

// RepairConfig configures the repair jobs.
type RepairConfig struct {
	BatchSize int `mapstructure:"batch_size"`
}

// PublishersConfig points at the optional publishers registry file.
type PublishersConfig struct {
	File string `mapstructure:"file"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")

	v.SetDefault("upstream.base_url", "https://wp.technologyreview.com/wp-json/mittr/v1/entries")
	v.SetDefault("upstream.timeout", 30*time.Second)
	v.SetDefault("upstream.limit", 5)
	v.SetDefault("upstream.offset", 0)
	v.SetDefault("upstream.user_agent", "mgz-harvester/1.0")

	v.SetDefault("gemini.model", "gemini-2.5-flash")

	v.SetDefault("store.driver", StoreDriverBolt)
	v.SetDefault("store.bolt_path", "data/articles.db")
	v.SetDefault("store.collection", "articles")
	v.SetDefault("store.firestore_project", "")
	v.SetDefault("store.credentials_file", "")

	v.SetDefault("article.source", "MIT TR US")
	v.SetDefault("article.default_author", "MIT Technology Review")
	v.SetDefault("article.timezone", "Europe/Madrid")

	v.SetDefault("server.addr", ":8080")
	v.SetDefault("server.write_timeout", 540*time.Second)

	v.SetDefault("schedule.enabled", true)
	v.SetDefault("schedule.hour", 8)
	v.SetDefault("schedule.minute", 0)
	v.SetDefault("schedule.timezone", "Europe/Madrid")

	v.SetDefault("repair.batch_size", 400)

	v.SetDefault("publishers.file", "")
}

// Load reads .env files, the optional config file at path, and MGZ_* environment overrides.
func Load(path string) (*Config, error) {
	// missing .env files are fine
	_ = godotenv.Load(".env.local")
	_ = godotenv.Load(".env")

	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	if err := v.BindEnv("gemini.api_key", envPrefix+"_GEMINI_API_KEY", "GEMINI_API_KEY", "GOOGLE_GENERATIVE_AI_API_KEY"); err != nil {
		return nil, fmt.Errorf("bind gemini api key env: %w", err)
	}

	if path = strings.TrimSpace(path); path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	cfg.sanitize()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}
	return &cfg, nil
}

func (c *Config) sanitize() {
	c.Log.Level = strings.ToLower(strings.TrimSpace(c.Log.Level))
	c.Store.Driver = strings.ToLower(strings.TrimSpace(c.Store.Driver))
	c.Store.BoltPath = strings.TrimSpace(c.Store.BoltPath)
	c.Store.Collection = strings.TrimSpace(c.Store.Collection)
	c.Upstream.BaseURL = strings.TrimSpace(c.Upstream.BaseURL)
	c.Gemini.APIKey = strings.TrimSpace(c.Gemini.APIKey)
	c.Publishers.File = strings.TrimSpace(c.Publishers.File)
}

// Validate checks the configuration for values the harvester cannot run with.
func (c *Config) Validate() error {
	switch c.Store.Driver {
	case StoreDriverBolt:
		if c.Store.BoltPath == "" {
			return ErrMissingBoltPath
		}
	case StoreDriverFirestore:
		if c.Store.FirestoreProject == "" {
			return ErrMissingFirestoreProj
		}
	default:
		return fmt.Errorf("%w: %q", ErrUnknownStoreDriver, c.Store.Driver)
	}

	if c.Upstream.BaseURL == "" {
		return ErrMissingUpstreamURL
	}
	if c.Upstream.Limit < 1 {
		return ErrInvalidLimit
	}
	if c.Upstream.Offset < 0 {
		return ErrInvalidOffset
	}

	// Firestore rejects batches above 500 writes.
	if c.Repair.BatchSize < 1 || c.Repair.BatchSize > 500 {
		return ErrInvalidBatchSize
	}

	if c.Schedule.Hour < 0 || c.Schedule.Hour > 23 {
		return ErrInvalidScheduleHour
	}
	if c.Schedule.Minute < 0 || c.Schedule.Minute > 59 {
		return ErrInvalidScheduleMin
	}

	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[c.Log.Level] {
		return ErrInvalidLogLevel
	}

	if _, err := time.LoadLocation(c.Schedule.Timezone); err != nil {
		return fmt.Errorf("schedule.timezone: %w", err)
	}
	if _, err := time.LoadLocation(c.Article.Timezone); err != nil {
		return fmt.Errorf("article.timezone: %w", err)
	}
	return nil
}

// ArticleLocation returns the timezone used to format article dates.
func (c *Config) ArticleLocation() *time.Location {
	return loadLocation(c.Article.Timezone)
}

// ScheduleLocation returns the timezone the daily sync is anchored to.
func (c *Config) ScheduleLocation() *time.Location {
	return loadLocation(c.Schedule.Timezone)
}

func loadLocation(name string) *time.Location {
	loc, err := time.LoadLocation(name)
	if err != nil {
		return time.UTC
	}
	return loc
}

// String returns a short summary safe to log (no secrets).
func (c *Config) String() string {
	return fmt.Sprintf(
		"Config{Store: %s, Collection: %s, Upstream: %s, Model: %s, Schedule: %02d:%02d %s}",
		c.Store.Driver,
		c.Store.Collection,
		c.Upstream.BaseURL,
		c.Gemini.Model,
		c.Schedule.Hour,
		c.Schedule.Minute,
		c.Schedule.Timezone,
	)
}
