// Package config provides unified configuration for all meetEasy services.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Mode represents the service mode to run.
type Mode string

const (
	ModeAll      Mode = "all"
	ModeAPI      Mode = "api"
	ModePayments Mode = "payments"
)

// Config holds the unified configuration for all meetEasy services.
type Config struct {
	// Mode specifies which services to run: all, api, payments
	Mode Mode `json:"mode" yaml:"mode"`

	// DataDir is the base directory for the SQLite database and local images
	DataDir string `json:"data_dir" yaml:"data_dir"`

	HTTP      HTTPConfig      `json:"http" yaml:"http"`
	GRPC      GRPCConfig      `json:"grpc" yaml:"grpc"`
	Log       LogConfig       `json:"log" yaml:"log"`
	Ticketing TicketingConfig `json:"ticketing" yaml:"ticketing"`
	Search    SearchConfig    `json:"search" yaml:"search"`
	Store     StoreConfig     `json:"store" yaml:"store"`
	Storage   StorageConfig   `json:"storage" yaml:"storage"`
	Payments  PaymentsConfig  `json:"payments" yaml:"payments"`
	Email     EmailConfig     `json:"email" yaml:"email"`
	Calendar  CalendarConfig  `json:"calendar" yaml:"calendar"`
	Featured  FeaturedConfig  `json:"featured" yaml:"featured"`
}

// HTTPConfig holds HTTP server configuration.
type HTTPConfig struct {
	// APIAddr serves search, events, registrations and metrics
	APIAddr string `json:"api_addr" yaml:"api_addr"`

	// PaymentsAddr serves POST /create-payment-intent
	PaymentsAddr string `json:"payments_addr" yaml:"payments_addr"`

	ReadTimeout  time.Duration `json:"read_timeout" yaml:"read_timeout"`
	WriteTimeout time.Duration `json:"write_timeout" yaml:"write_timeout"`
	IdleTimeout  time.Duration `json:"idle_timeout" yaml:"idle_timeout"`

	// MaxUploadMB caps multipart image uploads
	MaxUploadMB int64 `json:"max_upload_mb" yaml:"max_upload_mb"`
}

// GRPCConfig holds gRPC server configuration.
type GRPCConfig struct {
	Addr    string `json:"addr" yaml:"addr"`
	Enabled bool   `json:"enabled" yaml:"enabled"`
}

// LogConfig holds logger configuration.
type LogConfig struct {
	Level       string `json:"level" yaml:"level"`
	Environment string `json:"environment" yaml:"environment"`
}

// TicketingConfig configures the third-party ticketing search API client.
type TicketingConfig struct {
	BaseURL string `json:"base_url" yaml:"base_url"`
	APIKey  string `json:"api_key" yaml:"api_key"`

	// DefaultCity is used for classification queries, which carry no location
	DefaultCity string `json:"default_city" yaml:"default_city"`

	// PageSize is the result size for keyword searches
	PageSize int `json:"page_size" yaml:"page_size"`

	// MaxInFlight bounds concurrent upstream requests
	MaxInFlight int64 `json:"max_in_flight" yaml:"max_in_flight"`

	// MaxRetries is the rate-limit retry budget for classification queries
	MaxRetries int `json:"max_retries" yaml:"max_retries"`

	// RetryStep is the unit of the linear rate-limit backoff
	RetryStep time.Duration `json:"retry_step" yaml:"retry_step"`

	Timeout time.Duration `json:"timeout" yaml:"timeout"`

	// BreakerFailures is the consecutive failure count that opens the breaker (0 disables it)
	BreakerFailures uint32        `json:"breaker_failures" yaml:"breaker_failures"`
	BreakerCooldown time.Duration `json:"breaker_cooldown" yaml:"breaker_cooldown"`
}

// SearchConfig holds aggregator settings.
type SearchConfig struct {
	// KeywordConcurrency bounds the per-token internal store queries
	KeywordConcurrency int `json:"keyword_concurrency" yaml:"keyword_concurrency"`

	// CategoryPageSize is the default result size for category searches
	CategoryPageSize int `json:"category_page_size" yaml:"category_page_size"`

	// StatsWindow is how long a search term counts towards popularity
	StatsWindow time.Duration `json:"stats_window" yaml:"stats_window"`
}

// StoreConfig holds internal event store configuration.
type StoreConfig struct {
	// Driver is sqlite3 or postgres
	Driver string `json:"driver" yaml:"driver"`

	// DSN is the data source name; for sqlite3 it defaults to <data_dir>/events.db
	DSN string `json:"dsn" yaml:"dsn"`
}

// StorageConfig holds image storage configuration.
type StorageConfig struct {
	// Type is the storage type: local, s3
	Type string `json:"type" yaml:"type"`

	// Path is the local storage path (for local type)
	Path string `json:"path" yaml:"path"`

	// PublicBaseURL prefixes object keys to build image URLs
	PublicBaseURL string `json:"public_base_url" yaml:"public_base_url"`

	S3 S3Config `json:"s3" yaml:"s3"`
}

// S3Config holds S3 storage configuration.
type S3Config struct {
	Bucket       string `json:"bucket" yaml:"bucket"`
	Region       string `json:"region" yaml:"region"`
	Endpoint     string `json:"endpoint" yaml:"endpoint"`
	UsePathStyle bool   `json:"use_path_style" yaml:"use_path_style"`
}

// PaymentsConfig holds payment provider configuration.
type PaymentsConfig struct {
	StripeSecretKey string `json:"stripe_secret_key" yaml:"stripe_secret_key"`
	Currency        string `json:"currency" yaml:"currency"`
}

// EmailConfig holds transactional email configuration.
type EmailConfig struct {
	Endpoint   string `json:"endpoint" yaml:"endpoint"`
	ServiceID  string `json:"service_id" yaml:"service_id"`
	TemplateID string `json:"template_id" yaml:"template_id"`
	UserID     string `json:"user_id" yaml:"user_id"`
	FromName   string `json:"from_name" yaml:"from_name"`
}

// Enabled reports whether confirmation emails can be sent.
func (e EmailConfig) Enabled() bool {
	return e.ServiceID != "" && e.TemplateID != "" && e.UserID != ""
}

// CalendarConfig holds external calendar configuration.
type CalendarConfig struct {
	GoogleBaseURL string `json:"google_base_url" yaml:"google_base_url"`
	ProductID     string `json:"product_id" yaml:"product_id"`

	// TimeZone is the IANA zone event dates and times are interpreted in
	TimeZone string `json:"time_zone" yaml:"time_zone"`

	// DefaultDuration is the length given to events that have a start time
	DefaultDuration time.Duration `json:"default_duration" yaml:"default_duration"`
}

// FeaturedConfig holds the featured-events refresh configuration.
type FeaturedConfig struct {
	Enabled         bool     `json:"enabled" yaml:"enabled"`
	Schedule        string   `json:"schedule" yaml:"schedule"`
	Classifications []string `json:"classifications" yaml:"classifications"`
	PerClass        int      `json:"per_class" yaml:"per_class"`
}

// DefaultConfig returns the default configuration for local development.
func DefaultConfig() *Config {
	return &Config{
		Mode:    ModeAll,
		DataDir: "./data/meeteasy",
		HTTP: HTTPConfig{
			APIAddr:      ":8080",
			PaymentsAddr: ":5000",
			ReadTimeout:  30 * time.Second,
			WriteTimeout: 60 * time.Second,
			IdleTimeout:  120 * time.Second,
			MaxUploadMB:  10,
		},
		GRPC: GRPCConfig{
			Addr:    ":9090",
			Enabled: false,
		},
		Log: LogConfig{
			Level:       "info",
			Environment: "production",
		},
		Ticketing: TicketingConfig{
			BaseURL:         "https://app.ticketmaster.com",
			DefaultCity:     "london",
			PageSize:        6,
			MaxInFlight:     10,
			MaxRetries:      3,
			RetryStep:       time.Second,
			Timeout:         15 * time.Second,
			BreakerFailures: 5,
			BreakerCooldown: 30 * time.Second,
		},
		Search: SearchConfig{
			KeywordConcurrency: 4,
			CategoryPageSize:   20,
			StatsWindow:        24 * time.Hour,
		},
		Store: StoreConfig{
			Driver: "sqlite3",
		},
		Storage: StorageConfig{
			Type:          "local",
			PublicBaseURL: "/",
		},
		Payments: PaymentsConfig{
			Currency: "gbp",
		},
		Email: EmailConfig{
			Endpoint: "https://api.emailjs.com/api/v1.0/email/send",
			FromName: "meetEasy",
		},
		Calendar: CalendarConfig{
			GoogleBaseURL:   "https://www.googleapis.com/calendar/v3",
			ProductID:       "-//meetEasy//Events//EN",
			TimeZone:        "Europe/London",
			DefaultDuration: 2 * time.Hour,
		},
		Featured: FeaturedConfig{
			Enabled:         true,
			Schedule:        "@every 15m",
			Classifications: []string{"Arts & Theatre", "sports", "comedy", "family", "music", "film"},
			PerClass:        1,
		},
	}
}

// Resolve resolves relative paths and sets defaults based on DataDir.
func (c *Config) Resolve() {
	if c.DataDir == "" {
		c.DataDir = "./data/meeteasy"
	}
	if c.Storage.Path == "" {
		c.Storage.Path = filepath.Join(c.DataDir, "images")
	}
	if c.Store.Driver == "" {
		c.Store.Driver = "sqlite3"
	}
	if c.Store.DSN == "" && c.Store.Driver == "sqlite3" {
		c.Store.DSN = filepath.Join(c.DataDir, "events.db")
	}
	if c.Payments.Currency == "" {
		c.Payments.Currency = "gbp"
	}
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	switch c.Mode {
	case ModeAll, ModeAPI, ModePayments:
		// Valid modes
	default:
		return fmt.Errorf("invalid mode: %s (must be all, api, or payments)", c.Mode)
	}

	if c.DataDir == "" {
		return fmt.Errorf("data_dir is required")
	}

	if c.Store.Driver != "sqlite3" && c.Store.Driver != "postgres" {
		return fmt.Errorf("invalid store driver: %s (must be sqlite3 or postgres)", c.Store.Driver)
	}
	if c.Store.Driver == "postgres" && c.Store.DSN == "" {
		return fmt.Errorf("store.dsn is required when driver is postgres")
	}

	if c.Storage.Type != "local" && c.Storage.Type != "s3" {
		return fmt.Errorf("invalid storage type: %s (must be local or s3)", c.Storage.Type)
	}
	if c.Storage.Type == "s3" && c.Storage.S3.Bucket == "" {
		return fmt.Errorf("s3.bucket is required when storage type is s3")
	}

	if c.Ticketing.PageSize <= 0 || c.Ticketing.PageSize > 200 {
		return fmt.Errorf("ticketing.page_size must be between 1 and 200, got %d", c.Ticketing.PageSize)
	}
	if c.Ticketing.MaxInFlight <= 0 {
		return fmt.Errorf("ticketing.max_in_flight must be positive, got %d", c.Ticketing.MaxInFlight)
	}
	if c.Ticketing.MaxRetries < 0 {
		return fmt.Errorf("ticketing.max_retries must not be negative, got %d", c.Ticketing.MaxRetries)
	}

	if c.Search.StatsWindow <= 0 {
		return fmt.Errorf("search.stats_window must be positive")
	}

	if _, err := time.LoadLocation(c.Calendar.TimeZone); err != nil {
		return fmt.Errorf("invalid calendar.time_zone %q: %w", c.Calendar.TimeZone, err)
	}
	if c.Calendar.DefaultDuration <= 0 {
		return fmt.Errorf("calendar.default_duration must be positive")
	}

	if c.ShouldRunPayments() && c.Payments.StripeSecretKey == "" {
		return fmt.Errorf("payments.stripe_secret_key is required (or set STRIPE_SECRET_KEY)")
	}

	return nil
}

// ShouldRunAPI returns true if the search/events API should run.
func (c *Config) ShouldRunAPI() bool {
	return c.Mode == ModeAll || c.Mode == ModeAPI
}

// ShouldRunPayments returns true if the payment-intent service should run.
func (c *Config) ShouldRunPayments() bool {
	return c.Mode == ModeAll || c.Mode == ModePayments
}

// LoadFromFile loads configuration from a YAML or JSON file.
func LoadFromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := DefaultConfig()

	ext := strings.ToLower(filepath.Ext(path))
	switch ext {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse YAML config: %w", err)
		}
	case ".json":
		if err := json.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse JSON config: %w", err)
		}
	default:
		return nil, fmt.Errorf("unsupported config file format: %s", ext)
	}

	return cfg, nil
}

// LoadFromEnv loads configuration from environment variables.
// Environment variables use the MEETEASY_ prefix. The ticketing API key and
// the Stripe key also honour the names the web client and payment service
// have always used.
func LoadFromEnv(cfg *Config) {
	if v := os.Getenv("MEETEASY_MODE"); v != "" {
		cfg.Mode = Mode(v)
	}
	if v := os.Getenv("MEETEASY_DATA_DIR"); v != "" {
		cfg.DataDir = v
	}

	// HTTP / gRPC
	if v := os.Getenv("MEETEASY_HTTP_API_ADDR"); v != "" {
		cfg.HTTP.APIAddr = v
	}
	if v := os.Getenv("MEETEASY_HTTP_PAYMENTS_ADDR"); v != "" {
		cfg.HTTP.PaymentsAddr = v
	}
	if v := os.Getenv("MEETEASY_GRPC_ADDR"); v != "" {
		cfg.GRPC.Addr = v
	}
	if v := os.Getenv("MEETEASY_GRPC_ENABLED"); v != "" {
		cfg.GRPC.Enabled = v == "true" || v == "1"
	}

	// Logging
	if v := os.Getenv("MEETEASY_LOG_LEVEL"); v != "" {
		cfg.Log.Level = v
	}
	if v := os.Getenv("MEETEASY_ENV"); v != "" {
		cfg.Log.Environment = v
	}

	// Ticketing
	if v := firstEnv("MEETEASY_TICKETING_API_KEY", "TICKETMASTER_API_KEY"); v != "" {
		cfg.Ticketing.APIKey = v
	}
	if v := os.Getenv("MEETEASY_TICKETING_BASE_URL"); v != "" {
		cfg.Ticketing.BaseURL = v
	}
	if v := os.Getenv("MEETEASY_TICKETING_DEFAULT_CITY"); v != "" {
		cfg.Ticketing.DefaultCity = v
	}
	if v := os.Getenv("MEETEASY_TICKETING_MAX_IN_FLIGHT"); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			cfg.Ticketing.MaxInFlight = n
		}
	}
	if v := os.Getenv("MEETEASY_TICKETING_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.Ticketing.Timeout = d
		}
	}

	// Store
	if v := os.Getenv("MEETEASY_STORE_DRIVER"); v != "" {
		cfg.Store.Driver = v
	}
	if v := os.Getenv("MEETEASY_STORE_DSN"); v != "" {
		cfg.Store.DSN = v
	}

	// Storage
	if v := os.Getenv("MEETEASY_STORAGE_TYPE"); v != "" {
		cfg.Storage.Type = v
	}
	if v := os.Getenv("MEETEASY_STORAGE_PATH"); v != "" {
		cfg.Storage.Path = v
	}
	if v := os.Getenv("MEETEASY_STORAGE_PUBLIC_BASE_URL"); v != "" {
		cfg.Storage.PublicBaseURL = v
	}
	if v := os.Getenv("MEETEASY_S3_BUCKET"); v != "" {
		cfg.Storage.S3.Bucket = v
	}
	if v := os.Getenv("MEETEASY_S3_REGION"); v != "" {
		cfg.Storage.S3.Region = v
	}
	if v := os.Getenv("MEETEASY_S3_ENDPOINT"); v != "" {
		cfg.Storage.S3.Endpoint = v
	}

	// Payments
	if v := firstEnv("MEETEASY_STRIPE_SECRET_KEY", "STRIPE_SECRET_KEY"); v != "" {
		cfg.Payments.StripeSecretKey = v
	}

	// Email
	if v := os.Getenv("MEETEASY_EMAIL_SERVICE_ID"); v != "" {
		cfg.Email.ServiceID = v
	}
	if v := os.Getenv("MEETEASY_EMAIL_TEMPLATE_ID"); v != "" {
		cfg.Email.TemplateID = v
	}
	if v := os.Getenv("MEETEASY_EMAIL_USER_ID"); v != "" {
		cfg.Email.UserID = v
	}

	// Featured
	if v := os.Getenv("MEETEASY_FEATURED_SCHEDULE"); v != "" {
		cfg.Featured.Schedule = v
	}
	if v := os.Getenv("MEETEASY_FEATURED_ENABLED"); v != "" {
		cfg.Featured.Enabled = v == "true" || v == "1"
	}
}

func firstEnv(keys ...string) string {
	for _, k := range keys {
		if v := os.Getenv(k); v != "" {
			return v
		}
	}
	return ""
}

// EnsureDirectories creates all required directories.
func (c *Config) EnsureDirectories() error {
	dirs := []string{c.DataDir}
	if c.Storage.Type == "local" {
		dirs = append(dirs, c.Storage.Path)
	}

	for _, dir := range dirs {
		if dir == "" {
			continue
		}
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create directory %s: %w", dir, err)
		}
	}

	return nil
}
