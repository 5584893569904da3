// Package config loads catalogsync's runtime configuration from environment
// variables using struct tags, with functional options layered on top in
// a three-layer priority: defaults, then env, then explicit options.
package config

import (
	"fmt"
	"os"
	"reflect"
	"strconv"
	"time"

	"github.com/nova-retail/catalogsync/core"
)

// Config holds every environment-driven setting the orchestrator, step
// runner and scheduler need.
type Config struct {
	// Orchestrator budgets
	OrchestratorBudgetMS int           `env:"ORCHESTRATOR_BUDGET_MS" default:"25000"`
	ParseMergeBudgetMS   int           `env:"PARSE_MERGE_BUDGET_MS" default:"50000"`
	LockTTLSeconds       int           `env:"LOCK_TTL_SECONDS" default:"120"`
	StepMaxRetries       int           `env:"STEP_MAX_RETRIES" default:"8"`

	// parse_merge tunables
	MaxFetchBytes       int64 `env:"MAX_FETCH_BYTES" default:"2097152"`
	MaxPartialLineBytes int64 `env:"MAX_PARTIAL_LINE_BYTES" default:"262144"`
	MaxTotalChunks      int   `env:"MAX_TOTAL_CHUNKS" default:"50"`
	MaxTotalSizeBytes   int64 `env:"MAX_TOTAL_SIZE_BYTES" default:"41943040"`

	// Storage backends
	RedisURL    string `env:"REDIS_URL"`
	DatabaseURL string `env:"DATABASE_URL"`
	ObjectStoreBaseURL string `env:"OBJECT_STORE_BASE_URL"`

	// FTP, used by import_ftp
	FTPHost      string `env:"FTP_HOST"`
	FTPUser      string `env:"FTP_USER"`
	FTPPassword  string `env:"FTP_PASSWORD"`
	FTPPort      string `env:"FTP_PORT"`
	FTPInputDir  string `env:"FTP_INPUT_DIR"`
	FTPUseTLS    string `env:"FTP_USE_TLS"`

	// SFTP, used by upload_sftp
	SFTPHost           string `env:"SFTP_HOST"`
	SFTPUser           string `env:"SFTP_USER"`
	SFTPPassword       string `env:"SFTP_PASSWORD"`
	SFTPBaseDir        string `env:"SFTP_BASE_DIR"`
	SFTPPrivateKeyPath string `env:"SFTP_PRIVATE_KEY_PATH"`

	// Notification
	WebhookURL string `env:"WEBHOOK_URL"`

	// Ambient
	ServiceName string `env:"SERVICE_NAME" default:"catalogsync"`
	LogLevel    string `env:"LOG_LEVEL" default:"info"`
	LogFormat   string `env:"LOG_FORMAT" default:"text"`
	Port        int    `env:"PORT" default:"8080"`

	logger core.Logger
}

// Option mutates a Config after defaults+env have been applied.
type Option func(*Config)

// WithLogger overrides the configured logger.
func WithLogger(l core.Logger) Option { return func(c *Config) { c.logger = l } }

// WithPort overrides the HTTP port.
func WithPort(port int) Option { return func(c *Config) { c.Port = port } }

// WithBudgets overrides the orchestrator and parse_merge wall-clock budgets.
func WithBudgets(orchestratorMS, parseMergeMS int) Option {
	return func(c *Config) {
		c.OrchestratorBudgetMS = orchestratorMS
		c.ParseMergeBudgetMS = parseMergeMS
	}
}

// Load builds a Config from defaults, then environment variables, then opts.
func Load(opts ...Option) (*Config, error) {
	cfg := &Config{}
	applyDefaults(cfg)
	applyEnv(cfg)

	for _, opt := range opts {
		opt(cfg)
	}

	if cfg.logger == nil {
		cfg.logger = core.NewStructuredLogger(cfg.ServiceName, cfg.LogLevel, cfg.LogFormat)
	}

	return cfg, nil
}

// Logger returns the configured logger.
func (c *Config) Logger() core.Logger { return c.logger }

func (c *Config) LockTTL() time.Duration {
	return time.Duration(c.LockTTLSeconds) * time.Second
}

func (c *Config) OrchestratorBudget() time.Duration {
	return time.Duration(c.OrchestratorBudgetMS) * time.Millisecond
}

func (c *Config) ParseMergeBudget() time.Duration {
	return time.Duration(c.ParseMergeBudgetMS) * time.Millisecond
}

// ValidateSFTPEnv checks that every SFTP env var required by upload_sftp
// is present. Returns core.ErrMissingEnv wrapped with the first
// missing variable's name if not.
func (c *Config) ValidateSFTPEnv() error {
	required := []struct{ name, val string }{
		{"SFTP_HOST", c.SFTPHost},
		{"SFTP_USER", c.SFTPUser},
		{"SFTP_PASSWORD", c.SFTPPassword},
		{"SFTP_BASE_DIR", c.SFTPBaseDir},
	}
	for _, r := range required {
		if r.val == "" {
			return fmt.Errorf("%s: %w", r.name, core.ErrMissingEnv)
		}
	}
	return nil
}

// applyDefaults walks struct tags and fills in `default:"…"` values.
func applyDefaults(cfg *Config) {
	v := reflect.ValueOf(cfg).Elem()
	t := v.Type()
	for i := 0; i < t.NumField(); i++ {
		field := t.Field(i)
		def, ok := field.Tag.Lookup("default")
		if !ok {
			continue
		}
		setField(v.Field(i), def)
	}
}

// applyEnv walks struct tags and overrides with any present env var.
func applyEnv(cfg *Config) {
	v := reflect.ValueOf(cfg).Elem()
	t := v.Type()
	for i := 0; i < t.NumField(); i++ {
		field := t.Field(i)
		envName, ok := field.Tag.Lookup("env")
		if !ok {
			continue
		}
		val, present := os.LookupEnv(envName)
		if !present {
			continue
		}
		setField(v.Field(i), val)
	}
}

func setField(f reflect.Value, raw string) {
	switch f.Kind() {
	case reflect.String:
		f.SetString(raw)
	case reflect.Int, reflect.Int64:
		if n, err := strconv.ParseInt(raw, 10, 64); err == nil {
			f.SetInt(n)
		}
	case reflect.Bool:
		if b, err := strconv.ParseBool(raw); err == nil {
			f.SetBool(b)
		}
	}
}
