// Package config loads the scampish run configuration and the per-site
// configuration stored alongside the content.
package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	ferrors "git.home.luguber.info/inful/scampish/internal/foundation/errors"
)

// DefaultFile is the configuration file looked up when --config is not given.
const DefaultFile = "scampish.yaml"

// Config represents the run configuration.
type Config struct {
	Store   StoreConfig   `yaml:"store"`
	Site    SiteDefaults  `yaml:"site"`
	Target  string        `yaml:"target,omitempty"`
	Publish PublishConfig `yaml:"publish"`
	Retry   RetryConfig   `yaml:"retry"`
	Logging LoggingConfig `yaml:"logging"`
	Ledger  LedgerConfig  `yaml:"ledger"`
	Daemon  DaemonConfig  `yaml:"daemon"`
	Notify  NotifyConfig  `yaml:"notify"`
}

// StoreConfig selects the content store backend.
type StoreConfig struct {
	Backend StoreBackend `yaml:"backend"`
	// Root is the directory holding one subdirectory per bucket (fs backend)
	// or the database file (bolt backend).
	Root   string `yaml:"root"`
	Bucket string `yaml:"bucket,omitempty"` // source bucket
}

// SiteDefaults controls how the source bucket is laid out.
type SiteDefaults struct {
	SourceDir          string   `yaml:"source_dir"`
	TemplatesDir       string   `yaml:"templates_dir"`
	BaseURL            string   `yaml:"base_url"`
	ConfigFile         string   `yaml:"config_file"`
	MarkdownExtensions []string `yaml:"markdown_extensions"`
	DefaultLayout      string   `yaml:"default_layout"`
	// HighlightStyle names the chroma style for fenced code blocks; empty disables highlighting.
	HighlightStyle string `yaml:"highlight_style,omitempty"`
	LineNumbers    bool   `yaml:"line_numbers,omitempty"`
}

// PublishConfig holds the publishing conventions for output objects.
type PublishConfig struct {
	Atomic       *bool  `yaml:"atomic,omitempty"`
	Visibility   string `yaml:"visibility"`
	CacheControl string `yaml:"cache_control"`
	StorageClass string `yaml:"storage_class"`
	Concurrency  int    `yaml:"concurrency"`
	MinifyHTML   bool   `yaml:"minify_html,omitempty"`
}

// IsAtomic reports whether output is staged and committed only after a full render.
func (p PublishConfig) IsAtomic() bool {
	return p.Atomic == nil || *p.Atomic
}

// RetryConfig configures store retries for transient failures.
// A negative max_retries disables retrying.
type RetryConfig struct {
	Mode       RetryBackoffMode `yaml:"mode"`
	Initial    time.Duration    `yaml:"initial"`
	Max        time.Duration    `yaml:"max"`
	MaxRetries int              `yaml:"max_retries"`
}

// LoggingConfig configures the slog handler.
type LoggingConfig struct {
	Level  LogLevel  `yaml:"level"`
	Format LogFormat `yaml:"format"`
}

// LedgerConfig points at the SQLite run ledger. An empty path disables it.
type LedgerConfig struct {
	Path string `yaml:"path,omitempty"`
}

// DaemonConfig configures the long-running rebuild loop.
type DaemonConfig struct {
	Interval    time.Duration `yaml:"interval"`
	Watch       bool          `yaml:"watch"`
	Debounce    time.Duration `yaml:"debounce"`
	MetricsAddr string        `yaml:"metrics_addr,omitempty"`
}

// NotifyConfig enables run notifications over NATS. An empty URL disables them.
type NotifyConfig struct {
	NATSURL string        `yaml:"nats_url,omitempty"`
	Subject string        `yaml:"subject"`
	Timeout time.Duration `yaml:"timeout"`
}

// Enabled reports whether run notifications are configured.
func (n NotifyConfig) Enabled() bool { return n.NATSURL != "" }

// Load reads configPath, expanding ${VAR} references after loading .env files.
// A missing file at the default location yields the defaults.
func Load(configPath string) (*Config, error) {
	if err := loadEnvFiles(); err != nil {
		return nil, ferrors.WrapError(err, ferrors.CategoryConfig, "failed to load .env file").Build()
	}

	data, err := os.ReadFile(configPath)
	switch {
	case errors.Is(err, os.ErrNotExist) && configPath == DefaultFile:
		data = nil
	case err != nil:
		return nil, ferrors.WrapError(err, ferrors.CategoryConfig, "failed to read config file").
			WithContext("path", configPath).
			Build()
	}
	return Parse(data)
}

// Parse decodes YAML bytes into a normalized and validated Config.
func Parse(data []byte) (*Config, error) {
	var cfg Config
	if len(data) > 0 {
		expanded := os.ExpandEnv(string(data))
		if err := yaml.Unmarshal([]byte(expanded), &cfg); err != nil {
			return nil, ferrors.WrapError(err, ferrors.CategoryConfig, "failed to unmarshal config").Build()
		}
	}
	cfg.normalize()
	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Default returns a configuration with every default applied.
func Default() *Config {
	var cfg Config
	cfg.applyDefaults()
	return &cfg
}

func (c *Config) normalize() {
	// Unknown values are kept verbatim so Validate can report them.
	if b := NormalizeStoreBackend(string(c.Store.Backend)); b != "" {
		c.Store.Backend = b
	}
	if m := NormalizeRetryBackoff(string(c.Retry.Mode)); m != "" {
		c.Retry.Mode = m
	}
	c.Logging.Level = NormalizeLogLevel(string(c.Logging.Level))
	c.Logging.Format = NormalizeLogFormat(string(c.Logging.Format))
}

// String renders a short description for debug logs.
func (c *Config) String() string {
	return fmt.Sprintf("store=%s root=%s bucket=%s target=%s atomic=%t",
		c.Store.Backend, c.Store.Root, c.Store.Bucket, c.Target, c.Publish.IsAtomic())
}
