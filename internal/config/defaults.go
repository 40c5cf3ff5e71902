package config

import "time"

// Publishing conventions applied when the configuration does not override them.
const (
	DefaultSourceDir     = "src"
	DefaultTemplatesDir  = "templates"
	DefaultBaseURL       = "/"
	DefaultDirConfigFile = "_config.yaml"
	DefaultLayout        = "post"
	DefaultVisibility    = "public-read"
	DefaultCacheControl  = "max-age=86400, public"
	DefaultStorageClass  = "REDUCED_REDUNDANCY"
	DefaultSiteConfig    = "scampish_config.yaml"
	DefaultNotifySubject = "scampish.runs"
)

// DefaultMarkdownExtensions lists the extensions classified as markdown.
var DefaultMarkdownExtensions = []string{".markdown"}

func (c *Config) applyDefaults() {
	if c.Store.Backend == "" {
		c.Store.Backend = StoreBackendFS
	}
	if c.Store.Root == "" {
		switch c.Store.Backend {
		case StoreBackendBolt:
			c.Store.Root = "scampish.db"
		default:
			c.Store.Root = "."
		}
	}

	s := &c.Site
	if s.SourceDir == "" {
		s.SourceDir = DefaultSourceDir
	}
	if s.TemplatesDir == "" {
		s.TemplatesDir = DefaultTemplatesDir
	}
	if s.BaseURL == "" {
		s.BaseURL = DefaultBaseURL
	}
	if s.ConfigFile == "" {
		s.ConfigFile = DefaultDirConfigFile
	}
	if len(s.MarkdownExtensions) == 0 {
		s.MarkdownExtensions = append([]string(nil), DefaultMarkdownExtensions...)
	}
	if s.DefaultLayout == "" {
		s.DefaultLayout = DefaultLayout
	}

	p := &c.Publish
	if p.Visibility == "" {
		p.Visibility = DefaultVisibility
	}
	if p.CacheControl == "" {
		p.CacheControl = DefaultCacheControl
	}
	if p.StorageClass == "" {
		p.StorageClass = DefaultStorageClass
	}
	if p.Concurrency <= 0 {
		p.Concurrency = 16
	}

	if c.Retry.Mode == "" {
		c.Retry.Mode = RetryBackoffExponential
	}
	if c.Retry.Initial <= 0 {
		c.Retry.Initial = 200 * time.Millisecond
	}
	if c.Retry.Max <= 0 {
		c.Retry.Max = 5 * time.Second
	}
	switch {
	case c.Retry.MaxRetries == 0:
		c.Retry.MaxRetries = 3
	case c.Retry.MaxRetries < 0:
		c.Retry.MaxRetries = 0
	}

	if c.Logging.Level == "" {
		c.Logging.Level = LogLevelInfo
	}
	if c.Logging.Format == "" {
		c.Logging.Format = LogFormatText
	}

	if c.Daemon.Interval <= 0 {
		c.Daemon.Interval = 15 * time.Minute
	}
	if c.Daemon.Debounce <= 0 {
		c.Daemon.Debounce = 2 * time.Second
	}

	if c.Notify.Subject == "" {
		c.Notify.Subject = DefaultNotifySubject
	}
	if c.Notify.Timeout <= 0 {
		c.Notify.Timeout = 5 * time.Second
	}
}
