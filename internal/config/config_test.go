package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	ferrors "git.home.luguber.info/inful/scampish/internal/foundation/errors"
)

func TestParse_Defaults(t *testing.T) {
	cfg, err := Parse(nil)
	require.NoError(t, err)

	assert.Equal(t, StoreBackendFS, cfg.Store.Backend)
	assert.Equal(t, ".", cfg.Store.Root)
	assert.Equal(t, "src", cfg.Site.SourceDir)
	assert.Equal(t, "templates", cfg.Site.TemplatesDir)
	assert.Equal(t, "/", cfg.Site.BaseURL)
	assert.Equal(t, "_config.yaml", cfg.Site.ConfigFile)
	assert.Equal(t, []string{".markdown"}, cfg.Site.MarkdownExtensions)
	assert.Equal(t, "post", cfg.Site.DefaultLayout)
	assert.Equal(t, "public-read", cfg.Publish.Visibility)
	assert.Equal(t, "max-age=86400, public", cfg.Publish.CacheControl)
	assert.Equal(t, "REDUCED_REDUNDANCY", cfg.Publish.StorageClass)
	assert.True(t, cfg.Publish.IsAtomic())
	assert.Equal(t, RetryBackoffExponential, cfg.Retry.Mode)
	assert.Equal(t, 3, cfg.Retry.MaxRetries)
	assert.Equal(t, LogLevelInfo, cfg.Logging.Level)
	assert.Equal(t, LogFormatText, cfg.Logging.Format)
}

func TestParse_OverridesAndNormalization(t *testing.T) {
	t.Setenv("SCAMPISH_TEST_ROOT", "/srv/content")

	cfg, err := Parse([]byte(`
store:
  backend: " BBolt "
  root: ${SCAMPISH_TEST_ROOT}/site.db
  bucket: blog-src
target: prod
site:
  markdown_extensions: [".markdown", ".md"]
  highlight_style: monokai
publish:
  atomic: false
  minify_html: true
retry:
  mode: Linear
  initial: 50ms
  max: 1s
  max_retries: -1
logging:
  level: DEBUG
  format: json
daemon:
  interval: 30s
`))
	require.NoError(t, err)

	assert.Equal(t, StoreBackendBolt, cfg.Store.Backend)
	assert.Equal(t, "/srv/content/site.db", cfg.Store.Root)
	assert.Equal(t, "blog-src", cfg.Store.Bucket)
	assert.Equal(t, []string{".markdown", ".md"}, cfg.Site.MarkdownExtensions)
	assert.Equal(t, "monokai", cfg.Site.HighlightStyle)
	assert.False(t, cfg.Publish.IsAtomic())
	assert.True(t, cfg.Publish.MinifyHTML)
	assert.Equal(t, RetryBackoffLinear, cfg.Retry.Mode)
	assert.Equal(t, 50*time.Millisecond, cfg.Retry.Initial)
	assert.Equal(t, 0, cfg.Retry.MaxRetries)
	assert.Equal(t, LogLevelDebug, cfg.Logging.Level)
	assert.Equal(t, LogFormatJSON, cfg.Logging.Format)
	assert.Equal(t, 30*time.Second, cfg.Daemon.Interval)
}

func TestParse_ValidationErrors(t *testing.T) {
	_, err := Parse([]byte(`
store:
  backend: s3
site:
  markdown_extensions: ["md"]
  highlight_style: neon-rainbow
retry:
  mode: random
`))
	require.Error(t, err)
	assert.True(t, ferrors.HasCategory(err, ferrors.CategoryValidation))
	assert.Contains(t, err.Error(), "store.backend")
	assert.Contains(t, err.Error(), "must start with a dot")
	assert.Contains(t, err.Error(), "site.highlight_style")
	assert.Contains(t, err.Error(), "retry.mode")
}

func TestParse_MalformedYAML(t *testing.T) {
	_, err := Parse([]byte("store: [unclosed"))
	require.Error(t, err)
	assert.True(t, ferrors.HasCategory(err, ferrors.CategoryConfig))
}

func TestLoad_MissingExplicitFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.Error(t, err)
	assert.True(t, ferrors.HasCategory(err, ferrors.CategoryConfig))
}

func TestLoad_ReadsFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "scampish.yaml")
	require.NoError(t, os.WriteFile(path, []byte("target: staging\n"), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "staging", cfg.Target)
}

func TestRunInput(t *testing.T) {
	cfg := Default()
	cfg.Store.Bucket = "configured"

	in := cfg.RunInput("", "prod")
	assert.Equal(t, RunInput{SourceBucket: "configured", TargetKind: "prod"}, in)
	require.NoError(t, in.Validate())

	in = cfg.RunInput("override", "")
	err := in.Validate()
	require.Error(t, err)
	assert.True(t, ferrors.HasCategory(err, ferrors.CategoryConfig))
	assert.Contains(t, err.Error(), "output target kind")

	err = RunInput{}.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "source bucket, output target kind")
}

func TestResolveBucket(t *testing.T) {
	site, err := ParseSiteConfig([]byte("buckets:\n  prod: www-bucket\ntitle: My Site\n"))
	require.NoError(t, err)
	assert.Equal(t, "My Site", site.Params["title"])

	b, err := ResolveBucket(site, nil, "prod")
	require.NoError(t, err)
	assert.Equal(t, "www-bucket", b)

	root := map[string]any{"buckets": map[string]any{"test": "out-bucket"}}
	b, err = ResolveBucket(site, root, "test")
	require.NoError(t, err)
	assert.Equal(t, "out-bucket", b)

	_, err = ResolveBucket(nil, root, "missing")
	require.Error(t, err)
	assert.True(t, ferrors.HasCategory(err, ferrors.CategoryConfig))
}
