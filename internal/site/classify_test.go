package site

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"git.home.luguber.info/inful/scampish/internal/config"
	ferrors "git.home.luguber.info/inful/scampish/internal/foundation/errors"
)

func TestClassify(t *testing.T) {
	c := NewClassifier(config.SiteDefaults{})
	cases := map[string]Kind{
		"src/_config.yaml":       KindConfig,
		"src/blog/_config.yaml":  KindConfig,
		"src/_draft.markdown":    KindIgnored,
		"src/blog/":              KindIgnored,
		"src/post.markdown":      KindMarkdown,
		"src/notes.md":           KindRaw,
		"src/images/cat.png":     KindRaw,
		"src/README":             KindRaw,
		"src/blog/_partials.css": KindIgnored,
	}
	for key, want := range cases {
		assert.Equal(t, want, c.Classify(key), key)
	}
}

func TestClassify_CustomExtensions(t *testing.T) {
	c := NewClassifier(config.SiteDefaults{MarkdownExtensions: []string{".md", ".markdown"}})
	assert.Equal(t, KindMarkdown, c.Classify("src/notes.md"))
	assert.Equal(t, KindMarkdown, c.Classify("src/post.markdown"))
}

func TestNewMarkdownFile(t *testing.T) {
	f, err := NewMarkdownFile("/blog", "src/blog/hello.markdown", []byte("---\norder: 2\n---\nHello"))
	require.NoError(t, err)

	assert.Equal(t, "hello.markdown", f.Filename)
	assert.Equal(t, "hello.html", f.RelativeURL)
	assert.Equal(t, "/blog/hello.html", f.URL)
	assert.Equal(t, "Hello", f.Content)
	assert.Equal(t, float64(2), f.Order())
	assert.False(t, f.Raw)
}

func TestNewMarkdownFile_MalformedFrontMatter(t *testing.T) {
	_, err := NewMarkdownFile("/", "src/bad.markdown", []byte("---\ntitle: [oops\n---\nbody"))
	require.Error(t, err)
	assert.True(t, ferrors.HasCategory(err, ferrors.CategoryConfig))
}

func TestParseConfig_Empty(t *testing.T) {
	cfg, err := ParseConfig("src/_config.yaml", nil)
	require.NoError(t, err)
	assert.Empty(t, cfg)
}

func TestOrder_Coercion(t *testing.T) {
	assert.Equal(t, float64(3), (&FileState{FrontMatter: map[string]any{"order": 3}}).Order())
	assert.Equal(t, 1.5, (&FileState{FrontMatter: map[string]any{"order": "1.5"}}).Order())
	assert.Equal(t, float64(0), (&FileState{FrontMatter: map[string]any{"order": "soon"}}).Order())
	assert.Equal(t, float64(0), (&FileState{}).Order())
}
