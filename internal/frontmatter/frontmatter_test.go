package frontmatter

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse_OrderRoundTrip(t *testing.T) {
	doc, err := Parse([]byte("---\norder: 2\n---\nHello"))
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"order": 2}, doc.Data)
	assert.Equal(t, "Hello", doc.Content)
}

func TestParse_NoFrontmatter(t *testing.T) {
	doc, err := Parse([]byte("# Title\n\nHello\n"))
	require.NoError(t, err)
	assert.Empty(t, doc.Data)
	assert.Equal(t, "# Title\n\nHello\n", doc.Content)
}

func TestParse_MalformedYAML(t *testing.T) {
	_, err := Parse([]byte("---\norder: [1, 2\n---\nbody"))
	require.Error(t, err)
}

func TestSplit_YAMLFrontmatter_SplitsFrontmatterAndBody(t *testing.T) {
	fm, body, had, err := Split([]byte("---\nkey: value\n---\n# Title\n"))
	require.NoError(t, err)
	require.True(t, had)
	require.Equal(t, []byte("key: value\n"), fm)
	require.Equal(t, []byte("# Title\n"), body)
}

func TestSplit_MissingClosingDelimiter_ReturnsError(t *testing.T) {
	_, _, had, err := Split([]byte("---\nkey: value\n# Title\n"))
	require.Error(t, err)
	require.False(t, had)
	require.True(t, errors.Is(err, ErrMissingClosingDelimiter))
}

func TestSplit_CRLF_SplitsFrontmatterAndBody(t *testing.T) {
	fm, body, had, err := Split([]byte("---\r\nkey: value\r\n---\r\n# Title\r\n"))
	require.NoError(t, err)
	require.True(t, had)
	require.Equal(t, []byte("key: value\r\n"), fm)
	require.Equal(t, []byte("# Title\r\n"), body)
}

func TestSplit_EmptyFrontmatterBlock(t *testing.T) {
	fm, body, had, err := Split([]byte("---\n---\n# Title\n"))
	require.NoError(t, err)
	require.True(t, had)
	require.Empty(t, fm)
	require.Equal(t, []byte("# Title\n"), body)
}

func TestSplit_ClosingDelimiterAtEOF(t *testing.T) {
	fm, body, had, err := Split([]byte("---\ntitle: Draft\n---"))
	require.NoError(t, err)
	require.True(t, had)
	require.Equal(t, []byte("title: Draft\n"), fm)
	require.Empty(t, body)
}

func TestParseYAML_Empty_ReturnsEmptyMap(t *testing.T) {
	fields, err := ParseYAML([]byte("  \n"))
	require.NoError(t, err)
	require.NotNil(t, fields)
	require.Empty(t, fields)
}

func TestSerializeYAML_SortsKeysRecursively(t *testing.T) {
	out, err := SerializeYAML(map[string]any{
		"title": "Hi",
		"order": 1,
		"meta":  map[string]any{"z": true, "a": 1.5},
	})
	require.NoError(t, err)
	require.Equal(t, "meta:\n  a: 1.5\n  z: true\norder: 1\ntitle: Hi\n", string(out))

	empty, err := SerializeYAML(nil)
	require.NoError(t, err)
	require.Empty(t, empty)
}

func TestFingerprint_StableAndContentSensitive(t *testing.T) {
	a, err := Fingerprint(map[string]any{"order": 1, "title": "A"}, "# Hi")
	require.NoError(t, err)
	require.NotEmpty(t, a)

	b, err := Fingerprint(map[string]any{"title": "A", "order": 1, "fingerprint": "stale"}, "# Hi")
	require.NoError(t, err)
	assert.Equal(t, a, b, "key order and existing fingerprint do not matter")

	c, err := Fingerprint(map[string]any{"order": 1, "title": "A"}, "# Bye")
	require.NoError(t, err)
	assert.NotEqual(t, a, c)
}
