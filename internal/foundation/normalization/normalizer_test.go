package normalization

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type backend string

const (
	backendFS   backend = "fs"
	backendBolt backend = "bolt"
)

func newBackendNormalizer() *Normalizer[backend] {
	return NewNormalizer(map[string]backend{
		"fs":    backendFS,
		"bolt":  backendBolt,
		"BBolt": backendBolt,
	}, backendFS)
}

func TestNormalizer_Normalize(t *testing.T) {
	n := newBackendNormalizer()

	tests := []struct {
		name     string
		input    string
		expected backend
	}{
		{"exact match", "bolt", backendBolt},
		{"case insensitive", "BOLT", backendBolt},
		{"with spaces", "  fs  ", backendFS},
		{"alias registered in mixed case", "bbolt", backendBolt},
		{"unknown falls back to default", "s3", backendFS},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, n.Normalize(tt.input))
		})
	}
}

func TestNormalizer_NormalizeWithError(t *testing.T) {
	n := newBackendNormalizer()

	got, err := n.NormalizeWithError(" Bolt ")
	require.NoError(t, err)
	assert.Equal(t, backendBolt, got)

	_, err = n.NormalizeWithError("s3")
	require.Error(t, err)
	assert.Contains(t, err.Error(), `"s3"`)
	assert.Contains(t, err.Error(), "bbolt")
}

func TestNormalizer_ValidKeysIsSortedCopy(t *testing.T) {
	n := newBackendNormalizer()
	keys := n.ValidKeys()
	assert.Equal(t, []string{"bbolt", "bolt", "fs"}, keys)

	keys[0] = "mutated"
	assert.Equal(t, "bbolt", n.ValidKeys()[0])
}
