package frontmatter

import (
	"strings"

	"github.com/inful/mdfp"
)

// Fingerprint computes the canonical content fingerprint of a page from its
// frontmatter fields and body. An existing fingerprint field is ignored so
// the value is stable across republishing.
func Fingerprint(fields map[string]any, body string) (string, error) {
	forHash := make(map[string]any, len(fields))
	for k, v := range fields {
		if k == mdfp.FingerprintField {
			continue
		}
		forHash[k] = v
	}

	serialized, err := SerializeYAML(forHash)
	if err != nil {
		return "", err
	}
	fm := strings.TrimSuffix(string(serialized), "\n")
	return mdfp.CalculateFingerprintFromParts(fm, body), nil
}
