package config

import (
	"maps"

	"gopkg.in/yaml.v3"

	ferrors "git.home.luguber.info/inful/scampish/internal/foundation/errors"
)

// SiteConfig is the site-level file stored at the root of the source bucket.
// Keys other than buckets and base_url are exposed to templates as site params.
type SiteConfig struct {
	Buckets map[string]string `yaml:"buckets"`
	BaseURL string            `yaml:"base_url,omitempty"`
	Params  map[string]any    `yaml:",inline"`
}

// ParseSiteConfig decodes a site configuration payload.
func ParseSiteConfig(data []byte) (*SiteConfig, error) {
	sc := &SiteConfig{}
	if err := yaml.Unmarshal(data, sc); err != nil {
		return nil, ferrors.WrapError(err, ferrors.CategoryConfig, "failed to parse site configuration").Build()
	}
	if sc.Buckets == nil {
		sc.Buckets = map[string]string{}
	}
	return sc, nil
}

// ResolveBucket returns the output bucket for target, consulting the site
// configuration first and the root directory configuration second.
func ResolveBucket(site *SiteConfig, rootParams map[string]any, target string) (string, error) {
	if site != nil {
		if b, ok := site.Buckets[target]; ok && b != "" {
			return b, nil
		}
	}
	if raw, ok := rootParams["buckets"].(map[string]any); ok {
		if b, ok := raw[target].(string); ok && b != "" {
			return b, nil
		}
	}
	known := map[string]string{}
	if site != nil {
		maps.Copy(known, site.Buckets)
	}
	return "", ferrors.ConfigError("no output bucket configured for target").
		WithContext("target", target).
		WithContext("known_targets", known).
		Build()
}
