package config

import (
	"fmt"
	"strings"

	ferrors "git.home.luguber.info/inful/scampish/internal/foundation/errors"
	"git.home.luguber.info/inful/scampish/internal/markdown"
)

// Validate checks the normalized configuration and reports every problem found.
func (c *Config) Validate() error {
	var problems []string

	if NormalizeStoreBackend(string(c.Store.Backend)) == "" {
		problems = append(problems, "store.backend must be one of fs, bolt, memory")
	}
	if c.Store.Backend != StoreBackendMemory && strings.TrimSpace(c.Store.Root) == "" {
		problems = append(problems, "store.root is required")
	}
	if strings.HasPrefix(c.Site.TemplatesDir, "/") {
		problems = append(problems, "site.templates_dir must be relative to the bucket")
	}
	for _, ext := range c.Site.MarkdownExtensions {
		if !strings.HasPrefix(ext, ".") {
			problems = append(problems, fmt.Sprintf("site.markdown_extensions: %q must start with a dot", ext))
		}
	}
	if style := c.Site.HighlightStyle; style != "" && !markdown.KnownStyle(style) {
		problems = append(problems, fmt.Sprintf("site.highlight_style: unknown style %q", style))
	}
	if NormalizeRetryBackoff(string(c.Retry.Mode)) == "" {
		problems = append(problems, "retry.mode must be one of fixed, linear, exponential")
	}
	if c.Retry.Initial > c.Retry.Max {
		problems = append(problems, "retry.initial cannot exceed retry.max")
	}

	if len(problems) == 0 {
		return nil
	}
	return ferrors.ValidationError("invalid configuration").
		WithContext("problems", problems).
		WithCause(fmt.Errorf("%s", strings.Join(problems, "; "))).
		Build()
}

// RunInput selects the source bucket and output target of one run.
type RunInput struct {
	SourceBucket string
	TargetKind   string
}

// Validate rejects a run input missing either field.
func (in RunInput) Validate() error {
	var missing []string
	if strings.TrimSpace(in.SourceBucket) == "" {
		missing = append(missing, "source bucket")
	}
	if strings.TrimSpace(in.TargetKind) == "" {
		missing = append(missing, "output target kind")
	}
	if len(missing) == 0 {
		return nil
	}
	return ferrors.ConfigError("missing run parameter: "+strings.Join(missing, ", ")).
		WithContext("missing", missing).
		Build()
}

// RunInput combines the configured defaults with command line overrides.
func (c *Config) RunInput(bucket, target string) RunInput {
	in := RunInput{SourceBucket: c.Store.Bucket, TargetKind: c.Target}
	if bucket != "" {
		in.SourceBucket = bucket
	}
	if target != "" {
		in.TargetKind = target
	}
	return in
}
