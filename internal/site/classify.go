package site

import (
	"path"
	"slices"
	"strings"

	"gopkg.in/yaml.v3"

	"git.home.luguber.info/inful/scampish/internal/config"
	ferrors "git.home.luguber.info/inful/scampish/internal/foundation/errors"
	"git.home.luguber.info/inful/scampish/internal/frontmatter"
)

// Kind is the classification of one store object.
type Kind int

const (
	KindIgnored Kind = iota
	KindConfig
	KindRaw
	KindMarkdown
)

func (k Kind) String() string {
	switch k {
	case KindConfig:
		return "config"
	case KindRaw:
		return "raw"
	case KindMarkdown:
		return "markdown"
	default:
		return "ignored"
	}
}

// HiddenPrefix marks files that are never published.
const HiddenPrefix = "_"

// OutputExtension replaces the source extension of markdown documents.
const OutputExtension = ".html"

// Classifier decides how each object under a content directory is handled.
type Classifier struct {
	ConfigFile         string
	MarkdownExtensions []string
}

// NewClassifier returns a classifier using the site layout of cfg.
func NewClassifier(cfg config.SiteDefaults) Classifier {
	c := Classifier{ConfigFile: cfg.ConfigFile, MarkdownExtensions: cfg.MarkdownExtensions}
	if c.ConfigFile == "" {
		c.ConfigFile = config.DefaultDirConfigFile
	}
	if len(c.MarkdownExtensions) == 0 {
		c.MarkdownExtensions = config.DefaultMarkdownExtensions
	}
	return c
}

// Classify returns the kind of the object with the given key.
// Empty filenames (directory marker keys) are ignored.
func (c Classifier) Classify(key string) Kind {
	name := path.Base("/" + key)
	switch {
	case strings.HasSuffix(key, "/") || name == "/" || name == "":
		return KindIgnored
	case name == c.ConfigFile:
		return KindConfig
	case strings.HasPrefix(name, HiddenPrefix):
		return KindIgnored
	case c.isMarkdown(name):
		return KindMarkdown
	default:
		return KindRaw
	}
}

func (c Classifier) isMarkdown(name string) bool {
	return slices.Contains(c.MarkdownExtensions, path.Ext(name))
}

// ParseConfig decodes a directory configuration payload.
func ParseConfig(key string, data []byte) (map[string]any, error) {
	var cfg map[string]any
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, ferrors.ConfigError("failed to parse directory configuration").
			WithCause(err).
			WithContext("key", key).
			Build()
	}
	if cfg == nil {
		cfg = map[string]any{}
	}
	return cfg, nil
}

// NewRawFile builds the state of an asset copied verbatim.
func NewRawFile(dirURL, key string) *FileState {
	name := path.Base(key)
	return &FileState{
		Key:         key,
		Filename:    name,
		Raw:         true,
		RelativeURL: name,
		URL:         JoinURL(dirURL, name),
		FrontMatter: map[string]any{},
	}
}

// NewMarkdownFile parses a markdown document into its file state.
func NewMarkdownFile(dirURL, key string, data []byte) (*FileState, error) {
	doc, err := frontmatter.Parse(data)
	if err != nil {
		return nil, ferrors.ConfigError("failed to parse front matter").
			WithCause(err).
			WithContext("key", key).
			Build()
	}
	name := path.Base(key)
	rel := strings.TrimSuffix(name, path.Ext(name)) + OutputExtension
	return &FileState{
		Key:         key,
		Filename:    name,
		RelativeURL: rel,
		URL:         JoinURL(dirURL, rel),
		Content:     doc.Content,
		FrontMatter: doc.Data,
	}, nil
}
