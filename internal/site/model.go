// Package site builds the in-memory site tree from a content store.
//
// Building is the first of two phases: the tree returned by Builder.Build is
// complete and immutable before rendering starts, except for the per-page
// RelatedPosts slot the render pipeline fills in.
package site

import (
	"cmp"
	"slices"
	"strconv"
	"strings"
)

// Reserved front matter keys read by the engine itself.
const (
	KeyOrder  = "order"
	KeyLayout = "layout"
)

// DirectoryState is one content directory.
type DirectoryState struct {
	// Prefix is the absolute store prefix, always ending with "/".
	Prefix string
	// RelativePath is Prefix relative to the content root, without slashes
	// at either end. It is empty for the root directory.
	RelativePath string
	// URL is the public URL of the directory index.
	URL string

	// Files holds every visible file in store-listing order.
	Files []*FileState
	// Posts is the markdown subset of Files ordered by Order.
	Posts []*FileState
	// DefaultPost is Posts[0], or nil when Posts is empty.
	DefaultPost *FileState
	// Subdirs is ordered by the order key of each subdirectory's own config.
	Subdirs []*DirectoryState

	// Config is this directory's own configuration file.
	Config map[string]any
	// Params is the inherited configuration: the parent's Params shallow
	// merged with Config.
	Params map[string]any
}

// IsRoot reports whether d is the content root.
func (d *DirectoryState) IsRoot() bool { return d.RelativePath == "" }

// Order returns the order key of the directory's own configuration.
func (d *DirectoryState) Order() float64 { return orderOf(d.Config) }

// Walk calls fn for d and every directory below it, parents first.
func (d *DirectoryState) Walk(fn func(*DirectoryState)) {
	fn(d)
	for _, sub := range d.Subdirs {
		sub.Walk(fn)
	}
}

// FileState is one visible content file.
type FileState struct {
	// Key is the source object key.
	Key      string
	Filename string
	// Raw files are copied verbatim; everything else is markdown.
	Raw         bool
	RelativeURL string
	URL         string

	// Content is the markdown body after front matter extraction.
	Content string
	// FrontMatter holds the document's own fields.
	FrontMatter map[string]any
	// Data is the template view of the file: directory params, then the
	// reserved fields, then front matter, later sources winning.
	Data map[string]any

	// RelatedPosts is filled in during rendering only.
	RelatedPosts []*FileState
}

// Order returns the file's order key, defaulting to 0.
func (f *FileState) Order() float64 { return orderOf(f.FrontMatter) }

// Layout returns the template requested by the page or fallback.
func (f *FileState) Layout(fallback string) string {
	if s, ok := f.FrontMatter[KeyLayout].(string); ok && strings.TrimSpace(s) != "" {
		return s
	}
	return fallback
}

// orderOf reads the order key as a number. Numeric strings are accepted;
// anything else sorts as 0.
func orderOf(m map[string]any) float64 {
	switch v := m[KeyOrder].(type) {
	case int:
		return float64(v)
	case int64:
		return float64(v)
	case uint64:
		return float64(v)
	case float64:
		return v
	case string:
		if f, err := strconv.ParseFloat(strings.TrimSpace(v), 64); err == nil {
			return f
		}
	}
	return 0
}

// sortByOrder stable-sorts items ascending by their order key.
func sortByOrder[T interface{ Order() float64 }](items []T) {
	slices.SortStableFunc(items, func(a, b T) int {
		return cmp.Compare(a.Order(), b.Order())
	})
}
