// Package markdown converts page bodies to HTML.
package markdown

import (
	"bytes"

	chromahtml "github.com/alecthomas/chroma/v2/formatters/html"
	"github.com/alecthomas/chroma/v2/styles"
	"github.com/yuin/goldmark"
	gmast "github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/parser"
	"github.com/yuin/goldmark/renderer/html"
	"github.com/yuin/goldmark/text"
	highlighting "github.com/yuin/goldmark-highlighting/v2"
)

// Heading is a document heading exposed to templates as a table of contents.
type Heading struct {
	Level int    `json:"level"`
	ID    string `json:"id"`
	Text  string `json:"text"`
}

// Result is the converted form of one body.
type Result struct {
	HTML     []byte
	Headings []Heading
	// Summary is the plain text of the first paragraph.
	Summary string
}

// Converter renders Markdown with GitHub flavored extensions.
// It is safe for concurrent use.
type Converter struct {
	md goldmark.Markdown
}

type options struct {
	highlightStyle string
	lineNumbers    bool
}

// Option configures a Converter.
type Option func(*options)

// WithHighlightStyle enables syntax highlighting of fenced code blocks using
// the named chroma style. An empty name leaves code blocks unstyled.
func WithHighlightStyle(style string) Option {
	return func(o *options) { o.highlightStyle = style }
}

// WithLineNumbers adds line numbers to highlighted code blocks.
func WithLineNumbers(enabled bool) Option {
	return func(o *options) { o.lineNumbers = enabled }
}

// KnownStyle reports whether name is a registered chroma style.
func KnownStyle(name string) bool {
	_, ok := styles.Registry[name]
	return ok
}

// NewConverter creates a converter. Raw HTML in the source is passed through.
func NewConverter(opts ...Option) *Converter {
	var o options
	for _, opt := range opts {
		opt(&o)
	}

	exts := []goldmark.Extender{
		extension.GFM,
		extension.Linkify,
		extension.Strikethrough,
		extension.Table,
	}
	if o.highlightStyle != "" {
		exts = append(exts, highlighting.NewHighlighting(
			highlighting.WithStyle(o.highlightStyle),
			highlighting.WithFormatOptions(chromahtml.WithLineNumbers(o.lineNumbers)),
		))
	}

	md := goldmark.New(
		goldmark.WithExtensions(exts...),
		goldmark.WithParserOptions(parser.WithAutoHeadingID()),
		goldmark.WithRendererOptions(html.WithUnsafe()),
	)
	return &Converter{md: md}
}

// Convert parses body (frontmatter already removed) and renders it to HTML.
func (c *Converter) Convert(body []byte) (Result, error) {
	ctx := parser.NewContext()
	doc := c.md.Parser().Parse(text.NewReader(body), parser.WithContext(ctx))

	var buf bytes.Buffer
	if err := c.md.Renderer().Render(&buf, body, doc); err != nil {
		return Result{}, err
	}
	return Result{
		HTML:     buf.Bytes(),
		Headings: headings(doc, body),
		Summary:  Summary(buf.Bytes(), DefaultSummaryLength),
	}, nil
}

func headings(doc gmast.Node, src []byte) []Heading {
	var out []Heading
	_ = gmast.Walk(doc, func(n gmast.Node, entering bool) (gmast.WalkStatus, error) {
		h, ok := n.(*gmast.Heading)
		if !entering || !ok {
			return gmast.WalkContinue, nil
		}
		var id string
		if v, ok := h.AttributeString("id"); ok {
			switch v := v.(type) {
			case string:
				id = v
			case []byte:
				id = string(v)
			}
		}
		var label bytes.Buffer
		for child := h.FirstChild(); child != nil; child = child.NextSibling() {
			if t, ok := child.(*gmast.Text); ok {
				label.Write(t.Segment.Value(src))
			}
		}
		out = append(out, Heading{Level: h.Level, ID: id, Text: label.String()})
		return gmast.WalkSkipChildren, nil
	})
	return out
}
