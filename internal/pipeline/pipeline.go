// Package pipeline renders a built site tree into the publishing store.
//
// Rendering is the second phase of a run. Per directory the files are
// rendered concurrently, then the subdirectories; the first error cancels
// every sibling still pending and is returned.
package pipeline

import (
	"context"
	"html/template"
	"log/slog"
	"regexp"

	"github.com/tdewolff/minify/v2"
	"github.com/tdewolff/minify/v2/css"
	minhtml "github.com/tdewolff/minify/v2/html"
	"github.com/tdewolff/minify/v2/js"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"

	"git.home.luguber.info/inful/scampish/internal/config"
	ferrors "git.home.luguber.info/inful/scampish/internal/foundation/errors"
	"git.home.luguber.info/inful/scampish/internal/frontmatter"
	"git.home.luguber.info/inful/scampish/internal/logfields"
	"git.home.luguber.info/inful/scampish/internal/markdown"
	"git.home.luguber.info/inful/scampish/internal/metrics"
	"git.home.luguber.info/inful/scampish/internal/site"
	"git.home.luguber.info/inful/scampish/internal/store"
)

// HTMLContentType is set on every rendered page.
const HTMLContentType = "text/html; charset=UTF-8"

// Renderer executes a named template.
type Renderer interface {
	Render(ctx context.Context, name string, data any) ([]byte, error)
}

// Output describes one published object.
type Output struct {
	// Kind is metrics.KindPage or metrics.KindAsset.
	Kind        string
	SourceKey   string
	DestKey     string
	URL         string
	Layout      string
	Fingerprint string
	Bytes       int
}

// Options configures a Pipeline.
type Options struct {
	BaseURL       string
	DefaultLayout string
	Visibility    store.Visibility
	CacheControl  string
	// HighlightStyle and LineNumbers configure code block highlighting.
	HighlightStyle string
	LineNumbers    bool
	// MinifyHTML minifies rendered pages before upload.
	MinifyHTML bool
	// Concurrency bounds in-flight store writes. Zero means unbounded.
	Concurrency int
	// OnOutput is called after every successful write. It may be called
	// from several goroutines at once.
	OnOutput func(Output)
}

// OptionsFromConfig derives pipeline options from the run configuration.
func OptionsFromConfig(cfg *config.Config) Options {
	return Options{
		BaseURL:        cfg.Site.BaseURL,
		DefaultLayout:  cfg.Site.DefaultLayout,
		Visibility:     store.Visibility(cfg.Publish.Visibility),
		CacheControl:   cfg.Publish.CacheControl,
		HighlightStyle: cfg.Site.HighlightStyle,
		LineNumbers:    cfg.Site.LineNumbers,
		MinifyHTML:     cfg.Publish.MinifyHTML,
		Concurrency:    cfg.Publish.Concurrency,
	}
}

// Pipeline renders pages and copies assets.
type Pipeline struct {
	store     store.ContentStore
	templates Renderer
	converter *markdown.Converter
	minifier  *minify.M
	opts      Options
	sem       *semaphore.Weighted
	logger    *slog.Logger
}

// New creates a Pipeline writing to cs and rendering with templates.
func New(cs store.ContentStore, templates Renderer, opts Options, logger *slog.Logger) *Pipeline {
	if logger == nil {
		logger = slog.Default()
	}
	if opts.BaseURL == "" {
		opts.BaseURL = config.DefaultBaseURL
	}
	if opts.DefaultLayout == "" {
		opts.DefaultLayout = config.DefaultLayout
	}
	if opts.Visibility == "" {
		opts.Visibility = store.VisibilityPublicRead
	}
	if opts.CacheControl == "" {
		opts.CacheControl = config.DefaultCacheControl
	}
	p := &Pipeline{
		store:     cs,
		templates: templates,
		converter: markdown.NewConverter(
			markdown.WithHighlightStyle(opts.HighlightStyle),
			markdown.WithLineNumbers(opts.LineNumbers),
		),
		opts:   opts,
		logger: logger,
	}
	if opts.MinifyHTML {
		p.minifier = newMinifier()
	}
	if opts.Concurrency > 0 {
		p.sem = semaphore.NewWeighted(int64(opts.Concurrency))
	}
	return p
}

// Render publishes every file of the tree rooted at root.
func (p *Pipeline) Render(ctx context.Context, root *site.DirectoryState) error {
	global := site.SiteView(root, p.opts.BaseURL)
	return p.renderDir(ctx, root, global)
}

func (p *Pipeline) renderDir(ctx context.Context, dir *site.DirectoryState, global map[string]any) error {
	files, fctx := errgroup.WithContext(ctx)
	for _, f := range dir.Files {
		files.Go(func() error {
			return p.renderFile(fctx, dir, f, global)
		})
	}
	if err := files.Wait(); err != nil {
		return err
	}

	subdirs, sctx := errgroup.WithContext(ctx)
	for _, sub := range dir.Subdirs {
		subdirs.Go(func() error {
			return p.renderDir(sctx, sub, global)
		})
	}
	return subdirs.Wait()
}

func (p *Pipeline) renderFile(ctx context.Context, dir *site.DirectoryState, f *site.FileState, global map[string]any) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if f.Raw {
		return p.copyAsset(ctx, dir, f)
	}
	return p.renderPage(ctx, dir, f, global)
}

func (p *Pipeline) copyAsset(ctx context.Context, dir *site.DirectoryState, f *site.FileState) error {
	dst := site.OutputKey(dir, f)
	if err := p.withSlot(ctx, func() error {
		return p.store.Copy(ctx, f.Key, dst, p.opts.Visibility)
	}); err != nil {
		return err
	}
	p.logger.Debug("Copied asset", logfields.Key(f.Key), slog.String("dest", dst))
	p.emit(Output{Kind: metrics.KindAsset, SourceKey: f.Key, DestKey: dst, URL: f.URL})
	return nil
}

func (p *Pipeline) renderPage(ctx context.Context, dir *site.DirectoryState, f *site.FileState, global map[string]any) error {
	converted, err := p.converter.Convert([]byte(f.Content))
	if err != nil {
		return ferrors.RenderError("failed to convert markdown").
			WithCause(err).
			WithContext("key", f.Key).
			Build()
	}

	if dir.IsRoot() {
		f.RelatedPosts = []*site.FileState{}
	} else {
		f.RelatedPosts = dir.Posts
	}
	// toc and summary are computed unless the page's own front matter sets
	// them; inherited directory params never replace them.
	page := site.PageView(f)
	if _, ok := f.FrontMatter[site.ViewTOC]; !ok {
		page[site.ViewTOC] = converted.Headings
	}
	if _, ok := f.FrontMatter[site.ViewSummary]; !ok {
		page[site.ViewSummary] = converted.Summary
	}

	layout := f.Layout(p.opts.DefaultLayout)
	html, err := p.templates.Render(ctx, layout, map[string]any{
		"content": template.HTML(converted.HTML), //nolint:gosec // rendered from author markdown
		"site":    global,
		"page":    page,
	})
	if err != nil {
		if c, ok := ferrors.AsClassified(err); ok {
			return c.WithContext("key", f.Key)
		}
		return ferrors.RenderError("failed to render page").WithCause(err).WithContext("key", f.Key).Build()
	}

	html = p.minify(f.Key, html)

	dst := site.OutputKey(dir, f)
	if err := p.withSlot(ctx, func() error {
		return p.store.Put(ctx, dst, html, store.PutOptions{
			ContentType:  HTMLContentType,
			Visibility:   p.opts.Visibility,
			CacheControl: p.opts.CacheControl,
		})
	}); err != nil {
		return err
	}

	fingerprint, err := frontmatter.Fingerprint(f.FrontMatter, f.Content)
	if err != nil {
		p.logger.Warn("Failed to fingerprint page", logfields.Key(f.Key), logfields.Error(err))
	}
	p.logger.Debug("Rendered page", logfields.Key(f.Key), logfields.URL(f.URL), logfields.Template(layout))
	p.emit(Output{
		Kind:        metrics.KindPage,
		SourceKey:   f.Key,
		DestKey:     dst,
		URL:         f.URL,
		Layout:      layout,
		Fingerprint: fingerprint,
		Bytes:       len(html),
	})
	return nil
}

func newMinifier() *minify.M {
	m := minify.New()
	m.Add("text/html", &minhtml.Minifier{KeepDocumentTags: true, KeepEndTags: true})
	m.AddFunc("text/css", css.Minify)
	m.AddFuncRegexp(regexp.MustCompile("^(application|text)/(x-)?(java|ecma)script$"), js.Minify)
	return m
}

// minify returns the minified page, or the page unchanged when minification
// is disabled or fails.
func (p *Pipeline) minify(key string, page []byte) []byte {
	if p.minifier == nil {
		return page
	}
	out, err := p.minifier.Bytes("text/html", page)
	if err != nil {
		p.logger.Warn("Failed to minify page, publishing original", logfields.Key(key), logfields.Error(err))
		return page
	}
	return out
}

func (p *Pipeline) withSlot(ctx context.Context, fn func() error) error {
	if p.sem != nil {
		if err := p.sem.Acquire(ctx, 1); err != nil {
			return err
		}
		defer p.sem.Release(1)
	}
	return fn()
}

func (p *Pipeline) emit(out Output) {
	if p.opts.OnOutput != nil {
		p.opts.OnOutput(out)
	}
}
