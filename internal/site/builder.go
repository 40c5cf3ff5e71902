package site

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"

	"git.home.luguber.info/inful/scampish/internal/config"
	"git.home.luguber.info/inful/scampish/internal/logfields"
	"git.home.luguber.info/inful/scampish/internal/store"
)

// Options configures a Builder.
type Options struct {
	// BaseURL prefixes every directory URL.
	BaseURL    string
	Classifier Classifier
	// Params is the base layer every directory inherits from.
	Params map[string]any
	// Concurrency bounds in-flight store requests. Zero means unbounded.
	Concurrency int
}

// OptionsFromConfig derives builder options from the run configuration.
func OptionsFromConfig(cfg *config.Config) Options {
	return Options{
		BaseURL:     cfg.Site.BaseURL,
		Classifier:  NewClassifier(cfg.Site),
		Concurrency: cfg.Publish.Concurrency,
	}
}

// Builder reads a content tree from a store into DirectoryState values.
type Builder struct {
	store  store.ContentStore
	opts   Options
	sem    *semaphore.Weighted
	logger *slog.Logger
}

// NewBuilder creates a Builder reading from cs.
func NewBuilder(cs store.ContentStore, opts Options, logger *slog.Logger) *Builder {
	if logger == nil {
		logger = slog.Default()
	}
	if opts.BaseURL == "" {
		opts.BaseURL = config.DefaultBaseURL
	}
	if opts.Classifier.ConfigFile == "" {
		opts.Classifier = NewClassifier(config.SiteDefaults{})
	}
	b := &Builder{store: cs, opts: opts, logger: logger}
	if opts.Concurrency > 0 {
		b.sem = semaphore.NewWeighted(int64(opts.Concurrency))
	}
	return b
}

// Build reads the tree rooted at rootPrefix. The first store or parse error
// cancels the remaining reads and is returned; no partial tree is returned.
func (b *Builder) Build(ctx context.Context, rootPrefix string) (*DirectoryState, error) {
	start := time.Now()
	rootPrefix = strings.TrimLeft(rootPrefix, "/")
	if rootPrefix != "" && !strings.HasSuffix(rootPrefix, "/") {
		rootPrefix += "/"
	}

	root, err := b.buildDir(ctx, rootPrefix, rootPrefix)
	if err != nil {
		return nil, err
	}
	resolve(root, b.opts.Params)

	dirs, files := 0, 0
	root.Walk(func(d *DirectoryState) {
		dirs++
		files += len(d.Files)
	})
	b.logger.Debug("Site tree built",
		logfields.Prefix(rootPrefix),
		slog.Int("directories", dirs),
		logfields.Count(files),
		logfields.DurationMS(float64(time.Since(start).Milliseconds())))
	return root, nil
}

func (b *Builder) buildDir(ctx context.Context, rootPrefix, prefix string) (*DirectoryState, error) {
	listing, err := b.list(ctx, prefix)
	if err != nil {
		return nil, err
	}

	rel := strings.Trim(strings.TrimPrefix(prefix, rootPrefix), "/")
	dir := &DirectoryState{
		Prefix:       prefix,
		RelativePath: rel,
		URL:          JoinURL(b.opts.BaseURL, rel),
	}

	files := make([]*FileState, len(listing.Files))
	configs := make([]map[string]any, len(listing.Files))
	subdirs := make([]*DirectoryState, len(listing.Directories))

	g, gctx := errgroup.WithContext(ctx)
	for i, entry := range listing.Files {
		switch b.opts.Classifier.Classify(entry.Key) {
		case KindIgnored:
			continue
		case KindRaw:
			files[i] = NewRawFile(dir.URL, entry.Key)
		case KindConfig:
			g.Go(func() error {
				data, err := b.get(gctx, entry.Key)
				if err != nil {
					return err
				}
				cfg, err := ParseConfig(entry.Key, data)
				if err != nil {
					return err
				}
				configs[i] = cfg
				return nil
			})
		case KindMarkdown:
			g.Go(func() error {
				data, err := b.get(gctx, entry.Key)
				if err != nil {
					return err
				}
				f, err := NewMarkdownFile(dir.URL, entry.Key, data)
				if err != nil {
					return err
				}
				files[i] = f
				return nil
			})
		}
	}
	for i, entry := range listing.Directories {
		g.Go(func() error {
			sub, err := b.buildDir(gctx, rootPrefix, entry.Prefix)
			if err != nil {
				return err
			}
			subdirs[i] = sub
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	dir.Config = Merge(configs...)
	dir.Files = compact(files)
	dir.Posts = make([]*FileState, 0, len(dir.Files))
	for _, f := range dir.Files {
		if !f.Raw {
			dir.Posts = append(dir.Posts, f)
		}
	}
	sortByOrder(dir.Posts)
	if len(dir.Posts) > 0 {
		dir.DefaultPost = dir.Posts[0]
	}
	dir.Subdirs = compact(subdirs)
	sortByOrder(dir.Subdirs)
	return dir, nil
}

func (b *Builder) list(ctx context.Context, prefix string) (store.Listing, error) {
	if err := b.acquire(ctx); err != nil {
		return store.Listing{}, err
	}
	defer b.release()
	return b.store.List(ctx, prefix)
}

func (b *Builder) get(ctx context.Context, key string) ([]byte, error) {
	if err := b.acquire(ctx); err != nil {
		return nil, err
	}
	defer b.release()
	return b.store.Get(ctx, key)
}

func (b *Builder) acquire(ctx context.Context) error {
	if b.sem == nil {
		return ctx.Err()
	}
	return b.sem.Acquire(ctx, 1)
}

func (b *Builder) release() {
	if b.sem != nil {
		b.sem.Release(1)
	}
}

// resolve fills Params and Data top-down once the whole tree is read.
func resolve(dir *DirectoryState, parent map[string]any) {
	dir.Params = Merge(parent, dir.Config)
	for _, f := range dir.Files {
		f.Data = Merge(dir.Params, reservedFields(f), f.FrontMatter)
	}
	for _, sub := range dir.Subdirs {
		resolve(sub, dir.Params)
	}
}

func reservedFields(f *FileState) map[string]any {
	return map[string]any{
		"filename":     f.Filename,
		"raw":          f.Raw,
		"relative_url": f.RelativeURL,
		"url":          f.URL,
		"content":      f.Content,
	}
}

func compact[T any](slots []*T) []*T {
	out := make([]*T, 0, len(slots))
	for _, s := range slots {
		if s != nil {
			out = append(out, s)
		}
	}
	return out
}
