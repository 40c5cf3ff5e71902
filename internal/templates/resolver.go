package templates

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"html/template"
	"log/slog"
	"path"
	"slices"
	"strings"
	"sync"

	"golang.org/x/sync/errgroup"

	ferrors "git.home.luguber.info/inful/scampish/internal/foundation/errors"
	"git.home.luguber.info/inful/scampish/internal/logfields"
	"git.home.luguber.info/inful/scampish/internal/metrics"
	"git.home.luguber.info/inful/scampish/internal/store"
)

// DefaultPrefix is the store prefix templates are loaded from.
const DefaultPrefix = "templates/"

// ErrTemplateNotFound is returned by Render for names not in the loaded set.
var ErrTemplateNotFound = errors.New("template not found")

type loadState int

const (
	stateUnloaded loadState = iota
	stateLoading
	stateLoaded
)

// Resolver lazily loads every template under a prefix and renders them by name.
//
// The first Preload or Render triggers exactly one load; concurrent callers
// wait for it. Once loaded the template set is never modified. The one
// exception is a failed listing of the prefix: the resolver returns to
// unloaded and the next call loads again.
type Resolver struct {
	store       store.ContentStore
	prefix      string
	logger      *slog.Logger
	recorder    metrics.Recorder
	concurrency int

	mu    sync.Mutex
	state loadState
	done  chan struct{}
	set   *template.Template
	names []string
	err   error
}

// Option configures a Resolver.
type Option func(*Resolver)

// WithPrefix overrides the store prefix templates are listed from.
func WithPrefix(prefix string) Option {
	return func(r *Resolver) {
		if prefix = strings.TrimLeft(prefix, "/"); prefix != "" && !strings.HasSuffix(prefix, "/") {
			prefix += "/"
		}
		r.prefix = prefix
	}
}

// WithLogger sets the logger used for load diagnostics.
func WithLogger(logger *slog.Logger) Option {
	return func(r *Resolver) { r.logger = logger }
}

// WithRecorder sets the recorder counting template load failures.
func WithRecorder(rec metrics.Recorder) Option {
	return func(r *Resolver) { r.recorder = rec }
}

// WithConcurrency bounds concurrent template fetches.
func WithConcurrency(n int) Option {
	return func(r *Resolver) { r.concurrency = n }
}

// NewResolver returns an unloaded resolver reading from cs.
func NewResolver(cs store.ContentStore, opts ...Option) *Resolver {
	r := &Resolver{
		store:    cs,
		prefix:   DefaultPrefix,
		logger:   slog.Default(),
		recorder: metrics.NoopRecorder{},
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Preload loads the template set if it is not loaded yet.
func (r *Resolver) Preload(ctx context.Context) error {
	_, err := r.load(ctx)
	return err
}

// Names returns the sorted names of the loaded templates.
// It is empty until a load completed.
func (r *Resolver) Names() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return slices.Clone(r.names)
}

// Render executes the named template with data.
func (r *Resolver) Render(ctx context.Context, name string, data any) ([]byte, error) {
	set, err := r.load(ctx)
	if err != nil {
		return nil, err
	}
	tpl := set.Lookup(name)
	if tpl == nil || name == "" {
		return nil, ferrors.TemplateError("template is not available").
			WithCause(fmt.Errorf("%w: %q", ErrTemplateNotFound, name)).
			WithContext("template", name).
			Build()
	}

	var buf bytes.Buffer
	if err := tpl.Execute(&buf, data); err != nil {
		return nil, ferrors.RenderError("failed to execute template").
			WithCause(err).
			WithContext("template", name).
			Build()
	}
	return buf.Bytes(), nil
}

func (r *Resolver) load(ctx context.Context) (*template.Template, error) {
	r.mu.Lock()
	switch r.state {
	case stateLoaded:
		set := r.set
		r.mu.Unlock()
		return set, nil
	case stateUnloaded:
		r.state = stateLoading
		r.done = make(chan struct{})
		go r.loadAll(context.WithoutCancel(ctx), r.done)
	case stateLoading:
	}
	done := r.done
	r.mu.Unlock()

	select {
	case <-done:
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.state != stateLoaded {
		return nil, r.err
	}
	return r.set, nil
}

// loadAll performs one load and publishes its result. A failed listing
// leaves the resolver unloaded so a later call can retry.
func (r *Resolver) loadAll(ctx context.Context, done chan struct{}) {
	set, names, err := r.fetchAndParse(ctx)

	r.mu.Lock()
	if err != nil {
		r.state = stateUnloaded
		r.err = err
	} else {
		r.state = stateLoaded
		r.set, r.names, r.err = set, names, nil
	}
	r.mu.Unlock()
	close(done)
}

func (r *Resolver) fetchAndParse(ctx context.Context) (*template.Template, []string, error) {
	listing, err := r.store.List(ctx, r.prefix)
	if err != nil {
		return nil, nil, ferrors.TemplateError("failed to list templates").
			WithCause(err).
			WithContext("prefix", r.prefix).
			Build()
	}

	texts := make([]string, len(listing.Files))
	fetched := make([]bool, len(listing.Files))
	var g errgroup.Group
	if r.concurrency > 0 {
		g.SetLimit(r.concurrency)
	}
	for i, entry := range listing.Files {
		g.Go(func() error {
			data, err := r.store.Get(ctx, entry.Key)
			if err != nil {
				r.exclude(templateName(entry.Key), "Template fetch failed", err)
				return nil
			}
			texts[i] = string(data)
			fetched[i] = true
			return nil
		})
	}
	_ = g.Wait()

	funcs := Funcs()
	set := template.New("").Funcs(funcs)
	names := make([]string, 0, len(listing.Files))
	for i, entry := range listing.Files {
		name := templateName(entry.Key)
		if !fetched[i] || name == "" {
			continue
		}
		// Parse alone first so one broken file cannot corrupt the shared set.
		if _, err := template.New(name).Funcs(funcs).Parse(texts[i]); err != nil {
			r.exclude(name, "Template parse failed", err)
			continue
		}
		if _, err := set.New(name).Parse(texts[i]); err != nil {
			r.exclude(name, "Template parse failed", err)
			continue
		}
		names = append(names, name)
	}
	slices.Sort(names)
	names = slices.Compact(names)

	r.logger.Debug("Templates loaded", logfields.Prefix(r.prefix), logfields.Count(len(names)))
	return set, names, nil
}

func (r *Resolver) exclude(name, msg string, err error) {
	r.logger.Warn(msg, logfields.Template(name), logfields.Error(err))
	r.recorder.IncTemplateLoadFailure(name)
}

func templateName(key string) string {
	base := path.Base(key)
	return strings.TrimSuffix(base, path.Ext(base))
}
