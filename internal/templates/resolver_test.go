package templates

import (
	"context"
	"errors"
	"html/template"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	ferrors "git.home.luguber.info/inful/scampish/internal/foundation/errors"
	"git.home.luguber.info/inful/scampish/internal/metrics"
	"git.home.luguber.info/inful/scampish/internal/store"
)

type failureRecorder struct {
	metrics.NoopRecorder
	mu     sync.Mutex
	failed []string
}

func (r *failureRecorder) IncTemplateLoadFailure(name string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.failed = append(r.failed, name)
}

type failingGetStore struct {
	store.ContentStore
	failKey string
}

func (f failingGetStore) Get(ctx context.Context, key string) ([]byte, error) {
	if key == f.failKey {
		return nil, errors.New("connection reset")
	}
	return f.ContentStore.Get(ctx, key)
}

type flakyListStore struct {
	store.ContentStore
	mu    sync.Mutex
	lists int
}

func (f *flakyListStore) List(ctx context.Context, prefix string) (store.Listing, error) {
	f.mu.Lock()
	f.lists++
	first := f.lists == 1
	f.mu.Unlock()
	if first {
		return store.Listing{}, errors.New("list timeout")
	}
	return f.ContentStore.List(ctx, prefix)
}

func seeded(objects map[string]string) (*store.MemoryStore, *store.Adapter) {
	mem := store.NewMemoryStore()
	mem.Seed("src-bucket", objects)
	return mem, store.NewAdapter(mem, "src-bucket", "out-bucket")
}

func TestRender_VariablesSectionsAndPartials(t *testing.T) {
	_, cs := seeded(map[string]string{
		"templates/header.html": `<h1>{{.page.title}}</h1>`,
		"templates/post.html":   `{{template "header" .}}{{if .page.tags}}<ul>{{range .page.tags}}<li>{{.}}</li>{{end}}</ul>{{end}}{{.content}}`,
	})
	r := NewResolver(cs)

	out, err := r.Render(context.Background(), "post", map[string]any{
		"content": template.HTML("<p>body</p>"),
		"page":    map[string]any{"title": "Hello", "tags": []string{"go", "web"}},
	})
	require.NoError(t, err)
	assert.Equal(t, `<h1>Hello</h1><ul><li>go</li><li>web</li></ul><p>body</p>`, string(out))
	assert.Equal(t, []string{"header", "post"}, r.Names())
}

func TestRender_EscapesPlainStrings(t *testing.T) {
	_, cs := seeded(map[string]string{"templates/post.html": `{{.page.title}}`})

	out, err := NewResolver(cs).Render(context.Background(), "post", map[string]any{
		"page": map[string]any{"title": "<b>x</b>"},
	})
	require.NoError(t, err)
	assert.Equal(t, "&lt;b&gt;x&lt;/b&gt;", string(out))
}

func TestRender_MissingTemplate(t *testing.T) {
	_, cs := seeded(map[string]string{"templates/post.html": `ok`})

	_, err := NewResolver(cs).Render(context.Background(), "gallery", nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrTemplateNotFound)
	assert.True(t, ferrors.HasCategory(err, ferrors.CategoryTemplate))
	assert.Contains(t, err.Error(), "gallery")
}

func TestLoad_ExactlyOnceUnderConcurrency(t *testing.T) {
	mem, cs := seeded(map[string]string{
		"templates/post.html": `{{.page.title}}`,
		"templates/page.html": `page`,
	})
	r := NewResolver(cs)

	const n = 32
	var wg sync.WaitGroup
	errs := make([]error, n)
	for i := range n {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, errs[i] = r.Render(context.Background(), "post", map[string]any{"page": map[string]any{"title": "t"}})
		}()
	}
	wg.Wait()

	for _, err := range errs {
		require.NoError(t, err)
	}
	assert.Equal(t, 1, mem.Calls().List)
	assert.Equal(t, 2, mem.Calls().Get)
}

func TestLoad_ListFailureIsRetriedOnNextCall(t *testing.T) {
	_, cs := seeded(map[string]string{"templates/post.html": `ok`})
	flaky := &flakyListStore{ContentStore: cs}
	r := NewResolver(flaky)

	_, err := r.Render(context.Background(), "post", nil)
	require.Error(t, err)
	assert.True(t, ferrors.HasCategory(err, ferrors.CategoryTemplate))

	out, err := r.Render(context.Background(), "post", nil)
	require.NoError(t, err)
	assert.Equal(t, "ok", string(out))

	_, err = r.Render(context.Background(), "post", nil)
	require.NoError(t, err)
	assert.Equal(t, 2, flaky.lists)
}

func TestLoad_FetchFailureIsIsolated(t *testing.T) {
	_, adapter := seeded(map[string]string{
		"templates/post.html":   `post`,
		"templates/broken.html": `broken`,
	})
	rec := &failureRecorder{}
	r := NewResolver(failingGetStore{ContentStore: adapter, failKey: "templates/broken.html"}, WithRecorder(rec))

	out, err := r.Render(context.Background(), "post", nil)
	require.NoError(t, err)
	assert.Equal(t, "post", string(out))

	_, err = r.Render(context.Background(), "broken", nil)
	assert.ErrorIs(t, err, ErrTemplateNotFound)
	assert.Equal(t, []string{"broken"}, rec.failed)
}

func TestLoad_UnparsableTemplateIsExcluded(t *testing.T) {
	_, cs := seeded(map[string]string{
		"templates/bad.html":  `{{if}}`,
		"templates/good.html": `good`,
	})
	rec := &failureRecorder{}
	r := NewResolver(cs, WithRecorder(rec))

	require.NoError(t, r.Preload(context.Background()))
	assert.Equal(t, []string{"good"}, r.Names())
	assert.Equal(t, []string{"bad"}, rec.failed)
}

func TestLoad_OnlyTopLevelObjects(t *testing.T) {
	_, cs := seeded(map[string]string{
		"templates/post.html":         `post`,
		"templates/archive/old.html":  `old`,
		"src/templates/not-this.html": `x`,
	})
	r := NewResolver(cs)

	require.NoError(t, r.Preload(context.Background()))
	assert.Equal(t, []string{"post"}, r.Names())
}

func TestLoad_CustomPrefix(t *testing.T) {
	_, cs := seeded(map[string]string{"layouts/post.tmpl": `custom`})
	r := NewResolver(cs, WithPrefix("/layouts"))

	out, err := r.Render(context.Background(), "post", nil)
	require.NoError(t, err)
	assert.Equal(t, "custom", string(out))
}

func TestRender_ExecutionErrorIsRenderError(t *testing.T) {
	_, cs := seeded(map[string]string{"templates/post.html": `{{template "missing" .}}`})

	_, err := NewResolver(cs).Render(context.Background(), "post", nil)
	require.Error(t, err)
	assert.True(t, ferrors.HasCategory(err, ferrors.CategoryRender))
}

func TestRender_CanceledWaiter(t *testing.T) {
	_, cs := seeded(map[string]string{"templates/post.html": `post`})
	r := NewResolver(cs)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := r.Render(ctx, "post", nil)
	if err != nil {
		assert.ErrorIs(t, err, context.Canceled)
	}
	require.NoError(t, r.Preload(context.Background()))
	assert.Equal(t, []string{"post"}, r.Names())
}

func TestFuncs_Join(t *testing.T) {
	_, cs := seeded(map[string]string{"templates/link.html": `<a href="{{join .site.base_url "blog"}}">{{upper "x"}} {{title "hello world"}}</a>`})

	out, err := NewResolver(cs).Render(context.Background(), "link", map[string]any{
		"site": map[string]any{"base_url": "/"},
	})
	require.NoError(t, err)
	assert.Equal(t, `<a href="/blog">X Hello World</a>`, string(out))
}
