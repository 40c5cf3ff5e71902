package site

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	ferrors "git.home.luguber.info/inful/scampish/internal/foundation/errors"
	"git.home.luguber.info/inful/scampish/internal/store"
)

func newTestBuilder(t *testing.T, objects map[string]string) (*Builder, *store.MemoryStore) {
	t.Helper()
	mem := store.NewMemoryStore()
	mem.Seed("src-bucket", objects)
	cs := store.NewAdapter(mem, "src-bucket", "out-bucket")
	return NewBuilder(cs, Options{Concurrency: 4}, nil), mem
}

func filenames(files []*FileState) []string {
	out := make([]string, 0, len(files))
	for _, f := range files {
		out = append(out, f.Filename)
	}
	return out
}

func TestBuild_PostsAreStableSortedMarkdownSubset(t *testing.T) {
	b, _ := newTestBuilder(t, map[string]string{
		"src/_config.yaml":    "title: Root\n",
		"src/_draft.markdown": "# draft",
		"src/a.markdown":      "---\norder: 2\n---\nA",
		"src/b.markdown":      "B",
		"src/c.markdown":      "---\norder: 2\n---\nC",
		"src/logo.png":        "png",
	})

	root, err := b.Build(context.Background(), "src/")
	require.NoError(t, err)

	assert.Equal(t, []string{"a.markdown", "b.markdown", "c.markdown", "logo.png"}, filenames(root.Files))
	assert.Equal(t, []string{"b.markdown", "a.markdown", "c.markdown"}, filenames(root.Posts))
	require.NotNil(t, root.DefaultPost)
	assert.Same(t, root.Posts[0], root.DefaultPost)
	for _, p := range root.Posts {
		assert.Contains(t, root.Files, p, "posts reference files owned by the directory")
	}
}

func TestBuild_SubdirsOrderedByOwnConfig(t *testing.T) {
	b, _ := newTestBuilder(t, map[string]string{
		"src/index.markdown":     "home",
		"src/blog/_config.yaml":  "order: 2\n",
		"src/blog/p.markdown":    "p",
		"src/about/_config.yaml": "order: 1\n",
		"src/zeta/z.markdown":    "z",
	})

	root, err := b.Build(context.Background(), "src")
	require.NoError(t, err)

	got := make([]string, 0, len(root.Subdirs))
	for _, d := range root.Subdirs {
		got = append(got, d.RelativePath)
	}
	assert.Equal(t, []string{"zeta", "about", "blog"}, got)
}

func TestBuild_PathsAndURLs(t *testing.T) {
	b, _ := newTestBuilder(t, map[string]string{
		"src/blog/images/cat.png": "png",
		"src/blog/post.markdown":  "post",
	})

	root, err := b.Build(context.Background(), "src/")
	require.NoError(t, err)

	assert.True(t, root.IsRoot())
	assert.Equal(t, "/", root.URL)
	require.Len(t, root.Subdirs, 1)
	blog := root.Subdirs[0]
	assert.Equal(t, "src/blog/", blog.Prefix)
	assert.Equal(t, "blog", blog.RelativePath)
	assert.Equal(t, "/blog", blog.URL)
	require.Len(t, blog.Files, 1)
	assert.Equal(t, "/blog/post.html", blog.Files[0].URL)
	assert.Equal(t, "blog/post.html", OutputKey(blog, blog.Files[0]))

	require.Len(t, blog.Subdirs, 1)
	images := blog.Subdirs[0]
	assert.Equal(t, "blog/images", images.RelativePath)
	require.Len(t, images.Files, 1)
	cat := images.Files[0]
	assert.True(t, cat.Raw)
	assert.Equal(t, "/blog/images/cat.png", cat.URL)
	assert.Equal(t, "blog/images/cat.png", OutputKey(images, cat))
}

func TestBuild_BaseURLPrefixesEveryURL(t *testing.T) {
	mem := store.NewMemoryStore()
	mem.Seed("src-bucket", map[string]string{"src/blog/post.markdown": "post"})
	b := NewBuilder(store.NewAdapter(mem, "src-bucket", "out"), Options{BaseURL: "/site/"}, nil)

	root, err := b.Build(context.Background(), "src/")
	require.NoError(t, err)
	assert.Equal(t, "/site", root.URL)
	assert.Equal(t, "/site/blog/post.html", root.Subdirs[0].Files[0].URL)
}

func TestBuild_EmptyDirectory(t *testing.T) {
	b, _ := newTestBuilder(t, map[string]string{"other/x.markdown": "x"})

	root, err := b.Build(context.Background(), "src/")
	require.NoError(t, err)
	assert.Empty(t, root.Files)
	assert.Empty(t, root.Posts)
	assert.Nil(t, root.DefaultPost)
	assert.Empty(t, root.Subdirs)
	assert.NotNil(t, root.Params)
}

func TestBuild_ParamsInheritAndDataPrecedence(t *testing.T) {
	b, _ := newTestBuilder(t, map[string]string{
		"src/_config.yaml":        "title: Root\nauthor: A\n",
		"src/blog/_config.yaml":   "title: Blog\n",
		"src/blog/post.markdown":  "---\ntitle: Post\nurl: /spoofed\n---\nbody",
		"src/blog/plain.markdown": "plain",
	})

	root, err := b.Build(context.Background(), "src/")
	require.NoError(t, err)

	assert.Equal(t, map[string]any{"title": "Root", "author": "A"}, root.Params)
	blog := root.Subdirs[0]
	assert.Equal(t, map[string]any{"title": "Blog"}, blog.Config)
	assert.Equal(t, map[string]any{"title": "Blog", "author": "A"}, blog.Params)

	byName := map[string]*FileState{}
	for _, f := range blog.Files {
		byName[f.Filename] = f
	}
	post := byName["post.markdown"]
	assert.Equal(t, "Post", post.Data["title"])
	assert.Equal(t, "A", post.Data["author"])
	assert.Equal(t, "/spoofed", post.Data["url"], "front matter overrides reserved fields")
	assert.Equal(t, "/blog/post.html", post.URL)

	plain := byName["plain.markdown"]
	assert.Equal(t, "Blog", plain.Data["title"])
	assert.Equal(t, "/blog/plain.html", plain.Data["url"])
	assert.Equal(t, "plain", plain.Data["content"])
}

func TestBuild_ConfigListedAfterFilesStillApplies(t *testing.T) {
	// The config file sorts after the markdown file in the listing.
	mem := store.NewMemoryStore()
	mem.Seed("src-bucket", map[string]string{
		"src/a.markdown": "a",
		"src/zz.yaml":    "title: Late\n",
	})
	opts := Options{Classifier: Classifier{ConfigFile: "zz.yaml", MarkdownExtensions: []string{".markdown"}}}
	b := NewBuilder(store.NewAdapter(mem, "src-bucket", "out"), opts, nil)

	root, err := b.Build(context.Background(), "src/")
	require.NoError(t, err)
	assert.Equal(t, "Late", root.Files[0].Data["title"])
	assert.Len(t, root.Files, 1)
}

func TestBuild_RawFilesAreNotRead(t *testing.T) {
	b, mem := newTestBuilder(t, map[string]string{
		"src/a.markdown":     "a",
		"src/images/one.png": "1",
		"src/images/two.png": "2",
	})

	_, err := b.Build(context.Background(), "src/")
	require.NoError(t, err)
	assert.Equal(t, 1, mem.Calls().Get)
	assert.Equal(t, 2, mem.Calls().List)
}

func TestBuild_MalformedConfigFailsBuild(t *testing.T) {
	b, _ := newTestBuilder(t, map[string]string{
		"src/a.markdown":        "a",
		"src/blog/_config.yaml": "title: [unterminated\n",
	})

	root, err := b.Build(context.Background(), "src/")
	require.Error(t, err)
	assert.Nil(t, root)
	assert.True(t, ferrors.HasCategory(err, ferrors.CategoryConfig))
}

type failingStore struct {
	store.ContentStore
	failKey string
}

func (f failingStore) Get(ctx context.Context, key string) ([]byte, error) {
	if key == f.failKey {
		return nil, errors.New("boom")
	}
	return f.ContentStore.Get(ctx, key)
}

func TestBuild_StoreErrorAbortsBuild(t *testing.T) {
	mem := store.NewMemoryStore()
	mem.Seed("src-bucket", map[string]string{
		"src/a.markdown":      "a",
		"src/deep/b.markdown": "b",
	})
	cs := failingStore{ContentStore: store.NewAdapter(mem, "src-bucket", "out"), failKey: "src/deep/b.markdown"}

	root, err := NewBuilder(cs, Options{}, nil).Build(context.Background(), "src/")
	require.Error(t, err)
	assert.Nil(t, root)
	assert.Contains(t, err.Error(), "boom")
}

func TestBuild_CanceledContext(t *testing.T) {
	b, _ := newTestBuilder(t, map[string]string{"src/a.markdown": "a"})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := b.Build(ctx, "src/")
	require.ErrorIs(t, err, context.Canceled)
}

func TestPageView_MarksOnlyCurrentEntry(t *testing.T) {
	b, _ := newTestBuilder(t, map[string]string{
		"src/blog/a.markdown": "a",
		"src/blog/b.markdown": "b",
	})
	root, err := b.Build(context.Background(), "src/")
	require.NoError(t, err)

	blog := root.Subdirs[0]
	page := blog.Posts[1]
	page.RelatedPosts = blog.Posts

	view := PageView(page)
	related, ok := view[ViewRelatedPosts].([]map[string]any)
	require.True(t, ok)
	require.Len(t, related, 2)

	current := 0
	for _, r := range related {
		if r[ViewCurrent] == true {
			current++
			assert.Equal(t, page.URL, r["url"])
		}
	}
	assert.Equal(t, 1, current)
	_, leaked := blog.Posts[0].Data[ViewCurrent]
	assert.False(t, leaked, "shared file data is not mutated")
}

func TestSiteView(t *testing.T) {
	b, _ := newTestBuilder(t, map[string]string{
		"src/_config.yaml":  "title: Root\n",
		"src/home.markdown": "home",
	})
	root, err := b.Build(context.Background(), "src/")
	require.NoError(t, err)

	view := SiteView(root, "/")
	assert.Equal(t, "/", view["base_url"])
	assert.Equal(t, "Root", view["params"].(map[string]any)["title"])
	assert.Equal(t, "/home.html", view["default_post"].(map[string]any)["url"])
}
