package site

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestJoinURL(t *testing.T) {
	cases := []struct {
		name  string
		parts []string
		want  string
	}{
		{"collapses slashes", []string{"/a/", "/b/", "c/"}, "/a/b/c"},
		{"drops empty parts", []string{"a", ""}, "a"},
		{"no leading slash", []string{"a", "/b"}, "a/b"},
		{"root only", []string{"/"}, "/"},
		{"root and child", []string{"/", "blog"}, "/blog"},
		{"absolute base", []string{"https://example.com/", "blog", "post.html"}, "https://example.com/blog/post.html"},
		{"nothing", nil, ""},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, JoinURL(tc.parts...))
		})
	}
}

func TestOutputKey(t *testing.T) {
	root := &DirectoryState{}
	blog := &DirectoryState{RelativePath: "blog/images"}

	assert.Equal(t, "index.html", OutputKey(root, &FileState{RelativeURL: "index.html"}))
	assert.Equal(t, "blog/images/cat.png", OutputKey(blog, &FileState{RelativeURL: "cat.png"}))
}

func TestMerge_LaterLayersWin(t *testing.T) {
	base := map[string]any{"title": "Root", "author": "A"}
	own := map[string]any{"title": "Blog"}

	got := Merge(base, nil, own)

	assert.Equal(t, map[string]any{"title": "Blog", "author": "A"}, got)
	assert.Equal(t, "Root", base["title"], "inputs are not modified")
}
