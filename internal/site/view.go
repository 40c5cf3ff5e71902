package site

// Template view keys.
const (
	ViewRelatedPosts = "related_posts"
	ViewCurrent      = "current"
	ViewTOC          = "toc"
	ViewSummary      = "summary"
)

// SiteView is the global state handed to every template as "site".
// It is built once per run and only read afterwards.
func SiteView(root *DirectoryState, baseURL string) map[string]any {
	view := DirectoryView(root)
	view["base_url"] = baseURL
	return view
}

// DirectoryView renders d and its subtree as nested maps.
func DirectoryView(d *DirectoryState) map[string]any {
	subdirs := make([]map[string]any, 0, len(d.Subdirs))
	for _, sub := range d.Subdirs {
		subdirs = append(subdirs, DirectoryView(sub))
	}
	view := map[string]any{
		"relative_path": d.RelativePath,
		"url":           d.URL,
		"config":        d.Config,
		"params":        d.Params,
		"files":         fileViews(d.Files),
		"posts":         fileViews(d.Posts),
		"default_post":  nil,
		"subdirs":       subdirs,
	}
	if d.DefaultPost != nil {
		view["default_post"] = d.DefaultPost.Data
	}
	return view
}

// PageView is the "page" value for rendering f. Each entry of related_posts
// carries a current flag set only on the entry whose URL equals f's.
func PageView(f *FileState) map[string]any {
	view := Merge(f.Data)
	related := make([]map[string]any, 0, len(f.RelatedPosts))
	for _, p := range f.RelatedPosts {
		related = append(related, Merge(p.Data, map[string]any{ViewCurrent: p.URL == f.URL}))
	}
	view[ViewRelatedPosts] = related
	return view
}

func fileViews(files []*FileState) []map[string]any {
	out := make([]map[string]any, 0, len(files))
	for _, f := range files {
		out = append(out, f.Data)
	}
	return out
}
