package site

import "strings"

// JoinURL joins URL path segments with single forward slashes.
// Slashes around each part are trimmed and empty parts dropped; the result
// starts with "/" only if the first part did.
func JoinURL(parts ...string) string {
	kept := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.Trim(p, "/"); p != "" {
			kept = append(kept, p)
		}
	}
	joined := strings.Join(kept, "/")
	if len(parts) > 0 && strings.HasPrefix(parts[0], "/") {
		return "/" + joined
	}
	return joined
}

// OutputKey is the destination object key of f inside dir.
func OutputKey(dir *DirectoryState, f *FileState) string {
	return strings.TrimLeft(JoinURL(dir.RelativePath, f.RelativeURL), "/")
}
