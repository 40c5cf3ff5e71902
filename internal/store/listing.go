package store

import (
	"sort"
	"strings"
)

// listSorted builds a delimited listing of prefix from keys in ascending order.
func listSorted(keys []string, prefix string) Listing {
	listing := Listing{}
	start := sort.SearchStrings(keys, prefix)
	lastDir := ""
	for _, key := range keys[start:] {
		if !strings.HasPrefix(key, prefix) {
			break
		}
		rest := key[len(prefix):]
		if i := strings.IndexByte(rest, '/'); i >= 0 {
			dir := prefix + rest[:i+1]
			if dir != lastDir {
				listing.Directories = append(listing.Directories, DirEntry{Prefix: dir})
				lastDir = dir
			}
			continue
		}
		listing.Files = append(listing.Files, FileEntry{Key: key})
	}
	return listing
}

// BaseName returns the final path segment of key.
func BaseName(key string) string {
	if i := strings.LastIndexByte(key, '/'); i >= 0 {
		return key[i+1:]
	}
	return key
}
