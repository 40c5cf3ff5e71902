package site

import "maps"

// Merge returns a new map holding the keys of every layer, later layers
// overwriting earlier ones. Values are not copied deeply.
func Merge(layers ...map[string]any) map[string]any {
	size := 0
	for _, l := range layers {
		size += len(l)
	}
	out := make(map[string]any, size)
	for _, l := range layers {
		maps.Copy(out, l)
	}
	return out
}
