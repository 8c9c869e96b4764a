// Package stacktrace trims raw goroutine stacks down to this module's frames.
package stacktrace

import "strings"

// InternalPaths returns the "internal/...go:line" locations found in a raw
// stack as produced by runtime/debug.Stack.
func InternalPaths(stack []byte) []string {
	var paths []string
	for line := range strings.Lines(string(stack)) {
		line = strings.TrimSpace(line)

		idx := strings.Index(line, ".go:")
		if idx == -1 {
			continue
		}
		loc := line
		if end := strings.IndexByte(line[idx:], ' '); end != -1 {
			loc = line[:idx+end]
		}

		_, rel, found := strings.Cut(loc, "/internal/")
		if !found {
			continue
		}
		paths = append(paths, "internal/"+rel)
	}
	return paths
}
