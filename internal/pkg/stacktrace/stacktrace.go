// Package stacktrace shortens runtime stacks for panic logs.
package stacktrace

import "strings"

// InternalPaths returns the "internal/...go:line" frames of a debug.Stack
// dump, dropping runtime and third-party frames.
func InternalPaths(stack []byte) []string {
	paths := make([]string, 0)
	for _, line := range strings.Split(string(stack), "\n") {
		line = strings.TrimSpace(line)

		_, after, found := strings.Cut(line, "/internal/")
		if !found || !strings.Contains(after, ".go:") {
			continue
		}

		if sp := strings.IndexByte(after, ' '); sp != -1 {
			after = after[:sp]
		}
		paths = append(paths, "internal/"+after)
	}
	return paths
}
