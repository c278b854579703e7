//go:build !metrics
// +build !metrics

package metrics

import "io"

// Launch is a no-op in builds without the metrics tag.
func Launch(output io.Writer) {
	io.WriteString(output, "metrics dashboard not built into this binary (build with -tags metrics)\n")
}

// Available reports whether a dashboard can be launched in this build.
func Available() bool {
	return false
}
