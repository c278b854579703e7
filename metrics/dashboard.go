//go:build metrics
// +build metrics

package metrics

import (
	"fmt"
	"io"

	"github.com/go-echarts/statsview"
	"github.com/go-echarts/statsview/viewer"
)

// Address is where the dashboard listens once launched.
const Address = "localhost:12610"

const url = "/debug/statsview"

// Launch starts the statistics dashboard in its own goroutine. It never
// blocks the caller.
func Launch(output io.Writer) {
	go func() {
		viewer.SetConfiguration(viewer.WithAddr(Address))
		mgr := statsview.New()
		mgr.Start()
	}()

	fmt.Fprintf(output, "stats server available at %s%s\n", Address, url)
}

// Available reports whether a dashboard can be launched in this build.
func Available() bool {
	return true
}
