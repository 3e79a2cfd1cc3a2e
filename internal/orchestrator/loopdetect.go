package orchestrator

import (
	"fmt"
	"sort"
	"strings"

	"quasar/internal/ports"
)

const (
	loopWindowSize    = 5
	loopIdenticalRuns = 3
)

// loopDetector watches tool-call signatures for repetition. It keeps a
// sliding window of the last 5 signatures; three identical signatures
// in a row declare a loop.
type loopDetector struct {
	window []string
}

func newLoopDetector() *loopDetector {
	return &loopDetector{}
}

// keyArgs are the argument names that identify a call; volatile
// arguments like file content are deliberately excluded.
var keyArgs = []string{"path", "command", "query", "url", "pattern", "source", "destination", "find"}

func callSignature(call ports.ToolCall) string {
	parts := []string{call.Name}
	var kvs []string
	for _, key := range keyArgs {
		if v, ok := call.Arguments[key]; ok {
			kvs = append(kvs, fmt.Sprintf("%s=%v", key, v))
		}
	}
	sort.Strings(kvs)
	return strings.Join(append(parts, kvs...), "|")
}

// Add records a call signature.
func (d *loopDetector) Add(call ports.ToolCall) {
	d.window = append(d.window, callSignature(call))
	if len(d.window) > loopWindowSize {
		d.window = d.window[len(d.window)-loopWindowSize:]
	}
}

// Looping reports whether the last three recorded signatures are
// identical.
func (d *loopDetector) Looping() bool {
	if len(d.window) < loopIdenticalRuns {
		return false
	}
	last := d.window[len(d.window)-1]
	for i := 2; i <= loopIdenticalRuns; i++ {
		if d.window[len(d.window)-i] != last {
			return false
		}
	}
	return true
}
