package geo

import "fmt"

// Assert panics when cond is false in builds tagged copytopoints_debug.
// Release builds skip the check.
func Assert(cond bool, format string, args ...any) {
	if debugAsserts && !cond {
		panic(fmt.Sprintf("geo: invariant violated: "+format, args...))
	}
}
