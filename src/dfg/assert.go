package dfg

import (
	"fmt"

	"tlog.app/go/loc"
	"tlog.app/go/tlog"
)

// Optimizer invariant violations are programming errors. Compilation is
// aborted by panicking; the tier above catches it and falls back to the
// baseline jit.
func assert(cond bool, f string, args ...any) {
	if cond {
		return
	}

	msg := fmt.Sprintf(f, args...)

	tlog.Printw("assertion failed", "msg", msg, "from", loc.Callers(1, 3))

	panic("dfg: " + msg)
}
