package propagate

import (
	"fmt"

	"tlog.app/go/loc"
	"tlog.app/go/tlog"
)

// Invariant violations in the optimizer are programming errors; panicking
// aborts the compilation and the caller falls back to the baseline tier.
func assertf(cond bool, f string, args ...any) {
	if cond {
		return
	}

	msg := fmt.Sprintf(f, args...)

	tlog.Printw("assertion failed", "msg", msg, "from", loc.Callers(1, 3))

	panic("propagate: " + msg)
}
