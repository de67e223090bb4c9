package ccrt

import (
	"fmt"
	"runtime"
)

// pedanticDebugAssertions gates every check in this file. Off by default:
// capturing a stack trace on every allocation is too expensive to run
// unconditionally, the same tradeoff the teacher's stackdepot makes by
// only capturing stacks when a race is actually suspected.
var pedanticDebugAssertions bool

// SetPedanticDebugAssertions enables or disables allocation-site capture
// and the extra consistency checks AssertInvariant runs. Wired from
// package cc's Options.
func SetPedanticDebugAssertions(enabled bool) {
	pedanticDebugAssertions = enabled
}

// PedanticDebugAssertionsEnabled reports the current setting.
func PedanticDebugAssertionsEnabled() bool { return pedanticDebugAssertions }

// CaptureAllocSite returns a short description of the caller's caller
// (skipping this function and package cc's New), or "" if pedantic debug
// assertions are disabled. Unlike the teacher's stackdepot, there is no
// deduplicating global store here: one Cc allocation is comparatively
// rare next to a per-memory-access race check, so a formatted string
// stored directly on the Header is cheap enough.
func CaptureAllocSite() string {
	if !pedanticDebugAssertions {
		return ""
	}

	pc, file, line, ok := runtime.Caller(2)
	if !ok {
		return ""
	}
	fn := runtime.FuncForPC(pc)
	name := "?"
	if fn != nil {
		name = fn.Name()
	}
	return fmt.Sprintf("%s\n\t%s:%d", name, file, line)
}

// AssertInvariant panics with a message naming h's allocation site (if
// one was captured) when cond is false. Used at points where a violated
// invariant means a bug in this package rather than in caller code — see
// e.g. the pedantic checks in collector.go — so it is only worth paying
// for when PedanticDebugAssertions is enabled.
func AssertInvariant(h *Header, cond bool, msg string) {
	if !pedanticDebugAssertions || cond {
		return
	}
	site := h.AllocSite()
	if site == "" {
		panic("ccrt: invariant violated: " + msg)
	}
	panic(fmt.Sprintf("ccrt: invariant violated: %s (allocated at %s)", msg, site))
}
