package ccrt

import (
	"github.com/KimMachineGun/automemlimit/memlimit"
)

// defaultBytesThreshold is the initial allocated-bytes ceiling above which
// ShouldCollect triggers a collection. Deliberately tiny (matching
// the original implementation's own default) so that auto-collection
// exercises itself almost immediately in small programs and tests rather
// than only once heaps grow large.
const defaultBytesThreshold = 100

// defaultAdjustmentPercent is the fraction of bytesThreshold that allocated
// bytes must fall under before the threshold is halved back down.
const defaultAdjustmentPercent = 0.1

// Trigger decides when CollectCycles should be run automatically, the way
// the teacher's Sampler decides when a memory access should be checked:
// a single hot-path predicate (ShouldCollect), cheap enough to call from
// every allocation, backed by a slow-moving threshold that adjusts itself
// after every collection (AdjustThreshold).
//
// Unlike Sampler, Trigger is not safe for concurrent use — nothing in this
// package is (see doc.go).
type Trigger struct {
	enabled bool

	bytesThreshold     uint64
	adjustmentPercent  float64
	bufferedThreshold  uint64 // 0 means disabled
	memlimitCeiling    uint64 // 0 means unknown/unbounded

	stats TriggerStats
}

// TriggerStats tracks how often the auto-collect decision fired versus how
// often it was skipped, for diagnostics (exposed through metrics.go).
type TriggerStats struct {
	Checks    uint64
	Triggered uint64
}

// NewTrigger returns a Trigger with the default thresholds, enabled, and no
// memory-limit ceiling: probing the cgroup memory limit is an opt-in cost
// (see EnableMemoryAwareCeiling), matching Options.MemoryAwareTrigger's
// "off by default" posture.
func NewTrigger() *Trigger {
	return &Trigger{
		enabled:           true,
		bytesThreshold:    defaultBytesThreshold,
		adjustmentPercent: defaultAdjustmentPercent,
	}
}

// EnableMemoryAwareCeiling consults automemlimit to learn the process's
// cgroup memory limit (if any) and uses a fraction of it as a hard ceiling
// on how high bytesThreshold is ever allowed to grow — without this, a
// long-running process with a slow leak-shaped allocation pattern could let
// the threshold double its way past the container's actual memory limit
// before ever triggering a collection. Wired from Options.Apply when
// MemoryAwareTrigger is set; a no-op if no cgroup limit can be determined.
func (t *Trigger) EnableMemoryAwareCeiling() {
	if limit, err := memlimit.FromCgroup(); err == nil && limit > 0 {
		t.memlimitCeiling = limit / 4
	}
}

// SetEnabled toggles automatic collection.
func (t *Trigger) SetEnabled(enabled bool) { t.enabled = enabled }

// Enabled reports whether automatic collection is currently enabled.
func (t *Trigger) Enabled() bool { return t.enabled }

// SetAdjustmentPercent sets the fraction of bytesThreshold that allocated
// bytes must fall under before the threshold is halved. Panics if percent
// is outside [0, 1].
func (t *Trigger) SetAdjustmentPercent(percent float64) {
	if percent < 0 || percent > 1 {
		panic("ccrt: adjustment percent must be between 0 and 1")
	}
	t.adjustmentPercent = percent
}

// SetBufferedObjectsThreshold sets how many POSSIBLE_CYCLES entries can
// accumulate before a collection is triggered regardless of the byte
// threshold. A value of 0 disables this check.
func (t *Trigger) SetBufferedObjectsThreshold(threshold uint64) {
	t.bufferedThreshold = threshold
}

// ShouldCollect is the hot-path check: called from package cc's New after
// every allocation. Mirrors the
// teacher's Sampler.ShouldSample in spirit — a single cheap boolean
// decision — though here the condition is a monotonic counter comparison
// rather than a modulo, since there's no sampling rate to approximate.
func (t *Trigger) ShouldCollect() bool {
	t.stats.Checks++

	if !t.enabled {
		return false
	}

	if AllocatedBytes() > t.bytesThreshold {
		t.stats.Triggered++
		return true
	}

	if t.bufferedThreshold != 0 && uint64(state.possibleCycles.Len()) > t.bufferedThreshold {
		t.stats.Triggered++
		return true
	}

	return false
}

// AdjustThreshold is called once after every automatically-triggered
// collection completes. If allocated bytes are still above the threshold,
// it doubles (capped at memlimitCeiling, if known); otherwise, if
// allocated bytes have fallen comfortably below it, it halves — the same
// two-case hysteresis the original implementation's Config::adjust uses,
// so the threshold tracks the live set's size instead of either thrashing
// every allocation or drifting arbitrarily high.
func (t *Trigger) AdjustThreshold() {
	allocated := AllocatedBytes()

	if allocated >= t.bytesThreshold {
		for {
			next := t.bytesThreshold * 2
			if next <= t.bytesThreshold {
				break // overflow guard
			}
			if t.memlimitCeiling != 0 && next > t.memlimitCeiling {
				break
			}
			t.bytesThreshold = next
			if allocated < t.bytesThreshold {
				break
			}
		}
		return
	}

	if t.adjustmentPercent == 0 {
		return
	}

	for float64(allocated) < float64(t.bytesThreshold)*t.adjustmentPercent {
		half := t.bytesThreshold / 2
		if half == 0 || half == t.bytesThreshold {
			break
		}
		t.bytesThreshold = half
	}
}

// Stats returns a snapshot of how often ShouldCollect has fired.
func (t *Trigger) Stats() TriggerStats { return t.stats }

// BytesThreshold returns the current allocated-bytes threshold, exported
// for metrics.go and tests.
func (t *Trigger) BytesThreshold() uint64 { return t.bytesThreshold }

var defaultTrigger *Trigger

// DefaultTrigger returns the package-wide Trigger package cc drives from
// New, creating it on first use.
func DefaultTrigger() *Trigger {
	if defaultTrigger == nil {
		defaultTrigger = NewTrigger()
	}
	return defaultTrigger
}

// ResetDefaultTriggerForTesting discards the package-wide Trigger so the
// next DefaultTrigger call builds a fresh one. Test-only, mirrors
// ResetForTesting in state.go.
func ResetDefaultTriggerForTesting() {
	defaultTrigger = nil
}
