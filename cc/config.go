package cc

import (
	"fmt"
	"os"

	"github.com/BurntSushi/toml"
	"github.com/rs/zerolog"

	"github.com/frengor/rust-cc/internal/ccrt"
)

// Options replaces the five compile-time feature flags spec.md §6 describes
// (auto-collect, finalization, weak-ptrs, cleaners, pedantic-debug-assertions)
// with a runtime configuration surface, the way capacitor's Builder turns a
// set of construction-time choices into a validated Config. Finalization,
// weak pointers and cleaners are always compiled in here (Go has no
// conditional compilation as convenient as Cargo features); auto-collect and
// pedantic-debug-assertions are genuine runtime toggles.
type Options struct {
	AutoCollect              bool
	AdjustmentPercent        float64
	BufferedObjectsThreshold uint64
	PedanticDebugAssertions  bool
	MemoryAwareTrigger       bool
	Logger                   zerolog.Logger
}

// DefaultOptions returns the same defaults the original implementation's
// Config::new picks: auto-collect on, a 10% adjustment percent, no
// buffered-objects threshold, no pedantic assertions, and a disabled
// logger.
func DefaultOptions() Options {
	return Options{
		AutoCollect:       true,
		AdjustmentPercent: 0.1,
		Logger:            zerolog.New(os.Stderr).With().Timestamp().Logger().Level(zerolog.Disabled),
	}
}

// Builder provides a fluent API for constructing Options, mirroring the
// pack's capacitor.Builder: each With method records an error instead of
// panicking immediately, so a chain of calls can be built up freely and
// checked once at Build.
type Builder struct {
	opts Options
	err  error
}

// NewBuilder starts from DefaultOptions.
func NewBuilder() *Builder {
	return &Builder{opts: DefaultOptions()}
}

// WithAutoCollect toggles the allocation-site trigger (spec.md §4.7).
func (b *Builder) WithAutoCollect(enabled bool) *Builder {
	if b.err != nil {
		return b
	}
	b.opts.AutoCollect = enabled
	return b
}

// WithAdjustmentPercent sets the fraction of the bytes threshold allocated
// bytes must fall under before the trigger halves it back down. Must be in
// [0, 1].
func (b *Builder) WithAdjustmentPercent(percent float64) *Builder {
	if b.err != nil {
		return b
	}
	if percent < 0 || percent > 1 {
		b.err = fmt.Errorf("cc: adjustment percent must be between 0 and 1, got %v", percent)
		return b
	}
	b.opts.AdjustmentPercent = percent
	return b
}

// WithBufferedObjectsThreshold sets how many POSSIBLE_CYCLES entries may
// accumulate before a collection is triggered regardless of the byte
// threshold. Zero disables this check.
func (b *Builder) WithBufferedObjectsThreshold(threshold uint64) *Builder {
	if b.err != nil {
		return b
	}
	b.opts.BufferedObjectsThreshold = threshold
	return b
}

// WithPedanticDebugAssertions enables allocation-site capture and the
// collector's extra invariant checks on the garbage set it is about to
// finalize (ccrt.AssertInvariant). The intrusive-list add and remove
// operations run no extra checks under this option.
func (b *Builder) WithPedanticDebugAssertions(enabled bool) *Builder {
	if b.err != nil {
		return b
	}
	b.opts.PedanticDebugAssertions = enabled
	return b
}

// WithMemoryAwareTrigger enables consulting the process's cgroup memory
// limit (via automemlimit) to cap how high the auto-collect threshold is
// ever allowed to grow.
func (b *Builder) WithMemoryAwareTrigger(enabled bool) *Builder {
	if b.err != nil {
		return b
	}
	b.opts.MemoryAwareTrigger = enabled
	return b
}

// WithLogger replaces the package's diagnostic logger.
func (b *Builder) WithLogger(l zerolog.Logger) *Builder {
	if b.err != nil {
		return b
	}
	b.opts.Logger = l
	return b
}

// Build validates and returns the constructed Options.
func (b *Builder) Build() (Options, error) {
	if b.err != nil {
		return Options{}, b.err
	}
	return b.opts, nil
}

// LoadOptionsFile reads Options from a TOML file, starting from
// DefaultOptions for any field the file omits. Field names match the
// Options struct: auto_collect, adjustment_percent,
// buffered_objects_threshold, pedantic_debug_assertions,
// memory_aware_trigger. The logger cannot be configured from a file and is
// always left at its default.
func LoadOptionsFile(path string) (Options, error) {
	type fileOptions struct {
		AutoCollect              *bool    `toml:"auto_collect"`
		AdjustmentPercent        *float64 `toml:"adjustment_percent"`
		BufferedObjectsThreshold *uint64  `toml:"buffered_objects_threshold"`
		PedanticDebugAssertions  *bool    `toml:"pedantic_debug_assertions"`
		MemoryAwareTrigger       *bool    `toml:"memory_aware_trigger"`
	}

	var fo fileOptions
	if _, err := toml.DecodeFile(path, &fo); err != nil {
		return Options{}, fmt.Errorf("cc: loading options from %q: %w", path, err)
	}

	opts := DefaultOptions()
	if fo.AutoCollect != nil {
		opts.AutoCollect = *fo.AutoCollect
	}
	if fo.AdjustmentPercent != nil {
		if *fo.AdjustmentPercent < 0 || *fo.AdjustmentPercent > 1 {
			return Options{}, fmt.Errorf("cc: adjustment_percent in %q must be between 0 and 1", path)
		}
		opts.AdjustmentPercent = *fo.AdjustmentPercent
	}
	if fo.BufferedObjectsThreshold != nil {
		opts.BufferedObjectsThreshold = *fo.BufferedObjectsThreshold
	}
	if fo.PedanticDebugAssertions != nil {
		opts.PedanticDebugAssertions = *fo.PedanticDebugAssertions
	}
	if fo.MemoryAwareTrigger != nil {
		opts.MemoryAwareTrigger = *fo.MemoryAwareTrigger
	}
	return opts, nil
}

// Apply wires opts into the package-level runtime state: the default
// Trigger, the pedantic-debug-assertions flag, and the shared logger. There
// is only ever one runtime-wide configuration, matching ccrt's
// single-mutator, process-wide state. A later call overwrites the enabled
// flag, the buffered-objects threshold, the debug-assertion flag and the
// logger; it sets the adjustment percent only when AdjustmentPercent is
// non-zero or AutoCollect is true, and it does not remove a memory-aware
// ceiling installed by an earlier call.
func (o Options) Apply() {
	trigger := ccrt.DefaultTrigger()
	trigger.SetEnabled(o.AutoCollect)
	if o.AdjustmentPercent != 0 || o.AutoCollect {
		trigger.SetAdjustmentPercent(o.AdjustmentPercent)
	}
	trigger.SetBufferedObjectsThreshold(o.BufferedObjectsThreshold)

	ccrt.SetPedanticDebugAssertions(o.PedanticDebugAssertions)
	ccrt.SetLogger(o.Logger)

	if o.MemoryAwareTrigger {
		trigger.EnableMemoryAwareCeiling()
	}
}

// Configure is a convenience wrapper around NewBuilder/Build/Apply for
// callers who only need to change a couple of fields.
func Configure(fn func(*Builder)) error {
	b := NewBuilder()
	fn(b)
	opts, err := b.Build()
	if err != nil {
		return err
	}
	opts.Apply()
	return nil
}
