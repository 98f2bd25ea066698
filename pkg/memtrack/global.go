package memtrack

import (
	"os"
	"sync"

	"github.com/apache/arrow-go/v18/arrow/memory"
)

// EnvVar is the startup toggle for the process-wide profiler. Recognized
// truthy values are exactly "1", "true", "TRUE", "yes" and "YES"; any other
// value, including absence, leaves profiling disabled.
const EnvVar = "MEMTRACK_PROFILE"

// Default is the process-wide profiling allocator. It wraps whatever
// memory.DefaultAllocator held at package initialization, and Install
// rebinds memory.DefaultAllocator to it so that everything allocating
// through the Arrow default is profiled.
var Default = NewProfilingAllocator(memory.DefaultAllocator)

var installOnce sync.Once

// Install makes Default the program's default allocator. Call it before
// any other initialization allocates; there is no uninstall. Install is
// idempotent.
func Install() {
	installOnce.Do(func() {
		memory.DefaultAllocator = Default
	})
}

// InitFromEnv sets the gate of the process-wide profiler from EnvVar. It is
// meant to be called once at startup and does not watch the environment
// afterward.
func InitFromEnv() {
	switch os.Getenv(EnvVar) {
	case "1", "true", "TRUE", "yes", "YES":
		Default.Enable(true)
	}
}

// Enable toggles bookkeeping on the process-wide profiler.
func Enable(on bool) {
	Default.Enable(on)
}

// IsEnabled reports whether the process-wide profiler is bookkeeping.
func IsEnabled() bool {
	return Default.IsEnabled()
}

// Reset zeroes the process-wide counters.
func Reset() {
	Default.Reset()
}

// GetSnapshot returns a copy of the process-wide counters.
func GetSnapshot() Snapshot {
	return Default.Snapshot()
}
