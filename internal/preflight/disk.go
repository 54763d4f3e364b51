package preflight

import (
	"fmt"
	"syscall"
)

// Disk thresholds for the state directory filesystem. Below the hard
// floor the WAL-mode databases cannot grow safely and the check fails;
// below the soft floor searches still work but the result cache has
// little room, so the check warns.
const (
	DiskHardMinBytes = 50 * 1024 * 1024
	DiskSoftMinBytes = 250 * 1024 * 1024
)

// CheckDiskSpace measures free space on the filesystem holding the
// state directory, where the result cache, the metrics store, and the
// rotated logs all accumulate.
func (c *Checker) CheckDiskSpace(path string) CheckResult {
	result := CheckResult{
		Name:     "disk_space",
		Required: true,
	}

	var stat syscall.Statfs_t
	if err := syscall.Statfs(path, &stat); err != nil {
		result.Status = StatusFail
		result.Message = fmt.Sprintf("failed to check disk space: %v", err)
		return result
	}

	free := stat.Bavail * uint64(stat.Bsize)

	switch {
	case free < DiskHardMinBytes:
		result.Status = StatusFail
		result.Message = fmt.Sprintf("%s free, below the %s floor for the cache and metrics databases",
			formatBytes(free), formatBytes(DiskHardMinBytes))
	case free < DiskSoftMinBytes:
		result.Status = StatusWarn
		result.Message = fmt.Sprintf("%s free; the result cache may run out of room", formatBytes(free))
		result.Details = fmt.Sprintf("State directory: %s", path)
	default:
		result.Status = StatusPass
		result.Message = fmt.Sprintf("%s free", formatBytes(free))
	}

	return result
}

// formatBytes renders a byte count with its largest whole unit.
func formatBytes(n uint64) string {
	units := []struct {
		size uint64
		name string
	}{
		{1 << 40, "TB"},
		{1 << 30, "GB"},
		{1 << 20, "MB"},
		{1 << 10, "KB"},
	}
	for _, u := range units {
		if n >= u.size {
			return fmt.Sprintf("%.1f %s", float64(n)/float64(u.size), u.name)
		}
	}
	return fmt.Sprintf("%d bytes", n)
}
