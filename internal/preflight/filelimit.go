package preflight

import (
	"fmt"
	"syscall"
)

// Descriptor demand is dominated by the serve path: the HTTP client
// pools of the two network providers, the listener with its accepted
// connections, the SQLite cache and metrics handles, and the rotated
// log file. 256 covers the one-shot CLI path; 1024 gives serve
// headroom under load.
const (
	FDHardMin = 256
	FDSoftMin = 1024
)

// CheckFileDescriptors verifies the soft descriptor limit leaves room
// for the provider fan-out and the HTTP server.
func (c *Checker) CheckFileDescriptors() CheckResult {
	result := CheckResult{
		Name:     "file_descriptors",
		Required: true,
	}

	var rl syscall.Rlimit
	if err := syscall.Getrlimit(syscall.RLIMIT_NOFILE, &rl); err != nil {
		result.Status = StatusFail
		result.Message = fmt.Sprintf("failed to check file descriptor limit: %v", err)
		return result
	}

	switch {
	case rl.Cur < FDHardMin:
		result.Status = StatusFail
		result.Message = fmt.Sprintf("soft limit %d is too low (need %d)", rl.Cur, FDHardMin)
		result.Details = raiseHint(rl)
	case rl.Cur < FDSoftMin:
		result.Status = StatusWarn
		result.Message = fmt.Sprintf("soft limit %d; serve may exhaust descriptors under load", rl.Cur)
		result.Details = raiseHint(rl)
	default:
		result.Status = StatusPass
		result.Message = fmt.Sprintf("soft limit %d", rl.Cur)
	}

	return result
}

// raiseHint suggests ulimit when the hard limit has room, capped so an
// unlimited hard limit does not produce an absurd suggestion.
func raiseHint(rl syscall.Rlimit) string {
	target := rl.Max
	if target > 1048576 {
		target = 1048576
	}
	if target > rl.Cur {
		return fmt.Sprintf("Run 'ulimit -n %d' to raise the limit", target)
	}
	return "Raise the system-wide descriptor limit; the hard limit is already reached"
}
