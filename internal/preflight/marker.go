package preflight

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// MarkerFile records a clean preflight run in the state directory. The
// serve path skips the full check suite while a current marker exists.
const MarkerFile = ".preflight-passed"

// NeedsCheck reports whether the check suite should run: true when no
// marker exists, the marker is malformed, or the marker was written by
// a different build. An upgrade may change what the checks validate,
// so a foreign-version marker does not count.
func NeedsCheck(stateDir, version string) bool {
	recorded, _, err := readMarker(stateDir)
	if err != nil {
		return true
	}
	return recorded != version
}

// MarkPassed records a clean check run for the given build version.
func MarkPassed(stateDir, version string) error {
	if err := os.MkdirAll(stateDir, 0o755); err != nil {
		return fmt.Errorf("create state directory: %w", err)
	}

	content := fmt.Sprintf("%s\n%s\n", version, time.Now().Format(time.RFC3339))
	return os.WriteFile(filepath.Join(stateDir, MarkerFile), []byte(content), 0o644)
}

// ClearMarker removes the marker so the next run checks again.
func ClearMarker(stateDir string) error {
	err := os.Remove(filepath.Join(stateDir, MarkerFile))
	if err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("remove marker file: %w", err)
	}
	return nil
}

// MarkerAge returns how long ago the recorded check passed, zero when
// no valid marker exists.
func MarkerAge(stateDir string) time.Duration {
	_, at, err := readMarker(stateDir)
	if err != nil {
		return 0
	}
	return time.Since(at)
}

func readMarker(stateDir string) (version string, at time.Time, err error) {
	content, err := os.ReadFile(filepath.Join(stateDir, MarkerFile))
	if err != nil {
		return "", time.Time{}, err
	}

	lines := strings.SplitN(strings.TrimSpace(string(content)), "\n", 2)
	if len(lines) != 2 {
		return "", time.Time{}, fmt.Errorf("malformed marker file")
	}

	at, err = time.Parse(time.RFC3339, strings.TrimSpace(lines[1]))
	if err != nil {
		return "", time.Time{}, fmt.Errorf("malformed marker timestamp: %w", err)
	}

	return strings.TrimSpace(lines[0]), at, nil
}
