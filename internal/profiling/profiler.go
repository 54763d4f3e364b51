// Package profiling captures pprof and execution-trace data for a
// single command invocation.
package profiling

import (
	"errors"
	"fmt"
	"os"
	"runtime"
	"runtime/pprof"
	"runtime/trace"
)

// Options selects which captures a session runs. Empty paths are
// skipped.
type Options struct {
	// CPUPath receives a pprof CPU profile sampled over the whole
	// session.
	CPUPath string
	// HeapPath receives a heap snapshot taken when the session stops.
	HeapPath string
	// TracePath receives a runtime execution trace.
	TracePath string
}

// Enabled reports whether any capture is requested.
func (o Options) Enabled() bool {
	return o.CPUPath != "" || o.HeapPath != "" || o.TracePath != ""
}

// Session is one profiling capture spanning a command run. Start it
// before the work, Stop it after.
type Session struct {
	opts      Options
	cpuFile   *os.File
	traceFile *os.File
}

// Start begins the requested captures. When a later capture fails to
// start, the ones already running are stopped before the error
// returns, so a failed Start never leaves profiling active.
func Start(opts Options) (*Session, error) {
	s := &Session{opts: opts}

	if opts.CPUPath != "" {
		f, err := os.Create(opts.CPUPath)
		if err != nil {
			return nil, fmt.Errorf("create cpu profile %s: %w", opts.CPUPath, err)
		}
		if err := pprof.StartCPUProfile(f); err != nil {
			_ = f.Close()
			return nil, fmt.Errorf("start cpu profile: %w", err)
		}
		s.cpuFile = f
	}

	if opts.TracePath != "" {
		f, err := os.Create(opts.TracePath)
		if err != nil {
			s.unwind()
			return nil, fmt.Errorf("create trace %s: %w", opts.TracePath, err)
		}
		if err := trace.Start(f); err != nil {
			_ = f.Close()
			s.unwind()
			return nil, fmt.Errorf("start trace: %w", err)
		}
		s.traceFile = f
	}

	return s, nil
}

func (s *Session) unwind() {
	if s.cpuFile != nil {
		pprof.StopCPUProfile()
		_ = s.cpuFile.Close()
		s.cpuFile = nil
	}
}

// Stop ends the running captures and, when requested, writes the heap
// snapshot. The snapshot happens here rather than at Start so it
// reflects the memory the command actually used.
func (s *Session) Stop() error {
	var errs []error

	if s.traceFile != nil {
		trace.Stop()
		if err := s.traceFile.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close trace: %w", err))
		}
		s.traceFile = nil
	}

	if s.cpuFile != nil {
		pprof.StopCPUProfile()
		if err := s.cpuFile.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close cpu profile: %w", err))
		}
		s.cpuFile = nil
	}

	if s.opts.HeapPath != "" {
		if err := WriteHeapSnapshot(s.opts.HeapPath); err != nil {
			errs = append(errs, err)
		}
	}

	return errors.Join(errs...)
}

// WriteHeapSnapshot dumps a point-in-time heap profile. A GC pass runs
// first so the snapshot shows live objects, not collectable garbage.
func WriteHeapSnapshot(path string) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create heap profile %s: %w", path, err)
	}
	defer func() { _ = f.Close() }()

	runtime.GC()

	if err := pprof.WriteHeapProfile(f); err != nil {
		return fmt.Errorf("write heap profile: %w", err)
	}
	return nil
}
