// SPDX-License-Identifier: Apache-2.0

package profiling

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"runtime/pprof"
)

const (
	cpuProfileFile    = "cpu.prof"
	memoryProfileFile = "mem.prof"
)

// Start begins a CPU profile written to dir. The returned function stops it
// and writes an allocations profile next to it.
func Start(dir string) (func() error, error) {
	if dir == "" {
		dir = "."
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating profile directory: %w", err)
	}

	cpuFile, err := os.Create(filepath.Join(dir, cpuProfileFile))
	if err != nil {
		return nil, fmt.Errorf("could not create CPU profile file: %w", err)
	}
	if err := pprof.StartCPUProfile(cpuFile); err != nil {
		cpuFile.Close()
		return nil, fmt.Errorf("could not start CPU profile: %w", err)
	}

	return func() error {
		pprof.StopCPUProfile()
		return errors.Join(cpuFile.Close(), writeMemoryProfile(filepath.Join(dir, memoryProfileFile)))
	}, nil
}

func writeMemoryProfile(path string) error {
	memFile, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("could not create memory profile file: %w", err)
	}
	defer memFile.Close()

	runtime.GC() // up-to-date statistics
	if err := pprof.Lookup("allocs").WriteTo(memFile, 0); err != nil {
		return fmt.Errorf("could not write memory profile: %w", err)
	}
	return nil
}
