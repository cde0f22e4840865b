// internal/gpu/gpu.go
// Package gpu detects how many GPUs the host exposes. The count feeds the
// default tensor-parallel layout at export time and the doubling loop in
// verification runs.
package gpu

import (
	"fmt"
	"os"
	"strconv"
	"strings"
)

// EnvGPUCount overrides detection. Set it on hosts without NVIDIA device
// nodes, or in tests, to pin the count.
const EnvGPUCount = "PARAGON_GPU_COUNT"

// Count returns the number of GPUs on the host. The environment override
// wins when set; otherwise the NVIDIA device nodes under /dev are counted.
// A host without GPUs returns 0 and no error.
func Count() (int, error) {
	if raw := strings.TrimSpace(os.Getenv(EnvGPUCount)); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			return 0, fmt.Errorf("invalid %s value %q: expected a non-negative integer", EnvGPUCount, raw)
		}
		return n, nil
	}
	return countDevices("/dev")
}

// countDevices counts device nodes named nvidia0, nvidia1, and so on.
// Control nodes like nvidiactl and nvidia-uvm are not GPUs.
func countDevices(dir string) (int, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return 0, nil
		}
		return 0, fmt.Errorf("read device dir %s: %w", dir, err)
	}

	count := 0
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		if isGPUNode(entry.Name()) {
			count++
		}
	}
	return count, nil
}

func isGPUNode(name string) bool {
	rest, ok := strings.CutPrefix(name, "nvidia")
	if !ok || rest == "" {
		return false
	}
	for _, r := range rest {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
