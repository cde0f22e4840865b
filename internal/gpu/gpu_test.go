// internal/gpu/gpu_test.go
package gpu

import (
	"os"
	"path/filepath"
	"testing"
)

func TestCountEnvOverride(t *testing.T) {
	t.Setenv(EnvGPUCount, "4")
	n, err := Count()
	if err != nil {
		t.Fatalf("Count error: %v", err)
	}
	if n != 4 {
		t.Fatalf("expected 4, got %d", n)
	}
}

func TestCountEnvOverrideInvalid(t *testing.T) {
	for _, raw := range []string{"two", "-1", "1.5"} {
		t.Setenv(EnvGPUCount, raw)
		if _, err := Count(); err == nil {
			t.Errorf("expected error for %q", raw)
		}
	}
}

func TestCountDevices(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	for _, name := range []string{"nvidia0", "nvidia1", "nvidia12", "nvidiactl", "nvidia-uvm", "null", "nvidia"} {
		if err := os.WriteFile(filepath.Join(dir, name), nil, 0o644); err != nil {
			t.Fatalf("write %s: %v", name, err)
		}
	}
	if err := os.Mkdir(filepath.Join(dir, "nvidia9dir"), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}

	n, err := countDevices(dir)
	if err != nil {
		t.Fatalf("countDevices error: %v", err)
	}
	if n != 3 {
		t.Fatalf("expected 3 GPU nodes, got %d", n)
	}
}

func TestCountDevicesMissingDir(t *testing.T) {
	t.Parallel()

	n, err := countDevices(filepath.Join(t.TempDir(), "absent"))
	if err != nil {
		t.Fatalf("countDevices error: %v", err)
	}
	if n != 0 {
		t.Fatalf("expected 0 for a missing device dir, got %d", n)
	}
}
