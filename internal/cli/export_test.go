// internal/cli/export_test.go
package paragon

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/cobra"

	"github.com/mwiater/paragon/internal/appconfig"
	"github.com/mwiater/paragon/internal/enginefile"
	"github.com/mwiater/paragon/internal/export"
)

func TestExportCmdBuildsOptions(t *testing.T) {
	currentConfig = &appconfig.Config{
		CheckpointDir: "/ckpts",
		EngineDir:     "/engines",
	}
	t.Cleanup(func() { currentConfig = nil })

	origExport, origSmoke := exportEngine, smokeExported
	t.Cleanup(func() { exportEngine, smokeExported = origExport, origSmoke })

	var captured export.Options
	exportEngine = func(ctx context.Context, opts export.Options) (*export.Result, error) {
		captured = opts
		return &export.Result{
			Dir: opts.EngineDir,
			Manifest: &enginefile.Manifest{
				Shards: []enginefile.ShardInfo{{File: "table.tp0.pp0.bin"}},
			},
			TotalBytes: 1024,
			Duration:   12 * time.Millisecond,
		}, nil
	}
	smokeDir := ""
	smokeExported = func(cmd *cobra.Command, dir string) error {
		smokeDir = dir
		return nil
	}

	flags := exportCmd.Flags()
	if err := flags.Set("model-name", "falcon-7b"); err != nil {
		t.Fatal(err)
	}
	if err := flags.Set("gpus", "2"); err != nil {
		t.Fatal(err)
	}

	if err := runExport(exportCmd); err != nil {
		t.Fatalf("runExport error: %v", err)
	}

	if captured.ModelName != "falcon-7b" {
		t.Errorf("ModelName = %q", captured.ModelName)
	}
	if want := filepath.Join("/ckpts", "falcon-7b"); captured.CheckpointDir != want {
		t.Errorf("CheckpointDir = %q, want %q", captured.CheckpointDir, want)
	}
	if want := filepath.Join("/engines", "falcon-7b"); captured.EngineDir != want {
		t.Errorf("EngineDir = %q, want %q", captured.EngineDir, want)
	}
	if captured.GPUs != 2 {
		t.Errorf("GPUs = %d", captured.GPUs)
	}
	if captured.MaxBatchSize != 8 || captured.MaxInputTokens != 256 || captured.MaxOutputTokens != 128 {
		t.Errorf("limits = %d/%d/%d", captured.MaxBatchSize, captured.MaxInputTokens, captured.MaxOutputTokens)
	}
	if captured.Progress == nil {
		t.Error("expected a progress callback")
	}
	if smokeDir != captured.EngineDir {
		t.Errorf("smoke ran against %q, want %q", smokeDir, captured.EngineDir)
	}
}
