// internal/cli/verify_test.go
package paragon

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/mwiater/paragon/internal/accuracy"
	"github.com/mwiater/paragon/internal/appconfig"
	"github.com/mwiater/paragon/internal/verify"
)

func TestVerifyCmdBuildsSuiteOptions(t *testing.T) {
	currentConfig = &appconfig.Config{
		CheckpointDir: "/ckpts",
		EngineDir:     "/engines",
		ResultsDir:    "/results",
	}
	t.Cleanup(func() { currentConfig = nil })

	origRun := runVerifySuite
	t.Cleanup(func() { runVerifySuite = origRun })

	var captured verify.SuiteOptions
	runVerifySuite = func(ctx context.Context, opts verify.SuiteOptions) ([]*verify.RunResult, error) {
		captured = opts
		return nil, nil
	}

	flags := verifyCmd.Flags()
	if err := flags.Set("model-name", "falcon-7b"); err != nil {
		t.Fatal(err)
	}
	if err := flags.Set("run-accuracy", "true"); err != nil {
		t.Fatal(err)
	}
	if err := flags.Set("top-k", "4"); err != nil {
		t.Fatal(err)
	}
	if err := flags.Set("max-gpus", "2"); err != nil {
		t.Fatal(err)
	}

	if err := runVerify(verifyCmd); err != nil {
		t.Fatalf("runVerify error: %v", err)
	}

	run := captured.Run
	if run.Model != "falcon-7b" {
		t.Errorf("Model = %q", run.Model)
	}
	if want := filepath.Join("/ckpts", "falcon-7b"); run.CheckpointDir != want {
		t.Errorf("CheckpointDir = %q, want %q", run.CheckpointDir, want)
	}
	if want := filepath.Join("/engines", "falcon-7b"); run.EngineDir != want {
		t.Errorf("EngineDir = %q, want %q", run.EngineDir, want)
	}
	if !run.RunAccuracy || run.TestDataPath != currentConfig.TestData() {
		t.Errorf("accuracy options = %v %q", run.RunAccuracy, run.TestDataPath)
	}
	if run.ResultsDir != "/results" {
		t.Errorf("ResultsDir = %q", run.ResultsDir)
	}
	if run.Threshold != accuracy.DefaultThreshold {
		t.Errorf("Threshold = %f", run.Threshold)
	}
	if run.MaxBatchSize != 8 || run.BatchSize != 8 {
		t.Errorf("batch sizes = %d %d", run.MaxBatchSize, run.BatchSize)
	}
	if run.DeployAddr != currentConfig.DeployAddress() {
		t.Errorf("DeployAddr = %q", run.DeployAddr)
	}
	if run.Sampling.TopK == nil || *run.Sampling.TopK != 4 {
		t.Errorf("Sampling.TopK = %v, want the flag override", run.Sampling.TopK)
	}
	if run.Sampling.Temperature == nil || *run.Sampling.Temperature != 1.0 {
		t.Errorf("Sampling.Temperature = %v, want the profile default", run.Sampling.Temperature)
	}
	if captured.MinGPUs != 1 || captured.MaxGPUs != 2 {
		t.Errorf("GPU sweep = %d..%d", captured.MinGPUs, captured.MaxGPUs)
	}
	if captured.FromCatalog || captured.Catalog != nil {
		t.Error("catalog routing enabled without --existing-test-models")
	}
}

func TestVerifyCmdCatalogRouting(t *testing.T) {
	catalogPath := filepath.Join(t.TempDir(), "models.yaml")
	content := `models:
  - name: falcon-7b
    family: falcon
    checkpoint: /ckpts/falcon-7b
`
	if err := os.WriteFile(catalogPath, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	currentConfig = &appconfig.Config{Catalog: catalogPath}
	t.Cleanup(func() { currentConfig = nil })

	origRun := runVerifySuite
	t.Cleanup(func() { runVerifySuite = origRun })

	var captured verify.SuiteOptions
	runVerifySuite = func(ctx context.Context, opts verify.SuiteOptions) ([]*verify.RunResult, error) {
		captured = opts
		return nil, nil
	}

	flags := verifyCmd.Flags()
	if err := flags.Set("model-name", "falcon-7b"); err != nil {
		t.Fatal(err)
	}
	if err := flags.Set("existing-test-models", "true"); err != nil {
		t.Fatal(err)
	}

	if err := runVerify(verifyCmd); err != nil {
		t.Fatalf("runVerify error: %v", err)
	}

	if !captured.FromCatalog || captured.Catalog == nil {
		t.Fatal("expected the run to route through the catalog")
	}
	if _, err := captured.Catalog.Lookup("falcon-7b"); err != nil {
		t.Errorf("catalog did not load the entry: %v", err)
	}
}
