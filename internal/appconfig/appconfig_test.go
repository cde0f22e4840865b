// internal/appconfig/appconfig_test.go
package appconfig

import (
	"os"
	"testing"
	"time"
)

// TestLoad tests the Load function to ensure it correctly handles various
// scenarios, including valid and invalid configurations. It verifies that a
// valid configuration file is loaded without error, while files with invalid
// JSON, an out-of-range deploy port, or that are nonexistent result in an
// appropriate error. This test uses temporary files to simulate different
// configuration scenarios and asserts that the function behaves as expected
// in each case.
func TestLoad(t *testing.T) {
	validConfig := `{
        "debug": true,
        "deployPort": 8000,
        "resultsDir": "out/results",
        "samplingProfile": "accuracy"
    }`
	tmpfile, err := os.CreateTemp("", "config.json")
	if err != nil {
		t.Fatal(err)
	}
	defer os.Remove(tmpfile.Name())
	if _, err := tmpfile.Write([]byte(validConfig)); err != nil {
		t.Fatal(err)
	}
	if err := tmpfile.Close(); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(tmpfile.Name())
	if err != nil {
		t.Fatalf("Load() with valid config failed: %v", err)
	}
	if !cfg.Debug {
		t.Fatal("expected debug to be enabled")
	}

	if cfg.TimeoutSeconds != 600 {
		t.Fatalf("expected default timeout of 600 seconds, got %d", cfg.TimeoutSeconds)
	}

	if cfg.RequestTimeout() != 600*time.Second {
		t.Fatalf("expected default request timeout of 600s, got %v", cfg.RequestTimeout())
	}

	if cfg.DeployAddress() != "localhost:8000" {
		t.Fatalf("expected deploy address localhost:8000, got %s", cfg.DeployAddress())
	}

	if cfg.ResultsRoot() != "out/results" {
		t.Fatalf("expected results root out/results, got %s", cfg.ResultsRoot())
	}

	sampling := cfg.ResolvedSampling()
	if sampling.Temperature == nil || *sampling.Temperature != 0.1 {
		t.Fatalf("expected accuracy profile temperature 0.1, got %+v", sampling.Temperature)
	}

	invalidJSON := `{ "debug": `
	tmpfile2, err := os.CreateTemp("", "config.json")
	if err != nil {
		t.Fatal(err)
	}
	defer os.Remove(tmpfile2.Name())
	if _, err := tmpfile2.Write([]byte(invalidJSON)); err != nil {
		t.Fatal(err)
	}
	if err := tmpfile2.Close(); err != nil {
		t.Fatal(err)
	}
	if _, err := Load(tmpfile2.Name()); err == nil {
		t.Fatal("Load() with invalid JSON should have failed")
	}

	badPort := `{ "deployPort": 70000 }`
	tmpfile3, err := os.CreateTemp("", "config.json")
	if err != nil {
		t.Fatal(err)
	}
	defer os.Remove(tmpfile3.Name())
	if _, err := tmpfile3.Write([]byte(badPort)); err != nil {
		t.Fatal(err)
	}
	if err := tmpfile3.Close(); err != nil {
		t.Fatal(err)
	}
	if _, err := Load(tmpfile3.Name()); err == nil {
		t.Fatal("Load() with out-of-range deploy port should have failed")
	}

	if _, err := Load("nonexistent.json"); err == nil {
		t.Fatal("Load() with nonexistent file should have failed")
	}
}

func TestDefaults(t *testing.T) {
	var cfg Config

	if cfg.CatalogFile() != DefaultCatalogPath {
		t.Fatalf("expected default catalog %q, got %q", DefaultCatalogPath, cfg.CatalogFile())
	}
	if cfg.CheckpointRoot() != "checkpoints" {
		t.Fatalf("expected default checkpoint root, got %q", cfg.CheckpointRoot())
	}
	if cfg.TestData() != "testdata/lambada.json" {
		t.Fatalf("expected default test data path, got %q", cfg.TestData())
	}
	if cfg.DeployAddress() != "localhost:8000" {
		t.Fatalf("expected default deploy address localhost:8000, got %q", cfg.DeployAddress())
	}
	if cfg.LogFilePath() != "paragon.log" {
		t.Fatalf("expected default log file, got %q", cfg.LogFilePath())
	}
}

func TestResolvedSamplingOverride(t *testing.T) {
	temp := 0.5
	cfg := Config{
		SamplingProfile: "greedy",
		Sampling:        SamplingParams{Temperature: &temp},
	}

	sampling := cfg.ResolvedSampling()
	if sampling.Temperature == nil || *sampling.Temperature != 0.5 {
		t.Fatalf("expected override temperature 0.5, got %+v", sampling.Temperature)
	}
	if sampling.TopK == nil || *sampling.TopK != 1 {
		t.Fatalf("expected greedy top_k 1 to survive merge, got %+v", sampling.TopK)
	}
}

func TestParamsForProfileAliases(t *testing.T) {
	tests := []struct {
		alias string
		want  ProfileName
	}{
		{"", ProfileGreedy},
		{"default", ProfileGreedy},
		{"argmax", ProfileGreedy},
		{"ACC", ProfileAccuracy},
		{"eval", ProfileAccuracy},
		{"sampled", ProfileCreative},
		{"no-such-profile", ProfileGreedy},
	}

	for _, tt := range tests {
		got := ParamsForProfile(tt.alias)
		want := ParamsForProfile(string(tt.want))
		if *got.TopK != *want.TopK || *got.Temperature != *want.Temperature {
			t.Fatalf("ParamsForProfile(%q) did not resolve to %q", tt.alias, tt.want)
		}
	}
}
