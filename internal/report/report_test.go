// internal/report/report_test.go
package report

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/mwiater/paragon/internal/accuracy"
)

func writeSummary(t *testing.T, dir, name string, summary accuracy.Report) {
	t.Helper()
	data, err := json.MarshalIndent(summary, "", "  ")
	if err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, name), data, 0o644); err != nil {
		t.Fatal(err)
	}
}

func TestLoadOrdersRuns(t *testing.T) {
	dir := t.TempDir()
	writeSummary(t, dir, "1gpu_falcon-40b_summary.json", accuracy.Report{Model: "falcon-40b", GPUs: 1})
	writeSummary(t, dir, "2gpu_falcon-7b_summary.json", accuracy.Report{Model: "falcon-7b", GPUs: 2})
	writeSummary(t, dir, "1gpu_falcon-7b_summary.json", accuracy.Report{Model: "falcon-7b", GPUs: 1})

	runs, err := Load(dir)
	if err != nil {
		t.Fatalf("Load error: %v", err)
	}
	if len(runs) != 3 {
		t.Fatalf("got %d runs, want 3", len(runs))
	}

	got := make([]string, 0, len(runs))
	for _, run := range runs {
		got = append(got, run.Model)
		if run.File == "" {
			t.Errorf("run %s has no source file", run.Model)
		}
	}
	want := []string{"falcon-40b", "falcon-7b", "falcon-7b"}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("run order = %v, want %v", got, want)
		}
	}
	if runs[1].GPUs != 1 || runs[2].GPUs != 2 {
		t.Errorf("falcon-7b runs ordered %d then %d GPUs", runs[1].GPUs, runs[2].GPUs)
	}
}

func TestLoadWithoutSummaries(t *testing.T) {
	_, err := Load(t.TempDir())
	if err == nil || !strings.Contains(err.Error(), "no accuracy summaries") {
		t.Fatalf("Load error = %v", err)
	}
}

func TestBuildWritesReport(t *testing.T) {
	dir := t.TempDir()
	writeSummary(t, dir, "1gpu_falcon-7b_summary.json", accuracy.Report{
		Model: "falcon-7b", GPUs: 1, Total: 16,
		ExactAccuracy: 0.75, RelaxedAccuracy: 0.875,
		Threshold: 0.5, Passed: true, Timestamp: "2026-02-11T08:00:00Z",
	})
	writeSummary(t, dir, "2gpu_falcon-40b_summary.json", accuracy.Report{
		Model: "falcon-40b", GPUs: 2, Total: 16,
		ExactAccuracy: 0.25, RelaxedAccuracy: 0.375,
		Threshold: 0.5, Passed: false, Timestamp: "2026-02-11T09:00:00Z",
	})

	var out bytes.Buffer
	opts := Options{
		ResultsDir:   dir,
		AnalysisPath: filepath.Join(dir, "analysis", "runs.json"),
	}
	if err := Build(opts, &out); err != nil {
		t.Fatalf("Build error: %v", err)
	}

	htmlPath := filepath.Join(dir, "accuracy-report.html")
	html, err := os.ReadFile(htmlPath)
	if err != nil {
		t.Fatalf("report not written: %v", err)
	}
	for _, want := range []string{"Accuracy Report", "falcon-7b", "falcon-40b"} {
		if !strings.Contains(string(html), want) {
			t.Errorf("report missing %q", want)
		}
	}

	data, err := os.ReadFile(opts.AnalysisPath)
	if err != nil {
		t.Fatalf("analysis not written: %v", err)
	}
	var runs []Run
	if err := json.Unmarshal(data, &runs); err != nil {
		t.Fatalf("analysis JSON: %v", err)
	}
	if len(runs) != 2 {
		t.Errorf("analysis carries %d runs, want 2", len(runs))
	}

	if !strings.Contains(out.String(), "Report written to "+htmlPath) {
		t.Errorf("output = %q", out.String())
	}
}

func TestGenerateEmbedsRuns(t *testing.T) {
	html, err := Generate([]Run{{Report: accuracy.Report{Model: "falcon-7b", RelaxedAccuracy: 0.9, Passed: true}}})
	if err != nil {
		t.Fatalf("Generate error: %v", err)
	}
	if !strings.Contains(html, `"relaxedAccuracy":0.9`) {
		t.Error("relaxed accuracy not embedded in the payload")
	}
}
