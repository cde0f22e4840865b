// internal/cli/report_test.go
package paragon

import (
	"io"
	"testing"

	"github.com/mwiater/paragon/internal/appconfig"
	"github.com/mwiater/paragon/internal/report"
)

func TestReportCmdResolvesResultsDir(t *testing.T) {
	currentConfig = &appconfig.Config{ResultsDir: "/results"}
	t.Cleanup(func() { currentConfig = nil })

	orig := buildReport
	t.Cleanup(func() { buildReport = orig })

	var captured report.Options
	buildReport = func(opts report.Options, out io.Writer) error {
		captured = opts
		return nil
	}

	flags := reportCmd.Flags()
	if err := flags.Set("html", "custom.html"); err != nil {
		t.Fatal(err)
	}
	if err := flags.Set("analysis-json", "runs.json"); err != nil {
		t.Fatal(err)
	}

	if err := runReport(reportCmd); err != nil {
		t.Fatalf("runReport error: %v", err)
	}

	if captured.ResultsDir != "/results" {
		t.Errorf("ResultsDir = %q, want /results", captured.ResultsDir)
	}
	if captured.HTMLPath != "custom.html" {
		t.Errorf("HTMLPath = %q", captured.HTMLPath)
	}
	if captured.AnalysisPath != "runs.json" {
		t.Errorf("AnalysisPath = %q", captured.AnalysisPath)
	}
}
