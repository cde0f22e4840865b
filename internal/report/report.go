// internal/report/report.go
package report

import (
	"bytes"
	"encoding/json"
	"fmt"
	"html/template"
	"io"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/mwiater/paragon/internal/accuracy"
)

// Run is one persisted accuracy summary plus the file it came from. The
// summary fields unmarshal straight from the *_summary.json that the
// accuracy package writes after each evaluation.
type Run struct {
	accuracy.Report
	File string `json:"file"`
}

// Options captures the inputs for building the accuracy report.
type Options struct {
	ResultsDir   string
	HTMLPath     string
	AnalysisPath string
}

// Load reads every *_summary.json under the results directory, ordered by
// model name and then GPU count.
func Load(resultsDir string) ([]Run, error) {
	matches, err := filepath.Glob(filepath.Join(resultsDir, "*_summary.json"))
	if err != nil {
		return nil, fmt.Errorf("unable to scan results directory %s: %w", resultsDir, err)
	}
	if len(matches) == 0 {
		return nil, fmt.Errorf("no accuracy summaries under %s, run 'paragon verify --run-accuracy' first", resultsDir)
	}

	runs := make([]Run, 0, len(matches))
	for _, path := range matches {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("unable to read summary %s: %w", path, err)
		}
		var run Run
		if err := json.Unmarshal(data, &run); err != nil {
			return nil, fmt.Errorf("unable to parse summary %s: %w", path, err)
		}
		run.File = filepath.Base(path)
		runs = append(runs, run)
	}

	sort.Slice(runs, func(i, j int) bool {
		if runs[i].Model != runs[j].Model {
			return runs[i].Model < runs[j].Model
		}
		return runs[i].GPUs < runs[j].GPUs
	})
	return runs, nil
}

// Build loads the accuracy summaries, optionally writes the combined
// analysis JSON, and renders the HTML report.
func Build(opts Options, out io.Writer) error {
	runs, err := Load(opts.ResultsDir)
	if err != nil {
		return err
	}

	if opts.AnalysisPath != "" {
		if err := writeAnalysisJSON(opts.AnalysisPath, runs); err != nil {
			return err
		}
		fmt.Fprintf(out, "Analysis JSON written to %s\n", opts.AnalysisPath)
	}

	html, err := Generate(runs)
	if err != nil {
		return fmt.Errorf("failed generating HTML report: %w", err)
	}

	if opts.HTMLPath == "" {
		opts.HTMLPath = filepath.Join(opts.ResultsDir, "accuracy-report.html")
	}
	if err := os.WriteFile(opts.HTMLPath, []byte(html), 0o644); err != nil {
		return fmt.Errorf("unable to write HTML report %s: %w", opts.HTMLPath, err)
	}

	fmt.Fprintf(out, "Report written to %s\n", opts.HTMLPath)
	return nil
}

func writeAnalysisJSON(path string, runs []Run) error {
	dir := filepath.Dir(path)
	if dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("unable to create directory for %s: %w", path, err)
		}
	}

	data, err := json.MarshalIndent(runs, "", "  ")
	if err != nil {
		return fmt.Errorf("unable to marshal analysis JSON: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("unable to write analysis JSON %s: %w", path, err)
	}
	return nil
}

type reportData struct {
	Title       string
	GeneratedAt string
	RunsJSON    template.JS
}

// Generate renders a standalone HTML dashboard over the loaded runs.
func Generate(runs []Run) (string, error) {
	payload, err := json.Marshal(runs)
	if err != nil {
		return "", err
	}

	viewModel := reportData{
		Title:       "paragon: Accuracy Report",
		GeneratedAt: time.Now().UTC().Format(time.RFC3339),
		RunsJSON:    template.JS(payload),
	}

	var buf bytes.Buffer
	if err := accuracyReportTemplate.Execute(&buf, viewModel); err != nil {
		return "", err
	}
	return buf.String(), nil
}

var accuracyReportTemplate = template.Must(template.New("accuracy-report").Parse(accuracyReportTemplateHTML))

const accuracyReportTemplateHTML = `<!DOCTYPE html>
<html lang="en">
<head>
  <meta charset="UTF-8">
  <meta name="viewport" content="width=device-width, initial-scale=1">
  <title>{{ .Title }}</title>
  <link rel="stylesheet" href="https://cdn.jsdelivr.net/npm/bootstrap@5.3.3/dist/css/bootstrap.min.css">
  <style>
    :root {
      --primary: #334155;
      --secondary: #64748B;
      --light: #F1F5F9;
      --background: #FFFFFF;
      --text: #0F172A;
      --success: #10B981;
      --failure: #EF4444;
      --border: #E2E8F0;
    }
    body {
      background-color: var(--light);
      color: var(--text);
    }
    .navbar-dark {
      background-color: var(--primary) !important;
    }
    .card {
      border: 1px solid var(--border);
      background-color: var(--background);
    }
    .table thead th { cursor: pointer; }
    .table thead th {
      background-color: var(--light);
      color: var(--text);
      border-color: var(--border);
    }
    .sort-icon { font-size: 0.8rem; margin-left: 0.25rem; }
    .badge-pass { background-color: var(--success); }
    .badge-fail { background-color: var(--failure); }
    .stat-value { font-size: 2rem; font-weight: 700; }
    .stat-label { color: var(--secondary); }
  </style>
</head>
<body>
  <nav class="navbar navbar-dark mb-4">
    <div class="container-fluid">
      <span class="navbar-brand">{{ .Title }}</span>
      <span class="text-light small">generated {{ .GeneratedAt }}</span>
    </div>
  </nav>
  <div class="container">
    <div class="row mb-4" id="statCards"></div>
    <div class="card">
      <div class="card-body">
        <table class="table table-striped table-bordered" id="runsTable">
          <thead>
            <tr>
              <th data-key="model">Model<span class="sort-icon"></span></th>
              <th data-key="gpus">GPUs<span class="sort-icon"></span></th>
              <th data-key="total">Records<span class="sort-icon"></span></th>
              <th data-key="exactAccuracy">Exact<span class="sort-icon"></span></th>
              <th data-key="relaxedAccuracy">Relaxed<span class="sort-icon"></span></th>
              <th data-key="threshold">Threshold<span class="sort-icon"></span></th>
              <th data-key="passed">Verdict<span class="sort-icon"></span></th>
              <th data-key="timestamp">Run At<span class="sort-icon"></span></th>
            </tr>
          </thead>
          <tbody></tbody>
        </table>
      </div>
    </div>
  </div>
  <script>
    const runs = {{ .RunsJSON }};

    function pct(v) { return (v * 100).toFixed(1) + "%"; }

    function renderStats() {
      const passed = runs.filter(r => r.passed).length;
      const best = runs.reduce((acc, r) => Math.max(acc, r.relaxedAccuracy), 0);
      const cards = [
        { label: "Runs", value: runs.length },
        { label: "Passed", value: passed + " / " + runs.length },
        { label: "Best relaxed accuracy", value: pct(best) },
      ];
      document.getElementById("statCards").innerHTML = cards.map(c =>
        '<div class="col-md-4"><div class="card"><div class="card-body text-center">' +
        '<div class="stat-value">' + c.value + '</div>' +
        '<div class="stat-label">' + c.label + '</div>' +
        '</div></div></div>'
      ).join("");
    }

    function renderTable(rows) {
      const body = document.querySelector("#runsTable tbody");
      body.innerHTML = rows.map(r =>
        "<tr>" +
        "<td>" + r.model + "</td>" +
        "<td>" + (r.gpus || 1) + "</td>" +
        "<td>" + r.total + "</td>" +
        "<td>" + pct(r.exactAccuracy) + "</td>" +
        "<td>" + pct(r.relaxedAccuracy) + "</td>" +
        "<td>" + pct(r.threshold) + "</td>" +
        '<td><span class="badge ' + (r.passed ? "badge-pass" : "badge-fail") + '">' +
        (r.passed ? "PASS" : "FAIL") + "</span></td>" +
        "<td>" + r.timestamp + "</td>" +
        "</tr>"
      ).join("");
    }

    let sortKey = "model", sortAsc = true;
    function sortRuns() {
      const rows = runs.slice().sort((a, b) => {
        const x = a[sortKey], y = b[sortKey];
        if (x === y) return 0;
        return (x < y ? -1 : 1) * (sortAsc ? 1 : -1);
      });
      renderTable(rows);
    }

    document.querySelectorAll("#runsTable th").forEach(th => {
      th.addEventListener("click", () => {
        const key = th.dataset.key;
        sortAsc = key === sortKey ? !sortAsc : true;
        sortKey = key;
        sortRuns();
      });
    });

    renderStats();
    sortRuns();
  </script>
</body>
</html>
`
