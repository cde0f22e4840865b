package accuracy

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/mwiater/paragon/internal/appconfig"
)

func TestExactMatch(t *testing.T) {
	tests := []struct {
		predicted string
		expected  string
		want      bool
	}{
		{"paris", "paris", true},
		{"Paris", "paris", true},
		{" paris ", "paris", true},
		{"parisian", "paris", false},
		{"", "paris", false},
		{"paris", "", false},
	}
	for _, tt := range tests {
		if got := exactMatch(tt.predicted, tt.expected); got != tt.want {
			t.Errorf("exactMatch(%q, %q) = %t, want %t", tt.predicted, tt.expected, got, tt.want)
		}
	}
}

func TestRelaxedMatch(t *testing.T) {
	tests := []struct {
		predicted string
		expected  string
		want      bool
	}{
		{"paris", "paris", true},
		{"parisian", "paris", true},
		{"par", "paris", true},
		{"p", "paris", false},
		{"a", "a", true},
		{"london", "paris", false},
		{"", "paris", false},
	}
	for _, tt := range tests {
		if got := relaxedMatch(tt.predicted, tt.expected); got != tt.want {
			t.Errorf("relaxedMatch(%q, %q) = %t, want %t", tt.predicted, tt.expected, got, tt.want)
		}
	}
}

func TestFirstWord(t *testing.T) {
	if got := firstWord("  paris is lovely "); got != "paris" {
		t.Errorf("firstWord = %q", got)
	}
	if got := firstWord("   "); got != "" {
		t.Errorf("firstWord of blanks = %q", got)
	}
}

// scriptedCompleter responds from a fixed prompt-to-answer table.
type scriptedCompleter struct {
	answers map[string]string
	batches int
	params  appconfig.SamplingParams
}

func (c *scriptedCompleter) Complete(_ context.Context, prompts []string, params appconfig.SamplingParams) ([]string, error) {
	c.batches++
	c.params = params
	out := make([]string, len(prompts))
	for i, p := range prompts {
		out[i] = c.answers[p]
	}
	return out, nil
}

type failingCompleter struct{}

func (failingCompleter) Complete(context.Context, []string, appconfig.SamplingParams) ([]string, error) {
	return nil, fmt.Errorf("connection refused")
}

func evalTestSet() *TestSet {
	return &TestSet{Records: []Record{
		{Text: "the capital of france is", LastWord: "paris"},
		{Text: "the largest animal is the", LastWord: "whale"},
		{Text: "two plus two equals", LastWord: "four"},
		{Text: "the sky is", LastWord: "blue"},
	}}
}

func TestEvaluate(t *testing.T) {
	completer := &scriptedCompleter{answers: map[string]string{
		"the capital of france is":  "paris",
		"the largest animal is the": "whales surface often",
		"two plus two equals":       "five",
		"the sky is":                "blue",
	}}

	report, err := Evaluate(context.Background(), completer, evalTestSet(), Options{Model: "falcon-tiny"})
	if err != nil {
		t.Fatalf("Evaluate error: %v", err)
	}
	if report.Total != 4 {
		t.Errorf("Total = %d, want 4", report.Total)
	}
	if report.ExactMatches != 2 {
		t.Errorf("ExactMatches = %d, want 2", report.ExactMatches)
	}
	if report.RelaxedMatches != 3 {
		t.Errorf("RelaxedMatches = %d, want 3", report.RelaxedMatches)
	}
	if report.ExactAccuracy != 0.5 {
		t.Errorf("ExactAccuracy = %g, want 0.5", report.ExactAccuracy)
	}
	if report.RelaxedAccuracy != 0.75 {
		t.Errorf("RelaxedAccuracy = %g, want 0.75", report.RelaxedAccuracy)
	}
	if !report.Passed {
		t.Error("expected the run to pass the default threshold")
	}
	if len(report.Details) != 4 {
		t.Fatalf("expected 4 details, got %d", len(report.Details))
	}
	if report.Details[1].Predicted != "whales" {
		t.Errorf("Predicted = %q, want whales", report.Details[1].Predicted)
	}
}

func TestEvaluateAppliesAccuracyProfile(t *testing.T) {
	completer := &scriptedCompleter{answers: map[string]string{}}
	if _, err := Evaluate(context.Background(), completer, evalTestSet(), Options{}); err != nil {
		t.Fatalf("Evaluate error: %v", err)
	}
	if completer.params.Temperature == nil || *completer.params.Temperature != 0.1 {
		t.Errorf("expected the accuracy profile temperature, got %v", completer.params.Temperature)
	}
	if completer.params.MaxNewTokens == nil || *completer.params.MaxNewTokens != 1 {
		t.Errorf("expected a single new token, got %v", completer.params.MaxNewTokens)
	}
}

func TestEvaluateBatches(t *testing.T) {
	completer := &scriptedCompleter{answers: map[string]string{}}
	if _, err := Evaluate(context.Background(), completer, evalTestSet(), Options{BatchSize: 3}); err != nil {
		t.Fatalf("Evaluate error: %v", err)
	}
	if completer.batches != 2 {
		t.Fatalf("expected 2 batches for 4 records at size 3, got %d", completer.batches)
	}
}

func TestEvaluateFailsBelowThreshold(t *testing.T) {
	completer := &scriptedCompleter{answers: map[string]string{
		"the capital of france is": "paris",
	}}
	report, err := Evaluate(context.Background(), completer, evalTestSet(), Options{})
	if err != nil {
		t.Fatalf("Evaluate error: %v", err)
	}
	if report.Passed {
		t.Error("expected one of four to fail the 0.5 threshold")
	}
}

func TestEvaluateCompleterError(t *testing.T) {
	_, err := Evaluate(context.Background(), failingCompleter{}, evalTestSet(), Options{})
	if err == nil {
		t.Fatal("expected error from failing completer")
	}
	if !strings.Contains(err.Error(), "connection refused") {
		t.Errorf("expected wrapped completer error, got %v", err)
	}
}

func TestEvaluateWritesResults(t *testing.T) {
	dir := t.TempDir()
	completer := &scriptedCompleter{answers: map[string]string{
		"the capital of france is": "paris",
	}}

	report, err := Evaluate(context.Background(), completer, evalTestSet(), Options{
		Model:      "falcon-tiny",
		GPUs:       2,
		ResultsDir: dir,
	})
	if err != nil {
		t.Fatalf("Evaluate error: %v", err)
	}

	jsonlPath := filepath.Join(dir, "2gpu_falcon-tiny.jsonl")
	file, err := os.Open(jsonlPath)
	if err != nil {
		t.Fatalf("open jsonl: %v", err)
	}
	defer file.Close()

	lines := 0
	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		var detail Detail
		if err := json.Unmarshal(scanner.Bytes(), &detail); err != nil {
			t.Fatalf("parse jsonl line: %v", err)
		}
		lines++
	}
	if lines != 4 {
		t.Errorf("expected 4 jsonl lines, got %d", lines)
	}

	csvData, err := os.ReadFile(filepath.Join(dir, "2gpu_falcon-tiny.csv"))
	if err != nil {
		t.Fatalf("read csv: %v", err)
	}
	if !strings.HasPrefix(string(csvData), "index,prompt,expected,predicted,exact,relaxed") {
		t.Errorf("unexpected csv header: %q", strings.SplitN(string(csvData), "\n", 2)[0])
	}

	summaryData, err := os.ReadFile(filepath.Join(dir, "2gpu_falcon-tiny_summary.json"))
	if err != nil {
		t.Fatalf("read summary: %v", err)
	}
	var summary Report
	if err := json.Unmarshal(summaryData, &summary); err != nil {
		t.Fatalf("parse summary: %v", err)
	}
	if summary.RelaxedAccuracy != report.RelaxedAccuracy {
		t.Errorf("summary accuracy %g does not match report %g", summary.RelaxedAccuracy, report.RelaxedAccuracy)
	}
}

func TestEvaluateOnResult(t *testing.T) {
	completer := &scriptedCompleter{answers: map[string]string{}}
	var seen []int
	_, err := Evaluate(context.Background(), completer, evalTestSet(), Options{
		OnResult: func(d Detail) { seen = append(seen, d.Index) },
	})
	if err != nil {
		t.Fatalf("Evaluate error: %v", err)
	}
	if len(seen) != 4 || seen[0] != 0 || seen[3] != 3 {
		t.Fatalf("unexpected callback indexes: %v", seen)
	}
}

func TestSlugify(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"falcon-7b", "falcon-7b"},
		{"Falcon 7B:instruct", "falcon-7b_instruct"},
		{"a//b", "a-b"},
	}
	for _, tt := range tests {
		if got := slugify(tt.in); got != tt.want {
			t.Errorf("slugify(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
