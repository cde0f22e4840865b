// internal/accuracy/accuracy.go
package accuracy

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/mwiater/paragon/internal/appconfig"
	"github.com/mwiater/paragon/internal/util"
)

const (
	// DefaultThreshold is the relaxed accuracy a run must reach to pass.
	DefaultThreshold = 0.5
	// DefaultBatchSize matches the engine's default batch limit.
	DefaultBatchSize = 8
)

// Completer produces next-word continuations for a batch of prompts.
// Both the in-process engine and the HTTP query client satisfy it.
type Completer interface {
	Complete(ctx context.Context, prompts []string, params appconfig.SamplingParams) ([]string, error)
}

// Options tunes an evaluation run. Zero values fall back to the accuracy
// sampling profile, the default batch size, and the default threshold.
type Options struct {
	Model      string
	Params     appconfig.SamplingParams
	BatchSize  int
	Threshold  float64
	GPUs       int
	ResultsDir string
	OnResult   func(Detail)
}

// Evaluate runs every record in the test set against the completer and
// scores the predictions. Each prediction is compared to the expected last
// word both exactly and with the relaxed first-word rule. When a results
// directory is configured, per-record details land in a jsonl file and a
// CSV, and the summary in a JSON file next to them.
func Evaluate(ctx context.Context, completer Completer, set *TestSet, opts Options) (*Report, error) {
	if completer == nil {
		return nil, fmt.Errorf("accuracy: no completer")
	}
	if set == nil || len(set.Records) == 0 {
		return nil, fmt.Errorf("accuracy: test set is empty")
	}

	params := appconfig.MergeSampling(appconfig.DefaultAccuracyParams(), opts.Params)
	batchSize := opts.BatchSize
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}
	threshold := opts.Threshold
	if threshold <= 0 {
		threshold = DefaultThreshold
	}

	log.Printf("Scoring %d prompts for model %s...", len(set.Records), opts.Model)

	report := &Report{
		Model:     opts.Model,
		Timestamp: time.Now().Format(time.RFC3339),
		Total:     len(set.Records),
		Threshold: threshold,
		GPUs:      opts.GPUs,
	}

	for start := 0; start < len(set.Records); start += batchSize {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		end := util.Min(start+batchSize, len(set.Records))
		batch := set.Records[start:end]

		prompts := make([]string, len(batch))
		for i, rec := range batch {
			prompts[i] = rec.Text
		}

		responses, err := completer.Complete(ctx, prompts, params)
		if err != nil {
			return nil, fmt.Errorf("accuracy: completing batch starting at %d: %w", start, err)
		}
		if len(responses) != len(prompts) {
			return nil, fmt.Errorf("accuracy: got %d responses for %d prompts", len(responses), len(prompts))
		}

		for i, rec := range batch {
			predicted := firstWord(responses[i])
			exact := exactMatch(predicted, rec.LastWord)
			relaxed := relaxedMatch(predicted, rec.LastWord)
			report.ExactMatches += util.BoolToInt(exact)
			report.RelaxedMatches += util.BoolToInt(relaxed)

			detail := Detail{
				Timestamp: time.Now().Format(time.RFC3339),
				Model:     opts.Model,
				Index:     start + i,
				Prompt:    rec.Text,
				Expected:  rec.LastWord,
				Response:  responses[i],
				Predicted: predicted,
				Exact:     exact,
				Relaxed:   relaxed,
				GPUs:      opts.GPUs,
			}
			report.Details = append(report.Details, detail)
			if opts.OnResult != nil {
				opts.OnResult(detail)
			}
		}
	}

	report.ExactAccuracy = float64(report.ExactMatches) / float64(report.Total)
	report.RelaxedAccuracy = float64(report.RelaxedMatches) / float64(report.Total)
	report.Passed = report.RelaxedAccuracy >= threshold

	if opts.ResultsDir != "" {
		if err := persistReport(opts.ResultsDir, report); err != nil {
			return nil, err
		}
	}

	return report, nil
}

// persistReport writes the per-record jsonl, the CSV, and the summary JSON.
func persistReport(dir string, report *Report) error {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("error creating results directory: %w", err)
	}

	base := resultFileBase(report.GPUs, report.Model)

	if err := appendDetails(filepath.Join(dir, base+".jsonl"), report.Details); err != nil {
		return err
	}
	if err := writeDetailCSV(filepath.Join(dir, base+".csv"), report.Details); err != nil {
		return err
	}

	summary, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return fmt.Errorf("error encoding summary: %w", err)
	}
	if err := util.WriteFile(filepath.Join(dir, base+"_summary.json"), summary); err != nil {
		return fmt.Errorf("error writing summary: %w", err)
	}
	return nil
}

func appendDetails(path string, details []Detail) error {
	file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return fmt.Errorf("error opening results file: %w", err)
	}
	defer file.Close()

	encoder := json.NewEncoder(file)
	for _, detail := range details {
		if err := encoder.Encode(detail); err != nil {
			return fmt.Errorf("error writing results: %w", err)
		}
	}
	return nil
}

func writeDetailCSV(path string, details []Detail) error {
	var b strings.Builder
	w := csv.NewWriter(&b)
	if err := w.Write([]string{"index", "prompt", "expected", "predicted", "exact", "relaxed"}); err != nil {
		return fmt.Errorf("error writing csv header: %w", err)
	}
	for _, detail := range details {
		row := []string{
			strconv.Itoa(detail.Index),
			detail.Prompt,
			detail.Expected,
			detail.Predicted,
			strconv.FormatBool(detail.Exact),
			strconv.FormatBool(detail.Relaxed),
		}
		if err := w.Write(row); err != nil {
			return fmt.Errorf("error writing csv row: %w", err)
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return fmt.Errorf("error flushing csv: %w", err)
	}
	return util.WriteFile(path, []byte(b.String()))
}

func resultFileBase(gpus int, model string) string {
	slug := slugify(model)
	if slug == "" {
		slug = "model"
	}
	if gpus > 0 {
		return fmt.Sprintf("%dgpu_%s", gpus, slug)
	}
	return slug
}

// firstWord extracts the first whitespace-separated word of a response.
func firstWord(response string) string {
	fields := strings.Fields(response)
	if len(fields) == 0 {
		return ""
	}
	return fields[0]
}

func normalizeWord(word string) string {
	return strings.ToLower(strings.TrimSpace(word))
}

// exactMatch reports whether the prediction equals the expected word after
// trimming and lowercasing.
func exactMatch(predicted, expected string) bool {
	p, e := normalizeWord(predicted), normalizeWord(expected)
	return p != "" && p == e
}

// relaxedMatch also accepts a prediction that shares a prefix with the
// expected word in either direction. A single-character prediction never
// counts against a longer word; the tokenizer produces those for
// punctuation, not truncated words.
func relaxedMatch(predicted, expected string) bool {
	p, e := normalizeWord(predicted), normalizeWord(expected)
	if p == "" || e == "" {
		return false
	}
	if p == e {
		return true
	}
	if len(p) == 1 && len(e) > 1 {
		return false
	}
	return strings.HasPrefix(e, p) || strings.HasPrefix(p, e)
}

// slugify converts a string into a filesystem-friendly slug.
func slugify(s string) string {
	s = strings.ToLower(s)
	s = strings.ReplaceAll(s, ":", "_")
	re := regexp.MustCompile(`[^a-z0-9_]+`)
	s = re.ReplaceAllString(s, "-")
	s = regexp.MustCompile(`-+`).ReplaceAllString(s, "-")
	s = strings.Trim(s, "-_")
	return s
}
