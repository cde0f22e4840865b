// internal/verify/suite.go
package verify

import (
	"context"
	"fmt"
	"log"

	"github.com/charmbracelet/lipgloss"

	"github.com/mwiater/paragon/internal/accuracy"
	"github.com/mwiater/paragon/internal/catalog"
)

// RunCatalog verifies one cataloged model at one GPU count, resolving the
// checkpoint, adapter paths, and per-model limits from the catalog entry.
// Hosts with fewer GPUs than requested, and requests below the model's GPU
// floor, skip with (nil, nil). Asking for an adapter the entry does not
// ship is an error.
func RunCatalog(ctx context.Context, cat *catalog.Catalog, name string, gpus int, opts Options) (*RunResult, error) {
	if cat == nil {
		return nil, fmt.Errorf("verify: no catalog loaded")
	}

	available, err := gpuCount()
	if err != nil {
		return nil, err
	}
	if gpus > available {
		log.Print(skippedNote(fmt.Sprintf("Skipping %s, %d GPUs requested but %d available", name, gpus, available)))
		return nil, nil
	}

	entry, err := cat.Lookup(name)
	if err != nil {
		return nil, err
	}
	if gpus < entry.GPUFloor() {
		log.Print(skippedNote(fmt.Sprintf("Skipping %s, minimum GPUs for this model is %d", name, entry.GPUFloor())))
		return nil, nil
	}

	if opts.PTuning {
		if opts.PTuningCheckpoint, err = entry.PTuningCheckpoint(); err != nil {
			return nil, err
		}
	}
	if opts.LoRA {
		if opts.LoRACheckpoint, err = entry.LoRACheckpoint(); err != nil {
			return nil, err
		}
	}

	opts.Model = entry.Name
	opts.ModelType = entry.Family
	opts.CheckpointDir = entry.Checkpoint
	opts.GPUs = gpus
	if len(entry.Prompts) > 0 {
		opts.PromptTemplates = entry.Prompts
	}
	if entry.MaxBatchSize > 0 {
		opts.MaxBatchSize = entry.MaxBatchSize
	}
	if entry.MaxOutputTokens > 0 {
		opts.MaxOutputTokens = entry.MaxOutputTokens
	}
	// Cataloged models accept longer contexts than the ad-hoc default.
	if opts.MaxInputTokens <= 0 {
		opts.MaxInputTokens = 512
	}

	return Run(ctx, opts)
}

// SuiteOptions configures a sweep over GPU counts for one model.
type SuiteOptions struct {
	Run Options

	// Catalog and FromCatalog route each run through the catalog entry
	// named by Run.Model instead of the explicit paths in Run.
	Catalog     *catalog.Catalog
	FromCatalog bool

	MinGPUs int
	MaxGPUs int
}

// RunSuite verifies a model across GPU counts, doubling from the minimum
// up to the maximum, then prints the summary and the verdict. The suite
// fails, and returns an error, when any scored run's relaxed accuracy
// lands below the threshold. Skipped runs contribute no summary row and
// no verdict.
func RunSuite(ctx context.Context, opts SuiteOptions) ([]*RunResult, error) {
	if opts.FromCatalog && opts.Catalog == nil {
		return nil, fmt.Errorf("verify: no catalog loaded")
	}

	minGPUs := opts.MinGPUs
	if minGPUs <= 0 {
		minGPUs = 1
	}
	maxGPUs := opts.MaxGPUs
	if maxGPUs < minGPUs {
		maxGPUs = minGPUs
	}
	threshold := opts.Run.Threshold
	if threshold <= 0 {
		threshold = accuracy.DefaultThreshold
	}

	total := 0
	for n := minGPUs; n <= maxGPUs; n *= 2 {
		total++
	}

	var results []*RunResult
	iteration := 0
	for n := minGPUs; n <= maxGPUs; n *= 2 {
		iteration++
		fmt.Printf("Iteration: %d/%d, model %s on %d GPU(s)\n", iteration, total, opts.Run.Model, n)

		var (
			result *RunResult
			err    error
		)
		if opts.FromCatalog {
			result, err = RunCatalog(ctx, opts.Catalog, opts.Run.Model, n, opts.Run)
		} else {
			runOpts := opts.Run
			runOpts.GPUs = n
			result, err = Run(ctx, runOpts)
		}
		if err != nil {
			return results, err
		}
		if result != nil {
			results = append(results, result)
		}
	}

	failed := printSummary(results, threshold)
	verdict := passVerdict("PASS")
	if failed {
		verdict = failVerdict("FAIL")
	}
	fmt.Println("TEST: " + verdict)
	if failed {
		return results, fmt.Errorf("model accuracy is below %.2f", threshold)
	}
	return results, nil
}

// printSummary renders one row per completed run and reports whether any
// scored row fell below the relaxed accuracy threshold.
func printSummary(results []*RunResult, threshold float64) bool {
	headerStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("255"))
	rowStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("86"))
	missStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("9"))

	fmt.Println(headerStyle.Render("Verification summary:"))
	failed := false
	for _, result := range results {
		if result == nil {
			continue
		}
		if result.Accuracy == nil {
			line := fmt.Sprintf("GPUs: %d, TTFT: %s, tokens/s: %.1f", result.GPUs, humanDuration(result.TTFT), result.TokensPerSec)
			fmt.Println("  >>> " + rowStyle.Render(line))
			continue
		}
		line := fmt.Sprintf("GPUs: %d, accuracy: %.4f, relaxed accuracy: %.4f",
			result.GPUs, result.Accuracy.ExactAccuracy, result.Accuracy.RelaxedAccuracy)
		if result.DeployedAccuracy != nil {
			line += fmt.Sprintf(", deployed accuracy: %.4f, deployed relaxed accuracy: %.4f",
				result.DeployedAccuracy.ExactAccuracy, result.DeployedAccuracy.RelaxedAccuracy)
		}
		style := rowStyle
		if result.Accuracy.RelaxedAccuracy < threshold {
			failed = true
			style = missStyle
		}
		if result.DeployedAccuracy != nil && result.DeployedAccuracy.RelaxedAccuracy < threshold {
			failed = true
			style = missStyle
		}
		fmt.Println("  >>> " + style.Render(line))
	}
	fmt.Println()
	return failed
}
