package paragon

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/fatih/color"
	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"

	"github.com/mwiater/paragon/internal/engine"
	"github.com/mwiater/paragon/internal/export"
	"github.com/mwiater/paragon/internal/util"
	"github.com/mwiater/paragon/internal/verify"
)

// exportEngine and smokeExported are swapped out in tests.
var (
	exportEngine  = export.Export
	smokeExported = smokeTest
)

func runExport(cmd *cobra.Command) error {
	cfg := GetConfig()

	model, _ := cmd.Flags().GetString("model-name")
	checkpointDir, _ := cmd.Flags().GetString("checkpoint-dir")
	engineDir, _ := cmd.Flags().GetString("engine-dir")
	if cfg != nil {
		if checkpointDir == "" {
			checkpointDir = filepath.Join(cfg.CheckpointRoot(), model)
		}
		if engineDir == "" {
			engineDir = filepath.Join(cfg.EngineRoot(), model)
		}
	}

	opts := export.Options{
		ModelName:     model,
		CheckpointDir: checkpointDir,
		EngineDir:     engineDir,
	}
	opts.GPUs, _ = cmd.Flags().GetInt("gpus")
	opts.TPSize, _ = cmd.Flags().GetInt("tp-size")
	opts.PPSize, _ = cmd.Flags().GetInt("pp-size")
	opts.MaxBatchSize, _ = cmd.Flags().GetInt("max-batch-size")
	opts.MaxInputTokens, _ = cmd.Flags().GetInt("max-input-tokens")
	opts.MaxOutputTokens, _ = cmd.Flags().GetInt("max-output-tokens")
	opts.PromptTablePath, _ = cmd.Flags().GetString("ptuning-checkpoint")
	opts.LoRAPath, _ = cmd.Flags().GetString("lora-checkpoint")

	// One bar per stage; shard writes are the only stage with more than
	// one step.
	var bar *progressbar.ProgressBar
	opts.Progress = func(stage string, current, total int) {
		if current == 0 {
			bar = progressbar.NewOptions(total,
				progressbar.OptionSetWriter(os.Stderr),
				progressbar.OptionSetDescription(stage),
				progressbar.OptionSetWidth(40),
				progressbar.OptionShowCount(),
				progressbar.OptionOnCompletion(func() { fmt.Fprintln(os.Stderr) }),
			)
		}
		_ = bar.Set(current + 1)
	}

	result, err := exportEngine(cmd.Context(), opts)
	if err != nil {
		return err
	}

	done := color.New(color.FgGreen).SprintFunc()
	fmt.Printf("%s %s: %d shard(s), %s on disk, took %s\n",
		done("Exported"), result.Dir, len(result.Manifest.Shards), util.HumanBytes(result.TotalBytes), result.Duration.Round(time.Millisecond))

	return smokeExported(cmd, result.Dir)
}

// smokeTest generates the default prompt templates against a freshly
// exported engine so a broken build surfaces here rather than at serve
// time.
func smokeTest(cmd *cobra.Command, dir string) error {
	eng, err := engine.Load(dir)
	if err != nil {
		return err
	}
	defer eng.Close()

	prompts := verify.DefaultPromptTemplates()
	res, err := eng.Generate(cmd.Context(), engine.Request{Prompts: prompts})
	if err != nil {
		return fmt.Errorf("smoke generation failed: %w", err)
	}
	for i, out := range res.Outputs {
		fmt.Printf("%s %s\n", promptLabel(prompts[i]), out)
	}
	return nil
}
