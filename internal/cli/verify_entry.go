// internal/cli/verify_entry.go
package paragon

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/mwiater/paragon/internal/accuracy"
	"github.com/mwiater/paragon/internal/appconfig"
	"github.com/mwiater/paragon/internal/catalog"
	"github.com/mwiater/paragon/internal/gpu"
	"github.com/mwiater/paragon/internal/tui"
	"github.com/mwiater/paragon/internal/verify"
)

// runVerifySuite is swapped out in tests.
var runVerifySuite = verify.RunSuite

func runVerify(cmd *cobra.Command) error {
	cfg := GetConfig()
	if cfg != nil && cfg.GPUCount > 0 {
		_ = os.Setenv(gpu.EnvGPUCount, strconv.Itoa(cfg.GPUCount))
	}

	model, _ := cmd.Flags().GetString("model-name")
	checkpointDir, _ := cmd.Flags().GetString("checkpoint-dir")
	engineDir, _ := cmd.Flags().GetString("engine-dir")
	testData, _ := cmd.Flags().GetString("test-data-path")
	runAccuracy, _ := cmd.Flags().GetBool("run-accuracy")
	if cfg != nil {
		if checkpointDir == "" {
			checkpointDir = filepath.Join(cfg.CheckpointRoot(), model)
		}
		if engineDir == "" {
			engineDir = filepath.Join(cfg.EngineRoot(), model)
		}
		if testData == "" && runAccuracy {
			testData = cfg.TestData()
		}
	}

	opts := verify.Options{
		Model:         model,
		CheckpointDir: checkpointDir,
		EngineDir:     engineDir,
		Sampling:      samplingFromFlags(cmd, cfg),
		RunAccuracy:   runAccuracy,
		TestDataPath:  testData,
		ResultsDir:    viper.GetString("resultsDir"),
		Debug:         DebugEnabled(),
	}
	opts.ModelType, _ = cmd.Flags().GetString("model-type")
	opts.TPSize, _ = cmd.Flags().GetInt("tp-size")
	opts.PPSize, _ = cmd.Flags().GetInt("pp-size")
	opts.MaxBatchSize, _ = cmd.Flags().GetInt("max-batch-size")
	opts.MaxInputTokens, _ = cmd.Flags().GetInt("max-input-tokens")
	opts.MaxOutputTokens, _ = cmd.Flags().GetInt("max-output-tokens")
	opts.PTuning, _ = cmd.Flags().GetBool("ptuning")
	opts.PTuningCheckpoint, _ = cmd.Flags().GetString("ptuning-checkpoint")
	opts.LoRA, _ = cmd.Flags().GetBool("lora")
	opts.LoRACheckpoint, _ = cmd.Flags().GetString("lora-checkpoint")
	opts.PromptTemplates, _ = cmd.Flags().GetStringArray("prompt")
	opts.StopWords, _ = cmd.Flags().GetStringArray("stop-word")
	opts.Threshold, _ = cmd.Flags().GetFloat64("accuracy-threshold")
	opts.TestDeployment, _ = cmd.Flags().GetBool("test-deployment")
	opts.Streaming, _ = cmd.Flags().GetBool("streaming")
	// The engine caps batches at MaxBatchSize, so accuracy scoring batches
	// at the same size.
	opts.BatchSize = opts.MaxBatchSize
	if cfg != nil {
		opts.DeployAddr = cfg.DeployAddress()
		if opts.ResultsDir == "" {
			opts.ResultsDir = cfg.ResultsRoot()
		}
	}

	suite := verify.SuiteOptions{Run: opts}
	suite.MinGPUs, _ = cmd.Flags().GetInt("min-gpus")
	suite.MaxGPUs, _ = cmd.Flags().GetInt("max-gpus")
	if fromCatalog, _ := cmd.Flags().GetBool("existing-test-models"); fromCatalog {
		path := viper.GetString("catalog")
		if path == "" && cfg != nil {
			path = cfg.CatalogFile()
		}
		cat, err := catalog.Load(path)
		if err != nil {
			return err
		}
		suite.Catalog = cat
		suite.FromCatalog = true
	}

	if watch, _ := cmd.Flags().GetBool("watch"); watch {
		return tui.Watch(cmd.Context(), "verify "+model, func(ctx context.Context, feed *tui.Feed) error {
			run := suite
			run.Run.OnStage = feed.Stage
			run.Run.OnDetail = feed.Detail
			results, err := runVerifySuite(ctx, run)
			for _, result := range results {
				if result.Accuracy != nil {
					feed.Report(result.Accuracy)
				}
			}
			return err
		})
	}

	if opts.RunAccuracy {
		bar := progressbar.NewOptions(-1,
			progressbar.OptionSetWriter(os.Stderr),
			progressbar.OptionSetDescription("scoring"),
			progressbar.OptionSetWidth(40),
			progressbar.OptionShowCount(),
			progressbar.OptionShowIts(),
		)
		suite.Run.OnDetail = func(accuracy.Detail) { _ = bar.Add(1) }
		defer func() {
			_ = bar.Finish()
			fmt.Fprintln(os.Stderr)
		}()
	}

	_, err := runVerifySuite(cmd.Context(), suite)
	return err
}

// samplingFromFlags resolves sampling parameters for a command: explicit
// flags override the configured profile.
func samplingFromFlags(cmd *cobra.Command, cfg *appconfig.Config) appconfig.SamplingParams {
	var params appconfig.SamplingParams
	if cfg != nil {
		params = cfg.ResolvedSampling()
	}
	if cmd.Flags().Changed("top-k") {
		v, _ := cmd.Flags().GetInt("top-k")
		params.TopK = &v
	}
	if cmd.Flags().Changed("top-p") {
		v, _ := cmd.Flags().GetFloat64("top-p")
		params.TopP = &v
	}
	if cmd.Flags().Changed("temperature") {
		v, _ := cmd.Flags().GetFloat64("temperature")
		params.Temperature = &v
	}
	return params
}
