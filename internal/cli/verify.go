// internal/cli/verify.go
package paragon

import (
	"github.com/spf13/cobra"

	"github.com/mwiater/paragon/internal/accuracy"
)

// verifyCmd represents the verify command.
var verifyCmd = &cobra.Command{
	Use:   "verify",
	Short: "Export a checkpoint, query it back, and verify its predictions",
	Long: `Verify exports a model checkpoint into an engine build, generates from the
smoke prompts, and reports a PASS/FAIL verdict. With --run-accuracy the engine's
next-word predictions are scored against a last-word test set, and with
--test-deployment the engine is additionally served over HTTP and queried back
through the OpenAI-style API. The run repeats with the GPU count doubling from
--min-gpus up to --max-gpus.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runVerify(cmd)
	},
}

func init() {
	rootCmd.AddCommand(verifyCmd)

	verifyCmd.Flags().StringP("model-name", "m", "", "model to verify")
	verifyCmd.Flags().Bool("existing-test-models", false, "resolve the model through the catalog instead of explicit paths")
	verifyCmd.Flags().String("model-type", "", "expected layer family of the checkpoint (e.g. falcon)")
	verifyCmd.Flags().Int("min-gpus", 1, "GPU count the sweep starts at")
	verifyCmd.Flags().Int("max-gpus", 0, "GPU count the sweep doubles up to (defaults to --min-gpus)")
	verifyCmd.Flags().String("checkpoint-dir", "", "checkpoint directory (defaults under the configured checkpoint root)")
	verifyCmd.Flags().String("engine-dir", "", "engine build directory (defaults under the configured engine root)")
	verifyCmd.Flags().Int("tp-size", 0, "tensor parallel size (defaults to the GPU count)")
	verifyCmd.Flags().Int("pp-size", 0, "pipeline parallel size")
	verifyCmd.Flags().Int("max-batch-size", 8, "largest prompt batch the engine accepts")
	verifyCmd.Flags().Int("max-input-tokens", 256, "longest prompt the engine accepts")
	verifyCmd.Flags().Int("max-output-tokens", 128, "generation budget per prompt")
	verifyCmd.Flags().Bool("ptuning", false, "bake a prompt table into the engine")
	verifyCmd.Flags().String("ptuning-checkpoint", "", "prompt table JSON (catalog runs take it from the entry)")
	verifyCmd.Flags().Bool("lora", false, "attach a LoRA adapter to the engine")
	verifyCmd.Flags().String("lora-checkpoint", "", "LoRA adapter JSON (catalog runs take it from the entry)")
	verifyCmd.Flags().StringArray("prompt", nil, "smoke prompt template (repeatable)")
	verifyCmd.Flags().StringArray("stop-word", nil, "word that ends a generation (repeatable)")
	verifyCmd.Flags().Int("top-k", 1, "sample from the k most likely tokens")
	verifyCmd.Flags().Float64("top-p", 0.0, "nucleus sampling probability mass")
	verifyCmd.Flags().Float64("temperature", 1.0, "sampling temperature")
	verifyCmd.Flags().Bool("run-accuracy", false, "score next-word predictions against the test set")
	verifyCmd.Flags().String("test-data-path", "", "last-word test set JSON (defaults to the configured fixture)")
	verifyCmd.Flags().Float64("accuracy-threshold", accuracy.DefaultThreshold, "relaxed accuracy below this fails the run")
	verifyCmd.Flags().Bool("test-deployment", false, "serve the engine over HTTP and query it back")
	verifyCmd.Flags().Bool("streaming", false, "stream tokens instead of waiting for full completions")
	verifyCmd.Flags().Bool("watch", false, "follow the run in a live terminal view")
	_ = verifyCmd.MarkFlagRequired("model-name")
}
