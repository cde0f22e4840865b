// internal/cli/export.go
package paragon

import "github.com/spf13/cobra"

// exportCmd represents the export command.
var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export a model checkpoint into an engine build",
	Long: `Export compiles a converted checkpoint into the sharded engine layout the
serving front end loads: the vocabulary, one prediction table per tensor and
pipeline parallel rank, and a manifest. A prompt table or LoRA adapter given
here is baked into the build.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runExport(cmd)
	},
}

func init() {
	rootCmd.AddCommand(exportCmd)

	exportCmd.Flags().StringP("model-name", "m", "", "model to export")
	exportCmd.Flags().String("checkpoint-dir", "", "checkpoint directory (defaults under the configured checkpoint root)")
	exportCmd.Flags().String("engine-dir", "", "engine build directory (defaults under the configured engine root)")
	exportCmd.Flags().IntP("gpus", "g", 1, "GPU count the build targets")
	exportCmd.Flags().Int("tp-size", 0, "tensor parallel size (defaults to --gpus)")
	exportCmd.Flags().Int("pp-size", 0, "pipeline parallel size")
	exportCmd.Flags().Int("max-batch-size", 8, "largest prompt batch the engine accepts")
	exportCmd.Flags().Int("max-input-tokens", 256, "longest prompt the engine accepts")
	exportCmd.Flags().Int("max-output-tokens", 128, "generation budget per prompt")
	exportCmd.Flags().String("ptuning-checkpoint", "", "prompt table JSON to bake into the build")
	exportCmd.Flags().String("lora-checkpoint", "", "LoRA adapter JSON to bake into the build")
	_ = exportCmd.MarkFlagRequired("model-name")
}
