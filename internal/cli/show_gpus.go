// internal/cli/show_gpus.go
package paragon

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/mwiater/paragon/internal/gpu"
)

// showGPUsCmd reports the GPU count verification sweeps will see.
var showGPUsCmd = &cobra.Command{
	Use:   "gpus",
	Short: "Show the detected GPU count",
	RunE: func(cmd *cobra.Command, args []string) error {
		count, err := gpu.Count()
		if err != nil {
			return err
		}
		if pinned := os.Getenv(gpu.EnvGPUCount); pinned != "" {
			fmt.Printf("GPUs: %d (pinned by %s)\n", count, gpu.EnvGPUCount)
			return nil
		}
		fmt.Printf("GPUs: %d\n", count)
		return nil
	},
}

func init() {
	showCmd.AddCommand(showGPUsCmd)
}
