// internal/cli/models.go
package paragon

import "github.com/spf13/cobra"

// modelsCmd represents the models command.
var modelsCmd = &cobra.Command{
	Use:   "models",
	Short: "List the models in the catalog",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runModels(cmd)
	},
}

func init() {
	rootCmd.AddCommand(modelsCmd)
}
