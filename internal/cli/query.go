// internal/cli/query.go
package paragon

import "github.com/spf13/cobra"

// queryCmd represents the query command.
var queryCmd = &cobra.Command{
	Use:   "query",
	Short: "Query a deployed model over the OpenAI-style API",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runQuery(cmd)
	},
}

func init() {
	rootCmd.AddCommand(queryCmd)

	queryCmd.Flags().StringP("model-name", "m", "", "deployed model to query")
	queryCmd.Flags().String("url", "", "deployment base URL (defaults to the configured deploy address)")
	queryCmd.Flags().StringArrayP("prompt", "p", nil, "prompt to complete (repeatable)")
	queryCmd.Flags().Bool("chat", false, "send the prompt through the chat endpoint")
	queryCmd.Flags().Bool("stream", false, "stream tokens over the websocket as they generate")
	queryCmd.Flags().Int("top-k", 1, "sample from the k most likely tokens")
	queryCmd.Flags().Float64("top-p", 0.0, "nucleus sampling probability mass")
	queryCmd.Flags().Float64("temperature", 1.0, "sampling temperature")
	queryCmd.Flags().Int("max-new-tokens", 0, "generation budget per prompt (0 uses the engine default)")
	queryCmd.Flags().Duration("wait", 0, "wait up to this long for the deployment to become ready")
	_ = queryCmd.MarkFlagRequired("model-name")
}
