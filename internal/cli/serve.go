// internal/cli/serve.go
package paragon

import "github.com/spf13/cobra"

// serveCmd represents the serve command.
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve an exported engine over the OpenAI-style HTTP API",
	Long: `Serve loads an exported engine build and keeps it behind the HTTP front end
until interrupted. Clients reach it through /v1/completions, /v1/chat/completions,
the /v1/stream websocket, and the /v1/health and /v1/models endpoints.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runServe(cmd)
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().StringP("model-name", "m", "", "model the engine was exported from")
	serveCmd.Flags().String("engine-dir", "", "engine build directory (defaults under the configured engine root)")
	serveCmd.Flags().String("addr", "", "host:port to bind (defaults to the configured deploy address)")
	_ = serveCmd.MarkFlagRequired("model-name")
}
