// internal/cli/report.go
package paragon

import "github.com/spf13/cobra"

// reportCmd represents the report command.
var reportCmd = &cobra.Command{
	Use:   "report",
	Short: "Render an HTML report over the persisted accuracy runs",
	Long: `Report scans the results directory for accuracy summaries and renders
a standalone HTML dashboard comparing every model and GPU count that has
been verified so far.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runReport(cmd)
	},
}

func init() {
	reportCmd.Flags().String("html", "", "Path for the HTML report (default <resultsDir>/accuracy-report.html)")
	reportCmd.Flags().String("analysis-json", "", "Also write the combined runs as JSON to this path")
	rootCmd.AddCommand(reportCmd)
}
