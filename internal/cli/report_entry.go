package paragon

import (
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/mwiater/paragon/internal/report"
)

// buildReport is swapped out in tests.
var buildReport = report.Build

func runReport(cmd *cobra.Command) error {
	cfg := GetConfig()

	resultsDir := viper.GetString("resultsDir")
	if resultsDir == "" && cfg != nil {
		resultsDir = cfg.ResultsRoot()
	}

	opts := report.Options{ResultsDir: resultsDir}
	opts.HTMLPath, _ = cmd.Flags().GetString("html")
	opts.AnalysisPath, _ = cmd.Flags().GetString("analysis-json")

	return buildReport(opts, cmd.OutOrStdout())
}
