package appconfig

import (
	"fmt"
	"io"
)

// ShowConfig prints the current configuration summary.
func ShowConfig(out io.Writer, file string, cfg *Config, fallback Config) {
	if file == "" {
		fmt.Fprintln(out, "No config file loaded (using defaults).")
	} else {
		fmt.Fprintf(out, "Config file: %s\n\n", file)
	}

	fmt.Fprintln(out, "Current configuration:")
	if cfg == nil {
		cfg = &fallback
	}

	fmt.Fprintf(out, "  Debug:            %v\n", cfg.Debug)
	fmt.Fprintf(out, "  Request Timeout:  %s\n", cfg.RequestTimeout())
	fmt.Fprintf(out, "  Catalog:          %s\n", cfg.CatalogFile())
	fmt.Fprintf(out, "  Checkpoint Root:  %s\n", cfg.CheckpointRoot())
	fmt.Fprintf(out, "  Engine Root:      %s\n", cfg.EngineRoot())
	fmt.Fprintf(out, "  Results Root:     %s\n", cfg.ResultsRoot())
	fmt.Fprintf(out, "  Test Data:        %s\n", cfg.TestData())
	fmt.Fprintf(out, "  Deploy Address:   %s\n", cfg.DeployAddress())
	fmt.Fprintf(out, "  Log File:         %s\n", cfg.LogFilePath())
	if cfg.GPUCount > 0 {
		fmt.Fprintf(out, "  GPU Count:        %d (pinned)\n", cfg.GPUCount)
	} else {
		fmt.Fprintf(out, "  GPU Count:        autodetect\n")
	}

	sampling := cfg.ResolvedSampling()
	profile := cfg.SamplingProfile
	if profile == "" {
		profile = string(ProfileGreedy)
	}
	fmt.Fprintf(out, "  Sampling Profile: %s\n", profile)
	if sampling.TopK != nil {
		fmt.Fprintf(out, "    Top K:          %d\n", *sampling.TopK)
	}
	if sampling.TopP != nil {
		fmt.Fprintf(out, "    Top P:          %g\n", *sampling.TopP)
	}
	if sampling.Temperature != nil {
		fmt.Fprintf(out, "    Temperature:    %g\n", *sampling.Temperature)
	}
	if sampling.MaxNewTokens != nil {
		fmt.Fprintf(out, "    Max New Tokens: %d\n", *sampling.MaxNewTokens)
	}
}
