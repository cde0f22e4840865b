// internal/appconfig/sampling_profiles.go
package appconfig

import "strings"

// ProfileName identifies a sampling preset/profile.
type ProfileName string

const (
	ProfileGreedy   ProfileName = "greedy"
	ProfileAccuracy ProfileName = "accuracy"
	ProfileCreative ProfileName = "creative"
)

// SamplingParams carries generation sampling parameters. Pointer fields
// preserve unset vs explicitly set, so presets and overrides can merge.
type SamplingParams struct {
	TopK         *int     `json:"topK,omitempty"`
	TopP         *float64 `json:"topP,omitempty"`
	Temperature  *float64 `json:"temperature,omitempty"`
	Seed         *int64   `json:"seed,omitempty"`
	MaxNewTokens *int     `json:"maxNewTokens,omitempty"`
}

// ParamsForProfile selects a sampling profile by name.
// Behavior:
//   - empty string => Greedy (default)
//   - unknown string => Greedy (default)
func ParamsForProfile(name string) SamplingParams {
	n := normalizeProfileName(name)

	switch ProfileName(n) {
	case ProfileAccuracy:
		return DefaultAccuracyParams()
	case ProfileCreative:
		return DefaultCreativeParams()
	case ProfileGreedy:
		fallthrough
	default:
		return DefaultGreedyParams()
	}
}

// DefaultGreedyParams is the default profile when none is set: deterministic
// argmax decoding, matching the command-line defaults.
func DefaultGreedyParams() SamplingParams {
	return SamplingParams{
		TopK:         ptrInt(1),      // argmax
		TopP:         ptrFloat(0.0),  // nucleus filtering disabled
		Temperature:  ptrFloat(1.0),  // no-op at top_k=1, kept for parity
		Seed:         ptrInt64(0),
		MaxNewTokens: ptrInt(128),
	}
}

// DefaultAccuracyParams is the profile the accuracy harness pins: one new
// token, argmax, low temperature so repeated runs agree exactly.
func DefaultAccuracyParams() SamplingParams {
	return SamplingParams{
		TopK:         ptrInt(1),
		TopP:         ptrFloat(0.0),
		Temperature:  ptrFloat(0.1),
		Seed:         ptrInt64(42),
		MaxNewTokens: ptrInt(1),
	}
}

// DefaultCreativeParams is tuned for varied continuations (at the cost of
// determinism).
func DefaultCreativeParams() SamplingParams {
	return SamplingParams{
		TopK:         ptrInt(40),
		TopP:         ptrFloat(0.95),
		Temperature:  ptrFloat(0.8),
		Seed:         ptrInt64(-1), // random seed per request
		MaxNewTokens: ptrInt(256),
	}
}

// MergeSampling overlays explicitly set override fields onto a base preset.
func MergeSampling(base SamplingParams, override SamplingParams) SamplingParams {
	if override.TopK != nil {
		base.TopK = override.TopK
	}
	if override.TopP != nil {
		base.TopP = override.TopP
	}
	if override.Temperature != nil {
		base.Temperature = override.Temperature
	}
	if override.Seed != nil {
		base.Seed = override.Seed
	}
	if override.MaxNewTokens != nil {
		base.MaxNewTokens = override.MaxNewTokens
	}
	return base
}

func normalizeProfileName(s string) string {
	s = strings.TrimSpace(strings.ToLower(s))
	// allow a few friendly aliases
	switch s {
	case "", "default", "argmax", "deterministic":
		return string(ProfileGreedy)
	case "accuracy", "acc", "eval":
		return string(ProfileAccuracy)
	case "creative_writing", "creative-writing", "sampled":
		return string(ProfileCreative)
	default:
		return s
	}
}

// Pointer helpers (keeps structs clean + preserves unset vs explicitly set).
func ptrInt(v int) *int           { return &v }
func ptrInt64(v int64) *int64     { return &v }
func ptrFloat(v float64) *float64 { return &v }
