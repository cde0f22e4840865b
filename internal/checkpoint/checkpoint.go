// internal/checkpoint/checkpoint.go
// Package checkpoint reads the portable checkpoint layout produced by the
// distillation tooling: model_config.yaml describing the parent model,
// tokens.json holding the vocabulary, and predictions.json holding the
// context -> next-token rows the export step compiles into an engine.
package checkpoint

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"go.yaml.in/yaml/v4"

	"github.com/mwiater/paragon/internal/layerspec"
)

const (
	configFile      = "model_config.yaml"
	tokensFile      = "tokens.json"
	predictionsFile = "predictions.json"
)

// UnknownTokenID is reserved at vocabulary position zero.
const UnknownTokenID = 0

// UnknownToken is the literal the vocabulary must carry at position zero.
const UnknownToken = "<unk>"

// ModelConfig mirrors model_config.yaml. The architecture fields describe
// the parent model the predictions were distilled from; the export step
// copies them into the engine manifest so serving can report them.
type ModelConfig struct {
	Name           string `yaml:"name"`
	Family         string `yaml:"family"`
	VocabSize      int    `yaml:"vocab_size"`
	HiddenSize     int    `yaml:"hidden_size"`
	NumLayers      int    `yaml:"num_layers"`
	NumHeads       int    `yaml:"num_attention_heads"`
	MaxPositions   int    `yaml:"max_position_embeddings"`
	TensorParallel int    `yaml:"tensor_model_parallel_size,omitempty"`
}

// Candidate is one scored continuation of a context.
type Candidate struct {
	ID    int32   `json:"id"`
	Score float32 `json:"score"`
}

// PredictionRow maps a token-id context onto its scored continuations.
// A row with an empty context is the unigram fallback the engine backs
// off to when no longer context matches.
type PredictionRow struct {
	Context []int32     `json:"context"`
	Next    []Candidate `json:"next"`
}

// Checkpoint is a loaded portable checkpoint.
type Checkpoint struct {
	Dir    string
	Config ModelConfig
	Vocab  []string
	Rows   []PredictionRow
}

// Load reads and validates a portable checkpoint directory.
func Load(dir string) (*Checkpoint, error) {
	info, err := os.Stat(dir)
	if err != nil {
		return nil, fmt.Errorf("checkpoint directory %q: %w", dir, err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("checkpoint path %q is not a directory", dir)
	}

	cp := &Checkpoint{Dir: dir}

	configData, err := os.ReadFile(filepath.Join(dir, configFile))
	if err != nil {
		return nil, fmt.Errorf("could not read %s: %w", configFile, err)
	}
	if err := yaml.Unmarshal(configData, &cp.Config); err != nil {
		return nil, fmt.Errorf("could not parse %s: %w", configFile, err)
	}

	tokensData, err := os.ReadFile(filepath.Join(dir, tokensFile))
	if err != nil {
		return nil, fmt.Errorf("could not read %s: %w", tokensFile, err)
	}
	if err := json.Unmarshal(tokensData, &cp.Vocab); err != nil {
		return nil, fmt.Errorf("could not parse %s: %w", tokensFile, err)
	}

	rowsData, err := os.ReadFile(filepath.Join(dir, predictionsFile))
	if err != nil {
		return nil, fmt.Errorf("could not read %s: %w", predictionsFile, err)
	}
	if err := json.Unmarshal(rowsData, &cp.Rows); err != nil {
		return nil, fmt.Errorf("could not parse %s: %w", predictionsFile, err)
	}

	if err := cp.validate(); err != nil {
		return nil, fmt.Errorf("invalid checkpoint %q: %w", dir, err)
	}
	return cp, nil
}

func (cp *Checkpoint) validate() error {
	if cp.Config.Family == "" {
		return fmt.Errorf("%s is missing the model family", configFile)
	}
	if _, err := layerspec.ForFamily(cp.Config.Family); err != nil {
		return err
	}
	if len(cp.Vocab) == 0 {
		return fmt.Errorf("%s holds an empty vocabulary", tokensFile)
	}
	if cp.Vocab[UnknownTokenID] != UnknownToken {
		return fmt.Errorf("vocabulary position %d must be %q, got %q", UnknownTokenID, UnknownToken, cp.Vocab[UnknownTokenID])
	}
	if cp.Config.VocabSize != 0 && cp.Config.VocabSize != len(cp.Vocab) {
		return fmt.Errorf("%s declares vocab_size %d but %s holds %d tokens", configFile, cp.Config.VocabSize, tokensFile, len(cp.Vocab))
	}

	fallback := false
	for i, row := range cp.Rows {
		if len(row.Next) == 0 {
			return fmt.Errorf("prediction row %d has no candidates", i)
		}
		if len(row.Context) == 0 {
			fallback = true
		}
		for _, id := range row.Context {
			if id < 0 || int(id) >= len(cp.Vocab) {
				return fmt.Errorf("prediction row %d references token id %d outside the vocabulary", i, id)
			}
		}
		for _, c := range row.Next {
			if c.ID < 0 || int(c.ID) >= len(cp.Vocab) {
				return fmt.Errorf("prediction row %d references token id %d outside the vocabulary", i, c.ID)
			}
		}
	}
	if !fallback {
		return fmt.Errorf("%s has no empty-context fallback row", predictionsFile)
	}
	return nil
}

// MaxOrder returns the longest context length present in the prediction rows.
func (cp *Checkpoint) MaxOrder() int {
	order := 0
	for _, row := range cp.Rows {
		if len(row.Context) > order {
			order = len(row.Context)
		}
	}
	return order
}

// Write saves a checkpoint in the portable layout. It is used by the test
// fixtures and by tooling that repacks checkpoints.
func Write(dir string, cp *Checkpoint) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("could not create checkpoint directory: %w", err)
	}

	configData, err := yaml.Marshal(cp.Config)
	if err != nil {
		return fmt.Errorf("could not encode %s: %w", configFile, err)
	}
	if err := os.WriteFile(filepath.Join(dir, configFile), configData, 0o644); err != nil {
		return err
	}

	tokensData, err := json.MarshalIndent(cp.Vocab, "", "  ")
	if err != nil {
		return fmt.Errorf("could not encode %s: %w", tokensFile, err)
	}
	if err := os.WriteFile(filepath.Join(dir, tokensFile), tokensData, 0o644); err != nil {
		return err
	}

	rowsData, err := json.MarshalIndent(cp.Rows, "", "  ")
	if err != nil {
		return fmt.Errorf("could not encode %s: %w", predictionsFile, err)
	}
	return os.WriteFile(filepath.Join(dir, predictionsFile), rowsData, 0o644)
}
