// internal/enginefile/manifest.go
package enginefile

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/mwiater/paragon/internal/layerspec"
)

// ShardInfo describes one table file listed in the manifest.
type ShardInfo struct {
	File    string `json:"file"`
	Records int    `json:"records"`
	Bytes   int64  `json:"bytes"`
}

// Manifest is the build descriptor written next to the engine files. It
// carries everything serving needs without opening the shards: parallelism
// layout, limits, the layer spec the build validated against, and any tuned
// artifacts baked in.
type Manifest struct {
	Name            string              `json:"name"`
	Family          string              `json:"family"`
	BuildID         string              `json:"build_id"`
	CreatedAt       time.Time           `json:"created_at"`
	Version         int                 `json:"version"`
	TPSize          int                 `json:"tp_size"`
	PPSize          int                 `json:"pp_size"`
	ShardCount      int                 `json:"shard_count"`
	MaxOrder        int                 `json:"max_order"`
	VocabSize       int                 `json:"vocab_size"`
	HiddenSize      int                 `json:"hidden_size,omitempty"`
	NumLayers       int                 `json:"num_layers,omitempty"`
	NumHeads        int                 `json:"num_heads,omitempty"`
	MaxBatchSize    int                 `json:"max_batch_size"`
	MaxInputTokens  int                 `json:"max_input_tokens"`
	MaxOutputTokens int                 `json:"max_output_tokens"`
	LayerSpec       layerspec.LayerSpec `json:"layer_spec"`
	PromptTableSize int                 `json:"prompt_table_size,omitempty"`
	PromptTasks     []string            `json:"prompt_tasks,omitempty"`
	LoRAUIDs        map[string]string   `json:"lora_uids,omitempty"`
	Shards          []ShardInfo         `json:"shards"`
}

// WriteManifest writes the manifest into an engine directory.
func WriteManifest(dir string, m *Manifest) error {
	data, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return fmt.Errorf("encode manifest: %w", err)
	}
	return os.WriteFile(filepath.Join(dir, ManifestFile), data, 0o644)
}

// ReadManifest reads and validates the manifest of an engine directory.
func ReadManifest(dir string) (*Manifest, error) {
	path := filepath.Join(dir, ManifestFile)
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read manifest %q: %w", path, err)
	}

	var m Manifest
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("parse manifest %q: %w", path, err)
	}

	if m.Version != FormatVersion {
		return nil, fmt.Errorf("manifest %q: unsupported version %d", path, m.Version)
	}
	if m.Name == "" || m.Family == "" {
		return nil, fmt.Errorf("manifest %q is missing the model name or family", path)
	}
	if m.ShardCount <= 0 || m.ShardCount != len(m.Shards) {
		return nil, fmt.Errorf("manifest %q declares %d shards but lists %d", path, m.ShardCount, len(m.Shards))
	}
	if m.TPSize <= 0 || m.PPSize <= 0 || m.TPSize*m.PPSize != m.ShardCount {
		return nil, fmt.Errorf("manifest %q: tp %d x pp %d does not cover %d shards", path, m.TPSize, m.PPSize, m.ShardCount)
	}
	return &m, nil
}
