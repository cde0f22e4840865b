// internal/checkpoint/lora.go
package checkpoint

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/mwiater/paragon/internal/layerspec"
)

// LoRAAdapter is a low-rank adapter artifact. Its delta rows override the
// base prediction table whenever a request selects the adapter.
type LoRAAdapter struct {
	Name          string          `json:"name"`
	Rank          int             `json:"rank"`
	TargetModules []string        `json:"target_modules"`
	Deltas        []PredictionRow `json:"deltas"`
}

// LoadLoRA reads a LoRA adapter file. A missing file surfaces as an error
// wrapping fs.ErrNotExist so callers can treat it as "no adapter".
func LoadLoRA(path string) (*LoRAAdapter, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("could not read lora adapter %q: %w", path, err)
	}

	var adapter LoRAAdapter
	if err := json.Unmarshal(data, &adapter); err != nil {
		return nil, fmt.Errorf("could not parse lora adapter %q: %w", path, err)
	}

	if adapter.Rank <= 0 {
		return nil, fmt.Errorf("lora adapter %q declares rank %d", path, adapter.Rank)
	}
	if len(adapter.TargetModules) == 0 {
		return nil, fmt.Errorf("lora adapter %q names no target modules", path)
	}
	for _, target := range adapter.TargetModules {
		if !layerspec.IsLoRATarget(target) {
			return nil, fmt.Errorf("lora adapter %q targets unsupported module %q (supported: %v)", path, target, layerspec.LoRATargets())
		}
	}
	return &adapter, nil
}
