// internal/catalog/catalog.go
// Package catalog loads the model catalog naming every model the harness can
// export, deploy, and verify, along with where each model's artifacts live.
package catalog

import (
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"go.yaml.in/yaml/v4"

	"github.com/mwiater/paragon/internal/layerspec"
)

// Entry describes one supported model. Artifact paths are resolved relative
// to the process working directory. Prompts, MaxBatchSize, and
// MaxOutputTokens override the harness defaults for this model when set.
type Entry struct {
	Name            string   `yaml:"name"`
	Family          string   `yaml:"family"`
	Checkpoint      string   `yaml:"checkpoint"`
	PTuning         string   `yaml:"ptuning_checkpoint,omitempty"`
	LoRA            string   `yaml:"lora_checkpoint,omitempty"`
	MinGPUs         int      `yaml:"min_gpus,omitempty"`
	Prompts         []string `yaml:"prompt_templates,omitempty"`
	MaxBatchSize    int      `yaml:"max_batch_size,omitempty"`
	MaxOutputTokens int      `yaml:"max_output_tokens,omitempty"`
	Description     string   `yaml:"description,omitempty"`
}

// Catalog is the parsed model catalog.
type Catalog struct {
	Models []Entry `yaml:"models"`

	path string
}

// Load reads and validates a catalog file.
func Load(path string) (*Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read catalog %s: %w", path, err)
	}
	var c Catalog
	if err := yaml.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("parse catalog %s: %w", path, err)
	}
	c.path = path
	if err := c.validate(); err != nil {
		return nil, fmt.Errorf("catalog %s: %w", path, err)
	}
	return &c, nil
}

func (c *Catalog) validate() error {
	if len(c.Models) == 0 {
		return fmt.Errorf("lists no models")
	}
	seen := make(map[string]struct{}, len(c.Models))
	for i, entry := range c.Models {
		if entry.Name == "" {
			return fmt.Errorf("entry %d has no name", i)
		}
		if entry.Family == "" {
			return fmt.Errorf("model %q has no family", entry.Name)
		}
		if _, err := layerspec.ForFamily(entry.Family); err != nil {
			return fmt.Errorf("model %q: %w", entry.Name, err)
		}
		if entry.Checkpoint == "" {
			return fmt.Errorf("model %q has no checkpoint path", entry.Name)
		}
		if entry.MinGPUs < 0 {
			return fmt.Errorf("model %q: min_gpus must not be negative", entry.Name)
		}
		if entry.MaxBatchSize < 0 || entry.MaxOutputTokens < 0 {
			return fmt.Errorf("model %q: batch and token limits must not be negative", entry.Name)
		}
		if _, ok := seen[entry.Name]; ok {
			return fmt.Errorf("model %q appears twice", entry.Name)
		}
		seen[entry.Name] = struct{}{}
	}
	return nil
}

// Path returns the file the catalog was loaded from.
func (c *Catalog) Path() string {
	return c.path
}

// Names returns the catalog's model names, sorted.
func (c *Catalog) Names() []string {
	names := make([]string, 0, len(c.Models))
	for _, entry := range c.Models {
		names = append(names, entry.Name)
	}
	sort.Strings(names)
	return names
}

// Lookup finds a model by name.
func (c *Catalog) Lookup(name string) (Entry, error) {
	for _, entry := range c.Models {
		if entry.Name == name {
			return entry, nil
		}
	}
	return Entry{}, fmt.Errorf("model %q is not supported, pick one of: %s", name, strings.Join(c.Names(), ", "))
}

// PTuningCheckpoint returns the prompt-tuning artifact path, or an error
// when the model ships without one.
func (e Entry) PTuningCheckpoint() (string, error) {
	if e.PTuning == "" {
		return "", fmt.Errorf("model %q has no prompt-tuning checkpoint", e.Name)
	}
	return e.PTuning, nil
}

// LoRACheckpoint returns the LoRA adapter path, or an error when the model
// ships without one.
func (e Entry) LoRACheckpoint() (string, error) {
	if e.LoRA == "" {
		return "", fmt.Errorf("model %q has no LoRA checkpoint", e.Name)
	}
	return e.LoRA, nil
}

// GPUFloor returns the smallest GPU count the model is verified at.
func (e Entry) GPUFloor() int {
	if e.MinGPUs > 0 {
		return e.MinGPUs
	}
	return 1
}

// List prints the catalog, marking models whose engine has already been
// exported. hasEngine may be nil when engine state is unknown.
func (c *Catalog) List(hasEngine func(Entry) bool) {
	headerStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("255"))
	modelStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("86"))
	readyStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("46"))

	fmt.Println(headerStyle.Render("Supported models:"))
	for _, name := range c.Names() {
		entry, _ := c.Lookup(name)
		line := fmt.Sprintf("%s (%s)", entry.Name, entry.Family)
		var tags []string
		if entry.PTuning != "" {
			tags = append(tags, "ptuning")
		}
		if entry.LoRA != "" {
			tags = append(tags, "lora")
		}
		if len(tags) > 0 {
			line += " +" + strings.Join(tags, " +")
		}
		styled := modelStyle.Render(line)
		if hasEngine != nil && hasEngine(entry) {
			styled += " " + readyStyle.Render("[engine ready]")
		}
		fmt.Println("  >>> " + styled)
	}
	fmt.Println()
}
