// internal/export/export.go
// Package export compiles a portable checkpoint into a servable engine
// directory: vocab and sharded lookup tables in the binary format, plus a
// manifest describing the build. Optional prompt-table and LoRA artifacts
// are validated and baked in alongside.
package export

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"github.com/mwiater/paragon/internal/checkpoint"
	"github.com/mwiater/paragon/internal/enginefile"
	"github.com/mwiater/paragon/internal/layerspec"
	"github.com/mwiater/paragon/internal/logging"
)

// DefaultMaxPromptTableSize caps the virtual tokens a baked prompt table
// may hold when the caller does not override it.
const DefaultMaxPromptTableSize = 8192

// Options configures one export.
type Options struct {
	ModelName     string
	CheckpointDir string
	EngineDir     string

	// GPUs sets the default tensor parallelism when TPSize is zero.
	GPUs   int
	TPSize int
	PPSize int

	MaxBatchSize    int
	MaxInputTokens  int
	MaxOutputTokens int

	PromptTablePath    string
	MaxPromptTableSize int
	LoRAPath           string

	// Progress, when set, receives coarse stage updates.
	Progress func(stage string, current, total int)
}

// Result reports what an export produced.
type Result struct {
	Dir        string
	Manifest   *enginefile.Manifest
	TotalBytes int64
	Duration   time.Duration
}

func (o *Options) progress(stage string, current, total int) {
	if o.Progress != nil {
		o.Progress(stage, current, total)
	}
}

func (o *Options) validate() error {
	if o.ModelName == "" {
		return fmt.Errorf("export: model name is required")
	}
	if o.CheckpointDir == "" {
		return fmt.Errorf("export: checkpoint directory is required")
	}
	if o.EngineDir == "" {
		return fmt.Errorf("export: engine directory is required")
	}
	if o.TPSize < 0 || o.PPSize < 0 {
		return fmt.Errorf("export: parallel sizes must not be negative")
	}
	return nil
}

// shardLayout resolves the tensor/pipeline parallel sizes: an explicit
// TPSize wins, otherwise one shard per visible GPU.
func (o *Options) shardLayout() (tp, pp int) {
	tp = o.TPSize
	if tp == 0 {
		tp = o.GPUs
	}
	if tp == 0 {
		tp = 1
	}
	pp = o.PPSize
	if pp == 0 {
		pp = 1
	}
	return tp, pp
}

// Export compiles the checkpoint into opts.EngineDir. A pre-existing engine
// directory is replaced. On any failure the partially written directory is
// removed before the error is returned.
func Export(ctx context.Context, opts Options) (result *Result, err error) {
	if err := opts.validate(); err != nil {
		return nil, err
	}
	start := time.Now()

	opts.progress("load checkpoint", 0, 1)
	cp, err := checkpoint.Load(opts.CheckpointDir)
	if err != nil {
		return nil, err
	}

	spec, err := layerspec.ForFamily(cp.Config.Family)
	if err != nil {
		return nil, err
	}
	if err := layerspec.DefaultRegistry().Validate(spec); err != nil {
		return nil, err
	}

	tp, pp := opts.shardLayout()
	shardCount := tp * pp

	if err := os.RemoveAll(opts.EngineDir); err != nil {
		return nil, fmt.Errorf("could not clear engine directory %q: %w", opts.EngineDir, err)
	}
	if err := os.MkdirAll(opts.EngineDir, 0o755); err != nil {
		return nil, fmt.Errorf("could not create engine directory %q: %w", opts.EngineDir, err)
	}
	defer func() {
		if err != nil {
			_ = os.RemoveAll(opts.EngineDir)
		}
	}()

	manifest := &enginefile.Manifest{
		Name:            opts.ModelName,
		Family:          cp.Config.Family,
		BuildID:         uuid.NewString(),
		CreatedAt:       time.Now().UTC(),
		Version:         enginefile.FormatVersion,
		TPSize:          tp,
		PPSize:          pp,
		ShardCount:      shardCount,
		MaxOrder:        cp.MaxOrder(),
		VocabSize:       len(cp.Vocab),
		HiddenSize:      cp.Config.HiddenSize,
		NumLayers:       cp.Config.NumLayers,
		NumHeads:        cp.Config.NumHeads,
		MaxBatchSize:    opts.MaxBatchSize,
		MaxInputTokens:  opts.MaxInputTokens,
		MaxOutputTokens: opts.MaxOutputTokens,
		LayerSpec:       spec,
	}

	if opts.PromptTablePath != "" {
		if err := bakePromptTable(opts.EngineDir, opts.PromptTablePath, opts.MaxPromptTableSize, manifest); err != nil {
			return nil, err
		}
	}
	if opts.LoRAPath != "" {
		if err := bakeLoRA(opts.EngineDir, opts.LoRAPath, manifest); err != nil {
			return nil, err
		}
	}

	opts.progress("write vocab", 0, 1)
	if err := enginefile.WriteVocab(filepath.Join(opts.EngineDir, enginefile.VocabFile), cp.Vocab); err != nil {
		return nil, fmt.Errorf("could not write vocab: %w", err)
	}

	writers := make([]*enginefile.TableWriter, shardCount)
	for i := range writers {
		writers[i] = enginefile.NewTableWriter(i, shardCount)
	}
	for _, row := range cp.Rows {
		hash := enginefile.HashContext(row.Context)
		shard := enginefile.ShardFor(hash, shardCount)
		if err := writers[shard].Add(hash, len(row.Context), sortCandidates(row.Next)); err != nil {
			return nil, fmt.Errorf("could not build table shard %d: %w", shard, err)
		}
	}

	var totalBytes int64
	for i, w := range writers {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}
		opts.progress("write shards", i, shardCount)
		name := enginefile.TableFileName(i)
		size, err := w.WriteFile(filepath.Join(opts.EngineDir, name))
		if err != nil {
			return nil, fmt.Errorf("could not write table shard %d: %w", i, err)
		}
		manifest.Shards = append(manifest.Shards, enginefile.ShardInfo{File: name, Records: w.Len(), Bytes: size})
		totalBytes += size
	}

	opts.progress("write manifest", 0, 1)
	if err := enginefile.WriteManifest(opts.EngineDir, manifest); err != nil {
		return nil, fmt.Errorf("could not write manifest: %w", err)
	}

	logging.LogEvent("exported %s (%s) to %s: %d shards, %d rows", opts.ModelName, cp.Config.Family, opts.EngineDir, shardCount, len(cp.Rows))
	return &Result{
		Dir:        opts.EngineDir,
		Manifest:   manifest,
		TotalBytes: totalBytes,
		Duration:   time.Since(start),
	}, nil
}

func sortCandidates(in []checkpoint.Candidate) []enginefile.Candidate {
	out := make([]enginefile.Candidate, len(in))
	for i, c := range in {
		out[i] = enginefile.Candidate{ID: uint32(c.ID), Score: c.Score}
	}
	return enginefile.RankCandidates(out)
}

func bakePromptTable(engineDir, tablePath string, maxSize int, manifest *enginefile.Manifest) error {
	if maxSize == 0 {
		maxSize = DefaultMaxPromptTableSize
	}
	table, err := checkpoint.LoadPromptTable(tablePath)
	if err != nil {
		return err
	}
	if total := table.TotalVirtualTokens(); total > maxSize {
		return fmt.Errorf("prompt table holds %d virtual tokens, limit is %d", total, maxSize)
	}

	data, err := os.ReadFile(tablePath)
	if err != nil {
		return fmt.Errorf("could not copy prompt table: %w", err)
	}
	if err := os.WriteFile(filepath.Join(engineDir, enginefile.PromptTableFile), data, 0o644); err != nil {
		return fmt.Errorf("could not copy prompt table: %w", err)
	}

	manifest.PromptTableSize = maxSize
	for _, task := range table.Tasks {
		manifest.PromptTasks = append(manifest.PromptTasks, task.TaskID)
	}
	return nil
}

func bakeLoRA(engineDir, loraPath string, manifest *enginefile.Manifest) error {
	adapter, err := checkpoint.LoadLoRA(loraPath)
	if err != nil {
		return err
	}

	// The first (and currently only) adapter is registered under uid "0";
	// uid "-1" always selects the base model at request time.
	uid := "0"
	data, err := os.ReadFile(loraPath)
	if err != nil {
		return fmt.Errorf("could not copy lora adapter: %w", err)
	}
	if err := os.WriteFile(filepath.Join(engineDir, enginefile.LoRAFileName(uid)), data, 0o644); err != nil {
		return fmt.Errorf("could not copy lora adapter: %w", err)
	}

	if manifest.LoRAUIDs == nil {
		manifest.LoRAUIDs = make(map[string]string)
	}
	manifest.LoRAUIDs[uid] = adapter.Name
	return nil
}

// AddPromptTable applies a prompt table to an already exported engine,
// replacing any table baked in before.
func AddPromptTable(engineDir, tablePath string, maxSize int) error {
	manifest, err := enginefile.ReadManifest(engineDir)
	if err != nil {
		return err
	}
	manifest.PromptTasks = nil
	manifest.PromptTableSize = 0
	if err := bakePromptTable(engineDir, tablePath, maxSize, manifest); err != nil {
		return err
	}
	return enginefile.WriteManifest(engineDir, manifest)
}

// Exists reports whether dir already holds a readable engine build.
func Exists(dir string) bool {
	_, err := enginefile.ReadManifest(dir)
	return err == nil
}
