// internal/engine/engine.go
// Package engine serves generation over a compiled engine directory. The
// decoder is a lookup model: each step hashes the longest stored suffix of
// the running sequence, fetches that context's scored candidates from the
// memory-mapped shard it routes to, and samples the next token. Loaded
// engines are safe for concurrent Generate calls.
package engine

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"path/filepath"
	"strings"
	"time"

	"github.com/mwiater/paragon/internal/checkpoint"
	"github.com/mwiater/paragon/internal/enginefile"
	"github.com/mwiater/paragon/internal/layerspec"
	"github.com/mwiater/paragon/internal/logging"
	"github.com/mwiater/paragon/internal/util"
)

// BaseLoRAUID selects the base model instead of an adapter.
const BaseLoRAUID = "-1"

// ErrInvalidRequest marks request validation failures so serving layers can
// map them to client errors.
var ErrInvalidRequest = errors.New("invalid request")

func invalidRequestf(format string, args ...any) error {
	return fmt.Errorf("engine: "+format+": %w", append(args, ErrInvalidRequest)...)
}

type tableKey struct {
	hash  uint64
	order uint16
}

// Engine is a loaded engine directory ready to generate.
type Engine struct {
	dir         string
	manifest    *enginefile.Manifest
	tokenizer   *Tokenizer
	shards      []*enginefile.TableReader
	promptTasks map[string][]int32
	adapters    map[string]map[tableKey][]enginefile.Candidate
}

// Load opens an engine directory, validates its layer spec against the
// runtime registry, and memory-maps every shard.
func Load(dir string) (*Engine, error) {
	manifest, err := enginefile.ReadManifest(dir)
	if err != nil {
		return nil, err
	}
	if err := layerspec.DefaultRegistry().Validate(manifest.LayerSpec); err != nil {
		return nil, fmt.Errorf("engine %q: %w", dir, err)
	}

	vocab, err := enginefile.ReadVocab(filepath.Join(dir, enginefile.VocabFile))
	if err != nil {
		return nil, err
	}
	if len(vocab) != manifest.VocabSize {
		return nil, fmt.Errorf("engine %q: vocab holds %d tokens, manifest declares %d", dir, len(vocab), manifest.VocabSize)
	}

	e := &Engine{
		dir:       dir,
		manifest:  manifest,
		tokenizer: NewTokenizer(vocab),
	}

	for i, shard := range manifest.Shards {
		r, err := enginefile.OpenTable(filepath.Join(dir, shard.File))
		if err != nil {
			e.Close()
			return nil, err
		}
		e.shards = append(e.shards, r)
		if r.ShardIndex() != i || r.ShardCount() != manifest.ShardCount {
			e.Close()
			return nil, fmt.Errorf("engine %q: %s carries shard header %d of %d, expected %d of %d",
				dir, shard.File, r.ShardIndex(), r.ShardCount(), i, manifest.ShardCount)
		}
	}

	if err := e.loadPromptTasks(); err != nil {
		e.Close()
		return nil, err
	}
	if err := e.loadAdapters(); err != nil {
		e.Close()
		return nil, err
	}

	// The empty-context row is the floor of the backoff chain; without it
	// generation could dead-end.
	if cands := e.lookupBase(nil); len(cands) == 0 {
		e.Close()
		return nil, fmt.Errorf("engine %q has no fallback row", dir)
	}

	logging.LogEvent("loaded engine %s (%s, %d shards, build %s)", manifest.Name, manifest.Family, manifest.ShardCount, manifest.BuildID)
	return e, nil
}

func (e *Engine) loadPromptTasks() error {
	if len(e.manifest.PromptTasks) == 0 {
		return nil
	}
	table, err := checkpoint.LoadPromptTable(filepath.Join(e.dir, enginefile.PromptTableFile))
	if err != nil {
		return err
	}
	e.promptTasks = make(map[string][]int32, len(table.Tasks))
	for _, task := range table.Tasks {
		e.promptTasks[task.TaskID] = task.VirtualTokens
	}
	for _, id := range e.manifest.PromptTasks {
		if _, ok := e.promptTasks[id]; !ok {
			return fmt.Errorf("engine %q: manifest lists prompt task %q but the table does not", e.dir, id)
		}
	}
	return nil
}

func (e *Engine) loadAdapters() error {
	if len(e.manifest.LoRAUIDs) == 0 {
		return nil
	}
	e.adapters = make(map[string]map[tableKey][]enginefile.Candidate, len(e.manifest.LoRAUIDs))
	for uid := range e.manifest.LoRAUIDs {
		adapter, err := checkpoint.LoadLoRA(filepath.Join(e.dir, enginefile.LoRAFileName(uid)))
		if err != nil {
			return err
		}
		overrides := make(map[tableKey][]enginefile.Candidate, len(adapter.Deltas))
		for _, row := range adapter.Deltas {
			candidates := make([]enginefile.Candidate, len(row.Next))
			for i, c := range row.Next {
				candidates[i] = enginefile.Candidate{ID: uint32(c.ID), Score: c.Score}
			}
			key := tableKey{hash: enginefile.HashContext(row.Context), order: uint16(len(row.Context))}
			overrides[key] = enginefile.RankCandidates(candidates)
		}
		e.adapters[uid] = overrides
	}
	return nil
}

// Close unmaps every shard.
func (e *Engine) Close() error {
	var err error
	for _, shard := range e.shards {
		if e := shard.Close(); e != nil && err == nil {
			err = e
		}
	}
	return err
}

// Manifest returns the build descriptor of the loaded engine.
func (e *Engine) Manifest() *enginefile.Manifest {
	return e.manifest
}

// Tokenizer returns the engine's tokenizer.
func (e *Engine) Tokenizer() *Tokenizer {
	return e.tokenizer
}

// Request is one generation call over a batch of prompts. TaskIDs and
// LoRAUIDs, when present, must carry one entry per prompt; empty entries
// and BaseLoRAUID select the untuned base model.
type Request struct {
	Prompts      []string
	MaxNewTokens int
	Sampling     Sampling
	TaskIDs      []string
	LoRAUIDs     []string
	StopWords    []string

	// OnToken, when set, receives each token as it is decoded.
	OnToken func(prompt int, token string)
}

// Usage accounts the tokens a request consumed and produced.
type Usage struct {
	PromptTokens     int
	CompletionTokens int
	TotalTokens      int
}

// Result carries the generated continuations in prompt order. A prompt's
// finish reason is "stop" when a stop word ended it, otherwise "length".
type Result struct {
	Outputs       []string
	FinishReasons []string
	Usage         Usage
	TTFT          time.Duration
	Duration      time.Duration
}

// Generate produces continuations for every prompt in the request.
func (e *Engine) Generate(ctx context.Context, req Request) (*Result, error) {
	if len(req.Prompts) == 0 {
		return nil, invalidRequestf("request carries no prompts")
	}
	if max := e.manifest.MaxBatchSize; max > 0 && len(req.Prompts) > max {
		return nil, invalidRequestf("batch of %d prompts exceeds the engine limit of %d", len(req.Prompts), max)
	}
	if err := req.Sampling.validate(); err != nil {
		return nil, invalidRequestf("%s", err)
	}
	if len(req.TaskIDs) > 0 && len(req.TaskIDs) != len(req.Prompts) {
		return nil, invalidRequestf("%d task ids for %d prompts", len(req.TaskIDs), len(req.Prompts))
	}
	if len(req.LoRAUIDs) > 0 && len(req.LoRAUIDs) != len(req.Prompts) {
		return nil, invalidRequestf("%d lora uids for %d prompts", len(req.LoRAUIDs), len(req.Prompts))
	}

	maxNew := req.MaxNewTokens
	if maxNew <= 0 {
		maxNew = e.manifest.MaxOutputTokens
	}
	if limit := e.manifest.MaxOutputTokens; limit > 0 && maxNew > limit {
		return nil, invalidRequestf("%d new tokens exceeds the engine limit of %d", maxNew, limit)
	}

	seed := req.Sampling.Seed
	if seed < 0 {
		seed = time.Now().UnixNano()
	}

	stop := make(map[string]bool, len(req.StopWords))
	for _, w := range req.StopWords {
		stop[strings.ToLower(w)] = true
	}

	start := time.Now()
	var ttft time.Duration
	outputs := make([]string, len(req.Prompts))
	finishReasons := make([]string, len(req.Prompts))
	var usage Usage

	for pi, prompt := range req.Prompts {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}

		ids := e.tokenizer.Encode(prompt)
		if len(req.TaskIDs) > 0 && req.TaskIDs[pi] != "" {
			virtual, ok := e.promptTasks[req.TaskIDs[pi]]
			if !ok {
				return nil, invalidRequestf("prompt task %q is not registered", req.TaskIDs[pi])
			}
			ids = append(append(make([]int32, 0, len(virtual)+len(ids)), virtual...), ids...)
		}
		if limit := e.manifest.MaxInputTokens; limit > 0 && len(ids) > limit {
			return nil, invalidRequestf("prompt %d holds %d tokens, exceeding the engine limit of %d", pi, len(ids), limit)
		}

		var overrides map[tableKey][]enginefile.Candidate
		if len(req.LoRAUIDs) > 0 {
			if uid := req.LoRAUIDs[pi]; uid != "" && uid != BaseLoRAUID {
				ov, ok := e.adapters[uid]
				if !ok {
					return nil, invalidRequestf("lora uid %q is not registered", uid)
				}
				overrides = ov
			}
		}

		usage.PromptTokens += len(ids)
		rng := rand.New(rand.NewSource(seed + int64(pi)))

		seq := make([]int32, len(ids), len(ids)+maxNew)
		copy(seq, ids)
		promptLen := len(ids)
		reason := "length"
		for step := 0; step < maxNew; step++ {
			candidates := e.lookup(seq, overrides)
			if len(candidates) == 0 {
				return nil, fmt.Errorf("engine: no candidates for prompt %d at step %d", pi, step)
			}
			picked := sample(candidates, req.Sampling, rng)
			token := e.tokenizer.Token(int32(picked.ID))
			if stop[token] {
				reason = "stop"
				break
			}
			seq = append(seq, int32(picked.ID))
			if ttft == 0 {
				ttft = time.Since(start)
			}
			if req.OnToken != nil {
				req.OnToken(pi, token)
			}
		}

		generated := seq[promptLen:]
		usage.CompletionTokens += len(generated)
		outputs[pi] = e.tokenizer.Decode(generated)
		finishReasons[pi] = reason
	}

	usage.TotalTokens = usage.PromptTokens + usage.CompletionTokens
	return &Result{
		Outputs:       outputs,
		FinishReasons: finishReasons,
		Usage:         usage,
		TTFT:          ttft,
		Duration:      time.Since(start),
	}, nil
}

// lookup returns the candidates for the longest stored suffix of seq,
// consulting adapter overrides before the base tables and backing off one
// token at a time down to the unigram fallback.
func (e *Engine) lookup(seq []int32, overrides map[tableKey][]enginefile.Candidate) []enginefile.Candidate {
	maxOrder := util.Min(e.manifest.MaxOrder, len(seq))
	for order := maxOrder; order >= 0; order-- {
		suffix := seq[len(seq)-order:]
		hash := enginefile.HashContext(suffix)
		if overrides != nil {
			if candidates, ok := overrides[tableKey{hash: hash, order: uint16(order)}]; ok {
				return candidates
			}
		}
		shard := enginefile.ShardFor(hash, len(e.shards))
		if candidates, ok := e.shards[shard].Lookup(hash, order); ok {
			return candidates
		}
	}
	return nil
}

func (e *Engine) lookupBase(seq []int32) []enginefile.Candidate {
	return e.lookup(seq, nil)
}
