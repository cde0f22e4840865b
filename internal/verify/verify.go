// internal/verify/verify.go
// Package verify runs the end-to-end model verification harness: export a
// checkpoint into an engine build, generate from the prompt templates,
// optionally deploy the engine behind the HTTP front end and query it back,
// optionally score next-word accuracy against a test set, and report a
// PASS/FAIL verdict across a sweep of GPU counts.
package verify

import (
	"context"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"time"

	"github.com/fatih/color"
	"github.com/k0kubun/pp"

	"github.com/mwiater/paragon/internal/accuracy"
	"github.com/mwiater/paragon/internal/appconfig"
	"github.com/mwiater/paragon/internal/deploy"
	"github.com/mwiater/paragon/internal/engine"
	"github.com/mwiater/paragon/internal/export"
	"github.com/mwiater/paragon/internal/gpu"
	"github.com/mwiater/paragon/internal/logging"
	"github.com/mwiater/paragon/internal/query"
	"github.com/mwiater/paragon/internal/util"
)

// gpuCount is swapped out in tests to script the detected GPU count.
var gpuCount = gpu.Count

var (
	passVerdict = color.New(color.FgGreen).SprintFunc()
	failVerdict = color.New(color.FgRed).SprintFunc()
	skippedNote = color.New(color.FgYellow).SprintFunc()
)

// DefaultPromptTemplates are the smoke prompts used when neither the caller
// nor the catalog entry names any.
func DefaultPromptTemplates() []string {
	return []string{"The capital of France is", "Largest animal in the sea is"}
}

// Options configures a verification run. Zero limits fall back to the
// harness defaults; Model and CheckpointDir are required.
type Options struct {
	Model string
	// ModelType, when set, must match the layer family recorded in the
	// checkpoint. Catalog runs fill it from the entry.
	ModelType string

	CheckpointDir string
	EngineDir     string

	GPUs   int
	TPSize int
	PPSize int

	MaxBatchSize    int
	MaxInputTokens  int
	MaxOutputTokens int

	PTuning           bool
	PTuningCheckpoint string
	LoRA              bool
	LoRACheckpoint    string

	PromptTemplates []string
	Sampling        appconfig.SamplingParams
	StopWords       []string

	RunAccuracy  bool
	TestDataPath string
	Threshold    float64
	BatchSize    int

	TestDeployment bool
	Streaming      bool
	DeployAddr     string

	ResultsDir string
	Debug      bool

	// OnStage and OnDetail feed progress displays; both may be nil.
	OnStage  func(stage string)
	OnDetail func(detail accuracy.Detail)
}

func (o *Options) normalize() error {
	if o.Model == "" {
		return fmt.Errorf("verify: model name is required")
	}
	if o.CheckpointDir == "" {
		return fmt.Errorf("verify: checkpoint directory is required")
	}
	if o.RunAccuracy && o.TestDataPath == "" {
		return fmt.Errorf("verify: accuracy runs need a test data path")
	}
	if o.PTuning && o.PTuningCheckpoint == "" {
		return fmt.Errorf("verify: no prompt-tuning checkpoint path given")
	}
	if o.LoRA && o.LoRACheckpoint == "" {
		return fmt.Errorf("verify: no LoRA checkpoint path given")
	}
	if o.GPUs <= 0 {
		o.GPUs = 1
	}
	if o.EngineDir == "" {
		o.EngineDir = filepath.Join(os.TempDir(), "paragon-engines", o.Model)
	}
	if o.MaxBatchSize <= 0 {
		o.MaxBatchSize = 8
	}
	if o.MaxInputTokens <= 0 {
		o.MaxInputTokens = 256
	}
	if o.MaxOutputTokens <= 0 {
		o.MaxOutputTokens = 128
	}
	if len(o.PromptTemplates) == 0 {
		o.PromptTemplates = DefaultPromptTemplates()
	}
	if o.Threshold <= 0 {
		o.Threshold = accuracy.DefaultThreshold
	}
	if o.DeployAddr == "" {
		o.DeployAddr = fmt.Sprintf("127.0.0.1:%d", appconfig.DefaultDeployPort)
	}
	return nil
}

func (o *Options) stage(name string) {
	logging.LogEvent("verify: %s", name)
	if o.OnStage != nil {
		o.OnStage(name)
	}
}

// RunResult captures what a single verification run measured. Skipped runs
// produce no RunResult at all.
type RunResult struct {
	Model string
	GPUs  int

	SmokeOutputs []string
	TTFT         time.Duration
	TokensPerSec float64

	DeployedOutputs []string
	StreamedTokens  int

	Accuracy         *accuracy.Report
	DeployedAccuracy *accuracy.Report
}

// Run verifies one model at one GPU count. It returns (nil, nil) when the
// run does not apply to this host rather than an error: not enough GPUs, or
// a requested adapter artifact that is not on disk. The engine directory is
// removed and any deployment stopped before Run returns, whatever the
// outcome.
func Run(ctx context.Context, opts Options) (*RunResult, error) {
	if err := opts.normalize(); err != nil {
		return nil, err
	}

	if _, err := os.Stat(opts.CheckpointDir); err != nil {
		return nil, fmt.Errorf("checkpoint %s could not be found: %w", opts.CheckpointDir, err)
	}

	available, err := gpuCount()
	if err != nil {
		return nil, err
	}
	if opts.GPUs > available {
		log.Print(skippedNote(fmt.Sprintf("Model %s with %d GPUs won't be tested, available GPUs: %d", opts.Model, opts.GPUs, available)))
		return nil, nil
	}

	log.Printf("Preparing %s for verification on %d GPU(s)...", opts.Model, opts.GPUs)
	logging.LogEvent("verify: starting run model=%s gpus=%d", opts.Model, opts.GPUs)

	// A requested adapter that cannot be loaded skips the run instead of
	// silently verifying the base model in its place.
	var taskIDs, loraUIDs []string
	loraPath := ""
	if opts.PTuning {
		if _, err := os.Stat(opts.PTuningCheckpoint); err != nil {
			log.Print(skippedNote("---- PTuning could not be enabled, skipping the run."))
			return nil, nil
		}
		taskIDs = repeatedIDs("0", len(opts.PromptTemplates))
		log.Print("---- PTuning enabled.")
	}
	if opts.LoRA {
		if _, err := os.Stat(opts.LoRACheckpoint); err != nil {
			log.Print(skippedNote("---- LoRA could not be enabled, skipping the run."))
			return nil, nil
		}
		loraPath = opts.LoRACheckpoint
		loraUIDs = alternatingUIDs(len(opts.PromptTemplates))
		log.Print("---- LoRA enabled.")
	}

	opts.stage("exporting engine")
	exported, err := export.Export(ctx, export.Options{
		ModelName:       opts.Model,
		CheckpointDir:   opts.CheckpointDir,
		EngineDir:       opts.EngineDir,
		GPUs:            opts.GPUs,
		TPSize:          opts.TPSize,
		PPSize:          opts.PPSize,
		MaxBatchSize:    opts.MaxBatchSize,
		MaxInputTokens:  opts.MaxInputTokens,
		MaxOutputTokens: opts.MaxOutputTokens,
		LoRAPath:        loraPath,
		Progress: func(stage string, current, total int) {
			if current == 0 {
				opts.stage(stage)
			}
		},
	})
	if err != nil {
		return nil, fmt.Errorf("error exporting %s: %w", opts.Model, err)
	}
	defer func() {
		if err := os.RemoveAll(opts.EngineDir); err != nil {
			log.Printf("error removing engine directory: %v", err)
		}
	}()

	if opts.ModelType != "" && exported.Manifest.Family != opts.ModelType {
		return nil, fmt.Errorf("checkpoint %s holds a %q model, not %q", opts.CheckpointDir, exported.Manifest.Family, opts.ModelType)
	}
	log.Printf("Exported %s: %d shard(s), %s on disk, took %s",
		opts.Model, exported.Manifest.ShardCount, util.HumanBytes(exported.TotalBytes), humanDuration(exported.Duration))

	if opts.PTuning {
		opts.stage("attaching prompt table")
		if err := export.AddPromptTable(opts.EngineDir, opts.PTuningCheckpoint, export.DefaultMaxPromptTableSize); err != nil {
			return nil, fmt.Errorf("error attaching prompt table: %w", err)
		}
	}

	eng, err := engine.Load(opts.EngineDir)
	if err != nil {
		return nil, fmt.Errorf("error loading engine: %w", err)
	}
	defer eng.Close()

	opts.stage("generating from prompt templates")
	sampling, maxNew := engineSampling(opts.Sampling, opts.MaxOutputTokens)
	streamed := 0
	req := engine.Request{
		Prompts:      opts.PromptTemplates,
		MaxNewTokens: maxNew,
		Sampling:     sampling,
		TaskIDs:      taskIDs,
		LoRAUIDs:     loraUIDs,
		StopWords:    opts.StopWords,
	}
	if opts.Streaming {
		req.OnToken = func(prompt int, token string) { streamed++ }
	}
	gen, err := eng.Generate(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("error generating from %s: %w", opts.Model, err)
	}

	result := &RunResult{
		Model:          opts.Model,
		GPUs:           opts.GPUs,
		SmokeOutputs:   gen.Outputs,
		TTFT:           gen.TTFT,
		StreamedTokens: streamed,
	}
	if secs := gen.Duration.Seconds(); secs > 0 {
		result.TokensPerSec = float64(gen.Usage.CompletionTokens) / secs
	}
	log.Printf("Generated %d tokens in %s, TTFT %s", gen.Usage.CompletionTokens, humanDuration(gen.Duration), humanDuration(gen.TTFT))

	var client *query.Client
	if opts.TestDeployment {
		opts.stage("deploying engine")
		server, err := deploy.New(deploy.Options{
			Engine: eng,
			Model:  opts.Model,
			Addr:   opts.DeployAddr,
		})
		if err != nil {
			return nil, err
		}
		if err := server.Start(); err != nil {
			return nil, err
		}
		defer func() {
			stopCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := server.Stop(stopCtx); err != nil {
				log.Printf("error stopping deployment: %v", err)
			}
		}()

		client, err = query.New(query.Options{
			BaseURL: "http://" + server.Addr(),
			Model:   opts.Model,
		})
		if err != nil {
			return nil, err
		}
		readyCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
		err = client.WaitReady(readyCtx, 250*time.Millisecond)
		cancel()
		if err != nil {
			return nil, err
		}

		opts.stage("querying deployment")
		var deployedOut []string
		if opts.Streaming {
			deployedOut, err = client.Stream(ctx, opts.PromptTemplates, opts.Sampling, func(prompt int, token string) {
				result.StreamedTokens++
			})
		} else {
			deployedOut, err = client.Complete(ctx, opts.PromptTemplates, opts.Sampling)
		}
		if err != nil {
			return nil, fmt.Errorf("error querying deployment: %w", err)
		}
		result.DeployedOutputs = deployedOut
	}

	if opts.Debug {
		fmt.Println()
		fmt.Println("--- Prompts: ", opts.PromptTemplates)
		fmt.Println("--- Outputs: ", result.SmokeOutputs)
		if opts.TestDeployment {
			fmt.Println("--- Outputs deployed: ", result.DeployedOutputs)
		}
		fmt.Println()
	}

	if opts.RunAccuracy {
		opts.stage("loading test data")
		set, err := accuracy.LoadTestSet(opts.TestDataPath)
		if err != nil {
			return nil, err
		}

		opts.stage("scoring accuracy")
		local := &engineCompleter{engine: eng}
		if opts.PTuning {
			local.taskID = "0"
		}
		if opts.LoRA {
			local.loraUID = "0"
		}
		result.Accuracy, err = accuracy.Evaluate(ctx, local, set, accuracy.Options{
			Model:      opts.Model,
			BatchSize:  opts.BatchSize,
			Threshold:  opts.Threshold,
			GPUs:       opts.GPUs,
			ResultsDir: opts.ResultsDir,
			OnResult:   opts.OnDetail,
		})
		if err != nil {
			return nil, err
		}

		if client != nil {
			opts.stage("scoring deployed accuracy")
			result.DeployedAccuracy, err = accuracy.Evaluate(ctx, client, set, accuracy.Options{
				Model:      opts.Model + "-deployed",
				BatchSize:  opts.BatchSize,
				Threshold:  opts.Threshold,
				GPUs:       opts.GPUs,
				ResultsDir: opts.ResultsDir,
				OnResult:   opts.OnDetail,
			})
			if err != nil {
				return nil, err
			}
		}
	}

	if opts.Debug {
		pp.Println(result)
	}
	logging.LogEvent("verify: run finished model=%s gpus=%d", opts.Model, opts.GPUs)
	return result, nil
}

// engineCompleter adapts the in-process engine to the accuracy harness,
// carrying the run's adapter selections so tuned runs score the tuned model.
type engineCompleter struct {
	engine  *engine.Engine
	taskID  string
	loraUID string
}

func (c *engineCompleter) Complete(ctx context.Context, prompts []string, params appconfig.SamplingParams) ([]string, error) {
	sampling, maxNew := engineSampling(params, 0)
	req := engine.Request{
		Prompts:      prompts,
		MaxNewTokens: maxNew,
		Sampling:     sampling,
	}
	if c.taskID != "" {
		req.TaskIDs = repeatedIDs(c.taskID, len(prompts))
	}
	if c.loraUID != "" {
		req.LoRAUIDs = repeatedIDs(c.loraUID, len(prompts))
	}
	res, err := c.engine.Generate(ctx, req)
	if err != nil {
		return nil, err
	}
	return res.Outputs, nil
}

// engineSampling flattens the pointer-based sampling params onto the
// engine's value struct, filling gaps from the greedy profile. A positive
// limit caps the token budget.
func engineSampling(params appconfig.SamplingParams, limit int) (engine.Sampling, int) {
	merged := appconfig.MergeSampling(appconfig.DefaultGreedyParams(), params)
	sampling := engine.Sampling{
		TopK:        *merged.TopK,
		TopP:        *merged.TopP,
		Temperature: *merged.Temperature,
		Seed:        *merged.Seed,
	}
	maxNew := *merged.MaxNewTokens
	if limit > 0 && (maxNew <= 0 || maxNew > limit) {
		maxNew = limit
	}
	return sampling, maxNew
}

func repeatedIDs(id string, n int) []string {
	ids := make([]string, n)
	for i := range ids {
		ids[i] = id
	}
	return ids
}

// alternatingUIDs selects the adapter for even batch slots and the base
// model for odd ones, so a single run exercises both lookup paths.
func alternatingUIDs(n int) []string {
	uids := make([]string, n)
	for i := range uids {
		uids[i] = "0"
		if i%2 == 1 {
			uids[i] = engine.BaseLoRAUID
		}
	}
	return uids
}

func humanDuration(d time.Duration) string {
	if d < time.Millisecond {
		return d.Round(time.Microsecond).String()
	}
	return d.Round(time.Millisecond).String()
}
