// internal/layerspec/registry.go
// Package layerspec assembles decoder-layer configurations from named runtime
// submodule implementations. A layer spec is declarative: it names which
// registered implementation fills each slot of a decoder layer, and the
// engine runtime validates the assembly against its registry before serving.
package layerspec

import "fmt"

// ModuleID names a registered submodule implementation.
type ModuleID string

// Built-in submodule implementations provided by the engine runtime.
const (
	FusedLayerNorm       ModuleID = "fused_layernorm"
	ColumnParallelLinear ModuleID = "column_parallel_linear"
	RowParallelLinear    ModuleID = "row_parallel_linear"
	DotProductAttention  ModuleID = "dot_product_attention"
	BiasDropoutAdd       ModuleID = "bias_dropout_add"
	SelfAttention        ModuleID = "self_attention"
	GatedMLP             ModuleID = "gated_mlp"
	LookupDecoderLayer   ModuleID = "lookup_decoder_layer"
)

// Kind classifies what slot a submodule implementation can fill.
type Kind int

const (
	KindNorm Kind = iota
	KindLinear
	KindAttention
	KindFusion
	KindMLP
	KindLayer
)

// String returns the human-readable name of the kind.
func (k Kind) String() string {
	switch k {
	case KindNorm:
		return "norm"
	case KindLinear:
		return "linear"
	case KindAttention:
		return "attention"
	case KindFusion:
		return "fusion"
	case KindMLP:
		return "mlp"
	case KindLayer:
		return "layer"
	default:
		return "unknown"
	}
}

// ModuleInfo describes a registered submodule implementation.
type ModuleInfo struct {
	ID   ModuleID
	Kind Kind
}

// Registry holds the submodule implementations a runtime supports.
type Registry struct {
	modules map[ModuleID]ModuleInfo
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{modules: make(map[ModuleID]ModuleInfo)}
}

// DefaultRegistry returns a registry populated with every built-in
// implementation the lookup-decoder runtime ships.
func DefaultRegistry() *Registry {
	r := NewRegistry()
	r.Register(ModuleInfo{ID: FusedLayerNorm, Kind: KindNorm})
	r.Register(ModuleInfo{ID: ColumnParallelLinear, Kind: KindLinear})
	r.Register(ModuleInfo{ID: RowParallelLinear, Kind: KindLinear})
	r.Register(ModuleInfo{ID: DotProductAttention, Kind: KindAttention})
	r.Register(ModuleInfo{ID: BiasDropoutAdd, Kind: KindFusion})
	r.Register(ModuleInfo{ID: SelfAttention, Kind: KindAttention})
	r.Register(ModuleInfo{ID: GatedMLP, Kind: KindMLP})
	r.Register(ModuleInfo{ID: LookupDecoderLayer, Kind: KindLayer})
	return r
}

// Register adds an implementation to the registry, replacing any previous
// registration under the same ID.
func (r *Registry) Register(info ModuleInfo) {
	r.modules[info.ID] = info
}

// Lookup returns the registered info for an ID.
func (r *Registry) Lookup(id ModuleID) (ModuleInfo, bool) {
	info, ok := r.modules[id]
	return info, ok
}

// require checks that a slot references a registered module of the expected kind.
func (r *Registry) require(slot string, id ModuleID, kind Kind) error {
	if id == "" {
		return fmt.Errorf("layerspec: slot %s is empty", slot)
	}
	info, ok := r.modules[id]
	if !ok {
		return fmt.Errorf("layerspec: module %q (slot %s) is not registered", id, slot)
	}
	if info.Kind != kind {
		return fmt.Errorf("layerspec: module %q (slot %s) is a %s module, expected %s", id, slot, info.Kind, kind)
	}
	return nil
}

// Validate checks every slot of a layer spec against the registry.
// PostSelfAttnLayerNorm is the only optional slot.
func (r *Registry) Validate(spec LayerSpec) error {
	if spec.SelfAttention.MaskType != MaskCausal {
		return fmt.Errorf("layerspec: unsupported attention mask type %q", spec.SelfAttention.MaskType)
	}
	checks := []struct {
		slot string
		id   ModuleID
		kind Kind
	}{
		{"module", spec.Module, KindLayer},
		{"input_layernorm", spec.InputLayerNorm, KindNorm},
		{"self_attention.module", spec.SelfAttention.Module, KindAttention},
		{"self_attention.linear_qkv", spec.SelfAttention.Submodules.LinearQKV, KindLinear},
		{"self_attention.core_attention", spec.SelfAttention.Submodules.CoreAttention, KindAttention},
		{"self_attention.linear_proj", spec.SelfAttention.Submodules.LinearProj, KindLinear},
		{"self_attn_bda", spec.SelfAttnBDA, KindFusion},
		{"pre_mlp_layernorm", spec.PreMLPLayerNorm, KindNorm},
		{"mlp.module", spec.MLP.Module, KindMLP},
		{"mlp.linear_fc1", spec.MLP.Submodules.LinearFC1, KindLinear},
		{"mlp.linear_fc2", spec.MLP.Submodules.LinearFC2, KindLinear},
		{"mlp_bda", spec.MLPBDA, KindFusion},
	}
	for _, c := range checks {
		if err := r.require(c.slot, c.id, c.kind); err != nil {
			return err
		}
	}
	if spec.PostSelfAttnLayerNorm != "" {
		if err := r.require("post_self_attn_layernorm", spec.PostSelfAttnLayerNorm, KindNorm); err != nil {
			return err
		}
	}
	return nil
}
